/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/urfave/cli/v3"

	"github.com/credledger/credledger/internal/anchor"
	"github.com/credledger/credledger/internal/util"
)

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Decode a verification token and dump its payload",
		ArgsUsage: "<token>",
		Action:    runInspectCommand,
	}
}

func runInspectCommand(ctx context.Context, cmd *cli.Command) error {
	encoded := cmd.Args().First()
	if encoded == "" {
		return errors.New("token argument is required")
	}

	tok, err := anchor.DecodeToken(encoded)
	if err != nil {
		return err
	}
	fmt.Printf("credential %s anchored in batch %d at seq %d\n",
		tok.CredentialID, tok.Proof.BatchID, tok.Proof.Seq)

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return err
	}
	var decoded any
	if err := cbor.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	pretty, err := util.RenderCBORPretty(decoded)
	if err != nil {
		return err
	}
	fmt.Println(pretty)
	return nil
}

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/credledger/credledger/internal/anchor"
)

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate an issuer EC P-256 signing key",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "out",
				Usage: "Output PEM path",
				Value: "issuer-key.pem",
			},
		},
		Action: runKeygenCommand,
	}
}

func runKeygenCommand(ctx context.Context, cmd *cli.Command) error {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}
	der, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return err
	}
	block := &pem.Block{Type: "EC PRIVATE KEY", Bytes: der}

	out := cmd.String("out")
	if err := os.WriteFile(out, pem.EncodeToMemory(block), 0o600); err != nil {
		return err
	}

	key, err := anchor.NewIssuerKey(priv)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s (key id %s)\n", out, hex.EncodeToString(key.KeyID))
	return nil
}

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/credledger/credledger/internal/config"
	"github.com/credledger/credledger/internal/server"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the issuance and verification HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address",
				Value: ":8472",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "SQLite database path",
				Value: "credledger.db",
			},
			&cli.StringFlag{
				Name:     "issuer-key",
				Usage:    "PEM file holding the issuer's EC P-256 signing key",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Close the open batch after this many entries",
				Value: 100,
			},
			&cli.DurationFlag{
				Name:  "batch-age",
				Usage: "Close the open batch after this much time",
				Value: 10 * time.Minute,
			},
			&cli.Int64Flag{
				Name:  "checkpoint",
				Usage: "Trusted checkpoint batch id; proofs chain down to it instead of genesis",
			},
			&cli.StringFlag{
				Name:  "amqp-url",
				Usage: "AMQP broker URL for batch-close announcements (disabled when empty)",
			},
			&cli.StringFlag{
				Name:  "amqp-exchange",
				Usage: "AMQP fanout exchange for batch-close announcements",
				Value: "ledger.batches",
			},
		},
		Action: runServeCommand,
	}
}

func runServeCommand(ctx context.Context, cmd *cli.Command) error {
	logger := log.Default()

	srv, err := server.New(config.Config{
		Addr:            cmd.String("addr"),
		DBPath:          cmd.String("db"),
		IssuerKeyPath:   cmd.String("issuer-key"),
		BatchMaxEntries: cmd.Int("batch-size"),
		BatchMaxAge:     cmd.Duration("batch-age"),
		CheckpointBatch: cmd.Int64("checkpoint"),
		AMQPURL:         cmd.String("amqp-url"),
		AMQPExchange:    cmd.String("amqp-exchange"),
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

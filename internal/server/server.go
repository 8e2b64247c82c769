/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/credledger/credledger/internal/anchor"
	"github.com/credledger/credledger/internal/config"
	"github.com/credledger/credledger/internal/domain"
	"github.com/credledger/credledger/internal/infra/sqlite"
	"github.com/credledger/credledger/internal/ledger"
	"github.com/credledger/credledger/internal/notify"
)

// Server wires the HTTP listener and request handling stack.
type Server struct {
	cfg       config.Config
	db        *sql.DB
	ledger    *ledger.Ledger
	publisher *notify.Publisher
	handler   *handler
	http      *http.Server
	logger    *log.Logger
	cancel    context.CancelFunc
}

// New constructs a Server using the provided configuration.
func New(cfg config.Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	ctx := context.Background()
	db, err := sqlite.InitDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	var publisher *notify.Publisher
	var sink ledger.BatchSink
	if cfg.AMQPURL != "" {
		publisher, err = notify.Dial(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			sqlite.CloseDB(db)
			return nil, err
		}
		sink = publisher
	}

	ld, err := ledger.Open(ctx, db, ledger.Options{
		MaxEntries: cfg.BatchMaxEntries,
		MaxAge:     cfg.BatchMaxAge,
		Checkpoint: cfg.CheckpointBatch,
		Sink:       sink,
		Logger:     logger,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrLedgerCorrupted) {
			sqlite.CloseDB(db)
			return nil, err
		}
		// Keep serving read-only proof lookups against the last
		// known-good state; appends refuse until resolved.
		logger.Printf("ledger self-check failed, issuance disabled: %v", err)
	}

	key, err := anchor.LoadIssuerKey(cfg.IssuerKeyPath)
	if err != nil {
		sqlite.CloseDB(db)
		return nil, err
	}

	svc := anchor.NewService(ld, sqlite.NewCredentialRepository(db), key, logger)
	h := newHandler(svc, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		cfg:       cfg,
		db:        db,
		ledger:    ld,
		publisher: publisher,
		handler:   h,
		http:      httpSrv,
		logger:    logger,
	}, nil
}

// ListenAndServe starts the age-based batch closer and the HTTP server
// and blocks until the server stops.
func (s *Server) ListenAndServe() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.ledger.Run(ctx)

	s.logger.Printf("Run credential ledger server on %s.", s.http.Addr)

	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully takes down the HTTP server and releases the
// broker and database handles.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	err := s.http.Shutdown(ctx)
	if s.publisher != nil {
		s.publisher.Close()
	}
	if dbErr := sqlite.CloseDB(s.db); err == nil {
		err = dbErr
	}
	return err
}

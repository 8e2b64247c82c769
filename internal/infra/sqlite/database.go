/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// InitDB initializes the SQLite database and creates necessary tables.
func InitDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Connection-level pragmas to improve concurrency and reliability.
	// NOTE: journal_mode is persistent per DB file and returns a row.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMA foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMA journal_mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMA synchronous: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMA busy_timeout: %w", err)
	}

	// Create tables and indexes
	if err := createSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

// createSchema creates all necessary database tables.
func createSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	-- Enable foreign keys
	PRAGMA foreign_keys = ON;

	-- Ledger batches. previous_root is fixed at open time; merkle_root
	-- is written exactly once, when the batch closes.
	CREATE TABLE IF NOT EXISTS batches (
		id INTEGER PRIMARY KEY,
		previous_root BLOB NOT NULL,
		merkle_root BLOB,
		state TEXT NOT NULL DEFAULT 'open',
		opened_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_batches_state ON batches(state);

	-- Ledger entries. seq is assigned by the single ledger writer and
	-- is globally monotonic with no gaps.
	CREATE TABLE IF NOT EXISTS entries (
		seq INTEGER PRIMARY KEY,
		fingerprint BLOB NOT NULL,
		batch_id INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		-- table constraints (placed after column definitions for compatibility)
		FOREIGN KEY (batch_id) REFERENCES batches(id)
	);

	-- Create index on fingerprint for proof lookups
	CREATE INDEX IF NOT EXISTS idx_entries_fingerprint ON entries(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_entries_batch_id ON entries(batch_id);

	-- Issued credentials, kept for display and re-verification.
	CREATE TABLE IF NOT EXISTS credentials (
		id TEXT PRIMARY KEY,
		fingerprint BLOB NOT NULL,
		record TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_credentials_fingerprint ON credentials(fingerprint);
	`

	// Execute schema using transaction
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CloseDB closes the database connection.
func CloseDB(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

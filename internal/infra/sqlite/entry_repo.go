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

	"github.com/credledger/credledger/internal/domain/model"
)

// EntryRepository handles ledger entry persistence.
type EntryRepository struct {
	db *sql.DB
}

func NewEntryRepository(db *sql.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// Create inserts a new entry with its pre-assigned sequence number.
func (r *EntryRepository) Create(ctx context.Context, e *model.LedgerEntry) error {
	const q = `
		INSERT INTO entries (seq, fingerprint, batch_id, created_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, q, e.Seq, e.Fingerprint, e.BatchID, e.CreatedAt); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// ListByBatch returns a batch's entries ordered by sequence number.
func (r *EntryRepository) ListByBatch(ctx context.Context, batchID int64) ([]*model.LedgerEntry, error) {
	const q = `
		SELECT seq, fingerprint, batch_id, created_at
		FROM entries
		WHERE batch_id = ?
		ORDER BY seq ASC
	`
	rows, err := r.db.QueryContext(ctx, q, batchID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.Seq, &e.Fingerprint, &e.BatchID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// FindLatestByFingerprint returns the most recent entry carrying the
// fingerprint, or nil when the fingerprint was never appended.
func (r *EntryRepository) FindLatestByFingerprint(ctx context.Context, fingerprint []byte) (*model.LedgerEntry, error) {
	const q = `
		SELECT seq, fingerprint, batch_id, created_at
		FROM entries
		WHERE fingerprint = ?
		ORDER BY seq DESC
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, q, fingerprint))
}

// FindEarliestByFingerprint returns the first entry carrying the
// fingerprint. Duplicates are legal; the earliest sequence number is
// the canonical issuance.
func (r *EntryRepository) FindEarliestByFingerprint(ctx context.Context, fingerprint []byte) (*model.LedgerEntry, error) {
	const q = `
		SELECT seq, fingerprint, batch_id, created_at
		FROM entries
		WHERE fingerprint = ?
		ORDER BY seq ASC
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, q, fingerprint))
}

// MaxSeq returns the highest assigned sequence number, 0 when empty.
func (r *EntryRepository) MaxSeq(ctx context.Context) (int64, error) {
	const q = `SELECT COALESCE(MAX(seq), 0) FROM entries`
	var seq int64
	if err := r.db.QueryRowContext(ctx, q).Scan(&seq); err != nil {
		return 0, fmt.Errorf("scan max seq: %w", err)
	}
	return seq, nil
}

// Count returns the total number of entries.
func (r *EntryRepository) Count(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM entries`
	var n int64
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("scan entry count: %w", err)
	}
	return n, nil
}

func (r *EntryRepository) scanOne(row *sql.Row) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	if err := row.Scan(&e.Seq, &e.Fingerprint, &e.BatchID, &e.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	return &e, nil
}

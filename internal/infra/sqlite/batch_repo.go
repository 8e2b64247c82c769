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
	"time"

	"github.com/credledger/credledger/internal/domain/model"
)

// BatchRepository handles ledger batch persistence.
type BatchRepository struct {
	db *sql.DB
}

func NewBatchRepository(db *sql.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create inserts a new open batch with an explicit id.
func (r *BatchRepository) Create(ctx context.Context, b *model.Batch) error {
	const q = `
		INSERT INTO batches (id, previous_root, merkle_root, state, opened_at)
		VALUES (?, ?, NULL, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, q, b.ID, b.PreviousRoot, model.BatchOpen, b.OpenedAt); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// Close finalizes a batch: writes the root, the close timestamp and
// flips the state. The WHERE clause keeps the write idempotent.
func (r *BatchRepository) Close(ctx context.Context, id int64, root []byte, closedAt time.Time) error {
	const q = `
		UPDATE batches
		SET merkle_root = ?, state = ?, closed_at = ?
		WHERE id = ? AND state = ?
	`
	if _, err := r.db.ExecContext(ctx, q, root, model.BatchClosed, closedAt, id, model.BatchOpen); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	return nil
}

// FindByID returns a batch by its id, or nil when absent.
func (r *BatchRepository) FindByID(ctx context.Context, id int64) (*model.Batch, error) {
	const q = `
		SELECT id, previous_root, merkle_root, state, opened_at, closed_at
		FROM batches
		WHERE id = ?
		LIMIT 1
	`
	return scanBatch(r.db.QueryRowContext(ctx, q, id))
}

// ListAll returns every batch ordered by id, oldest first.
func (r *BatchRepository) ListAll(ctx context.Context) ([]*model.Batch, error) {
	const q = `
		SELECT id, previous_root, merkle_root, state, opened_at, closed_at
		FROM batches
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var batches []*model.Batch
	for rows.Next() {
		b, err := scanBatchRow(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, nil
}

// OverwriteRoot replaces a closed batch root. Test hook for simulating
// storage tampering; never called from the serving path.
func (r *BatchRepository) OverwriteRoot(ctx context.Context, id int64, root []byte) error {
	const q = `
		UPDATE batches
		SET merkle_root = ?
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, q, root, id); err != nil {
		return fmt.Errorf("overwrite batch root: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row *sql.Row) (*model.Batch, error) {
	b, err := scanBatchRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

func scanBatchRow(row rowScanner) (*model.Batch, error) {
	var b model.Batch
	var root []byte
	var closedAt sql.NullTime
	if err := row.Scan(&b.ID, &b.PreviousRoot, &root, &b.State, &b.OpenedAt, &closedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan batch: %w", err)
	}
	b.MerkleRoot = root
	if closedAt.Valid {
		b.ClosedAt = closedAt.Time
	}
	return &b, nil
}

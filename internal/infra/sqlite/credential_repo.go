/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/credledger/credledger/internal/domain/model"
)

// CredentialRepository handles issued credential persistence.
type CredentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Create inserts an issued credential. The record is stored as JSON;
// the fingerprint column is what ties it back to the ledger.
func (r *CredentialRepository) Create(ctx context.Context, c *model.StoredCredential) error {
	record, err := json.Marshal(c.Record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	const q = `
		INSERT INTO credentials (id, fingerprint, record, created_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, q, c.ID, c.Fingerprint, string(record), c.CreatedAt); err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// FindByID returns a stored credential by id, or nil when absent.
func (r *CredentialRepository) FindByID(ctx context.Context, id string) (*model.StoredCredential, error) {
	const q = `
		SELECT id, fingerprint, record, created_at
		FROM credentials
		WHERE id = ?
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, q, id)
	var c model.StoredCredential
	var record string
	if err := row.Scan(&c.ID, &c.Fingerprint, &record, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}
	if err := json.Unmarshal([]byte(record), &c.Record); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &c, nil
}

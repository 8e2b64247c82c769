/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package service

import (
	"context"
	"time"

	"github.com/credledger/credledger/internal/domain/model"
)

// BatchRepository defines the interface for ledger batch persistence.
type BatchRepository interface {
	Create(ctx context.Context, b *model.Batch) error
	Close(ctx context.Context, id int64, root []byte, closedAt time.Time) error
	FindByID(ctx context.Context, id int64) (*model.Batch, error)
	ListAll(ctx context.Context) ([]*model.Batch, error)
}

// EntryRepository defines the interface for ledger entry persistence.
type EntryRepository interface {
	Create(ctx context.Context, e *model.LedgerEntry) error
	ListByBatch(ctx context.Context, batchID int64) ([]*model.LedgerEntry, error)
	FindLatestByFingerprint(ctx context.Context, fingerprint []byte) (*model.LedgerEntry, error)
	FindEarliestByFingerprint(ctx context.Context, fingerprint []byte) (*model.LedgerEntry, error)
	MaxSeq(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// CredentialRepository defines the interface for issued credential persistence.
type CredentialRepository interface {
	Create(ctx context.Context, c *model.StoredCredential) error
	FindByID(ctx context.Context, id string) (*model.StoredCredential, error)
}

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package ledger

import (
	"bytes"
	"context"
	"fmt"

	"github.com/credledger/credledger/internal/domain"
	"github.com/credledger/credledger/internal/domain/model"
	"github.com/credledger/credledger/internal/merkle"
)

// BuildProof constructs the inclusion proof for a fingerprint: the
// sibling path from its leaf to the batch root plus the batch-root
// chain back to genesis or the configured checkpoint. The open batch
// is searched first, then closed batches by recency.
func (l *Ledger) BuildProof(ctx context.Context, fingerprint []byte) (*model.InclusionProof, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	// Open batch first: tokens are usually built right after issuance.
	for i, leaf := range l.open.leaves {
		if !bytes.Equal(leaf, fingerprint) {
			continue
		}
		leaves := make([][]byte, len(l.open.leaves))
		copy(leaves, l.open.leaves)
		return &model.InclusionProof{
			Fingerprint: bytes.Clone(fingerprint),
			Seq:         l.open.seqs[i],
			BatchID:     l.open.batch.ID,
			LeafIndex:   i,
			Siblings:    merkle.Path(leaves, i),
			RootChain:   l.chainLocked(l.open.batch.ID),
		}, nil
	}

	entry, err := l.entries.FindLatestByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("locate entry: %w", err)
	}
	if entry == nil {
		return nil, domain.ErrNotFound
	}

	batchEntries, err := l.entries.ListByBatch(ctx, entry.BatchID)
	if err != nil {
		return nil, fmt.Errorf("load batch %d entries: %w", entry.BatchID, err)
	}
	leaves := make([][]byte, len(batchEntries))
	index := -1
	for i, e := range batchEntries {
		leaves[i] = e.Fingerprint
		if e.Seq == entry.Seq {
			index = i
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("%w: entry %d missing from batch %d", domain.ErrLedgerCorrupted, entry.Seq, entry.BatchID)
	}

	return &model.InclusionProof{
		Fingerprint: bytes.Clone(fingerprint),
		Seq:         entry.Seq,
		BatchID:     entry.BatchID,
		LeafIndex:   index,
		Siblings:    merkle.Path(leaves, index),
		RootChain:   l.chainLocked(entry.BatchID),
	}, nil
}

// RootChain returns the authoritative batch roots from batchID down to
// genesis or the checkpoint, newest first. The open batch contributes
// its root-in-progress.
func (l *Ledger) RootChain(ctx context.Context, batchID int64) ([][]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if batchID < 1 || batchID > l.open.batch.ID {
		return nil, domain.ErrNotFound
	}
	return l.chainLocked(batchID), nil
}

func (l *Ledger) chainLocked(batchID int64) [][]byte {
	floor := int64(1)
	if l.opts.Checkpoint > floor {
		floor = l.opts.Checkpoint
	}
	var chain [][]byte
	for id := batchID; id >= floor; id-- {
		if id == l.open.batch.ID {
			chain = append(chain, merkle.Root(l.open.leaves))
			continue
		}
		chain = append(chain, l.roots[id])
	}
	return chain
}

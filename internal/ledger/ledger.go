/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package ledger implements the append-only, hash-linked batch ledger.
// A single writer owns the currently open batch; closed batches are
// immutable and may be read without coordination.
package ledger

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/credledger/credledger/internal/domain"
	"github.com/credledger/credledger/internal/domain/model"
	"github.com/credledger/credledger/internal/domain/service"
	"github.com/credledger/credledger/internal/infra/sqlite"
	"github.com/credledger/credledger/internal/merkle"
	"github.com/credledger/credledger/internal/util"
)

const (
	DefaultMaxEntries = 100
	DefaultMaxAge     = 10 * time.Minute
)

// BatchSink receives closed batches, e.g. to announce them to
// downstream consumers. Called outside the ledger lock.
type BatchSink interface {
	BatchClosed(ctx context.Context, batch *model.Batch, entryCount int) error
}

// Options tune the ledger. Zero values fall back to defaults.
type Options struct {
	MaxEntries int           // close the open batch after this many entries
	MaxAge     time.Duration // or after this much time, whichever first
	Checkpoint int64         // trusted checkpoint batch id; proofs chain down to it
	Sink       BatchSink
	Logger     *log.Logger
}

type openBatch struct {
	batch  *model.Batch
	leaves [][]byte
	seqs   []int64
}

// Ledger owns the batch lifecycle. All mutation goes through a single
// writer lock scoped to the open batch; closed batch state is served
// from an in-memory cache populated at load time.
type Ledger struct {
	batches service.BatchRepository
	entries service.EntryRepository
	opts    Options
	logger  *log.Logger

	mu      sync.RWMutex
	open    *openBatch
	closed  []*model.Batch   // ordered by id; ids are contiguous from 1
	roots   map[int64][]byte // closed batch id -> merkle root
	nextSeq int64
	corrupt error
}

// Open loads the ledger from storage and verifies the persisted
// chain's self-consistency. On a failed self-check the returned error
// wraps domain.ErrLedgerCorrupted and the returned ledger refuses
// appends while still serving read-only proof lookups against the
// loaded state.
func Open(ctx context.Context, db *sql.DB, opts Options) (*Ledger, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	l := &Ledger{
		batches: sqlite.NewBatchRepository(db),
		entries: sqlite.NewEntryRepository(db),
		opts:    opts,
		logger:  logger,
		roots:   make(map[int64][]byte),
	}

	if err := l.load(ctx); err != nil {
		return nil, err
	}
	if err := l.selfCheck(ctx); err != nil {
		l.corrupt = err
		return l, err
	}
	return l, nil
}

func (l *Ledger) load(ctx context.Context) error {
	batches, err := l.batches.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load batches: %w", err)
	}

	maxSeq, err := l.entries.MaxSeq(ctx)
	if err != nil {
		return fmt.Errorf("load max seq: %w", err)
	}
	l.nextSeq = maxSeq + 1

	for _, b := range batches {
		if b.State == model.BatchClosed {
			l.closed = append(l.closed, b)
			l.roots[b.ID] = b.MerkleRoot
			continue
		}
		entries, err := l.entries.ListByBatch(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("load open batch entries: %w", err)
		}
		ob := &openBatch{batch: b}
		for _, e := range entries {
			ob.leaves = append(ob.leaves, e.Fingerprint)
			ob.seqs = append(ob.seqs, e.Seq)
		}
		l.open = ob
	}

	if l.open == nil {
		prev := model.GenesisRoot()
		id := int64(1)
		if n := len(l.closed); n > 0 {
			last := l.closed[n-1]
			prev = last.MerkleRoot
			id = last.ID + 1
		}
		b := &model.Batch{
			ID:           id,
			PreviousRoot: prev,
			State:        model.BatchOpen,
			OpenedAt:     time.Now().UTC(),
		}
		if err := l.batches.Create(ctx, b); err != nil {
			return fmt.Errorf("open initial batch: %w", err)
		}
		l.open = &openBatch{batch: b}
	}
	return nil
}

// selfCheck re-derives every closed batch root from its entries and
// re-walks the previous-root chain from genesis. Must pass before the
// ledger accepts new appends.
func (l *Ledger) selfCheck(ctx context.Context) error {
	prev := model.GenesisRoot()
	expectID := int64(1)
	seen := util.NewSet[int64]()
	var total int64

	check := func(b *model.Batch) error {
		if b.ID != expectID {
			return fmt.Errorf("%w: batch ids not contiguous at %d", domain.ErrLedgerCorrupted, b.ID)
		}
		expectID++
		if !bytes.Equal(b.PreviousRoot, prev) {
			return fmt.Errorf("%w: batch %d previous root does not match prior batch", domain.ErrLedgerCorrupted, b.ID)
		}
		entries, err := l.entries.ListByBatch(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("self-check batch %d: %w", b.ID, err)
		}
		leaves := make([][]byte, 0, len(entries))
		for _, e := range entries {
			if seen.Has(e.Seq) {
				return fmt.Errorf("%w: duplicate sequence number %d", domain.ErrLedgerCorrupted, e.Seq)
			}
			seen.Add(e.Seq)
			leaves = append(leaves, e.Fingerprint)
		}
		total += int64(len(entries))
		if b.State == model.BatchClosed {
			if !bytes.Equal(merkle.Root(leaves), b.MerkleRoot) {
				return fmt.Errorf("%w: batch %d root does not match its entries", domain.ErrLedgerCorrupted, b.ID)
			}
			prev = b.MerkleRoot
		}
		return nil
	}

	for _, b := range l.closed {
		if err := check(b); err != nil {
			return err
		}
	}
	if err := check(l.open.batch); err != nil {
		return err
	}

	maxSeq, err := l.entries.MaxSeq(ctx)
	if err != nil {
		return fmt.Errorf("self-check max seq: %w", err)
	}
	if maxSeq != total {
		return fmt.Errorf("%w: sequence numbers have gaps (max %d, count %d)", domain.ErrLedgerCorrupted, maxSeq, total)
	}
	return nil
}

// Corrupted returns the self-check failure, if any.
func (l *Ledger) Corrupted() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.corrupt
}

// Append records a fingerprint in the open batch, assigning the next
// global sequence number atomically. Reaching the size threshold
// closes the batch in the same critical section so no entry is lost or
// double-counted.
func (l *Ledger) Append(ctx context.Context, fingerprint []byte) (*model.LedgerEntry, error) {
	if len(fingerprint) != model.FingerprintSize {
		return nil, fmt.Errorf("%w: fingerprint must be %d bytes", domain.ErrMalformedRecord, model.FingerprintSize)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.corrupt != nil {
		return nil, l.corrupt
	}

	e := &model.LedgerEntry{
		Seq:         l.nextSeq,
		Fingerprint: bytes.Clone(fingerprint),
		BatchID:     l.open.batch.ID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := l.entries.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("append entry: %w", err)
	}
	l.nextSeq++
	l.open.leaves = append(l.open.leaves, e.Fingerprint)
	l.open.seqs = append(l.open.seqs, e.Seq)

	if len(l.open.leaves) >= l.opts.MaxEntries {
		if _, err := l.closeLocked(ctx); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// CloseBatch finalizes the open batch and opens a fresh one. Closing
// an empty batch is a no-op returning the last closed batch, which
// makes a concurrent close attempt after the fact safe.
func (l *Ledger) CloseBatch(ctx context.Context) (*model.Batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.corrupt != nil {
		return nil, l.corrupt
	}
	if len(l.open.leaves) == 0 {
		if n := len(l.closed); n > 0 {
			return l.closed[n-1], nil
		}
		return nil, nil
	}
	return l.closeLocked(ctx)
}

func (l *Ledger) closeLocked(ctx context.Context) (*model.Batch, error) {
	b := l.open.batch
	root := merkle.Root(l.open.leaves)
	now := time.Now().UTC()

	if err := l.batches.Close(ctx, b.ID, root, now); err != nil {
		return nil, fmt.Errorf("close batch %d: %w", b.ID, err)
	}
	next := &model.Batch{
		ID:           b.ID + 1,
		PreviousRoot: root,
		State:        model.BatchOpen,
		OpenedAt:     now,
	}
	if err := l.batches.Create(ctx, next); err != nil {
		// Storage closed the batch but its successor never opened, so
		// the in-memory open batch no longer mirrors storage. Refuse
		// further appends until the operator resolves it.
		l.corrupt = fmt.Errorf("%w: batch %d closed but batch %d failed to open: %v",
			domain.ErrLedgerCorrupted, b.ID, next.ID, err)
		return nil, l.corrupt
	}

	// Both writes are durable; mirror them in memory.
	b.MerkleRoot = root
	b.State = model.BatchClosed
	b.ClosedAt = now
	l.closed = append(l.closed, b)
	l.roots[b.ID] = root
	entryCount := len(l.open.leaves)
	l.open = &openBatch{batch: next}

	l.logger.Printf("closed batch %d with %d entries", b.ID, entryCount)
	if l.opts.Sink != nil {
		closed := *b
		go func() {
			if err := l.opts.Sink.BatchClosed(context.Background(), &closed, entryCount); err != nil {
				l.logger.Printf("batch %d announcement failed: %v", closed.ID, err)
			}
		}()
	}
	return b, nil
}

// Run closes the open batch whenever it outlives the age threshold.
// Returns when ctx is cancelled; entries are already durable, so
// shutdown needs no extra flushing.
func (l *Ledger) Run(ctx context.Context) {
	interval := l.opts.MaxAge / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			if l.corrupt == nil && len(l.open.leaves) > 0 &&
				time.Since(l.open.batch.OpenedAt) >= l.opts.MaxAge {
				if _, err := l.closeLocked(ctx); err != nil {
					l.logger.Printf("time-triggered close failed: %v", err)
				}
			}
			l.mu.Unlock()
		}
	}
}

// GetBatch returns batch metadata. The open batch is returned as a
// snapshot without a root.
func (l *Ledger) GetBatch(ctx context.Context, id int64) (*model.Batch, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if id == l.open.batch.ID {
		snapshot := *l.open.batch
		return &snapshot, nil
	}
	if id < 1 || id > int64(len(l.closed)) {
		return nil, domain.ErrNotFound
	}
	return l.closed[id-1], nil
}

// Earliest returns the canonical (first) ledger entry for a
// fingerprint.
func (l *Ledger) Earliest(ctx context.Context, fingerprint []byte) (*model.LedgerEntry, error) {
	e, err := l.entries.FindEarliestByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import (
	"crypto/sha256"
	"time"
)

type BatchState string

const (
	BatchOpen   BatchState = "open"
	BatchClosed BatchState = "closed"
)

// Batch is one Merkle-batched segment of the ledger. PreviousRoot links
// it to the preceding batch; the first batch links to the genesis
// constant. A closed batch is immutable.
type Batch struct {
	ID           int64
	PreviousRoot []byte
	MerkleRoot   []byte
	State        BatchState
	OpenedAt     time.Time
	ClosedAt     time.Time
}

// GenesisRoot is the fixed previous-root of the first batch.
func GenesisRoot() []byte {
	sum := sha256.Sum256([]byte("credledger/genesis"))
	return sum[:]
}

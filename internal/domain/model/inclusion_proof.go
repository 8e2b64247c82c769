/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

// InclusionProof proves that a fingerprint was recorded at a specific,
// immutable point in the ledger. Siblings is the hash path from the
// leaf up to the batch root; RootChain holds the batch roots from the
// entry's own batch (index 0) back to genesis or the configured
// trusted checkpoint.
type InclusionProof struct {
	Fingerprint []byte
	Seq         int64
	BatchID     int64
	LeafIndex   int
	Siblings    [][]byte
	RootChain   [][]byte
}

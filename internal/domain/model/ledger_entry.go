/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// FingerprintSize is the byte length of a credential fingerprint
// (SHA-256 over the canonical record encoding).
const FingerprintSize = 32

// LedgerEntry records one anchored fingerprint. Sequence numbers are
// global, strictly increasing and gap-free across all batches.
type LedgerEntry struct {
	Seq         int64
	Fingerprint []byte
	BatchID     int64
	CreatedAt   time.Time
}

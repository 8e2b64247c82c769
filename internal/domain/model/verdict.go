/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

// VerdictStatus classifies the outcome of a verification attempt.
// Verdicts are expected, frequent outcomes and travel as values, never
// as errors.
type VerdictStatus string

const (
	StatusVerified         VerdictStatus = "Verified"
	StatusTamperedData     VerdictStatus = "TamperedData"
	StatusBrokenChain      VerdictStatus = "BrokenChain"
	StatusInvalidSignature VerdictStatus = "InvalidSignature"
	StatusUnknownBatch     VerdictStatus = "UnknownBatch"
	StatusMalformedToken   VerdictStatus = "MalformedToken"
)

// Verdict is the result of a verification attempt plus the evidence
// needed for audit display.
type Verdict struct {
	Status VerdictStatus
	Reason string

	// Evidence. Recomputed values come from the presented data; the
	// presented fingerprint and ledger root are what the token and the
	// ledger claim, respectively.
	RecomputedFingerprint []byte
	PresentedFingerprint  []byte
	RecomputedRoot        []byte
	LedgerRoot            []byte
}

// Verified reports whether the verdict is the single success status.
func (v *Verdict) Verified() bool {
	return v.Status == StatusVerified
}

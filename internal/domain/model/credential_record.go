/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// CredentialRecord is the immutable academic credential issued to a
// subject. Once fingerprinted its content must never change; a
// correction is issued as a new record with a new ID.
type CredentialRecord struct {
	ID            string                    `json:"id,omitempty"`
	IssuerID      string                    `json:"issuer_id"`
	SubjectID     string                    `json:"subject_id"`
	SchemaVersion uint16                    `json:"schema_version"`
	IssuedAt      time.Time                 `json:"issued_at"`
	Attributes    map[string]AttributeValue `json:"attributes"`
}

// StoredCredential is the persisted issuance row: the record plus the
// fingerprint it was anchored under.
type StoredCredential struct {
	ID          string
	Fingerprint []byte
	Record      CredentialRecord
	CreatedAt   time.Time
}

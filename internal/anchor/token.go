/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package anchor

import (
	"encoding/base64"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/credledger/credledger/internal/domain"
	"github.com/credledger/credledger/internal/domain/model"
)

const (
	// TokenVersion is the current wire format version. The version is
	// the first field of the payload so future verifiers can bail out
	// of foreign formats cleanly.
	TokenVersion = 1

	// MaxTokenBytes bounds the CBOR payload so the token stays within
	// comfortable QR code capacity.
	MaxTokenBytes = 2048
)

// Token is the self-describing verification token embedded in the QR
// code. Read-only once created at issuance.
type Token struct {
	Version      uint8
	CredentialID string
	Fingerprint  []byte
	Proof        model.InclusionProof
	KeyID        []byte
	Signature    []byte
}

// Compact integer-keyed CBOR layout, smallest stable encoding.
type tokenPayload struct {
	Version      uint8    `cbor:"1,keyasint"`
	CredentialID string   `cbor:"2,keyasint"`
	Fingerprint  []byte   `cbor:"3,keyasint"`
	Seq          int64    `cbor:"4,keyasint"`
	BatchID      int64    `cbor:"5,keyasint"`
	LeafIndex    int      `cbor:"6,keyasint"`
	Siblings     [][]byte `cbor:"7,keyasint"`
	RootChain    [][]byte `cbor:"8,keyasint"`
	KeyID        []byte   `cbor:"9,keyasint,omitempty"`
	Signature    []byte   `cbor:"10,keyasint"`
}

type tokenVersionProbe struct {
	Version uint8 `cbor:"1,keyasint"`
}

// EncodeToken serializes a token into the base64url text placed in the
// QR code.
func EncodeToken(t *Token) (string, error) {
	payload := tokenPayload{
		Version:      t.Version,
		CredentialID: t.CredentialID,
		Fingerprint:  t.Fingerprint,
		Seq:          t.Proof.Seq,
		BatchID:      t.Proof.BatchID,
		LeafIndex:    t.Proof.LeafIndex,
		Siblings:     t.Proof.Siblings,
		RootChain:    t.Proof.RootChain,
		KeyID:        t.KeyID,
		Signature:    t.Signature,
	}
	raw, err := cbor.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal token: %w", err)
	}
	if len(raw) > MaxTokenBytes {
		return "", fmt.Errorf("%w: %d bytes", domain.ErrTokenTooLarge, len(raw))
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeToken parses a QR payload back into a token. Truncated or
// corrupted payloads are rejected deterministically; a payload from a
// future format version yields ErrUnsupportedVersion.
func DecodeToken(encoded string) (*Token, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
	}

	var probe tokenVersionProbe
	if err := cbor.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
	}
	if probe.Version != TokenVersion {
		return nil, fmt.Errorf("%w: version %d", domain.ErrUnsupportedVersion, probe.Version)
	}

	var payload tokenPayload
	if err := cbor.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
	}
	if payload.CredentialID == "" {
		return nil, fmt.Errorf("%w: missing credential id", domain.ErrMalformedToken)
	}
	if len(payload.Fingerprint) != model.FingerprintSize {
		return nil, fmt.Errorf("%w: fingerprint must be %d bytes", domain.ErrMalformedToken, model.FingerprintSize)
	}
	if payload.LeafIndex < 0 || payload.BatchID < 1 || payload.Seq < 1 {
		return nil, fmt.Errorf("%w: negative proof coordinates", domain.ErrMalformedToken)
	}
	if len(payload.RootChain) == 0 {
		return nil, fmt.Errorf("%w: empty root chain", domain.ErrMalformedToken)
	}
	if len(payload.Signature) == 0 {
		return nil, fmt.Errorf("%w: missing signature", domain.ErrMalformedToken)
	}

	return &Token{
		Version:      payload.Version,
		CredentialID: payload.CredentialID,
		Fingerprint:  payload.Fingerprint,
		Proof: model.InclusionProof{
			Fingerprint: payload.Fingerprint,
			Seq:         payload.Seq,
			BatchID:     payload.BatchID,
			LeafIndex:   payload.LeafIndex,
			Siblings:    payload.Siblings,
			RootChain:   payload.RootChain,
		},
		KeyID:     payload.KeyID,
		Signature: payload.Signature,
	}, nil
}

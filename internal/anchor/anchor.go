/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package anchor is the credential integrity core: it fingerprints
// credential records, anchors them in the ledger, issues verification
// tokens and re-checks them on scan.
package anchor

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/credledger/credledger/internal/canonical"
	"github.com/credledger/credledger/internal/domain"
	"github.com/credledger/credledger/internal/domain/model"
	"github.com/credledger/credledger/internal/domain/service"
	"github.com/credledger/credledger/internal/ledger"
	"github.com/credledger/credledger/internal/merkle"
)

// Service drives the issuance and verification flows over a ledger
// and an injected issuer key.
type Service struct {
	ledger *ledger.Ledger
	creds  service.CredentialRepository
	key    *IssuerKey
	logger *log.Logger
}

func NewService(ld *ledger.Ledger, creds service.CredentialRepository, key *IssuerKey, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		ledger: ld,
		creds:  creds,
		key:    key,
		logger: logger,
	}
}

// Ledger exposes the underlying ledger for read-only use.
func (s *Service) Ledger() *ledger.Ledger {
	return s.ledger
}

// Issue fingerprints the record, anchors it, and returns the
// verification token ready for QR rendering. Assigns a fresh
// credential id when the record carries none.
func (s *Service) Issue(ctx context.Context, rec *model.CredentialRecord) (*Token, error) {
	if s.key == nil || s.key.Signer == nil {
		return nil, ErrSignerMissing
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	fingerprint, err := canonical.Fingerprint(rec)
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.Append(ctx, fingerprint); err != nil {
		return nil, err
	}
	proof, err := s.ledger.BuildProof(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("build proof: %w", err)
	}

	content := SigningContent(rec.ID, fingerprint, proof.BatchID)
	signature, err := s.key.Signer.Sign(rand.Reader, content)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	if s.creds != nil {
		stored := &model.StoredCredential{
			ID:          rec.ID,
			Fingerprint: fingerprint,
			Record:      *rec,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.creds.Create(ctx, stored); err != nil {
			return nil, fmt.Errorf("store credential: %w", err)
		}
	}

	return &Token{
		Version:      TokenVersion,
		CredentialID: rec.ID,
		Fingerprint:  fingerprint,
		Proof:        *proof,
		KeyID:        s.key.KeyID,
		Signature:    signature,
	}, nil
}

// Verify checks presented data against a token using the ledger's
// authoritative state.
func (s *Service) Verify(ctx context.Context, presented *model.CredentialRecord, tok *Token) (*model.Verdict, error) {
	if s.key == nil || s.key.Verifier == nil {
		return nil, ErrVerifierMissing
	}
	return Verify(ctx, presented, tok, s.ledger, s.key.Verifier)
}

// CredentialStatus returns a stored credential plus whether its
// content still anchors cleanly in the ledger. Surfaced to the
// search/list UI as the `verified` flag and fingerprint prefix.
func (s *Service) CredentialStatus(ctx context.Context, id string) (*model.StoredCredential, bool, error) {
	if s.creds == nil {
		return nil, false, domain.ErrNotFound
	}
	stored, err := s.creds.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, domain.ErrNotFound
	}

	fingerprint, err := canonical.Fingerprint(&stored.Record)
	if err != nil {
		return stored, false, nil
	}
	verified, err := s.anchored(ctx, fingerprint)
	if err != nil {
		return stored, false, err
	}
	return stored, verified, nil
}

// anchored reports whether the fingerprint replays cleanly against the
// ledger's current chain.
func (s *Service) anchored(ctx context.Context, fingerprint []byte) (bool, error) {
	proof, err := s.ledger.BuildProof(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if len(proof.RootChain) == 0 {
		return false, nil
	}
	replayed := merkle.Replay(fingerprint, proof.LeafIndex, proof.Siblings)
	authoritative, err := s.ledger.RootChain(ctx, proof.BatchID)
	if err != nil || len(authoritative) == 0 {
		return false, err
	}
	return bytes.Equal(replayed, authoritative[0]), nil
}

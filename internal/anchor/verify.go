/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package anchor

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	cose "github.com/veraison/go-cose"

	"github.com/credledger/credledger/internal/canonical"
	"github.com/credledger/credledger/internal/domain"
	"github.com/credledger/credledger/internal/domain/model"
	"github.com/credledger/credledger/internal/merkle"
)

// LedgerReader exposes the ledger's authoritative state to the
// verifier: the batch-root chain plus proof rebuilding for stale
// tokens. Implemented by *ledger.Ledger.
type LedgerReader interface {
	RootChain(ctx context.Context, batchID int64) ([][]byte, error)
	BuildProof(ctx context.Context, fingerprint []byte) (*model.InclusionProof, error)
}

// Verify checks a presented record against its token and the ledger.
// Data tampering is reported before chain and signature failures: it
// is the most actionable signal for the scanning party. A malformed
// presented record is an input error returned to the caller; every
// integrity failure is a verdict, never an error.
func Verify(ctx context.Context, presented *model.CredentialRecord, tok *Token, chain LedgerReader, verifier cose.Verifier) (*model.Verdict, error) {
	if verifier == nil {
		return nil, ErrVerifierMissing
	}
	if tok == nil {
		return &model.Verdict{
			Status: model.StatusMalformedToken,
			Reason: "no token presented",
		}, nil
	}

	fingerprint, err := canonical.Fingerprint(presented)
	if err != nil {
		return nil, err
	}

	v := &model.Verdict{
		RecomputedFingerprint: fingerprint,
		PresentedFingerprint:  tok.Fingerprint,
	}

	if !bytes.Equal(fingerprint, tok.Fingerprint) {
		v.Status = model.StatusTamperedData
		v.Reason = "presented data does not match the fingerprint the token claims"
		return v, nil
	}

	authoritative, err := chain.RootChain(ctx, tok.Proof.BatchID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			v.Status = model.StatusUnknownBatch
			v.Reason = fmt.Sprintf("batch %d is not in the ledger", tok.Proof.BatchID)
			return v, nil
		}
		return nil, err
	}
	if len(authoritative) == 0 {
		v.Status = model.StatusUnknownBatch
		v.Reason = fmt.Sprintf("batch %d is below the trusted checkpoint", tok.Proof.BatchID)
		return v, nil
	}
	v.LedgerRoot = authoritative[0]

	replayed := merkle.Replay(fingerprint, tok.Proof.LeafIndex, tok.Proof.Siblings)
	v.RecomputedRoot = replayed
	if bytes.Equal(replayed, authoritative[0]) {
		if len(tok.Proof.RootChain) != len(authoritative) {
			v.Status = model.StatusBrokenChain
			v.Reason = "root chain length does not match the ledger"
			return v, nil
		}
		for i, root := range tok.Proof.RootChain {
			if !bytes.Equal(root, authoritative[i]) {
				v.Status = model.StatusBrokenChain
				v.Reason = fmt.Sprintf("root chain diverges from the ledger at batch %d", tok.Proof.BatchID-int64(i))
				return v, nil
			}
		}
	} else if verdict, err := replayFromLedger(ctx, v, tok, chain); verdict != nil || err != nil {
		return verdict, err
	}

	content := SigningContent(tok.CredentialID, tok.Fingerprint, tok.Proof.BatchID)
	if err := verifier.Verify(content, tok.Signature); err != nil {
		v.Status = model.StatusInvalidSignature
		v.Reason = "issuer signature does not verify"
		return v, nil
	}

	v.Status = model.StatusVerified
	return v, nil
}

// replayFromLedger is the stale-token fallback. A token issued into a
// batch that kept accepting entries embeds a sibling path for a tree
// that no longer exists; the ledger remains authoritative, so the proof
// is rebuilt from current state before the chain is declared broken.
// Returns (nil, nil) when the rebuilt proof replays cleanly and
// verification should continue.
func replayFromLedger(ctx context.Context, v *model.Verdict, tok *Token, chain LedgerReader) (*model.Verdict, error) {
	fresh, err := chain.BuildProof(ctx, tok.Fingerprint)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			v.Status = model.StatusBrokenChain
			v.Reason = "inclusion path does not replay and the fingerprint is not anchored in the ledger"
			return v, nil
		}
		return nil, err
	}

	authoritative, err := chain.RootChain(ctx, fresh.BatchID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			v.Status = model.StatusBrokenChain
			v.Reason = fmt.Sprintf("batch %d vanished between proof and chain lookup", fresh.BatchID)
			return v, nil
		}
		return nil, err
	}
	if len(authoritative) == 0 {
		v.Status = model.StatusUnknownBatch
		v.Reason = fmt.Sprintf("batch %d is below the trusted checkpoint", fresh.BatchID)
		return v, nil
	}

	replayed := merkle.Replay(tok.Fingerprint, fresh.LeafIndex, fresh.Siblings)
	v.RecomputedRoot = replayed
	v.LedgerRoot = authoritative[0]
	if !bytes.Equal(replayed, authoritative[0]) {
		v.Status = model.StatusBrokenChain
		v.Reason = "inclusion path does not replay to the recorded batch root"
		return v, nil
	}
	return nil, nil
}

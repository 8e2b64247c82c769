/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/credledger/credledger/internal/anchor"
	"github.com/credledger/credledger/internal/domain"
	"github.com/credledger/credledger/internal/domain/model"
)

const (
	maxRequestBodyBytes = 1 << 20 // 1 MiB is plenty for a credential record.

	fingerprintPrefixLen = 16 // hex chars shown to the UI
)

type handler struct {
	svc    *anchor.Service
	logger *log.Logger
}

func newHandler(svc *anchor.Service, logger *log.Logger) *handler {
	return &handler{
		svc:    svc,
		logger: logger,
	}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/credentials" && r.Method == http.MethodPost:
		h.issueCredential(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/credentials/") && r.Method == http.MethodGet:
		h.getCredential(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/batches/") && r.Method == http.MethodGet:
		h.getBatch(w, r)
	case r.URL.Path == "/verify" && r.Method == http.MethodGet:
		h.verify(w, r)
	default:
		http.NotFound(w, r)
	}
}

type issueResponse struct {
	CredentialID string `json:"credential_id"`
	Fingerprint  string `json:"fingerprint"`
	BatchID      int64  `json:"batch_id"`
	Seq          int64  `json:"seq"`
	Token        string `json:"token"`
}

func (h *handler) issueCredential(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "This endpoint only accepts Content-Type: application/json", http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		h.logger.Printf("failed reading request body: %v", err)
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var rec model.CredentialRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		h.logger.Printf("failed to parse credential record: %v", err)
		h.writeError(w, http.StatusBadRequest, "invalid credential record")
		return
	}

	tok, err := h.svc.Issue(r.Context(), &rec)
	if err != nil {
		h.writeIssueError(w, err)
		return
	}
	encoded, err := anchor.EncodeToken(tok)
	if err != nil {
		h.writeIssueError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, issueResponse{
		CredentialID: tok.CredentialID,
		Fingerprint:  hex.EncodeToString(tok.Fingerprint),
		BatchID:      tok.Proof.BatchID,
		Seq:          tok.Proof.Seq,
		Token:        encoded,
	})
}

func (h *handler) writeIssueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrMalformedRecord):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrLedgerCorrupted):
		h.writeError(w, http.StatusServiceUnavailable, "ledger unavailable for issuance")
	case errors.Is(err, domain.ErrTokenTooLarge):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Printf("issuance failed: %v", err)
		h.writeError(w, http.StatusInternalServerError, "issuance failed")
	}
}

type verifyResponse struct {
	Success  bool            `json:"success"`
	Status   string          `json:"status"`
	Reason   string          `json:"reason,omitempty"`
	Evidence *verifyEvidence `json:"evidence,omitempty"`
}

type verifyEvidence struct {
	RecomputedFingerprint string `json:"recomputed_fingerprint,omitempty"`
	PresentedFingerprint  string `json:"presented_fingerprint,omitempty"`
	RecomputedRoot        string `json:"recomputed_root,omitempty"`
	LedgerRoot            string `json:"ledger_root,omitempty"`
}

// verify decodes the scanned token and the presented record and
// returns the verdict. A verdict the system computed is always a 200,
// success flag false for anything but Verified; only missing or
// unreadable parameters are client errors.
func (h *handler) verify(w http.ResponseWriter, r *http.Request) {
	encodedToken := r.URL.Query().Get("token")
	encodedData := r.URL.Query().Get("data")
	if encodedToken == "" || encodedData == "" {
		h.writeError(w, http.StatusBadRequest, "token and data query parameters are required")
		return
	}

	rawData, err := base64.RawURLEncoding.DecodeString(encodedData)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "data is not valid base64url")
		return
	}
	var presented model.CredentialRecord
	if err := json.Unmarshal(rawData, &presented); err != nil {
		h.writeError(w, http.StatusBadRequest, "data is not a valid credential record")
		return
	}

	tok, err := anchor.DecodeToken(encodedToken)
	if err != nil {
		// Bad tokens are an expected outcome of scanning foreign or
		// damaged QR codes, so they are a verdict, not a failure.
		h.writeJSON(w, http.StatusOK, verifyResponse{
			Success: false,
			Status:  string(model.StatusMalformedToken),
			Reason:  err.Error(),
		})
		return
	}

	verdict, err := h.svc.Verify(r.Context(), &presented, tok)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedRecord) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Printf("verification failed: %v", err)
		h.writeError(w, http.StatusInternalServerError, "verification failed")
		return
	}

	h.writeJSON(w, http.StatusOK, verifyResponse{
		Success: verdict.Verified(),
		Status:  string(verdict.Status),
		Reason:  verdict.Reason,
		Evidence: &verifyEvidence{
			RecomputedFingerprint: hex.EncodeToString(verdict.RecomputedFingerprint),
			PresentedFingerprint:  hex.EncodeToString(verdict.PresentedFingerprint),
			RecomputedRoot:        hex.EncodeToString(verdict.RecomputedRoot),
			LedgerRoot:            hex.EncodeToString(verdict.LedgerRoot),
		},
	})
}

type credentialResponse struct {
	Credential model.CredentialRecord `json:"credential"`
	Verified   bool                   `json:"verified"`
	ProofHash  string                 `json:"proof_hash"`
}

func (h *handler) getCredential(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/credentials/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	stored, verified, err := h.svc.CredentialStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Printf("credential lookup failed: %v", err)
		h.writeError(w, http.StatusInternalServerError, "credential lookup failed")
		return
	}

	prefix := hex.EncodeToString(stored.Fingerprint)
	if len(prefix) > fingerprintPrefixLen {
		prefix = prefix[:fingerprintPrefixLen]
	}
	h.writeJSON(w, http.StatusOK, credentialResponse{
		Credential: stored.Record,
		Verified:   verified,
		ProofHash:  prefix,
	})
}

type batchResponse struct {
	ID           int64  `json:"id"`
	State        string `json:"state"`
	MerkleRoot   string `json:"merkle_root,omitempty"`
	PreviousRoot string `json:"previous_root"`
	OpenedAt     string `json:"opened_at"`
	ClosedAt     string `json:"closed_at,omitempty"`
}

func (h *handler) getBatch(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/batches/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid batch id")
		return
	}

	batch, err := h.svc.Ledger().GetBatch(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Printf("batch lookup failed: %v", err)
		h.writeError(w, http.StatusInternalServerError, "batch lookup failed")
		return
	}

	resp := batchResponse{
		ID:           batch.ID,
		State:        string(batch.State),
		MerkleRoot:   hex.EncodeToString(batch.MerkleRoot),
		PreviousRoot: hex.EncodeToString(batch.PreviousRoot),
		OpenedAt:     batch.OpenedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if !batch.ClosedAt.IsZero() {
		resp.ClosedAt = batch.ClosedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Printf("failed writing response: %v", err)
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credledger/credledger/internal/anchor"
	"github.com/credledger/credledger/internal/config"
	"github.com/credledger/credledger/internal/domain/model"
	"github.com/credledger/credledger/internal/infra/sqlite"
	"github.com/credledger/credledger/internal/ledger"
)

func writeTestKey(t *testing.T) string {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "issuer.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	require.NoError(t, os.WriteFile(path, pemBytes, 0o600))
	return path
}

// newTestServer runs the full construction path, issuer key file
// included, and exposes the handler over httptest.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv, err := New(config.Config{
		Addr:            ":0",
		DBPath:          filepath.Join(t.TempDir(), "server.db"),
		IssuerKeyPath:   writeTestKey(t),
		BatchMaxEntries: 1,
		BatchMaxAge:     time.Hour,
		Logger:          log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.handler)
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return ts
}

func recordJSON() string {
	return `{
		"issuer_id": "univ-acme",
		"subject_id": "student-42",
		"schema_version": 1,
		"issued_at": "2025-06-12T09:30:00Z",
		"attributes": {
			"name":   {"type": "string", "value": "Alice"},
			"degree": {"type": "string", "value": "B.Sc"},
			"year":   {"type": "int", "value": 2025}
		}
	}`
}

func postCredential(t *testing.T, ts *httptest.Server, body string) issueResponse {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/credentials", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var issued issueResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&issued))
	return issued
}

func getVerdict(t *testing.T, ts *httptest.Server, token, data string) verifyResponse {
	t.Helper()
	url := ts.URL + "/verify?token=" + token +
		"&data=" + base64.RawURLEncoding.EncodeToString([]byte(data))
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var verdict verifyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&verdict))
	return verdict
}

func TestIssueAndVerifyOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	issued := postCredential(t, ts, recordJSON())
	assert.NotEmpty(t, issued.CredentialID)
	assert.NotEmpty(t, issued.Token)
	assert.Equal(t, int64(1), issued.BatchID)
	assert.Equal(t, int64(1), issued.Seq)

	verdict := getVerdict(t, ts, issued.Token, recordJSON())
	assert.True(t, verdict.Success)
	assert.Equal(t, string(model.StatusVerified), verdict.Status)
	require.NotNil(t, verdict.Evidence)
	assert.Equal(t, verdict.Evidence.RecomputedFingerprint, verdict.Evidence.PresentedFingerprint)
}

func TestVerifyOverHTTP_TamperedData(t *testing.T) {
	ts := newTestServer(t)

	issued := postCredential(t, ts, recordJSON())
	forged := strings.Replace(recordJSON(), "B.Sc", "Ph.D", 1)

	verdict := getVerdict(t, ts, issued.Token, forged)
	assert.False(t, verdict.Success)
	assert.Equal(t, string(model.StatusTamperedData), verdict.Status)
	assert.NotEqual(t, verdict.Evidence.RecomputedFingerprint, verdict.Evidence.PresentedFingerprint)
}

func TestVerifyOverHTTP_MalformedToken(t *testing.T) {
	ts := newTestServer(t)
	postCredential(t, ts, recordJSON())

	verdict := getVerdict(t, ts, "ZGVmaW5pdGVseS1ub3QtYS10b2tlbg", recordJSON())
	assert.False(t, verdict.Success)
	assert.Equal(t, string(model.StatusMalformedToken), verdict.Status)
}

func TestVerifyOverHTTP_MissingParams(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/verify")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIssueOverHTTP_Rejections(t *testing.T) {
	ts := newTestServer(t)

	// Wrong content type.
	resp, err := http.Post(ts.URL+"/api/credentials", "text/plain", strings.NewReader(recordJSON()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	// Not JSON at all.
	resp, err = http.Post(ts.URL+"/api/credentials", "application/json", strings.NewReader("not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Record the canonical encoder refuses.
	noIssuer := strings.Replace(recordJSON(), `"univ-acme"`, `""`, 1)
	resp, err = http.Post(ts.URL+"/api/credentials", "application/json", strings.NewReader(noIssuer))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetCredentialOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	issued := postCredential(t, ts, recordJSON())

	resp, err := http.Get(ts.URL + "/api/credentials/" + issued.CredentialID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got credentialResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.Verified)
	assert.Equal(t, "univ-acme", got.Credential.IssuerID)
	assert.Len(t, got.ProofHash, fingerprintPrefixLen)

	missing, err := http.Get(ts.URL + "/api/credentials/no-such-id")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestGetBatchOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	postCredential(t, ts, recordJSON()) // closes batch 1 immediately

	resp, err := http.Get(ts.URL + "/api/batches/1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got batchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, string(model.BatchClosed), got.State)
	assert.NotEmpty(t, got.MerkleRoot)
	assert.NotEmpty(t, got.ClosedAt)

	bad, err := http.Get(ts.URL + "/api/batches/nope")
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	gone, err := http.Get(ts.URL + "/api/batches/99")
	require.NoError(t, err)
	gone.Body.Close()
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
}

// Handler-level check without the full server: the service path behaves
// identically when wired by hand.
func TestHandlerDirectWiring(t *testing.T) {
	db, err := sqlite.InitDB(context.Background(), filepath.Join(t.TempDir(), "direct.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.CloseDB(db) })

	logger := log.New(io.Discard, "", 0)
	ld, err := ledger.Open(context.Background(), db, ledger.Options{MaxEntries: 1, Logger: logger})
	require.NoError(t, err)

	key, err := anchor.LoadIssuerKey(writeTestKey(t))
	require.NoError(t, err)

	svc := anchor.NewService(ld, sqlite.NewCredentialRepository(db), key, logger)
	h := newHandler(svc, logger)

	req := httptest.NewRequest(http.MethodPost, "/api/credentials", strings.NewReader(recordJSON()))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package anchor

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	cose "github.com/veraison/go-cose"
)

// SigningContent composes the byte string the issuer signs:
// credential id, fingerprint and batch id, length-prefixed so the
// concatenation stays injective.
func SigningContent(credentialID string, fingerprint []byte, batchID int64) []byte {
	out := make([]byte, 0, 4+len(credentialID)+len(fingerprint)+8)
	out = binary.BigEndian.AppendUint32(out, uint32(len(credentialID)))
	out = append(out, credentialID...)
	out = append(out, fingerprint...)
	out = binary.BigEndian.AppendUint64(out, uint64(batchID))
	return out
}

// IssuerKey bundles the injected signing capability with the matching
// verifier and key id. The core never generates keys itself.
type IssuerKey struct {
	Signer   cose.Signer
	Verifier cose.Verifier
	KeyID    []byte
}

// NewIssuerKey wraps an EC P-256 private key as an ES256 COSE signer
// and verifier. The key id is the SHA-256 digest of the COSE_Key
// encoding of the public key, stable across restarts for the same key.
func NewIssuerKey(priv *ecdsa.PrivateKey) (*IssuerKey, error) {
	signer, err := cose.NewSigner(cose.AlgorithmES256, priv)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}
	verifier, err := cose.NewVerifier(cose.AlgorithmES256, priv.Public())
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}
	key, err := cose.NewKeyFromPublic(priv.Public())
	if err != nil {
		return nil, fmt.Errorf("wrap public key: %w", err)
	}
	raw, err := key.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("encode public key: %w", err)
	}
	kid := sha256.Sum256(raw)
	return &IssuerKey{Signer: signer, Verifier: verifier, KeyID: kid[:]}, nil
}

// LoadIssuerKey reads an EC private key from a PEM file.
func LoadIssuerKey(path string) (*IssuerKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read issuer key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("issuer key file contains no PEM block")
	}

	var priv *ecdsa.PrivateKey
	switch block.Type {
	case "EC PRIVATE KEY":
		priv, err = x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse EC private key: %w", err)
		}
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKCS#8 private key: %w", err)
		}
		ecKey, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, errors.New("issuer key is not an EC key")
		}
		priv = ecKey
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
	return NewIssuerKey(priv)
}

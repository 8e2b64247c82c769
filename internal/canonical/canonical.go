/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package canonical deterministically serializes credential records
// and derives their fingerprints. The encoding is injective up to
// semantic equality: attribute keys are totally ordered, every value
// carries an explicit type tag, and all variable-length fields are
// length-prefixed so concatenation can never collide.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/credledger/credledger/internal/domain"
	"github.com/credledger/credledger/internal/domain/model"
)

// Field and value tags. One byte each, written before the payload.
const (
	tagIssuer    = 'I'
	tagSubject   = 'S'
	tagIssuedAt  = 'T'
	tagKey       = 'k'
	tagString    = 's'
	tagInt       = 'i'
	tagFloat     = 'f'
	tagTimestamp = 't'
)

// Encode produces the canonical byte encoding of a record. The
// credential ID is deliberately excluded: the fingerprint identifies
// content, and the token binds the ID to the fingerprint via the
// issuer signature.
func Encode(r *model.CredentialRecord) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil record", domain.ErrMalformedRecord)
	}
	if r.IssuerID == "" {
		return nil, fmt.Errorf("%w: empty issuer id", domain.ErrMalformedRecord)
	}
	if r.SubjectID == "" {
		return nil, fmt.Errorf("%w: empty subject id", domain.ErrMalformedRecord)
	}
	if r.IssuedAt.IsZero() {
		return nil, fmt.Errorf("%w: zero issuance timestamp", domain.ErrMalformedRecord)
	}

	buf := new(bytes.Buffer)
	writeUint16(buf, r.SchemaVersion)
	writeTagged(buf, tagIssuer, []byte(r.IssuerID))
	writeTagged(buf, tagSubject, []byte(r.SubjectID))
	buf.WriteByte(tagIssuedAt)
	writeInt64(buf, r.IssuedAt.UTC().Unix())

	keys := make([]string, 0, len(r.Attributes))
	for k := range r.Attributes {
		if k == "" {
			return nil, fmt.Errorf("%w: empty attribute key", domain.ErrMalformedRecord)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	writeUint32(buf, uint32(len(keys)))
	for _, k := range keys {
		writeTagged(buf, tagKey, []byte(k))
		if err := writeValue(buf, r.Attributes[k]); err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v model.AttributeValue) error {
	switch v.Kind {
	case model.KindString:
		writeTagged(buf, tagString, []byte(v.Str))
	case model.KindInt:
		buf.WriteByte(tagInt)
		writeInt64(buf, v.Int)
	case model.KindFloat:
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return fmt.Errorf("%w: non-finite float value", domain.ErrMalformedRecord)
		}
		buf.WriteByte(tagFloat)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v.Float))
		buf.Write(b[:])
	case model.KindTimestamp:
		buf.WriteByte(tagTimestamp)
		writeInt64(buf, v.Time.UTC().Unix())
	default:
		return fmt.Errorf("%w: unsupported value kind %q", domain.ErrMalformedRecord, v.Kind)
	}
	return nil
}

func writeTagged(buf *bytes.Buffer, tag byte, payload []byte) {
	buf.WriteByte(tag)
	writeUint32(buf, uint32(len(payload)))
	buf.Write(payload)
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

// Digest hashes canonical bytes into a fingerprint. Stateless and safe
// for concurrent use.
func Digest(encoded []byte) []byte {
	sum := sha256.Sum256(encoded)
	return sum[:]
}

// Fingerprint encodes a record and digests it in one step.
func Fingerprint(r *model.CredentialRecord) ([]byte, error) {
	encoded, err := Encode(r)
	if err != nil {
		return nil, err
	}
	return Digest(encoded), nil
}

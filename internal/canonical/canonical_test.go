/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package canonical

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credledger/credledger/internal/domain"
	"github.com/credledger/credledger/internal/domain/model"
)

func testRecord() *model.CredentialRecord {
	return &model.CredentialRecord{
		IssuerID:      "univ-acme",
		SubjectID:     "student-42",
		SchemaVersion: 1,
		IssuedAt:      time.Date(2025, 6, 12, 9, 30, 0, 0, time.UTC),
		Attributes: map[string]model.AttributeValue{
			"name":   model.StringValue("Alice"),
			"degree": model.StringValue("B.Sc"),
			"gpa":    model.FloatValue(3.8),
			"year":   model.IntValue(2025),
		},
	}
}

func TestEncode_Deterministic(t *testing.T) {
	first, err := Encode(testRecord())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := Encode(testRecord())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEncode_IndependentOfInsertionOrder(t *testing.T) {
	a := testRecord()

	b := testRecord()
	b.Attributes = map[string]model.AttributeValue{}
	// Insert in reverse order; the canonical form must not care.
	for _, k := range []string{"year", "name", "gpa", "degree"} {
		b.Attributes[k] = a.Attributes[k]
	}

	ea, err := Encode(a)
	require.NoError(t, err)
	eb, err := Encode(b)
	require.NoError(t, err)
	assert.Equal(t, ea, eb)
}

func TestEncode_TypeTagsDisambiguate(t *testing.T) {
	asString := testRecord()
	asString.Attributes = map[string]model.AttributeValue{"v": model.StringValue("1")}

	asInt := testRecord()
	asInt.Attributes = map[string]model.AttributeValue{"v": model.IntValue(1)}

	fa, err := Fingerprint(asString)
	require.NoError(t, err)
	fb, err := Fingerprint(asInt)
	require.NoError(t, err)
	assert.NotEqual(t, fa, fb, `the string "1" and the number 1 must not collide`)
}

func TestEncode_LengthPrefixesPreventConcatCollision(t *testing.T) {
	a := testRecord()
	a.Attributes = map[string]model.AttributeValue{"ab": model.StringValue("c")}

	b := testRecord()
	b.Attributes = map[string]model.AttributeValue{"a": model.StringValue("bc")}

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	assert.NotEqual(t, fa, fb)
}

func TestFingerprint_SensitiveToSingleFieldMutation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	base, err := Fingerprint(testRecord())
	require.NoError(t, err)

	keys := []string{"name", "degree", "gpa", "year"}
	for i := 0; i < 200; i++ {
		mutated := testRecord()
		k := keys[rng.Intn(len(keys))]
		switch v := mutated.Attributes[k]; v.Kind {
		case model.KindString:
			mutated.Attributes[k] = model.StringValue(v.Str + fmt.Sprintf("#%d", rng.Int()))
		case model.KindInt:
			mutated.Attributes[k] = model.IntValue(v.Int + 1 + int64(rng.Intn(1000)))
		case model.KindFloat:
			mutated.Attributes[k] = model.FloatValue(v.Float + 0.001*float64(1+rng.Intn(1000)))
		}
		got, err := Fingerprint(mutated)
		require.NoError(t, err)
		assert.NotEqual(t, base, got, "mutation of %q must change the fingerprint", k)
	}
}

func TestFingerprint_StableAcrossValueCopies(t *testing.T) {
	r := testRecord()
	f1, err := Fingerprint(r)
	require.NoError(t, err)

	clone := *r
	clone.ID = "some-assigned-id" // excluded from the canonical form
	f2, err := Fingerprint(&clone)
	require.NoError(t, err)
	assert.Equal(t, f1, f2)
	assert.Len(t, f1, model.FingerprintSize)
}

func TestEncode_MalformedRecords(t *testing.T) {
	empty := testRecord()
	empty.Attributes = map[string]model.AttributeValue{"": model.StringValue("x")}
	_, err := Encode(empty)
	assert.True(t, errors.Is(err, domain.ErrMalformedRecord))

	badKind := testRecord()
	badKind.Attributes = map[string]model.AttributeValue{"v": {Kind: "blob"}}
	_, err = Encode(badKind)
	assert.True(t, errors.Is(err, domain.ErrMalformedRecord))

	noIssuer := testRecord()
	noIssuer.IssuerID = ""
	_, err = Encode(noIssuer)
	assert.True(t, errors.Is(err, domain.ErrMalformedRecord))

	noTime := testRecord()
	noTime.IssuedAt = time.Time{}
	_, err = Encode(noTime)
	assert.True(t, errors.Is(err, domain.ErrMalformedRecord))

	_, err = Encode(nil)
	assert.True(t, errors.Is(err, domain.ErrMalformedRecord))
}

func TestEncode_TimestampNormalizedToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)

	a := testRecord()
	a.IssuedAt = time.Date(2025, 6, 12, 18, 30, 0, 0, loc)
	b := testRecord()
	b.IssuedAt = time.Date(2025, 6, 12, 9, 30, 0, 0, time.UTC)

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
}

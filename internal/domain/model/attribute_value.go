/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ValueKind discriminates the supported attribute value types.
// The wire form is self-describing so that the string "1" and the
// number 1 can never be confused by the canonical encoder.
type ValueKind string

const (
	KindString    ValueKind = "string"
	KindInt       ValueKind = "int"
	KindFloat     ValueKind = "float"
	KindTimestamp ValueKind = "timestamp"
)

// AttributeValue is a tagged union over the value types a credential
// attribute may carry.
type AttributeValue struct {
	Kind  ValueKind
	Str   string
	Int   int64
	Float float64
	Time  time.Time
}

func StringValue(s string) AttributeValue {
	return AttributeValue{Kind: KindString, Str: s}
}

func IntValue(i int64) AttributeValue {
	return AttributeValue{Kind: KindInt, Int: i}
}

func FloatValue(f float64) AttributeValue {
	return AttributeValue{Kind: KindFloat, Float: f}
}

func TimeValue(t time.Time) AttributeValue {
	return AttributeValue{Kind: KindTimestamp, Time: t}
}

type attributeValueJSON struct {
	Type  ValueKind       `json:"type"`
	Value json.RawMessage `json:"value"`
}

func (v AttributeValue) MarshalJSON() ([]byte, error) {
	var raw any
	switch v.Kind {
	case KindString:
		raw = v.Str
	case KindInt:
		raw = v.Int
	case KindFloat:
		raw = v.Float
	case KindTimestamp:
		raw = v.Time.UTC().Format(time.RFC3339)
	default:
		return nil, fmt.Errorf("unknown attribute value kind %q", v.Kind)
	}
	value, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(attributeValueJSON{Type: v.Kind, Value: value})
}

func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	var raw attributeValueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case KindString:
		var s string
		if err := json.Unmarshal(raw.Value, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case KindInt:
		var i int64
		if err := json.Unmarshal(raw.Value, &i); err != nil {
			return err
		}
		*v = IntValue(i)
	case KindFloat:
		var f float64
		if err := json.Unmarshal(raw.Value, &f); err != nil {
			return err
		}
		*v = FloatValue(f)
	case KindTimestamp:
		var s string
		if err := json.Unmarshal(raw.Value, &s); err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		*v = TimeValue(t)
	default:
		return fmt.Errorf("unknown attribute value kind %q", raw.Type)
	}
	return nil
}

// Package jsonutil holds tolerant helpers for vendor JSON payloads.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrShape is returned when a value is present but has the wrong JSON type
var ErrShape = errors.New("unexpected json shape")

// IntBool decodes vendor booleans that may arrive as true/false, any integer, or null.
// Zero and null decode as false.
type IntBool bool

// UnmarshalJSON implements json.Unmarshaler
func (b *IntBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = false
		return nil
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}

	switch t := v.(type) {
	case bool:
		*b = IntBool(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return fmt.Errorf("%w: %s is not an integer", ErrShape, t)
		}
		*b = n != 0
	default:
		return fmt.Errorf("%w: expected boolean, got %s", ErrShape, data)
	}
	return nil
}

// MarshalJSON encodes as 0 or 1, the form devices expect
func (b IntBool) MarshalJSON() ([]byte, error) {
	if b {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// Object asserts v is a JSON object
func Object(v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %T", ErrShape, v)
	}
	return m, nil
}

// Bool asserts v is a JSON boolean
func Bool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: expected bool, got %T", ErrShape, v)
	}
	return b, nil
}

// Float asserts v is a JSON number
func Float(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case json.Number:
		return n.Float64()
	}
	return 0, fmt.Errorf("%w: expected number, got %T", ErrShape, v)
}

// String asserts v is a JSON string
func String(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected string, got %T", ErrShape, v)
	}
	return s, nil
}

// Path walks nested objects by key. Missing keys yield (nil, false).
func Path(v any, keys ...string) (any, bool) {
	cur := v
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// IsValid reports whether data is one complete JSON document
func IsValid(data []byte) bool {
	return json.Valid(data)
}

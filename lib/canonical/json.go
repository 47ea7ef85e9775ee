// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// maxSafeInteger bounds JSON integers to the range every peer can
// represent exactly (IEEE 754 doubles): ±(2^53 - 1).
const maxSafeInteger = 1<<53 - 1

// Marshal encodes v as canonical JSON. v may be any JSON-marshalable
// value; it is first encoded with encoding/json (honoring struct
// tags), then re-emitted canonically. Returns an error for floats,
// integers outside ±2^53-1, or values encoding/json cannot handle.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, fmt.Errorf("canonical: %w", err)
	}
	return MarshalRaw(buf.Bytes())
}

// MarshalRaw canonicalizes an already-encoded JSON document.
func MarshalRaw(raw []byte) ([]byte, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("canonical: parsing input: %w", err)
	}
	// Reject trailing garbage after the first document.
	if decoder.More() {
		return nil, fmt.Errorf("canonical: trailing data after JSON document")
	}
	var out bytes.Buffer
	if err := writeValue(&out, value); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func writeValue(out *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		out.WriteString("null")
	case bool:
		if v {
			out.WriteString("true")
		} else {
			out.WriteString("false")
		}
	case string:
		return writeString(out, v)
	case json.Number:
		return writeNumber(out, v)
	case []any:
		out.WriteByte('[')
		for i, element := range v {
			if i > 0 {
				out.WriteByte(',')
			}
			if err := writeValue(out, element); err != nil {
				return err
			}
		}
		out.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		out.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				out.WriteByte(',')
			}
			if err := writeString(out, key); err != nil {
				return err
			}
			out.WriteByte(':')
			if err := writeValue(out, v[key]); err != nil {
				return err
			}
		}
		out.WriteByte('}')
	default:
		return fmt.Errorf("canonical: unsupported value type %T", value)
	}
	return nil
}

func writeString(out *bytes.Buffer, s string) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(s); err != nil {
		return fmt.Errorf("canonical: encoding string: %w", err)
	}
	// Encode appends a newline; strip it.
	out.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	return nil
}

func writeNumber(out *bytes.Buffer, n json.Number) error {
	text := n.String()
	if strings.ContainsAny(text, ".eE") {
		return fmt.Errorf("canonical: float %s is not allowed", text)
	}
	value, err := n.Int64()
	if err != nil {
		return fmt.Errorf("canonical: integer %s out of range: %w", text, err)
	}
	if value > maxSafeInteger || value < -maxSafeInteger {
		return fmt.Errorf("canonical: integer %d outside ±2^53-1", value)
	}
	// Re-format to strip any redundant leading zeros or plus signs.
	fmt.Fprintf(out, "%d", value)
	return nil
}

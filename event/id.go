// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/hearth-foundation/hearth/lib/canonical"
	"github.com/hearth-foundation/hearth/lib/ref"
)

// eventJSONWithout marshals the event and removes the named top-level
// keys, returning the canonical encoding of what remains. This is the
// substrate for both hashing operations; which keys are stripped is
// what distinguishes the content hash from the event ID.
func eventJSONWithout(p *PDU, stripped ...string) ([]byte, error) {
	encoded, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding event: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &fields); err != nil {
		return nil, fmt.Errorf("re-reading event: %w", err)
	}
	for _, key := range stripped {
		delete(fields, key)
	}
	trimmed, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("re-encoding event: %w", err)
	}
	return canonical.MarshalRaw(trimmed)
}

// ContentHash computes the sha256 content hash of the event: the
// canonical form without event_id, signatures, unsigned, and the
// hashes block itself. Returned as unpadded URL-safe base64, the form
// stored in the hashes block.
func ContentHash(p *PDU) (string, error) {
	body, err := eventJSONWithout(p, "event_id", "signatures", "unsigned", "hashes")
	if err != nil {
		return "", fmt.Errorf("content hash of %s: %w", p.Type, err)
	}
	digest := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(digest[:]), nil
}

// ComputeEventID derives the event's identity: sha256 over the
// redacted, signature-stripped canonical event (hashes included), as
// '$' plus unpadded URL-safe base64.
//
// This must be bit-for-bit reproducible across implementations — it
// is the protocol's definition of event equality.
func ComputeEventID(p *PDU) (ref.EventID, error) {
	redacted := p.Redact()
	body, err := eventJSONWithout(redacted, "event_id", "signatures", "unsigned")
	if err != nil {
		return ref.EventID{}, fmt.Errorf("event ID of %s: %w", p.Type, err)
	}
	digest := sha256.Sum256(body)
	return ref.ParseEventID("$" + base64.RawURLEncoding.EncodeToString(digest[:]))
}

// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hearth-foundation/hearth/lib/ref"
)

// MaxEventSize caps the wire encoding of a single event. Events above
// this are rejected as malformed before any hashing work.
const MaxEventSize = 65536

// Integrity failures. All three are permanent for the exact bytes
// submitted — a corrected event is by definition a different event.
var (
	// ErrMalformed marks structurally invalid events: bad JSON,
	// missing required fields, oversized payloads.
	ErrMalformed = errors.New("malformed event")

	// ErrHashMismatch marks events whose claimed content hash or
	// event ID does not match recomputation.
	ErrHashMismatch = errors.New("event hash mismatch")

	// ErrBadSignature marks events without a valid signature from the
	// sender's server.
	ErrBadSignature = errors.New("bad event signature")
)

// ParseAndValidate parses untrusted wire bytes into a PDU and runs
// the full integrity check: structure, size, content hash, event ID,
// and sender-server signature. A nil resolver skips signature
// verification — only for input that arrived over an authenticated
// local channel.
//
// The returned PDU has its PrevEvents and AuthEvents sorted and
// de-duplicated; everything else is exactly as sent.
func ParseAndValidate(raw []byte, resolver KeyResolver) (*PDU, error) {
	if len(raw) > MaxEventSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrMalformed, len(raw), MaxEventSize)
	}
	var p PDU
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := checkStructure(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	p.PrevEvents = ref.SortEventIDs(p.PrevEvents)
	p.AuthEvents = ref.SortEventIDs(p.AuthEvents)

	contentHash, err := ContentHash(&p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if contentHash != p.Hashes.SHA256 {
		return nil, fmt.Errorf("%w: content hash %s, claimed %s", ErrHashMismatch, contentHash, p.Hashes.SHA256)
	}

	computedID, err := ComputeEventID(&p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if computedID != p.EventID {
		return nil, fmt.Errorf("%w: event ID %s, claimed %s", ErrHashMismatch, computedID, p.EventID)
	}

	if resolver != nil {
		if err := VerifySender(&p, resolver); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
		}
	}
	return &p, nil
}

// checkStructure enforces field presence: required identifiers,
// content present, hash block present, and the creation-event special
// case for prev_events.
func checkStructure(p *PDU) error {
	switch {
	case p.EventID.IsZero():
		return fmt.Errorf("missing event_id")
	case p.RoomID.IsZero():
		return fmt.Errorf("missing room_id")
	case p.Sender.IsZero():
		return fmt.Errorf("missing sender")
	case p.Type == "":
		return fmt.Errorf("missing type")
	case len(p.Content) == 0:
		return fmt.Errorf("missing content")
	case p.Hashes.SHA256 == "":
		return fmt.Errorf("missing hashes.sha256")
	case p.Depth < 0:
		return fmt.Errorf("negative depth %d", p.Depth)
	}
	if !json.Valid(p.Content) {
		return fmt.Errorf("content is not valid JSON")
	}
	if p.IsCreate() {
		// A creation event must occupy the (m.room.create, "") state
		// cell. Accepting one without the state key would persist an
		// event that never enters the state map, wedging the room.
		if p.StateKey == nil || *p.StateKey != "" {
			return fmt.Errorf("%s event must have an empty state_key", TypeCreate)
		}
		if len(p.PrevEvents) != 0 {
			return fmt.Errorf("%s event has %d prev_events, must have none", TypeCreate, len(p.PrevEvents))
		}
		if p.Depth != 0 {
			return fmt.Errorf("%s event has depth %d, must be 0", TypeCreate, p.Depth)
		}
	} else if len(p.PrevEvents) == 0 {
		return fmt.Errorf("non-creation event has no prev_events")
	}
	return nil
}

// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"encoding/json"

	"github.com/hearth-foundation/hearth/lib/ref"
)

// Room event types with protocol-defined authorization semantics.
const (
	TypeCreate      = "m.room.create"
	TypeMember      = "m.room.member"
	TypePowerLevels = "m.room.power_levels"
	TypeJoinRules   = "m.room.join_rules"
	TypeName        = "m.room.name"
	TypeTopic       = "m.room.topic"
	TypeMessage     = "m.room.message"
	TypeRedaction   = "m.room.redaction"
)

// Signatures maps server name -> key ID ("ed25519:abc") -> unpadded
// URL-safe base64 signature bytes.
type Signatures map[string]map[string]string

// Hashes carries the content hash of the event. Only sha256 is
// defined.
type Hashes struct {
	SHA256 string `json:"sha256"`
}

// PDU is a persisted room event: payload, graph position, and
// cryptographic proof. Immutable once finalized — every mutation path
// in the protocol (redaction included) produces a new value.
//
// The EventID field is derived, never part of the hashed or signed
// body. On wire input it is a claim that ParseAndValidate checks by
// recomputation.
type PDU struct {
	EventID        ref.EventID     `json:"event_id,omitzero"`
	RoomID         ref.RoomID      `json:"room_id"`
	Sender         ref.UserID      `json:"sender"`
	Type           string          `json:"type"`
	StateKey       *string         `json:"state_key,omitempty"`
	Content        json.RawMessage `json:"content"`
	PrevEvents     []ref.EventID   `json:"prev_events"`
	AuthEvents     []ref.EventID   `json:"auth_events"`
	Depth          int64           `json:"depth"`
	Origin         string          `json:"origin"`
	OriginServerTS int64           `json:"origin_server_ts"`
	Redacts        ref.EventID     `json:"redacts,omitzero"`
	Unsigned       json.RawMessage `json:"unsigned,omitempty"`
	Hashes         Hashes          `json:"hashes"`
	Signatures     Signatures      `json:"signatures,omitempty"`
}

// IsState reports whether the event is a state event (has a state
// key). Non-state events never enter the room state map.
func (p *PDU) IsState() bool { return p.StateKey != nil }

// StateKeyValue returns the state key, or "" for non-state events.
func (p *PDU) StateKeyValue() string {
	if p.StateKey == nil {
		return ""
	}
	return *p.StateKey
}

// IsCreate reports whether the event is the room-creation event.
func (p *PDU) IsCreate() bool { return p.Type == TypeCreate }

// redactionPreservedContent lists, per event type, the content keys
// that survive redaction. Everything else is stripped. These keys are
// exactly the ones authorization reads, so a redacted event still
// authorizes identically.
var redactionPreservedContent = map[string][]string{
	TypeCreate:      {"creator", "room_version"},
	TypeMember:      {"membership"},
	TypeJoinRules:   {"join_rule"},
	TypePowerLevels: {"ban", "events", "events_default", "invite", "kick", "redact", "state_default", "users", "users_default"},
}

// Redact returns the redaction-normalized copy of the event: unsigned
// and redacts dropped, content stripped to the keys authorization
// needs for this event type. The graph position, hashes, and
// signatures are preserved; the redacted form of an accepted event
// keeps its place in the DAG.
func (p *PDU) Redact() *PDU {
	out := *p
	out.Unsigned = nil
	out.Redacts = ref.EventID{}

	preserved := redactionPreservedContent[p.Type]
	if len(preserved) == 0 {
		out.Content = json.RawMessage(`{}`)
		return &out
	}

	var full map[string]json.RawMessage
	if err := json.Unmarshal(p.Content, &full); err != nil {
		out.Content = json.RawMessage(`{}`)
		return &out
	}
	kept := make(map[string]json.RawMessage, len(preserved))
	for _, key := range preserved {
		if value, ok := full[key]; ok {
			kept[key] = value
		}
	}
	content, err := json.Marshal(kept)
	if err != nil {
		content = json.RawMessage(`{}`)
	}
	out.Content = content
	return &out
}

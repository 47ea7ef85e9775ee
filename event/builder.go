// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"encoding/json"
	"fmt"

	"github.com/hearth-foundation/hearth/lib/clock"
	"github.com/hearth-foundation/hearth/lib/ref"
)

// Builder assembles a locally originated event. Fill the fields, then
// Build with the server keyring to hash, sign, and derive the ID.
// Graph position (PrevEvents, AuthEvents, Depth) is the caller's
// responsibility — the ingestion pipeline re-checks it anyway.
type Builder struct {
	RoomID     ref.RoomID
	Sender     ref.UserID
	Type       string
	StateKey   *string
	Content    any
	PrevEvents []ref.EventID
	AuthEvents []ref.EventID
	Depth      int64
	Redacts    ref.EventID

	// Clock stamps origin_server_ts. Nil means clock.Real(). The
	// timestamp is advisory; tests inject a fake for reproducible
	// fixtures.
	Clock clock.Clock
}

// Build finalizes the event: encode content, stamp origin and
// timestamp from the keyring's server, compute the content hash, sign,
// and derive the event ID.
func (b Builder) Build(keyring *Keyring) (*PDU, error) {
	if b.RoomID.IsZero() || b.Sender.IsZero() || b.Type == "" {
		return nil, fmt.Errorf("builder needs room, sender, and type")
	}
	content, err := json.Marshal(b.Content)
	if err != nil {
		return nil, fmt.Errorf("encoding %s content: %w", b.Type, err)
	}

	clk := b.Clock
	if clk == nil {
		clk = clock.Real()
	}

	p := &PDU{
		RoomID:         b.RoomID,
		Sender:         b.Sender,
		Type:           b.Type,
		StateKey:       b.StateKey,
		Content:        content,
		PrevEvents:     ref.SortEventIDs(append([]ref.EventID(nil), b.PrevEvents...)),
		AuthEvents:     ref.SortEventIDs(append([]ref.EventID(nil), b.AuthEvents...)),
		Depth:          b.Depth,
		Origin:         keyring.Server().String(),
		OriginServerTS: clk.Now().UnixMilli(),
		Redacts:        b.Redacts,
	}

	contentHash, err := ContentHash(p)
	if err != nil {
		return nil, err
	}
	p.Hashes = Hashes{SHA256: contentHash}

	if err := keyring.Sign(p); err != nil {
		return nil, err
	}

	id, err := ComputeEventID(p)
	if err != nil {
		return nil, err
	}
	p.EventID = id
	return p, nil
}

// StateKeyOf is a convenience for Builder.StateKey literals.
func StateKeyOf(key string) *string { return &key }

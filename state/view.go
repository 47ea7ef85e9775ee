// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"github.com/hearth-foundation/hearth/dag"
	"github.com/hearth-foundation/hearth/event"
	"github.com/hearth-foundation/hearth/lib/ref"
)

// View materializes a snapshot into the auth.StateProvider shape: it
// dereferences state cells through an event source so the
// authorization engine sees full events, never IDs.
type View struct {
	snapshot Snapshot
	src      dag.EventSource
	fallback map[Key]*event.PDU
}

// NewView binds a snapshot to the event source that can dereference
// its entries.
func NewView(snapshot Snapshot, src dag.EventSource) *View {
	return &View{snapshot: snapshot, src: src}
}

// withAuthFallback layers p's own auth events under the snapshot:
// during conflict replay the working state can lack cells the event's
// auth chain still vouches for.
func (v *View) withAuthFallback(p *event.PDU) *View {
	fallback := make(map[Key]*event.PDU, len(p.AuthEvents))
	for _, id := range p.AuthEvents {
		authEvent, ok := v.src.Event(id)
		if !ok {
			continue
		}
		if k, ok := KeyOf(authEvent); ok {
			fallback[k] = authEvent
		}
	}
	return &View{snapshot: v.snapshot, src: v.src, fallback: fallback}
}

func (v *View) lookup(k Key) *event.PDU {
	if id, ok := v.snapshot.Get(k); ok {
		if p, ok := v.src.Event(id); ok {
			return p
		}
		return nil
	}
	return v.fallback[k]
}

// Create returns the room's creation event, or nil.
func (v *View) Create() *event.PDU {
	return v.lookup(Key{Type: event.TypeCreate})
}

// PowerLevels returns the current power-levels event, or nil.
func (v *View) PowerLevels() *event.PDU {
	return v.lookup(Key{Type: event.TypePowerLevels})
}

// JoinRules returns the current join-rules event, or nil.
func (v *View) JoinRules() *event.PDU {
	return v.lookup(Key{Type: event.TypeJoinRules})
}

// Member returns the current membership event for user, or nil.
func (v *View) Member(user ref.UserID) *event.PDU {
	return v.lookup(Key{Type: event.TypeMember, StateKey: user.String()})
}

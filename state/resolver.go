// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/hearth-foundation/hearth/auth"
	"github.com/hearth-foundation/hearth/dag"
	"github.com/hearth-foundation/hearth/event"
	"github.com/hearth-foundation/hearth/lib/ref"
)

// Resolver merges divergent branch snapshots into one deterministic
// state. Safe for concurrent use; resolved results are memoized, so a
// pipeline can share one resolver across rooms.
type Resolver struct {
	mu    sync.Mutex
	cache map[[32]byte]Snapshot
}

// NewResolver returns a resolver with an empty memo cache.
func NewResolver() *Resolver {
	return &Resolver{cache: make(map[[32]byte]Snapshot)}
}

// Resolve merges the branch snapshots. Agreed cells pass through;
// conflicting cells plus the branches' auth difference replay through
// authorization in a convergent order; agreed cells win last. The
// result is a pure function of the branch set — permuting branches
// changes nothing.
//
// Every event ID reachable from the branches (entries and their auth
// chains) must be known to src.
func (r *Resolver) Resolve(ctx context.Context, branches []Snapshot, src dag.EventSource) (Snapshot, error) {
	switch len(branches) {
	case 0:
		return Snapshot{}, nil
	case 1:
		return branches[0], nil
	}

	key := branchSetDigest(branches)
	r.mu.Lock()
	cached, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	resolved, err := resolve(ctx, branches, src)
	if err != nil {
		return Snapshot{}, err
	}

	r.mu.Lock()
	r.cache[key] = resolved
	r.mu.Unlock()
	return resolved, nil
}

func resolve(ctx context.Context, branches []Snapshot, src dag.EventSource) (Snapshot, error) {
	unconflicted, conflictedIDs := partition(branches)

	difference, err := authDifference(branches, src)
	if err != nil {
		return Snapshot{}, err
	}
	for id := range difference {
		conflictedIDs[id] = true
	}

	var power, others []*event.PDU
	for id := range conflictedIDs {
		p, ok := src.Event(id)
		if !ok {
			return Snapshot{}, fmt.Errorf("resolving state: event %s not available", id)
		}
		if isPowerEvent(p) {
			power = append(power, p)
		} else {
			others = append(others, p)
		}
	}

	base := New(unconflicted)
	levels := baseLevels(base, src)
	orderTier(power, levels)
	orderTier(others, levels)

	working := base
	for _, p := range append(power, others...) {
		if err := ctx.Err(); err != nil {
			return Snapshot{}, err
		}
		view := NewView(working, src).withAuthFallback(p)
		if !auth.Authorize(p, view).Allowed() {
			continue
		}
		if k, ok := KeyOf(p); ok {
			working = working.With(k, p.EventID)
		}
	}

	// Cells every branch agreed on are settled; replay cannot
	// overturn them.
	for k, id := range unconflicted {
		working = working.With(k, id)
	}
	return working, nil
}

// partition splits the branch cells: a key present in every branch
// with one value is unconflicted; every other observed value is
// conflicted.
func partition(branches []Snapshot) (map[Key]ref.EventID, map[ref.EventID]bool) {
	keys := make(map[Key]bool)
	for _, branch := range branches {
		for _, entry := range branch.Entries() {
			keys[entry.Key] = true
		}
	}

	unconflicted := make(map[Key]ref.EventID)
	conflicted := make(map[ref.EventID]bool)
	for k := range keys {
		values := make(map[ref.EventID]bool)
		everywhere := true
		for _, branch := range branches {
			id, ok := branch.Get(k)
			if !ok {
				everywhere = false
				continue
			}
			values[id] = true
		}
		if everywhere && len(values) == 1 {
			for id := range values {
				unconflicted[k] = id
			}
			continue
		}
		for id := range values {
			conflicted[id] = true
		}
	}
	return unconflicted, conflicted
}

// authDifference returns the IDs in the union of the branches' auth
// chains but not in their intersection. Events whose justification
// one branch never saw must re-earn their place in the merge.
func authDifference(branches []Snapshot, src dag.EventSource) (map[ref.EventID]bool, error) {
	chains := make([]map[ref.EventID]bool, len(branches))
	for i, branch := range branches {
		chain := make(map[ref.EventID]bool)
		for _, entry := range branch.Entries() {
			p, ok := src.Event(entry.EventID)
			if !ok {
				return nil, fmt.Errorf("resolving state: event %s not available", entry.EventID)
			}
			ids, err := dag.AuthChain(p, src)
			if err != nil {
				return nil, fmt.Errorf("resolving state: %w", err)
			}
			for _, id := range ids {
				chain[id] = true
			}
		}
		chains[i] = chain
	}

	difference := make(map[ref.EventID]bool)
	for id := range chains[0] {
		difference[id] = true
	}
	for _, chain := range chains[1:] {
		for id := range chain {
			difference[id] = true
		}
	}
	for id := range difference {
		inAll := true
		for _, chain := range chains {
			if !chain[id] {
				inAll = false
				break
			}
		}
		if inAll {
			delete(difference, id)
		}
	}
	return difference, nil
}

// isPowerEvent reports whether p can change who may do what: the
// creation event, power levels, join rules, and membership events that
// act on another user (kicks and bans). These replay before ordinary
// state so the strictest rules are in force when the rest is judged.
func isPowerEvent(p *event.PDU) bool {
	switch p.Type {
	case event.TypeCreate, event.TypePowerLevels, event.TypeJoinRules:
		return p.IsState()
	case event.TypeMember:
		content, err := event.ParseMember(p)
		if err != nil {
			return false
		}
		if content.Membership != event.MembershipLeave && content.Membership != event.MembershipBan {
			return false
		}
		return p.StateKeyValue() != p.Sender.String()
	}
	return false
}

// baseLevels resolves the power table visible in the unconflicted
// state, for ordering only.
func baseLevels(base Snapshot, src dag.EventSource) event.Levels {
	view := NewView(base, src)
	if pl := view.PowerLevels(); pl != nil {
		if content, err := event.ParsePowerLevels(pl); err == nil {
			return event.ResolveLevels(content)
		}
	}
	if create := view.Create(); create != nil {
		if content, err := event.ParseCreate(create); err == nil {
			return event.NoEventLevels(content.Creator)
		}
	}
	return event.ResolveLevels(nil)
}

// orderTier sorts events into the convergent replay order: ancestors
// first (ascending depth), then ascending sender power level, then
// event ID.
func orderTier(events []*event.PDU, levels event.Levels) {
	slices.SortFunc(events, func(a, b *event.PDU) int {
		if a.Depth != b.Depth {
			if a.Depth < b.Depth {
				return -1
			}
			return 1
		}
		levelA, levelB := levels.UserLevel(a.Sender), levels.UserLevel(b.Sender)
		if levelA != levelB {
			if levelA < levelB {
				return -1
			}
			return 1
		}
		return a.EventID.Compare(b.EventID)
	})
}

// branchSetDigest computes the memo key: a blake3 digest over the
// sorted serialized branches, insensitive to branch order.
func branchSetDigest(branches []Snapshot) [32]byte {
	serialized := make([][]byte, len(branches))
	for i, branch := range branches {
		var buf []byte
		for _, entry := range branch.Entries() {
			buf = append(buf, entry.Type...)
			buf = append(buf, 0)
			buf = append(buf, entry.StateKey...)
			buf = append(buf, 0)
			buf = append(buf, entry.EventID.String()...)
			buf = append(buf, 0)
		}
		serialized[i] = buf
	}
	slices.SortFunc(serialized, func(a, b []byte) int {
		return slices.Compare(a, b)
	})

	hasher := blake3.New()
	for _, buf := range serialized {
		hasher.Write(buf)
		hasher.Write([]byte{0xff})
	}
	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package dag

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hearth-foundation/hearth/event"
	"github.com/hearth-foundation/hearth/lib/ref"
)

// EventSource is the graph lookup a dag operation reads. The bool
// result distinguishes "not known" from storage-level absence; the
// source never blocks.
type EventSource interface {
	Event(id ref.EventID) (*event.PDU, bool)
}

// MissingAncestorError reports parents or auth events referenced by an
// event but unknown to the source. IDs is sorted and de-duplicated;
// the caller can hand it straight to a federation fetch.
type MissingAncestorError struct {
	IDs []ref.EventID
}

func (e *MissingAncestorError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("missing ancestors: %s", strings.Join(ids, ", "))
}

// Link verifies that every event p references — prev_events and
// auth_events — is known to src, and returns p's depth: 0 for a
// creation event, otherwise one more than the deepest parent. Unknown
// references produce a *MissingAncestorError naming all of them, not
// just the first.
func Link(p *event.PDU, src EventSource) (int64, error) {
	var missing []ref.EventID
	var maxParent int64 = -1
	for _, id := range p.PrevEvents {
		parent, ok := src.Event(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		maxParent = max(maxParent, parent.Depth)
	}
	for _, id := range p.AuthEvents {
		if _, ok := src.Event(id); !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return 0, &MissingAncestorError{IDs: ref.SortEventIDs(missing)}
	}
	if p.IsCreate() {
		return 0, nil
	}
	return maxParent + 1, nil
}

// UpdateExtremities returns the forward-extremity set after accepting
// p: p's parents leave the set, p joins it. The result is sorted; the
// input is not modified.
func UpdateExtremities(current []ref.EventID, p *event.PDU) []ref.EventID {
	parents := make(map[ref.EventID]bool, len(p.PrevEvents))
	for _, id := range p.PrevEvents {
		parents[id] = true
	}
	next := make([]ref.EventID, 0, len(current)+1)
	for _, id := range current {
		if !parents[id] && id != p.EventID {
			next = append(next, id)
		}
	}
	next = append(next, p.EventID)
	return ref.SortEventIDs(next)
}

// TopologicalOrder returns the events sorted ascending by depth, ties
// broken by event ID. For events of one room this is a valid
// topological order (a parent's depth is always strictly smaller),
// and every server computes the same sequence from the same set.
func TopologicalOrder(events []*event.PDU) []*event.PDU {
	ordered := slices.Clone(events)
	slices.SortFunc(ordered, func(a, b *event.PDU) int {
		if a.Depth != b.Depth {
			if a.Depth < b.Depth {
				return -1
			}
			return 1
		}
		return a.EventID.Compare(b.EventID)
	})
	return ordered
}

// AuthChain returns the transitive closure of p's auth_events: the
// full set of events that justify p, sorted. An unknown link anywhere
// in the chain is a *MissingAncestorError.
func AuthChain(p *event.PDU, src EventSource) ([]ref.EventID, error) {
	seen := make(map[ref.EventID]bool)
	var missing []ref.EventID
	frontier := slices.Clone(p.AuthEvents)
	for len(frontier) > 0 {
		id := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		ancestor, ok := src.Event(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		frontier = append(frontier, ancestor.AuthEvents...)
	}
	if len(missing) > 0 {
		return nil, &MissingAncestorError{IDs: ref.SortEventIDs(missing)}
	}
	chain := make([]ref.EventID, 0, len(seen))
	for id := range seen {
		chain = append(chain, id)
	}
	return ref.SortEventIDs(chain), nil
}

// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"strings"

	"github.com/hearth-foundation/hearth/event"
	"github.com/hearth-foundation/hearth/lib/ref"
)

// StateProvider is the room state an authorization check reads:
// the handful of state events the rules consult, already materialized
// at the event's graph position. Implementations return nil for state
// that does not exist; they never touch storage or block.
type StateProvider interface {
	// Create returns the room's creation event, or nil if the state
	// has none.
	Create() *event.PDU

	// PowerLevels returns the current m.room.power_levels event, or
	// nil if none has been set.
	PowerLevels() *event.PDU

	// JoinRules returns the current m.room.join_rules event, or nil.
	JoinRules() *event.PDU

	// Member returns the current m.room.member event for user, or nil
	// if the user has never had one.
	Member(user ref.UserID) *event.PDU
}

// Authorize decides whether p is permitted given the room state at its
// graph position. It is a pure function: same event and same state
// always produce the same result, on every server.
func Authorize(p *event.PDU, state StateProvider) Result {
	if p.IsCreate() {
		return authorizeCreate(p, state)
	}

	create := state.Create()
	if create == nil {
		return rejected(ReasonMissingCreate, "no creation event in state for %s", p.EventID)
	}
	createContent, err := event.ParseCreate(create)
	if err != nil {
		return rejected(ReasonInvalidContent, "creation event %s: %v", create.EventID, err)
	}

	levels, result := currentLevels(state, createContent.Creator)
	if !result.Allowed() {
		return result
	}

	switch p.Type {
	case event.TypeMember:
		return authorizeMember(p, state, levels)
	case event.TypePowerLevels:
		return authorizePowerLevels(p, state, levels)
	}

	if result := requireJoined(p.Sender, state); !result.Allowed() {
		return result
	}
	senderLevel := levels.UserLevel(p.Sender)
	if need := levels.EventLevel(p.Type, p.IsState()); senderLevel < need {
		return rejected(ReasonInsufficientLevel,
			"%s holds level %d, sending %s requires %d", p.Sender, senderLevel, p.Type, need)
	}
	if p.IsState() {
		// User-scoped state keys belong to their user: nobody writes
		// state under someone else's user ID.
		if key := p.StateKeyValue(); strings.HasPrefix(key, "@") && key != p.Sender.String() {
			return rejected(ReasonWrongStateKey,
				"%s cannot write state keyed by %s", p.Sender, key)
		}
	}
	if p.Type == event.TypeRedaction && senderLevel < levels.Redact {
		return rejected(ReasonInsufficientLevel,
			"%s holds level %d, redaction requires %d", p.Sender, senderLevel, levels.Redact)
	}
	return accepted()
}

func authorizeCreate(p *event.PDU, state StateProvider) Result {
	if existing := state.Create(); existing != nil {
		return rejected(ReasonDuplicateCreate,
			"room already created by %s", existing.EventID)
	}
	if p.RoomID.Server() != p.Sender.Server() {
		return rejected(ReasonBadCreate,
			"room %s not on creator's server %s", p.RoomID, p.Sender.Server())
	}
	if _, err := event.ParseCreate(p); err != nil {
		return rejected(ReasonBadCreate, "%v", err)
	}
	return accepted()
}

func authorizeMember(p *event.PDU, state StateProvider, levels event.Levels) Result {
	target, err := ref.ParseUserID(p.StateKeyValue())
	if err != nil {
		return rejected(ReasonWrongStateKey,
			"membership state key %q is not a user ID", p.StateKeyValue())
	}
	content, err := event.ParseMember(p)
	if err != nil {
		return rejected(ReasonInvalidContent, "%v", err)
	}

	senderMembership := membershipOf(state, p.Sender)
	targetMembership := membershipOf(state, target)
	senderLevel := levels.UserLevel(p.Sender)

	switch content.Membership {
	case event.MembershipJoin:
		if target != p.Sender {
			return rejected(ReasonWrongStateKey,
				"%s cannot join on behalf of %s", p.Sender, target)
		}
		// The creator's first join rides directly on the creation
		// event; at that point no membership or join rule exists yet.
		if create := state.Create(); create != nil && len(p.PrevEvents) == 1 &&
			p.PrevEvents[0] == create.EventID {
			if createContent, err := event.ParseCreate(create); err == nil &&
				createContent.Creator == target {
				return accepted()
			}
		}
		if targetMembership == event.MembershipBan {
			return rejected(ReasonBanned, "%s is banned", target)
		}
		if targetMembership == event.MembershipJoin || targetMembership == event.MembershipInvite {
			return accepted()
		}
		if joinRuleOf(state) == event.JoinRulePublic {
			return accepted()
		}
		return rejected(ReasonNotInvited, "%s has no invite and the room is not public", target)

	case event.MembershipInvite:
		if senderMembership != event.MembershipJoin {
			return rejected(ReasonNotInRoom, "%s is not joined", p.Sender)
		}
		if targetMembership == event.MembershipJoin {
			return rejected(ReasonTargetNotEligible, "%s is already joined", target)
		}
		if targetMembership == event.MembershipBan {
			return rejected(ReasonBanned, "%s is banned", target)
		}
		if senderLevel < levels.Invite {
			return rejected(ReasonInsufficientLevel,
				"%s holds level %d, inviting requires %d", p.Sender, senderLevel, levels.Invite)
		}
		return accepted()

	case event.MembershipLeave:
		if target == p.Sender {
			if senderMembership == event.MembershipJoin || senderMembership == event.MembershipInvite {
				return accepted()
			}
			return rejected(ReasonNotInRoom, "%s has nothing to leave", p.Sender)
		}
		// Kicking, or lifting a ban.
		if senderMembership != event.MembershipJoin {
			return rejected(ReasonNotInRoom, "%s is not joined", p.Sender)
		}
		if targetMembership == event.MembershipBan && senderLevel < levels.Ban {
			return rejected(ReasonInsufficientLevel,
				"%s holds level %d, unbanning requires %d", p.Sender, senderLevel, levels.Ban)
		}
		if senderLevel < levels.Kick {
			return rejected(ReasonInsufficientLevel,
				"%s holds level %d, kicking requires %d", p.Sender, senderLevel, levels.Kick)
		}
		if targetLevel := levels.UserLevel(target); senderLevel <= targetLevel {
			return rejected(ReasonTargetOutranks,
				"%s at level %d cannot remove %s at level %d", p.Sender, senderLevel, target, targetLevel)
		}
		return accepted()

	case event.MembershipBan:
		if senderMembership != event.MembershipJoin {
			return rejected(ReasonNotInRoom, "%s is not joined", p.Sender)
		}
		if senderLevel < levels.Ban {
			return rejected(ReasonInsufficientLevel,
				"%s holds level %d, banning requires %d", p.Sender, senderLevel, levels.Ban)
		}
		if targetLevel := levels.UserLevel(target); senderLevel <= targetLevel {
			return rejected(ReasonTargetOutranks,
				"%s at level %d cannot ban %s at level %d", p.Sender, senderLevel, target, targetLevel)
		}
		return accepted()

	case event.MembershipKnock:
		return rejected(ReasonTargetNotEligible, "knocking is not supported")
	}
	return rejected(ReasonInvalidContent, "membership %q", content.Membership)
}

// authorizePowerLevels applies the change matrix: beyond the send
// threshold, every level the event moves must be within the sender's
// reach on both its old and new value, and another user at or above
// the sender's level cannot be touched at all.
func authorizePowerLevels(p *event.PDU, state StateProvider, levels event.Levels) Result {
	if result := requireJoined(p.Sender, state); !result.Allowed() {
		return result
	}
	senderLevel := levels.UserLevel(p.Sender)
	if need := levels.EventLevel(event.TypePowerLevels, true); senderLevel < need {
		return rejected(ReasonInsufficientLevel,
			"%s holds level %d, changing power levels requires %d", p.Sender, senderLevel, need)
	}
	newContent, err := event.ParsePowerLevels(p)
	if err != nil {
		return rejected(ReasonInvalidContent, "%v", err)
	}
	proposed := event.ResolveLevels(newContent)

	thresholds := []struct {
		name     string
		old, new int64
	}{
		{"ban", levels.Ban, proposed.Ban},
		{"kick", levels.Kick, proposed.Kick},
		{"invite", levels.Invite, proposed.Invite},
		{"redact", levels.Redact, proposed.Redact},
		{"state_default", levels.StateDefault, proposed.StateDefault},
		{"events_default", levels.EventsDefault, proposed.EventsDefault},
		{"users_default", levels.UsersDefault, proposed.UsersDefault},
	}
	for _, t := range thresholds {
		if t.old == t.new {
			continue
		}
		if t.old > senderLevel || t.new > senderLevel {
			return rejected(ReasonInsufficientLevel,
				"%s at level %d cannot move %s from %d to %d", p.Sender, senderLevel, t.name, t.old, t.new)
		}
	}

	for eventType := range union(levels.Events, proposed.Events) {
		old, hadOld := levels.Events[eventType]
		if !hadOld {
			old = levels.EventsDefault
		}
		proposedLevel, hasNew := proposed.Events[eventType]
		if !hasNew {
			proposedLevel = proposed.EventsDefault
		}
		if old == proposedLevel {
			continue
		}
		if old > senderLevel || proposedLevel > senderLevel {
			return rejected(ReasonInsufficientLevel,
				"%s at level %d cannot move level for %s from %d to %d",
				p.Sender, senderLevel, eventType, old, proposedLevel)
		}
	}

	for user := range union(levels.Users, proposed.Users) {
		old, hadOld := levels.Users[user]
		if !hadOld {
			old = levels.UsersDefault
		}
		proposedLevel, hasNew := proposed.Users[user]
		if !hasNew {
			proposedLevel = proposed.UsersDefault
		}
		if old == proposedLevel {
			continue
		}
		if user != p.Sender.String() && old >= senderLevel {
			return rejected(ReasonTargetOutranks,
				"%s at level %d cannot change %s at level %d", p.Sender, senderLevel, user, old)
		}
		if old > senderLevel || proposedLevel > senderLevel {
			return rejected(ReasonInsufficientLevel,
				"%s at level %d cannot move %s from %d to %d", p.Sender, senderLevel, user, old, proposedLevel)
		}
	}
	return accepted()
}

// currentLevels resolves the power-level table in force: the current
// power-levels event if one exists, otherwise the pre-event defaults
// with the creator at 100.
func currentLevels(state StateProvider, creator ref.UserID) (event.Levels, Result) {
	pl := state.PowerLevels()
	if pl == nil {
		return event.NoEventLevels(creator), accepted()
	}
	content, err := event.ParsePowerLevels(pl)
	if err != nil {
		return event.Levels{}, rejected(ReasonInvalidContent,
			"power-levels event %s: %v", pl.EventID, err)
	}
	return event.ResolveLevels(content), accepted()
}

func requireJoined(user ref.UserID, state StateProvider) Result {
	if membershipOf(state, user) != event.MembershipJoin {
		return rejected(ReasonNotInRoom, "%s is not joined", user)
	}
	return accepted()
}

// membershipOf reads a user's effective membership: leave when no
// membership event exists or its content does not parse.
func membershipOf(state StateProvider, user ref.UserID) event.Membership {
	m := state.Member(user)
	if m == nil {
		return event.MembershipLeave
	}
	content, err := event.ParseMember(m)
	if err != nil {
		return event.MembershipLeave
	}
	return content.Membership
}

// joinRuleOf reads the room's join rule. Absent or unparseable state
// behaves as invite-only; any rule other than public also gates joins
// on an invite.
func joinRuleOf(state StateProvider) event.JoinRule {
	jr := state.JoinRules()
	if jr == nil {
		return event.JoinRuleInvite
	}
	content, err := event.ParseJoinRules(jr)
	if err != nil {
		return event.JoinRuleInvite
	}
	return content.JoinRule
}

func union(a, b map[string]int64) map[string]struct{} {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	return keys
}

// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"encoding/json"
	"fmt"

	"github.com/hearth-foundation/hearth/lib/ref"
)

// Membership is the membership value of an m.room.member event.
type Membership string

// Membership values, in the order a user typically moves through them.
const (
	MembershipInvite Membership = "invite"
	MembershipJoin   Membership = "join"
	MembershipKnock  Membership = "knock"
	MembershipLeave  Membership = "leave"
	MembershipBan    Membership = "ban"
)

// Valid reports whether m is one of the protocol-defined values.
func (m Membership) Valid() bool {
	switch m {
	case MembershipInvite, MembershipJoin, MembershipKnock, MembershipLeave, MembershipBan:
		return true
	}
	return false
}

// JoinRule is the join_rule value of an m.room.join_rules event.
type JoinRule string

// Join rules. Hearth authorizes against public and invite; the others
// parse but behave as invite (the restrictive default).
const (
	JoinRulePublic  JoinRule = "public"
	JoinRuleInvite  JoinRule = "invite"
	JoinRuleKnock   JoinRule = "knock"
	JoinRulePrivate JoinRule = "private"
)

// CreateContent is the content of an m.room.create event.
type CreateContent struct {
	Creator     ref.UserID `json:"creator"`
	RoomVersion string     `json:"room_version,omitempty"`
}

// MemberContent is the content of an m.room.member event.
type MemberContent struct {
	Membership  Membership `json:"membership"`
	DisplayName string     `json:"displayname,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	IsDirect    bool       `json:"is_direct,omitempty"`
}

// JoinRulesContent is the content of an m.room.join_rules event.
type JoinRulesContent struct {
	JoinRule JoinRule `json:"join_rule"`
}

// PowerLevelsContent is the content of an m.room.power_levels event.
// Pointer fields distinguish "absent" from "zero"; resolve them
// through [Levels] before evaluating, and never read them directly in
// rule code.
type PowerLevelsContent struct {
	Ban           *int64           `json:"ban,omitempty"`
	Events        map[string]int64 `json:"events,omitempty"`
	EventsDefault *int64           `json:"events_default,omitempty"`
	Invite        *int64           `json:"invite,omitempty"`
	Kick          *int64           `json:"kick,omitempty"`
	Redact        *int64           `json:"redact,omitempty"`
	StateDefault  *int64           `json:"state_default,omitempty"`
	Users         map[string]int64 `json:"users,omitempty"`
	UsersDefault  *int64           `json:"users_default,omitempty"`
}

// Levels is a fully resolved power-level table: every threshold has a
// concrete value, with the protocol defaults filled in for fields the
// source event omitted.
type Levels struct {
	Ban           int64
	Kick          int64
	Invite        int64
	Redact        int64
	StateDefault  int64
	EventsDefault int64
	UsersDefault  int64
	Events        map[string]int64
	Users         map[string]int64
}

// ResolveLevels fills the protocol defaults into a parsed
// power-levels content: moderation thresholds 50, events_default 0,
// users_default 0, state_default 50.
func ResolveLevels(content *PowerLevelsContent) Levels {
	levels := Levels{
		Ban:           50,
		Kick:          50,
		Invite:        50,
		Redact:        50,
		StateDefault:  50,
		EventsDefault: 0,
		UsersDefault:  0,
		Events:        map[string]int64{},
		Users:         map[string]int64{},
	}
	if content == nil {
		return levels
	}
	if content.Ban != nil {
		levels.Ban = *content.Ban
	}
	if content.Kick != nil {
		levels.Kick = *content.Kick
	}
	if content.Invite != nil {
		levels.Invite = *content.Invite
	}
	if content.Redact != nil {
		levels.Redact = *content.Redact
	}
	if content.StateDefault != nil {
		levels.StateDefault = *content.StateDefault
	}
	if content.EventsDefault != nil {
		levels.EventsDefault = *content.EventsDefault
	}
	if content.UsersDefault != nil {
		levels.UsersDefault = *content.UsersDefault
	}
	for eventType, level := range content.Events {
		levels.Events[eventType] = level
	}
	for user, level := range content.Users {
		levels.Users[user] = level
	}
	return levels
}

// NoEventLevels returns the levels in force before any power-levels
// event exists: the room creator holds 100, everyone else 0, and any
// member may send messages and state (the creator establishes real
// levels with the first power-levels event).
func NoEventLevels(creator ref.UserID) Levels {
	return Levels{
		Ban:           50,
		Kick:          50,
		Invite:        50,
		Redact:        50,
		StateDefault:  0,
		EventsDefault: 0,
		UsersDefault:  0,
		Events:        map[string]int64{},
		Users:         map[string]int64{creator.String(): 100},
	}
}

// UserLevel returns the power level of user: their entry in the users
// map, or the users default.
func (l Levels) UserLevel(user ref.UserID) int64 {
	if level, ok := l.Users[user.String()]; ok {
		return level
	}
	return l.UsersDefault
}

// EventLevel returns the level required to send an event of the given
// type: the entry in the events map, or the state default for state
// events, or the events default otherwise.
func (l Levels) EventLevel(eventType string, isState bool) int64 {
	if level, ok := l.Events[eventType]; ok {
		return level
	}
	if isState {
		return l.StateDefault
	}
	return l.EventsDefault
}

// ParseCreate decodes the content of an m.room.create event.
func ParseCreate(p *PDU) (*CreateContent, error) {
	if p.Type != TypeCreate {
		return nil, fmt.Errorf("event %s is %s, not %s", p.EventID, p.Type, TypeCreate)
	}
	var content CreateContent
	if err := json.Unmarshal(p.Content, &content); err != nil {
		return nil, fmt.Errorf("parsing %s content of %s: %w", TypeCreate, p.EventID, err)
	}
	if content.Creator.IsZero() {
		return nil, fmt.Errorf("%s event %s has no creator", TypeCreate, p.EventID)
	}
	return &content, nil
}

// ParseMember decodes the content of an m.room.member event.
func ParseMember(p *PDU) (*MemberContent, error) {
	if p.Type != TypeMember {
		return nil, fmt.Errorf("event %s is %s, not %s", p.EventID, p.Type, TypeMember)
	}
	var content MemberContent
	if err := json.Unmarshal(p.Content, &content); err != nil {
		return nil, fmt.Errorf("parsing %s content of %s: %w", TypeMember, p.EventID, err)
	}
	if !content.Membership.Valid() {
		return nil, fmt.Errorf("%s event %s has invalid membership %q", TypeMember, p.EventID, content.Membership)
	}
	return &content, nil
}

// ParsePowerLevels decodes the content of an m.room.power_levels
// event.
func ParsePowerLevels(p *PDU) (*PowerLevelsContent, error) {
	if p.Type != TypePowerLevels {
		return nil, fmt.Errorf("event %s is %s, not %s", p.EventID, p.Type, TypePowerLevels)
	}
	var content PowerLevelsContent
	if err := json.Unmarshal(p.Content, &content); err != nil {
		return nil, fmt.Errorf("parsing %s content of %s: %w", TypePowerLevels, p.EventID, err)
	}
	return &content, nil
}

// ParseJoinRules decodes the content of an m.room.join_rules event.
func ParseJoinRules(p *PDU) (*JoinRulesContent, error) {
	if p.Type != TypeJoinRules {
		return nil, fmt.Errorf("event %s is %s, not %s", p.EventID, p.Type, TypeJoinRules)
	}
	var content JoinRulesContent
	if err := json.Unmarshal(p.Content, &content); err != nil {
		return nil, fmt.Errorf("parsing %s content of %s: %w", TypeJoinRules, p.EventID, err)
	}
	return &content, nil
}

// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"testing"

	"github.com/hearth-foundation/hearth/event"
	"github.com/hearth-foundation/hearth/lib/clock"
	"github.com/hearth-foundation/hearth/lib/ref"
)

var (
	authServer = ref.MustParseServerName("example.org")
	authRoom   = ref.MustParseRoomID("!auth:example.org")
	alice      = ref.MustParseUserID("@alice:example.org")
	bob        = ref.MustParseUserID("@bob:example.org")
	carol      = ref.MustParseUserID("@carol:example.org")
)

// testState is a StateProvider backed by a plain map, keyed on
// (type, state key).
type testState map[[2]string]*event.PDU

func (s testState) Create() *event.PDU      { return s[[2]string{event.TypeCreate, ""}] }
func (s testState) PowerLevels() *event.PDU { return s[[2]string{event.TypePowerLevels, ""}] }
func (s testState) JoinRules() *event.PDU   { return s[[2]string{event.TypeJoinRules, ""}] }
func (s testState) Member(u ref.UserID) *event.PDU {
	return s[[2]string{event.TypeMember, u.String()}]
}

func stateWith(events ...*event.PDU) testState {
	s := testState{}
	for _, p := range events {
		s[[2]string{p.Type, p.StateKeyValue()}] = p
	}
	return s
}

func authKeyring(t *testing.T) *event.Keyring {
	t.Helper()
	keyring, err := event.GenerateKeyring(authServer, "ed25519:auth")
	if err != nil {
		t.Fatalf("GenerateKeyring: %v", err)
	}
	return keyring
}

func build(t *testing.T, keyring *event.Keyring, b event.Builder) *event.PDU {
	t.Helper()
	if b.RoomID.IsZero() {
		b.RoomID = authRoom
	}
	b.Clock = clock.NewFake()
	p, err := b.Build(keyring)
	if err != nil {
		t.Fatalf("Build %s: %v", b.Type, err)
	}
	return p
}

func buildCreate(t *testing.T, keyring *event.Keyring) *event.PDU {
	t.Helper()
	return build(t, keyring, event.Builder{
		Sender:   alice,
		Type:     event.TypeCreate,
		StateKey: event.StateKeyOf(""),
		Content:  event.CreateContent{Creator: alice},
	})
}

func buildMember(t *testing.T, keyring *event.Keyring, sender, target ref.UserID, m event.Membership, prev ...ref.EventID) *event.PDU {
	t.Helper()
	if len(prev) == 0 {
		prev = []ref.EventID{ref.MustParseEventID("$prev")}
	}
	return build(t, keyring, event.Builder{
		Sender:     sender,
		Type:       event.TypeMember,
		StateKey:   event.StateKeyOf(target.String()),
		Content:    event.MemberContent{Membership: m},
		PrevEvents: prev,
		Depth:      1,
	})
}

func buildPowerLevels(t *testing.T, keyring *event.Keyring, sender ref.UserID, content event.PowerLevelsContent) *event.PDU {
	t.Helper()
	return build(t, keyring, event.Builder{
		Sender:     sender,
		Type:       event.TypePowerLevels,
		StateKey:   event.StateKeyOf(""),
		Content:    content,
		PrevEvents: []ref.EventID{ref.MustParseEventID("$prev")},
		Depth:      2,
	})
}

func requireDecision(t *testing.T, result Result, want Decision, wantReason Reason) {
	t.Helper()
	if result.Decision != want {
		t.Fatalf("decision = %s (%s: %s), want %s", result.Decision, result.Reason, result.Detail, want)
	}
	if want == Reject && result.Reason != wantReason {
		t.Fatalf("reason = %s (%s), want %s", result.Reason, result.Detail, wantReason)
	}
}

func TestAuthorizeCreate(t *testing.T) {
	keyring := authKeyring(t)
	create := buildCreate(t, keyring)

	requireDecision(t, Authorize(create, stateWith()), Accept, ReasonNone)
	requireDecision(t, Authorize(create, stateWith(create)), Reject, ReasonDuplicateCreate)

	foreign := build(t, keyring, event.Builder{
		RoomID:   ref.MustParseRoomID("!auth:other.example"),
		Sender:   alice,
		Type:     event.TypeCreate,
		StateKey: event.StateKeyOf(""),
		Content:  event.CreateContent{Creator: alice},
	})
	requireDecision(t, Authorize(foreign, stateWith()), Reject, ReasonBadCreate)
}

func TestAuthorizeMissingCreate(t *testing.T) {
	keyring := authKeyring(t)
	join := buildMember(t, keyring, alice, alice, event.MembershipJoin)
	requireDecision(t, Authorize(join, stateWith()), Reject, ReasonMissingCreate)
}

func TestCreatorFirstJoin(t *testing.T) {
	keyring := authKeyring(t)
	create := buildCreate(t, keyring)

	join := buildMember(t, keyring, alice, alice, event.MembershipJoin, create.EventID)
	requireDecision(t, Authorize(join, stateWith(create)), Accept, ReasonNone)

	// Same graph position, but the sender is not the creator.
	intruder := buildMember(t, keyring, bob, bob, event.MembershipJoin, create.EventID)
	requireDecision(t, Authorize(intruder, stateWith(create)), Reject, ReasonNotInvited)
}

func TestJoinRules(t *testing.T) {
	keyring := authKeyring(t)
	create := buildCreate(t, keyring)
	aliceJoined := buildMember(t, keyring, alice, alice, event.MembershipJoin)
	public := build(t, keyring, event.Builder{
		Sender:     alice,
		Type:       event.TypeJoinRules,
		StateKey:   event.StateKeyOf(""),
		Content:    event.JoinRulesContent{JoinRule: event.JoinRulePublic},
		PrevEvents: []ref.EventID{ref.MustParseEventID("$prev")},
		Depth:      2,
	})

	bobJoin := buildMember(t, keyring, bob, bob, event.MembershipJoin)

	t.Run("public room admits anyone", func(t *testing.T) {
		requireDecision(t, Authorize(bobJoin, stateWith(create, aliceJoined, public)), Accept, ReasonNone)
	})
	t.Run("invite-only without invite", func(t *testing.T) {
		requireDecision(t, Authorize(bobJoin, stateWith(create, aliceJoined)), Reject, ReasonNotInvited)
	})
	t.Run("invite-only with invite", func(t *testing.T) {
		invited := buildMember(t, keyring, alice, bob, event.MembershipInvite)
		requireDecision(t, Authorize(bobJoin, stateWith(create, aliceJoined, invited)), Accept, ReasonNone)
	})
	t.Run("banned user cannot join", func(t *testing.T) {
		banned := buildMember(t, keyring, alice, bob, event.MembershipBan)
		requireDecision(t, Authorize(bobJoin, stateWith(create, aliceJoined, public, banned)), Reject, ReasonBanned)
	})
	t.Run("join on behalf of another", func(t *testing.T) {
		forged := buildMember(t, keyring, alice, bob, event.MembershipJoin)
		requireDecision(t, Authorize(forged, stateWith(create, aliceJoined, public)), Reject, ReasonWrongStateKey)
	})
}

func TestInvite(t *testing.T) {
	keyring := authKeyring(t)
	create := buildCreate(t, keyring)
	aliceJoined := buildMember(t, keyring, alice, alice, event.MembershipJoin)
	bobJoined := buildMember(t, keyring, bob, bob, event.MembershipJoin)

	t.Run("joined sender with level", func(t *testing.T) {
		invite := buildMember(t, keyring, alice, carol, event.MembershipInvite)
		requireDecision(t, Authorize(invite, stateWith(create, aliceJoined)), Accept, ReasonNone)
	})
	t.Run("sender not joined", func(t *testing.T) {
		invite := buildMember(t, keyring, carol, bob, event.MembershipInvite)
		requireDecision(t, Authorize(invite, stateWith(create, aliceJoined)), Reject, ReasonNotInRoom)
	})
	t.Run("target already joined", func(t *testing.T) {
		invite := buildMember(t, keyring, alice, bob, event.MembershipInvite)
		requireDecision(t, Authorize(invite, stateWith(create, aliceJoined, bobJoined)), Reject, ReasonTargetNotEligible)
	})
	t.Run("insufficient invite level", func(t *testing.T) {
		levels := buildPowerLevels(t, keyring, alice, event.PowerLevelsContent{
			Invite: int64p(50),
			Users:  map[string]int64{alice.String(): 100},
		})
		invite := buildMember(t, keyring, bob, carol, event.MembershipInvite)
		requireDecision(t, Authorize(invite, stateWith(create, aliceJoined, bobJoined, levels)), Reject, ReasonInsufficientLevel)
	})
}

func TestKickBanUnban(t *testing.T) {
	keyring := authKeyring(t)
	create := buildCreate(t, keyring)
	aliceJoined := buildMember(t, keyring, alice, alice, event.MembershipJoin)
	bobJoined := buildMember(t, keyring, bob, bob, event.MembershipJoin)
	levels := buildPowerLevels(t, keyring, alice, event.PowerLevelsContent{
		Users: map[string]int64{alice.String(): 100, bob.String(): 50},
	})
	base := stateWith(create, aliceJoined, bobJoined, levels)

	t.Run("self leave", func(t *testing.T) {
		leave := buildMember(t, keyring, bob, bob, event.MembershipLeave)
		requireDecision(t, Authorize(leave, base), Accept, ReasonNone)
	})
	t.Run("leave without membership", func(t *testing.T) {
		leave := buildMember(t, keyring, carol, carol, event.MembershipLeave)
		requireDecision(t, Authorize(leave, base), Reject, ReasonNotInRoom)
	})
	t.Run("admin kicks moderator", func(t *testing.T) {
		kick := buildMember(t, keyring, alice, bob, event.MembershipLeave)
		requireDecision(t, Authorize(kick, base), Accept, ReasonNone)
	})
	t.Run("moderator cannot kick admin", func(t *testing.T) {
		kick := buildMember(t, keyring, bob, alice, event.MembershipLeave)
		requireDecision(t, Authorize(kick, base), Reject, ReasonTargetOutranks)
	})
	t.Run("ban requires ban level", func(t *testing.T) {
		strict := buildPowerLevels(t, keyring, alice, event.PowerLevelsContent{
			Ban:   int64p(100),
			Users: map[string]int64{alice.String(): 100, bob.String(): 50},
		})
		ban := buildMember(t, keyring, bob, carol, event.MembershipBan)
		requireDecision(t, Authorize(ban, stateWith(create, aliceJoined, bobJoined, strict)), Reject, ReasonInsufficientLevel)
		requireDecision(t, Authorize(buildMember(t, keyring, alice, carol, event.MembershipBan),
			stateWith(create, aliceJoined, bobJoined, strict)), Accept, ReasonNone)
	})
	t.Run("unban requires ban level", func(t *testing.T) {
		carolBanned := buildMember(t, keyring, alice, carol, event.MembershipBan)
		strict := buildPowerLevels(t, keyring, alice, event.PowerLevelsContent{
			Ban:   int64p(100),
			Users: map[string]int64{alice.String(): 100, bob.String(): 50},
		})
		unban := buildMember(t, keyring, bob, carol, event.MembershipLeave)
		requireDecision(t, Authorize(unban, stateWith(create, aliceJoined, bobJoined, strict, carolBanned)), Reject, ReasonInsufficientLevel)
	})
}

func TestSendRequiresMembershipAndLevel(t *testing.T) {
	keyring := authKeyring(t)
	create := buildCreate(t, keyring)
	aliceJoined := buildMember(t, keyring, alice, alice, event.MembershipJoin)
	bobJoined := buildMember(t, keyring, bob, bob, event.MembershipJoin)

	message := func(sender ref.UserID) *event.PDU {
		return build(t, keyring, event.Builder{
			Sender:     sender,
			Type:       event.TypeMessage,
			Content:    map[string]any{"body": "hello"},
			PrevEvents: []ref.EventID{ref.MustParseEventID("$prev")},
			Depth:      3,
		})
	}

	t.Run("joined member sends", func(t *testing.T) {
		requireDecision(t, Authorize(message(bob), stateWith(create, aliceJoined, bobJoined)), Accept, ReasonNone)
	})
	t.Run("outsider cannot send", func(t *testing.T) {
		requireDecision(t, Authorize(message(carol), stateWith(create, aliceJoined)), Reject, ReasonNotInRoom)
	})
	t.Run("per-type level gates sending", func(t *testing.T) {
		levels := buildPowerLevels(t, keyring, alice, event.PowerLevelsContent{
			Events: map[string]int64{event.TypeMessage: 50},
			Users:  map[string]int64{alice.String(): 100},
		})
		requireDecision(t, Authorize(message(bob), stateWith(create, aliceJoined, bobJoined, levels)), Reject, ReasonInsufficientLevel)
	})
	t.Run("user-keyed state belongs to its user", func(t *testing.T) {
		levels := buildPowerLevels(t, keyring, alice, event.PowerLevelsContent{
			StateDefault: int64p(0),
			Users:        map[string]int64{alice.String(): 100},
		})
		impersonation := build(t, keyring, event.Builder{
			Sender:     bob,
			Type:       "app.hearth.profile",
			StateKey:   event.StateKeyOf(alice.String()),
			Content:    map[string]any{"displayname": "not alice"},
			PrevEvents: []ref.EventID{ref.MustParseEventID("$prev")},
			Depth:      3,
		})
		requireDecision(t, Authorize(impersonation, stateWith(create, aliceJoined, bobJoined, levels)), Reject, ReasonWrongStateKey)
	})
}

func TestPowerLevelsChangeMatrix(t *testing.T) {
	keyring := authKeyring(t)
	create := buildCreate(t, keyring)
	aliceJoined := buildMember(t, keyring, alice, alice, event.MembershipJoin)
	bobJoined := buildMember(t, keyring, bob, bob, event.MembershipJoin)

	t.Run("creator sets first table", func(t *testing.T) {
		first := buildPowerLevels(t, keyring, alice, event.PowerLevelsContent{
			Users: map[string]int64{alice.String(): 100},
		})
		requireDecision(t, Authorize(first, stateWith(create, aliceJoined)), Accept, ReasonNone)
	})
	t.Run("self-promotion rejected", func(t *testing.T) {
		grab := buildPowerLevels(t, keyring, bob, event.PowerLevelsContent{
			Users: map[string]int64{bob.String(): 100},
		})
		requireDecision(t, Authorize(grab, stateWith(create, aliceJoined, bobJoined)), Reject, ReasonInsufficientLevel)
	})
	t.Run("cannot touch peer at same level", func(t *testing.T) {
		current := buildPowerLevels(t, keyring, alice, event.PowerLevelsContent{
			Users: map[string]int64{alice.String(): 50, bob.String(): 50},
		})
		demote := buildPowerLevels(t, keyring, alice, event.PowerLevelsContent{
			Users: map[string]int64{alice.String(): 50, bob.String(): 0},
		})
		requireDecision(t, Authorize(demote, stateWith(create, aliceJoined, bobJoined, current)), Reject, ReasonTargetOutranks)
	})
	t.Run("self-demotion allowed", func(t *testing.T) {
		current := buildPowerLevels(t, keyring, alice, event.PowerLevelsContent{
			Users: map[string]int64{alice.String(): 100, bob.String(): 50},
		})
		stepDown := buildPowerLevels(t, keyring, alice, event.PowerLevelsContent{
			Users: map[string]int64{alice.String(): 50, bob.String(): 50},
		})
		requireDecision(t, Authorize(stepDown, stateWith(create, aliceJoined, bobJoined, current)), Accept, ReasonNone)
	})
	t.Run("cannot raise threshold beyond own level", func(t *testing.T) {
		current := buildPowerLevels(t, keyring, alice, event.PowerLevelsContent{
			Users: map[string]int64{alice.String(): 50, bob.String(): 0},
		})
		overreach := buildPowerLevels(t, keyring, alice, event.PowerLevelsContent{
			Ban:   int64p(75),
			Users: map[string]int64{alice.String(): 50, bob.String(): 0},
		})
		requireDecision(t, Authorize(overreach, stateWith(create, aliceJoined, bobJoined, current)), Reject, ReasonInsufficientLevel)
	})
	t.Run("removal counts as change", func(t *testing.T) {
		current := buildPowerLevels(t, keyring, alice, event.PowerLevelsContent{
			Users: map[string]int64{alice.String(): 50, bob.String(): 50},
		})
		removal := buildPowerLevels(t, keyring, alice, event.PowerLevelsContent{
			Users: map[string]int64{alice.String(): 50},
		})
		requireDecision(t, Authorize(removal, stateWith(create, aliceJoined, bobJoined, current)), Reject, ReasonTargetOutranks)
	})
}

func int64p(v int64) *int64 { return &v }

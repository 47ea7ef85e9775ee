// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import "fmt"

// Decision is the outcome of an authorization check.
type Decision int

const (
	// Reject means the event is not permitted at this state.
	Reject Decision = iota

	// Accept means the event is permitted.
	Accept
)

// String returns "accept" or "reject".
func (d Decision) String() string {
	if d == Accept {
		return "accept"
	}
	return "reject"
}

// Reason describes why an event was rejected. Reasons are stable
// identifiers: peers and operators compare them across servers, so an
// existing value never changes meaning.
type Reason int

const (
	// ReasonNone means the event was accepted.
	ReasonNone Reason = iota

	// ReasonDuplicateCreate means a creation event arrived for a room
	// that already has one.
	ReasonDuplicateCreate

	// ReasonBadCreate means the creation event itself is invalid:
	// sender's server does not match the room ID's server, or the
	// content names no creator.
	ReasonBadCreate

	// ReasonMissingCreate means a non-creation event arrived at a
	// state with no creation event.
	ReasonMissingCreate

	// ReasonInvalidContent means a typed content block (membership,
	// power levels, join rules) failed to parse.
	ReasonInvalidContent

	// ReasonWrongStateKey means a user-scoped state event's state key
	// does not name the user the rules require.
	ReasonWrongStateKey

	// ReasonNotInRoom means the sender is not a joined member.
	ReasonNotInRoom

	// ReasonBanned means the acting or target user is banned and the
	// action cannot proceed over the ban.
	ReasonBanned

	// ReasonNotInvited means a join was attempted in an invite-only
	// room without a pending invite.
	ReasonNotInvited

	// ReasonTargetNotEligible means the membership target is in a
	// state that forbids the transition, such as inviting an already
	// joined user.
	ReasonTargetNotEligible

	// ReasonInsufficientLevel means the sender's power level is below
	// the threshold the action requires.
	ReasonInsufficientLevel

	// ReasonTargetOutranks means a moderation action targeted a user
	// whose power level is at or above the sender's.
	ReasonTargetOutranks
)

// String returns the stable identifier for the reason.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonDuplicateCreate:
		return "duplicate_create"
	case ReasonBadCreate:
		return "bad_create"
	case ReasonMissingCreate:
		return "missing_create"
	case ReasonInvalidContent:
		return "invalid_content"
	case ReasonWrongStateKey:
		return "wrong_state_key"
	case ReasonNotInRoom:
		return "not_in_room"
	case ReasonBanned:
		return "banned"
	case ReasonNotInvited:
		return "not_invited"
	case ReasonTargetNotEligible:
		return "target_not_eligible"
	case ReasonInsufficientLevel:
		return "insufficient_level"
	case ReasonTargetOutranks:
		return "target_outranks"
	default:
		return "unknown"
	}
}

// Result describes the outcome of an authorization check.
type Result struct {
	// Decision is Accept or Reject.
	Decision Decision

	// Reason describes why the check rejected. ReasonNone when
	// accepted.
	Reason Reason

	// Detail is a human-readable elaboration for logs. Never parse it;
	// the stable signal is Reason.
	Detail string
}

// Allowed reports whether the decision is Accept.
func (r Result) Allowed() bool { return r.Decision == Accept }

func accepted() Result {
	return Result{Decision: Accept, Reason: ReasonNone}
}

func rejected(reason Reason, format string, args ...any) Result {
	return Result{
		Decision: Reject,
		Reason:   reason,
		Detail:   fmt.Sprintf(format, args...),
	}
}

// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"fmt"

	"github.com/hearth-foundation/hearth/lib/ref"
)

// Code is a stable machine-readable rejection code. Codes are part of
// the wire surface: clients and peers branch on them, so values never
// change meaning.
type Code string

const (
	// CodeMalformed covers structural failures: bad JSON, missing
	// fields, oversized events, wrong room, bad depth.
	CodeMalformed Code = "HEARTH_MALFORMED"

	// CodeBadHash marks a content hash or event ID that does not
	// match recomputation.
	CodeBadHash Code = "HEARTH_BAD_HASH"

	// CodeBadSig marks a missing or invalid sender-server signature.
	CodeBadSig Code = "HEARTH_BAD_SIG"

	// CodeMissingAncestor marks an event whose ancestors could not be
	// obtained. Unlike the other codes it is not final: resubmission
	// after a fetch can succeed.
	CodeMissingAncestor Code = "HEARTH_MISSING_ANCESTOR"

	// CodeForbidden marks an authorization rejection. The reason
	// carries the auth engine's verdict.
	CodeForbidden Code = "HEARTH_FORBIDDEN"

	// CodeStorage marks a backend failure during persistence. The
	// event itself may be fine; retry later.
	CodeStorage Code = "HEARTH_STORAGE"
)

// Status classifies an outcome.
type Status int

const (
	// Accepted means the event is persisted (now or previously).
	Accepted Status = iota

	// Rejected means the event was refused with a final code.
	Rejected

	// MissingAncestor means the event cannot be placed in the graph
	// yet; Need lists the IDs to fetch.
	MissingAncestor
)

// String returns "accepted", "rejected", or "missing_ancestor".
func (s Status) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case MissingAncestor:
		return "missing_ancestor"
	}
	return "unknown"
}

// MarshalText emits the status name, so JSON outcome lines carry
// "accepted" rather than an enum ordinal.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(data []byte) error {
	switch string(data) {
	case "accepted":
		*s = Accepted
	case "rejected":
		*s = Rejected
	case "missing_ancestor":
		*s = MissingAncestor
	default:
		return fmt.Errorf("unknown status %q", data)
	}
	return nil
}

// Outcome is the pipeline's verdict on one submitted event.
type Outcome struct {
	// EventID is the event's claimed ID. Zero when the input was too
	// broken to carry one.
	EventID ref.EventID `json:"event_id,omitzero"`

	// Status classifies the verdict.
	Status Status `json:"status"`

	// Code is set for Rejected and MissingAncestor outcomes.
	Code Code `json:"code,omitempty"`

	// Reason elaborates a rejection for logs and operators.
	Reason string `json:"reason,omitempty"`

	// Need lists the ancestor IDs a MissingAncestor outcome is
	// waiting on.
	Need []ref.EventID `json:"need,omitempty"`
}

// Result is the verdict on a whole batch, outcomes in submission
// order.
type Result struct {
	Outcomes []Outcome `json:"outcomes"`

	// ForwardExtremities is the room's extremity set after the batch.
	ForwardExtremities []ref.EventID `json:"forward_extremities"`
}

func accepted(id ref.EventID) Outcome {
	return Outcome{EventID: id, Status: Accepted}
}

func rejected(id ref.EventID, code Code, reason string) Outcome {
	return Outcome{EventID: id, Status: Rejected, Code: code, Reason: reason}
}

func missingAncestors(id ref.EventID, need []ref.EventID) Outcome {
	return Outcome{EventID: id, Status: MissingAncestor, Code: CodeMissingAncestor, Need: need}
}

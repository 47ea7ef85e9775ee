// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/hearth-foundation/hearth/lib/ref"
)

func TestOutcomeStatusSerializesAsName(t *testing.T) {
	id := ref.MustParseEventID("$outcome")
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{accepted(id), `"status":"accepted"`},
		{rejected(id, CodeForbidden, "nope"), `"status":"rejected"`},
		{missingAncestors(id, []ref.EventID{ref.MustParseEventID("$gone")}), `"status":"missing_ancestor"`},
	}
	for _, tt := range tests {
		raw, err := json.Marshal(tt.outcome)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !strings.Contains(string(raw), tt.want) {
			t.Errorf("Marshal = %s, want it to contain %s", raw, tt.want)
		}

		var back Outcome
		if err := json.Unmarshal(raw, &back); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if back.Status != tt.outcome.Status {
			t.Errorf("round trip: status %s, want %s", back.Status, tt.outcome.Status)
		}
	}
}

func TestStatusRejectsUnknownName(t *testing.T) {
	var s Status
	if err := s.UnmarshalText([]byte("parked")); err == nil {
		t.Error("unknown status name parsed")
	}
}

// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/json"
	"testing"
)

func TestParseEventID(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{"$WCraVpPZe3TDhP6v3wwJyzXqU1rM2Wk0iQFZ6W0oR9Q", false},
		{"$x", false},
		{"", true},
		{"$", true},
		{"abc", true},
		{"!abc:server", true},
	}
	for _, tt := range tests {
		_, err := ParseEventID(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEventID(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
	}
}

func TestParseRoomID(t *testing.T) {
	tests := []struct {
		raw     string
		server  string
		wantErr bool
	}{
		{"!abc123:hearth.local", "hearth.local", false},
		{"!r:chat.example.com:8448", "chat.example.com:8448", false},
		{"", "", true},
		{"!abc123", "", true},
		{"!:server", "", true},
		{"!abc123:", "", true},
		{"@abc123:server", "", true},
	}
	for _, tt := range tests {
		r, err := ParseRoomID(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRoomID(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if err == nil && r.Server() != tt.server {
			t.Errorf("ParseRoomID(%q).Server() = %q, want %q", tt.raw, r.Server(), tt.server)
		}
	}
}

func TestParseUserID(t *testing.T) {
	if _, err := ParseUserID("@alice:hearth.local"); err != nil {
		t.Fatalf("ParseUserID: %v", err)
	}
	for _, bad := range []string{"", "alice", "@alice", "@:server", "@alice:"} {
		if _, err := ParseUserID(bad); err == nil {
			t.Errorf("ParseUserID(%q) should fail", bad)
		}
	}
	u := MustParseUserID("@bob:example.com")
	if u.Server() != "example.com" {
		t.Errorf("Server() = %q, want example.com", u.Server())
	}
}

func TestParseServerName(t *testing.T) {
	for _, good := range []string{"hearth.local", "example.com:8448", "localhost"} {
		if _, err := ParseServerName(good); err != nil {
			t.Errorf("ParseServerName(%q): %v", good, err)
		}
	}
	for _, bad := range []string{"", "has space", "sig!l", "@user"} {
		if _, err := ParseServerName(bad); err == nil {
			t.Errorf("ParseServerName(%q) should fail", bad)
		}
	}
}

func TestEventIDJSONRoundTrip(t *testing.T) {
	id := MustParseEventID("$abcdef")
	data, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"$abcdef"` {
		t.Errorf("Marshal = %s", data)
	}
	var back EventID
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back != id {
		t.Errorf("round trip: got %v, want %v", back, id)
	}
}

func TestSortEventIDs(t *testing.T) {
	ids := []EventID{
		MustParseEventID("$c"),
		MustParseEventID("$a"),
		MustParseEventID("$b"),
		MustParseEventID("$a"),
	}
	sorted := SortEventIDs(ids)
	want := []string{"$a", "$b", "$c"}
	if len(sorted) != len(want) {
		t.Fatalf("len = %d, want %d", len(sorted), len(want))
	}
	for i, w := range want {
		if sorted[i].String() != w {
			t.Errorf("sorted[%d] = %s, want %s", i, sorted[i], w)
		}
	}
}

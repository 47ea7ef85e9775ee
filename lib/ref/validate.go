// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// parseSigilID splits an identifier of the form "<sigil>local:server"
// into its localpart and server name. The sigil is '@' for user IDs
// and '!' for room IDs.
func parseSigilID(sigil byte, raw string) (localpart, server string, err error) {
	if raw == "" {
		return "", "", fmt.Errorf("empty identifier")
	}
	if raw[0] != sigil {
		return "", "", fmt.Errorf("identifier must start with %q: %q", string(sigil), raw)
	}
	colon := strings.IndexByte(raw[1:], ':')
	if colon < 0 {
		return "", "", fmt.Errorf("identifier missing ':server' suffix: %q", raw)
	}
	localpart = raw[1 : 1+colon]
	server = raw[1+colon+1:]
	if localpart == "" {
		return "", "", fmt.Errorf("identifier has empty localpart: %q", raw)
	}
	if server == "" {
		return "", "", fmt.Errorf("identifier has empty server name: %q", raw)
	}
	return localpart, server, nil
}

// validateServer checks a server name: non-empty, no whitespace or
// control characters, no Matrix sigils. Port suffixes ("host:8448")
// are allowed.
func validateServer(raw string) error {
	if raw == "" {
		return fmt.Errorf("empty server name")
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c <= ' ' || c == 0x7f {
			return fmt.Errorf("server name contains whitespace or control character: %q", raw)
		}
		switch c {
		case '@', '!', '#', '$':
			return fmt.Errorf("server name contains sigil %q: %q", string(c), raw)
		}
	}
	return nil
}

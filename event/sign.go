// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hearth-foundation/hearth/lib/ref"
)

// KeyResolver supplies the ed25519 verification keys of a server,
// keyed by key ID ("ed25519:abc"). Implementations may read local
// configuration or a cache of federation key responses; resolution
// happens before authorization, so the resolver is the only place the
// validation path may touch anything beyond the event itself.
type KeyResolver interface {
	VerifierKeys(server ref.ServerName) (map[string]ed25519.PublicKey, error)
}

// Keyring holds a server's ed25519 signing keys. It signs locally
// built events and doubles as the KeyResolver for its own server in
// single-server deployments and tests.
type Keyring struct {
	server ref.ServerName
	keys   map[string]ed25519.PrivateKey
}

// NewKeyring builds a keyring for server from named private keys. Key
// IDs must use the "ed25519:<id>" form.
func NewKeyring(server ref.ServerName, keys map[string]ed25519.PrivateKey) (*Keyring, error) {
	if server.IsZero() {
		return nil, fmt.Errorf("keyring needs a server name")
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("keyring for %s has no keys", server)
	}
	for keyID := range keys {
		if !strings.HasPrefix(keyID, "ed25519:") || len(keyID) <= len("ed25519:") {
			return nil, fmt.Errorf("key ID %q is not of the form ed25519:<id>", keyID)
		}
	}
	return &Keyring{server: server, keys: keys}, nil
}

// GenerateKeyring creates a keyring with one fresh ed25519 key under
// the given key ID. Used by hearth-keygen and tests.
func GenerateKeyring(server ref.ServerName, keyID string) (*Keyring, error) {
	_, private, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generating ed25519 key: %w", err)
	}
	return NewKeyring(server, map[string]ed25519.PrivateKey{keyID: private})
}

// LoadKeyring reads every key file in dir. Each file is named with
// its key ID ("ed25519:<id>") and contains the standard base64 of the
// 32-byte ed25519 seed.
func LoadKeyring(server ref.ServerName, dir string) (*Keyring, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading key directory %s: %w", dir, err)
	}
	keys := make(map[string]ed25519.PrivateKey)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		keyID := entry.Name()
		if !strings.HasPrefix(keyID, "ed25519:") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, keyID))
		if err != nil {
			return nil, fmt.Errorf("reading key %s: %w", keyID, err)
		}
		seed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("decoding key %s: %w", keyID, err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("key %s is %d bytes, want %d-byte seed", keyID, len(seed), ed25519.SeedSize)
		}
		keys[keyID] = ed25519.NewKeyFromSeed(seed)
	}
	return NewKeyring(server, keys)
}

// Server returns the server name the keyring signs for.
func (k *Keyring) Server() ref.ServerName { return k.server }

// VerifierKeys implements KeyResolver for the keyring's own server.
func (k *Keyring) VerifierKeys(server ref.ServerName) (map[string]ed25519.PublicKey, error) {
	if server != k.server {
		return nil, fmt.Errorf("no keys for server %s", server)
	}
	public := make(map[string]ed25519.PublicKey, len(k.keys))
	for keyID, private := range k.keys {
		public[keyID] = private.Public().(ed25519.PublicKey)
	}
	return public, nil
}

// signableBody returns the bytes a server signature covers: the
// redacted canonical event without event_id, signatures, or unsigned
// (the hashes block stays in, binding the signature to the full
// content).
func signableBody(p *PDU) ([]byte, error) {
	redacted := p.Redact()
	return eventJSONWithout(redacted, "event_id", "signatures", "unsigned")
}

// Sign adds this keyring's signatures to the event, replacing any
// prior signatures by the same server.
func (k *Keyring) Sign(p *PDU) error {
	body, err := signableBody(p)
	if err != nil {
		return fmt.Errorf("signing event: %w", err)
	}
	if p.Signatures == nil {
		p.Signatures = make(Signatures, 1)
	}
	byKey := make(map[string]string, len(k.keys))
	for keyID, private := range k.keys {
		signature := ed25519.Sign(private, body)
		byKey[keyID] = base64.RawURLEncoding.EncodeToString(signature)
	}
	p.Signatures[k.server.String()] = byKey
	return nil
}

// VerifySender checks that the event carries at least one valid
// signature from the sender's server, resolving keys through
// resolver. Returns a descriptive error when no signature checks out.
func VerifySender(p *PDU, resolver KeyResolver) error {
	server, err := ref.ParseServerName(p.Sender.Server())
	if err != nil {
		return fmt.Errorf("sender %s: %w", p.Sender, err)
	}
	byKey, ok := p.Signatures[server.String()]
	if !ok || len(byKey) == 0 {
		return fmt.Errorf("event %s has no signature from %s", p.EventID, server)
	}
	keys, err := resolver.VerifierKeys(server)
	if err != nil {
		return fmt.Errorf("resolving keys for %s: %w", server, err)
	}
	body, err := signableBody(p)
	if err != nil {
		return fmt.Errorf("verifying event %s: %w", p.EventID, err)
	}
	for keyID, encoded := range byKey {
		public, ok := keys[keyID]
		if !ok {
			continue
		}
		signature, err := base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		if ed25519.Verify(public, body, signature) {
			return nil
		}
	}
	return fmt.Errorf("no signature on event %s verifies against %s's keys", p.EventID, server)
}

// SeedBase64 returns the base64 seed of the named key, the format
// LoadKeyring reads. Used by hearth-keygen to write key files.
func (k *Keyring) SeedBase64(keyID string) (string, error) {
	private, ok := k.keys[keyID]
	if !ok {
		return "", fmt.Errorf("keyring has no key %s", keyID)
	}
	return base64.StdEncoding.EncodeToString(private.Seed()), nil
}

// KeyIDs lists the keyring's key IDs.
func (k *Keyring) KeyIDs() []string {
	ids := make([]string, 0, len(k.keys))
	for keyID := range k.keys {
		ids = append(ids, keyID)
	}
	return ids
}

// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

// hearth-keygen generates an ed25519 signing key file in the format
// hearthd's key_dir expects: a file named "ed25519:<id>" containing
// the standard base64 of the 32-byte seed.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/hearth-foundation/hearth/event"
	"github.com/hearth-foundation/hearth/lib/ref"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hearth-keygen: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("hearth-keygen", pflag.ContinueOnError)
	dir := flagSet.String("dir", ".", "directory to write the key file into")
	keyID := flagSet.String("key-id", "", "key ID (default ed25519:<random>)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	id := *keyID
	if id == "" {
		var suffix [4]byte
		if _, err := rand.Read(suffix[:]); err != nil {
			return fmt.Errorf("generating key ID: %w", err)
		}
		id = "ed25519:" + hex.EncodeToString(suffix[:])
	}

	// The keyring constructor validates the key ID format; the server
	// name is irrelevant to the file on disk.
	keyring, err := event.GenerateKeyring(ref.MustParseServerName("localhost"), id)
	if err != nil {
		return err
	}
	seed, err := keyring.SeedBase64(id)
	if err != nil {
		return err
	}

	path := filepath.Join(*dir, id)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.WriteFile(path, []byte(seed+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Println(path)
	return nil
}

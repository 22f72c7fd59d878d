// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/zulip/lib/sealed"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConnectPlaintextKeyWithFlagOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", "site: https://file.example.com\nemail: file@example.com\napi_key: abc123\n")
	session := SessionConfig{ConfigPath: path, Site: "https://flag.example.com/", Email: "flag@example.com"}

	connected, err := session.Connect(discardLogger())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer connected.Close()

	if connected.Client.Site() != "https://flag.example.com" {
		t.Errorf("Site = %q, want flag override", connected.Client.Site())
	}
	if connected.Client.Email() != "flag@example.com" {
		t.Errorf("Email = %q, want flag override", connected.Client.Email())
	}
	if connected.apiKey.Reveal() != "abc123" {
		t.Error("api key not loaded from file")
	}
}

func TestConnectSealedKey(t *testing.T) {
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer keypair.Close()

	identityPath := writeFile(t, "key.txt", "# public key: "+keypair.PublicKey+"\n"+keypair.PrivateKey.Reveal()+"\n")
	ciphertext, err := sealed.Encrypt([]byte("sealed-key-value"), []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	path := writeFile(t, "config.yaml",
		"site: https://chat.example.com\nemail: bot@example.com\n"+
			"api_key_sealed: "+ciphertext+"\nidentity_file: "+identityPath+"\n")

	connected, err := (&SessionConfig{ConfigPath: path}).Connect(discardLogger())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer connected.Close()
	if connected.apiKey.Reveal() != "sealed-key-value" {
		t.Error("sealed api key not decrypted")
	}
}

func TestConnectFailures(t *testing.T) {
	other, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer other.Close()
	wrongIdentity := writeFile(t, "other.txt", other.PrivateKey.Reveal()+"\n")

	intended, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer intended.Close()
	ciphertext, err := sealed.Encrypt([]byte("k"), []string{intended.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	tests := []struct {
		name     string
		path     string
		category ErrorCategory
	}{
		{"missing explicit file", filepath.Join(t.TempDir(), "absent.yaml"), CategoryNotFound},
		{"unknown key", writeFile(t, "c.yaml", "site: https://x.example.com\nemail: a@b\napi_key: k\nhomeserver: nope\n"), CategoryValidation},
		{"no credentials", writeFile(t, "c.yaml", "site: https://x.example.com\nemail: a@b\n"), CategoryValidation},
		{"wrong identity", writeFile(t, "c.yaml",
			"site: https://x.example.com\nemail: a@b\napi_key_sealed: "+ciphertext+"\nidentity_file: "+wrongIdentity+"\n"), CategoryValidation},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			session, err := (&SessionConfig{ConfigPath: test.path}).Connect(discardLogger())
			if err == nil {
				session.Close()
				t.Fatal("expected error")
			}
			var toolErr *ToolError
			if !errors.As(err, &toolErr) {
				t.Fatalf("expected *ToolError, got %T: %v", err, err)
			}
			if toolErr.Category != test.category {
				t.Errorf("category = %s, want %s (%v)", toolErr.Category, test.category, err)
			}
		})
	}
}

package approval

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
)

type stubPrompter struct{ allow bool }

func (s stubPrompter) Prompt(string) bool { return s.allow }

func writeSeed(t *testing.T, dir string) string {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		t.Fatalf("generate seed: %v", err)
	}
	path := filepath.Join(dir, "approver.key")
	if err := os.WriteFile(path, seed, 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func TestGateWithoutKeyApprovesUnsigned(t *testing.T) {
	g, err := NewGate(stubPrompter{allow: true}, "")
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	if !g.Approve("rm -rf build/") {
		t.Error("expected approval")
	}
	if note := g.LastNote(); note != "" {
		t.Errorf("expected no note without a signing key, got %q", note)
	}
}

func TestGateWithoutKeyDeniesUnsigned(t *testing.T) {
	g, err := NewGate(stubPrompter{allow: false}, "")
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	if g.Approve("rm -rf build/") {
		t.Error("expected denial")
	}
	if note := g.LastNote(); note != "" {
		t.Errorf("expected no note without a signing key, got %q", note)
	}
}

func TestGateWithKeySignsEveryDecision(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeSeed(t, dir)

	g, err := NewGate(stubPrompter{allow: true}, keyPath)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	if !g.Approve("rm -rf build/") {
		t.Error("expected approval")
	}
	note := g.LastNote()
	if note == "" {
		t.Fatal("expected a signed note when a key is configured")
	}
}

func TestGateSeparatesNotesAcrossDecisions(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeSeed(t, dir)

	g, err := NewGate(stubPrompter{allow: true}, keyPath)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	g.Approve("rm -rf build/")
	first := g.LastNote()

	g.Approve("rm -rf dist/")
	second := g.LastNote()

	if first == second {
		t.Error("expected distinct notes for distinct commands")
	}
}

func TestLoadPrivateKeyFromRawSeed(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeSeed(t, dir)

	key, err := LoadPrivateKey(keyPath)
	if err != nil {
		t.Fatalf("LoadPrivateKey: %v", err)
	}
	if len(key) != ed25519.PrivateKeySize {
		t.Errorf("expected a full private key, got %d bytes", len(key))
	}
}

func TestLoadPrivateKeyRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.key")
	if err := os.WriteFile(path, []byte("not a key"), 0o600); err != nil {
		t.Fatalf("write garbage key: %v", err)
	}

	if _, err := LoadPrivateKey(path); err == nil {
		t.Error("expected an error loading a non-key file")
	}
}

func TestNewGateFailsOnUnreadableKeyPath(t *testing.T) {
	if _, err := NewGate(stubPrompter{allow: true}, "/nonexistent/key"); err == nil {
		t.Error("expected an error for a missing key file")
	}
}

// Package approval implements the approval-gate's external collaborator:
// a yes/no prompt for destructive commands, optionally backed by an
// Ed25519 identity so each decision is independently verifiable rather
// than just a trusted log line. A Gate with no signing key configured
// degrades to an unsigned decision — the approval-gate contract never
// depends on a key being present.
package approval

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

var (
	ErrInvalidKeyFormat = errors.New("approval: invalid key format")
	ErrUnsupportedKey   = errors.New("approval: unsupported key type (expected Ed25519)")
	ErrKeyDecryption    = errors.New("approval: key is encrypted (passphrase required)")
)

// LoadPrivateKey reads an approver's Ed25519 identity from path. Accepts a
// raw 32-byte seed, a raw 64-byte private key, or an OpenSSH private key
// file.
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read approval key: %w", err)
	}

	switch len(data) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(data), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(data), nil
	}

	return parseOpenSSHPrivateKey(data)
}

func parseOpenSSHPrivateKey(data []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidKeyFormat
	}

	parsed, err := ssh.ParseRawPrivateKey(data)
	if err != nil {
		var passphraseErr *ssh.PassphraseMissingError
		if errors.As(err, &passphraseErr) {
			return nil, ErrKeyDecryption
		}
		return nil, fmt.Errorf("parse approval key: %w", err)
	}

	switch k := parsed.(type) {
	case *ed25519.PrivateKey:
		return *k, nil
	case ed25519.PrivateKey:
		return k, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrUnsupportedKey, parsed)
	}
}

// Decision is the signed payload: an approval-gate verdict tied to a
// specific invocation and instant.
type Decision struct {
	EventID   string `json:"eventId"`
	Approved  bool   `json:"approved"`
	Timestamp string `json:"timestamp"`
}

// Prompter asks a human (or whatever stands in for one) a yes/no question
// about a rendered command string.
type Prompter interface {
	Prompt(message string) bool
}

// Gate is the Approver the pipeline's approval-gate stage consults for
// destructive commands. When a signing key is configured, every decision
// is signed and the resulting note kept for the caller to attach to the
// trace record produced by the same invocation.
type Gate struct {
	prompter Prompter
	key      ed25519.PrivateKey

	mu       sync.Mutex
	lastNote string
}

// NewGate builds a Gate around prompter. keyPath may be empty, in which
// case decisions are never signed.
func NewGate(prompter Prompter, keyPath string) (*Gate, error) {
	g := &Gate{prompter: prompter}
	if keyPath == "" {
		return g, nil
	}

	key, err := LoadPrivateKey(keyPath)
	if err != nil {
		return nil, fmt.Errorf("configure approval gate: %w", err)
	}
	g.key = key
	return g, nil
}

// Approve implements pipeline.Approver.
func (g *Gate) Approve(message string) bool {
	approved := g.prompter != nil && g.prompter.Prompt(message)
	g.recordDecision(message, approved)
	return approved
}

func (g *Gate) recordDecision(message string, approved bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.key == nil {
		g.lastNote = ""
		return
	}

	decision := Decision{
		EventID:   fingerprint(message),
		Approved:  approved,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(decision)
	if err != nil {
		g.lastNote = fmt.Sprintf("approval decision not signed: %v", err)
		return
	}

	sig := ed25519.Sign(g.key, payload)
	pub := g.key.Public().(ed25519.PublicKey)
	g.lastNote = fmt.Sprintf("approval decision %s signed by %s (sig %s)",
		decision.EventID, fingerprint(string(pub)), hex.EncodeToString(sig))
}

// LastNote implements the pipeline's optional ApprovalNoter interface,
// returning the note for the most recent decision (empty if unsigned).
func (g *Gate) LastNote() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastNote
}

func fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

package intent

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"orchestrator/internal/orcherr"
)

// Store owns the intent ledger file exclusively: every read-modify-write
// cycle holds an internal mutex for its whole duration, and the file is
// never read or written outside that mutex.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewStore builds a Store bound to the YAML ledger at path. A nil logger
// discards normalization warnings.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	return &Store{path: path, logger: logger}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// LoadAll returns every intent in the ledger, with statuses normalized.
func (s *Store) LoadAll() ([]Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lf, err := s.read()
	if err != nil {
		return nil, err
	}
	return lf.Intents, nil
}

// LoadOne returns the intent with the given id. If absent, the error is
// IntentNotFound carrying a recovery payload listing every workable id.
func (s *Store) LoadOne(id string) (*Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lf, err := s.read()
	if err != nil {
		return nil, err
	}

	found := lf.Find(id)
	if found == nil {
		return nil, orcherr.WithAlternatives(
			orcherr.IntentNotFound,
			fmt.Sprintf("no intent with id %q", id),
			"choose one of the workable intents or create a new one",
			lf.WorkableIDs(),
		)
	}
	clone := *found
	return &clone, nil
}

// ActiveIntentID returns the ledger's active_intent pointer, which may be
// empty.
func (s *Store) ActiveIntentID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lf, err := s.read()
	if err != nil {
		return "", err
	}
	return lf.ActiveIntent, nil
}

// Workable returns every intent whose status is PENDING or IN_PROGRESS.
func (s *Store) Workable() ([]Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lf, err := s.read()
	if err != nil {
		return nil, err
	}

	var out []Intent
	for _, it := range lf.Intents {
		if it.Status.Workable() {
			out = append(out, it)
		}
	}
	return out, nil
}

// Persist overwrites the ledger file with lf.
func (s *Store) Persist(lf *LedgerFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(lf)
}

// Update performs a read-modify-write cycle under the store's exclusive
// lock: fn mutates the loaded ledger in place, and the result is persisted
// iff fn returns nil.
func (s *Store) Update(fn func(*LedgerFile) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lf, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(lf); err != nil {
		return err
	}
	return s.write(lf)
}

// read loads and normalizes the ledger file. Callers must hold s.mu.
func (s *Store) read() (*LedgerFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, orcherr.New(orcherr.FileMissing,
				fmt.Sprintf("intent ledger not found at %s", s.path),
				"run the init workflow to create an empty ledger")
		}
		return nil, fmt.Errorf("read intent ledger: %w", err)
	}

	var raw rawLedgerFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, orcherr.New(orcherr.MalformedDocument,
			fmt.Sprintf("intent ledger at %s is not valid YAML: %v", s.path, err),
			"fix the YAML syntax or restore from a backup")
	}
	normalized := normalize(raw, s.logger)
	lf := &normalized

	for i := range lf.Intents {
		if !lf.Intents[i].Status.Valid() {
			s.logger.Warn("normalizing intent status to PENDING",
				"intentId", lf.Intents[i].ID, "rawStatus", string(lf.Intents[i].Status))
			lf.Intents[i].Status = StatusPending
		}
	}

	return lf, nil
}

// write persists lf. Callers must hold s.mu.
func (s *Store) write(lf *LedgerFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create intent ledger directory: %w", err)
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("encode intent ledger: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("write intent ledger: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace intent ledger: %w", err)
	}
	return nil
}

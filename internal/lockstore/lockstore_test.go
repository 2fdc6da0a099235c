package lockstore

import (
	"path/filepath"
	"testing"

	"orchestrator/internal/orcherr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "locks.db"), filepath.Join(dir, "flocks"), "test-holder")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAcquireThenReleaseAllowsReacquire(t *testing.T) {
	s := newTestStore(t)

	release, err := s.Acquire("src/auth/user.ts")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	release()

	release2, err := s.Acquire("src/auth/user.ts")
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	release2()
}

func TestConcurrentAcquireOnSamePathConflicts(t *testing.T) {
	s := newTestStore(t)

	release, err := s.Acquire("src/auth/user.ts")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer release()

	_, err = s.Acquire("src/auth/user.ts")
	if err == nil {
		t.Fatal("expected second acquire on the same path to fail")
	}
	if kind, ok := orcherr.KindOf(err); !ok || kind != orcherr.ConcurrencyConflict {
		t.Errorf("expected ConcurrencyConflict, got %v", err)
	}
}

func TestAcquireOnDifferentPathsDoesNotConflict(t *testing.T) {
	s := newTestStore(t)

	releaseA, err := s.Acquire("src/auth/user.ts")
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer releaseA()

	releaseB, err := s.Acquire("src/auth/session.ts")
	if err != nil {
		t.Fatalf("acquire b should not conflict with a: %v", err)
	}
	defer releaseB()
}

func TestReleaseIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	release, err := s.Acquire("src/auth/user.ts")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()
	release()
}

func TestSyncStateRoundTrips(t *testing.T) {
	s := newTestStore(t)

	if got, err := s.SyncState("session-1"); err != nil || got != "" {
		t.Fatalf("expected empty initial sync state, got %q, err %v", got, err)
	}

	if err := s.SetSyncState("session-1", "rev-abc"); err != nil {
		t.Fatalf("SetSyncState: %v", err)
	}
	got, err := s.SyncState("session-1")
	if err != nil {
		t.Fatalf("SyncState: %v", err)
	}
	if got != "rev-abc" {
		t.Errorf("expected rev-abc, got %q", got)
	}

	if err := s.SetSyncState("session-1", "rev-def"); err != nil {
		t.Fatalf("SetSyncState overwrite: %v", err)
	}
	got, err = s.SyncState("session-1")
	if err != nil {
		t.Fatalf("SyncState after overwrite: %v", err)
	}
	if got != "rev-def" {
		t.Errorf("expected rev-def, got %q", got)
	}
}

package intent

import (
	"testing"

	"orchestrator/internal/orcherr"
)

func newTestMachine(t *testing.T) *StateMachine {
	dir := t.TempDir()
	path := writeLedger(t, dir, sampleLedger)
	return NewStateMachine(NewStore(path, nil))
}

func TestTransitionPendingToInProgress(t *testing.T) {
	m := newTestMachine(t)
	if err := m.Transition("INT-001", StatusInProgress, false); err != nil {
		t.Fatalf("expected legal transition to succeed: %v", err)
	}
	status, err := m.Status("INT-001")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status != StatusInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", status)
	}
}

func TestTransitionIllegalPendingToCompleted(t *testing.T) {
	m := newTestMachine(t)
	err := m.Transition("INT-001", StatusCompleted, false)
	kind, ok := orcherr.KindOf(err)
	if !ok || kind != orcherr.IllegalTransition {
		t.Fatalf("expected IllegalTransition, got %v", err)
	}
}

func TestTransitionLockedRequiresAdminOverride(t *testing.T) {
	m := newTestMachine(t)
	if err := m.Transition("INT-001", StatusInProgress, false); err != nil {
		t.Fatalf("setup transition failed: %v", err)
	}
	if err := m.Lock("INT-001"); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	err := m.Transition("INT-001", StatusInProgress, false)
	kind, ok := orcherr.KindOf(err)
	if !ok || kind != orcherr.IllegalTransition {
		t.Fatalf("expected IllegalTransition without admin override, got %v", err)
	}

	if err := m.Transition("INT-001", StatusInProgress, true); err != nil {
		t.Fatalf("expected admin override to succeed: %v", err)
	}
}

func TestGuardCompletedIntentCarriesAlternatives(t *testing.T) {
	m := newTestMachine(t)
	_, err := m.Guard("INT-003")
	kind, ok := orcherr.KindOf(err)
	if !ok || kind != orcherr.IntentCompleted {
		t.Fatalf("expected IntentCompleted, got %v", err)
	}
	ge := err.(*orcherr.GuidedError)
	if len(ge.Alternatives) == 0 {
		t.Error("expected at least one workable alternative")
	}
}

func TestGuardLockedIntent(t *testing.T) {
	m := newTestMachine(t)
	if err := m.Transition("INT-001", StatusInProgress, false); err != nil {
		t.Fatalf("setup transition failed: %v", err)
	}
	if err := m.Lock("INT-001"); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	_, err := m.Guard("INT-001")
	kind, ok := orcherr.KindOf(err)
	if !ok || kind != orcherr.IntentLocked {
		t.Fatalf("expected IntentLocked, got %v", err)
	}
}

func TestGuardPendingReturnsStatus(t *testing.T) {
	m := newTestMachine(t)
	status, err := m.Guard("INT-001")
	if err != nil {
		t.Fatalf("Guard failed: %v", err)
	}
	if status != StatusPending {
		t.Errorf("expected PENDING, got %s", status)
	}
}

func TestMarkInProgressNoOpWhenAlreadyInProgress(t *testing.T) {
	m := newTestMachine(t)
	if err := m.MarkInProgress("INT-001"); err != nil {
		t.Fatalf("first MarkInProgress failed: %v", err)
	}
	if err := m.MarkInProgress("INT-001"); err != nil {
		t.Fatalf("second MarkInProgress should be a no-op, got: %v", err)
	}
}

func TestMarkCompleted(t *testing.T) {
	m := newTestMachine(t)
	if err := m.MarkInProgress("INT-001"); err != nil {
		t.Fatalf("MarkInProgress failed: %v", err)
	}
	if err := m.MarkCompleted("INT-001"); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	status, _ := m.Status("INT-001")
	if status != StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", status)
	}
}

package intent

import (
	"fmt"

	"orchestrator/internal/orcherr"
)

// legalTransitions is the lifecycle's transition table. LOCKED ->
// IN_PROGRESS is legal only through an administrative override, enforced
// separately in Transition rather than here.
var legalTransitions = map[Status][]Status{
	StatusPending:    {StatusInProgress},
	StatusInProgress: {StatusCompleted, StatusLocked},
	StatusLocked:     {StatusInProgress},
	StatusCompleted:  {},
}

func isLegalTransition(from, to Status) bool {
	for _, candidate := range legalTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// StateMachine evaluates guards and performs lifecycle transitions against
// a Store's ledger.
type StateMachine struct {
	store *Store
}

// NewStateMachine builds a StateMachine backed by store.
func NewStateMachine(store *Store) *StateMachine {
	return &StateMachine{store: store}
}

// Status returns the current status of id, defaulting a missing field to
// PENDING (already applied by the Store on load).
func (m *StateMachine) Status(id string) (Status, error) {
	it, err := m.store.LoadOne(id)
	if err != nil {
		return "", err
	}
	return it.Status, nil
}

// Transition moves id from its current status to target. admin must be
// true for the LOCKED -> IN_PROGRESS administrative override; it is
// ignored for every other pair. Fails with IllegalTransition if the
// source -> target pair is not in the legal table (or is the override
// pair attempted without admin).
func (m *StateMachine) Transition(id string, target Status, admin bool) error {
	return m.store.Update(func(lf *LedgerFile) error {
		it := lf.Find(id)
		if it == nil {
			return orcherr.WithAlternatives(
				orcherr.IntentNotFound,
				fmt.Sprintf("no intent with id %q", id),
				"choose one of the workable intents or create a new one",
				lf.WorkableIDs(),
			)
		}

		from := it.Status
		if !from.Valid() {
			from = StatusPending
		}

		if from == StatusLocked && target == StatusInProgress && !admin {
			return orcherr.New(orcherr.IllegalTransition,
				fmt.Sprintf("intent %q is LOCKED", id),
				"request an administrative override to unlock it")
		}

		if !isLegalTransition(from, target) {
			return orcherr.New(orcherr.IllegalTransition,
				fmt.Sprintf("intent %q cannot move from %s to %s", id, from, target),
				"choose a legal transition for the intent's current status")
		}

		it.Status = target
		return nil
	})
}

// Guard returns the current status if it permits further pipeline
// execution (PENDING or IN_PROGRESS). Otherwise it fails with a
// guided-recovery error: IntentNotFound, IntentCompleted, or IntentLocked.
func (m *StateMachine) Guard(id string) (Status, error) {
	it, err := m.store.LoadOne(id)
	if err != nil {
		return "", err
	}

	switch it.Status {
	case StatusPending, StatusInProgress:
		return it.Status, nil
	case StatusCompleted:
		alternatives, _ := m.workableIDs()
		return "", orcherr.WithAlternatives(
			orcherr.IntentCompleted,
			fmt.Sprintf("intent %q is COMPLETED", id),
			"manually reopen the intent before retrying",
			alternatives,
		)
	case StatusLocked:
		alternatives, _ := m.workableIDs()
		return "", orcherr.WithAlternatives(
			orcherr.IntentLocked,
			fmt.Sprintf("intent %q is LOCKED", id),
			"seek an administrative unlock before retrying",
			alternatives,
		)
	default:
		alternatives, _ := m.workableIDs()
		return "", orcherr.WithAlternatives(
			orcherr.IntentNotFound,
			fmt.Sprintf("intent %q has no recognized status", id),
			"choose one of the workable intents",
			alternatives,
		)
	}
}

func (m *StateMachine) workableIDs() ([]string, error) {
	workable, err := m.store.Workable()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(workable))
	for _, it := range workable {
		ids = append(ids, it.ID)
	}
	return ids, nil
}

// MarkInProgress is a no-op if id is already IN_PROGRESS; otherwise it
// transitions from PENDING.
func (m *StateMachine) MarkInProgress(id string) error {
	status, err := m.Status(id)
	if err != nil {
		return err
	}
	if status == StatusInProgress {
		return nil
	}
	return m.Transition(id, StatusInProgress, false)
}

// MarkCompleted transitions id to COMPLETED.
func (m *StateMachine) MarkCompleted(id string) error {
	return m.Transition(id, StatusCompleted, false)
}

// Lock transitions id to LOCKED.
func (m *StateMachine) Lock(id string) error {
	return m.Transition(id, StatusLocked, false)
}

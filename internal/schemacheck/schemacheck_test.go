package schemacheck

import (
	"testing"

	"orchestrator/internal/intent"
	"orchestrator/internal/ledger"
)

func TestValidateIntentLedgerAcceptsWellFormedDocument(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	lf := intent.LedgerFile{
		ActiveIntent: "INT-001",
		Intents: []intent.Intent{
			{
				ID:                 "INT-001",
				Description:        "Add authentication helpers",
				Status:              intent.StatusPending,
				OwnedScope:          []string{"src/auth/**"},
				Constraints:         map[string]interface{}{"maxFiles": 5},
				AcceptanceCriteria:  []string{"users can log in"},
			},
		},
	}

	if err := v.ValidateIntentLedger(lf); err != nil {
		t.Errorf("expected a well-formed ledger to validate, got: %v", err)
	}
}

func TestValidateIntentLedgerRejectsUnknownStatus(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	raw := map[string]interface{}{
		"intents": []interface{}{
			map[string]interface{}{
				"id":          "INT-001",
				"description": "broken",
				"status":      "BOGUS",
				"owned_scope": []interface{}{"src/**"},
			},
		},
	}

	if err := v.ValidateIntentLedger(raw); err == nil {
		t.Error("expected an unrecognized status to fail schema validation")
	}
}

func TestValidateIntentLedgerRejectsMissingOwnedScope(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	raw := map[string]interface{}{
		"intents": []interface{}{
			map[string]interface{}{
				"id":          "INT-001",
				"description": "missing scope",
			},
		},
	}

	if err := v.ValidateIntentLedger(raw); err == nil {
		t.Error("expected a missing owned_scope to fail schema validation")
	}
}

func TestValidateTraceEntryAcceptsWellFormedEntry(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	entry := ledger.TraceEntry{
		ID:        "3fa85f64-5717-4562-b3fc-2c963f66afa6",
		Timestamp: "2026-08-03T12:00:00Z",
		VCS:       ledger.VCS{RevisionID: "unknown"},
		Files: []ledger.FileRecord{
			ledger.CreateFileTrace("src/auth/user.ts", "", "export function hash(){}\n", true, nil),
		},
		IntentID: "INT-001",
	}

	if err := v.ValidateTraceEntry(entry); err != nil {
		t.Errorf("expected a well-formed trace entry to validate, got: %v", err)
	}
}

func TestValidateTraceEntryRejectsMalformedID(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	raw := map[string]interface{}{
		"id":        "not-a-uuid",
		"timestamp": "2026-08-03T12:00:00Z",
		"vcs":       map[string]interface{}{"revision_id": "unknown"},
		"files":     []interface{}{},
	}

	if err := v.ValidateTraceEntry(raw); err == nil {
		t.Error("expected a non-UUID id to fail schema validation")
	}
}

func TestValidateTraceEntryRejectsUnknownMutationClass(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	raw := map[string]interface{}{
		"id":        "3fa85f64-5717-4562-b3fc-2c963f66afa6",
		"timestamp": "2026-08-03T12:00:00Z",
		"vcs":       map[string]interface{}{"revision_id": "unknown"},
		"files": []interface{}{
			map[string]interface{}{
				"relativePath":    "src/x.ts",
				"mutationClasses": []interface{}{"NOT_A_REAL_CLASS"},
			},
		},
	}

	if err := v.ValidateTraceEntry(raw); err == nil {
		t.Error("expected an unrecognized mutation class to fail schema validation")
	}
}

func TestValidateTraceEntryJSONRoundTrips(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	line := []byte(`{"id":"3fa85f64-5717-4562-b3fc-2c963f66afa6","timestamp":"2026-08-03T12:00:00Z","vcs":{"revision_id":"unknown"},"files":[]}`)
	if err := v.ValidateTraceEntryJSON(line); err != nil {
		t.Errorf("expected the JSON line to validate, got: %v", err)
	}
}

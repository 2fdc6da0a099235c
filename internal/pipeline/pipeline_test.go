package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"orchestrator/internal/intent"
	"orchestrator/internal/ledger"
)

type fixedRevision string

func (f fixedRevision) Current() string { return string(f) }

type memLockStore struct {
	mu    sync.Mutex
	held  map[string]bool
}

func newMemLockStore() *memLockStore {
	return &memLockStore{held: make(map[string]bool)}
}

func (m *memLockStore) Acquire(path string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[path] = true
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, path)
	}, nil
}

type stubApprover struct{ allow bool }

func (s stubApprover) Approve(string) bool { return s.allow }

type signedApprover struct{ note string }

func (s *signedApprover) Approve(string) bool { return true }
func (s *signedApprover) LastNote() string    { return s.note }

const testLedgerYAML = `
active_intent: INT-001
intents:
  - id: INT-001
    description: Add authentication helpers
    status: PENDING
    owned_scope:
      - src/auth/**
    constraints: {}
    acceptance_criteria:
      - users can log in
  - id: INT-003
    description: Already finished
    status: COMPLETED
    owned_scope:
      - src/done/**
`

type testRig struct {
	engine    *Engine
	tracePath string
	workspace string
}

func newTestRig(t *testing.T, approver Approver) *testRig {
	t.Helper()
	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, "active_intents.yaml")
	if err := os.WriteFile(ledgerPath, []byte(testLedgerYAML), 0o600); err != nil {
		t.Fatalf("write ledger fixture: %v", err)
	}
	tracePath := filepath.Join(dir, "agent_trace.jsonl")

	store := intent.NewStore(ledgerPath, nil)
	machine := intent.NewStateMachine(store)
	tl := ledger.New(tracePath, fixedRevision("rev-1"), false)
	hooks := NewStandardHooks(store, machine, tl, fixedRevision("rev-1"), newMemLockStore(), approver, nil, nil)
	engine := NewEngine(hooks, dir)

	return &testRig{engine: engine, tracePath: tracePath, workspace: dir}
}

func (r *testRig) traceLines(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(r.tracePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read trace file: %v", err)
	}
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestHappyPathWritesTraceAndAdvancesStatus(t *testing.T) {
	rig := newTestRig(t, nil)

	executor := func(event *ToolEvent) (*ToolResult, error) {
		return &ToolResult{Success: true}, nil
	}

	event := &ToolEvent{
		ToolName: "write_file",
		IntentID: "INT-001",
		Payload: Payload{
			FilePath: "src/auth/user.ts",
			Before:   "",
			After:    "export function hash(){}\n",
		},
	}

	result := rig.engine.Execute(context.Background(), event, executor)
	if !result.Success {
		t.Fatalf("expected success, got reason %q", result.Reason)
	}

	lines := rig.traceLines(t)
	if len(lines) != 1 {
		t.Fatalf("expected exactly one trace line, got %d", len(lines))
	}

	var entry ledger.TraceEntry
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("trace line is not valid JSON: %v", err)
	}
	if entry.IntentID != "INT-001" {
		t.Errorf("expected intentId INT-001, got %s", entry.IntentID)
	}
	if entry.Files[0].RelativePath != "src/auth/user.ts" {
		t.Errorf("expected relativePath src/auth/user.ts, got %s", entry.Files[0].RelativePath)
	}

	classes := map[string]bool{}
	for _, c := range entry.Files[0].MutationClasses {
		classes[string(c)] = true
	}
	if !classes["ADD_FUNCTION"] || !classes["ADD_EXPORT"] {
		t.Errorf("expected ADD_FUNCTION and ADD_EXPORT, got %v", entry.Files[0].MutationClasses)
	}
}

func TestScopeViolationNeverReachesExecutorOrTrace(t *testing.T) {
	rig := newTestRig(t, nil)

	called := false
	executor := func(event *ToolEvent) (*ToolResult, error) {
		called = true
		return &ToolResult{Success: true}, nil
	}

	event := &ToolEvent{
		ToolName: "write_file",
		IntentID: "INT-001",
		Payload:  Payload{FilePath: "src/ui/Button.tsx"},
	}

	result := rig.engine.Execute(context.Background(), event, executor)
	if result.Success {
		t.Fatal("expected scope violation to fail the pipeline")
	}
	if result.Reason != "Scope violation" {
		t.Errorf("expected reason %q, got %q", "Scope violation", result.Reason)
	}
	if called {
		t.Error("executor should never run on a scope violation")
	}
	if lines := rig.traceLines(t); len(lines) != 0 {
		t.Errorf("expected no trace lines, got %d", len(lines))
	}
}

func TestCompletedIntentNeverReachesExecutor(t *testing.T) {
	rig := newTestRig(t, nil)

	called := false
	executor := func(event *ToolEvent) (*ToolResult, error) {
		called = true
		return &ToolResult{Success: true}, nil
	}

	event := &ToolEvent{ToolName: "write_file", IntentID: "INT-003", Payload: Payload{FilePath: "src/done/x.ts"}}

	result := rig.engine.Execute(context.Background(), event, executor)
	if result.Success {
		t.Fatal("expected completed intent to fail the pipeline")
	}
	if called {
		t.Error("executor should never run for a completed intent")
	}
	if !strings.Contains(result.Reason, "COMPLETED") {
		t.Errorf("expected reason to mention COMPLETED, got %q", result.Reason)
	}
}

func TestDestructiveCommandRequiresApproval(t *testing.T) {
	rig := newTestRig(t, stubApprover{allow: false})

	called := false
	executor := func(event *ToolEvent) (*ToolResult, error) {
		called = true
		return &ToolResult{Success: true}, nil
	}

	event := &ToolEvent{
		ToolName: "run_command",
		IntentID: "INT-001",
		Payload:  Payload{FilePath: "src/auth/user.ts", CommandType: "destructive", Command: "rm -rf src/auth"},
	}

	result := rig.engine.Execute(context.Background(), event, executor)
	if result.Success {
		t.Fatal("expected denied approval to fail the pipeline")
	}
	if result.Reason != "Human approval denied" {
		t.Errorf("expected reason %q, got %q", "Human approval denied", result.Reason)
	}
	if called {
		t.Error("executor should never run when approval is denied")
	}
}

func TestDestructiveCommandProceedsWithApproval(t *testing.T) {
	rig := newTestRig(t, stubApprover{allow: true})

	called := false
	executor := func(event *ToolEvent) (*ToolResult, error) {
		called = true
		return &ToolResult{Success: true}, nil
	}

	event := &ToolEvent{
		ToolName: "run_command",
		IntentID: "INT-001",
		Payload:  Payload{FilePath: "src/auth/cleanup.ts", CommandType: "destructive", Command: "rm -rf src/auth/tmp"},
	}

	result := rig.engine.Execute(context.Background(), event, executor)
	if !result.Success {
		t.Fatalf("expected success with approval, got reason %q", result.Reason)
	}
	if !called {
		t.Error("executor should run once approval is granted")
	}
}

func TestApprovalNoteIsAttachedToResultingTraceEntry(t *testing.T) {
	rig := newTestRig(t, &signedApprover{note: "approval decision abc123 signed by def456 (sig 0011)"})

	executor := func(event *ToolEvent) (*ToolResult, error) {
		return &ToolResult{Success: true}, nil
	}

	event := &ToolEvent{
		ToolName: "run_command",
		IntentID: "INT-001",
		Payload:  Payload{FilePath: "src/auth/cleanup.ts", CommandType: "destructive", Command: "rm -rf src/auth/tmp"},
	}

	result := rig.engine.Execute(context.Background(), event, executor)
	if !result.Success {
		t.Fatalf("expected success, got reason %q", result.Reason)
	}

	lines := rig.traceLines(t)
	if len(lines) != 1 {
		t.Fatalf("expected exactly one trace line, got %d", len(lines))
	}
	var entry ledger.TraceEntry
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("trace line is not valid JSON: %v", err)
	}

	found := false
	for _, r := range entry.Files[0].Related {
		if r.Type == ledger.RelatedNote && strings.Contains(r.Value, "signed by") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a signed approval note in related entries, got %+v", entry.Files[0].Related)
	}
}

func TestExecutorPanicConvertsToFailureAndSkipsPostHooks(t *testing.T) {
	rig := newTestRig(t, nil)

	postRan := false
	rig.engine.RegisterPost(func(event *ToolEvent, ctx *HookContext) error {
		postRan = true
		return nil
	})

	executor := func(event *ToolEvent) (*ToolResult, error) {
		panic("boom")
	}

	event := &ToolEvent{ToolName: "write_file", IntentID: "INT-001", Payload: Payload{FilePath: "src/auth/x.ts"}}
	result := rig.engine.Execute(context.Background(), event, executor)
	if result.Success {
		t.Fatal("expected a panicking executor to fail the pipeline")
	}
	if postRan {
		t.Error("post-hooks should not run after an executor panic")
	}
}

func TestCancelledBeforeExecutorShortCircuits(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	executor := func(event *ToolEvent) (*ToolResult, error) {
		t.Fatal("executor should not run for a cancelled context")
		return nil, nil
	}

	event := &ToolEvent{ToolName: "write_file", IntentID: "INT-001", Payload: Payload{FilePath: "src/auth/x.ts"}}
	result := rig.engine.Execute(ctx, event, executor)
	if result.Success || result.Reason != "cancelled" {
		t.Fatalf("expected {success:false, reason:\"cancelled\"}, got %+v", result)
	}
}

func TestPreHookCanBlockExecution(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.engine.RegisterPre(func(event *ToolEvent, ctx *HookContext) bool { return false })

	called := false
	executor := func(event *ToolEvent) (*ToolResult, error) {
		called = true
		return &ToolResult{Success: true}, nil
	}

	event := &ToolEvent{ToolName: "write_file", IntentID: "INT-001", Payload: Payload{FilePath: "src/auth/x.ts"}}
	result := rig.engine.Execute(context.Background(), event, executor)
	if result.Success || result.Reason != "Pre-hook blocked execution" {
		t.Fatalf("expected pre-hook block, got %+v", result)
	}
	if called {
		t.Error("executor should not run when a pre-hook blocks")
	}
}

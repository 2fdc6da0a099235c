// Package pipeline implements the Hook Pipeline Engine: the ordered
// middleware driver that wraps every tool invocation with context-load,
// pre-hooks, scope validation, a concurrency guard, an approval gate, the
// caller-supplied executor, post-trace, and post-hooks.
package pipeline

import "orchestrator/internal/intent"

// Payload carries whatever a ToolEvent's executor needs. The core only
// looks at these five fields and leaves the rest opaque to it.
type Payload struct {
	FilePath    string `json:"filePath,omitempty"`
	Command     string `json:"command,omitempty"`
	CommandType string `json:"commandType,omitempty"`
	Before      string `json:"before,omitempty"`
	After       string `json:"after,omitempty"`
}

// ToolEvent is what a caller presents to the pipeline for one tool
// invocation.
type ToolEvent struct {
	ToolName string
	IntentID string
	Payload  Payload
}

// ToolResult is what the executor returns for a successful (or failed)
// invocation.
type ToolResult struct {
	Success bool
	Message string
	Data    interface{}
}

// ExecuteResult is the pipeline's own verdict, distinct from ToolResult:
// it reflects whether the invocation was even allowed to reach the
// executor, not what the executor itself reported.
type ExecuteResult struct {
	Success bool
	Reason  string
	Result  *ToolResult
}

// HookContext is per-invocation state threaded through the pipeline.
// Created fresh by Engine.Execute per tool call; discarded on return. Hooks
// must not retain a reference to it across invocations.
type HookContext struct {
	WorkspaceRoot string
	ActiveIntent  *intent.Intent
	AllowedPaths  []string
	Feedback      []string
	ApprovalNote  string
}

// AddFeedback appends a diagnostic the caller can surface through the host
// UI.
func (c *HookContext) AddFeedback(msg string) {
	c.Feedback = append(c.Feedback, msg)
}

// PreHook may deny an invocation. Returning false aborts the pipeline.
type PreHook func(event *ToolEvent, ctx *HookContext) bool

// PostHook observes only; its error is recorded as feedback and never
// alters the pipeline's result.
type PostHook func(event *ToolEvent, ctx *HookContext) error

// Executor performs the actual tool action. Injected by the caller so the
// engine never imports a concrete executor.
type Executor func(event *ToolEvent) (*ToolResult, error)

// Approver is the external human-approval collaborator consulted by the
// approval gate for destructive commands.
type Approver interface {
	Approve(message string) bool
}

// ApprovalNoter is an optional capability an Approver may implement: a
// verifiable note about the most recent decision (e.g. a signature) that
// the approval gate attaches to whatever trace record the invocation goes
// on to produce.
type ApprovalNoter interface {
	LastNote() string
}

// ProcessInvoker runs an external formatter or linter against a file,
// capturing its output as feedback. Failures are never fatal.
type ProcessInvoker interface {
	Invoke(path string) (stdout, stderr string, err error)
}

// RevisionProvider resolves the workspace's current revision id for the
// concurrency guard's lastSync comparison.
type RevisionProvider interface {
	Current() string
}

// LockStore grants the concurrency guard's per-path advisory lock, held
// only for the duration of a single invocation.
type LockStore interface {
	Acquire(path string) (release func(), err error)
}

// SyncStatePersister optionally backs the concurrency guard's lastSync
// revision with durable storage, so a daemon restart mid-session does not
// forget which revision the session last synced to.
type SyncStatePersister interface {
	SyncState(sessionID string) (string, error)
	SetSyncState(sessionID, revisionID string) error
}

package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"orchestrator/internal/intent"
	"orchestrator/internal/ledger"
	"orchestrator/internal/orcherr"
)

const (
	maxOwnedScope         = 10
	maxConstraints        = 20
	maxAcceptanceCriteria = 15
)

// StandardHooks encapsulates pipeline stages 1, 3, 4, 5, 7 — context-load,
// scope validation, the concurrency guard, the approval gate, and
// post-trace — as pure functions over (event, context) so alternate
// drivers can reuse them outside this engine.
type StandardHooks struct {
	store    *intent.Store
	machine  *intent.StateMachine
	trace    *ledger.Ledger
	revision RevisionProvider
	locks    LockStore
	approver Approver
	formatter ProcessInvoker
	linter    ProcessInvoker

	mu        sync.Mutex
	lastSync  string
	persist   SyncStatePersister
	sessionID string
}

// NewStandardHooks wires the collaborators stages 1, 3, 4, 5, and 7 need.
// approver, formatter, and linter may be nil: the approval gate then
// denies every destructive command, and the formatter/linter step is
// skipped.
func NewStandardHooks(store *intent.Store, machine *intent.StateMachine, trace *ledger.Ledger, revision RevisionProvider, locks LockStore, approver Approver, formatter, linter ProcessInvoker) *StandardHooks {
	h := &StandardHooks{
		store:     store,
		machine:   machine,
		trace:     trace,
		revision:  revision,
		locks:     locks,
		approver:  approver,
		formatter: formatter,
		linter:    linter,
	}
	if revision != nil {
		h.lastSync = revision.Current()
	}
	return h
}

// SetSyncPersistence backs the session's lastSync revision with durable
// storage under sessionID, loading whatever was last recorded (if any)
// before the next invocation runs. Safe to skip: the in-memory default
// degrades gracefully to forgetting lastSync across a process restart.
func (h *StandardHooks) SetSyncPersistence(persist SyncStatePersister, sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.persist = persist
	h.sessionID = sessionID

	if persist == nil {
		return nil
	}
	stored, err := persist.SyncState(sessionID)
	if err != nil {
		return fmt.Errorf("load persisted sync state: %w", err)
	}
	if stored != "" {
		h.lastSync = stored
	}
	return nil
}

// ContextLoad is stage 1: load the intent, evaluate its guard, transition
// PENDING to IN_PROGRESS, truncate the context-size caps, and populate
// ctx.ActiveIntent / ctx.AllowedPaths.
func (h *StandardHooks) ContextLoad(event *ToolEvent, ctx *HookContext) error {
	if event.IntentID == "" {
		return orcherr.New(orcherr.IntentNotFound, "event carries no intentId", "attach the event to a declared intent")
	}

	if _, err := h.machine.Guard(event.IntentID); err != nil {
		return err
	}

	if err := h.machine.MarkInProgress(event.IntentID); err != nil {
		return err
	}

	it, err := h.store.LoadOne(event.IntentID)
	if err != nil {
		return err
	}

	truncated := *it
	if len(truncated.OwnedScope) > maxOwnedScope {
		ctx.AddFeedback(fmt.Sprintf("truncated owned_scope from %d to %d entries", len(truncated.OwnedScope), maxOwnedScope))
		truncated.OwnedScope = truncated.OwnedScope[:maxOwnedScope]
	}
	if len(truncated.Constraints) > maxConstraints {
		ctx.AddFeedback(fmt.Sprintf("truncated constraints from %d to %d entries", len(truncated.Constraints), maxConstraints))
		truncated.Constraints = truncateMap(truncated.Constraints, maxConstraints)
	}
	if len(truncated.AcceptanceCriteria) > maxAcceptanceCriteria {
		ctx.AddFeedback(fmt.Sprintf("truncated acceptance_criteria from %d to %d entries", len(truncated.AcceptanceCriteria), maxAcceptanceCriteria))
		truncated.AcceptanceCriteria = truncated.AcceptanceCriteria[:maxAcceptanceCriteria]
	}

	ctx.ActiveIntent = &truncated
	ctx.AllowedPaths = truncated.OwnedScope
	return nil
}

func truncateMap(m map[string]interface{}, n int) map[string]interface{} {
	if len(m) <= n {
		return m
	}
	out := make(map[string]interface{}, n)
	count := 0
	for k, v := range m {
		if count >= n {
			break
		}
		out[k] = v
		count++
	}
	return out
}

// ScopeValidate is stage 3: resolve the event's target path against
// workspaceRoot and test it for prefix containment under at least one of
// ctx.AllowedPaths (each pattern's trailing "/**" stripped to a directory
// prefix).
func (h *StandardHooks) ScopeValidate(event *ToolEvent, ctx *HookContext) error {
	path := event.Payload.FilePath
	if path == "" {
		return nil
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(ctx.WorkspaceRoot, abs)
	}
	abs = filepath.Clean(abs)

	for _, pattern := range ctx.AllowedPaths {
		prefix := strings.TrimSuffix(pattern, "/**")
		prefixAbs := prefix
		if !filepath.IsAbs(prefixAbs) {
			prefixAbs = filepath.Join(ctx.WorkspaceRoot, prefixAbs)
		}
		prefixAbs = filepath.Clean(prefixAbs)

		if abs == prefixAbs || strings.HasPrefix(abs, prefixAbs+string(filepath.Separator)) {
			return nil
		}
	}

	ctx.AddFeedback(fmt.Sprintf("Scope violation: Agent attempted to modify %s", path))
	return orcherr.New(orcherr.ScopeViolation,
		fmt.Sprintf("%s lies outside every owned_scope pattern", path),
		"request the intent's owner to widen owned_scope, or target a path already within scope")
}

// ConcurrencyGuard is stage 4: acquire a per-path advisory lock and compare
// the session's recorded lastSync revision against the current one. The
// returned release function must be called at pipeline exit regardless of
// outcome.
func (h *StandardHooks) ConcurrencyGuard(event *ToolEvent) (release func(), err error) {
	release = func() {}

	if h.locks != nil && event.Payload.FilePath != "" {
		release, err = h.locks.Acquire(event.Payload.FilePath)
		if err != nil {
			return func() {}, orcherr.New(orcherr.ConcurrencyConflict,
				fmt.Sprintf("could not acquire a lock on %s: %v", event.Payload.FilePath, err),
				"retry once the conflicting invocation has completed")
		}
	}

	if h.revision != nil {
		current := h.revision.Current()
		h.mu.Lock()
		mismatch := h.lastSync != "" && current != "" && h.lastSync != current
		conflicting := h.lastSync
		h.mu.Unlock()

		if mismatch {
			release()
			return func() {}, orcherr.New(orcherr.ConcurrencyConflict,
				fmt.Sprintf("workspace moved from revision %s to %s since this session last synced", conflicting, current),
				"resync the session to the new revision and retry")
		}
	}

	return release, nil
}

// SyncTo updates the session's recorded lastSync revision, typically after
// a successful invocation completes. Best-effort persisted if a
// SyncStatePersister was configured; a persistence failure never fails the
// pipeline, since the in-memory value is already authoritative for this
// process's lifetime.
func (h *StandardHooks) SyncTo(revisionID string) {
	h.mu.Lock()
	h.lastSync = revisionID
	persist, sessionID := h.persist, h.sessionID
	h.mu.Unlock()

	if persist != nil {
		_ = persist.SetSyncState(sessionID, revisionID)
	}
}

// ApprovalGate is stage 5: for destructive commands only, ask the external
// approver for a yes/no on the rendered command string. When the approver
// also implements ApprovalNoter, its note about this decision (typically a
// signature) is carried on ctx for post-trace to attach to the resulting
// trace record.
func (h *StandardHooks) ApprovalGate(event *ToolEvent, ctx *HookContext) error {
	if event.Payload.CommandType != "destructive" {
		return nil
	}

	if h.approver == nil {
		return orcherr.New(orcherr.ApprovalDenied,
			"no approver is configured for a destructive command",
			"configure an approval collaborator before issuing destructive commands")
	}

	approved := h.approver.Approve(event.Payload.Command)
	if noter, ok := h.approver.(ApprovalNoter); ok {
		ctx.ApprovalNote = noter.LastNote()
	}

	if !approved {
		return orcherr.New(orcherr.ApprovalDenied,
			fmt.Sprintf("human approval denied for: %s", event.Payload.Command),
			"revise the command or obtain explicit approval before retrying")
	}
	return nil
}

// PostTrace is stage 7: best-effort formatter/linter invocation followed
// by a file-change append to the Trace Ledger.
func (h *StandardHooks) PostTrace(event *ToolEvent, ctx *HookContext) error {
	if event.Payload.FilePath == "" {
		return nil
	}

	if h.formatter != nil {
		if stdout, stderr, err := h.formatter.Invoke(event.Payload.FilePath); err != nil {
			ctx.AddFeedback(fmt.Sprintf("formatter failed on %s: %v", event.Payload.FilePath, err))
		} else if stdout != "" || stderr != "" {
			ctx.AddFeedback(fmt.Sprintf("formatter output for %s: %s%s", event.Payload.FilePath, stdout, stderr))
		}
	}
	if h.linter != nil {
		if stdout, stderr, err := h.linter.Invoke(event.Payload.FilePath); err != nil {
			ctx.AddFeedback(fmt.Sprintf("linter failed on %s: %v", event.Payload.FilePath, err))
		} else if stdout != "" || stderr != "" {
			ctx.AddFeedback(fmt.Sprintf("linter output for %s: %s%s", event.Payload.FilePath, stdout, stderr))
		}
	}

	opts := ledger.AppendFileChangeOptions{
		IntentID:     event.IntentID,
		FilePath:     event.Payload.FilePath,
		Notes:        fmt.Sprintf("%s via %s", event.Payload.FilePath, event.ToolName),
		ApprovalNote: ctx.ApprovalNote,
	}
	if event.Payload.Before != "" || event.Payload.After != "" {
		opts.Before = &event.Payload.Before
		opts.After = &event.Payload.After
	}

	_, err := h.trace.AppendFileChange(opts)
	return err
}

package pipeline

import (
	"context"
	"fmt"
)

// Engine is the ordered middleware driver around each tool invocation. Pre-
// and post-hooks run in registration order; the five built-in stages run
// in the fixed order the core defines. Any stage returning a non-allow
// outcome short-circuits the pipeline.
type Engine struct {
	hooks         *StandardHooks
	workspaceRoot string
	pre           []PreHook
	post          []PostHook
}

// NewEngine builds an Engine driving the given StandardHooks over a
// workspace rooted at workspaceRoot.
func NewEngine(hooks *StandardHooks, workspaceRoot string) *Engine {
	return &Engine{hooks: hooks, workspaceRoot: workspaceRoot}
}

// RegisterPre appends a pre-hook; registration order is execution order.
func (e *Engine) RegisterPre(h PreHook) {
	e.pre = append(e.pre, h)
}

// RegisterPost appends a post-hook; registration order is execution order.
func (e *Engine) RegisterPost(h PostHook) {
	e.post = append(e.post, h)
}

// Execute drives event through the full pipeline, calling executor only if
// every stage up to it allows the invocation.
func (e *Engine) Execute(ctx context.Context, event *ToolEvent, executor Executor) ExecuteResult {
	hctx := &HookContext{WorkspaceRoot: e.workspaceRoot}

	if ctx.Err() != nil {
		return ExecuteResult{Success: false, Reason: "cancelled"}
	}

	// Stage 1: context-load.
	if err := e.hooks.ContextLoad(event, hctx); err != nil {
		return ExecuteResult{Success: false, Reason: err.Error()}
	}

	// Stage 2: registered pre-hooks.
	for _, hook := range e.pre {
		if !hook(event, hctx) {
			return ExecuteResult{Success: false, Reason: "Pre-hook blocked execution"}
		}
	}

	// Stage 3: scope validation.
	if err := e.hooks.ScopeValidate(event, hctx); err != nil {
		return ExecuteResult{Success: false, Reason: "Scope violation"}
	}

	// Stage 4: concurrency guard. The lock is released at pipeline exit
	// regardless of outcome.
	release, err := e.hooks.ConcurrencyGuard(event)
	defer release()
	if err != nil {
		return ExecuteResult{Success: false, Reason: "Concurrency conflict detected"}
	}

	// Stage 5: approval gate.
	if err := e.hooks.ApprovalGate(event, hctx); err != nil {
		return ExecuteResult{Success: false, Reason: "Human approval denied"}
	}

	if ctx.Err() != nil {
		return ExecuteResult{Success: false, Reason: "cancelled"}
	}

	// Stage 6: executor. Exceptions (panics, returned errors) and a
	// literal {success: false} result both short-circuit before post
	// stages; only a successful ToolResult advances the pipeline.
	result, execErr := e.runExecutor(executor, event)
	if execErr != nil {
		e.recordAttempt(event, execErr)
		return ExecuteResult{Success: false, Reason: execErr.Error()}
	}
	if result == nil || !result.Success {
		reason := "executor reported failure"
		if result != nil && result.Message != "" {
			reason = result.Message
		}
		e.recordAttempt(event, fmt.Errorf(reason))
		return ExecuteResult{Success: false, Reason: reason}
	}

	// Stage 7: post-trace. Runs because the executor genuinely succeeded,
	// even if ctx was cancelled in the meantime — the effect happened and
	// must be recorded.
	if err := e.hooks.PostTrace(event, hctx); err != nil {
		hctx.AddFeedback(fmt.Sprintf("post-trace failed: %v", err))
	}
	if e.hooks.revision != nil {
		e.hooks.SyncTo(e.hooks.revision.Current())
	}

	// Stage 8: registered post-hooks.
	for _, hook := range e.post {
		if err := hook(event, hctx); err != nil {
			hctx.AddFeedback(fmt.Sprintf("post-hook error: %v", err))
		}
	}

	return ExecuteResult{Success: true, Result: result}
}

func (e *Engine) runExecutor(executor Executor, event *ToolEvent) (result *ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panicked: %v", r)
		}
	}()
	return executor(event)
}

func (e *Engine) recordAttempt(event *ToolEvent, err error) {
	_ = e.hooks.trace.AppendRaw(map[string]interface{}{
		"event":    "executor_failure",
		"toolName": event.ToolName,
		"intentId": event.IntentID,
		"filePath": event.Payload.FilePath,
		"error":    err.Error(),
	})
}

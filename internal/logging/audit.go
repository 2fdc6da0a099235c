// Package logging provides structured logging with slog for orchestrator.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

// Audit event types for the orchestration middleware.
const (
	AuditEventStartup            AuditEventType = "startup"
	AuditEventShutdown           AuditEventType = "shutdown"
	AuditEventConfigChange       AuditEventType = "config_change"
	AuditEventIntentTransition   AuditEventType = "intent_transition"
	AuditEventScopeViolation     AuditEventType = "scope_violation"
	AuditEventConcurrencyConflict AuditEventType = "concurrency_conflict"
	AuditEventApprovalDecision   AuditEventType = "approval_decision"
	AuditEventPipelineExecute    AuditEventType = "pipeline_execute"
	AuditEventError              AuditEventType = "error"
)

// AuditEvent represents a security-relevant event in the mediation pipeline.
type AuditEvent struct {
	Timestamp  time.Time              `json:"timestamp"`
	EventType  AuditEventType         `json:"event_type"`
	Component  string                 `json:"component"`
	IntentID   string                 `json:"intent_id,omitempty"`
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource,omitempty"`
	Result     string                 `json:"result"` // "success", "failure", "denied"
	Details    map[string]interface{} `json:"details,omitempty"`
	SourceFile string                 `json:"source_file,omitempty"`
	SourceLine int                    `json:"source_line,omitempty"`
	Error      string                 `json:"error,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
}

// AuditLoggerConfig holds configuration for the audit logger.
type AuditLoggerConfig struct {
	FilePath   string
	MaxSize    int64
	MaxAge     int
	MaxBackups int
	Compress   bool
	Component  string
}

// DefaultAuditConfig returns default audit logger configuration.
func DefaultAuditConfig() *AuditLoggerConfig {
	return &AuditLoggerConfig{
		FilePath:   defaultAuditLogPath(),
		MaxSize:    50,
		MaxAge:     90,
		MaxBackups: 10,
		Compress:   true,
		Component:  "orchestrator",
	}
}

func defaultAuditLogPath() string {
	switch runtime.GOOS {
	case "darwin":
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "Library", "Logs", "orchestrator", "audit.log")
	case "windows":
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = os.Getenv("APPDATA")
		}
		return filepath.Join(appData, "orchestrator", "logs", "audit.log")
	default:
		stateHome := os.Getenv("XDG_STATE_HOME")
		if stateHome == "" {
			homeDir, _ := os.UserHomeDir()
			stateHome = filepath.Join(homeDir, ".local", "state")
		}
		return filepath.Join(stateHome, "orchestrator", "audit.log")
	}
}

// AuditLogger handles security audit logging for pipeline decisions.
type AuditLogger struct {
	config  *AuditLoggerConfig
	rotator *FileRotator
	mu      sync.Mutex
}

var (
	defaultAuditLogger *AuditLogger
	auditLoggerOnce    sync.Once
)

// DefaultAuditLogger returns the default global audit logger.
func DefaultAuditLogger() *AuditLogger {
	auditLoggerOnce.Do(func() {
		var err error
		defaultAuditLogger, err = NewAuditLogger(DefaultAuditConfig())
		if err != nil {
			defaultAuditLogger = &AuditLogger{config: DefaultAuditConfig()}
		}
	})
	return defaultAuditLogger
}

// SetDefaultAuditLogger sets the default global audit logger.
func SetDefaultAuditLogger(l *AuditLogger) {
	defaultAuditLogger = l
}

// NewAuditLogger creates a new AuditLogger.
func NewAuditLogger(cfg *AuditLoggerConfig) (*AuditLogger, error) {
	if cfg == nil {
		cfg = DefaultAuditConfig()
	}

	rotatorCfg := &Config{
		FilePath:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxAge,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
		Format:     FormatJSON,
		Level:      LevelInfo,
	}

	rotator, err := NewFileRotator(rotatorCfg)
	if err != nil {
		return nil, fmt.Errorf("create audit rotator: %w", err)
	}

	return &AuditLogger{config: cfg, rotator: rotator}, nil
}

// Log writes an audit event as a single JSON line.
func (a *AuditLogger) Log(ctx context.Context, event AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Component == "" {
		event.Component = a.config.Component
	}
	if event.RequestID == "" {
		event.RequestID = RequestIDFromContext(ctx)
	}
	if event.SourceFile == "" {
		_, file, line, ok := runtime.Caller(2)
		if ok {
			event.SourceFile = file
			event.SourceLine = line
		}
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	data = append(data, '\n')

	if a.rotator == nil {
		_, err := os.Stderr.Write(data)
		return err
	}
	if _, err := a.rotator.Write(data); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// LogIntentTransition logs an intent status transition.
func (a *AuditLogger) LogIntentTransition(ctx context.Context, intentID, from, to string) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventIntentTransition,
		Action:    "intent_transitioned",
		IntentID:  intentID,
		Result:    "success",
		Details: map[string]interface{}{
			"from": from,
			"to":   to,
		},
	})
}

// LogScopeViolation logs a rejected scope check.
func (a *AuditLogger) LogScopeViolation(ctx context.Context, intentID, path string) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventScopeViolation,
		Action:    "scope_check",
		IntentID:  intentID,
		Resource:  path,
		Result:    "denied",
	})
}

// LogConcurrencyConflict logs a rejected concurrency check.
func (a *AuditLogger) LogConcurrencyConflict(ctx context.Context, intentID, path, conflictingRevision string) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventConcurrencyConflict,
		Action:    "concurrency_check",
		IntentID:  intentID,
		Resource:  path,
		Result:    "denied",
		Details: map[string]interface{}{
			"conflicting_revision": conflictingRevision,
		},
	})
}

// LogApprovalDecision logs a human approval decision.
func (a *AuditLogger) LogApprovalDecision(ctx context.Context, intentID, command string, approved bool) error {
	result := "denied"
	if approved {
		result = "success"
	}
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventApprovalDecision,
		Action:    "approval_requested",
		IntentID:  intentID,
		Resource:  command,
		Result:    result,
	})
}

// LogPipelineExecute logs the terminal outcome of a pipeline invocation.
func (a *AuditLogger) LogPipelineExecute(ctx context.Context, intentID, toolName string, success bool, reason string) error {
	result := "success"
	if !success {
		result = "failure"
	}
	details := map[string]interface{}{}
	if reason != "" {
		details["reason"] = reason
	}
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventPipelineExecute,
		Action:    toolName,
		IntentID:  intentID,
		Result:    result,
		Details:   details,
	})
}

// LogConfigChange logs a configuration change.
func (a *AuditLogger) LogConfigChange(ctx context.Context, setting, oldValue, newValue string) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventConfigChange,
		Action:    "config_changed",
		Resource:  setting,
		Result:    "success",
		Details: map[string]interface{}{
			"old_value": oldValue,
			"new_value": newValue,
		},
	})
}

// LogError logs an error event.
func (a *AuditLogger) LogError(ctx context.Context, operation string, err error) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventError,
		Action:    operation,
		Result:    "failure",
		Error:     err.Error(),
	})
}

// LogStartup logs a daemon startup event.
func (a *AuditLogger) LogStartup(ctx context.Context, version string) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventStartup,
		Action:    "daemon_started",
		Result:    "success",
		Details:   map[string]interface{}{"version": version},
	})
}

// LogShutdown logs a daemon shutdown event.
func (a *AuditLogger) LogShutdown(ctx context.Context, reason string) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventShutdown,
		Action:    "daemon_stopped",
		Result:    "success",
		Details:   map[string]interface{}{"reason": reason},
	})
}

// Close closes the audit logger.
func (a *AuditLogger) Close() error {
	if a.rotator != nil {
		return a.rotator.Close()
	}
	return nil
}

// Sync flushes any buffered audit events.
func (a *AuditLogger) Sync() error {
	if a.rotator != nil {
		return a.rotator.Sync()
	}
	return nil
}

// Package config handles configuration loading and validation for orchestrator.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > CurrentConfigVersion {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, CurrentConfigVersion),
		})
	}

	if c.Workspace.Root == "" {
		errs = append(errs, ValidationError{
			Field:   "workspace.root",
			Message: "workspace root is required",
		})
	}

	errs = append(errs, validateIntent(&c.Intent)...)
	errs = append(errs, validateLedger(&c.Ledger)...)
	errs = append(errs, validateRevision(&c.Revision)...)
	errs = append(errs, validateApproval(&c.Approval)...)
	errs = append(errs, validatePipeline(&c.Pipeline)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Validate is a convenience method calling ValidateConfig on the receiver.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

func validateIntent(i *IntentConfig) ValidationErrors {
	var errs ValidationErrors

	if i.LedgerPath == "" {
		errs = append(errs, ValidationError{
			Field:   "intent.ledger_path",
			Message: "ledger path is required",
		})
	}
	if i.MaxOwnedScope < 1 {
		errs = append(errs, ValidationError{
			Field:   "intent.max_owned_scope",
			Message: "max owned scope must be at least 1",
		})
	}
	if i.MaxConstraints < 1 {
		errs = append(errs, ValidationError{
			Field:   "intent.max_constraints",
			Message: "max constraints must be at least 1",
		})
	}
	if i.MaxAcceptanceCriteria < 1 {
		errs = append(errs, ValidationError{
			Field:   "intent.max_acceptance_criteria",
			Message: "max acceptance criteria must be at least 1",
		})
	}

	return errs
}

func validateLedger(l *LedgerConfig) ValidationErrors {
	var errs ValidationErrors

	if l.TracePath == "" {
		errs = append(errs, ValidationError{
			Field:   "ledger.trace_path",
			Message: "trace path is required",
		})
	}

	return errs
}

func validateRevision(r *RevisionConfig) ValidationErrors {
	var errs ValidationErrors

	if r.VCSBinary == "" {
		errs = append(errs, ValidationError{
			Field:   "revision.vcs_binary",
			Message: "VCS binary name is required",
		})
	}
	if r.TimeoutMS < 1 {
		errs = append(errs, ValidationError{
			Field:   "revision.timeout_ms",
			Message: "timeout must be at least 1ms",
		})
	}

	return errs
}

func validateApproval(a *ApprovalConfig) ValidationErrors {
	var errs ValidationErrors

	if a.TimeoutMS < 0 {
		errs = append(errs, ValidationError{
			Field:   "approval.timeout_ms",
			Message: "timeout cannot be negative",
		})
	}

	return errs
}

func validatePipeline(p *PipelineConfig) ValidationErrors {
	var errs ValidationErrors

	if p.FormatterTimeoutMS < 1 {
		errs = append(errs, ValidationError{
			Field:   "pipeline.formatter_timeout_ms",
			Message: "formatter timeout must be at least 1ms",
		})
	}
	if p.LinterTimeoutMS < 1 {
		errs = append(errs, ValidationError{
			Field:   "pipeline.linter_timeout_ms",
			Message: "linter timeout must be at least 1ms",
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr", "file":
		if l.Output == "file" && l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output is 'file'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

// IsWarning returns true if this is a non-fatal validation issue.
func (e *ValidationError) IsWarning() bool {
	warningFields := []string{
		"workspace.root",
	}
	for _, f := range warningFields {
		if strings.HasPrefix(e.Field, f) {
			return true
		}
	}
	return false
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var warnings ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var errs ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			errs = append(errs, err)
		}
	}
	return errs
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{Field: field, Message: "required field is missing"}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf("value must be between %v and %v", min, max)}
}

// TypeError creates a validation error for an invalid type.
func TypeError(field, expected string) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf("expected type %s", expected)}
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// Package orcherr defines the closed set of error kinds the orchestration
// core produces, and the guided-recovery payload shape every intent-guard
// and scope/concurrency/approval failure is surfaced with: the violation
// that occurred, the alternatives that remain legal, and a single concrete
// remediation step.
package orcherr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is one of the error kinds named in the error handling design.
type Kind string

const (
	FileMissing           Kind = "FileMissing"
	MalformedDocument     Kind = "MalformedDocument"
	IntentNotFound        Kind = "IntentNotFound"
	IntentCompleted       Kind = "IntentCompleted"
	IntentLocked          Kind = "IntentLocked"
	IllegalTransition     Kind = "IllegalTransition"
	ScopeViolation        Kind = "ScopeViolation"
	ConcurrencyConflict   Kind = "ConcurrencyConflict"
	ApprovalDenied        Kind = "ApprovalDenied"
	ExecutorFailure       Kind = "ExecutorFailure"
	PostProcessingFailure Kind = "PostProcessingFailure"
)

// GuidedError is a rejection payload that pairs a violation with a
// concrete, machine-actionable remediation, plus whatever alternatives
// remain legal. Every intent-guard error a caller sees is one of these, not
// a bare string.
type GuidedError struct {
	Kind         Kind
	Violation    string
	Alternatives []string
	Remediation  string
}

func (e *GuidedError) Error() string {
	msg := string(e.Kind) + ": " + e.Violation
	if e.Remediation != "" {
		msg += " (" + e.Remediation + ")"
	}
	if len(e.Alternatives) > 0 {
		msg += fmt.Sprintf(" [alternatives: %s]", strings.Join(e.Alternatives, ", "))
	}
	return msg
}

// New builds a GuidedError with no alternatives.
func New(kind Kind, violation, remediation string) *GuidedError {
	return &GuidedError{Kind: kind, Violation: violation, Remediation: remediation}
}

// WithAlternatives builds a GuidedError carrying the currently-legal
// alternatives (e.g. workable intent ids).
func WithAlternatives(kind Kind, violation, remediation string, alternatives []string) *GuidedError {
	return &GuidedError{Kind: kind, Violation: violation, Remediation: remediation, Alternatives: alternatives}
}

// KindOf extracts the Kind from err if it is (or wraps) a *GuidedError.
func KindOf(err error) (Kind, bool) {
	var ge *GuidedError
	if !errors.As(err, &ge) {
		return "", false
	}
	return ge.Kind, true
}

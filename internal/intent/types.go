// Package intent implements the Intent Store (YAML-persisted ledger of
// work items) and the Intent State Machine (lifecycle transitions and
// guard evaluation) described by the orchestration core.
package intent

import (
	"log/slog"

	"gopkg.in/yaml.v3"
)

// Status is one of the four legal lifecycle states an Intent may occupy.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusLocked     Status = "LOCKED"
)

// Valid reports whether s is one of the four legal statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusLocked:
		return true
	default:
		return false
	}
}

// Workable reports whether s permits further pipeline execution.
func (s Status) Workable() bool {
	return s == StatusPending || s == StatusInProgress
}

// Intent is a named, stateful work item with an owned filesystem scope.
type Intent struct {
	ID                 string                 `yaml:"id" json:"id"`
	Description        string                 `yaml:"description" json:"description"`
	Status             Status                 `yaml:"status,omitempty" json:"status,omitempty"`
	OwnedScope         []string               `yaml:"owned_scope" json:"owned_scope"`
	Constraints        map[string]interface{} `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	AcceptanceCriteria []string               `yaml:"acceptance_criteria,omitempty" json:"acceptance_criteria,omitempty"`
	SpecRef            string                 `yaml:"spec_ref,omitempty" json:"spec_ref,omitempty"`
}

// LedgerFile is the single persisted document: a pointer to the active
// intent plus the full list of intents.
type LedgerFile struct {
	ActiveIntent string   `yaml:"active_intent" json:"active_intent"`
	Intents      []Intent `yaml:"intents" json:"intents"`
}

// rawLedgerFile and rawIntent decode the ledger file loosely enough to
// accept the two legacy shapes the Store normalizes away on load: a
// `name` field in place of `description`, and `constraints` given as a
// sequence of bare strings instead of a mapping.
type rawLedgerFile struct {
	ActiveIntent string      `yaml:"active_intent"`
	Intents      []rawIntent `yaml:"intents"`
}

type rawIntent struct {
	ID                 string    `yaml:"id"`
	Description        string    `yaml:"description"`
	Name               string    `yaml:"name"`
	Status             Status    `yaml:"status"`
	OwnedScope         []string  `yaml:"owned_scope"`
	Constraints        yaml.Node `yaml:"constraints"`
	AcceptanceCriteria []string  `yaml:"acceptance_criteria"`
	SpecRef            string    `yaml:"spec_ref"`
}

// normalize converts a loosely-decoded ledger file into its canonical
// shape, logging a deprecation notice for each legacy field it converts.
func normalize(raw rawLedgerFile, logger *slog.Logger) LedgerFile {
	lf := LedgerFile{ActiveIntent: raw.ActiveIntent}
	for _, ri := range raw.Intents {
		lf.Intents = append(lf.Intents, normalizeIntent(ri, logger))
	}
	return lf
}

func normalizeIntent(ri rawIntent, logger *slog.Logger) Intent {
	description := ri.Description
	if description == "" && ri.Name != "" {
		logger.Warn("normalizing deprecated intent field",
			"intentId", ri.ID, "field", "name", "replacement", "description")
		description = ri.Name
	}

	return Intent{
		ID:                 ri.ID,
		Description:        description,
		Status:             ri.Status,
		OwnedScope:         ri.OwnedScope,
		Constraints:        normalizeConstraints(ri.ID, ri.Constraints, logger),
		AcceptanceCriteria: ri.AcceptanceCriteria,
		SpecRef:            ri.SpecRef,
	}
}

// normalizeConstraints accepts the canonical mapping shape as-is, and
// converts the deprecated sequence-of-strings shape into a mapping of
// each entry to a bare `true` flag.
func normalizeConstraints(intentID string, node yaml.Node, logger *slog.Logger) map[string]interface{} {
	switch node.Kind {
	case 0:
		return nil
	case yaml.MappingNode:
		var m map[string]interface{}
		if err := node.Decode(&m); err != nil {
			logger.Warn("malformed constraints mapping, dropping", "intentId", intentID, "error", err)
			return nil
		}
		return m
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			logger.Warn("malformed constraints sequence, dropping", "intentId", intentID, "error", err)
			return nil
		}
		logger.Warn("normalizing deprecated intent field",
			"intentId", intentID, "field", "constraints", "replacement", "constraints mapping")
		m := make(map[string]interface{}, len(list))
		for _, c := range list {
			m[c] = true
		}
		return m
	default:
		logger.Warn("unrecognized constraints shape, dropping", "intentId", intentID, "kind", node.Kind)
		return nil
	}
}

// Find returns the intent with the given id, or nil.
func (lf *LedgerFile) Find(id string) *Intent {
	for i := range lf.Intents {
		if lf.Intents[i].ID == id {
			return &lf.Intents[i]
		}
	}
	return nil
}

// WorkableIDs returns the ids of every intent whose status is PENDING or
// IN_PROGRESS, in ledger order.
func (lf *LedgerFile) WorkableIDs() []string {
	var ids []string
	for _, it := range lf.Intents {
		if it.Status.Workable() {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

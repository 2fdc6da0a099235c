// Package schemacheck validates the Intent Ledger and Trace Entry document
// shapes against embedded JSON Schemas. This is a diagnostic layer on top
// of the normalization rules the Intent Store and Trace Ledger already
// enforce on their own — a schema violation is reported, never fatal to
// the caller that requested the check.
package schemacheck

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const (
	intentLedgerSchemaPath = "schemas/intent-ledger-v1.schema.json"
	traceEntrySchemaPath   = "schemas/trace-entry-v1.schema.json"
)

// Validator compiles the embedded schemas once and reuses them for every
// check; a zero Validator is not usable, construct one with New.
type Validator struct {
	intentLedger *jsonschema.Schema
	traceEntry   *jsonschema.Schema
}

// New compiles both embedded schemas.
func New() (*Validator, error) {
	intentLedger, err := compile(intentLedgerSchemaPath)
	if err != nil {
		return nil, fmt.Errorf("compile intent ledger schema: %w", err)
	}
	traceEntry, err := compile(traceEntrySchemaPath)
	if err != nil {
		return nil, fmt.Errorf("compile trace entry schema: %w", err)
	}
	return &Validator{intentLedger: intentLedger, traceEntry: traceEntry}, nil
}

func compile(path string) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read embedded schema %s: %w", path, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(path, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", path, err)
	}
	return compiler.Compile(path)
}

// ValidateIntentLedger checks a decoded Intent Ledger document (an
// intent.LedgerFile or plain maps and slices) against the Intent Ledger
// schema. The value is round-tripped through JSON before validation; raw
// YAML bytes are not parsed.
func (v *Validator) ValidateIntentLedger(document interface{}) error {
	return validateValue(v.intentLedger, document)
}

// ValidateTraceEntry checks one decoded trace-entry object against the
// Trace Entry schema.
func (v *Validator) ValidateTraceEntry(document interface{}) error {
	return validateValue(v.traceEntry, document)
}

// ValidateTraceEntryJSON is a convenience wrapper for a single already-
// marshaled JSON line from the trace ledger file.
func (v *Validator) ValidateTraceEntryJSON(line []byte) error {
	var decoded interface{}
	if err := json.Unmarshal(line, &decoded); err != nil {
		return fmt.Errorf("unmarshal trace entry: %w", err)
	}
	return v.ValidateTraceEntry(decoded)
}

func validateValue(schema *jsonschema.Schema, document interface{}) error {
	// jsonschema validates against plain Go values (map[string]interface{},
	// []interface{}, primitives): round-trip through JSON so YAML-decoded
	// structs with non-string map keys, or typed structs, land in that
	// shape.
	data, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("marshal document for validation: %w", err)
	}
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("unmarshal document for validation: %w", err)
	}
	return schema.Validate(decoded)
}

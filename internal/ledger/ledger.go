package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"orchestrator/internal/classify"
)

// RevisionProvider is the collaborator interface the ledger consults to
// anchor entries to the workspace's current version-control state. A nil
// provider, or one that fails, yields the "unknown" sentinel — the ledger
// never refuses to write for want of a revision.
type RevisionProvider interface {
	Current() string
}

const unknownRevision = "unknown"

// Ledger is the append-only JSONL writer for trace entries. All append
// operations are synchronous: a line is fully written (and fsynced, if
// configured) before the call returns. Concurrent callers are serialized by
// an internal mutex so no two writes interleave a single JSON line.
type Ledger struct {
	path      string
	revision  RevisionProvider
	fsync     bool
	mu        sync.Mutex
}

// New builds a Ledger that appends to path, stamping entries with revisions
// from revision (may be nil) and fsyncing each append iff fsyncOnAppend.
func New(path string, revision RevisionProvider, fsyncOnAppend bool) *Ledger {
	return &Ledger{
		path:     path,
		revision: revision,
		fsync:    fsyncOnAppend,
	}
}

func (l *Ledger) currentRevision() string {
	if l.revision == nil {
		return unknownRevision
	}
	rev := l.revision.Current()
	if rev == "" {
		return unknownRevision
	}
	return rev
}

// AppendRaw serializes record to a single JSON line and appends it
// verbatim, filling vcs.revision_id and timestamp when the caller omitted
// them. Used for diagnostics and attempted-call markers that don't fit the
// TraceEntry shape.
func (l *Ledger) AppendRaw(record map[string]interface{}) error {
	if _, ok := record["timestamp"]; !ok {
		record["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}

	switch vcs := record["vcs"].(type) {
	case nil:
		record["vcs"] = map[string]interface{}{"revision_id": l.currentRevision()}
	case map[string]interface{}:
		if _, ok := vcs["revision_id"]; !ok {
			vcs["revision_id"] = l.currentRevision()
		}
	}

	return l.appendLine(record)
}

// AppendTraceOptions is the structured-variant input to AppendTrace.
type AppendTraceOptions struct {
	Files      []FileRecord
	IntentID   string
	PromptText string
}

// AppendTrace appends a TraceEntry, always stamping a fresh id, the current
// time, and the current revision — the caller never supplies these.
func (l *Ledger) AppendTrace(opts AppendTraceOptions) (*TraceEntry, error) {
	entry := &TraceEntry{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		VCS:        VCS{RevisionID: l.currentRevision()},
		Files:      opts.Files,
		IntentID:   opts.IntentID,
		PromptText: opts.PromptText,
	}
	if entry.Files == nil {
		entry.Files = []FileRecord{}
	}
	if err := l.appendLine(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// AppendPromptOptions is the input to AppendPrompt.
type AppendPromptOptions struct {
	ID         string
	IntentID   string
	Context    string
	PromptText string
}

// AppendPrompt records a prompt/session seed with an empty files list.
func (l *Ledger) AppendPrompt(opts AppendPromptOptions) (*TraceEntry, error) {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	entry := &TraceEntry{
		ID:         id,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		VCS:        VCS{RevisionID: l.currentRevision()},
		Files:      []FileRecord{},
		IntentID:   opts.IntentID,
		PromptText: opts.PromptText,
		Context:    opts.Context,
	}
	if err := l.appendLine(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// AppendFileChangeOptions is the input to AppendFileChange.
type AppendFileChangeOptions struct {
	IntentID       string
	FilePath       string
	Timestamp      time.Time
	Notes          string
	Before         *string
	After          *string
	SpecRefs       []string
	RequirementIDs []string
	// ApprovalNote, if set, is attached as an additional related note —
	// typically a signature over the approval-gate's decision for this
	// invocation.
	ApprovalNote string
}

// AppendFileChange classifies the mutation (when both Before and After are
// supplied) and appends a single-file trace entry.
func (l *Ledger) AppendFileChange(opts AppendFileChangeOptions) (*TraceEntry, error) {
	var related []Related
	if opts.Notes != "" {
		related = append(related, Related{Type: RelatedNote, Value: opts.Notes})
	}
	for _, ref := range opts.SpecRefs {
		related = append(related, Related{Type: RelatedSpecRef, Value: ref})
	}
	for _, req := range opts.RequirementIDs {
		related = append(related, Related{Type: RelatedRequirement, Value: req})
	}
	if opts.ApprovalNote != "" {
		related = append(related, Related{Type: RelatedNote, Value: opts.ApprovalNote})
	}

	var before, after string
	if opts.Before != nil {
		before = *opts.Before
	}
	classified := opts.Before != nil && opts.After != nil
	if opts.After != nil {
		after = *opts.After
	}

	record := CreateFileTrace(opts.FilePath, before, after, classified, related)

	entry := &TraceEntry{
		ID:        uuid.NewString(),
		Timestamp: formatTimestamp(opts.Timestamp),
		VCS:       VCS{RevisionID: l.currentRevision()},
		Files:     []FileRecord{record},
		IntentID:  opts.IntentID,
	}
	if err := l.appendLine(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format(time.RFC3339)
}

// CreateFileTrace is a pure constructor producing a FileRecord. When
// classified is true, the mutation classifier runs over (before, after);
// otherwise MutationClasses is left empty. The range's contentHash is the
// hex SHA-256 of the full after content; no range is emitted for empty
// after content.
func CreateFileTrace(relativePath, before, after string, classified bool, related []Related) FileRecord {
	if related == nil {
		related = []Related{}
	}
	record := FileRecord{
		RelativePath:    relativePath,
		MutationClasses: []classify.MutationClass{},
		Ranges:          []Range{},
		Related:         related,
	}

	if classified {
		for _, c := range classify.Classify(before, after).Slice() {
			record.MutationClasses = append(record.MutationClasses, c)
		}
	}

	if after != "" {
		lineCount := strings.Count(after, "\n") + 1
		if strings.HasSuffix(after, "\n") {
			lineCount--
		}
		if lineCount < 1 {
			lineCount = 1
		}
		sum := sha256.Sum256([]byte(after))
		record.Ranges = append(record.Ranges, Range{
			StartLine:   1,
			EndLine:     lineCount,
			ContentHash: hex.EncodeToString(sum[:]),
		})
	}

	return record
}

func (l *Ledger) appendLine(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal trace entry: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("create trace ledger directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open trace ledger: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write trace entry: %w", err)
	}

	if l.fsync {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("fsync trace ledger: %w", err)
		}
	}

	return nil
}

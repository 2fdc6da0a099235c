package ledger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

type fixedRevision string

func (f fixedRevision) Current() string { return string(f) }

func TestAppendTraceWritesValidJSONLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent_trace.jsonl")
	l := New(path, fixedRevision("abc123"), true)

	entry, err := l.AppendTrace(AppendTraceOptions{
		Files:    []FileRecord{CreateFileTrace("src/auth/user.ts", "", "export function hash(){}\n", true, nil)},
		IntentID: "INT-001",
	})
	if err != nil {
		t.Fatalf("AppendTrace failed: %v", err)
	}
	if entry.VCS.RevisionID != "abc123" {
		t.Errorf("expected revision abc123, got %s", entry.VCS.RevisionID)
	}

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("expected exactly one trace line, got %d", len(lines))
	}

	var decoded TraceEntry
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("trace line is not valid JSON: %v", err)
	}
	if decoded.IntentID != "INT-001" {
		t.Errorf("expected intentId INT-001, got %s", decoded.IntentID)
	}
	if decoded.Files[0].RelativePath != "src/auth/user.ts" {
		t.Errorf("expected relativePath src/auth/user.ts, got %s", decoded.Files[0].RelativePath)
	}
}

func TestAppendTraceUnknownRevisionWithNoProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent_trace.jsonl")
	l := New(path, nil, false)

	entry, err := l.AppendTrace(AppendTraceOptions{})
	if err != nil {
		t.Fatalf("AppendTrace failed: %v", err)
	}
	if entry.VCS.RevisionID != "unknown" {
		t.Errorf("expected unknown revision, got %s", entry.VCS.RevisionID)
	}

	lines := readLines(t, path)
	var decoded TraceEntry
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("trace line is not valid JSON: %v", err)
	}
}

func TestAppendPromptHasEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent_trace.jsonl")
	l := New(path, fixedRevision("rev"), false)

	entry, err := l.AppendPrompt(AppendPromptOptions{IntentID: "INT-001", PromptText: "do the thing"})
	if err != nil {
		t.Fatalf("AppendPrompt failed: %v", err)
	}
	if len(entry.Files) != 0 {
		t.Errorf("expected empty files, got %v", entry.Files)
	}
}

func TestAppendFileChangeClassifiesWhenBothContentsPresent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent_trace.jsonl")
	l := New(path, fixedRevision("rev"), false)

	before := ""
	after := "export function hash(){}\n"
	entry, err := l.AppendFileChange(AppendFileChangeOptions{
		IntentID: "INT-001",
		FilePath: "src/auth/user.ts",
		Notes:    "initial implementation",
		Before:   &before,
		After:    &after,
	})
	if err != nil {
		t.Fatalf("AppendFileChange failed: %v", err)
	}

	classes := entry.Files[0].MutationClasses
	found := map[string]bool{}
	for _, c := range classes {
		found[string(c)] = true
	}
	if !found["ADD_FUNCTION"] || !found["ADD_EXPORT"] {
		t.Fatalf("expected ADD_FUNCTION and ADD_EXPORT, got %v", classes)
	}

	related := entry.Files[0].Related
	if len(related) != 1 || related[0].Type != RelatedNote {
		t.Fatalf("expected a single note related entry, got %v", related)
	}
}

func TestAppendFileChangeSkipsClassificationWithoutBothContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent_trace.jsonl")
	l := New(path, fixedRevision("rev"), false)

	entry, err := l.AppendFileChange(AppendFileChangeOptions{
		FilePath: "src/auth/user.ts",
	})
	if err != nil {
		t.Fatalf("AppendFileChange failed: %v", err)
	}
	if len(entry.Files[0].MutationClasses) != 0 {
		t.Fatalf("expected no mutation classes without before/after, got %v", entry.Files[0].MutationClasses)
	}
}

func TestCreateFileTraceContentHashAndRange(t *testing.T) {
	record := CreateFileTrace("a.ts", "", "line one\nline two\n", false, nil)
	if len(record.Ranges) != 1 {
		t.Fatalf("expected one range, got %d", len(record.Ranges))
	}
	if record.Ranges[0].StartLine != 1 || record.Ranges[0].EndLine != 2 {
		t.Fatalf("expected range 1-2, got %d-%d", record.Ranges[0].StartLine, record.Ranges[0].EndLine)
	}
}

func TestCreateFileTraceEmptyAfterHasNoRange(t *testing.T) {
	record := CreateFileTrace("a.ts", "gone\n", "", false, nil)
	if len(record.Ranges) != 0 {
		t.Fatalf("expected no range for empty after content, got %v", record.Ranges)
	}
}

func TestAppendRawFillsTimestampAndRevision(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent_trace.jsonl")
	l := New(path, fixedRevision("rev-filled"), false)

	if err := l.AppendRaw(map[string]interface{}{"note": "attempted call"}); err != nil {
		t.Fatalf("AppendRaw failed: %v", err)
	}

	lines := readLines(t, path)
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if decoded["timestamp"] == nil {
		t.Error("expected timestamp to be filled")
	}
	vcs, ok := decoded["vcs"].(map[string]interface{})
	if !ok || vcs["revision_id"] != "rev-filled" {
		t.Errorf("expected filled revision_id, got %v", decoded["vcs"])
	}
}

func TestConcurrentAppendsProduceValidJSONLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent_trace.jsonl")
	l := New(path, fixedRevision("rev"), false)

	const n = 50
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := l.AppendTrace(AppendTraceOptions{})
			done <- err
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent append failed: %v", err)
		}
	}

	lines := readLines(t, path)
	if len(lines) != n {
		t.Fatalf("expected %d lines, got %d", n, len(lines))
	}
	for _, line := range lines {
		var decoded TraceEntry
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Fatalf("line did not parse as JSON: %v\n%s", err, line)
		}
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open trace file: %v", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

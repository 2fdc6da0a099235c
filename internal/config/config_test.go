package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Intent.MaxOwnedScope != 10 {
		t.Errorf("expected max_owned_scope 10, got %d", cfg.Intent.MaxOwnedScope)
	}
	if cfg.Intent.MaxConstraints != 20 {
		t.Errorf("expected max_constraints 20, got %d", cfg.Intent.MaxConstraints)
	}
	if cfg.Intent.MaxAcceptanceCriteria != 15 {
		t.Errorf("expected max_acceptance_criteria 15, got %d", cfg.Intent.MaxAcceptanceCriteria)
	}
	if cfg.Revision.VCSBinary != "git" {
		t.Errorf("expected vcs_binary git, got %s", cfg.Revision.VCSBinary)
	}

	if !strings.HasSuffix(cfg.IntentLedgerPath(), filepath.Join(".orchestration", "active_intents.yaml")) {
		t.Errorf("intent ledger path should end with .orchestration/active_intents.yaml: %s", cfg.IntentLedgerPath())
	}
	if !strings.HasSuffix(cfg.TraceLedgerPath(), filepath.Join(".orchestration", "agent_trace.jsonl")) {
		t.Errorf("trace ledger path should end with .orchestration/agent_trace.jsonl: %s", cfg.TraceLedgerPath())
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if path == "" {
		t.Error("ConfigPath returned empty string")
	}
	if !strings.HasSuffix(path, "config.toml") {
		t.Errorf("expected path ending with config.toml, got %s", path)
	}
	if !strings.Contains(path, "orchestrator") {
		t.Errorf("config path should contain orchestrator: %s", path)
	}
}

func TestOrchestratorDir(t *testing.T) {
	dir := OrchestratorDir()
	if dir == "" {
		t.Error("OrchestratorDir returned empty string")
	}
	if !strings.HasSuffix(dir, "orchestrator") {
		t.Errorf("expected dir ending with orchestrator, got %s", dir)
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.Intent.MaxOwnedScope != 10 {
		t.Errorf("expected default max_owned_scope 10, got %d", cfg.Intent.MaxOwnedScope)
	}
}

func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `
version = 1

[workspace]
root = "/tmp/myworkspace"

[intent]
ledger_path = ".orchestration/active_intents.yaml"
max_owned_scope = 12
max_constraints = 25
max_acceptance_criteria = 18

[revision]
vcs_binary = "git"
timeout_ms = 5000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Workspace.Root != "/tmp/myworkspace" {
		t.Errorf("expected workspace root /tmp/myworkspace, got %s", cfg.Workspace.Root)
	}
	if cfg.Intent.MaxOwnedScope != 12 {
		t.Errorf("expected max_owned_scope 12, got %d", cfg.Intent.MaxOwnedScope)
	}
	if cfg.Intent.MaxConstraints != 25 {
		t.Errorf("expected max_constraints 25, got %d", cfg.Intent.MaxConstraints)
	}
	if cfg.Revision.TimeoutMS != 5000 {
		t.Errorf("expected revision timeout_ms 5000, got %d", cfg.Revision.TimeoutMS)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `
[intent]
max_owned_scope = 99
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Intent.MaxOwnedScope != 99 {
		t.Errorf("expected max_owned_scope 99, got %d", cfg.Intent.MaxOwnedScope)
	}
	// Untouched fields should keep their defaults.
	if cfg.Revision.VCSBinary != "git" {
		t.Errorf("expected default vcs_binary git, got %s", cfg.Revision.VCSBinary)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `
this is not valid toml {{{
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestValidateInvalidMaxOwnedScope(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Intent.MaxOwnedScope = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero max_owned_scope")
	}

	cfg.Intent.MaxOwnedScope = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative max_owned_scope")
	}
}

func TestValidateMissingLedgerPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Intent.LedgerPath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing intent ledger path")
	}
}

func TestValidateMissingTracePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ledger.TracePath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing trace path")
	}
}

func TestValidateMissingVCSBinary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Revision.VCSBinary = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing vcs binary")
	}
}

func TestEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Workspace.Root = tmpDir
	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = filepath.Join(tmpDir, "logs", "orchestrator.log")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	if _, err := os.Stat(cfg.WorkspaceOrchestrationDir()); os.IsNotExist(err) {
		t.Error(".orchestration directory was not created")
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "logs")); os.IsNotExist(err) {
		t.Error("log directory was not created")
	}
}

func TestEnsureDirectoriesStdoutLogging(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Workspace.Root = tmpDir
	cfg.Logging.Output = "stdout"
	cfg.Logging.FilePath = ""

	if err := cfg.EnsureDirectories(); err != nil {
		t.Errorf("EnsureDirectories failed with stdout logging: %v", err)
	}
}

func TestConfigWithComments(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `
# This is a comment
[workspace]
root = "/tmp/docs" # inline comment

[intent]
max_owned_scope = 7 # another inline comment
# max_constraints = 999
max_constraints = 21
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Intent.MaxOwnedScope != 7 {
		t.Errorf("expected max_owned_scope 7, got %d", cfg.Intent.MaxOwnedScope)
	}
	if cfg.Intent.MaxConstraints != 21 {
		t.Errorf("expected max_constraints 21, got %d", cfg.Intent.MaxConstraints)
	}
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.FormatterCommand = []string{"gofmt", "-w"}

	clone := cfg.Clone()
	clone.Pipeline.FormatterCommand[0] = "mutated"

	if cfg.Pipeline.FormatterCommand[0] != "gofmt" {
		t.Error("Clone should deep-copy slice fields")
	}
}

func TestMerge(t *testing.T) {
	dst := DefaultConfig()
	src := DefaultConfig()
	src.Intent.MaxOwnedScope = 42
	src.Workspace.Root = ""

	merged := Merge(dst, src)
	if merged.Intent.MaxOwnedScope != 42 {
		t.Errorf("expected merged max_owned_scope 42, got %d", merged.Intent.MaxOwnedScope)
	}
	if merged.Workspace.Root != dst.Workspace.Root {
		t.Error("empty src field should not override dst")
	}
}

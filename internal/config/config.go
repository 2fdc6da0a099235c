// Package config handles configuration loading and validation for orchestrator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CurrentConfigVersion is the schema version written by DefaultConfig.
// Bump this and add a migration step in migration.go whenever a field's
// meaning or shape changes.
const CurrentConfigVersion = 1

// Config is the root configuration for the orchestration daemon and its
// control CLI. It is loaded from TOML (primary), JSON, or YAML, and can be
// hot-reloaded via a Loader watching the file for changes.
type Config struct {
	Version int `toml:"version" json:"version" yaml:"version"`

	Workspace WorkspaceConfig `toml:"workspace" json:"workspace" yaml:"workspace"`
	Intent    IntentConfig    `toml:"intent" json:"intent" yaml:"intent"`
	Ledger    LedgerConfig    `toml:"ledger" json:"ledger" yaml:"ledger"`
	Revision  RevisionConfig  `toml:"revision" json:"revision" yaml:"revision"`
	Approval  ApprovalConfig  `toml:"approval" json:"approval" yaml:"approval"`
	Pipeline  PipelineConfig  `toml:"pipeline" json:"pipeline" yaml:"pipeline"`
	Logging   LoggingConfig   `toml:"logging" json:"logging" yaml:"logging"`
}

// WorkspaceConfig describes the target workspace the daemon mediates
// mutations against. All orchestration state lives under
// Root/.orchestration, per the External Interfaces section of the spec.
type WorkspaceConfig struct {
	// Root is the workspace directory. Defaults to the current directory
	// at daemon startup; a relative value is resolved against the cwd.
	Root string `toml:"root" json:"root" yaml:"root"`
}

// IntentConfig configures the Intent Store's ledger location and carries
// stage-1 context-load truncation caps. The Hook Pipeline Engine does not
// read the Max* fields; its context-load stage applies fixed caps of
// 10/20/15.
type IntentConfig struct {
	// LedgerPath is relative to Workspace.Root unless absolute.
	LedgerPath string `toml:"ledger_path" json:"ledger_path" yaml:"ledger_path"`

	MaxOwnedScope         int `toml:"max_owned_scope" json:"max_owned_scope" yaml:"max_owned_scope"`
	MaxConstraints        int `toml:"max_constraints" json:"max_constraints" yaml:"max_constraints"`
	MaxAcceptanceCriteria int `toml:"max_acceptance_criteria" json:"max_acceptance_criteria" yaml:"max_acceptance_criteria"`
}

// LedgerConfig configures the append-only Trace Ledger.
type LedgerConfig struct {
	// TracePath is relative to Workspace.Root unless absolute.
	TracePath string `toml:"trace_path" json:"trace_path" yaml:"trace_path"`

	// FsyncOnAppend forces a durable flush after every append. Disabling
	// this trades durability for throughput on high-frequency tool use.
	FsyncOnAppend bool `toml:"fsync_on_append" json:"fsync_on_append" yaml:"fsync_on_append"`
}

// RevisionConfig configures the Revision Oracle's VCS shell-out.
type RevisionConfig struct {
	// VCSBinary is the executable invoked to resolve the current revision
	// and file digests. "git" by default; any binary implementing the
	// same subcommands the oracle shells out to will work.
	VCSBinary string `toml:"vcs_binary" json:"vcs_binary" yaml:"vcs_binary"`

	TimeoutMS int `toml:"timeout_ms" json:"timeout_ms" yaml:"timeout_ms"`
}

// ApprovalConfig configures the approval gate's optional signing of human
// approval decisions.
type ApprovalConfig struct {
	// SigningKeyPath, if set, is loaded as an Ed25519 private key (raw
	// seed, raw key, or OpenSSH format) and used to sign approval
	// decisions. Left empty, approvals are recorded unsigned.
	SigningKeyPath string `toml:"signing_key_path" json:"signing_key_path" yaml:"signing_key_path"`
	PublicKeyPath  string `toml:"public_key_path" json:"public_key_path" yaml:"public_key_path"`

	// TimeoutIsRejection is loaded and validated but not read by the
	// daemon: its approval prompt always treats a timeout as a denial.
	TimeoutIsRejection bool `toml:"timeout_is_rejection" json:"timeout_is_rejection" yaml:"timeout_is_rejection"`
	TimeoutMS          int  `toml:"timeout_ms" json:"timeout_ms" yaml:"timeout_ms"`
}

// PipelineConfig configures the formatter/linter invocations used by the
// post-trace stage of the Hook Pipeline Engine.
type PipelineConfig struct {
	FormatterCommand   []string `toml:"formatter_command" json:"formatter_command" yaml:"formatter_command"`
	LinterCommand      []string `toml:"linter_command" json:"linter_command" yaml:"linter_command"`
	FormatterTimeoutMS int      `toml:"formatter_timeout_ms" json:"formatter_timeout_ms" yaml:"formatter_timeout_ms"`
	LinterTimeoutMS    int      `toml:"linter_timeout_ms" json:"linter_timeout_ms" yaml:"linter_timeout_ms"`
}

// LoggingConfig mirrors internal/logging.Config's shape so it can be loaded
// straight from the same config file as everything else.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level" yaml:"level"`
	Format     string `toml:"format" json:"format" yaml:"format"`
	Output     string `toml:"output" json:"output" yaml:"output"`
	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int64  `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	Compress   bool   `toml:"compress" json:"compress" yaml:"compress"`
	AddSource  bool   `toml:"add_source" json:"add_source" yaml:"add_source"`
}

// DefaultConfig returns a Config populated with the daemon's built-in
// defaults, matching the values named in SPEC_FULL.md's Ambient Stack
// section (owned-scope/constraints/acceptance-criteria caps of 10/20/15).
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Workspace: WorkspaceConfig{
			Root: ".",
		},
		Intent: IntentConfig{
			LedgerPath:            filepath.Join(".orchestration", "active_intents.yaml"),
			MaxOwnedScope:         10,
			MaxConstraints:        20,
			MaxAcceptanceCriteria: 15,
		},
		Ledger: LedgerConfig{
			TracePath:     filepath.Join(".orchestration", "agent_trace.jsonl"),
			FsyncOnAppend: true,
		},
		Revision: RevisionConfig{
			VCSBinary: "git",
			TimeoutMS: 3000,
		},
		Approval: ApprovalConfig{
			TimeoutIsRejection: true,
			TimeoutMS:          120000,
		},
		Pipeline: PipelineConfig{
			FormatterCommand:   nil,
			LinterCommand:      nil,
			FormatterTimeoutMS: 10000,
			LinterTimeoutMS:    10000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "file",
			FilePath:   defaultLogPath(),
			MaxSizeMB:  50,
			MaxAgeDays: 30,
			MaxBackups: 5,
			Compress:   true,
			AddSource:  false,
		},
	}
}

func defaultLogPath() string {
	return filepath.Join(OrchestratorDir(), "orchestrator.log")
}

// ConfigPath returns the default path searched for a config file when none
// is given explicitly: <OrchestratorDir>/config.toml.
func ConfigPath() string {
	return filepath.Join(OrchestratorDir(), "config.toml")
}

// WorkspaceOrchestrationDir returns the workspace-relative state directory
// (<root>/.orchestration) that holds the intent ledger and trace ledger,
// per the spec's External Interfaces section.
func (c *Config) WorkspaceOrchestrationDir() string {
	root := c.Workspace.Root
	if root == "" {
		root = "."
	}
	return filepath.Join(root, ".orchestration")
}

// IntentLedgerPath resolves Intent.LedgerPath against Workspace.Root.
func (c *Config) IntentLedgerPath() string {
	return c.resolveWorkspacePath(c.Intent.LedgerPath)
}

// TraceLedgerPath resolves Ledger.TracePath against Workspace.Root.
func (c *Config) TraceLedgerPath() string {
	return c.resolveWorkspacePath(c.Ledger.TracePath)
}

func (c *Config) resolveWorkspacePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	root := c.Workspace.Root
	if root == "" {
		root = "."
	}
	return filepath.Join(root, p)
}

// EnsureDirectories creates the workspace orchestration directory and the
// directory holding the log file, if configured to write to one.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.WorkspaceOrchestrationDir(), 0o750); err != nil {
		return fmt.Errorf("create orchestration dir: %w", err)
	}
	if c.Logging.Output == "file" && c.Logging.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(c.Logging.FilePath), 0o750); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}
	return nil
}

// Clone returns a deep copy of the configuration, safe to mutate without
// affecting the receiver.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Pipeline.FormatterCommand = append([]string(nil), c.Pipeline.FormatterCommand...)
	clone.Pipeline.LinterCommand = append([]string(nil), c.Pipeline.LinterCommand...)
	return &clone
}

// ApprovalTimeout returns Approval.TimeoutMS as a time.Duration.
func (c *Config) ApprovalTimeout() time.Duration {
	return time.Duration(c.Approval.TimeoutMS) * time.Millisecond
}

// RevisionTimeout returns Revision.TimeoutMS as a time.Duration.
func (c *Config) RevisionTimeout() time.Duration {
	return time.Duration(c.Revision.TimeoutMS) * time.Millisecond
}

// Load reads and validates the configuration at path. An empty path uses
// ConfigPath(). A missing file is not an error — DefaultConfig() is
// returned instead, since the daemon can run entirely on defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	return NewLoader(path).Load()
}

// ApplyEnvOverrides overlays ORCHESTRATOR_* environment variables onto the
// configuration, taking precedence over whatever was loaded from file.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("ORCHESTRATOR_WORKSPACE_ROOT"); v != "" {
		c.Workspace.Root = v
	}
	if v := os.Getenv("ORCHESTRATOR_INTENT_LEDGER_PATH"); v != "" {
		c.Intent.LedgerPath = v
	}
	if v := os.Getenv("ORCHESTRATOR_LEDGER_TRACE_PATH"); v != "" {
		c.Ledger.TracePath = v
	}
	if v := os.Getenv("ORCHESTRATOR_REVISION_VCS_BINARY"); v != "" {
		c.Revision.VCSBinary = v
	}
	if v := os.Getenv("ORCHESTRATOR_APPROVAL_SIGNING_KEY_PATH"); v != "" {
		c.Approval.SigningKeyPath = v
	}
	if v := os.Getenv("ORCHESTRATOR_LOGGING_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ORCHESTRATOR_LOGGING_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("ORCHESTRATOR_LOGGING_FILE_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

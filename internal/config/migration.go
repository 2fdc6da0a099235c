// Package config handles configuration loading and validation for orchestrator.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// MigrationResult contains the result of a configuration migration.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Backup      string
	Changes     []string
	Warnings    []string
}

// MigrateConfig migrates a configuration from an older schema version to
// CurrentConfigVersion, backing up the original file first.
//
// There is only one schema version so far; this exists so a future
// version bump has a seam to land in without touching Load/Loader.
func MigrateConfig(cfg *Config, configPath string) (*MigrationResult, error) {
	if cfg.Version >= CurrentConfigVersion {
		return nil, nil
	}

	result := &MigrationResult{
		FromVersion: cfg.Version,
		ToVersion:   CurrentConfigVersion,
	}

	if configPath != "" {
		backup, err := backupConfig(configPath)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("could not create backup: %v", err))
		} else {
			result.Backup = backup
		}
	}

	for cfg.Version < CurrentConfigVersion {
		changes, warnings, err := applyMigration(cfg)
		if err != nil {
			return result, fmt.Errorf("migration from v%d to v%d failed: %w", cfg.Version, cfg.Version+1, err)
		}
		result.Changes = append(result.Changes, changes...)
		result.Warnings = append(result.Warnings, warnings...)
	}

	return result, nil
}

func applyMigration(cfg *Config) (changes []string, warnings []string, err error) {
	return nil, nil, fmt.Errorf("unknown version %d", cfg.Version)
}

// backupConfig creates a timestamped backup of the config file.
func backupConfig(configPath string) (string, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return "", nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	backupPath := configPath + ".backup-" + timestamp

	if err := os.WriteFile(backupPath, data, 0600); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}

	return backupPath, nil
}

// SaveConfig saves the configuration to a file, picking an encoding by
// extension (TOML by default).
func SaveConfig(cfg *Config, path string) error {
	var data []byte
	var err error

	switch filepath.Ext(path) {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = encodeToTOML(cfg)
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

func encodeToTOML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("# orchestrator configuration\n# schema version %d\n\n", CurrentConfigVersion))
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GetMigrationHistory returns the migration history stored alongside the
// daemon's own config, if any.
func GetMigrationHistory() ([]MigrationResult, error) {
	historyPath := filepath.Join(OrchestratorDir(), "migration_history.json")

	data, err := os.ReadFile(historyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read migration history: %w", err)
	}

	var history []MigrationResult
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("parse migration history: %w", err)
	}

	return history, nil
}

// SaveMigrationHistory appends a migration result to the history file.
func SaveMigrationHistory(result *MigrationResult) error {
	historyPath := filepath.Join(OrchestratorDir(), "migration_history.json")

	history, err := GetMigrationHistory()
	if err != nil {
		history = nil
	}
	history = append(history, *result)

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode migration history: %w", err)
	}

	dir := filepath.Dir(historyPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	if err := os.WriteFile(historyPath, data, 0600); err != nil {
		return fmt.Errorf("write migration history: %w", err)
	}

	return nil
}

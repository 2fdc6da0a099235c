// Package config handles configuration loading and validation for orchestrator.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading, watching, and hot-reloading.
type Loader struct {
	path     string
	config   *Config
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	onChange []func(*Config)
	ctx      context.Context
	cancel   context.CancelFunc
	errChan  chan error
}

// NewLoader creates a new configuration loader.
func NewLoader(path string) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		path:    path,
		errChan: make(chan error, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Load reads and parses the configuration file.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg, err := loadConfigFromFile(l.path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if cfg.Version < CurrentConfigVersion {
		result, err := MigrateConfig(cfg, l.path)
		if err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		if result != nil {
			_ = SaveMigrationHistory(result)
		}
	}

	l.config = cfg
	return cfg, nil
}

// Config returns the current configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// Watch starts watching the configuration file for changes. When changes
// are detected, the configuration is reloaded and registered callbacks are
// invoked.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	l.watcher = watcher

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go l.watchLoop()

	return nil
}

// watchLoop handles file system events.
func (l *Loader) watchLoop() {
	var debounceTimer *time.Timer
	debounceDelay := 100 * time.Millisecond

	for {
		select {
		case <-l.ctx.Done():
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filepath.Base(l.path) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				l.reload()
			})

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			select {
			case l.errChan <- err:
			default:
			}
		}
	}
}

// reload attempts to reload the configuration.
func (l *Loader) reload() {
	newCfg, err := loadConfigFromFile(l.path)
	if err != nil {
		select {
		case l.errChan <- fmt.Errorf("reload config: %w", err):
		default:
		}
		return
	}

	newCfg.ApplyEnvOverrides()

	if err := newCfg.Validate(); err != nil {
		select {
		case l.errChan <- fmt.Errorf("validate new config: %w", err):
		default:
		}
		return
	}

	l.mu.Lock()
	l.config = newCfg
	l.mu.Unlock()

	for _, cb := range l.onChange {
		cb(newCfg)
	}
}

// OnChange registers a callback to be invoked when the configuration changes.
func (l *Loader) OnChange(cb func(*Config)) {
	l.onChange = append(l.onChange, cb)
}

// Errors returns a channel for receiving errors that occur during watching.
func (l *Loader) Errors() <-chan error {
	return l.errChan
}

// Close stops the watcher and releases resources.
func (l *Loader) Close() error {
	l.cancel()
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// loadConfigFromFile reads and parses a config file based on its extension.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()

	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if err := autoDetectAndParse(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	return cfg, nil
}

// autoDetectAndParse attempts to parse the config in multiple formats.
func autoDetectAndParse(data []byte, cfg *Config) error {
	if _, err := toml.Decode(string(data), cfg); err == nil {
		return nil
	}
	if err := json.Unmarshal(data, cfg); err == nil {
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err == nil {
		return nil
	}
	return fmt.Errorf("unable to parse config file (tried TOML, JSON, YAML)")
}

// LoadFromEnv creates a configuration primarily from environment variables.
// Useful for containerized deployments where no config file is mounted.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()
	return cfg
}

// LoadOrCreate loads the configuration from the specified path, creating a
// default configuration file if it doesn't exist.
func LoadOrCreate(path string) (*Config, bool, error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := SaveConfig(cfg, path); err != nil {
			return nil, false, fmt.Errorf("create default config: %w", err)
		}
		return cfg, true, nil
	}

	loader := NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		return nil, false, err
	}

	return cfg, false, nil
}

// Merge merges two configurations, with src overriding dst for any
// non-zero-valued field.
func Merge(dst, src *Config) *Config {
	result := dst.Clone()

	if src.Version > 0 {
		result.Version = src.Version
	}

	if src.Workspace.Root != "" {
		result.Workspace.Root = src.Workspace.Root
	}

	if src.Intent.LedgerPath != "" {
		result.Intent.LedgerPath = src.Intent.LedgerPath
	}
	if src.Intent.MaxOwnedScope > 0 {
		result.Intent.MaxOwnedScope = src.Intent.MaxOwnedScope
	}
	if src.Intent.MaxConstraints > 0 {
		result.Intent.MaxConstraints = src.Intent.MaxConstraints
	}
	if src.Intent.MaxAcceptanceCriteria > 0 {
		result.Intent.MaxAcceptanceCriteria = src.Intent.MaxAcceptanceCriteria
	}

	if src.Ledger.TracePath != "" {
		result.Ledger.TracePath = src.Ledger.TracePath
	}

	if src.Revision.VCSBinary != "" {
		result.Revision.VCSBinary = src.Revision.VCSBinary
	}
	if src.Revision.TimeoutMS > 0 {
		result.Revision.TimeoutMS = src.Revision.TimeoutMS
	}

	if src.Approval.SigningKeyPath != "" {
		result.Approval.SigningKeyPath = src.Approval.SigningKeyPath
	}
	if src.Approval.PublicKeyPath != "" {
		result.Approval.PublicKeyPath = src.Approval.PublicKeyPath
	}
	if src.Approval.TimeoutMS > 0 {
		result.Approval.TimeoutMS = src.Approval.TimeoutMS
	}

	if len(src.Pipeline.FormatterCommand) > 0 {
		result.Pipeline.FormatterCommand = src.Pipeline.FormatterCommand
	}
	if len(src.Pipeline.LinterCommand) > 0 {
		result.Pipeline.LinterCommand = src.Pipeline.LinterCommand
	}
	if src.Pipeline.FormatterTimeoutMS > 0 {
		result.Pipeline.FormatterTimeoutMS = src.Pipeline.FormatterTimeoutMS
	}
	if src.Pipeline.LinterTimeoutMS > 0 {
		result.Pipeline.LinterTimeoutMS = src.Pipeline.LinterTimeoutMS
	}

	if src.Logging.Level != "" {
		result.Logging.Level = src.Logging.Level
	}
	if src.Logging.Format != "" {
		result.Logging.Format = src.Logging.Format
	}
	if src.Logging.Output != "" {
		result.Logging.Output = src.Logging.Output
	}
	if src.Logging.FilePath != "" {
		result.Logging.FilePath = src.Logging.FilePath
	}
	if src.Logging.MaxSizeMB > 0 {
		result.Logging.MaxSizeMB = src.Logging.MaxSizeMB
	}
	if src.Logging.MaxBackups > 0 {
		result.Logging.MaxBackups = src.Logging.MaxBackups
	}
	if src.Logging.MaxAgeDays > 0 {
		result.Logging.MaxAgeDays = src.Logging.MaxAgeDays
	}

	return result
}

// ConfigWatcher provides a simple interface for watching config changes.
type ConfigWatcher struct {
	loader    *Loader
	callbacks []func(old, new *Config)
}

// NewConfigWatcher creates a new config watcher.
func NewConfigWatcher(path string) (*ConfigWatcher, error) {
	loader := NewLoader(path)
	if _, err := loader.Load(); err != nil {
		return nil, err
	}

	return &ConfigWatcher{loader: loader}, nil
}

// Start begins watching for configuration changes.
func (w *ConfigWatcher) Start() error {
	oldCfg := w.loader.Config()

	w.loader.OnChange(func(newCfg *Config) {
		for _, cb := range w.callbacks {
			cb(oldCfg, newCfg)
		}
		oldCfg = newCfg
	})

	return w.loader.Watch()
}

// OnChange registers a callback for config changes, receiving both the old
// and new configurations.
func (w *ConfigWatcher) OnChange(cb func(old, new *Config)) {
	w.callbacks = append(w.callbacks, cb)
}

// Config returns the current configuration.
func (w *ConfigWatcher) Config() *Config {
	return w.loader.Config()
}

// Stop stops watching for changes.
func (w *ConfigWatcher) Stop() error {
	return w.loader.Close()
}

// Reload forces a reload of the configuration.
func (w *ConfigWatcher) Reload() error {
	_, err := w.loader.Load()
	return err
}

// Package config handles configuration loading and validation for orchestrator.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// OrchestratorDir returns the platform-specific directory holding the
// daemon's own config file and default log output — distinct from the
// per-workspace .orchestration directory, which lives inside whatever
// workspace is being mediated.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/orchestrator/
//   - Linux:   ~/.config/orchestrator/ (XDG_CONFIG_HOME if set)
//   - Windows: %APPDATA%\orchestrator\
//
// Any platform other than macOS and Windows uses the Linux layout.
func OrchestratorDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDir()
	case "windows":
		return windowsDir()
	default:
		return linuxDir()
	}
}

func macOSDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, "Library", "Application Support", "orchestrator")
}

func linuxDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "orchestrator")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(string(os.PathSeparator), "tmp", "orchestrator")
	}
	return filepath.Join(home, ".config", "orchestrator")
}

func windowsDir() string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "orchestrator")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "AppData", "Roaming", "orchestrator")
}

// SupportedConfigFormats returns the list of supported config file formats,
// in the order Load() prefers them when the extension is ambiguous.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile searches for a config file in standard locations, in
// order: the current directory, then OrchestratorDir(). Returns the first
// match, or "" if none is found.
func FindConfigFile() string {
	searchDirs := []string{".", OrchestratorDir()}

	for _, dir := range searchDirs {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

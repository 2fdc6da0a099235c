// orchestratorctl is a thin, read-only control client for orchestratord.
// It never writes to the intent or trace ledgers — it only reports on the
// state orchestratord itself owns.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"orchestrator/internal/config"
	"orchestrator/internal/intent"
	"orchestrator/internal/ledger"
	"orchestrator/internal/schemacheck"
)

var configPath = flag.String("config", "", "path to config file")

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)

	switch cmd {
	case "status":
		cmdStatus()
	case "intent":
		cmdIntent()
	case "trace":
		cmdTrace()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `orchestratorctl - Read-only control client for orchestratord

Usage: orchestratorctl [options] <command> [args]

Commands:
  status             Show workspace orchestration status
  intent status      Show the active intent
  intent list        List every declared intent
  trace show [n]     Print the last n trace entries (default: all)
  help               Show this help message

Options:
  -config <path>     Path to config file (default: config.toml in the platform config directory)`)
}

func loadConfig() *config.Config {
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func cmdStatus() {
	cfg := loadConfig()

	fmt.Println("=== orchestratord Status ===")
	fmt.Println()

	fmt.Println("Workspace:")
	fmt.Printf("  root: %s\n", cfg.Workspace.Root)
	fmt.Printf("  orchestration dir: %s\n", cfg.WorkspaceOrchestrationDir())
	fmt.Println()

	fmt.Println("Intent ledger:")
	if all, err := readIntents(cfg); err != nil {
		fmt.Printf("  %v\n", err)
	} else {
		pending, inProgress, locked, completed := 0, 0, 0, 0
		for _, it := range all {
			switch it.Status {
			case intent.StatusPending:
				pending++
			case intent.StatusInProgress:
				inProgress++
			case intent.StatusLocked:
				locked++
			case intent.StatusCompleted:
				completed++
			}
		}
		fmt.Printf("  %d total: %d pending, %d in progress, %d locked, %d completed\n",
			len(all), pending, inProgress, locked, completed)
	}
	fmt.Println()

	fmt.Println("Trace ledger:")
	if info, err := os.Stat(cfg.TraceLedgerPath()); err != nil {
		fmt.Printf("  not found: %s\n", cfg.TraceLedgerPath())
	} else {
		fmt.Printf("  %s (%d bytes)\n", cfg.TraceLedgerPath(), info.Size())
	}

	fmt.Println()
	fmt.Println("Approval signing:")
	if cfg.Approval.SigningKeyPath == "" {
		fmt.Println("  unsigned (no signing_key_path configured)")
	} else if _, err := os.Stat(cfg.Approval.SigningKeyPath); os.IsNotExist(err) {
		fmt.Printf("  NOT FOUND: %s\n", cfg.Approval.SigningKeyPath)
	} else {
		fmt.Printf("  key: %s\n", cfg.Approval.SigningKeyPath)
	}
}

func readIntents(cfg *config.Config) ([]intent.Intent, error) {
	store := intent.NewStore(cfg.IntentLedgerPath(), nil)
	all, err := store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading intent ledger: %w", err)
	}
	return all, nil
}

func cmdIntent() {
	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: orchestratorctl intent <status|list>")
		os.Exit(1)
	}

	cfg := loadConfig()
	store := intent.NewStore(cfg.IntentLedgerPath(), nil)

	switch flag.Arg(1) {
	case "status":
		activeID, err := store.ActiveIntentID()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if activeID == "" {
			fmt.Println("No active intent set.")
			return
		}
		it, err := store.LoadOne(activeID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		data, _ := yaml.Marshal(it)
		fmt.Print(string(data))
	case "list":
		all, err := store.LoadAll()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%-12s %-14s %s\n", "ID", "STATUS", "DESCRIPTION")
		fmt.Println(strings.Repeat("-", 60))
		for _, it := range all {
			fmt.Printf("%-12s %-14s %s\n", it.ID, it.Status, it.Description)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown intent subcommand: %s\n", flag.Arg(1))
		os.Exit(1)
	}
}

func cmdTrace() {
	if flag.NArg() < 2 || flag.Arg(1) != "show" {
		fmt.Fprintln(os.Stderr, "Usage: orchestratorctl trace show [n]")
		os.Exit(1)
	}

	cfg := loadConfig()

	limit := 0
	if flag.NArg() >= 3 {
		fmt.Sscanf(flag.Arg(2), "%d", &limit)
	}

	entries, err := readTraceEntries(cfg.TraceLedgerPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading trace ledger: %v\n", err)
		os.Exit(1)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	if len(entries) == 0 {
		fmt.Println("Trace ledger is empty.")
		return
	}

	for _, entry := range entries {
		fmt.Printf("[%s] %s intent=%s revision=%s\n", entry.Timestamp, entry.ID, entry.IntentID, entry.VCS.RevisionID)
		for _, fr := range entry.Files {
			fmt.Printf("    %s %v\n", fr.RelativePath, fr.MutationClasses)
		}
	}
}

func readTraceEntries(path string) ([]ledger.TraceEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	validator, err := schemacheck.New()
	if err != nil {
		return nil, fmt.Errorf("compile schemas: %w", err)
	}

	var entries []ledger.TraceEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := validator.ValidateTraceEntryJSON(line); err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping malformed trace line: %v\n", err)
			continue
		}
		var entry ledger.TraceEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}

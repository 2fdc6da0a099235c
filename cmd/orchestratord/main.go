// orchestratord mediates mutating tool actions from an autonomous coding
// agent against a source workspace.
//
//	orchestratord init                 Scaffold .orchestration/ for this workspace
//	orchestratord intent list          List every declared intent
//	orchestratord intent show <id>     Show one intent
//	orchestratord intent create <file> Append an intent from a YAML/JSON fragment
//	orchestratord intent transition <id> <status>
//	orchestratord run                  Drive a ToolEvent through the pipeline
//	orchestratord trace tail           Follow the trace ledger
//	orchestratord trace show           Print every trace entry
//	orchestratord verify               Check ledger integrity
package main

import (
	"bufio"
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"orchestrator/internal/approval"
	"orchestrator/internal/config"
	"orchestrator/internal/intent"
	"orchestrator/internal/ledger"
	"orchestrator/internal/lockstore"
	"orchestrator/internal/logging"
	"orchestrator/internal/pipeline"
	"orchestrator/internal/revision"
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
	case "init":
		cmdInit()
	case "intent":
		cmdIntent()
	case "run":
		cmdRun()
	case "trace":
		cmdTrace()
	case "verify":
		cmdVerify()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`orchestratord - Intent-Driven Orchestration Middleware

USAGE:
    orchestratord <command> [options]

COMMANDS:
    init                         Scaffold .orchestration/ for this workspace
    intent list                  List every declared intent
    intent show <id>             Show one intent
    intent create <file>         Append an intent from a YAML/JSON fragment
    intent transition <id> <status> [-admin]
                                 Move an intent to PENDING/IN_PROGRESS/LOCKED/COMPLETED
    run [-file path] [-executor noop|shell]
                                 Drive a ToolEvent (read from -file or stdin) through
                                 the pipeline and print the resulting ToolResult
    trace tail                   Follow the trace ledger as it grows
    trace show                   Print every trace entry
    verify                       Validate the intent ledger and trace ledger shapes
    help                         Show this help message

OPTIONS:
    -config <path>   Path to config file (default: config.toml in the platform config directory)`)
}

func loadConfig() *config.Config {
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if logger, err := logging.New(loggingConfigFrom(cfg.Logging)); err == nil {
		logging.SetDefault(logger)
	}

	return cfg
}

// loggingConfigFrom adapts the TOML/JSON/YAML-friendly config.LoggingConfig
// (plain strings throughout) into logging.Config's typed Level/Format.
func loggingConfigFrom(c config.LoggingConfig) *logging.Config {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	format := logging.FormatText
	if strings.EqualFold(c.Format, "json") {
		format = logging.FormatJSON
	}
	return &logging.Config{
		Level:      level,
		Format:     format,
		Output:     c.Output,
		FilePath:   c.FilePath,
		MaxSize:    c.MaxSizeMB,
		MaxAge:     c.MaxAgeDays,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
		AddSource:  c.AddSource,
		Component:  "orchestratord",
	}
}

func cmdInit() {
	cfg := loadConfig()

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating orchestration directory: %v\n", err)
		os.Exit(1)
	}

	ledgerPath := cfg.IntentLedgerPath()
	if _, err := os.Stat(ledgerPath); os.IsNotExist(err) {
		empty := intent.LedgerFile{Intents: []intent.Intent{}}
		data, err := yaml.Marshal(&empty)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding empty ledger: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(ledgerPath, data, 0o640); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing intent ledger: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created empty intent ledger: %s\n", ledgerPath)
	} else {
		fmt.Printf("Intent ledger already exists: %s\n", ledgerPath)
	}

	tracePath := cfg.TraceLedgerPath()
	if _, err := os.Stat(tracePath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(tracePath), 0o750); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating trace ledger directory: %v\n", err)
			os.Exit(1)
		}
		if f, err := os.OpenFile(tracePath, os.O_CREATE|os.O_WRONLY, 0o640); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating trace ledger: %v\n", err)
			os.Exit(1)
		} else {
			f.Close()
		}
		fmt.Printf("Created empty trace ledger: %s\n", tracePath)
	}

	if cfg.Approval.SigningKeyPath != "" {
		if _, err := os.Stat(cfg.Approval.SigningKeyPath); os.IsNotExist(err) {
			fmt.Println("Generating Ed25519 approval signing key...")
			if err := generateApprovalKey(cfg.Approval.SigningKeyPath); err != nil {
				fmt.Fprintf(os.Stderr, "Error generating signing key: %v\n", err)
				os.Exit(1)
			}
		}
	}

	configFilePath := *configPath
	if configFilePath == "" {
		configFilePath = config.ConfigPath()
	}
	if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
		if err := config.SaveConfig(cfg, configFilePath); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing default config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default config: %s\n", configFilePath)
	}

	logging.Info("orchestratord initialized", "workspace", cfg.Workspace.Root)

	fmt.Println()
	fmt.Println("orchestratord initialized!")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. orchestratord intent create <file>   # declare your first intent")
	fmt.Println("  2. orchestratord run                    # drive a tool event through the pipeline")
	fmt.Println("  3. orchestratord trace show              # inspect what was recorded")
}

func generateApprovalKey(path string) error {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, seed, 0o600)
}

func cmdIntent() {
	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: orchestratord intent <list|show|create|transition> [args]")
		os.Exit(1)
	}

	cfg := loadConfig()
	store := intent.NewStore(cfg.IntentLedgerPath(), slog.Default())

	switch flag.Arg(1) {
	case "list":
		intentList(store)
	case "show":
		if flag.NArg() < 3 {
			fmt.Fprintln(os.Stderr, "Usage: orchestratord intent show <id>")
			os.Exit(1)
		}
		intentShow(store, flag.Arg(2))
	case "create":
		if flag.NArg() < 3 {
			fmt.Fprintln(os.Stderr, "Usage: orchestratord intent create <file>")
			os.Exit(1)
		}
		intentCreate(store, flag.Arg(2))
	case "transition":
		transitionFlags := flag.NewFlagSet("transition", flag.ExitOnError)
		admin := transitionFlags.Bool("admin", false, "allow the LOCKED -> IN_PROGRESS administrative override")
		transitionFlags.Parse(flag.Args()[2:])
		if transitionFlags.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: orchestratord intent transition <id> <status> [-admin]")
			os.Exit(1)
		}
		intentTransition(store, transitionFlags.Arg(0), transitionFlags.Arg(1), *admin)
	default:
		fmt.Fprintf(os.Stderr, "Unknown intent subcommand: %s\n", flag.Arg(1))
		os.Exit(1)
	}
}

func intentList(store *intent.Store) {
	all, err := store.LoadAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading intents: %v\n", err)
		os.Exit(1)
	}
	if len(all) == 0 {
		fmt.Println("No intents declared.")
		return
	}
	fmt.Printf("%-12s %-14s %s\n", "ID", "STATUS", "DESCRIPTION")
	fmt.Println(strings.Repeat("-", 60))
	for _, it := range all {
		fmt.Printf("%-12s %-14s %s\n", it.ID, it.Status, it.Description)
	}
}

func intentShow(store *intent.Store, id string) {
	it, err := store.LoadOne(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	data, _ := yaml.Marshal(it)
	fmt.Print(string(data))
}

func intentCreate(store *intent.Store, fragmentPath string) {
	data, err := os.ReadFile(fragmentPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", fragmentPath, err)
		os.Exit(1)
	}

	var it intent.Intent
	if err := yaml.Unmarshal(data, &it); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing intent fragment: %v\n", err)
		os.Exit(1)
	}
	if it.ID == "" {
		fmt.Fprintln(os.Stderr, "Error: intent fragment must set an id")
		os.Exit(1)
	}
	if it.Status == "" {
		it.Status = intent.StatusPending
	}

	err = store.Update(func(lf *intent.LedgerFile) error {
		if lf.Find(it.ID) != nil {
			return fmt.Errorf("intent %q already exists", it.ID)
		}
		lf.Intents = append(lf.Intents, it)
		if lf.ActiveIntent == "" {
			lf.ActiveIntent = it.ID
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating intent: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created intent %s (%s)\n", it.ID, it.Status)
}

func intentTransition(store *intent.Store, id, status string, admin bool) {
	machine := intent.NewStateMachine(store)
	target := intent.Status(strings.ToUpper(status))
	if !target.Valid() {
		fmt.Fprintf(os.Stderr, "Error: %q is not a legal status\n", status)
		os.Exit(1)
	}
	if err := machine.Transition(id, target, admin); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Intent %s is now %s\n", id, target)
}

// shellExecutor runs a "run_command" event's Payload.Command through
// "sh -c", and for any other tool name writes Payload.After to FilePath. It
// exists for manual testing and integration tests, not production use.
func shellExecutor(workspaceRoot string) pipeline.Executor {
	return func(event *pipeline.ToolEvent) (*pipeline.ToolResult, error) {
		switch event.ToolName {
		case "run_command":
			cmd := exec.Command("sh", "-c", event.Payload.Command)
			cmd.Dir = workspaceRoot
			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr
			if err := cmd.Run(); err != nil {
				return &pipeline.ToolResult{Success: false, Message: stderr.String()}, nil
			}
			return &pipeline.ToolResult{Success: true, Message: stdout.String()}, nil
		default:
			path := event.Payload.FilePath
			if !filepath.IsAbs(path) {
				path = filepath.Join(workspaceRoot, path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
				return nil, err
			}
			if err := os.WriteFile(path, []byte(event.Payload.After), 0o640); err != nil {
				return nil, err
			}
			return &pipeline.ToolResult{Success: true}, nil
		}
	}
}

func noopExecutor() pipeline.Executor {
	return func(event *pipeline.ToolEvent) (*pipeline.ToolResult, error) {
		return &pipeline.ToolResult{Success: true, Message: "noop"}, nil
	}
}

func cmdRun() {
	runFlags := flag.NewFlagSet("run", flag.ExitOnError)
	filePath := runFlags.String("file", "", "path to a ToolEvent JSON document (default: stdin)")
	executorName := runFlags.String("executor", "noop", "executor to run the event through: noop, shell")
	watch := runFlags.Bool("watch", false, "keep running, driving one ToolEvent per stdin line through the pipeline, reloading config on change")
	runFlags.Parse(flag.Args()[1:])

	cfg := loadConfig()

	engine, err := wirePipeline(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error wiring pipeline: %v\n", err)
		os.Exit(1)
	}

	var executor pipeline.Executor
	switch *executorName {
	case "shell":
		executor = shellExecutor(cfg.Workspace.Root)
	default:
		executor = noopExecutor()
	}

	if *watch {
		runWatch(cfg, engine, executor)
		return
	}

	var raw []byte
	if *filePath != "" {
		raw, err = os.ReadFile(*filePath)
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading ToolEvent: %v\n", err)
		os.Exit(1)
	}

	var event pipeline.ToolEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing ToolEvent: %v\n", err)
		os.Exit(1)
	}

	result := engine.Execute(context.Background(), &event, executor)

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))

	logPipelineExecute(cfg, event, result)

	if !result.Success {
		os.Exit(1)
	}
}

// runWatch drives one ToolEvent per newline-delimited JSON line read from
// stdin through engine, for as long as the agent session keeps writing
// events. A background config.Loader watch logs each config file change;
// the running pipeline keeps its settings until the daemon restarts.
func runWatch(cfg *config.Config, engine *pipeline.Engine, executor pipeline.Executor) {
	watchPath := *configPath
	if watchPath == "" {
		watchPath = config.ConfigPath()
	}
	loader := config.NewLoader(watchPath)
	if _, err := loader.Load(); err == nil {
		loader.OnChange(func(newCfg *config.Config) {
			logging.Info("config changed, effective on next daemon restart",
				"max_owned_scope", newCfg.Intent.MaxOwnedScope,
				"formatter_command", newCfg.Pipeline.FormatterCommand)
		})
		if err := loader.Watch(); err != nil {
			logging.Warn("config watch disabled", "error", err)
		} else {
			defer loader.Close()
		}
	}

	fmt.Fprintln(os.Stderr, "watching stdin for ToolEvent lines (Ctrl-D to stop)...")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event pipeline.ToolEvent
		if err := json.Unmarshal(line, &event); err != nil {
			fmt.Fprintf(os.Stderr, "skipping malformed ToolEvent line: %v\n", err)
			continue
		}
		result := engine.Execute(context.Background(), &event, executor)
		out, _ := json.Marshal(result)
		fmt.Println(string(out))
		logPipelineExecute(cfg, event, result)
	}
}

// logPipelineExecute appends a security-audit record of the decision,
// independent of the CLI's own stdout report and the trace ledger entry
// PostTrace may have already written.
func logPipelineExecute(cfg *config.Config, event pipeline.ToolEvent, result pipeline.ExecuteResult) {
	audit, err := logging.NewAuditLogger(&logging.AuditLoggerConfig{
		FilePath:   filepath.Join(cfg.WorkspaceOrchestrationDir(), "audit.log"),
		MaxSize:    50,
		MaxAge:     90,
		MaxBackups: 10,
		Compress:   true,
		Component:  "orchestratord",
	})
	if err != nil {
		logging.Error("could not open audit log", "error", err)
		return
	}
	defer audit.Close()

	if err := audit.LogPipelineExecute(context.Background(), event.IntentID, event.ToolName, result.Success, result.Reason); err != nil {
		logging.Error("could not write audit record", "error", err)
	}
}

func wirePipeline(cfg *config.Config) (*pipeline.Engine, error) {
	store := intent.NewStore(cfg.IntentLedgerPath(), slog.Default())
	machine := intent.NewStateMachine(store)

	oracle := revision.New(cfg, cfg.Workspace.Root)
	trace := ledger.New(cfg.TraceLedgerPath(), oracle, cfg.Ledger.FsyncOnAppend)

	lockDBPath := filepath.Join(cfg.WorkspaceOrchestrationDir(), "locks.db")
	lockDir := filepath.Join(cfg.WorkspaceOrchestrationDir(), "locks")
	locks, err := lockstore.Open(lockDBPath, lockDir, "orchestratord")
	if err != nil {
		return nil, fmt.Errorf("open lockstore: %w", err)
	}

	gate, err := approval.NewGate(stdinPrompter{timeout: cfg.ApprovalTimeout()}, cfg.Approval.SigningKeyPath)
	if err != nil {
		return nil, fmt.Errorf("build approval gate: %w", err)
	}
	var approver pipeline.Approver = gate

	formatter := commandInvokerFromConfig(cfg.Pipeline.FormatterCommand, cfg.Pipeline.FormatterTimeoutMS)
	linter := commandInvokerFromConfig(cfg.Pipeline.LinterCommand, cfg.Pipeline.LinterTimeoutMS)

	hooks := pipeline.NewStandardHooks(store, machine, trace, oracle, locks, approver, formatter, linter)
	if err := hooks.SetSyncPersistence(locks, "default"); err != nil {
		return nil, fmt.Errorf("load sync state: %w", err)
	}

	return pipeline.NewEngine(hooks, cfg.Workspace.Root), nil
}

// stdinPrompter asks on stdin/stdout for approval of destructive commands,
// treating a timed-out or EOF read as a denial.
type stdinPrompter struct {
	timeout time.Duration
}

func (p stdinPrompter) Prompt(message string) bool {
	fmt.Printf("Approve destructive command? [y/N] %s\n> ", message)
	answerCh := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		answerCh <- strings.TrimSpace(line)
	}()

	timeout := p.timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	select {
	case answer := <-answerCh:
		return strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
	case <-time.After(timeout):
		fmt.Println("approval timed out, denying")
		return false
	}
}

// commandInvoker runs a configured formatter or linter command template
// against a file, substituting the literal token "{path}" for the target
// path wherever it appears, or appending the path as a final argument if
// the token is absent.
type commandInvoker struct {
	argv    []string
	timeout time.Duration
}

// commandInvokerFromConfig returns nil when no command template is
// configured, matching StandardHooks' nil-means-skip contract.
func commandInvokerFromConfig(argv []string, timeoutMS int) pipeline.ProcessInvoker {
	if len(argv) == 0 {
		return nil
	}
	timeout := time.Duration(timeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &commandInvoker{argv: argv, timeout: timeout}
}

func (c *commandInvoker) Invoke(path string) (stdout, stderr string, err error) {
	args := make([]string, len(c.argv))
	substituted := false
	for i, a := range c.argv {
		if strings.Contains(a, "{path}") {
			args[i] = strings.ReplaceAll(a, "{path}", path)
			substituted = true
		} else {
			args[i] = a
		}
	}
	if !substituted {
		args = append(args, path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

func cmdTrace() {
	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: orchestratord trace <tail|show>")
		os.Exit(1)
	}

	cfg := loadConfig()
	tracePath := cfg.TraceLedgerPath()

	switch flag.Arg(1) {
	case "show":
		traceShow(tracePath)
	case "tail":
		traceTail(tracePath)
	default:
		fmt.Fprintf(os.Stderr, "Unknown trace subcommand: %s\n", flag.Arg(1))
		os.Exit(1)
	}
}

func traceShow(path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening trace ledger: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	count := 0
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var entry ledger.TraceEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			fmt.Fprintf(os.Stderr, "malformed trace line: %v\n", err)
			continue
		}
		printTraceEntry(entry)
		count++
	}
	if count == 0 {
		fmt.Println("Trace ledger is empty.")
	}
}

func printTraceEntry(entry ledger.TraceEntry) {
	fmt.Printf("[%s] %s intent=%s revision=%s\n", entry.Timestamp, entry.ID, entry.IntentID, entry.VCS.RevisionID)
	for _, fr := range entry.Files {
		fmt.Printf("    %s %v\n", fr.RelativePath, fr.MutationClasses)
	}
}

func traceTail(path string) {
	fmt.Printf("Following %s (Ctrl-C to stop)...\n", path)
	var offset int64
	if info, err := os.Stat(path); err == nil {
		offset = info.Size()
	}
	for {
		f, err := os.Open(path)
		if err != nil {
			time.Sleep(time.Second)
			continue
		}
		info, err := f.Stat()
		if err == nil && info.Size() > offset {
			f.Seek(offset, io.SeekStart)
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				var entry ledger.TraceEntry
				if err := json.Unmarshal(scanner.Bytes(), &entry); err == nil {
					printTraceEntry(entry)
				}
			}
			offset = info.Size()
		}
		f.Close()
		time.Sleep(time.Second)
	}
}

func cmdVerify() {
	cfg := loadConfig()

	validator, err := schemacheck.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error compiling schemas: %v\n", err)
		os.Exit(1)
	}

	exitCode := 0

	ledgerData, err := os.ReadFile(cfg.IntentLedgerPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading intent ledger: %v\n", err)
		exitCode = 1
	} else {
		var lf intent.LedgerFile
		if err := yaml.Unmarshal(ledgerData, &lf); err != nil {
			fmt.Fprintf(os.Stderr, "Intent ledger is not valid YAML: %v\n", err)
			exitCode = 1
		} else if err := validator.ValidateIntentLedger(&lf); err != nil {
			fmt.Fprintf(os.Stderr, "Intent ledger failed schema validation: %v\n", err)
			exitCode = 1
		} else {
			fmt.Printf("Intent ledger OK (%d intents)\n", len(lf.Intents))
		}
	}

	f, err := os.Open(cfg.TraceLedgerPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening trace ledger: %v\n", err)
		exitCode = 1
	} else {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
		lineNo, bad := 0, 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if line == "" {
				continue
			}
			if err := validator.ValidateTraceEntryJSON([]byte(line)); err != nil {
				fmt.Fprintf(os.Stderr, "trace line %d failed schema validation: %v\n", lineNo, err)
				bad++
			}
		}
		if bad > 0 {
			exitCode = 1
		}
		fmt.Printf("Trace ledger OK (%d lines, %d invalid)\n", lineNo, bad)
	}

	os.Exit(exitCode)
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	luzidos "github.com/Luzidos/Utils"
	"github.com/fatih/color"
)

// CLI configuration
type Config struct {
	DataDir    string
	ConfigFile string
	UserID     string
	InvoiceID  string
	Verbose    bool
	JSON       bool
}

func main() {
	config, command := parseFlags()

	if config.UserID == "" {
		color.Red("Error: user id is required")
		flag.Usage()
		os.Exit(1)
	}

	logger := setupLogger(config.Verbose)
	store, err := luzidos.NewFileDocumentStore(config.DataDir)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}

	runtime, err := buildRuntime(config, store, logger)
	if err != nil {
		log.Fatalf("Failed to set up runtime: %v", err)
	}

	ctx := context.Background()
	switch command {
	case "init":
		runInit(ctx, config, runtime)
	case "status":
		runStatus(ctx, config, store)
	case "log":
		runLog(ctx, config, store, logger)
	case "processes":
		runProcesses(ctx, config, store)
	default:
		color.Red("Error: unknown command %q", command)
		flag.Usage()
		os.Exit(1)
	}
}

func buildRuntime(config *Config, store luzidos.DocumentStore, logger *slog.Logger) (*luzidos.Runtime, error) {
	var lockTTL time.Duration
	var auditMax int
	if config.ConfigFile != "" {
		fileConfig, err := luzidos.LoadConfigFile(config.ConfigFile)
		if err != nil {
			return nil, err
		}
		lockTTL = fileConfig.LockTTL.Std()
		auditMax = fileConfig.AuditMaxEntriesPerSegment
	}

	repo, err := luzidos.NewStateRepository(luzidos.StateRepositoryOptions{
		Store:  store,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	lock, err := luzidos.NewExecutionLock(luzidos.ExecutionLockOptions{
		Store:  store,
		TTL:    lockTTL,
		Owner:  "cli",
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	audit, err := luzidos.NewAuditLog(luzidos.AuditLogOptions{
		Store:                store,
		MaxEntriesPerSegment: auditMax,
		Logger:               logger,
	})
	if err != nil {
		return nil, err
	}
	registry, err := luzidos.NewProcessRegistry(luzidos.ProcessRegistryOptions{
		Store:  store,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return luzidos.NewRuntime(luzidos.RuntimeOptions{
		Repository: repo,
		Lock:       lock,
		Audit:      audit,
		Registry:   registry,
		Logger:     logger,
	})
}

func runInit(ctx context.Context, config *Config, runtime *luzidos.Runtime) {
	if config.InvoiceID == "" {
		config.InvoiceID = luzidos.NewInvoiceID()
	}
	id := requireWorkflowID(config)
	state, err := runtime.InitAgent(ctx, id)
	if err != nil {
		log.Fatalf("Failed to initialize agent: %v", err)
	}
	color.Green("Initialized agent %s", id.String())
	if config.JSON {
		printJSON(state)
	}
}

func runStatus(ctx context.Context, config *Config, store luzidos.DocumentStore) {
	id := requireWorkflowID(config)
	var state luzidos.WorkflowState
	if err := store.GetJSON(ctx, luzidos.InvoiceStatePath(id), &state); err != nil {
		log.Fatalf("Failed to read state: %v", err)
	}
	if config.JSON {
		printJSON(state)
		return
	}
	color.Cyan("Workflow: %s", id.String())
	color.White("Current state: %s", state.State.Metadata.CurrentState)
	color.White("Born: %s", state.State.Metadata.BirthDatetime)
	for threadID, records := range state.State.Metadata.Timebombs {
		for _, record := range records {
			fmt.Printf("  timebomb %s on thread %s: %s at %s\n",
				record.TimebombID, threadID, record.Status,
				record.TriggerDatetime.Format(time.RFC3339))
		}
	}
}

func runLog(ctx context.Context, config *Config, store luzidos.DocumentStore, logger *slog.Logger) {
	id := requireWorkflowID(config)
	audit, err := luzidos.NewAuditLog(luzidos.AuditLogOptions{Store: store, Logger: logger})
	if err != nil {
		log.Fatalf("Failed to open audit log: %v", err)
	}
	entries, err := audit.ReadAll(ctx, id)
	if err != nil {
		log.Fatalf("Failed to read audit log: %v", err)
	}
	if config.JSON {
		printJSON(entries)
		return
	}
	color.Cyan("Audit log for %s (%d entries)", id.String(), len(entries))
	for i, entry := range entries {
		fmt.Printf("%4d  %s  %s\n", i+1,
			entry.UpdateTime.Format(time.RFC3339), entry.Actor)
	}
}

func runProcesses(ctx context.Context, config *Config, store luzidos.DocumentStore) {
	registry, err := luzidos.NewProcessRegistry(luzidos.ProcessRegistryOptions{Store: store})
	if err != nil {
		log.Fatalf("Failed to open registry: %v", err)
	}
	processes, err := registry.Processes(ctx, config.UserID)
	if err != nil {
		log.Fatalf("Failed to read registry: %v", err)
	}
	if config.JSON {
		printJSON(processes)
		return
	}
	color.Cyan("Agent processes for user %s", config.UserID)
	color.Green("Open:      %v", processes.Open)
	color.White("Completed: %v", processes.Completed)
	color.Yellow("Cancelled: %v", processes.Cancelled)
}

func requireWorkflowID(config *Config) luzidos.WorkflowID {
	if config.InvoiceID == "" {
		color.Red("Error: invoice id is required for this command")
		flag.Usage()
		os.Exit(1)
	}
	return luzidos.WorkflowID{UserID: config.UserID, InvoiceID: config.InvoiceID}
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to render JSON: %v", err)
	}
	fmt.Println(string(data))
}

func parseFlags() (*Config, string) {
	config := &Config{}

	flag.StringVar(&config.DataDir, "data", "", "Directory holding workflow documents (default: ~/.luzidos/documents)")
	flag.StringVar(&config.DataDir, "d", "", "Directory holding workflow documents (shorthand)")

	flag.StringVar(&config.ConfigFile, "config", "", "Path to a YAML config file (optional)")
	flag.StringVar(&config.ConfigFile, "c", "", "Path to a YAML config file (shorthand)")

	flag.StringVar(&config.UserID, "user", "", "User id (required)")
	flag.StringVar(&config.UserID, "u", "", "User id (shorthand)")

	flag.StringVar(&config.InvoiceID, "invoice", "", "Invoice id (required for init, status, log)")
	flag.StringVar(&config.InvoiceID, "i", "", "Invoice id (shorthand)")

	flag.BoolVar(&config.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&config.Verbose, "v", false, "Enable verbose logging (shorthand)")

	flag.BoolVar(&config.JSON, "json", false, "Output results in JSON format")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Luzidos agent CLI - Inspect and manage collection agent workflows

Usage: %s [options] <command>

Commands:
  init        Initialize a new agent workflow (requires -user and -invoice)
  status      Show a workflow's current state and timebombs
  log         Show a workflow's audit history
  processes   Show open/completed/cancelled agents for a user

Examples:
  %s -user user-1 -invoice inv-42 init
  %s -user user-1 -invoice inv-42 status
  %s -user user-1 processes -json

Options:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() < 1 {
		color.Red("Error: a command is required")
		flag.Usage()
		os.Exit(1)
	}
	return config, flag.Arg(0)
}

func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelError
	if verbose {
		level = slog.LevelInfo
	}
	return luzidos.NewLeveledLogger(level)
}

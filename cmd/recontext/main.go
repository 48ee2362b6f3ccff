// Package main is the entry point for the recontext CLI.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"recontext/internal/config"
	"recontext/internal/document"
	"recontext/internal/domain"
	"recontext/internal/scenario"
	"recontext/internal/source"
	"recontext/internal/store"
	"recontext/internal/workflow"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes: distinct classes so callers can tell generation exhaustion
// apart from bad input and artifact I/O.
const (
	exitFailure   = 1
	exitBadInput  = 2
	exitExhausted = 3
	exitArtifact  = 4
)

// Artifact file names inside the output directory.
const (
	outputFile  = "output.json"
	changedFile = "changed_fields.json"
	reportFile  = "report.json"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// run flags
	inputPath       string
	currentScenario string
	newScenario     string
	scenariosPath   string
	outputDir       string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "recontext",
	Short: "Rewrite a simulation document for a new business scenario",
	Long: `recontext takes a training-simulation JSON document written for one
business scenario and rewrites its narrative content for another, while
keeping the JSON structure byte-compatible and locked fields untouched.

Each configured section is generated and validated independently with a
bounded retry budget; the final document is reassembled, re-verified, and
written alongside a changed-fields list and a validation report.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the recontextualization workflow",
	Long: `Reads the input document, drives every section through the
generate-parse-validate retry loop against the configured content source,
and writes three artifacts into the output directory:

  output.json          the rewritten document (only on success)
  changed_fields.json  every path that changed, with old and new values
  report.json          verdicts and per-section attempt counts`,
	RunE: runRecontext,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "recontext %s (commit=%s, built=%s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration JSON file")

	runCmd.Flags().StringVar(&inputPath, "input", "", "Path to the simulation JSON document (required)")
	runCmd.Flags().StringVar(&currentScenario, "current-scenario", "", "Description of the scenario the document currently tells")
	runCmd.Flags().StringVar(&newScenario, "new-scenario", "", "Description of the scenario to rewrite for")
	runCmd.Flags().StringVar(&scenariosPath, "scenarios", "", "Path to a YAML file with current/target scenario descriptions")
	runCmd.Flags().StringVar(&outputDir, "output-dir", "results", "Directory where artifacts are written")
	runCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func runRecontext(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Graceful shutdown: in-flight generation calls observe the cancellation.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pair, err := resolveScenarios()
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return domain.WrapEngineError(domain.ErrInputInvalid.Code, "read input document", err)
	}
	doc, err := document.Parse(raw)
	if err != nil {
		return domain.WrapEngineError(domain.ErrInputInvalid.Code, fmt.Sprintf("parse input document %s", inputPath), err)
	}

	client, err := buildClient(ctx, cfg)
	if err != nil {
		return err
	}
	adapter := source.NewAdapter(client, source.AdapterConfig{
		RequestTimeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
		MinInterval:    time.Duration(cfg.MinRequestIntervalMS) * time.Millisecond,
	}, logger)

	var journal workflow.Journal
	if cfg.JournalPath != "" {
		j, err := store.OpenJournal(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer j.Close()
		journal = j
	}

	runner := workflow.NewRunner(workflow.RunnerConfig{
		Source:      adapter,
		Layout:      cfg.Layout(),
		MaxAttempts: cfg.MaxAttempts,
		MaxParallel: cfg.MaxParallelSections,
		Journal:     journal,
		Logger:      logger,
	})

	result, runErr := runner.Run(ctx, workflow.RunInput{
		Input:           doc,
		CurrentScenario: pair.Current,
		TargetScenario:  pair.Target,
	})

	// A failed run still carries a report naming the exhausted sections.
	if result != nil {
		if err := writeArtifacts(outputDir, result); err != nil {
			if runErr == nil {
				return err
			}
			logger.Error("artifact write failed", zap.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s complete.\n", result.RunID)
	fmt.Fprintf(out, "  schema fidelity:       %s\n", result.Report.SchemaFidelity)
	fmt.Fprintf(out, "  locked field equality: %s\n", result.Report.LockedFieldEquality)
	fmt.Fprintf(out, "  changed fields:        %d\n", result.Report.ChangedFieldCount)
	fmt.Fprintf(out, "Results saved in %s\n", outputDir)
	return nil
}

// loadConfig resolves the config path: --config flag > RECONTEXT_CONFIG env >
// recontext.json next to the exe or in the cwd > built-in defaults.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("RECONTEXT_CONFIG")
	}
	if path == "" {
		path = discoverConfig()
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// discoverConfig looks for recontext.json next to the executable, then in the cwd.
func discoverConfig() string {
	// Next to executable.
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "recontext.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	// Current working directory.
	if _, err := os.Stat("recontext.json"); err == nil {
		return "recontext.json"
	}
	return ""
}

// resolveScenarios merges the scenario flags with the optional scenarios
// file; explicit flags win.
func resolveScenarios() (scenario.Pair, error) {
	var pair scenario.Pair
	if scenariosPath != "" {
		p, err := scenario.LoadPair(scenariosPath)
		if err != nil {
			return scenario.Pair{}, err
		}
		pair = p
	}
	if s := strings.TrimSpace(currentScenario); s != "" {
		pair.Current = s
	}
	if s := strings.TrimSpace(newScenario); s != "" {
		pair.Target = s
	}
	if err := pair.Validate(); err != nil {
		return scenario.Pair{}, err
	}
	return pair, nil
}

func buildClient(ctx context.Context, cfg *config.Config) (source.Client, error) {
	switch domain.Provider(cfg.Provider) {
	case domain.ProviderGemini:
		apiKey := os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			return nil, domain.NewEngineError(domain.ErrConfigInvalid.Code,
				fmt.Sprintf("environment variable %s is not set", cfg.APIKeyEnv))
		}
		return source.NewGeminiClient(ctx, apiKey, cfg.Model)
	case domain.ProviderCommand:
		return source.NewCommandClient(source.CommandSpec{
			Command: cfg.Command.Command,
			Args:    cfg.Command.Args,
			Env:     cfg.Command.Env,
		})
	default:
		return nil, domain.NewEngineError(domain.ErrProviderUnknown.Code,
			fmt.Sprintf("unknown content source provider %q", cfg.Provider))
	}
}

// writeArtifacts writes report.json always, and the output document plus
// changed-fields list only when the run succeeded.
func writeArtifacts(dir string, result *workflow.RunResult) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return domain.WrapEngineError(domain.ErrArtifactWrite.Code, "create output directory", err)
	}

	report, err := json.MarshalIndent(result.Report, "", "  ")
	if err != nil {
		return domain.WrapEngineError(domain.ErrArtifactWrite.Code, "encode report", err)
	}
	if err := os.WriteFile(filepath.Join(dir, reportFile), append(report, '\n'), 0644); err != nil {
		return domain.WrapEngineError(domain.ErrArtifactWrite.Code, "write report", err)
	}

	if result.Status != domain.RunSucceeded {
		return nil
	}

	outJSON := append(result.Output.IndentJSON(), '\n')
	if err := os.WriteFile(filepath.Join(dir, outputFile), outJSON, 0644); err != nil {
		return domain.WrapEngineError(domain.ErrArtifactWrite.Code, "write output document", err)
	}

	entries := result.Changed
	if entries == nil {
		entries = []domain.ChangedFieldEntry{}
	}
	changed, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return domain.WrapEngineError(domain.ErrArtifactWrite.Code, "encode changed fields", err)
	}
	if err := os.WriteFile(filepath.Join(dir, changedFile), append(changed, '\n'), 0644); err != nil {
		return domain.WrapEngineError(domain.ErrArtifactWrite.Code, "write changed fields", err)
	}
	return nil
}

// exitCode maps error classes to distinct process exit codes.
func exitCode(err error) int {
	var ee *domain.EngineError
	if !errors.As(err, &ee) {
		return exitFailure
	}
	switch ee.Code {
	case domain.ErrSectionExhausted.Code:
		return exitExhausted
	case domain.ErrArtifactWrite.Code:
		return exitArtifact
	case domain.ErrMalformedDocument.Code,
		domain.ErrInputInvalid.Code,
		domain.ErrConfigInvalid.Code,
		domain.ErrScenarioInvalid.Code,
		domain.ErrLayoutMismatch.Code:
		return exitBadInput
	default:
		return exitFailure
	}
}

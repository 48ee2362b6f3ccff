package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recontext/internal/config"
	"recontext/internal/document"
	"recontext/internal/domain"
	"recontext/internal/workflow"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain error", errors.New("boom"), exitFailure},
		{"section exhausted", domain.ErrSectionExhausted, exitExhausted},
		{"wrapped section exhausted", fmt.Errorf("run x: %w", domain.ErrSectionExhausted), exitExhausted},
		{"artifact write", domain.ErrArtifactWrite, exitArtifact},
		{"malformed document", domain.ErrMalformedDocument, exitBadInput},
		{"input invalid", domain.ErrInputInvalid, exitBadInput},
		{"config invalid", domain.ErrConfigInvalid, exitBadInput},
		{"scenario invalid", domain.ErrScenarioInvalid, exitBadInput},
		{"layout mismatch", domain.ErrLayoutMismatch, exitBadInput},
		{"source unavailable", domain.ErrSourceUnavailable, exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func successResult(t *testing.T) *workflow.RunResult {
	t.Helper()
	out, err := document.Parse([]byte(`{"sim":{"scenario":"pharmacy","title":"Dispensing 101"}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return &workflow.RunResult{
		RunID:  "run-artifacts",
		Status: domain.RunSucceeded,
		Output: out,
		Changed: []domain.ChangedFieldEntry{
			{Path: "sim.title", OldValue: json.RawMessage(`"Brewing 101"`), NewValue: json.RawMessage(`"Dispensing 101"`)},
		},
		Report: domain.RunReport{
			RunID:               "run-artifacts",
			Status:              domain.RunSucceeded,
			SchemaFidelity:      domain.VerdictPass,
			LockedFieldEquality: domain.VerdictPass,
			ChangedFieldCount:   1,
		},
	}
}

func TestWriteArtifacts_Success(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	res := successResult(t)

	if err := writeArtifacts(dir, res); err != nil {
		t.Fatalf("writeArtifacts: %v", err)
	}

	outJSON, err := os.ReadFile(filepath.Join(dir, outputFile))
	if err != nil {
		t.Fatalf("read output.json: %v", err)
	}
	want := string(res.Output.IndentJSON()) + "\n"
	if string(outJSON) != want {
		t.Errorf("output.json = %q, want %q", outJSON, want)
	}

	changedJSON, err := os.ReadFile(filepath.Join(dir, changedFile))
	if err != nil {
		t.Fatalf("read changed_fields.json: %v", err)
	}
	var entries []domain.ChangedFieldEntry
	if err := json.Unmarshal(changedJSON, &entries); err != nil {
		t.Fatalf("parse changed_fields.json: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "sim.title" {
		t.Errorf("changed entries = %v", entries)
	}

	reportJSON, err := os.ReadFile(filepath.Join(dir, reportFile))
	if err != nil {
		t.Fatalf("read report.json: %v", err)
	}
	var report map[string]interface{}
	if err := json.Unmarshal(reportJSON, &report); err != nil {
		t.Fatalf("parse report.json: %v", err)
	}
	if report["run_id"] != "run-artifacts" {
		t.Errorf("report run_id = %v", report["run_id"])
	}
	if report["schema_fidelity"] != "PASS" {
		t.Errorf("report schema_fidelity = %v", report["schema_fidelity"])
	}
}

func TestWriteArtifacts_FailedRunWritesReportOnly(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	res := &workflow.RunResult{
		RunID:  "run-fail",
		Status: domain.RunFailed,
		Report: domain.RunReport{
			RunID:               "run-fail",
			Status:              domain.RunFailed,
			SchemaFidelity:      domain.VerdictFail,
			LockedFieldEquality: domain.VerdictFail,
		},
	}

	if err := writeArtifacts(dir, res); err != nil {
		t.Fatalf("writeArtifacts: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, reportFile)); err != nil {
		t.Errorf("report.json missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, outputFile)); !os.IsNotExist(err) {
		t.Error("output.json written for a failed run")
	}
	if _, err := os.Stat(filepath.Join(dir, changedFile)); !os.IsNotExist(err) {
		t.Error("changed_fields.json written for a failed run")
	}
}

func TestWriteArtifacts_NilChangedBecomesEmptyList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	res := successResult(t)
	res.Changed = nil

	if err := writeArtifacts(dir, res); err != nil {
		t.Fatalf("writeArtifacts: %v", err)
	}

	changedJSON, err := os.ReadFile(filepath.Join(dir, changedFile))
	if err != nil {
		t.Fatalf("read changed_fields.json: %v", err)
	}
	if strings.TrimSpace(string(changedJSON)) != "[]" {
		t.Errorf("changed_fields.json = %q, want []", changedJSON)
	}
}

func setScenarioFlags(t *testing.T, current, target, path string) {
	t.Helper()
	oldCurrent, oldTarget, oldPath := currentScenario, newScenario, scenariosPath
	currentScenario, newScenario, scenariosPath = current, target, path
	t.Cleanup(func() {
		currentScenario, newScenario, scenariosPath = oldCurrent, oldTarget, oldPath
	})
}

func TestResolveScenarios_FlagsOnly(t *testing.T) {
	setScenarioFlags(t, "coffee shop", "pharmacy", "")

	pair, err := resolveScenarios()
	if err != nil {
		t.Fatalf("resolveScenarios: %v", err)
	}
	if pair.Current != "coffee shop" || pair.Target != "pharmacy" {
		t.Errorf("pair = %+v", pair)
	}
}

func TestResolveScenarios_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	if err := os.WriteFile(path, []byte("current: coffee shop\ntarget: pharmacy\n"), 0644); err != nil {
		t.Fatalf("write scenarios: %v", err)
	}
	setScenarioFlags(t, "", "", path)

	pair, err := resolveScenarios()
	if err != nil {
		t.Fatalf("resolveScenarios: %v", err)
	}
	if pair.Current != "coffee shop" || pair.Target != "pharmacy" {
		t.Errorf("pair = %+v", pair)
	}
}

func TestResolveScenarios_FlagOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	if err := os.WriteFile(path, []byte("current: coffee shop\ntarget: pharmacy\n"), 0644); err != nil {
		t.Fatalf("write scenarios: %v", err)
	}
	setScenarioFlags(t, "", "gym chain", path)

	pair, err := resolveScenarios()
	if err != nil {
		t.Fatalf("resolveScenarios: %v", err)
	}
	if pair.Current != "coffee shop" {
		t.Errorf("Current = %q, want file value", pair.Current)
	}
	if pair.Target != "gym chain" {
		t.Errorf("Target = %q, want flag value", pair.Target)
	}
}

func TestResolveScenarios_MissingBoth(t *testing.T) {
	setScenarioFlags(t, "", "", "")

	_, err := resolveScenarios()
	var ee *domain.EngineError
	if !errors.As(err, &ee) || ee.Code != domain.ErrScenarioInvalid.Code {
		t.Fatalf("error = %v, want scenario invalid code", err)
	}
}

func TestBuildClient_UnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = "oracle"

	_, err := buildClient(context.Background(), cfg)
	var ee *domain.EngineError
	if !errors.As(err, &ee) || ee.Code != domain.ErrProviderUnknown.Code {
		t.Fatalf("error = %v, want provider unknown code", err)
	}
}

func TestBuildClient_GeminiMissingKey(t *testing.T) {
	cfg := config.Default()
	cfg.APIKeyEnv = "RECONTEXT_TEST_MISSING_KEY"
	t.Setenv("RECONTEXT_TEST_MISSING_KEY", "")

	_, err := buildClient(context.Background(), cfg)
	var ee *domain.EngineError
	if !errors.As(err, &ee) || ee.Code != domain.ErrConfigInvalid.Code {
		t.Fatalf("error = %v, want config invalid code", err)
	}
	if !strings.Contains(err.Error(), "RECONTEXT_TEST_MISSING_KEY") {
		t.Errorf("error %q does not name the env var", err.Error())
	}
}

func TestBuildClient_CommandProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = string(domain.ProviderCommand)
	cfg.Command.Command = "llm-cli"

	client, err := buildClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("buildClient: %v", err)
	}
	if !strings.Contains(client.Name(), "llm-cli") {
		t.Errorf("client name = %q", client.Name())
	}
}

func TestCommandWiring(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	joined := strings.Join(names, ",")
	if !strings.Contains(joined, "run") || !strings.Contains(joined, "version") {
		t.Errorf("root commands = %v, want run and version", names)
	}
	if runCmd.Flags().Lookup("input") == nil {
		t.Error("missing --input flag")
	}
	if runCmd.Flags().Lookup("output-dir") == nil {
		t.Error("missing --output-dir flag")
	}
	if rootCmd.PersistentFlags().Lookup("config") == nil {
		t.Error("missing --config flag")
	}
}

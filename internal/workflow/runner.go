package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"recontext/internal/aggregate"
	"recontext/internal/document"
	"recontext/internal/domain"
)

// DefaultMaxParallel bounds concurrent section generation when the
// configuration does not say otherwise.
const DefaultMaxParallel = 2

// RunnerConfig wires a runner.
type RunnerConfig struct {
	Source      ContentSource
	Layout      domain.Layout
	MaxAttempts int
	MaxParallel int
	Journal     Journal
	Logger      *zap.Logger
}

// Runner executes one recontextualization run: every section's retry loop in
// parallel, a join barrier, then assembly and re-verification.
type Runner struct {
	source      ContentSource
	layout      domain.Layout
	maxAttempts int
	maxParallel int
	journal     Journal
	logger      *zap.Logger
}

// NewRunner creates a runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Runner{
		source:      cfg.Source,
		layout:      cfg.Layout,
		maxAttempts: cfg.MaxAttempts,
		maxParallel: cfg.MaxParallel,
		journal:     cfg.Journal,
		logger:      cfg.Logger,
	}
}

// RunInput carries one transformation request.
type RunInput struct {
	Input           *document.Document
	CurrentScenario string
	TargetScenario  string
}

// RunResult is the terminal outcome of a run. Output and Changed are nil
// unless every section was accepted; Report always covers every section.
type RunResult struct {
	RunID    string
	Status   domain.RunStatus
	Output   *document.Document
	Changed  []domain.ChangedFieldEntry
	Report   domain.RunReport
	Sections []*SectionResult
}

// Run executes every section's retry loop and joins the results. When any
// section exhausts its budget the run fails with ErrSectionExhausted and a
// result that still carries the full report; hard failures (bad input,
// invariant violations) return a nil result.
func (r *Runner) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	started := time.Now()
	runID := uuid.NewString()

	if in.CurrentScenario == "" || in.TargetScenario == "" {
		return nil, domain.NewEngineError(domain.ErrScenarioInvalid.Code, "both scenario descriptions are required")
	}
	machines, err := r.buildMachines(runID, in)
	if err != nil {
		return nil, err
	}

	r.logger.Info("run started",
		zap.String("run_id", runID),
		zap.Int("sections", len(machines)),
		zap.Int("max_attempts", r.maxAttempts),
		zap.Int("max_parallel", r.maxParallel),
	)
	r.journalStart(ctx, runID, in, len(machines), started)

	results := make([]*SectionResult, len(machines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxParallel)
	for i, m := range machines {
		g.Go(func() error {
			res, err := m.Run(gctx)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.journalFinish(ctx, runID, domain.RunFailed)
		return nil, err
	}

	report := domain.RunReport{
		RunID:         runID,
		Sections:      sectionReports(results),
		StartedAtUnix: started.Unix(),
	}

	accepted := make(map[string]*document.Document, len(results))
	failed := false
	for _, res := range results {
		if res.State == domain.SectionAccepted {
			accepted[res.Name] = res.Document
		} else {
			failed = true
		}
	}

	if failed {
		report.Status = domain.RunFailed
		report.SchemaFidelity = domain.VerdictFail
		report.LockedFieldEquality = domain.VerdictFail
		report.DurationSeconds = time.Since(started).Seconds()
		r.journalFinish(ctx, runID, domain.RunFailed)
		r.logger.Error("run failed: section budget exhausted", zap.String("run_id", runID))
		result := &RunResult{RunID: runID, Status: domain.RunFailed, Report: report, Sections: results}
		return result, fmt.Errorf("run %s: %w", runID, domain.ErrSectionExhausted)
	}

	asm, err := aggregate.Assemble(aggregate.Input{
		Source:         in.Input,
		Layout:         r.layout,
		Sections:       accepted,
		TargetScenario: in.TargetScenario,
	})
	if err != nil {
		r.journalFinish(ctx, runID, domain.RunFailed)
		return nil, fmt.Errorf("assemble run %s: %w", runID, err)
	}

	report.Status = domain.RunSucceeded
	report.SchemaFidelity = verdict(asm.SchemaFidelity)
	report.LockedFieldEquality = verdict(asm.LockedEquality)
	report.ChangedFieldCount = len(asm.Changed)
	report.DurationSeconds = time.Since(started).Seconds()
	r.journalFinish(ctx, runID, domain.RunSucceeded)
	r.logger.Info("run complete",
		zap.String("run_id", runID),
		zap.String("schema_fidelity", report.SchemaFidelity),
		zap.String("locked_field_equality", report.LockedFieldEquality),
		zap.Int("changed_fields", len(asm.Changed)),
		zap.Float64("duration_seconds", report.DurationSeconds),
	)

	return &RunResult{
		RunID:    runID,
		Status:   domain.RunSucceeded,
		Output:   asm.Output,
		Changed:  asm.Changed,
		Report:   report,
		Sections: results,
	}, nil
}

// buildMachines validates the input against the layout and creates one
// machine per section. Layout violations are input errors, not retryable
// generation failures.
func (r *Runner) buildMachines(runID string, in RunInput) ([]*SectionMachine, error) {
	if in.Input == nil {
		return nil, domain.NewEngineError(domain.ErrInputInvalid.Code, "input document is nil")
	}
	root, err := in.Input.Get(r.layout.Root)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrLayoutMismatch.Code, fmt.Sprintf("layout root %q", r.layout.Root), err)
	}
	if root.Kind() != document.KindObject {
		return nil, domain.NewEngineError(domain.ErrLayoutMismatch.Code, fmt.Sprintf("layout root %q is a %s node", r.layout.Root, root.Kind()))
	}
	for _, p := range r.layout.LockedPaths {
		if _, err := root.Get(p); err != nil {
			return nil, domain.WrapEngineError(domain.ErrLayoutMismatch.Code, fmt.Sprintf("locked path %q", p), err)
		}
	}
	if r.layout.ScenarioKey != "" {
		if _, ok := root.Field(r.layout.ScenarioKey); !ok {
			return nil, domain.NewEngineError(domain.ErrLayoutMismatch.Code, fmt.Sprintf("scenario key %q not present in input", r.layout.ScenarioKey))
		}
	}

	machines := make([]*SectionMachine, 0, len(r.layout.Sections))
	for _, sec := range r.layout.Sections {
		reference, err := root.Subset(sec.Keys)
		if err != nil {
			return nil, domain.WrapEngineError(domain.ErrLayoutMismatch.Code, fmt.Sprintf("section %q", sec.Name), err)
		}
		machines = append(machines, NewSectionMachine(SectionMachineConfig{
			Name:            sec.Name,
			Reference:       reference,
			LockedPaths:     r.layout.LockedPaths,
			CurrentScenario: in.CurrentScenario,
			TargetScenario:  in.TargetScenario,
			MaxAttempts:     r.maxAttempts,
			Source:          r.source,
			Journal:         r.journal,
			RunID:           runID,
			Logger:          r.logger,
		}))
	}
	return machines, nil
}

func (r *Runner) journalStart(ctx context.Context, runID string, in RunInput, sections int, started time.Time) {
	if r.journal == nil {
		return
	}
	rec := domain.RunRecord{
		RunID:           runID,
		Status:          domain.RunRunning,
		CurrentScenario: in.CurrentScenario,
		TargetScenario:  in.TargetScenario,
		SectionCount:    sections,
		StartedAtUnix:   started.Unix(),
	}
	if err := r.journal.StartRun(ctx, rec); err != nil {
		r.logger.Warn("journal run start failed", zap.Error(err))
	}
}

func (r *Runner) journalFinish(ctx context.Context, runID string, status domain.RunStatus) {
	if r.journal == nil {
		return
	}
	if err := r.journal.FinishRun(ctx, runID, status, time.Now().Unix()); err != nil {
		r.logger.Warn("journal run finish failed", zap.Error(err))
	}
}

func sectionReports(results []*SectionResult) []domain.SectionReport {
	out := make([]domain.SectionReport, 0, len(results))
	for _, res := range results {
		rep := domain.SectionReport{
			Name:     res.Name,
			State:    res.State,
			Attempts: len(res.Attempts),
		}
		if res.State != domain.SectionAccepted {
			rep.LastErrors = res.LastErrors()
		}
		out = append(out, rep)
	}
	return out
}

func verdict(pass bool) string {
	if pass {
		return domain.VerdictPass
	}
	return domain.VerdictFail
}

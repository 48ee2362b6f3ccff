// Package workflow drives sections through the bounded generate-parse-validate
// retry loop and joins their results into a run outcome.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"recontext/internal/compare"
	"recontext/internal/document"
	"recontext/internal/domain"
	"recontext/internal/parse"
)

// DefaultMaxAttempts is the per-section attempt budget when none is configured.
const DefaultMaxAttempts = 3

// validTransitions defines the legal section state transitions.
// Each key is a source state, and the value is the set of valid target states.
var validTransitions = map[domain.SectionState]map[domain.SectionState]bool{
	domain.SectionPending:    {domain.SectionGenerating: true},
	domain.SectionGenerating: {domain.SectionParsing: true, domain.SectionCorrecting: true, domain.SectionExhausted: true},
	domain.SectionParsing:    {domain.SectionValidating: true, domain.SectionCorrecting: true, domain.SectionExhausted: true},
	domain.SectionValidating: {domain.SectionAccepted: true, domain.SectionCorrecting: true, domain.SectionExhausted: true},
	domain.SectionCorrecting: {domain.SectionGenerating: true, domain.SectionExhausted: true},
}

// IsValidTransition checks if a section state transition is legal.
func IsValidTransition(from, to domain.SectionState) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// ContentSource is the generation boundary the retry loop drives.
type ContentSource interface {
	Invoke(ctx context.Context, task domain.GenerationTask) (string, error)
}

// Attempt is one generate-parse-validate cycle. Attempts are appended to the
// section history and never mutated afterwards.
type Attempt struct {
	Index     int
	RawOutput string
	Parsed    *document.Document
	Errors    []domain.ValidationError
	Outcome   domain.AttemptOutcome
}

// SectionResult is the terminal outcome of one section's retry loop.
// Document is the accepted output, nil when the section exhausted its budget.
type SectionResult struct {
	Name     string
	State    domain.SectionState
	Attempts []Attempt
	Document *document.Document
}

// LastErrors returns the validation errors of the final attempt.
func (r *SectionResult) LastErrors() []domain.ValidationError {
	if len(r.Attempts) == 0 {
		return nil
	}
	return r.Attempts[len(r.Attempts)-1].Errors
}

// SectionMachineConfig wires one section machine.
type SectionMachineConfig struct {
	Name            string
	Reference       *document.Document
	LockedPaths     []string
	CurrentScenario string
	TargetScenario  string
	MaxAttempts     int
	Source          ContentSource
	Journal         Journal
	RunID           string
	Logger          *zap.Logger
}

// SectionMachine drives one section to a terminal state. It is not safe for
// concurrent use; the runner gives each section its own machine.
type SectionMachine struct {
	name        string
	reference   *document.Document
	lockedPaths []string
	maxAttempts int
	source      ContentSource
	journal     Journal
	runID       string
	logger      *zap.Logger

	state    domain.SectionState
	task     domain.GenerationTask
	attempts []Attempt

	pendingRaw string
	pendingDoc *document.Document
	accepted   *document.Document
}

// NewSectionMachine creates a machine in the pending state. The reference
// subtree is rendered once; every attempt reuses the same source JSON.
func NewSectionMachine(cfg SectionMachineConfig) *SectionMachine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &SectionMachine{
		name:        cfg.Name,
		reference:   cfg.Reference,
		lockedPaths: cfg.LockedPaths,
		maxAttempts: cfg.MaxAttempts,
		source:      cfg.Source,
		journal:     cfg.Journal,
		runID:       cfg.RunID,
		logger:      cfg.Logger,
		state:       domain.SectionPending,
		task: domain.GenerationTask{
			Section:         cfg.Name,
			SourceJSON:      string(cfg.Reference.IndentJSON()),
			CurrentScenario: cfg.CurrentScenario,
			TargetScenario:  cfg.TargetScenario,
		},
	}
}

// State returns the machine's current state.
func (m *SectionMachine) State() domain.SectionState { return m.state }

// Run drives the section until it is accepted or exhausted. The returned
// error is reserved for invariant violations; a section that merely runs out
// of attempts ends in the exhausted state with a nil error.
func (m *SectionMachine) Run(ctx context.Context) (*SectionResult, error) {
	for {
		var err error
		switch m.state {
		case domain.SectionPending, domain.SectionCorrecting:
			err = m.transition(ctx, domain.SectionGenerating)
		case domain.SectionGenerating:
			err = m.generate(ctx)
		case domain.SectionParsing:
			err = m.parse(ctx)
		case domain.SectionValidating:
			err = m.validate(ctx)
		case domain.SectionAccepted, domain.SectionExhausted:
			return m.result(), nil
		default:
			err = domain.NewEngineError(domain.ErrInvalidTransition.Code, fmt.Sprintf("section %s is in unknown state %q", m.name, m.state))
		}
		if err != nil {
			return nil, err
		}
	}
}

// generate invokes the content source with the current task.
func (m *SectionMachine) generate(ctx context.Context) error {
	m.logger.Info("generating section",
		zap.String("section", m.name),
		zap.Int("attempt", len(m.attempts)+1),
		zap.Int("max_attempts", m.maxAttempts),
		zap.Bool("correction", m.task.Correction != nil),
	)
	raw, err := m.source.Invoke(ctx, m.task)
	if err != nil {
		verr := domain.ValidationError{Kind: domain.KindSourceUnavailable, Message: err.Error()}
		return m.failAttempt(ctx, raw, domain.OutcomeRejected, []domain.ValidationError{verr})
	}
	m.pendingRaw = raw
	return m.transition(ctx, domain.SectionParsing)
}

// parse turns the raw output into a document.
func (m *SectionMachine) parse(ctx context.Context) error {
	doc, err := parse.Output(m.pendingRaw)
	if err != nil {
		verr := domain.ValidationError{Kind: domain.KindMalformedJSON, Message: err.Error()}
		return m.failAttempt(ctx, m.pendingRaw, domain.OutcomeParseFailed, []domain.ValidationError{verr})
	}
	m.pendingDoc = doc
	return m.transition(ctx, domain.SectionValidating)
}

// validate runs the shape and locked-field checks against the reference.
func (m *SectionMachine) validate(ctx context.Context) error {
	errs := compare.Shape(m.reference, m.pendingDoc)
	errs = append(errs, compare.Locked(m.reference, m.pendingDoc, m.lockedPaths)...)
	if len(errs) > 0 {
		return m.failAttempt(ctx, m.pendingRaw, domain.OutcomeRejected, errs)
	}
	m.record(ctx, Attempt{
		Index:     len(m.attempts) + 1,
		RawOutput: m.pendingRaw,
		Parsed:    m.pendingDoc,
		Outcome:   domain.OutcomeAccepted,
	})
	m.accepted = m.pendingDoc
	m.logger.Info("section accepted",
		zap.String("section", m.name),
		zap.Int("attempts", len(m.attempts)),
	)
	return m.transition(ctx, domain.SectionAccepted)
}

// failAttempt records a failed attempt, then either exhausts the section or
// derives the correction task for the next one.
func (m *SectionMachine) failAttempt(ctx context.Context, raw string, outcome domain.AttemptOutcome, errs []domain.ValidationError) error {
	attempt := Attempt{
		Index:     len(m.attempts) + 1,
		RawOutput: raw,
		Parsed:    m.pendingDoc,
		Errors:    errs,
		Outcome:   outcome,
	}
	m.record(ctx, attempt)
	m.logger.Warn("attempt failed",
		zap.String("section", m.name),
		zap.Int("attempt", attempt.Index),
		zap.String("outcome", string(outcome)),
		zap.Int("findings", len(errs)),
	)
	if len(m.attempts) >= m.maxAttempts {
		return m.transition(ctx, domain.SectionExhausted)
	}
	if err := m.transition(ctx, domain.SectionCorrecting); err != nil {
		return err
	}
	m.task = BuildCorrectionTask(m.task, raw, errs)
	return nil
}

// record appends an attempt to the history and journals it best-effort.
func (m *SectionMachine) record(ctx context.Context, a Attempt) {
	m.attempts = append(m.attempts, a)
	m.pendingRaw = ""
	m.pendingDoc = nil
	if m.journal == nil {
		return
	}
	rec := domain.AttemptRecord{
		RunID:         m.runID,
		Section:       m.name,
		AttemptIndex:  a.Index,
		Outcome:       a.Outcome,
		ErrorsJSON:    encodeErrors(a.Errors),
		OutputBytes:   len(a.RawOutput),
		CreatedAtUnix: time.Now().Unix(),
	}
	if err := m.journal.RecordAttempt(ctx, rec); err != nil {
		m.logger.Warn("journal attempt write failed", zap.Error(err))
	}
}

// transition moves the machine to the next state after validating the edge.
func (m *SectionMachine) transition(ctx context.Context, to domain.SectionState) error {
	if !IsValidTransition(m.state, to) {
		return domain.NewEngineError(domain.ErrInvalidTransition.Code, fmt.Sprintf("section %s: illegal transition %s -> %s", m.name, m.state, to))
	}
	from := m.state
	m.state = to
	m.logger.Debug("section state changed",
		zap.String("section", m.name),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	if m.journal != nil {
		ev := domain.RunEvent{
			RunID:         m.runID,
			Section:       m.name,
			EventType:     "state_transition",
			PayloadJSON:   fmt.Sprintf(`{"from":%q,"to":%q}`, from, to),
			CreatedAtUnix: time.Now().Unix(),
		}
		if err := m.journal.RecordEvent(ctx, ev); err != nil {
			m.logger.Warn("journal event write failed", zap.Error(err))
		}
	}
	return nil
}

func (m *SectionMachine) result() *SectionResult {
	return &SectionResult{
		Name:     m.name,
		State:    m.state,
		Attempts: m.attempts,
		Document: m.accepted,
	}
}

func encodeErrors(errs []domain.ValidationError) string {
	if len(errs) == 0 {
		return "[]"
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

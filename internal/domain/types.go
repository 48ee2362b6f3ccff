// Package domain defines the core types for the recontextualization engine.
package domain

import (
	"encoding/json"
	"fmt"
)

// SectionState represents the retry-loop state of one section.
type SectionState string

const (
	SectionPending    SectionState = "pending"
	SectionGenerating SectionState = "generating"
	SectionParsing    SectionState = "parsing"
	SectionValidating SectionState = "validating"
	SectionCorrecting SectionState = "correcting"
	SectionAccepted   SectionState = "accepted"
	SectionExhausted  SectionState = "exhausted"
)

// RunStatus represents the overall status of a recontextualization run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// AttemptOutcome classifies how one generation attempt ended.
type AttemptOutcome string

const (
	OutcomeAccepted    AttemptOutcome = "accepted"
	OutcomeRejected    AttemptOutcome = "rejected"
	OutcomeParseFailed AttemptOutcome = "parse_failed"
)

// ErrorKind classifies a validation finding.
type ErrorKind string

const (
	KindSourceUnavailable    ErrorKind = "source_unavailable"
	KindMalformedJSON        ErrorKind = "malformed_json"
	KindSchemaMismatch       ErrorKind = "schema_mismatch"
	KindTypeMismatch         ErrorKind = "type_mismatch"
	KindMissingKey           ErrorKind = "missing_key"
	KindExtraKey             ErrorKind = "extra_key"
	KindLockedFieldViolation ErrorKind = "locked_field_violation"
)

// ValidationError describes one structural or locked-field finding at a path.
type ValidationError struct {
	Path    string    `json:"path"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// String renders the finding the way correction prompts and reports present it.
func (e ValidationError) String() string {
	path := e.Path
	if path == "" {
		path = "(root)"
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, path, e.Message)
}

// CorrectionContext carries a rejected output and its findings into the
// next attempt.
type CorrectionContext struct {
	PreviousOutput string
	Errors         []ValidationError
}

// GenerationTask is one unit of content generation for a section. The source
// subtree and scenario descriptions never change across attempts; only the
// correction context does.
type GenerationTask struct {
	Section         string
	SourceJSON      string
	CurrentScenario string
	TargetScenario  string
	Correction      *CorrectionContext
}

// ChangedFieldEntry records one value difference between input and output.
type ChangedFieldEntry struct {
	Path     string          `json:"path"`
	OldValue json.RawMessage `json:"old_value"`
	NewValue json.RawMessage `json:"new_value"`
}

// Verdict strings used by the validation report.
const (
	VerdictPass = "PASS"
	VerdictFail = "FAIL"
)

// SectionReport summarizes one section's trip through the retry loop.
type SectionReport struct {
	Name       string            `json:"name"`
	State      SectionState      `json:"state"`
	Attempts   int               `json:"attempts"`
	LastErrors []ValidationError `json:"last_errors,omitempty"`
}

// RunReport is the validation report persisted alongside the output document.
type RunReport struct {
	RunID               string          `json:"run_id"`
	Status              RunStatus       `json:"status"`
	SchemaFidelity      string          `json:"schema_fidelity"`
	LockedFieldEquality string          `json:"locked_field_equality"`
	Sections            []SectionReport `json:"sections"`
	ChangedFieldCount   int             `json:"changed_field_count"`
	StartedAtUnix       int64           `json:"started_at_unix"`
	DurationSeconds     float64         `json:"duration_seconds"`
}

// SectionSpec names a generation section and the top-level keys it owns.
type SectionSpec struct {
	Name string
	Keys []string
}

// Layout describes how the input document splits into generation sections.
// Root is the dotted path to the object holding every sectioned key;
// LockedPaths and ScenarioKey are relative to that object.
type Layout struct {
	Root        string
	LockedPaths []string
	ScenarioKey string
	Sections    []SectionSpec
}

// Rooted qualifies a root-relative path with the layout root.
func (l Layout) Rooted(path string) string {
	if l.Root == "" {
		return path
	}
	return l.Root + "." + path
}

// RootedLockedPaths returns every locked path qualified with the layout root.
func (l Layout) RootedLockedPaths() []string {
	out := make([]string, len(l.LockedPaths))
	for i, p := range l.LockedPaths {
		out[i] = l.Rooted(p)
	}
	return out
}

// Provider identifies a content source provider.
type Provider string

const (
	ProviderGemini  Provider = "gemini"
	ProviderCommand Provider = "command"
)

// RunRecord is the journal row for one run.
type RunRecord struct {
	RunID           string
	Status          RunStatus
	CurrentScenario string
	TargetScenario  string
	SectionCount    int
	StartedAtUnix   int64
	FinishedAtUnix  int64
}

// AttemptRecord is the journal row for one generation attempt.
type AttemptRecord struct {
	ID            int64
	RunID         string
	Section       string
	AttemptIndex  int
	Outcome       AttemptOutcome
	ErrorsJSON    string
	OutputBytes   int
	CreatedAtUnix int64
}

// RunEvent is the journal row for one section state transition.
type RunEvent struct {
	ID            int64
	RunID         string
	Section       string
	EventType     string
	PayloadJSON   string
	CreatedAtUnix int64
}

package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"recontext/internal/document"
	"recontext/internal/domain"
)

// scriptedSource replays canned replies per section and records every task
// it was invoked with.
type scriptedSource struct {
	mu      sync.Mutex
	replies map[string][]scriptReply
	calls   map[string][]domain.GenerationTask
}

type scriptReply struct {
	text string
	err  error
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{
		replies: make(map[string][]scriptReply),
		calls:   make(map[string][]domain.GenerationTask),
	}
}

func (s *scriptedSource) add(section string, replies ...scriptReply) {
	s.replies[section] = append(s.replies[section], replies...)
}

func (s *scriptedSource) Invoke(_ context.Context, task domain.GenerationTask) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[task.Section] = append(s.calls[task.Section], task)
	queue := s.replies[task.Section]
	if len(queue) == 0 {
		return "", errors.New("scripted source has no reply left")
	}
	reply := queue[0]
	s.replies[task.Section] = queue[1:]
	return reply.text, reply.err
}

func (s *scriptedSource) callCount(section string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls[section])
}

func (s *scriptedSource) call(section string, i int) domain.GenerationTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[section][i]
}

func mustParse(t *testing.T, src string) *document.Document {
	t.Helper()
	doc, err := document.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", src, err)
	}
	return doc
}

func newTestMachine(t *testing.T, reference string, source ContentSource, maxAttempts int) *SectionMachine {
	t.Helper()
	return NewSectionMachine(SectionMachineConfig{
		Name:            "core",
		Reference:       mustParse(t, reference),
		LockedPaths:     []string{"locked"},
		CurrentScenario: "old scenario",
		TargetScenario:  "new scenario",
		MaxAttempts:     maxAttempts,
		Source:          source,
		RunID:           "run-test",
	})
}

func TestIsValidTransition(t *testing.T) {
	cases := []struct {
		from, to domain.SectionState
		want     bool
	}{
		{domain.SectionPending, domain.SectionGenerating, true},
		{domain.SectionGenerating, domain.SectionParsing, true},
		{domain.SectionGenerating, domain.SectionCorrecting, true},
		{domain.SectionGenerating, domain.SectionExhausted, true},
		{domain.SectionParsing, domain.SectionValidating, true},
		{domain.SectionParsing, domain.SectionCorrecting, true},
		{domain.SectionValidating, domain.SectionAccepted, true},
		{domain.SectionValidating, domain.SectionCorrecting, true},
		{domain.SectionValidating, domain.SectionExhausted, true},
		{domain.SectionCorrecting, domain.SectionGenerating, true},
		{domain.SectionCorrecting, domain.SectionExhausted, true},
		{domain.SectionPending, domain.SectionAccepted, false},
		{domain.SectionPending, domain.SectionValidating, false},
		{domain.SectionAccepted, domain.SectionGenerating, false},
		{domain.SectionExhausted, domain.SectionGenerating, false},
		{domain.SectionCorrecting, domain.SectionValidating, false},
	}
	for _, tc := range cases {
		if got := IsValidTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("IsValidTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestSectionMachine_AcceptsFirstValidAttempt(t *testing.T) {
	src := newScriptedSource()
	src.add("core", scriptReply{text: `{"a":"adapted","locked":[1,2]}`})
	m := newTestMachine(t, `{"a":"original","locked":[1,2]}`, src, 3)

	res, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.State != domain.SectionAccepted {
		t.Fatalf("State = %s, want accepted", res.State)
	}
	if len(res.Attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(res.Attempts))
	}
	if res.Attempts[0].Outcome != domain.OutcomeAccepted {
		t.Errorf("attempt outcome = %s, want accepted", res.Attempts[0].Outcome)
	}
	if res.Document == nil {
		t.Fatal("accepted section has no document")
	}
	v, _ := res.Document.Field("a")
	if v.StringValue() != "adapted" {
		t.Errorf("accepted value = %q, want adapted", v.StringValue())
	}
}

func TestSectionMachine_StripsFencedOutput(t *testing.T) {
	src := newScriptedSource()
	src.add("core", scriptReply{text: "```json\n{\"a\":\"adapted\"}\n```"})
	m := newTestMachine(t, `{"a":"original"}`, src, 3)

	res, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.State != domain.SectionAccepted {
		t.Fatalf("State = %s, want accepted", res.State)
	}
}

func TestSectionMachine_ExtraKeyRejectedThenCorrected(t *testing.T) {
	src := newScriptedSource()
	src.add("core",
		scriptReply{text: `{"a":"adapted","rogue":true}`},
		scriptReply{text: `{"a":"adapted"}`},
	)
	m := newTestMachine(t, `{"a":"original"}`, src, 3)

	res, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.State != domain.SectionAccepted {
		t.Fatalf("State = %s, want accepted", res.State)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(res.Attempts))
	}
	first := res.Attempts[0]
	if first.Outcome != domain.OutcomeRejected {
		t.Errorf("first outcome = %s, want rejected", first.Outcome)
	}
	if len(first.Errors) != 1 || first.Errors[0].Kind != domain.KindExtraKey {
		t.Errorf("first attempt errors = %v, want one extra_key finding", first.Errors)
	}

	if src.callCount("core") != 2 {
		t.Fatalf("source called %d times, want 2", src.callCount("core"))
	}
	retry := src.call("core", 1)
	if retry.Correction == nil {
		t.Fatal("second task carries no correction context")
	}
	if retry.Correction.PreviousOutput != `{"a":"adapted","rogue":true}` {
		t.Errorf("correction previous output = %q", retry.Correction.PreviousOutput)
	}
	if retry.SourceJSON != src.call("core", 0).SourceJSON {
		t.Error("source JSON changed between attempts")
	}
}

func TestSectionMachine_ParseFailureRoutesToCorrection(t *testing.T) {
	src := newScriptedSource()
	src.add("core",
		scriptReply{text: "I am sorry, I cannot produce JSON."},
		scriptReply{text: `{"a":"adapted"}`},
	)
	m := newTestMachine(t, `{"a":"original"}`, src, 3)

	res, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.State != domain.SectionAccepted {
		t.Fatalf("State = %s, want accepted", res.State)
	}
	first := res.Attempts[0]
	if first.Outcome != domain.OutcomeParseFailed {
		t.Errorf("first outcome = %s, want parse_failed", first.Outcome)
	}
	if len(first.Errors) != 1 || first.Errors[0].Kind != domain.KindMalformedJSON {
		t.Errorf("first attempt errors = %v, want one malformed_json finding", first.Errors)
	}
	if first.Parsed != nil {
		t.Error("parse-failed attempt carries a parsed document")
	}
}

func TestSectionMachine_SourceFailureConsumesAttempt(t *testing.T) {
	src := newScriptedSource()
	src.add("core",
		scriptReply{err: errors.New("rate limited")},
		scriptReply{err: errors.New("rate limited")},
		scriptReply{text: `{"a":"adapted"}`},
	)
	m := newTestMachine(t, `{"a":"original"}`, src, 3)

	res, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.State != domain.SectionAccepted {
		t.Fatalf("State = %s, want accepted", res.State)
	}
	if len(res.Attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(res.Attempts))
	}
	for i := 0; i < 2; i++ {
		a := res.Attempts[i]
		if a.Outcome != domain.OutcomeRejected {
			t.Errorf("attempt %d outcome = %s, want rejected", i+1, a.Outcome)
		}
		if len(a.Errors) != 1 || a.Errors[0].Kind != domain.KindSourceUnavailable {
			t.Errorf("attempt %d errors = %v, want one source_unavailable finding", i+1, a.Errors)
		}
	}
}

func TestSectionMachine_ExhaustsAfterMaxAttempts(t *testing.T) {
	src := newScriptedSource()
	src.add("core",
		scriptReply{text: `{"wrong":1}`},
		scriptReply{text: `{"wrong":2}`},
		scriptReply{text: `{"wrong":3}`},
		scriptReply{text: `{"a":"never reached"}`},
	)
	m := newTestMachine(t, `{"a":"original"}`, src, 3)

	res, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.State != domain.SectionExhausted {
		t.Fatalf("State = %s, want exhausted", res.State)
	}
	if len(res.Attempts) != 3 {
		t.Fatalf("attempts = %d, want exactly 3", len(res.Attempts))
	}
	if src.callCount("core") != 3 {
		t.Errorf("source called %d times, want exactly 3", src.callCount("core"))
	}
	if res.Document != nil {
		t.Error("exhausted section carries a document")
	}
	if len(res.LastErrors()) == 0 {
		t.Error("exhausted section has no last errors")
	}
}

func TestSectionMachine_LockedFieldViolationRejected(t *testing.T) {
	src := newScriptedSource()
	src.add("core",
		scriptReply{text: `{"a":"adapted","locked":["tampered"]}`},
		scriptReply{text: `{"a":"adapted","locked":["keep"]}`},
	)
	m := newTestMachine(t, `{"a":"original","locked":["keep"]}`, src, 3)

	res, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.State != domain.SectionAccepted {
		t.Fatalf("State = %s, want accepted", res.State)
	}
	first := res.Attempts[0]
	if len(first.Errors) != 1 || first.Errors[0].Kind != domain.KindLockedFieldViolation {
		t.Errorf("first attempt errors = %v, want one locked_field_violation", first.Errors)
	}
}

func TestSectionMachine_ShapeErrorsPrecedeLockedErrors(t *testing.T) {
	src := newScriptedSource()
	src.add("core", scriptReply{text: `{"a":5,"locked":["tampered"]}`})
	m := newTestMachine(t, `{"a":"original","locked":["keep"]}`, src, 1)

	res, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	errs := res.LastErrors()
	if len(errs) != 2 {
		t.Fatalf("findings = %v, want 2", errs)
	}
	if errs[0].Kind != domain.KindTypeMismatch {
		t.Errorf("first finding = %s, want type_mismatch", errs[0].Kind)
	}
	if errs[1].Kind != domain.KindLockedFieldViolation {
		t.Errorf("second finding = %s, want locked_field_violation", errs[1].Kind)
	}
}

func TestSectionMachine_CorrectionPromptSeesFindings(t *testing.T) {
	src := newScriptedSource()
	src.add("core",
		scriptReply{text: `{"rogue":true}`},
		scriptReply{text: `{"a":"adapted"}`},
	)
	m := newTestMachine(t, `{"a":"original"}`, src, 3)

	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	retry := src.call("core", 1)
	if retry.Correction == nil {
		t.Fatal("retry task has no correction context")
	}
	var kinds []string
	for _, e := range retry.Correction.Errors {
		kinds = append(kinds, string(e.Kind))
	}
	joined := strings.Join(kinds, ",")
	if !strings.Contains(joined, "missing_key") || !strings.Contains(joined, "extra_key") {
		t.Errorf("correction kinds = %v, want missing_key and extra_key", kinds)
	}
}

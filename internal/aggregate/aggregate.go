// Package aggregate joins accepted section outputs into the final document
// and verifies the whole against the input one last time.
package aggregate

import (
	"recontext/internal/compare"
	"recontext/internal/document"
	"recontext/internal/domain"
)

// Input bundles everything assembly needs.
type Input struct {
	Source         *document.Document
	Layout         domain.Layout
	Sections       map[string]*document.Document
	TargetScenario string
}

// Result is the assembled output with its verification outcome. The verdicts
// re-check the full document; per-section validation should make them pass,
// so a FAIL here points at the assembly itself.
type Result struct {
	Output         *document.Document
	Changed        []domain.ChangedFieldEntry
	SchemaFidelity bool
	LockedEquality bool
}

// Assemble overlays the accepted sections onto a copy of the source
// document, pins the scenario key to the target scenario, re-verifies shape
// and locked-field equality, and computes the changed-field list. A missing
// section or section key is an invariant violation, never retried.
func Assemble(in Input) (*Result, error) {
	out, err := document.Merge(in.Source, in.Layout, in.Sections)
	if err != nil {
		return nil, err
	}
	if in.Layout.ScenarioKey != "" {
		root, err := out.Get(in.Layout.Root)
		if err != nil {
			return nil, err
		}
		if err := root.SetField(in.Layout.ScenarioKey, document.NewString(in.TargetScenario)); err != nil {
			return nil, err
		}
	}

	locked := in.Layout.RootedLockedPaths()
	shapeErrs := compare.Shape(in.Source, out)
	lockedErrs := compare.Locked(in.Source, out, locked)
	changed := compare.Changed(in.Source, out, locked)

	return &Result{
		Output:         out,
		Changed:        changed,
		SchemaFidelity: len(shapeErrs) == 0,
		LockedEquality: len(lockedErrs) == 0,
	}, nil
}

// Package scenario loads scenario description pairs for a run.
package scenario

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"recontext/internal/domain"
)

// Pair holds the business scenario a document currently describes and the
// scenario it should be rewritten for.
type Pair struct {
	Current string `yaml:"current"`
	Target  string `yaml:"target"`
}

// LoadPair reads a scenario pair from a YAML file. Both descriptions are
// required.
func LoadPair(path string) (Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pair{}, fmt.Errorf("read scenario file: %w", err)
	}

	var p Pair
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Pair{}, domain.WrapEngineError(domain.ErrScenarioInvalid.Code, "parse scenario YAML", err)
	}
	p.Current = strings.TrimSpace(p.Current)
	p.Target = strings.TrimSpace(p.Target)
	if err := p.Validate(); err != nil {
		return Pair{}, err
	}
	return p, nil
}

// Validate checks that both scenario descriptions are present.
func (p Pair) Validate() error {
	if p.Current == "" {
		return domain.NewEngineError(domain.ErrScenarioInvalid.Code, "current scenario description is empty")
	}
	if p.Target == "" {
		return domain.NewEngineError(domain.ErrScenarioInvalid.Code, "target scenario description is empty")
	}
	return nil
}

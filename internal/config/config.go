// Package config loads and validates the engine's runtime configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"recontext/internal/domain"
)

// CommandConfig defines how to launch a command content source process.
type CommandConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

// SectionConfig names one generation section and the top-level keys it owns.
type SectionConfig struct {
	Name string   `json:"name"`
	Keys []string `json:"keys"`
}

// Config holds the engine's runtime configuration.
type Config struct {
	Provider             string          `json:"provider"`
	Model                string          `json:"model"`
	APIKeyEnv            string          `json:"api_key_env"`
	Command              CommandConfig   `json:"command"`
	MaxAttempts          int             `json:"max_attempts"`
	RequestTimeoutSec    int             `json:"request_timeout_sec"`
	MinRequestIntervalMS int             `json:"min_request_interval_ms"`
	MaxParallelSections  int             `json:"max_parallel_sections"`
	JournalPath          string          `json:"journal_path"`
	RootPath             string          `json:"root_path"`
	LockedPaths          []string        `json:"locked_paths"`
	ScenarioKey          string          `json:"scenario_key"`
	Sections             []SectionConfig `json:"sections"`
}

// Default returns the configuration used when no config file is given:
// the Gemini provider and the simulation document layout.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a JSON config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Layout converts the document-side configuration into a section layout.
func (c *Config) Layout() domain.Layout {
	sections := make([]domain.SectionSpec, 0, len(c.Sections))
	for _, s := range c.Sections {
		sections = append(sections, domain.SectionSpec{
			Name: s.Name,
			Keys: append([]string(nil), s.Keys...),
		})
	}
	return domain.Layout{
		Root:        c.RootPath,
		LockedPaths: append([]string(nil), c.LockedPaths...),
		ScenarioKey: c.ScenarioKey,
		Sections:    sections,
	}
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = string(domain.ProviderGemini)
	}
	if c.Model == "" {
		c.Model = "gemini-2.5-flash"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "GEMINI_API_KEY"
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.RequestTimeoutSec == 0 {
		c.RequestTimeoutSec = 120
	}
	if c.MaxParallelSections == 0 {
		c.MaxParallelSections = 2
	}
	if c.RootPath == "" {
		c.RootPath = "topicWizardData"
	}
	if c.LockedPaths == nil {
		c.LockedPaths = []string{"scenarioOptions"}
	}
	if c.ScenarioKey == "" {
		c.ScenarioKey = "selectedScenarioOption"
	}
	if len(c.Sections) == 0 {
		c.Sections = []SectionConfig{
			{
				Name: "core",
				Keys: []string{
					"lessonInformation",
					"assessmentCriterion",
					"selectedAssessmentCriterion",
					"simulationName",
					"workplaceScenario",
					"industryAlignedActivities",
					"selectedIndustryAlignedActivities",
				},
			},
			{
				Name: "flow",
				Keys: []string{"simulationFlow"},
			},
		}
	}
}

func (c *Config) validate() error {
	var problems []string

	switch domain.Provider(c.Provider) {
	case domain.ProviderGemini:
	case domain.ProviderCommand:
		if c.Command.Command == "" {
			problems = append(problems, "command provider requires command.command")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown provider %q", c.Provider))
	}

	if c.MaxAttempts < 0 {
		problems = append(problems, "max_attempts must not be negative")
	}
	if c.RequestTimeoutSec < 0 {
		problems = append(problems, "request_timeout_sec must not be negative")
	}
	if c.MinRequestIntervalMS < 0 {
		problems = append(problems, "min_request_interval_ms must not be negative")
	}
	if c.MaxParallelSections < 0 {
		problems = append(problems, "max_parallel_sections must not be negative")
	}

	if strings.ContainsAny(c.ScenarioKey, ".[") {
		problems = append(problems, "scenario_key must be a bare key, not a path")
	}

	seenSections := map[string]bool{}
	keyOwner := map[string]string{}
	for _, s := range c.Sections {
		if s.Name == "" {
			problems = append(problems, "every section needs a name")
			continue
		}
		if seenSections[s.Name] {
			problems = append(problems, fmt.Sprintf("duplicate section %q", s.Name))
		}
		seenSections[s.Name] = true
		if len(s.Keys) == 0 {
			problems = append(problems, fmt.Sprintf("section %q has no keys", s.Name))
		}
		for _, k := range s.Keys {
			if owner, taken := keyOwner[k]; taken {
				problems = append(problems, fmt.Sprintf("key %q belongs to both %q and %q", k, owner, s.Name))
				continue
			}
			keyOwner[k] = s.Name
			if k == c.ScenarioKey {
				problems = append(problems, fmt.Sprintf("scenario key %q cannot belong to section %q", k, s.Name))
			}
		}
	}

	if len(problems) > 0 {
		return &domain.EngineError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}

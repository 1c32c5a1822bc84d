package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"certline/pkg/lifecycle"
)

// DefaultImplementationName is the placeholder used until the workspace
// config names the implementation under assessment.
const DefaultImplementationName = "unnamed-implementation"

// Config models certline.yml.
type Config struct {
	Org struct {
		Name string `yaml:"name"`
	} `yaml:"org"`
	Implementation struct {
		// Name identifies the implementation under assessment in
		// reports and history entries.
		Name string `yaml:"name"`
	} `yaml:"implementation"`
	Renewal lifecycle.Policy `yaml:"renewal"`
	History struct {
		Path string `yaml:"path"`
	} `yaml:"history"`
	Reports struct {
		// Dir is where report and badge files are written when the CLI
		// is not given an explicit --output.
		Dir string `yaml:"dir"`
	} `yaml:"reports"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Org.Name == "" {
		return fmt.Errorf("config.org.name is required")
	}
	if c.Renewal.ValidityPeriodDays <= 0 {
		return fmt.Errorf("config.renewal.validity_period_days must be positive")
	}
	if c.Renewal.GracePeriodDays < 0 {
		return fmt.Errorf("config.renewal.grace_period_days must not be negative")
	}
	if c.Renewal.MaxRenewals < 0 {
		return fmt.Errorf("config.renewal.max_renewals must not be negative")
	}
	if c.History.Path == "" {
		return fmt.Errorf("config.history.path is required")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "certline.yml")
}

// Load reads and validates config from workspace. A missing file yields
// the defaults so the CLI works in an empty directory.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	cfg.Org.Name = "Unnamed Organisation"
	cfg.Implementation.Name = DefaultImplementationName
	cfg.Renewal = lifecycle.DefaultPolicy()
	cfg.History.Path = "cert-history.jsonl"
	cfg.Reports.Dir = "."
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Fields the
// YAML omits keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns default config YAML for `certline init`.
func GenerateDefault(orgName string) string {
	return fmt.Sprintf(defaultTemplate, orgName)
}

const defaultTemplate = `org:
  name: %s

implementation:
  name: unnamed-implementation

renewal:
  validity_period_days: 730
  grace_period_days: 30
  max_renewals: 10
  require_reassessment: true

history:
  path: cert-history.jsonl

reports:
  dir: .
`

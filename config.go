package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type MetricSpec struct {
	Key       string `yaml:"key" json:"key"`
	Unit      string `yaml:"unit" json:"unit"`
	Direction string `yaml:"direction" json:"direction"`
}

type ModelSpec struct {
	Path string `yaml:"path" json:"path"`
	Name string `yaml:"name" json:"name"`
}

type ResultsDBSpec struct {
	URL       string `yaml:"url"`
	AuthToken string `yaml:"auth_token"`
}

// RegexList accepts either a single pattern or a sequence of patterns.
type RegexList []string

func (r *RegexList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var single string
		if err := node.Decode(&single); err != nil {
			return err
		}
		*r = RegexList{single}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return err
		}
		*r = RegexList(many)
		return nil
	}
	return fmt.Errorf("metric regex must be a string or a list of strings")
}

type BackendSpec struct {
	Name          string               `yaml:"name"`
	Enabled       *bool                `yaml:"enabled"`
	Command       string               `yaml:"command"`
	Cwd           string               `yaml:"cwd"`
	Env           map[string]string    `yaml:"env"`
	MetricRegexes RegexList            `yaml:"metric_regexes"`
	Parse         map[string]RegexList `yaml:"parse"`
	AuxMetrics    map[string]RegexList `yaml:"aux_metrics"`
}

func (b *BackendSpec) IsEnabled() bool { return b.Enabled == nil || *b.Enabled }

type Config struct {
	BenchmarkName            string            `yaml:"benchmark_name"`
	Hardware                 string            `yaml:"hardware"`
	Model                    ModelSpec         `yaml:"model"`
	Prompt                   string            `yaml:"prompt"`
	MaxTokens                int               `yaml:"max_tokens"`
	Runs                     int               `yaml:"runs"`
	WarmupRuns               int               `yaml:"warmup_runs"`
	TimeoutSeconds           int               `yaml:"timeout_seconds"`
	Strict                   *bool             `yaml:"strict"`
	Metric                   MetricSpec        `yaml:"metric"`
	MetricFallbackToWallTime *bool             `yaml:"metric_fallback_to_wall_time"`
	Variables                map[string]string `yaml:"variables"`
	OutputDir                string            `yaml:"output_dir"`
	ResultsDB                ResultsDBSpec     `yaml:"results_db"`
	Backends                 []BackendSpec     `yaml:"backends"`
}

func DefaultConfig() *Config {
	return &Config{
		BenchmarkName:  "ggufbench",
		MaxTokens:      256,
		Runs:           20,
		WarmupRuns:     3,
		TimeoutSeconds: 900,
		Metric:         MetricSpec{Key: "tokens_per_second", Unit: "tokens/s", Direction: "higher"},
		OutputDir:      "results",
	}
}

// LoadConfig reads a YAML (or JSON, YAML being a superset) benchmark definition
// on top of the defaults and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %v: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	c.Metric.Direction = strings.ToLower(c.Metric.Direction)
	if c.Metric.Direction != "higher" && c.Metric.Direction != "lower" {
		return fmt.Errorf("metric.direction must be 'higher' or 'lower', got '%v'", c.Metric.Direction)
	}
	if c.Runs < 0 || c.WarmupRuns < 0 {
		return fmt.Errorf("runs and warmup_runs must be non-negative")
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive")
	}
	if len(c.Backends) == 0 {
		return fmt.Errorf("config must include a non-empty 'backends' list")
	}
	seen := make(map[string]bool, len(c.Backends))
	for i := range c.Backends {
		name := strings.TrimSpace(c.Backends[i].Name)
		if name == "" {
			return fmt.Errorf("backend #%v must have a non-empty 'name'", i)
		}
		if seen[name] {
			return fmt.Errorf("duplicate backend name '%v'", name)
		}
		seen[name] = true
		c.Backends[i].Name = name
	}
	return nil
}

func (c *Config) IsStrict() bool { return c.Strict == nil || *c.Strict }

func (c *Config) FallbackToWallTime() bool {
	if c.MetricFallbackToWallTime != nil {
		return *c.MetricFallbackToWallTime
	}
	return c.Metric.Key == "wall_seconds"
}

// ParseBackendFilters splits a comma-separated allow-list into lowercase tokens.
func ParseBackendFilters(raw string) []string {
	filters := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			filters = append(filters, item)
		}
	}
	return filters
}

// BackendSelected reports whether a backend name matches the filter list,
// either exactly or as a substring. An empty list selects everything.
func BackendSelected(name string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, token := range filters {
		if token == lower || strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

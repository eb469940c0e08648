// Package config loads .effectlint/config.json with viper.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"effectlint/internal/scoring"
)

// Dir is the per-repository configuration directory.
const Dir = ".effectlint"

// CurrentVersion is the supported config schema version.
const CurrentVersion = 1

// Config represents the complete effectlint configuration
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	Analysis AnalysisConfig  `json:"analysis" mapstructure:"analysis"`
	Guidance GuidanceConfig  `json:"guidance" mapstructure:"guidance"`
	Scoring  scoring.Weights `json:"scoring" mapstructure:"scoring"`
	QA       QAConfig        `json:"qa" mapstructure:"qa"`
	Watcher  WatcherConfig   `json:"watcher" mapstructure:"watcher"`
	Logging  LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// AnalysisConfig contains engine settings
type AnalysisConfig struct {
	// Language is "typescript" or "tsx"
	Language               string `json:"language" mapstructure:"language"`
	EnrichConcurrency      int    `json:"enrichConcurrency" mapstructure:"enrichConcurrency"`
	MaxConsistencyFiles    int    `json:"maxConsistencyFiles" mapstructure:"maxConsistencyFiles"`
	ConsistencyConcurrency int    `json:"consistencyConcurrency" mapstructure:"consistencyConcurrency"`

	// RulesFile holds per-rule overrides, relative to the config directory
	RulesFile string `json:"rulesFile" mapstructure:"rulesFile"`
}

// GuidanceConfig contains guidance cache settings
type GuidanceConfig struct {
	Dir                string `json:"dir" mapstructure:"dir"`
	Capacity           int    `json:"capacity" mapstructure:"capacity"`
	NegativeTtlSeconds int    `json:"negativeTtlSeconds" mapstructure:"negativeTtlSeconds"`
}

// QAConfig contains batch validator settings
type QAConfig struct {
	TscPath        string `json:"tscPath" mapstructure:"tscPath"`
	TimeoutSeconds int    `json:"timeoutSeconds" mapstructure:"timeoutSeconds"`
	Concurrency    int    `json:"concurrency" mapstructure:"concurrency"`
	DbPath         string `json:"dbPath" mapstructure:"dbPath"`
	ResultsDir     string `json:"resultsDir" mapstructure:"resultsDir"`
}

// WatcherConfig contains guidance watcher settings
type WatcherConfig struct {
	Enabled        bool     `json:"enabled" mapstructure:"enabled"`
	DebounceMs     int      `json:"debounceMs" mapstructure:"debounceMs"`
	IgnorePatterns []string `json:"ignorePatterns" mapstructure:"ignorePatterns"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Format is "human" or "json"
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`

	// File additionally receives every log line when set
	File string `json:"file,omitempty" mapstructure:"file"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  CurrentVersion,
		RepoRoot: ".",
		Analysis: AnalysisConfig{
			Language:               "typescript",
			EnrichConcurrency:      4,
			MaxConsistencyFiles:    50,
			ConsistencyConcurrency: 4,
			RulesFile:              "rules.toml",
		},
		Guidance: GuidanceConfig{
			Dir:                "guidance",
			Capacity:           128,
			NegativeTtlSeconds: 30,
		},
		Scoring: scoring.DefaultWeights(),
		QA: QAConfig{
			TscPath:        "tsc",
			TimeoutSeconds: 30,
			Concurrency:    2,
			DbPath:         filepath.Join(Dir, "qa.db"),
		},
		Watcher: WatcherConfig{
			Enabled:    true,
			DebounceMs: 250,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from <repoRoot>/.effectlint/config.json.
// A missing file yields the defaults.
func LoadConfig(repoRoot string) (*Config, error) {
	cfg, err := load(func(v *viper.Viper) {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(filepath.Join(repoRoot, Dir))
	})
	if err != nil {
		return nil, err
	}
	if cfg.RepoRoot == "." || cfg.RepoRoot == "" {
		cfg.RepoRoot = repoRoot
	}
	return cfg, nil
}

// LoadConfigFile loads configuration from an explicit path, which must exist.
func LoadConfigFile(path string) (*Config, error) {
	return load(func(v *viper.Viper) {
		v.SetConfigFile(path)
	})
}

func load(locate func(v *viper.Viper)) (*Config, error) {
	v := viper.New()
	locate(v)

	// Environment overrides for the settings most often changed in CI
	_ = v.BindEnv("logging.level", "EFFECTLINT_LOG_LEVEL")
	_ = v.BindEnv("qa.tscPath", "EFFECTLINT_TSC")
	_ = v.BindEnv("guidance.dir", "EFFECTLINT_GUIDANCE_DIR")

	cfg := DefaultConfig()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &ConfigError{Field: "file", Message: err.Error()}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, &ConfigError{Field: "file", Message: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to <repoRoot>/.effectlint/config.json
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), append(data, '\n'), 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	switch c.Analysis.Language {
	case "typescript", "ts", "tsx":
	default:
		return &ConfigError{Field: "analysis.language", Message: "must be typescript or tsx"}
	}
	if c.Analysis.EnrichConcurrency < 1 {
		return &ConfigError{Field: "analysis.enrichConcurrency", Message: "must be at least 1"}
	}
	if c.Analysis.MaxConsistencyFiles < 2 {
		return &ConfigError{Field: "analysis.maxConsistencyFiles", Message: "must be at least 2"}
	}
	if c.Guidance.Capacity < 1 {
		return &ConfigError{Field: "guidance.capacity", Message: "must be at least 1"}
	}
	if c.QA.Concurrency < 1 {
		return &ConfigError{Field: "qa.concurrency", Message: "must be at least 1"}
	}
	if c.QA.TimeoutSeconds < 1 {
		return &ConfigError{Field: "qa.timeoutSeconds", Message: "must be at least 1"}
	}
	switch c.Logging.Format {
	case "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}
	return nil
}

// Resolve returns p relative to the repository root unless it is absolute.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.RepoRoot, p)
}

// GuidanceDir returns the absolute or root-relative guidance directory.
func (c *Config) GuidanceDir() string {
	return c.Resolve(c.Guidance.Dir)
}

// RulesPath returns the path of the rule settings file.
func (c *Config) RulesPath() string {
	if filepath.IsAbs(c.Analysis.RulesFile) {
		return c.Analysis.RulesFile
	}
	return filepath.Join(c.RepoRoot, Dir, c.Analysis.RulesFile)
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

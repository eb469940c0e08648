package rules

import (
	"errors"
	"fmt"
	"os"
	"sort"

	toml "github.com/pelletier/go-toml/v2"
)

// SettingsFile is the default filename for per-repository rule settings.
const SettingsFile = "rules.toml"

// Settings is the root structure of rules.toml.
type Settings struct {
	// Version is the schema version
	Version int `toml:"version"`

	// Rules holds per-rule overrides
	Rules []RuleSettings `toml:"rule"`
}

// RuleSettings overrides one rule.
type RuleSettings struct {
	ID       string `toml:"id"`
	Disabled bool   `toml:"disabled,omitempty"`

	// Guidance replaces the default <guidance dir>/<id>.md path
	Guidance string `toml:"guidance,omitempty"`

	// MinConfidence drops findings scored below it
	MinConfidence float64 `toml:"min_confidence,omitempty"`

	Severity string `toml:"severity,omitempty"`
}

// ParseSettings decodes rules.toml content.
func ParseSettings(data []byte) (*Settings, error) {
	var s Settings
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", SettingsFile, err)
	}
	if s.Version != 0 && s.Version != 1 {
		return nil, fmt.Errorf("unsupported %s version: %d", SettingsFile, s.Version)
	}
	for i, rs := range s.Rules {
		if rs.ID == "" {
			return nil, fmt.Errorf("%s: rule entry %d has no id", SettingsFile, i)
		}
		if rs.MinConfidence < 0 || rs.MinConfidence > 1 {
			return nil, fmt.Errorf("%s: rule %s: min_confidence must be within [0,1]", SettingsFile, rs.ID)
		}
		switch Severity(rs.Severity) {
		case "", SeverityError, SeverityWarning, SeverityInfo:
		default:
			return nil, fmt.Errorf("%s: rule %s: unknown severity %q", SettingsFile, rs.ID, rs.Severity)
		}
	}
	return &s, nil
}

// LoadSettings reads rules.toml from path. A missing file yields empty settings.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Settings{Version: 1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", SettingsFile, err)
	}
	return ParseSettings(data)
}

// Unknown returns the ids in s that r does not register.
func (s *Settings) Unknown(r *Registry) []string {
	var out []string
	for _, rs := range s.Rules {
		if !r.Has(rs.ID) {
			out = append(out, rs.ID)
		}
	}
	sort.Strings(out)
	return out
}

// GuidancePaths returns the guidance path overrides keyed by rule id.
func (s *Settings) GuidancePaths() map[string]string {
	out := make(map[string]string)
	for _, rs := range s.Rules {
		if rs.Guidance != "" {
			out[rs.ID] = rs.Guidance
		}
	}
	return out
}

package analysis

import (
	"sort"

	"effectlint/internal/guidance"
	"effectlint/internal/rules"
	"effectlint/internal/syntax"
)

// Finding is one scored and annotated rule match.
type Finding struct {
	RuleID     string         `json:"ruleId"`
	Filename   string         `json:"filename"`
	Range      syntax.Range   `json:"range"`
	Message    string         `json:"message"`
	Snippet    string         `json:"snippet,omitempty"`
	Category   rules.Category `json:"category"`
	Severity   rules.Severity `json:"severity"`
	Confidence float64        `json:"confidence"`

	// Guidance is nil when no document could be loaded for the rule
	Guidance *guidance.Doc `json:"guidance,omitempty"`

	FixIDs   []string `json:"fixIds,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Report is the result of analyzing one file.
type Report struct {
	Filename    string    `json:"filename"`
	Findings    []Finding `json:"findings"`
	DurationMs  int64     `json:"durationMs"`
	ParseErrors int       `json:"parseErrors"`

	// Warnings describe what degraded: failed rules, a missing tree
	Warnings []string `json:"warnings,omitempty"`
}

// RuleIDs returns the distinct rule ids of the findings, sorted.
func (r *Report) RuleIDs() []string {
	seen := make(map[string]bool, len(r.Findings))
	ids := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		if !seen[f.RuleID] {
			seen[f.RuleID] = true
			ids = append(ids, f.RuleID)
		}
	}
	sort.Strings(ids)
	return ids
}

// HasRule reports whether any finding belongs to ruleID.
func (r *Report) HasRule(ruleID string) bool {
	for _, f := range r.Findings {
		if f.RuleID == ruleID {
			return true
		}
	}
	return false
}

// sortFindings orders findings by position, then rule id.
func sortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i].Range, fs[j].Range
		if a.StartByte != b.StartByte {
			return a.StartByte < b.StartByte
		}
		if fs[i].RuleID != fs[j].RuleID {
			return fs[i].RuleID < fs[j].RuleID
		}
		return a.EndByte < b.EndByte
	})
}

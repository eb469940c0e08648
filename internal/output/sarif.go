package output

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"effectlint/internal/analysis"
	"effectlint/internal/rules"
)

// SARIF 2.1.0, reduced to what code-scanning uploads read.
// See: https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-v2.1.0.html

const sarifSchema = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"

type SARIFReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []SARIFRun `json:"runs"`
}

type SARIFRun struct {
	Tool    SARIFTool     `json:"tool"`
	Results []SARIFResult `json:"results"`
}

type SARIFTool struct {
	Driver SARIFDriver `json:"driver"`
}

type SARIFDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []SARIFRule `json:"rules,omitempty"`
}

type SARIFRule struct {
	ID                   string                 `json:"id"`
	ShortDescription     SARIFMessage           `json:"shortDescription"`
	DefaultConfiguration SARIFRuleConfiguration `json:"defaultConfiguration"`
	Properties           map[string]interface{} `json:"properties,omitempty"`
}

type SARIFRuleConfiguration struct {
	Level string `json:"level"`
}

type SARIFResult struct {
	RuleID       string                 `json:"ruleId"`
	RuleIndex    int                    `json:"ruleIndex"`
	Level        string                 `json:"level"`
	Message      SARIFMessage           `json:"message"`
	Locations    []SARIFLocation        `json:"locations"`
	Fingerprints map[string]string      `json:"partialFingerprints,omitempty"`
	Properties   map[string]interface{} `json:"properties,omitempty"`
}

type SARIFMessage struct {
	Text string `json:"text"`
}

type SARIFLocation struct {
	PhysicalLocation SARIFPhysicalLocation `json:"physicalLocation"`
}

type SARIFPhysicalLocation struct {
	ArtifactLocation SARIFArtifactLocation `json:"artifactLocation"`
	Region           SARIFRegion           `json:"region"`
}

type SARIFArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId,omitempty"`
}

// SARIFRegion positions are 1-based.
type SARIFRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// FormatSARIF converts reports into one SARIF run. Descriptors become the
// driver's rules; findings of rules not among them are still reported.
// File paths are made relative to root when possible.
func FormatSARIF(reports []*analysis.Report, ds []rules.Descriptor, version, root string) ([]byte, error) {
	index := make(map[string]int, len(ds))
	sarifRules := make([]SARIFRule, 0, len(ds))
	for _, d := range ds {
		index[d.ID] = len(sarifRules)
		sarifRules = append(sarifRules, SARIFRule{
			ID:                   d.ID,
			ShortDescription:     SARIFMessage{Text: d.Summary},
			DefaultConfiguration: SARIFRuleConfiguration{Level: sarifLevel(string(d.Severity))},
			Properties: map[string]interface{}{
				"tags": []string{"effect", string(d.Category)},
			},
		})
	}

	results := []SARIFResult{}
	for _, row := range reports {
		if row == nil {
			continue
		}
		for _, f := range row.Findings {
			idx, ok := index[f.RuleID]
			if !ok {
				idx = -1
			}
			uri := relativeURI(f.Filename, root)
			results = append(results, SARIFResult{
				RuleID:    f.RuleID,
				RuleIndex: idx,
				Level:     sarifLevel(string(f.Severity)),
				Message:   SARIFMessage{Text: f.Message},
				Locations: []SARIFLocation{{
					PhysicalLocation: SARIFPhysicalLocation{
						ArtifactLocation: SARIFArtifactLocation{URI: uri, URIBaseID: "%SRCROOT%"},
						Region: SARIFRegion{
							StartLine:   f.Range.StartLine,
							StartColumn: f.Range.StartColumn,
							EndLine:     f.Range.EndLine,
							EndColumn:   f.Range.EndColumn,
						},
					},
				}},
				Fingerprints: map[string]string{
					"effectlint/v1": fingerprint(uri, f.RuleID, f.Snippet),
				},
				Properties: map[string]interface{}{
					"confidence": RoundFloat(f.Confidence),
				},
			})
		}
	}

	report := SARIFReport{
		Schema:  sarifSchema,
		Version: "2.1.0",
		Runs: []SARIFRun{{
			Tool:    SARIFTool{Driver: SARIFDriver{Name: "effectlint", Version: version, Rules: sarifRules}},
			Results: results,
		}},
	}
	data, err := DeterministicEncodeIndented(report, "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SARIF: %w", err)
	}
	return data, nil
}

func sarifLevel(severity string) string {
	switch SeverityRank(severity) {
	case 1:
		return "error"
	case 2:
		return "warning"
	default:
		return "note"
	}
}

// fingerprint is stable across line shifts: it hashes the file, rule and
// matched text rather than the position.
func fingerprint(uri, ruleID, snippet string) string {
	sum := sha256.Sum256([]byte(uri + "\x00" + ruleID + "\x00" + snippet))
	return hex.EncodeToString(sum[:])[:16]
}

func relativeURI(path, root string) string {
	if root == "" || !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

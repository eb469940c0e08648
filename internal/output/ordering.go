package output

import (
	"sort"

	"effectlint/internal/analysis"
)

// severityRank orders severities for display. Lower sorts first.
var severityRank = map[string]int{
	"error":   1,
	"warning": 2,
	"info":    3,
}

// SeverityRank returns the display priority of severity. Unknown values sort
// with info.
func SeverityRank(severity string) int {
	if r, ok := severityRank[severity]; ok {
		return r
	}
	return severityRank["info"]
}

// Row is one finding flattened for listing across files.
type Row struct {
	File       string  `json:"file"`
	Line       int     `json:"line"`
	Column     int     `json:"column"`
	RuleID     string  `json:"ruleId"`
	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence"`
	Message    string  `json:"message"`
	Guidance   string  `json:"guidance,omitempty"`
}

// RowsFromReports flattens reports into display rows, sorted by SortRows.
// Positions are the findings' 1-based lines and columns.
func RowsFromReports(reports []*analysis.Report) []Row {
	rows := []Row{}
	for _, r := range reports {
		if r == nil {
			continue
		}
		for _, f := range r.Findings {
			row := Row{
				File:       f.Filename,
				Line:       f.Range.StartLine,
				Column:     f.Range.StartColumn,
				RuleID:     f.RuleID,
				Severity:   string(f.Severity),
				Confidence: RoundFloat(f.Confidence),
				Message:    f.Message,
			}
			if f.Guidance != nil {
				row.Guidance = f.Guidance.Title
			}
			rows = append(rows, row)
		}
	}
	SortRows(rows)
	return rows
}

// SortRows sorts rows by severity, file ASC, line ASC, column ASC, rule ASC
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if ra, rb := SeverityRank(a.Severity), SeverityRank(b.Severity); ra != rb {
			return ra < rb
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.RuleID < b.RuleID
	})
}

// Summary counts findings per severity.
type Summary struct {
	Files    int `json:"files"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
}

// Summarize counts rows over the given number of analyzed files.
func Summarize(files int, rows []Row) Summary {
	s := Summary{Files: files}
	for _, r := range rows {
		switch SeverityRank(r.Severity) {
		case 1:
			s.Errors++
		case 2:
			s.Warnings++
		default:
			s.Infos++
		}
	}
	return s
}

// Total returns the number of counted findings.
func (s Summary) Total() int {
	return s.Errors + s.Warnings + s.Infos
}

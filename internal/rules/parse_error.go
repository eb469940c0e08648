package rules

import (
	"fmt"

	"effectlint/internal/syntax"
)

// ParseErrorID is the rule id of the synthetic malformed-source finding.
const ParseErrorID = "parse-error"

// ParseError reports a source that did not parse cleanly. It emits at most
// one match, at the first error.
type ParseError struct{ base }

func NewParseError() *ParseError {
	return &ParseError{base{Descriptor{
		ID:             ParseErrorID,
		Category:       CategorySyntax,
		Severity:       SeverityError,
		Summary:        "source contains syntax errors; findings may be incomplete",
		BaseConfidence: 1,
	}}}
}

func (r *ParseError) Detect(doc *syntax.Document) []RawMatch {
	errs := doc.ParseErrors()
	if len(errs) == 0 {
		return nil
	}
	first := errs[0]
	kind := "syntax error"
	if first.Missing {
		kind = "missing " + first.Text
	}
	return []RawMatch{{
		RuleID:  r.ID(),
		Range:   first.Range,
		Snippet: snippet(first.Text),
		Message: fmt.Sprintf("%s at line %d (%d error(s) in file)", kind, first.Range.StartLine, len(errs)),
	}}
}

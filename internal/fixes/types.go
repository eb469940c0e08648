// Package fixes holds the registered source transforms and renders their
// results as full-file previews.
package fixes

import (
	"github.com/pmezard/go-difflib/difflib"

	"effectlint/internal/rules"
	"effectlint/internal/syntax"
)

// Edit replaces Source[Start:End] with Replacement.
type Edit struct {
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Replacement string `json:"replacement"`
}

// Fix is one registered transform. Transform must not modify the document;
// it returns the edit that would repair the match, or false when the match
// is not fixable.
type Fix interface {
	ID() string
	AppliesTo() []string
	Description() string
	Transform(doc *syntax.Document, m rules.RawMatch) (Edit, bool)
}

// Change is the preview of one file.
type Change struct {
	Filename string   `json:"filename"`
	Before   string   `json:"before"`
	After    string   `json:"after"`
	FixIDs   []string `json:"fixIds"`
}

// UnifiedDiff renders the change as a unified diff.
func (c Change) UnifiedDiff() (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(c.Before),
		B:        difflib.SplitLines(c.After),
		FromFile: "a/" + c.Filename,
		ToFile:   "b/" + c.Filename,
		Context:  3,
	})
}

// Output is the result of a fix request. Applied is only set by callers that
// write the changes somewhere; generating a fix never does.
type Output struct {
	Applied bool     `json:"applied"`
	Changes []Change `json:"changes"`
}

// EmptyOutput returns an output with no changes.
func EmptyOutput() Output {
	return Output{Changes: []Change{}}
}

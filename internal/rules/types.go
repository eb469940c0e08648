// Package rules holds the anti-pattern detectors and the immutable registry
// that runs them against a shared syntax.Document.
package rules

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"effectlint/internal/syntax"
)

// Category groups rules by the concern they police.
type Category string

const (
	CategoryErrorHandling Category = "error-handling"
	CategoryPlatform      Category = "platform"
	CategoryEffectUsage   Category = "effect-usage"
	CategorySyntax        Category = "syntax"
)

// Severity is how strongly a finding should be acted on.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Descriptor is the static, serializable description of a rule.
type Descriptor struct {
	ID             string   `json:"id"`
	Category       Category `json:"category"`
	Severity       Severity `json:"severity"`
	Summary        string   `json:"summary"`
	FixIDs         []string `json:"fixIds,omitempty"`
	BaseConfidence float64  `json:"baseConfidence"`
	MinConfidence  float64  `json:"minConfidence,omitempty"`
	GuidancePath   string   `json:"guidancePath,omitempty"`
}

// Rule is one detector. Detect must be pure: it may only read the document.
type Rule interface {
	ID() string
	Descriptor() Descriptor
	Detect(doc *syntax.Document) []RawMatch
}

// RawMatch is an unscored hit of one rule.
type RawMatch struct {
	RuleID  string       `json:"ruleId"`
	Range   syntax.Range `json:"range"`
	Snippet string       `json:"snippet"`
	Message string       `json:"message"`

	node *sitter.Node
}

// Node returns the matched node, or nil for synthetic matches.
func (m RawMatch) Node() *sitter.Node {
	return m.node
}

// NewMatch builds a match covering node.
func NewMatch(doc *syntax.Document, ruleID string, node *sitter.Node, message string) RawMatch {
	return RawMatch{
		RuleID:  ruleID,
		Range:   syntax.RangeOf(node),
		Snippet: snippet(doc.Text(node)),
		Message: message,
		node:    node,
	}
}

// snippet keeps the first line of the matched text, bounded in length.
func snippet(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if len(text) > 120 {
		text = text[:117] + "..."
	}
	return text
}

// base carries the descriptor shared by every rule implementation.
type base struct {
	d Descriptor
}

func (b base) ID() string {
	return b.d.ID
}

func (b base) Descriptor() Descriptor {
	d := b.d
	d.FixIDs = append([]string(nil), b.d.FixIDs...)
	return d
}

func (b base) match(doc *syntax.Document, node *sitter.Node, message string) RawMatch {
	return NewMatch(doc, b.d.ID, node, message)
}

package rules

import (
	sitter "github.com/smacker/go-tree-sitter"

	"effectlint/internal/syntax"
)

var runners = map[string]bool{
	"runSync":        true,
	"runSyncExit":    true,
	"runPromise":     true,
	"runPromiseExit": true,
	"runFork":        true,
	"runCallback":    true,
}

// RunEffectInsideEffect flags Effect.run* calls nested in an Effect.gen body.
type RunEffectInsideEffect struct{ base }

func NewRunEffectInsideEffect() *RunEffectInsideEffect {
	return &RunEffectInsideEffect{base{Descriptor{
		ID:             "run-effect-inside-effect",
		Category:       CategoryEffectUsage,
		Severity:       SeverityWarning,
		Summary:        "effect executed from inside another effect; yield it instead",
		BaseConfidence: 0.8,
	}}}
}

func (r *RunEffectInsideEffect) Detect(doc *syntax.Document) []RawMatch {
	var out []RawMatch
	doc.Walk(func(n *sitter.Node, _ syntax.Path) bool {
		if n.Type() != "call_expression" {
			return true
		}
		obj, prop := syntax.CalleeProperty(n, doc.Source)
		if runners[prop] && doc.IsEffectName(obj) && doc.InEffectGen(syntax.RangeOf(n)) {
			out = append(out, r.match(doc, n, "Effect."+prop+" inside Effect.gen loses interruption and context"))
		}
		return true
	})
	return out
}

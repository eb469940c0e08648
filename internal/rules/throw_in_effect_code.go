package rules

import (
	sitter "github.com/smacker/go-tree-sitter"

	"effectlint/internal/syntax"
)

// ThrowInEffectCode flags a throw inside a function that returns an Effect,
// in a file that imports effect.
type ThrowInEffectCode struct{ base }

func NewThrowInEffectCode() *ThrowInEffectCode {
	return &ThrowInEffectCode{base{Descriptor{
		ID:             "throw-in-effect-code",
		Category:       CategoryErrorHandling,
		Severity:       SeverityError,
		Summary:        "throw used in a function that returns an Effect; return Effect.fail instead",
		BaseConfidence: 0.75,
	}}}
}

func (r *ThrowInEffectCode) Detect(doc *syntax.Document) []RawMatch {
	if !doc.ImportsEffect() {
		return nil
	}
	var out []RawMatch
	doc.Walk(func(n *sitter.Node, path syntax.Path) bool {
		if n.Type() != "throw_statement" {
			return true
		}
		for _, fn := range path.Functions() {
			if returnsEffect(doc, fn) {
				out = append(out, r.match(doc, n, "throw inside a function that returns an Effect escapes the typed error channel"))
				break
			}
		}
		return true
	})
	return out
}

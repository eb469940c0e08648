package rules

import (
	sitter "github.com/smacker/go-tree-sitter"

	"effectlint/internal/syntax"
)

// ThrowInsideEffectLogic flags a throw directly inside an Effect.gen body.
type ThrowInsideEffectLogic struct{ base }

func NewThrowInsideEffectLogic() *ThrowInsideEffectLogic {
	return &ThrowInsideEffectLogic{base{Descriptor{
		ID:             "throw-inside-effect-logic",
		Category:       CategoryErrorHandling,
		Severity:       SeverityError,
		Summary:        "throw inside Effect.gen; use `return yield* Effect.fail(...)`",
		FixIDs:         []string{"throw-to-fail"},
		BaseConfidence: 0.85,
	}}}
}

func (r *ThrowInsideEffectLogic) Detect(doc *syntax.Document) []RawMatch {
	if !doc.ImportsEffect() {
		return nil
	}
	var out []RawMatch
	doc.Walk(func(n *sitter.Node, path syntax.Path) bool {
		if n.Type() != "throw_statement" {
			return true
		}
		fn, depth := path.NearestFunction()
		if syntax.IsGenerator(fn) && doc.IsEffectGenCall(syntax.CallReceiving(path, depth)) {
			out = append(out, r.match(doc, n, "throw inside an Effect generator is a defect, not a typed failure"))
		}
		return true
	})
	return out
}

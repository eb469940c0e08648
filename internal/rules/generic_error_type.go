package rules

import (
	sitter "github.com/smacker/go-tree-sitter"

	"effectlint/internal/syntax"
)

// errorTypedCombinators take a callback whose parameter is the failure.
var errorTypedCombinators = map[string]bool{
	"catch":    true,
	"catchAll": true,
	"mapError": true,
	"orElse":   true,
	"tapError": true,
}

// GenericErrorType flags handlers that annotate the failure as plain Error.
type GenericErrorType struct{ base }

func NewGenericErrorType() *GenericErrorType {
	return &GenericErrorType{base{Descriptor{
		ID:             "generic-error-type",
		Category:       CategoryErrorHandling,
		Severity:       SeverityInfo,
		Summary:        "failure typed as Error; use a tagged domain error",
		BaseConfidence: 0.6,
	}}}
}

func (r *GenericErrorType) Detect(doc *syntax.Document) []RawMatch {
	var out []RawMatch
	doc.Walk(func(n *sitter.Node, _ syntax.Path) bool {
		switch n.Type() {
		case "catch_clause":
			if isGenericError(syntax.AnnotationType(n.ChildByFieldName("type"), doc.Source)) {
				out = append(out, r.match(doc, n, "caught value annotated as Error"))
			}
		case "call_expression":
			_, prop := syntax.CalleeProperty(n, doc.Source)
			if !errorTypedCombinators[prop] {
				return true
			}
			for _, arg := range syntax.Arguments(n) {
				if syntax.IsFunction(arg) && isGenericError(syntax.FirstParameterType(arg, doc.Source)) {
					out = append(out, r.match(doc, arg, "error handler parameter typed as Error"))
				}
			}
		}
		return true
	})
	return out
}

func isGenericError(t string) bool {
	return t == "Error" || t == "globalThis.Error"
}

package rules

import (
	sitter "github.com/smacker/go-tree-sitter"

	"effectlint/internal/syntax"
)

// pipelineCombinators take callbacks that run inside an Effect pipeline.
var pipelineCombinators = map[string]bool{
	"map":          true,
	"flatMap":      true,
	"tap":          true,
	"andThen":      true,
	"mapError":     true,
	"mapBoth":      true,
	"tapError":     true,
	"catchAll":     true,
	"catchTag":     true,
	"orElse":       true,
	"zipWith":      true,
	"forEach":      true,
	"filterOrElse": true,
	"sync":         true,
	"suspend":      true,
}

// ThrowInEffectPipeline flags a throw in a callback handed to an Effect
// combinator or to pipe.
type ThrowInEffectPipeline struct{ base }

func NewThrowInEffectPipeline() *ThrowInEffectPipeline {
	return &ThrowInEffectPipeline{base{Descriptor{
		ID:             "throw-in-effect-pipeline",
		Category:       CategoryErrorHandling,
		Severity:       SeverityError,
		Summary:        "throw inside a pipeline callback becomes a defect; return a failure instead",
		BaseConfidence: 0.8,
	}}}
}

func (r *ThrowInEffectPipeline) Detect(doc *syntax.Document) []RawMatch {
	if !doc.ImportsEffect() {
		return nil
	}
	var out []RawMatch
	doc.Walk(func(n *sitter.Node, path syntax.Path) bool {
		if n.Type() != "throw_statement" {
			return true
		}
		fn, depth := path.NearestFunction()
		if fn == nil {
			return true
		}
		if call := syntax.CallReceiving(path, depth); call != nil && r.isPipelineCall(doc, call) {
			out = append(out, r.match(doc, n, "throw inside a pipeline callback; use Effect.fail or a failing combinator"))
		}
		return true
	})
	return out
}

func (r *ThrowInEffectPipeline) isPipelineCall(doc *syntax.Document, call *sitter.Node) bool {
	obj, prop := syntax.CalleeProperty(call, doc.Source)
	if prop == "pipe" {
		return true
	}
	if !pipelineCombinators[prop] {
		return false
	}
	return doc.IsEffectName(obj) || effectModules[obj]
}

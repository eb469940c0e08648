package rules

import "effectlint/internal/syntax"

// TryCatchInEffect flags a try/catch inside an Effect.gen body whose handler
// does not move the error into the failure channel.
type TryCatchInEffect struct{ base }

func NewTryCatchInEffect() *TryCatchInEffect {
	return &TryCatchInEffect{base{Descriptor{
		ID:             "try-catch-in-effect",
		Category:       CategoryErrorHandling,
		Severity:       SeverityWarning,
		Summary:        "try/catch inside Effect.gen; use Effect.try or catchAll with a typed failure",
		BaseConfidence: 0.8,
	}}}
}

func (r *TryCatchInEffect) Detect(doc *syntax.Document) []RawMatch {
	var out []RawMatch
	for _, h := range findHandlers(doc) {
		if h.clause && h.genCatch && !converts(doc, h.body) {
			out = append(out, r.match(doc, h.node, "catch inside Effect.gen neither rethrows nor fails the effect"))
		}
	}
	return out
}

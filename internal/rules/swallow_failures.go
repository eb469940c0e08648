package rules

import "effectlint/internal/syntax"

// SwallowFailuresWithoutLogging flags handlers that drop a failure silently.
type SwallowFailuresWithoutLogging struct{ base }

func NewSwallowFailuresWithoutLogging() *SwallowFailuresWithoutLogging {
	return &SwallowFailuresWithoutLogging{base{Descriptor{
		ID:             "swallow-failures-without-logging",
		Category:       CategoryErrorHandling,
		Severity:       SeverityError,
		Summary:        "error is suppressed with no logging and no propagation",
		BaseConfidence: 0.65,
	}}}
}

func (r *SwallowFailuresWithoutLogging) Detect(doc *syntax.Document) []RawMatch {
	if !doc.ImportsEffect() {
		return nil
	}
	var out []RawMatch
	for _, h := range findHandlers(doc) {
		if !converts(doc, h.body) && !logs(doc, h.body) {
			out = append(out, r.match(doc, h.node, "handler discards the failure without a trace"))
		}
	}
	return out
}

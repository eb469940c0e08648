package rules

import "effectlint/internal/syntax"

// CatchLogAndSwallow flags handlers that log a failure and then carry on.
type CatchLogAndSwallow struct{ base }

func NewCatchLogAndSwallow() *CatchLogAndSwallow {
	return &CatchLogAndSwallow{base{Descriptor{
		ID:             "catch-log-and-swallow",
		Category:       CategoryErrorHandling,
		Severity:       SeverityWarning,
		Summary:        "error is logged and then swallowed; callers observe success",
		BaseConfidence: 0.7,
	}}}
}

func (r *CatchLogAndSwallow) Detect(doc *syntax.Document) []RawMatch {
	if !doc.ImportsEffect() {
		return nil
	}
	var out []RawMatch
	for _, h := range findHandlers(doc) {
		if !converts(doc, h.body) && logs(doc, h.body) {
			out = append(out, r.match(doc, h.node, "handler logs the failure but does not propagate it"))
		}
	}
	return out
}

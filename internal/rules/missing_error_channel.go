package rules

import "effectlint/internal/syntax"

// MissingErrorChannel flags a catch inside an Effect.gen body that turns a
// failure into a success value, hiding it from the effect's error type.
type MissingErrorChannel struct{ base }

func NewMissingErrorChannel() *MissingErrorChannel {
	return &MissingErrorChannel{base{Descriptor{
		ID:             "missing-error-channel",
		Category:       CategoryErrorHandling,
		Severity:       SeverityWarning,
		Summary:        "caught failure is returned as success; model it in the error channel",
		BaseConfidence: 0.7,
	}}}
}

func (r *MissingErrorChannel) Detect(doc *syntax.Document) []RawMatch {
	var out []RawMatch
	for _, h := range findHandlers(doc) {
		if !h.clause || !h.genCatch || converts(doc, h.body) {
			continue
		}
		if producesValue(doc, h.body) {
			out = append(out, r.match(doc, h.node, "failure converted to a success value; the error type no longer mentions it"))
		}
	}
	return out
}

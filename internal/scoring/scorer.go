// Package scoring assigns a confidence in [0,1] to raw rule matches using
// signals read from the already-built document.
package scoring

import (
	"math"

	"effectlint/internal/rules"
	"effectlint/internal/syntax"
)

// precision keeps confidences to 6 decimal places.
const precision = 1e6

// DefaultBaseConfidence is used for rules that declare no base confidence.
const DefaultBaseConfidence = 0.7

// Weights are the confidence adjustments applied per signal.
type Weights struct {
	EffectImport     float64 `json:"effectImport" mapstructure:"effectImport"`
	InEffectGen      float64 `json:"inEffectGen" mapstructure:"inEffectGen"`
	TestFile         float64 `json:"testFile" mapstructure:"testFile"`
	InsideParseError float64 `json:"insideParseError" mapstructure:"insideParseError"`
	NearParseError   float64 `json:"nearParseError" mapstructure:"nearParseError"`
	Suppressed       float64 `json:"suppressed" mapstructure:"suppressed"`
}

// DefaultWeights returns the stock signal weights.
func DefaultWeights() Weights {
	return Weights{
		EffectImport:     0.1,
		InEffectGen:      0.05,
		TestFile:         -0.2,
		InsideParseError: -0.3,
		NearParseError:   -0.15,
		Suppressed:       -0.5,
	}
}

// Signal is one adjustment that contributed to a score.
type Signal struct {
	Name  string  `json:"name"`
	Delta float64 `json:"delta"`
}

// Scorer is stateless and safe for concurrent use.
type Scorer struct {
	weights Weights
}

// New creates a scorer with the given weights.
func New(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// NewDefault creates a scorer with DefaultWeights.
func NewDefault() *Scorer {
	return New(DefaultWeights())
}

// Score returns the confidence of m.
func (s *Scorer) Score(doc *syntax.Document, d rules.Descriptor, m rules.RawMatch) float64 {
	c, _ := s.Explain(doc, d, m)
	return c
}

// Explain returns the confidence of m and the signals that shaped it.
func (s *Scorer) Explain(doc *syntax.Document, d rules.Descriptor, m rules.RawMatch) (float64, []Signal) {
	base := d.BaseConfidence
	if base <= 0 {
		base = DefaultBaseConfidence
	}

	var signals []Signal
	add := func(name string, delta float64) {
		if delta != 0 {
			signals = append(signals, Signal{Name: name, Delta: delta})
		}
	}

	// A parse-error match is the error itself; context signals do not apply.
	if d.Category != rules.CategorySyntax {
		if d.Category == rules.CategoryErrorHandling && doc.ImportsEffect() {
			add("effect-import", s.weights.EffectImport)
		}
		if doc.InEffectGen(m.Range) {
			add("in-effect-gen", s.weights.InEffectGen)
		}
		if doc.IsTestFile() {
			add("test-file", s.weights.TestFile)
		}
		switch parseErrorProximity(doc, m.Range) {
		case inside:
			add("inside-parse-error", s.weights.InsideParseError)
		case sameLine:
			add("near-parse-error", s.weights.NearParseError)
		}
	}
	if doc.Suppressed(m.Range.StartLine, d.ID) {
		add("suppressed", s.weights.Suppressed)
	}

	c := base
	for _, sig := range signals {
		c += sig.Delta
	}
	return clamp(c), signals
}

type proximity int

const (
	far proximity = iota
	sameLine
	inside
)

func parseErrorProximity(doc *syntax.Document, r syntax.Range) proximity {
	best := far
	for _, pe := range doc.ParseErrors() {
		if pe.Range.Overlaps(r) || pe.Range.Contains(r) {
			return inside
		}
		if pe.Range.StartLine <= r.EndLine && pe.Range.EndLine >= r.StartLine {
			best = sameLine
		}
	}
	return best
}

func clamp(c float64) float64 {
	switch {
	case c < 0:
		c = 0
	case c > 1:
		c = 1
	}
	return math.Round(c*precision) / precision
}

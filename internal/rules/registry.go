package rules

import (
	"fmt"
	"sort"
	"strings"

	"effectlint/internal/syntax"
)

// Registry is an ordered, immutable collection of rules. Build it once at
// startup and share it; it is safe for concurrent use.
type Registry struct {
	rules []Rule
	index map[string]int
}

// Failure records a rule that could not complete on a document.
type Failure struct {
	RuleID string
	Err    error
}

// NewRegistry creates a registry from rules, in order. Rule ids must be
// non-empty and unique.
func NewRegistry(rs ...Rule) (*Registry, error) {
	r := &Registry{
		rules: make([]Rule, 0, len(rs)),
		index: make(map[string]int, len(rs)),
	}
	for _, rule := range rs {
		id := strings.TrimSpace(rule.ID())
		if id == "" {
			return nil, fmt.Errorf("rule with empty id")
		}
		if _, dup := r.index[id]; dup {
			return nil, fmt.Errorf("duplicate rule id: %s", id)
		}
		r.index[id] = len(r.rules)
		r.rules = append(r.rules, rule)
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics on error, for static rule sets.
func MustRegistry(rs ...Rule) *Registry {
	r, err := NewRegistry(rs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	return len(r.rules)
}

// Get returns a rule by id.
func (r *Registry) Get(id string) (Rule, bool) {
	idx, ok := r.index[strings.TrimSpace(id)]
	if !ok {
		return nil, false
	}
	return r.rules[idx], true
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.index[strings.TrimSpace(id)]
	return ok
}

// Rules returns the rules in registration order.
func (r *Registry) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Descriptors returns every rule descriptor sorted by id.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule.Descriptor())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Run executes every rule against doc. A rule that panics is reported as a
// Failure and does not affect the others. Matches whose range falls outside
// the source are dropped.
func (r *Registry) Run(doc *syntax.Document) ([]RawMatch, []Failure) {
	var all []RawMatch
	var failures []Failure
	for _, rule := range r.rules {
		ms, err := RunRule(rule, doc)
		if err != nil {
			failures = append(failures, Failure{RuleID: rule.ID(), Err: err})
			continue
		}
		all = append(all, ms...)
	}
	return all, failures
}

// RunRule executes one rule, recovering from panics and normalizing matches.
func RunRule(rule Rule, doc *syntax.Document) (ms []RawMatch, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ms = nil
			err = fmt.Errorf("rule %s panicked: %v", rule.ID(), rec)
		}
	}()

	raw := rule.Detect(doc)
	ms = raw[:0]
	for _, m := range raw {
		if m.Range.StartByte < 0 || m.Range.EndByte > len(doc.Source) || m.Range.StartByte > m.Range.EndByte {
			continue
		}
		m.RuleID = rule.ID()
		ms = append(ms, m)
	}
	return ms, nil
}

// configured overrides the descriptor of a wrapped rule.
type configured struct {
	Rule
	d Descriptor
}

func (c configured) Descriptor() Descriptor {
	d := c.d
	d.FixIDs = append([]string(nil), c.d.FixIDs...)
	return d
}

// Configure returns a new registry with settings applied: disabled rules are
// left out and descriptor overrides take effect. Unknown ids are ignored; see
// Settings.Unknown.
func (r *Registry) Configure(s *Settings) *Registry {
	if s == nil || len(s.Rules) == 0 {
		return r
	}
	byID := make(map[string]RuleSettings, len(s.Rules))
	for _, rs := range s.Rules {
		byID[strings.TrimSpace(rs.ID)] = rs
	}

	out := &Registry{index: make(map[string]int, len(r.rules))}
	for _, rule := range r.rules {
		rs, ok := byID[rule.ID()]
		if ok && rs.Disabled {
			continue
		}
		if ok {
			d := rule.Descriptor()
			if rs.Guidance != "" {
				d.GuidancePath = rs.Guidance
			}
			if rs.MinConfidence > 0 {
				d.MinConfidence = rs.MinConfidence
			}
			if rs.Severity != "" {
				d.Severity = Severity(rs.Severity)
			}
			rule = configured{Rule: rule, d: d}
		}
		out.index[rule.ID()] = len(out.rules)
		out.rules = append(out.rules, rule)
	}
	return out
}

package fixes

import (
	"fmt"
	"sort"
	"strings"

	"effectlint/internal/rules"
	"effectlint/internal/syntax"
)

// Registry is an immutable set of fixes keyed by id.
type Registry struct {
	fixes []Fix
	index map[string]int
}

// NewRegistry creates a registry. Ids must be non-empty and unique.
func NewRegistry(fs ...Fix) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(fs))}
	for _, f := range fs {
		id := strings.TrimSpace(f.ID())
		if id == "" {
			return nil, fmt.Errorf("fix with empty id")
		}
		if _, dup := r.index[id]; dup {
			return nil, fmt.Errorf("duplicate fix id: %s", id)
		}
		if len(f.AppliesTo()) == 0 {
			return nil, fmt.Errorf("fix %s applies to no rule", id)
		}
		r.index[id] = len(r.fixes)
		r.fixes = append(r.fixes, f)
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics on error.
func MustRegistry(fs ...Fix) *Registry {
	r, err := NewRegistry(fs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns the built-in fixes.
func Default() *Registry {
	return MustRegistry(
		NewReplaceNodeFS(),
		NewReplaceNodePath(),
		NewThrowToFail(),
	)
}

// Get returns a fix by id.
func (r *Registry) Get(id string) (Fix, bool) {
	idx, ok := r.index[strings.TrimSpace(id)]
	if !ok {
		return nil, false
	}
	return r.fixes[idx], true
}

// IDs returns the registered fix ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.fixes))
	for _, f := range r.fixes {
		ids = append(ids, f.ID())
	}
	sort.Strings(ids)
	return ids
}

// ForRule returns the fixes that apply to ruleID, in registration order.
func (r *Registry) ForRule(ruleID string) []Fix {
	var out []Fix
	for _, f := range r.fixes {
		if Applies(f, ruleID) {
			out = append(out, f)
		}
	}
	return out
}

// Applies reports whether f is bound to ruleID.
func Applies(f Fix, ruleID string) bool {
	for _, id := range f.AppliesTo() {
		if id == ruleID {
			return true
		}
	}
	return false
}

// Bound returns the fixes named by d.FixIDs that also declare d.ID among
// the rules they apply to.
func (r *Registry) Bound(d rules.Descriptor) []Fix {
	var out []Fix
	for _, id := range d.FixIDs {
		if f, ok := r.Get(id); ok && Applies(f, d.ID) {
			out = append(out, f)
		}
	}
	return out
}

// Generate previews the fixes bound to rule d against the matches of d in
// doc. A rule without bound fixes, or without a fixable match, yields an
// empty output.
func (r *Registry) Generate(doc *syntax.Document, d rules.Descriptor, matches []rules.RawMatch) Output {
	fs := r.Bound(d)
	if len(fs) == 0 {
		return EmptyOutput()
	}
	own := make([]rules.RawMatch, 0, len(matches))
	for _, m := range matches {
		if m.RuleID == d.ID {
			own = append(own, m)
		}
	}
	change, ok := Preview(doc, fs, own)
	if !ok {
		return EmptyOutput()
	}
	return Output{Changes: []Change{change}}
}

// Target is one document together with the matches found in it.
type Target struct {
	Doc     *syntax.Document
	Matches []rules.RawMatch
}

// Apply runs the fixes named by ids against every target and returns one
// change per target that at least one edit modified. Unknown ids are
// ignored. Changes keep the order of targets.
func (r *Registry) Apply(ids []string, targets []Target) []Change {
	var fs []Fix
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		f, ok := r.Get(id)
		if !ok || seen[f.ID()] {
			continue
		}
		seen[f.ID()] = true
		fs = append(fs, f)
	}
	changes := []Change{}
	if len(fs) == 0 {
		return changes
	}
	for _, t := range targets {
		if change, ok := Preview(t.Doc, fs, t.Matches); ok {
			changes = append(changes, change)
		}
	}
	return changes
}

// Preview runs the fixes against the matches they apply to and returns the
// resulting full-file change. Overlapping edits keep the earliest one. The
// document is not modified. ok is false when no edit changed the text.
func Preview(doc *syntax.Document, fs []Fix, matches []rules.RawMatch) (Change, bool) {
	type applied struct {
		Edit
		fixID string
	}
	var edits []applied
	for _, m := range matches {
		for _, f := range fs {
			if !Applies(f, m.RuleID) {
				continue
			}
			e, ok := transform(f, doc, m)
			if !ok || e.Start < 0 || e.End > len(doc.Source) || e.Start > e.End {
				continue
			}
			if string(doc.Source[e.Start:e.End]) == e.Replacement {
				continue
			}
			edits = append(edits, applied{Edit: e, fixID: f.ID()})
		}
	}
	if len(edits) == 0 {
		return Change{}, false
	}

	sort.SliceStable(edits, func(i, j int) bool { return edits[i].Start < edits[j].Start })
	kept := edits[:0]
	end := -1
	for _, e := range edits {
		if e.Start < end {
			continue
		}
		kept = append(kept, e)
		end = e.End
	}

	out := make([]byte, len(doc.Source))
	copy(out, doc.Source)
	used := make(map[string]bool)
	for i := len(kept) - 1; i >= 0; i-- {
		e := kept[i]
		out = append(out[:e.Start], append([]byte(e.Replacement), out[e.End:]...)...)
		used[e.fixID] = true
	}

	ids := make([]string, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return Change{
		Filename: doc.Filename,
		Before:   string(doc.Source),
		After:    string(out),
		FixIDs:   ids,
	}, true
}

// transform runs one fix, treating a panic as a skipped edit.
func transform(f Fix, doc *syntax.Document, m rules.RawMatch) (e Edit, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			e, ok = Edit{}, false
		}
	}()
	return f.Transform(doc, m)
}

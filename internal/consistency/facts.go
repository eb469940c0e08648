package consistency

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"effectlint/internal/rules"
	"effectlint/internal/syntax"
)

// Facts are the idiom choices observed in one file.
type Facts struct {
	Filename string

	RawFS      bool
	PlatformFS bool

	RawPath      bool
	PlatformPath bool

	// EffectNamespace is `import * as Effect from "effect/Effect"`,
	// EffectNamed is `import { Effect } from "effect"`.
	EffectNamespace bool
	EffectNamed     bool

	NativeErrorClass bool
	TaggedErrorClass bool
}

var (
	nodeFS   = set(rules.NodeFSModules)
	nodePath = set(rules.NodePathModules)
)

func set(mods []string) map[string]bool {
	out := make(map[string]bool, len(mods))
	for _, m := range mods {
		out[m] = true
	}
	return out
}

// Extract reads the facts of one document.
func Extract(doc *syntax.Document) Facts {
	f := Facts{Filename: doc.Filename}
	for _, imp := range doc.Imports() {
		if imp.TypeOnly {
			continue
		}
		switch {
		case nodeFS[imp.Module]:
			f.RawFS = true
		case nodePath[imp.Module]:
			f.RawPath = true
		case imp.Module == "@effect/platform":
			f.PlatformFS = f.PlatformFS || imp.ImportsNamed("FileSystem")
			f.PlatformPath = f.PlatformPath || imp.ImportsNamed("Path")
		case imp.Module == "@effect/platform/FileSystem":
			f.PlatformFS = true
		case imp.Module == "@effect/platform/Path":
			f.PlatformPath = true
		case imp.Module == "effect/Effect" && imp.Namespace != "":
			f.EffectNamespace = true
		case imp.Module == "effect" && imp.ImportsNamed("Effect"):
			f.EffectNamed = true
		}
	}

	doc.Walk(func(n *sitter.Node, _ syntax.Path) bool {
		if n.Type() != "extends_clause" {
			return true
		}
		value := n.ChildByFieldName("value")
		if value == nil && n.NamedChildCount() > 0 {
			value = n.NamedChild(0)
		}
		if value == nil {
			return false
		}
		text := doc.Text(value)
		switch {
		case text == "Error" || text == "globalThis.Error":
			f.NativeErrorClass = true
		case strings.Contains(text, "TaggedError"):
			root := syntax.Leftmost(value, doc.Source)
			if root == "Data" || root == "Schema" {
				f.TaggedErrorClass = true
			}
		}
		return false
	})
	return f
}

package rules

import (
	"fmt"

	"effectlint/internal/syntax"
)

var (
	// NodeFSModules are the raw filesystem module specifiers.
	NodeFSModules = []string{"fs", "node:fs", "fs/promises", "node:fs/promises"}

	// NodePathModules are the raw path module specifiers.
	NodePathModules = []string{"path", "node:path"}
)

func moduleSet(mods []string) map[string]bool {
	set := make(map[string]bool, len(mods))
	for _, m := range mods {
		set[m] = true
	}
	return set
}

// PlatformImport flags imports of Node built-ins that have an @effect/platform
// service counterpart.
type PlatformImport struct {
	base
	modules map[string]bool
	service string
}

// NewNodeFS flags raw filesystem imports.
func NewNodeFS() *PlatformImport {
	return &PlatformImport{
		base: base{Descriptor{
			ID:             "node-fs",
			Category:       CategoryPlatform,
			Severity:       SeverityWarning,
			Summary:        "raw Node fs import; use the FileSystem service from @effect/platform",
			FixIDs:         []string{"replace-node-fs"},
			BaseConfidence: 0.95,
		}},
		modules: moduleSet(NodeFSModules),
		service: "FileSystem",
	}
}

// NewNodePath flags raw path imports.
func NewNodePath() *PlatformImport {
	return &PlatformImport{
		base: base{Descriptor{
			ID:             "node-path",
			Category:       CategoryPlatform,
			Severity:       SeverityInfo,
			Summary:        "raw Node path import; use the Path service from @effect/platform",
			FixIDs:         []string{"replace-node-path"},
			BaseConfidence: 0.9,
		}},
		modules: moduleSet(NodePathModules),
		service: "Path",
	}
}

func (r *PlatformImport) Detect(doc *syntax.Document) []RawMatch {
	var out []RawMatch
	for _, imp := range doc.Imports() {
		if imp.TypeOnly || !r.modules[imp.Module] {
			continue
		}
		msg := fmt.Sprintf("import of %q bypasses the platform %s service", imp.Module, r.service)
		out = append(out, r.match(doc, imp.Node(), msg))
	}
	return out
}

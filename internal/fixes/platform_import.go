package fixes

import (
	"fmt"
	"strings"

	"effectlint/internal/rules"
	"effectlint/internal/syntax"
)

// PlatformModule is the package providing the platform services.
const PlatformModule = "@effect/platform"

// PlatformImport rewrites a raw Node import into an import of the matching
// @effect/platform service. The first raw import of a file is replaced; any
// later ones, or all of them when the service is already imported, are
// removed.
type PlatformImport struct {
	id      string
	ruleID  string
	service string
	modules map[string]bool
}

// NewReplaceNodeFS replaces node:fs imports with FileSystem.
func NewReplaceNodeFS() *PlatformImport {
	return newPlatformImport("replace-node-fs", "node-fs", "FileSystem", rules.NodeFSModules)
}

// NewReplaceNodePath replaces node:path imports with Path.
func NewReplaceNodePath() *PlatformImport {
	return newPlatformImport("replace-node-path", "node-path", "Path", rules.NodePathModules)
}

func newPlatformImport(id, ruleID, service string, modules []string) *PlatformImport {
	set := make(map[string]bool, len(modules))
	for _, m := range modules {
		set[m] = true
	}
	return &PlatformImport{id: id, ruleID: ruleID, service: service, modules: set}
}

func (f *PlatformImport) ID() string          { return f.id }
func (f *PlatformImport) AppliesTo() []string { return []string{f.ruleID} }

func (f *PlatformImport) Description() string {
	return fmt.Sprintf("import { %s } from %q instead of the Node module", f.service, PlatformModule)
}

func (f *PlatformImport) Transform(doc *syntax.Document, m rules.RawMatch) (Edit, bool) {
	imports := doc.Imports()

	alreadyImported := false
	for _, imp := range imports {
		if imp.Module == PlatformModule && imp.ImportsNamed(f.service) {
			alreadyImported = true
		}
	}

	var target *syntax.Import
	first := true
	for i := range imports {
		imp := &imports[i]
		if imp.TypeOnly || !f.modules[imp.Module] {
			continue
		}
		if imp.Range == m.Range {
			target = imp
			break
		}
		first = false
	}
	if target == nil {
		return Edit{}, false
	}

	if alreadyImported || !first {
		end := target.Range.EndByte
		if end < len(doc.Source) && doc.Source[end] == '\n' {
			end++
		}
		return Edit{Start: target.Range.StartByte, End: end}, true
	}

	stmt := doc.Text(target.Node())
	replacement := fmt.Sprintf("import { %s } from %q", f.service, PlatformModule)
	if strings.HasSuffix(strings.TrimSpace(stmt), ";") {
		replacement += ";"
	}
	return Edit{Start: target.Range.StartByte, End: target.Range.EndByte, Replacement: replacement}, true
}

package syntax

import (
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// SuppressDirective marks a comment that lowers confidence for the next line.
const SuppressDirective = "effectlint-disable-next-line"

// Document is one parsed source. It is owned by a single analysis call,
// is immutable once built, and is shared read-only by every rule, the scorer
// and the fix generator of that call.
type Document struct {
	Filename string
	Source   []byte
	Language Language

	tree     *sitter.Tree
	root     *sitter.Node
	parseErr error

	imports      []Import
	effectNames  map[string]bool
	genBodies    []Range
	parseErrors  []ParseError
	suppressions map[int][]string
}

// Root returns the tree root, or nil if the parser failed outright.
func (d *Document) Root() *sitter.Node {
	return d.root
}

// Err returns the parser failure, if any.
func (d *Document) Err() error {
	return d.parseErr
}

// Text returns the source text of n.
func (d *Document) Text(n *sitter.Node) string {
	return Text(n, d.Source)
}

// Walk visits every node of the document. See Walk.
func (d *Document) Walk(fn func(n *sitter.Node, path Path) bool) {
	Walk(d.root, fn)
}

// Imports returns the imports of the document in source order.
func (d *Document) Imports() []Import {
	return d.imports
}

// ImportsEffect reports whether the document imports the effect library.
func (d *Document) ImportsEffect() bool {
	for _, imp := range d.imports {
		if IsEffectModule(imp.Module) {
			return true
		}
	}
	return false
}

// ImportsModule reports whether any import has one of the given sources.
func (d *Document) ImportsModule(modules ...string) bool {
	for _, imp := range d.imports {
		for _, m := range modules {
			if imp.Module == m {
				return true
			}
		}
	}
	return false
}

// IsEffectName reports whether name is bound to the Effect module.
func (d *Document) IsEffectName(name string) bool {
	return name != "" && d.effectNames[name]
}

// EffectName returns the preferred local name of the Effect module.
func (d *Document) EffectName() string {
	if d.effectNames["Effect"] {
		return "Effect"
	}
	names := make([]string, 0, len(d.effectNames))
	for n := range d.effectNames {
		names = append(names, n)
	}
	if len(names) == 0 {
		return "Effect"
	}
	sort.Strings(names)
	return names[0]
}

// ParseErrors returns the error and missing nodes of the tree. A parser
// failure is reported as a single error covering the whole source.
func (d *Document) ParseErrors() []ParseError {
	return d.parseErrors
}

// InEffectGen reports whether r lies inside the body of an Effect.gen generator.
func (d *Document) InEffectGen(r Range) bool {
	for _, g := range d.genBodies {
		if g.Contains(r) {
			return true
		}
	}
	return false
}

// Suppressed reports whether the line is preceded by a disable comment that
// names ruleID or names no rule at all.
func (d *Document) Suppressed(line int, ruleID string) bool {
	ids, ok := d.suppressions[line]
	if !ok {
		return false
	}
	if len(ids) == 0 {
		return true
	}
	for _, id := range ids {
		if id == ruleID {
			return true
		}
	}
	return false
}

// IsTestFile reports whether the document looks like a test source.
func (d *Document) IsTestFile() bool {
	base := filepath.Base(d.Filename)
	return strings.Contains(base, ".test.") || strings.Contains(base, ".spec.") ||
		strings.Contains(filepath.ToSlash(d.Filename), "__tests__/")
}

// IsEffectGenCall reports whether call is `Effect.gen(...)` or
// `Effect.fn(...)(...)` for any local name of the Effect module.
func (d *Document) IsEffectGenCall(call *sitter.Node) bool {
	if call == nil || call.Type() != "call_expression" {
		return false
	}
	object, prop := CalleeProperty(call, d.Source)
	if prop == "gen" && d.IsEffectName(object) {
		return true
	}
	fn := call.ChildByFieldName("function")
	if fn != nil && fn.Type() == "call_expression" {
		object, prop = CalleeProperty(fn, d.Source)
		if (prop == "fn" || prop == "fnUntraced") && d.IsEffectName(object) {
			return true
		}
	}
	return false
}

// CallReceiving returns the call expression that receives the node at the
// given depth of path as a direct argument (depth 0 is the visited node).
func CallReceiving(path Path, depth int) *sitter.Node {
	args := path.At(depth + 1)
	if args == nil || args.Type() != "arguments" {
		return nil
	}
	call := path.At(depth + 2)
	if call == nil || call.Type() != "call_expression" {
		return nil
	}
	return call
}

// IsEffectModule reports whether a module source belongs to the effect ecosystem.
func IsEffectModule(module string) bool {
	return module == "effect" || strings.HasPrefix(module, "effect/") || strings.HasPrefix(module, "@effect/")
}

// index computes the document facts in a single pass over the tree.
func (d *Document) index() {
	d.effectNames = make(map[string]bool)
	d.suppressions = make(map[int][]string)

	if d.root == nil {
		if d.parseErr != nil {
			d.parseErrors = append(d.parseErrors, ParseError{
				Range: Range{EndByte: len(d.Source), StartLine: 1, StartColumn: 1, EndLine: 1, EndColumn: 1},
				Text:  d.parseErr.Error(),
			})
		}
		return
	}

	var generators []struct {
		node *sitter.Node
		call *sitter.Node
	}

	Walk(d.root, func(n *sitter.Node, path Path) bool {
		switch n.Type() {
		case "ERROR":
			d.parseErrors = append(d.parseErrors, ParseError{Range: RangeOf(n), Text: firstLine(d.Text(n))})
			return false
		case "import_statement":
			if imp, ok := d.parseImport(n); ok {
				d.imports = append(d.imports, imp)
			}
		case "call_expression":
			if imp, ok := d.parseRequire(n, path); ok {
				d.imports = append(d.imports, imp)
			}
		case "comment":
			d.parseSuppression(n)
		case "generator_function":
			if call := CallReceiving(path, 0); call != nil {
				generators = append(generators, struct {
					node *sitter.Node
					call *sitter.Node
				}{n, call})
			}
		}
		if n.IsMissing() {
			d.parseErrors = append(d.parseErrors, ParseError{Range: RangeOf(n), Missing: true, Text: n.Type()})
		}
		return true
	})

	d.resolveEffectNames()

	// Effect names are only known after all imports are seen.
	for _, g := range generators {
		if d.IsEffectGenCall(g.call) {
			if body := FunctionBody(g.node); body != nil {
				d.genBodies = append(d.genBodies, RangeOf(body))
			}
		}
	}
}

func (d *Document) resolveEffectNames() {
	importsEffect := false
	for _, imp := range d.imports {
		if !IsEffectModule(imp.Module) {
			continue
		}
		importsEffect = true
		for _, s := range imp.Named {
			if s.Name == "Effect" {
				d.effectNames[s.Local()] = true
			}
		}
		if imp.Namespace != "" && imp.Module == "effect/Effect" {
			d.effectNames[imp.Namespace] = true
		}
		if imp.Default != "" && imp.Module == "effect/Effect" {
			d.effectNames[imp.Default] = true
		}
	}
	if importsEffect && len(d.effectNames) == 0 {
		d.effectNames["Effect"] = true
	}
}

func (d *Document) parseImport(n *sitter.Node) (Import, bool) {
	src := n.ChildByFieldName("source")
	if src == nil {
		return Import{}, false
	}
	imp := Import{
		Module: Unquote(d.Text(src)),
		Range:  RangeOf(n),
		node:   n,
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "type":
			imp.TypeOnly = true
		case "import_clause":
			d.parseImportClause(c, &imp)
		}
	}
	return imp, true
}

func (d *Document) parseImportClause(clause *sitter.Node, imp *Import) {
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		c := clause.NamedChild(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "identifier":
			imp.Default = d.Text(c)
		case "namespace_import":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				if id := c.NamedChild(j); id != nil && id.Type() == "identifier" {
					imp.Namespace = d.Text(id)
				}
			}
		case "named_imports":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				spec := c.NamedChild(j)
				if spec == nil || spec.Type() != "import_specifier" {
					continue
				}
				imp.Named = append(imp.Named, ImportSpec{
					Name:  d.Text(spec.ChildByFieldName("name")),
					Alias: d.Text(spec.ChildByFieldName("alias")),
				})
			}
		}
	}
}

// parseRequire recognizes `require("module")` and records the enclosing
// statement so a fix can replace it whole.
func (d *Document) parseRequire(call *sitter.Node, path Path) (Import, bool) {
	_, name := CalleeProperty(call, d.Source)
	if name != "require" {
		return Import{}, false
	}
	args := Arguments(call)
	if len(args) != 1 || args[0].Type() != "string" {
		return Import{}, false
	}

	stmt := call
	var declarator *sitter.Node
	for i := 1; i <= len(path); i++ {
		a := path.At(i)
		if a.Type() == "variable_declarator" {
			declarator = a
		}
		if a.Type() == "lexical_declaration" || a.Type() == "variable_declaration" || a.Type() == "expression_statement" {
			stmt = a
			break
		}
		if IsFunction(a) || a.Type() == "statement_block" || a.Type() == "program" {
			break
		}
	}

	imp := Import{
		Module:  Unquote(d.Text(args[0])),
		Require: true,
		Range:   RangeOf(stmt),
		node:    stmt,
	}
	if declarator != nil {
		if name := declarator.ChildByFieldName("name"); name != nil {
			switch name.Type() {
			case "identifier":
				imp.Default = d.Text(name)
			case "object_pattern":
				for j := 0; j < int(name.NamedChildCount()); j++ {
					p := name.NamedChild(j)
					if p != nil && p.Type() == "shorthand_property_identifier_pattern" {
						imp.Named = append(imp.Named, ImportSpec{Name: d.Text(p)})
					}
				}
			}
		}
	}
	return imp, true
}

func (d *Document) parseSuppression(n *sitter.Node) {
	text := d.Text(n)
	idx := strings.Index(text, SuppressDirective)
	if idx < 0 {
		return
	}
	rest := strings.TrimSpace(strings.TrimSuffix(text[idx+len(SuppressDirective):], "*/"))
	ids := strings.FieldsFunc(rest, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	line := int(n.EndPoint().Row) + 2
	d.suppressions[line] = ids
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}

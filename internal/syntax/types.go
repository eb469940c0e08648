// Package syntax builds the shared, read-only syntax tree that every rule,
// the confidence scorer and the fix generator inspect during one analysis call.
package syntax

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Language is the target grammar of an engine instance.
type Language string

const (
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
)

// ParseLanguage converts a config string to a Language.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ts", "typescript":
		return LangTypeScript, nil
	case "tsx":
		return LangTSX, nil
	default:
		return "", fmt.Errorf("unsupported language: %s", s)
	}
}

// File is one named source submitted for analysis.
type File struct {
	Filename string `json:"filename"`
	Source   string `json:"source"`
}

// Range locates a span of the analyzed source.
// Lines and columns are 1-based; columns count bytes.
type Range struct {
	StartByte   int `json:"startByte"`
	EndByte     int `json:"endByte"`
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// RangeOf returns the range covered by a node.
func RangeOf(n *sitter.Node) Range {
	start := n.StartPoint()
	end := n.EndPoint()
	return Range{
		StartByte:   int(n.StartByte()),
		EndByte:     int(n.EndByte()),
		StartLine:   int(start.Row) + 1,
		StartColumn: int(start.Column) + 1,
		EndLine:     int(end.Row) + 1,
		EndColumn:   int(end.Column) + 1,
	}
}

// Contains reports whether other lies entirely within r.
func (r Range) Contains(other Range) bool {
	return other.StartByte >= r.StartByte && other.EndByte <= r.EndByte
}

// Overlaps reports whether the two ranges share at least one byte.
func (r Range) Overlaps(other Range) bool {
	return r.StartByte < other.EndByte && other.StartByte < r.EndByte
}

// Import is one module import found in a document, either an ES import
// statement or a CommonJS require call.
type Import struct {
	// Module is the import source with quotes removed, e.g. "node:fs/promises".
	Module string `json:"module"`

	// Default is the default binding, if any.
	Default string `json:"default,omitempty"`

	// Namespace is the binding of `import * as X`.
	Namespace string `json:"namespace,omitempty"`

	// Named lists named specifiers.
	Named []ImportSpec `json:"named,omitempty"`

	TypeOnly bool `json:"typeOnly,omitempty"`
	Require  bool `json:"require,omitempty"`

	// Range covers the whole statement so fixes can replace it.
	Range Range `json:"range"`

	node *sitter.Node
}

// ImportSpec is a single `name as alias` specifier.
type ImportSpec struct {
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}

// Local returns the binding the specifier introduces in the file.
func (s ImportSpec) Local() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Name
}

// Node returns the statement node of the import.
func (i Import) Node() *sitter.Node {
	return i.node
}

// Binds reports whether the import brings name into scope under any form.
func (i Import) Binds(name string) bool {
	if i.Default == name || i.Namespace == name {
		return true
	}
	for _, s := range i.Named {
		if s.Local() == name {
			return true
		}
	}
	return false
}

// ImportsNamed reports whether the import has a named specifier for name.
func (i Import) ImportsNamed(name string) bool {
	for _, s := range i.Named {
		if s.Name == name {
			return true
		}
	}
	return false
}

// ParseError is an ERROR or MISSING node embedded in the tree.
type ParseError struct {
	Range   Range  `json:"range"`
	Missing bool   `json:"missing,omitempty"`
	Text    string `json:"text,omitempty"`
}

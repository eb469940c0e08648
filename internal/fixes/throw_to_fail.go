package fixes

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"effectlint/internal/rules"
	"effectlint/internal/syntax"
)

// ThrowToFail rewrites `throw x` inside Effect.gen into
// `return yield* Effect.fail(x)`.
type ThrowToFail struct{}

func NewThrowToFail() *ThrowToFail {
	return &ThrowToFail{}
}

func (ThrowToFail) ID() string          { return "throw-to-fail" }
func (ThrowToFail) AppliesTo() []string { return []string{"throw-inside-effect-logic"} }

func (ThrowToFail) Description() string {
	return "replace throw with return yield* Effect.fail(...)"
}

func (ThrowToFail) Transform(doc *syntax.Document, m rules.RawMatch) (Edit, bool) {
	n := m.Node()
	if n == nil || n.Type() != "throw_statement" {
		return Edit{}, false
	}
	arg := thrownValue(n)
	if arg == nil {
		return Edit{}, false
	}

	replacement := "return yield* " + doc.EffectName() + ".fail(" + doc.Text(arg) + ")"
	if strings.HasSuffix(doc.Text(n), ";") {
		replacement += ";"
	}
	return Edit{Start: int(n.StartByte()), End: int(n.EndByte()), Replacement: replacement}, true
}

func thrownValue(throw *sitter.Node) *sitter.Node {
	for i := 0; i < int(throw.NamedChildCount()); i++ {
		c := throw.NamedChild(i)
		if c == nil || c.Type() == "comment" {
			continue
		}
		if c.Type() == "parenthesized_expression" && c.NamedChildCount() == 1 {
			return c.NamedChild(0)
		}
		return c
	}
	return nil
}

package syntax

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// functionTypes are the TypeScript node types that introduce a function scope.
// Both "function" and "function_expression" are listed because grammar
// versions disagree on the name of function expressions.
var functionTypes = map[string]bool{
	"function_declaration":           true,
	"function_expression":            true,
	"function":                       true,
	"generator_function_declaration": true,
	"generator_function":             true,
	"arrow_function":                 true,
	"method_definition":              true,
}

// IsFunction reports whether n opens a new function scope.
func IsFunction(n *sitter.Node) bool {
	return n != nil && n.IsNamed() && functionTypes[n.Type()]
}

// IsGenerator reports whether n is a generator function.
func IsGenerator(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "generator_function", "generator_function_declaration":
		return true
	case "method_definition":
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); c != nil && c.Type() == "*" {
				return true
			}
		}
	}
	return false
}

// Path is the chain of ancestors of the node being visited, outermost first.
// The slice is reused during a walk; copy it to retain it.
type Path []*sitter.Node

// Parent returns the direct parent, or nil at the root.
func (p Path) Parent() *sitter.Node {
	return p.At(1)
}

// At returns the n-th ancestor counting from the nearest (1 = parent).
func (p Path) At(n int) *sitter.Node {
	if n <= 0 || n > len(p) {
		return nil
	}
	return p[len(p)-n]
}

// NearestFunction returns the innermost enclosing function and its depth
// (1 = parent), or nil when the node is at module level.
func (p Path) NearestFunction() (*sitter.Node, int) {
	for i := len(p) - 1; i >= 0; i-- {
		if IsFunction(p[i]) {
			return p[i], len(p) - i
		}
	}
	return nil, 0
}

// Functions returns every enclosing function, innermost first.
func (p Path) Functions() []*sitter.Node {
	var out []*sitter.Node
	for i := len(p) - 1; i >= 0; i-- {
		if IsFunction(p[i]) {
			out = append(out, p[i])
		}
	}
	return out
}

// Walk visits every node under root depth-first. fn receives the node and
// its ancestors; returning false skips the node's children.
func Walk(root *sitter.Node, fn func(n *sitter.Node, path Path) bool) {
	if root == nil {
		return
	}
	path := make(Path, 0, 32)

	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if !fn(n, path) {
			return
		}
		path = append(path, n)
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); c != nil {
				walk(c)
			}
		}
		path = path[:len(path)-1]
	}
	walk(root)
}

// WalkBody visits the nodes under root without descending into nested
// functions. root itself is not visited.
func WalkBody(root *sitter.Node, fn func(n *sitter.Node) bool) {
	if root == nil {
		return
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		c := root.Child(i)
		if c == nil || IsFunction(c) {
			continue
		}
		if fn(c) {
			WalkBody(c, fn)
		}
	}
}

// FindAll returns every node under root whose type is in types.
func FindAll(root *sitter.Node, types ...string) []*sitter.Node {
	var result []*sitter.Node
	Walk(root, func(n *sitter.Node, _ Path) bool {
		for _, t := range types {
			if n.Type() == t {
				result = append(result, n)
				break
			}
		}
		return true
	})
	return result
}

// Text returns the source text of n.
func Text(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	start, end := int(n.StartByte()), int(n.EndByte())
	if start < 0 || end > len(source) || start > end {
		return ""
	}
	return string(source[start:end])
}

// Unquote strips the quotes of a string literal's text.
func Unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'' || first == '`') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Leftmost returns the root identifier of a member/call chain, e.g. "Effect"
// for `Effect.succeed(1).pipe(...)`, or "" if the chain does not start with
// an identifier.
func Leftmost(n *sitter.Node, source []byte) string {
	for n != nil {
		switch n.Type() {
		case "identifier", "this":
			return Text(n, source)
		case "call_expression":
			n = n.ChildByFieldName("function")
		case "member_expression":
			n = n.ChildByFieldName("object")
		case "parenthesized_expression", "await_expression", "non_null_expression", "as_expression":
			n = n.NamedChild(0)
		default:
			return ""
		}
	}
	return ""
}

// CalleeProperty returns the object root and property name of a call such as
// `Effect.catchAll(...)` ("Effect", "catchAll"), or ("", name) for a plain
// identifier call such as `pipe(...)`.
func CalleeProperty(call *sitter.Node, source []byte) (object, property string) {
	if call == nil || call.Type() != "call_expression" {
		return "", ""
	}
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return "", ""
	}
	switch fn.Type() {
	case "identifier":
		return "", Text(fn, source)
	case "member_expression":
		return Leftmost(fn.ChildByFieldName("object"), source), Text(fn.ChildByFieldName("property"), source)
	}
	return "", ""
}

// FunctionBody returns the body of a function node. For arrow functions with
// an expression body this is the expression itself.
func FunctionBody(fn *sitter.Node) *sitter.Node {
	if fn == nil {
		return nil
	}
	return fn.ChildByFieldName("body")
}

// FirstParameterType returns the annotated type of a function's first
// parameter, without the leading colon, or "" when absent.
func FirstParameterType(fn *sitter.Node, source []byte) string {
	if fn == nil {
		return ""
	}
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return ""
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p == nil || p.Type() == "comment" {
			continue
		}
		return AnnotationType(p.ChildByFieldName("type"), source)
	}
	return ""
}

// AnnotationType returns the text of a type_annotation without its colon.
func AnnotationType(ann *sitter.Node, source []byte) string {
	if ann == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(Text(ann, source)), ":"))
}

// Arguments returns the named argument nodes of a call expression.
func Arguments(call *sitter.Node) []*sitter.Node {
	if call == nil {
		return nil
	}
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, args.NamedChildCount())
	for i := 0; i < int(args.NamedChildCount()); i++ {
		if a := args.NamedChild(i); a != nil && a.Type() != "comment" {
			out = append(out, a)
		}
	}
	return out
}

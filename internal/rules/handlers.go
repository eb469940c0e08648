package rules

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"effectlint/internal/syntax"
)

// handler is one place where a failure is intercepted: a catch clause or a
// callback given to a catch-style combinator.
type handler struct {
	node      *sitter.Node // catch_clause or the callback function
	body      *sitter.Node
	errorType string
	clause    bool

	// genCatch is set for catch clauses directly inside an Effect.gen body.
	genCatch bool
}

// catchCombinators receive a callback that handles any failure. Tag- or
// predicate-scoped recovery such as catchTag is not a handler here.
var catchCombinators = map[string]bool{
	"catch":          true,
	"catchAll":       true,
	"catchAllCause":  true,
	"catchAllDefect": true,
	"orElse":         true,
}

// failConstructors put a value in a typed failure channel.
var failConstructors = map[string]bool{
	"fail":          true,
	"failSync":      true,
	"failCause":     true,
	"failCauseSync": true,
	"die":           true,
	"dieSync":       true,
	"dieMessage":    true,
	"left":          true,
}

// findHandlers returns the handlers of doc in source order.
func findHandlers(doc *syntax.Document) []handler {
	var out []handler
	doc.Walk(func(n *sitter.Node, path syntax.Path) bool {
		switch n.Type() {
		case "catch_clause":
			h := handler{
				node:      n,
				body:      n.ChildByFieldName("body"),
				errorType: syntax.AnnotationType(n.ChildByFieldName("type"), doc.Source),
				clause:    true,
			}
			if fn, depth := path.NearestFunction(); syntax.IsGenerator(fn) {
				h.genCatch = doc.IsEffectGenCall(syntax.CallReceiving(path, depth))
			}
			out = append(out, h)
		case "call_expression":
			_, prop := syntax.CalleeProperty(n, doc.Source)
			if !catchCombinators[prop] {
				return true
			}
			if fn := lastFunctionArgument(n); fn != nil {
				out = append(out, handler{
					node:      fn,
					body:      syntax.FunctionBody(fn),
					errorType: syntax.FirstParameterType(fn, doc.Source),
				})
			}
		}
		return true
	})
	return out
}

func lastFunctionArgument(call *sitter.Node) *sitter.Node {
	args := syntax.Arguments(call)
	for i := len(args) - 1; i >= 0; i-- {
		if syntax.IsFunction(args[i]) {
			return args[i]
		}
	}
	return nil
}

// converts reports whether the handler body re-raises the failure or moves it
// into a typed failure channel.
func converts(doc *syntax.Document, body *sitter.Node) bool {
	found := false
	visit := func(n *sitter.Node, _ syntax.Path) bool {
		switch n.Type() {
		case "throw_statement":
			found = true
		case "call_expression":
			obj, prop := syntax.CalleeProperty(n, doc.Source)
			if failConstructors[prop] && (obj == "" || doc.IsEffectName(obj) || effectModules[obj]) {
				found = true
			}
		case "yield_expression":
			// yield* new TaggedError(...) fails the generator
			for i := 0; i < int(n.NamedChildCount()); i++ {
				if c := n.NamedChild(i); c != nil && c.Type() == "new_expression" {
					found = true
				}
			}
		}
		return !found
	}
	syntax.Walk(body, visit)
	return found
}

// logs reports whether the handler body records the failure anywhere.
func logs(doc *syntax.Document, body *sitter.Node) bool {
	found := false
	syntax.Walk(body, func(n *sitter.Node, _ syntax.Path) bool {
		if found {
			return false
		}
		if n.Type() != "call_expression" {
			return true
		}
		obj, prop := syntax.CalleeProperty(n, doc.Source)
		callee := strings.ToLower(doc.Text(n.ChildByFieldName("function")))
		switch {
		case obj == "console":
			found = true
		case doc.IsEffectName(obj) && strings.HasPrefix(prop, "log"):
			found = true
		case obj == "" && strings.HasPrefix(prop, "log"):
			found = true
		case strings.HasPrefix(callee, "log.") || strings.Contains(callee, "logger."):
			found = true
		}
		return !found
	})
	return found
}

// producesValue reports whether the handler body completes with a success
// value: a return with an argument or an Effect.succeed call.
func producesValue(doc *syntax.Document, body *sitter.Node) bool {
	if body == nil {
		return false
	}
	if body.Type() != "statement_block" {
		return true
	}
	found := false
	syntax.WalkBody(body, func(n *sitter.Node) bool {
		switch n.Type() {
		case "return_statement":
			if n.NamedChildCount() > 0 {
				found = true
			}
		case "call_expression":
			obj, prop := syntax.CalleeProperty(n, doc.Source)
			if prop == "succeed" && doc.IsEffectName(obj) {
				found = true
			}
		}
		return !found
	})
	return found
}

// effectModules are effect data types whose combinators take callbacks.
var effectModules = map[string]bool{
	"Stream":   true,
	"Option":   true,
	"Either":   true,
	"Layer":    true,
	"Exit":     true,
	"Cause":    true,
	"STM":      true,
	"Schedule": true,
}

// returnsEffect reports whether fn evidently produces an Effect value: its
// declared return type names Effect, or it returns an expression rooted at
// the Effect module.
func returnsEffect(doc *syntax.Document, fn *sitter.Node) bool {
	if rt := fn.ChildByFieldName("return_type"); rt != nil {
		t := syntax.AnnotationType(rt, doc.Source)
		head := strings.SplitN(t, ".", 2)[0]
		head = strings.SplitN(head, "<", 2)[0]
		if head == "Effect" || doc.IsEffectName(head) {
			return true
		}
	}
	body := syntax.FunctionBody(fn)
	if body == nil {
		return false
	}
	if body.Type() != "statement_block" {
		return isEffectValue(doc, body)
	}
	found := false
	syntax.WalkBody(body, func(n *sitter.Node) bool {
		if n.Type() == "return_statement" && n.NamedChildCount() > 0 {
			if isEffectValue(doc, n.NamedChild(0)) {
				found = true
			}
		}
		return !found
	})
	return found
}

// isEffectValue reports whether expr is rooted at the Effect module, directly
// or as the first argument of a pipe call.
func isEffectValue(doc *syntax.Document, expr *sitter.Node) bool {
	root := syntax.Leftmost(expr, doc.Source)
	if doc.IsEffectName(root) {
		return true
	}
	if root == "pipe" && expr.Type() == "call_expression" {
		if args := syntax.Arguments(expr); len(args) > 0 {
			return doc.IsEffectName(syntax.Leftmost(args[0], doc.Source))
		}
	}
	return false
}

package syntax

import (
	"context"
	"fmt"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Builder turns source text into Documents for one target grammar.
// It is safe for concurrent use: every Build gets its own parser.
type Builder struct {
	lang   Language
	parses atomic.Int64
}

// NewBuilder creates a builder for the given grammar.
func NewBuilder(lang Language) *Builder {
	if lang == "" {
		lang = LangTypeScript
	}
	return &Builder{lang: lang}
}

// Language returns the grammar the builder parses.
func (b *Builder) Language() Language {
	return b.lang
}

// Parses returns how many sources the builder has parsed so far.
func (b *Builder) Parses() int64 {
	return b.parses.Load()
}

// Build parses source once and returns the shared document. It never fails:
// malformed input yields a tree with embedded error nodes, and a parser
// failure yields a document without a tree whose ParseErrors is non-empty.
func (b *Builder) Build(ctx context.Context, filename string, source []byte) *Document {
	b.parses.Add(1)

	doc := &Document{
		Filename: filename,
		Source:   source,
		Language: b.lang,
	}

	tsLang, err := getLanguage(b.lang)
	if err != nil {
		doc.parseErr = err
		doc.index()
		return doc
	}

	parser := sitter.NewParser()
	parser.SetLanguage(tsLang)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		doc.parseErr = fmt.Errorf("parse error: %w", err)
		doc.index()
		return doc
	}

	doc.tree = tree
	doc.root = tree.RootNode()
	doc.index()
	return doc
}

// getLanguage returns the tree-sitter Language for a given language identifier.
func getLanguage(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
}

package syntax

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
)

func TestBuild_Imports(t *testing.T) {
	source := []byte(`import { Effect, Data as D } from "effect"
import * as fs from "node:fs/promises"
import type { Stats } from "node:fs"
import path from "path"
const os = require("node:os")
const { join } = require("path")
`)

	b := NewBuilder(LangTypeScript)
	doc := b.Build(context.Background(), "imports.ts", source)

	imports := doc.Imports()
	if len(imports) != 6 {
		t.Fatalf("expected 6 imports, got %d", len(imports))
	}

	tests := []struct {
		idx    int
		module string
		check  func(Import) bool
	}{
		{0, "effect", func(i Import) bool { return i.ImportsNamed("Effect") && i.Binds("D") }},
		{1, "node:fs/promises", func(i Import) bool { return i.Namespace == "fs" }},
		{2, "node:fs", func(i Import) bool { return i.TypeOnly }},
		{3, "path", func(i Import) bool { return i.Default == "path" }},
		{4, "node:os", func(i Import) bool { return i.Require && i.Default == "os" }},
		{5, "path", func(i Import) bool { return i.Require && i.ImportsNamed("join") }},
	}

	for _, tt := range tests {
		imp := imports[tt.idx]
		if imp.Module != tt.module {
			t.Errorf("import %d: expected module %q, got %q", tt.idx, tt.module, imp.Module)
			continue
		}
		if !tt.check(imp) {
			t.Errorf("import %d (%s): bindings not as expected: %+v", tt.idx, tt.module, imp)
		}
	}

	if !doc.ImportsEffect() {
		t.Error("expected document to import effect")
	}
	if !doc.IsEffectName("Effect") {
		t.Error("expected Effect to be bound to the effect module")
	}
}

func TestBuild_RequireRangeCoversStatement(t *testing.T) {
	source := []byte("const fs = require(\"fs\");\n")
	doc := NewBuilder(LangTypeScript).Build(context.Background(), "a.ts", source)

	imports := doc.Imports()
	if len(imports) != 1 {
		t.Fatalf("expected 1 import, got %d", len(imports))
	}
	got := string(source[imports[0].Range.StartByte:imports[0].Range.EndByte])
	if got != `const fs = require("fs");` {
		t.Errorf("unexpected statement range text: %q", got)
	}
}

func TestBuild_EffectNamespaceAlias(t *testing.T) {
	source := []byte(`import * as Fx from "effect/Effect"

export const program = Fx.gen(function* () {
  yield* Fx.log("hi")
})
`)
	doc := NewBuilder(LangTypeScript).Build(context.Background(), "alias.ts", source)

	if !doc.IsEffectName("Fx") {
		t.Fatal("expected Fx to be bound to the effect module")
	}
	if doc.EffectName() != "Fx" {
		t.Errorf("expected preferred name Fx, got %s", doc.EffectName())
	}

	var yield *sitter.Node
	doc.Walk(func(n *sitter.Node, _ Path) bool {
		if n.Type() == "yield_expression" {
			yield = n
		}
		return true
	})
	if yield == nil {
		t.Fatal("yield expression not found")
	}
	if !doc.InEffectGen(RangeOf(yield)) {
		t.Error("expected yield to be inside an Effect.gen body")
	}
}

func TestBuild_NoEffectImportMeansNoGenBodies(t *testing.T) {
	source := []byte(`const Effect = { gen: (f: any) => f }
export const p = Effect.gen(function* () { yield 1 })
`)
	doc := NewBuilder(LangTypeScript).Build(context.Background(), "fake.ts", source)

	if doc.ImportsEffect() {
		t.Error("document does not import effect")
	}
	if doc.IsEffectName("Effect") {
		t.Error("a local object named Effect is not the effect module")
	}
}

func TestBuild_MalformedSourceDoesNotFail(t *testing.T) {
	source := []byte("export function broken( {\n  return 1\n")
	b := NewBuilder(LangTypeScript)
	doc := b.Build(context.Background(), "broken.ts", source)

	if doc.Root() == nil {
		t.Fatal("expected a tree even for malformed source")
	}
	if len(doc.ParseErrors()) == 0 {
		t.Error("expected embedded parse errors")
	}
}

func TestBuild_CountsParses(t *testing.T) {
	b := NewBuilder(LangTypeScript)
	for i := 0; i < 3; i++ {
		b.Build(context.Background(), "a.ts", []byte("export const x = 1\n"))
	}
	if got := b.Parses(); got != 3 {
		t.Errorf("expected 3 parses, got %d", got)
	}
}

func TestBuild_Suppressions(t *testing.T) {
	source := []byte(`// effectlint-disable-next-line node-fs
import * as fs from "fs"
/* effectlint-disable-next-line */
import * as path from "path"
`)
	doc := NewBuilder(LangTypeScript).Build(context.Background(), "s.ts", source)

	if !doc.Suppressed(2, "node-fs") {
		t.Error("line 2 should be suppressed for node-fs")
	}
	if doc.Suppressed(2, "node-path") {
		t.Error("line 2 should not be suppressed for node-path")
	}
	if !doc.Suppressed(4, "node-path") {
		t.Error("line 4 should be suppressed for every rule")
	}
}

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    Language
		wantErr bool
	}{
		{"", LangTypeScript, false},
		{"ts", LangTypeScript, false},
		{"TypeScript", LangTypeScript, false},
		{"tsx", LangTSX, false},
		{"python", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLanguage(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLanguage(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLanguage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLeftmostAndCallee(t *testing.T) {
	source := []byte("Effect.succeed(1).pipe(Effect.map((n) => n + 1))\n")
	doc := NewBuilder(LangTypeScript).Build(context.Background(), "c.ts", source)

	calls := FindAll(doc.Root(), "call_expression")
	if len(calls) == 0 {
		t.Fatal("no calls found")
	}
	// The outermost call is the .pipe(...) call.
	if got := Leftmost(calls[0], source); got != "Effect" {
		t.Errorf("Leftmost = %q, want Effect", got)
	}
	obj, prop := CalleeProperty(calls[0], source)
	if obj != "Effect" || prop != "pipe" {
		t.Errorf("CalleeProperty = (%q, %q), want (Effect, pipe)", obj, prop)
	}
}

package consistency

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rawFS      = "import { readFile } from \"node:fs/promises\"\nexport const r = readFile\n"
	platformFS = "import { FileSystem } from \"@effect/platform\"\nexport const f = FileSystem\n"
)

func TestAnalyze_MixedFS(t *testing.T) {
	a := New(Options{})
	issues, warnings := a.Analyze(context.Background(), []File{
		{Filename: "b.ts", Source: platformFS},
		{Filename: "a.ts", Source: rawFS},
	})
	assert.Empty(t, warnings)
	require.Len(t, issues, 1)
	assert.Equal(t, "mixed-fs", issues[0].ID)
	assert.Equal(t, []string{"a.ts", "b.ts"}, issues[0].Files)
	assert.NotEmpty(t, issues[0].Description)
}

func TestAnalyze_OrderIndependent(t *testing.T) {
	files := []File{
		{Filename: "a.ts", Source: rawFS},
		{Filename: "b.ts", Source: platformFS},
		{Filename: "c.ts", Source: "import * as Effect from \"effect/Effect\"\nexport class Boom extends Error {}\n"},
		{Filename: "d.ts", Source: "import { Data, Effect } from \"effect\"\nexport class Boom extends Data.TaggedError(\"Boom\")<{}> {}\n"},
	}
	reversed := make([]File, len(files))
	for i, f := range files {
		reversed[len(files)-1-i] = f
	}

	a := New(Options{Concurrency: 2})
	first, _ := a.Analyze(context.Background(), files)
	second, _ := a.Analyze(context.Background(), reversed)
	assert.Equal(t, first, second)

	ids := make([]string, 0, len(first))
	for _, issue := range first {
		ids = append(ids, issue.ID)
	}
	assert.Equal(t, []string{"mixed-effect-import-style", "mixed-error-definition", "mixed-fs"}, ids)
}

func TestAnalyze_SingleFileIsNotAConflict(t *testing.T) {
	a := New(Options{})
	issues, _ := a.Analyze(context.Background(), []File{
		{Filename: "a.ts", Source: rawFS + platformFS},
	})
	assert.Empty(t, issues)
	assert.NotNil(t, issues)
}

func TestAnalyze_UniformBatchHasNoIssues(t *testing.T) {
	a := New(Options{})
	issues, _ := a.Analyze(context.Background(), []File{
		{Filename: "a.ts", Source: platformFS},
		{Filename: "b.ts", Source: platformFS},
	})
	assert.Empty(t, issues)
}

func TestAnalyze_MixedPath(t *testing.T) {
	a := New(Options{})
	issues, _ := a.Analyze(context.Background(), []File{
		{Filename: "a.ts", Source: "const path = require(\"path\")\n"},
		{Filename: "b.ts", Source: "import { Path } from \"@effect/platform\"\n"},
	})
	require.Len(t, issues, 1)
	assert.Equal(t, "mixed-path", issues[0].ID)
}

func TestAnalyze_TypeOnlyImportsIgnored(t *testing.T) {
	a := New(Options{})
	issues, _ := a.Analyze(context.Background(), []File{
		{Filename: "a.ts", Source: "import type { Stats } from \"node:fs\"\n"},
		{Filename: "b.ts", Source: platformFS},
	})
	assert.Empty(t, issues)
}

func TestAnalyze_MalformedFileStillCompared(t *testing.T) {
	a := New(Options{})
	issues, _ := a.Analyze(context.Background(), []File{
		{Filename: "a.ts", Source: rawFS + "export function broken( {\n"},
		{Filename: "b.ts", Source: platformFS},
	})
	require.Len(t, issues, 1)
	assert.Equal(t, "mixed-fs", issues[0].ID)
}

func TestAnalyze_BatchLimit(t *testing.T) {
	var files []File
	for i := 0; i < 5; i++ {
		files = append(files, File{Filename: fmt.Sprintf("f%d.ts", i), Source: platformFS})
	}
	// Sorted last, so it falls outside the limit.
	files = append(files, File{Filename: "z.ts", Source: rawFS})

	a := New(Options{MaxFiles: 5})
	issues, warnings := a.Analyze(context.Background(), files)
	assert.Empty(t, issues)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "limit of 5")
}

func TestExtract_ErrorDefinitions(t *testing.T) {
	tests := []struct {
		name   string
		source string
		native bool
		tagged bool
	}{
		{"native", "export class E extends Error {}\n", true, false},
		{"data", "import { Data } from \"effect\"\nexport class E extends Data.TaggedError(\"E\")<{}> {}\n", false, true},
		{"schema", "import { Schema } from \"effect\"\nexport class E extends Schema.TaggedError<E>()(\"E\", {}) {}\n", false, true},
		{"other", "export class E extends Base {}\n", false, false},
	}
	a := New(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa, err := a.extract(context.Background(), File{Filename: "e.ts", Source: tt.source})
			require.NoError(t, err)
			assert.Equal(t, tt.native, fa.NativeErrorClass)
			assert.Equal(t, tt.tagged, fa.TaggedErrorClass)
		})
	}
}

package analysis

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"effectlint/internal/fixes"
	"effectlint/internal/guidance"
	"effectlint/internal/rules"
	"effectlint/internal/syntax"
	"effectlint/internal/testutil"
)

const nodeFSSource = "import { readFile } from \"node:fs/promises\";\n"

func newTestService(t *testing.T, docs map[string]string) (*Service, *guidance.Store) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for id, body := range docs {
		require.NoError(t, afero.WriteFile(fs, "/guidance/"+id+".md", []byte(body), 0o644))
	}
	store := guidance.NewStore(guidance.Options{Dir: "/guidance", Fs: fs})
	return New(Options{Guidance: store}), store
}

func TestAnalyzeFile_NodeFSEndToEnd(t *testing.T) {
	svc, _ := newTestService(t, map[string]string{
		"node-fs": "---\nrule: node-fs\ntitle: Use FileSystem\n---\n# Use FileSystem\n",
	})

	report := svc.AnalyzeFile(context.Background(), "a.ts", nodeFSSource)
	require.NotNil(t, report)
	assert.Equal(t, "a.ts", report.Filename)
	assert.True(t, report.HasRule("node-fs"), "rules: %v", report.RuleIDs())
	assert.Empty(t, report.Warnings)

	for _, f := range report.Findings {
		assert.Equal(t, "a.ts", f.Filename)
		assert.GreaterOrEqual(t, f.Confidence, 0.0)
		assert.LessOrEqual(t, f.Confidence, 1.0)
		if f.RuleID == "node-fs" {
			require.NotNil(t, f.Guidance)
			assert.Equal(t, "Use FileSystem", f.Guidance.Title)
			assert.Equal(t, []string{"replace-node-fs"}, f.FixIDs)
		}
	}
}

func TestAnalyzeFile_BareThrowWithoutImports(t *testing.T) {
	svc, _ := newTestService(t, nil)
	source := `export function check(x: number) {
  if (x < 0) {
    throw new Error("negative")
  }
  return x
}
`
	report := svc.AnalyzeFile(context.Background(), "plain.ts", source)
	for _, f := range report.Findings {
		assert.NotEqual(t, rules.CategoryErrorHandling, f.Category, "unexpected finding %s", f.RuleID)
	}
}

func TestAnalyzeFile_MissingGuidanceIsNotAFailure(t *testing.T) {
	svc, _ := newTestService(t, nil)
	report := svc.AnalyzeFile(context.Background(), "a.ts", nodeFSSource)
	require.True(t, report.HasRule("node-fs"))
	for _, f := range report.Findings {
		assert.Nil(t, f.Guidance)
		assert.Empty(t, f.Warnings)
	}
}

func TestAnalyzeFile_NoGuidanceLoader(t *testing.T) {
	svc := New(Options{})
	report := svc.AnalyzeFile(context.Background(), "a.ts", nodeFSSource)
	assert.True(t, report.HasRule("node-fs"))
}

func TestAnalyzeFile_ParseErrorFinding(t *testing.T) {
	svc, _ := newTestService(t, nil)
	report := svc.AnalyzeFile(context.Background(), "broken.ts", "export function broken( {\n  return 1\n")
	assert.Greater(t, report.ParseErrors, 0)
	assert.True(t, report.HasRule(rules.ParseErrorID))
}

func TestAnalyzeFile_Deterministic(t *testing.T) {
	testutil.ForEachRule(t, func(t *testing.T, fx *testutil.RuleFixtures) {
		svc, _ := newTestService(t, nil)
		first := svc.AnalyzeFile(context.Background(), fx.Violation.Name, string(fx.Violation.Source))
		want := testutil.MarshalNormalized(t, fx.Root, first)
		for i := 0; i < 5; i++ {
			again := svc.AnalyzeFile(context.Background(), fx.Violation.Name, string(fx.Violation.Source))
			assert.Equal(t, first.RuleIDs(), again.RuleIDs())
			assert.Equal(t, string(want), string(testutil.MarshalNormalized(t, fx.Root, again)))
		}
		assert.Contains(t, first.RuleIDs(), fx.RuleID)
	})
}

func TestAnalyzeFile_FindingsSorted(t *testing.T) {
	svc, _ := newTestService(t, nil)
	source := "import * as path from \"node:path\"\nimport * as fs from \"node:fs\"\n"
	report := svc.AnalyzeFile(context.Background(), "a.ts", source)
	require.Len(t, report.Findings, 2)
	assert.Equal(t, "node-path", report.Findings[0].RuleID)
	assert.Equal(t, "node-fs", report.Findings[1].RuleID)
}

func TestAnalyzeFile_MinConfidenceFilters(t *testing.T) {
	settings, err := rules.ParseSettings([]byte("version = 1\n[[rule]]\nid = \"node-fs\"\nmin_confidence = 0.9\n"))
	require.NoError(t, err)
	svc := New(Options{Rules: rules.Default().Configure(settings)})

	assert.True(t, svc.AnalyzeFile(context.Background(), "a.ts", nodeFSSource).HasRule("node-fs"))
	// Test files score lower and fall under the threshold.
	assert.False(t, svc.AnalyzeFile(context.Background(), "a.test.ts", nodeFSSource).HasRule("node-fs"))
}

func TestAnalyzeFile_CoalescesGuidanceAndParsesOnce(t *testing.T) {
	svc, store := newTestService(t, map[string]string{
		"node-fs": "# Use FileSystem\n",
	})

	const calls = 20
	var wg sync.WaitGroup
	reports := make([]*Report, calls)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i] = svc.AnalyzeFile(context.Background(), fmt.Sprintf("f%d.ts", i), nodeFSSource)
		}(i)
	}
	wg.Wait()

	for _, r := range reports {
		require.True(t, r.HasRule("node-fs"))
	}
	assert.Equal(t, int64(1), store.Stats().Reads, "one guidance read per rule id")
	assert.Equal(t, int64(calls), svc.Builder().Parses(), "one parse per call")
}

func TestGenerateFix_NodeFS(t *testing.T) {
	svc, _ := newTestService(t, nil)
	out := svc.GenerateFix(context.Background(), FixRequest{RuleID: "node-fs", Filename: "a.ts", Source: nodeFSSource})

	assert.False(t, out.Applied)
	require.Len(t, out.Changes, 1)
	assert.Equal(t, "a.ts", out.Changes[0].Filename)
	assert.Equal(t, nodeFSSource, out.Changes[0].Before)
	assert.Contains(t, out.Changes[0].After, "@effect/platform")
	assert.Contains(t, out.Changes[0].After, "FileSystem")
}

func TestGenerateFix_UnknownRule(t *testing.T) {
	svc, _ := newTestService(t, nil)
	out := svc.GenerateFix(context.Background(), FixRequest{RuleID: "no-such-rule", Filename: "a.ts", Source: nodeFSSource})
	assert.False(t, out.Applied)
	assert.NotNil(t, out.Changes)
	assert.Len(t, out.Changes, 0)
}

func TestGenerateFix_RuleWithoutFixDoesNotParse(t *testing.T) {
	svc, _ := newTestService(t, nil)
	out := svc.GenerateFix(context.Background(), FixRequest{RuleID: "generic-error-type", Filename: "a.ts", Source: "x"})
	assert.Empty(t, out.Changes)
	assert.Equal(t, int64(0), svc.Builder().Parses())
}

func TestApplyRefactorings(t *testing.T) {
	svc, _ := newTestService(t, nil)
	files := []File{
		{Filename: "a.ts", Source: nodeFSSource},
		{Filename: "b.ts", Source: "export const x = 1\n"},
		{Filename: "c.ts", Source: "import * as path from \"path\"\n"},
	}
	changes := svc.ApplyRefactorings(context.Background(), []string{"replace-node-fs", "replace-node-path", "nope"}, files)
	require.Len(t, changes, 2)
	assert.Equal(t, "a.ts", changes[0].Filename)
	assert.Equal(t, "c.ts", changes[1].Filename)
	assert.Equal(t, "import { Path } from \"@effect/platform\"\n", changes[1].After)

	assert.Empty(t, svc.ApplyRefactorings(context.Background(), []string{"nope"}, files))
}

func TestAnalyzeConsistency_MixedFS(t *testing.T) {
	svc, _ := newTestService(t, nil)
	issues := svc.AnalyzeConsistency(context.Background(), []File{
		{Filename: "a.ts", Source: nodeFSSource},
		{Filename: "b.ts", Source: "import { FileSystem } from \"@effect/platform\"\n"},
	})
	require.Len(t, issues, 1)
	assert.Equal(t, "mixed-fs", issues[0].ID)
	assert.Equal(t, []string{"a.ts", "b.ts"}, issues[0].Files)
}

func TestListRules(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ds := svc.ListRules()
	require.Len(t, ds, rules.Default().Len())
	for i := 1; i < len(ds); i++ {
		assert.Less(t, ds[i-1].ID, ds[i].ID)
	}

	_, err := svc.Rule("node-fs")
	assert.NoError(t, err)
	_, err = svc.Rule("nope")
	assert.Error(t, err)
}

func TestAnalyzeFile_PlainHandlersWithoutImports(t *testing.T) {
	svc, _ := newTestService(t, nil)
	sources := map[string]string{
		"plain_catch.ts":   "export function run(g: () => void) {\n  try { g() } catch (e) { }\n}\n",
		"plain_promise.ts": "export const ping = (u: string) => fetch(u).catch(() => null)\n",
	}
	for name, src := range sources {
		report := svc.AnalyzeFile(context.Background(), name, src)
		assert.False(t, report.HasRule("swallow-failures-without-logging"), "%s: %v", name, report.RuleIDs())
		assert.False(t, report.HasRule("catch-log-and-swallow"), "%s: %v", name, report.RuleIDs())
	}
}

// panickingFix stands in for replace-node-fs and fails inside Transform.
type panickingFix struct{}

func (panickingFix) ID() string          { return "replace-node-fs" }
func (panickingFix) AppliesTo() []string { return []string{"node-fs"} }
func (panickingFix) Description() string { return "" }
func (panickingFix) Transform(*syntax.Document, rules.RawMatch) (fixes.Edit, bool) {
	panic("transform failed")
}

func TestApplyRefactorings_PanickingFixOmitsFile(t *testing.T) {
	svc := New(Options{Fixes: fixes.MustRegistry(panickingFix{}, fixes.NewReplaceNodePath())})
	files := []File{
		{Filename: "a.ts", Source: nodeFSSource},
		{Filename: "c.ts", Source: "import * as path from \"path\"\n"},
	}

	var changes []fixes.Change
	require.NotPanics(t, func() {
		changes = svc.ApplyRefactorings(context.Background(), []string{"replace-node-fs", "replace-node-path"}, files)
	})
	require.Len(t, changes, 1)
	assert.Equal(t, "c.ts", changes[0].Filename)

	out := svc.GenerateFix(context.Background(), FixRequest{RuleID: "node-fs", Filename: "a.ts", Source: nodeFSSource})
	assert.False(t, out.Applied)
	assert.Empty(t, out.Changes)
}

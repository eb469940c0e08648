// Package testutil provides fixture loading and golden-file helpers for tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
)

// Fixture is one source file of the corpus.
type Fixture struct {
	// Name is the file name without directory, e.g. "safe_fail.ts"
	Name string

	// Path is the absolute path on disk
	Path string

	Source []byte
}

// RuleFixtures holds the paired inputs of one rule: a violation the rule
// must flag and safe rewrites it must not flag.
type RuleFixtures struct {
	RuleID string

	// Root is the absolute path to testdata/fixtures/effect/<rule>
	Root string

	Violation *Fixture
	Safe      []*Fixture

	// ExpectedDir is the path to the expected/ directory for golden files
	ExpectedDir string
}

// LoadRuleFixtures loads the fixtures of a rule, failing the test on error.
func LoadRuleFixtures(t *testing.T, ruleID string) *RuleFixtures {
	t.Helper()

	dir := filepath.Join(FixturesRoot(t), "effect", ruleID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Fixture directory not readable: %s: %v", dir, err)
	}

	rf := &RuleFixtures{
		RuleID:      ruleID,
		Root:        dir,
		ExpectedDir: filepath.Join(dir, "expected"),
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isSource(name) {
			continue
		}
		switch {
		case strings.HasPrefix(name, "violation"):
			rf.Violation = readFixture(t, dir, name)
		case strings.HasPrefix(name, "safe_"):
			rf.Safe = append(rf.Safe, readFixture(t, dir, name))
		}
	}
	if rf.Violation == nil {
		t.Fatalf("No violation fixture in %s", dir)
	}
	sort.Slice(rf.Safe, func(i, j int) bool { return rf.Safe[i].Name < rf.Safe[j].Name })
	return rf
}

// ExpectedPath returns the path to a golden file within the rule's fixtures.
func (f *RuleFixtures) ExpectedPath(name string) string {
	return filepath.Join(f.ExpectedDir, name)
}

// LoadFile reads a single fixture by path relative to testdata/fixtures.
func LoadFile(t *testing.T, rel string) *Fixture {
	t.Helper()
	path := filepath.Join(FixturesRoot(t), filepath.FromSlash(rel))
	return readFixture(t, filepath.Dir(path), filepath.Base(path))
}

// AvailableRules returns the rule ids that have a fixture directory.
func AvailableRules(t *testing.T) []string {
	t.Helper()

	root := filepath.Join(FixturesRoot(t), "effect")
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("Failed to read fixtures directory: %v", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() && !isHiddenDir(entry.Name()) {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids
}

// ForEachRule runs fn as a subtest for every rule with fixtures.
// Respects the -goldenRule flag.
func ForEachRule(t *testing.T, fn func(t *testing.T, fixtures *RuleFixtures)) {
	t.Helper()

	ids := AvailableRules(t)
	if len(ids) == 0 {
		t.Skip("No fixtures available")
	}
	for _, id := range ids {
		if !ShouldTestRule(id) {
			continue
		}
		t.Run(id, func(t *testing.T) {
			fn(t, LoadRuleFixtures(t, id))
		})
	}
}

// FixturesRoot returns the absolute path to testdata/fixtures/.
func FixturesRoot(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get caller information")
	}

	// Navigate from internal/testutil to project root
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	fixturesRoot := filepath.Join(projectRoot, "testdata", "fixtures")

	if _, err := os.Stat(fixturesRoot); os.IsNotExist(err) {
		t.Fatalf("Fixtures root not found: %s", fixturesRoot)
	}
	return fixturesRoot
}

func readFixture(t *testing.T, dir, name string) *Fixture {
	t.Helper()
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read fixture %s: %v", path, err)
	}
	return &Fixture{Name: name, Path: path, Source: data}
}

func isSource(name string) bool {
	return strings.HasSuffix(name, ".ts") || strings.HasSuffix(name, ".tsx")
}

func isHiddenDir(name string) bool {
	return len(name) > 0 && name[0] == '.'
}

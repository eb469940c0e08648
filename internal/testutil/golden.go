package testutil

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
)

var (
	// updateGolden controls whether golden files should be updated.
	// Use: go test ./... -run TestGolden -update
	updateGolden = flag.Bool("update", false, "update golden files")

	// goldenRule filters which rule fixtures to test.
	// Use: go test ./... -goldenRule=node-fs,node-path
	goldenRule = flag.String("goldenRule", "", "filter rules (comma-separated ids)")
)

// ShouldUpdate returns true if golden files should be updated.
func ShouldUpdate() bool {
	return *updateGolden
}

// ShouldTestRule returns true if the given rule should be tested.
func ShouldTestRule(id string) bool {
	if *goldenRule == "" {
		return true
	}
	for _, r := range strings.Split(*goldenRule, ",") {
		if strings.TrimSpace(r) == id {
			return true
		}
	}
	return false
}

// CompareGolden normalizes got to canonical JSON and compares it against the
// golden file at path, failing with a diff on mismatch. With -update the
// golden file is rewritten instead.
func CompareGolden(t *testing.T, path string, got any) {
	t.Helper()
	compareBytes(t, path, MarshalNormalized(t, filepath.Dir(path), got))
}

// CompareGoldenText compares raw text, such as a fixed source file.
func CompareGoldenText(t *testing.T, path string, got string) {
	t.Helper()
	compareBytes(t, path, []byte(got))
}

func compareBytes(t *testing.T, path string, got []byte) {
	t.Helper()

	if *updateGolden {
		UpdateGolden(t, path, got)
		t.Logf("Updated golden: %s", path)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("Golden file missing: %s\n\nGot:\n%s\n\nRun with -update to create:\n  go test ./... -run %s -update",
				path, string(got), t.Name())
		}
		t.Fatalf("Failed to read golden file: %v", err)
	}

	if !bytes.Equal(got, expected) {
		t.Fatalf("Golden mismatch for %s:\n%s\n\nRun with -update to refresh:\n  go test ./... -run %s -update",
			filepath.Base(path), Diff(string(expected), string(got), path), t.Name())
	}
}

// UpdateGolden writes data to the golden file, creating parent directories.
func UpdateGolden(t *testing.T, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create expected directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write golden file: %v", err)
	}
}

// Diff returns a unified diff between expected and got.
func Diff(expected, got, path string) string {
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(got),
		FromFile: path + " (expected)",
		ToFile:   path + " (got)",
		Context:  3,
	})
	if err != nil {
		return err.Error()
	}
	return out
}

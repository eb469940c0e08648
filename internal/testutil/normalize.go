package testutil

import (
	"encoding/json"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"testing"
)

// Normalizer defines the interface for normalizing golden test data.
type Normalizer interface {
	// Normalize processes the data for stable comparison.
	Normalize(t *testing.T, root string, data any) any
}

// DefaultNormalizer drops volatile fields, rewrites absolute paths under
// root and sorts slices of objects by a stable key.
type DefaultNormalizer struct{}

var tempDirPattern = regexp.MustCompile(`(?:/tmp/|/var/folders/[^/]+/[^/]+/[^/]+/)[^/\\"]+`)

// Normalize applies all normalization rules for stable golden comparison.
// This is called before both compare AND update operations.
func (n *DefaultNormalizer) Normalize(t *testing.T, root string, data any) any {
	t.Helper()

	// Deep copy via JSON round-trip to avoid modifying original
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Failed to marshal data for normalization: %v", err)
	}

	var normalized any
	if err := json.Unmarshal(jsonBytes, &normalized); err != nil {
		t.Fatalf("Failed to unmarshal data for normalization: %v", err)
	}

	return n.normalizeValue(normalized, root)
}

func (n *DefaultNormalizer) normalizeValue(v any, root string) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, item := range val {
			if isVolatileField(k) {
				continue
			}
			result[k] = n.normalizeValue(item, root)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = n.normalizeValue(item, root)
		}
		sort.SliceStable(result, func(i, j int) bool {
			mi, oki := result[i].(map[string]any)
			mj, okj := result[j].(map[string]any)
			return oki && okj && compareMapKeys(mi, mj)
		})
		return result
	case string:
		return normalizeString(val, root)
	default:
		return v
	}
}

func normalizeString(s, root string) string {
	if root != "" {
		s = strings.ReplaceAll(s, root, "<fixture>")
	}
	s = tempDirPattern.ReplaceAllString(s, "<tempdir>")
	return strings.ReplaceAll(s, "\\", "/")
}

func isVolatileField(name string) bool {
	switch name {
	case "durationMs", "loadedAt", "startedAt", "finishedAt", "createdAt", "runId", "elapsed":
		return true
	}
	return false
}

func compareMapKeys(a, b map[string]any) bool {
	keyPriority := []string{"filename", "startByte", "ruleId", "id", "name"}

	for _, key := range keyPriority {
		va, oka := a[key]
		vb, okb := b[key]

		if oka && okb {
			if cmp := compareValues(va, vb); cmp != 0 {
				return cmp < 0
			}
		} else if oka {
			return true
		} else if okb {
			return false
		}
	}
	return false
}

func compareValues(a, b any) int {
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb)
		}
	}
	if na, ok := a.(float64); ok {
		if nb, ok := b.(float64); ok {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			}
			return 0
		}
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return strings.Compare(string(ja), string(jb))
}

// MarshalNormalized normalizes data and marshals it to stable JSON bytes with
// 2-space indentation and a trailing newline. Map keys are sorted by
// encoding/json.
func MarshalNormalized(t *testing.T, root string, data any) []byte {
	t.Helper()

	normalizer := &DefaultNormalizer{}
	normalized := normalizer.Normalize(t, root, data)

	out, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal normalized data: %v", err)
	}
	return append(out, '\n')
}

// NormalizeFilePath makes path relative to root with forward slashes.
func NormalizeFilePath(path, root string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		path = rel
	}
	return filepath.ToSlash(filepath.Clean(path))
}

// DeepEqual compares two values for equality, ignoring volatile fields.
func DeepEqual(t *testing.T, a, b any) bool {
	t.Helper()

	normalizer := &DefaultNormalizer{}
	return reflect.DeepEqual(normalizer.Normalize(t, "", a), normalizer.Normalize(t, "", b))
}

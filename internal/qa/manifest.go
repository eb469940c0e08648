package qa

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
)

// Manifest lists the items of a QA batch.
//
//	[[item]]
//	id = "retry-basic"
//	path = "examples/retry.ts"
type Manifest struct {
	// Path is the manifest file; item paths are relative to its directory
	Path  string         `toml:"-"`
	Items []ManifestItem `toml:"item"`
}

// ManifestItem is one source file to validate.
type ManifestItem struct {
	ID   string `toml:"id"`
	Path string `toml:"path"`

	// Rules restricts fix validation to these rule ids; empty means every
	// rule with a fix
	Rules []string `toml:"rules"`
}

// LoadManifest reads and validates a manifest.
func LoadManifest(fs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	m.Path = path
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every item has a unique id usable as a file name, and
// a path.
func (m *Manifest) Validate() error {
	seen := make(map[string]bool, len(m.Items))
	for i, it := range m.Items {
		if it.ID == "" {
			return fmt.Errorf("manifest item %d has no id", i)
		}
		if !validItemID(it.ID) {
			return fmt.Errorf("manifest item id %q must not contain path separators", it.ID)
		}
		if it.Path == "" {
			return fmt.Errorf("manifest item %s has no path", it.ID)
		}
		if seen[it.ID] {
			return fmt.Errorf("duplicate manifest item id: %s", it.ID)
		}
		seen[it.ID] = true
	}
	return nil
}

// validItemID reports whether id names a result file inside the results
// directory.
func validItemID(id string) bool {
	return id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// Resolve returns the path of item relative to the manifest directory.
func (m *Manifest) Resolve(item ManifestItem) string {
	if filepath.IsAbs(item.Path) || m.Path == "" {
		return item.Path
	}
	return filepath.Join(filepath.Dir(m.Path), item.Path)
}

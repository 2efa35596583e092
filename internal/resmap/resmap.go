// Package resmap builds the resource map: a precomputed index from declared
// module names and manual-mock names to absolute file paths.
//
// Module files declare a registry name with a header comment:
//
//	-- @provides MyModule
//
// Files inside a __mocks__ directory are registered as manual mocks under
// their basename. The map is built once per configuration and shared
// read-only across loader instances.
package resmap

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/selune/selune/internal/config"
)

// providesPrefix marks a registry-name declaration in a module header.
const providesPrefix = "-- @provides "

// headerScanLimit bounds how many leading lines are searched for a declaration.
const headerScanLimit = 16

// ResourceMap maps declared module names and mock names to absolute file paths.
// It is immutable after Build and safe to share across loader instances.
type ResourceMap struct {
	nameToPath     map[string]string
	mockNameToPath map[string]string
}

// ModulePath returns the absolute path registered for a module name.
func (m *ResourceMap) ModulePath(name string) (string, bool) {
	p, ok := m.nameToPath[name]
	return p, ok
}

// MockPath returns the absolute path of the manual mock registered for a name.
func (m *ResourceMap) MockPath(name string) (string, bool) {
	p, ok := m.mockNameToPath[name]
	return p, ok
}

// Names returns all registered module names.
func (m *ResourceMap) Names() []string {
	names := make([]string, 0, len(m.nameToPath))
	for name := range m.nameToPath {
		names = append(names, name)
	}
	return names
}

// MockNames returns all registered manual-mock names.
func (m *ResourceMap) MockNames() []string {
	names := make([]string, 0, len(m.mockNameToPath))
	for name := range m.mockNameToPath {
		names = append(names, name)
	}
	return names
}

// Build scans the configured module roots and produces the resource map.
// Duplicate name declarations across files are a build error since registry
// names must be unique within one configuration.
func Build(cfg *config.Config) (*ResourceMap, error) {
	m := &ResourceMap{
		nameToPath:     make(map[string]string),
		mockNameToPath: make(map[string]string),
	}

	ext := cfg.Modules.SourceExt
	mockDir := cfg.Modules.MockDirName

	for _, root := range cfg.Modules.Roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve root %s: %w", root, err)
		}

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ext) {
				return nil
			}

			if filepath.Base(filepath.Dir(path)) == mockDir {
				name := strings.TrimSuffix(filepath.Base(path), ext)
				if prev, ok := m.mockNameToPath[name]; ok && prev != path {
					return fmt.Errorf("duplicate manual mock %s: %s and %s", name, prev, path)
				}
				m.mockNameToPath[name] = path
				cfg.Log(2, "resmap: mock %s -> %s", name, path)
				return nil
			}

			name, err := readProvidesName(path)
			if err != nil {
				return err
			}
			if name == "" {
				return nil
			}
			if prev, ok := m.nameToPath[name]; ok && prev != path {
				return fmt.Errorf("duplicate module name %s: %s and %s", name, prev, path)
			}
			m.nameToPath[name] = path
			cfg.Log(2, "resmap: module %s -> %s", name, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	cfg.Log(1, "resmap: %d modules, %d mocks", len(m.nameToPath), len(m.mockNameToPath))
	return m, nil
}

// readProvidesName extracts a registry name from a module file header.
// Returns "" when the file declares no name.
func readProvidesName(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for i := 0; i < headerScanLimit && scanner.Scan(); i++ {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, providesPrefix); ok {
			name := strings.TrimSpace(rest)
			if name == "" {
				return "", fmt.Errorf("%s: empty @provides declaration", path)
			}
			return name, nil
		}
	}
	return "", scanner.Err()
}

// Package manifest loads the project manifests deadwood consults:
// package.json for declared dependencies and tsconfig.json for typeRoots.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrNotFound is returned when no manifest exists in the directory chain.
var ErrNotFound = errors.New("manifest not found")

// PackageJSON is the subset of package.json deadwood reads.
type PackageJSON struct {
	Dependencies    map[string]string `koanf:"dependencies"`
	DevDependencies map[string]string `koanf:"devDependencies"`
	Main            string            `koanf:"main"`
	Style           string            `koanf:"style"`
}

// TSConfig is the subset of tsconfig.json deadwood reads.
type TSConfig struct {
	CompilerOptions struct {
		TypeRoots []string `koanf:"typeRoots"`
	} `koanf:"compilerOptions"`

	// dir is where the file was found; typeRoots resolve against it.
	dir string
}

// FindUp walks from dir toward the filesystem root until it finds the
// named file, returning its full path.
func FindUp(dir, name string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		dir = parent
	}
}

// loadJSON unmarshals one JSON manifest into out. A malformed manifest is
// a hard error; the caller decides what a missing one means.
func loadJSON(path string, out any) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), json.Parser()); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := k.Unmarshal("", out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// LoadPackageJSON finds and loads the nearest package.json at or above
// dir. Returns ErrNotFound (wrapped) when none exists.
func LoadPackageJSON(dir string) (*PackageJSON, error) {
	path, err := FindUp(dir, "package.json")
	if err != nil {
		return nil, err
	}
	var pkg PackageJSON
	if err := loadJSON(path, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// LoadTSConfig finds and loads the nearest tsconfig.json at or above dir.
// Returns ErrNotFound (wrapped) when none exists.
func LoadTSConfig(dir string) (*TSConfig, error) {
	path, err := FindUp(dir, "tsconfig.json")
	if err != nil {
		return nil, err
	}
	var cfg TSConfig
	if err := loadJSON(path, &cfg); err != nil {
		return nil, err
	}
	cfg.dir = filepath.Dir(path)
	return &cfg, nil
}

// NormalizedTypeRoots resolves typeRoots against the tsconfig's directory
// and keeps only those that exist on disk.
func (c *TSConfig) NormalizedTypeRoots() []string {
	var roots []string
	for _, root := range c.CompilerOptions.TypeRoots {
		resolved := root
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(c.dir, resolved)
		}
		if info, err := os.Stat(resolved); err == nil && info.IsDir() {
			roots = append(roots, resolved)
		}
	}
	return roots
}

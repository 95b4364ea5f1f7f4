package graph

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// sourceExtensions in resolution priority order. Declaration files shadow
// implementation files with the same stem.
var sourceExtensions = []string{".d.ts", ".ts", ".tsx"}

// NormalizePath converts an absolute source path into the module's
// identity: root-relative with the TypeScript extension stripped.
func NormalizePath(root, path string) NormalizedPath {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	for _, ext := range sourceExtensions {
		if strings.HasSuffix(rel, ext) {
			return NormalizedPath(strings.TrimSuffix(rel, ext))
		}
	}
	return NormalizedPath(rel)
}

// ResolveImportPath resolves a relative import specifier against the
// importing file's directory. Candidate extensions are probed in priority
// order; a bare directory falls back to its index module.
func ResolveImportPath(root, importerDir, specifier string) (NormalizedPath, error) {
	base := filepath.Join(importerDir, filepath.FromSlash(specifier))

	for _, ext := range sourceExtensions {
		candidate := base + ext
		if isFile(candidate) {
			return NormalizePath(root, candidate), nil
		}
	}

	// The specifier may already carry an extension.
	if isFile(base) {
		return NormalizePath(root, base), nil
	}

	index := filepath.Join(base, "index.ts")
	if isFile(index) {
		return NormalizePath(root, index), nil
	}

	return "", fmt.Errorf("cannot resolve import %q from %s", specifier, importerDir)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// IsRelative reports whether a specifier addresses a local module.
func IsRelative(specifier string) bool {
	return strings.HasPrefix(specifier, ".")
}

// PackageName extracts the package name from a bare import specifier.
// Scoped packages keep their first two path segments, everything else
// keeps only the first.
func PackageName(specifier string) string {
	segments := strings.Split(specifier, "/")
	if strings.HasPrefix(specifier, "@") && len(segments) >= 2 {
		return segments[0] + "/" + segments[1]
	}
	return segments[0]
}

// Package scanner discovers TypeScript source files under a project root,
// honoring gitignore chains, a dedicated ignore file, and configured
// folder exclusions.
package scanner

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/deadwoodlabs/deadwood/pkg/config"
	"github.com/deadwoodlabs/deadwood/pkg/parser"
)

// Scanner finds TypeScript source files in a directory tree.
type Scanner struct {
	config   *config.Config
	excluded []string
	matchers []gitignore.Matcher
}

// New creates a file scanner.
func New(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
}

// ExcludeDirs adds absolute directory paths to skip, such as resolved
// tsconfig typeRoots.
func (s *Scanner) ExcludeDirs(dirs []string) {
	s.excluded = append(s.excluded, dirs...)
}

// findGitRoot finds the enclosing git repository root, or "" if none.
func findGitRoot(start string) string {
	dir := start
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadIgnorePatterns combines .gitignore chains from the enclosing git
// repository with the project's dedicated ignore file.
func (s *Scanner) loadIgnorePatterns(root string) {
	var patterns []gitignore.Pattern

	if gitRoot := findGitRoot(root); gitRoot != "" {
		fs := osfs.New(gitRoot)
		if gitPatterns, err := gitignore.ReadPatterns(fs, nil); err == nil {
			patterns = append(patterns, gitPatterns...)
		}
	}

	if s.config.IgnoreFile != "" {
		patterns = append(patterns, readIgnoreFile(filepath.Join(root, s.config.IgnoreFile))...)
	}

	if len(patterns) > 0 {
		s.matchers = append(s.matchers, gitignore.NewMatcher(patterns))
	}
}

// readIgnoreFile parses one ignore file with gitignore syntax.
func readIgnoreFile(path string) []gitignore.Pattern {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []gitignore.Pattern
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns
}

func (s *Scanner) isIgnored(relPath string, isDir bool) bool {
	if len(s.matchers) == 0 {
		return false
	}
	parts := strings.Split(relPath, string(filepath.Separator))
	for _, m := range s.matchers {
		if m.Match(parts, isDir) {
			return true
		}
	}
	return false
}

// isExcludedDir checks configured folder exclusions against a directory.
func (s *Scanner) isExcludedDir(path, relPath string) bool {
	base := filepath.Base(path)
	if base == "node_modules" {
		return true
	}
	for _, folder := range s.config.IgnoredFolders {
		folder = filepath.FromSlash(folder)
		if base == folder || relPath == folder || strings.HasPrefix(relPath, folder+string(filepath.Separator)) {
			return true
		}
	}
	for _, dir := range s.excluded {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// ScanDir recursively scans a directory for TypeScript source files.
// Symlinks escaping the root are skipped.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	files := make([]string, 0, 256)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	s.loadIgnorePatterns(absRoot)

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		relPath, _ := filepath.Rel(absRoot, path)

		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if d.IsDir() {
			if path != absRoot {
				if strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				if s.isExcludedDir(path, relPath) || s.isIgnored(relPath, true) {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if s.isIgnored(relPath, false) {
			return nil
		}
		if parser.DetectModuleKind(path) != parser.KindUnknown {
			files = append(files, path)
		}

		return nil
	})

	return files, walkErr
}

// isWithinRoot checks that a resolved path does not escape the root.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}

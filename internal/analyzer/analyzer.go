// Package analyzer orchestrates the three analysis phases: parallel
// per-file parsing and scope resolution, single-threaded cross-module
// graph resolution, and aggregation into the final reports.
package analyzer

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/deadwoodlabs/deadwood/internal/fileproc"
	"github.com/deadwoodlabs/deadwood/internal/graph"
	"github.com/deadwoodlabs/deadwood/internal/manifest"
	"github.com/deadwoodlabs/deadwood/internal/scanner"
	"github.com/deadwoodlabs/deadwood/internal/scope"
	"github.com/deadwoodlabs/deadwood/pkg/config"
	"github.com/deadwoodlabs/deadwood/pkg/parser"
)

// UnusedExport is one unused-export finding.
type UnusedExport struct {
	Name string           `json:"name"`
	Kind graph.ExportKind `json:"kind"`
	Path string           `json:"path"`
	Line int              `json:"line"`
}

// Analysis is the complete result of one run.
type Analysis struct {
	UnusedExports []UnusedExport `json:"unused_exports"`
	// IndeterminateKind counts exports excluded from a types/values
	// report because their kind could not be resolved.
	IndeterminateKind int `json:"indeterminate_kind,omitempty"`

	// UnusedDependencies is nil when no package.json was found, which is
	// distinct from an empty list.
	UnusedDependencies []string `json:"unused_dependencies"`
	PackageJSONFound   bool     `json:"package_json_found"`

	ModuleCount int      `json:"module_count"`
	Diagnostics []string `json:"diagnostics,omitempty"`

	ParseDuration   time.Duration `json:"-"`
	ResolveDuration time.Duration `json:"-"`

	// FileErrors holds per-file parse failures; the run still completes.
	FileErrors *fileproc.ProcessingErrors `json:"-"`
}

// Analyzer runs the dead-code and unused-dependency analysis.
type Analyzer struct {
	config *config.Config
}

// New creates an analyzer.
func New(cfg *config.Config) *Analyzer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Analyzer{config: cfg}
}

// AnalyzeProject analyzes the configured root directory.
func (a *Analyzer) AnalyzeProject(root string) (*Analysis, error) {
	return a.AnalyzeProjectWithProgress(root, nil)
}

// AnalyzeProjectWithProgress analyzes the root, invoking onProgress after
// each parsed file. onFiles, when set, receives the discovered file count
// before parsing starts.
func (a *Analyzer) AnalyzeProjectWithProgress(root string, onProgress func()) (*Analysis, error) {
	return a.analyze(root, nil, onProgress)
}

// AnalyzeProjectTracked is AnalyzeProjectWithProgress with a file-count
// callback so callers can size a progress bar.
func (a *Analyzer) AnalyzeProjectTracked(root string, onFiles func(int), onProgress func()) (*Analysis, error) {
	return a.analyze(root, onFiles, onProgress)
}

func (a *Analyzer) analyze(root string, onFiles func(int), onProgress func()) (*Analysis, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve root %s: %w", root, err)
	}

	pkg, err := manifest.LoadPackageJSON(absRoot)
	if err != nil && !errors.Is(err, manifest.ErrNotFound) {
		return nil, err
	}

	scan := scanner.New(a.config)
	tsconfig, err := manifest.LoadTSConfig(absRoot)
	if err == nil {
		scan.ExcludeDirs(tsconfig.NormalizedTypeRoots())
	} else if !errors.Is(err, manifest.ErrNotFound) {
		return nil, err
	}

	files, err := scan.ScanDir(absRoot)
	if err != nil {
		return nil, fmt.Errorf("cannot scan %s: %w", absRoot, err)
	}
	if onFiles != nil {
		onFiles(len(files))
	}

	analysis := &Analysis{PackageJSONFound: pkg != nil}

	// Phase 1: parse and locally resolve every file in parallel. Each
	// worker builds a complete Module before it is inserted.
	parseStart := time.Now()
	type fileResult struct {
		module *graph.Module
		diags  []string
	}
	results, fileErrs := fileproc.MapFilesN(files, a.config.Workers,
		func(psr *parser.Parser, path string) (fileResult, error) {
			res, err := psr.ParseFile(path)
			if err != nil {
				return fileResult{}, err
			}
			defer res.Close()

			fs, err := scope.Build(res)
			if err != nil {
				return fileResult{}, err
			}

			module, diags := buildModule(absRoot, res, fs)
			return fileResult{module: module, diags: diags}, nil
		}, onProgress)
	analysis.ParseDuration = time.Since(parseStart)
	analysis.FileErrors = fileErrs

	table := make(graph.Table, len(results))
	for _, r := range results {
		table.Add(r.module)
		analysis.Diagnostics = append(analysis.Diagnostics, r.diags...)
	}
	analysis.ModuleCount = len(table)

	// Phase 2: cross-module usage propagation over the completed table.
	resolveStart := time.Now()
	for _, d := range graph.ResolveImports(table) {
		analysis.Diagnostics = append(analysis.Diagnostics, d.String())
	}
	analysis.ResolveDuration = time.Since(resolveStart)

	// Phase 3: aggregation.
	target, err := config.ParseTarget(a.config.Target)
	if err != nil {
		return nil, err
	}
	analysis.UnusedExports, analysis.IndeterminateKind = collectUnusedExports(table, target)
	if pkg != nil {
		analysis.UnusedDependencies = collectUnusedDependencies(table, pkg, a.config.Dev)
	}

	return analysis, nil
}

// buildModule assembles one file's Module record from its resolved scope.
func buildModule(root string, res *parser.ParseResult, fs *scope.FileScope) (*graph.Module, []string) {
	rel, err := filepath.Rel(root, res.Path)
	if err != nil {
		rel = res.Path
	}
	rel = filepath.ToSlash(rel)

	m := graph.NewModule(rel, graph.NormalizePath(root, res.Path), res.Kind)

	exports, diags := fs.Resolve(res.Kind)
	m.Exports = exports
	for i := range diags {
		diags[i] = fmt.Sprintf("%s: %s", rel, diags[i])
	}

	for _, imp := range fs.Imports {
		if !graph.IsRelative(imp.Specifier) {
			m.AddImportedPackage(graph.PackageName(imp.Specifier))
			continue
		}

		target, err := graph.ResolveImportPath(root, filepath.Dir(res.Path), imp.Specifier)
		if err != nil {
			diags = append(diags, fmt.Sprintf("%s: %v", rel, err))
			continue
		}
		names := make([]graph.ImportName, 0, len(imp.Names))
		for _, n := range imp.Names {
			names = append(names, n.Name)
		}
		m.AddImportedNames(target, names)
	}

	return m, diags
}

// matchesTarget applies the analyze-target filter to an export kind.
// Classes and enums are both types and values. Unknown kinds only pass
// the all target.
func matchesTarget(kind graph.ExportKind, target config.AnalyzeTarget) bool {
	switch target {
	case config.TargetTypes:
		return kind == graph.KindType || kind == graph.KindClass || kind == graph.KindEnum
	case config.TargetValues:
		return kind == graph.KindValue || kind == graph.KindClass || kind == graph.KindEnum
	default:
		return true
	}
}

// collectUnusedExports gathers unused exports from modules that are not
// wildcard-imported, sorted by path then line.
func collectUnusedExports(table graph.Table, target config.AnalyzeTarget) ([]UnusedExport, int) {
	var unused []UnusedExport
	indeterminate := 0

	for _, m := range table {
		if m.WildcardImported {
			continue
		}
		for name, export := range m.Exports {
			if export.Usage.IsUsed() {
				continue
			}
			if !matchesTarget(export.Kind, target) {
				if export.Kind == graph.KindUnknown {
					indeterminate++
				}
				continue
			}
			unused = append(unused, UnusedExport{
				Name: name.String(),
				Kind: export.Kind,
				Path: m.Path,
				Line: export.Line,
			})
		}
	}

	sort.Slice(unused, func(i, j int) bool {
		if unused[i].Path != unused[j].Path {
			return unused[i].Path < unused[j].Path
		}
		if unused[i].Line != unused[j].Line {
			return unused[i].Line < unused[j].Line
		}
		return unused[i].Name < unused[j].Name
	})

	return unused, indeterminate
}

// collectUnusedDependencies returns declared dependencies no module
// imports, alphabetically sorted.
func collectUnusedDependencies(table graph.Table, pkg *manifest.PackageJSON, dev bool) []string {
	imported := make(map[string]struct{})
	for _, m := range table {
		for name := range m.ImportedPackages {
			imported[name] = struct{}{}
		}
	}

	declared := make(map[string]struct{}, len(pkg.Dependencies))
	for name := range pkg.Dependencies {
		declared[name] = struct{}{}
	}
	if dev {
		for name := range pkg.DevDependencies {
			declared[name] = struct{}{}
		}
	}

	unused := make([]string, 0)
	for name := range declared {
		if _, ok := imported[name]; !ok {
			unused = append(unused, name)
		}
	}
	sort.Strings(unused)
	return unused
}

// Package graph holds the module dependency graph: per-file Module records
// keyed by normalized path, their export tables, and the cross-module
// resolution that propagates external usage back to exporters.
package graph

import (
	"github.com/deadwoodlabs/deadwood/pkg/parser"
)

// NormalizedPath is a project-root-relative, extension-stripped module
// identity. It keys the module table and is the target of resolved
// relative imports.
type NormalizedPath string

// ExportName identifies one exported name: either a named export or the
// module's default export.
type ExportName struct {
	Name    string
	Default bool
}

// Named builds an ExportName for a named export.
func Named(name string) ExportName {
	return ExportName{Name: name}
}

// DefaultExport is the module default export name.
var DefaultExport = ExportName{Default: true}

func (e ExportName) String() string {
	if e.Default {
		return "default"
	}
	return e.Name
}

// ExportKind classifies what an export declares.
type ExportKind string

const (
	KindType    ExportKind = "type"
	KindValue   ExportKind = "value"
	KindClass   ExportKind = "class"
	KindEnum    ExportKind = "enum"
	KindUnknown ExportKind = "unknown"
)

// Visibility distinguishes explicit exports from declaration-file
// implicit ones.
type Visibility string

const (
	Exported           Visibility = "exported"
	ImplicitlyExported Visibility = "implicit"
)

// Usage tracks whether an export is consumed. Both flags are monotonic:
// once set they are never cleared.
type Usage struct {
	UsedLocally    bool `json:"used_locally"`
	UsedExternally bool `json:"used_externally"`
}

// MarkUsedLocally sets the local usage flag.
func (u *Usage) MarkUsedLocally() {
	u.UsedLocally = true
}

// MarkUsedExternally sets the external usage flag.
func (u *Usage) MarkUsedExternally() {
	u.UsedExternally = true
}

// IsUsed reports whether the export is consumed anywhere.
func (u *Usage) IsUsed() bool {
	return u.UsedLocally || u.UsedExternally
}

// Export is one entry in a module's export table.
type Export struct {
	Name       ExportName
	Kind       ExportKind
	Visibility Visibility
	Usage      Usage
	Line       int
}

// ImportNameKind classifies one imported name.
type ImportNameKind int

const (
	ImportNamed ImportNameKind = iota
	ImportDefault
	ImportWildcard
)

// ImportName is one name imported from a module: a named import, the
// default export, or the whole namespace.
type ImportName struct {
	Kind ImportNameKind
	Name string
}

func (n ImportName) String() string {
	switch n.Kind {
	case ImportDefault:
		return "default"
	case ImportWildcard:
		return "*"
	default:
		return n.Name
	}
}

// Module is one file's final analysis state.
type Module struct {
	// Path is the root-relative source path used for reporting.
	Path string
	// Normalized is the module's identity in the module table.
	Normalized NormalizedPath
	Kind       parser.ModuleKind

	Exports map[ExportName]*Export
	// ImportedModules maps resolved local module paths to the names
	// imported from them.
	ImportedModules map[NormalizedPath][]ImportName
	// ImportedPackages is the set of external package names this module
	// references, independent of which symbols were imported.
	ImportedPackages map[string]struct{}

	// WildcardImported is set during graph resolution when any module
	// namespace-imports this one; every export is then considered used.
	WildcardImported bool
}

// NewModule creates an empty module record.
func NewModule(path string, normalized NormalizedPath, kind parser.ModuleKind) *Module {
	return &Module{
		Path:             path,
		Normalized:       normalized,
		Kind:             kind,
		Exports:          make(map[ExportName]*Export),
		ImportedModules:  make(map[NormalizedPath][]ImportName),
		ImportedPackages: make(map[string]struct{}),
	}
}

// AddImportedNames appends names imported from a resolved local module.
func (m *Module) AddImportedNames(target NormalizedPath, names []ImportName) {
	m.ImportedModules[target] = append(m.ImportedModules[target], names...)
}

// AddImportedPackage records an external package reference.
func (m *Module) AddImportedPackage(name string) {
	m.ImportedPackages[name] = struct{}{}
}

// Table is the global module table built during phase 1 and resolved in
// phase 2. Each key is written exactly once; usage flags are mutated in
// place only during resolution.
type Table map[NormalizedPath]*Module

// Add inserts a module under its normalized path.
func (t Table) Add(m *Module) {
	t[m.Normalized] = m
}

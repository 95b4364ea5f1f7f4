// Package scope builds per-file lexical scope trees with dual value/type
// binding namespaces and resolves references against them to decide which
// top-level declarations are exported and locally consumed.
package scope

import (
	"github.com/deadwoodlabs/deadwood/internal/graph"
)

// ID indexes into the flat scope arena. Scope 0 is always the module root.
type ID int

// Root is the module-level scope id.
const Root ID = 0

// noParent marks the root scope's parent pointer.
const noParent ID = -1

// Kind classifies a scope.
type Kind int

const (
	// KindRoot is the module top level, the only level whose bindings
	// can be exported.
	KindRoot Kind = iota
	// KindType hosts type-parameter lists and type-level bodies.
	KindType
	// KindBlock hosts function bodies and statement blocks.
	KindBlock
)

// BindingKind distinguishes overloadable function declarations from
// everything else in the value namespace.
type BindingKind int

const (
	BindValue BindingKind = iota
	BindFunction
	// BindOverload is an ambient overload signature awaiting refinement
	// by another signature or the implementing function.
	BindOverload
)

// SelfExport is the export state stamped on a binding at declaration
// time from the enclosing export context.
type SelfExport int

const (
	Private SelfExport = iota
	SelfNamed
	SelfDefault
)

// Binding is a name bound in one scope, in either namespace.
type Binding struct {
	Name string
	Line int
	Kind BindingKind
	// Decl is the declaration kind used to refine Unknown exports.
	Decl   graph.ExportKind
	Export SelfExport

	// Filled in by Resolve.
	RefCount  int
	ExportIDs []int
}

// Scope is one lexical region: bindings plus the references made in it.
type Scope struct {
	ID     ID
	Parent ID
	Kind   Kind

	Bindings     []Binding
	TypeBindings []Binding

	Refs          map[string]struct{}
	TypeRefs      map[string]struct{}
	AmbiguousRefs map[string]struct{}
}

func (s *Scope) valueBinding(name string) *Binding {
	for i := range s.Bindings {
		if s.Bindings[i].Name == name {
			return &s.Bindings[i]
		}
	}
	return nil
}

func (s *Scope) typeBinding(name string) *Binding {
	for i := range s.TypeBindings {
		if s.TypeBindings[i].Name == name {
			return &s.TypeBindings[i]
		}
	}
	return nil
}

// Tree is the append-only scope arena for one file. Scopes are never
// deleted; parent links reproduce the lexical nesting.
type Tree struct {
	Scopes []Scope
}

// NewTree creates a tree containing only the root scope.
func NewTree() *Tree {
	t := &Tree{}
	t.Scopes = append(t.Scopes, newScope(Root, noParent, KindRoot))
	return t
}

func newScope(id, parent ID, kind Kind) Scope {
	return Scope{
		ID:            id,
		Parent:        parent,
		Kind:          kind,
		Refs:          make(map[string]struct{}),
		TypeRefs:      make(map[string]struct{}),
		AmbiguousRefs: make(map[string]struct{}),
	}
}

// Push appends a child scope and returns its id.
func (t *Tree) Push(parent ID, kind Kind) ID {
	id := ID(len(t.Scopes))
	t.Scopes = append(t.Scopes, newScope(id, parent, kind))
	return id
}

// Scope returns the scope with the given id.
func (t *Tree) Scope(id ID) *Scope {
	return &t.Scopes[id]
}

// RootScope returns the module-level scope.
func (t *Tree) RootScope() *Scope {
	return &t.Scopes[Root]
}

// ChildrenOf returns the ids of a scope's children in creation order.
func (t *Tree) ChildrenOf(id ID) []ID {
	var out []ID
	for i := range t.Scopes {
		if t.Scopes[i].Parent == id {
			out = append(out, t.Scopes[i].ID)
		}
	}
	return out
}

// lookupValue searches the scope chain, nearest first, for a value
// binding with the given name.
func (t *Tree) lookupValue(from ID, name string) *Binding {
	for id := from; id != noParent; id = t.Scopes[id].Parent {
		if b := t.Scopes[id].valueBinding(name); b != nil {
			return b
		}
	}
	return nil
}

// lookupType is lookupValue for the type namespace.
func (t *Tree) lookupType(from ID, name string) *Binding {
	for id := from; id != noParent; id = t.Scopes[id].Parent {
		if b := t.Scopes[id].typeBinding(name); b != nil {
			return b
		}
	}
	return nil
}

// lookupAmbiguous checks both namespaces per scope, value first, before
// climbing to the parent.
func (t *Tree) lookupAmbiguous(from ID, name string) *Binding {
	for id := from; id != noParent; id = t.Scopes[id].Parent {
		if b := t.Scopes[id].valueBinding(name); b != nil {
			return b
		}
		if b := t.Scopes[id].typeBinding(name); b != nil {
			return b
		}
	}
	return nil
}

// ModuleExport is one exported name collected during the scope walk.
type ModuleExport struct {
	Name graph.ExportName
	// LocalName is the binding the export aliases; empty for anonymous
	// defaults and re-export-from forms.
	LocalName string
	Kind      graph.ExportKind
	Line      int
}

// ImportedName is one name pulled in by an import or re-export clause.
type ImportedName struct {
	Name graph.ImportName
	// Alias is the local binding name; empty for re-export-from forms,
	// which bind nothing locally.
	Alias string
}

// ModuleImport is one import statement's worth of names from one raw,
// unnormalized specifier. A side-effect import has no names.
type ModuleImport struct {
	Specifier string
	Names     []ImportedName
}

// FileScope is the complete result of one file's scope resolution.
type FileScope struct {
	Tree    *Tree
	Exports []ModuleExport
	Imports []ModuleImport
}

package scope

import (
	"fmt"

	"github.com/deadwoodlabs/deadwood/internal/graph"
	"github.com/deadwoodlabs/deadwood/pkg/parser"
)

// Resolve matches the tree's references to bindings through the scope
// chain, associates export records with their root-scope bindings, and
// produces the module's final export table.
//
// Declaration files retain every root declaration as implicitly exported;
// TS/TSX files retain only what the export records or export-stamped
// bindings name.
func (fs *FileScope) Resolve(kind parser.ModuleKind) (map[graph.ExportName]*graph.Export, []string) {
	t := fs.Tree
	var diags []string

	fs.countReferences()

	// Associate each export record with the root binding it aliases.
	for id, exp := range fs.Exports {
		if exp.LocalName == "" {
			continue
		}
		root := t.RootScope()
		found := false
		if exp.Kind != graph.KindType {
			if b := root.valueBinding(exp.LocalName); b != nil {
				b.ExportIDs = append(b.ExportIDs, id)
				found = true
			}
		}
		if exp.Kind != graph.KindValue {
			if b := root.typeBinding(exp.LocalName); b != nil {
				b.ExportIDs = append(b.ExportIDs, id)
				found = true
			}
		}
		if !found {
			diags = append(diags, fmt.Sprintf("export %q has no matching root declaration", exp.Name.String()))
		}
	}

	exports := make(map[graph.ExportName]*graph.Export)

	// Explicit export records first.
	for id, exp := range fs.Exports {
		kind := exp.Kind
		usedLocally := false
		visibility := graph.Exported

		for _, b := range fs.rootBindingsFor(id) {
			if b.RefCount > 0 {
				usedLocally = true
			}
			if kind == graph.KindUnknown {
				kind = b.Decl
			}
		}

		insertExport(exports, &graph.Export{
			Name:       exp.Name,
			Kind:       kind,
			Visibility: visibility,
			Usage:      graph.Usage{UsedLocally: usedLocally},
			Line:       exp.Line,
		})
	}

	// Then bindings that export themselves at declaration time, plus, in
	// declaration files, every remaining root declaration.
	root := t.RootScope()
	for _, bindings := range [][]Binding{root.Bindings, root.TypeBindings} {
		for i := range bindings {
			b := &bindings[i]
			visibility := graph.Exported
			if b.Export == Private {
				if kind != parser.KindDTS {
					continue
				}
				visibility = graph.ImplicitlyExported
			}

			name := graph.Named(b.Name)
			if b.Export == SelfDefault {
				name = graph.DefaultExport
			}

			insertExport(exports, &graph.Export{
				Name:       name,
				Kind:       b.Decl,
				Visibility: visibility,
				Usage:      graph.Usage{UsedLocally: b.RefCount > 0},
				Line:       b.Line,
			})
		}
	}

	return exports, diags
}

// insertExport merges an export into the table. The first record wins its
// identity; usage is combined.
func insertExport(exports map[graph.ExportName]*graph.Export, e *graph.Export) {
	if existing, ok := exports[e.Name]; ok {
		if e.Usage.UsedLocally {
			existing.Usage.MarkUsedLocally()
		}
		if existing.Kind == graph.KindUnknown && e.Kind != graph.KindUnknown {
			existing.Kind = e.Kind
		}
		return
	}
	exports[e.Name] = e
}

// rootBindingsFor returns the root-scope bindings associated with an
// export record id.
func (fs *FileScope) rootBindingsFor(id int) []*Binding {
	var out []*Binding
	root := fs.Tree.RootScope()
	for _, bindings := range [][]Binding{root.Bindings, root.TypeBindings} {
		for i := range bindings {
			for _, eid := range bindings[i].ExportIDs {
				if eid == id {
					out = append(out, &bindings[i])
				}
			}
		}
	}
	return out
}

// countReferences resolves every recorded reference against the scope
// chain and increments the matched binding's count. Unresolved references
// denote globals or ambient names and are not diagnosed.
func (fs *FileScope) countReferences() {
	t := fs.Tree
	for i := range t.Scopes {
		s := &t.Scopes[i]
		for name := range s.Refs {
			if b := t.lookupValue(s.ID, name); b != nil {
				b.RefCount++
			}
		}
		for name := range s.TypeRefs {
			if b := t.lookupType(s.ID, name); b != nil {
				b.RefCount++
			}
		}
		for name := range s.AmbiguousRefs {
			if b := t.lookupAmbiguous(s.ID, name); b != nil {
				b.RefCount++
			}
		}
	}
}

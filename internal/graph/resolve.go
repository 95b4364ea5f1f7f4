package graph

import "fmt"

// Diagnostic is a non-fatal finding from graph resolution.
type Diagnostic struct {
	Module  string
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Module, d.Message)
}

// ResolveImports propagates external usage across the whole module table.
// It must run single-threaded after every module has been inserted: one
// module's wildcard flag gates how later importers of it are processed.
func ResolveImports(table Table) []Diagnostic {
	var diags []Diagnostic

	for _, importer := range table {
		for target, names := range importer.ImportedModules {
			imported, ok := table[target]
			if !ok {
				diags = append(diags, Diagnostic{
					Module:  importer.Path,
					Message: fmt.Sprintf("unresolved module %q", target),
				})
				continue
			}

			if imported.WildcardImported {
				continue
			}

			for _, name := range names {
				if name.Kind == ImportWildcard {
					imported.WildcardImported = true
					break
				}

				exportName := Named(name.Name)
				if name.Kind == ImportDefault {
					exportName = DefaultExport
				}

				export, ok := imported.Exports[exportName]
				if !ok {
					diags = append(diags, Diagnostic{
						Module:  importer.Path,
						Message: fmt.Sprintf("failed to resolve export %q in %s", exportName.String(), imported.Path),
					})
					continue
				}
				export.Usage.MarkUsedExternally()
			}
		}
	}

	return diags
}

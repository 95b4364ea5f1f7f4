package scope

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/deadwoodlabs/deadwood/internal/graph"
	"github.com/deadwoodlabs/deadwood/pkg/parser"
)

// Build walks a parsed module once and produces its scope tree plus the
// flat export and import lists.
func Build(res *parser.ParseResult) (*FileScope, error) {
	r := &resolver{
		tree:    NewTree(),
		source:  res.Source,
		path:    res.Path,
		current: Root,
		export:  Private,
	}
	r.visitChildren(res.Tree.RootNode())
	if r.err != nil {
		return nil, r.err
	}
	return &FileScope{Tree: r.tree, Exports: r.exports, Imports: r.imports}, nil
}

type resolver struct {
	tree    *Tree
	source  []byte
	path    string
	current ID
	// export is the active export context; bindings declared at the
	// module root while it is set are stamped with it.
	export  SelfExport
	exports []ModuleExport
	imports []ModuleImport
	err     error
}

func (r *resolver) text(n *sitter.Node) string {
	return parser.GetNodeText(n, r.source)
}

// stringText extracts the content of a string literal node.
func (r *resolver) stringText(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "string_fragment" {
			return r.text(c)
		}
	}
	return strings.Trim(r.text(n), "\"'`")
}

func (r *resolver) scoped(kind Kind, fn func()) {
	prev := r.current
	r.current = r.tree.Push(prev, kind)
	fn()
	r.current = prev
}

func (r *resolver) ref(name string) {
	r.tree.Scope(r.current).Refs[name] = struct{}{}
}

func (r *resolver) typeRef(name string) {
	r.tree.Scope(r.current).TypeRefs[name] = struct{}{}
}

func (r *resolver) ambiguousRef(name string) {
	r.tree.Scope(r.current).AmbiguousRefs[name] = struct{}{}
}

// effectiveExport limits export stamping to root-scope declarations.
func (r *resolver) effectiveExport() SelfExport {
	if r.current != Root {
		return Private
	}
	return r.export
}

func (r *resolver) bindValue(name string, line int, kind BindingKind, decl graph.ExportKind) {
	if r.err != nil || name == "" {
		return
	}
	s := r.tree.Scope(r.current)
	if existing := s.valueBinding(name); existing != nil {
		// Only ambient overload signatures may be redeclared, refined by
		// further signatures or the implementing function.
		if existing.Kind != BindOverload {
			r.err = fmt.Errorf("%s:%d: illegal redeclaration of %q", r.path, line, name)
			return
		}
		if kind != BindOverload {
			existing.Kind = kind
		}
		if exp := r.effectiveExport(); exp != Private {
			existing.Export = exp
		}
		return
	}
	s.Bindings = append(s.Bindings, Binding{
		Name:   name,
		Line:   line,
		Kind:   kind,
		Decl:   decl,
		Export: r.effectiveExport(),
	})
}

func (r *resolver) bindType(name string, line int, decl graph.ExportKind) {
	if r.err != nil || name == "" {
		return
	}
	s := r.tree.Scope(r.current)
	if existing := s.typeBinding(name); existing != nil {
		// Interface and namespace declarations merge legally.
		if exp := r.effectiveExport(); exp != Private {
			existing.Export = exp
		}
		return
	}
	s.TypeBindings = append(s.TypeBindings, Binding{
		Name:   name,
		Line:   line,
		Decl:   decl,
		Export: r.effectiveExport(),
	})
}

func (r *resolver) visitChildren(n *sitter.Node) {
	if n == nil {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		r.visit(n.NamedChild(i))
	}
}

// visit is the single dispatch point: a tagged switch over node kinds
// with default recursion. Plain identifiers are value references and
// type_identifier leaves are type references; every binding or
// scope-opening construct gets its own case.
func (r *resolver) visit(n *sitter.Node) {
	if r.err != nil || n == nil {
		return
	}

	switch n.Type() {
	case "identifier", "shorthand_property_identifier":
		r.ref(r.text(n))

	case "type_identifier":
		r.typeRef(r.text(n))

	case "nested_identifier":
		// Qualified names reference only their root identifier.
		r.visit(n.NamedChild(0))

	case "nested_type_identifier":
		// Qualified type names (ns.Type) are not tracked.

	case "member_expression":
		r.visit(n.ChildByFieldName("object"))

	case "import_statement":
		r.visitImport(n)

	case "export_statement":
		r.visitExport(n)

	case "lexical_declaration", "variable_declaration":
		r.visitVariables(n)

	case "function_declaration", "generator_function_declaration":
		r.visitFunctionDecl(n, BindFunction)

	case "function_signature":
		r.visitFunctionDecl(n, BindOverload)

	case "function_expression", "function":
		r.visitFunctionExpr(n)

	case "arrow_function":
		r.visitArrow(n)

	case "method_definition", "abstract_method_signature", "method_signature",
		"call_signature", "construct_signature", "function_type", "constructor_type":
		r.visitCallable(n)

	case "class_declaration", "abstract_class_declaration":
		r.visitClass(n, true)

	case "class":
		r.visitClass(n, false)

	case "interface_declaration":
		r.visitInterface(n)

	case "type_alias_declaration":
		r.visitTypeAlias(n)

	case "enum_declaration":
		r.visitEnum(n)

	case "statement_block":
		r.scoped(KindBlock, func() { r.visitChildren(n) })

	case "for_in_statement":
		r.visitForIn(n)

	case "for_statement":
		r.scoped(KindBlock, func() { r.visitChildren(n) })

	case "catch_clause":
		r.visitCatch(n)

	case "index_signature":
		r.visitIndexSignature(n)

	case "conditional_type":
		r.visitConditionalType(n)

	case "infer_type":
		r.visitInfer(n)

	case "type_parameter":
		r.visitTypeParameter(n)

	case "module", "internal_module":
		r.visitModuleDecl(n)

	default:
		r.visitChildren(n)
	}
}

// visitBodyMerged visits a function body without opening a new scope, so
// parameters and body share one scope.
func (r *resolver) visitBodyMerged(body *sitter.Node) {
	if body == nil {
		return
	}
	if body.Type() == "statement_block" {
		r.visitChildren(body)
		return
	}
	r.visit(body)
}

func (r *resolver) visitVariables(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		decl := n.NamedChild(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		r.bindPattern(decl.ChildByFieldName("name"))
		r.visit(decl.ChildByFieldName("type"))
		r.visit(decl.ChildByFieldName("value"))
	}
}

// bindPattern introduces value bindings for every leaf identifier of a
// declaration pattern. Default values inside patterns are expressions and
// record references.
func (r *resolver) bindPattern(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		r.bindValue(r.text(n), parser.LineOf(n), BindValue, graph.KindValue)
	case "object_pattern", "array_pattern":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			r.bindPattern(n.NamedChild(i))
		}
	case "pair_pattern":
		if key := n.ChildByFieldName("key"); key != nil && key.Type() == "computed_property_name" {
			r.visit(key)
		}
		r.bindPattern(n.ChildByFieldName("value"))
	case "rest_pattern":
		r.bindPattern(n.NamedChild(0))
	case "assignment_pattern", "object_assignment_pattern":
		r.bindPattern(n.ChildByFieldName("left"))
		r.visit(n.ChildByFieldName("right"))
	default:
		r.visit(n)
	}
}

func (r *resolver) bindParameters(params *sitter.Node) {
	if params == nil {
		return
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "required_parameter", "optional_parameter":
			r.bindPattern(p.ChildByFieldName("pattern"))
			r.visit(p.ChildByFieldName("type"))
			r.visit(p.ChildByFieldName("value"))
		default:
			r.bindPattern(p)
		}
	}
}

func (r *resolver) visitFunctionDecl(n *sitter.Node, kind BindingKind) {
	name := n.ChildByFieldName("name")
	r.bindValue(r.text(name), parser.LineOf(name), kind, graph.KindValue)
	r.scoped(KindBlock, func() {
		r.visit(n.ChildByFieldName("type_parameters"))
		r.bindParameters(n.ChildByFieldName("parameters"))
		r.visit(n.ChildByFieldName("return_type"))
		r.visitBodyMerged(n.ChildByFieldName("body"))
	})
}

func (r *resolver) visitFunctionExpr(n *sitter.Node) {
	r.scoped(KindBlock, func() {
		// A named function expression binds its own name inside itself.
		if name := n.ChildByFieldName("name"); name != nil {
			r.bindValue(r.text(name), parser.LineOf(name), BindFunction, graph.KindValue)
		}
		r.visit(n.ChildByFieldName("type_parameters"))
		r.bindParameters(n.ChildByFieldName("parameters"))
		r.visit(n.ChildByFieldName("return_type"))
		r.visitBodyMerged(n.ChildByFieldName("body"))
	})
}

func (r *resolver) visitArrow(n *sitter.Node) {
	r.scoped(KindBlock, func() {
		if p := n.ChildByFieldName("parameter"); p != nil {
			r.bindPattern(p)
		}
		r.visit(n.ChildByFieldName("type_parameters"))
		r.bindParameters(n.ChildByFieldName("parameters"))
		r.visit(n.ChildByFieldName("return_type"))
		r.visitBodyMerged(n.ChildByFieldName("body"))
	})
}

// visitCallable handles methods, signatures, and function types: one
// scope shared by type parameters, parameters, and body.
func (r *resolver) visitCallable(n *sitter.Node) {
	r.scoped(KindBlock, func() {
		r.visit(n.ChildByFieldName("type_parameters"))
		r.bindParameters(n.ChildByFieldName("parameters"))
		r.visit(n.ChildByFieldName("return_type"))
		r.visit(n.ChildByFieldName("type"))
		r.visitBodyMerged(n.ChildByFieldName("body"))
	})
}

func (r *resolver) visitClass(n *sitter.Node, isDecl bool) {
	name := n.ChildByFieldName("name")
	if isDecl && name != nil {
		// A class is both a value and a type.
		r.bindValue(r.text(name), parser.LineOf(name), BindValue, graph.KindClass)
		r.bindType(r.text(name), parser.LineOf(name), graph.KindClass)
	}
	r.scoped(KindType, func() {
		if !isDecl && name != nil {
			r.bindValue(r.text(name), parser.LineOf(name), BindValue, graph.KindClass)
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if name != nil && c.StartByte() == name.StartByte() && c.Type() == name.Type() {
				continue
			}
			r.visit(c)
		}
	})
}

func (r *resolver) visitInterface(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	r.bindType(r.text(name), parser.LineOf(name), graph.KindType)
	r.scoped(KindType, func() {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if name != nil && c.StartByte() == name.StartByte() && c.Type() == name.Type() {
				continue
			}
			r.visit(c)
		}
	})
}

func (r *resolver) visitTypeAlias(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	r.bindType(r.text(name), parser.LineOf(name), graph.KindType)
	// The right-hand side always gets a scope, even when trivial.
	r.scoped(KindType, func() {
		r.visit(n.ChildByFieldName("type_parameters"))
		r.visit(n.ChildByFieldName("value"))
	})
}

func (r *resolver) visitEnum(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	r.bindValue(r.text(name), parser.LineOf(name), BindValue, graph.KindEnum)
	r.bindType(r.text(name), parser.LineOf(name), graph.KindEnum)
	r.scoped(KindBlock, func() {
		r.visit(n.ChildByFieldName("body"))
	})
}

func (r *resolver) visitForIn(n *sitter.Node) {
	r.scoped(KindBlock, func() {
		left := n.ChildByFieldName("left")
		if n.ChildByFieldName("kind") != nil {
			r.bindPattern(left)
		} else {
			// for (x of xs) assigns to an existing binding.
			r.visit(left)
		}
		r.visit(n.ChildByFieldName("right"))
		r.visit(n.ChildByFieldName("body"))
	})
}

func (r *resolver) visitCatch(n *sitter.Node) {
	r.scoped(KindBlock, func() {
		if p := n.ChildByFieldName("parameter"); p != nil {
			r.bindPattern(p)
		}
		r.visitBodyMerged(n.ChildByFieldName("body"))
	})
}

func (r *resolver) visitIndexSignature(n *sitter.Node) {
	r.scoped(KindType, func() {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			switch c.Type() {
			case "mapped_type_clause":
				// { [K in Keys]: T } binds K in the type namespace.
				clauseName := c.ChildByFieldName("name")
				r.bindType(r.text(clauseName), parser.LineOf(clauseName), graph.KindType)
				for j := 0; j < int(c.NamedChildCount()); j++ {
					cc := c.NamedChild(j)
					if clauseName != nil && cc.StartByte() == clauseName.StartByte() {
						continue
					}
					r.visit(cc)
				}
			case "identifier":
				// { [key: string]: T } binds key in the value namespace.
				r.bindValue(r.text(c), parser.LineOf(c), BindValue, graph.KindValue)
			default:
				r.visit(c)
			}
		}
	})
}

func (r *resolver) visitConditionalType(n *sitter.Node) {
	r.scoped(KindType, func() {
		r.visit(n.ChildByFieldName("left"))
		r.visit(n.ChildByFieldName("right"))
		r.scoped(KindType, func() { r.visit(n.ChildByFieldName("consequence")) })
		r.scoped(KindType, func() { r.visit(n.ChildByFieldName("alternative")) })
	})
}

func (r *resolver) visitInfer(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "type_identifier" {
			r.bindType(r.text(c), parser.LineOf(c), graph.KindType)
			continue
		}
		r.visit(c)
	}
}

func (r *resolver) visitTypeParameter(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil && n.NamedChildCount() > 0 {
		name = n.NamedChild(0)
	}
	r.bindType(r.text(name), parser.LineOf(name), graph.KindType)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if name != nil && c.StartByte() == name.StartByte() && c.Type() == name.Type() {
			continue
		}
		r.visit(c)
	}
}

// visitModuleDecl handles `namespace N {}` and `declare module "..." {}`.
// The body opens one non-root scope; module exports are not registered
// there, but imports still are.
func (r *resolver) visitModuleDecl(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name != nil && name.Type() == "identifier" {
		r.bindValue(r.text(name), parser.LineOf(name), BindValue, graph.KindValue)
	}
	body := n.ChildByFieldName("body")
	r.scoped(KindBlock, func() {
		if body != nil {
			r.visitChildren(body)
		}
	})
}

func (r *resolver) visitImport(n *sitter.Node) {
	if req := firstNamedChild(n, "import_require_clause"); req != nil {
		r.visitImportRequire(req)
		return
	}

	spec := r.stringText(n.ChildByFieldName("source"))
	if spec == "" {
		return
	}
	imp := ModuleImport{Specifier: spec}

	if clause := firstNamedChild(n, "import_clause"); clause != nil {
		for i := 0; i < int(clause.NamedChildCount()); i++ {
			c := clause.NamedChild(i)
			switch c.Type() {
			case "identifier":
				imp.Names = append(imp.Names, ImportedName{
					Name:  graph.ImportName{Kind: graph.ImportDefault},
					Alias: r.text(c),
				})
			case "namespace_import":
				imp.Names = append(imp.Names, ImportedName{
					Name:  graph.ImportName{Kind: graph.ImportWildcard},
					Alias: r.text(firstNamedChild(c, "identifier")),
				})
			case "named_imports":
				for j := 0; j < int(c.NamedChildCount()); j++ {
					sc := c.NamedChild(j)
					if sc.Type() != "import_specifier" {
						continue
					}
					nameNode := sc.ChildByFieldName("name")
					name := r.importedName(nameNode)
					alias := name
					if a := sc.ChildByFieldName("alias"); a != nil {
						alias = r.text(a)
					}
					imp.Names = append(imp.Names, ImportedName{
						Name:  namedOrDefault(name),
						Alias: alias,
					})
				}
			}
		}
	}

	r.imports = append(r.imports, imp)
}

// visitImportRequire handles `import x = require("y")`.
func (r *resolver) visitImportRequire(n *sitter.Node) {
	spec := r.stringText(firstNamedChild(n, "string"))
	if spec == "" {
		return
	}
	r.imports = append(r.imports, ModuleImport{
		Specifier: spec,
		Names: []ImportedName{{
			Name:  graph.ImportName{Kind: graph.ImportDefault},
			Alias: r.text(firstNamedChild(n, "identifier")),
		}},
	})
}

// importedName reads an import specifier's source-side name, which may be
// an identifier or a string literal.
func (r *resolver) importedName(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	if n.Type() == "string" {
		return r.stringText(n)
	}
	return r.text(n)
}

func namedOrDefault(name string) graph.ImportName {
	if name == "default" {
		return graph.ImportName{Kind: graph.ImportDefault}
	}
	return graph.ImportName{Kind: graph.ImportNamed, Name: name}
}

func (r *resolver) visitExport(n *sitter.Node) {
	sourceNode := n.ChildByFieldName("source")
	spec := r.stringText(sourceNode)
	line := parser.LineOf(n)

	if decl := n.ChildByFieldName("declaration"); decl != nil {
		if hasToken(n, "default") {
			r.visitDefaultDecl(n, decl)
			return
		}
		prev := r.export
		r.export = SelfNamed
		r.visit(decl)
		r.export = prev
		return
	}

	if value := n.ChildByFieldName("value"); value != nil {
		// export default <expression>
		if r.current == Root {
			r.exports = append(r.exports, ModuleExport{
				Name: graph.DefaultExport,
				Kind: graph.KindUnknown,
				Line: line,
			})
		}
		if value.Type() == "identifier" {
			r.ambiguousRef(r.text(value))
		} else {
			r.visit(value)
		}
		return
	}

	var reexport ModuleImport
	reexport.Specifier = spec
	wildcard := hasToken(n, "*")

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "export_clause":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				sc := c.NamedChild(j)
				if sc.Type() != "export_specifier" {
					continue
				}
				r.visitExportSpecifier(sc, sourceNode != nil, &reexport)
			}
		case "namespace_export":
			// export * as ns from "./x"
			wildcard = true
			alias := r.text(firstNamedChild(c, "identifier"))
			if alias == "" {
				alias = r.stringText(firstNamedChild(c, "string"))
			}
			if r.current == Root && alias != "" {
				r.exports = append(r.exports, ModuleExport{
					Name: graph.Named(alias),
					Kind: graph.KindUnknown,
					Line: parser.LineOf(c),
				})
			}
		}
	}

	if wildcard {
		reexport.Names = append(reexport.Names, ImportedName{
			Name: graph.ImportName{Kind: graph.ImportWildcard},
		})
	}
	if sourceNode != nil && len(reexport.Names) > 0 {
		r.imports = append(r.imports, reexport)
	}
}

func (r *resolver) visitExportSpecifier(sc *sitter.Node, hasSource bool, reexport *ModuleImport) {
	nameNode := sc.ChildByFieldName("name")
	local := r.importedName(nameNode)
	exported := local
	if a := sc.ChildByFieldName("alias"); a != nil {
		exported = r.importedName(a)
	}

	exportName := graph.Named(exported)
	if exported == "default" {
		exportName = graph.DefaultExport
	}

	if hasSource {
		// Re-export binds nothing locally: record the import and the
		// export without a local name.
		reexport.Names = append(reexport.Names, ImportedName{Name: namedOrDefault(local)})
		if r.current == Root {
			r.exports = append(r.exports, ModuleExport{
				Name: exportName,
				Kind: graph.KindUnknown,
				Line: parser.LineOf(sc),
			})
		}
		return
	}

	// The local name may denote a value or a type; resolution decides.
	r.ambiguousRef(local)
	if r.current == Root {
		r.exports = append(r.exports, ModuleExport{
			Name:      exportName,
			LocalName: local,
			Kind:      graph.KindUnknown,
			Line:      parser.LineOf(sc),
		})
	}
}

func (r *resolver) visitDefaultDecl(n, decl *sitter.Node) {
	name := decl.ChildByFieldName("name")
	if name == nil {
		// Anonymous default declarations export without binding.
		if r.current == Root {
			kind := graph.KindUnknown
			switch decl.Type() {
			case "class_declaration", "abstract_class_declaration", "class":
				kind = graph.KindClass
			case "function_declaration", "generator_function_declaration",
				"function_expression", "function", "function_signature":
				kind = graph.KindValue
			case "interface_declaration":
				kind = graph.KindType
			}
			r.exports = append(r.exports, ModuleExport{
				Name: graph.DefaultExport,
				Kind: kind,
				Line: parser.LineOf(n),
			})
		}
		prev := r.export
		r.export = Private
		r.visit(decl)
		r.export = prev
		return
	}

	prev := r.export
	r.export = SelfDefault
	r.visit(decl)
	r.export = prev
}

func firstNamedChild(n *sitter.Node, nodeType string) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == nodeType {
			return c
		}
	}
	return nil
}

func hasToken(n *sitter.Node, token string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == token {
			return true
		}
	}
	return false
}

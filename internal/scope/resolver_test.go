package scope

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deadwoodlabs/deadwood/internal/graph"
	"github.com/deadwoodlabs/deadwood/pkg/parser"
)

func buildSource(t *testing.T, src string, kind parser.ModuleKind) *FileScope {
	t.Helper()
	p := parser.New()
	defer p.Close()

	res, err := p.Parse([]byte(src), kind, "test."+string(kind))
	require.NoError(t, err)
	defer res.Close()

	fs, err := Build(res)
	require.NoError(t, err)
	return fs
}

func buildTS(t *testing.T, src string) *FileScope {
	return buildSource(t, src, parser.KindTS)
}

// scopeSpec describes one expected scope and its children. Binding and
// reference order does not matter; nesting does.
type scopeSpec struct {
	values   []string
	types    []string
	refs     []string
	typeRefs []string
	ambig    []string
	children []scopeSpec
}

func checkTree(t *testing.T, tree *Tree, want scopeSpec) {
	t.Helper()
	checkScope(t, tree, Root, want, "root")
}

func checkScope(t *testing.T, tree *Tree, id ID, want scopeSpec, label string) {
	t.Helper()
	s := tree.Scope(id)

	assert.ElementsMatch(t, want.values, bindingNames(s.Bindings), "%s: value bindings", label)
	assert.ElementsMatch(t, want.types, bindingNames(s.TypeBindings), "%s: type bindings", label)
	assert.ElementsMatch(t, want.refs, setKeys(s.Refs), "%s: refs", label)
	assert.ElementsMatch(t, want.typeRefs, setKeys(s.TypeRefs), "%s: type refs", label)
	assert.ElementsMatch(t, want.ambig, setKeys(s.AmbiguousRefs), "%s: ambiguous refs", label)

	children := tree.ChildrenOf(id)
	require.Len(t, children, len(want.children), "%s: children", label)
	for i, child := range children {
		checkScope(t, tree, child, want.children[i], fmt.Sprintf("%s.%d", label, i))
	}
}

func bindingNames(bindings []Binding) []string {
	names := make([]string, 0, len(bindings))
	for _, b := range bindings {
		names = append(names, b.Name)
	}
	return names
}

func setKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}

func rootValueBinding(t *testing.T, fs *FileScope, name string) *Binding {
	t.Helper()
	b := fs.Tree.RootScope().valueBinding(name)
	require.NotNil(t, b, "missing root value binding %q", name)
	return b
}

func TestScopeTree(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want scopeSpec
	}{
		{
			name: "bare block",
			src: `const a = 1;
{
  const b = a;
}`,
			want: scopeSpec{
				values: []string{"a"},
				children: []scopeSpec{
					{values: []string{"b"}, refs: []string{"a"}},
				},
			},
		},
		{
			name: "function declaration merges params and body",
			src: `function add(a: number, b: number) {
  const sum = a + b;
  return sum;
}
add();`,
			want: scopeSpec{
				values: []string{"add"},
				refs:   []string{"add"},
				children: []scopeSpec{
					{values: []string{"a", "b", "sum"}, refs: []string{"a", "b", "sum"}},
				},
			},
		},
		{
			name: "named function expression binds inside itself",
			src: `const f = function inner() {
  return inner;
};`,
			want: scopeSpec{
				values: []string{"f"},
				children: []scopeSpec{
					{values: []string{"inner"}, refs: []string{"inner"}},
				},
			},
		},
		{
			name: "arrow function",
			src:  `const double = (n: number) => n * 2;`,
			want: scopeSpec{
				values: []string{"double"},
				children: []scopeSpec{
					{values: []string{"n"}, refs: []string{"n"}},
				},
			},
		},
		{
			name: "arrow function bare parameter",
			src:  `const id = x => x;`,
			want: scopeSpec{
				values: []string{"id"},
				children: []scopeSpec{
					{values: []string{"x"}, refs: []string{"x"}},
				},
			},
		},
		{
			name: "generic function binds type parameter with values",
			src: `function first<T>(items: T[]): T {
  return items[0];
}`,
			want: scopeSpec{
				values: []string{"first"},
				children: []scopeSpec{
					{
						values:   []string{"items"},
						types:    []string{"T"},
						refs:     []string{"items"},
						typeRefs: []string{"T"},
					},
				},
			},
		},
		{
			name: "class binds value and type with method scopes",
			src: `class Point {
  x = 0;
  constructor(x: number) {
    this.x = x;
  }
  scale(factor: number): Point {
    return new Point();
  }
}`,
			want: scopeSpec{
				values: []string{"Point"},
				types:  []string{"Point"},
				children: []scopeSpec{
					{
						children: []scopeSpec{
							{values: []string{"x"}, refs: []string{"x"}},
							{
								values:   []string{"factor"},
								refs:     []string{"Point"},
								typeRefs: []string{"Point"},
							},
						},
					},
				},
			},
		},
		{
			name: "class heritage references in class scope",
			src: `class Base {}
class Circle extends Base {}`,
			want: scopeSpec{
				values: []string{"Base", "Circle"},
				types:  []string{"Base", "Circle"},
				children: []scopeSpec{
					{},
					{refs: []string{"Base"}},
				},
			},
		},
		{
			name: "enum binds both namespaces with initializer scope",
			src: `const start = 1;
enum Direction {
  Up = start,
  Down,
}`,
			want: scopeSpec{
				values: []string{"start", "Direction"},
				types:  []string{"Direction"},
				children: []scopeSpec{
					{refs: []string{"start"}},
				},
			},
		},
		{
			name: "interface body in one type scope",
			src: `interface Container<T> {
  value: T;
  get(key: string): T;
}`,
			want: scopeSpec{
				types: []string{"Container"},
				children: []scopeSpec{
					{
						types:    []string{"T"},
						typeRefs: []string{"T"},
						children: []scopeSpec{
							{values: []string{"key"}, typeRefs: []string{"T"}},
						},
					},
				},
			},
		},
		{
			name: "type alias generics bind on the right-hand side",
			src:  `type Pair<A, B> = { first: A; second: B };`,
			want: scopeSpec{
				types: []string{"Pair"},
				children: []scopeSpec{
					{types: []string{"A", "B"}, typeRefs: []string{"A", "B"}},
				},
			},
		},
		{
			name: "trivial type alias still opens a scope",
			src:  `type Alias = string;`,
			want: scopeSpec{
				types:    []string{"Alias"},
				children: []scopeSpec{{}},
			},
		},
		{
			name: "conditional type with infer and branch scopes",
			src:  `type Unwrap<T> = T extends Promise<infer U> ? U : T;`,
			want: scopeSpec{
				types: []string{"Unwrap"},
				children: []scopeSpec{
					{
						types: []string{"T"},
						children: []scopeSpec{
							{
								types:    []string{"U"},
								typeRefs: []string{"T", "Promise"},
								children: []scopeSpec{
									{typeRefs: []string{"U"}},
									{typeRefs: []string{"T"}},
								},
							},
						},
					},
				},
			},
		},
		{
			name: "mapped type binds key in type namespace",
			src:  `type Flags<K extends string> = { [P in K]: boolean };`,
			want: scopeSpec{
				types: []string{"Flags"},
				children: []scopeSpec{
					{
						types: []string{"K"},
						children: []scopeSpec{
							{types: []string{"P"}, typeRefs: []string{"K"}},
						},
					},
				},
			},
		},
		{
			name: "index signature binds key in value namespace",
			src: `interface Dict {
  [key: string]: number;
}`,
			want: scopeSpec{
				types: []string{"Dict"},
				children: []scopeSpec{
					{
						children: []scopeSpec{
							{values: []string{"key"}},
						},
					},
				},
			},
		},
		{
			name: "overload signatures collapse to one binding",
			src: `export function pick(items: string[]): string;
export function pick(items: number[]): number;
export function pick(items: unknown[]) {
  return items[0];
}`,
			want: scopeSpec{
				values: []string{"pick"},
				children: []scopeSpec{
					{values: []string{"items"}},
					{values: []string{"items"}},
					{values: []string{"items"}, refs: []string{"items"}},
				},
			},
		},
		{
			name: "for-of binds in loop head scope with nested body",
			src: `const items = [1, 2];
for (const item of items) {
  use(item);
}`,
			want: scopeSpec{
				values: []string{"items"},
				children: []scopeSpec{
					{
						values: []string{"item"},
						refs:   []string{"items"},
						children: []scopeSpec{
							{refs: []string{"use", "item"}},
						},
					},
				},
			},
		},
		{
			name: "for loop head scope with nested body",
			src: `for (let i = 0; i < 10; i++) {
  console.log(i);
}`,
			want: scopeSpec{
				children: []scopeSpec{
					{
						values: []string{"i"},
						refs:   []string{"i"},
						children: []scopeSpec{
							{refs: []string{"console", "i"}},
						},
					},
				},
			},
		},
		{
			name: "for-in without declaration references existing binding",
			src: `let key;
for (key in obj) {
}`,
			want: scopeSpec{
				values: []string{"key"},
				children: []scopeSpec{
					{
						refs:     []string{"key", "obj"},
						children: []scopeSpec{{}},
					},
				},
			},
		},
		{
			name: "catch clause binds its parameter with the body",
			src: `try {
  risky();
} catch (err) {
  console.log(err);
}`,
			want: scopeSpec{
				children: []scopeSpec{
					{refs: []string{"risky"}},
					{values: []string{"err"}, refs: []string{"console", "err"}},
				},
			},
		},
		{
			name: "namespace binds its name outside one body scope",
			src: `namespace Geometry {
  export const PI = 3.14;
}`,
			want: scopeSpec{
				values: []string{"Geometry"},
				children: []scopeSpec{
					{values: []string{"PI"}},
				},
			},
		},
		{
			name: "declare module body is its own scope",
			src: `declare module "fs-extra" {
  export function copy(src: string, dest: string): void;
}`,
			want: scopeSpec{
				children: []scopeSpec{
					{
						values: []string{"copy"},
						children: []scopeSpec{
							{values: []string{"src", "dest"}},
						},
					},
				},
			},
		},
		{
			name: "destructuring binds leaves and references defaults",
			src: `const { a, b: renamed, ...rest } = source;
const [first, , second = fallback] = list;`,
			want: scopeSpec{
				values: []string{"a", "renamed", "rest", "first", "second"},
				refs:   []string{"source", "list", "fallback"},
			},
		},
		{
			name: "member expressions reference only the root object",
			src:  `const x = foo.bar.baz;`,
			want: scopeSpec{
				values: []string{"x"},
				refs:   []string{"foo"},
			},
		},
		{
			name: "qualified type names are not tracked",
			src:  `const node: React.Node = base;`,
			want: scopeSpec{
				values: []string{"node"},
				refs:   []string{"base"},
			},
		},
		{
			name: "typeof queries reference the value namespace",
			src: `const config = { a: 1 };
type Config = typeof config;`,
			want: scopeSpec{
				values: []string{"config"},
				types:  []string{"Config"},
				children: []scopeSpec{
					{refs: []string{"config"}},
				},
			},
		},
		{
			name: "same name in value and type namespaces is legal",
			src: `interface Thing {}
function Thing() {}`,
			want: scopeSpec{
				values: []string{"Thing"},
				types:  []string{"Thing"},
				children: []scopeSpec{
					{},
					{},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := buildTS(t, tt.src)
			checkTree(t, fs.Tree, tt.want)
		})
	}
}

func TestOverloadBindingState(t *testing.T) {
	fs := buildTS(t, `export function pick(items: string[]): string;
export function pick(items: unknown[]) {
  return items[0];
}`)

	b := rootValueBinding(t, fs, "pick")
	assert.Equal(t, BindFunction, b.Kind)
	assert.Equal(t, SelfNamed, b.Export)
	assert.Equal(t, 1, b.Line)
}

func TestIllegalRedeclaration(t *testing.T) {
	p := parser.New()
	defer p.Close()

	res, err := p.Parse([]byte("function dup() {}\nconst dup = 1;\n"), parser.KindTS, "dup.ts")
	require.NoError(t, err)
	defer res.Close()

	_, err = Build(res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `illegal redeclaration of "dup"`)
	assert.Contains(t, err.Error(), "dup.ts:2")
}

func TestInterfaceMergingIsLegal(t *testing.T) {
	fs := buildTS(t, `interface Options { a: string }
export interface Options { b: string }`)

	root := fs.Tree.RootScope()
	require.Len(t, root.TypeBindings, 1)
	// The merged declaration carries the export of any merged part.
	assert.Equal(t, SelfNamed, root.TypeBindings[0].Export)
}

func TestTSXParsesComponents(t *testing.T) {
	fs := buildSource(t, `export function App() {
  return <div className="app">{content}</div>;
}`, parser.KindTSX)

	b := rootValueBinding(t, fs, "App")
	assert.Equal(t, SelfNamed, b.Export)
}

func TestExportForms(t *testing.T) {
	t.Run("export declaration stamps the binding", func(t *testing.T) {
		fs := buildTS(t, `export const a = 1;`)
		assert.Empty(t, fs.Exports)
		assert.Equal(t, SelfNamed, rootValueBinding(t, fs, "a").Export)
	})

	t.Run("export default named function stamps the binding", func(t *testing.T) {
		fs := buildTS(t, `export default function main() {}`)
		assert.Empty(t, fs.Exports)
		assert.Equal(t, SelfDefault, rootValueBinding(t, fs, "main").Export)
	})

	t.Run("export default expression records a default export", func(t *testing.T) {
		fs := buildTS(t, `export default 42;`)
		require.Len(t, fs.Exports, 1)
		assert.Equal(t, graph.DefaultExport, fs.Exports[0].Name)
		assert.Equal(t, graph.KindUnknown, fs.Exports[0].Kind)
		assert.Empty(t, fs.Exports[0].LocalName)
	})

	t.Run("export default identifier references it ambiguously", func(t *testing.T) {
		fs := buildTS(t, `const config = 1;
export default config;`)
		require.Len(t, fs.Exports, 1)
		assert.Equal(t, graph.DefaultExport, fs.Exports[0].Name)
		assert.Contains(t, fs.Tree.RootScope().AmbiguousRefs, "config")
	})

	t.Run("export clause records local names", func(t *testing.T) {
		fs := buildTS(t, `const a = 1;
const b = 2;
export { a, b as c };`)
		require.Len(t, fs.Exports, 2)
		assert.Equal(t, graph.Named("a"), fs.Exports[0].Name)
		assert.Equal(t, "a", fs.Exports[0].LocalName)
		assert.Equal(t, graph.Named("c"), fs.Exports[1].Name)
		assert.Equal(t, "b", fs.Exports[1].LocalName)
		assert.ElementsMatch(t, []string{"a", "b"}, setKeys(fs.Tree.RootScope().AmbiguousRefs))
	})

	t.Run("export clause default alias", func(t *testing.T) {
		fs := buildTS(t, `const a = 1;
export { a as default };`)
		require.Len(t, fs.Exports, 1)
		assert.Equal(t, graph.DefaultExport, fs.Exports[0].Name)
		assert.Equal(t, "a", fs.Exports[0].LocalName)
	})

	t.Run("re-export binds nothing locally", func(t *testing.T) {
		fs := buildTS(t, `export { x, y as z } from "./other";`)

		require.Len(t, fs.Exports, 2)
		assert.Equal(t, graph.Named("x"), fs.Exports[0].Name)
		assert.Empty(t, fs.Exports[0].LocalName)
		assert.Equal(t, graph.Named("z"), fs.Exports[1].Name)
		assert.Empty(t, fs.Exports[1].LocalName)

		require.Len(t, fs.Imports, 1)
		assert.Equal(t, "./other", fs.Imports[0].Specifier)
		assert.Equal(t, []ImportedName{
			{Name: graph.ImportName{Kind: graph.ImportNamed, Name: "x"}},
			{Name: graph.ImportName{Kind: graph.ImportNamed, Name: "y"}},
		}, fs.Imports[0].Names)

		assert.Empty(t, setKeys(fs.Tree.RootScope().AmbiguousRefs))
	})

	t.Run("export star imports the wildcard", func(t *testing.T) {
		fs := buildTS(t, `export * from "./other";`)
		assert.Empty(t, fs.Exports)
		require.Len(t, fs.Imports, 1)
		assert.Equal(t, []ImportedName{
			{Name: graph.ImportName{Kind: graph.ImportWildcard}},
		}, fs.Imports[0].Names)
	})

	t.Run("export star as namespace", func(t *testing.T) {
		fs := buildTS(t, `export * as ns from "./other";`)
		require.Len(t, fs.Exports, 1)
		assert.Equal(t, graph.Named("ns"), fs.Exports[0].Name)
		require.Len(t, fs.Imports, 1)
		assert.Equal(t, []ImportedName{
			{Name: graph.ImportName{Kind: graph.ImportWildcard}},
		}, fs.Imports[0].Names)
	})

	t.Run("exports inside declare module are not module exports", func(t *testing.T) {
		fs := buildTS(t, `declare module "ambient" {
  export const hidden: number;
}`)
		assert.Empty(t, fs.Exports)
	})
}

func TestImportForms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []ModuleImport
	}{
		{
			name: "default import",
			src:  `import def from "./a";`,
			want: []ModuleImport{{
				Specifier: "./a",
				Names: []ImportedName{
					{Name: graph.ImportName{Kind: graph.ImportDefault}, Alias: "def"},
				},
			}},
		},
		{
			name: "named imports with rename",
			src:  `import { x, y as z } from "./a";`,
			want: []ModuleImport{{
				Specifier: "./a",
				Names: []ImportedName{
					{Name: graph.ImportName{Kind: graph.ImportNamed, Name: "x"}, Alias: "x"},
					{Name: graph.ImportName{Kind: graph.ImportNamed, Name: "y"}, Alias: "z"},
				},
			}},
		},
		{
			name: "namespace import",
			src:  `import * as ns from "./a";`,
			want: []ModuleImport{{
				Specifier: "./a",
				Names: []ImportedName{
					{Name: graph.ImportName{Kind: graph.ImportWildcard}, Alias: "ns"},
				},
			}},
		},
		{
			name: "default plus named",
			src:  `import def, { x } from "./a";`,
			want: []ModuleImport{{
				Specifier: "./a",
				Names: []ImportedName{
					{Name: graph.ImportName{Kind: graph.ImportDefault}, Alias: "def"},
					{Name: graph.ImportName{Kind: graph.ImportNamed, Name: "x"}, Alias: "x"},
				},
			}},
		},
		{
			name: "default through the named clause",
			src:  `import { default as d } from "./a";`,
			want: []ModuleImport{{
				Specifier: "./a",
				Names: []ImportedName{
					{Name: graph.ImportName{Kind: graph.ImportDefault}, Alias: "d"},
				},
			}},
		},
		{
			name: "side-effect import",
			src:  `import "./styles.css";`,
			want: []ModuleImport{{Specifier: "./styles.css"}},
		},
		{
			name: "import require form",
			src:  `import fs = require("fs");`,
			want: []ModuleImport{{
				Specifier: "fs",
				Names: []ImportedName{
					{Name: graph.ImportName{Kind: graph.ImportDefault}, Alias: "fs"},
				},
			}},
		},
		{
			name: "multiple statements keep order",
			src: `import a from "./a";
import { b } from "./b";`,
			want: []ModuleImport{
				{
					Specifier: "./a",
					Names: []ImportedName{
						{Name: graph.ImportName{Kind: graph.ImportDefault}, Alias: "a"},
					},
				},
				{
					Specifier: "./b",
					Names: []ImportedName{
						{Name: graph.ImportName{Kind: graph.ImportNamed, Name: "b"}, Alias: "b"},
					},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := buildTS(t, tt.src)
			assert.Equal(t, tt.want, fs.Imports)
		})
	}
}

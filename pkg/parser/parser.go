package parser

import (
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ModuleKind classifies a source file by its suffix.
type ModuleKind string

const (
	KindTS      ModuleKind = "ts"
	KindTSX     ModuleKind = "tsx"
	KindDTS     ModuleKind = "dts"
	KindUnknown ModuleKind = "unknown"
)

// DetectModuleKind determines the module kind from a file path.
// Longer suffixes win, so foo.d.ts is a declaration file, not a TS file.
func DetectModuleKind(path string) ModuleKind {
	switch {
	case strings.HasSuffix(path, ".d.ts"):
		return KindDTS
	case strings.HasSuffix(path, ".ts"):
		return KindTS
	case strings.HasSuffix(path, ".tsx"):
		return KindTSX
	default:
		return KindUnknown
	}
}

// Parser wraps tree-sitter for TypeScript and TSX parsing.
type Parser struct {
	parser *sitter.Parser
}

// ParseResult contains the parsed AST and metadata.
type ParseResult struct {
	Tree   *sitter.Tree
	Kind   ModuleKind
	Source []byte
	Path   string
}

// New creates a new parser instance.
func New() *Parser {
	return &Parser{
		parser: sitter.NewParser(),
	}
}

// ParseFile parses a source file and returns the AST.
func (p *Parser) ParseFile(path string) (*ParseResult, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	kind := DetectModuleKind(path)
	if kind == KindUnknown {
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}

	return p.Parse(source, kind, path)
}

// Parse parses source code with a specified module kind.
func (p *Parser) Parse(source []byte, kind ModuleKind, path string) (*ParseResult, error) {
	p.parser.SetLanguage(grammarFor(kind))
	tree, err := p.parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	if tree.RootNode() == nil {
		return nil, fmt.Errorf("failed to parse %s: no syntax tree produced", path)
	}

	return &ParseResult{
		Tree:   tree,
		Kind:   kind,
		Source: source,
		Path:   path,
	}, nil
}

// grammarFor selects the tree-sitter grammar for a module kind.
// Declaration files use the plain TypeScript grammar.
func grammarFor(kind ModuleKind) *sitter.Language {
	if kind == KindTSX {
		return tsx.GetLanguage()
	}
	return typescript.GetLanguage()
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// Close releases the parse tree.
func (r *ParseResult) Close() {
	if r.Tree != nil {
		r.Tree.Close()
	}
}

// NodeVisitor is a function that visits AST nodes.
type NodeVisitor func(node *sitter.Node, source []byte) bool

// Walk traverses the AST calling visitor for each node.
func Walk(node *sitter.Node, source []byte, visitor NodeVisitor) {
	if node == nil {
		return
	}

	if !visitor(node, source) {
		return
	}

	for i := range int(node.ChildCount()) {
		Walk(node.Child(i), source, visitor)
	}
}

// GetNodeText extracts the source text for a node.
// Returns empty string if node is nil or byte offsets are out of bounds.
func GetNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}

// LineOf returns the 1-based line of a node's start position.
func LineOf(node *sitter.Node) int {
	if node == nil {
		return 0
	}
	return int(node.StartPoint().Row) + 1
}

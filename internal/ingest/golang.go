package ingest

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"time"

	"github.com/fzipp/gocyclo"

	"github.com/synapsegraph/synapse-go/internal/graph"
)

// analyzeGoFile parses a Go source file and appends its symbol nodes and
// relationships to the graph. The file node itself must already exist.
func analyzeGoFile(g *graph.KnowledgeGraph, entry FileEntry, fileNode *graph.KnowledgeNode) {
	fset := token.NewFileSet()
	astFile, err := parser.ParseFile(fset, entry.RelPath, entry.Content, parser.ParseComments)
	if err != nil {
		fileNode.Errors = append(fileNode.Errors, graph.NodeError{
			Type:     "parse",
			Severity: "error",
			Message:  err.Error(),
		})
		return
	}

	// Imports go into file metadata; edges to other files resolve later.
	for _, imp := range astFile.Imports {
		fileNode.Metadata.Imports = append(fileNode.Metadata.Imports, strings.Trim(imp.Path.Value, `"`))
	}
	if astFile.Doc != nil {
		fileNode.Metadata.Documentation = strings.TrimSpace(astFile.Doc.Text())
		fileNode.Semantics.Purpose = firstSentence(fileNode.Metadata.Documentation)
	}

	symbols := make(map[string]*graph.KnowledgeNode)
	var funcDecls []*ast.FuncDecl

	for _, decl := range astFile.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			node := goFuncNode(g, entry, fset, d)
			symbols[d.Name.Name] = node
			funcDecls = append(funcDecls, d)
			linkDefines(g, fileNode, node)

		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				node := goTypeNode(entry, fset, d, ts)
				g.AddNode(node)
				symbols[ts.Name.Name] = node
				linkDefines(g, fileNode, node)
			}
		}
	}

	// Calls resolve against symbols declared in the same file.
	for _, d := range funcDecls {
		caller := symbols[d.Name.Name]
		if caller == nil || d.Body == nil {
			continue
		}
		counts := make(map[string]int)
		ast.Inspect(d.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			if ident, ok := call.Fun.(*ast.Ident); ok {
				counts[ident.Name]++
			}
			return true
		})
		for name, count := range counts {
			callee, ok := symbols[name]
			if !ok || callee.ID == caller.ID {
				continue
			}
			g.AddRelationship(&graph.Relationship{
				ID:     graph.GenerateRelID(graph.RelCalls, caller.ID, callee.ID),
				From:   caller.ID,
				To:     callee.ID,
				Type:   graph.RelCalls,
				Weight: float64(count),
			})
		}
	}

	// Exports and operations roll up onto the file node.
	for name, node := range symbols {
		if ast.IsExported(name) {
			fileNode.Metadata.Exports = append(fileNode.Metadata.Exports, name)
		}
		fileNode.Semantics.Operations = append(fileNode.Semantics.Operations, node.Semantics.Operations...)
	}
}

// goFuncNode builds a function or method node from a declaration.
func goFuncNode(g *graph.KnowledgeGraph, entry FileEntry, fset *token.FileSet, d *ast.FuncDecl) *graph.KnowledgeNode {
	nodeType := graph.NodeFunction
	if d.Recv != nil {
		nodeType = graph.NodeMethod
	}

	start := fset.Position(d.Pos())
	end := fset.Position(d.End())
	complexity := gocyclo.Complexity(d)
	loc := end.Line - start.Line + 1

	node := &graph.KnowledgeNode{
		ID:           graph.GenerateNodeID(nodeType, entry.RelPath, d.Name.Name),
		Type:         nodeType,
		Name:         d.Name.Name,
		Path:         entry.RelPath,
		AbsolutePath: entry.AbsPath,
		Size:         int64(end.Offset - start.Offset),
		LastModified: time.Unix(entry.ModTime, 0).UTC(),
		Metadata: graph.NodeMetadata{
			Language:        "go",
			LinesOfCode:     loc,
			Complexity:      complexity,
			Maintainability: maintainabilityIndex(loc, complexity),
		},
	}

	inputs, outputs := 0, 0
	if d.Type.Params != nil {
		inputs = d.Type.Params.NumFields()
	}
	if d.Type.Results != nil {
		outputs = d.Type.Results.NumFields()
	}
	node.Semantics.Operations = []graph.Operation{{Name: d.Name.Name, Inputs: inputs, Outputs: outputs}}

	if d.Doc != nil {
		node.Metadata.Documentation = strings.TrimSpace(d.Doc.Text())
		node.Semantics.Purpose = firstSentence(node.Metadata.Documentation)
	}
	if ast.IsExported(d.Name.Name) {
		node.Tags = append(node.Tags, "exported")
	}
	if strings.HasPrefix(d.Name.Name, "New") && d.Type.Results != nil && d.Type.Results.NumFields() > 0 {
		node.Semantics.Patterns = append(node.Semantics.Patterns, graph.Pattern{Name: "factory", Confidence: 0.8})
	}

	g.AddNode(node)
	return node
}

// goTypeNode builds a class or interface node from a type spec.
func goTypeNode(entry FileEntry, fset *token.FileSet, d *ast.GenDecl, ts *ast.TypeSpec) *graph.KnowledgeNode {
	nodeType := graph.NodeClass
	if _, ok := ts.Type.(*ast.InterfaceType); ok {
		nodeType = graph.NodeInterface
	}

	start := fset.Position(ts.Pos())
	end := fset.Position(ts.End())

	node := &graph.KnowledgeNode{
		ID:           graph.GenerateNodeID(nodeType, entry.RelPath, ts.Name.Name),
		Type:         nodeType,
		Name:         ts.Name.Name,
		Path:         entry.RelPath,
		AbsolutePath: entry.AbsPath,
		Size:         int64(end.Offset - start.Offset),
		LastModified: time.Unix(entry.ModTime, 0).UTC(),
		Metadata: graph.NodeMetadata{
			Language:    "go",
			LinesOfCode: end.Line - start.Line + 1,
		},
	}

	doc := ts.Doc
	if doc == nil {
		doc = d.Doc
	}
	if doc != nil {
		node.Metadata.Documentation = strings.TrimSpace(doc.Text())
		node.Semantics.Purpose = firstSentence(node.Metadata.Documentation)
	}
	if ast.IsExported(ts.Name.Name) {
		node.Tags = append(node.Tags, "exported")
	}
	return node
}

// linkDefines connects a file node to a symbol it declares.
func linkDefines(g *graph.KnowledgeGraph, fileNode, symbol *graph.KnowledgeNode) {
	g.AddRelationship(&graph.Relationship{
		ID:     graph.GenerateRelID(graph.RelDefines, fileNode.ID, symbol.ID),
		From:   fileNode.ID,
		To:     symbol.ID,
		Type:   graph.RelDefines,
		Weight: 1,
	})
}

// maintainabilityIndex is a coarse 0–100 score penalizing size and
// complexity.
func maintainabilityIndex(loc, complexity int) float64 {
	score := 100.0 - float64(loc)/10 - float64(complexity)*2
	if score < 0 {
		return 0
	}
	return score
}

// firstSentence returns the text up to and including the first period, or
// the whole text when none is found.
func firstSentence(text string) string {
	if i := strings.IndexByte(text, '.'); i >= 0 {
		return text[:i+1]
	}
	return text
}

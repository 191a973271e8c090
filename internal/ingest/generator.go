package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/synapsegraph/synapse-go/internal/graph"
)

// GraphIDForPath derives a stable graph ID from a project path: the base
// name plus a short hash of the full path, so projects with the same name
// in different locations stay distinct.
func GraphIDForPath(projectPath string) string {
	sum := sha256.Sum256([]byte(projectPath))
	return filepath.Base(projectPath) + "-" + hex.EncodeToString(sum[:4])
}

// Generate walks a project and builds its knowledge graph: one module node
// per directory, one file node per supported source file, symbol nodes and
// relationships for Go sources, plus aggregate statistics.
//
// The returned graph starts at version 1; callers doing incremental updates
// carry the prior version forward with SetVersion-style flows through
// BumpVersion before persisting.
func Generate(ctx context.Context, projectPath string) (*graph.KnowledgeGraph, error) {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, fmt.Errorf("resolving project path: %w", err)
	}

	entries, err := WalkProject(absPath)
	if err != nil {
		return nil, fmt.Errorf("walking project: %w", err)
	}

	g := graph.NewKnowledgeGraph(GraphIDForPath(absPath), absPath)
	modules := make(map[string]*graph.KnowledgeNode)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fileNode := &graph.KnowledgeNode{
			ID:           graph.GenerateNodeID(graph.NodeFile, entry.RelPath, ""),
			Type:         graph.NodeFile,
			Name:         filepath.Base(entry.RelPath),
			Path:         entry.RelPath,
			AbsolutePath: entry.AbsPath,
			Size:         entry.Size,
			LastModified: time.Unix(entry.ModTime, 0).UTC(),
			Metadata: graph.NodeMetadata{
				Language:    entry.Language,
				LinesOfCode: countLines(entry.Content),
			},
		}
		if isTestFile(entry.RelPath) {
			fileNode.Tags = append(fileNode.Tags, "test")
		}
		g.AddNode(fileNode)

		moduleNode := ensureModule(g, modules, filepath.Dir(entry.RelPath))
		g.AddRelationship(&graph.Relationship{
			ID:     graph.GenerateRelID(graph.RelContains, moduleNode.ID, fileNode.ID),
			From:   moduleNode.ID,
			To:     fileNode.ID,
			Type:   graph.RelContains,
			Weight: 1,
		})

		if entry.Language == "go" {
			analyzeGoFile(g, entry, fileNode)
		}
	}

	linkImports(g)
	g.ComputeStatistics()

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("generated graph invalid: %w", err)
	}
	return g, nil
}

// ensureModule returns the module node for a directory, creating it and its
// parent chain on first sight.
func ensureModule(g *graph.KnowledgeGraph, modules map[string]*graph.KnowledgeNode, dir string) *graph.KnowledgeNode {
	dir = filepath.ToSlash(dir)
	if dir == "" {
		dir = "."
	}
	if node, ok := modules[dir]; ok {
		return node
	}

	name := filepath.Base(dir)
	if dir == "." {
		name = "root"
	}
	node := &graph.KnowledgeNode{
		ID:   graph.GenerateNodeID(graph.NodeModule, dir, ""),
		Type: graph.NodeModule,
		Name: name,
		Path: dir,
	}
	g.AddNode(node)
	modules[dir] = node

	if dir != "." {
		parent := ensureModule(g, modules, filepath.Dir(dir))
		g.AddRelationship(&graph.Relationship{
			ID:     graph.GenerateRelID(graph.RelContains, parent.ID, node.ID),
			From:   parent.ID,
			To:     node.ID,
			Type:   graph.RelContains,
			Weight: 1,
		})
	}
	return node
}

// linkImports adds imports relationships from files to the module nodes
// whose directory matches a recorded import path suffix.
func linkImports(g *graph.KnowledgeGraph) {
	moduleByDir := make(map[string]*graph.KnowledgeNode)
	for _, node := range g.Nodes() {
		if node.Type == graph.NodeModule {
			moduleByDir[node.Path] = node
		}
	}

	for _, node := range g.Nodes() {
		if node.Type != graph.NodeFile {
			continue
		}
		for _, imp := range node.Metadata.Imports {
			target, ok := moduleByDir[imp]
			if !ok {
				// Imports of external packages resolve by trailing path
				// segments against local module directories.
				for dir, module := range moduleByDir {
					if dir != "." && hasPathSuffix(imp, dir) {
						target, ok = module, true
						break
					}
				}
			}
			if !ok || target == nil {
				continue
			}
			g.AddRelationship(&graph.Relationship{
				ID:     graph.GenerateRelID(graph.RelImports, node.ID, target.ID),
				From:   node.ID,
				To:     target.ID,
				Type:   graph.RelImports,
				Weight: 1,
			})
		}
	}
}

func hasPathSuffix(importPath, dir string) bool {
	return importPath == dir ||
		(len(importPath) > len(dir) && importPath[len(importPath)-len(dir)-1] == '/' &&
			importPath[len(importPath)-len(dir):] == dir)
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte{'\n'})
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

func isTestFile(path string) bool {
	base := filepath.Base(path)
	return len(base) > 8 && base[len(base)-8:] == "_test.go"
}

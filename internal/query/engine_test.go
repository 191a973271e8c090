package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synapsegraph/synapse-go/internal/graph"
	"github.com/synapsegraph/synapse-go/internal/store"
)

// newTestEngine stores the graph in a fresh in-memory backend and returns an
// engine over it.
func newTestEngine(t *testing.T, graphs ...*graph.KnowledgeGraph) *Engine {
	t.Helper()

	st := store.NewMemoryStore()
	require.NoError(t, st.Initialize(""))
	t.Cleanup(func() { _ = st.Close() })

	for _, g := range graphs {
		require.NoError(t, st.StoreGraph(context.Background(), g))
	}
	return NewEngine(st)
}

// codebaseGraph builds the shared query fixture: two files, two functions,
// and a class across two languages.
func codebaseGraph() *graph.KnowledgeGraph {
	g := graph.NewKnowledgeGraph("codebase", "/tmp/codebase")

	g.AddNode(&graph.KnowledgeNode{
		ID: "file:main.go", Type: graph.NodeFile, Name: "main.go", Path: "main.go",
		Size: 100,
		Metadata: graph.NodeMetadata{
			Language:    "go",
			LinesOfCode: 50,
		},
		Semantics: graph.Semantics{Purpose: "Program entry file."},
	})
	g.AddNode(&graph.KnowledgeNode{
		ID: "file:util.py", Type: graph.NodeFile, Name: "util.py", Path: "util.py",
		Size: 200,
		Metadata: graph.NodeMetadata{
			Language:    "python",
			LinesOfCode: 80,
		},
	})
	g.AddNode(&graph.KnowledgeNode{
		ID: "function:main.go:main", Type: graph.NodeFunction, Name: "main", Path: "main.go",
		Size: 40,
		Metadata: graph.NodeMetadata{
			Language:   "go",
			Complexity: 5,
		},
		Semantics: graph.Semantics{Purpose: "Program entry point."},
		Tags:      []string{"entrypoint"},
	})
	g.AddNode(&graph.KnowledgeNode{
		ID: "function:main.go:helper", Type: graph.NodeFunction, Name: "helper", Path: "main.go",
		Size: 20,
		Metadata: graph.NodeMetadata{
			Language:   "go",
			Complexity: 2,
		},
	})
	g.AddNode(&graph.KnowledgeNode{
		ID: "class:util.py:Parser", Type: graph.NodeClass, Name: "Parser", Path: "util.py",
		Size: 60,
		Metadata: graph.NodeMetadata{
			Language: "python",
		},
		Semantics: graph.Semantics{Purpose: "Parses input data."},
		Tags:      []string{"exported"},
	})

	g.AddRelationship(&graph.Relationship{
		ID: "defines:file:main.go->function:main.go:main", From: "file:main.go",
		To: "function:main.go:main", Type: graph.RelDefines, Weight: 1,
	})
	g.AddRelationship(&graph.Relationship{
		ID: "defines:file:main.go->function:main.go:helper", From: "file:main.go",
		To: "function:main.go:helper", Type: graph.RelDefines, Weight: 1,
	})
	g.AddRelationship(&graph.Relationship{
		ID: "calls:function:main.go:main->function:main.go:helper", From: "function:main.go:main",
		To: "function:main.go:helper", Type: graph.RelCalls, Weight: 2,
	})
	g.AddRelationship(&graph.Relationship{
		ID: "imports:file:main.go->file:util.py", From: "file:main.go",
		To: "file:util.py", Type: graph.RelImports, Weight: 1,
	})

	return g
}

// nodeIDs projects a node slice to its IDs.
func nodeIDs(nodes []*graph.KnowledgeNode) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

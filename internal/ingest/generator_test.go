package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapsegraph/synapse-go/internal/graph"
)

const mainSource = `// Package main is the demo entry point.
package main

import (
	"fmt"

	"example.com/demo/sub"
)

func main() {
	helper()
	helper()
	fmt.Println(sub.NewParser())
}

func helper() {}
`

const parserSource = `package sub

// Parser reads records.
type Parser struct{}

// NewParser builds a Parser.
func NewParser() *Parser { return &Parser{} }
`

func generateDemo(t *testing.T) *graph.KnowledgeGraph {
	t.Helper()

	root := t.TempDir()
	writeFile(t, root, "main.go", mainSource)
	writeFile(t, root, "sub/parser.go", parserSource)
	writeFile(t, root, "sub/parser_test.go", "package sub\n")

	g, err := Generate(context.Background(), root)
	require.NoError(t, err)
	return g
}

func TestGraphIDForPath(t *testing.T) {
	t.Parallel()

	a := GraphIDForPath("/home/dev/demo")
	assert.Equal(t, a, GraphIDForPath("/home/dev/demo"))
	assert.True(t, strings.HasPrefix(a, "demo-"))

	// Same base name, different location: IDs stay distinct.
	b := GraphIDForPath("/srv/demo")
	assert.NotEqual(t, a, b)
}

func TestGenerate(t *testing.T) {
	t.Parallel()
	g := generateDemo(t)

	t.Run("IdentityAndValidity", func(t *testing.T) {
		abs, _ := filepath.Abs(g.ProjectPath())
		assert.Equal(t, GraphIDForPath(abs), g.ID())
		assert.NoError(t, g.Validate())
		assert.Equal(t, int64(1), g.Version())
	})

	t.Run("FileNodes", func(t *testing.T) {
		file := g.GetNode("file:main.go")
		require.NotNil(t, file)
		assert.Equal(t, "go", file.Metadata.Language)
		assert.Greater(t, file.Metadata.LinesOfCode, 0)
		assert.Greater(t, file.Size, int64(0))
		assert.False(t, file.LastModified.IsZero())
		assert.Equal(t, "Package main is the demo entry point.", file.Semantics.Purpose)

		testFile := g.GetNode("file:sub/parser_test.go")
		require.NotNil(t, testFile)
		assert.Contains(t, testFile.Tags, "test")
	})

	t.Run("ModuleHierarchy", func(t *testing.T) {
		rootModule := g.GetNode("module:.")
		require.NotNil(t, rootModule)
		assert.Equal(t, "root", rootModule.Name)

		subModule := g.GetNode("module:sub")
		require.NotNil(t, subModule)

		assert.NotNil(t, g.GetRelationship("contains:module:.->module:sub"))
		assert.NotNil(t, g.GetRelationship("contains:module:.->file:main.go"))
		assert.NotNil(t, g.GetRelationship("contains:module:sub->file:sub/parser.go"))
	})

	t.Run("GoSymbols", func(t *testing.T) {
		mainFn := g.GetNode("function:main.go:main")
		require.NotNil(t, mainFn)
		assert.Greater(t, mainFn.Metadata.Complexity, 0)
		assert.NotContains(t, mainFn.Tags, "exported")

		parser := g.GetNode("class:sub/parser.go:Parser")
		require.NotNil(t, parser)
		assert.Contains(t, parser.Tags, "exported")
		assert.Equal(t, "Parser reads records.", parser.Semantics.Purpose)

		assert.NotNil(t, g.GetRelationship("defines:file:main.go->function:main.go:main"))
		assert.NotNil(t, g.GetRelationship("defines:file:sub/parser.go->class:sub/parser.go:Parser"))
	})

	t.Run("CallCountsBecomeWeights", func(t *testing.T) {
		call := g.GetRelationship("calls:function:main.go:main->function:main.go:helper")
		require.NotNil(t, call)
		assert.InDelta(t, 2.0, call.Weight, 1e-9)
	})

	t.Run("FactoryPattern", func(t *testing.T) {
		factory := g.GetNode("function:sub/parser.go:NewParser")
		require.NotNil(t, factory)
		require.Len(t, factory.Semantics.Patterns, 1)
		assert.Equal(t, "factory", factory.Semantics.Patterns[0].Name)
	})

	t.Run("ExportsRollUp", func(t *testing.T) {
		file := g.GetNode("file:sub/parser.go")
		require.NotNil(t, file)
		assert.ElementsMatch(t, []string{"Parser", "NewParser"}, file.Metadata.Exports)
	})

	t.Run("ImportEdgesResolveBySuffix", func(t *testing.T) {
		// example.com/demo/sub resolves to the local sub module; fmt has no
		// local match and produces no edge.
		assert.NotNil(t, g.GetRelationship("imports:file:main.go->module:sub"))
		file := g.GetNode("file:main.go")
		require.NotNil(t, file)
		assert.Contains(t, file.Metadata.Imports, "fmt")
	})

	t.Run("StatisticsComputed", func(t *testing.T) {
		stats := g.Statistics()
		require.NotNil(t, stats)
		assert.Greater(t, stats.AverageConnectivity, 0.0)
		assert.GreaterOrEqual(t, stats.DependencyCounts[graph.RelContains], 3)
	})
}

func TestGenerate_ParseErrorRecordedOnFileNode(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "broken.go", "package broken\nfunc {\n")

	g, err := Generate(context.Background(), root)
	require.NoError(t, err)

	file := g.GetNode("file:broken.go")
	require.NotNil(t, file)
	require.NotEmpty(t, file.Errors)
	assert.Equal(t, "parse", file.Errors[0].Type)
}

func TestGenerate_CancelledContext(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Generate(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCountLines(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, countLines(nil))
	assert.Equal(t, 1, countLines([]byte("no newline")))
	assert.Equal(t, 2, countLines([]byte("a\nb\n")))
	assert.Equal(t, 3, countLines([]byte("a\nb\nc")))
}

func TestMaintainabilityIndex(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 100.0, maintainabilityIndex(0, 0), 1e-9)
	assert.InDelta(t, 97.0, maintainabilityIndex(10, 1), 1e-9)
	assert.Zero(t, maintainabilityIndex(2000, 50))
}

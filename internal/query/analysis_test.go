package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapsegraph/synapse-go/internal/graph"
)

// cycleGraph has a three-node directed cycle, a feeder node, and a
// self-looping node.
func cycleGraph() *graph.KnowledgeGraph {
	g := graph.NewKnowledgeGraph("cycles", "/tmp/cycles")
	for _, id := range []string{"a", "b", "c", "d", "s"} {
		g.AddNode(fileNode(id))
	}
	g.AddRelationship(&graph.Relationship{ID: "ab", From: "a", To: "b", Type: graph.RelCalls, Weight: 1})
	g.AddRelationship(&graph.Relationship{ID: "bc", From: "b", To: "c", Type: graph.RelCalls, Weight: 1})
	g.AddRelationship(&graph.Relationship{ID: "ca", From: "c", To: "a", Type: graph.RelCalls, Weight: 1})
	g.AddRelationship(&graph.Relationship{ID: "da", From: "d", To: "a", Type: graph.RelImports, Weight: 1})
	g.AddRelationship(&graph.Relationship{ID: "ss", From: "s", To: "s", Type: graph.RelReferences, Weight: 1})
	return g
}

func TestAnalyze(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, cycleGraph())

	analysis, err := e.Analyze(context.Background(), "cycles")
	require.NoError(t, err)

	t.Run("DegreeCentrality", func(t *testing.T) {
		assert.Equal(t, map[string]int{
			"a": 3, "b": 2, "c": 2, "d": 1, "s": 1,
		}, analysis.DegreeCentrality)
	})

	t.Run("DegreeDistribution", func(t *testing.T) {
		assert.Equal(t, map[int]int{3: 1, 2: 2, 1: 2}, analysis.DegreeDistribution)
	})

	t.Run("StronglyConnectedComponents", func(t *testing.T) {
		require.Len(t, analysis.StronglyConnected, 3)
		var sizes []int
		for _, component := range analysis.StronglyConnected {
			sizes = append(sizes, len(component))
		}
		assert.ElementsMatch(t, []int{3, 1, 1}, sizes)
	})

	t.Run("Cycles", func(t *testing.T) {
		require.Len(t, analysis.Cycles, 2)
		for _, cycle := range analysis.Cycles {
			switch len(cycle) {
			case 3:
				assert.ElementsMatch(t, []string{"a", "b", "c"}, cycle)
			case 1:
				// self-loop counts as a cycle
				assert.Equal(t, []string{"s"}, cycle)
			default:
				t.Fatalf("unexpected cycle %v", cycle)
			}
		}
	})

	t.Run("ClusteringCoefficients", func(t *testing.T) {
		assert.InDelta(t, 1.0/3.0, analysis.Clustering["a"], 1e-9)
		assert.InDelta(t, 1.0, analysis.Clustering["b"], 1e-9)
		assert.InDelta(t, 1.0, analysis.Clustering["c"], 1e-9)
		assert.Zero(t, analysis.Clustering["d"])
		assert.Zero(t, analysis.Clustering["s"])
	})
}

func TestAnalyze_Triangle(t *testing.T) {
	t.Parallel()

	g := graph.NewKnowledgeGraph("triangle", "/tmp/triangle")
	for _, id := range []string{"x", "y", "z"} {
		g.AddNode(fileNode(id))
	}
	g.AddRelationship(&graph.Relationship{ID: "xy", From: "x", To: "y", Type: graph.RelCalls, Weight: 1})
	g.AddRelationship(&graph.Relationship{ID: "yz", From: "y", To: "z", Type: graph.RelCalls, Weight: 1})
	g.AddRelationship(&graph.Relationship{ID: "xz", From: "x", To: "z", Type: graph.RelCalls, Weight: 1})
	e := newTestEngine(t, g)

	analysis, err := e.Analyze(context.Background(), "triangle")
	require.NoError(t, err)

	// A full triangle gives every node a coefficient of 1.
	for _, id := range []string{"x", "y", "z"} {
		assert.InDelta(t, 1.0, analysis.Clustering[id], 1e-9, id)
	}

	// No directed cycle exists even though the undirected triangle is dense.
	assert.Empty(t, analysis.Cycles)
}

func TestAnalyze_UnknownGraph(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, cycleGraph())

	_, err := e.Analyze(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrGraphNotFound)
}

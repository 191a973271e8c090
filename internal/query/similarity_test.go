package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapsegraph/synapse-go/internal/graph"
)

func TestSimilar(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, codebaseGraph())
	ctx := context.Background()

	t.Run("RanksStructuralSiblings", func(t *testing.T) {
		t.Parallel()
		matches, err := e.Similar(ctx, "codebase", "function:main.go:main", DefaultSimilarityWeights, 0)
		require.NoError(t, err)

		// Only the sibling function clears the score floor: same type and
		// language, close size/complexity, identical relationship types. The
		// files and the Python class all fall below it.
		require.Len(t, matches, 1)
		assert.Equal(t, "function:main.go:helper", matches[0].Node.ID)
		assert.InDelta(t, 0.608, matches[0].Score, 1e-3)
		assert.Contains(t, matches[0].Reasons, "similar structure")
		assert.Contains(t, matches[0].Reasons, "similar relationships")
		assert.NotContains(t, matches[0].Reasons, "similar semantics")
	})

	t.Run("IdenticalTwinScoresFull", func(t *testing.T) {
		t.Parallel()
		g := graph.NewKnowledgeGraph("twins", "/tmp/twins")
		for _, id := range []string{"function:a.go:Run", "function:b.go:Run"} {
			g.AddNode(&graph.KnowledgeNode{
				ID: id, Type: graph.NodeFunction, Name: "Run", Path: id,
				Size:      30,
				Metadata:  graph.NodeMetadata{Language: "go", Complexity: 4},
				Semantics: graph.Semantics{Purpose: "Runs the job."},
				Tags:      []string{"exported"},
			})
		}
		twins := newTestEngine(t, g)

		matches, err := twins.Similar(ctx, "twins", "function:a.go:Run", DefaultSimilarityWeights, 0)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		// 0.4 + 0.4 + 0.2 with every dimension at 1.0
		assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
		assert.ElementsMatch(t, []string{
			"similar structure", "similar semantics", "similar relationships",
		}, matches[0].Reasons)
	})

	t.Run("CustomWeights", func(t *testing.T) {
		t.Parallel()
		// Zeroing semantic and relationship weight leaves only the
		// structural dimension; the sibling function still qualifies.
		matches, err := e.Similar(ctx, "codebase", "function:main.go:main",
			SimilarityWeights{Structural: 1}, 0)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.InDelta(t, 0.72, matches[0].Score, 1e-3)
	})

	t.Run("LimitTruncates", func(t *testing.T) {
		t.Parallel()
		matches, err := e.Similar(ctx, "codebase", "function:main.go:main",
			SimilarityWeights{Structural: 1, Semantic: 1, Relationship: 1}, 1)
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})

	t.Run("UnknownTargetIsNotAnError", func(t *testing.T) {
		t.Parallel()
		matches, err := e.Similar(ctx, "codebase", "ghost", DefaultSimilarityWeights, 0)
		assert.NoError(t, err)
		assert.Nil(t, matches)
	})

	t.Run("UnknownGraph", func(t *testing.T) {
		t.Parallel()
		_, err := e.Similar(ctx, "nope", "function:main.go:main", DefaultSimilarityWeights, 0)
		assert.ErrorIs(t, err, ErrGraphNotFound)
	})
}

func TestStructuralScore(t *testing.T) {
	t.Parallel()

	a := &graph.KnowledgeNode{
		ID: "a", Type: graph.NodeFunction, Size: 40,
		Metadata: graph.NodeMetadata{Language: "go", Complexity: 5},
	}
	b := &graph.KnowledgeNode{
		ID: "b", Type: graph.NodeFunction, Size: 20,
		Metadata: graph.NodeMetadata{Language: "go", Complexity: 2},
	}

	// type 0.3 + language 0.2 + size closeness 0.2·0.5 + complexity 0.3·0.4
	assert.InDelta(t, 0.72, structuralScore(a, b), 1e-9)
	assert.InDelta(t, structuralScore(a, b), structuralScore(b, a), 1e-9)
}

func TestRelativeCloseness(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, relativeCloseness(0, 0), 1e-9)
	assert.InDelta(t, 1.0, relativeCloseness(7, 7), 1e-9)
	assert.InDelta(t, 0.5, relativeCloseness(20, 40), 1e-9)
	assert.InDelta(t, 0.0, relativeCloseness(0, 9), 1e-9)
}

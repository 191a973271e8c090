package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_Exact(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, codebaseGraph())
	ctx := context.Background()

	t.Run("NameMatchesCountDouble", func(t *testing.T) {
		t.Parallel()
		matches, err := e.Search(ctx, "codebase", "parser", SearchOptions{})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "class:util.py:Parser", matches[0].Node.ID)
		assert.InDelta(t, 2.0, matches[0].Score, 1e-9)
		assert.Equal(t, []string{"name"}, matches[0].MatchedFields)
	})

	t.Run("RankedByScoreThenInsertionOrder", func(t *testing.T) {
		t.Parallel()
		matches, err := e.Search(ctx, "codebase", "main", SearchOptions{})
		require.NoError(t, err)
		require.Len(t, matches, 3)

		// file:main.go and the main function score name+path (2+1); helper
		// only matches on path. Ties keep insertion order.
		assert.Equal(t, "file:main.go", matches[0].Node.ID)
		assert.InDelta(t, 3.0, matches[0].Score, 1e-9)
		assert.Equal(t, "function:main.go:main", matches[1].Node.ID)
		assert.InDelta(t, 3.0, matches[1].Score, 1e-9)
		assert.Equal(t, "function:main.go:helper", matches[2].Node.ID)
		assert.InDelta(t, 1.0, matches[2].Score, 1e-9)
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		t.Parallel()
		matches, err := e.Search(ctx, "codebase", "PARSER", SearchOptions{})
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})

	t.Run("Limit", func(t *testing.T) {
		t.Parallel()
		matches, err := e.Search(ctx, "codebase", "main", SearchOptions{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})

	t.Run("ExplicitFields", func(t *testing.T) {
		t.Parallel()
		matches, err := e.Search(ctx, "codebase", "entrypoint", SearchOptions{Fields: []string{"tags"}})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "function:main.go:main", matches[0].Node.ID)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	})

	t.Run("LanguageField", func(t *testing.T) {
		t.Parallel()
		matches, err := e.Search(ctx, "codebase", "python", SearchOptions{Fields: []string{"language"}})
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})

	t.Run("UnknownFieldSkipped", func(t *testing.T) {
		t.Parallel()
		matches, err := e.Search(ctx, "codebase", "main", SearchOptions{Fields: []string{"bogus"}})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("UnknownGraph", func(t *testing.T) {
		t.Parallel()
		_, err := e.Search(ctx, "nope", "main", SearchOptions{})
		assert.ErrorIs(t, err, ErrGraphNotFound)
	})
}

func TestSearch_Fuzzy(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, codebaseGraph())
	ctx := context.Background()

	t.Run("TypoStillMatches", func(t *testing.T) {
		t.Parallel()
		matches, err := e.Search(ctx, "codebase", "helpr", SearchOptions{Fuzzy: true})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "function:main.go:helper", matches[0].Node.ID)
		// similarity 5/6 on the name field, doubled.
		assert.InDelta(t, 5.0/3.0, matches[0].Score, 1e-9)
	})

	t.Run("BelowThresholdRejected", func(t *testing.T) {
		t.Parallel()
		matches, err := e.Search(ctx, "codebase", "zzzz", SearchOptions{Fuzzy: true})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

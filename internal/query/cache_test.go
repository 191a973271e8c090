package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapsegraph/synapse-go/internal/graph"
)

func TestCacheKey(t *testing.T) {
	t.Parallel()

	q := Query{Select: []string{"*"}, Limit: 3}

	a, err := cacheKey("g1", q)
	require.NoError(t, err)
	b, err := cacheKey("g1", q)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := cacheKey("g2", q)
	require.NoError(t, err)
	assert.NotEqual(t, a, other)

	changed, err := cacheKey("g1", Query{Select: []string{"*"}, Limit: 4})
	require.NoError(t, err)
	assert.NotEqual(t, a, changed)
}

func TestExecute_ServesRepeatedQueriesFromCache(t *testing.T) {
	t.Parallel()

	g := codebaseGraph()
	e := newTestEngine(t, g)
	ctx := context.Background()
	q := Query{Select: []string{"*"}}

	first, err := e.Execute(ctx, "codebase", q)
	require.NoError(t, err)

	second, err := e.Execute(ctx, "codebase", q)
	require.NoError(t, err)

	// A cache hit returns the original result, original timing included.
	assert.Same(t, first, second)
	assert.Equal(t, first.ExecutionTime, second.ExecutionTime)
}

func TestResultCache_ExpiryAndEviction(t *testing.T) {
	t.Parallel()

	t.Run("ExpiredEntryDropped", func(t *testing.T) {
		t.Parallel()
		c := newResultCache(10, time.Millisecond)
		c.put("k", &Result{Total: 1})

		time.Sleep(5 * time.Millisecond)

		_, ok := c.get("k")
		assert.False(t, ok)
		assert.Equal(t, 0, c.len())
	})

	t.Run("EvictsCheapestFirst", func(t *testing.T) {
		t.Parallel()
		c := newResultCache(2, time.Minute)
		c.put("cheap", &Result{ExecutionTime: time.Millisecond})
		c.put("expensive", &Result{ExecutionTime: time.Second})
		c.put("moderate", &Result{ExecutionTime: 100 * time.Millisecond})

		assert.Equal(t, 2, c.len())
		_, ok := c.get("cheap")
		assert.False(t, ok)
		_, ok = c.get("expensive")
		assert.True(t, ok)
		_, ok = c.get("moderate")
		assert.True(t, ok)
	})

	t.Run("EmptyKeyIgnored", func(t *testing.T) {
		t.Parallel()
		c := newResultCache(2, time.Minute)
		c.put("", &Result{})
		assert.Equal(t, 0, c.len())
	})
}

func TestExecute_CacheOutlivesStoreUpdate(t *testing.T) {
	t.Parallel()

	g := codebaseGraph()
	e := newTestEngine(t, g)
	ctx := context.Background()
	q := Query{Select: []string{"*"}}

	first, err := e.Execute(ctx, "codebase", q)
	require.NoError(t, err)
	require.Equal(t, 5, first.Total)

	// Persisting a grown graph does not invalidate the engine-side cache;
	// the same query stays answered by the cached result until the TTL.
	g.AddNode(&graph.KnowledgeNode{ID: "file:extra.go", Type: graph.NodeFile, Name: "extra.go", Path: "extra.go"})
	require.NoError(t, e.store.StoreGraph(ctx, g))

	again, err := e.Execute(ctx, "codebase", q)
	require.NoError(t, err)
	assert.Equal(t, 5, again.Total)
}

// Package query provides the read-only query engine for Synapse knowledge
// graphs: structured queries, graph traversal, full-text and fuzzy search,
// similarity ranking, aggregation, and structural analysis.
//
// Every operation loads one immutable graph snapshot at start and evaluates
// entirely in memory against it; a concurrent persist of the same graph does
// not affect an in-flight query. The engine never mutates store-owned state.
package query

import (
	"context"
	"errors"

	"github.com/synapsegraph/synapse-go/internal/graph"
	"github.com/synapsegraph/synapse-go/internal/store"
)

// ErrGraphNotFound is returned by every engine operation when the graph ID
// is unknown to the store.
var ErrGraphNotFound = errors.New("graph not found")

// ErrInvalidQuery is returned when a query is structurally malformed, e.g.
// a missing selector. Unrecognized operators are not errors; their
// conditions evaluate false.
var ErrInvalidQuery = errors.New("invalid query")

// Engine evaluates queries against graph snapshots loaded from a GraphStore.
//
// The engine itself is stateless apart from the shared result cache, which
// is a pure optimization: concurrent queries may race on cache population
// and last-write-wins is acceptable.
type Engine struct {
	store store.GraphStore
	cache *resultCache
}

// NewEngine creates a query engine over the given store.
func NewEngine(st store.GraphStore) *Engine {
	return &Engine{
		store: st,
		cache: newResultCache(cacheCapacity, cacheTTL),
	}
}

// snapshot is one graph loaded for the duration of a single query, with
// undirected adjacency precomputed once at load instead of rescanning all
// relationships per traversal step.
type snapshot struct {
	graph *graph.KnowledgeGraph

	// neighbors lists, per node, every relationship touching it (either
	// endpoint), in relationship insertion order.
	neighbors map[string][]*graph.Relationship
}

// loadSnapshot fetches the graph and builds its adjacency index.
func (e *Engine) loadSnapshot(ctx context.Context, graphID string) (*snapshot, error) {
	g, err := e.store.LoadGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGraphNotFound
	}

	snap := &snapshot{
		graph:     g,
		neighbors: make(map[string][]*graph.Relationship),
	}
	for _, rel := range g.Relationships() {
		snap.neighbors[rel.From] = append(snap.neighbors[rel.From], rel)
		if rel.To != rel.From {
			snap.neighbors[rel.To] = append(snap.neighbors[rel.To], rel)
		}
	}
	return snap, nil
}

// otherEnd returns the endpoint of rel that is not nodeID. For self-loops it
// returns nodeID itself.
func otherEnd(rel *graph.Relationship, nodeID string) string {
	if rel.From == nodeID {
		return rel.To
	}
	return rel.From
}

// typeAllowed reports whether a relationship type passes an optional
// allowed-type set. An empty set allows everything.
func typeAllowed(relType graph.RelType, allowed map[graph.RelType]bool) bool {
	return len(allowed) == 0 || allowed[relType]
}

// typeSet converts a slice of relationship types to a set.
func typeSet(types []graph.RelType) map[graph.RelType]bool {
	if len(types) == 0 {
		return nil
	}
	set := make(map[graph.RelType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

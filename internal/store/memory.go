package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/synapsegraph/synapse-go/internal/graph"
)

// MemoryStore is an in-memory GraphStore for tests and embedded use.
//
// Graphs are deep-copied through JSON on store and load so that callers hold
// isolated snapshots, matching the durable backends' semantics.
type MemoryStore struct {
	mu          sync.RWMutex
	graphs      map[string][]byte
	initialized bool
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Initialize prepares the store. The path is ignored. Idempotent.
func (s *MemoryStore) Initialize(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		s.graphs = make(map[string][]byte)
		s.initialized = true
	}
	return nil
}

// Close releases the store's state.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs = nil
	s.initialized = false
	return nil
}

// StoreGraph persists a snapshot of the graph. The serialized swap is atomic
// under the store lock.
func (s *MemoryStore) StoreGraph(ctx context.Context, g *graph.KnowledgeGraph) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshaling graph %s: %w", g.ID(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.graphs[g.ID()] = data
	return nil
}

// LoadGraph returns a snapshot of the stored graph, or (nil, nil) when the
// ID is unknown.
func (s *MemoryStore) LoadGraph(ctx context.Context, graphID string) (*graph.KnowledgeGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	data, ok := s.graphs[graphID]
	if !ok {
		return nil, nil
	}

	g := &graph.KnowledgeGraph{}
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("unmarshaling graph %s: %w", graphID, err)
	}
	return g, nil
}

// DeleteGraph removes the graph with the given ID.
func (s *MemoryStore) DeleteGraph(ctx context.Context, graphID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return false, ErrNotInitialized
	}

	_, existed := s.graphs[graphID]
	delete(s.graphs, graphID)
	return existed, nil
}

// ListGraphIDs returns the IDs of all stored graphs, sorted.
func (s *MemoryStore) ListGraphIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	ids := make([]string, 0, len(s.graphs))
	for id := range s.graphs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// SearchNodes scans the graph's nodes for exact-match attribute criteria.
func (s *MemoryStore) SearchNodes(ctx context.Context, graphID string, filter AttributeFilter) ([]*graph.KnowledgeNode, error) {
	g, err := s.LoadGraph(ctx, graphID)
	if err != nil || g == nil {
		return nil, err
	}

	var matches []*graph.KnowledgeNode
	for _, node := range g.Nodes() {
		if filter.Matches(node) {
			matches = append(matches, node)
		}
	}
	return matches, nil
}

// FindRelationships returns relationships touching the node, optionally
// filtered by type and direction.
func (s *MemoryStore) FindRelationships(ctx context.Context, graphID, nodeID string, relType graph.RelType, direction Direction) ([]*graph.Relationship, error) {
	g, err := s.LoadGraph(ctx, graphID)
	if err != nil || g == nil {
		return nil, err
	}
	return findRelationships(g, nodeID, relType, direction), nil
}

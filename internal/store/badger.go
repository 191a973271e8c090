// Package store provides the BadgerDB-backed graph store for Synapse.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/synapsegraph/synapse-go/internal/graph"
)

// Key prefix for graph records. One durable record per graph ID.
const prefixGraph = "g:"

// BadgerStore is a BadgerDB-backed GraphStore.
//
// Each graph is persisted as a single JSON record under g:<id>, so a commit
// is the atomic swap: readers see either the previous snapshot or the new
// one. The serialized record is cached per ID and invalidated when a newer
// version is stored; every load unmarshals a fresh copy so callers hold
// isolated snapshots, as MemoryStore does.
type BadgerStore struct {
	mu          sync.RWMutex
	db          *badger.DB
	initialized bool
	snapshots   map[string][]byte
}

// NewBadgerStore creates a new, uninitialized BadgerDB store.
func NewBadgerStore() *BadgerStore {
	return &BadgerStore{}
}

// Initialize opens or creates the BadgerDB database at the given path.
// Safe to call repeatedly; subsequent calls are no-ops.
func (s *BadgerStore) Initialize(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}

	s.db = db
	s.initialized = true
	s.snapshots = make(map[string][]byte)
	return nil
}

// Close releases all resources held by the store.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	s.initialized = false
	s.snapshots = nil
	return err
}

// StoreGraph persists a full snapshot keyed by the graph's ID, replacing any
// prior version. The single-record commit makes the write atomic.
func (s *BadgerStore) StoreGraph(ctx context.Context, g *graph.KnowledgeGraph) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshaling graph %s: %w", g.ID(), err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(graphKey(g.ID()), data)
	})
	if err != nil {
		return fmt.Errorf("storing graph %s: %w", g.ID(), err)
	}

	s.snapshots[g.ID()] = data
	return nil
}

// LoadGraph returns the current snapshot for the ID, or (nil, nil) when the
// ID is unknown.
func (s *BadgerStore) LoadGraph(ctx context.Context, graphID string) (*graph.KnowledgeGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	data, ok := s.snapshots[graphID]
	if !ok {
		err := s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(graphKey(graphID))
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				data = append([]byte(nil), val...)
				return nil
			})
		})
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("loading graph %s: %w", graphID, err)
		}
		s.snapshots[graphID] = data
	}

	// Unmarshal per load: a cached record must not hand every caller the
	// same mutable graph.
	g := &graph.KnowledgeGraph{}
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("unmarshaling graph %s: %w", graphID, err)
	}
	return g, nil
}

// DeleteGraph removes the graph with the given ID.
func (s *BadgerStore) DeleteGraph(ctx context.Context, graphID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return false, ErrNotInitialized
	}

	existed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(graphKey(graphID)); err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		existed = true
		return txn.Delete(graphKey(graphID))
	})
	if err != nil {
		return false, fmt.Errorf("deleting graph %s: %w", graphID, err)
	}

	delete(s.snapshots, graphID)
	return existed, nil
}

// ListGraphIDs returns the IDs of all persisted graphs.
func (s *BadgerStore) ListGraphIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixGraph)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, key[len(prefixGraph):])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing graphs: %w", err)
	}

	return ids, nil
}

// SearchNodes scans the graph's nodes for exact-match attribute criteria,
// returning matches in original insertion order.
func (s *BadgerStore) SearchNodes(ctx context.Context, graphID string, filter AttributeFilter) ([]*graph.KnowledgeNode, error) {
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

// FindRelationships returns relationships where nodeID is the source,
// target, or either endpoint, optionally filtered by type.
func (s *BadgerStore) FindRelationships(ctx context.Context, graphID, nodeID string, relType graph.RelType, direction Direction) ([]*graph.Relationship, error) {
	g, err := s.LoadGraph(ctx, graphID)
	if err != nil || g == nil {
		return nil, err
	}
	return findRelationships(g, nodeID, relType, direction), nil
}

// findRelationships collects adjacency for a node, shared by backends.
func findRelationships(g *graph.KnowledgeGraph, nodeID string, relType graph.RelType, direction Direction) []*graph.Relationship {
	var rels []*graph.Relationship

	switch direction {
	case DirectionOutgoing:
		rels = g.Outgoing(nodeID, relType)
	case DirectionIncoming:
		rels = g.Incoming(nodeID, relType)
	default:
		rels = g.Outgoing(nodeID, relType)
		for _, rel := range g.Incoming(nodeID, relType) {
			if rel.From == rel.To {
				continue // self-loop already collected as outgoing
			}
			rels = append(rels, rel)
		}
	}

	return rels
}

func graphKey(graphID string) []byte {
	return []byte(prefixGraph + graphID)
}

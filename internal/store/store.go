// Package store provides durable per-project persistence for knowledge
// graphs, plus simple attribute and relationship lookups.
//
// It defines the GraphStore interface that all storage implementations must
// satisfy. No traversal or scoring logic lives here; that belongs to the
// query engine.
package store

import (
	"context"
	"errors"

	"github.com/synapsegraph/synapse-go/internal/graph"
)

// ErrNotInitialized is returned when a store is used before Initialize.
var ErrNotInitialized = errors.New("store not initialized")

// Direction selects which relationship endpoints to match in FindRelationships.
type Direction string

const (
	// DirectionOutgoing matches relationships where the node is the source.
	DirectionOutgoing Direction = "outgoing"

	// DirectionIncoming matches relationships where the node is the target.
	DirectionIncoming Direction = "incoming"

	// DirectionBoth matches either endpoint.
	DirectionBoth Direction = "both"
)

// AttributeFilter holds exact-match criteria for SearchNodes. Zero-valued
// fields are not applied. PathPrefix matches nodes whose path starts with
// the given prefix; all other fields match by equality.
type AttributeFilter struct {
	Type       graph.NodeType
	Name       string
	Path       string
	PathPrefix string
	Language   string
	Tag        string
}

// Matches reports whether a node satisfies every set criterion.
func (f AttributeFilter) Matches(node *graph.KnowledgeNode) bool {
	if f.Type != "" && node.Type != f.Type {
		return false
	}
	if f.Name != "" && node.Name != f.Name {
		return false
	}
	if f.Path != "" && node.Path != f.Path {
		return false
	}
	if f.PathPrefix != "" && !hasPrefix(node.Path, f.PathPrefix) {
		return false
	}
	if f.Language != "" && node.Metadata.Language != f.Language {
		return false
	}
	if f.Tag != "" && !containsTag(node.Tags, f.Tag) {
		return false
	}
	return true
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// GraphStore defines the interface for graph persistence implementations.
//
// Implementations must be thread-safe. Operations are isolated per graph ID
// so unrelated projects never contend. A load on an unknown ID is a normal
// (nil, nil) result, never an error; I/O failures wrap and propagate.
type GraphStore interface {
	// Initialize prepares the storage location. Idempotent.
	Initialize(path string) error

	// Close releases all resources held by the store.
	Close() error

	// StoreGraph persists a full snapshot keyed by the graph's ID, replacing
	// any prior version atomically: a concurrent reader observes either the
	// previous snapshot or the new one, never a partial write.
	StoreGraph(ctx context.Context, g *graph.KnowledgeGraph) error

	// LoadGraph returns the current snapshot for the ID, or (nil, nil) if no
	// graph with that ID has been stored.
	LoadGraph(ctx context.Context, graphID string) (*graph.KnowledgeGraph, error)

	// DeleteGraph removes the graph with the given ID. Returns whether a
	// graph existed.
	DeleteGraph(ctx context.Context, graphID string) (bool, error)

	// ListGraphIDs returns the IDs of all persisted graphs.
	ListGraphIDs(ctx context.Context) ([]string, error)

	// SearchNodes scans the graph's nodes for exact-match attribute criteria,
	// returning matches in original insertion order. An unknown graph ID
	// yields (nil, nil).
	SearchNodes(ctx context.Context, graphID string, filter AttributeFilter) ([]*graph.KnowledgeNode, error)

	// FindRelationships returns relationships where nodeID is the source
	// (outgoing), the target (incoming), or either (both / empty direction),
	// optionally filtered by relationship type (empty matches all).
	FindRelationships(ctx context.Context, graphID, nodeID string, relType graph.RelType, direction Direction) ([]*graph.Relationship, error)
}

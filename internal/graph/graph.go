// Package graph provides the in-memory knowledge graph for Synapse.
//
// KnowledgeGraph stores KnowledgeNode and Relationship instances with O(1)
// lookups by ID while preserving insertion order for deterministic scans.
// Adjacency indexes on source and target IDs keep relationship lookups
// O(result) rather than O(graph).
package graph

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// KnowledgeGraph is a directed graph of code-level artifacts and their
// relationships, one per project.
//
// Nodes and relationships are keyed by their ID strings. Insertion order is
// tracked so that scans return results deterministically. Removing a node
// cascades to any relationship where the node appears as source or target.
// The version increases monotonically on structural change.
type KnowledgeGraph struct {
	mu sync.RWMutex

	id          string
	projectPath string
	version     int64
	lastUpdated time.Time
	stats       Statistics

	nodes         map[string]*KnowledgeNode
	relationships map[string]*Relationship
	nodeOrder     []string
	relOrder      []string

	// Adjacency indexes — kept in sync by add/remove helpers.
	outgoing map[string]map[string]*Relationship
	incoming map[string]map[string]*Relationship
}

// NewKnowledgeGraph creates a new empty knowledge graph for a project.
func NewKnowledgeGraph(id, projectPath string) *KnowledgeGraph {
	return &KnowledgeGraph{
		id:            id,
		projectPath:   projectPath,
		version:       1,
		lastUpdated:   time.Now().UTC(),
		nodes:         make(map[string]*KnowledgeNode),
		relationships: make(map[string]*Relationship),
		outgoing:      make(map[string]map[string]*Relationship),
		incoming:      make(map[string]map[string]*Relationship),
	}
}

// ID returns the graph identifier.
func (g *KnowledgeGraph) ID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.id
}

// ProjectPath returns the project path this graph was built from.
func (g *KnowledgeGraph) ProjectPath() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.projectPath
}

// Version returns the current graph version.
func (g *KnowledgeGraph) Version() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.version
}

// LastUpdated returns the time of the last structural change.
func (g *KnowledgeGraph) LastUpdated() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastUpdated
}

// BumpVersion increments the version and refreshes the update timestamp.
// Call after a batch of structural changes.
func (g *KnowledgeGraph) BumpVersion() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.version++
	g.lastUpdated = time.Now().UTC()
	return g.version
}

// SetVersion overwrites the version, used when a rebuilt graph carries on
// from a persisted predecessor.
func (g *KnowledgeGraph) SetVersion(version int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.version = version
	g.lastUpdated = time.Now().UTC()
}

// NodeCount returns the number of nodes without list materialization.
func (g *KnowledgeGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// RelationshipCount returns the number of relationships without list materialization.
func (g *KnowledgeGraph) RelationshipCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.relationships)
}

// AddNode adds a node, replacing any existing node with the same ID.
// Replacement keeps the node's original insertion position.
func (g *KnowledgeGraph) AddNode(node *KnowledgeNode) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[node.ID]; !ok {
		g.nodeOrder = append(g.nodeOrder, node.ID)
	}
	g.nodes[node.ID] = node
}

// GetNode returns the node with the given ID, or nil if it does not exist.
func (g *KnowledgeGraph) GetNode(nodeID string) *KnowledgeNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[nodeID]
}

// Nodes returns all nodes in insertion order.
func (g *KnowledgeGraph) Nodes() []*KnowledgeNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]*KnowledgeNode, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		result = append(result, g.nodes[id])
	}
	return result
}

// RemoveNode removes a node and cascade-deletes all relationships that
// reference it. Returns true if the node existed and was removed.
func (g *KnowledgeGraph) RemoveNode(nodeID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[nodeID]; !ok {
		return false
	}

	delete(g.nodes, nodeID)
	g.nodeOrder = removeID(g.nodeOrder, nodeID)
	g.cascadeRelationshipsForNode(nodeID)
	return true
}

// RemoveNodesByPath removes every node whose Path matches and cascade-deletes
// relationships. Returns the number of nodes removed.
func (g *KnowledgeGraph) RemoveNodesByPath(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	var idsToRemove []string
	for id, node := range g.nodes {
		if node.Path == path {
			idsToRemove = append(idsToRemove, id)
		}
	}

	for _, id := range idsToRemove {
		delete(g.nodes, id)
		g.nodeOrder = removeID(g.nodeOrder, id)
		g.cascadeRelationshipsForNode(id)
	}

	return len(idsToRemove)
}

// AddRelationship adds a relationship, replacing any existing relationship
// with the same ID. Replacement keeps the original insertion position.
func (g *KnowledgeGraph) AddRelationship(rel *Relationship) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.relationships[rel.ID]; ok {
		delete(g.outgoing[old.From], rel.ID)
		delete(g.incoming[old.To], rel.ID)
	} else {
		g.relOrder = append(g.relOrder, rel.ID)
	}

	g.relationships[rel.ID] = rel

	if g.outgoing[rel.From] == nil {
		g.outgoing[rel.From] = make(map[string]*Relationship)
	}
	g.outgoing[rel.From][rel.ID] = rel

	if g.incoming[rel.To] == nil {
		g.incoming[rel.To] = make(map[string]*Relationship)
	}
	g.incoming[rel.To][rel.ID] = rel
}

// GetRelationship returns the relationship with the given ID, or nil.
func (g *KnowledgeGraph) GetRelationship(relID string) *Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.relationships[relID]
}

// Relationships returns all relationships in insertion order.
func (g *KnowledgeGraph) Relationships() []*Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]*Relationship, 0, len(g.relOrder))
	for _, id := range g.relOrder {
		result = append(result, g.relationships[id])
	}
	return result
}

// Outgoing returns relationships originating from the given node ID, in
// insertion order. If relType is provided and non-empty, only relationships
// of that type are returned.
func (g *KnowledgeGraph) Outgoing(nodeID string, relType ...RelType) []*Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collectOrdered(g.outgoing[nodeID], relType)
}

// Incoming returns relationships targeting the given node ID, in insertion
// order. If relType is provided and non-empty, only relationships of that
// type are returned.
func (g *KnowledgeGraph) Incoming(nodeID string, relType ...RelType) []*Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collectOrdered(g.incoming[nodeID], relType)
}

// collectOrdered materializes an adjacency set in global insertion order.
// Must be called with at least the read lock held.
func (g *KnowledgeGraph) collectOrdered(rels map[string]*Relationship, relType []RelType) []*Relationship {
	if len(rels) == 0 {
		return nil
	}

	var filter RelType
	if len(relType) > 0 {
		filter = relType[0]
	}

	result := make([]*Relationship, 0, len(rels))
	for _, id := range g.relOrder {
		rel, ok := rels[id]
		if !ok {
			continue
		}
		if filter != "" && rel.Type != filter {
			continue
		}
		result = append(result, rel)
	}
	return result
}

// Validate checks graph invariants: every relationship's endpoints must
// reference node IDs present in the graph.
func (g *KnowledgeGraph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, rel := range g.relationships {
		if _, ok := g.nodes[rel.From]; !ok {
			return fmt.Errorf("relationship %s: unknown source node %s", rel.ID, rel.From)
		}
		if _, ok := g.nodes[rel.To]; !ok {
			return fmt.Errorf("relationship %s: unknown target node %s", rel.ID, rel.To)
		}
		if rel.Weight < 0 {
			return fmt.Errorf("relationship %s: negative weight %f", rel.ID, rel.Weight)
		}
	}
	return nil
}

// Statistics returns the last computed aggregate statistics.
func (g *KnowledgeGraph) Statistics() Statistics {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.stats
}

// ComputeStatistics recomputes and stores aggregate statistics:
// average connectivity, max containment depth, dependency counts, and
// error/pattern frequency tables.
func (g *KnowledgeGraph) ComputeStatistics() Statistics {
	g.mu.Lock()
	defer g.mu.Unlock()

	stats := Statistics{
		DependencyCounts: make(map[RelType]int),
		ErrorFrequency:   make(map[string]int),
		PatternFrequency: make(map[string]int),
	}

	if len(g.nodes) > 0 {
		stats.AverageConnectivity = float64(len(g.relationships)) / float64(len(g.nodes))
	}

	for _, rel := range g.relationships {
		stats.DependencyCounts[rel.Type]++
	}

	for _, node := range g.nodes {
		for _, e := range node.Errors {
			stats.ErrorFrequency[e.Type]++
		}
		for _, p := range node.Semantics.Patterns {
			stats.PatternFrequency[p.Name]++
		}
	}

	stats.MaxDepth = g.maxContainmentDepth()

	g.stats = stats
	return stats
}

// maxContainmentDepth walks contains edges from roots downward.
// Must be called with the lock held.
func (g *KnowledgeGraph) maxContainmentDepth() int {
	depth := make(map[string]int)

	var walk func(id string, seen map[string]bool) int
	walk = func(id string, seen map[string]bool) int {
		if d, ok := depth[id]; ok {
			return d
		}
		if seen[id] {
			return 0 // containment cycle, stop
		}
		seen[id] = true
		max := 0
		for _, rel := range g.outgoing[id] {
			if rel.Type != RelContains {
				continue
			}
			if d := walk(rel.To, seen) + 1; d > max {
				max = d
			}
		}
		delete(seen, id)
		depth[id] = max
		return max
	}

	overall := 0
	for id := range g.nodes {
		if d := walk(id, make(map[string]bool)); d > overall {
			overall = d
		}
	}
	return overall
}

// cascadeRelationshipsForNode removes all relationships where the node is
// source or target. Must be called with the write lock held.
func (g *KnowledgeGraph) cascadeRelationshipsForNode(nodeID string) {
	if outRels, ok := g.outgoing[nodeID]; ok {
		for _, rel := range outRels {
			delete(g.relationships, rel.ID)
			g.relOrder = removeID(g.relOrder, rel.ID)
			delete(g.incoming[rel.To], rel.ID)
		}
		delete(g.outgoing, nodeID)
	}

	if inRels, ok := g.incoming[nodeID]; ok {
		for _, rel := range inRels {
			delete(g.relationships, rel.ID)
			g.relOrder = removeID(g.relOrder, rel.ID)
			delete(g.outgoing[rel.From], rel.ID)
		}
		delete(g.incoming, nodeID)
	}
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// graphRecord is the serialized form of a KnowledgeGraph. Node and
// relationship slices preserve insertion order across round-trips.
type graphRecord struct {
	ID            string           `json:"id"`
	ProjectPath   string           `json:"projectPath"`
	Version       int64            `json:"version"`
	LastUpdated   time.Time        `json:"lastUpdated"`
	Nodes         []*KnowledgeNode `json:"nodes"`
	Relationships []*Relationship  `json:"relationships"`
	Statistics    Statistics       `json:"statistics"`
}

// MarshalJSON serializes the graph as one self-contained record.
func (g *KnowledgeGraph) MarshalJSON() ([]byte, error) {
	g.mu.RLock()
	rec := graphRecord{
		ID:          g.id,
		ProjectPath: g.projectPath,
		Version:     g.version,
		LastUpdated: g.lastUpdated,
		Statistics:  g.stats,
	}
	rec.Nodes = make([]*KnowledgeNode, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		rec.Nodes = append(rec.Nodes, g.nodes[id])
	}
	rec.Relationships = make([]*Relationship, 0, len(g.relOrder))
	for _, id := range g.relOrder {
		rec.Relationships = append(rec.Relationships, g.relationships[id])
	}
	g.mu.RUnlock()

	return json.Marshal(rec)
}

// UnmarshalJSON restores a graph from its serialized record.
func (g *KnowledgeGraph) UnmarshalJSON(data []byte) error {
	var rec graphRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("unmarshaling graph record: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.id = rec.ID
	g.projectPath = rec.ProjectPath
	g.version = rec.Version
	g.lastUpdated = rec.LastUpdated
	g.stats = rec.Statistics
	g.nodes = make(map[string]*KnowledgeNode, len(rec.Nodes))
	g.relationships = make(map[string]*Relationship, len(rec.Relationships))
	g.nodeOrder = make([]string, 0, len(rec.Nodes))
	g.relOrder = make([]string, 0, len(rec.Relationships))
	g.outgoing = make(map[string]map[string]*Relationship)
	g.incoming = make(map[string]map[string]*Relationship)

	for _, node := range rec.Nodes {
		if _, ok := g.nodes[node.ID]; !ok {
			g.nodeOrder = append(g.nodeOrder, node.ID)
		}
		g.nodes[node.ID] = node
	}
	for _, rel := range rec.Relationships {
		if _, ok := g.relationships[rel.ID]; !ok {
			g.relOrder = append(g.relOrder, rel.ID)
		}
		g.relationships[rel.ID] = rel
		if g.outgoing[rel.From] == nil {
			g.outgoing[rel.From] = make(map[string]*Relationship)
		}
		g.outgoing[rel.From][rel.ID] = rel
		if g.incoming[rel.To] == nil {
			g.incoming[rel.To] = make(map[string]*Relationship)
		}
		g.incoming[rel.To][rel.ID] = rel
	}

	return nil
}

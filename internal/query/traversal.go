package query

import (
	"context"
	"sort"

	"github.com/synapsegraph/synapse-go/internal/graph"
)

// DefaultMaxPaths caps AllPaths result counts when the caller passes a
// non-positive maximum.
const DefaultMaxPaths = 100

// PathResult is one path between two nodes.
//
// Score is the sum of traversed relationship weights. For ShortestPath it is
// informational only and never influences which path is returned; hop count
// decides, with ties broken by expansion order.
type PathResult struct {
	// Found reports whether a path exists within the depth bound. Absence
	// of a path is a normal outcome, not an error.
	Found bool `json:"found"`

	// Path is the node-ID sequence from source to target, inclusive.
	Path []string `json:"path,omitempty"`

	// Visited lists every node reached during the walk, in visit order.
	Visited []string `json:"visited,omitempty"`

	// Relationships are the edges traversed along Path.
	Relationships []*graph.Relationship `json:"relationships,omitempty"`

	// Depth is the hop count of Path.
	Depth int `json:"depth"`

	// Score is the sum of traversed relationship weights.
	Score float64 `json:"score"`
}

// ShortestPath finds an unweighted shortest path between two nodes using
// breadth-first expansion. Relationships are treated as undirected for
// adjacency: a node's neighbors are found via either endpoint. The optional
// relTypes set restricts which relationships may be traversed.
//
// The first time the target is reached wins; hop-count ties resolve by
// expansion/insertion order. No path within maxDepth, or an unknown source
// or target node, yields a not-found result with no error.
func (e *Engine) ShortestPath(ctx context.Context, graphID, from, to string, maxDepth int, relTypes ...graph.RelType) (*PathResult, error) {
	snap, err := e.loadSnapshot(ctx, graphID)
	if err != nil {
		return nil, err
	}

	if snap.graph.GetNode(from) == nil || snap.graph.GetNode(to) == nil {
		return &PathResult{}, nil
	}

	if from == to {
		return &PathResult{
			Found:   true,
			Path:    []string{from},
			Visited: []string{from},
		}, nil
	}

	allowed := typeSet(relTypes)

	parents := map[string]step{}
	visited := []string{from}
	seen := map[string]bool{from: true}
	frontier := []string{from}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, current := range frontier {
			for _, rel := range snap.neighbors[current] {
				if !typeAllowed(rel.Type, allowed) {
					continue
				}
				neighbor := otherEnd(rel, current)
				if seen[neighbor] {
					continue
				}
				seen[neighbor] = true
				visited = append(visited, neighbor)
				parents[neighbor] = step{rel: rel, prev: current}

				if neighbor == to {
					path, rels, score := rebuildPath(from, to, parents)
					return &PathResult{
						Found:         true,
						Path:          path,
						Visited:       visited,
						Relationships: rels,
						Depth:         len(path) - 1,
						Score:         score,
					}, nil
				}
				next = append(next, neighbor)
			}
		}
		frontier = next
	}

	return &PathResult{Visited: visited}, nil
}

// rebuildPath walks parent pointers from target back to source.
func rebuildPath(from, to string, parents map[string]step) ([]string, []*graph.Relationship, float64) {
	var path []string
	var rels []*graph.Relationship
	score := 0.0

	for current := to; current != from; {
		p := parents[current]
		path = append([]string{current}, path...)
		rels = append([]*graph.Relationship{p.rel}, rels...)
		score += p.rel.Weight
		current = p.prev
	}
	path = append([]string{from}, path...)
	return path, rels, score
}

// step is the BFS parent record for path reconstruction.
type step struct {
	rel  *graph.Relationship
	prev string
}

// AllPaths enumerates every simple path (no repeated node) between two nodes
// up to maxDepth hops, capped at maxResults (DefaultMaxPaths when <= 0).
// Results sort descending by weight-sum score.
//
// Cost is exponential in the branching factor; the depth and result caps
// are the only safeguards. Hitting a cap returns the partial result set
// silently — boundary exhaustion is an expected outcome, not a fault.
func (e *Engine) AllPaths(ctx context.Context, graphID, from, to string, maxDepth, maxResults int) ([]*PathResult, error) {
	snap, err := e.loadSnapshot(ctx, graphID)
	if err != nil {
		return nil, err
	}

	if snap.graph.GetNode(from) == nil || snap.graph.GetNode(to) == nil {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxPaths
	}

	var results []*PathResult
	onPath := map[string]bool{from: true}
	pathNodes := []string{from}
	var pathRels []*graph.Relationship

	var walk func(current string, score float64)
	walk = func(current string, score float64) {
		if len(results) >= maxResults {
			return
		}
		if current == to {
			results = append(results, &PathResult{
				Found:         true,
				Path:          append([]string(nil), pathNodes...),
				Relationships: append([]*graph.Relationship(nil), pathRels...),
				Depth:         len(pathNodes) - 1,
				Score:         score,
			})
			return
		}
		if len(pathNodes)-1 >= maxDepth {
			return
		}

		for _, rel := range snap.neighbors[current] {
			neighbor := otherEnd(rel, current)
			if onPath[neighbor] {
				continue
			}
			onPath[neighbor] = true
			pathNodes = append(pathNodes, neighbor)
			pathRels = append(pathRels, rel)

			walk(neighbor, score+rel.Weight)

			pathRels = pathRels[:len(pathRels)-1]
			pathNodes = pathNodes[:len(pathNodes)-1]
			delete(onPath, neighbor)
		}
	}
	walk(from, 0)

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// Radius performs a single-source BFS and returns the hop distance of every
// node reachable within the radius, the source included at distance zero.
// The optional relTypes set restricts traversable relationships. A recorded
// distance is relaxed downward whenever a shorter path is found.
func (e *Engine) Radius(ctx context.Context, graphID, from string, radius int, relTypes ...graph.RelType) (map[string]int, error) {
	snap, err := e.loadSnapshot(ctx, graphID)
	if err != nil {
		return nil, err
	}

	if snap.graph.GetNode(from) == nil {
		return nil, nil
	}

	allowed := typeSet(relTypes)
	distances := map[string]int{from: 0}
	frontier := []string{from}

	for depth := 0; depth < radius && len(frontier) > 0; depth++ {
		var next []string
		for _, current := range frontier {
			for _, rel := range snap.neighbors[current] {
				if !typeAllowed(rel.Type, allowed) {
					continue
				}
				neighbor := otherEnd(rel, current)
				if d, ok := distances[neighbor]; ok && d <= depth+1 {
					continue
				}
				distances[neighbor] = depth + 1
				next = append(next, neighbor)
			}
		}
		frontier = next
	}

	return distances, nil
}

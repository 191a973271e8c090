package query

import (
	"context"

	"github.com/synapsegraph/synapse-go/internal/graph"
)

// StructuralAnalysis summarizes graph topology.
type StructuralAnalysis struct {
	// DegreeCentrality counts relationships touching each node.
	DegreeCentrality map[string]int `json:"degreeCentrality"`

	// DegreeDistribution maps a degree to the number of nodes with it.
	DegreeDistribution map[int]int `json:"degreeDistribution"`

	// StronglyConnected lists the strongly connected components of the
	// directed graph, each a node-ID slice.
	StronglyConnected [][]string `json:"stronglyConnected,omitempty"`

	// Cycles lists components that contain a directed cycle: every SCC of
	// size greater than one, plus single nodes with a self-loop.
	Cycles [][]string `json:"cycles,omitempty"`

	// Clustering maps each node to its local clustering coefficient over
	// the undirected neighbor graph.
	Clustering map[string]float64 `json:"clustering,omitempty"`
}

// Analyze computes degree centrality and the degree-distribution histogram,
// plus strongly connected components, cycle detection, and local clustering
// coefficients.
func (e *Engine) Analyze(ctx context.Context, graphID string) (*StructuralAnalysis, error) {
	snap, err := e.loadSnapshot(ctx, graphID)
	if err != nil {
		return nil, err
	}

	analysis := &StructuralAnalysis{
		DegreeCentrality:   make(map[string]int),
		DegreeDistribution: make(map[int]int),
		Clustering:         make(map[string]float64),
	}

	nodes := snap.graph.Nodes()
	for _, node := range nodes {
		degree := len(snap.neighbors[node.ID])
		analysis.DegreeCentrality[node.ID] = degree
		analysis.DegreeDistribution[degree]++
	}

	analysis.StronglyConnected = stronglyConnected(snap, nodes)
	analysis.Cycles = detectCycles(snap, analysis.StronglyConnected)

	for _, node := range nodes {
		analysis.Clustering[node.ID] = clusteringCoefficient(snap, node.ID)
	}

	return analysis, nil
}

// stronglyConnected runs Tarjan's algorithm over the directed edges.
func stronglyConnected(snap *snapshot, nodes []*graph.KnowledgeNode) [][]string {
	index := 0
	indices := make(map[string]int)
	lowlinks := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	var components [][]string

	var strongConnect func(v string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlinks[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, rel := range snap.graph.Outgoing(v) {
			w := rel.To
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				if lowlinks[w] < lowlinks[v] {
					lowlinks[v] = lowlinks[w]
				}
			} else if onStack[w] && indices[w] < lowlinks[v] {
				lowlinks[v] = indices[w]
			}
		}

		if lowlinks[v] == indices[v] {
			var component []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}
			components = append(components, component)
		}
	}

	for _, node := range nodes {
		if _, visited := indices[node.ID]; !visited {
			strongConnect(node.ID)
		}
	}
	return components
}

// detectCycles filters SCCs down to components that contain a directed
// cycle: size > 1, or a single node with a self-loop.
func detectCycles(snap *snapshot, components [][]string) [][]string {
	var cycles [][]string
	for _, component := range components {
		if len(component) > 1 {
			cycles = append(cycles, component)
			continue
		}
		id := component[0]
		for _, rel := range snap.graph.Outgoing(id) {
			if rel.To == id {
				cycles = append(cycles, component)
				break
			}
		}
	}
	return cycles
}

// clusteringCoefficient is the share of a node's undirected neighbor pairs
// that are themselves connected: 2·links / (k·(k−1)).
func clusteringCoefficient(snap *snapshot, nodeID string) float64 {
	neighborSet := make(map[string]bool)
	for _, rel := range snap.neighbors[nodeID] {
		other := otherEnd(rel, nodeID)
		if other != nodeID {
			neighborSet[other] = true
		}
	}

	k := len(neighborSet)
	if k < 2 {
		return 0
	}

	linked := make(map[string]bool)
	for neighbor := range neighborSet {
		for _, rel := range snap.graph.Outgoing(neighbor) {
			if rel.To != neighbor && neighborSet[rel.To] {
				a, b := neighbor, rel.To
				if b < a {
					a, b = b, a
				}
				linked[a+"\x00"+b] = true
			}
		}
	}

	return 2 * float64(len(linked)) / (float64(k) * float64(k-1))
}

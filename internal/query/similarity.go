package query

import (
	"context"
	"math"
	"sort"

	"github.com/synapsegraph/synapse-go/internal/graph"
	"github.com/synapsegraph/synapse-go/internal/textsim"
)

const (
	// similarityFloor drops candidates whose total score is below it.
	similarityFloor = 0.5

	// reasonThreshold is the sub-score above which a human-readable reason
	// is attached.
	reasonThreshold = 0.7
)

// SimilarityWeights weights the three similarity dimensions. The weights
// need not sum to 1.
type SimilarityWeights struct {
	Structural   float64 `json:"structural"`
	Semantic     float64 `json:"semantic"`
	Relationship float64 `json:"relationship"`
}

// DefaultSimilarityWeights weights the dimensions evenly.
var DefaultSimilarityWeights = SimilarityWeights{
	Structural:   0.4,
	Semantic:     0.4,
	Relationship: 0.2,
}

// SimilarityMatch is one candidate ranked by Similar.
type SimilarityMatch struct {
	Node *graph.KnowledgeNode `json:"node"`

	// Score is the weighted sum of the three dimension scores.
	Score float64 `json:"score"`

	// Reasons names the dimensions whose sub-score exceeded 0.7.
	Reasons []string `json:"reasons,omitempty"`
}

// Similar ranks every other node in the graph by similarity to the target
// node. Candidates scoring below 0.5 are dropped; survivors sort descending
// and truncate to limit (<= 0 means unbounded). An unknown target node is a
// normal empty result.
//
// Scoring is heuristic: structural compares type, language, size, and
// complexity; semantic compares purpose text, tags, and operation names;
// relationship compares the sets of relationship types touching each node.
func (e *Engine) Similar(ctx context.Context, graphID, nodeID string, weights SimilarityWeights, limit int) ([]*SimilarityMatch, error) {
	snap, err := e.loadSnapshot(ctx, graphID)
	if err != nil {
		return nil, err
	}

	target := snap.graph.GetNode(nodeID)
	if target == nil {
		return nil, nil
	}

	targetRelTypes := relationshipTypes(snap, nodeID)

	var matches []*SimilarityMatch
	for _, candidate := range snap.graph.Nodes() {
		if candidate.ID == nodeID {
			continue
		}

		structural := structuralScore(target, candidate)
		semantic := semanticScore(target, candidate)
		relational := textsim.Jaccard(targetRelTypes, relationshipTypes(snap, candidate.ID))

		score := structural*weights.Structural +
			semantic*weights.Semantic +
			relational*weights.Relationship
		if score < similarityFloor {
			continue
		}

		var reasons []string
		if structural > reasonThreshold {
			reasons = append(reasons, "similar structure")
		}
		if semantic > reasonThreshold {
			reasons = append(reasons, "similar semantics")
		}
		if relational > reasonThreshold {
			reasons = append(reasons, "similar relationships")
		}

		matches = append(matches, &SimilarityMatch{
			Node:    candidate,
			Score:   score,
			Reasons: reasons,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// structuralScore compares type, language, size, and complexity:
// 0.3·type + 0.2·language + 0.2·size closeness + 0.3·complexity closeness.
func structuralScore(a, b *graph.KnowledgeNode) float64 {
	score := 0.0
	if a.Type == b.Type {
		score += 0.3
	}
	if a.Metadata.Language == b.Metadata.Language {
		score += 0.2
	}
	score += 0.2 * relativeCloseness(float64(a.Size), float64(b.Size))
	score += 0.3 * relativeCloseness(float64(a.Metadata.Complexity), float64(b.Metadata.Complexity))
	return score
}

// semanticScore compares purpose text, tags, and operation names:
// 0.4·purpose similarity + 0.3·tag overlap + 0.3·operation overlap.
func semanticScore(a, b *graph.KnowledgeNode) float64 {
	return 0.4*textsim.Similarity(a.Semantics.Purpose, b.Semantics.Purpose) +
		0.3*textsim.Jaccard(a.Tags, b.Tags) +
		0.3*textsim.Jaccard(operationNames(a), operationNames(b))
}

// relativeCloseness is 1 − |a−b| / max(a, b), treating two zeros as equal.
func relativeCloseness(a, b float64) float64 {
	max := math.Max(a, b)
	if max == 0 {
		return 1
	}
	return 1 - math.Abs(a-b)/max
}

// relationshipTypes collects the distinct relationship types touching a
// node, from the snapshot's precomputed adjacency.
func relationshipTypes(snap *snapshot, nodeID string) []string {
	seen := make(map[graph.RelType]bool)
	var types []string
	for _, rel := range snap.neighbors[nodeID] {
		if !seen[rel.Type] {
			seen[rel.Type] = true
			types = append(types, string(rel.Type))
		}
	}
	return types
}

func operationNames(n *graph.KnowledgeNode) []string {
	names := make([]string, len(n.Semantics.Operations))
	for i, op := range n.Semantics.Operations {
		names[i] = op.Name
	}
	return names
}

package query

import (
	"context"
	"sort"
	"strings"

	"github.com/synapsegraph/synapse-go/internal/graph"
	"github.com/synapsegraph/synapse-go/internal/textsim"
)

// fuzzyThreshold is the minimum normalized similarity for a fuzzy match.
const fuzzyThreshold = 0.6

// defaultSearchFields are scanned when the caller names none.
var defaultSearchFields = []string{"name", "purpose", "description", "path"}

// searchFieldTable maps searchable field names to text extractors. This is
// the closed vocabulary of fields Search understands; unknown field names
// are skipped.
var searchFieldTable = map[string]func(*graph.KnowledgeNode) string{
	"name":        func(n *graph.KnowledgeNode) string { return n.Name },
	"purpose":     func(n *graph.KnowledgeNode) string { return n.Semantics.Purpose },
	"description": func(n *graph.KnowledgeNode) string { return n.Metadata.Documentation },
	"path":        func(n *graph.KnowledgeNode) string { return n.Path },
	"language":    func(n *graph.KnowledgeNode) string { return n.Metadata.Language },
	"tags":        func(n *graph.KnowledgeNode) string { return strings.Join(n.Tags, " ") },
}

// SearchOptions controls full-text search behavior.
type SearchOptions struct {
	// Fields names the node fields to scan. Empty uses the defaults:
	// name, purpose, description, path.
	Fields []string

	// Fuzzy switches from exact substring matching to edit-distance
	// similarity with a > 0.6 acceptance threshold.
	Fuzzy bool

	// Limit caps the number of results. <= 0 means unbounded.
	Limit int
}

// SearchMatch is one node matched by Search.
type SearchMatch struct {
	Node *graph.KnowledgeNode `json:"node"`

	// Score sums per-field match scores; name-field matches count double.
	Score float64 `json:"score"`

	// MatchedFields lists the fields that contributed to the score.
	MatchedFields []string `json:"matchedFields"`
}

// Search scans the chosen fields of every node for the term. The default
// mode is exact case-insensitive substring matching; fuzzy mode accepts
// normalized edit-distance similarity above 0.6. Results sort descending by
// score, ties keeping node insertion order.
func (e *Engine) Search(ctx context.Context, graphID, term string, opts SearchOptions) ([]*SearchMatch, error) {
	snap, err := e.loadSnapshot(ctx, graphID)
	if err != nil {
		return nil, err
	}

	fields := opts.Fields
	if len(fields) == 0 {
		fields = defaultSearchFields
	}
	needle := strings.ToLower(term)

	var matches []*SearchMatch
	for _, node := range snap.graph.Nodes() {
		var score float64
		var matchedFields []string

		for _, field := range fields {
			extract, ok := searchFieldTable[field]
			if !ok {
				continue
			}
			text := extract(node)
			if text == "" {
				continue
			}

			fieldScore := matchField(strings.ToLower(text), needle, opts.Fuzzy)
			if fieldScore <= 0 {
				continue
			}
			if field == "name" {
				fieldScore *= 2
			}
			score += fieldScore
			matchedFields = append(matchedFields, field)
		}

		if score > 0 {
			matches = append(matches, &SearchMatch{
				Node:          node,
				Score:         score,
				MatchedFields: matchedFields,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return matches, nil
}

// matchField scores one field against the lowercased term. Exact mode scores
// 1 for a substring hit; fuzzy mode scores the normalized similarity when it
// clears the acceptance threshold.
func matchField(text, needle string, fuzzy bool) float64 {
	if !fuzzy {
		if strings.Contains(text, needle) {
			return 1
		}
		return 0
	}

	sim := textsim.Similarity(text, needle)
	if sim > fuzzyThreshold {
		return sim
	}
	return 0
}

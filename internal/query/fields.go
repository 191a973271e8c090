package query

import (
	"github.com/synapsegraph/synapse-go/internal/graph"
)

// fieldAccessor extracts a field value from a node. The second return value
// reports presence: an absent field makes "exists" false and every other
// comparison false.
type fieldAccessor func(*graph.KnowledgeNode) (any, bool)

// fieldTable is the closed dispatch table of supported dot-separated field
// paths. This replaces open-ended reflective path lookup: the vocabulary
// below is exhaustive, and any path not listed resolves to absent.
var fieldTable = map[string]fieldAccessor{
	"id":   func(n *graph.KnowledgeNode) (any, bool) { return n.ID, true },
	"type": func(n *graph.KnowledgeNode) (any, bool) { return string(n.Type), true },
	"name": func(n *graph.KnowledgeNode) (any, bool) { return n.Name, true },
	"path": func(n *graph.KnowledgeNode) (any, bool) { return n.Path, true },
	"absolutePath": func(n *graph.KnowledgeNode) (any, bool) {
		return n.AbsolutePath, n.AbsolutePath != ""
	},
	"size": func(n *graph.KnowledgeNode) (any, bool) { return float64(n.Size), true },
	"lastModified": func(n *graph.KnowledgeNode) (any, bool) {
		return n.LastModified, !n.LastModified.IsZero()
	},
	"tags": func(n *graph.KnowledgeNode) (any, bool) { return n.Tags, len(n.Tags) > 0 },
	"metadata.language": func(n *graph.KnowledgeNode) (any, bool) {
		return n.Metadata.Language, n.Metadata.Language != ""
	},
	"metadata.linesOfCode": func(n *graph.KnowledgeNode) (any, bool) {
		return float64(n.Metadata.LinesOfCode), true
	},
	"metadata.complexity": func(n *graph.KnowledgeNode) (any, bool) {
		return float64(n.Metadata.Complexity), true
	},
	"metadata.maintainability": func(n *graph.KnowledgeNode) (any, bool) {
		return n.Metadata.Maintainability, true
	},
	"metadata.exports": func(n *graph.KnowledgeNode) (any, bool) {
		return n.Metadata.Exports, len(n.Metadata.Exports) > 0
	},
	"metadata.imports": func(n *graph.KnowledgeNode) (any, bool) {
		return n.Metadata.Imports, len(n.Metadata.Imports) > 0
	},
	"metadata.documentation": func(n *graph.KnowledgeNode) (any, bool) {
		return n.Metadata.Documentation, n.Metadata.Documentation != ""
	},
	"semantics.purpose": func(n *graph.KnowledgeNode) (any, bool) {
		return n.Semantics.Purpose, n.Semantics.Purpose != ""
	},
	"semantics.operations": func(n *graph.KnowledgeNode) (any, bool) {
		if len(n.Semantics.Operations) == 0 {
			return nil, false
		}
		names := make([]string, len(n.Semantics.Operations))
		for i, op := range n.Semantics.Operations {
			names[i] = op.Name
		}
		return names, true
	},
	"semantics.patterns": func(n *graph.KnowledgeNode) (any, bool) {
		if len(n.Semantics.Patterns) == 0 {
			return nil, false
		}
		names := make([]string, len(n.Semantics.Patterns))
		for i, p := range n.Semantics.Patterns {
			names[i] = p.Name
		}
		return names, true
	},
	"semantics.responsibilities": func(n *graph.KnowledgeNode) (any, bool) {
		return n.Semantics.Responsibilities, len(n.Semantics.Responsibilities) > 0
	},
	"errors": func(n *graph.KnowledgeNode) (any, bool) {
		return float64(len(n.Errors)), len(n.Errors) > 0
	},
}

// fieldValue resolves a field path against a node. Unknown paths are absent.
func fieldValue(n *graph.KnowledgeNode, path string) (any, bool) {
	accessor, ok := fieldTable[path]
	if !ok {
		return nil, false
	}
	return accessor(n)
}

// SupportedFields returns the field paths the dispatch table supports.
func SupportedFields() []string {
	fields := make([]string, 0, len(fieldTable))
	for f := range fieldTable {
		fields = append(fields, f)
	}
	return fields
}

// Package graph provides the knowledge graph data model for Synapse.
//
// It defines the core node and relationship types that represent code-level
// artifacts (files, modules, functions, classes, etc.) and the typed,
// weighted, directed edges between them (imports, calls, extends, etc.).
package graph

import "time"

// NodeType represents the type of a graph node.
type NodeType string

const (
	NodeFile      NodeType = "file"
	NodeModule    NodeType = "module"
	NodeFunction  NodeType = "function"
	NodeClass     NodeType = "class"
	NodeMethod    NodeType = "method"
	NodeInterface NodeType = "interface"
)

// RelType represents the type of relationship between graph nodes.
type RelType string

const (
	RelImports    RelType = "imports"
	RelCalls      RelType = "calls"
	RelExtends    RelType = "extends"
	RelImplements RelType = "implements"
	RelContains   RelType = "contains"
	RelDefines    RelType = "defines"
	RelReferences RelType = "references"
)

// NodeMetadata holds structural metadata extracted from source analysis.
type NodeMetadata struct {
	// Language is the programming language (e.g., "go", "python").
	Language string `json:"language,omitempty"`

	// LinesOfCode is the number of source lines the artifact spans.
	LinesOfCode int `json:"linesOfCode,omitempty"`

	// Complexity is the cyclomatic complexity.
	Complexity int `json:"complexity,omitempty"`

	// Maintainability is a maintainability index in [0, 100].
	Maintainability float64 `json:"maintainability,omitempty"`

	// Exports lists symbols the artifact exports.
	Exports []string `json:"exports,omitempty"`

	// Imports lists modules the artifact imports.
	Imports []string `json:"imports,omitempty"`

	// Documentation is the doc comment or description text.
	Documentation string `json:"documentation,omitempty"`
}

// Operation describes one callable operation an artifact provides.
type Operation struct {
	Name    string `json:"name"`
	Inputs  int    `json:"inputs"`
	Outputs int    `json:"outputs"`
}

// DataFlow describes what data an artifact consumes, produces, and transforms.
type DataFlow struct {
	Inputs     []string `json:"inputs,omitempty"`
	Outputs    []string `json:"outputs,omitempty"`
	Transforms []string `json:"transforms,omitempty"`
}

// Pattern is a detected design pattern with a confidence score in [0, 1].
type Pattern struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Semantics holds semantic metadata inferred from source analysis.
type Semantics struct {
	// Purpose is a short description of what the artifact is for.
	Purpose string `json:"purpose,omitempty"`

	// Operations lists the callable operations the artifact provides.
	Operations []Operation `json:"operations,omitempty"`

	// DataFlow describes inputs, outputs, and transforms.
	DataFlow DataFlow `json:"dataFlow,omitempty"`

	// Patterns lists detected design patterns.
	Patterns []Pattern `json:"patterns,omitempty"`

	// Responsibilities lists what the artifact is responsible for.
	Responsibilities []string `json:"responsibilities,omitempty"`
}

// NodeError records an analysis problem attached to a node.
type NodeError struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// KnowledgeNode represents one source artifact in the knowledge graph.
//
// The ID is unique within its graph and immutable once created; updates
// replace field values, never the ID, so external references stay valid
// across graph versions.
type KnowledgeNode struct {
	// ID is the unique identifier for the node.
	// Format: {type}:{path}:{name}
	ID string `json:"id"`

	// Type is the kind of artifact.
	Type NodeType `json:"type"`

	// Name is the name of the artifact (e.g., function name, file base name).
	Name string `json:"name"`

	// Path is the project-relative path of the containing file.
	Path string `json:"path"`

	// AbsolutePath is the absolute path of the containing file.
	AbsolutePath string `json:"absolutePath,omitempty"`

	// Size is the artifact size in bytes.
	Size int64 `json:"size,omitempty"`

	// LastModified is the modification time of the containing file.
	LastModified time.Time `json:"lastModified,omitempty"`

	// Metadata holds structural metadata.
	Metadata NodeMetadata `json:"metadata"`

	// Semantics holds semantic metadata.
	Semantics Semantics `json:"semantics"`

	// Tags is a set of free-form labels.
	Tags []string `json:"tags,omitempty"`

	// Errors lists analysis problems found for this artifact.
	Errors []NodeError `json:"errors,omitempty"`
}

// Relationship represents a typed, weighted, directed edge between two nodes.
// Many relationships may connect the same pair of nodes.
type Relationship struct {
	// ID is the unique identifier for the relationship.
	ID string `json:"id"`

	// From is the ID of the source node.
	From string `json:"from"`

	// To is the ID of the target node.
	To string `json:"to"`

	// Type is the relationship type.
	Type RelType `json:"type"`

	// Weight is a non-negative strength indicator.
	Weight float64 `json:"weight"`
}

// Statistics holds aggregate metrics for a graph, recomputed on structural change.
type Statistics struct {
	// AverageConnectivity is relationships per node.
	AverageConnectivity float64 `json:"averageConnectivity"`

	// MaxDepth is the longest containment chain observed in the graph.
	MaxDepth int `json:"maxDepth"`

	// DependencyCounts maps relationship types to their edge counts.
	DependencyCounts map[RelType]int `json:"dependencyCounts,omitempty"`

	// ErrorFrequency maps error types to occurrence counts across nodes.
	ErrorFrequency map[string]int `json:"errorFrequency,omitempty"`

	// PatternFrequency maps detected pattern names to occurrence counts.
	PatternFrequency map[string]int `json:"patternFrequency,omitempty"`
}

// GenerateNodeID creates a deterministic node ID from type, path, and name.
// Format: {type}:{path}:{name}
func GenerateNodeID(nodeType NodeType, path, name string) string {
	if name == "" {
		return string(nodeType) + ":" + path
	}
	return string(nodeType) + ":" + path + ":" + name
}

// GenerateRelID creates a deterministic relationship ID.
// Format: {type}:{from}->{to}
func GenerateRelID(relType RelType, from, to string) string {
	return string(relType) + ":" + from + "->" + to
}

package query

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/synapsegraph/synapse-go/internal/graph"
)

// Operator is a condition operator in a structured query.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startswith"
	OpEndsWith   Operator = "endswith"
	OpMatches    Operator = "matches"
	OpGreater    Operator = "greater"
	OpLess       Operator = "less"
	OpIn         Operator = "in"
	OpExists     Operator = "exists"
)

// Connector joins a condition with the one that follows it.
type Connector string

const (
	ConnectorAnd Connector = "and"
	ConnectorOr  Connector = "or"
)

// Condition is one predicate over a node field.
type Condition struct {
	// Field is a dot-separated path from the supported field vocabulary.
	Field string `json:"field"`

	// Operator selects the comparison. Unrecognized operators fail closed:
	// the condition evaluates false.
	Operator Operator `json:"operator"`

	// Value is the comparison operand. Unused for exists.
	Value any `json:"value,omitempty"`

	// Connector joins this condition's accumulated result with the next
	// condition. Empty defaults to and.
	Connector Connector `json:"connector,omitempty"`
}

// SortKey orders results by one field.
type SortKey struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending,omitempty"`
}

// Query is a structured select/where/orderBy/paginate query over nodes.
type Query struct {
	// Select is the node selector: ["*"] for all nodes, or explicit node IDs.
	// An empty selector is a validation error.
	Select []string `json:"select"`

	// Where lists conditions combined via a left fold: the accumulated
	// result of conditions 0..i is combined with condition i+1 using
	// condition i's connector. There is no and/or precedence; order matters.
	Where []Condition `json:"where,omitempty"`

	// OrderBy lists sort keys; ties break by subsequent keys in order.
	OrderBy []SortKey `json:"orderBy,omitempty"`

	// Offset is skipped after filter+sort; Limit then caps the result.
	// Limit <= 0 means unbounded.
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// IncludeRelationships adds relationships whose endpoints are both in
	// the matched node set.
	IncludeRelationships bool `json:"includeRelationships,omitempty"`

	// IncludeMetadata adds the aggregate metadata block.
	IncludeMetadata bool `json:"includeMetadata,omitempty"`
}

// ResultMetadata is the aggregate block computed over the full (pre-
// pagination) match set.
type ResultMetadata struct {
	CountsByType     map[graph.NodeType]int `json:"countsByType"`
	CountsByLanguage map[string]int         `json:"countsByLanguage"`
	TotalComplexity  int                    `json:"totalComplexity"`
	AverageSize      float64                `json:"averageSize"`
}

// Result is the outcome of one structured query.
type Result struct {
	Nodes         []*graph.KnowledgeNode `json:"nodes"`
	Relationships []*graph.Relationship  `json:"relationships,omitempty"`
	Metadata      *ResultMetadata        `json:"metadata,omitempty"`

	// Total is the match count before pagination.
	Total int `json:"total"`

	// ExecutionTime is how long evaluation took (cache hits keep the
	// original entry's value).
	ExecutionTime time.Duration `json:"executionTime"`
}

// Execute evaluates a structured query against the graph's current snapshot.
// An unknown graph ID returns ErrGraphNotFound; a missing selector returns
// ErrInvalidQuery. Identical queries within the cache TTL are served from
// the shared result cache.
func (e *Engine) Execute(ctx context.Context, graphID string, q Query) (*Result, error) {
	if len(q.Select) == 0 {
		return nil, fmt.Errorf("%w: empty selector", ErrInvalidQuery)
	}

	key, err := cacheKey(graphID, q)
	if err == nil {
		if cached, ok := e.cache.get(key); ok {
			return cached, nil
		}
	}

	started := time.Now()

	snap, err := e.loadSnapshot(ctx, graphID)
	if err != nil {
		return nil, err
	}

	candidates := selectNodes(snap.graph, q.Select)

	var matched []*graph.KnowledgeNode
	for _, node := range candidates {
		if evalConditions(node, q.Where) {
			matched = append(matched, node)
		}
	}

	sortNodes(matched, q.OrderBy)

	result := &Result{Total: len(matched)}

	if q.IncludeMetadata {
		result.Metadata = buildMetadata(matched)
	}

	if q.IncludeRelationships {
		result.Relationships = relationshipsAmong(snap.graph, matched)
	}

	result.Nodes = paginate(matched, q.Offset, q.Limit)

	result.ExecutionTime = time.Since(started)
	e.cache.put(key, result)

	return result, nil
}

// selectNodes resolves the selector: wildcard yields all nodes in insertion
// order, explicit IDs resolve in the given order with unknown IDs skipped.
func selectNodes(g *graph.KnowledgeGraph, selector []string) []*graph.KnowledgeNode {
	if len(selector) == 1 && selector[0] == "*" {
		return g.Nodes()
	}

	nodes := make([]*graph.KnowledgeNode, 0, len(selector))
	for _, id := range selector {
		if node := g.GetNode(id); node != nil {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// evalConditions folds the condition list left to right. The connector
// attached to condition i joins the accumulated result with condition i+1;
// there is no precedence rewriting, so reordering conditions changes the
// outcome.
func evalConditions(node *graph.KnowledgeNode, conds []Condition) bool {
	if len(conds) == 0 {
		return true
	}

	acc := evalCondition(node, conds[0])
	for i := 1; i < len(conds); i++ {
		next := evalCondition(node, conds[i])
		if conds[i-1].Connector == ConnectorOr {
			acc = acc || next
		} else {
			acc = acc && next
		}
	}
	return acc
}

// evalCondition evaluates one predicate. Absent fields make exists false and
// every other comparison false; unrecognized operators fail closed.
func evalCondition(node *graph.KnowledgeNode, cond Condition) bool {
	value, present := fieldValue(node, cond.Field)

	if cond.Operator == OpExists {
		return present
	}
	if !present {
		return false
	}

	switch cond.Operator {
	case OpEquals:
		return equalsValue(value, cond.Value)
	case OpContains:
		return containsValue(value, cond.Value)
	case OpStartsWith:
		return strings.HasPrefix(stringOf(value), stringOf(cond.Value))
	case OpEndsWith:
		return strings.HasSuffix(stringOf(value), stringOf(cond.Value))
	case OpMatches:
		re, err := regexp.Compile("(?i)" + stringOf(cond.Value))
		if err != nil {
			return false
		}
		return re.MatchString(stringOf(value))
	case OpGreater:
		a, okA := numberOf(value)
		b, okB := numberOf(cond.Value)
		return okA && okB && a > b
	case OpLess:
		a, okA := numberOf(value)
		b, okB := numberOf(cond.Value)
		return okA && okB && a < b
	case OpIn:
		return inValue(value, cond.Value)
	default:
		return false
	}
}

func equalsValue(value, operand any) bool {
	if a, okA := numberOf(value); okA {
		if b, okB := numberOf(operand); okB {
			return a == b
		}
	}
	return stringOf(value) == stringOf(operand)
}

// containsValue does case-insensitive substring matching. For list-valued
// fields, any element containing the operand matches.
func containsValue(value, operand any) bool {
	needle := strings.ToLower(stringOf(operand))
	if items, ok := stringsOf(value); ok {
		for _, item := range items {
			if strings.Contains(strings.ToLower(item), needle) {
				return true
			}
		}
		return false
	}
	return strings.Contains(strings.ToLower(stringOf(value)), needle)
}

// inValue checks membership of the field value in the operand list.
func inValue(value, operand any) bool {
	items, ok := stringsOf(operand)
	if !ok {
		return false
	}
	want := stringOf(value)
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

// sortNodes applies a stable multi-key sort. Ties break by subsequent keys
// in the order given; absent values order after present ones.
func sortNodes(nodes []*graph.KnowledgeNode, keys []SortKey) {
	if len(keys) == 0 {
		return
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		for _, key := range keys {
			cmp := compareField(nodes[i], nodes[j], key.Field)
			if cmp == 0 {
				continue
			}
			if key.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareField(a, b *graph.KnowledgeNode, field string) int {
	va, okA := fieldValue(a, field)
	vb, okB := fieldValue(b, field)

	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}

	if na, ok := numberOf(va); ok {
		if nb, ok := numberOf(vb); ok {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			default:
				return 0
			}
		}
	}

	return strings.Compare(stringOf(va), stringOf(vb))
}

// paginate skips offset entries, then takes limit. Limit <= 0 keeps the
// unbounded tail.
func paginate(nodes []*graph.KnowledgeNode, offset, limit int) []*graph.KnowledgeNode {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(nodes) {
		return nil
	}
	nodes = nodes[offset:]
	if limit > 0 && limit < len(nodes) {
		nodes = nodes[:limit]
	}
	return nodes
}

// relationshipsAmong returns relationships whose endpoints are both in the
// node set, in insertion order.
func relationshipsAmong(g *graph.KnowledgeGraph, nodes []*graph.KnowledgeNode) []*graph.Relationship {
	ids := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		ids[node.ID] = true
	}

	var rels []*graph.Relationship
	for _, rel := range g.Relationships() {
		if ids[rel.From] && ids[rel.To] {
			rels = append(rels, rel)
		}
	}
	return rels
}

// buildMetadata computes the aggregate block over the full match set.
func buildMetadata(nodes []*graph.KnowledgeNode) *ResultMetadata {
	meta := &ResultMetadata{
		CountsByType:     make(map[graph.NodeType]int),
		CountsByLanguage: make(map[string]int),
	}

	var totalSize int64
	for _, node := range nodes {
		meta.CountsByType[node.Type]++
		if node.Metadata.Language != "" {
			meta.CountsByLanguage[node.Metadata.Language]++
		}
		meta.TotalComplexity += node.Metadata.Complexity
		totalSize += node.Size
	}
	if len(nodes) > 0 {
		meta.AverageSize = float64(totalSize) / float64(len(nodes))
	}
	return meta
}

// stringOf renders any scalar value as a comparison string.
func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// numberOf converts numeric values (including JSON-decoded float64) to
// float64.
func numberOf(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

// stringsOf normalizes list values ([]string or JSON-decoded []any) into a
// string slice.
func stringsOf(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		items := make([]string, len(t))
		for i, item := range t {
			items[i] = stringOf(item)
		}
		return items, true
	default:
		return nil, false
	}
}

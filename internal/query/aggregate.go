package query

import (
	"context"
	"math"
	"sort"
)

// AggregateOp is one aggregation operation.
type AggregateOp string

const (
	AggCount    AggregateOp = "count"
	AggSum      AggregateOp = "sum"
	AggAvg      AggregateOp = "avg"
	AggMin      AggregateOp = "min"
	AggMax      AggregateOp = "max"
	AggDistinct AggregateOp = "distinct"
)

// AggregateSpec requests one aggregation over a node field, optionally
// partitioned by the value of a groupBy field.
type AggregateSpec struct {
	Field     string      `json:"field"`
	Operation AggregateOp `json:"operation"`
	GroupBy   string      `json:"groupBy,omitempty"`
}

// GroupValue carries whichever of count/sum/avg/min/max/distinct applies to
// the requested operation.
type GroupValue struct {
	Count    int      `json:"count,omitempty"`
	Sum      float64  `json:"sum,omitempty"`
	Avg      float64  `json:"avg,omitempty"`
	Min      float64  `json:"min,omitempty"`
	Max      float64  `json:"max,omitempty"`
	Distinct []string `json:"distinct,omitempty"`
}

// AggregateResult is the outcome of one AggregateSpec. Ungrouped specs fill
// Value; grouped specs fill Groups keyed by the groupBy value. Distinct sets
// are kept per group.
type AggregateResult struct {
	Field     string                 `json:"field"`
	Operation AggregateOp            `json:"operation"`
	Value     *GroupValue            `json:"value,omitempty"`
	Groups    map[string]*GroupValue `json:"groups,omitempty"`
}

// Aggregate evaluates each spec over the graph's nodes. Nodes where the
// aggregated field is absent are dropped from that spec; numeric operations
// additionally skip non-numeric values. The result map is keyed
// "<field>_<operation>". Specs with unrecognized operations are skipped.
func (e *Engine) Aggregate(ctx context.Context, graphID string, specs []AggregateSpec) (map[string]*AggregateResult, error) {
	snap, err := e.loadSnapshot(ctx, graphID)
	if err != nil {
		return nil, err
	}
	nodes := snap.graph.Nodes()

	results := make(map[string]*AggregateResult, len(specs))
	for _, spec := range specs {
		switch spec.Operation {
		case AggCount, AggSum, AggAvg, AggMin, AggMax, AggDistinct:
		default:
			continue
		}

		// Partition field values by group. The implicit single group is
		// keyed by the empty string when no groupBy is given.
		groups := make(map[string][]any)
		var groupOrder []string
		for _, node := range nodes {
			value, present := fieldValue(node, spec.Field)
			if !present {
				continue
			}

			groupKey := ""
			if spec.GroupBy != "" {
				gv, ok := fieldValue(node, spec.GroupBy)
				if !ok {
					continue
				}
				groupKey = stringOf(gv)
			}

			if _, ok := groups[groupKey]; !ok {
				groupOrder = append(groupOrder, groupKey)
			}
			groups[groupKey] = append(groups[groupKey], value)
		}

		result := &AggregateResult{Field: spec.Field, Operation: spec.Operation}
		if spec.GroupBy == "" {
			result.Value = reduceGroup(spec.Operation, groups[""])
		} else {
			result.Groups = make(map[string]*GroupValue, len(groups))
			for _, key := range groupOrder {
				result.Groups[key] = reduceGroup(spec.Operation, groups[key])
			}
		}
		results[spec.Field+"_"+string(spec.Operation)] = result
	}

	return results, nil
}

// reduceGroup applies one operation to a group's values.
func reduceGroup(op AggregateOp, values []any) *GroupValue {
	gv := &GroupValue{}

	switch op {
	case AggCount:
		gv.Count = len(values)

	case AggDistinct:
		seen := make(map[string]bool)
		for _, v := range values {
			s := stringOf(v)
			if !seen[s] {
				seen[s] = true
				gv.Distinct = append(gv.Distinct, s)
			}
		}
		sort.Strings(gv.Distinct)

	case AggSum, AggAvg, AggMin, AggMax:
		numbers := make([]float64, 0, len(values))
		for _, v := range values {
			if n, ok := numberOf(v); ok {
				numbers = append(numbers, n)
			}
		}
		if len(numbers) == 0 {
			return gv
		}

		sum := 0.0
		min := math.Inf(1)
		max := math.Inf(-1)
		for _, n := range numbers {
			sum += n
			min = math.Min(min, n)
			max = math.Max(max, n)
		}

		switch op {
		case AggSum:
			gv.Sum = sum
		case AggAvg:
			gv.Avg = sum / float64(len(numbers))
		case AggMin:
			gv.Min = min
		case AggMax:
			gv.Max = max
		}
	}

	return gv
}

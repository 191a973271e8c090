// Package mcp provides the MCP (Model Context Protocol) server for Synapse.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/synapsegraph/synapse-go/internal/query"
	"github.com/synapsegraph/synapse-go/internal/store"
)

// Server exposes the query engine over MCP stdio transport.
type Server struct {
	store  store.GraphStore
	engine *query.Engine
	server *mcp.Server
}

// Tool describes one MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource describes one MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates an MCP server over a graph store.
func NewServer(st store.GraphStore) *Server {
	s := &Server{
		store:  st,
		engine: query.NewEngine(st),
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "synapse-go",
		Version: "0.1.0",
	}, nil)

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	graphProp := &jsonschema.Schema{Type: "string", Description: "Graph ID to query"}

	return []Tool{
		{
			Name:        "synapse_query",
			Description: "Run a structured query against a knowledge graph: select nodes, filter with conditions, sort, and paginate.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"graph": graphProp,
					"query": {Type: "object", Description: "Structured query object (select/where/orderBy/limit/offset)"},
				},
				Required: []string{"graph", "query"},
			},
		},
		{
			Name:        "synapse_search",
			Description: "Full-text search over node names, purposes, documentation, and paths. Optional fuzzy matching.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"graph": graphProp,
					"term":  {Type: "string", Description: "Search term"},
					"fuzzy": {Type: "boolean", Description: "Accept approximate matches"},
					"limit": {Type: "integer", Description: "Maximum number of results"},
				},
				Required: []string{"graph", "term"},
			},
		},
		{
			Name:        "synapse_path",
			Description: "Find the shortest path between two nodes, treating relationships as undirected.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"graph":    graphProp,
					"from":     {Type: "string", Description: "Source node ID"},
					"to":       {Type: "string", Description: "Target node ID"},
					"maxDepth": {Type: "integer", Description: "Maximum path length in hops"},
				},
				Required: []string{"graph", "from", "to"},
			},
		},
		{
			Name:        "synapse_paths",
			Description: "Enumerate all simple paths between two nodes up to a depth bound, ranked by cumulative weight.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"graph":    graphProp,
					"from":     {Type: "string", Description: "Source node ID"},
					"to":       {Type: "string", Description: "Target node ID"},
					"maxDepth": {Type: "integer", Description: "Maximum path length in hops"},
					"maxPaths": {Type: "integer", Description: "Maximum number of paths to return"},
				},
				Required: []string{"graph", "from", "to"},
			},
		},
		{
			Name:        "synapse_radius",
			Description: "List every node within N hops of a source node, with hop distances.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"graph":  graphProp,
					"from":   {Type: "string", Description: "Source node ID"},
					"radius": {Type: "integer", Description: "Maximum hop distance"},
				},
				Required: []string{"graph", "from"},
			},
		},
		{
			Name:        "synapse_similar",
			Description: "Rank nodes by structural, semantic, and relationship similarity to a target node.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"graph": graphProp,
					"node":  {Type: "string", Description: "Target node ID"},
					"limit": {Type: "integer", Description: "Maximum number of results"},
				},
				Required: []string{"graph", "node"},
			},
		},
		{
			Name:        "synapse_aggregate",
			Description: "Aggregate node field values: count, sum, avg, min, max, or distinct, optionally grouped by another field.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"graph": graphProp,
					"specs": {
						Type:        "array",
						Items:       &jsonschema.Schema{Type: "object"},
						Description: "Aggregation specs (field/operation/groupBy)",
					},
				},
				Required: []string{"graph", "specs"},
			},
		},
		{
			Name:        "synapse_analyze",
			Description: "Structural analysis of a graph: degree centrality, strongly connected components, cycles, and clustering.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"graph": graphProp,
				},
				Required: []string{"graph"},
			},
		},
		{
			Name:        "synapse_list_graphs",
			Description: "List all stored knowledge graphs.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "synapse://overview",
			Name:        "Graph Store Overview",
			Description: "Stored graphs with node and relationship counts",
			MimeType:    "text/plain",
		},
		{
			URI:         "synapse://schema",
			Name:        "Graph Schema",
			Description: "Node and relationship types of the knowledge graph",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	graphID, _ := args["graph"].(string)

	switch name {
	case "synapse_query":
		return s.handleQuery(ctx, graphID, args["query"])
	case "synapse_search":
		term, _ := args["term"].(string)
		fuzzy, _ := args["fuzzy"].(bool)
		limit := intArg(args, "limit", 20)
		return s.handleSearch(ctx, graphID, term, fuzzy, limit)
	case "synapse_path":
		from, _ := args["from"].(string)
		to, _ := args["to"].(string)
		return s.handlePath(ctx, graphID, from, to, intArg(args, "maxDepth", 10))
	case "synapse_paths":
		from, _ := args["from"].(string)
		to, _ := args["to"].(string)
		return s.handlePaths(ctx, graphID, from, to, intArg(args, "maxDepth", 5), intArg(args, "maxPaths", 20))
	case "synapse_radius":
		from, _ := args["from"].(string)
		return s.handleRadius(ctx, graphID, from, intArg(args, "radius", 2))
	case "synapse_similar":
		nodeID, _ := args["node"].(string)
		return s.handleSimilar(ctx, graphID, nodeID, intArg(args, "limit", 10))
	case "synapse_aggregate":
		return s.handleAggregate(ctx, graphID, args["specs"])
	case "synapse_analyze":
		return s.handleAnalyze(ctx, graphID)
	case "synapse_list_graphs":
		return s.handleListGraphs(ctx)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "synapse://overview":
		return s.getOverview(ctx), nil
	case "synapse://schema":
		return getSchema(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// MCP requires compact JSON, one message per line.

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    "synapse-go",
				"version": "0.1.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// Tool handlers

func (s *Server) handleQuery(ctx context.Context, graphID string, rawQuery any) (string, error) {
	var q query.Query
	if err := remarshal(rawQuery, &q); err != nil {
		return "", fmt.Errorf("invalid query: %w", err)
	}

	result, err := s.engine.Execute(ctx, graphID, q)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Matched %d node(s) in %s:\n\n", result.Total, result.ExecutionTime))
	for i, node := range result.Nodes {
		sb.WriteString(fmt.Sprintf("%d. **%s** (%s)\n", i+1, node.Name, node.Type))
		sb.WriteString(fmt.Sprintf("   ID: %s\n", node.ID))
		if node.Path != "" {
			sb.WriteString(fmt.Sprintf("   Path: %s\n", node.Path))
		}
	}
	if len(result.Relationships) > 0 {
		sb.WriteString(fmt.Sprintf("\n%d relationship(s) among results:\n", len(result.Relationships)))
		for _, rel := range result.Relationships {
			sb.WriteString(fmt.Sprintf("- %s: %s -> %s\n", rel.Type, rel.From, rel.To))
		}
	}
	if result.Metadata != nil {
		sb.WriteString("\nBreakdown by type:\n")
		for _, nodeType := range sortedKeys(result.Metadata.CountsByType) {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", nodeType, result.Metadata.CountsByType[nodeType]))
		}
	}
	return sb.String(), nil
}

func (s *Server) handleSearch(ctx context.Context, graphID, term string, fuzzy bool, limit int) (string, error) {
	if term == "" {
		return "No search term provided", nil
	}

	matches, err := s.engine.Search(ctx, graphID, term, query.SearchOptions{Fuzzy: fuzzy, Limit: limit})
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "No results found", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d result(s) for '%s':\n\n", len(matches), term))
	for i, m := range matches {
		sb.WriteString(fmt.Sprintf("%d. **%s** (%s)\n", i+1, m.Node.Name, m.Node.Type))
		sb.WriteString(fmt.Sprintf("   Path: %s\n", m.Node.Path))
		sb.WriteString(fmt.Sprintf("   Score: %.3f via %s\n", m.Score, strings.Join(m.MatchedFields, ", ")))
	}
	return sb.String(), nil
}

func (s *Server) handlePath(ctx context.Context, graphID, from, to string, maxDepth int) (string, error) {
	result, err := s.engine.ShortestPath(ctx, graphID, from, to, maxDepth)
	if err != nil {
		return "", err
	}
	if !result.Found {
		return fmt.Sprintf("No path from %s to %s within %d hops.", from, to, maxDepth), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Path found (%d hop(s), score %.2f):\n\n", result.Depth, result.Score))
	for i, nodeID := range result.Path {
		if i > 0 {
			sb.WriteString(fmt.Sprintf("   via %s\n", result.Relationships[i-1].Type))
		}
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, nodeID))
	}
	return sb.String(), nil
}

func (s *Server) handlePaths(ctx context.Context, graphID, from, to string, maxDepth, maxPaths int) (string, error) {
	results, err := s.engine.AllPaths(ctx, graphID, from, to, maxDepth, maxPaths)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return fmt.Sprintf("No paths from %s to %s within %d hops.", from, to, maxDepth), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d path(s):\n\n", len(results)))
	for i, p := range results {
		sb.WriteString(fmt.Sprintf("%d. [%d hop(s), score %.2f] %s\n", i+1, p.Depth, p.Score, strings.Join(p.Path, " -> ")))
	}
	return sb.String(), nil
}

func (s *Server) handleRadius(ctx context.Context, graphID, from string, radius int) (string, error) {
	distances, err := s.engine.Radius(ctx, graphID, from, radius)
	if err != nil {
		return "", err
	}
	if len(distances) == 0 {
		return fmt.Sprintf("Node %s not found in graph.", from), nil
	}

	byDistance := make(map[int][]string)
	maxDist := 0
	for nodeID, dist := range distances {
		byDistance[dist] = append(byDistance[dist], nodeID)
		if dist > maxDist {
			maxDist = dist
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d node(s) within %d hop(s) of %s:\n\n", len(distances), radius, from))
	for d := 0; d <= maxDist; d++ {
		ids := byDistance[d]
		if len(ids) == 0 {
			continue
		}
		sort.Strings(ids)
		sb.WriteString(fmt.Sprintf("Distance %d:\n", d))
		for _, id := range ids {
			sb.WriteString(fmt.Sprintf("- %s\n", id))
		}
	}
	return sb.String(), nil
}

func (s *Server) handleSimilar(ctx context.Context, graphID, nodeID string, limit int) (string, error) {
	matches, err := s.engine.Similar(ctx, graphID, nodeID, query.DefaultSimilarityWeights, limit)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No similar nodes found for %s.", nodeID), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Nodes similar to %s:\n\n", nodeID))
	for i, m := range matches {
		sb.WriteString(fmt.Sprintf("%d. **%s** (%s) — %.3f\n", i+1, m.Node.Name, m.Node.Type, m.Score))
		if len(m.Reasons) > 0 {
			sb.WriteString(fmt.Sprintf("   %s\n", strings.Join(m.Reasons, "; ")))
		}
	}
	return sb.String(), nil
}

func (s *Server) handleAggregate(ctx context.Context, graphID string, rawSpecs any) (string, error) {
	var specs []query.AggregateSpec
	if err := remarshal(rawSpecs, &specs); err != nil {
		return "", fmt.Errorf("invalid aggregation specs: %w", err)
	}

	results, err := s.engine.Aggregate(ctx, graphID, specs)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Server) handleAnalyze(ctx context.Context, graphID string) (string, error) {
	analysis, err := s.engine.Analyze(ctx, graphID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("## Structural Analysis\n\n")
	sb.WriteString(fmt.Sprintf("Nodes analyzed: %d\n", len(analysis.DegreeCentrality)))
	sb.WriteString(fmt.Sprintf("Strongly connected components: %d\n", len(analysis.StronglyConnected)))
	sb.WriteString(fmt.Sprintf("Cyclic components: %d\n\n", len(analysis.Cycles)))

	sb.WriteString("Degree distribution:\n")
	degrees := make([]int, 0, len(analysis.DegreeDistribution))
	for d := range analysis.DegreeDistribution {
		degrees = append(degrees, d)
	}
	sort.Ints(degrees)
	for _, d := range degrees {
		sb.WriteString(fmt.Sprintf("- degree %d: %d node(s)\n", d, analysis.DegreeDistribution[d]))
	}

	if len(analysis.Cycles) > 0 {
		sb.WriteString("\nCycles:\n")
		for _, cycle := range analysis.Cycles {
			sb.WriteString(fmt.Sprintf("- %s\n", strings.Join(cycle, " -> ")))
		}
	}
	return sb.String(), nil
}

func (s *Server) handleListGraphs(ctx context.Context) (string, error) {
	ids, err := s.store.ListGraphIDs(ctx)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "No graphs stored yet. Run `synapse analyze` to index a project.", nil
	}

	var sb strings.Builder
	sb.WriteString("## Stored Graphs\n\n")
	for _, id := range ids {
		g, loadErr := s.store.LoadGraph(ctx, id)
		if loadErr != nil || g == nil {
			sb.WriteString(fmt.Sprintf("- %s\n", id))
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s: %d nodes, %d relationships (v%d)\n",
			id, g.NodeCount(), g.RelationshipCount(), g.Version()))
	}
	return sb.String(), nil
}

// Resource handlers

func (s *Server) getOverview(ctx context.Context) string {
	var sb strings.Builder
	sb.WriteString("# Synapse Graph Store Overview\n\n")

	ids, err := s.store.ListGraphIDs(ctx)
	if err != nil || len(ids) == 0 {
		sb.WriteString("No graphs stored.\n")
		return sb.String()
	}

	for _, id := range ids {
		g, loadErr := s.store.LoadGraph(ctx, id)
		if loadErr != nil || g == nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("**%s** (v%d)\n", id, g.Version()))
		sb.WriteString(fmt.Sprintf("- Project: %s\n", g.ProjectPath()))
		sb.WriteString(fmt.Sprintf("- Nodes: %d\n", g.NodeCount()))
		sb.WriteString(fmt.Sprintf("- Relationships: %d\n\n", g.RelationshipCount()))
	}
	return sb.String()
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# Synapse Knowledge Graph Schema\n\n")
	sb.WriteString("## Node Types\n\n")
	sb.WriteString("| Type | Description |\n")
	sb.WriteString("|------|-------------|\n")
	sb.WriteString("| `file` | Source file |\n")
	sb.WriteString("| `module` | Directory / package |\n")
	sb.WriteString("| `function` | Function definition |\n")
	sb.WriteString("| `class` | Class or struct definition |\n")
	sb.WriteString("| `method` | Method with a receiver |\n")
	sb.WriteString("| `interface` | Interface definition |\n")
	sb.WriteString("\n## Relationship Types\n\n")
	sb.WriteString("| Type | Source -> Target |\n")
	sb.WriteString("|------|------------------|\n")
	sb.WriteString("| `contains` | Module -> File/Module |\n")
	sb.WriteString("| `defines` | File -> Symbol |\n")
	sb.WriteString("| `calls` | Symbol -> Symbol |\n")
	sb.WriteString("| `imports` | File -> Module |\n")
	sb.WriteString("| `extends` | Class -> Class |\n")
	sb.WriteString("| `implements` | Class -> Interface |\n")
	sb.WriteString("| `references` | Symbol -> Symbol |\n")
	return sb.String()
}

// Helper functions

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

// remarshal converts loosely-typed JSON-RPC arguments into a typed value.
func remarshal(raw any, out any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func intArg(args map[string]any, key string, fallback int) int {
	if v, ok := args[key].(float64); ok && v != 0 {
		return int(v)
	}
	return fallback
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Package cmd provides CLI command implementations for Synapse.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/synapsegraph/synapse-go/internal/ingest"
	"github.com/synapsegraph/synapse-go/internal/query"
	"github.com/synapsegraph/synapse-go/internal/store"
	"github.com/synapsegraph/synapse-go/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// AnalyzeCmd builds the knowledge graph for a project.
type AnalyzeCmd struct {
	Path string `arg:"" optional:"" default:"." help:"Path to project"`
}

// Run executes the analyze command.
func (c *AnalyzeCmd) Run() error {
	ctx := context.Background()
	projectPath, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(projectPath)
	if err != nil {
		return fmt.Errorf("accessing %s: %w", projectPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", projectPath)
	}

	color.Green("Analyzing %s", projectPath)

	synapseDir := filepath.Join(projectPath, ".synapse")
	if err := os.MkdirAll(synapseDir, 0o755); err != nil {
		return fmt.Errorf("creating .synapse directory: %w", err)
	}

	st := store.NewBadgerStore()
	if err := st.Initialize(filepath.Join(synapseDir, "badger")); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer func() { _ = st.Close() }()

	started := time.Now()
	g, err := ingest.Generate(ctx, projectPath)
	if err != nil {
		return fmt.Errorf("generating graph: %w", err)
	}

	// Carry the stored version sequence forward on re-analysis.
	if prev, loadErr := st.LoadGraph(ctx, g.ID()); loadErr == nil && prev != nil {
		g.SetVersion(prev.Version())
		g.BumpVersion()
	}

	if err := st.StoreGraph(ctx, g); err != nil {
		return fmt.Errorf("storing graph: %w", err)
	}

	meta := map[string]any{
		"version": Version,
		"graph":   g.ID(),
		"name":    filepath.Base(projectPath),
		"path":    projectPath,
		"stats": map[string]any{
			"nodes":         g.NodeCount(),
			"relationships": g.RelationshipCount(),
			"duration_secs": time.Since(started).Seconds(),
		},
		"analyzed_at": time.Now().UTC().Format(time.RFC3339),
	}
	metaJSON, _ := json.MarshalIndent(meta, "", "  ")
	if err := os.WriteFile(filepath.Join(synapseDir, "meta.json"), metaJSON, 0o644); err != nil {
		return fmt.Errorf("writing meta.json: %w", err)
	}

	stats := g.Statistics()
	color.Green("\n✓ Analysis complete")
	fmt.Printf("  Graph:          %s (v%d)\n", g.ID(), g.Version())
	fmt.Printf("  Nodes:          %d\n", g.NodeCount())
	fmt.Printf("  Relationships:  %d\n", g.RelationshipCount())
	fmt.Printf("  Connectivity:   %.2f\n", stats.AverageConnectivity)
	fmt.Printf("  Duration:       %.2fs\n", time.Since(started).Seconds())

	return nil
}

// QueryCmd runs a structured query against the knowledge graph.
type QueryCmd struct {
	Query  string `arg:"" help:"Structured query as JSON"`
	Limit  int    `short:"n" default:"0" help:"Override result limit"`
	Offset int    `default:"0" help:"Override result offset"`
}

// Run executes the query command.
func (c *QueryCmd) Run() error {
	ctx := context.Background()
	st, graphID, err := loadStorage()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	var q query.Query
	if err := json.Unmarshal([]byte(c.Query), &q); err != nil {
		return fmt.Errorf("parsing query: %w", err)
	}
	if c.Limit > 0 {
		q.Limit = c.Limit
	}
	if c.Offset > 0 {
		q.Offset = c.Offset
	}

	engine := query.NewEngine(st)
	result, err := engine.Execute(ctx, graphID, q)
	if err != nil {
		return fmt.Errorf("executing query: %w", err)
	}

	if len(result.Nodes) == 0 {
		fmt.Println("No matching nodes")
		return nil
	}

	fmt.Printf("Matched %d node(s) in %s\n", result.Total, result.ExecutionTime)
	for i, node := range result.Nodes {
		fmt.Printf("\n%d. %s (%s)\n", i+1, node.Name, node.Type)
		fmt.Printf("   ID: %s\n", node.ID)
		if node.Path != "" {
			fmt.Printf("   Path: %s\n", node.Path)
		}
		if node.Metadata.Language != "" {
			fmt.Printf("   Language: %s\n", node.Metadata.Language)
		}
	}

	if len(result.Relationships) > 0 {
		fmt.Printf("\nRelationships among results (%d):\n", len(result.Relationships))
		for _, rel := range result.Relationships {
			fmt.Printf("  %s: %s -> %s\n", rel.Type, rel.From, rel.To)
		}
	}

	if result.Metadata != nil {
		fmt.Println("\nBreakdown:")
		for _, nodeType := range sortedKeys(result.Metadata.CountsByType) {
			fmt.Printf("  %s: %d\n", nodeType, result.Metadata.CountsByType[nodeType])
		}
		fmt.Printf("  avg size: %.1f, total complexity: %d\n",
			result.Metadata.AverageSize, result.Metadata.TotalComplexity)
	}

	return nil
}

// SearchCmd performs full-text search over node content.
type SearchCmd struct {
	Term  string   `arg:"" help:"Search term"`
	Fuzzy bool     `help:"Accept approximate matches"`
	Field []string `short:"f" help:"Fields to search (name, purpose, description, path, language, tags)"`
	Limit int      `short:"n" default:"20" help:"Maximum results"`
}

// Run executes the search command.
func (c *SearchCmd) Run() error {
	ctx := context.Background()
	st, graphID, err := loadStorage()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	engine := query.NewEngine(st)
	matches, err := engine.Search(ctx, graphID, c.Term, query.SearchOptions{
		Fields: c.Field,
		Fuzzy:  c.Fuzzy,
		Limit:  c.Limit,
	})
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if len(matches) == 0 {
		fmt.Println("No results found")
		return nil
	}

	for i, m := range matches {
		fmt.Printf("\n%d. %s (%s)\n", i+1, m.Node.Name, m.Node.Type)
		fmt.Printf("   Path: %s\n", m.Node.Path)
		fmt.Printf("   Score: %.3f via %s\n", m.Score, strings.Join(m.MatchedFields, ", "))
	}

	return nil
}

// PathCmd finds the shortest path between two nodes.
type PathCmd struct {
	From     string `arg:"" help:"Source node ID"`
	To       string `arg:"" help:"Target node ID"`
	MaxDepth int    `short:"d" default:"10" help:"Maximum path length in hops"`
}

// Run executes the path command.
func (c *PathCmd) Run() error {
	ctx := context.Background()
	st, graphID, err := loadStorage()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	engine := query.NewEngine(st)
	result, err := engine.ShortestPath(ctx, graphID, c.From, c.To, c.MaxDepth)
	if err != nil {
		return fmt.Errorf("finding path: %w", err)
	}

	if !result.Found {
		fmt.Printf("No path from %s to %s within %d hops\n", c.From, c.To, c.MaxDepth)
		fmt.Printf("(visited %d node(s))\n", len(result.Visited))
		return nil
	}

	color.Green("Path found: %d hop(s), score %.2f", result.Depth, result.Score)
	for i, nodeID := range result.Path {
		if i > 0 {
			fmt.Printf("   │ %s\n", result.Relationships[i-1].Type)
		}
		fmt.Printf("%d. %s\n", i+1, nodeID)
	}

	return nil
}

// PathsCmd enumerates all simple paths between two nodes.
type PathsCmd struct {
	From     string `arg:"" help:"Source node ID"`
	To       string `arg:"" help:"Target node ID"`
	MaxDepth int    `short:"d" default:"5" help:"Maximum path length in hops"`
	MaxPaths int    `short:"n" default:"20" help:"Maximum number of paths"`
}

// Run executes the paths command.
func (c *PathsCmd) Run() error {
	ctx := context.Background()
	st, graphID, err := loadStorage()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	engine := query.NewEngine(st)
	results, err := engine.AllPaths(ctx, graphID, c.From, c.To, c.MaxDepth, c.MaxPaths)
	if err != nil {
		return fmt.Errorf("enumerating paths: %w", err)
	}

	if len(results) == 0 {
		fmt.Printf("No paths from %s to %s within %d hops\n", c.From, c.To, c.MaxDepth)
		return nil
	}

	fmt.Printf("Found %d path(s):\n", len(results))
	for i, p := range results {
		fmt.Printf("\n%d. %d hop(s), score %.2f\n", i+1, p.Depth, p.Score)
		fmt.Printf("   %s\n", strings.Join(p.Path, " -> "))
	}

	return nil
}

// RadiusCmd lists nodes within N hops of a source node.
type RadiusCmd struct {
	From   string `arg:"" help:"Source node ID"`
	Radius int    `arg:"" optional:"" default:"2" help:"Maximum hop distance"`
}

// Run executes the radius command.
func (c *RadiusCmd) Run() error {
	ctx := context.Background()
	st, graphID, err := loadStorage()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	engine := query.NewEngine(st)
	distances, err := engine.Radius(ctx, graphID, c.From, c.Radius)
	if err != nil {
		return fmt.Errorf("computing radius: %w", err)
	}

	if len(distances) == 0 {
		fmt.Printf("Node %s not found\n", c.From)
		return nil
	}

	byDistance := make(map[int][]string)
	for nodeID, dist := range distances {
		byDistance[dist] = append(byDistance[dist], nodeID)
	}

	fmt.Printf("%d node(s) within %d hop(s) of %s:\n", len(distances), c.Radius, c.From)
	for d := 0; d <= c.Radius; d++ {
		ids := byDistance[d]
		if len(ids) == 0 {
			continue
		}
		sort.Strings(ids)
		fmt.Printf("\nDistance %d (%d):\n", d, len(ids))
		for _, id := range ids {
			fmt.Printf("  %s\n", id)
		}
	}

	return nil
}

// SimilarCmd ranks nodes by similarity to a target node.
type SimilarCmd struct {
	Node  string `arg:"" help:"Target node ID"`
	Limit int    `short:"n" default:"10" help:"Maximum results"`
}

// Run executes the similar command.
func (c *SimilarCmd) Run() error {
	ctx := context.Background()
	st, graphID, err := loadStorage()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	engine := query.NewEngine(st)
	matches, err := engine.Similar(ctx, graphID, c.Node, query.DefaultSimilarityWeights, c.Limit)
	if err != nil {
		return fmt.Errorf("ranking similarity: %w", err)
	}

	if len(matches) == 0 {
		fmt.Printf("No similar nodes found for %s\n", c.Node)
		return nil
	}

	fmt.Printf("Nodes similar to %s:\n", c.Node)
	for i, m := range matches {
		fmt.Printf("\n%d. %s (%s) — %.3f\n", i+1, m.Node.Name, m.Node.Type, m.Score)
		fmt.Printf("   Path: %s\n", m.Node.Path)
		if len(m.Reasons) > 0 {
			fmt.Printf("   %s\n", strings.Join(m.Reasons, "; "))
		}
	}

	return nil
}

// AggregateCmd aggregates node field values.
type AggregateCmd struct {
	Field     string `arg:"" help:"Field to aggregate (e.g. metadata.complexity)"`
	Operation string `arg:"" help:"Operation: count, sum, avg, min, max, distinct"`
	GroupBy   string `short:"g" help:"Field to group results by"`
}

// Run executes the aggregate command.
func (c *AggregateCmd) Run() error {
	ctx := context.Background()
	st, graphID, err := loadStorage()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	engine := query.NewEngine(st)
	results, err := engine.Aggregate(ctx, graphID, []query.AggregateSpec{{
		Field:     c.Field,
		Operation: query.AggregateOp(c.Operation),
		GroupBy:   c.GroupBy,
	}})
	if err != nil {
		return fmt.Errorf("aggregating: %w", err)
	}

	if len(results) == 0 {
		return fmt.Errorf("unknown operation: %s", c.Operation)
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	fmt.Println(string(data))

	return nil
}

// InspectCmd runs structural analysis over the graph.
type InspectCmd struct {
	Top int `short:"n" default:"10" help:"Number of top-degree nodes to show"`
}

// Run executes the inspect command.
func (c *InspectCmd) Run() error {
	ctx := context.Background()
	st, graphID, err := loadStorage()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	engine := query.NewEngine(st)
	analysis, err := engine.Analyze(ctx, graphID)
	if err != nil {
		return fmt.Errorf("analyzing graph: %w", err)
	}

	fmt.Printf("Structural analysis of %s\n\n", graphID)
	fmt.Printf("  Nodes:                %d\n", len(analysis.DegreeCentrality))
	fmt.Printf("  Connected components: %d\n", len(analysis.StronglyConnected))
	fmt.Printf("  Cyclic components:    %d\n", len(analysis.Cycles))

	type ranked struct {
		id     string
		degree int
	}
	top := make([]ranked, 0, len(analysis.DegreeCentrality))
	for id, degree := range analysis.DegreeCentrality {
		top = append(top, ranked{id, degree})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].degree != top[j].degree {
			return top[i].degree > top[j].degree
		}
		return top[i].id < top[j].id
	})
	if len(top) > c.Top {
		top = top[:c.Top]
	}

	fmt.Println("\nMost connected nodes:")
	for _, r := range top {
		fmt.Printf("  %4d  %s\n", r.degree, r.id)
	}

	if len(analysis.Cycles) > 0 {
		color.Yellow("\nCycles detected:")
		for _, cycle := range analysis.Cycles {
			fmt.Printf("  %s\n", strings.Join(cycle, " -> "))
		}
	}

	return nil
}

// WatchCmd rebuilds the graph when project files change.
type WatchCmd struct{}

// Run executes the watch command.
func (c *WatchCmd) Run() error {
	projectPath, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	st, _, err := loadStorage()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	fmt.Printf("Watching %s for changes (Ctrl+C to stop)\n", projectPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-osSignalChannel()
		fmt.Println("\nStopping watch mode...")
		cancel()
	}()

	err = ingest.WatchProject(ctx, projectPath, st)
	if err != nil && err != context.Canceled {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Println("Watch mode stopped.")
	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct{}

// Run executes the mcp command.
func (c *MCPCmd) Run() error {
	ctx := context.Background()
	st, _, err := loadStorage()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	server := mcp.NewServer(st)

	// No stderr output here: stdio carries JSON-RPC only.
	return server.Run(ctx, os.Stdin, os.Stdout)
}

// ServeCmd starts the MCP server with optional watch mode.
type ServeCmd struct {
	Watch bool `short:"w" help:"Enable file watching"`
}

// Run executes the serve command.
func (c *ServeCmd) Run() error {
	ctx := context.Background()
	st, _, err := loadStorage()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	server := mcp.NewServer(st)

	if c.Watch {
		fmt.Fprintln(os.Stderr, "Starting MCP server with watch mode...")

		projectPath, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}

		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		go func() {
			err := ingest.WatchProject(watchCtx, projectPath, st)
			if err != nil && err != context.Canceled {
				fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
			}
		}()
	} else {
		fmt.Fprintln(os.Stderr, "Starting MCP server...")
	}

	return server.Run(ctx, os.Stdin, os.Stdout)
}

// ListCmd lists stored knowledge graphs.
type ListCmd struct{}

// Run executes the list command.
func (c *ListCmd) Run() error {
	ctx := context.Background()
	st, _, err := loadStorage()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ids, err := st.ListGraphIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing graphs: %w", err)
	}

	if len(ids) == 0 {
		fmt.Println("No graphs stored")
		return nil
	}

	fmt.Println("Stored graphs:")
	for _, id := range ids {
		g, loadErr := st.LoadGraph(ctx, id)
		if loadErr != nil || g == nil {
			fmt.Printf("\n  %s\n", id)
			continue
		}
		fmt.Printf("\n  %s (v%d)\n", id, g.Version())
		fmt.Printf("    Project:       %s\n", g.ProjectPath())
		fmt.Printf("    Nodes:         %d\n", g.NodeCount())
		fmt.Printf("    Relationships: %d\n", g.RelationshipCount())
		fmt.Printf("    Updated:       %s\n", g.LastUpdated().Format(time.RFC3339))
	}

	return nil
}

// StatusCmd shows analysis status for the current project.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run() error {
	projectPath, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	metaPath := filepath.Join(projectPath, ".synapse", "meta.json")
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no graph found at %s. Run 'synapse analyze' first", projectPath)
		}
		return fmt.Errorf("reading meta.json: %w", err)
	}

	var meta map[string]any
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return fmt.Errorf("parsing meta.json: %w", err)
	}

	fmt.Printf("Graph status for %s\n", projectPath)
	if graphID, ok := meta["graph"].(string); ok {
		fmt.Printf("  Graph:          %s\n", graphID)
	}
	if version, ok := meta["version"].(string); ok {
		fmt.Printf("  Version:        %s\n", version)
	}
	if analyzedAt, ok := meta["analyzed_at"].(string); ok {
		fmt.Printf("  Last analyzed:  %s\n", analyzedAt)
	}
	if stats, ok := meta["stats"].(map[string]any); ok {
		if nodes, ok := stats["nodes"].(float64); ok {
			fmt.Printf("  Nodes:          %.0f\n", nodes)
		}
		if rels, ok := stats["relationships"].(float64); ok {
			fmt.Printf("  Relationships:  %.0f\n", rels)
		}
	}

	return nil
}

// CleanCmd deletes the graph data for the current project.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run() error {
	projectPath, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	synapseDir := filepath.Join(projectPath, ".synapse")
	if _, err := os.Stat(synapseDir); os.IsNotExist(err) {
		return fmt.Errorf("no graph found at %s. Nothing to clean", projectPath)
	}

	if !c.Force {
		fmt.Printf("Delete graph data at %s? [y/N] ", synapseDir)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(synapseDir); err != nil {
		return fmt.Errorf("deleting graph data: %w", err)
	}

	color.Green("Deleted %s", synapseDir)
	return nil
}

// Helper functions

// osSignalChannel returns a channel that receives OS signals for graceful
// shutdown.
func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

// loadStorage opens the current project's graph store and returns its graph
// ID alongside it.
func loadStorage() (*store.BadgerStore, string, error) {
	projectPath, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("getting working directory: %w", err)
	}

	dbPath := filepath.Join(projectPath, ".synapse", "badger")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, "", fmt.Errorf("no graph found at %s. Run 'synapse analyze' first", projectPath)
	}

	st := store.NewBadgerStore()
	if err := st.Initialize(dbPath); err != nil {
		return nil, "", fmt.Errorf("initializing storage: %w", err)
	}

	return st, ingest.GraphIDForPath(projectPath), nil
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Verbose bool             `short:"v" help:"Enable verbose output"`
	Quiet   bool             `short:"q" help:"Suppress non-essential output"`

	// Commands
	Analyze   AnalyzeCmd   `cmd:"" help:"Build the knowledge graph for a project"`
	Query     QueryCmd     `cmd:"" help:"Run a structured query (JSON) against the graph"`
	Search    SearchCmd    `cmd:"" help:"Full-text search over node content"`
	Path      PathCmd      `cmd:"" help:"Find the shortest path between two nodes"`
	Paths     PathsCmd     `cmd:"" help:"Enumerate all paths between two nodes"`
	Radius    RadiusCmd    `cmd:"" help:"List nodes within N hops of a node"`
	Similar   SimilarCmd   `cmd:"" help:"Rank nodes by similarity to a target node"`
	Aggregate AggregateCmd `cmd:"" help:"Aggregate node field values"`
	Inspect   InspectCmd   `cmd:"" help:"Structural analysis of the graph"`
	Watch     WatchCmd     `cmd:"" help:"Rebuild the graph on file changes"`
	MCP       MCPCmd       `cmd:"" help:"Start MCP server (stdio transport)"`
	Serve     ServeCmd     `cmd:"" help:"Start MCP server with optional watch mode"`
	List      ListCmd      `cmd:"" help:"List stored knowledge graphs"`
	Status    StatusCmd    `cmd:"" help:"Show analysis status for the current project"`
	Clean     CleanCmd     `cmd:"" help:"Delete graph data for the current project"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	kongCtx := kong.Parse(c,
		kong.Name("synapse"),
		kong.Description("Knowledge-graph query engine for codebases"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)

	return kongCtx.Run()
}

// Synapse - Knowledge-graph query engine for codebases.
//
// Synapse builds a structural knowledge graph from a source tree and
// answers structured queries, path searches, similarity rankings, and
// aggregations over it.
package main

import (
	"fmt"
	"os"

	"github.com/synapsegraph/synapse-go/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

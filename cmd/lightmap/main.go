// The lightmap binary is the command line client: local mapping resolution,
// dictionary queries, and coverage analysis.
package main

import (
	"os"

	"github.com/turtacn/LightMap-Intelligence/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

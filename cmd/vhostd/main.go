// vhostd CLI - command-line interface for the vhostd server
package main

import "github.com/getmockd/vhostd/pkg/cli"

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cli.Version, cli.Commit, cli.BuildDate = Version, Commit, BuildDate
	cli.Execute()
}

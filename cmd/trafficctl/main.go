// Package main provides the entrypoint for trafficctl, the TrafficLens
// admin CLI.
package main

import (
	"os"

	"github.com/trafficlens/trafficlens/internal/cli"
)

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	if err := cli.BuildCLI(Version).Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main is the entry point for marketplace-agent
package main

import (
	"os"

	"github.com/homeservice/marketplace-agent/internal/cli"
)

// version is set at build time via ldflags
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// ABOUTME: compass binary: triages contact exports into audience buckets
// ABOUTME: Release builds stamp version, commit and date here via ldflags
package main

import (
	"fmt"
	"os"

	"github.com/harper/contact-compass/cmd/compass/commands"
)

// Overridden with -ldflags "-X main.version=..." by the release build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "compass: %v\n", err)
		os.Exit(1)
	}
}

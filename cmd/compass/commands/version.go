// ABOUTME: compass version command reporting the build and store schema
// ABOUTME: Falls back to Go module build info for binaries built with go install
package commands

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/harper/contact-compass/internal/storage/sqlite"
)

var versionInfo = VersionInfo{
	Version: "dev",
	Commit:  "none",
	Date:    "unknown",
}

// VersionInfo is what compass reports about its build
type VersionInfo struct {
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	Date          string `json:"date"`
	SchemaVersion int    `json:"schema_version"`
}

// SetVersion records release metadata stamped into main at link time
func SetVersion(version, commit, date string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.Date = date
}

// currentVersion fills gaps in the link-time metadata from the module build
// info, so `go install ...@v1.2.0` still reports v1.2.0.
func currentVersion(read func() (*debug.BuildInfo, bool)) VersionInfo {
	v := versionInfo
	v.SchemaVersion = sqlite.SchemaVersion
	if v.Version != "dev" {
		return v
	}
	bi, ok := read()
	if !ok {
		return v
	}
	if mv := bi.Main.Version; mv != "" && mv != "(devel)" {
		v.Version = mv
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if v.Commit == "none" {
				v.Commit = s.Value
			}
		case "vcs.time":
			if v.Date == "unknown" {
				v.Date = s.Value
			}
		}
	}
	return v
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the Contact Compass release, commit, build date and the
contact store schema version this binary writes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := currentVersion(debug.ReadBuildInfo)
			if jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), v)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Contact Compass %s\n", v.Version)
			fmt.Fprintf(out, "Commit: %s\n", v.Commit)
			fmt.Fprintf(out, "Built:  %s\n", v.Date)
			fmt.Fprintf(out, "Schema: v%d\n", v.SchemaVersion)
			return nil
		},
	}

	return cmd
}

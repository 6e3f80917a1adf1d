package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Release metadata, stamped with -ldflags "-X". Commit and BuildDate fall
// back to the VCS stamp the Go toolchain records.
var (
	Version   = "0.1.0"
	Commit    = ""
	BuildDate = ""
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sessionguard release",
	Long: `Print the sessionguard release with the commit and time it was built from.
The release string is also reported by the dev authority's /health endpoint
and on exported spans.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if versionShort {
			_, err := fmt.Fprintln(out, Version)
			return err
		}
		commit, built := buildStamp()
		_, err := fmt.Fprintf(out, "sessionguard %s\n  commit %s, built %s\n  %s %s/%s\n",
			Version, commit, built, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return err
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print only the release")
	rootCmd.AddCommand(versionCmd)
}

// buildStamp returns the stamped commit and build date, or the toolchain's
// vcs.revision and vcs.time when they were not stamped.
func buildStamp() (commit, built string) {
	commit, built = Commit, BuildDate
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, kv := range info.Settings {
			switch {
			case kv.Key == "vcs.revision" && commit == "":
				commit = kv.Value
				if len(commit) > 12 {
					commit = commit[:12]
				}
			case kv.Key == "vcs.time" && built == "":
				built = kv.Value
			}
		}
	}
	if commit == "" {
		commit = "unknown"
	}
	if built == "" {
		built = "unknown"
	}
	return commit, built
}

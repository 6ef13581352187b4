package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Overridden with -ldflags "-X github.com/felixgeelhaar/billora/adapter/cli.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// BuildInfo is the one-line form used by the MCP handshake and log lines.
func BuildInfo() string {
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, BuildDate)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "billora %s %s/%s %s\n", BuildInfo(), runtime.GOOS, runtime.GOARCH, runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

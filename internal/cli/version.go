package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seanpoyner/ollama-code/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ollama-code %s (commit %s, built %s)\n",
			version.Version, version.CommitSHA, version.BuildDate)
	},
}

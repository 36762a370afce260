package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(renderer.RenderVersion(
			"camdeck",
			buildInfo.Version,
			buildInfo.Commit,
			buildInfo.BuildDate,
			buildInfo.GoVersion,
		))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

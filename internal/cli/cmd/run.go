package cmd

import "github.com/spf13/cobra"

// runCmd is a placeholder for help - actual execution is in main.go.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch the shell window",
	Long: `Launch the app-mode Chromium window showing the configured NVR
application and start the UI engine.

The application address and the selectors used to locate its UI come
from the config file; see 'camdeck config path'.

Examples:
  camdeck run                            # Launch with the configured app_url
  CAMDECK_APP_URL=https://nvr:7443 camdeck run`,
	Run: func(_ *cobra.Command, _ []string) {
		// This is handled by main.go before cobra runs
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

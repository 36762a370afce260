// Package cmd provides Cobra CLI commands for camdeck.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kmuller/camdeck/internal/cli/styles"
	"github.com/kmuller/camdeck/internal/config"
)

// BuildInfo carries build-time identification set from main.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
}

var (
	buildInfo BuildInfo
	theme     *styles.Theme
	renderer  *styles.Renderer

	rootCmd = &cobra.Command{
		Use:   "camdeck",
		Short: "A desktop shell for self-hosted NVR web apps",
		Long: `Camdeck - a desktop shell that wraps a self-hosted NVR web application
in an app-mode Chromium window and drives its UI from the outside.

Features:
  - Hide or show the app's navigation and header, persisted across runs
  - Injected toggle buttons that survive the app's own re-renders
  - Number-key camera zoom on the dashboard grid
  - Fullscreen control and state mirroring to the host window

Use 'camdeck run' to launch the shell, or explore the subcommands for
configuration management.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Commands that only print don't need a loaded config.
			switch cmd.Name() {
			case "help", "completion", "version":
				return nil
			}

			if err := config.Init(); err != nil {
				return fmt.Errorf("initialize config: %w", err)
			}
			return nil
		},
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SetBuildInfo sets the build information (called from main.go before Execute).
func SetBuildInfo(info BuildInfo) {
	buildInfo = info
}

func init() {
	theme = styles.NewTheme()
	renderer = styles.NewRenderer(theme)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/kmuller/camdeck/internal/app"
	"github.com/kmuller/camdeck/internal/cli/cmd"
	"github.com/kmuller/camdeck/internal/config"
	"github.com/kmuller/camdeck/internal/logging"
)

// Build-time variables (set via ldflags).
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	enableCrashForensics()

	// Run shell mode for the run command
	if len(os.Args) > 1 && os.Args[1] == "run" {
		os.Exit(runShell())
		return
	}

	// Pass build info to CLI
	cmd.SetBuildInfo(cmd.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
	})

	// Default: run CLI (shows help if no subcommand)
	cmd.Execute()
}

func runShell() int {
	if err := config.Init(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cfg := config.Get()

	log := logging.NewFromConfigValues(cfg.Logging.Level, cfg.Logging.Format)
	log.Info().
		Str("version", version).
		Str("app_url", cfg.AppURL).
		Msg("starting camdeck")
	logCoreDumpLimits(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("shell exited with error")
		return 1
	}
	return 0
}

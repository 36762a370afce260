package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// GetConfigFile returns the path of the primary config file, whether or
// not it exists yet.
func GetConfigFile() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// WriteDefaultConfigFile writes a config.toml populated with defaults.
// Durations are written in their human form ("100ms") so the file stays
// hand-editable. Fails with os.ErrExist when a config file is already
// present; existing settings are never touched.
func WriteDefaultConfigFile() (string, error) {
	if err := EnsureDirectories(); err != nil {
		return "", err
	}
	file, err := GetConfigFile()
	if err != nil {
		return "", err
	}
	if _, statErr := os.Stat(file); statErr == nil {
		return file, os.ErrExist
	}

	def := DefaultConfig()

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("app_url", def.AppURL)
	v.Set("scope_prefix", def.ScopePrefix)
	v.Set("dashboard_path", def.DashboardPath)

	v.Set("selectors.nav", def.Selectors.Nav)
	v.Set("selectors.header", def.Selectors.Header)
	v.Set("selectors.header_loader", def.Selectors.HeaderLoader)
	v.Set("selectors.camera_tile", def.Selectors.CameraTile)
	v.Set("selectors.tile_name", def.Selectors.TileName)
	v.Set("selectors.tile_index_attr", def.Selectors.TileIndex)
	v.Set("selectors.zoom_overlay", def.Selectors.ZoomOverlay)

	v.Set("timing.poll_interval", def.Timing.PollInterval.String())
	v.Set("timing.anchor_timeout", def.Timing.AnchorTimeout.String())
	v.Set("timing.enforce_interval", def.Timing.EnforceInterval.String())
	v.Set("timing.enforce_passes", def.Timing.EnforcePasses)
	v.Set("timing.zoom_confirm_timeout", def.Timing.ZoomConfirmTimeout.String())
	v.Set("timing.dashboard_retry_delay", def.Timing.DashboardRetryDelay.String())

	v.Set("browser.remote_debugging_url", def.Browser.RemoteDebuggingURL)
	v.Set("browser.headless", def.Browser.Headless)
	v.Set("browser.window_width", def.Browser.WindowWidth)
	v.Set("browser.window_height", def.Browser.WindowHeight)

	v.Set("logging.level", def.Logging.Level)
	v.Set("logging.format", def.Logging.Format)

	if err := v.WriteConfigAs(file); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}
	return file, nil
}

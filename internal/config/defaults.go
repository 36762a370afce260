package config

import "time"

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		AppURL:        "http://localhost:7443",
		ScopePrefix:   "/app",
		DashboardPath: "/app/dashboard",
		Selectors: SelectorsConfig{
			Nav:          "nav[class*='Nav']",
			Header:       "header[class*='Header']",
			HeaderLoader: "[class*='Loader']",
			CameraTile:   "[class*='LiveviewTile']",
			TileName:     "[class*='TileName']",
			TileIndex:    "data-camera-index",
			ZoomOverlay:  "[class*='ZoomOverlay']",
		},
		Timing: TimingConfig{
			PollInterval:        100 * time.Millisecond,
			AnchorTimeout:       10 * time.Second,
			EnforceInterval:     300 * time.Millisecond,
			EnforcePasses:       10,
			ZoomConfirmTimeout:  4 * time.Second,
			DashboardRetryDelay: 2 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:     false,
			WindowWidth:  1600,
			WindowHeight: 900,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func (m *Manager) setDefaults() {
	def := DefaultConfig()

	m.viper.SetDefault("app_url", def.AppURL)
	m.viper.SetDefault("scope_prefix", def.ScopePrefix)
	m.viper.SetDefault("dashboard_path", def.DashboardPath)

	m.viper.SetDefault("selectors.nav", def.Selectors.Nav)
	m.viper.SetDefault("selectors.header", def.Selectors.Header)
	m.viper.SetDefault("selectors.header_loader", def.Selectors.HeaderLoader)
	m.viper.SetDefault("selectors.camera_tile", def.Selectors.CameraTile)
	m.viper.SetDefault("selectors.tile_name", def.Selectors.TileName)
	m.viper.SetDefault("selectors.tile_index_attr", def.Selectors.TileIndex)
	m.viper.SetDefault("selectors.zoom_overlay", def.Selectors.ZoomOverlay)

	m.viper.SetDefault("timing.poll_interval", def.Timing.PollInterval)
	m.viper.SetDefault("timing.anchor_timeout", def.Timing.AnchorTimeout)
	m.viper.SetDefault("timing.enforce_interval", def.Timing.EnforceInterval)
	m.viper.SetDefault("timing.enforce_passes", def.Timing.EnforcePasses)
	m.viper.SetDefault("timing.zoom_confirm_timeout", def.Timing.ZoomConfirmTimeout)
	m.viper.SetDefault("timing.dashboard_retry_delay", def.Timing.DashboardRetryDelay)

	m.viper.SetDefault("browser.remote_debugging_url", def.Browser.RemoteDebuggingURL)
	m.viper.SetDefault("browser.headless", def.Browser.Headless)
	m.viper.SetDefault("browser.window_width", def.Browser.WindowWidth)
	m.viper.SetDefault("browser.window_height", def.Browser.WindowHeight)

	m.viper.SetDefault("logging.level", def.Logging.Level)
	m.viper.SetDefault("logging.format", def.Logging.Format)
}

// Package config loads and watches the camdeck configuration: where the
// wrapped NVR application lives, the structural selectors used to locate
// its nav/header/camera nodes, and the timing knobs for every bounded wait.
package config

import (
	"fmt"
	"sync"
	"time"
)

// Config is the full application configuration.
type Config struct {
	// AppURL is the address of the wrapped NVR web application.
	AppURL string `mapstructure:"app_url" json:"app_url"`

	// ScopePrefix marks which paths belong to the wrapped application.
	// Addresses outside it (login, setup) are left alone.
	ScopePrefix string `mapstructure:"scope_prefix" json:"scope_prefix"`

	// DashboardPath is the camera-grid page within the application.
	DashboardPath string `mapstructure:"dashboard_path" json:"dashboard_path"`

	Selectors SelectorsConfig `mapstructure:"selectors" json:"selectors"`
	Timing    TimingConfig    `mapstructure:"timing" json:"timing"`
	Browser   BrowserConfig   `mapstructure:"browser" json:"browser"`
	Logging   LoggingConfig   `mapstructure:"logging" json:"logging"`
}

// SelectorsConfig holds the structural heuristics for the foreign tree.
// The wrapped app ships hashed class names, so these are substring
// patterns; an app upgrade that changes them degrades the shell to no-ops
// until the config is updated.
type SelectorsConfig struct {
	Nav          string `mapstructure:"nav" json:"nav"`
	Header       string `mapstructure:"header" json:"header"`
	HeaderLoader string `mapstructure:"header_loader" json:"header_loader"`
	CameraTile   string `mapstructure:"camera_tile" json:"camera_tile"`
	TileName     string `mapstructure:"tile_name" json:"tile_name"`
	TileIndex    string `mapstructure:"tile_index_attr" json:"tile_index_attr"`
	ZoomOverlay  string `mapstructure:"zoom_overlay" json:"zoom_overlay"`
}

// TimingConfig holds poll cadences and deadlines for the bounded waits.
type TimingConfig struct {
	PollInterval        time.Duration `mapstructure:"poll_interval" json:"poll_interval"`
	AnchorTimeout       time.Duration `mapstructure:"anchor_timeout" json:"anchor_timeout"`
	EnforceInterval     time.Duration `mapstructure:"enforce_interval" json:"enforce_interval"`
	EnforcePasses       int           `mapstructure:"enforce_passes" json:"enforce_passes"`
	ZoomConfirmTimeout  time.Duration `mapstructure:"zoom_confirm_timeout" json:"zoom_confirm_timeout"`
	DashboardRetryDelay time.Duration `mapstructure:"dashboard_retry_delay" json:"dashboard_retry_delay"`
}

// BrowserConfig controls the Chromium surface.
type BrowserConfig struct {
	// RemoteDebuggingURL attaches to an already-running browser instead of
	// launching one. Empty means launch.
	RemoteDebuggingURL string `mapstructure:"remote_debugging_url" json:"remote_debugging_url"`
	Headless           bool   `mapstructure:"headless" json:"headless"`
	WindowWidth        int    `mapstructure:"window_width" json:"window_width"`
	WindowHeight       int    `mapstructure:"window_height" json:"window_height"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

var (
	globalMu      sync.RWMutex
	globalManager *Manager
)

// Init loads the global configuration once.
func Init() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager != nil {
		return nil
	}

	m, err := NewManager()
	if err != nil {
		return err
	}
	if err := m.Load(); err != nil {
		return err
	}
	globalManager = m
	return nil
}

// Get returns the global configuration, or defaults before Init.
func Get() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalManager == nil {
		return DefaultConfig()
	}
	return globalManager.Get()
}

// Watch starts watching the global configuration for changes.
func Watch() error {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalManager == nil {
		return fmt.Errorf("configuration not initialized")
	}
	return globalManager.Watch()
}

// OnConfigChange registers a callback for global configuration changes.
func OnConfigChange(callback func(*Config)) {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalManager == nil {
		return
	}
	globalManager.OnConfigChange(callback)
}

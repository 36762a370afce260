package config

import (
	"fmt"
	"net/url"
	"strings"
)

func validate(c *Config) error {
	if c.AppURL == "" {
		return fmt.Errorf("app_url must be set")
	}
	u, err := url.Parse(c.AppURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("app_url %q is not a valid absolute URL", c.AppURL)
	}

	if !strings.HasPrefix(c.ScopePrefix, "/") {
		return fmt.Errorf("scope_prefix %q must start with /", c.ScopePrefix)
	}
	if !strings.HasPrefix(c.DashboardPath, c.ScopePrefix) {
		return fmt.Errorf("dashboard_path %q must lie under scope_prefix %q", c.DashboardPath, c.ScopePrefix)
	}

	sel := c.Selectors
	for name, s := range map[string]string{
		"selectors.nav":         sel.Nav,
		"selectors.header":      sel.Header,
		"selectors.camera_tile": sel.CameraTile,
	} {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}

	t := c.Timing
	if t.PollInterval <= 0 {
		return fmt.Errorf("timing.poll_interval must be positive")
	}
	if t.AnchorTimeout <= 0 {
		return fmt.Errorf("timing.anchor_timeout must be positive")
	}
	if t.EnforcePasses <= 0 {
		return fmt.Errorf("timing.enforce_passes must be positive")
	}
	if t.EnforceInterval <= 0 {
		return fmt.Errorf("timing.enforce_interval must be positive")
	}

	return nil
}

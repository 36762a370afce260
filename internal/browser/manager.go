// Package browser manages the Chromium surface: launch an app-mode window
// (or attach to a remote instance), hold the page showing the wrapped NVR
// application, and expose window control to the host side.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/kmuller/camdeck/internal/config"
)

// Manager owns the browser process lifecycle.
type Manager struct {
	cfg config.BrowserConfig
	log zerolog.Logger

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
	closed  bool
}

// NewManager creates a Manager. Call Open to launch or attach.
func NewManager(cfg config.BrowserConfig, log zerolog.Logger) *Manager {
	return &Manager{cfg: cfg, log: log.With().Str("component", "browser").Logger()}
}

// Open launches Chromium as an app-mode window showing appURL, or attaches
// to the configured remote instance, and returns the page once loaded.
func (m *Manager) Open(ctx context.Context, appURL string) (*rod.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}

	var wsURL string
	if m.cfg.RemoteDebuggingURL != "" {
		wsURL = m.cfg.RemoteDebuggingURL
		m.log.Info().Str("url", wsURL).Msg("attaching to remote browser")
	} else {
		l := launcher.New().
			Headless(m.cfg.Headless).
			Set("app", appURL)
		if m.cfg.WindowWidth > 0 && m.cfg.WindowHeight > 0 {
			l = l.Set("window-size", fmt.Sprintf("%d,%d", m.cfg.WindowWidth, m.cfg.WindowHeight))
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		m.log.Info().Str("url", wsURL).Bool("headless", m.cfg.Headless).Msg("launched chromium")
	}

	b := rod.New().Context(ctx).ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	// Self-hosted NVRs routinely serve self-signed certificates.
	if err := b.IgnoreCertErrors(true); err != nil {
		m.log.Warn().Err(err).Msg("ignore cert errors failed")
	}
	m.browser = b

	page, err := m.findOrOpenPage(b, appURL)
	if err != nil {
		return nil, err
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		m.log.Warn().Err(err).Msg("initial load wait ended early")
	}
	m.page = page
	return page, nil
}

// findOrOpenPage reuses the app-mode window when the launcher created one,
// otherwise opens a fresh target at appURL.
func (m *Manager) findOrOpenPage(b *rod.Browser, appURL string) (*rod.Page, error) {
	pages, err := b.Pages()
	if err == nil {
		for _, p := range pages {
			info, infoErr := p.Info()
			if infoErr != nil {
				continue
			}
			if strings.HasPrefix(info.URL, appURL) {
				return p, nil
			}
		}
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: appURL})
	if err != nil {
		return nil, fmt.Errorf("browser: open page: %w", err)
	}
	return page, nil
}

// Window returns the host-side window control for the open page.
func (m *Manager) Window() *Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &Window{page: m.page}
}

// Close shuts the browser down. Safe to call repeatedly.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true

	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			m.log.Debug().Err(err).Msg("browser close")
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
}

// Window drives the native window through the protocol's Browser domain.
// It is the authoritative fullscreen source the host mirror serves from.
type Window struct {
	page *rod.Page
}

// IsFullscreen reports the current window state.
func (w *Window) IsFullscreen(ctx context.Context) (bool, error) {
	if w.page == nil {
		return false, fmt.Errorf("browser: no open page")
	}
	bounds, err := w.page.Context(ctx).GetWindow()
	if err != nil {
		return false, err
	}
	return bounds.WindowState == proto.BrowserWindowStateFullscreen, nil
}

// SetFullscreen moves the window into or out of fullscreen.
func (w *Window) SetFullscreen(ctx context.Context, fs bool) error {
	if w.page == nil {
		return fmt.Errorf("browser: no open page")
	}
	state := proto.BrowserWindowStateNormal
	if fs {
		state = proto.BrowserWindowStateFullscreen
	}
	return w.page.Context(ctx).SetWindow(&proto.BrowserBounds{WindowState: state})
}

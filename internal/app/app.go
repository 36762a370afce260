// Package app assembles the shell: the Chromium surface, the host mirror,
// the message boundary between them, and the reconciliation engine that
// keeps the wrapped NVR application's UI in the state the user asked for.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kmuller/camdeck/internal/browser"
	"github.com/kmuller/camdeck/internal/bus"
	"github.com/kmuller/camdeck/internal/config"
	"github.com/kmuller/camdeck/internal/dom/cdp"
	"github.com/kmuller/camdeck/internal/host"
	"github.com/kmuller/camdeck/internal/settings"
	"github.com/kmuller/camdeck/internal/surface/camera"
	"github.com/kmuller/camdeck/internal/surface/decor"
	"github.com/kmuller/camdeck/internal/surface/hostlink"
	"github.com/kmuller/camdeck/internal/surface/nav"
	"github.com/kmuller/camdeck/internal/surface/visibility"
	"github.com/kmuller/camdeck/internal/wait"
)

const hostRequestTimeout = 5 * time.Second

// Run starts the shell and blocks until ctx is cancelled or a fatal error
// occurs.
func Run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if err := config.EnsureDirectories(); err != nil {
		return err
	}
	stateDir, err := config.GetStateDir()
	if err != nil {
		return err
	}
	store := settings.Open(filepath.Join(stateDir, "settings"))

	mgr := browser.NewManager(cfg.Browser, log)
	page, err := mgr.Open(ctx, cfg.AppURL)
	if err != nil {
		return err
	}
	defer mgr.Close()

	doc := cdp.NewDocument(page, log)
	defer doc.Close()

	hostEP, surfaceEP := bus.NewPair("host", "surface")
	mirror := host.New(hostEP, store, mgr.Window(), log)
	link := hostlink.New(surfaceEP, hostRequestTimeout, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hostEP.Pump(gctx) })
	g.Go(func() error { return surfaceEP.Pump(gctx) })

	shell := &shell{
		cfg:    cfg,
		log:    log.With().Str("component", "app").Logger(),
		doc:    doc,
		link:   link,
		mirror: mirror,
	}
	if err := shell.start(gctx); err != nil {
		return err
	}
	defer shell.stop()

	watchConfig(log)

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// shell wires the surface-side engine together.
type shell struct {
	cfg    *config.Config
	log    zerolog.Logger
	doc    *cdp.Document
	link   *hostlink.Link
	mirror *host.Mirror

	store   *visibility.Store
	monitor *nav.Monitor
	cameras *camera.Bridge
	decors  *decor.Registry

	onDashboard atomic.Bool
	loginVisits atomic.Int32

	teardownNav func()
}

func (s *shell) start(ctx context.Context) error {
	cfg := s.cfg
	pollOpts := wait.Options{
		Interval: cfg.Timing.PollInterval,
		Timeout:  cfg.Timing.AnchorTimeout,
	}

	s.store = visibility.New(visibility.Options{
		Doc:             s.doc,
		Bridge:          s.link,
		Log:             s.log,
		NavSelector:     cfg.Selectors.Nav,
		HeaderSelector:  cfg.Selectors.Header,
		AnchorWait:      pollOpts,
		EnforceInterval: cfg.Timing.EnforceInterval,
		EnforcePasses:   cfg.Timing.EnforcePasses,
	})

	s.cameras = camera.New(camera.Options{
		Doc: s.doc,
		Selectors: camera.Selectors{
			Tile:        cfg.Selectors.CameraTile,
			TileName:    cfg.Selectors.TileName,
			TileIndex:   cfg.Selectors.TileIndex,
			ZoomOverlay: cfg.Selectors.ZoomOverlay,
		},
		Hooks: camera.Hooks{
			PushCameraList: s.link.PushCameraList,
			PushCameraZoom: s.link.PushCameraZoom,
			OnDashboard:    s.onDashboard.Load,
		},
		ConfirmWait:  cfg.Timing.ZoomConfirmTimeout,
		PollInterval: cfg.Timing.PollInterval,
		Log:          s.log,
	})

	s.decors = decor.New(decor.Options{
		Doc: s.doc,
		Controls: decor.Controls{
			ToggleNav:         func() { s.store.ToggleNav(ctx) },
			ToggleHeader:      func() { s.store.ToggleHeader(ctx) },
			ToggleFullscreen:  s.link.ToggleFullscreen,
			ReturnToDashboard: func() { s.returnToDashboard(ctx) },
		},
		Anchors: decor.Anchors{
			NavSelector:          cfg.Selectors.Nav,
			HeaderSelector:       cfg.Selectors.Header,
			HeaderLoaderSelector: cfg.Selectors.HeaderLoader,
		},
		AnchorWait:   cfg.Timing.AnchorTimeout,
		PollInterval: cfg.Timing.PollInterval,
		Log:          s.log,
	})

	s.monitor = nav.New(s.doc, cfg.ScopePrefix, cfg.DashboardPath, cfg.Timing.DashboardRetryDelay, nav.Hooks{
		HandleTransition: s.store.HandleTransition,
		InitDashboard:    s.initDashboard,
		PushDashboardState: func(on bool) {
			s.onDashboard.Store(on)
			s.link.PushDashboardState(on)
		},
		ResetLoginAttempts: func() { s.loginVisits.Store(0) },
		OnExternalPage: func(address string) {
			if visits := s.loginVisits.Add(1); visits > 3 {
				s.log.Warn().Str("address", address).Int32("visits", visits).
					Msg("stuck outside the app, check NVR credentials")
			}
		},
	}, s.log)

	s.link.HandleCommands(hostlink.Commands{
		ToggleNavigation:  func() { s.store.ToggleAll(ctx) },
		ToggleNavOnly:     func() { s.store.ToggleNav(ctx) },
		ToggleHeaderOnly:  func() { s.store.ToggleHeader(ctx) },
		ToggleWidgetPanel: func() { s.store.ToggleAll(ctx) },
		ReturnToDashboard: func() { s.returnToDashboard(ctx) },
		ZoomCamera: func(index int) {
			if err := s.cameras.ZoomToCamera(ctx, index); err != nil {
				s.log.Warn().Err(err).Int("index", index).Msg("zoom command failed")
			}
		},
	})

	if err := s.store.Initialize(ctx); err != nil {
		return fmt.Errorf("app: initialize visibility store: %w", err)
	}

	teardown, err := s.monitor.Setup(ctx)
	if err != nil {
		return fmt.Errorf("app: navigation monitor: %w", err)
	}
	s.teardownNav = teardown

	if err := s.cameras.InstallHotkeys(ctx); err != nil {
		s.log.Warn().Err(err).Msg("hotkeys unavailable")
	}

	// The monitor only reacts to changes; handle the page we started on.
	if address, locErr := s.doc.Location(ctx); locErr == nil {
		onDash := s.monitor.Classify(address) == nav.PageDashboard
		s.onDashboard.Store(onDash)
		s.link.PushDashboardState(onDash)
		if onDash {
			go func() {
				if initErr := s.initDashboard(ctx); initErr != nil {
					s.log.Warn().Err(initErr).Msg("startup dashboard init failed")
				}
			}()
		}
	}
	return nil
}

func (s *shell) stop() {
	if s.teardownNav != nil {
		s.teardownNav()
	}
	if s.store != nil {
		s.store.Destroy()
	}
}

// initDashboard is the dashboard readiness sequence the navigation monitor
// retries once: cameras must be detectable before decorations settle.
func (s *shell) initDashboard(ctx context.Context) error {
	list, err := s.cameras.DetectCameras(ctx)
	if err != nil {
		return err
	}
	if len(list.Cameras) == 0 {
		return errors.New("app: camera grid not ready")
	}

	for id, updater := range s.decors.InjectAll(ctx) {
		s.store.RegisterDecoration(id, updater)
	}
	return nil
}

// returnToDashboard drives the app back to the camera grid through its own
// router.
func (s *shell) returnToDashboard(ctx context.Context) {
	u, err := url.Parse(s.cfg.AppURL)
	if err != nil {
		s.log.Warn().Err(err).Msg("bad app url")
		return
	}
	u.Path = s.cfg.DashboardPath

	js := fmt.Sprintf("window.location.href = %q", u.String())
	if _, err := s.doc.Eval(ctx, js); err != nil {
		s.log.Warn().Err(err).Msg("return to dashboard failed")
	}
}

// watchConfig keeps the global config current with the file on disk.
// The running engine captures its knobs at startup; a reload is surfaced
// in the log so the user knows a restart picks it up.
func watchConfig(log zerolog.Logger) {
	if err := config.Watch(); err != nil {
		log.Debug().Err(err).Msg("config watch unavailable")
		return
	}
	config.OnConfigChange(func(c *config.Config) {
		log.Info().Str("app_url", c.AppURL).Msg("configuration reloaded")
	})
}

// Package host is the privileged side of the boundary: it owns the
// persisted settings, the window (and with it the authoritative
// fullscreen state), and a mirror of the surface state that the menu and
// accelerators read. The surface re-pushes its state liberally; the
// mirror absorbs the pushes and notifies menu listeners on change.
package host

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kmuller/camdeck/internal/bus"
	"github.com/kmuller/camdeck/internal/settings"
)

// Window abstracts the native window the shell controls.
type Window interface {
	IsFullscreen(ctx context.Context) (bool, error)
	SetFullscreen(ctx context.Context, fs bool) error
}

// Snapshot is the host's read-only view of the surface state, as the menu
// renders it.
type Snapshot struct {
	UI          bus.UIState
	OnDashboard bool
	Cameras     bus.CameraList
	ZoomIndex   int
	Fullscreen  bool
}

// Mirror serves the surface's requests and tracks its pushes.
type Mirror struct {
	ep       *bus.Endpoint
	settings *settings.Store
	win      Window
	log      zerolog.Logger

	mu        sync.Mutex
	snap      Snapshot
	listeners map[int]func(Snapshot)
	nextToken int
}

// New wires a Mirror onto the host endpoint.
func New(ep *bus.Endpoint, store *settings.Store, win Window, log zerolog.Logger) *Mirror {
	m := &Mirror{
		ep:        ep,
		settings:  store,
		win:       win,
		log:       log.With().Str("component", "host").Logger(),
		snap:      Snapshot{ZoomIndex: -1},
		listeners: make(map[int]func(Snapshot)),
	}
	m.register()
	return m
}

func (m *Mirror) register() {
	m.ep.Handle(bus.MsgConfigLoad, func(context.Context, json.RawMessage) (json.RawMessage, error) {
		flags, err := m.settings.Load()
		if err != nil {
			return nil, err
		}
		return json.Marshal(flags)
	})

	m.ep.Handle(bus.MsgConfigSavePartial, func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		patch := make(map[string]string)
		if err := json.Unmarshal(payload, &patch); err != nil {
			return nil, err
		}
		return nil, m.settings.SavePartial(patch)
	})

	m.ep.Handle(bus.MsgIsFullScreen, func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
		fs, err := m.win.IsFullscreen(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(fs)
	})

	m.ep.Handle(bus.MsgToggleFullscreen, func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
		fs, err := m.win.IsFullscreen(ctx)
		if err != nil {
			return nil, err
		}
		return nil, m.SetFullscreen(ctx, !fs)
	})

	m.ep.HandleNotify(bus.PushUIState, func(payload json.RawMessage) {
		var ui bus.UIState
		if err := json.Unmarshal(payload, &ui); err != nil {
			m.log.Warn().Err(err).Msg("bad ui-state payload")
			return
		}
		m.update(func(s *Snapshot) { s.UI = ui })
	})

	m.ep.HandleNotify(bus.PushDashboardState, func(payload json.RawMessage) {
		var on bool
		if err := json.Unmarshal(payload, &on); err != nil {
			m.log.Warn().Err(err).Msg("bad dashboard-state payload")
			return
		}
		m.update(func(s *Snapshot) { s.OnDashboard = on })
	})

	m.ep.HandleNotify(bus.PushCameraList, func(payload json.RawMessage) {
		var list bus.CameraList
		if err := json.Unmarshal(payload, &list); err != nil {
			m.log.Warn().Err(err).Msg("bad camera-list payload")
			return
		}
		m.update(func(s *Snapshot) { s.Cameras = list })
	})

	m.ep.HandleNotify(bus.PushCameraZoom, func(payload json.RawMessage) {
		var index int
		if err := json.Unmarshal(payload, &index); err != nil {
			m.log.Warn().Err(err).Msg("bad camera-zoom payload")
			return
		}
		m.update(func(s *Snapshot) { s.ZoomIndex = index })
	})
}

// SetFullscreen drives the window and broadcasts the change to the
// surface. Host accelerators call this directly.
func (m *Mirror) SetFullscreen(ctx context.Context, fs bool) error {
	if err := m.win.SetFullscreen(ctx, fs); err != nil {
		return err
	}
	m.update(func(s *Snapshot) { s.Fullscreen = fs })
	if err := m.ep.Send(bus.PushFullscreenChange, fs); err != nil {
		m.log.Debug().Err(err).Msg("fullscreen-change push not delivered")
	}
	return nil
}

// Snapshot returns the current mirror state.
func (m *Mirror) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// OnChange subscribes to mirror updates for menu re-rendering.
func (m *Mirror) OnChange(fn func(Snapshot)) (unsubscribe func()) {
	m.mu.Lock()
	token := m.nextToken
	m.nextToken++
	m.listeners[token] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, token)
		m.mu.Unlock()
	}
}

func (m *Mirror) update(mutate func(*Snapshot)) {
	m.mu.Lock()
	mutate(&m.snap)
	snap := m.snap
	fns := make([]func(Snapshot), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Command senders: menu items and accelerators push these to the surface.

func (m *Mirror) ToggleNavigation() { m.command(bus.CmdToggleNavigation, nil) }
func (m *Mirror) ToggleNavOnly()    { m.command(bus.CmdToggleNavOnly, nil) }
func (m *Mirror) ToggleHeaderOnly() { m.command(bus.CmdToggleHeaderOnly, nil) }

// ToggleWidgetPanel hides or shows nav and header together.
func (m *Mirror) ToggleWidgetPanel() { m.command(bus.CmdToggleWidgetPanel, nil) }

func (m *Mirror) ReturnToDashboard() { m.command(bus.CmdReturnToDashboard, nil) }

// ZoomCamera asks the surface to zoom the given camera index.
func (m *Mirror) ZoomCamera(index int) { m.command(bus.CmdZoomCamera, index) }

func (m *Mirror) command(name string, v any) {
	if err := m.ep.Send(name, v); err != nil {
		m.log.Warn().Err(err).Str("command", name).Msg("command not delivered")
	}
}

// Package hostlink is the surface side of the host boundary. It exposes
// the store-facing bridge operations over the message bus and fans host
// pushes out to subscribers.
package hostlink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmuller/camdeck/internal/bus"
)

// Commands receives host-initiated pushes (menu items, accelerators).
// Nil members are ignored.
type Commands struct {
	ToggleNavigation  func()
	ToggleNavOnly     func()
	ToggleHeaderOnly  func()
	ToggleWidgetPanel func()
	ReturnToDashboard func()
	ZoomCamera        func(index int)
}

// Link implements the store's Bridge over a bus endpoint.
type Link struct {
	ep      *bus.Endpoint
	log     zerolog.Logger
	timeout time.Duration
	dedup   *bus.PushDeduplicator

	mu          sync.Mutex
	fsListeners map[int]func(bool)
	nextToken   int
}

// New wires a Link onto the surface endpoint. Fullscreen pushes are
// deduplicated before they reach subscribers.
func New(ep *bus.Endpoint, requestTimeout time.Duration, log zerolog.Logger) *Link {
	l := &Link{
		ep:          ep,
		log:         log.With().Str("component", "hostlink").Logger(),
		timeout:     requestTimeout,
		dedup:       bus.NewPushDeduplicator(),
		fsListeners: make(map[int]func(bool)),
	}

	ep.HandleNotify(bus.PushFullscreenChange, l.dedup.Wrap(bus.PushFullscreenChange, func(payload json.RawMessage) {
		var fs bool
		if err := json.Unmarshal(payload, &fs); err != nil {
			l.log.Warn().Err(err).Msg("bad fullscreen-change payload")
			return
		}
		l.mu.Lock()
		fns := make([]func(bool), 0, len(l.fsListeners))
		for _, fn := range l.fsListeners {
			fns = append(fns, fn)
		}
		l.mu.Unlock()
		for _, fn := range fns {
			fn(fs)
		}
	}))
	return l
}

// HandleCommands registers the host command handlers. Each command runs
// on its own goroutine: a handler that ends in a request back to the host
// (a toggle persisting its flags) must not hold the pump loop that
// delivers the reply.
func (l *Link) HandleCommands(c Commands) {
	simple := map[string]func(){
		bus.CmdToggleNavigation:  c.ToggleNavigation,
		bus.CmdToggleNavOnly:     c.ToggleNavOnly,
		bus.CmdToggleHeaderOnly:  c.ToggleHeaderOnly,
		bus.CmdToggleWidgetPanel: c.ToggleWidgetPanel,
		bus.CmdReturnToDashboard: c.ReturnToDashboard,
	}
	for name, fn := range simple {
		if fn == nil {
			continue
		}
		fn := fn
		l.ep.HandleNotify(name, func(json.RawMessage) { go fn() })
	}

	if c.ZoomCamera != nil {
		l.ep.HandleNotify(bus.CmdZoomCamera, func(payload json.RawMessage) {
			var index int
			if err := json.Unmarshal(payload, &index); err != nil {
				l.log.Warn().Err(err).Msg("bad zoom-camera payload")
				return
			}
			go c.ZoomCamera(index)
		})
	}
}

// ConfigLoad fetches the persisted settings map from the host.
func (l *Link) ConfigLoad(ctx context.Context) (map[string]string, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	out := make(map[string]string)
	if err := l.ep.Request(ctx, bus.MsgConfigLoad, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ConfigSavePartial merges the patch into the host's persisted settings.
func (l *Link) ConfigSavePartial(ctx context.Context, patch map[string]string) error {
	ctx, cancel := l.bound(ctx)
	defer cancel()
	return l.ep.Request(ctx, bus.MsgConfigSavePartial, patch, nil)
}

// IsFullScreen queries the host's authoritative fullscreen state.
func (l *Link) IsFullScreen(ctx context.Context) (bool, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	var fs bool
	if err := l.ep.Request(ctx, bus.MsgIsFullScreen, nil, &fs); err != nil {
		return false, err
	}
	return fs, nil
}

// ToggleFullscreen asks the host to flip the window's fullscreen state.
// Fire-and-forget: the result arrives back as a fullscreen-change push.
func (l *Link) ToggleFullscreen() {
	l.push(bus.MsgToggleFullscreen, nil)
}

// PushUIState mirrors the visibility flags to the host menu.
func (l *Link) PushUIState(state bus.UIState) {
	l.push(bus.PushUIState, state)
}

// PushDashboardState tells the host whether the dashboard is showing.
func (l *Link) PushDashboardState(onDashboard bool) {
	l.push(bus.PushDashboardState, onDashboard)
}

// PushCameraList mirrors the detected cameras to the host menu.
func (l *Link) PushCameraList(list bus.CameraList) {
	l.push(bus.PushCameraList, list)
}

// PushCameraZoom mirrors the current zoom index to the host.
func (l *Link) PushCameraZoom(index int) {
	l.push(bus.PushCameraZoom, index)
}

// OnFullscreenChange subscribes to deduplicated host fullscreen pushes.
func (l *Link) OnFullscreenChange(fn func(bool)) (unsubscribe func()) {
	l.mu.Lock()
	token := l.nextToken
	l.nextToken++
	l.fsListeners[token] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.fsListeners, token)
		l.mu.Unlock()
	}
}

// push sends a fire-and-forget message; drops are logged, never fatal.
func (l *Link) push(name string, v any) {
	if err := l.ep.Send(name, v); err != nil {
		if errors.Is(err, bus.ErrDropped) {
			l.log.Debug().Str("message", name).Msg("push dropped, peer queue full")
			return
		}
		l.log.Warn().Err(err).Str("message", name).Msg("push failed")
	}
}

func (l *Link) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.timeout)
}

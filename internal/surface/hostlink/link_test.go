package hostlink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmuller/camdeck/internal/bus"
	"github.com/kmuller/camdeck/internal/dom/domtest"
	"github.com/kmuller/camdeck/internal/host"
	"github.com/kmuller/camdeck/internal/settings"
	"github.com/kmuller/camdeck/internal/surface/visibility"
	"github.com/kmuller/camdeck/internal/wait"
)

// testBoundary runs both pumps and gives the test direct access to the
// host endpoint.
type testBoundary struct {
	host *bus.Endpoint
	link *Link
}

func newBoundary(t *testing.T) *testBoundary {
	t.Helper()
	host, surface := bus.NewPair("host", "surface")
	link := New(surface, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = host.Pump(ctx) }()
	go func() { _ = surface.Pump(ctx) }()

	return &testBoundary{host: host, link: link}
}

func TestConfigRoundTrip(t *testing.T) {
	b := newBoundary(t)

	var (
		mu    sync.Mutex
		saved map[string]string
	)
	b.host.Handle(bus.MsgConfigLoad, func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(map[string]string{"hideNav": "true"})
	})
	b.host.Handle(bus.MsgConfigSavePartial, func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		mu.Lock()
		defer mu.Unlock()
		return nil, json.Unmarshal(payload, &saved)
	})

	flags, err := b.link.ConfigLoad(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "true", flags["hideNav"])

	require.NoError(t, b.link.ConfigSavePartial(context.Background(), map[string]string{"hideHeader": "true"}))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]string{"hideHeader": "true"}, saved)
}

func TestConfigLoadPropagatesHostError(t *testing.T) {
	b := newBoundary(t)
	b.host.Handle(bus.MsgConfigLoad, func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("store unavailable")
	})

	_, err := b.link.ConfigLoad(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")
}

func TestIsFullScreen(t *testing.T) {
	b := newBoundary(t)
	b.host.Handle(bus.MsgIsFullScreen, func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(true)
	})

	fs, err := b.link.IsFullScreen(context.Background())
	require.NoError(t, err)
	assert.True(t, fs)
}

func TestStatePushesReachHost(t *testing.T) {
	b := newBoundary(t)

	type push struct {
		name    string
		payload json.RawMessage
	}
	pushes := make(chan push, 8)
	for _, name := range []string{bus.PushUIState, bus.PushDashboardState, bus.PushCameraList, bus.PushCameraZoom, bus.MsgToggleFullscreen} {
		name := name
		b.host.HandleNotify(name, func(payload json.RawMessage) {
			pushes <- push{name, payload}
		})
	}

	b.link.PushUIState(bus.UIState{NavHidden: true})
	b.link.PushDashboardState(true)
	b.link.PushCameraList(bus.CameraList{Cameras: []bus.CameraInfo{{Index: 0, Name: "Front"}}, ZoomSupported: true})
	b.link.PushCameraZoom(2)
	b.link.ToggleFullscreen()

	names := make(map[string]json.RawMessage)
	for i := 0; i < 5; i++ {
		select {
		case p := <-pushes:
			names[p.name] = p.payload
		case <-time.After(time.Second):
			t.Fatalf("missing push %d, got %v", i, names)
		}
	}

	var ui bus.UIState
	require.NoError(t, json.Unmarshal(names[bus.PushUIState], &ui))
	assert.True(t, ui.NavHidden)

	var zoom int
	require.NoError(t, json.Unmarshal(names[bus.PushCameraZoom], &zoom))
	assert.Equal(t, 2, zoom)
}

func TestFullscreenPushesAreDeduplicated(t *testing.T) {
	b := newBoundary(t)

	seen := make(chan bool, 8)
	unsub := b.link.OnFullscreenChange(func(fs bool) { seen <- fs })

	require.NoError(t, b.host.Send(bus.PushFullscreenChange, true))
	require.NoError(t, b.host.Send(bus.PushFullscreenChange, true))
	require.NoError(t, b.host.Send(bus.PushFullscreenChange, false))

	assert.True(t, <-seen)
	assert.False(t, <-seen)
	select {
	case extra := <-seen:
		t.Fatalf("duplicate push delivered: %v", extra)
	case <-time.After(50 * time.Millisecond):
	}

	unsub()
	require.NoError(t, b.host.Send(bus.PushFullscreenChange, true))
	select {
	case extra := <-seen:
		t.Fatalf("push after unsubscribe: %v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleCommands(t *testing.T) {
	b := newBoundary(t)

	calls := make(chan string, 8)
	zooms := make(chan int, 1)
	b.link.HandleCommands(Commands{
		ToggleNavigation:  func() { calls <- "all" },
		ToggleNavOnly:     func() { calls <- "nav" },
		ToggleHeaderOnly:  func() { calls <- "header" },
		ToggleWidgetPanel: func() { calls <- "panel" },
		ReturnToDashboard: func() { calls <- "return" },
		ZoomCamera:        func(i int) { zooms <- i },
	})

	require.NoError(t, b.host.Send(bus.CmdToggleNavigation, nil))
	require.NoError(t, b.host.Send(bus.CmdToggleNavOnly, nil))
	require.NoError(t, b.host.Send(bus.CmdToggleHeaderOnly, nil))
	require.NoError(t, b.host.Send(bus.CmdToggleWidgetPanel, nil))
	require.NoError(t, b.host.Send(bus.CmdReturnToDashboard, nil))
	require.NoError(t, b.host.Send(bus.CmdZoomCamera, 3))

	got := make(map[string]bool)
	for i := 0; i < 5; i++ {
		select {
		case c := <-calls:
			got[c] = true
		case <-time.After(time.Second):
			t.Fatalf("missing command, got %v", got)
		}
	}
	assert.Len(t, got, 5)

	select {
	case i := <-zooms:
		assert.Equal(t, 3, i)
	case <-time.After(time.Second):
		t.Fatal("zoom command never arrived")
	}
}

// stubWindow satisfies the mirror's window port for wiring tests.
type stubWindow struct {
	mu sync.Mutex
	fs bool
}

func (w *stubWindow) IsFullscreen(context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fs, nil
}

func (w *stubWindow) SetFullscreen(_ context.Context, fs bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fs = fs
	return nil
}

// The whole command round trip: mirror -> bus -> link -> store -> bus ->
// mirror -> settings. A toggle ends in a config-save request back to the
// host, so the command handler must never hold the pump goroutine that
// delivers the reply.
func TestHostIssuedToggleReleasesGuardPromptly(t *testing.T) {
	hostEP, surfaceEP := bus.NewPair("host", "surface")
	link := New(surfaceEP, 2*time.Second, zerolog.Nop())
	flags := settings.Open(t.TempDir())
	mirror := host.New(hostEP, flags, &stubWindow{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hostEP.Pump(ctx) }()
	go func() { _ = surfaceEP.Pump(ctx) }()

	doc := domtest.New(t, `<html><body>
<nav class="AppNav" style="display: flex">menu</nav>
<header class="AppHeader" style="display: flex"></header>
</body></html>`, "http://localhost:7443/app/dashboard")

	store := visibility.New(visibility.Options{
		Doc:             doc,
		Bridge:          link,
		Log:             zerolog.Nop(),
		NavSelector:     "nav",
		HeaderSelector:  "header",
		AnchorWait:      wait.Options{Interval: time.Millisecond, Timeout: 50 * time.Millisecond},
		EnforceInterval: 5 * time.Millisecond,
		EnforcePasses:   2,
	})
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(store.Destroy)

	link.HandleCommands(Commands{
		ToggleNavOnly: func() { store.ToggleNav(context.Background()) },
	})

	mirror.ToggleNavOnly()

	// Well inside the 2s request timeout: the toggle landed, the save
	// persisted on the host, and the guard is free again.
	require.Eventually(t, func() bool {
		if !store.GetState().NavHidden || store.ToggleInFlight() {
			return false
		}
		v, ok := flags.Get(settings.KeyHideNav)
		return ok && v == "true"
	}, 500*time.Millisecond, 5*time.Millisecond)

	// The pump kept draining: a follow-up host push still lands.
	require.NoError(t, mirror.SetFullscreen(context.Background(), true))
	require.Eventually(t, func() bool {
		return store.GetState().IsFullscreen
	}, 500*time.Millisecond, 5*time.Millisecond)
}

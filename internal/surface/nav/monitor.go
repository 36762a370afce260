// Package nav detects client-side page transitions inside the wrapped
// app. The SPA never reloads the document, so transitions surface as
// history events or as tree mutations that happen to change the address;
// both funnel into one debounced transition callback.
package nav

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmuller/camdeck/internal/dom"
)

// Classification buckets an address.
type Classification int

const (
	// PageExternal is outside the wrapped app (login, setup, other sites).
	PageExternal Classification = iota
	// PageApp is inside the wrapped app but not the camera dashboard.
	PageApp
	// PageDashboard is the camera-grid page.
	PageDashboard
)

// Hooks connects the monitor to its collaborators. The monitor never
// imports the store; the hub hands its operations down at construction.
type Hooks struct {
	// HandleTransition is invoked once per in-scope address change.
	HandleTransition func(ctx context.Context, oldAddress, newAddress string)
	// InitDashboard prepares the dashboard page (camera detection,
	// decoration injection). A failure is retried exactly once after
	// RetryDelay.
	InitDashboard func(ctx context.Context) error
	// PushDashboardState tells the host whether the dashboard is showing.
	PushDashboardState func(onDashboard bool)
	// ResetLoginAttempts clears login bookkeeping when the dashboard is
	// reached.
	ResetLoginAttempts func()
	// OnExternalPage fires for addresses outside the app scope (login,
	// setup pages).
	OnExternalPage func(address string)
}

// Monitor is the single shared navigation monitor for one surface.
type Monitor struct {
	doc           dom.Document
	scopePrefix   string
	dashboardPath string
	retryDelay    time.Duration
	hooks         Hooks
	log           zerolog.Logger

	mu        sync.Mutex
	active    bool
	lastSeen  string
	navWatch  dom.Watch
	treeWatch dom.Watch
	cancel    context.CancelFunc
}

// New creates a Monitor. Call Setup to start observing.
func New(doc dom.Document, scopePrefix, dashboardPath string, retryDelay time.Duration, hooks Hooks, log zerolog.Logger) *Monitor {
	return &Monitor{
		doc:           doc,
		scopePrefix:   scopePrefix,
		dashboardPath: dashboardPath,
		retryDelay:    retryDelay,
		hooks:         hooks,
		log:           log.With().Str("component", "nav").Logger(),
	}
}

// Setup starts observing address changes and returns a teardown closure.
// Setup is idempotent: a second call while active returns a no-op
// teardown, leaving the first observation untouched.
func (m *Monitor) Setup(ctx context.Context) (teardown func(), err error) {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return func() {}, nil
	}
	m.active = true
	monCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	loc, err := m.doc.Location(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("initial location unavailable")
	}
	m.mu.Lock()
	m.lastSeen = loc
	m.mu.Unlock()

	navWatch, err := m.doc.OnNavigate(monCtx, func(address string) {
		m.onAddress(monCtx, address)
	})
	if err != nil {
		m.reset()
		return nil, err
	}

	// Some SPA routers rewrite the address without emitting history
	// events; tree mutations are the fallback signal.
	treeWatch, err := m.doc.ObserveTree(monCtx, func(dom.Mutation) {
		address, locErr := m.doc.Location(monCtx)
		if locErr != nil {
			return
		}
		m.onAddress(monCtx, address)
	})
	if err != nil {
		navWatch.Stop()
		m.reset()
		return nil, err
	}

	m.mu.Lock()
	m.navWatch = navWatch
	m.treeWatch = treeWatch
	m.mu.Unlock()

	return m.teardown, nil
}

func (m *Monitor) teardown() {
	m.mu.Lock()
	nav, tree := m.navWatch, m.treeWatch
	cancel := m.cancel
	m.navWatch, m.treeWatch, m.cancel = nil, nil, nil
	m.active = false
	m.mu.Unlock()

	if nav != nil {
		nav.Stop()
	}
	if tree != nil {
		tree.Stop()
	}
	if cancel != nil {
		cancel()
	}
}

func (m *Monitor) reset() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.active = false
	m.mu.Unlock()
}

// onAddress processes one observed address. The last-seen address is
// updated before any other work so a rapid second transition is never
// mistaken for a repeat of the first.
func (m *Monitor) onAddress(ctx context.Context, address string) {
	m.mu.Lock()
	if !m.active || address == m.lastSeen {
		m.mu.Unlock()
		return
	}
	old := m.lastSeen
	m.lastSeen = address
	m.mu.Unlock()

	class := m.Classify(address)
	m.log.Debug().Str("from", old).Str("to", address).Int("class", int(class)).Msg("address changed")

	if m.hooks.PushDashboardState != nil {
		m.hooks.PushDashboardState(class == PageDashboard)
	}

	if class == PageExternal {
		if m.hooks.OnExternalPage != nil {
			m.hooks.OnExternalPage(address)
		}
		return
	}

	if m.hooks.HandleTransition != nil {
		m.hooks.HandleTransition(ctx, old, address)
	}

	if class == PageDashboard {
		if m.hooks.ResetLoginAttempts != nil {
			m.hooks.ResetLoginAttempts()
		}
		go m.initDashboard(ctx)
	}
}

// initDashboard runs the dashboard initialization sequence with exactly
// one retry after the fixed delay.
func (m *Monitor) initDashboard(ctx context.Context) {
	if m.hooks.InitDashboard == nil {
		return
	}

	err := m.hooks.InitDashboard(ctx)
	if err == nil {
		return
	}
	m.log.Debug().Err(err).Msg("dashboard init failed, retrying once")

	select {
	case <-ctx.Done():
		return
	case <-time.After(m.retryDelay):
	}

	if err := m.hooks.InitDashboard(ctx); err != nil {
		m.log.Warn().Err(err).Msg("dashboard init failed after retry")
	}
}

// Classify buckets an address against the configured scope.
func (m *Monitor) Classify(address string) Classification {
	path := address
	if u, err := url.Parse(address); err == nil && u.Path != "" {
		path = u.Path
	}

	if !strings.HasPrefix(path, m.scopePrefix) {
		return PageExternal
	}
	if strings.HasPrefix(path, m.dashboardPath) {
		return PageDashboard
	}
	return PageApp
}

// Package visibility owns the authoritative UI visibility state for one
// rendering surface. The wrapped app re-renders its nav and header at
// will; the store holds what the user asked for and keeps re-applying it
// to whatever nodes currently exist.
package visibility

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmuller/camdeck/internal/bus"
	"github.com/kmuller/camdeck/internal/dom"
	"github.com/kmuller/camdeck/internal/settings"
	"github.com/kmuller/camdeck/internal/surface/watch"
	"github.com/kmuller/camdeck/internal/wait"
)

// State is an immutable snapshot of the surface's visibility flags.
// Fullscreen is host-authoritative; the store only mirrors it.
type State struct {
	NavHidden    bool
	HeaderHidden bool
	IsFullscreen bool
}

// Updater is a decoration's reaction to a state change. It must be a pure
// function of the snapshot it receives and idempotent across repeat calls.
type Updater func(State)

// Bridge is the slice of the host boundary the store consumes.
type Bridge interface {
	ConfigLoad(ctx context.Context) (map[string]string, error)
	ConfigSavePartial(ctx context.Context, patch map[string]string) error
	IsFullScreen(ctx context.Context) (bool, error)
	PushUIState(state bus.UIState)
	OnFullscreenChange(fn func(bool)) (unsubscribe func())
}

// Options configures a Store.
type Options struct {
	Doc            dom.Document
	Bridge         Bridge
	Log            zerolog.Logger
	NavSelector    string
	HeaderSelector string

	// AnchorWait bounds the initialize-time wait for the tracked nodes.
	AnchorWait wait.Options

	// EnforceInterval and EnforcePasses shape the enforcement burst run
	// after init and after each navigation transition.
	EnforceInterval time.Duration
	EnforcePasses   int
}

// Store is the sole owner of the surface's VisibilityState.
type Store struct {
	opts Options
	log  zerolog.Logger

	mu          sync.Mutex
	state       State
	ready       bool
	toggling    bool // ToggleGuard: drops concurrent toggles
	decorations map[string]Updater
	decorOrder  []string
	listeners   map[int]func(State)
	nextToken   int

	watcher         *watch.Watcher
	burstCancel     context.CancelFunc
	unsubFullscreen func()
}

// New creates an uninitialized Store. Toggles and registrations are
// no-ops until Initialize completes.
func New(opts Options) *Store {
	if opts.EnforcePasses <= 0 {
		opts.EnforcePasses = 10
	}
	if opts.EnforceInterval <= 0 {
		opts.EnforceInterval = 300 * time.Millisecond
	}
	return &Store{
		opts:        opts,
		log:         opts.Log.With().Str("component", "visibility").Logger(),
		decorations: make(map[string]Updater),
		listeners:   make(map[int]func(State)),
	}
}

// Initialize loads persisted flags and the host-authoritative fullscreen
// state, waits (bounded) for the tracked nodes, applies the loaded state,
// wires the mutation watcher and fullscreen subscription, and starts the
// enforcement burst. Persistence and host failures degrade to defaults.
func (s *Store) Initialize(ctx context.Context) error {
	loaded := State{}

	if flags, err := s.opts.Bridge.ConfigLoad(ctx); err != nil {
		s.log.Warn().Err(err).Msg("config load failed, using defaults")
	} else {
		loaded.NavHidden = flags[settings.KeyHideNav] == "true"
		loaded.HeaderHidden = flags[settings.KeyHideHeader] == "true"
	}

	if fs, err := s.opts.Bridge.IsFullScreen(ctx); err != nil {
		s.log.Warn().Err(err).Msg("fullscreen query failed")
	} else {
		loaded.IsFullscreen = fs
	}

	// The tracked nodes may never appear on pages the shell does not
	// decorate; a timeout here is an expected outcome, not an error.
	err := wait.For(ctx, s.opts.AnchorWait, func(ctx context.Context) (bool, error) {
		if _, err := s.opts.Doc.Query(ctx, s.opts.NavSelector); err != nil {
			return false, ignoreNotFound(err)
		}
		if _, err := s.opts.Doc.Query(ctx, s.opts.HeaderSelector); err != nil {
			return false, ignoreNotFound(err)
		}
		return true, nil
	})
	if errors.Is(err, wait.ErrTimeout) {
		s.log.Debug().Msg("nav/header absent after bounded wait, proceeding")
	} else if err != nil {
		return err
	}

	s.mu.Lock()
	s.state = loaded
	s.ready = true
	s.mu.Unlock()

	s.applyToTree(ctx, loaded)

	s.unsubFullscreen = s.opts.Bridge.OnFullscreenChange(func(fs bool) {
		s.setFullscreen(fs)
	})

	s.watcher = watch.New(s.opts.Doc, watch.Targets{
		NavSelector:    s.opts.NavSelector,
		HeaderSelector: s.opts.HeaderSelector,
	}, watch.Hooks{
		Enforce:        func() { s.EnforceCurrentState(context.Background()) },
		ToggleInFlight: s.ToggleInFlight,
		OnRemount:      func() { s.notify(s.GetState()) },
	}, s.log)
	if err := s.watcher.Start(ctx); err != nil {
		s.log.Warn().Err(err).Msg("mutation watcher failed to start")
	}

	s.StartEnforcement(ctx)

	s.log.Info().
		Bool("navHidden", loaded.NavHidden).
		Bool("headerHidden", loaded.HeaderHidden).
		Bool("fullscreen", loaded.IsFullscreen).
		Msg("visibility store initialized")
	return nil
}

// GetState returns an immutable snapshot.
func (s *Store) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ToggleInFlight reports whether a toggle currently holds the guard.
func (s *Store) ToggleInFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toggling
}

// ToggleNav flips nav visibility. Dropped silently when uninitialized or
// while another toggle is in flight.
func (s *Store) ToggleNav(ctx context.Context) {
	s.toggle(ctx, func(st State) State {
		st.NavHidden = !st.NavHidden
		return st
	})
}

// ToggleHeader flips header visibility.
func (s *Store) ToggleHeader(ctx context.Context) {
	s.toggle(ctx, func(st State) State {
		st.HeaderHidden = !st.HeaderHidden
		return st
	})
}

// ToggleAll flips nav and header to the same value: both shown only when
// both were hidden, otherwise both hidden. A binary flip, not two
// independent ones.
func (s *Store) ToggleAll(ctx context.Context) {
	s.toggle(ctx, func(st State) State {
		hide := !(st.NavHidden && st.HeaderHidden)
		st.NavHidden = hide
		st.HeaderHidden = hide
		return st
	})
}

func (s *Store) toggle(ctx context.Context, flip func(State) State) {
	s.mu.Lock()
	if !s.ready || s.toggling {
		s.mu.Unlock()
		return // reentrancy violations are dropped, not errors
	}
	s.toggling = true
	next := flip(s.state)
	s.state = next
	s.mu.Unlock()

	// The guard is released whatever happens below.
	defer func() {
		s.mu.Lock()
		s.toggling = false
		s.mu.Unlock()
	}()

	// Mutation precedes notification; notification precedes persistence.
	s.applyToTree(ctx, next)
	s.notify(next)

	s.opts.Bridge.PushUIState(bus.UIState{
		NavHidden:    next.NavHidden,
		HeaderHidden: next.HeaderHidden,
	})

	patch := map[string]string{
		settings.KeyHideNav:    strconv.FormatBool(next.NavHidden),
		settings.KeyHideHeader: strconv.FormatBool(next.HeaderHidden),
	}
	if err := s.opts.Bridge.ConfigSavePartial(ctx, patch); err != nil {
		// In-memory state already moved on; persistence is best-effort.
		s.log.Warn().Err(err).Msg("failed to persist visibility flags")
	}
}

// RegisterDecoration stores the updater and immediately invokes it once
// with the current snapshot. Re-registration under the same id replaces
// the updater. No-op before initialization.
func (s *Store) RegisterDecoration(id string, updater Updater) {
	if updater == nil {
		return
	}

	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return
	}
	if _, exists := s.decorations[id]; !exists {
		s.decorOrder = append(s.decorOrder, id)
	}
	s.decorations[id] = updater
	snapshot := s.state
	s.mu.Unlock()

	s.safeInvoke(id, updater, snapshot)
}

// UnregisterDecoration removes one decoration updater.
func (s *Store) UnregisterDecoration(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.decorations[id]; !exists {
		return
	}
	delete(s.decorations, id)
	for i, existing := range s.decorOrder {
		if existing == id {
			s.decorOrder = append(s.decorOrder[:i], s.decorOrder[i+1:]...)
			break
		}
	}
}

// UnregisterAll clears the decoration registry.
func (s *Store) UnregisterAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decorations = make(map[string]Updater)
	s.decorOrder = nil
}

// OnStateChange subscribes to state snapshots; the returned function
// unsubscribes.
func (s *Store) OnStateChange(listener func(State)) (unsubscribe func()) {
	s.mu.Lock()
	token := s.nextToken
	s.nextToken++
	s.listeners[token] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, token)
		s.mu.Unlock()
	}
}

// EnforceCurrentState idempotently re-applies the flags to whatever
// nav/header currently exist. Guarded against the pre-init race.
func (s *Store) EnforceCurrentState(ctx context.Context) {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return
	}
	snapshot := s.state
	s.mu.Unlock()

	s.applyToTree(ctx, snapshot)
}

// StartEnforcement runs a bounded burst of enforcement passes. A freshly
// mounted subtree may reassert its own defaults several times before
// settling, so one pass is not enough. Any previous burst is cancelled.
func (s *Store) StartEnforcement(ctx context.Context) {
	s.mu.Lock()
	if s.burstCancel != nil {
		s.burstCancel()
	}
	burstCtx, cancel := context.WithCancel(ctx)
	s.burstCancel = cancel
	passes := s.opts.EnforcePasses
	interval := s.opts.EnforceInterval
	s.mu.Unlock()

	go func() {
		defer cancel()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for i := 0; i < passes; i++ {
			select {
			case <-burstCtx.Done():
				return
			case <-ticker.C:
				s.EnforceCurrentState(burstCtx)
			}
		}
	}()
}

// HandleTransition reacts to a detected navigation transition: re-enforce,
// restart the burst, and notify decorations and listeners so anything the
// new tree dropped gets re-injected.
func (s *Store) HandleTransition(ctx context.Context, oldAddress, newAddress string) {
	s.mu.Lock()
	ready := s.ready
	snapshot := s.state
	s.mu.Unlock()
	if !ready {
		return
	}

	s.log.Debug().Str("from", oldAddress).Str("to", newAddress).Msg("transition")

	s.applyToTree(ctx, snapshot)
	s.StartEnforcement(ctx)
	s.notify(snapshot)
}

// Destroy disconnects observers, cancels the burst, unsubscribes the
// fullscreen listener, clears registrations, and resets to defaults.
// Safe to call repeatedly.
func (s *Store) Destroy() {
	s.mu.Lock()
	if s.burstCancel != nil {
		s.burstCancel()
		s.burstCancel = nil
	}
	watcher := s.watcher
	s.watcher = nil
	unsub := s.unsubFullscreen
	s.unsubFullscreen = nil
	s.decorations = make(map[string]Updater)
	s.decorOrder = nil
	s.listeners = make(map[int]func(State))
	s.state = State{}
	s.ready = false
	s.toggling = false
	s.mu.Unlock()

	if watcher != nil {
		watcher.Stop()
	}
	if unsub != nil {
		unsub()
	}
}

// setFullscreen records a host-authoritative fullscreen transition and
// notifies decorations and listeners.
func (s *Store) setFullscreen(fs bool) {
	s.mu.Lock()
	if !s.ready || s.state.IsFullscreen == fs {
		s.mu.Unlock()
		return
	}
	s.state.IsFullscreen = fs
	snapshot := s.state
	s.mu.Unlock()

	s.notify(snapshot)
}

// applyToTree writes display on the tracked nodes. Writes happen outside
// the store lock and only when the current value differs, so observer
// callbacks re-entering enforcement terminate immediately.
func (s *Store) applyToTree(ctx context.Context, st State) {
	s.applyOne(ctx, s.opts.NavSelector, st.NavHidden)
	s.applyOne(ctx, s.opts.HeaderSelector, st.HeaderHidden)
}

// shownDisplay is what a previously collapsed node is restored to; the
// wrapped app lays out both tracked nodes as flex containers.
const shownDisplay = "flex"

func (s *Store) applyOne(ctx context.Context, selector string, hidden bool) {
	el, err := s.opts.Doc.Query(ctx, selector)
	if err != nil {
		if !errors.Is(err, dom.ErrNotFound) {
			s.log.Debug().Err(err).Str("selector", selector).Msg("enforce query failed")
		}
		return // absent on this page; expected
	}

	current, err := el.Style(ctx, "display")
	if err != nil {
		return
	}

	switch {
	case hidden && current != "none":
		if err := el.SetStyle(ctx, "display", "none"); err != nil && !errors.Is(err, dom.ErrDetached) {
			s.log.Debug().Err(err).Str("selector", selector).Msg("enforce write failed")
		}
	case !hidden && current == "none":
		if err := el.SetStyle(ctx, "display", shownDisplay); err != nil && !errors.Is(err, dom.ErrDetached) {
			s.log.Debug().Err(err).Str("selector", selector).Msg("enforce write failed")
		}
	}
}

// notify fans the snapshot out to decorations (in registration order) and
// listeners. A panicking updater is logged and skipped without aborting
// the remaining notifications.
func (s *Store) notify(st State) {
	s.mu.Lock()
	ids := append([]string(nil), s.decorOrder...)
	updaters := make([]Updater, 0, len(ids))
	for _, id := range ids {
		updaters = append(updaters, s.decorations[id])
	}
	listeners := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for i, updater := range updaters {
		s.safeInvoke(ids[i], updater, st)
	}
	for _, fn := range listeners {
		fn(st)
	}
}

func (s *Store) safeInvoke(id string, updater Updater, st State) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn().Str("decoration", id).Interface("panic", r).Msg("decoration updater panicked")
		}
	}()
	updater(st)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, dom.ErrNotFound) {
		return nil
	}
	return err
}

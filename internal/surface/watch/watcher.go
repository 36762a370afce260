// Package watch reacts to changes the foreign app makes to the tracked
// nav/header nodes. It runs two tiers of observation: targeted attribute
// observers on the tracked nodes themselves, and one document-level
// structural observer that detects wholesale remounts (the SPA replacing
// the nodes during a route change) by re-resolving the selectors and
// comparing node identity.
package watch

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kmuller/camdeck/internal/dom"
)

// Targets names the tracked nodes.
type Targets struct {
	NavSelector    string
	HeaderSelector string
}

// Hooks connects the watcher back to the visibility store without a
// static dependency on it.
type Hooks struct {
	// Enforce re-applies the authoritative visibility state.
	Enforce func()
	// ToggleInFlight suppresses enforcement while a toggle is mutating
	// the same nodes.
	ToggleInFlight func() bool
	// OnRemount fires after the tracked nodes were replaced, so lost
	// decorations can be re-injected.
	OnRemount func()
}

// Watcher tracks the nav/header nodes across re-renders.
type Watcher struct {
	doc     dom.Document
	targets Targets
	hooks   Hooks
	log     zerolog.Logger

	mu        sync.Mutex
	started   bool
	navID     dom.NodeID
	headerID  dom.NodeID
	navWatch  dom.Watch
	headWatch dom.Watch
	treeWatch dom.Watch
}

// New creates a Watcher. Call Start to begin observing.
func New(doc dom.Document, targets Targets, hooks Hooks, log zerolog.Logger) *Watcher {
	return &Watcher{doc: doc, targets: targets, hooks: hooks, log: log}
}

// Start resolves the tracked nodes, attaches the targeted observers, and
// begins structural observation. Missing nodes are tolerated: the
// structural observer picks them up when they appear.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	w.attachTargeted(ctx)

	tw, err := w.doc.ObserveTree(ctx, func(dom.Mutation) {
		w.onStructuralChange(ctx)
	})
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.treeWatch = tw
	w.mu.Unlock()
	return nil
}

// Stop disconnects every observer. Safe to call repeatedly.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, watch := range []dom.Watch{w.navWatch, w.headWatch, w.treeWatch} {
		if watch != nil {
			watch.Stop()
		}
	}
	w.navWatch, w.headWatch, w.treeWatch = nil, nil, nil
	w.navID, w.headerID = 0, 0
	w.started = false
}

// attachTargeted (re)attaches the per-node attribute observers to whatever
// currently matches the tracked selectors.
func (w *Watcher) attachTargeted(ctx context.Context) {
	navID, navWatch := w.observeOne(ctx, w.targets.NavSelector)
	headerID, headWatch := w.observeOne(ctx, w.targets.HeaderSelector)

	w.mu.Lock()
	if w.navWatch != nil {
		w.navWatch.Stop()
	}
	if w.headWatch != nil {
		w.headWatch.Stop()
	}
	w.navID, w.navWatch = navID, navWatch
	w.headerID, w.headWatch = headerID, headWatch
	w.mu.Unlock()
}

func (w *Watcher) observeOne(ctx context.Context, selector string) (dom.NodeID, dom.Watch) {
	el, err := w.doc.Query(ctx, selector)
	if err != nil {
		if !errors.Is(err, dom.ErrNotFound) {
			w.log.Debug().Err(err).Str("selector", selector).Msg("tracked node query failed")
		}
		return 0, nil
	}

	watch, err := w.doc.ObserveNode(ctx, el, func(dom.Mutation) {
		if w.hooks.ToggleInFlight != nil && w.hooks.ToggleInFlight() {
			return
		}
		if w.hooks.Enforce != nil {
			w.hooks.Enforce()
		}
	})
	if err != nil {
		w.log.Debug().Err(err).Str("selector", selector).Msg("node observation failed")
		return el.ID(), nil
	}
	return el.ID(), watch
}

// onStructuralChange re-resolves the tracked selectors and compares node
// identity against the observed nodes. A replacement means the SPA
// remounted the subtree: observers move to the new nodes, state is
// re-enforced, and the remount notification cascades.
func (w *Watcher) onStructuralChange(ctx context.Context) {
	w.mu.Lock()
	prevNav, prevHeader := w.navID, w.headerID
	started := w.started
	w.mu.Unlock()
	if !started {
		return
	}

	curNav := w.resolveID(ctx, w.targets.NavSelector)
	curHeader := w.resolveID(ctx, w.targets.HeaderSelector)

	// Identity unchanged (including still-absent): nothing to do.
	if curNav == prevNav && curHeader == prevHeader {
		return
	}

	w.log.Debug().
		Int64("nav", int64(curNav)).
		Int64("header", int64(curHeader)).
		Msg("tracked nodes replaced, re-attaching observers")

	w.attachTargeted(ctx)

	if w.hooks.Enforce != nil {
		w.hooks.Enforce()
	}
	if w.hooks.OnRemount != nil {
		w.hooks.OnRemount()
	}
}

func (w *Watcher) resolveID(ctx context.Context, selector string) dom.NodeID {
	el, err := w.doc.Query(ctx, selector)
	if err != nil {
		return 0
	}
	return el.ID()
}

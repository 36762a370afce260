// Package decor injects the shell's own controls into the foreign tree.
// Every decoration follows one contract: check-by-id before creating,
// bounded polling for the required anchor, and on success an updater bound
// to the injected node. The updater is a pure function of the snapshot it
// receives and never reads global state.
package decor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmuller/camdeck/internal/dom"
	"github.com/kmuller/camdeck/internal/surface/visibility"
	"github.com/kmuller/camdeck/internal/wait"
)

// ControlBinding is the page-callable function routing decoration clicks
// back into the shell.
const ControlBinding = "__camdeck_control"

// Decoration element ids.
const (
	IDNavToggle        = "camdeck-nav-toggle"
	IDHeaderToggle     = "camdeck-header-toggle"
	IDFullscreenToggle = "camdeck-fullscreen-toggle"
	IDReturnDashboard  = "camdeck-return-dashboard"
)

// Binding payloads, one per decoration action.
const (
	actionToggleNav        = "toggle-nav"
	actionToggleHeader     = "toggle-header"
	actionToggleFullscreen = "toggle-fullscreen"
	actionReturnDashboard  = "return-dashboard"
)

// Controls receives decoration clicks. Nil members are ignored.
type Controls struct {
	ToggleNav         func()
	ToggleHeader      func()
	ToggleFullscreen  func()
	ReturnToDashboard func()
}

// Anchors names where decorations attach.
type Anchors struct {
	NavSelector          string
	HeaderSelector       string
	HeaderLoaderSelector string
}

// Options configures a Registry.
type Options struct {
	Doc          dom.Document
	Controls     Controls
	Anchors      Anchors
	AnchorWait   time.Duration
	PollInterval time.Duration
	Log          zerolog.Logger
}

// Registry injects decorations and hands their updaters to the caller.
type Registry struct {
	doc      dom.Document
	controls Controls
	anchors  Anchors
	waitOpts wait.Options
	log      zerolog.Logger

	bindOnce sync.Once
	bindErr  error
}

// New creates a Registry.
func New(opts Options) *Registry {
	return &Registry{
		doc:      opts.Doc,
		controls: opts.Controls,
		anchors:  opts.Anchors,
		waitOpts: wait.Options{Interval: opts.PollInterval, Timeout: opts.AnchorWait},
		log:      opts.Log.With().Str("component", "decor").Logger(),
	}
}

// InjectAll injects every decoration and returns id→updater for the ones
// that found their anchor. A decoration whose anchor never appeared is
// simply absent from the result: unavailable this cycle, not an error.
func (r *Registry) InjectAll(ctx context.Context) map[string]visibility.Updater {
	out := make(map[string]visibility.Updater, 4)
	for id, inject := range map[string]func(context.Context) (visibility.Updater, error){
		IDNavToggle:        r.InjectNavToggle,
		IDHeaderToggle:     r.InjectHeaderToggle,
		IDFullscreenToggle: r.InjectFullscreenToggle,
		IDReturnDashboard:  r.InjectReturnDashboard,
	} {
		updater, err := inject(ctx)
		if err != nil {
			r.log.Warn().Err(err).Str("decoration", id).Msg("injection failed")
			continue
		}
		if updater != nil {
			out[id] = updater
		}
	}
	return out
}

// InjectNavToggle places the navigation show/hide button inside the nav.
func (r *Registry) InjectNavToggle(ctx context.Context) (visibility.Updater, error) {
	el, err := r.ensure(ctx, IDNavToggle, actionToggleNav, "☰", r.navAnchor)
	if err != nil || el == nil {
		return nil, err
	}
	// Updaters outlive the injection call; they must not die with its
	// context.
	upCtx := context.WithoutCancel(ctx)
	return func(s visibility.State) {
		r.reflect(upCtx, el, s.NavHidden, "Show navigation", "Hide navigation")
	}, nil
}

// InjectHeaderToggle places the header show/hide button in the header
// control area.
func (r *Registry) InjectHeaderToggle(ctx context.Context) (visibility.Updater, error) {
	el, err := r.ensure(ctx, IDHeaderToggle, actionToggleHeader, "▭", r.headerAnchor)
	if err != nil || el == nil {
		return nil, err
	}
	upCtx := context.WithoutCancel(ctx)
	return func(s visibility.State) {
		r.reflect(upCtx, el, s.HeaderHidden, "Show header", "Hide header")
	}, nil
}

// InjectFullscreenToggle places the fullscreen button in the header
// control area.
func (r *Registry) InjectFullscreenToggle(ctx context.Context) (visibility.Updater, error) {
	el, err := r.ensure(ctx, IDFullscreenToggle, actionToggleFullscreen, "⛶", r.headerAnchor)
	if err != nil || el == nil {
		return nil, err
	}
	upCtx := context.WithoutCancel(ctx)
	return func(s visibility.State) {
		r.reflect(upCtx, el, s.IsFullscreen, "Exit fullscreen", "Enter fullscreen")
	}, nil
}

// InjectReturnDashboard places the return-to-dashboard button in the
// header control area.
func (r *Registry) InjectReturnDashboard(ctx context.Context) (visibility.Updater, error) {
	el, err := r.ensure(ctx, IDReturnDashboard, actionReturnDashboard, "⌂", r.headerAnchor)
	if err != nil || el == nil {
		return nil, err
	}
	return func(visibility.State) {
		// Always available; nothing in the snapshot changes its face.
		_ = el
	}, nil
}

// ensure implements the shared injection contract: expose the click
// binding, return the existing node when the id is already present, wait
// for the anchor, insert. A nil element with nil error means the anchor
// never appeared within the bounded wait.
func (r *Registry) ensure(ctx context.Context, id, action, glyph string, anchor func(context.Context) (dom.Element, dom.InsertPosition, error)) (dom.Element, error) {
	if err := r.ensureBinding(ctx); err != nil {
		return nil, err
	}

	if el, err := r.doc.Query(ctx, "#"+id); err == nil {
		return el, nil
	} else if !errors.Is(err, dom.ErrNotFound) {
		return nil, err
	}

	parent, pos, err := anchor(ctx)
	if err != nil {
		if errors.Is(err, wait.ErrTimeout) {
			r.log.Debug().Str("decoration", id).Msg("anchor never appeared, skipping this cycle")
			return nil, nil
		}
		return nil, err
	}

	markup := fmt.Sprintf(
		`<button id=%q class="camdeck-control" type="button" onclick="window.%s('%s')">%s</button>`,
		id, ControlBinding, action, glyph,
	)
	el, err := r.doc.InsertHTML(ctx, parent, pos, markup)
	if err != nil {
		return nil, err
	}
	r.log.Debug().Str("decoration", id).Msg("injected")
	return el, nil
}

func (r *Registry) ensureBinding(ctx context.Context) error {
	r.bindOnce.Do(func() {
		r.bindErr = r.doc.ExposeBinding(ctx, ControlBinding, r.dispatch)
	})
	return r.bindErr
}

func (r *Registry) dispatch(payload string) {
	var fn func()
	switch payload {
	case actionToggleNav:
		fn = r.controls.ToggleNav
	case actionToggleHeader:
		fn = r.controls.ToggleHeader
	case actionToggleFullscreen:
		fn = r.controls.ToggleFullscreen
	case actionReturnDashboard:
		fn = r.controls.ReturnToDashboard
	default:
		r.log.Warn().Str("payload", payload).Msg("unknown control action")
		return
	}
	if fn != nil {
		fn()
	}
}

// navAnchor waits for the nav node and appends into it.
func (r *Registry) navAnchor(ctx context.Context) (dom.Element, dom.InsertPosition, error) {
	el, err := r.waitFor(ctx, r.anchors.NavSelector)
	if err != nil {
		return nil, 0, err
	}
	return el, dom.InsertAppend, nil
}

// headerAnchor waits for the header, then picks the control area: the
// header's children minus any loader nodes. With two or more candidates
// the controls prepend into the last one (the app's right-hand action
// cluster); otherwise they append straight to the header.
func (r *Registry) headerAnchor(ctx context.Context) (dom.Element, dom.InsertPosition, error) {
	header, err := r.waitFor(ctx, r.anchors.HeaderSelector)
	if err != nil {
		return nil, 0, err
	}

	children, err := header.Children(ctx)
	if err != nil {
		return nil, 0, err
	}

	loaderIDs := make(map[dom.NodeID]bool)
	if r.anchors.HeaderLoaderSelector != "" {
		loaders, err := r.doc.QueryAll(ctx, r.anchors.HeaderLoaderSelector)
		if err == nil {
			for _, l := range loaders {
				loaderIDs[l.ID()] = true
			}
		}
	}

	candidates := children[:0:0]
	for _, c := range children {
		if !loaderIDs[c.ID()] {
			candidates = append(candidates, c)
		}
	}

	if len(candidates) >= 2 {
		return candidates[len(candidates)-1], dom.InsertPrepend, nil
	}
	return header, dom.InsertAppend, nil
}

func (r *Registry) waitFor(ctx context.Context, selector string) (dom.Element, error) {
	return wait.Until(ctx, r.waitOpts,
		func(ctx context.Context) (dom.Element, error) {
			el, err := r.doc.Query(ctx, selector)
			if errors.Is(err, dom.ErrNotFound) {
				return nil, nil
			}
			return el, err
		},
		func(el dom.Element) bool { return el != nil },
	)
}

// reflect updates a toggle button's face from a state flag. Detached
// nodes are tolerated; the next injection cycle replaces them.
func (r *Registry) reflect(ctx context.Context, el dom.Element, hidden bool, titleWhenHidden, titleWhenShown string) {
	title := titleWhenShown
	if hidden {
		title = titleWhenHidden
	}
	if err := el.SetAttribute(ctx, "title", title); err != nil {
		r.log.Debug().Err(err).Msg("decoration update skipped")
		return
	}
	if err := el.SetAttribute(ctx, "aria-pressed", fmt.Sprintf("%t", hidden)); err != nil {
		r.log.Debug().Err(err).Msg("decoration update skipped")
	}
}

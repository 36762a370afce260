// Package camera drives the foreign app's camera zoom from outside its
// private render state. Zoom lives inside the app's own component tree;
// the only ways in are synthetic clicks on the per-tile overlays and a
// read-back probe that walks the tree's framework-linkage properties.
package camera

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmuller/camdeck/internal/bus"
	"github.com/kmuller/camdeck/internal/dom"
	"github.com/kmuller/camdeck/internal/wait"
)

// HotkeyBinding is the page-callable function delivering digit keys.
const HotkeyBinding = "__camdeck_hotkey"

// Probe node ids. Both are transient: created per read, deleted after.
const (
	probeMarkerID = "camdeck-zoom-probe"
	probeScriptID = "camdeck-zoom-probe-script"
	fastStyleID   = "camdeck-zoom-fast"
)

// ErrNoTile indicates no camera tile carries the requested index.
var ErrNoTile = errors.New("camera: no tile with that index")

// Selectors names the foreign app's camera grid pieces.
type Selectors struct {
	Tile        string
	TileName    string
	TileIndex   string // attribute carrying the camera index
	ZoomOverlay string
}

// Hooks connects the bridge to the host mirror and the page classifier.
type Hooks struct {
	PushCameraList func(bus.CameraList)
	PushCameraZoom func(index int)
	OnDashboard    func() bool
}

// Options configures a Bridge.
type Options struct {
	Doc          dom.Document
	Selectors    Selectors
	Hooks        Hooks
	ConfirmWait  time.Duration
	PollInterval time.Duration
	Log          zerolog.Logger
}

// Bridge implements camera detection, zoom read-back, and zoom drive.
type Bridge struct {
	doc      dom.Document
	sel      Selectors
	hooks    Hooks
	waitOpts wait.Options
	log      zerolog.Logger

	mu      sync.Mutex
	zooming bool
}

// New creates a Bridge.
func New(opts Options) *Bridge {
	return &Bridge{
		doc:      opts.Doc,
		sel:      opts.Selectors,
		hooks:    opts.Hooks,
		waitOpts: wait.Options{Interval: opts.PollInterval, Timeout: opts.ConfirmWait},
		log:      opts.Log.With().Str("component", "camera").Logger(),
	}
}

// DetectCameras enumerates the grid tiles, reports them to the host, and
// resets the host-known zoom index. Missing index attributes fall back to
// document order; missing names fall back to "Camera N".
func (b *Bridge) DetectCameras(ctx context.Context) (bus.CameraList, error) {
	tiles, err := b.doc.QueryAll(ctx, b.sel.Tile)
	if err != nil {
		return bus.CameraList{}, err
	}

	list := bus.CameraList{Cameras: make([]bus.CameraInfo, 0, len(tiles))}
	for pos, tile := range tiles {
		index := pos
		if raw, ok, _ := tile.Attribute(ctx, b.sel.TileIndex); ok {
			if n, convErr := strconv.Atoi(raw); convErr == nil {
				index = n
			}
		}

		name := ""
		if nameEl, findErr := tile.Find(ctx, b.sel.TileName); findErr == nil {
			name, _ = nameEl.Text(ctx)
		}
		if name == "" {
			name = fmt.Sprintf("Camera %d", index+1)
		}

		list.Cameras = append(list.Cameras, bus.CameraInfo{Index: index, Name: name})

		if !list.ZoomSupported {
			if _, findErr := tile.Find(ctx, b.sel.ZoomOverlay); findErr == nil {
				list.ZoomSupported = true
			}
		}
	}

	sort.Slice(list.Cameras, func(i, j int) bool {
		return list.Cameras[i].Index < list.Cameras[j].Index
	})

	b.log.Debug().Int("cameras", len(list.Cameras)).Bool("zoom", list.ZoomSupported).Msg("cameras detected")

	if b.hooks.PushCameraList != nil {
		b.hooks.PushCameraList(list)
	}
	if b.hooks.PushCameraZoom != nil {
		b.hooks.PushCameraZoom(-1)
	}
	return list, nil
}

// GetCurrentZoomIndex reads the zoom index out of the foreign app's
// private render state. It plants a hidden marker node, injects a script
// that walks the framework-linkage properties from tile 0 upward and
// writes the found index onto the marker, then reads the marker back.
// Marker and script are removed in a step that always runs. Any drift in
// the foreign app degrades this to -1, never to an error.
func (b *Bridge) GetCurrentZoomIndex(ctx context.Context) int {
	body, err := b.doc.Query(ctx, "body")
	if err != nil {
		return -1
	}

	marker, err := b.doc.InsertHTML(ctx, body, dom.InsertAppend,
		fmt.Sprintf(`<div id=%q style="display: none"></div>`, probeMarkerID))
	if err != nil {
		return -1
	}

	var script dom.Element
	defer func() {
		if removeErr := marker.Remove(ctx); removeErr != nil {
			b.log.Debug().Err(removeErr).Msg("probe marker cleanup failed")
		}
		if script != nil {
			if removeErr := script.Remove(ctx); removeErr != nil {
				b.log.Debug().Err(removeErr).Msg("probe script cleanup failed")
			}
		}
	}()

	script, err = b.doc.InsertHTML(ctx, body, dom.InsertAppend,
		fmt.Sprintf(`<script id=%q>%s</script>`, probeScriptID, ZoomProbeScript(b.sel.Tile, probeMarkerID)))
	if err != nil {
		return -1
	}

	raw, err := wait.Until(ctx, b.waitOpts,
		func(ctx context.Context) (string, error) {
			v, _, attrErr := marker.Attribute(ctx, "data-zoom-index")
			if attrErr != nil {
				return "", attrErr
			}
			return v, nil
		},
		func(v string) bool { return v != "" },
	)
	if err != nil {
		return -1
	}

	index, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return index
}

// ZoomToCamera drives the grid to show camera index zoomed. The foreign
// app only toggles zoom per tile, so reaching B from a zoomed A passes
// through the grid state: unzoom A, then zoom B. Calling with the already
// zoomed index toggles back to the grid. Transitions are bracketed by a
// style override collapsing the app's animation, removed even on error.
func (b *Bridge) ZoomToCamera(ctx context.Context, index int) error {
	b.mu.Lock()
	if b.zooming {
		b.mu.Unlock()
		b.log.Debug().Int("index", index).Msg("zoom already in flight, dropped")
		return nil
	}
	b.zooming = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.zooming = false
		b.mu.Unlock()
	}()

	restore, err := b.collapseTransitions(ctx)
	if err == nil {
		defer restore()
	}

	current := b.GetCurrentZoomIndex(ctx)

	switch {
	case current == index:
		if err := b.clickOverlay(ctx, index); err != nil {
			return err
		}
		return b.confirmZoom(ctx, -1)

	case current >= 0:
		if err := b.clickOverlay(ctx, current); err != nil {
			return err
		}
		if err := b.confirmZoom(ctx, -1); err != nil {
			return err
		}
		if err := b.clickOverlay(ctx, index); err != nil {
			return err
		}
		return b.confirmZoom(ctx, index)

	default:
		if err := b.clickOverlay(ctx, index); err != nil {
			return err
		}
		return b.confirmZoom(ctx, index)
	}
}

// Unzoom returns the grid to its unzoomed state. No-op when nothing is
// zoomed.
func (b *Bridge) Unzoom(ctx context.Context) error {
	current := b.GetCurrentZoomIndex(ctx)
	if current < 0 {
		return nil
	}
	restore, err := b.collapseTransitions(ctx)
	if err == nil {
		defer restore()
	}
	if err := b.clickOverlay(ctx, current); err != nil {
		return err
	}
	return b.confirmZoom(ctx, -1)
}

// InstallHotkeys exposes the digit binding and injects the page-side
// keydown listener. Digits 1-9 zoom camera digit-1 when that tile exists;
// 0 always unzooms. The listener ignores modified keys and text fields;
// the handler ignores everything off the dashboard.
func (b *Bridge) InstallHotkeys(ctx context.Context) error {
	if err := b.doc.ExposeBinding(ctx, HotkeyBinding, func(payload string) {
		b.onHotkey(ctx, payload)
	}); err != nil {
		return err
	}
	_, err := b.doc.Eval(ctx, HotkeyListenerScript())
	return err
}

func (b *Bridge) onHotkey(ctx context.Context, payload string) {
	if b.hooks.OnDashboard != nil && !b.hooks.OnDashboard() {
		return
	}

	digit, err := strconv.Atoi(payload)
	if err != nil || digit < 0 || digit > 9 {
		return
	}

	if digit == 0 {
		if err := b.Unzoom(ctx); err != nil {
			b.log.Debug().Err(err).Msg("hotkey unzoom failed")
		}
		return
	}

	index := digit - 1
	if _, err := b.overlayFor(ctx, index); err != nil {
		return
	}
	if err := b.ZoomToCamera(ctx, index); err != nil {
		b.log.Debug().Err(err).Int("index", index).Msg("hotkey zoom failed")
	}
	if b.hooks.PushCameraZoom != nil {
		b.hooks.PushCameraZoom(b.GetCurrentZoomIndex(ctx))
	}
}

func (b *Bridge) clickOverlay(ctx context.Context, index int) error {
	overlay, err := b.overlayFor(ctx, index)
	if err != nil {
		return err
	}
	return overlay.ClickSequence(ctx)
}

// overlayFor resolves the zoom overlay of the tile carrying index,
// falling back to document order when the index attribute is absent.
func (b *Bridge) overlayFor(ctx context.Context, index int) (dom.Element, error) {
	tiles, err := b.doc.QueryAll(ctx, b.sel.Tile)
	if err != nil {
		return nil, err
	}

	for pos, tile := range tiles {
		tileIndex := pos
		if raw, ok, _ := tile.Attribute(ctx, b.sel.TileIndex); ok {
			if n, convErr := strconv.Atoi(raw); convErr == nil {
				tileIndex = n
			}
		}
		if tileIndex != index {
			continue
		}
		overlay, findErr := tile.Find(ctx, b.sel.ZoomOverlay)
		if findErr != nil {
			return nil, findErr
		}
		return overlay, nil
	}
	return nil, ErrNoTile
}

// confirmZoom polls the read-back bridge until it reports want.
func (b *Bridge) confirmZoom(ctx context.Context, want int) error {
	err := wait.For(ctx, b.waitOpts, func(ctx context.Context) (bool, error) {
		return b.GetCurrentZoomIndex(ctx) == want, nil
	})
	if err != nil {
		return fmt.Errorf("camera: zoom did not reach %d: %w", want, err)
	}
	return nil
}

// collapseTransitions installs the animation-collapsing style override
// and returns its remover.
func (b *Bridge) collapseTransitions(ctx context.Context) (func(), error) {
	body, err := b.doc.Query(ctx, "body")
	if err != nil {
		return nil, err
	}
	style, err := b.doc.InsertHTML(ctx, body, dom.InsertAppend,
		fmt.Sprintf(`<style id=%q>* { transition-duration: 1ms !important; animation-duration: 1ms !important; }</style>`, fastStyleID))
	if err != nil {
		return nil, err
	}
	return func() {
		if removeErr := style.Remove(ctx); removeErr != nil {
			b.log.Debug().Err(removeErr).Msg("fast-transition style cleanup failed")
		}
	}, nil
}

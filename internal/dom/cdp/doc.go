// Package cdp implements the dom ports on a Chromium page driven over the
// DevTools protocol via rod. Node identity is the protocol's backend node
// id, which survives re-queries and changes when the app remounts a node.
// Mutation observation runs as injected MutationObservers reporting back
// through a runtime binding.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/kmuller/camdeck/internal/dom"
)

// mutationBinding is the page-callable function the injected observers
// report through.
const mutationBinding = "__camdeck_mutation"

// Document implements dom.Document on one rod page.
type Document struct {
	page *rod.Page
	log  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	watches   map[int]watchEntry
	nextToken int
	listening bool
}

type watchEntry struct {
	fn     func(dom.Mutation)
	target dom.NodeID
}

// NewDocument wraps a connected page.
func NewDocument(page *rod.Page, log zerolog.Logger) *Document {
	ctx, cancel := context.WithCancel(context.Background())
	return &Document{
		page:    page,
		log:     log.With().Str("component", "cdp").Logger(),
		ctx:     ctx,
		cancel:  cancel,
		watches: make(map[int]watchEntry),
	}
}

// Close tears down the binding listeners.
func (d *Document) Close() {
	d.cancel()
}

// Query implements dom.Document. It does not wait: absence is reported
// immediately so reconciliation loops control their own cadence.
func (d *Document) Query(ctx context.Context, selector string) (dom.Element, error) {
	el, err := d.page.Context(ctx).Sleeper(rod.NotFoundSleeper).Element(selector)
	if err != nil {
		var notFound *rod.ElementNotFoundError
		if errors.As(err, &notFound) {
			return nil, dom.ErrNotFound
		}
		return nil, err
	}
	return d.wrap(el)
}

// QueryAll implements dom.Document.
func (d *Document) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	els, err := d.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		wrapped, wrapErr := d.wrap(el)
		if wrapErr != nil {
			// The node vanished between the query and identification.
			continue
		}
		out = append(out, wrapped)
	}
	return out, nil
}

// Location implements dom.Document.
func (d *Document) Location(ctx context.Context) (string, error) {
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// Eval implements dom.Document.
func (d *Document) Eval(ctx context.Context, js string) (json.RawMessage, error) {
	res, err := d.page.Context(ctx).Eval(js)
	if err != nil {
		return nil, err
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// InsertHTML implements dom.Document. Script fragments are rebuilt as real
// script elements so they execute on insertion.
func (d *Document) InsertHTML(ctx context.Context, parent dom.Element, pos dom.InsertPosition, fragment string) (dom.Element, error) {
	pe, ok := parent.(*element)
	if !ok {
		return nil, dom.ErrDetached
	}

	position := "append"
	if pos == dom.InsertPrepend {
		position = "prepend"
	}

	el, err := pe.el.Context(ctx).ElementByJS(rod.Eval(`(pos, html) => {
		const tpl = document.createElement('template');
		tpl.innerHTML = html;
		let node = tpl.content.firstElementChild;
		if (!node) { return null; }
		if (node.tagName === 'SCRIPT') {
			const script = document.createElement('script');
			for (const attr of node.attributes) { script.setAttribute(attr.name, attr.value); }
			script.textContent = node.textContent;
			node = script;
		}
		if (pos === 'prepend') { this.prepend(node); } else { this.appendChild(node); }
		return node;
	}`, position, fragment))
	if err != nil {
		return nil, fmt.Errorf("cdp: insert fragment: %w", err)
	}
	return d.wrap(el)
}

// ObserveNode implements dom.Document.
func (d *Document) ObserveNode(ctx context.Context, el dom.Element, fn func(dom.Mutation)) (dom.Watch, error) {
	e, ok := el.(*element)
	if !ok {
		return nil, dom.ErrDetached
	}
	if err := d.ensureMutationListener(); err != nil {
		return nil, err
	}

	token := d.addWatch(fn, e.id)
	_, err := e.el.Context(ctx).Eval(`(token, binding) => {
		window.__camdeckWatches = window.__camdeckWatches || {};
		const observer = new MutationObserver(() => {
			window[binding](JSON.stringify({ token: token, kind: 'attributes' }));
		});
		observer.observe(this, { attributes: true });
		window.__camdeckWatches[token] = observer;
	}`, token, mutationBinding)
	if err != nil {
		d.removeWatch(token)
		return nil, err
	}
	return d.newWatch(token), nil
}

// ObserveTree implements dom.Document. The page-side observer batches
// bursts of structural mutations into one report.
func (d *Document) ObserveTree(ctx context.Context, fn func(dom.Mutation)) (dom.Watch, error) {
	if err := d.ensureMutationListener(); err != nil {
		return nil, err
	}

	token := d.addWatch(fn, 0)
	_, err := d.page.Context(ctx).Eval(`(token, binding) => {
		window.__camdeckWatches = window.__camdeckWatches || {};
		let pending = false;
		const observer = new MutationObserver(() => {
			if (pending) { return; }
			pending = true;
			setTimeout(() => {
				pending = false;
				window[binding](JSON.stringify({ token: token, kind: 'childList' }));
			}, 50);
		});
		observer.observe(document.documentElement, { childList: true, subtree: true });
		window.__camdeckWatches[token] = observer;
	}`, token, mutationBinding)
	if err != nil {
		d.removeWatch(token)
		return nil, err
	}
	return d.newWatch(token), nil
}

// OnNavigate implements dom.Document. Full navigations and client-side
// history changes both surface here.
func (d *Document) OnNavigate(ctx context.Context, fn func(string)) (dom.Watch, error) {
	watchCtx, cancel := context.WithCancel(d.ctx)

	go d.page.Context(watchCtx).EachEvent(
		func(e *proto.PageFrameNavigated) {
			if e.Frame.ParentID == "" {
				fn(e.Frame.URL)
			}
		},
		func(e *proto.PageNavigatedWithinDocument) {
			fn(e.URL)
		},
	)()

	return &funcWatch{stop: cancel}, nil
}

// ExposeBinding implements dom.Document.
func (d *Document) ExposeBinding(ctx context.Context, name string, fn func(string)) error {
	if err := (proto.RuntimeAddBinding{Name: name}).Call(d.page.Context(ctx)); err != nil {
		return fmt.Errorf("cdp: add binding %s: %w", name, err)
	}

	go d.page.Context(d.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name == name {
			fn(e.Payload)
		}
	})()
	return nil
}

// ensureMutationListener installs the shared mutation binding and its
// dispatcher on first use.
func (d *Document) ensureMutationListener() error {
	d.mu.Lock()
	if d.listening {
		d.mu.Unlock()
		return nil
	}
	d.listening = true
	d.mu.Unlock()

	if err := (proto.RuntimeAddBinding{Name: mutationBinding}).Call(d.page); err != nil {
		d.log.Warn().Err(err).Msg("mutation binding may already exist")
	}

	go d.page.Context(d.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != mutationBinding {
			return
		}
		var report struct {
			Token int    `json:"token"`
			Kind  string `json:"kind"`
		}
		if err := json.Unmarshal([]byte(e.Payload), &report); err != nil {
			d.log.Warn().Err(err).Msg("bad mutation report")
			return
		}

		d.mu.Lock()
		entry, ok := d.watches[report.Token]
		d.mu.Unlock()
		if !ok {
			return
		}

		kind := dom.MutationChildList
		if report.Kind == "attributes" {
			kind = dom.MutationAttributes
		}
		entry.fn(dom.Mutation{Kind: kind, Target: entry.target})
	})()
	return nil
}

func (d *Document) addWatch(fn func(dom.Mutation), target dom.NodeID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	token := d.nextToken
	d.nextToken++
	d.watches[token] = watchEntry{fn: fn, target: target}
	return token
}

func (d *Document) removeWatch(token int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.watches, token)
}

func (d *Document) newWatch(token int) dom.Watch {
	return &funcWatch{stop: func() {
		d.removeWatch(token)
		_, err := d.page.Eval(`(token) => {
			const watches = window.__camdeckWatches || {};
			if (watches[token]) { watches[token].disconnect(); delete watches[token]; }
		}`, token)
		if err != nil {
			d.log.Debug().Err(err).Int("token", token).Msg("observer disconnect failed")
		}
	}}
}

// wrap identifies a rod element by its protocol backend node id.
func (d *Document) wrap(el *rod.Element) (*element, error) {
	node, err := proto.DOMDescribeNode{ObjectID: el.Object.ObjectID}.Call(d.page)
	if err != nil {
		return nil, dom.ErrDetached
	}
	return &element{d: d, el: el, id: dom.NodeID(node.Node.BackendNodeID)}, nil
}

type funcWatch struct {
	once sync.Once
	stop func()
}

func (w *funcWatch) Stop() { w.once.Do(w.stop) }

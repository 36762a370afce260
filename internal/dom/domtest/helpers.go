package domtest

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/kmuller/camdeck/internal/dom"
)

// Test helpers simulating the foreign app's behavior.

// Navigate changes the document location and fires navigation watches,
// like a client-side history push.
func (d *Document) Navigate(url string) {
	d.mu.Lock()
	d.location = url
	fns := make([]func(string), 0, len(d.navWatches))
	for _, fn := range d.navWatches {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(url)
	}
}

// SilentNavigate changes the location without firing navigation watches,
// like a router that rewrites the address bar directly.
func (d *Document) SilentNavigate(url string) {
	d.mu.Lock()
	d.location = url
	d.mu.Unlock()
}

// Remount replaces the first node matching selector with a freshly parsed
// fragment, as a SPA re-render does. The replacement gets a new identity.
// Tree watches fire; node watches on the old node go stale silently.
func (d *Document) Remount(selector, fragment string) dom.Element {
	d.t.Helper()

	d.mu.Lock()
	old := d.queryLocked(d.root, selector)
	if old == nil {
		d.mu.Unlock()
		d.t.Fatalf("domtest: Remount: no node matches %q", selector)
		return nil
	}
	parent := old.Parent

	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil || len(nodes) == 0 {
		d.mu.Unlock()
		d.t.Fatalf("domtest: Remount: parse fragment: %v", err)
		return nil
	}
	var fresh *html.Node
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			fresh = n
			break
		}
	}
	if fresh == nil {
		d.mu.Unlock()
		d.t.Fatalf("domtest: Remount: fragment has no element")
		return nil
	}

	parent.InsertBefore(fresh, old)
	parent.RemoveChild(old)
	delete(d.ids, old)
	el := &element{d: d, n: fresh, id: d.idLocked(fresh)}
	parentID := d.idLocked(parent)
	d.mu.Unlock()

	d.fireTree(dom.Mutation{Kind: dom.MutationChildList, Target: parentID})
	return el
}

// SilentForceStyle mutates an inline style without firing any watch,
// simulating a change that slipped past the observers (the situation the
// enforcement burst exists for).
func (d *Document) SilentForceStyle(selector, prop, value string) {
	d.t.Helper()

	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.queryLocked(d.root, selector)
	if n == nil {
		d.t.Fatalf("domtest: SilentForceStyle: no node matches %q", selector)
	}
	setAttr(n, "style", setStyleProp(getAttr(n, "style"), prop, value))
}

// MustQuery fails the test when the selector matches nothing.
func (d *Document) MustQuery(selector string) dom.Element {
	d.t.Helper()
	el, err := d.Query(context.Background(), selector)
	if err != nil {
		d.t.Fatalf("domtest: MustQuery(%q): %v", selector, err)
	}
	return el
}

// Clicks returns the synthetic click log in dispatch order.
func (d *Document) Clicks() []dom.NodeID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dom.NodeID(nil), d.clickLog...)
}

// ClickCount returns how many synthetic clicks hit the given element.
func (d *Document) ClickCount(el dom.Element) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	count := 0
	for _, id := range d.clickLog {
		if id == el.ID() {
			count++
		}
	}
	return count
}

// EvalLog returns every script passed to Eval.
func (d *Document) EvalLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.evalLog...)
}

// CallBinding invokes a binding registered via ExposeBinding, as a page
// script would. It fails the test when the binding does not exist.
func (d *Document) CallBinding(name, payload string) {
	d.t.Helper()

	d.mu.Lock()
	fn := d.bindings[name]
	d.mu.Unlock()

	if fn == nil {
		d.t.Fatalf("domtest: no binding registered as %q", name)
	}
	fn(payload)
}

// HasBinding reports whether a binding is registered.
func (d *Document) HasBinding(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.bindings[name]
	return ok
}

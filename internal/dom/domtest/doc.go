// Package domtest provides an in-memory dom.Document backed by an
// x/net/html tree with goquery selectors. Mutation, navigation, and click
// callbacks fire synchronously, which makes reconciliation behavior
// deterministic to test. Test helpers simulate what the foreign app does:
// remounting subtrees, reasserting inline styles, moving between pages.
package domtest

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/kmuller/camdeck/internal/dom"
)

// Document is a fake dom.Document.
type Document struct {
	t *testing.T

	mu       sync.Mutex
	root     *html.Node
	ids      map[*html.Node]dom.NodeID
	nextID   dom.NodeID
	location string

	nextWatch   int
	nodeWatches map[int]*nodeWatch
	treeWatches map[int]func(dom.Mutation)
	navWatches  map[int]func(string)

	bindings map[string]func(string)

	// EvalFunc, when set, handles Document.Eval calls. Otherwise Eval
	// records the script and returns JSON null.
	EvalFunc func(js string) (json.RawMessage, error)

	// ScriptFunc, when set, runs whenever a <script> element is inserted,
	// receiving its text. It simulates the page executing an injected
	// fragment.
	ScriptFunc func(script string)

	// ClickFunc, when set, runs after every synthetic click sequence,
	// simulating the foreign app's own click handler.
	ClickFunc func(el dom.Element)

	evalLog  []string
	clickLog []dom.NodeID
}

type nodeWatch struct {
	node *html.Node
	fn   func(dom.Mutation)
}

// New parses src into a fake document at the given location.
func New(t *testing.T, src, location string) *Document {
	t.Helper()

	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("domtest: parse document: %v", err)
	}

	return &Document{
		t:           t,
		root:        root,
		ids:         make(map[*html.Node]dom.NodeID),
		nextID:      1,
		location:    location,
		nodeWatches: make(map[int]*nodeWatch),
		treeWatches: make(map[int]func(dom.Mutation)),
		navWatches:  make(map[int]func(string)),
		bindings:    make(map[string]func(string)),
	}
}

func (d *Document) idLocked(n *html.Node) dom.NodeID {
	if id, ok := d.ids[n]; ok {
		return id
	}
	id := d.nextID
	d.nextID++
	d.ids[n] = id
	return id
}

func (d *Document) attachedLocked(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// Query implements dom.Document.
func (d *Document) Query(_ context.Context, selector string) (dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.queryLocked(d.root, selector)
	if n == nil {
		return nil, dom.ErrNotFound
	}
	return &element{d: d, n: n, id: d.idLocked(n)}, nil
}

// QueryAll implements dom.Document.
func (d *Document) QueryAll(_ context.Context, selector string) ([]dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sel := goquery.NewDocumentFromNode(d.root).Find(selector)
	out := make([]dom.Element, 0, len(sel.Nodes))
	for _, n := range sel.Nodes {
		out = append(out, &element{d: d, n: n, id: d.idLocked(n)})
	}
	return out, nil
}

func (d *Document) queryLocked(scope *html.Node, selector string) *html.Node {
	sel := goquery.NewDocumentFromNode(scope).Find(selector)
	if len(sel.Nodes) == 0 {
		return nil
	}
	return sel.Nodes[0]
}

// Location implements dom.Document.
func (d *Document) Location(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.location, nil
}

// Eval implements dom.Document.
func (d *Document) Eval(_ context.Context, js string) (json.RawMessage, error) {
	d.mu.Lock()
	fn := d.EvalFunc
	d.evalLog = append(d.evalLog, js)
	d.mu.Unlock()

	if fn != nil {
		return fn(js)
	}
	return json.RawMessage("null"), nil
}

// InsertHTML implements dom.Document.
func (d *Document) InsertHTML(_ context.Context, parent dom.Element, pos dom.InsertPosition, fragment string) (dom.Element, error) {
	pe, ok := parent.(*element)
	if !ok {
		return nil, dom.ErrDetached
	}

	d.mu.Lock()
	if !d.attachedLocked(pe.n) {
		d.mu.Unlock()
		return nil, dom.ErrDetached
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), pe.n)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}

	var inserted *html.Node
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			inserted = n
			break
		}
	}
	if inserted == nil {
		d.mu.Unlock()
		return nil, dom.ErrNotFound
	}

	switch pos {
	case dom.InsertPrepend:
		if pe.n.FirstChild != nil {
			pe.n.InsertBefore(inserted, pe.n.FirstChild)
		} else {
			pe.n.AppendChild(inserted)
		}
	default:
		pe.n.AppendChild(inserted)
	}

	el := &element{d: d, n: inserted, id: d.idLocked(inserted)}
	parentID := d.idLocked(pe.n)
	scriptFn := d.ScriptFunc
	var scriptText string
	isScript := inserted.Type == html.ElementNode && inserted.Data == "script"
	if isScript {
		scriptText = textContent(inserted)
	}
	d.mu.Unlock()

	d.fireTree(dom.Mutation{Kind: dom.MutationChildList, Target: parentID})
	if isScript && scriptFn != nil {
		scriptFn(scriptText)
	}
	return el, nil
}

// ObserveNode implements dom.Document.
func (d *Document) ObserveNode(_ context.Context, el dom.Element, fn func(dom.Mutation)) (dom.Watch, error) {
	e, ok := el.(*element)
	if !ok {
		return nil, dom.ErrDetached
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	token := d.nextWatch
	d.nextWatch++
	d.nodeWatches[token] = &nodeWatch{node: e.n, fn: fn}
	return &watch{stop: func() {
		d.mu.Lock()
		delete(d.nodeWatches, token)
		d.mu.Unlock()
	}}, nil
}

// ObserveTree implements dom.Document.
func (d *Document) ObserveTree(_ context.Context, fn func(dom.Mutation)) (dom.Watch, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	token := d.nextWatch
	d.nextWatch++
	d.treeWatches[token] = fn
	return &watch{stop: func() {
		d.mu.Lock()
		delete(d.treeWatches, token)
		d.mu.Unlock()
	}}, nil
}

// OnNavigate implements dom.Document.
func (d *Document) OnNavigate(_ context.Context, fn func(string)) (dom.Watch, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	token := d.nextWatch
	d.nextWatch++
	d.navWatches[token] = fn
	return &watch{stop: func() {
		d.mu.Lock()
		delete(d.navWatches, token)
		d.mu.Unlock()
	}}, nil
}

// ExposeBinding implements dom.Document.
func (d *Document) ExposeBinding(_ context.Context, name string, fn func(string)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bindings[name] = fn
	return nil
}

type watch struct {
	once sync.Once
	stop func()
}

func (w *watch) Stop() { w.once.Do(w.stop) }

func (d *Document) fireTree(m dom.Mutation) {
	d.mu.Lock()
	fns := make([]func(dom.Mutation), 0, len(d.treeWatches))
	for _, fn := range d.treeWatches {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(m)
	}
}

func (d *Document) fireNode(n *html.Node) {
	d.mu.Lock()
	id := d.idLocked(n)
	fns := make([]func(dom.Mutation), 0, 1)
	for _, w := range d.nodeWatches {
		if w.node == n {
			fns = append(fns, w.fn)
		}
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(dom.Mutation{Kind: dom.MutationAttributes, Target: id})
	}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

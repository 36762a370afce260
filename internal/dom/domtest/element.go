package domtest

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/kmuller/camdeck/internal/dom"
)

type element struct {
	d  *Document
	n  *html.Node
	id dom.NodeID
}

func (e *element) ID() dom.NodeID { return e.id }

func (e *element) Attribute(_ context.Context, name string) (string, bool, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()

	if !e.d.attachedLocked(e.n) {
		return "", false, dom.ErrDetached
	}
	for _, a := range e.n.Attr {
		if a.Key == name {
			return a.Val, true, nil
		}
	}
	return "", false, nil
}

// SetAttribute and SetStyle honor context cancellation like a protocol
// backend does: a write on a dead context fails instead of landing.
func (e *element) SetAttribute(ctx context.Context, name, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.d.mu.Lock()
	if !e.d.attachedLocked(e.n) {
		e.d.mu.Unlock()
		return dom.ErrDetached
	}
	setAttr(e.n, name, value)
	e.d.mu.Unlock()

	e.d.fireNode(e.n)
	return nil
}

func (e *element) Style(ctx context.Context, prop string) (string, error) {
	raw, _, err := e.Attribute(ctx, "style")
	if err != nil {
		return "", err
	}
	return styleProp(raw, prop), nil
}

func (e *element) SetStyle(ctx context.Context, prop, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.d.mu.Lock()
	if !e.d.attachedLocked(e.n) {
		e.d.mu.Unlock()
		return dom.ErrDetached
	}
	raw := getAttr(e.n, "style")
	setAttr(e.n, "style", setStyleProp(raw, prop, value))
	e.d.mu.Unlock()

	e.d.fireNode(e.n)
	return nil
}

func (e *element) Text(context.Context) (string, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()

	if !e.d.attachedLocked(e.n) {
		return "", dom.ErrDetached
	}
	return textContent(e.n), nil
}

func (e *element) Children(context.Context) ([]dom.Element, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()

	if !e.d.attachedLocked(e.n) {
		return nil, dom.ErrDetached
	}
	var out []dom.Element
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, &element{d: e.d, n: c, id: e.d.idLocked(c)})
		}
	}
	return out, nil
}

func (e *element) Find(_ context.Context, selector string) (dom.Element, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()

	if !e.d.attachedLocked(e.n) {
		return nil, dom.ErrDetached
	}
	sel := goquery.NewDocumentFromNode(e.n).Find(selector)
	if len(sel.Nodes) == 0 {
		return nil, dom.ErrNotFound
	}
	n := sel.Nodes[0]
	return &element{d: e.d, n: n, id: e.d.idLocked(n)}, nil
}

func (e *element) ClickSequence(context.Context) error {
	e.d.mu.Lock()
	if !e.d.attachedLocked(e.n) {
		e.d.mu.Unlock()
		return dom.ErrDetached
	}
	e.d.clickLog = append(e.d.clickLog, e.id)
	fn := e.d.ClickFunc
	e.d.mu.Unlock()

	if fn != nil {
		fn(e)
	}
	return nil
}

func (e *element) Remove(context.Context) error {
	e.d.mu.Lock()
	if !e.d.attachedLocked(e.n) {
		e.d.mu.Unlock()
		return dom.ErrDetached
	}
	parent := e.n.Parent
	parent.RemoveChild(e.n)
	parentID := e.d.idLocked(parent)
	e.d.mu.Unlock()

	e.d.fireTree(dom.Mutation{Kind: dom.MutationChildList, Target: parentID})
	return nil
}

func getAttr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// styleProp extracts one property from an inline style declaration.
func styleProp(raw, prop string) string {
	for _, decl := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(k) == prop {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// setStyleProp rewrites one property, preserving the others in order.
func setStyleProp(raw, prop, value string) string {
	var decls []string
	replaced := false
	for _, decl := range strings.Split(raw, ";") {
		k, _, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(k) == prop {
			decls = append(decls, prop+": "+value)
			replaced = true
			continue
		}
		decls = append(decls, strings.TrimSpace(decl))
	}
	if !replaced {
		decls = append(decls, prop+": "+value)
	}
	return strings.Join(decls, "; ")
}

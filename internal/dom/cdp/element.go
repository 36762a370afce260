package cdp

import (
	"context"
	"errors"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/kmuller/camdeck/internal/dom"
)

// element implements dom.Element on a rod element handle.
type element struct {
	d  *Document
	el *rod.Element
	id dom.NodeID
}

func (e *element) ID() dom.NodeID { return e.id }

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, e.mapErr(err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *element) SetAttribute(ctx context.Context, name, value string) error {
	_, err := e.el.Context(ctx).Eval(`(name, value) => this.setAttribute(name, value)`, name, value)
	return e.mapErr(err)
}

func (e *element) Style(ctx context.Context, prop string) (string, error) {
	res, err := e.el.Context(ctx).Eval(`(prop) => this.style.getPropertyValue(prop)`, prop)
	if err != nil {
		return "", e.mapErr(err)
	}
	return res.Value.Str(), nil
}

func (e *element) SetStyle(ctx context.Context, prop, value string) error {
	_, err := e.el.Context(ctx).Eval(`(prop, value) => this.style.setProperty(prop, value)`, prop, value)
	return e.mapErr(err)
}

func (e *element) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", e.mapErr(err)
	}
	return strings.TrimSpace(text), nil
}

func (e *element) Children(ctx context.Context) ([]dom.Element, error) {
	els, err := e.el.Context(ctx).Elements(":scope > *")
	if err != nil {
		return nil, e.mapErr(err)
	}
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		wrapped, wrapErr := e.d.wrap(el)
		if wrapErr != nil {
			continue
		}
		out = append(out, wrapped)
	}
	return out, nil
}

func (e *element) Find(ctx context.Context, selector string) (dom.Element, error) {
	el, err := e.el.Context(ctx).Sleeper(rod.NotFoundSleeper).Element(selector)
	if err != nil {
		var notFound *rod.ElementNotFoundError
		if errors.As(err, &notFound) {
			return nil, dom.ErrNotFound
		}
		return nil, e.mapErr(err)
	}
	return e.d.wrap(el)
}

// ClickSequence dispatches real input events through the protocol, so the
// wrapped app's own pointer handlers run exactly as for a user click.
func (e *element) ClickSequence(ctx context.Context) error {
	el := e.el.Context(ctx)
	if err := el.ScrollIntoView(); err != nil {
		return e.mapErr(err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return e.mapErr(err)
	}
	return nil
}

func (e *element) Remove(ctx context.Context) error {
	return e.mapErr(e.el.Context(ctx).Remove())
}

// mapErr folds the protocol's stale-handle errors into ErrDetached; the
// reconciliation loops treat a vanished node as routine.
func (e *element) mapErr(err error) error {
	if err == nil {
		return nil
	}
	var obj *rod.ObjectNotFoundError
	if errors.As(err, &obj) {
		return dom.ErrDetached
	}
	msg := err.Error()
	if strings.Contains(msg, "Cannot find context") || strings.Contains(msg, "Node with given id does not belong") {
		return dom.ErrDetached
	}
	return err
}

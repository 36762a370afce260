// Package dom defines the ports through which the shell reaches the wrapped
// application's document tree. The tree is foreign: it is rendered and
// re-rendered by code this shell does not control, so every port operation
// is best-effort and callers must tolerate elements vanishing between calls.
package dom

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound indicates no element currently matches the selector.
	ErrNotFound = errors.New("dom: no element matches selector")
	// ErrDetached indicates the element was removed from the document
	// between the query that produced it and this operation.
	ErrDetached = errors.New("dom: element detached from document")
)

// NodeID is a stable identity for a node inside one document. Two Element
// handles refer to the same underlying node iff their NodeIDs are equal;
// a remounted node always receives a fresh NodeID.
type NodeID int64

// MutationKind classifies an observed change.
type MutationKind int

const (
	// MutationAttributes is an attribute or inline-style change on a
	// watched node.
	MutationAttributes MutationKind = iota
	// MutationChildList is a structural change (nodes added or removed).
	MutationChildList
)

// Mutation describes one observed change on the foreign tree.
type Mutation struct {
	Kind   MutationKind
	Target NodeID
}

// Watch is a handle to an active observation. Stop is idempotent.
type Watch interface {
	Stop()
}

// InsertPosition selects where InsertHTML places the new node relative to
// the parent's existing children.
type InsertPosition int

const (
	InsertAppend InsertPosition = iota
	InsertPrepend
)

// Element is a handle to a single node in the foreign tree.
type Element interface {
	// ID returns the node's stable identity.
	ID() NodeID

	// Attribute returns the attribute value and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
	SetAttribute(ctx context.Context, name, value string) error

	// Style reads one inline style property ("" when unset).
	Style(ctx context.Context, prop string) (string, error)
	// SetStyle writes one inline style property. Setting "display" on the
	// tracked nav/header nodes is the only mutation the visibility store
	// performs on foreign-owned nodes.
	SetStyle(ctx context.Context, prop, value string) error

	// Text returns the node's visible text content, trimmed.
	Text(ctx context.Context) (string, error)

	// Children returns the element's direct child elements in order.
	Children(ctx context.Context) ([]Element, error)

	// Find queries a descendant by CSS selector. ErrNotFound when absent.
	Find(ctx context.Context, selector string) (Element, error)

	// ClickSequence dispatches a synthetic pointerdown, pointerup, click
	// sequence at the element's centre, mimicking a user click so the
	// foreign app's own handlers run.
	ClickSequence(ctx context.Context) error

	// Remove detaches the node from the document.
	Remove(ctx context.Context) error
}

// Document is the handle to one rendering surface's live document.
type Document interface {
	// Query returns the first element matching the CSS selector, without
	// waiting. ErrNotFound when nothing matches.
	Query(ctx context.Context, selector string) (Element, error)

	// QueryAll returns every element matching the selector in document
	// order. An empty slice is not an error.
	QueryAll(ctx context.Context, selector string) ([]Element, error)

	// Location returns the document's current address.
	Location(ctx context.Context) (string, error)

	// Eval evaluates a JavaScript expression in the page context and
	// returns its JSON-encoded result.
	Eval(ctx context.Context, js string) (json.RawMessage, error)

	// InsertHTML parses the fragment and inserts its root element under
	// parent at the given position, returning a handle to it.
	InsertHTML(ctx context.Context, parent Element, pos InsertPosition, html string) (Element, error)

	// ObserveNode watches one node for attribute mutations.
	ObserveNode(ctx context.Context, el Element, fn func(Mutation)) (Watch, error)

	// ObserveTree watches the whole document for structural mutations.
	// Callbacks are delivered already debounced by the backend.
	ObserveTree(ctx context.Context, fn func(Mutation)) (Watch, error)

	// OnNavigate reports address changes, including client-side history
	// navigation that never reloads the document.
	OnNavigate(ctx context.Context, fn func(url string)) (Watch, error)

	// ExposeBinding registers a page-callable function: scripts invoke
	// window.<name>(payload) and fn receives the payload string.
	ExposeBinding(ctx context.Context, name string, fn func(payload string)) error
}

package relocate

import (
	"bytes"

	"golang.org/x/net/html"
)

// Embed is a mountable wrapper around a token, for a rendering integration
// that wants to show a live host node inside its own output tree.
//
// The integration renders an empty slot element and calls Mount once the
// slot is attached; Mount steals the node and puts it where the slot was.
// Unmount reverses both steps. The node's content belongs to the host tree,
// so the integration must never re-render an Embed after mounting it.
type Embed struct {
	token  *Token
	slot   *html.Node
	parent *html.Node
	node   *html.Node
}

// Embed returns the token's mountable wrapper, creating it on first use.
func (t *Token) Embed() *Embed {
	if t.embed == nil {
		t.embed = &Embed{token: t}
	}
	return t.embed
}

// Token returns the wrapped token.
func (e *Embed) Token() *Token {
	return e.token
}

// Mount steals the node and swaps it in for slot. It returns false, changing
// nothing, when the slot is detached or the node could not be stolen.
func (e *Embed) Mount(slot *html.Node) bool {
	if e.node != nil || slot == nil || slot.Parent == nil {
		return false
	}
	node := e.token.Steal()
	if node == nil {
		return false
	}
	parent := slot.Parent
	if err := e.token.ctl.doc.ReplaceChild(parent, node, slot); err != nil {
		e.token.Return()
		return false
	}
	e.slot, e.parent, e.node = slot, parent, node
	e.token.Observe()
	return true
}

// Unmount puts the slot back in the output tree and returns the node to
// its original tree. It is a no-op when not mounted.
func (e *Embed) Unmount() {
	if e.node == nil {
		return
	}
	if e.node.Parent == e.parent {
		_ = e.token.ctl.doc.ReplaceChild(e.parent, e.slot, e.node)
	}
	e.token.Return()
	e.slot, e.parent, e.node = nil, nil, nil
}

// Mounted reports whether the node is currently shown in the output tree.
func (e *Embed) Mounted() bool {
	return e.node != nil
}

// ShouldUpdate always reports false: a mounted embed is never re-rendered.
func (e *Embed) ShouldUpdate() bool {
	return false
}

// Export renders the wrapped node as HTML.
func (e *Embed) Export() any {
	var buf bytes.Buffer
	if err := html.Render(&buf, e.token.node); err != nil {
		return nil
	}
	return buf.String()
}

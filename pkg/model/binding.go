package model

import (
	"slices"

	"golang.org/x/net/html"

	"github.com/go-drift/domsync/pkg/dom"
	"github.com/go-drift/domsync/pkg/relocate"
)

// Rederive recomputes a watched field. Returning ok=false skips the update
// and the notification.
type Rederive func() (value any, ok bool, err error)

// Binding is what a strategy sees while deriving one field of one instance.
type Binding struct {
	inst *Instance
	key  string
}

// Key returns the field key being derived.
func (b *Binding) Key() string { return b.key }

// Instance returns the instance being derived.
func (b *Binding) Instance() *Instance { return b.inst }

// Env returns the instance environment.
func (b *Binding) Env() *Env { return b.inst.env }

// Watch re-derives the field with fn whenever a batch of mutations matching
// opts arrives for target. Only one watcher is installed per field and
// target, however often the field is derived.
func (b *Binding) Watch(target *html.Node, opts dom.Options, fn Rederive) {
	b.inst.watch(b.key, target, opts, false, fn)
}

// WatchUntil is like Watch but stops after the first batch for which fn
// reports ok.
func (b *Binding) WatchUntil(target *html.Node, opts dom.Options, fn Rederive) {
	b.inst.watch(b.key, target, opts, true, fn)
}

// Unwatch removes the field's watcher on target, if one is installed.
func (b *Binding) Unwatch(target *html.Node) {
	b.inst.unwatch(b.key, target)
}

// NewChild constructs and derives an instance of typ for node. The child is
// owned by this field: it is torn down when the field is next derived and
// when the parent is torn down.
func (b *Binding) NewChild(typ *Type, node *html.Node) (*Instance, error) {
	child := NewInstance(typ, b.inst.env, node)
	if err := child.DeriveAll(node); err != nil {
		child.retire(b.inst)
		return nil, err
	}
	b.Adopt(child)
	return child, nil
}

// Adopt hands ownership of children to this field.
func (b *Binding) Adopt(children ...*Instance) {
	if !b.inst.active {
		for _, c := range children {
			c.Teardown()
		}
		return
	}
	b.inst.children[b.key] = append(b.inst.children[b.key], children...)
}

// Hold keeps a relocation token until the instance is torn down, at which
// point the node is returned and the token removed. When the instance is
// only rebuilt by its parent, tokens still inside the parent's node pass to
// the parent instead.
func (b *Binding) Hold(t *relocate.Token) {
	b.inst.hold(t)
}

// Release returns a held token's node and removes the token now.
func (b *Binding) Release(t *relocate.Token) {
	b.inst.tokens = slices.DeleteFunc(b.inst.tokens, func(other *relocate.Token) bool {
		return other == t
	})
	t.Return()
	t.Remove()
}

// State returns per-field state kept across derivations.
func (b *Binding) State() any {
	return b.inst.state[b.key]
}

// SetState stores per-field state kept across derivations.
func (b *Binding) SetState(v any) {
	if b.inst.active {
		b.inst.state[b.key] = v
	}
}

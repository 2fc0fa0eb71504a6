package model

import (
	stderrors "errors"
	"fmt"
	"maps"
	"slices"

	"golang.org/x/net/html"

	"github.com/go-drift/domsync/pkg/dom"
	"github.com/go-drift/domsync/pkg/errors"
	"github.com/go-drift/domsync/pkg/relocate"
)

// ErrInactive is returned when deriving on an instance that was torn down.
var ErrInactive = stderrors.New("model: instance torn down")

// Change is a field update delivered to an instance's owner.
type Change struct {
	Key   string
	Value any
}

// Handle is an observation the instance owns and releases on teardown.
type Handle interface {
	Disconnect()
}

type watchKey struct {
	field  string
	target *html.Node
}

// Instance is one live record bound to a source node.
//
// Instance is NOT thread-safe; it lives on the document's loop.
type Instance struct {
	typ  *Type
	env  *Env
	node *html.Node

	values       map[string]any
	observations []Handle
	watched      map[watchKey]*dom.Observer
	children     map[string][]*Instance
	tokens       []*relocate.Token
	state        map[string]any

	active   bool
	onChange func(Change)
	onError  func(error)
}

// NewInstance creates an instance of typ owned by node. Fields are empty
// until DeriveAll runs.
func NewInstance(typ *Type, env *Env, node *html.Node) *Instance {
	return &Instance{
		typ:      typ,
		env:      env,
		node:     node,
		values:   make(map[string]any, len(typ.fields)),
		watched:  make(map[watchKey]*dom.Observer),
		children: make(map[string][]*Instance),
		state:    make(map[string]any),
		active:   true,
	}
}

// Type returns the record type.
func (i *Instance) Type() *Type { return i.typ }

// Node returns the source node.
func (i *Instance) Node() *html.Node { return i.node }

// Env returns the environment the instance derives in.
func (i *Instance) Env() *Env { return i.env }

// Active reports whether the instance has not been torn down.
func (i *Instance) Active() bool { return i.active }

// Events returns the events declared by the instance's type.
func (i *Instance) Events() []string { return i.typ.Events() }

// OnChange sets the listener that receives field updates.
func (i *Instance) OnChange(fn func(Change)) {
	i.onChange = fn
}

// OnError sets the listener that receives errors raised while re-deriving
// a field from a watcher. Without one, errors go to errors.Report.
func (i *Instance) OnError(fn func(error)) {
	i.onError = fn
}

// DeriveAll runs every field's strategy against node and stores the results.
// It may be called repeatedly; watchers are installed only on first binding.
// The first strategy error is returned as is, wrapped with the field it
// came from.
func (i *Instance) DeriveAll(node *html.Node) error {
	if !i.active {
		return ErrInactive
	}
	i.node = node
	for _, f := range i.typ.fields {
		v, err := i.derive(f)
		if err != nil {
			return i.wrap("model.DeriveAll", f.Key, err)
		}
		i.values[f.Key] = v
	}
	return nil
}

func (i *Instance) derive(f Field) (any, error) {
	prev := i.takeChildren(f.Key)
	v, err := f.Strategy.Derive(&Binding{inst: i, key: f.Key}, i.node)
	i.settle(f.Key, prev, err == nil)
	return v, err
}

func (i *Instance) takeChildren(key string) []*Instance {
	prev := i.children[key]
	delete(i.children, key)
	return prev
}

// settle keeps the children adopted by the derivation that just ran when it
// succeeded, or puts the previous ones back when it did not. The set that
// loses is retired.
func (i *Instance) settle(key string, prev []*Instance, ok bool) {
	if !i.active {
		for _, c := range prev {
			c.Teardown()
		}
		return
	}
	if ok {
		for _, c := range prev {
			c.retire(i)
		}
		return
	}
	for _, c := range i.children[key] {
		c.retire(i)
	}
	delete(i.children, key)
	if len(prev) > 0 {
		i.children[key] = prev
	}
}

// AttributeChanged re-derives only the field mapped to the attribute name
// and returns the new value for the caller to apply. It reports false when
// no field is mapped to the attribute.
func (i *Instance) AttributeChanged(name string) (Change, bool, error) {
	if !i.active {
		return Change{}, false, ErrInactive
	}
	key, ok := i.typ.FieldForAttribute(name)
	if !ok {
		return Change{}, false, nil
	}
	f, _ := i.typ.Field(key)
	v, err := i.derive(f)
	if err != nil {
		return Change{}, false, i.wrap("model.AttributeChanged", key, err)
	}
	i.values[key] = v
	return Change{Key: key, Value: v}, true, nil
}

// FieldForAttribute returns the field key for an attribute name.
func (i *Instance) FieldForAttribute(name string) (string, bool) {
	return i.typ.FieldForAttribute(name)
}

// RegisterObservation records a handle to disconnect on teardown. Handles
// registered after teardown are disconnected immediately.
func (i *Instance) RegisterObservation(h Handle) {
	if !i.active {
		h.Disconnect()
		return
	}
	i.observations = append(i.observations, h)
}

// Get returns the current value of a field.
func (i *Instance) Get(key string) any {
	return i.values[key]
}

// Set overwrites a field value, e.g. when the owner falls back to a prior
// value after a failed derivation.
func (i *Instance) Set(key string, value any) {
	if _, ok := i.typ.index[key]; ok && i.active {
		i.values[key] = value
	}
}

// Snapshot returns a copy of the current field values.
func (i *Instance) Snapshot() map[string]any {
	return maps.Clone(i.values)
}

// Export returns the field values as plain data: nested instances become
// maps, instance lists become slices of maps, and values with an
// Export() any method are exported through it.
func (i *Instance) Export() map[string]any {
	out := make(map[string]any, len(i.values))
	for k, v := range i.values {
		out[k] = export(v)
	}
	return out
}

func export(v any) any {
	switch v := v.(type) {
	case *Instance:
		if v == nil {
			return nil
		}
		return v.Export()
	case []*Instance:
		out := make([]any, len(v))
		for j, c := range v {
			out[j] = c.Export()
		}
		return out
	case []*relocate.Embed:
		out := make([]any, len(v))
		for j, e := range v {
			out[j] = e.Export()
		}
		return out
	case interface{ Export() any }:
		return v.Export()
	default:
		return v
	}
}

// Teardown disconnects every observation, tears down child instances,
// returns held nodes to their trees and clears the instance tables. After it
// returns no further changes are delivered. Safe to call more than once.
func (i *Instance) Teardown() {
	i.shutdown(nil)
}

// retire tears the instance down for a re-derivation of keep. Tokens whose
// representative is still inside keep's node are handed to keep rather than
// returned, so a stolen node stays mounted and the rebuilt child finds it
// through its placeholder.
func (i *Instance) retire(keep *Instance) {
	i.shutdown(keep)
}

func (i *Instance) shutdown(keep *Instance) {
	if !i.active {
		return
	}
	i.active = false

	for _, h := range i.observations {
		h.Disconnect()
	}
	for _, children := range i.children {
		for _, c := range children {
			c.shutdown(keep)
		}
	}
	for _, t := range i.tokens {
		if keep != nil && keep.active && keep.encloses(t) {
			keep.hold(t)
			continue
		}
		t.Return()
		t.Remove()
	}

	i.observations = nil
	i.watched = nil
	i.children = nil
	i.tokens = nil
	i.state = nil
	i.values = make(map[string]any)
	i.onChange = nil
	i.onError = nil
}

// encloses reports whether t's representative is inside the instance node.
func (i *Instance) encloses(t *relocate.Token) bool {
	rep := t.Representative()
	return rep != nil && rep != i.node && dom.Contains(i.node, rep)
}

// hold keeps t until teardown. Tokens the controller no longer knows are
// dropped on the way.
func (i *Instance) hold(t *relocate.Token) {
	if !i.active {
		return
	}
	ctl := i.env.relocator
	i.tokens = slices.DeleteFunc(i.tokens, func(other *relocate.Token) bool {
		owner, ok := ctl.Owner(other.Node())
		return other != t && (!ok || owner != other)
	})
	if !slices.Contains(i.tokens, t) {
		i.tokens = append(i.tokens, t)
	}
}

// watch installs a watcher for one field on target unless one exists.
func (i *Instance) watch(key string, target *html.Node, opts dom.Options, once bool, fn Rederive) {
	if target == nil || !i.active {
		return
	}
	wk := watchKey{field: key, target: target}
	if _, ok := i.watched[wk]; ok {
		return
	}
	obs := i.env.doc.NewObserver(func(records []dom.Record, o *dom.Observer) {
		if !i.active {
			return
		}
		i.rederive(key, fn, once, wk, o)
	})
	obs.Observe(target, opts)
	i.watched[wk] = obs
	i.RegisterObservation(obs)
}

// unwatch removes the watcher for one field on target, if any.
func (i *Instance) unwatch(key string, target *html.Node) {
	wk := watchKey{field: key, target: target}
	obs, ok := i.watched[wk]
	if !ok {
		return
	}
	obs.Disconnect()
	delete(i.watched, wk)
	i.observations = slices.DeleteFunc(i.observations, func(h Handle) bool {
		return h == Handle(obs)
	})
}

func (i *Instance) rederive(key string, fn Rederive, once bool, wk watchKey, o *dom.Observer) {
	prev := i.takeChildren(key)
	settled := false
	defer func() {
		if !settled {
			i.settle(key, prev, false)
		}
	}()
	defer errors.RecoverField("model.rederive", i.typ.name, key)

	v, ok, err := fn()
	settled = true
	i.settle(key, prev, err == nil && ok)
	if err != nil {
		i.fail(key, err)
		return
	}
	if !ok {
		return
	}
	if once {
		o.Disconnect()
		delete(i.watched, wk)
	}
	if !i.active {
		return
	}
	i.values[key] = v
	i.env.logger.Debug("field re-derived", "type", i.typ.name, "field", key)
	if i.onChange != nil {
		i.onChange(Change{Key: key, Value: v})
	}
}

func (i *Instance) fail(key string, err error) {
	werr := i.wrap("model.rederive", key, err)
	if i.onError != nil {
		i.onError(werr)
		return
	}
	errors.Report(werr)
}

func (i *Instance) wrap(op, key string, err error) *errors.SyncError {
	kind := errors.KindDerive
	var malformed *errors.MalformedAttributeError
	if stderrors.As(err, &malformed) {
		kind = errors.KindMalformedAttribute
	}
	return &errors.SyncError{
		Op:    op,
		Kind:  kind,
		Type:  i.typ.name,
		Field: key,
		Err:   fmt.Errorf("derive %s: %w", key, err),
	}
}

package model

import (
	"fmt"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/go-drift/domsync/pkg/errors"
)

// Strategy derives one field's value from a source node.
//
// Derive must return equal values when called twice on an unmodified node.
// A missing optional relationship is a nil value, not an error.
type Strategy interface {
	Derive(b *Binding, node *html.Node) (any, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(b *Binding, node *html.Node) (any, error)

// Derive calls f.
func (f StrategyFunc) Derive(b *Binding, node *html.Node) (any, error) {
	return f(b, node)
}

// AttributeStrategy is a strategy backed by a single attribute. Fields using
// one are re-derived through Instance.AttributeChanged.
type AttributeStrategy interface {
	Strategy
	Attribute() string
}

// Validator is implemented by strategies that can detect configuration
// errors, such as an invalid selector, when a type is built.
type Validator interface {
	Validate() error
}

// Field is one field declaration.
type Field struct {
	Key      string
	Strategy Strategy
}

// Type is a record type: an ordered, immutable table of field declarations,
// the attributes it reacts to and the events it may raise.
type Type struct {
	name       string
	fields     []Field
	index      map[string]int
	attributes []string
	attrKeys   map[string]string
	events     []string
}

// Name returns the type name.
func (t *Type) Name() string { return t.name }

// Fields returns the field declarations in declaration order.
func (t *Type) Fields() []Field {
	return append([]Field(nil), t.fields...)
}

// Field returns the declaration for key.
func (t *Type) Field(key string) (Field, bool) {
	i, ok := t.index[key]
	if !ok {
		return Field{}, false
	}
	return t.fields[i], true
}

// Attributes returns the declared attribute names.
func (t *Type) Attributes() []string {
	return append([]string(nil), t.attributes...)
}

// Events returns the declared event names.
func (t *Type) Events() []string {
	return append([]string(nil), t.events...)
}

// FieldForAttribute returns the field key an attribute maps to.
func (t *Type) FieldForAttribute(name string) (string, bool) {
	key, ok := t.attrKeys[name]
	return key, ok
}

// TypeBuilder assembles a Type. Errors are collected and reported by Build.
type TypeBuilder struct {
	t    *Type
	errs []error
}

// NewType starts a record type declaration.
func NewType(name string) *TypeBuilder {
	b := &TypeBuilder{t: &Type{
		name:     name,
		index:    make(map[string]int),
		attrKeys: make(map[string]string),
	}}
	if name == "" {
		b.fail(fmt.Errorf("type name is empty"))
	}
	return b
}

func (b *TypeBuilder) fail(err error) {
	b.errs = append(b.errs, err)
}

// Field declares a field. Attribute-backed strategies also declare their
// attribute and map it to key.
func (b *TypeBuilder) Field(key string, s Strategy) *TypeBuilder {
	switch {
	case key == "":
		b.fail(fmt.Errorf("field key is empty"))
		return b
	case s == nil:
		b.fail(fmt.Errorf("field %q has no strategy", key))
		return b
	}
	if _, dup := b.t.index[key]; dup {
		b.fail(fmt.Errorf("field %q declared twice", key))
		return b
	}
	if v, ok := s.(Validator); ok {
		if err := v.Validate(); err != nil {
			b.fail(fmt.Errorf("field %q: %w", key, err))
			return b
		}
	}
	b.t.index[key] = len(b.t.fields)
	b.t.fields = append(b.t.fields, Field{Key: key, Strategy: s})

	if as, ok := s.(AttributeStrategy); ok {
		name := as.Attribute()
		if name == "" {
			b.fail(fmt.Errorf("field %q: attribute name is empty", key))
			return b
		}
		b.Attribute(name)
		b.MapAttribute(name, key)
	}
	return b
}

// Attribute declares an attribute the type reacts to.
func (b *TypeBuilder) Attribute(name string) *TypeBuilder {
	for _, a := range b.t.attributes {
		if a == name {
			return b
		}
	}
	b.t.attributes = append(b.t.attributes, name)
	return b
}

// MapAttribute routes changes of attribute name to field key.
func (b *TypeBuilder) MapAttribute(name, key string) *TypeBuilder {
	b.t.attrKeys[name] = key
	return b
}

// Event declares an event the type may raise.
func (b *TypeBuilder) Event(name string) *TypeBuilder {
	if name == "" {
		b.fail(fmt.Errorf("event name is empty"))
		return b
	}
	b.t.events = append(b.t.events, name)
	return b
}

// Build validates the declaration and returns the type.
func (b *TypeBuilder) Build() (*Type, error) {
	for name, key := range b.t.attrKeys {
		if _, ok := b.t.index[key]; !ok {
			b.fail(fmt.Errorf("attribute %q maps to undeclared field %q", name, key))
		}
	}
	if len(b.errs) > 0 {
		return nil, &errors.SyncError{
			Op:   "model.Build",
			Kind: errors.KindSchema,
			Type: b.t.name,
			Err:  b.errs[0],
		}
	}
	slog.Debug("Registered record type.", "type", b.t.name, "fields", len(b.t.fields), "events", len(b.t.events))
	return b.t, nil
}

// MustBuild is like Build but panics on error.
func (b *TypeBuilder) MustBuild() *Type {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}

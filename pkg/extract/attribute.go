package extract

import (
	"encoding/json"

	"golang.org/x/net/html"

	"github.com/go-drift/domsync/pkg/dom"
	"github.com/go-drift/domsync/pkg/errors"
	"github.com/go-drift/domsync/pkg/model"
)

type attrStrategy struct {
	name string
	def  any
}

// Attr derives the raw attribute string, or def when the attribute is absent.
func Attr(name string, def any) model.AttributeStrategy {
	return attrStrategy{name: name, def: def}
}

func (s attrStrategy) Attribute() string { return s.name }

func (s attrStrategy) Derive(_ *model.Binding, node *html.Node) (any, error) {
	if node == nil {
		return nil, nil
	}
	if v, ok := dom.Attr(node, s.name); ok {
		return v, nil
	}
	return s.def, nil
}

type boolStrategy struct {
	name string
}

// Bool derives whether the attribute is present.
func Bool(name string) model.AttributeStrategy {
	return boolStrategy{name: name}
}

func (s boolStrategy) Attribute() string { return s.name }

func (s boolStrategy) Derive(_ *model.Binding, node *html.Node) (any, error) {
	if node == nil {
		return nil, nil
	}
	return dom.HasAttr(node, s.name), nil
}

type jsonStrategy struct {
	name string
	def  any
}

// JSON parses the attribute as JSON, or derives def when it is absent. A
// value that does not parse is reported as *errors.MalformedAttributeError.
func JSON(name string, def any) model.AttributeStrategy {
	return jsonStrategy{name: name, def: def}
}

func (s jsonStrategy) Attribute() string { return s.name }

func (s jsonStrategy) Derive(_ *model.Binding, node *html.Node) (any, error) {
	if node == nil {
		return nil, nil
	}
	raw, ok := dom.Attr(node, s.name)
	if !ok {
		return s.def, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, &errors.MalformedAttributeError{Attribute: s.name, Raw: raw, Err: err}
	}
	return v, nil
}

type jsonAsStrategy[T any] struct {
	name string
	def  T
}

// JSONAs is like JSON but decodes into T.
func JSONAs[T any](name string, def T) model.AttributeStrategy {
	return jsonAsStrategy[T]{name: name, def: def}
}

func (s jsonAsStrategy[T]) Attribute() string { return s.name }

func (s jsonAsStrategy[T]) Derive(_ *model.Binding, node *html.Node) (any, error) {
	if node == nil {
		return nil, nil
	}
	raw, ok := dom.Attr(node, s.name)
	if !ok {
		return s.def, nil
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, &errors.MalformedAttributeError{Attribute: s.name, Raw: raw, Err: err}
	}
	return v, nil
}

package extract

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/go-drift/domsync/pkg/dom"
	"github.com/go-drift/domsync/pkg/model"
)

// listOptions re-derives list fields on any change in the owner subtree.
// This includes attribute changes deep inside unrelated descendants.
var listOptions = dom.Options{Attributes: true, CharacterData: true, ChildList: true, Subtree: true}

func validateSelector(selector string) error {
	if _, err := dom.Compile(selector); err != nil {
		return err
	}
	return nil
}

type nestedStrategy struct {
	typ      *model.Type
	selector string
}

// Nested derives a child instance of typ. Without a selector the child is
// derived from the owner node itself; with one, from the first matching
// descendant, and nil when nothing matches. The child watches its own
// content; the field is not re-derived when the child changes.
func Nested(typ *model.Type, selector ...string) model.Strategy {
	s := nestedStrategy{typ: typ}
	if len(selector) > 0 {
		s.selector = selector[0]
	}
	return s
}

func (s nestedStrategy) Validate() error {
	if s.typ == nil {
		return fmt.Errorf("nested record has no type")
	}
	if s.selector == "" {
		return nil
	}
	return validateSelector(s.selector)
}

func (s nestedStrategy) Derive(b *model.Binding, node *html.Node) (any, error) {
	if node == nil {
		return nil, nil
	}
	target := node
	if s.selector != "" {
		target = dom.Query(node, s.selector)
		if target == nil {
			return nil, nil
		}
	}
	return b.NewChild(s.typ, target)
}

// Ref derives a child instance of typ from the first descendant matching
// selector, or nil when nothing matches.
func Ref(selector string, typ *model.Type) model.Strategy {
	return nestedStrategy{typ: typ, selector: selector}
}

type listStrategy struct {
	selector string
	typ      *model.Type
}

// List derives one child instance of typ per descendant matching selector,
// in document order, and rebuilds the whole list on any mutation in the
// owner subtree.
func List(selector string, typ *model.Type) model.Strategy {
	return listStrategy{selector: selector, typ: typ}
}

func (s listStrategy) Validate() error {
	if s.typ == nil {
		return fmt.Errorf("list has no item type")
	}
	return validateSelector(s.selector)
}

func (s listStrategy) Derive(b *model.Binding, node *html.Node) (any, error) {
	if node == nil {
		return []*model.Instance{}, nil
	}
	derive := func() ([]*model.Instance, error) {
		matches := dom.QueryAll(node, s.selector)
		out := make([]*model.Instance, 0, len(matches))
		for _, m := range matches {
			child, err := b.NewChild(s.typ, m)
			if err != nil {
				return nil, err
			}
			out = append(out, child)
		}
		return out, nil
	}
	items, err := derive()
	if err != nil {
		return nil, err
	}
	b.Watch(node, listOptions, func() (any, bool, error) {
		items, err := derive()
		return items, err == nil, err
	})
	return items, nil
}

type dispatchStrategy struct {
	types map[string]*model.Type
}

// Dispatch derives one child instance per direct element child whose tag is
// in types, using the type registered for that tag. Children with other tags
// are skipped. The list is rebuilt on any mutation in the owner subtree.
func Dispatch(types map[string]*model.Type) model.Strategy {
	return dispatchStrategy{types: types}
}

func (s dispatchStrategy) Validate() error {
	for tag, typ := range s.types {
		if typ == nil {
			return fmt.Errorf("tag %q has no type", tag)
		}
	}
	return nil
}

func (s dispatchStrategy) Derive(b *model.Binding, node *html.Node) (any, error) {
	if node == nil {
		return []*model.Instance{}, nil
	}
	derive := func() ([]*model.Instance, error) {
		var out []*model.Instance
		for _, c := range dom.Children(node) {
			typ, ok := s.types[dom.Tag(c)]
			if !ok {
				b.Env().Logger().Debug("skipping child with unknown tag", "field", b.Key(), "tag", dom.Tag(c))
				continue
			}
			child, err := b.NewChild(typ, c)
			if err != nil {
				return nil, err
			}
			out = append(out, child)
		}
		if out == nil {
			out = []*model.Instance{}
		}
		return out, nil
	}
	items, err := derive()
	if err != nil {
		return nil, err
	}
	b.Watch(node, listOptions, func() (any, bool, error) {
		items, err := derive()
		return items, err == nil, err
	})
	return items, nil
}

type delegateStrategy struct {
	selector string
}

// Delegate finds the first descendant matching selector and, if that node
// can generate its own model, uses that model verbatim.
func Delegate(selector string) model.Strategy {
	return delegateStrategy{selector: selector}
}

func (s delegateStrategy) Validate() error {
	return validateSelector(s.selector)
}

func (s delegateStrategy) Derive(b *model.Binding, node *html.Node) (any, error) {
	child := dom.Query(node, s.selector)
	if child == nil {
		return nil, nil
	}
	src := b.Env().ModelSource()
	if src == nil {
		return nil, nil
	}
	m, ok := src.GenerateModel(child)
	if !ok {
		return nil, nil
	}
	return m, nil
}

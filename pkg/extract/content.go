package extract

import (
	"golang.org/x/net/html"

	"github.com/go-drift/domsync/pkg/dom"
	"github.com/go-drift/domsync/pkg/model"
)

var contentOptions = dom.Options{CharacterData: true, ChildList: true, Subtree: true}

// Text derives the rendered text of the node and re-derives it whenever
// the node's subtree changes text or children.
func Text() model.Strategy {
	return model.StrategyFunc(func(b *model.Binding, node *html.Node) (any, error) {
		if node == nil {
			return nil, nil
		}
		b.Watch(node, contentOptions, func() (any, bool, error) {
			return dom.Text(node), true, nil
		})
		return dom.Text(node), nil
	})
}

type childTextStrategy struct {
	selector string
}

// ChildText derives the text of the first descendant matching selector and
// watches that descendant. It derives nil when nothing matches.
func ChildText(selector string) model.Strategy {
	return childTextStrategy{selector: selector}
}

func (s childTextStrategy) Validate() error {
	_, err := dom.Compile(s.selector)
	return err
}

func (s childTextStrategy) Derive(b *model.Binding, node *html.Node) (any, error) {
	child := dom.Query(node, s.selector)
	if child == nil {
		return nil, nil
	}
	b.Watch(child, contentOptions, func() (any, bool, error) {
		return dom.Text(child), true, nil
	})
	return dom.Text(child), nil
}

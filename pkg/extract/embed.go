package extract

import (
	"golang.org/x/net/html"

	"github.com/go-drift/domsync/pkg/dom"
	"github.com/go-drift/domsync/pkg/model"
	"github.com/go-drift/domsync/pkg/relocate"
)

var embedOptions = dom.Options{ChildList: true, Subtree: true}

type embedStrategy struct {
	selector string
}

// Embed wraps the first descendant matching selector in a relocation token
// and derives its *relocate.Embed. When nothing matches yet, for instance
// because the host has not populated the children, it watches the owner
// subtree and derives the embed once a match appears, notifying exactly
// once.
func Embed(selector string) model.Strategy {
	return embedStrategy{selector: selector}
}

func (s embedStrategy) Validate() error {
	return validateSelector(s.selector)
}

func (s embedStrategy) Derive(b *model.Binding, node *html.Node) (any, error) {
	if node == nil {
		return nil, nil
	}
	// A stolen match is no longer in the subtree; keep using its token
	// while its placeholder is.
	if tok, ok := b.State().(*relocate.Token); ok {
		if rep := tok.Representative(); rep != nil && rep != node && dom.Contains(node, rep) {
			b.Unwatch(node)
			return tok.Embed(), nil
		}
		b.Release(tok)
		b.SetState(nil)
	}

	find := func() *relocate.Embed {
		toks := members(b.Env().Controller(), node, s.selector, true)
		if len(toks) == 0 {
			return nil
		}
		b.Hold(toks[0])
		b.SetState(toks[0])
		return toks[0].Embed()
	}
	if e := find(); e != nil {
		b.Unwatch(node)
		return e, nil
	}
	b.WatchUntil(node, embedOptions, func() (any, bool, error) {
		e := find()
		return e, e != nil, nil
	})
	return nil, nil
}

// members returns the tokens for the descendants of node matching selector,
// in document order. A stolen match counts through its placeholder, so a
// subtree rebuilt while its match is mounted elsewhere picks the same token
// up again. The stolen node itself is skipped wherever it is mounted.
func members(ctl *relocate.Controller, node *html.Node, selector string, first bool) []*relocate.Token {
	sel, err := dom.Compile(selector)
	if err != nil {
		return nil
	}
	var out []*relocate.Token
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.CommentNode:
				if tok, ok := ctl.Owner(c); ok && tok.Stolen() && tok.Placeholder() == c && tok.Selector() == selector {
					out = append(out, tok)
				}
			case html.ElementNode:
				if sel.Match(c) {
					if tok, ok := ctl.Owner(c); !ok || !tok.Stolen() {
						out = append(out, ctl.Token(c, selector))
					}
				}
				if first && len(out) > 0 {
					return false
				}
				if !walk(c) {
					return false
				}
				continue
			}
			if first && len(out) > 0 {
				return false
			}
		}
		return true
	}
	walk(node)
	return out
}

type embedListStrategy struct {
	selector string
}

// EmbedList wraps every descendant matching selector in a relocation token
// kept in a relocate.List, and derives the embeds in document order. Members
// that are stolen keep their place through their placeholders. The list is
// refreshed on any child-list change in the owner subtree.
func EmbedList(selector string) model.Strategy {
	return embedListStrategy{selector: selector}
}

func (s embedListStrategy) Validate() error {
	return validateSelector(s.selector)
}

func (s embedListStrategy) Derive(b *model.Binding, node *html.Node) (any, error) {
	if node == nil {
		return []*relocate.Embed{}, nil
	}
	list, ok := b.State().(*relocate.List)
	if !ok {
		list = relocate.NewList()
		b.SetState(list)
	}
	sync := func() []*relocate.Embed {
		for _, tok := range list.Items() {
			if rep := tok.Representative(); rep == nil || !dom.Contains(node, rep) {
				b.Release(tok)
			}
		}
		for _, tok := range members(b.Env().Controller(), node, s.selector, false) {
			if list.Index(tok) != -1 {
				continue
			}
			tok.Insert(list)
			b.Hold(tok)
		}
		out := make([]*relocate.Embed, 0, list.Len())
		for _, tok := range list.Items() {
			out = append(out, tok.Embed())
		}
		return out
	}
	embeds := sync()
	b.Watch(node, embedOptions, func() (any, bool, error) {
		return sync(), true, nil
	})
	return embeds, nil
}

package dom

import (
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var (
	selectorMu    sync.Mutex
	selectorCache = make(map[string]cascadia.Selector)
)

// Compile parses a CSS selector, reusing a cached result when possible.
func Compile(selector string) (cascadia.Selector, error) {
	selectorMu.Lock()
	defer selectorMu.Unlock()
	if sel, ok := selectorCache[selector]; ok {
		return sel, nil
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("dom: invalid selector %q: %w", selector, err)
	}
	selectorCache[selector] = sel
	return sel, nil
}

// Query returns the first descendant of n matching selector, in document
// order, or nil. An invalid selector matches nothing.
func Query(n *html.Node, selector string) *html.Node {
	if n == nil {
		return nil
	}
	sel, err := Compile(selector)
	if err != nil {
		return nil
	}
	return cascadia.Query(n, sel)
}

// QueryAll returns every descendant of n matching selector, in document order.
func QueryAll(n *html.Node, selector string) []*html.Node {
	if n == nil {
		return nil
	}
	sel, err := Compile(selector)
	if err != nil {
		return nil
	}
	return cascadia.QueryAll(n, sel)
}

// Matches reports whether n itself matches selector.
func Matches(n *html.Node, selector string) bool {
	sel, err := Compile(selector)
	if err != nil {
		return false
	}
	return sel.Match(n)
}

// Children returns the element children of n.
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// Contains reports whether n is ancestor or n itself.
func Contains(ancestor, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == ancestor {
			return true
		}
	}
	return false
}

// Tag returns the lower-case tag name of an element, or "".
func Tag(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

// Attr returns the value of the un-namespaced attribute key.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether n carries the attribute key.
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// Text returns the rendered text of n: the text of every descendant text
// node, with whitespace runs collapsed to one space and the ends trimmed.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			sb.WriteString(c.Data)
			return
		case html.CommentNode:
			return
		case html.ElementNode:
			if c.Data == "script" || c.Data == "style" || c.Data == "template" {
				return
			}
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

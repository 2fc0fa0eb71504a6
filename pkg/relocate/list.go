package relocate

import (
	"slices"

	"golang.org/x/net/html"
)

// List keeps tokens in the document order of their representatives.
type List struct {
	items []*Token
}

// NewList returns an empty list.
func NewList() *List {
	return &List{}
}

// Items returns a copy of the tokens in order.
func (l *List) Items() []*Token {
	return slices.Clone(l.items)
}

// Len returns the number of tokens.
func (l *List) Len() int {
	return len(l.items)
}

// Index returns the position of t, or -1.
func (l *List) Index(t *Token) int {
	return slices.Index(l.items, t)
}

// Nodes returns the original node of every token in order.
func (l *List) Nodes() []*html.Node {
	out := make([]*html.Node, len(l.items))
	for i, t := range l.items {
		out[i] = t.node
	}
	return out
}

func (l *List) insertAt(i int, t *Token) {
	l.items = slices.Insert(l.items, i, t)
}

func (l *List) remove(t *Token) {
	if i := l.Index(t); i != -1 {
		l.items = slices.Delete(l.items, i, i+1)
	}
}

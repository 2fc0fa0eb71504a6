package relocate

import (
	"log/slog"

	"golang.org/x/net/html"

	"github.com/go-drift/domsync/pkg/dom"
)

// Controller owns the node-to-token table for one document.
type Controller struct {
	doc    *dom.Document
	owners map[*html.Node]*Token
	logger *slog.Logger
}

// NewController creates a controller for doc.
func NewController(doc *dom.Document) *Controller {
	return &Controller{
		doc:    doc,
		owners: make(map[*html.Node]*Token),
		logger: slog.Default(),
	}
}

// SetLogger replaces the controller logger. Nil restores slog.Default().
func (c *Controller) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	c.logger = logger
}

// Document returns the document the controller edits.
func (c *Controller) Document() *dom.Document {
	return c.doc
}

// Token returns the token owning node, creating one if the node has none.
// The selector is kept so placeholders can be told apart later.
func (c *Controller) Token(node *html.Node, selector string) *Token {
	if t, ok := c.owners[node]; ok && t.node == node {
		return t
	}
	t := &Token{ctl: c, node: node, selector: selector}
	c.owners[node] = t
	return t
}

// Owner returns the token a node or placeholder belongs to.
func (c *Controller) Owner(n *html.Node) (*Token, bool) {
	t, ok := c.owners[n]
	return t, ok
}

// Len returns the number of nodes and placeholders in the ownership table.
func (c *Controller) Len() int {
	return len(c.owners)
}

func (c *Controller) release(n *html.Node, t *Token) {
	if n == nil {
		return
	}
	if owner, ok := c.owners[n]; ok && owner == t {
		delete(c.owners, n)
	}
}

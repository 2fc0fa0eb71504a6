package dom

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/go-drift/domsync/pkg/errors"
)

var (
	// ErrHierarchy is returned when an edit would make a node its own ancestor
	// or reference a node that is not a child of the given parent.
	ErrHierarchy = stderrors.New("dom: hierarchy request error")
	// ErrNotFound is returned when a child is not under the given parent.
	ErrNotFound = stderrors.New("dom: node not found")
)

// Document owns one or more node trees and records every edit made through it.
//
// Document is NOT thread-safe. All edits and flushes must happen on the
// goroutine running the document's [Loop], or on a single test goroutine.
type Document struct {
	root        *html.Node
	observers   []*Observer
	observerSeq int
	pending     bool
	flushing    bool
	logger      *slog.Logger

	// OnNeedsFlush is called when the first record of a new batch is queued,
	// signalling that Flush should be scheduled.
	OnNeedsFlush func()
}

// NewDocument wraps an existing tree. A nil root creates an empty document node.
func NewDocument(root *html.Node) *Document {
	if root == nil {
		root = &html.Node{Type: html.DocumentNode}
	}
	return &Document{root: root, logger: slog.Default()}
}

// Parse reads a complete HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse document: %w", err)
	}
	return NewDocument(root), nil
}

// ParseFragment parses src as body content and places the resulting nodes
// directly under a fresh document node.
func ParseFragment(src string) (*Document, error) {
	nodes, err := parseFragment(src, nil)
	if err != nil {
		return nil, err
	}
	doc := NewDocument(nil)
	for _, n := range nodes {
		doc.root.AppendChild(n)
	}
	return doc, nil
}

func parseFragment(src string, context *html.Node) ([]*html.Node, error) {
	if context == nil || context.Type != html.ElementNode {
		context = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	}
	nodes, err := html.ParseFragment(strings.NewReader(src), context)
	if err != nil {
		return nil, fmt.Errorf("dom: parse fragment: %w", err)
	}
	return nodes, nil
}

// SetLogger replaces the document logger. Nil restores slog.Default().
func (d *Document) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	d.logger = logger
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// FirstElement returns the first element child of the document node.
func (d *Document) FirstElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// CreateElement returns a detached element with the given tag.
func (d *Document) CreateElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// CreateText returns a detached text node.
func (d *Document) CreateText(data string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: data}
}

// CreateComment returns a detached comment node.
func (d *Document) CreateComment(data string) *html.Node {
	return &html.Node{Type: html.CommentNode, Data: data}
}

// AppendChild adds child as the last child of parent, moving it from its
// current parent if it has one.
func (d *Document) AppendChild(parent, child *html.Node) error {
	return d.InsertBefore(parent, child, nil)
}

// InsertBefore inserts child into parent before ref. A nil ref appends.
func (d *Document) InsertBefore(parent, child, ref *html.Node) error {
	if ref == child {
		ref = child.NextSibling
	}
	if ref != nil && ref.Parent != parent {
		return fmt.Errorf("%w: reference node is not a child of %s", ErrHierarchy, describe(parent))
	}
	if Contains(child, parent) {
		return fmt.Errorf("%w: %s would contain itself", ErrHierarchy, describe(child))
	}
	if child.Parent != nil {
		d.detach(child)
	}
	parent.InsertBefore(child, ref)
	d.queue(Record{
		Type:            ChildList,
		Target:          parent,
		Added:           []*html.Node{child},
		PreviousSibling: child.PrevSibling,
		NextSibling:     child.NextSibling,
	})
	return nil
}

// RemoveChild detaches child from parent.
func (d *Document) RemoveChild(parent, child *html.Node) error {
	if child.Parent != parent {
		return fmt.Errorf("%w: %s is not a child of %s", ErrNotFound, describe(child), describe(parent))
	}
	d.detach(child)
	return nil
}

// Remove detaches n from its parent. It is a no-op for detached nodes.
func (d *Document) Remove(n *html.Node) {
	if n.Parent != nil {
		d.detach(n)
	}
}

// ReplaceChild puts newChild in place of oldChild, moving newChild from its
// current parent if needed. A single child-list record covers the swap.
func (d *Document) ReplaceChild(parent, newChild, oldChild *html.Node) error {
	if oldChild.Parent != parent {
		return fmt.Errorf("%w: %s is not a child of %s", ErrNotFound, describe(oldChild), describe(parent))
	}
	if newChild == oldChild {
		return nil
	}
	if Contains(newChild, parent) {
		return fmt.Errorf("%w: %s would contain itself", ErrHierarchy, describe(newChild))
	}
	if newChild.Parent != nil {
		d.detach(newChild)
	}
	ref := oldChild.NextSibling
	prev := oldChild.PrevSibling
	parent.RemoveChild(oldChild)
	parent.InsertBefore(newChild, ref)
	d.queue(Record{
		Type:            ChildList,
		Target:          parent,
		Added:           []*html.Node{newChild},
		Removed:         []*html.Node{oldChild},
		PreviousSibling: prev,
		NextSibling:     ref,
	})
	return nil
}

// SetAttribute sets or replaces the attribute key on element n.
func (d *Document) SetAttribute(n *html.Node, key, val string) {
	old, had := Attr(n, key)
	if had {
		for i := range n.Attr {
			if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
				n.Attr[i].Val = val
				break
			}
		}
	} else {
		n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	}
	d.queue(Record{Type: Attributes, Target: n, AttributeName: key, OldValue: old})
}

// RemoveAttribute deletes the attribute key from n. Removing a missing
// attribute records nothing.
func (d *Document) RemoveAttribute(n *html.Node, key string) {
	old, had := Attr(n, key)
	if !had {
		return
	}
	n.Attr = slices.DeleteFunc(n.Attr, func(a html.Attribute) bool {
		return a.Namespace == "" && a.Key == key
	})
	d.queue(Record{Type: Attributes, Target: n, AttributeName: key, OldValue: old})
}

// SetText replaces every child of n with a single text node holding text.
// An empty text leaves n without children.
func (d *Document) SetText(n *html.Node, text string) {
	if n.Type == html.TextNode || n.Type == html.CommentNode {
		d.SetCharacterData(n, text)
		return
	}
	var added []*html.Node
	if text != "" {
		added = []*html.Node{d.CreateText(text)}
	}
	d.replaceChildren(n, added)
}

// SetInnerHTML parses src in the context of n and replaces n's children.
func (d *Document) SetInnerHTML(n *html.Node, src string) error {
	nodes, err := parseFragment(src, n)
	if err != nil {
		return err
	}
	d.replaceChildren(n, nodes)
	return nil
}

// SetCharacterData changes the data of a text or comment node.
func (d *Document) SetCharacterData(n *html.Node, data string) {
	old := n.Data
	n.Data = data
	d.queue(Record{Type: CharacterData, Target: n, OldValue: old})
}

// InnerHTML renders the children of n.
func (d *Document) InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return buf.String()
		}
	}
	return buf.String()
}

func (d *Document) replaceChildren(n *html.Node, added []*html.Node) {
	var removed []*html.Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	for _, c := range added {
		if c.Parent != nil {
			d.detach(c)
		}
		n.AppendChild(c)
	}
	if len(removed) == 0 && len(added) == 0 {
		return
	}
	d.queue(Record{Type: ChildList, Target: n, Added: added, Removed: removed})
}

func (d *Document) detach(child *html.Node) {
	parent := child.Parent
	prev, next := child.PrevSibling, child.NextSibling
	parent.RemoveChild(child)
	d.queue(Record{
		Type:            ChildList,
		Target:          parent,
		Removed:         []*html.Node{child},
		PreviousSibling: prev,
		NextSibling:     next,
	})
}

// queue hands rec to every observer interested in it.
func (d *Document) queue(rec Record) {
	queued := false
	for _, o := range d.observers {
		if o.wants(rec) {
			o.records = append(o.records, rec)
			queued = true
		}
	}
	if queued && !d.pending {
		d.pending = true
		if d.OnNeedsFlush != nil {
			d.OnNeedsFlush()
		}
	}
}

// ObserverCount returns the number of connected observers.
func (d *Document) ObserverCount() int {
	return len(d.observers)
}

// Pending reports whether records are waiting for Flush.
func (d *Document) Pending() bool {
	for _, o := range d.observers {
		if len(o.records) > 0 {
			return true
		}
	}
	return false
}

// Flush delivers queued records, one batch per observer, in observer
// creation order. Callbacks may edit the tree; Flush keeps delivering until
// no records remain. A nested Flush call from a callback is a no-op.
func (d *Document) Flush() {
	if d.flushing {
		return
	}
	d.flushing = true
	defer func() {
		d.flushing = false
	}()

	for {
		delivered := false
		for _, o := range slices.Clone(d.observers) {
			if !o.active || len(o.records) == 0 {
				continue
			}
			records := o.records
			o.records = nil
			delivered = true
			o.deliver(records)
		}
		if !delivered {
			d.pending = false
			return
		}
	}
}

func (o *Observer) deliver(records []Record) {
	defer errors.Recover("dom.Observer")
	o.doc.logger.Debug("delivering mutation records", "observer", o.id, "records", len(records))
	o.callback(records, o)
}

func describe(n *html.Node) string {
	if n == nil {
		return "<nil>"
	}
	switch n.Type {
	case html.ElementNode:
		return "<" + n.Data + ">"
	case html.TextNode:
		return "#text"
	case html.CommentNode:
		return "#comment"
	case html.DocumentNode:
		return "#document"
	default:
		return "#node"
	}
}

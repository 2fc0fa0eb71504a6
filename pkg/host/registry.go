package host

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/go-drift/domsync/pkg/dom"
	"github.com/go-drift/domsync/pkg/model"
	"github.com/go-drift/domsync/pkg/schema"
)

// Props is what a render function receives: the field values of the
// element's model plus one "onX" callback per declared event.
type Props map[string]any

// RenderFunc renders an element from its props.
type RenderFunc func(e *Element, props Props)

// Definition binds a tag to a record type.
type Definition struct {
	Tag    string
	Type   *model.Type
	Render RenderFunc
}

// Registry holds element definitions.
type Registry struct {
	defs   map[string]*Definition
	logger *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger uses slog.Default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{defs: make(map[string]*Definition), logger: logger}
}

// Define registers typ for elements named tag. Tags are case-insensitive
// and may be defined once.
func (r *Registry) Define(tag string, typ *model.Type, render RenderFunc) error {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return fmt.Errorf("host: empty tag")
	}
	if typ == nil {
		return fmt.Errorf("host: tag %q has no type", tag)
	}
	if _, dup := r.defs[tag]; dup {
		return fmt.Errorf("host: tag %q already defined", tag)
	}
	r.defs[tag] = &Definition{Tag: tag, Type: typ, Render: render}
	r.logger.Debug("defined element", "tag", tag, "type", typ.Name())
	return nil
}

// DefineSchema registers every tagged type of s with the same render
// function.
func (r *Registry) DefineSchema(s *schema.Schema, render RenderFunc) error {
	for tag, typ := range s.Tags {
		if err := r.Define(tag, typ, render); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the definition for tag.
func (r *Registry) Lookup(tag string) (*Definition, bool) {
	d, ok := r.defs[strings.ToLower(tag)]
	return d, ok
}

// Attach upgrades every defined element under root (root included) and
// keeps upgrading and disconnecting elements as root's subtree changes.
func (r *Registry) Attach(doc *dom.Document, root *html.Node) *Host {
	h := &Host{
		reg:      r,
		doc:      doc,
		root:     root,
		elements: make(map[*html.Node]*Element),
		logger:   r.logger,
	}
	h.env = model.NewEnv(doc, model.WithLogger(r.logger), model.WithModelSource(h))
	h.observer = doc.NewObserver(h.onMutations)
	h.observer.Observe(root, dom.Options{ChildList: true, Subtree: true})
	h.upgrade(root)
	return h
}

// Host is a registry attached to one document subtree.
type Host struct {
	reg       *Registry
	doc       *dom.Document
	root      *html.Node
	env       *model.Env
	observer  *dom.Observer
	elements  map[*html.Node]*Element
	scheduler Scheduler
	logger    *slog.Logger
}

// Env returns the environment the host's models derive in.
func (h *Host) Env() *model.Env { return h.env }

// Scheduler returns the render scheduler.
func (h *Host) Scheduler() *Scheduler { return &h.scheduler }

// Element returns the element for node, if node was ever upgraded.
func (h *Host) Element(node *html.Node) (*Element, bool) {
	e, ok := h.elements[node]
	return e, ok
}

// Elements returns the connected elements in document order.
func (h *Host) Elements() []*Element {
	var out []*Element
	walk(h.root, func(n *html.Node) {
		if e, ok := h.elements[n]; ok && e.connected {
			out = append(out, e)
		}
	})
	return out
}

// GenerateModel returns the exported model of a defined element, connecting
// it first when it has not been reached yet.
func (h *Host) GenerateModel(node *html.Node) (any, bool) {
	e := h.element(node)
	if e == nil {
		return nil, false
	}
	if !e.connected && dom.Contains(h.root, node) {
		if err := e.Connect(); err != nil {
			return nil, false
		}
	}
	m, ok := e.GenerateModel()
	if !ok {
		return nil, false
	}
	return m, true
}

// Flush delivers pending mutations and renders the elements they changed.
func (h *Host) Flush() {
	h.doc.Flush()
	h.scheduler.Flush()
}

// Detach stops watching the document and disconnects every element.
func (h *Host) Detach() {
	h.observer.Disconnect()
	for _, e := range h.Elements() {
		e.Disconnect()
	}
}

func (h *Host) element(n *html.Node) *Element {
	if e, ok := h.elements[n]; ok {
		return e
	}
	if n.Type != html.ElementNode {
		return nil
	}
	def, ok := h.reg.defs[n.Data]
	if !ok {
		return nil
	}
	e := &Element{host: h, def: def, node: n}
	h.elements[n] = e
	return e
}

func (h *Host) upgrade(n *html.Node) {
	walk(n, func(c *html.Node) {
		e := h.element(c)
		if e == nil || e.connected {
			return
		}
		if err := e.Connect(); err != nil {
			h.logger.Warn("element failed to connect", "tag", e.def.Tag, "error", err)
		}
	})
}

func (h *Host) onMutations(records []dom.Record, _ *dom.Observer) {
	for _, rec := range records {
		for _, n := range rec.Removed {
			if dom.Contains(h.root, n) {
				continue
			}
			walk(n, func(c *html.Node) {
				if e, ok := h.elements[c]; ok && e.connected {
					e.Disconnect()
				}
			})
		}
		for _, n := range rec.Added {
			if dom.Contains(h.root, n) {
				h.upgrade(n)
			}
		}
	}
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

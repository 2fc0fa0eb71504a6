package model

import (
	"log/slog"

	"golang.org/x/net/html"

	"github.com/go-drift/domsync/pkg/dom"
	"github.com/go-drift/domsync/pkg/relocate"
)

// ModelSource generates the model of a node that owns its own record, such
// as an element managed by a lifecycle adapter.
type ModelSource interface {
	GenerateModel(node *html.Node) (any, bool)
}

// Env is shared by every instance derived against one document.
type Env struct {
	doc       *dom.Document
	relocator *relocate.Controller
	logger    *slog.Logger
	source    ModelSource
}

// Option configures an Env.
type Option func(*Env)

// WithLogger sets the logger used for derivation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Env) { e.logger = logger }
}

// WithController shares an existing relocation controller.
func WithController(c *relocate.Controller) Option {
	return func(e *Env) { e.relocator = c }
}

// WithModelSource sets who generates models for delegated children.
func WithModelSource(src ModelSource) Option {
	return func(e *Env) { e.source = src }
}

// NewEnv creates an environment for doc.
func NewEnv(doc *dom.Document, opts ...Option) *Env {
	e := &Env{doc: doc}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.relocator == nil {
		e.relocator = relocate.NewController(doc)
		e.relocator.SetLogger(e.logger)
	}
	return e
}

// Document returns the host document.
func (e *Env) Document() *dom.Document { return e.doc }

// Controller returns the relocation controller.
func (e *Env) Controller() *relocate.Controller { return e.relocator }

// Logger returns the environment logger.
func (e *Env) Logger() *slog.Logger { return e.logger }

// ModelSource returns the delegated model source, or nil.
func (e *Env) ModelSource() ModelSource { return e.source }

// SetModelSource replaces the delegated model source.
func (e *Env) SetModelSource(src ModelSource) { e.source = src }

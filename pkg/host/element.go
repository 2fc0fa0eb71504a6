package host

import (
	stderrors "errors"
	"maps"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/go-drift/domsync/pkg/dom"
	"github.com/go-drift/domsync/pkg/errors"
	"github.com/go-drift/domsync/pkg/model"
)

// Element is one upgraded node.
type Element struct {
	host *Host
	def  *Definition
	node *html.Node
	inst *model.Instance

	connected bool
	depth     int
	renders   int
	listeners map[string][]*listener
}

type listener struct {
	fn func(detail any)
}

// Node returns the element's node.
func (e *Element) Node() *html.Node { return e.node }

// Definition returns the element's definition.
func (e *Element) Definition() *Definition { return e.def }

// Connected reports whether the element is live.
func (e *Element) Connected() bool { return e.connected }

// Instance returns the current model instance, or nil when disconnected.
func (e *Element) Instance() *model.Instance { return e.inst }

// Renders returns how many times the element has rendered.
func (e *Element) Renders() int { return e.renders }

// Connect creates the element's model instance, derives it, starts
// watching the declared attributes and renders once. A failed derivation
// is returned and leaves the element disconnected.
func (e *Element) Connect() error {
	if e.connected {
		return nil
	}
	typ := e.def.Type
	inst := model.NewInstance(typ, e.host.env, e.node)
	inst.OnChange(func(model.Change) { e.host.scheduler.Schedule(e) })
	inst.OnError(e.report)
	if err := inst.DeriveAll(e.node); err != nil {
		inst.Teardown()
		return err
	}

	if attrs := typ.Attributes(); len(attrs) > 0 {
		obs := e.host.doc.NewObserver(func(records []dom.Record, _ *dom.Observer) {
			e.attributesChanged(records)
		})
		obs.Observe(e.node, dom.Options{AttributeFilter: attrs})
		inst.RegisterObservation(obs)
	}

	e.inst = inst
	e.connected = true
	e.depth = depth(e.node)
	e.host.logger.Debug("connected element", "tag", e.def.Tag, "depth", e.depth)
	e.render()
	return nil
}

// Disconnect tears the model down. The element can be connected again.
func (e *Element) Disconnect() {
	if !e.connected {
		return
	}
	e.connected = false
	e.inst.Teardown()
	e.inst = nil
	e.host.logger.Debug("disconnected element", "tag", e.def.Tag)
}

func (e *Element) attributesChanged(records []dom.Record) {
	if !e.connected {
		return
	}
	var seen []string
	for _, rec := range records {
		if slices.Contains(seen, rec.AttributeName) {
			continue
		}
		seen = append(seen, rec.AttributeName)
		_, ok, err := e.inst.AttributeChanged(rec.AttributeName)
		if err != nil {
			e.report(err)
			continue
		}
		if ok {
			e.host.scheduler.Schedule(e)
		}
	}
}

func (e *Element) report(err error) {
	var serr *errors.SyncError
	if stderrors.As(err, &serr) {
		errors.Report(serr)
		return
	}
	errors.Report(&errors.SyncError{Op: "host.Element", Kind: errors.KindDerive, Type: e.def.Type.Name(), Err: err})
}

// GenerateModel returns the element's model as plain data.
func (e *Element) GenerateModel() (map[string]any, bool) {
	if !e.connected {
		return nil, false
	}
	return e.inst.Export(), true
}

// Props returns the current field values plus one callback per declared
// event, keyed "on" followed by the event name in camel case.
func (e *Element) Props() Props {
	if !e.connected {
		return nil
	}
	p := Props(maps.Clone(e.inst.Snapshot()))
	for _, ev := range e.def.Type.Events() {
		ev := ev
		p[EventProp(ev)] = func(detail any) { e.Emit(ev, detail) }
	}
	return p
}

// EventProp returns the prop name for an event: "value-changed" becomes
// "onValueChanged".
func EventProp(event string) string {
	var b strings.Builder
	b.WriteString("on")
	for _, part := range strings.FieldsFunc(event, func(r rune) bool { return r == '-' || r == '_' }) {
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// AddListener subscribes fn to event and returns a function that
// unsubscribes it.
func (e *Element) AddListener(event string, fn func(detail any)) func() {
	if e.listeners == nil {
		e.listeners = make(map[string][]*listener)
	}
	l := &listener{fn: fn}
	e.listeners[event] = append(e.listeners[event], l)
	return func() {
		e.listeners[event] = slices.DeleteFunc(e.listeners[event], func(other *listener) bool {
			return other == l
		})
	}
}

// Emit delivers detail to the listeners of event. It reports false for
// events the element's type does not declare.
func (e *Element) Emit(event string, detail any) bool {
	if !slices.Contains(e.def.Type.Events(), event) {
		e.host.logger.Warn("undeclared event", "tag", e.def.Tag, "event", event)
		return false
	}
	for _, l := range slices.Clone(e.listeners[event]) {
		l.fn(detail)
	}
	return true
}

func (e *Element) render() {
	defer errors.Recover("host.Render")
	e.renders++
	if e.def.Render != nil {
		e.def.Render(e, e.Props())
	}
}

func depth(n *html.Node) int {
	d := 0
	for p := n.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

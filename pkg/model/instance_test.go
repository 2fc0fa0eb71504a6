package model

import (
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"

	"github.com/go-drift/domsync/pkg/dom"
	"github.com/go-drift/domsync/pkg/errors"
)

func parse(t *testing.T, src string) (*dom.Document, *html.Node) {
	t.Helper()
	doc, err := dom.ParseFragment(src)
	if err != nil {
		t.Fatalf("ParseFragment: %v", err)
	}
	return doc, doc.FirstElement()
}

// attrField is a minimal attribute strategy for tests.
type attrField struct {
	name  string
	calls *int
}

func (a attrField) Attribute() string { return a.name }

func (a attrField) Derive(_ *Binding, node *html.Node) (any, error) {
	if a.calls != nil {
		*a.calls++
	}
	v, _ := dom.Attr(node, a.name)
	return v, nil
}

// textField watches the node's subtree.
var textField = StrategyFunc(func(b *Binding, node *html.Node) (any, error) {
	b.Watch(node, dom.Options{CharacterData: true, ChildList: true, Subtree: true}, func() (any, bool, error) {
		return dom.Text(node), true, nil
	})
	return dom.Text(node), nil
})

func TestTypeBuilder(t *testing.T) {
	typ, err := NewType("button").
		Field("variant", attrField{name: "variant"}).
		Field("label", textField).
		Event("press").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if diff := cmp.Diff([]string{"variant"}, typ.Attributes()); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}
	if key, ok := typ.FieldForAttribute("variant"); !ok || key != "variant" {
		t.Errorf("FieldForAttribute = %q, %v", key, ok)
	}
	if diff := cmp.Diff([]string{"press"}, typ.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestTypeBuilder_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func() (*Type, error)
	}{
		{"empty name", func() (*Type, error) { return NewType("").Build() }},
		{"empty key", func() (*Type, error) { return NewType("t").Field("", textField).Build() }},
		{"nil strategy", func() (*Type, error) { return NewType("t").Field("a", nil).Build() }},
		{"duplicate key", func() (*Type, error) {
			return NewType("t").Field("a", textField).Field("a", textField).Build()
		}},
		{"empty attribute", func() (*Type, error) { return NewType("t").Field("a", attrField{}).Build() }},
		{"mapping to undeclared field", func() (*Type, error) {
			return NewType("t").Attribute("x").MapAttribute("x", "missing").Build()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			var serr *errors.SyncError
			if !stderrors.As(err, &serr) || serr.Kind != errors.KindSchema {
				t.Errorf("err = %v, want schema SyncError", err)
			}
		})
	}
}

func TestDeriveAll_Idempotent(t *testing.T) {
	doc, node := parse(t, `<my-button variant="action">Push Me</my-button>`)
	typ := NewType("button").
		Field("variant", attrField{name: "variant"}).
		Field("label", textField).
		MustBuild()
	inst := NewInstance(typ, NewEnv(doc), node)

	if err := inst.DeriveAll(node); err != nil {
		t.Fatal(err)
	}
	first := inst.Snapshot()
	if err := inst.DeriveAll(node); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, inst.Snapshot()); diff != "" {
		t.Errorf("second derivation differs (-first +second):\n%s", diff)
	}
	want := map[string]any{"variant": "action", "label": "Push Me"}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if got := doc.ObserverCount(); got != 1 {
		t.Errorf("ObserverCount = %d, want 1 after repeated derivation", got)
	}
}

func TestAttributeChanged_RederivesOnlyMappedField(t *testing.T) {
	doc, node := parse(t, `<x-item size="L" weight="3"></x-item>`)
	var sizeCalls, weightCalls int
	typ := NewType("item").
		Field("size", attrField{name: "size", calls: &sizeCalls}).
		Field("weight", attrField{name: "weight", calls: &weightCalls}).
		MustBuild()
	inst := NewInstance(typ, NewEnv(doc), node)
	if err := inst.DeriveAll(node); err != nil {
		t.Fatal(err)
	}

	doc.SetAttribute(node, "weight", "5")
	change, ok, err := inst.AttributeChanged("weight")
	if err != nil || !ok {
		t.Fatalf("AttributeChanged = %v, %v", ok, err)
	}
	if change.Key != "weight" || change.Value != "5" {
		t.Errorf("change = %+v", change)
	}
	if sizeCalls != 1 || weightCalls != 2 {
		t.Errorf("calls size=%d weight=%d, want 1 and 2", sizeCalls, weightCalls)
	}
	if _, ok, _ := inst.AttributeChanged("unknown"); ok {
		t.Error("unmapped attribute should report false")
	}
}

func TestWatcher_OneNotificationPerBatch(t *testing.T) {
	doc, node := parse(t, `<p>one</p>`)
	typ := NewType("para").Field("text", textField).MustBuild()
	inst := NewInstance(typ, NewEnv(doc), node)

	var changes []Change
	inst.OnChange(func(c Change) { changes = append(changes, c) })
	if err := inst.DeriveAll(node); err != nil {
		t.Fatal(err)
	}

	doc.SetText(node, "two")
	doc.AppendChild(node, doc.CreateText(" three"))
	doc.SetCharacterData(node.FirstChild, "four")
	doc.Flush()

	want := []Change{{Key: "text", Value: "four three"}}
	if diff := cmp.Diff(want, changes); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
	if got := inst.Get("text"); got != "four three" {
		t.Errorf("stored value = %v", got)
	}
}

func TestTeardown_StopsQueuedNotifications(t *testing.T) {
	doc, node := parse(t, `<p>one</p>`)
	typ := NewType("para").Field("text", textField).MustBuild()
	inst := NewInstance(typ, NewEnv(doc), node)

	calls := 0
	inst.OnChange(func(Change) { calls++ })
	if err := inst.DeriveAll(node); err != nil {
		t.Fatal(err)
	}

	doc.SetText(node, "two")
	inst.Teardown()
	inst.Teardown()
	doc.Flush()

	if calls != 0 {
		t.Errorf("got %d notifications after teardown", calls)
	}
	if doc.ObserverCount() != 0 {
		t.Errorf("ObserverCount = %d, want 0", doc.ObserverCount())
	}
	if err := inst.DeriveAll(node); !stderrors.Is(err, ErrInactive) {
		t.Errorf("DeriveAll after teardown: err = %v, want ErrInactive", err)
	}
	if len(inst.Snapshot()) != 0 {
		t.Error("snapshot should be empty after teardown")
	}
}

func TestTeardown_NoLeakAcrossCycles(t *testing.T) {
	doc, node := parse(t, `<p>text</p>`)
	typ := NewType("para").Field("text", textField).MustBuild()
	env := NewEnv(doc)

	for i := 0; i < 10; i++ {
		inst := NewInstance(typ, env, node)
		if err := inst.DeriveAll(node); err != nil {
			t.Fatal(err)
		}
		inst.Teardown()
	}
	if got := doc.ObserverCount(); got != 0 {
		t.Errorf("ObserverCount = %d after create/destroy cycles, want 0", got)
	}
}

func TestChildren_TornDownOnRederive(t *testing.T) {
	doc, node := parse(t, `<ul><li>a</li><li>b</li></ul>`)
	item := NewType("item").Field("text", textField).MustBuild()
	list := StrategyFunc(func(b *Binding, n *html.Node) (any, error) {
		var out []*Instance
		for _, li := range dom.QueryAll(n, "li") {
			c, err := b.NewChild(item, li)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	})
	typ := NewType("list").Field("items", list).MustBuild()
	inst := NewInstance(typ, NewEnv(doc), node)

	if err := inst.DeriveAll(node); err != nil {
		t.Fatal(err)
	}
	old := inst.Get("items").([]*Instance)
	if err := inst.DeriveAll(node); err != nil {
		t.Fatal(err)
	}
	for _, c := range old {
		if c.Active() {
			t.Error("children from the previous derivation should be torn down")
		}
	}
	if got := doc.ObserverCount(); got != 2 {
		t.Errorf("ObserverCount = %d, want 2", got)
	}

	want := map[string]any{"items": []any{
		map[string]any{"text": "a"},
		map[string]any{"text": "b"},
	}}
	if diff := cmp.Diff(want, inst.Export()); diff != "" {
		t.Errorf("export mismatch (-want +got):\n%s", diff)
	}

	inst.Teardown()
	if got := doc.ObserverCount(); got != 0 {
		t.Errorf("ObserverCount = %d after teardown, want 0", got)
	}
}

func TestDeriveAll_PropagatesErrors(t *testing.T) {
	doc, node := parse(t, `<x-item></x-item>`)
	boom := &errors.MalformedAttributeError{Attribute: "data", Raw: "{"}
	typ := NewType("item").
		Field("bad", StrategyFunc(func(*Binding, *html.Node) (any, error) { return nil, boom })).
		MustBuild()
	inst := NewInstance(typ, NewEnv(doc), node)

	err := inst.DeriveAll(node)
	var serr *errors.SyncError
	if !stderrors.As(err, &serr) {
		t.Fatalf("err = %v, want *errors.SyncError", err)
	}
	if serr.Kind != errors.KindMalformedAttribute || serr.Field != "bad" {
		t.Errorf("kind = %v field = %q", serr.Kind, serr.Field)
	}
	var malformed *errors.MalformedAttributeError
	if !stderrors.As(err, &malformed) {
		t.Error("MalformedAttributeError should be reachable with errors.As")
	}
}

func TestWatcher_ErrorsGoToListener(t *testing.T) {
	doc, node := parse(t, `<p>text</p>`)
	fail := stderrors.New("boom")
	first := true
	typ := NewType("para").Field("text", StrategyFunc(func(b *Binding, n *html.Node) (any, error) {
		b.Watch(n, dom.Options{ChildList: true}, func() (any, bool, error) {
			return nil, false, fail
		})
		if first {
			first = false
			return "ok", nil
		}
		return nil, fail
	})).MustBuild()
	inst := NewInstance(typ, NewEnv(doc), node)

	var got []error
	inst.OnError(func(err error) { got = append(got, err) })
	changes := 0
	inst.OnChange(func(Change) { changes++ })
	if err := inst.DeriveAll(node); err != nil {
		t.Fatal(err)
	}

	doc.SetText(node, "x")
	doc.Flush()

	if len(got) != 1 || !stderrors.Is(got[0], fail) {
		t.Errorf("errors = %v", got)
	}
	if changes != 0 {
		t.Error("a failed re-derivation must not notify")
	}
	if inst.Get("text") != "ok" {
		t.Error("the previous value should be kept")
	}
}

type panicRecorder struct {
	panics []*errors.PanicError
}

func (r *panicRecorder) HandleError(*errors.SyncError) {}

func (r *panicRecorder) HandlePanic(err *errors.PanicError) { r.panics = append(r.panics, err) }

func TestWatcher_PanicKeepsPreviousChildren(t *testing.T) {
	rec := &panicRecorder{}
	defer errors.SetHandler(errors.SetHandler(rec))

	doc, node := parse(t, `<ul><li>a</li><li>b</li></ul>`)
	item := NewType("item").Field("text", textField).MustBuild()
	build := func(b *Binding, n *html.Node) []*Instance {
		var out []*Instance
		for _, li := range dom.QueryAll(n, "li") {
			c, err := b.NewChild(item, li)
			if err != nil {
				t.Fatal(err)
			}
			out = append(out, c)
		}
		return out
	}
	list := StrategyFunc(func(b *Binding, n *html.Node) (any, error) {
		b.Watch(n, dom.Options{ChildList: true}, func() (any, bool, error) {
			build(b, n)
			panic("rebuild failed")
		})
		return build(b, n), nil
	})
	typ := NewType("list").Field("items", list).MustBuild()
	inst := NewInstance(typ, NewEnv(doc), node)
	defer inst.Teardown()
	if err := inst.DeriveAll(node); err != nil {
		t.Fatal(err)
	}
	old := inst.Get("items").([]*Instance)
	before := doc.ObserverCount()

	doc.AppendChild(node, doc.CreateElement("li"))
	doc.Flush()

	if len(rec.panics) != 1 {
		t.Fatalf("got %d panics, want 1", len(rec.panics))
	}
	if p := rec.panics[0]; p.Type != "list" || p.Field != "items" {
		t.Errorf("panic type = %q field = %q", p.Type, p.Field)
	}
	for _, c := range old {
		if !c.Active() {
			t.Error("a panicking re-derivation should keep the previous children live")
		}
	}
	if got := doc.ObserverCount(); got != before {
		t.Errorf("ObserverCount = %d, want %d", got, before)
	}
}

func TestChildren_FailedDeriveKeepsPrevious(t *testing.T) {
	doc, node := parse(t, `<ul><li>a</li><li>b</li></ul>`)
	item := NewType("item").Field("text", textField).MustBuild()
	fail := stderrors.New("boom")
	failing := false
	list := StrategyFunc(func(b *Binding, n *html.Node) (any, error) {
		var out []*Instance
		for _, li := range dom.QueryAll(n, "li") {
			c, err := b.NewChild(item, li)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		if failing {
			return nil, fail
		}
		return out, nil
	})
	typ := NewType("list").Field("items", list).MustBuild()
	inst := NewInstance(typ, NewEnv(doc), node)
	defer inst.Teardown()
	if err := inst.DeriveAll(node); err != nil {
		t.Fatal(err)
	}
	old := inst.Get("items").([]*Instance)

	failing = true
	if err := inst.DeriveAll(node); !stderrors.Is(err, fail) {
		t.Fatalf("err = %v, want %v", err, fail)
	}
	for _, c := range old {
		if !c.Active() {
			t.Error("a failed derivation should keep the previous children live")
		}
	}
	if got := doc.ObserverCount(); got != 2 {
		t.Errorf("ObserverCount = %d, want 2", got)
	}
}

package dom

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"
)

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := ParseFragment(src)
	if err != nil {
		t.Fatalf("ParseFragment: %v", err)
	}
	return doc
}

func tags(nodes []*html.Node) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, Tag(n))
	}
	return out
}

func TestParseFragment(t *testing.T) {
	doc := mustParse(t, `<my-button variant="action">Push Me</my-button>`)
	el := doc.FirstElement()
	if el == nil {
		t.Fatal("expected an element")
	}
	if got := Tag(el); got != "my-button" {
		t.Errorf("Tag = %q, want %q", got, "my-button")
	}
	if v, _ := Attr(el, "variant"); v != "action" {
		t.Errorf("variant = %q, want %q", v, "action")
	}
	if got := Text(el); got != "Push Me" {
		t.Errorf("Text = %q, want %q", got, "Push Me")
	}
}

func TestObserver_BatchesRecordsUntilFlush(t *testing.T) {
	doc := mustParse(t, `<ul><li>a</li></ul>`)
	ul := doc.FirstElement()

	var batches [][]Record
	obs := doc.NewObserver(func(records []Record, o *Observer) {
		batches = append(batches, records)
	})
	obs.Observe(ul, Options{ChildList: true})

	for i := 0; i < 3; i++ {
		if err := doc.AppendChild(ul, doc.CreateElement("li")); err != nil {
			t.Fatal(err)
		}
	}
	if len(batches) != 0 {
		t.Fatalf("records delivered synchronously: %d batches", len(batches))
	}

	doc.Flush()
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	if len(batches[0]) != 3 {
		t.Errorf("got %d records, want 3", len(batches[0]))
	}
}

func TestObserver_SubtreeAndFilters(t *testing.T) {
	doc := mustParse(t, `<div><p title="x">text</p></div>`)
	div := doc.FirstElement()
	p := Query(div, "p")

	tests := []struct {
		name   string
		opts   Options
		mutate func()
		want   int
	}{
		{
			name:   "attribute below target without subtree",
			opts:   Options{Attributes: true},
			mutate: func() { doc.SetAttribute(p, "title", "y") },
			want:   0,
		},
		{
			name:   "attribute below target with subtree",
			opts:   Options{Attributes: true, Subtree: true},
			mutate: func() { doc.SetAttribute(p, "title", "z") },
			want:   1,
		},
		{
			name:   "filtered attribute",
			opts:   Options{Subtree: true, AttributeFilter: []string{"lang"}},
			mutate: func() { doc.SetAttribute(p, "title", "w") },
			want:   0,
		},
		{
			name:   "character data",
			opts:   Options{CharacterData: true, Subtree: true},
			mutate: func() { doc.SetCharacterData(p.FirstChild, "changed") },
			want:   1,
		},
		{
			name:   "removing a missing attribute records nothing",
			opts:   Options{Attributes: true, Subtree: true},
			mutate: func() { doc.RemoveAttribute(p, "missing") },
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := 0
			obs := doc.NewObserver(func(records []Record, o *Observer) {
				got += len(records)
			})
			obs.Observe(div, tt.opts)
			defer obs.Disconnect()

			tt.mutate()
			doc.Flush()
			if got != tt.want {
				t.Errorf("got %d records, want %d", got, tt.want)
			}
		})
	}
}

func TestObserver_DisconnectDropsQueuedRecords(t *testing.T) {
	doc := mustParse(t, `<div></div>`)
	div := doc.FirstElement()

	calls := 0
	obs := doc.NewObserver(func(records []Record, o *Observer) {
		calls++
	})
	obs.Observe(div, Options{ChildList: true})

	doc.SetText(div, "hello")
	obs.Disconnect()
	obs.Disconnect()
	doc.Flush()

	if calls != 0 {
		t.Errorf("disconnected observer received %d batches", calls)
	}
	if doc.Pending() {
		t.Error("document should have no pending records")
	}
}

func TestFlush_DeliversMutationsMadeByCallbacks(t *testing.T) {
	doc := mustParse(t, `<div><span></span></div>`)
	div := doc.FirstElement()
	span := Query(div, "span")

	first := doc.NewObserver(func(records []Record, o *Observer) {
		doc.SetAttribute(span, "seen", "")
	})
	first.Observe(div, Options{ChildList: true})

	var attrs []string
	second := doc.NewObserver(func(records []Record, o *Observer) {
		for _, r := range records {
			attrs = append(attrs, r.AttributeName)
		}
	})
	second.Observe(span, Options{Attributes: true})

	doc.AppendChild(div, doc.CreateElement("b"))
	doc.Flush()

	if diff := cmp.Diff([]string{"seen"}, attrs); diff != "" {
		t.Errorf("attribute records mismatch (-want +got):\n%s", diff)
	}
}

func TestReplaceChild(t *testing.T) {
	doc := mustParse(t, `<div><a></a><b></b><i></i></div>`)
	div := doc.FirstElement()
	b := Query(div, "b")
	marker := doc.CreateComment("placeholder")

	var recs []Record
	obs := doc.NewObserver(func(records []Record, o *Observer) { recs = records })
	obs.Observe(div, Options{ChildList: true})

	if err := doc.ReplaceChild(div, marker, b); err != nil {
		t.Fatal(err)
	}
	if b.Parent != nil {
		t.Error("replaced node should be detached")
	}
	if marker.PrevSibling == nil || Tag(marker.PrevSibling) != "a" {
		t.Error("marker should follow <a>")
	}

	doc.Flush()
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].Added[0] != marker || recs[0].Removed[0] != b {
		t.Error("record should describe the swap")
	}

	err := doc.ReplaceChild(div, marker, b)
	if !stderrors.Is(err, ErrNotFound) {
		t.Errorf("ReplaceChild with detached old child: err = %v, want ErrNotFound", err)
	}
}

func TestInsertBefore_RejectsCycles(t *testing.T) {
	doc := mustParse(t, `<div><p></p></div>`)
	div := doc.FirstElement()
	p := Query(div, "p")

	if err := doc.AppendChild(p, div); !stderrors.Is(err, ErrHierarchy) {
		t.Errorf("err = %v, want ErrHierarchy", err)
	}
}

func TestAppendChild_MovesNode(t *testing.T) {
	doc := mustParse(t, `<div><a></a><b></b></div><section></section>`)
	div := doc.FirstElement()
	section := Query(doc.Root(), "section")
	a := Query(div, "a")

	if err := doc.AppendChild(section, a); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"b"}, tags(Children(div))); diff != "" {
		t.Errorf("div children mismatch (-want +got):\n%s", diff)
	}
	if a.Parent != section {
		t.Error("node should now be under section")
	}
}

func TestQueryAll_DocumentOrder(t *testing.T) {
	doc := mustParse(t, `<div><i id="1"></i><p><i id="2"></i></p><i id="3"></i></div>`)
	var ids []string
	for _, n := range QueryAll(doc.FirstElement(), "i") {
		id, _ := Attr(n, "id")
		ids = append(ids, id)
	}
	if diff := cmp.Diff([]string{"1", "2", "3"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if Query(doc.FirstElement(), "div") != nil {
		t.Error("Query must not match the node itself")
	}
	if Query(doc.FirstElement(), "[[") != nil {
		t.Error("invalid selector should match nothing")
	}
}

func TestSetInnerHTML(t *testing.T) {
	doc := mustParse(t, `<div>old</div>`)
	div := doc.FirstElement()
	if err := doc.SetInnerHTML(div, `<b>new</b> text`); err != nil {
		t.Fatal(err)
	}
	if got := Text(div); got != "new text" {
		t.Errorf("Text = %q, want %q", got, "new text")
	}
	if got := doc.InnerHTML(div); got != "<b>new</b> text" {
		t.Errorf("InnerHTML = %q", got)
	}
}

func TestLoop_RunFlushesAfterEachTask(t *testing.T) {
	doc := mustParse(t, `<div></div>`)
	div := doc.FirstElement()
	loop := NewLoop(doc)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var order []string
	obs := doc.NewObserver(func(records []Record, o *Observer) {
		order = append(order, "flush")
	})
	obs.Observe(div, Options{ChildList: true})

	loop.Dispatch(func() {
		order = append(order, "task")
		doc.SetText(div, "a")
	})
	loop.After(5*time.Millisecond, func() {
		order = append(order, "timer")
		doc.SetText(div, "b")
		loop.Dispatch(cancel)
	})

	if err := loop.Run(ctx); !stderrors.Is(err, context.Canceled) {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"task", "flush", "timer", "flush"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestOnNeedsFlush(t *testing.T) {
	doc := mustParse(t, `<div></div>`)
	div := doc.FirstElement()
	requests := 0
	doc.OnNeedsFlush = func() { requests++ }

	obs := doc.NewObserver(func([]Record, *Observer) {})
	obs.Observe(div, Options{Attributes: true})

	doc.SetAttribute(div, "a", "1")
	doc.SetAttribute(div, "b", "2")
	if requests != 1 {
		t.Errorf("requests = %d, want 1 per batch", requests)
	}
	doc.Flush()
	doc.SetAttribute(div, "c", "3")
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
}

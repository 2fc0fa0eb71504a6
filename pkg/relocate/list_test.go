package relocate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"

	"github.com/go-drift/domsync/pkg/dom"
)

func ids(nodes []*html.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i], _ = dom.Attr(n, "id")
	}
	return out
}

// documentOrder reports whether the list matches the order of each
// token's representative among its parent's children.
func documentOrder(l *List) bool {
	pos := -1
	for _, tok := range l.Items() {
		rep := tok.Representative()
		i := 0
		for c := rep.Parent.FirstChild; c != rep; c = c.NextSibling {
			i++
		}
		if i <= pos {
			return false
		}
		pos = i
	}
	return true
}

func TestInsert_OrderMatchesDocument(t *testing.T) {
	_, ctl, root := setup(t, `<ul><li id="1"></li><li id="2"></li><li id="3"></li><li id="4"></li><li id="5"></li></ul>`)
	tok := func(id string) *Token {
		return ctl.Token(dom.Query(root, `[id="`+id+`"]`), "li")
	}

	list := NewList()
	other := NewList()

	tok("5").Insert(list)
	tok("1").Insert(list)

	// 2 belongs to an unrelated list and is represented by its placeholder.
	tok("2").Insert(other)
	tok("2").Steal()

	tok("3").Insert(list)

	// 4 is stolen before it joins the list; its placeholder is the start.
	tok("4").Steal()
	tok("4").Insert(list)

	if diff := cmp.Diff([]string{"1", "3", "4", "5"}, ids(list.Nodes())); diff != "" {
		t.Errorf("list order mismatch (-want +got):\n%s", diff)
	}
	if !documentOrder(list) {
		t.Error("list order should follow document order")
	}
	if diff := cmp.Diff([]string{"2"}, ids(other.Nodes())); diff != "" {
		t.Errorf("other list mismatch (-want +got):\n%s", diff)
	}
}

func TestInsert_SkipsStaleMarkers(t *testing.T) {
	doc, ctl, root := setup(t, `<ul><li id="a"></li><li id="b"></li><li id="c"></li></ul>`)
	list := NewList()

	a := ctl.Token(dom.Query(root, "#a"), "li")
	b := ctl.Token(dom.Query(root, "#b"), "li")
	a.Insert(list)
	b.Insert(list)

	// b is stolen and then mounted back into the same parent at the end, so
	// the stolen node itself sits among the siblings.
	node := b.Steal()
	doc.AppendChild(root, node)

	c := ctl.Token(dom.Query(root, "#c"), "li")
	d := doc.CreateElement("li")
	doc.SetAttribute(d, "id", "d")
	doc.AppendChild(root, d)
	c.Insert(list)
	ctl.Token(d, "li").Insert(list)

	// d walks back past the stolen b node and lands after c.
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, ids(list.Nodes())); diff != "" {
		t.Errorf("list order mismatch (-want +got):\n%s", diff)
	}
	if !documentOrder(list) {
		t.Error("list order should follow document order")
	}
}

func TestInsert_Idempotent(t *testing.T) {
	_, ctl, root := setup(t, `<ul><li id="a"></li></ul>`)
	list := NewList()
	a := ctl.Token(dom.Query(root, "#a"), "li")
	a.Insert(list)
	a.Insert(list)
	if list.Len() != 1 {
		t.Errorf("Len = %d, want 1", list.Len())
	}
}

func TestInsert_AfterRemovals(t *testing.T) {
	doc, ctl, root := setup(t, `<ul><li id="a"></li><li id="b"></li><li id="c"></li></ul>`)
	list := NewList()
	var toks []*Token
	for _, n := range dom.Children(root) {
		tok := ctl.Token(n, "li")
		tok.Insert(list)
		toks = append(toks, tok)
	}

	toks[1].Remove()
	doc.Remove(toks[1].Node())

	n := doc.CreateElement("li")
	doc.SetAttribute(n, "id", "n")
	doc.InsertBefore(root, n, toks[2].Node())
	ctl.Token(n, "li").Insert(list)

	if diff := cmp.Diff([]string{"a", "n", "c"}, ids(list.Nodes())); diff != "" {
		t.Errorf("list order mismatch (-want +got):\n%s", diff)
	}
	if !documentOrder(list) {
		t.Error("list order should follow document order")
	}
}

func TestInsert_NestedMatchesFollowDocumentOrder(t *testing.T) {
	doc, ctl, root := setup(t, `<div><p><img id="a"></p><img id="b"></div>`)
	list := NewList()
	a := ctl.Token(dom.Query(root, "#a"), "img")
	b := ctl.Token(dom.Query(root, "#b"), "img")

	b.Insert(list)
	a.Insert(list)
	if diff := cmp.Diff([]string{"a", "b"}, ids(list.Nodes())); diff != "" {
		t.Fatalf("list order mismatch (-want +got):\n%s", diff)
	}

	// A later match nested ahead of a stolen one still lands in front.
	a.Steal()
	p := doc.CreateElement("p")
	c := doc.CreateElement("img")
	doc.SetAttribute(c, "id", "c")
	doc.AppendChild(p, c)
	doc.InsertBefore(root, p, root.FirstChild)
	ctl.Token(c, "img").Insert(list)

	if diff := cmp.Diff([]string{"c", "a", "b"}, ids(list.Nodes())); diff != "" {
		t.Errorf("list order mismatch (-want +got):\n%s", diff)
	}
}

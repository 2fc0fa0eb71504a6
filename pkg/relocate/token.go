package relocate

import (
	"golang.org/x/net/html"

	"github.com/go-drift/domsync/pkg/dom"
)

// Token is the steal/return bookkeeping for one live node.
//
// A token is either stolen or not; while stolen its placeholder stands in the
// node's tree and the node itself may be mounted anywhere else.
type Token struct {
	ctl         *Controller
	node        *html.Node
	selector    string
	placeholder *html.Node
	stolen      bool
	returned    bool
	list        *List
	observer    *dom.Observer
	embed       *Embed
}

// Node returns the original node.
func (t *Token) Node() *html.Node { return t.node }

// Selector returns the selector the node was matched with.
func (t *Token) Selector() string { return t.selector }

// Placeholder returns the placeholder comment, or nil if none was created yet.
func (t *Token) Placeholder() *html.Node { return t.placeholder }

// Stolen reports whether the node is currently out of its tree.
func (t *Token) Stolen() bool { return t.stolen }

// Returned reports whether the token went back through Return or an
// external removal since it was last stolen.
func (t *Token) Returned() bool { return t.returned }

// List returns the ordered list the token belongs to, if any.
func (t *Token) List() *List { return t.list }

// Representative returns whatever currently stands for the token in its
// tree: the placeholder while stolen, the node otherwise.
func (t *Token) Representative() *html.Node {
	if t.stolen {
		return t.placeholder
	}
	return t.node
}

// Steal swaps the placeholder into the node's place and returns the node for
// the caller to mount elsewhere. It returns nil, changing nothing, when the
// token is already stolen or the node has no parent.
func (t *Token) Steal() *html.Node {
	if t.stolen {
		return nil
	}
	parent := t.node.Parent
	if parent == nil {
		return nil
	}
	t.returned = false

	if t.placeholder == nil {
		t.placeholder = t.ctl.doc.CreateComment("placeholder for " + dom.Tag(t.node))
		t.ctl.owners[t.placeholder] = t
	}
	if err := t.ctl.doc.ReplaceChild(parent, t.placeholder, t.node); err != nil {
		return nil
	}
	t.stolen = true
	t.ctl.logger.Debug("stole node", "tag", dom.Tag(t.node), "selector", t.selector)
	return t.node
}

// Return puts the node back where its placeholder currently is. It is a
// no-op when the token is not stolen. If the placeholder was detached in the
// meantime the node is left where it is.
func (t *Token) Return() {
	if !t.stolen {
		return
	}
	t.stolen = false
	t.returned = true
	t.stopObserving()

	parent := t.placeholder.Parent
	if parent == nil {
		return
	}
	if err := t.ctl.doc.ReplaceChild(parent, t.node, t.placeholder); err != nil {
		return
	}
	t.ctl.logger.Debug("returned node", "tag", dom.Tag(t.node), "selector", t.selector)
}

// Observe watches the parent of the token's representative for child-list
// changes. If the placeholder loses its parent while the token is stolen,
// the token is treated as removed by the application: it is marked returned
// and evicted from its list.
func (t *Token) Observe() {
	t.stopObserving()
	rep := t.Representative()
	if rep == nil || rep.Parent == nil {
		return
	}
	t.observer = t.ctl.doc.NewObserver(func(records []dom.Record, o *dom.Observer) {
		if !t.stolen {
			return
		}
		if t.placeholder.Parent == nil {
			t.externallyRemoved()
		}
	})
	t.observer.Observe(rep.Parent, dom.Options{ChildList: true})
}

func (t *Token) externallyRemoved() {
	t.ctl.logger.Debug("placeholder removed by application", "tag", dom.Tag(t.node), "selector", t.selector)
	t.stolen = false
	t.returned = true
	t.stopObserving()
	t.Remove()
}

func (t *Token) stopObserving() {
	if t.observer != nil {
		t.observer.Disconnect()
		t.observer = nil
	}
}

// Insert adds the token to list at the position matching the document
// order of its representative. It walks backwards in document order from
// the representative to the nearest node whose token is already in list and
// inserts right after it; with no such node the token goes first. Nodes
// owned by no token, or by a stolen token they no longer stand for, are
// walked past.
func (t *Token) Insert(list *List) {
	if t.list != nil && t.list != list {
		t.list.remove(t)
	}
	t.list = list
	if list.Index(t) != -1 {
		return
	}
	for n := preceding(t.Representative()); n != nil; n = preceding(n) {
		data, ok := t.ctl.owners[n]
		if !ok {
			continue
		}
		// A stolen token only counts through its placeholder; anything else
		// carrying it is stale.
		if data.stolen && data.placeholder != n {
			continue
		}
		if i := list.Index(data); i != -1 {
			list.insertAt(i+1, t)
			return
		}
	}
	list.insertAt(0, t)
}

// preceding returns the node before n in document order: the last
// descendant of its previous sibling, or else its parent.
func preceding(n *html.Node) *html.Node {
	if p := n.PrevSibling; p != nil {
		for p.LastChild != nil {
			p = p.LastChild
		}
		return p
	}
	return n.Parent
}

// Remove takes the token out of its list, drops the node's entry in the
// ownership table and detaches any placeholder left in the tree.
func (t *Token) Remove() {
	if t.list != nil {
		t.list.remove(t)
		t.list = nil
	}
	t.stopObserving()
	t.ctl.release(t.node, t)
	if t.placeholder != nil {
		t.ctl.release(t.placeholder, t)
		t.ctl.doc.Remove(t.placeholder)
		t.placeholder = nil
	}
}

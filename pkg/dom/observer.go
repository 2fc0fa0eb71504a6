package dom

import (
	"slices"

	"golang.org/x/net/html"
)

// RecordType is the kind of mutation a Record describes.
type RecordType int

const (
	// ChildList records children being added or removed.
	ChildList RecordType = iota
	// Attributes records an attribute being set or removed.
	Attributes
	// CharacterData records a text or comment node changing its data.
	CharacterData
)

func (t RecordType) String() string {
	switch t {
	case ChildList:
		return "childList"
	case Attributes:
		return "attributes"
	case CharacterData:
		return "characterData"
	default:
		return "unknown"
	}
}

// Record describes one mutation.
type Record struct {
	Type            RecordType
	Target          *html.Node
	Added           []*html.Node
	Removed         []*html.Node
	PreviousSibling *html.Node
	NextSibling     *html.Node
	AttributeName   string
	OldValue        string
}

// Options selects which mutations an observation reports.
type Options struct {
	ChildList     bool
	Attributes    bool
	CharacterData bool
	// Subtree extends the observation to every descendant of the target,
	// evaluated when the mutation happens.
	Subtree bool
	// AttributeFilter limits attribute records to the listed names.
	// A non-empty filter implies Attributes.
	AttributeFilter []string
}

// ObserverFunc receives one batch of records per flush.
type ObserverFunc func(records []Record, o *Observer)

// Observer collects records for the targets it observes and hands them to
// its callback when the document flushes.
type Observer struct {
	doc      *Document
	id       int
	callback ObserverFunc
	targets  []registration
	records  []Record
	active   bool
}

type registration struct {
	target *html.Node
	opts   Options
}

// NewObserver creates an observer bound to d. It observes nothing until
// Observe is called.
func (d *Document) NewObserver(callback ObserverFunc) *Observer {
	d.observerSeq++
	return &Observer{doc: d, id: d.observerSeq, callback: callback}
}

// Observe starts reporting mutations on target. Observing the same target
// again replaces its options.
func (o *Observer) Observe(target *html.Node, opts Options) {
	if len(opts.AttributeFilter) > 0 {
		opts.Attributes = true
	}
	if !o.active {
		o.active = true
		o.doc.observers = append(o.doc.observers, o)
	}
	for i := range o.targets {
		if o.targets[i].target == target {
			o.targets[i].opts = opts
			return
		}
	}
	o.targets = append(o.targets, registration{target: target, opts: opts})
}

// Disconnect stops all observations and drops records not yet delivered.
// Safe to call more than once.
func (o *Observer) Disconnect() {
	if !o.active {
		return
	}
	o.active = false
	o.targets = nil
	o.records = nil
	o.doc.observers = slices.DeleteFunc(o.doc.observers, func(other *Observer) bool {
		return other == o
	})
}

// TakeRecords returns and clears the records queued for this observer.
func (o *Observer) TakeRecords() []Record {
	records := o.records
	o.records = nil
	return records
}

// Active reports whether the observer is connected.
func (o *Observer) Active() bool {
	return o.active
}

func (o *Observer) wants(rec Record) bool {
	if !o.active {
		return false
	}
	for _, reg := range o.targets {
		if reg.target != rec.Target && !(reg.opts.Subtree && Contains(reg.target, rec.Target)) {
			continue
		}
		switch rec.Type {
		case ChildList:
			if reg.opts.ChildList {
				return true
			}
		case Attributes:
			if reg.opts.Attributes && (len(reg.opts.AttributeFilter) == 0 ||
				slices.Contains(reg.opts.AttributeFilter, rec.AttributeName)) {
				return true
			}
		case CharacterData:
			if reg.opts.CharacterData {
				return true
			}
		}
	}
	return false
}

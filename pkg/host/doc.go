// Package host connects record types to elements of a live document.
//
// A [Registry] maps tags to record types and render functions. Attaching it
// to a document upgrades every matching element: each gets a model instance
// derived from its subtree, an attribute observer limited to the attributes
// its type declares, and a render function that is called again whenever
// the model changes. Renders are batched by a [Scheduler] so an element
// renders at most once per [Host.Flush], parents before children.
//
//	reg := host.NewRegistry(nil)
//	reg.Define("my-select", selectType, func(e *host.Element, p host.Props) {
//		fmt.Println(p["options"])
//	})
//	h := reg.Attach(doc, doc.Root())
//	defer h.Detach()
package host

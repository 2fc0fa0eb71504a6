// Package dom provides the host tree that models are synchronized with.
//
// Nodes are plain [html.Node] values from golang.org/x/net/html. A
// [Document] is the mutation hub for every tree it owns: edits made through
// it are recorded and delivered to [Observer] callbacks in batches, the way
// a browser delivers MutationObserver records at the end of a task.
//
// # Delivery
//
// Mutation records are never delivered synchronously. They queue on each
// interested observer until [Document.Flush] runs, which is the microtask
// checkpoint of this package. A [Loop] runs tasks one at a time and flushes
// after each of them:
//
//	doc, _ := dom.ParseFragment(`<my-list><li>one</li></my-list>`)
//	loop := dom.NewLoop(doc)
//	obs := doc.NewObserver(func(records []dom.Record, o *dom.Observer) {
//	    fmt.Println(len(records), "mutations")
//	})
//	obs.Observe(doc.FirstElement(), dom.Options{ChildList: true, Subtree: true})
//	loop.Dispatch(func() { doc.AppendChild(doc.FirstElement(), doc.CreateElement("li")) })
//	loop.Run(ctx)
//
// Edits applied directly to html.Node fields bypass the document and are
// invisible to observers.
//
// # Queries
//
// [Query] and [QueryAll] match CSS selectors against descendants using
// github.com/andybalholm/cascadia. Compiled selectors are cached.
package dom

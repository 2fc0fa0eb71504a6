// Package model keeps declared records in sync with host tree nodes.
//
// A [Type] is a static table of field declarations built once with
// [NewType]. Each field pairs a key with a [Strategy] that derives the
// field's value from a node. An [Instance] holds the values for one source
// node:
//
//	button := model.NewType("my-button").
//	    Field("variant", extract.Attr("variant", "primary")).
//	    Field("label", extract.Text()).
//	    Event("press").
//	    MustBuild()
//
//	inst := model.NewInstance(button, env, node)
//	inst.OnChange(func(c model.Change) { rerender(c.Key, c.Value) })
//	if err := inst.DeriveAll(node); err != nil {
//	    return err
//	}
//	defer inst.Teardown()
//
// # Updates
//
// Strategies that read content install watchers through their [Binding]
// while deriving. When the document flushes a batch of mutations a watcher
// re-derives its one field and the instance delivers a [Change] to its
// listener. Every watcher checks that the instance is still active when the
// batch arrives, so nothing is delivered after Teardown returns.
//
// Attribute-backed fields are not watched; the lifecycle adapter calls
// [Instance.AttributeChanged] when the host reports an attribute change.
package model

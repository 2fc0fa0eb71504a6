// Package extract is the library of field strategies for model types.
//
// Attribute strategies ([Attr], [Bool], [JSON], [JSONAs]) read one attribute
// and are refreshed by the lifecycle adapter's attribute notifications.
// Content strategies ([Text], [ChildText]) watch the part of the tree they
// read. Record strategies ([Nested], [Ref], [List], [Dispatch]) derive child
// instances; the list strategies watch the whole owner subtree and rebuild
// the list on any mutation. [Delegate] reuses a model another component
// already generated, and [Embed] and [EmbedList] expose live subtrees that
// a rendering integration can mount elsewhere.
package extract

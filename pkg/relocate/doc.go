// Package relocate moves live nodes out of their tree and back again.
//
// A [Token] stands for one node. Stealing the node swaps a placeholder
// comment into its place so the node can be mounted in a separately
// rendered output tree; returning it swaps the node back in wherever the
// placeholder sits at that moment, even if siblings came and went in the
// meantime. A [List] keeps tokens in document order whether each member is
// currently present or represented by its placeholder.
//
// Every node and placeholder a token covers is recorded in the
// [Controller]'s ownership table; that table replaces any notion of hidden
// per-node data.
package relocate

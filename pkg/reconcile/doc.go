// Package reconcile patches a live document subtree so that it matches a
// freshly parsed replacement, in place.
//
// Children are matched by identity key: the component id (data-falk-id),
// then the static id attribute, then position. Style, script and link
// elements are never content-diffed: live ones stay where they are and new
// ones are left to the asset loader.
//
// # Preservation
//
// A live subtree is preserved (neither attributes nor children touched, never
// discarded) when it carries data-falk-preserve, or data-skip-rerendering and
// Options.RespectSkip is set. Options.Force disables preservation entirely.
//
// # Form values
//
// With Options.PreserveValues set, a matched text input, textarea or select
// keeps the value the user typed; the server's value is discarded. Callers
// clear PreserveValues for submit-triggered and forced renders so the server
// value wins.
//
// # Lifecycle
//
// Before a node is discarded, OnBeforeUnmount runs for every component root
// in its subtree (children first). After the diff, OnRender runs for every
// component root in the result outside preserved subtrees, and OnMount runs
// first for those whose id was not present in the live subtree before the
// patch.
package reconcile

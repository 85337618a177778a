// Package dom provides node identity helpers and traversal over the owned
// document tree.
//
// The document is a golang.org/x/net/html tree. A node that carries a
// data-falk-id attribute is a component root; its id is stable across
// reconciliation passes as long as the server keeps rendering a component at
// that position. Style, script and link elements are never components and
// are excluded from identity and lifecycle processing.
//
// Two independent flags exclude a subtree from reconciliation:
//
//   - data-falk-preserve: always honored unless the render is forced
//   - data-skip-rerendering: honored only when the caller asks for it
//
// They are kept apart on purpose: ShouldPreserve and ShouldSkip are separate
// predicates and callers decide how to combine them.
package dom

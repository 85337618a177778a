package dom

import "golang.org/x/net/html"

// Walk visits root and its descendants in document order (pre-order).
// Returning false from fn skips the node's children.
func Walk(root *html.Node, fn func(n *html.Node) bool) {
	if root == nil {
		return
	}
	stack := []*html.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n) {
			continue
		}
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
}

// PostOrder visits root and its descendants children-first. enter decides
// whether a node (and its subtree) takes part at all; a nil enter admits
// every node.
func PostOrder(root *html.Node, enter func(n *html.Node) bool, visit func(n *html.Node)) {
	if root == nil {
		return
	}

	type frame struct {
		n        *html.Node
		expanded bool
	}

	stack := []frame{{n: root}}
	for len(stack) > 0 {
		top := len(stack) - 1
		if stack[top].expanded {
			n := stack[top].n
			stack = stack[:top]
			visit(n)
			continue
		}

		n := stack[top].n
		if enter != nil && !enter(n) {
			stack = stack[:top]
			continue
		}
		stack[top].expanded = true
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, frame{n: c})
		}
	}
}

// WalkComponents calls fn for every component root under (and including)
// root, children before parents. Style, script and link elements are never
// entered. prune, if non-nil, excludes a node together with its subtree.
func WalkComponents(root *html.Node, prune func(n *html.Node) bool, fn func(n *html.Node)) {
	enter := func(n *html.Node) bool {
		if n.Type == html.DocumentNode {
			return true
		}
		if !IsUINode(n) {
			return false
		}
		return prune == nil || !prune(n)
	}
	PostOrder(root, enter, func(n *html.Node) {
		if HasNodeID(n) {
			fn(n)
		}
	})
}

// Components returns every component root under root in post-order.
func Components(root *html.Node) []*html.Node {
	var out []*html.Node
	WalkComponents(root, nil, func(n *html.Node) {
		out = append(out, n)
	})
	return out
}

// ComponentIDs returns the set of component ids under root.
func ComponentIDs(root *html.Node) map[string]struct{} {
	ids := make(map[string]struct{})
	WalkComponents(root, nil, func(n *html.Node) {
		ids[NodeID(n)] = struct{}{}
	})
	return ids
}

// FindByNodeID returns the component root with the given id, or nil.
func FindByNodeID(root *html.Node, id string) *html.Node {
	if id == "" {
		return nil
	}
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if NodeID(n) == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Contains reports whether n is root or one of its descendants.
func Contains(root, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attribute names understood by the runtime.
const (
	AttrNodeID   = "data-falk-id"
	AttrToken    = "data-falk-token"
	AttrSkip     = "data-skip-rerendering"
	AttrPreserve = "data-falk-preserve"

	// UploadTokenField is the reserved form field carrying the upload token.
	UploadTokenField = "falk/upload-token"
)

// IsElement reports whether n is an element node.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// IsAsset reports whether n is a style, script or link element.
func IsAsset(n *html.Node) bool {
	if !IsElement(n) {
		return false
	}
	switch n.DataAtom {
	case atom.Style, atom.Script, atom.Link:
		return true
	}
	switch strings.ToLower(n.Data) {
	case "style", "script", "link":
		return true
	}
	return false
}

// IsUINode reports whether n is a renderable element (not style/script/link).
func IsUINode(n *html.Node) bool {
	return IsElement(n) && !IsAsset(n)
}

// HasNodeID reports whether n is a renderable element with a component id.
func HasNodeID(n *html.Node) bool {
	return NodeID(n) != ""
}

// NodeID returns the component id of n, or "" if n is not a component root.
func NodeID(n *html.Node) string {
	if !IsUINode(n) {
		return ""
	}
	id, _ := GetAttr(n, AttrNodeID)
	return id
}

// ShouldSkip reports whether n carries the reconciler skip flag.
func ShouldSkip(n *html.Node) bool {
	return IsElement(n) && HasAttr(n, AttrSkip)
}

// ShouldPreserve reports whether n carries the general preserve flag.
func ShouldPreserve(n *html.Node) bool {
	return IsElement(n) && HasAttr(n, AttrPreserve)
}

// Key returns the identity key used when matching children during a diff:
// the component id, then the static id attribute, then "" (positional).
func Key(n *html.Node) string {
	if !IsUINode(n) {
		return ""
	}
	if id := NodeID(n); id != "" {
		return id
	}
	id, _ := GetAttr(n, "id")
	return id
}

// GetAttr returns the value of the named attribute.
func GetAttr(n *html.Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// Attr returns the value of the named attribute or "".
func Attr(n *html.Node, name string) string {
	v, _ := GetAttr(n, name)
	return v
}

// HasAttr reports whether n has the named attribute.
func HasAttr(n *html.Node, name string) bool {
	_, ok := GetAttr(n, name)
	return ok
}

// SetAttr sets or replaces the named attribute.
func SetAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr removes the named attribute if present.
func RemoveAttr(n *html.Node, name string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// SameAttrs reports whether a and b carry identical attribute lists.
func SameAttrs(a, b *html.Node) bool {
	if len(a.Attr) != len(b.Attr) {
		return false
	}
	for i := range a.Attr {
		if a.Attr[i] != b.Attr[i] {
			return false
		}
	}
	return true
}

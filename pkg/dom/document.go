package dom

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse parses a complete HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	return html.Parse(r)
}

// ParseString parses markup as a complete HTML document.
func ParseString(markup string) (*html.Node, error) {
	return html.Parse(strings.NewReader(markup))
}

// Render serializes n and its subtree.
func Render(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	_ = html.Render(&b, n)
	return b.String()
}

// FindElement returns the first element under root with the given atom.
func FindElement(root *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return false
		}
		return true
	})
	return found
}

// DocumentElement returns the <html> element of a document.
func DocumentElement(doc *html.Node) *html.Node {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			return c
		}
	}
	return FindElement(doc, atom.Html)
}

// Head returns the <head> element of a document.
func Head(doc *html.Node) *html.Node {
	return FindElement(doc, atom.Head)
}

// Body returns the <body> element of a document.
func Body(doc *html.Node) *html.Node {
	return FindElement(doc, atom.Body)
}

// Title returns the document title.
func Title(doc *html.Node) string {
	t := FindElement(Head(doc), atom.Title)
	if t == nil {
		return ""
	}
	return strings.TrimSpace(TextContent(t))
}

// SetTitle replaces the document title, creating <title> if needed.
func SetTitle(doc *html.Node, title string) {
	head := Head(doc)
	if head == nil {
		return
	}
	t := FindElement(head, atom.Title)
	if t == nil {
		t = &html.Node{Type: html.ElementNode, Data: "title", DataAtom: atom.Title}
		head.AppendChild(t)
	}
	SetTextContent(t, title)
}

// IsDocumentElement reports whether n is an <html> element.
func IsDocumentElement(n *html.Node) bool {
	return IsElement(n) && n.DataAtom == atom.Html
}

// FirstElementChild returns the first element child of n.
func FirstElementChild(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// TextContent returns the concatenated text of n's subtree.
func TextContent(n *html.Node) string {
	var b strings.Builder
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

// SetTextContent replaces n's children with a single text node.
func SetTextContent(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Clone returns a deep copy of n, detached from any tree.
func Clone(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(Clone(child))
	}
	return c
}

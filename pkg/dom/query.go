package dom

import (
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var selectorCache sync.Map // string -> cascadia.Sel

// Compile parses a CSS selector, caching the result.
func Compile(selector string) (cascadia.Sel, error) {
	if s, ok := selectorCache.Load(selector); ok {
		return s.(cascadia.Sel), nil
	}
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil, err
	}
	selectorCache.Store(selector, sel)
	return sel, nil
}

// QueryAll returns every element under root matching selector in document order.
func QueryAll(root *html.Node, selector string) ([]*html.Node, error) {
	sel, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	return cascadia.QueryAll(root, sel), nil
}

// Query returns the first element under root matching selector, or nil.
func Query(root *html.Node, selector string) (*html.Node, error) {
	sel, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	return cascadia.Query(root, sel), nil
}

// Matches reports whether n matches selector.
func Matches(n *html.Node, selector string) (bool, error) {
	sel, err := Compile(selector)
	if err != nil {
		return false, err
	}
	return sel.Match(n), nil
}

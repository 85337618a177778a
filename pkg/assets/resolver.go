package assets

import "net/url"

// Resolver turns an asset reference from markup into a fetchable URL.
type Resolver interface {
	// Asset resolves src or href against the page.
	//
	// Example:
	//   resolver.Asset("/static/app.js") → "http://localhost:8000/static/app.js"
	Asset(source string) string
}

// urlResolver resolves references against the page URL.
type urlResolver struct {
	base *url.URL
}

// NewResolver creates a Resolver for the page at pageURL.
func NewResolver(pageURL string) (Resolver, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	return &urlResolver{base: base}, nil
}

func (r *urlResolver) Asset(source string) string {
	ref, err := url.Parse(source)
	if err != nil {
		return source
	}
	return r.base.ResolveReference(ref).String()
}

// passthrough returns references unchanged.
type passthrough struct{}

// NewPassthroughResolver creates a resolver that returns references as
// written. Use it when markup only carries absolute URLs.
func NewPassthroughResolver() Resolver {
	return passthrough{}
}

func (passthrough) Asset(source string) string {
	return source
}

package assets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/falk/pkg/dom"
)

// maxParallelScripts bounds concurrent script fetches in Wait.
const maxParallelScripts = 4

// Loader inserts new assets into the live document and waits for new
// external scripts to load.
type Loader struct {
	resolver    Resolver
	client      *http.Client
	loadScripts bool
	loaded      *Manifest // script URL -> "loaded"
	logger      *slog.Logger
}

// NewLoader creates a Loader. With loadScripts false, Wait returns at once.
func NewLoader(resolver Resolver, client *http.Client, loadScripts bool, logger *slog.Logger) *Loader {
	if resolver == nil {
		resolver = NewPassthroughResolver()
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		resolver:    resolver,
		client:      client,
		loadScripts: loadScripts,
		loaded:      NewManifest(),
		logger:      logger.With("component", "assets"),
	}
}

// Key returns the dedupe key of an asset element: its URL, else its id,
// else its tag and inline content.
func Key(n *html.Node) string {
	switch n.DataAtom {
	case atom.Link:
		if href := dom.Attr(n, "href"); href != "" {
			return "url:" + href
		}
	case atom.Script:
		if src := dom.Attr(n, "src"); src != "" {
			return "url:" + src
		}
	}
	if id := dom.Attr(n, "id"); id != "" {
		return "id:" + id
	}
	return "inline:" + n.Data + ":" + dom.TextContent(n)
}

// Insert appends every asset of fetched that live lacks, head assets to
// the live head and body assets to the live body. fetched is not modified.
// It returns the resolved URLs of inserted external scripts.
func (l *Loader) Insert(live, fetched *html.Node) []string {
	present := make(map[string]bool)
	for _, n := range collect(live) {
		present[Key(n)] = true
	}

	var scripts []string
	for _, section := range []struct {
		from, to *html.Node
	}{
		{dom.Head(fetched), dom.Head(live)},
		{dom.Body(fetched), dom.Body(live)},
	} {
		if section.from == nil || section.to == nil {
			continue
		}
		for _, n := range collect(section.from) {
			key := Key(n)
			if present[key] {
				continue
			}
			present[key] = true
			section.to.AppendChild(dom.Clone(n))
			l.logger.Debug("asset inserted", "tag", n.Data, "key", key)

			if n.DataAtom == atom.Script {
				if src := dom.Attr(n, "src"); src != "" {
					scripts = append(scripts, l.resolver.Asset(src))
				}
			}
		}
	}
	return scripts
}

// Wait fetches every script URL not loaded before and returns once all of
// them have answered. A failed script does not stop the others.
func (l *Loader) Wait(ctx context.Context, urls []string) error {
	if !l.loadScripts {
		for _, u := range urls {
			l.loaded.Set(u, "skipped")
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(maxParallelScripts)
	for _, u := range urls {
		if l.loaded.Has(u) {
			continue
		}
		g.Go(func() error {
			return l.fetch(ctx, u)
		})
	}
	return g.Wait()
}

// Loaded returns the script URLs seen by Wait.
func (l *Loader) Loaded() map[string]string {
	return l.loaded.All()
}

func (l *Loader) fetch(ctx context.Context, u string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("assets: script %s: %w", u, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("assets: script %s: %w", u, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("assets: script %s: status %d", u, resp.StatusCode)
	}
	l.loaded.Set(u, "loaded")
	l.logger.Debug("script loaded", "url", u)
	return nil
}

// collect returns the asset elements under root in document order.
func collect(root *html.Node) []*html.Node {
	var out []*html.Node
	dom.Walk(root, func(n *html.Node) bool {
		if dom.IsAsset(n) {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

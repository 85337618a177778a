package client

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"

	"github.com/vango-dev/falk/internal/config"
	"github.com/vango-dev/falk/internal/errors"
	"github.com/vango-dev/falk/pkg/assets"
	"github.com/vango-dev/falk/pkg/dom"
	"github.com/vango-dev/falk/pkg/hooks"
	"github.com/vango-dev/falk/pkg/transport"
)

// Runtime is the explicit context of one page: its document, tokens,
// transports and hooks.
type Runtime struct {
	url    string
	config *config.Config
	logger *slog.Logger

	// mu serializes every access to doc, mounted and hook dispatch.
	mu      sync.Mutex
	doc     *html.Node
	mounted map[string]struct{} // ids that fired initialrender
	tokens  *TokenStore

	nextID atomic.Uint64

	http     *transport.HTTP
	ws       *transport.WebSocket
	wsReady  atomic.Bool
	override transport.Transport

	hooks    *hooks.Dispatcher
	assets   *assets.Loader
	metrics  *Metrics
	registry prometheus.Registerer
	tracer   trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a runtime for a parsed document. It does not connect; call
// Start.
func New(doc *html.Node, opts Options) (*Runtime, error) {
	if doc == nil {
		return nil, errors.New("E040").WithDetail("nil document")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pageURL := opts.URL
	if pageURL == "" {
		pageURL = cfg.URL
	}
	if pageURL == "" {
		return nil, errors.New("E040").
			WithDetail("no page URL").
			WithSuggestion("Pass a URL or set \"url\" in " + config.ConfigFileName)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	mc := defaultMetricsConfig()
	mc.Namespace = cfg.Metrics.Namespace
	mc.Registry = opts.Registry
	if mc.Registry == nil {
		mc.Registry = prometheus.NewRegistry()
	}
	metrics := newMetrics(mc)

	resolver, err := assets.NewResolver(pageURL)
	if err != nil {
		return nil, errors.New("E040").WithDetailf("invalid page URL %q", pageURL).Wrap(err)
	}

	header := http.Header(cfg.HTTPHeader())
	httpTransport := transport.NewHTTP(pageURL, client, logger).WithHeader(header)

	var ws *transport.WebSocket
	if cfg.UseWebSockets() && opts.Transport == nil {
		wsConfig := transport.DefaultWebSocketConfig()
		wsConfig.DialTimeout = cfg.DialTimeoutDuration()
		wsConfig.Header = header
		wsConfig.Logger = logger
		wsConfig.OnUnknownFrame = func(uint64) {
			metrics.protocolErrors.WithLabelValues("unknown_request_id").Inc()
		}
		ws, err = transport.NewWebSocket(pageURL, httpTransport, wsConfig)
		if err != nil {
			return nil, err
		}
	}

	dispatcher := hooks.New(logger)
	dispatcher.OnFailure(func(hook hooks.Hook, _ error) {
		metrics.hookFailures.WithLabelValues(string(hook)).Inc()
	})

	ctx, cancel := context.WithCancel(context.Background())

	return &Runtime{
		url:      pageURL,
		config:   cfg,
		logger:   logger.With("component", "client"),
		doc:      doc,
		mounted:  make(map[string]struct{}),
		tokens:   NewTokenStore(),
		http:     httpTransport,
		ws:       ws,
		override: opts.Transport,
		hooks:    dispatcher,
		assets:   assets.NewLoader(resolver, client, cfg.LoadScripts(), logger),
		metrics:  metrics,
		registry: mc.Registry,
		tracer:   newTracer(opts.TracerProvider),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Load fetches the page at pageURL and creates a runtime for it.
func Load(ctx context.Context, pageURL string, opts Options) (*Runtime, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.New()
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errors.New("E001").WithDetailf("page %s", pageURL).Wrap(err)
	}
	for k, vs := range cfg.HTTPHeader() {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/html")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.New("E001").WithDetailf("page %s", pageURL).Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.New("E001").WithDetailf("HTTP error! Status: %d", resp.StatusCode)
	}

	doc, err := dom.Parse(resp.Body)
	if err != nil {
		return nil, errors.New("E011").WithDetail("page markup").Wrap(err)
	}

	// Mutations go to the page's final location, after redirects.
	opts.URL = resp.Request.URL.String()
	opts.Config = cfg
	opts.HTTPClient = client
	return New(doc, opts)
}

// Start runs the startup sequence: beforeinit, the WebSocket handshake,
// token collection, initialrender and render for every component, then the
// configured initial callbacks.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	r.hooks.Dispatch(hooks.BeforeInit, dom.DocumentElement(r.doc), nil)
	r.mu.Unlock()

	if r.ws != nil {
		r.wsReady.Store(r.ws.Init(ctx))
	}

	r.mu.Lock()
	components := dom.Components(r.doc)
	live := make(map[string]struct{}, len(components))
	for _, n := range components {
		id := dom.NodeID(n)
		live[id] = struct{}{}
		if tok, ok := dom.GetAttr(n, dom.AttrToken); ok {
			r.tokens.Set(id, tok)
		}
	}
	for id, tok := range r.config.Tokens {
		if _, ok := live[id]; ok {
			r.tokens.Set(id, tok)
		}
	}
	for _, n := range components {
		r.mounted[dom.NodeID(n)] = struct{}{}
		r.hooks.Dispatch(hooks.InitialRender, n, nil)
		r.hooks.Dispatch(hooks.Render, n, nil)
	}
	r.mu.Unlock()

	r.logger.Info("runtime started",
		"url", r.url,
		"components", len(components),
		"websocket", r.wsReady.Load())

	for _, cb := range r.config.InitialCallbacks {
		r.Go(callOptions(cb))
	}
	return nil
}

// Go runs a callback in the background. Errors are logged.
func (r *Runtime) Go(opts CallOptions) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.RunCallback(r.ctx, opts); err != nil {
			r.logger.Error("callback failed",
				"callback", opts.Callback,
				"node_id", opts.NodeID,
				"selector", opts.Selector,
				"error", err)
		}
	}()
}

// Wait blocks until every callback started with Go, including the ones
// they chain, has finished.
func (r *Runtime) Wait() {
	r.wg.Wait()
}

// Close cancels background callbacks, waits for them and closes the
// WebSocket.
func (r *Runtime) Close() error {
	r.cancel()
	r.wg.Wait()
	if r.ws != nil {
		return r.ws.Close()
	}
	return nil
}

// Hooks returns the hook dispatcher.
func (r *Runtime) Hooks() *hooks.Dispatcher {
	return r.hooks
}

// Tokens returns a snapshot of the token store.
func (r *Runtime) Tokens() map[string]string {
	return r.tokens.Snapshot()
}

// Token returns the token of a component id.
func (r *Runtime) Token(id string) (string, bool) {
	return r.tokens.Get(id)
}

// WebSocketAvailable reports whether calls currently use the persistent
// channel.
func (r *Runtime) WebSocketAvailable() bool {
	return r.ws != nil && r.wsReady.Load() && r.ws.Available()
}

// Gatherer returns the registry holding the runtime's metrics, or nil if
// the configured registry cannot be gathered.
func (r *Runtime) Gatherer() prometheus.Gatherer {
	g, _ := r.registry.(prometheus.Gatherer)
	return g
}

// View calls fn with the document locked. fn must not keep references to
// nodes after it returns.
func (r *Runtime) View(fn func(doc *html.Node)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.doc)
}

// Update calls fn with the document locked, for changes made outside a
// mutation call such as typing into an input.
func (r *Runtime) Update(fn func(doc *html.Node) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.doc)
}

// HTML renders the current document.
func (r *Runtime) HTML() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return dom.Render(r.doc)
}

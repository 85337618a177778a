package client

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"

	"github.com/vango-dev/falk/internal/config"
	"github.com/vango-dev/falk/pkg/event"
	"github.com/vango-dev/falk/pkg/protocol"
	"github.com/vango-dev/falk/pkg/transport"
)

// Options configure a Runtime.
type Options struct {
	// URL is the page URL. Defaults to Config.URL.
	URL string

	// Config is the runtime configuration. Defaults to config.New().
	Config *config.Config

	// HTTPClient is used for mutation requests, page loads and scripts.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Registry receives the runtime's collectors. Nil uses a private
	// registry, see Runtime.Gatherer.
	Registry prometheus.Registerer

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider

	// Transport, if set, services every request instead of the built-in
	// HTTP and WebSocket transports.
	Transport transport.Transport
}

// CallOptions describe one RunCallback invocation. Exactly one of Node,
// NodeID and Selector selects the targets.
type CallOptions struct {
	// Node targets the component containing this node.
	Node *html.Node

	// NodeID targets the component with this id.
	NodeID string

	// Selector targets the component of every matching node.
	Selector string

	// Event is the UI event that triggered the call, if any.
	Event *event.Event

	Callback string
	Args     any

	// StopEvent stops the event before the delay elapses.
	StopEvent bool

	// Delay is a number of seconds or a duration string such as "250ms".
	Delay any
}

// callOptions converts a server scheduled callback.
func callOptions(cb protocol.Callback) CallOptions {
	opts := CallOptions{
		Callback: cb.Name,
		Args:     cb.Args,
		Delay:    cb.Delay,
	}
	if cb.IsSelector() {
		opts.Selector = cb.Target
	} else {
		opts.NodeID = cb.Target
	}
	return opts
}

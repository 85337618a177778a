package transport

import (
	"context"
	"net/url"

	"github.com/vango-dev/falk/pkg/protocol"
	"github.com/vango-dev/falk/pkg/upload"
)

// Transport sends mutation requests and returns the server's response.
type Transport interface {
	// SendMutationRequest sends a JSON envelope.
	SendMutationRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

	// SendMultipartMutationRequest sends the envelope together with files.
	SendMultipartMutationRequest(ctx context.Context, req *protocol.Request, files []upload.File) (*protocol.Response, error)
}

// Name values used in logs, metrics and spans.
const (
	NameHTTP      = "http"
	NameMultipart = "multipart"
	NameWebSocket = "websocket"
)

// WebSocketURL maps a page URL to the URL of its persistent channel.
func WebSocketURL(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Fragment = ""
	return u.String(), nil
}

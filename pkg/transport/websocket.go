package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/falk/internal/errors"
	"github.com/vango-dev/falk/pkg/protocol"
	"github.com/vango-dev/falk/pkg/upload"
)

// WebSocketConfig configures the persistent channel.
type WebSocketConfig struct {
	// Dialer opens connections. Nil uses a dialer with DialTimeout.
	Dialer *websocket.Dialer

	// DialTimeout bounds the opening handshake.
	DialTimeout time.Duration

	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration

	// Header is sent with the opening handshake (cookies, auth).
	Header http.Header

	// OnUnknownFrame is called for every response frame whose request id
	// has no pending entry.
	OnUnknownFrame func(id uint64)

	Logger *slog.Logger
}

// DefaultWebSocketConfig returns a WebSocketConfig with sensible defaults.
func DefaultWebSocketConfig() *WebSocketConfig {
	return &WebSocketConfig{
		DialTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

type result struct {
	resp *protocol.Response
	err  error
}

// pendingCall is an in-flight table entry. conn records the connection the
// request was written to so a drop only fails its own calls.
type pendingCall struct {
	ch   chan result
	conn *websocket.Conn
}

// WebSocket multiplexes mutation calls over one persistent connection.
// Multipart calls are delegated to the HTTP fallback.
type WebSocket struct {
	url      string
	config   *WebSocketConfig
	dialer   *websocket.Dialer
	fallback *HTTP
	logger   *slog.Logger

	mu     sync.Mutex // guards conn, closed
	conn   *websocket.Conn
	closed bool

	// dialMu serializes reconnect attempts.
	dialMu sync.Mutex

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[uint64]*pendingCall
}

// NewWebSocket creates a WebSocket transport for pageURL. It does not
// connect; call Init.
func NewWebSocket(pageURL string, fallback *HTTP, config *WebSocketConfig) (*WebSocket, error) {
	if config == nil {
		config = DefaultWebSocketConfig()
	}
	wsURL, err := WebSocketURL(pageURL)
	if err != nil {
		return nil, errors.New("E040").WithDetailf("invalid page URL %q", pageURL).Wrap(err)
	}

	dialer := config.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.DialTimeout,
		}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if fallback == nil {
		fallback = NewHTTP(pageURL, nil, logger)
	}

	return &WebSocket{
		url:      wsURL,
		config:   config,
		dialer:   dialer,
		fallback: fallback,
		logger:   logger.With("component", "transport", "transport", NameWebSocket),
		pending:  make(map[uint64]*pendingCall),
	}, nil
}

// Init attempts to open the channel. It never fails; false means the caller
// should use the HTTP fallback.
func (w *WebSocket) Init(ctx context.Context) bool {
	if _, err := w.connect(ctx); err != nil {
		w.logger.Warn("websocket unavailable, using http", "url", w.url, "error", err)
		return false
	}
	return true
}

// Available reports whether the channel is open.
func (w *WebSocket) Available() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil
}

// Pending returns the number of in-flight calls.
func (w *WebSocket) Pending() int {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	return len(w.pending)
}

// Close closes the channel. Pending calls fail with a transport error.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	conn := w.conn
	w.conn = nil
	w.closed = true
	w.mu.Unlock()

	if conn == nil {
		return nil
	}
	w.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	w.writeMu.Unlock()
	return conn.Close()
}

// connect returns the open connection, dialing once if there is none.
func (w *WebSocket) connect(ctx context.Context) (*websocket.Conn, error) {
	w.dialMu.Lock()
	defer w.dialMu.Unlock()

	w.mu.Lock()
	conn, closed := w.conn, w.closed
	w.mu.Unlock()
	if closed {
		return nil, errors.New("E002").WithDetail("transport closed")
	}
	if conn != nil {
		return conn, nil
	}

	conn, resp, err := w.dialer.DialContext(ctx, w.url, w.config.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, errors.New("E002").Wrap(err)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		conn.Close()
		return nil, errors.New("E002").WithDetail("transport closed")
	}
	w.conn = conn
	w.mu.Unlock()

	w.logger.Debug("websocket connected", "url", w.url)
	go w.readLoop(conn)
	return conn, nil
}

// SendMutationRequest writes req as a [id, envelope] frame and waits for the
// matching response. If the channel is down one reconnect is attempted.
// Cancelling ctx abandons the wait but not the request.
func (w *WebSocket) SendMutationRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	conn, err := w.connect(ctx)
	if err != nil {
		return nil, err
	}

	data, err := protocol.EncodeFrame(req)
	if err != nil {
		return nil, errors.New("E011").WithDetail("request envelope").Wrap(err)
	}

	call := &pendingCall{ch: make(chan result, 1), conn: conn}

	// Register before writing so the earliest reply finds its entry.
	w.pendingMu.Lock()
	if _, dup := w.pending[req.ID]; dup {
		w.pendingMu.Unlock()
		return nil, errors.New("E011").WithDetailf("request id %d already in flight", req.ID)
	}
	w.pending[req.ID] = call
	w.pendingMu.Unlock()

	if err := w.write(conn, data); err != nil {
		w.forget(req.ID, call)
		w.logger.Error("write error", "request_id", req.ID, "error", err)
		return nil, errors.New("E002").WithDetail("write failed").Wrap(err)
	}

	select {
	case r := <-call.ch:
		return r.resp, r.err
	case <-ctx.Done():
		w.forget(req.ID, call)
		return nil, ctx.Err()
	}
}

// SendMultipartMutationRequest uses the HTTP fallback; files never travel
// over the channel.
func (w *WebSocket) SendMultipartMutationRequest(ctx context.Context, req *protocol.Request, files []upload.File) (*protocol.Response, error) {
	return w.fallback.SendMultipartMutationRequest(ctx, req, files)
}

func (w *WebSocket) write(conn *websocket.Conn, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.config.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// forget removes id from the table if it still maps to call.
func (w *WebSocket) forget(id uint64, call *pendingCall) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if w.pending[id] == call {
		delete(w.pending, id)
	}
}

// take removes and returns the entry for id.
func (w *WebSocket) take(id uint64) (*pendingCall, bool) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	call, ok := w.pending[id]
	if ok {
		delete(w.pending, id)
	}
	return call, ok
}

// readLoop resolves pending calls until conn fails.
func (w *WebSocket) readLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				w.logger.Error("read error", "error", err)
			}
			w.drop(conn, err)
			return
		}

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			w.logger.Error("frame decode error", "error", err)
			continue
		}

		call, ok := w.take(frame.ID)
		if !ok {
			w.logger.Warn("discarding frame", "request_id", frame.ID,
				"error", errors.New("E010").WithDetailf("request id %d", frame.ID))
			if w.config.OnUnknownFrame != nil {
				w.config.OnUnknownFrame(frame.ID)
			}
			continue
		}

		resp, err := protocol.DecodeResponse(frame.Payload)
		call.ch <- result{resp: resp, err: err}
	}
}

// drop forgets conn and fails every call written to it.
func (w *WebSocket) drop(conn *websocket.Conn, cause error) {
	w.mu.Lock()
	if w.conn == conn {
		w.conn = nil
	}
	w.mu.Unlock()
	conn.Close()

	w.pendingMu.Lock()
	var failed []*pendingCall
	for id, call := range w.pending {
		if call.conn == conn {
			failed = append(failed, call)
			delete(w.pending, id)
		}
	}
	w.pendingMu.Unlock()

	if len(failed) > 0 {
		w.logger.Warn("websocket closed with requests pending", "pending", len(failed))
	}
	for _, call := range failed {
		call.ch <- result{err: errors.New("E003").Wrap(cause)}
	}
}

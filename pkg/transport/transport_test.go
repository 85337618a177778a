package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/falk/internal/errors"
	"github.com/vango-dev/falk/pkg/dom"
	"github.com/vango-dev/falk/pkg/protocol"
	"github.com/vango-dev/falk/pkg/upload"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// testServer serves ws on upgrade requests and plain on everything else.
func testServer(t *testing.T, ws func(conn *websocket.Conn), plain http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			if ws == nil {
				http.NotFound(w, r)
				return
			}
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			ws(conn)
			return
		}
		if plain == nil {
			http.NotFound(w, r)
			return
		}
		plain(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readRequest(t *testing.T, conn *websocket.Conn) *protocol.Request {
	t.Helper()
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}
	req, err := protocol.DecodeRequestFrame(msg)
	if err != nil {
		t.Errorf("bad frame from client: %v", err)
		return nil
	}
	return req
}

func reply(conn *websocket.Conn, id uint64, body string) error {
	data, err := protocol.EncodeResponseFrame(id, &protocol.Response{Body: body})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func newWS(t *testing.T, srv *httptest.Server, config *WebSocketConfig) *WebSocket {
	t.Helper()
	w, err := NewWebSocket(srv.URL, NewHTTP(srv.URL, srv.Client(), nil), config)
	if err != nil {
		t.Fatalf("NewWebSocket failed: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func TestWebSocketURL(t *testing.T) {
	tests := map[string]string{
		"http://example.com/page?x=1": "ws://example.com/page?x=1",
		"https://example.com/":        "wss://example.com/",
		"http://localhost:8000/a#top": "ws://localhost:8000/a",
	}
	for in, want := range tests {
		got, err := WebSocketURL(in)
		if err != nil || got != want {
			t.Errorf("WebSocketURL(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}

func TestHTTPSendMutationRequest(t *testing.T) {
	srv := testServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("got %s with %q", r.Method, r.Header.Get("Content-Type"))
		}
		var req protocol.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode failed: %v", err)
		}
		if req.RequestType != protocol.RequestTypeMutation || req.NodeID != "n1" || req.Token != "t1" {
			t.Errorf("request = %+v", req)
		}
		w.Write([]byte(`{"body":"<p>ok</p>","tokens":{"n1":"t2"}}`))
	})

	tr := NewHTTP(srv.URL, srv.Client(), nil)
	resp, err := tr.SendMutationRequest(context.Background(), protocol.NewRequest(1, "n1", "t1", "save", nil))
	if err != nil {
		t.Fatalf("SendMutationRequest failed: %v", err)
	}
	if resp.Body != "<p>ok</p>" || resp.Tokens["n1"] != "t2" {
		t.Errorf("response = %+v", resp)
	}
}

func TestHTTPNonSuccessStatus(t *testing.T) {
	srv := testServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})

	tr := NewHTTP(srv.URL, srv.Client(), nil)
	_, err := tr.SendMutationRequest(context.Background(), protocol.NewRequest(1, "n1", "", "save", nil))
	if !errors.Is(err, errors.ErrTransport) {
		t.Fatalf("err = %v, want transport error", err)
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("err = %v, want status in message", err)
	}
}

func TestHTTPMultipart(t *testing.T) {
	srv := testServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm failed: %v", err)
			return
		}
		if got := r.Header.Get(UploadTokenHeader); got != "up-1" {
			t.Errorf("upload token header = %q", got)
		}
		if got := r.FormValue(dom.UploadTokenField); got != "up-1" {
			t.Errorf("upload token field = %q", got)
		}
		var req protocol.Request
		if err := json.Unmarshal([]byte(r.FormValue(MutationField)), &req); err != nil || req.CallbackName != "upload" {
			t.Errorf("mutation field = %q (%v)", r.FormValue(MutationField), err)
		}
		f, hdr, err := r.FormFile("avatar")
		if err != nil {
			t.Errorf("FormFile failed: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if string(data) != "PNG" || hdr.Filename != "me.png" || hdr.Header.Get("Content-Type") != "image/png" {
			t.Errorf("file = %q %q %q", data, hdr.Filename, hdr.Header.Get("Content-Type"))
		}
		w.Write([]byte(`{"body":"<p>uploaded</p>"}`))
	})

	req := protocol.NewRequest(3, "n1", "t1", "upload", nil)
	req.UploadToken = "up-1"
	files := []upload.File{{
		Key:         "avatar",
		Filename:    "me.png",
		ContentType: "image/png",
		Reader:      io.NopCloser(strings.NewReader("PNG")),
	}}

	tr := NewHTTP(srv.URL, srv.Client(), nil)
	resp, err := tr.SendMultipartMutationRequest(context.Background(), req, files)
	if err != nil {
		t.Fatalf("SendMultipartMutationRequest failed: %v", err)
	}
	if resp.Body != "<p>uploaded</p>" {
		t.Errorf("Body = %q", resp.Body)
	}
}

func TestWebSocketOutOfOrderResponses(t *testing.T) {
	release := make(chan struct{})
	srv := testServer(t, func(conn *websocket.Conn) {
		first := readRequest(t, conn)
		second := readRequest(t, conn)
		if first == nil || second == nil {
			return
		}
		// Answer 6 first, then 5 once the test has seen 6 complete.
		if err := reply(conn, 6, "six"); err != nil {
			return
		}
		<-release
		reply(conn, 5, "five")
		conn.ReadMessage()
	}, nil)

	w := newWS(t, srv, nil)
	if !w.Init(context.Background()) {
		t.Fatal("Init returned false")
	}

	type outcome struct {
		resp *protocol.Response
		err  error
	}
	send := func(id uint64) <-chan outcome {
		ch := make(chan outcome, 1)
		go func() {
			resp, err := w.SendMutationRequest(context.Background(), protocol.NewRequest(id, "n", "", "cb", nil))
			ch <- outcome{resp, err}
		}()
		return ch
	}

	five := send(5)
	six := send(6)

	var got6 outcome
	select {
	case got6 = <-six:
	case <-time.After(5 * time.Second):
		t.Fatal("call 6 never resolved")
	}
	select {
	case <-five:
		t.Fatal("call 5 resolved before its response was sent")
	default:
	}
	close(release)

	var got5 outcome
	select {
	case got5 = <-five:
	case <-time.After(5 * time.Second):
		t.Fatal("call 5 never resolved")
	}

	if got6.err != nil || got6.resp.Body != "six" {
		t.Errorf("call 6 = %+v, %v", got6.resp, got6.err)
	}
	if got5.err != nil || got5.resp.Body != "five" {
		t.Errorf("call 5 = %+v, %v", got5.resp, got5.err)
	}
	if w.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", w.Pending())
	}
}

func TestWebSocketUnknownIDIsDiscarded(t *testing.T) {
	srv := testServer(t, func(conn *websocket.Conn) {
		req := readRequest(t, conn)
		if req == nil {
			return
		}
		reply(conn, 99, "stray")
		conn.WriteMessage(websocket.TextMessage, []byte("garbage"))
		reply(conn, req.ID, "real")
		conn.ReadMessage()
	}, nil)

	var unknown atomic.Uint64
	config := DefaultWebSocketConfig()
	config.OnUnknownFrame = func(id uint64) { unknown.Store(id) }

	w := newWS(t, srv, config)
	resp, err := w.SendMutationRequest(context.Background(), protocol.NewRequest(1, "n", "", "cb", nil))
	if err != nil {
		t.Fatalf("SendMutationRequest failed: %v", err)
	}
	if resp.Body != "real" {
		t.Errorf("Body = %q, want real", resp.Body)
	}
	if unknown.Load() != 99 {
		t.Errorf("unknown frame id = %d, want 99", unknown.Load())
	}
	if !w.Available() {
		t.Error("channel should stay open after a protocol error")
	}
}

func TestWebSocketDropFailsPending(t *testing.T) {
	srv := testServer(t, func(conn *websocket.Conn) {
		readRequest(t, conn)
		// Returning closes the connection without answering.
	}, nil)

	w := newWS(t, srv, nil)
	_, err := w.SendMutationRequest(context.Background(), protocol.NewRequest(1, "n", "", "cb", nil))
	if !errors.Is(err, errors.ErrTransport) {
		t.Fatalf("err = %v, want transport error", err)
	}
	var fe *errors.FalkError
	if !errors.As(err, &fe) || fe.Code != "E003" {
		t.Errorf("err = %v, want E003", err)
	}
	if w.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", w.Pending())
	}
}

func TestWebSocketReconnectsOnce(t *testing.T) {
	var dials atomic.Int32
	srv := testServer(t, func(conn *websocket.Conn) {
		if dials.Add(1) == 1 {
			// First connection dies immediately.
			return
		}
		for {
			req := readRequest(t, conn)
			if req == nil {
				return
			}
			reply(conn, req.ID, "again")
		}
	}, nil)

	w := newWS(t, srv, nil)
	if !w.Init(context.Background()) {
		t.Fatal("Init returned false")
	}

	deadline := time.Now().Add(5 * time.Second)
	for w.Available() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if w.Available() {
		t.Fatal("first connection never dropped")
	}

	resp, err := w.SendMutationRequest(context.Background(), protocol.NewRequest(2, "n", "", "cb", nil))
	if err != nil {
		t.Fatalf("SendMutationRequest failed: %v", err)
	}
	if resp.Body != "again" || dials.Load() != 2 {
		t.Errorf("Body = %q after %d dials", resp.Body, dials.Load())
	}
}

func TestWebSocketInitFailure(t *testing.T) {
	srv := testServer(t, nil, nil)

	w := newWS(t, srv, nil)
	if w.Init(context.Background()) {
		t.Fatal("Init should report false when the upgrade is refused")
	}
	if w.Available() {
		t.Error("Available should be false")
	}

	_, err := w.SendMutationRequest(context.Background(), protocol.NewRequest(1, "n", "", "cb", nil))
	var fe *errors.FalkError
	if !errors.As(err, &fe) || fe.Code != "E002" {
		t.Errorf("err = %v, want E002", err)
	}
}

func TestWebSocketMultipartBypassesChannel(t *testing.T) {
	var frames atomic.Int32
	srv := testServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			frames.Add(1)
		}
	}, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		w.Write([]byte(`{"body":"<p>via http</p>"}`))
	})

	w := newWS(t, srv, nil)
	if !w.Init(context.Background()) {
		t.Fatal("Init returned false")
	}

	files := []upload.File{{Key: "f", Filename: "a.txt", Reader: io.NopCloser(strings.NewReader("a"))}}
	resp, err := w.SendMultipartMutationRequest(context.Background(), protocol.NewRequest(1, "n", "", "cb", nil), files)
	if err != nil {
		t.Fatalf("SendMultipartMutationRequest failed: %v", err)
	}
	if resp.Body != "<p>via http</p>" {
		t.Errorf("Body = %q", resp.Body)
	}
	if frames.Load() != 0 {
		t.Errorf("%d frames reached the channel", frames.Load())
	}
}

func TestWebSocketContextCancelForgetsEntry(t *testing.T) {
	srv := testServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}, nil)

	w := newWS(t, srv, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := w.SendMutationRequest(ctx, protocol.NewRequest(1, "n", "", "cb", nil))
	if err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if w.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", w.Pending())
	}
}

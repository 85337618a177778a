package falktest

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/falk/pkg/dom"
	"github.com/vango-dev/falk/pkg/protocol"
	"github.com/vango-dev/falk/pkg/transport"
)

// Handler answers one mutation request. A nil response means "nothing to
// render" and is sent as a response with skipRendering set.
type Handler func(req *Request) *protocol.Response

// Request is a mutation request as the server received it.
type Request struct {
	*protocol.Request

	// Transport is the transport name the request arrived on.
	Transport string

	// UploadToken is the upload token header of a multipart request.
	UploadToken string

	// Files maps multipart file keys to their uploads.
	Files map[string]File

	Header http.Header
}

// File is an uploaded file.
type File struct {
	Filename    string
	ContentType string
	Content     string
}

// Server is a scripted falk server on one URL: GET serves the page, POST
// answers mutation calls, and an upgrade request opens the persistent
// channel.
type Server struct {
	// URL is the page URL.
	URL string

	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu        sync.Mutex
	page      string
	handler   Handler
	requests  []*Request
	status    int
	websocket bool
	conns     map[*websocket.Conn]bool
}

// Option configures a Server.
type Option func(*Server)

// WithoutWebSocket makes upgrade requests fail, forcing the HTTP fallback.
func WithoutWebSocket() Option {
	return func(s *Server) {
		s.websocket = false
	}
}

// WithStatus answers every POST with status instead of calling the handler.
func WithStatus(status int) Option {
	return func(s *Server) {
		s.status = status
	}
}

// New starts a server serving page. It is closed when tb finishes.
func New(tb testing.TB, page string, handler Handler, opts ...Option) *Server {
	tb.Helper()
	s := &Server{
		page:      page,
		handler:   handler,
		websocket: true,
		conns:     make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/*", s.serveGet)
	r.Post("/*", s.servePost)

	s.srv = httptest.NewServer(r)
	s.URL = s.srv.URL + "/"
	tb.Cleanup(s.Close)
	return s
}

// Client returns an HTTP client for the server.
func (s *Server) Client() *http.Client {
	return s.srv.Client()
}

// Close drops every channel and shuts the server down.
func (s *Server) Close() {
	s.DropConnections()
	s.srv.Close()
}

// SetHandler replaces the mutation handler.
func (s *Server) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// SetPage replaces the page served on GET.
func (s *Server) SetPage(page string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = page
}

// Requests returns the mutation requests received so far.
func (s *Server) Requests() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Request(nil), s.requests...)
}

// DropConnections closes every open channel without a close handshake.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

func (s *Server) serveGet(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.serveWebSocket(w, r)
		return
	}
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, page)
}

func (s *Server) servePost(w http.ResponseWriter, r *http.Request) {
	req, err := decodePost(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	status := s.status
	s.mu.Unlock()
	if status != 0 {
		s.record(req)
		w.WriteHeader(status)
		return
	}

	writeJSON(w, s.answer(req))
}

func decodePost(r *http.Request) (*Request, error) {
	req := &Request{Transport: transport.NameHTTP, Header: r.Header.Clone()}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var env protocol.Request
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			return nil, err
		}
		req.Request = &env
		return req, nil
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, err
	}
	var env protocol.Request
	if err := json.Unmarshal([]byte(r.FormValue(transport.MutationField)), &env); err != nil {
		return nil, err
	}
	req.Request = &env
	req.Transport = transport.NameMultipart
	req.UploadToken = r.Header.Get(transport.UploadTokenHeader)
	if req.UploadToken == "" {
		req.UploadToken = r.FormValue(dom.UploadTokenField)
	}

	req.Files = make(map[string]File)
	for key, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			content, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, err
			}
			req.Files[key] = File{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Content:     string(content),
			}
		}
	}
	return req, nil
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	enabled := s.websocket
	s.mu.Unlock()
	if !enabled {
		http.Error(w, "websocket disabled", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns[conn] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	header := r.Header.Clone()
	var writeMu sync.Mutex
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.DecodeRequestFrame(msg)
		if err != nil {
			continue
		}

		// Frames are answered concurrently so a slow handler does not
		// hold back later requests.
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := s.answer(&Request{Request: env, Transport: transport.NameWebSocket, Header: header})
			data, err := protocol.EncodeResponseFrame(env.ID, resp)
			if err != nil {
				return
			}
			writeMu.Lock()
			defer writeMu.Unlock()
			conn.WriteMessage(websocket.TextMessage, data)
		}()
	}
}

func (s *Server) record(req *Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
}

func (s *Server) answer(req *Request) *protocol.Response {
	s.record(req)

	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()

	var resp *protocol.Response
	if h != nil {
		resp = h(req)
	}
	if resp == nil {
		resp = &protocol.Response{Flags: protocol.Flags{SkipRendering: true}}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, strings.TrimSpace(err.Error()), http.StatusInternalServerError)
	}
}

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/vango-dev/falk/internal/errors"
	"github.com/vango-dev/falk/pkg/dom"
	"github.com/vango-dev/falk/pkg/protocol"
	"github.com/vango-dev/falk/pkg/upload"
)

// Multipart field and header names.
const (
	MutationField     = "falk/mutation"
	UploadTokenHeader = "X-Falk-Upload-Token"
)

// maxResponseSize caps the body read from the server.
const maxResponseSize = 32 << 20

// HTTP is the one-shot transport. It POSTs to the page URL.
type HTTP struct {
	url    string
	client *http.Client
	header http.Header
	logger *slog.Logger
}

// NewHTTP creates an HTTP transport. A nil client uses http.DefaultClient;
// a nil logger uses slog.Default().
func NewHTTP(pageURL string, client *http.Client, logger *slog.Logger) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTP{
		url:    pageURL,
		client: client,
		logger: logger.With("component", "transport", "transport", NameHTTP),
	}
}

// WithHeader sets headers sent with every request, such as cookies.
func (t *HTTP) WithHeader(h http.Header) *HTTP {
	t.header = h.Clone()
	return t
}

// SendMutationRequest posts req as a JSON body.
func (t *HTTP) SendMutationRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.New("E011").WithDetail("request envelope").Wrap(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New("E001").Wrap(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	return t.do(httpReq, req.ID)
}

// SendMultipartMutationRequest posts req and files as multipart/form-data.
// The body is streamed; files are read but not closed.
func (t *HTTP) SendMultipartMutationRequest(ctx context.Context, req *protocol.Request, files []upload.File) (*protocol.Response, error) {
	envelope, err := json.Marshal(req)
	if err != nil {
		return nil, errors.New("E011").WithDetail("request envelope").Wrap(err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeMultipart(mw, envelope, req.UploadToken, files))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, errors.New("E001").Wrap(err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")
	if req.UploadToken != "" {
		httpReq.Header.Set(UploadTokenHeader, req.UploadToken)
	}

	resp, err := t.do(httpReq, req.ID)
	// Unblock the writer if the server answered before reading everything.
	pr.Close()
	return resp, err
}

func writeMultipart(mw *multipart.Writer, envelope []byte, uploadToken string, files []upload.File) error {
	if err := mw.WriteField(MutationField, string(envelope)); err != nil {
		return err
	}
	if uploadToken != "" {
		if err := mw.WriteField(dom.UploadTokenField, uploadToken); err != nil {
			return err
		}
	}

	for i := range files {
		f := &files[i]
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(f.Key), escapeQuotes(f.Filename)))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		part, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		if f.Reader != nil {
			if _, err := io.Copy(part, f.Reader); err != nil {
				return fmt.Errorf("upload %s: %w", f.Key, err)
			}
		}
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func (t *HTTP) do(httpReq *http.Request, id uint64) (*protocol.Response, error) {
	for k, vs := range t.header {
		if httpReq.Header.Get(k) == "" {
			for _, v := range vs {
				httpReq.Header.Add(k, v)
			}
		}
	}
	resp, err := t.client.Do(httpReq)
	if err != nil {
		t.logger.Error("request failed", "request_id", id, "error", err)
		return nil, errors.New("E001").WithDetail("request failed").Wrap(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.New("E001").WithDetail("reading response").Wrap(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		t.logger.Error("request failed", "request_id", id, "status", resp.StatusCode)
		return nil, errors.New("E001").WithDetailf("HTTP error! Status: %d", resp.StatusCode)
	}

	out, err := protocol.DecodeResponse(data)
	if err != nil {
		t.logger.Error("response decode error", "request_id", id, "error", err)
		return nil, err
	}
	return out, nil
}

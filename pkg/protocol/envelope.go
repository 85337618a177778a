package protocol

import (
	"encoding/json"

	"github.com/vango-dev/falk/internal/errors"
)

// RequestTypeMutation is the requestType of every mutation envelope.
const RequestTypeMutation = "falk/mutation"

// EventData is the serializable summary of the event that triggered a call.
type EventData struct {
	Type     string            `json:"type"`
	Data     any               `json:"data,omitempty"`
	FormData map[string]string `json:"formData"`
}

// Request is the envelope of one mutation call.
type Request struct {
	// ID is the request id. It travels in the frame, not the envelope.
	ID uint64 `json:"-"`

	RequestType  string    `json:"requestType"`
	NodeID       string    `json:"nodeId"`
	Token        string    `json:"token"`
	CallbackName string    `json:"callbackName"`
	CallbackArgs any       `json:"callbackArgs"`
	Event        EventData `json:"event"`

	// UploadToken is sent as a header on the multipart path only.
	UploadToken string `json:"-"`
}

// NewRequest returns a mutation request with an empty event summary.
func NewRequest(id uint64, nodeID, token, callback string, args any) *Request {
	return &Request{
		ID:           id,
		RequestType:  RequestTypeMutation,
		NodeID:       nodeID,
		Token:        token,
		CallbackName: callback,
		CallbackArgs: args,
		Event:        EventData{FormData: map[string]string{}},
	}
}

// Flags are the server's rendering directives.
type Flags struct {
	SkipRendering  bool `json:"skipRendering"`
	ForceRendering bool `json:"forceRendering"`
}

// Render reports whether the response body should be patched in.
func (f Flags) Render() bool {
	return !f.SkipRendering || f.ForceRendering
}

// Response is the envelope answering a mutation call.
type Response struct {
	Body      string            `json:"body"`
	Tokens    map[string]string `json:"tokens,omitempty"`
	Flags     Flags             `json:"flags"`
	Callbacks []Callback        `json:"callbacks,omitempty"`
}

// UnmarshalJSON accepts "html" as an alias of "body".
func (r *Response) UnmarshalJSON(data []byte) error {
	type plain Response
	var aux struct {
		plain
		HTML *string `json:"html"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Response(aux.plain)
	if r.Body == "" && aux.HTML != nil {
		r.Body = *aux.HTML
	}
	return nil
}

// DecodeResponse decodes a response envelope, unwrapping the {"json": ...}
// form used by older servers.
func DecodeResponse(data []byte) (*Response, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.New("E011").WithDetail("response is not a JSON object").Wrap(err)
	}
	if inner, ok := probe["json"]; ok && probe["body"] == nil && probe["html"] == nil {
		data = inner
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.New("E011").WithDetail("invalid response envelope").Wrap(err)
	}
	return &resp, nil
}

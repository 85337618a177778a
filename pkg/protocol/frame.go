package protocol

import (
	"encoding/json"

	"github.com/vango-dev/falk/internal/errors"
)

// Frame is one message on the persistent channel.
type Frame struct {
	ID      uint64
	Payload json.RawMessage
}

// EncodeFrame encodes req as a [id, envelope] text frame.
func EncodeFrame(req *Request) ([]byte, error) {
	return json.Marshal([]any{req.ID, req})
}

// DecodeFrame splits a [id, payload] text frame.
func DecodeFrame(data []byte) (Frame, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return Frame{}, errors.New("E011").WithDetail("frame is not a JSON array").Wrap(err)
	}
	if len(parts) != 2 {
		return Frame{}, errors.New("E011").WithDetailf("frame has %d elements, want 2", len(parts))
	}

	var id uint64
	if err := json.Unmarshal(parts[0], &id); err != nil {
		return Frame{}, errors.New("E011").WithDetail("frame id is not a request id").Wrap(err)
	}
	return Frame{ID: id, Payload: parts[1]}, nil
}

// EncodeResponseFrame encodes resp as a [id, envelope] text frame. Servers
// and test doubles use it.
func EncodeResponseFrame(id uint64, resp *Response) ([]byte, error) {
	return json.Marshal([]any{id, resp})
}

// DecodeRequestFrame decodes a [id, envelope] frame sent by a client.
func DecodeRequestFrame(data []byte) (*Request, error) {
	f, err := DecodeFrame(data)
	if err != nil {
		return nil, err
	}
	var req Request
	if err := json.Unmarshal(f.Payload, &req); err != nil {
		return nil, errors.New("E011").WithDetail("invalid request envelope").Wrap(err)
	}
	req.ID = f.ID
	return &req, nil
}

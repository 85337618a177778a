package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/vango-dev/falk/internal/errors"
)

func TestRequestEnvelopeShape(t *testing.T) {
	req := NewRequest(7, "n1", "tok", "save", map[string]any{"id": 1})
	req.UploadToken = "secret"

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["requestType"] != RequestTypeMutation {
		t.Errorf("requestType = %v", got["requestType"])
	}
	if got["nodeId"] != "n1" || got["token"] != "tok" || got["callbackName"] != "save" {
		t.Errorf("envelope = %s", data)
	}
	if _, ok := got["uploadToken"]; ok {
		t.Error("upload token must not travel in the JSON envelope")
	}
	if _, ok := got["ID"]; ok {
		t.Error("request id must not travel in the envelope")
	}
	ev, ok := got["event"].(map[string]any)
	if !ok || ev["type"] != "" {
		t.Errorf("event = %v", got["event"])
	}
}

func TestFlagsRender(t *testing.T) {
	tests := []struct {
		flags Flags
		want  bool
	}{
		{Flags{}, true},
		{Flags{SkipRendering: true}, false},
		{Flags{SkipRendering: true, ForceRendering: true}, true},
		{Flags{ForceRendering: true}, true},
	}
	for _, tt := range tests {
		if got := tt.flags.Render(); got != tt.want {
			t.Errorf("%+v.Render() = %v, want %v", tt.flags, got, tt.want)
		}
	}
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name string
		data string
		body string
	}{
		{name: "body", data: `{"body":"<p>a</p>","tokens":{"n1":"t1"}}`, body: "<p>a</p>"},
		{name: "html alias", data: `{"html":"<p>b</p>"}`, body: "<p>b</p>"},
		{name: "json wrapper", data: `{"json":{"body":"<p>c</p>"}}`, body: "<p>c</p>"},
		{name: "json wrapper with alias", data: `{"json":{"html":"<p>d</p>"}}`, body: "<p>d</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := DecodeResponse([]byte(tt.data))
			if err != nil {
				t.Fatalf("DecodeResponse failed: %v", err)
			}
			if resp.Body != tt.body {
				t.Errorf("Body = %q, want %q", resp.Body, tt.body)
			}
		})
	}
}

func TestDecodeResponseFull(t *testing.T) {
	data := `{
		"body": "<div></div>",
		"tokens": {"a": "ta", "b": "tb"},
		"flags": {"skipRendering": true, "forceRendering": false},
		"callbacks": [["#save", "save", {"id": 1}, "250ms"], ["n2", "refresh"]]
	}`

	resp, err := DecodeResponse([]byte(data))
	if err != nil {
		t.Fatalf("DecodeResponse failed: %v", err)
	}
	if len(resp.Tokens) != 2 || resp.Tokens["b"] != "tb" {
		t.Errorf("Tokens = %v", resp.Tokens)
	}
	if !resp.Flags.SkipRendering || resp.Flags.Render() {
		t.Errorf("Flags = %+v", resp.Flags)
	}
	if len(resp.Callbacks) != 2 {
		t.Fatalf("Callbacks = %v", resp.Callbacks)
	}

	first := resp.Callbacks[0]
	if first.Target != "#save" || first.Name != "save" || first.Delay != "250ms" || !first.IsSelector() {
		t.Errorf("first callback = %+v", first)
	}
	args, ok := first.Args.(map[string]any)
	if !ok || args["id"] != json.Number("1") {
		t.Errorf("first callback args = %#v", first.Args)
	}

	second := resp.Callbacks[1]
	if second.Target != "n2" || second.Args != nil || second.Delay != nil || second.IsSelector() {
		t.Errorf("second callback = %+v", second)
	}
}

func TestDecodeResponseErrors(t *testing.T) {
	for _, data := range []string{`[1,2]`, `not json`, `{"callbacks":[["only-target"]]}`, `{"callbacks":[[1,"x"]]}`} {
		_, err := DecodeResponse([]byte(data))
		if err == nil {
			t.Errorf("DecodeResponse(%s) succeeded", data)
			continue
		}
		if !errors.Is(err, errors.ErrProtocol) {
			t.Errorf("DecodeResponse(%s) error %v is not a protocol error", data, err)
		}
	}
}

func TestCallbackIsSelector(t *testing.T) {
	tests := map[string]bool{
		"#save":              true,
		".item":              true,
		"[data-falk-id=a]":   true,
		"div > p":            true,
		"li:first-child":     true,
		"*":                  true,
		"n1":                 false,
		"a1b2-c3_d4":         false,
		"Counter-1234567890": false,
	}
	for target, want := range tests {
		if got := (Callback{Target: target}).IsSelector(); got != want {
			t.Errorf("IsSelector(%q) = %v, want %v", target, got, want)
		}
	}
}

func TestCallbackMarshalTuple(t *testing.T) {
	data, err := json.Marshal(Callback{Target: "n1", Name: "tick", Args: []int{1}, Delay: 2})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `["n1","tick",[1],2]` {
		t.Errorf("Marshal = %s", data)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	req := NewRequest(5, "n1", "tok", "save", nil)
	data, err := EncodeFrame(req)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), `[5,{"requestType":"falk/mutation"`) {
		t.Errorf("frame = %s", data)
	}

	got, err := DecodeRequestFrame(data)
	if err != nil {
		t.Fatalf("DecodeRequestFrame failed: %v", err)
	}
	if got.ID != 5 || got.NodeID != "n1" || got.CallbackName != "save" {
		t.Errorf("decoded = %+v", got)
	}

	respFrame, err := EncodeResponseFrame(6, &Response{Body: "<p></p>"})
	if err != nil {
		t.Fatal(err)
	}
	f, err := DecodeFrame(respFrame)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := DecodeResponse(f.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if f.ID != 6 || resp.Body != "<p></p>" {
		t.Errorf("frame %d body %q", f.ID, resp.Body)
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	for _, data := range []string{`{}`, `[1]`, `[1,2,3]`, `["x",{}]`, `[-1,{}]`} {
		if _, err := DecodeFrame([]byte(data)); !errors.Is(err, errors.ErrProtocol) {
			t.Errorf("DecodeFrame(%s) = %v, want protocol error", data, err)
		}
	}
}

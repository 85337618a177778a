package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// selectorChars mark a callback target as a CSS selector rather than a
// component id.
const selectorChars = "[#. >:*"

// Callback is a follow-up call scheduled by the server or by configuration.
type Callback struct {
	// Target is a CSS selector or a component id.
	Target string

	Name string
	Args any

	// Delay is a number of seconds or a duration string; nil means none.
	Delay any
}

// IsSelector reports whether Target should be resolved as a CSS selector.
func (c Callback) IsSelector() bool {
	return strings.ContainsAny(c.Target, selectorChars)
}

// String returns a short description for logs.
func (c Callback) String() string {
	return fmt.Sprintf("%s(%s)", c.Name, c.Target)
}

// MarshalJSON encodes the callback as [target, name, args, delay].
func (c Callback) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Target, c.Name, c.Args, c.Delay})
}

// UnmarshalJSON decodes a [target, name, args?, delay?] tuple. Numbers are
// kept as json.Number.
func (c *Callback) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var parts []any
	if err := dec.Decode(&parts); err != nil {
		return fmt.Errorf("protocol: callback must be an array: %w", err)
	}
	if len(parts) < 2 || len(parts) > 4 {
		return fmt.Errorf("protocol: callback has %d elements, want 2 to 4", len(parts))
	}

	target, ok := parts[0].(string)
	if !ok || target == "" {
		return fmt.Errorf("protocol: callback target must be a non-empty string")
	}
	name, ok := parts[1].(string)
	if !ok || name == "" {
		return fmt.Errorf("protocol: callback name must be a non-empty string")
	}

	*c = Callback{Target: target, Name: name}
	if len(parts) > 2 {
		c.Args = parts[2]
	}
	if len(parts) > 3 {
		c.Delay = parts[3]
	}
	return nil
}

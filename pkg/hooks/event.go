package hooks

import (
	"fmt"
	"strconv"

	"golang.org/x/net/html"
)

// Hook is the short name of a lifecycle hook.
type Hook string

const (
	BeforeInit    Hook = "beforeinit"
	InitialRender Hook = "initialrender"
	Render        Hook = "render"
	BeforeRequest Hook = "beforerequest"
	Response      Hook = "response"
	BeforeUnmount Hook = "beforeunmount"
)

// All returns every recognized hook in firing order of a page's life.
func All() []Hook {
	return []Hook{BeforeInit, InitialRender, Render, BeforeRequest, Response, BeforeUnmount}
}

// Valid reports whether h is a recognized hook.
func (h Hook) Valid() bool {
	for _, known := range All() {
		if h == known {
			return true
		}
	}
	return false
}

// EventName returns the bus event name, e.g. "falk:render".
func (h Hook) EventName() string { return "falk:" + string(h) }

// Attr returns the inline handler attribute name, e.g. "onrender".
func (h Hook) Attr() string { return "on" + string(h) }

// Event is passed to inline handlers and bus listeners.
type Event struct {
	Hook Hook

	// Name is the bus event name.
	Name string

	// NodeID is the component id of Node, or "".
	NodeID string

	// Node is the node the hook fired on.
	Node *html.Node

	// Detail carries hook specific values such as "requestId".
	Detail map[string]any

	prevented bool
}

// PreventDefault marks the event as cancelled; Dispatch returns false.
func (e *Event) PreventDefault() { e.prevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool { return e.prevented }

// Accessors

func (e *Event) String(key string) string {
	if v, ok := e.Detail[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func (e *Event) Int(key string) int {
	if v, ok := e.Detail[key]; ok {
		switch val := v.(type) {
		case int:
			return val
		case uint64:
			return int(val)
		case int64:
			return int(val)
		case float64:
			return int(val)
		case string:
			i, _ := strconv.Atoi(val)
			return i
		}
	}
	return 0
}

func (e *Event) Bool(key string) bool {
	if v, ok := e.Detail[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
		b, _ := strconv.ParseBool(fmt.Sprintf("%v", v))
		return b
	}
	return false
}

func (e *Event) Raw(key string) any {
	return e.Detail[key]
}

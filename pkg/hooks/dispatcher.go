package hooks

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/vango-dev/falk/internal/errors"
	"github.com/vango-dev/falk/pkg/dom"
)

// Handler is an inline hook handler.
type Handler func(e *Event) error

// Listener is a bus subscriber.
type Listener func(e *Event)

type inlineKey struct {
	hook   Hook
	nodeID string
}

type subscription struct {
	id    uint64
	match func(n *html.Node) bool
	fn    Listener
}

// Dispatcher runs inline handlers and bus listeners for hooks.
// It is safe for concurrent use; handlers run on the caller's goroutine.
type Dispatcher struct {
	mu     sync.RWMutex
	inline map[inlineKey]Handler
	named  map[string]Handler
	subs   map[Hook][]subscription
	nextID uint64

	onFailure func(hook Hook, err error)
	logger    *slog.Logger
}

// New creates a dispatcher. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		inline: make(map[inlineKey]Handler),
		named:  make(map[string]Handler),
		subs:   make(map[Hook][]subscription),
		logger: logger.With("component", "hooks"),
	}
}

// OnFailure sets a function called for every recovered inline failure.
func (d *Dispatcher) OnFailure(fn func(hook Hook, err error)) {
	d.mu.Lock()
	d.onFailure = fn
	d.mu.Unlock()
}

// Handle binds fn to hook for the component with id nodeID.
// The returned func removes the binding.
func (d *Dispatcher) Handle(hook Hook, nodeID string, fn Handler) func() {
	key := inlineKey{hook: hook, nodeID: nodeID}
	d.mu.Lock()
	d.inline[key] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.inline, key)
		d.mu.Unlock()
	}
}

// Register makes fn callable from on<hook> attributes under name.
func (d *Dispatcher) Register(name string, fn Handler) {
	d.mu.Lock()
	d.named[name] = fn
	d.mu.Unlock()
}

// On subscribes fn to hook for every node.
func (d *Dispatcher) On(hook Hook, fn Listener) func() {
	return d.OnMatch(hook, nil, fn)
}

// OnSelector subscribes fn to hook for nodes matching a CSS selector.
func (d *Dispatcher) OnSelector(hook Hook, selector string, fn Listener) (func(), error) {
	sel, err := dom.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("hooks: invalid selector %q: %w", selector, err)
	}
	return d.OnMatch(hook, func(n *html.Node) bool {
		return dom.IsElement(n) && sel.Match(n)
	}, fn), nil
}

// OnMatch subscribes fn to hook for nodes accepted by match. A nil match
// accepts every node.
func (d *Dispatcher) OnMatch(hook Hook, match func(n *html.Node) bool, fn Listener) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subs[hook] = append(d.subs[hook], subscription{id: id, match: match, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		subs := d.subs[hook]
		for i, s := range subs {
			if s.id == id {
				d.subs[hook] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Dispatch fires hook on node. Inline handlers run first, then bus
// listeners in registration order. It returns false if any handler called
// PreventDefault.
func (d *Dispatcher) Dispatch(hook Hook, node *html.Node, detail map[string]any) bool {
	nodeID := dom.NodeID(node)
	if detail == nil {
		detail = make(map[string]any)
	}
	e := &Event{
		Hook:   hook,
		Name:   hook.EventName(),
		NodeID: nodeID,
		Node:   node,
		Detail: detail,
	}

	d.mu.RLock()
	var handlers []Handler
	if fn, ok := d.inline[inlineKey{hook: hook, nodeID: nodeID}]; ok && nodeID != "" {
		handlers = append(handlers, fn)
	}
	var missing string
	if name, ok := dom.GetAttr(node, hook.Attr()); ok {
		name = handlerName(name)
		if fn, ok := d.named[name]; ok {
			handlers = append(handlers, fn)
		} else if name != "" {
			missing = name
		}
	}
	subs := append([]subscription(nil), d.subs[hook]...)
	onFailure := d.onFailure
	d.mu.RUnlock()

	if missing != "" {
		d.logger.Warn("inline handler not registered", "hook", hook, "node_id", nodeID, "handler", missing)
	}

	for _, fn := range handlers {
		if err := d.runInline(fn, e); err != nil {
			d.logger.Error("inline handler failed", "hook", hook, "node_id", nodeID, "error", err)
			if onFailure != nil {
				onFailure(hook, err)
			}
		}
	}

	for _, s := range subs {
		if s.match != nil && !s.match(node) {
			continue
		}
		d.runListener(s.fn, e)
	}

	return !e.prevented
}

// runInline calls fn, converting panics and errors into an E020 error.
func (d *Dispatcher) runInline(fn Handler, e *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("E020").WithDetailf("panic: %v", r)
			d.logger.Debug("inline handler panic", "stack", string(debug.Stack()))
		}
	}()
	if herr := fn(e); herr != nil {
		return errors.New("E020").Wrap(herr)
	}
	return nil
}

func (d *Dispatcher) runListener(fn Listener, e *Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("listener panic",
				"hook", e.Hook,
				"node_id", e.NodeID,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn(e)
}

// handlerName accepts "fn", "fn()" and "fn();" as the same reference.
func handlerName(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimSuffix(v, ";")
	v = strings.TrimSuffix(strings.TrimSpace(v), "()")
	return strings.TrimSpace(v)
}

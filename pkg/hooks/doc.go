// Package hooks dispatches falk lifecycle hooks.
//
// A hook fires against one node. Dispatch runs two kinds of handlers:
//
//  1. Inline handlers bound to the node: a Handler registered for the
//     (hook, component id) pair, and the named Handler referenced by the
//     node's on<hook> attribute (for example onrender="initChart").
//     Inline failures are recovered and logged; they never abort the caller.
//  2. Bus listeners subscribed with On or OnSelector. They receive an Event
//     named "falk:<hook>" in registration order and may call PreventDefault.
//
// Usage:
//
//	d := hooks.New(logger)
//	d.Register("initChart", func(e *hooks.Event) error { ... })
//	stop := d.On(hooks.Render, func(e *hooks.Event) { ... })
//	defer stop()
package hooks

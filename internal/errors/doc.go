// Package errors provides structured, coded errors for the falk runtime.
//
// Every failure the runtime can surface has a code (e.g. "E001") that maps to
// a category, a short message and a longer explanation:
//
//   - transport: non-success HTTP status, channel unavailable or dropped
//   - protocol: frames the runtime cannot correlate or decode
//   - hook: inline hook handlers that failed (logged, never propagated)
//   - call: malformed delays and missing targets, raised by RunCallback
//   - config: invalid falk.json
//
// # Usage
//
//	err := errors.New("E031").
//	    WithDetail(`no node matches "#save"`).
//	    WithSuggestion("Check the selector against the rendered markup")
//
//	if errors.Is(err, errors.ErrTargetNotFound) { ... }
//
// Category sentinels (ErrTransport, ErrProtocol, ...) match any error of that
// category; code sentinels (ErrDuration, ErrTargetNotFound) match one code.
package errors

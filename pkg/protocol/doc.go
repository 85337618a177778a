// Package protocol defines the falk mutation wire format.
//
// A mutation call is one JSON request envelope addressed to a single
// component, answered by one JSON response envelope carrying fresh markup,
// fresh tokens, rendering flags and follow-up callbacks.
//
// # Transports
//
// Over HTTP the envelope is the POST body (or the "falk/mutation" field of a
// multipart form when files are attached). Over the persistent WebSocket
// channel every message is a JSON text frame holding a two element array:
//
//	[requestId, envelope]
//
// Responses reuse the id of the request they answer, so frames may arrive
// in any order. Older servers wrap the response as {"json": envelope}; the
// decoder unwraps it.
//
// # Callbacks
//
// A chained callback is encoded as a tuple:
//
//	[target, callbackName, callbackArgs, delay]
//
// target is a CSS selector or a component id; delay is a number of seconds
// or a duration string such as "250ms".
package protocol

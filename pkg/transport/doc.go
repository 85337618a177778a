// Package transport sends falk mutation requests to the server.
//
// Two implementations share the Transport contract:
//
//   - HTTP posts one JSON envelope per call to the page URL. It is the
//     fallback when the persistent channel is disabled or unavailable, and
//     the only path for calls that carry files.
//   - WebSocket multiplexes any number of concurrent calls over a single
//     connection, correlating responses to requests by request id.
//
// Neither implementation retries. A failed call returns an error wrapping
// errors.ErrTransport and is abandoned.
package transport

// Package transport serves the note API over HTTP.
//
// The transport layer bridges external clients and the note, token, and
// report services. It deserializes incoming requests (JSON or form
// encoded), dispatches them to the services, and serializes responses
// back to the client as JSON.
//
// # Routing
//
// HTTP serving uses net/http with Go 1.22+ ServeMux routing patterns.
// Notes are addressed by reference: an alias, the word "last", or a
// 1-indexed position in the newest-first listing.
//
// # Middleware
//
// The middleware chain wraps the mux with cross-cutting concerns: panic
// recovery, request ID assignment (X-Request-ID), structured logging via
// log/slog, Prometheus request metrics, and authentication. Middleware
// composes with Chain; the first middleware is the outermost wrapper.
//
// Authentication itself lives in pkg/auth. The transport handlers only
// read the resolved identity from the request context.
package transport

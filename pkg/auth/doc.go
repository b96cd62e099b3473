// Package auth provides pluggable authentication for the jot service.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (principal resolved), No
// (credentials invalid, with a scheme-appropriate challenge), or Abstain
// (can't handle the credential type, defer to the next stage). The token
// authenticator abstains on non-token schemes; the Basic authenticator is
// the terminal stage and rejects anything that is not a well-formed Basic
// header. A caller with no credentials therefore receives the Basic
// challenge, matching the declared chain ordering.
//
// Auth is implemented as HTTP middleware, keeping it decoupled from the
// handlers. The middleware is idempotent: when a principal is already
// attached to the request context, later applications pass through. Paths
// whose first segment is in the exempt set bypass authentication entirely.
package auth

// Package tokenauth provides the opaque-token authenticator. It
// accepts the "token" and "bearer" schemes and abstains on anything
// else, deferring to later stages of the chain; this ordering is what
// gives a credential-less caller the Basic challenge instead of the
// token one.
package tokenauth

import (
	"context"
	"errors"
	"net/http"

	"github.com/jotsrv/jot/pkg/api"
	"github.com/jotsrv/jot/pkg/auth"
	"github.com/jotsrv/jot/pkg/storage"
)

// Messages carried in the Token challenge header, kept bit-compatible
// with existing clients.
const (
	msgInvalidHeader = "Invalid token header."
	msgInvalidChars  = "Invalid token header. Token string should not contain invalid characters."
	msgInvalidToken  = "Invalid token."
	msgInactive      = "User inactive or deleted."
)

// Resolver maps an opaque key to its token and owning user.
// Implemented by tokens.Service.
type Resolver interface {
	// Resolve returns storage.ErrNotFound for unknown or rotated-out
	// keys.
	Resolve(ctx context.Context, key string) (*api.Token, *api.User, error)
}

// Authenticator validates opaque bearer tokens against a resolver.
type Authenticator struct {
	resolver Resolver
}

// New creates a token authenticator.
func New(resolver Resolver) *Authenticator {
	return &Authenticator{resolver: resolver}
}

// Authenticate resolves a token credential.
//
// Decision outcomes:
//   - Abstain: no Authorization header, or a scheme other than
//     token/bearer
//   - No: token credential present but malformed, unknown, or owned by
//     an inactive account
//   - Yes: live key on an active account
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.Result {
	scheme, payload, err := auth.ParseAuthorization(r.Header.Get("Authorization"))

	if scheme != "token" && scheme != "bearer" {
		return auth.Result{Decision: auth.Abstain}
	}
	if err != nil {
		return a.reject(auth.ErrMalformedCredential, msgInvalidHeader)
	}

	key, err := auth.DecodeToken(payload)
	if err != nil {
		return a.reject(auth.ErrMalformedCredential, msgInvalidChars)
	}

	_, u, err := a.resolver.Resolve(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return a.reject(auth.ErrInvalidToken, msgInvalidToken)
	}
	if err != nil {
		return auth.Result{Decision: auth.No, Err: err, Scheme: "token"}
	}

	if !u.Active {
		return a.reject(auth.ErrAccountInactive, msgInactive)
	}

	return auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{UserID: u.ID, Username: u.Username, Scheme: "token"},
		Scheme:   "token",
	}
}

func (a *Authenticator) reject(err error, message string) auth.Result {
	return auth.Result{
		Decision:  auth.No,
		Err:       err,
		Challenge: auth.TokenChallenge(message),
		Scheme:    "token",
	}
}

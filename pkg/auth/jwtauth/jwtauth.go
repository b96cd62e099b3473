// Package jwtauth provides an optional JWT bearer authenticator for
// deployments that front the service with an identity provider issuing
// HS256-signed tokens. It only claims credentials that are structurally
// JWTs; opaque bearer keys fall through to the token stage.
package jwtauth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/jotsrv/jot/pkg/api"
	"github.com/jotsrv/jot/pkg/auth"
	"github.com/jotsrv/jot/pkg/storage"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Secret is the HS256 signing secret shared with the token issuer.
	Secret []byte

	// Issuer is the expected iss claim. If empty, the issuer is not
	// validated.
	Issuer string
}

// UserLookup resolves the subject claim to a local account. The account
// must exist and be active; a signed token alone is not enough.
type UserLookup interface {
	FindByUsername(ctx context.Context, username string) (*api.User, error)
}

// Authenticator validates HS256 JWT bearer tokens.
type Authenticator struct {
	cfg Config
	dir UserLookup
}

// New creates a JWT authenticator.
func New(dir UserLookup, cfg Config) *Authenticator {
	return &Authenticator{cfg: cfg, dir: dir}
}

// Authenticate extracts a bearer token, validates its signature and
// claims, and resolves the subject to a local user.
//
// Decision outcomes:
//   - Abstain: no Authorization header, a non-bearer scheme, or a
//     payload that is not structurally a JWT
//   - No: JWT present but invalid (bad signature, expired, wrong
//     issuer, unknown or inactive subject)
//   - Yes: valid JWT for an active account
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.Result {
	scheme, payload, err := auth.ParseAuthorization(r.Header.Get("Authorization"))
	if scheme != "bearer" || err != nil {
		return auth.Result{Decision: auth.Abstain}
	}

	// Opaque keys contain no dots; defer them to the token stage.
	if strings.Count(payload, ".") != 2 {
		return auth.Result{Decision: auth.Abstain}
	}

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}),
		jwtlib.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.cfg.Issuer))
	}

	token, err := jwtlib.Parse(payload, func(*jwtlib.Token) (any, error) {
		return a.cfg.Secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return a.reject(auth.ErrInvalidToken)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return a.reject(auth.ErrInvalidToken)
	}

	u, err := a.dir.FindByUsername(ctx, subject)
	if errors.Is(err, storage.ErrNotFound) {
		return a.reject(auth.ErrInvalidToken)
	}
	if err != nil {
		return auth.Result{Decision: auth.No, Err: err, Scheme: "jwt"}
	}
	if !u.Active {
		return a.reject(auth.ErrAccountInactive)
	}

	return auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{UserID: u.ID, Username: u.Username, Scheme: "jwt"},
		Scheme:   "jwt",
	}
}

func (a *Authenticator) reject(err error) auth.Result {
	return auth.Result{
		Decision:  auth.No,
		Err:       err,
		Challenge: auth.TokenChallenge("Invalid token."),
		Scheme:    "jwt",
	}
}

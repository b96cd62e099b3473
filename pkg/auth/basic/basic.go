// Package basic provides the HTTP Basic authenticator. It is the
// terminal stage of the chain: a request whose header is missing or
// carries another scheme is rejected with the Basic challenge, since
// nothing after this stage could authenticate it.
//
// Unknown usernames are auto-provisioned when the policy allows it:
// the first Basic contact with a fresh username creates the account and
// authenticates the request as that brand-new user. This is a
// deliberate low-friction signup design, gated behind a config flag for
// deployments that want strict credentials.
package basic

import (
	"context"
	"errors"
	"net/http"

	"github.com/jotsrv/jot/pkg/api"
	"github.com/jotsrv/jot/pkg/auth"
	"github.com/jotsrv/jot/pkg/storage"
)

// Messages carried in the Basic challenge realm, kept bit-compatible
// with existing clients.
const (
	msgNotAuthenticated = "Not authenticated."
	msgInvalidHeader    = "Invalid basic header."
	msgBadCredentials   = "Invalid username/password."
	msgInactive         = "User inactive or deleted."
)

// Directory resolves, verifies, and provisions users for the Basic
// scheme. Implemented by users.Directory.
type Directory interface {
	// FindByUsername returns the user or storage.ErrNotFound.
	FindByUsername(ctx context.Context, username string) (*api.User, error)

	// VerifyPassword checks plaintext against the stored hash.
	VerifyPassword(u *api.User, plaintext string) bool

	// Provision atomically creates a new active user; a concurrent
	// create of the same name returns storage.ErrConflict.
	Provision(ctx context.Context, username, plaintext string) (*api.User, error)
}

// Registrar issues registration challenges for accounts that have not
// completed theirs. Implemented by registration.Service.
type Registrar interface {
	// Challenge returns the user's pending challenge, creating one when
	// needed; storage.ErrNotFound means no question pool exists.
	Challenge(ctx context.Context, userID string) (*api.RegisterQuestion, error)
}

// Config holds the Basic authenticator policy knobs.
type Config struct {
	// Realm is the challenge realm text for credential-less requests.
	// Default: "Not authenticated.".
	Realm string

	// AutoProvision creates unknown usernames on first contact. When
	// false, unknown usernames fail exactly like wrong passwords so
	// account existence does not leak.
	AutoProvision bool

	// Registrar, when set, redirects unregistered accounts to their
	// challenge question instead of authenticating them. Nil disables
	// the registration gate.
	Registrar Registrar
}

// Authenticator validates Basic credentials against a user directory.
type Authenticator struct {
	dir Directory
	cfg Config
}

// New creates a Basic authenticator.
func New(dir Directory, cfg Config) *Authenticator {
	if cfg.Realm == "" {
		cfg.Realm = msgNotAuthenticated
	}
	return &Authenticator{dir: dir, cfg: cfg}
}

// Authenticate resolves Basic credentials. It never abstains: as the
// last stage of the chain, something must authenticate the request.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.Result {
	scheme, payload, err := auth.ParseAuthorization(r.Header.Get("Authorization"))

	if scheme != "basic" {
		return a.reject(auth.ErrNotAuthenticated, a.cfg.Realm)
	}
	if err != nil {
		return a.reject(auth.ErrMalformedCredential, msgInvalidHeader)
	}

	username, plaintext, err := auth.DecodeBasic(payload)
	if err != nil || username == "" {
		return a.reject(auth.ErrMalformedCredential, msgInvalidHeader)
	}

	u, err := a.dir.FindByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return a.provision(ctx, username, plaintext)
	}
	if err != nil {
		return auth.Result{Decision: auth.No, Err: err, Scheme: "basic"}
	}

	// Inactive accounts fail regardless of password correctness, with
	// the same status as bad credentials so account state does not leak
	// beyond the message.
	if !u.Active {
		return a.reject(auth.ErrAccountInactive, msgInactive)
	}

	if !a.dir.VerifyPassword(u, plaintext) {
		return a.reject(auth.ErrInvalidCredentials, msgBadCredentials)
	}

	return a.gate(ctx, u, auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{UserID: u.ID, Username: u.Username, Scheme: "basic"},
		Scheme:   "basic",
	})
}

// provision handles first contact with an unknown username.
func (a *Authenticator) provision(ctx context.Context, username, plaintext string) auth.Result {
	if !a.cfg.AutoProvision {
		return a.reject(auth.ErrInvalidCredentials, msgBadCredentials)
	}

	u, err := a.dir.Provision(ctx, username, plaintext)
	if errors.Is(err, storage.ErrConflict) {
		// Another request created the name concurrently. Expected race;
		// surfaced as a conflict for the client to retry with the same
		// credentials.
		return auth.Result{Decision: auth.No, Err: auth.ErrDuplicateUsername, Scheme: "basic"}
	}
	if err != nil {
		return auth.Result{Decision: auth.No, Err: err, Scheme: "basic"}
	}

	return a.gate(ctx, u, auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{UserID: u.ID, Username: u.Username, Scheme: "basic", Provisioned: true},
		Scheme:   "basic",
	})
}

// gate turns a successful result into a registration redirect when the
// account has not completed its challenge. An empty question pool waves
// the user through rather than locking every account out.
func (a *Authenticator) gate(ctx context.Context, u *api.User, ok auth.Result) auth.Result {
	if a.cfg.Registrar == nil || u.Registered {
		return ok
	}

	rq, err := a.cfg.Registrar.Challenge(ctx, u.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return ok
	}
	if err != nil {
		return auth.Result{Decision: auth.No, Err: err, Scheme: "basic"}
	}

	return auth.Result{
		Decision: auth.No,
		Err:      auth.ErrRegistrationRequired,
		Redirect: "/question/" + rq.UUID,
		Scheme:   "basic",
	}
}

func (a *Authenticator) reject(err error, realm string) auth.Result {
	return auth.Result{
		Decision:  auth.No,
		Err:       err,
		Challenge: auth.BasicChallenge(realm),
		Scheme:    "basic",
	}
}

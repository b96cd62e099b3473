package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jotsrv/jot/pkg/debug"
)

// Decision represents the three possible outcomes of authentication.
type Decision int

const (
	// Yes means credentials are valid. The chain stops and the identity
	// is used.
	Yes Decision = iota

	// No means credentials are present but invalid, or the terminal
	// stage could not authenticate the request. The chain stops and the
	// request is rejected with the result's challenge.
	No

	// Abstain means this authenticator cannot handle the credential
	// type. The chain continues to the next authenticator.
	Abstain
)

func (d Decision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	case Abstain:
		return "abstain"
	default:
		return "unknown"
	}
}

// Challenge names the header a rejected request carries alongside its
// 401 response. Basic challenges use the standard WWW-Authenticate
// header; token challenges use the non-standard "Token" header, kept for
// compatibility with existing clients.
type Challenge struct {
	Header string
	Value  string
}

// BasicChallenge builds a WWW-Authenticate Basic challenge with the
// given realm text.
func BasicChallenge(realm string) Challenge {
	return Challenge{Header: "WWW-Authenticate", Value: fmt.Sprintf("Basic realm=%q", realm)}
}

// TokenChallenge builds a token-scheme challenge carrying the message.
func TokenChallenge(message string) Challenge {
	return Challenge{Header: "Token", Value: message}
}

// Result carries the outcome of an authentication attempt.
type Result struct {
	Decision  Decision
	Identity  *Identity // populated only when Decision == Yes
	Err       error     // populated only when Decision == No
	Challenge Challenge // sent with the 401 when Decision == No
	Redirect  string    // when non-empty, the rejection is a 303 to this location
	Scheme    string    // credential scheme that produced the outcome
}

// Identity represents an authenticated caller.
type Identity struct {
	// UserID is the account's unique identifier (required, non-empty).
	UserID string

	// Username is the account's login name.
	Username string

	// Scheme is the credential scheme that resolved the identity
	// ("basic", "token", "jwt").
	Scheme string

	// Provisioned is true when the account was created by this very
	// request (auto-provisioning on first Basic contact).
	Provisioned bool
}

// Authenticator examines request credentials and returns a three-outcome
// vote.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

// Sentinel errors forming the authentication failure taxonomy. All map
// to 401 except ErrDuplicateUsername, which is an expected provisioning
// race and maps to 409.
var (
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrMalformedCredential = errors.New("malformed credential")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrAccountInactive     = errors.New("account inactive or deleted")
	ErrInvalidToken        = errors.New("invalid token")
	ErrDuplicateUsername   = errors.New("username already exists")

	// ErrRegistrationRequired means the credentials were valid but the
	// account has a pending registration challenge to answer first.
	ErrRegistrationRequired = errors.New("registration required")
)

// IsAuthError reports whether err belongs to the authentication failure
// taxonomy. Anything else is an unexpected server-side failure and must
// not be masked as a 401.
func IsAuthError(err error) bool {
	for _, known := range []error{
		ErrNotAuthenticated, ErrMalformedCredential, ErrInvalidCredentials,
		ErrAccountInactive, ErrInvalidToken,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

// Chain evaluates authenticators in order using three-outcome voting.
// Ordering matters: it determines which challenge a credential-less
// caller receives, so deployments chain the token stage before the
// terminal Basic stage.
type Chain struct {
	// Authenticators are evaluated left to right.
	Authenticators []Authenticator

	// DefaultChallenge is sent when every authenticator abstains.
	DefaultChallenge Challenge
}

// Authenticate runs the chain. Stops on the first Yes or No. If all
// abstain the request is rejected with the default challenge.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, r)
		debug.Trace("auth", "chain stage evaluated",
			"scheme", result.Scheme,
			"decision", result.Decision.String(),
		)
		if result.Decision != Abstain {
			return result
		}
	}

	return Result{
		Decision:  No,
		Err:       ErrNotAuthenticated,
		Challenge: c.DefaultChallenge,
	}
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeAuthenticator returns a fixed result and records whether it ran.
type fakeAuthenticator struct {
	result Result
	called bool
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, _ *http.Request) Result {
	f.called = true
	return f.result
}

func abstain() *fakeAuthenticator {
	return &fakeAuthenticator{result: Result{Decision: Abstain}}
}

func yes(userID string) *fakeAuthenticator {
	return &fakeAuthenticator{result: Result{
		Decision: Yes,
		Identity: &Identity{UserID: userID, Scheme: "fake"},
		Scheme:   "fake",
	}}
}

func no(err error) *fakeAuthenticator {
	return &fakeAuthenticator{result: Result{
		Decision:  No,
		Err:       err,
		Challenge: TokenChallenge("nope"),
		Scheme:    "fake",
	}}
}

func testRequest() *http.Request {
	return httptest.NewRequest("GET", "/notes", nil)
}

func TestChainStopsOnYes(t *testing.T) {
	first := yes("u1")
	second := no(ErrInvalidToken)

	chain := &Chain{Authenticators: []Authenticator{first, second}}
	result := chain.Authenticate(context.Background(), testRequest())

	if result.Decision != Yes {
		t.Fatalf("Decision = %v, want Yes", result.Decision)
	}
	if result.Identity.UserID != "u1" {
		t.Errorf("UserID = %q", result.Identity.UserID)
	}
	if second.called {
		t.Error("chain should stop after a Yes")
	}
}

func TestChainStopsOnNo(t *testing.T) {
	first := no(ErrInvalidToken)
	second := yes("u1")

	chain := &Chain{Authenticators: []Authenticator{first, second}}
	result := chain.Authenticate(context.Background(), testRequest())

	if result.Decision != No {
		t.Fatalf("Decision = %v, want No", result.Decision)
	}
	if !errors.Is(result.Err, ErrInvalidToken) {
		t.Errorf("Err = %v", result.Err)
	}
	if second.called {
		t.Error("chain should stop after a No")
	}
}

func TestChainSkipsAbstain(t *testing.T) {
	first := abstain()
	second := yes("u2")

	chain := &Chain{Authenticators: []Authenticator{first, second}}
	result := chain.Authenticate(context.Background(), testRequest())

	if result.Decision != Yes {
		t.Fatalf("Decision = %v, want Yes", result.Decision)
	}
	if !first.called || !second.called {
		t.Error("both authenticators should run")
	}
}

func TestChainAllAbstain(t *testing.T) {
	challenge := BasicChallenge("Not authenticated.")
	chain := &Chain{
		Authenticators:   []Authenticator{abstain(), abstain()},
		DefaultChallenge: challenge,
	}

	result := chain.Authenticate(context.Background(), testRequest())

	if result.Decision != No {
		t.Fatalf("Decision = %v, want No", result.Decision)
	}
	if !errors.Is(result.Err, ErrNotAuthenticated) {
		t.Errorf("Err = %v, want ErrNotAuthenticated", result.Err)
	}
	if result.Challenge != challenge {
		t.Errorf("Challenge = %+v, want default", result.Challenge)
	}
}

func TestBasicChallengeFormat(t *testing.T) {
	c := BasicChallenge("Not authenticated.")
	if c.Header != "WWW-Authenticate" {
		t.Errorf("Header = %q", c.Header)
	}
	if c.Value != `Basic realm="Not authenticated."` {
		t.Errorf("Value = %q", c.Value)
	}
}

func TestTokenChallengeFormat(t *testing.T) {
	c := TokenChallenge("Invalid token.")
	if c.Header != "Token" {
		t.Errorf("Header = %q", c.Header)
	}
	if c.Value != "Invalid token." {
		t.Errorf("Value = %q", c.Value)
	}
}

func TestIsAuthError(t *testing.T) {
	for _, err := range []error{
		ErrNotAuthenticated, ErrMalformedCredential, ErrInvalidCredentials,
		ErrAccountInactive, ErrInvalidToken,
	} {
		if !IsAuthError(err) {
			t.Errorf("IsAuthError(%v) = false", err)
		}
	}

	if IsAuthError(errors.New("connection refused")) {
		t.Error("backend errors are not auth errors")
	}
	if IsAuthError(ErrDuplicateUsername) {
		t.Error("duplicate username is a conflict, not an auth failure")
	}
}

func TestIdentityContextRoundTrip(t *testing.T) {
	id := &Identity{UserID: "u1", Username: "alice", Scheme: "basic"}
	ctx := SetIdentity(context.Background(), id)

	got := IdentityFromContext(ctx)
	if got != id {
		t.Errorf("IdentityFromContext = %+v, want %+v", got, id)
	}

	if IdentityFromContext(context.Background()) != nil {
		t.Error("empty context should have no identity")
	}
}

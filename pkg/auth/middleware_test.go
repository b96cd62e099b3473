package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jotsrv/jot/pkg/api"
)

func runMiddleware(t *testing.T, chain *Chain, policy *ExemptPolicy, path string) (*httptest.ResponseRecorder, *Identity) {
	t.Helper()

	var seen *Identity
	handler := Middleware(chain, policy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec, seen
}

func TestMiddlewareAttachesIdentity(t *testing.T) {
	chain := &Chain{Authenticators: []Authenticator{yes("u1")}}

	rec, seen := runMiddleware(t, chain, nil, "/notes")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if seen == nil || seen.UserID != "u1" {
		t.Errorf("identity = %+v", seen)
	}
}

func TestMiddlewareRejectsWithChallenge(t *testing.T) {
	chain := &Chain{Authenticators: []Authenticator{no(ErrInvalidToken)}}

	rec, seen := runMiddleware(t, chain, nil, "/notes")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if seen != nil {
		t.Error("handler must not run on rejection")
	}
	if got := rec.Header().Get("Token"); got != "nope" {
		t.Errorf("Token header = %q", got)
	}

	var body api.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error.Type != api.ErrorTypeUnauthorized {
		t.Errorf("error type = %q", body.Error.Type)
	}
}

func TestMiddlewareExemptPathSkipsChain(t *testing.T) {
	authn := no(ErrInvalidToken)
	chain := &Chain{Authenticators: []Authenticator{authn}}
	policy := NewExemptPolicy([]string{"report"})

	rec, seen := runMiddleware(t, chain, policy, "/report")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if authn.called {
		t.Error("chain must not run on exempt paths")
	}
	if seen != nil {
		t.Error("exempt paths carry no identity")
	}
}

func TestMiddlewareRedirectsToRegistration(t *testing.T) {
	chain := &Chain{Authenticators: []Authenticator{
		&fakeAuthenticator{result: Result{
			Decision: No,
			Err:      ErrRegistrationRequired,
			Redirect: "/question/ch-123",
			Scheme:   "basic",
		}},
	}}

	rec, seen := runMiddleware(t, chain, nil, "/notes")

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/question/ch-123" {
		t.Errorf("Location = %q", got)
	}
	if seen != nil {
		t.Error("handler must not run while registration is pending")
	}
}

func TestMiddlewareDuplicateUsernameConflict(t *testing.T) {
	chain := &Chain{Authenticators: []Authenticator{
		&fakeAuthenticator{result: Result{Decision: No, Err: ErrDuplicateUsername, Scheme: "basic"}},
	}}

	rec, _ := runMiddleware(t, chain, nil, "/notes")

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestMiddlewareBackendErrorIs500(t *testing.T) {
	chain := &Chain{Authenticators: []Authenticator{
		no(errors.New("connection refused")),
	}}

	rec, _ := runMiddleware(t, chain, nil, "/notes")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500; backend failures must not masquerade as 401", rec.Code)
	}
}

func TestMiddlewareEmptyUserIDIs500(t *testing.T) {
	chain := &Chain{Authenticators: []Authenticator{
		&fakeAuthenticator{result: Result{Decision: Yes, Identity: &Identity{}, Scheme: "fake"}},
	}}

	rec, seen := runMiddleware(t, chain, nil, "/notes")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if seen != nil {
		t.Error("handler must not run on an unusable identity")
	}
}

func TestMiddlewareResolvesAtMostOnce(t *testing.T) {
	authn := yes("u1")
	chain := &Chain{Authenticators: []Authenticator{authn}}

	inner := Middleware(chain, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// A request that already carries an identity skips the chain.
	req := httptest.NewRequest("GET", "/notes", nil)
	req = req.WithContext(SetIdentity(context.Background(), &Identity{UserID: "pre"}))
	inner.ServeHTTP(httptest.NewRecorder(), req)

	if authn.called {
		t.Error("chain must not run when an identity is already attached")
	}
}

package tokenauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jotsrv/jot/pkg/api"
	"github.com/jotsrv/jot/pkg/auth"
	"github.com/jotsrv/jot/pkg/storage"
)

// fakeResolver maps keys to users.
type fakeResolver struct {
	keys       map[string]*api.User
	resolveErr error
}

func (f *fakeResolver) Resolve(_ context.Context, key string) (*api.Token, *api.User, error) {
	if f.resolveErr != nil {
		return nil, nil, f.resolveErr
	}
	u, ok := f.keys[key]
	if !ok {
		return nil, nil, storage.ErrNotFound
	}
	return &api.Token{Key: key, UserID: u.ID}, u, nil
}

func request(authz string) *http.Request {
	r := httptest.NewRequest("GET", "/notes", nil)
	if authz != "" {
		r.Header.Set("Authorization", authz)
	}
	return r
}

func TestValidToken(t *testing.T) {
	resolver := &fakeResolver{keys: map[string]*api.User{
		"goodkey": {ID: "u1", Username: "alice", Active: true},
	}}
	a := New(resolver)

	for _, authz := range []string{"Token goodkey", "Bearer goodkey", "token goodkey"} {
		result := a.Authenticate(context.Background(), request(authz))
		if result.Decision != auth.Yes {
			t.Errorf("%q: Decision = %v, want Yes (err: %v)", authz, result.Decision, result.Err)
			continue
		}
		if result.Identity.UserID != "u1" || result.Identity.Scheme != "token" {
			t.Errorf("%q: identity = %+v", authz, result.Identity)
		}
	}
}

func TestAbstainsOnOtherSchemes(t *testing.T) {
	a := New(&fakeResolver{})

	for _, authz := range []string{"", "Basic dXNlcjpwdw==", "Digest abc"} {
		result := a.Authenticate(context.Background(), request(authz))
		if result.Decision != auth.Abstain {
			t.Errorf("%q: Decision = %v, want Abstain", authz, result.Decision)
		}
	}
}

func TestMalformedTokenHeader(t *testing.T) {
	a := New(&fakeResolver{})

	tests := []struct {
		name    string
		authz   string
		wantMsg string
	}{
		{"no payload", "Token", "Invalid token header."},
		{"extra parts", "Token abc def", "Invalid token header."},
		{"invalid bytes", "Token ab\xffcd", "Invalid token header. Token string should not contain invalid characters."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := a.Authenticate(context.Background(), request(tt.authz))
			if result.Decision != auth.No {
				t.Fatalf("Decision = %v, want No", result.Decision)
			}
			if !errors.Is(result.Err, auth.ErrMalformedCredential) {
				t.Errorf("Err = %v", result.Err)
			}
			if result.Challenge.Header != "Token" || result.Challenge.Value != tt.wantMsg {
				t.Errorf("Challenge = %+v, want Token %q", result.Challenge, tt.wantMsg)
			}
		})
	}
}

func TestUnknownKey(t *testing.T) {
	a := New(&fakeResolver{keys: map[string]*api.User{}})

	result := a.Authenticate(context.Background(), request("Token nosuchkey"))

	if result.Decision != auth.No {
		t.Fatalf("Decision = %v, want No", result.Decision)
	}
	if !errors.Is(result.Err, auth.ErrInvalidToken) {
		t.Errorf("Err = %v", result.Err)
	}
	if result.Challenge.Value != "Invalid token." {
		t.Errorf("Challenge = %q", result.Challenge.Value)
	}
}

func TestInactiveOwner(t *testing.T) {
	resolver := &fakeResolver{keys: map[string]*api.User{
		"deadkey": {ID: "u1", Username: "alice", Active: false},
	}}
	a := New(resolver)

	// A live key does not help once the account is deactivated.
	result := a.Authenticate(context.Background(), request("Token deadkey"))

	if result.Decision != auth.No {
		t.Fatalf("Decision = %v, want No", result.Decision)
	}
	if !errors.Is(result.Err, auth.ErrAccountInactive) {
		t.Errorf("Err = %v", result.Err)
	}
	if result.Challenge.Value != "User inactive or deleted." {
		t.Errorf("Challenge = %q", result.Challenge.Value)
	}
}

func TestBackendErrorPassesThrough(t *testing.T) {
	a := New(&fakeResolver{resolveErr: errors.New("connection refused")})

	result := a.Authenticate(context.Background(), request("Token anykey"))

	if result.Decision != auth.No {
		t.Fatalf("Decision = %v, want No", result.Decision)
	}
	if auth.IsAuthError(result.Err) {
		t.Errorf("backend error %v must not look like an auth failure", result.Err)
	}
}

package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jotsrv/jot/pkg/api"
	"github.com/jotsrv/jot/pkg/debug"
	"github.com/jotsrv/jot/pkg/observability"
)

// Middleware creates HTTP middleware from a Chain and an ExemptPolicy.
// It skips exempt paths, skips requests that already carry a principal
// (so stacked auth middlewares resolve at most once), runs the chain,
// and either attaches the identity to the request context or
// short-circuits with a challenge response.
func Middleware(chain *Chain, policy *ExemptPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// At most one resolution per request.
			if IdentityFromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}

			if policy != nil && policy.IsExempt(r.URL.Path) {
				debug.Log("auth", "path exempt from authentication", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)

			if result.Decision == No {
				rejectRequest(w, r, result)
				return
			}

			if result.Decision != Yes || result.Identity == nil || result.Identity.UserID == "" {
				slog.Error("authenticator returned an unusable identity", "path", r.URL.Path)
				writeAuthError(w, api.NewServerError("internal authentication error"), http.StatusInternalServerError)
				return
			}

			observability.AuthAttemptsTotal.WithLabelValues(result.Identity.Scheme, "success").Inc()
			if result.Identity.Provisioned {
				observability.UsersProvisionedTotal.Inc()
			}

			slog.Debug("authentication succeeded",
				"username", result.Identity.Username,
				"scheme", result.Identity.Scheme,
				"path", r.URL.Path,
			)

			ctx := SetIdentity(r.Context(), result.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// rejectRequest writes the terminal response for a rejected request.
// A pending registration challenge is a 303 to its question URL;
// authentication failures are 401 with the result's challenge header; a
// provisioning race is an expected 409; anything else is an unexpected
// storage failure and surfaces as 500 rather than being masked.
func rejectRequest(w http.ResponseWriter, r *http.Request, result Result) {
	scheme := result.Scheme
	if scheme == "" {
		scheme = "none"
	}

	switch {
	case result.Redirect != "":
		debug.Log("auth", "request redirected to registration",
			"path", r.URL.Path,
			"location", result.Redirect,
		)
		observability.AuthAttemptsTotal.WithLabelValues(scheme, "redirected").Inc()
		w.Header().Set("Location", result.Redirect)
		w.WriteHeader(http.StatusSeeOther)

	case errors.Is(result.Err, ErrDuplicateUsername):
		observability.AuthAttemptsTotal.WithLabelValues(scheme, "conflict").Inc()
		writeAuthError(w, api.NewConflictError("username", "A user with that username already exists."), http.StatusConflict)

	case IsAuthError(result.Err):
		debug.Log("auth", "request rejected",
			"path", r.URL.Path,
			"scheme", scheme,
			"challenge", debug.Truncate(result.Challenge.Value, 80),
		)
		slog.Warn("authentication failed",
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"error", result.Err,
		)
		observability.AuthAttemptsTotal.WithLabelValues(scheme, "rejected").Inc()
		if result.Challenge.Header != "" {
			w.Header().Set(result.Challenge.Header, result.Challenge.Value)
		}
		writeAuthError(w, api.NewUnauthorizedError(result.Err.Error()), http.StatusUnauthorized)

	default:
		slog.Error("authentication backend failed",
			"path", r.URL.Path,
			"error", result.Err,
		)
		observability.AuthAttemptsTotal.WithLabelValues(scheme, "error").Inc()
		writeAuthError(w, api.NewServerError("authentication backend unavailable"), http.StatusInternalServerError)
	}
}

func writeAuthError(w http.ResponseWriter, apiErr *api.APIError, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

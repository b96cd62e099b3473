package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jotsrv/jot/pkg/api"
	"github.com/jotsrv/jot/pkg/storage"
)

// HTTPStatusFromError maps an APIError type to the corresponding HTTP
// status code.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse writes a JSON error response using the
// ErrorResponse wrapper format from pkg/api. It sets the Content-Type
// header and writes the HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status
// code from the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteError maps any service or storage error to a JSON error
// response. Unexpected errors are logged and surface as 500; they are
// never masked as client errors.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *api.APIError
	switch {
	case errors.As(err, &apiErr):
		WriteAPIError(w, apiErr)
	case errors.Is(err, storage.ErrNotFound):
		WriteAPIError(w, api.NewNotFoundError("No such note."))
	case errors.Is(err, storage.ErrConflict):
		WriteAPIError(w, api.NewConflictError("alias", "A note with that alias already exists."))
	default:
		slog.Error("request failed", "error", err)
		WriteAPIError(w, api.NewServerError("internal server error"))
	}
}

package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jotsrv/jot/pkg/api"
	"github.com/jotsrv/jot/pkg/storage"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		errType api.ErrorType
		want    int
	}{
		{api.ErrorTypeInvalidRequest, http.StatusBadRequest},
		{api.ErrorTypeUnauthorized, http.StatusUnauthorized},
		{api.ErrorTypeNotFound, http.StatusNotFound},
		{api.ErrorTypeConflict, http.StatusConflict},
		{api.ErrorTypeServerError, http.StatusInternalServerError},
		{api.ErrorType("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		got := HTTPStatusFromError(&api.APIError{Type: tt.errType})
		if got != tt.want {
			t.Errorf("HTTPStatusFromError(%s) = %d, want %d", tt.errType, got, tt.want)
		}
	}
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   api.ErrorType
	}{
		{"api error passes through", api.NewInvalidRequestError("alias", "bad alias"), 400, api.ErrorTypeInvalidRequest},
		{"wrapped api error", fmt.Errorf("handling: %w", api.NewNotFoundError("gone")), 404, api.ErrorTypeNotFound},
		{"storage not found", storage.ErrNotFound, 404, api.ErrorTypeNotFound},
		{"storage conflict", storage.ErrConflict, 409, api.ErrorTypeConflict},
		{"unexpected error", errors.New("database on fire"), 500, api.ErrorTypeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body api.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body.Error == nil || body.Error.Type != tt.wantType {
				t.Errorf("error = %+v, want type %s", body.Error, tt.wantType)
			}
		})
	}
}

func TestUnexpectedErrorNotMasked(t *testing.T) {
	// A backend failure must never surface as a client error.
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("pool exhausted"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var body api.ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Error.Message == "pool exhausted" {
		t.Error("internal error detail leaked to client")
	}
}

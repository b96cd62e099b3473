package api

import (
	"encoding/json"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			"with param",
			&APIError{Type: ErrorTypeInvalidRequest, Param: "alias", Message: "is reserved"},
			"invalid_request: is reserved (param: alias)",
		},
		{
			"without param",
			&APIError{Type: ErrorTypeServerError, Message: "internal failure"},
			"server_error: internal failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *APIError
		wantType  ErrorType
		wantParam string
	}{
		{"invalid request", NewInvalidRequestError("text", "is required"), ErrorTypeInvalidRequest, "text"},
		{"not found", NewNotFoundError("note not found"), ErrorTypeNotFound, ""},
		{"conflict", NewConflictError("alias", "must be unique"), ErrorTypeConflict, "alias"},
		{"unauthorized", NewUnauthorizedError("Not authenticated."), ErrorTypeUnauthorized, ""},
		{"server error", NewServerError("internal failure"), ErrorTypeServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", tt.err.Type, tt.wantType)
			}
			if tt.err.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", tt.err.Param, tt.wantParam)
			}
		})
	}
}

func TestErrorResponse_JSON(t *testing.T) {
	resp := ErrorResponse{Error: NewConflictError("alias", "must be unique")}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got ErrorResponse
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Error.Type != ErrorTypeConflict {
		t.Errorf("Error.Type = %q, want %q", got.Error.Type, ErrorTypeConflict)
	}
	if got.Error.Message != "must be unique" {
		t.Errorf("Error.Message = %q, want %q", got.Error.Message, "must be unique")
	}
}

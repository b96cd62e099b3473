package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/jotsrv/jot/pkg/api"
	"github.com/jotsrv/jot/pkg/auth"
	"github.com/jotsrv/jot/pkg/notes"
	"github.com/jotsrv/jot/pkg/observability"
	"github.com/jotsrv/jot/pkg/registration"
	"github.com/jotsrv/jot/pkg/storage"
	"github.com/jotsrv/jot/pkg/tokens"
)

// DefaultMaxBodySize bounds request bodies at 1 MB. Notes are text.
const DefaultMaxBodySize = 1 << 20

// Handler routes the note API. Authentication runs in middleware before
// any of these handlers; they read the resolved identity from the
// request context. The report and question routes tolerate a missing
// identity.
type Handler struct {
	notes        *notes.Service
	tokens       *tokens.Service
	registration *registration.Service
	store        storage.Store
	maxBodySize  int64
	mux          *http.ServeMux
}

// NewHandler creates the API handler. A non-positive maxBodySize falls
// back to DefaultMaxBodySize.
func NewHandler(noteSvc *notes.Service, tokenSvc *tokens.Service, regSvc *registration.Service, store storage.Store, maxBodySize int64) *Handler {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}

	h := &Handler{
		notes:        noteSvc,
		tokens:       tokenSvc,
		registration: regSvc,
		store:        store,
		maxBodySize:  maxBodySize,
		mux:          http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /notes", h.handleListNotes)
	h.mux.HandleFunc("POST /notes", h.handleCreateNote)
	h.mux.HandleFunc("GET /notes/{ref}", h.handleGetNote)
	h.mux.HandleFunc("DELETE /notes/{ref}", h.handleDeleteNote)
	h.mux.HandleFunc("GET /notebooks", h.handleListNotebooks)
	h.mux.HandleFunc("GET /notebooks/{name}", h.handleNotebookNotes)
	h.mux.HandleFunc("POST /get_token", h.handleGetToken)
	h.mux.HandleFunc("POST /drop_tokens", h.handleDropTokens)
	h.mux.HandleFunc("POST /report", h.handleReport)
	h.mux.HandleFunc("GET /question/{uuid}", h.handleGetQuestion)
	h.mux.HandleFunc("POST /question/{uuid}", h.handleAnswerQuestion)
	h.mux.HandleFunc("GET /healthz", h.handleHealth)

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// identity returns the authenticated identity or writes a 500. The auth
// middleware guarantees an identity on every non-exempt route, so a
// missing one here is a wiring bug, not a client error.
func (h *Handler) identity(w http.ResponseWriter, r *http.Request) *auth.Identity {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		WriteErrorResponse(w, api.NewServerError("no authenticated principal"), http.StatusInternalServerError)
	}
	return id
}

func (h *Handler) handleListNotes(w http.ResponseWriter, r *http.Request) {
	id := h.identity(w, r)
	if id == nil {
		return
	}

	listed, err := h.notes.List(r.Context(), id.UserID)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, noteList(listed))
}

func (h *Handler) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	id := h.identity(w, r)
	if id == nil {
		return
	}

	var req struct {
		Text     string `json:"text"`
		Alias    string `json:"alias"`
		Notebook string `json:"notebook"`
	}
	if err := h.decodeBody(r, map[string]*string{
		"text":     &req.Text,
		"alias":    &req.Alias,
		"notebook": &req.Notebook,
	}, &req); err != nil {
		WriteError(w, err)
		return
	}

	n, err := h.notes.Create(r.Context(), id.UserID, req.Text, req.Alias, req.Notebook)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *Handler) handleGetNote(w http.ResponseWriter, r *http.Request) {
	id := h.identity(w, r)
	if id == nil {
		return
	}

	n, err := h.notes.Get(r.Context(), id.UserID, r.PathValue("ref"))
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *Handler) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id := h.identity(w, r)
	if id == nil {
		return
	}

	if err := h.notes.Delete(r.Context(), id.UserID, r.PathValue("ref")); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListNotebooks(w http.ResponseWriter, r *http.Request) {
	id := h.identity(w, r)
	if id == nil {
		return
	}

	books, err := h.notes.Notebooks(r.Context(), id.UserID)
	if err != nil {
		WriteError(w, err)
		return
	}
	if books == nil {
		books = []*api.Notebook{}
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *Handler) handleNotebookNotes(w http.ResponseWriter, r *http.Request) {
	id := h.identity(w, r)
	if id == nil {
		return
	}

	listed, err := h.notes.NotebookNotes(r.Context(), id.UserID, r.PathValue("name"))
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, noteList(listed))
}

// handleGetToken returns the caller's token, issuing one on first use.
// Repeated calls return the same key until a rotation.
func (h *Handler) handleGetToken(w http.ResponseWriter, r *http.Request) {
	id := h.identity(w, r)
	if id == nil {
		return
	}

	t, err := h.tokens.Issue(r.Context(), id.UserID)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// handleDropTokens invalidates the caller's current token and returns a
// fresh one. 202: the old key may linger briefly in concurrent requests
// already past authentication.
func (h *Handler) handleDropTokens(w http.ResponseWriter, r *http.Request) {
	id := h.identity(w, r)
	if id == nil {
		return
	}

	t, err := h.tokens.Rotate(r.Context(), id.UserID)
	if err != nil {
		WriteError(w, err)
		return
	}
	observability.TokensRotatedTotal.Inc()
	writeJSON(w, http.StatusAccepted, t)
}

// handleReport accepts client error reports. The route is exempt from
// authentication; a resolved identity, when present, links the report
// to the reporting user. When the body carries no info field the
// User-Agent header fills it.
func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Traceback string `json:"traceback"`
		Info      string `json:"info"`
	}
	if err := h.decodeBody(r, map[string]*string{
		"traceback": &req.Traceback,
		"info":      &req.Info,
	}, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.Info == "" {
		req.Info = r.UserAgent()
	}

	var userID string
	if id := auth.IdentityFromContext(r.Context()); id != nil {
		userID = id.UserID
	}

	rep, err := h.notes.Report(r.Context(), userID, req.Traceback, req.Info)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

// handleGetQuestion returns the question posed by a live registration
// challenge. The route is exempt from authentication: the caller is by
// definition not a usable account yet.
func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.registration.Question(r.Context(), r.PathValue("uuid"))
	if errors.Is(err, storage.ErrNotFound) {
		WriteAPIError(w, api.NewNotFoundError("No such question."))
		return
	}
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// handleAnswerQuestion checks a challenge answer. A correct answer
// registers the account; a wrong one repeats the question alongside the
// rejection.
func (h *Handler) handleAnswerQuestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answer string `json:"answer"`
	}
	if err := h.decodeBody(r, map[string]*string{
		"answer": &req.Answer,
	}, &req); err != nil {
		WriteError(w, err)
		return
	}

	err := h.registration.Answer(r.Context(), r.PathValue("uuid"), req.Answer)
	var wrong *registration.WrongAnswerError
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
	case errors.As(err, &wrong):
		WriteAPIError(w, api.NewInvalidRequestError("answer", fmt.Sprintf("Wrong answer. Question: %q", wrong.Question)))
	case errors.Is(err, storage.ErrNotFound):
		WriteAPIError(w, api.NewNotFoundError("No such question."))
	default:
		WriteError(w, err)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody fills the request struct from a JSON body, or from form
// fields for clients that post application/x-www-form-urlencoded.
func (h *Handler) decodeBody(r *http.Request, formFields map[string]*string, jsonTarget any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, h.maxBodySize)

	ct := r.Header.Get("Content-Type")
	if ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			ct = mt
		}
	}

	switch ct {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return api.NewInvalidRequestError("", "malformed form body")
		}
		for name, dst := range formFields {
			*dst = r.PostFormValue(name)
		}
		return nil
	default:
		if err := json.NewDecoder(r.Body).Decode(jsonTarget); err != nil {
			if errors.Is(err, io.EOF) {
				return api.NewInvalidRequestError("", "request body is required")
			}
			return api.NewInvalidRequestError("", "malformed JSON body")
		}
		return nil
	}
}

// noteList normalizes a nil slice so empty listings render as [].
func noteList(listed []*api.Note) []*api.Note {
	if listed == nil {
		return []*api.Note{}
	}
	return listed
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

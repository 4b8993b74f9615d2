package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/richtext"
	"github.com/starford/folio/internal/session"
)

const maxBodyBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// decodeJSON reads a size-limited JSON body into v. It writes a 400 and
// returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body: "+err.Error()))
		return false
	}
	return true
}

// statusOf maps service errors to an HTTP status and a client message.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrNotPublished):
		return http.StatusNotFound, "not found"
	case errors.Is(err, apperr.ErrSessionNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, "checksum mismatch"
	case errors.Is(err, apperr.ErrAlreadyExists):
		return http.StatusConflict, "note already exists"
	case errors.Is(err, session.ErrNothingToUndo):
		return http.StatusConflict, "nothing to undo"
	case errors.Is(err, apperr.ErrInvalidFormat),
		errors.Is(err, richtext.ErrInvalidContent),
		errors.Is(err, richtext.ErrEmptyDocument),
		errors.Is(err, richtext.ErrUnknownType),
		errors.Is(err, richtext.ErrInvalidSelection):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

// writeError writes the mapped error response. Unexpected errors are logged
// with attrs and reported without detail.
func writeError(w http.ResponseWriter, op string, err error, attrs ...any) {
	status, msg := statusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", append(attrs, slog.String("error", err.Error()))...)
	}
	writeJSON(w, status, errorBody(msg))
}

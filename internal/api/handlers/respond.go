package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/taskhub/internal/api/dto"
	"github.com/hugh/taskhub/internal/api/middleware"
	"github.com/hugh/taskhub/pkg/util"
)

var errBadID = errors.New("invalid id")

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}

func writeValidation(w http.ResponseWriter, details map[string]string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
}

// writeInternal logs err against the request and answers with a generic 500.
func writeInternal(w http.ResponseWriter, r *http.Request, log *slog.Logger, msg string, err error) {
	log.ErrorContext(r.Context(), msg,
		"error", err,
		"request_id", middleware.GetRequestID(r.Context()),
		"path", r.URL.Path,
	)
	writeError(w, http.StatusInternalServerError, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func parseID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, errBadID
	}
	return uint(n), nil
}

// pathID reads the {id} URL parameter, writing a 400 when it is not a
// positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID")
		return 0, false
	}
	return id, true
}

// queryID reads a required positive integer query parameter.
func queryID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		writeError(w, http.StatusBadRequest, name+" is required")
		return 0, false
	}
	id, err := parseID(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}

func forbidden(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, "Forbidden")
}

func orDiscard(log *slog.Logger) *slog.Logger {
	if log != nil {
		return log
	}
	return util.DiscardLogger()
}

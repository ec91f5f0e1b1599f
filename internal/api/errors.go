package api

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/aerius-app/aerius/internal/meeting"
	"github.com/aerius-app/aerius/internal/oauth"
	"github.com/aerius-app/aerius/internal/team"
	"github.com/aerius-app/aerius/internal/validation"
)

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

var statusByError = []struct {
	err    error
	status int
}{
	{team.ErrInvalidName, http.StatusBadRequest},
	{team.ErrRemoveCreator, http.StatusBadRequest},
	{team.ErrInvalidCode, http.StatusNotFound},
	{team.ErrNotFound, http.StatusNotFound},
	{team.ErrCodeExpired, http.StatusGone},
	{team.ErrAlreadyMember, http.StatusConflict},
	{team.ErrNotCreator, http.StatusForbidden},
	{team.ErrNotMember, http.StatusForbidden},
	{meeting.ErrInvalidCursor, http.StatusBadRequest},
	{meeting.ErrInvalidTitle, http.StatusBadRequest},
	{meeting.ErrNotFound, http.StatusNotFound},
	{oauth.ErrInvalidCallback, http.StatusBadRequest},
	{oauth.ErrUnknownProvider, http.StatusNotFound},
	{oauth.ErrNotConnected, http.StatusNotFound},
	{oauth.ErrVerifyFailed, http.StatusBadGateway},
	{oauth.ErrNotConfigured, http.StatusInternalServerError},
}

// writeServiceError maps a domain error to its status. Anything unknown is
// logged and reported as a 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range statusByError {
		if errors.Is(err, e.err) {
			writeError(w, e.status, e.err.Error())
			return
		}
	}

	log.WithField("path", r.URL.Path).WithError(err).Error("Request failed")
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// decodeJSON reads the body into v and checks its validate tags. It writes
// the 400 itself and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return false
	}
	return validateRequest(w, v)
}

func validateRequest(w http.ResponseWriter, v interface{}) bool {
	if err := validation.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

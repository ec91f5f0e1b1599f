package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aerius-app/aerius/internal/meeting"
	"github.com/aerius-app/aerius/internal/models"
)

// CreateMeetingRequest records a meeting
type CreateMeetingRequest struct {
	Title      string                     `json:"title" validate:"required,notblank,max=200"`
	Status     string                     `json:"status" validate:"omitempty,oneof=processing transcribed resolving completed"`
	DurationMs int64                      `json:"duration_ms" validate:"gte=0"`
	Transcript []models.TranscriptSegment `json:"transcript"`
	SpeakerMap map[string]string          `json:"speaker_map"`
}

// HandleListMeetings returns a page of the team's meetings, newest first.
func HandleListMeetings(meetings *meeting.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := meetings.List(r.Context(), chi.URLParam(r, "teamId"), r.URL.Query().Get("cursor"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, page)
	}
}

// HandleGetMeeting returns one meeting with its transcript.
func HandleGetMeeting(meetings *meeting.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := meetings.Get(r.Context(), chi.URLParam(r, "teamId"), chi.URLParam(r, "meetingId"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, m)
	}
}

// HandleCreateMeeting records a meeting for the team.
func HandleCreateMeeting(meetings *meeting.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := userFromContext(r.Context())

		var req CreateMeetingRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		m, err := meetings.Create(r.Context(), chi.URLParam(r, "teamId"), user.ID, &models.Meeting{
			Title:      req.Title,
			Status:     req.Status,
			DurationMs: req.DurationMs,
			Transcript: req.Transcript,
			SpeakerMap: req.SpeakerMap,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, m)
	}
}

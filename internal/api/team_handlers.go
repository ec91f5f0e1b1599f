package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aerius-app/aerius/internal/models"
	"github.com/aerius-app/aerius/internal/team"
)

// CreateTeamRequest represents a new team
type CreateTeamRequest struct {
	Name string `json:"name" validate:"required,notblank,max=100"`
}

// JoinTeamRequest carries an invite code
type JoinTeamRequest struct {
	Code string `json:"code" validate:"required"`
}

// TeamResponse is a team with its members
type TeamResponse struct {
	Team    *models.Team    `json:"team"`
	Members []models.Member `json:"members"`
}

// HandleCreateTeam creates a team led by the caller.
func HandleCreateTeam(teams *team.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := userFromContext(r.Context())

		var req CreateTeamRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		t, err := teams.CreateTeam(r.Context(), req.Name, user.ID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, t)
	}
}

// HandleJoinTeam adds the caller to the team owning the invite code.
func HandleJoinTeam(teams *team.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := userFromContext(r.Context())

		var req JoinTeamRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		t, err := teams.JoinTeam(r.Context(), req.Code, user.ID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, t)
	}
}

// HandleGetTeam returns a team and its members.
func HandleGetTeam(teams *team.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := userFromContext(r.Context())

		t, members, err := teams.Get(r.Context(), chi.URLParam(r, "teamId"), user.ID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, TeamResponse{Team: t, Members: members})
	}
}

// HandleRegenerateInviteCode replaces the team's invite code.
func HandleRegenerateInviteCode(teams *team.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := userFromContext(r.Context())

		t, err := teams.RegenerateCode(r.Context(), chi.URLParam(r, "teamId"), user.ID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, t)
	}
}

// HandleRemoveMember removes a member from the team.
func HandleRemoveMember(teams *team.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := userFromContext(r.Context())

		err := teams.RemoveMember(r.Context(), chi.URLParam(r, "teamId"), user.ID, chi.URLParam(r, "userId"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aerius-app/aerius/internal/oauth"
	"github.com/aerius-app/aerius/internal/team"
)

// VerifyResponse reports a successful credential check.
type VerifyResponse struct {
	Valid    bool              `json:"valid"`
	Identity map[string]string `json:"identity"`
}

// HandleGetProviders lists the supported providers.
func HandleGetProviders(integrations *oauth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, integrations.Providers())
	}
}

// HandleConnect starts the authorization flow for a provider. Configuration
// is checked before identity so a misconfigured provider is reported even to
// anonymous callers.
func HandleConnect(integrations *oauth.Service, teams *team.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := integrations.Provider(chi.URLParam(r, "provider"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		teamID := r.URL.Query().Get("teamId")
		if teamID == "" {
			writeError(w, http.StatusBadRequest, "teamId is required")
			return
		}

		if err := integrations.CheckConnectable(p); err != nil {
			writeServiceError(w, r, err)
			return
		}

		user, ok := userFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if err := teams.RequireMember(r.Context(), teamID, user.ID); err != nil {
			writeServiceError(w, r, err)
			return
		}

		location, err := integrations.Connect(r.Context(), p, teamID, user.ID, oauth.ParseSetup(r.URL.Query().Get("setup")))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		http.Redirect(w, r, location, http.StatusFound)
	}
}

// HandleCallback completes the authorization flow and redirects back to the
// application.
func HandleCallback(integrations *oauth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := integrations.Provider(chi.URLParam(r, "provider"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		location, err := integrations.Callback(r.Context(), p, r.URL.Query())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		http.Redirect(w, r, location, http.StatusFound)
	}
}

// HandleGetIntegrations lists the team's credential records without secrets.
func HandleGetIntegrations(integrations *oauth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := integrations.List(r.Context(), chi.URLParam(r, "teamId"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, records)
	}
}

// HandleDisconnect marks the team's integration as disconnected.
func HandleDisconnect(integrations *oauth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := integrations.Disconnect(r.Context(), chi.URLParam(r, "teamId"), chi.URLParam(r, "provider"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleVerifyIntegration checks the stored credential with the provider.
func HandleVerifyIntegration(integrations *oauth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := integrations.Verify(r.Context(), chi.URLParam(r, "teamId"), chi.URLParam(r, "provider"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, VerifyResponse{Valid: true, Identity: identity})
	}
}

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aerius-app/aerius/internal/auth"
	"github.com/aerius-app/aerius/internal/config"
	"github.com/aerius-app/aerius/internal/models"
	"github.com/aerius-app/aerius/internal/store"
)

// SignupRequest represents signup details
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,notblank,max=100"`
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest carries the profile fields to change
type UpdateProfileRequest struct {
	Name           *string `json:"name" validate:"omitempty,notblank,max=100"`
	SetupCompleted *bool   `json:"setup_completed"`
}

// LoginResponse represents login response
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// HandleSignup creates an account and starts a session for it.
func HandleSignup(st *store.Store, issuer *auth.Issuer, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignupRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if errors.Is(err, auth.ErrPasswordTooShort) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		user := &models.User{Email: req.Email, Name: strings.TrimSpace(req.Name), PasswordHash: hash}
		if err := st.CreateUser(r.Context(), user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				writeError(w, http.StatusConflict, "An account with this email already exists")
				return
			}
			writeServiceError(w, r, err)
			return
		}

		log.WithField("user_id", user.ID).Info("Signup: account created")
		startSession(w, r, issuer, cfg, user, http.StatusCreated)
	}
}

// HandleLogin handles user login
func HandleLogin(st *store.Store, issuer *auth.Issuer, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		user, err := st.GetUserByEmail(r.Context(), req.Email)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			writeServiceError(w, r, err)
			return
		}
		if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
			log.Info("Login: Authentication failed")
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		log.WithField("user_id", user.ID).Info("Login: Successful authentication")
		startSession(w, r, issuer, cfg, user, http.StatusOK)
	}
}

func startSession(w http.ResponseWriter, r *http.Request, issuer *auth.Issuer, cfg *config.Config, user *models.User, status int) {
	token, expiresAt, err := issuer.Issue(user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(issuer.TTL().Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, status, LoginResponse{Token: token, User: user})
}

// HandleLogout clears the session cookie.
func HandleLogout(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     auth.CookieName,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   cfg.IsProduction(),
			SameSite: http.SameSiteLaxMode,
		})

		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
	}
}

// HandleGetCurrentUser returns the caller.
func HandleGetCurrentUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := userFromContext(r.Context())
		writeJSON(w, http.StatusOK, user)
	}
}

// HandleUpdateCurrentUser changes the caller's name or setup flag.
func HandleUpdateCurrentUser(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := userFromContext(r.Context())

		var req UpdateProfileRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Name == nil && req.SetupCompleted == nil {
			writeError(w, http.StatusBadRequest, "name or setup_completed is required")
			return
		}

		updated, err := st.UpdateProfile(r.Context(), user.ID, store.ProfileUpdate{
			Name:           req.Name,
			SetupCompleted: req.SetupCompleted,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		log.WithField("user_id", user.ID).Info("Profile: updated")
		writeJSON(w, http.StatusOK, updated)
	}
}

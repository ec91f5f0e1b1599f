package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/aerius-app/aerius/internal/auth"
	"github.com/aerius-app/aerius/internal/config"
	"github.com/aerius-app/aerius/internal/meeting"
	"github.com/aerius-app/aerius/internal/oauth"
	"github.com/aerius-app/aerius/internal/store"
	"github.com/aerius-app/aerius/internal/team"
	"github.com/aerius-app/aerius/internal/websocket"
)

// NewRouter creates a new HTTP router
func NewRouter(cfg *config.Config, st *store.Store, issuer *auth.Issuer, teams *team.Service, integrations *oauth.Service, meetings *meeting.Service, hub *websocket.Hub) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(SecurityHeadersMiddleware(cfg))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 5 attempts per minute for credentials and invite codes
	authLimiter := NewRateLimiter(rate.Every(12*time.Second), 5)
	joinLimiter := NewRateLimiter(rate.Every(12*time.Second), 5)
	oauthLimiter := NewRateLimiter(rate.Limit(1), 10)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(IdentityMiddleware(issuer, st))

		// Auth routes
		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(authLimiter))
			r.Post("/auth/signup", HandleSignup(st, issuer, cfg))
			r.Post("/auth/login", HandleLogin(st, issuer, cfg))
		})
		r.Post("/auth/logout", HandleLogout(cfg))

		// OAuth routes; connect checks identity itself
		r.Get("/integrations/providers", HandleGetProviders(integrations))
		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(oauthLimiter))
			r.Get("/integrations/{provider}/connect", HandleConnect(integrations, teams))
			r.Get("/integrations/{provider}/callback", HandleCallback(integrations))
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(RequireAuth)

			r.Get("/user/me", HandleGetCurrentUser())
			r.Patch("/user/me", HandleUpdateCurrentUser(st))

			r.Post("/teams", HandleCreateTeam(teams))
			r.With(RateLimitMiddleware(joinLimiter)).Post("/teams/join", HandleJoinTeam(teams))

			r.Route("/teams/{teamId}", func(r chi.Router) {
				r.Get("/", HandleGetTeam(teams))
				r.Post("/invite-code", HandleRegenerateInviteCode(teams))
				r.Delete("/members/{userId}", HandleRemoveMember(teams))

				r.Group(func(r chi.Router) {
					r.Use(RequireTeamMember(teams))
					r.Get("/integrations", HandleGetIntegrations(integrations))
					r.Delete("/integrations/{provider}", HandleDisconnect(integrations))
					r.Post("/integrations/{provider}/verify", HandleVerifyIntegration(integrations))

					r.Get("/meetings", HandleListMeetings(meetings))
					r.Post("/meetings", HandleCreateMeeting(meetings))
					r.Get("/meetings/{meetingId}", HandleGetMeeting(meetings))
				})
			})
		})
	})

	// Prometheus metrics endpoint (no auth required)
	r.Handle("/metrics", promhttp.Handler())

	// WebSocket endpoint
	r.Get("/ws", hub.HandleWebSocket)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aerius-app/aerius/internal/api"
	"github.com/aerius-app/aerius/internal/auth"
	"github.com/aerius-app/aerius/internal/config"
	"github.com/aerius-app/aerius/internal/database"
	"github.com/aerius-app/aerius/internal/encryption"
	"github.com/aerius-app/aerius/internal/jobs"
	"github.com/aerius-app/aerius/internal/meeting"
	"github.com/aerius-app/aerius/internal/oauth"
	"github.com/aerius-app/aerius/internal/store"
	"github.com/aerius-app/aerius/internal/team"
	"github.com/aerius-app/aerius/internal/websocket"
)

func main() {
	// Load configuration
	cfg := config.Load()
	configureLogging(cfg)

	// Initialize database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Get underlying SQL database for cleanup
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database connection: %v", err)
	}
	defer sqlDB.Close()

	// Run migrations
	if err := database.RunMigrations(db, cfg.Database.Type); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	cipher, err := encryption.NewCipher(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize token encryption: %v", err)
	}

	st := store.New(db)
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.SessionTTL)

	// Initialize WebSocket hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := websocket.NewHub(issuer, func(ctx context.Context, userID string) (string, error) {
		user, err := st.GetUserByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		if user.TeamID == nil {
			return "", nil
		}
		return *user.TeamID, nil
	}, cfg.CORSOrigins)
	go hub.Run(hubCtx)

	teams := team.NewService(st, hub, cfg.InviteCodeTTL)
	integrations := oauth.NewService(cfg, oauth.DefaultRegistry(), oauth.NewClient(cfg.OAuth.RequestTimeout), st, cipher, hub)
	meetings := meeting.NewService(st, hub)

	// Initialize job scheduler
	scheduler := jobs.NewScheduler(db, cfg.Database.Type, integrations)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start job scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Setup API router
	router := api.NewRouter(cfg, st, issuer, teams, integrations, meetings, hub)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Server starting on port %d", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func configureLogging(cfg *config.Config) {
	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nice-pea/npc/internal/auth"
	"github.com/nice-pea/npc/internal/config"
	"github.com/nice-pea/npc/internal/database"
	"github.com/nice-pea/npc/internal/logging"
)

const sessionCleanupInterval = time.Hour

type Api struct {
	Config config.ServerConfig
	Router *chi.Mux

	db   *database.DB
	auth *auth.Service
	log  *slog.Logger
}

func NewApi(cfg config.ServerConfig, db *database.DB, authService *auth.Service, log *slog.Logger) (*Api, error) {
	if cfg.Port == 0 {
		return nil, errors.New("Must have at least a port to start API")
	}
	if db == nil || authService == nil {
		return nil, errors.New("api needs a database and an auth service")
	}
	if log == nil {
		log = logging.Discard()
	}

	api := &Api{
		Config: cfg,
		Router: chi.NewRouter(),
		db:     db,
		auth:   authService,
		log:    log,
	}
	api.setupRoutes()
	return api, nil
}

func (api *Api) setupRoutes() {
	r := api.Router

	origins := api.Config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/heartbeat"))

	r.Get("/health", api.HealthHandler)
	r.Get("/authn", api.AuthnHandler)
	r.Get("/authn/login", api.LoginHandler)

	r.Group(func(r chi.Router) {
		r.Use(api.SessionAuthMiddleware)
		r.Get("/chats", api.ChatsHandler)
		r.Get("/messages", api.MessagesHandler)
	})
}

// Serve listens until ctx is canceled, then shuts down gracefully. Expired
// sessions are swept while it runs.
func (api *Api) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", api.Config.Port),
		Handler:           api.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go api.cleanupSessions(ctx)

	errCh := make(chan error, 1)
	go func() {
		api.log.Info("starting API server", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	api.log.Info("API server stopped")
	return nil
}

func (api *Api) cleanupSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		n, err := api.db.DeleteExpiredSessions(ctx, time.Now())
		if err != nil && ctx.Err() == nil {
			api.log.Warn("cleaning up expired sessions", logging.Err(err))
		} else if n > 0 {
			api.log.Info("removed expired sessions", slog.Int64("count", n))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

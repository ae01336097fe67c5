package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// NewRouter builds and returns the Chi router with all routes configured.
// The feed and health endpoints are public; the refresh trigger requires
// the scheduler secret. Rate limiting is applied globally: 60 requests
// per minute per IP.
func NewRouter(handlers *Handlers, schedulerSecret string, db dbPinger, redisClient redisPinger, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/api/v1/health", HealthHandlerFunc(db, redisClient, log))
	r.Get("/api/v1/feed", handlers.GetFeed)

	r.Group(func(r chi.Router) {
		r.Use(SchedulerAuth(schedulerSecret))
		r.Post("/api/v1/refresh", handlers.TriggerRefresh)
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)

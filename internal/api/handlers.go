package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/tripwind/dealfeed/internal/feed"
)

const defaultOrigin = "TPA"

var iataPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	composer FeedComposer
	refresh  RefreshRunner
	log      *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(composer FeedComposer, refresh RefreshRunner, log *slog.Logger) *Handlers {
	return &Handlers{composer: composer, refresh: refresh, log: log}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// feedResponse is the client-shaped feed page.
type feedResponse struct {
	Destinations []feed.MergedDestination `json:"destinations"`
	NextCursor   *string                  `json:"nextCursor"`
}

// GetFeed handles GET /api/v1/feed.
// Ranks the full filtered candidate set for the origin, then slices one
// page at the cursor.
func (h *Handlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	origin := params.Get("origin")
	if origin == "" {
		origin = defaultOrigin
	}
	if !iataPattern.MatchString(origin) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "origin must be a 3-letter uppercase IATA code"})
		return
	}

	cursor := 0
	if raw := params.Get("cursor"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cursor must be a non-negative integer"})
			return
		}
		cursor = n
	}

	var maxPrice float64
	if raw := params.Get("maxPrice"); raw != "" {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil || p < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "maxPrice must be a non-negative number"})
			return
		}
		maxPrice = p
	}

	sessionID := params.Get("sessionId")

	q := feed.Query{
		Region:   params.Get("regionFilter"),
		Vibe:     params.Get("vibeFilter"),
		MaxPrice: maxPrice,
		Sort:     params.Get("sortPreset"),
		Seed:     deriveSeed(origin, sessionID),
	}

	ranked, err := h.composer.Compose(r.Context(), origin, q)
	if err != nil {
		h.log.Error("feed composition failed", "origin", origin, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to build feed"})
		return
	}

	page, next := feed.Paginate(ranked, cursor, feed.PageSize)

	// Session-seeded feeds are per-user; everything else is CDN-cacheable.
	if sessionID == "" {
		w.Header().Set("Cache-Control", "s-maxage=300")
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}

	writeJSON(w, http.StatusOK, feedResponse{Destinations: page, NextCursor: next})
}

// deriveSeed makes the ranking reproducible within a session. Without a
// session the seed is time+random, so anonymous feeds reshuffle per
// request.
func deriveSeed(origin, sessionID string) string {
	if sessionID != "" {
		return origin + ":" + sessionID
	}
	return fmt.Sprintf("%s:%d:%d", origin, time.Now().UnixNano(), rand.Int())
}

// TriggerRefresh handles POST /api/v1/refresh.
// Guarded by the scheduler secret. An explicit origin refreshes just that
// origin; "ALL" or no origin refreshes the stalest ones.
func (h *Handlers) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	origin := r.URL.Query().Get("origin")
	if origin != "" && origin != "ALL" && !iataPattern.MatchString(origin) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "origin must be a 3-letter uppercase IATA code or ALL"})
		return
	}

	report, err := h.refresh.Run(r.Context(), origin)
	if err != nil {
		h.log.Error("price refresh failed", "origin", origin, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "price refresh failed"})
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// HealthCheck dependencies. Both pingers get a short deadline.
type dbPinger interface {
	Ping(ctx context.Context) error
}

type redisPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis
// connectivity.
func HealthHandlerFunc(db dbPinger, redis redisPinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		redisStatus := "ok"

		if err := db.Ping(ctx); err != nil {
			log.Error("health check: db ping failed", "err", err)
			dbStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if err := redis.Ping(ctx); err != nil {
			log.Error("health check: redis ping failed", "err", err)
			redisStatus = "error"
			status = http.StatusServiceUnavailable
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}

		writeJSON(w, status, map[string]string{
			"status": overall,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	}
}

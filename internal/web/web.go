// Package web exposes the service over a small JSON HTTP API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/deusflow/milnews/internal/app"
	"github.com/deusflow/milnews/internal/logger"
	"github.com/deusflow/milnews/internal/metrics"
	"github.com/deusflow/milnews/internal/ratelimit"
	"github.com/deusflow/milnews/internal/thumbnail"
)

const (
	DefaultThumbWidth  = 400
	DefaultThumbHeight = 225

	thumbMaxAge = 7 * 24 * time.Hour
)

// Service is what the handlers need from the application.
type Service interface {
	Query(ctx context.Context, p app.Params) (app.Listing, error)
	Thumbnail(ctx context.Context, imageURL string, w, h int) ([]byte, error)
	Stats() map[string]any
}

// NewHandler routes the API onto a new mux. thumbs limits thumbnail requests
// per client; nil means unlimited.
func NewHandler(svc Service, thumbs *ratelimit.Limiter) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/articles", articlesHandler(svc))
	mux.HandleFunc("GET /thumb", thumbHandler(svc, thumbs))
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /metrics", metricsHandler(svc, thumbs))
	return mux
}

func articlesHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listing, err := svc.Query(r.Context(), app.ParseParams(r.URL.Query()))
		if err != nil {
			logger.Error("Query failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "articles unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, listing)
	}
}

func thumbHandler(svc Service, limiter *ratelimit.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(clientIP(r)) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		q := r.URL.Query()
		width := dimension(q.Get("w"), DefaultThumbWidth)
		height := dimension(q.Get("h"), DefaultThumbHeight)

		data, err := svc.Thumbnail(r.Context(), q.Get("u"), width, height)
		if err != nil {
			if !errors.Is(err, thumbnail.ErrNotFound) {
				logger.Warn("Thumbnail failed", "url", q.Get("u"), "error", err)
			}
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(thumbMaxAge.Seconds())))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// dimension parses a size parameter, falling back to def when it is missing
// or not a number. Range checks belong to the resolver.
func dimension(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()

	status := "ok"
	code := http.StatusOK
	if !metrics.Global.Healthy() {
		status = "error"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	})
}

// metricsHandler merges the process counters with the service's cache state
// and the thumbnail limiter.
func metricsHandler(svc Service, limiter *ratelimit.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := metrics.Global.GetStats()
		for k, v := range svc.Stats() {
			stats[k] = v
		}
		if rl := limiter.GetStats(); rl != nil {
			stats["thumb_rate_limit"] = rl
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

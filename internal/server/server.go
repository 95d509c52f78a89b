// Package server exposes neighbourhood computation and stored grids over
// HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/cellneigh/internal/store"
)

// Computation limits applied when Config leaves them unset. At 8 bytes per
// index the default index cap holds the response list under 400 MB.
const (
	DefaultMaxCells   = 4_000_000
	DefaultMaxIndices = 50_000_000
)

// Config tunes the HTTP surface.
type Config struct {
	// RateLimit is the sustained requests per second across all clients.
	// Zero disables limiting.
	RateLimit      float64
	Burst          int
	AllowedOrigins []string
	// DefaultRank is used when a request omits rank.
	DefaultRank int
	Workers     int
	// MaxCells and MaxIndices bound a single computation. Zero selects
	// DefaultMaxCells and DefaultMaxIndices; a request cannot lift them.
	MaxCells   int
	MaxIndices int
	// MaxBodyBytes caps request bodies. Zero means 1 MiB.
	MaxBodyBytes int64
	// CacheEntries bounds the computed-result cache. Zero disables it.
	CacheEntries int
	CacheTTL     time.Duration
}

type handler struct {
	cfg   Config
	store store.Store
	cache *resultCache
	log   *zap.Logger
}

// New builds the router. When st is nil the /v1/grids routes are not
// mounted and save requests fail with 503.
func New(cfg Config, st store.Store) http.Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.MaxCells <= 0 {
		cfg.MaxCells = DefaultMaxCells
	}
	if cfg.MaxIndices <= 0 {
		cfg.MaxIndices = DefaultMaxIndices
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	h := &handler{
		cfg:   cfg,
		store: st,
		log:   zap.L().With(zap.String("component", "server")),
	}
	if cfg.CacheEntries > 0 {
		h.cache = newResultCache(cfg.CacheEntries, cfg.CacheTTL)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if cfg.RateLimit > 0 {
		r.Use(rateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.Burst, 1))))
	}

	r.Get("/health", h.health)
	r.Get("/v1/stats", h.stats)
	r.Post("/v1/neighbors", h.neighbors)
	if st != nil {
		r.Route("/v1/grids", func(r chi.Router) {
			r.Get("/", h.listGrids)
			r.Get("/{id}", h.getGrid)
			r.Delete("/{id}", h.deleteGrid)
		})
	}
	return r
}

// rateLimit rejects requests with 429 once the shared bucket is empty.
func rateLimit(lim *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				retry := time.Second
				if lim.Limit() > 0 {
					retry = time.Duration(float64(time.Second) / float64(lim.Limit()))
				}
				w.Header().Set("Retry-After", strconv.Itoa(max(int(retry.Seconds()), 1)))
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate_limited", Message: "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) stats(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"cache_enabled": h.cache != nil}
	if h.cache != nil {
		resp["cache"] = h.cache.stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

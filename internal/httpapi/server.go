// Package httpapi exposes the question-answering pipeline over HTTP and
// websocket, plus the operator endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/urbanatlas/askcity/internal/cache"
	"github.com/urbanatlas/askcity/internal/config"
	"github.com/urbanatlas/askcity/internal/db"
	"github.com/urbanatlas/askcity/internal/observability"
	"github.com/urbanatlas/askcity/internal/precompiled"
	"github.com/urbanatlas/askcity/internal/query"
)

const serviceName = "askcity"
const serviceVersion = "1.0.0"

type Server struct {
	cfg       config.Config
	resolver  *query.Router
	store     *cache.Store
	library   *precompiled.Library
	executor  db.Executor
	metrics   *observability.Metrics
	log       zerolog.Logger
	upgrader  websocket.Upgrader
	startedAt time.Time
}

func New(cfg config.Config, resolver *query.Router, store *cache.Store, library *precompiled.Library,
	executor db.Executor, metrics *observability.Metrics, log zerolog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		resolver:  resolver,
		store:     store,
		library:   library,
		executor:  executor,
		metrics:   metrics,
		log:       log,
		startedAt: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other websites cannot drive the ask stream
				// if the service is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/api/ask", s.handleAsk)
	r.Get("/api/examples", s.handleExamples)
	r.Get("/api/cache/stats", s.handleCacheStats)
	r.Post("/api/cache/clear", s.handleCacheClear)
	r.Get("/api/config", s.handleConfig)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/perf/latency", s.handlePerfLatency)

	r.Get("/ws/ask", s.handleAskWS)

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"service": serviceName,
		"version": serviceVersion,
		"message": "Natural-language question answering over urban open data.",
		"endpoints": map[string]string{
			"ask":      "POST /api/ask",
			"ask_ws":   "GET /ws/ask",
			"examples": "GET /api/examples",
			"status":   "GET /api/status",
			"metrics":  "GET /metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": serviceVersion,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.executor.Ping(ctx); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

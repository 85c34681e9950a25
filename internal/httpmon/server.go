// Package httpmon serves the read-only monitoring surface for a running
// MultiRunCoordinator: /health, /progress (plus a WebSocket stream),
// /best, and /metrics. The listener is preflighted at construction so a
// busy port fails fast, and every route runs through the request-ID,
// logging, and CORS middleware stack.
package httpmon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/quietgrid/gridopt/internal/coordinator"
)

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns a local-only, modestly timed-out configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "127.0.0.1",
		Port:         8080,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the read-only monitoring HTTP+WebSocket server for one
// coordinator run.
type Server struct {
	router *mux.Router
	server *http.Server
	cfg    Config
	coord  *coordinator.Coordinator

	upgrader websocket.Upgrader
	registry *prometheus.Registry

	metricsMu   sync.Mutex
	latest      coordinator.Progress
	wsClients   map[*websocket.Conn]struct{}

	iterationsGauge prometheus.Gauge
	bestScoreGauge  prometheus.Gauge
	elapsedGauge    prometheus.Gauge
	stagnationGauge prometheus.Gauge
}

// New constructs a Server bound to coord and registers its progress
// callback. It does not start listening until Start is called.
func New(cfg Config, coord *coordinator.Coordinator) (*Server, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("port %d is busy or unavailable: %w", cfg.Port, err)
	}
	listener.Close()

	// Each server owns its registry so a run command and a monitor command
	// in one process never collide on gauge names.
	reg := prometheus.NewRegistry()
	s := &Server{
		router:    mux.NewRouter(),
		cfg:       cfg,
		coord:     coord,
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		registry:  reg,
		wsClients: make(map[*websocket.Conn]struct{}),

		iterationsGauge: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "gridopt_iterations_completed",
			Help: "Number of optimizer iterations completed in the current run.",
		}),
		bestScoreGauge: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "gridopt_best_score",
			Help: "Scalar score of the current best-known strategy.",
		}),
		elapsedGauge: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "gridopt_run_elapsed_seconds",
			Help: "Wall-clock seconds elapsed in the current run.",
		}),
		stagnationGauge: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "gridopt_iterations_without_improvement",
			Help: "Iterations since the shared engine last improved on its best-known strategy.",
		}),
	}

	s.setupRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	coord.OnProgress(s.onProgress)
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.corsMiddleware)

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(s.jsonContentTypeMiddleware)

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/progress", s.handleProgress).Methods("GET")
	api.HandleFunc("/best", s.handleBest).Methods("GET")

	// /progress/ws and /metrics set their own content type, so they sit
	// outside the jsonContentTypeMiddleware subrouter.
	s.router.HandleFunc("/progress/ws", s.handleProgressWS).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("httpmon: request")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Start begins serving. Blocks until Shutdown is called or the listener
// errors.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("httpmon: starting monitoring server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpmon server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("httpmon: encode response")
	}
}

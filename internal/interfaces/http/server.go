// Package http serves the pricer's operational surface: health,
// Prometheus metrics, the provider what-if simulator, signal ingest and
// the websocket price relay. Read-mostly; the only writes are demand
// signals and percentile updates into the tracker.
package http

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/nexusx/pricer/internal/auction"
	"github.com/nexusx/pricer/internal/demand"
	"github.com/nexusx/pricer/internal/metrics"
	"github.com/nexusx/pricer/internal/stream"
	"github.com/nexusx/pricer/internal/updater"
)

// CycleReporter is the slice of the updater the health endpoint reads.
type CycleReporter interface {
	LastCycle() updater.CycleStats
	BreakerState() string
}

// Pinger checks a backing store's liveness. Nil disables the check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// SimulateRPS throttles the simulator endpoint. Zero means the
	// default of 10 req/s with a burst of 20.
	SimulateRPS float64
}

// DefaultConfig returns local-only defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:8090",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		SimulateRPS:  10,
	}
}

// Server is the operational HTTP server.
type Server struct {
	router  *mux.Router
	server  *http.Server
	engine  *auction.Engine
	tracker *demand.Tracker
	cycles  CycleReporter
	bus     stream.Bus
	reg     *metrics.Registry
	db      Pinger

	simLimiter *rate.Limiter
}

// NewServer wires the server. Cycles, bus and db may be nil; the
// corresponding surfaces degrade instead of failing.
func NewServer(cfg Config, engine *auction.Engine, tracker *demand.Tracker, cycles CycleReporter, bus stream.Bus, reg *metrics.Registry, db Pinger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	rps := cfg.SimulateRPS
	if rps <= 0 {
		rps = 10
	}

	s := &Server{
		router:     mux.NewRouter(),
		engine:     engine,
		tracker:    tracker,
		cycles:     cycles,
		bus:        bus,
		reg:        reg,
		db:         db,
		simLimiter: rate.NewLimiter(rate.Limit(rps), int(rps)*2),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.reg.Prometheus(), promhttp.HandlerOpts{})).Methods("GET")

	api := s.router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/simulate", s.handleSimulate).Methods("POST")
	api.HandleFunc("/signals", s.handleSignals).Methods("POST")
	api.HandleFunc("/percentiles", s.handlePercentiles).Methods("POST")

	// Websocket endpoint skips the JSON middleware stack on purpose.
	s.router.HandleFunc("/ws/prices", s.handlePricesWS)
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler { return s.router }

// Start blocks serving until shutdown or listen failure.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("HTTP server started")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack passes through so the websocket upgrade works behind the
// logging middleware.
func (rw *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// Package server exposes detection and cleaning over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/KaramelBytes/tidyloom-cli/internal/clean"
	"github.com/KaramelBytes/tidyloom-cli/internal/history"
	"github.com/KaramelBytes/tidyloom-cli/internal/logging"
	"github.com/KaramelBytes/tidyloom-cli/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"golang.org/x/time/rate"
)

// Config holds the HTTP settings.
type Config struct {
	Addr string
	// RateLimit is requests per second across all clients; 0 disables it.
	RateLimit float64
	// MaxBodyBytes caps request bodies, uploads included.
	MaxBodyBytes int64
	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string
	// Options are the engine defaults a request may override.
	Options clean.Options
}

// Server is the HTTP front end. Metrics and history are optional.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Recorder
	history *history.Store
	router  chi.Router
}

// New builds the router. A nil logger discards output.
func New(cfg Config, logger *slog.Logger, rec *metrics.Recorder, store *history.Store) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 32 << 20
	}
	s := &Server{cfg: cfg, logger: logger, metrics: rec, history: store}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "X-Run-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Route("/v1", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(s.rateLimit(rate.NewLimiter(rate.Limit(s.cfg.RateLimit), burst(s.cfg.RateLimit))))
		}
		r.Use(s.limitBody)
		r.Post("/detect", s.handleDetect)
		r.Post("/clean", s.handleClean)
	})
	return r
}

func burst(rps float64) int {
	if rps < 1 {
		return 1
	}
	return int(rps)
}

// requestLogger copies chi's request id into the logging context and logs
// one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		s.logger.DebugContext(ctx, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				s.fail(w, r, newError(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

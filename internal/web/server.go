// Package web provides the HTTP API for the multi-center data platform:
// project and schema management, submission intake, merged export, and the
// generated profile reports.
package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rissahq/rissa/internal/core"
	"github.com/rissahq/rissa/internal/logging"
	"github.com/rissahq/rissa/internal/web/middleware"
)

// Options configures the HTTP surface.
type Options struct {
	// AllowedOrigins is handed to the CORS middleware. Empty disables CORS.
	AllowedOrigins []string

	// ReportsDir is served read-only under ReportsBaseURL.
	ReportsDir     string
	ReportsBaseURL string

	// MaxUploadBytes caps a submission upload. Zero means DefaultMaxUploadBytes.
	MaxUploadBytes int64

	// RequestsPerMinute caps per-IP request rates. Zero disables limiting.
	RequestsPerMinute int

	// Ping probes the datastore for the health endpoint. Nil skips the probe.
	Ping func(ctx context.Context) error
}

// DefaultMaxUploadBytes caps uploads at 50 MiB.
const DefaultMaxUploadBytes = 50 << 20

// Server is the HTTP server for the platform API.
type Server struct {
	service *core.Service
	opts    Options
	router  *chi.Mux
	server  *http.Server
}

// NewServer builds the router with middleware and routes configured.
func NewServer(service *core.Service, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.ReportsBaseURL == "" {
		opts.ReportsBaseURL = "/api/reports"
	}

	s := &Server{
		service: service,
		opts:    opts,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(chimiddleware.Compress(5))
	s.router.Use(chimiddleware.Timeout(60 * time.Second))
	s.router.Use(securityHeaders)

	if len(s.opts.AllowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	if s.opts.RequestsPerMinute > 0 {
		limiter := newRateLimiter(s.opts.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", s.handleCreateProject)
			r.Get("/", s.handleListProjects)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", s.handleGetProject)
				r.Patch("/", s.handleUpdateProject)
				r.Delete("/", s.handleDeleteProject)

				r.Post("/schemas", s.handleCreateSchema)
				r.Get("/schemas", s.handleListSchemas)
				r.Get("/schemas/latest", s.handleLatestSchema)

				r.Post("/submissions", s.handleSubmit)
				r.Get("/submissions", s.handleListSubmissions)

				r.Post("/download", s.handleDownload)
			})
		})

		if s.opts.ReportsDir != "" {
			fileServer := http.StripPrefix(s.opts.ReportsBaseURL+"/",
				http.FileServer(http.Dir(s.opts.ReportsDir)))
			r.Get("/reports/*", fileServer.ServeHTTP)
		}
	})
}

// Start blocks serving HTTP on addr until the listener fails or Shutdown
// is called.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router exposes the chi router for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ping != nil {
		if err := s.opts.Ping(r.Context()); err != nil {
			logging.FromContext(r.Context()).ErrorContext(r.Context(), "health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "error",
				"database": "unavailable",
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": "connected",
	})
}

// securityHeaders adds baseline hardening headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// rateLimiter is a fixed-window per-IP limiter.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

// cleanup drops idle visitor entries every minute.
func (rl *rateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastReset) > rl.window*2 {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok || time.Since(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: time.Now()}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(r.RemoteAddr) {
			logging.FromContext(r.Context()).Warn("rate limit exceeded", "ip", r.RemoteAddr)
			http.Error(w, "rate limit exceeded, please slow down", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

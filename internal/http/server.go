package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"rentsplit/internal/log"
	"rentsplit/internal/services"
)

// Server exposes a HouseholdService as a JSON API.
type Server struct {
	http.Server
	svc         *services.HouseholdService
	rateLimiter *rateLimiter
	metrics     *securityMetrics
	logger      *log.Logger
	sl          *log.StructuredLogger
	now         func() time.Time

	startedAt    time.Time
	requests     int64
	shutdownOnce sync.Once
}

// Options tunes NewServer. The zero value is usable.
type Options struct {
	Logger *log.Logger
	// RequestsPerMinute limits mutating requests per client IP.
	RequestsPerMinute int
	Now               func() time.Time
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.HouseholdService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:           addr,
			Handler:        log.Middleware(logger)(log.RequestIDMiddleware(assignRequestID)(mux)),
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 16,
		},
		svc:         svc,
		rateLimiter: newRateLimiter(opts.RequestsPerMinute),
		metrics:     &securityMetrics{},
		logger:      logger,
		sl:          log.NewStructuredLogger(logger),
		now:         opts.Now,
		startedAt:   opts.Now(),
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/snapshot", s.withSecurityHeaders(s.handleSnapshot))
	mux.HandleFunc("/basics", s.withSecurityHeaders(s.handleBasics))
	mux.HandleFunc("/policy", s.withSecurityHeaders(s.handlePolicy))
	mux.HandleFunc("/occupants", s.withSecurityHeaders(s.handleOccupants))
	mux.HandleFunc("/charges", s.withSecurityHeaders(s.handleCharges))
	mux.HandleFunc("/charges/quick", s.withSecurityHeaders(s.handleQuickCharges))
	mux.HandleFunc("/calculation", s.withSecurityHeaders(s.handleCalculation))
	mux.HandleFunc("/report", s.withSecurityHeaders(s.handleReport))
	mux.HandleFunc("/save", s.withSecurityHeaders(s.handleSave))
	mux.HandleFunc("/clear", s.withSecurityHeaders(s.handleClear))
	mux.HandleFunc("/statements", s.withSecurityHeaders(s.handleStatements))
	mux.HandleFunc("/", s.withSecurityHeaders(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such endpoint").Write(w)
	}))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		atomic.AddInt64(&s.requests, 1)

		clientIP := extractClientIP(r)
		ctx := r.Context()
		logger := log.FromContext(ctx)
		sl := log.NewStructuredLogger(logger)

		sl.LogHTTPStart(ctx, r, clientIP)

		if reason := detectSuspiciousRequest(r, s.metrics); reason != "" {
			logger.WarnContext(ctx, "Suspicious request",
				log.FieldComponent, log.ComponentSecurity,
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path,
				"reason", reason)
		}

		setSecurityHeaders(w)

		// Only requests that change state are rate limited
		if r.Method != http.MethodGet && r.Method != http.MethodHead && !s.rateLimiter.allow(clientIP, s.metrics) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldComponent, log.ComponentRateLimit,
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method)
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").
				Header("Retry-After", "60").
				Write(w)
			sl.LogHTTPEnd(ctx, r, http.StatusTooManyRequests, time.Since(start).Milliseconds(), clientIP)
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		sl.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

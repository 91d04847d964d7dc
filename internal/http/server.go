// Package http is the JSON API surface: user provisioning, the bank link
// flow, budget config, and report generation.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"budgeteer/internal/cache"
	"budgeteer/internal/core"
	applog "budgeteer/internal/log"
	"budgeteer/internal/services"
	"budgeteer/internal/storage"
)

// BudgetService is the service surface the handlers need.
type BudgetService interface {
	CreateUser(ctx context.Context, email, displayName string) (storage.User, error)
	CreateLinkToken(ctx context.Context, userID string) (string, error)
	ExchangePublicToken(ctx context.Context, userID, publicToken string) error
	GetBudgetConfig(ctx context.Context, userID string) (core.BudgetConfig, error)
	UpdateBudgetConfig(ctx context.Context, userID string, cfg core.BudgetConfig) (core.BudgetConfig, error)
	RebalanceBudget(ctx context.Context, userID string, bucket core.BucketType, percent int) (core.BudgetConfig, error)
	GenerateReport(ctx context.Context, userID string) (*services.ReportResult, error)
	GetReport(ctx context.Context, userID string, year, month int) (storage.ReportSnapshot, error)
}

type Server struct {
	http.Server
	service     BudgetService
	rateLimiter *rateLimiter
	metrics     *securityMetrics

	// Stored snapshots are cheap to rebuild but hot on dashboard loads.
	reportCache *cache.LRUCache[storage.ReportSnapshot]

	cacheManager *cache.Manager
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, service BudgetService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		service:      service,
		rateLimiter:  newRateLimiter(),
		metrics:      &securityMetrics{},
		reportCache:  cache.NewLRUCache[storage.ReportSnapshot](200, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.reportCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/users", s.withSecurityHeaders(s.handleCreateUser))
	mux.HandleFunc("/link/token", s.withSecurityHeaders(s.handleLinkToken))
	mux.HandleFunc("/link/exchange", s.withSecurityHeaders(s.handleLinkExchange))
	mux.HandleFunc("/budget/config", s.withSecurityHeaders(s.handleBudgetConfig))
	mux.HandleFunc("/budget/report", s.withSecurityHeaders(s.handleGenerateReport))
	mux.HandleFunc("/budget", s.withSecurityHeaders(s.handleGetReport))

	return s
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging to a handler.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r, s.metrics)
		requestID := uuid.NewString()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		fields := applog.NewFields().
			WithComponent(applog.ComponentHTTP).
			WithRequestID(requestID).
			WithHTTPRequest(r.Method, r.URL.Path)
		fields[applog.FieldClientIP] = clientIP

		if detectSuspiciousRequest(r, s.metrics) {
			slog.WarnContext(ctx, "Suspicious request", fields.ToSlice()...)
		}

		slog.InfoContext(ctx, "Request started", fields.ToSlice()...)

		// Mutating requests are rate limited per client
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP, s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded", fields.ToSlice()...)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded. Please try again later.")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			fields.WithHTTPResponse(rw.statusCode, duration.Milliseconds()).ToSlice()...)
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func reportCacheKey(userID string, year, month int) string {
	return fmt.Sprintf("%s/%04d-%02d", userID, year, month)
}

package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"expensetracker/internal/auth"
	"expensetracker/internal/log"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
	"expensetracker/internal/services"
)

// Pinger reports whether a dependency is ready to serve traffic.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups everything the handlers call into.
type Services struct {
	Auth          *auth.Service
	Expenses      *services.ExpenseService
	Budget        *services.BudgetService
	Profile       *services.ProfileService
	Recurring     *services.RecurringService
	Reports       *services.ReportService
	Notifications *services.NotificationService
	// Ready backs /readyz; nil means always ready.
	Ready Pinger
}

// Options tunes the middleware chain.
type Options struct {
	RateLimitPerMinute int
	CORSOrigins        string
	Version            string
}

// Server is the JSON API.
type Server struct {
	http.Server

	svc     Services
	opts    Options
	logger  *log.Logger
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
	detect  *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Server{
		svc:     svc,
		opts:    opts,
		logger:  logger.WithComponent(log.ComponentHTTP),
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detect:  security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(s.detect.ExtractClientIP, logger)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.Handle("GET /api/auth/me", s.protected(s.handleMe))

	mux.Handle("GET /api/profile", s.protected(s.handleGetProfile))
	mux.Handle("PUT /api/profile", s.protected(s.handleUpdateProfile))
	mux.Handle("PUT /api/profile/password", s.protected(s.handleChangePassword))

	mux.Handle("GET /api/expenses", s.protected(s.handleListExpenses))
	mux.Handle("POST /api/expenses", s.protected(s.handleCreateExpense))
	mux.Handle("GET /api/expenses/{id}", s.protected(s.handleGetExpense))
	mux.Handle("PUT /api/expenses/{id}", s.protected(s.handleUpdateExpense))
	mux.Handle("DELETE /api/expenses/{id}", s.protected(s.handleDeleteExpense))

	mux.Handle("GET /api/budget", s.protected(s.handleGetBudget))
	mux.Handle("PUT /api/budget", s.protected(s.handleUpdateBudget))

	mux.Handle("GET /api/recurring", s.protected(s.handleListRecurring))
	mux.Handle("POST /api/recurring", s.protected(s.handleCreateRecurring))
	mux.Handle("GET /api/recurring/{id}", s.protected(s.handleGetRecurring))
	mux.Handle("PUT /api/recurring/{id}", s.protected(s.handleUpdateRecurring))
	mux.Handle("DELETE /api/recurring/{id}", s.protected(s.handleDeleteRecurring))
	mux.Handle("POST /api/recurring/{id}/pause", s.protected(s.handleSetRecurringActive(false)))
	mux.Handle("POST /api/recurring/{id}/resume", s.protected(s.handleSetRecurringActive(true)))

	mux.Handle("GET /api/reports/monthly", s.protected(s.handleMonthlyReport))
	mux.Handle("GET /api/reports/trend", s.protected(s.handleTrendReport))
	mux.Handle("GET /api/reports/summary", s.protected(s.handleSummaryReport))

	mux.Handle("GET /api/notifications", s.protected(s.handleListNotifications))
	mux.Handle("POST /api/notifications/read-all", s.protected(s.handleMarkAllNotificationsRead))
	mux.Handle("POST /api/notifications/{id}/read", s.protected(s.handleMarkNotificationRead))

	// Outermost first: every response carries a request id and the security
	// headers, including rate-limit rejections and CORS preflights.
	return chain(mux,
		s.tracer.Middleware,
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
		s.detect.Middleware,
		security.CORSMiddleware(security.DefaultCORSConfig(s.opts.CORSOrigins)),
		s.limiter.Middleware(s.detect.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(),
				"Rate limit exceeded",
				log.FieldClientIP, s.detect.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			TooManyRequestsError().Write(w, r)
		}),
	)
}

// chain wraps h so that the first middleware runs first.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return auth.Middleware(s.svc.Auth.Tokens())(h)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics exposes request counters for the startup/shutdown logs.
func (s *Server) Metrics() (trace.Metrics, ratelimit.Metrics, security.DetectionMetrics) {
	return s.tracer.GetMetrics(), s.limiter.GetMetrics(), s.detect.GetMetrics()
}

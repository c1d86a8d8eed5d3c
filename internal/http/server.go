// Package http serves the transactions, analytics and chat JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/agent"
	"fintrack/internal/analytics"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
)

const sessionsCacheKey = "sessions"

// TransactionService is the part of services.TransactionService the API uses.
type TransactionService interface {
	List(ctx context.Context, userID *int64) ([]core.Transaction, error)
	Create(ctx context.Context, in core.NewTransaction) (core.Transaction, error)
	Delete(ctx context.Context, id int64) error
	Summary(ctx context.Context, userID *int64) (analytics.Summary, error)
	Breakdown(ctx context.Context, userID *int64, t core.TransactionType) ([]analytics.CategoryShare, error)
	Ping(ctx context.Context) error
}

// ChatClient is the part of agent.Client the API uses.
type ChatClient interface {
	Stream(ctx context.Context, sessionID, text string, onUpdate func(agent.Message)) (agent.Message, error)
	ListSessions(ctx context.Context) ([]agent.Session, error)
	SessionEvents(ctx context.Context, sessionID string) ([]agent.Event, error)
}

// Options configures NewServer. Zero values get defaults.
type Options struct {
	Addr        string
	AppName     string
	ChatTimeout time.Duration
	Logger      *applog.Logger
	// RequestsPerMinute limits POST and DELETE per client IP.
	RequestsPerMinute int
	SessionsCacheTTL  time.Duration
}

type Server struct {
	http.Server
	svc    TransactionService
	chat   ChatClient
	logger *applog.Logger

	appName     string
	chatTimeout time.Duration

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	cacheManager  *cache.Manager
	sessionsCache *cache.LRUCache[[]agent.Session]

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. chat may be nil, in which case the chat routes answer 503.
func NewServer(opts Options, svc TransactionService, chat ChatClient) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.ChatTimeout <= 0 {
		opts.ChatTimeout = 2 * time.Minute
	}
	if opts.SessionsCacheTTL <= 0 {
		opts.SessionsCacheTTL = 30 * time.Second
	}
	if opts.AppName == "" {
		opts.AppName = "fintrack"
	}

	logger := opts.Logger.WithComponent(applog.ComponentHTTP)
	detector := security.NewDetector()

	s := &Server{
		svc:              svc,
		chat:             chat,
		logger:           logger,
		appName:          opts.AppName,
		chatTimeout:      opts.ChatTimeout,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(opts.Logger, detector.ExtractClientIP),
		cacheManager:     cache.NewManager(opts.Logger.WithComponent(applog.ComponentCache).Slog()),
		sessionsCache:    cache.NewLRUCache[[]agent.Session](16, opts.SessionsCacheTTL),
		appMetrics:       newAppMetrics(),
	}
	s.cacheManager.Register(s.sessionsCache)
	s.cacheManager.StartCleanup(5 * time.Minute)

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/v1/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/v1/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/v1/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/v1/categories", s.handleCategories)
	mux.HandleFunc("GET /api/v1/analytics/summary", s.handleSummary)
	mux.HandleFunc("GET /api/v1/analytics/categories", s.handleCategoryBreakdown)

	mux.HandleFunc("POST /api/v1/chat", s.handleChat)
	mux.HandleFunc("GET /api/v1/chat/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/v1/chat/sessions/{id}", s.handleSessionTranscript)

	mux.HandleFunc("/", s.handleNotFound)
}

// middleware wraps the mux: trace runs first so every later layer logs
// with the request id.
func (s *Server) middleware(next http.Handler) http.Handler {
	h := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, http.MethodPost, http.MethodDelete)(next)
	h = s.securityDetector.Middleware(h)
	h = security.CORS(security.DefaultCORSConfig())(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	return s.traceMiddleware.Middleware(h)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

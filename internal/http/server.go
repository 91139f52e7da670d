// Package http exposes the chatbot and gamification API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finchat/internal/core"
	"finchat/internal/log"
	"finchat/internal/services"
)

// ExchangeReader serves the conversation history endpoint.
type ExchangeReader interface {
	RecentExchanges(ctx context.Context, userID string, limit int) ([]core.ChatExchange, error)
}

// Config carries the server wiring.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	// TrustedProxies lists CIDRs allowed to set forwarding headers.
	// Empty means loopback and private ranges.
	TrustedProxies []string
	// AllowedOrigins lists origins granted CORS access. Empty means the
	// common local frontend dev servers.
	AllowedOrigins []string
	// LLMConfigured switches /readyz between full and fallback-only mode.
	LLMConfigured bool
	// ReadyCheck probes storage; nil means always ready.
	ReadyCheck func(ctx context.Context) error
}

var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

type Server struct {
	http.Server

	chat    *services.ChatService
	game    *services.GameService
	ledger  *services.LedgerService
	history ExchangeReader

	cfg          Config
	rateLimiter  *rateLimiter
	proxies      *proxyFilter
	origins      map[string]bool
	metrics      *securityMetrics
	logger       *log.Logger
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(cfg Config, chat *services.ChatService, game *services.GameService, ledger *services.LedgerService, history ExchangeReader, logger *log.Logger) (*Server, error) {
	proxies, err := newProxyFilter(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	allowed := cfg.AllowedOrigins
	if len(allowed) == 0 {
		allowed = defaultAllowedOrigins
	}
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		origins[o] = true
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    cfg.Addr,
			Handler: mux,
		},
		chat:        chat,
		game:        game,
		ledger:      ledger,
		history:     history,
		cfg:         cfg,
		rateLimiter: newRateLimiter(cfg.RateLimitPerMinute),
		proxies:     proxies,
		origins:     origins,
		metrics:     &securityMetrics{},
		logger:      logger,
		started:     time.Now(),
	}

	mux.HandleFunc("OPTIONS /", s.handlePreflight)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("POST /chatbot", s.withMiddleware(s.handleChatbot))
	mux.HandleFunc("GET /gamification/{user_id}", s.withMiddleware(s.handleGamificationState))
	mux.HandleFunc("POST /gamification/events", s.withMiddleware(s.handleXPEvent))
	mux.HandleFunc("POST /users", s.withMiddleware(s.handleCreateUser))
	mux.HandleFunc("POST /transactions", s.withMiddleware(s.handleCreateTransaction))
	mux.HandleFunc("GET /users/{user_id}/exchanges", s.withMiddleware(s.handleExchangeHistory))

	return s, nil
}

// applyCORS sets cross-origin headers when the request's Origin is
// allowed. Returns whether the origin was granted.
func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || !s.origins[origin] {
		return false
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Add("Vary", "Origin")
	return true
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	if s.applyCORS(w, r) {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "600")
	}
	w.WriteHeader(http.StatusNoContent)
}

// Shutdown gracefully shuts down the server and cleanup routines.
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

package web

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/coinsight/crypto_screener/internal/domain"
	"github.com/coinsight/crypto_screener/internal/infrastructure/backend"
	"github.com/coinsight/crypto_screener/internal/usecase"
)

type Server struct {
	router  *http.ServeMux
	server  *http.Server
	backend *backend.Client
	cache   *usecase.ScanCache
	repo    domain.StateRepository
	hub     *Hub
	logger  *zap.Logger
}

func NewServer(
	port int,
	backendClient *backend.Client,
	cache *usecase.ScanCache,
	repo domain.StateRepository,
	hub *Hub,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:  http.NewServeMux(),
		backend: backendClient,
		cache:   cache,
		repo:    repo,
		hub:     hub,
		logger:  logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: Recover(RequireAuth(s.router), logger),
	}
	return s
}

func (s *Server) routes() {
	// Crypto proxy surface
	s.router.HandleFunc("GET /api/crypto/scan", s.handleScan)
	s.router.HandleFunc("GET /api/crypto/top5", s.handleTop5)
	s.router.HandleFunc("GET /api/crypto/coin/{id}/history", s.handleCoinHistory)
	s.router.HandleFunc("GET /api/crypto/coin/{id}/history/{$}", s.handleCoinHistory)

	// Cached views, served without an upstream round trip
	s.router.HandleFunc("GET /api/crypto/scan/cached", s.handleCachedScan)

	// Auth
	s.router.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.router.HandleFunc("POST /api/auth/logout", s.handleLogout)

	// Client state contract
	s.router.HandleFunc("GET /api/state/theme", s.handleGetTheme)
	s.router.HandleFunc("PUT /api/state/theme", s.handlePutTheme)

	// Live dashboard events
	s.router.HandleFunc("GET /api/stream", s.handleStream)

	// Page shell; the SPA bundle is built and served separately
	s.router.HandleFunc("GET /", s.handlePage)
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the full middleware-wrapped handler for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

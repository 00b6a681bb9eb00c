package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jjudge-oj/accounts/config"
	"github.com/jjudge-oj/accounts/internal/handlers"
	"github.com/jjudge-oj/accounts/internal/logging"
	"github.com/jjudge-oj/accounts/internal/sessions"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	accounts   *Accounts
	sessions   sessions.Store
	logger     *zap.Logger
}

// New constructs a Server with its backends, middleware and routes.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Session.Secret) == "" {
		return nil, errors.New("SESSION_SECRET is required")
	}

	accounts, err := OpenAccounts(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	sessionStore, err := openSessionStore(ctx, cfg)
	if err != nil {
		_ = accounts.Close()
		return nil, err
	}

	manager := sessions.NewManager(sessionStore, cfg.Session)
	accountsHandler := handlers.NewAccountsHandler(accounts.Users, manager, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	handlers.AccountsRouter(router, accountsHandler)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		accounts:   accounts,
		sessions:   sessionStore,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if closeErr := s.sessions.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	if closeErr := s.accounts.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}

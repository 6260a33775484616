// Package api assembles the HTTP surface: handlers, middleware, routing and
// the server lifecycle.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/starlynx/utility-ledger/internal/api/handler"
	"github.com/starlynx/utility-ledger/internal/config"
	dmongo "github.com/starlynx/utility-ledger/internal/data/mongo"
	"github.com/starlynx/utility-ledger/internal/domain/payment"
	"github.com/starlynx/utility-ledger/internal/engine"
	"github.com/starlynx/utility-ledger/internal/recon"
)

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	httpRouter *gin.Engine
}

// NewServer creates and configures a new HTTP server with the given services
func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	ledgerEngine *engine.Service,
	tracker *recon.Tracker,
	reconciler *recon.Reconciler,
	poller *recon.Poller,
	intentRepo payment.IntentRepository,
	archive dmongo.CallbackArchive,
) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	accountHandler := handler.NewAccountHandler(log, ledgerEngine)
	transactionHandler := handler.NewTransactionHandler(log, ledgerEngine)
	paymentHandler := handler.NewPaymentHandler(log, tracker, reconciler, poller, intentRepo, archive)

	setupRouter(log, httpRouter, accountHandler, transactionHandler, paymentHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server with a timeout
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.httpServer.WriteTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}

	return nil
}

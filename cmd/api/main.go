package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/starlynx/utility-ledger/internal/api"
	"github.com/starlynx/utility-ledger/internal/config"
	dmongo "github.com/starlynx/utility-ledger/internal/data/mongo"
	"github.com/starlynx/utility-ledger/internal/data/postgres"
	"github.com/starlynx/utility-ledger/internal/engine"
	"github.com/starlynx/utility-ledger/internal/logger"
	"github.com/starlynx/utility-ledger/internal/payment/billing"
	"github.com/starlynx/utility-ledger/internal/payment/provider"
	"github.com/starlynx/utility-ledger/internal/platform/messaging"
	"github.com/starlynx/utility-ledger/internal/platform/persistence"
	"github.com/starlynx/utility-ledger/internal/recon"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize PostgreSQL (runs migrations)
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	// The callback archive is optional; it only connects when a URI is set
	var mongoDB *persistence.MongoDB
	var archive dmongo.CallbackArchive
	if cfg.MongoDB.URI != "" {
		mongoDB, err = persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
		if err != nil {
			log.Error("Failed to initialize MongoDB", "error", err)
			os.Exit(1)
		}
		archive = dmongo.NewCallbackArchiveRepository(log, mongoDB.Database())
	} else {
		log.Info("Callback archive disabled (no MONGO_URI configured)")
	}

	// The audit producer is nil-safe: disabled when no topic is configured
	auditProducer, err := messaging.NewAuditProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize audit producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(log, postgresDB)
	ledgerRepo := postgres.NewLedgerRepository(log, postgresDB)
	intentRepo := postgres.NewIntentRepository(log, postgresDB)
	forwardingRepo := postgres.NewForwardingRepository(log, postgresDB)

	// Initialize the ledger engine
	ledgerEngine := engine.NewService(postgresDB, accountRepo, ledgerRepo, log)

	// Initialize the reconciliation side: every intent and forwarding-record
	// mutation goes through one serial writer
	serialWriter, err := recon.NewSerialWriter(log)
	if err != nil {
		log.Error("Failed to initialize serial writer", "error", err)
		os.Exit(1)
	}

	tokenSource := provider.NewOAuthTokenSource(&cfg.Provider)
	pushClient := provider.NewHTTPClient(log, &cfg.Provider, tokenSource)
	billingClient := billing.NewHTTPClient(log, &cfg.Billing)

	tracker := recon.NewTracker(pushClient, intentRepo, serialWriter, log)
	forwarder := recon.NewForwarder(billingClient, forwardingRepo, serialWriter, &cfg.Billing, log)
	reconciler := recon.NewReconciler(intentRepo, forwarder, serialWriter, archive, auditProducer, log)
	poller := recon.NewPoller(intentRepo, &cfg.Poller, log)

	// Initialize REST server
	server := api.NewServer(log, cfg, ledgerEngine, tracker, reconciler, poller, intentRepo, archive)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Stop accepting requests first, then drain the writer
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	serialWriter.Shutdown()

	if err = auditProducer.Close(); err != nil {
		log.Error("Error closing audit producer", "error", err)
	}

	if mongoDB != nil {
		if err = mongoDB.Close(shutdownCtx); err != nil {
			log.Error("Error closing MongoDB connection", "error", err)
		}
	}

	postgresDB.Close()

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	} else {
		log.Info("Server shutdown completed successfully")
	}
}

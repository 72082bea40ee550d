package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kulina-reconciliation/internal/api"
	"github.com/kulina-reconciliation/internal/api/service"
	"github.com/kulina-reconciliation/internal/config"
	"github.com/kulina-reconciliation/internal/data/mongo"
	"github.com/kulina-reconciliation/internal/data/postgres"
	"github.com/kulina-reconciliation/internal/engine/fees"
	"github.com/kulina-reconciliation/internal/engine/importguard"
	"github.com/kulina-reconciliation/internal/engine/matching"
	"github.com/kulina-reconciliation/internal/engine/orchestrator"
	"github.com/kulina-reconciliation/internal/engine/review"
	"github.com/kulina-reconciliation/internal/logger"
	"github.com/kulina-reconciliation/internal/platform/messaging/producers"
	"github.com/kulina-reconciliation/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_server")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer for run requests
	runRequestProducer, err := producers.NewRunRequestMessageProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize run request Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	settlementRepo := postgres.NewSettlementRepository(log, postgresDB)
	statementRepo := postgres.NewStatementRepository(log, postgresDB)
	feeRepo := postgres.NewFeeRepository(log, postgresDB)
	runRepo := postgres.NewRunRepository(log, postgresDB)
	auditRepo := mongo.NewAuditRepository(log, mongoDB.Database())

	// Initialize engines
	importService := importguard.NewService(log, settlementRepo, statementRepo)
	matchingEngine := matching.NewEngine(
		log,
		matching.DefaultRules(cfg.Reconciliation.MatchWindowDays, cfg.Reconciliation.FeeTolerance),
		settlementRepo,
		statementRepo,
		cfg.Reconciliation.MatchWindowDays,
		cfg.Reconciliation.AutoApproveConfidence,
	)
	feeEngine := fees.NewEngine(log, settlementRepo, feeRepo, cfg.Reconciliation.FeeTolerance)
	reviewService, err := review.NewService(log, settlementRepo, statementRepo, feeRepo, auditRepo)
	if err != nil {
		log.Error("Failed to initialize review service", "error", err)
		os.Exit(1)
	}
	orchestratorService := orchestrator.NewService(
		log,
		orchestrator.Config{
			PoolSize:    cfg.WorkerPool.Size,
			ItemTimeout: cfg.Reconciliation.ItemTimeout,
		},
		runRepo,
		settlementRepo,
		matchingEngine,
		feeEngine,
	)

	// Initialize services
	runService := service.NewRunService(log, orchestratorService, runRequestProducer)
	reportService := service.NewReportService(log, settlementRepo, statementRepo, feeRepo)

	// Initialize REST server
	server := api.NewServer(log, cfg, importService, runService, reviewService, feeEngine, reportService)
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

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = runRequestProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}

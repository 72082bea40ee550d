package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kulina-reconciliation/internal/config"
	"github.com/kulina-reconciliation/internal/data/postgres"
	"github.com/kulina-reconciliation/internal/engine/fees"
	"github.com/kulina-reconciliation/internal/engine/matching"
	"github.com/kulina-reconciliation/internal/engine/orchestrator"
	"github.com/kulina-reconciliation/internal/logger"
	"github.com/kulina-reconciliation/internal/platform/messaging/consumers"
	"github.com/kulina-reconciliation/internal/platform/messaging/producers"
	"github.com/kulina-reconciliation/internal/platform/persistence"
	"github.com/kulina-reconciliation/internal/processor"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("run_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Run Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	settlementRepo := postgres.NewSettlementRepository(log, postgresDB)
	statementRepo := postgres.NewStatementRepository(log, postgresDB)
	feeRepo := postgres.NewFeeRepository(log, postgresDB)
	runRepo := postgres.NewRunRepository(log, postgresDB)

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer might be nil if DLQTopic is not configured. Handler is nil-safe.

	// Initialize engines
	matchingEngine := matching.NewEngine(
		log,
		matching.DefaultRules(cfg.Reconciliation.MatchWindowDays, cfg.Reconciliation.FeeTolerance),
		settlementRepo,
		statementRepo,
		cfg.Reconciliation.MatchWindowDays,
		cfg.Reconciliation.AutoApproveConfidence,
	)
	feeEngine := fees.NewEngine(log, settlementRepo, feeRepo, cfg.Reconciliation.FeeTolerance)
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

	// Initialize run event handler
	runEventHandler := processor.NewRunEventHandler(
		log,
		orchestratorService,
		dlqProducer,
	)

	// Create error channel for service errors
	errChan := make(chan error, 1)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := kafkaConsumer.Run(appCtx, runEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close DLQ Kafka producer
	if dlqProducer != nil { // dlqProducer can be nil if DLQTopic was not configured
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	// Close Kafka consumer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Final status
	if serviceErr != nil {
		log.Error("Run Processor shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Run Processor shutdown completed with errors")
	} else {
		log.Info("Run Processor shutdown completed successfully")
	}
}

// Package main provides the entry point for the paper parsing service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/helixir/paper-parsing-service/internal/config"
	"github.com/helixir/paper-parsing-service/internal/database"
	"github.com/helixir/paper-parsing-service/internal/events"
	"github.com/helixir/paper-parsing-service/internal/grobid"
	"github.com/helixir/paper-parsing-service/internal/llm"
	"github.com/helixir/paper-parsing-service/internal/observability"
	"github.com/helixir/paper-parsing-service/internal/pipeline"
	"github.com/helixir/paper-parsing-service/internal/repository"
	httpserver "github.com/helixir/paper-parsing-service/internal/server/http"
	"github.com/helixir/paper-parsing-service/internal/tables"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("paper-parsing-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Metrics registry.
	metrics := observability.NewMetrics("paperparse")

	// Repository.
	paperRepo := repository.NewPgPaperRepository(db)

	// Structure service client. A static token wins when provisioned;
	// otherwise identity tokens come from the compute metadata server.
	var tokens grobid.TokenSource
	if cfg.Grobid.StaticToken != "" {
		tokens = grobid.StaticTokenSource(cfg.Grobid.StaticToken)
		logger.Info().Msg("using static structure-service credential")
	} else {
		tokens = grobid.NewMetadataTokenSource("")
		logger.Info().Msg("using metadata-server structure-service credential")
	}
	structureClient := grobid.NewClient(grobid.Config{
		BaseURL:   cfg.Grobid.BaseURL,
		Timeout:   cfg.Grobid.Timeout,
		RateLimit: cfg.Grobid.RateLimit,
	}, tokens, logger)

	// Table extraction.
	tabula := tables.NewTabulaExtractor(tables.TabulaConfig{
		JavaPath:    cfg.Tabula.JavaPath,
		JarPath:     cfg.Tabula.JarPath,
		PassTimeout: cfg.Tabula.PassTimeout,
	}, logger)
	tableSource := tables.NewAggregator(tabula, logger)

	// LLM post-processing.
	llmClient := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:     cfg.LLM.OpenAI.APIKey,
		Model:      cfg.LLM.OpenAI.Model,
		BaseURL:    cfg.LLM.OpenAI.BaseURL,
		Timeout:    cfg.LLM.Timeout,
		MaxRetries: cfg.LLM.MaxRetries,
	})
	gate := llm.NewReferenceGate(llmClient, logger)
	summarizer := llm.NewSummarizer(llmClient, logger)

	// Parse pipeline.
	parser := pipeline.NewService(structureClient, tableSource, gate, summarizer, logger)

	// Parse event publisher.
	var publisher events.Publisher
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(events.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, logger)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka publisher enabled")
	} else {
		publisher = events.NewNoopPublisher()
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close event publisher")
		}
	}()

	// HTTP server.
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		UploadDir:       cfg.Upload.Dir,
		UploadMaxBytes:  cfg.Upload.MaxBytes,
		MetricsPath:     metricsPath,
	}

	httpSrv := httpserver.NewServer(
		httpCfg,
		paperRepo,
		parser,
		publisher,
		db,
		metrics,
		logger,
		httpserver.NewAllowListMiddleware(cfg.Auth.AllowedEmails),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().
		Str("http_address", httpCfg.Address).
		Msg("paper-parsing-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down paper-parsing-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("paper-parsing-service shutdown complete")
	return nil
}

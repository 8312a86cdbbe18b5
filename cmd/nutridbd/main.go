package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fastcalorie/nutridb/internal/async"
	"github.com/fastcalorie/nutridb/internal/common"
	"github.com/fastcalorie/nutridb/internal/export"
	"github.com/fastcalorie/nutridb/internal/ingest"
	"github.com/fastcalorie/nutridb/internal/llm/openai"
	"github.com/fastcalorie/nutridb/internal/pipeline"
	"github.com/fastcalorie/nutridb/internal/repository"
	"github.com/fastcalorie/nutridb/internal/review"
	"github.com/fastcalorie/nutridb/internal/server"
	"github.com/fastcalorie/nutridb/internal/split"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer repository.Close(pool, logger)

	if err := repository.HealthCheck(ctx, pool, 3*time.Second, logger); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database health OK")

	jobs := repository.NewJobRepository(pool, logger)
	restaurants := repository.NewRestaurantRepository(pool, logger)
	menuItems := repository.NewMenuItemRepository(pool, logger)
	audit := repository.NewAuditRepository(pool, logger)

	splitCfg := split.Config{
		PdfseparateBin: cfg.Ingest.PdfseparateBin,
		PdftotextBin:   cfg.Ingest.PdftotextBin,
		ChunkSize:      cfg.Ingest.ChunkSize,
	}
	runner := split.NewExecRunner()
	var splitter split.Splitter
	switch cfg.Ingest.SplitMode {
	case common.SplitModeText:
		splitter = split.NewTextSplitter(splitCfg, runner, logger)
	default:
		splitter = split.NewPageSplitter(splitCfg, runner, logger)
	}

	extractor := openai.NewClient(openai.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		Vision:      cfg.LLM.Vision,
		ArtifactDir: cfg.Ingest.ArtifactDir,
	}, logger)

	orch := pipeline.NewOrchestrator(extractor, cfg.Ingest.Concurrency, logger)
	driver := pipeline.NewDriver(jobs, restaurants, splitter, orch, logger)

	queue := async.NewPipelineQueue(driver, logger,
		async.WithWorkers(cfg.Ingest.Workers),
		async.WithQueueSize(cfg.Ingest.QueueSize),
		async.WithProcessTimeout(cfg.Ingest.ProcessTimeout),
	)

	if err := os.MkdirAll(cfg.Server.UploadDir, 0o755); err != nil {
		logger.Error("upload dir create failed", "dir", cfg.Server.UploadDir, "error", err)
		os.Exit(1)
	}

	intake := ingest.NewService(restaurants, jobs, queue, cfg.Server.UploadDir, logger)
	reviewSvc := review.NewService(jobs, restaurants, menuItems, audit, logger)
	exportSvc := export.NewService(restaurants, menuItems, logger)

	srv := server.New(cfg.Server.Addr, server.Deps{
		Intake: intake,
		Review: reviewSvc,
		Export: exportSvc,
		Jobs:   jobs,
		Health: func(ctx context.Context) error {
			return repository.HealthCheck(ctx, pool, 3*time.Second, logger)
		},
		Logger: logger,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}

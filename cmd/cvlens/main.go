package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cvlens/cvlens/internal/chunker"
	"github.com/cvlens/cvlens/internal/config"
	dbRedis "github.com/cvlens/cvlens/internal/db/redis"
	"github.com/cvlens/cvlens/internal/extract"
	logpkg "github.com/cvlens/cvlens/internal/logger"
	"github.com/cvlens/cvlens/internal/metrics"
	"github.com/cvlens/cvlens/internal/repository/sections"
	"github.com/cvlens/cvlens/internal/session"
	"github.com/cvlens/cvlens/internal/transport/httpapi"
	openaiTransport "github.com/cvlens/cvlens/internal/transport/openai"
	answeruc "github.com/cvlens/cvlens/internal/usecase/answer"
	ingestuc "github.com/cvlens/cvlens/internal/usecase/ingest"
	queryuc "github.com/cvlens/cvlens/internal/usecase/query"
	"github.com/cvlens/cvlens/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting cvlens API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register provider metrics explicitly (no init())
	metrics.RegisterProviderMetrics()

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})
	completer := openaiTransport.NewCompleter(&openaiTransport.CompleterConfig{
		APIKey:      cfg.Model.APIKey,
		BaseURL:     cfg.Model.BaseURL,
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
		Provider:    "openai",
		Logger:      logger,
	})
	logger.Info("Providers created",
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("chat_model", cfg.Model.Name),
	)

	repo := sections.New(store, cfg.Storage.KeyPrefix, cfg.Retrieval.Collection)
	registry := session.NewRegistry()
	extractor := extract.NewPlainText()

	chunk := chunker.New(
		completer,
		time.Duration(cfg.Model.ChunkTimeoutSec)*time.Second,
		metrics.ChunkingFallbacksTotal,
		logger,
	)

	embedTimeout := time.Duration(cfg.Embedding.TimeoutSec) * time.Second
	ingestSvc := ingestuc.New(
		extractor, chunk, embedder, repo, registry,
		cfg.Embedding.Dimensions, embedTimeout, metrics.SectionsIndexedTotal, logger,
	)
	querySvc := queryuc.New(repo, registry, embedder, cfg.Retrieval.TopK, embedTimeout, logger)
	answerSvc := answeruc.New(
		completer,
		time.Duration(cfg.Model.AnswerTimeoutSec)*time.Second,
		logger,
	)

	server := httpapi.NewServer(
		ingestSvc, querySvc, answerSvc, extractor, registry, repo, store,
		int64(cfg.HTTP.MaxUploadMB)<<20, logger,
	)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

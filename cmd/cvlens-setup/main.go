// Command cvlens-setup creates the CV section vector index. Run once against
// a fresh store; an existing index is left untouched.
package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cvlens/cvlens/internal/config"
	"github.com/cvlens/cvlens/internal/db"
	dbRedis "github.com/cvlens/cvlens/internal/db/redis"
	logpkg "github.com/cvlens/cvlens/internal/logger"
	"github.com/cvlens/cvlens/internal/repository/sections"
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

	def, err := sections.Definition(
		cfg.Storage.KeyPrefix,
		cfg.Retrieval.Collection,
		cfg.Embedding.Dimensions,
		cfg.Retrieval.HNSWM,
		cfg.Retrieval.HNSWEFConstruct,
	)
	if err != nil {
		logger.Fatal("Invalid index definition", zap.Error(err))
	}

	if err := store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			logger.Info("Index already exists, nothing to do",
				zap.String("index", def.Name))
			return
		}
		logger.Fatal("Failed to create index", zap.Error(err))
	}

	logger.Info("Index created",
		zap.String("index", def.Name),
		zap.String("collection", cfg.Retrieval.Collection),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Int("hnsw_m", cfg.Retrieval.HNSWM),
		zap.Int("hnsw_ef_construction", cfg.Retrieval.HNSWEFConstruct),
	)
}

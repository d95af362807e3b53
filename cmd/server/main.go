package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"lifeharness/internal/autobio"
	"lifeharness/internal/distill"
	"lifeharness/internal/engine"
	"lifeharness/internal/llm"
	"lifeharness/internal/server"
	"lifeharness/internal/storage"
	"lifeharness/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}
		store, err = storage.NewPostgresStorage(dbConfig)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize model client and the interview pipeline
	client := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, logger)
	coverage := engine.NewCoverageTracker(store)
	distiller := distill.New(store, client, coverage, logger)
	eng := engine.New(store, client, distiller, coverage, logger)
	assembler := autobio.New(store, client, logger)

	// Initialize HTTP server
	srv := server.New(store, eng, assembler, server.Config{
		JWTSecret: cfg.Auth.Secret,
		TokenTTL:  time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute,
	}, logger)

	router := srv.Router(cfg.Server.CORSOrigins)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Starting server", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

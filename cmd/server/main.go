package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LucsL0pes/mini-gymatch/internal/classifier"
	"github.com/LucsL0pes/mini-gymatch/internal/config"
	"github.com/LucsL0pes/mini-gymatch/internal/db"
	"github.com/LucsL0pes/mini-gymatch/internal/repository"
	"github.com/LucsL0pes/mini-gymatch/internal/router"
	"github.com/LucsL0pes/mini-gymatch/internal/services"
	"github.com/LucsL0pes/mini-gymatch/internal/storage"
	"github.com/LucsL0pes/mini-gymatch/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger := utils.NewLogger(cfg.LogLevel)

	// Initialize database
	pool, err := db.NewPostgresPool(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	// Initialize object storage
	s3Storage, err := storage.NewS3Storage(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize S3 storage", "error", err)
	}

	// Initialize proof classifier
	if cfg.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, proof submissions will fall back to manual review")
	}
	proofClassifier := classifier.NewOpenAIClassifier(classifier.Config{
		APIKey:   cfg.OpenAIAPIKey,
		Model:    cfg.ProofModel,
		Endpoint: cfg.ProofEndpoint,
		Keywords: cfg.ProofKeywords,
	}, logger)

	// Initialize proof service
	proofRepo := repository.NewProofRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)
	proofService := services.NewProofService(proofRepo, s3Storage, proofClassifier, logger)

	// Setup HTTP router
	handler := router.NewRouter(proofService, profileRepo, pool, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

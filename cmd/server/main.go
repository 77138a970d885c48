package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"storeline-pos/config"
	"storeline-pos/internal/database"
	"storeline-pos/internal/database/models"
	"storeline-pos/internal/services/pos/handler"
	"storeline-pos/internal/utils"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	utils.SetJWTSecret(cfg.Auth.JWTSecret)

	db, err := database.NewConnection(cfg.DB.DSN)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := models.MigratePOSDB(db); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	redisClient := config.NewRedisClient(cfg.Redis)

	posHandler := handler.NewPOSHandler(db, redisClient, logger, cfg.Policy)
	posHandler.InvalidatePOSCaches(context.Background())

	r := newRouter(posHandler)

	logger.Info("Starting POS server", zap.String("port", cfg.HTTPPort))
	if err := r.Run(":" + cfg.HTTPPort); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

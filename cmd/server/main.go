package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/server"
	"github.com/mikeboe/deep-research/pkg/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()

	completionSvc, err := clients.NewCompletionService(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to init completion service: %v", err)
	}

	// Sessions live in Postgres when configured, in memory otherwise.
	var st store.Store
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL, database.PoolOptions{
			MaxConns:        int32(cfg.DBMaxConns),
			MinConns:        int32(cfg.DBMinConns),
			MaxConnIdleTime: cfg.DBMaxConnIdle,
		})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		st = store.NewPostgres(db)
	} else {
		slog.Warn("DATABASE_URL not set, sessions are kept in memory")
		st = store.NewMemory()
	}

	svc := server.NewService(st, completionSvc, research.Config{
		Model:         cfg.Model,
		FastModel:     cfg.FastModel,
		MaxIterations: cfg.MaxIterations,
	})
	handler := server.NewHandler(svc)

	// Web Server Setup
	r := gin.Default()

	// CORS Setup
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Allow all for dev
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Mcp-Session-Id"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Mcp-Session-Id"},
		AllowCredentials: true,
	}))

	handler.RegisterRoutes(r)

	fmt.Printf("Server starting on port %s (backend %s)\n", cfg.Port, cfg.Backend)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

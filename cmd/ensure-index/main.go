package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"songbook/internal/app"
	"songbook/internal/config"
)

func main() {
	// Load .env file for local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.NewLogger())

	ctx := context.Background()

	application, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("Failed to connect to store", "error", err)
		os.Exit(1)
	}
	defer application.Close(ctx)

	slog.Info("Ensuring song index...", "backend", application.Backend)
	start := time.Now()

	if err := application.Repository.EnsureIndex(ctx); err != nil {
		slog.Error("Failed to ensure index", "error", err)
		application.Close(ctx)
		os.Exit(1)
	}

	count, err := application.Repository.Count(ctx)
	if err != nil {
		slog.Error("Failed to count songs", "error", err)
		application.Close(ctx)
		os.Exit(1)
	}

	slog.Info("Song index ready", "backend", application.Backend, "songs", count, "duration", time.Since(start))

	fmt.Println("Index ensured!")
	fmt.Printf("Backend: %s\n", application.Backend)
	fmt.Printf("Songs: %d\n", count)
}

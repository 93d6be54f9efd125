package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transitly/api/routes"
	"transitly/internal/shared/config"
	"transitly/internal/shared/database"
	"transitly/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	appLogger := logger.New()
	logger.SetDefault(appLogger)

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Failed to close databases", "error", err)
		}
	}()

	if err := database.MigrateConstraints(db.PostgreSQL); err != nil {
		log.Fatalf("Failed to apply schema constraints: %v", err)
	}

	app, err := routes.Setup(cfg, db)
	if err != nil {
		log.Fatalf("Failed to assemble application: %v", err)
	}
	defer func() {
		if err := app.Producer.Close(); err != nil {
			appLogger.Error("Failed to close event producer", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Locks.PreloadScripts(ctx); err != nil {
		// Run() falls back to inline EVAL, so a failed preload is not fatal.
		appLogger.Warn("Failed to preload lock scripts", "error", err)
	}

	if _, err := app.Operators.SeedDefaultOperator(ctx, cfg); err != nil {
		appLogger.Error("Failed to seed default operator", "error", err)
	}

	app.Jobs.Start(ctx)
	defer app.Jobs.Stop()

	server := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        app.Engine,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("Server starting", "addr", server.Addr, "mode", cfg.GinMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Forced shutdown", "error", err)
		os.Exit(1)
	}

	appLogger.Info("Server stopped")
}

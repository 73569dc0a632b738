package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/maxviazov/experiment-service/internal/config"
	"github.com/maxviazov/experiment-service/internal/handler"
	"github.com/maxviazov/experiment-service/internal/logger"
	"github.com/maxviazov/experiment-service/internal/repository"
	"github.com/maxviazov/experiment-service/internal/repository/postgres"
	"github.com/maxviazov/experiment-service/internal/service"
	"github.com/maxviazov/experiment-service/migrations"
)

func main() {
	path := os.Getenv("APP_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("❌ Config loading failed: %v", err)
	}

	appLogger, err := logger.New(&cfg.Logger)
	if err != nil {
		log.Fatalf("❌ Logger initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := repository.New(ctx, &cfg.Postgres, &appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("❌ Postgres connection failed")
	}
	defer repo.Close()

	if cfg.Postgres.AutoMigrate {
		db := stdlib.OpenDBFromPool(repo.Pool())
		if err := migrations.Up(ctx, db); err != nil {
			appLogger.Fatal().Err(err).Msg("❌ Migrations failed")
		}
		_ = db.Close()
		appLogger.Info().Msg("Migrations applied")
	}

	experiments := service.NewExperimentService(
		postgres.NewExperimentRepository(repo.Pool()),
		postgres.NewTxManager(repo.Pool()),
		appLogger,
	)

	if cfg.Logger.Env == "prod" || cfg.Logger.Env == "staging" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), handler.RequestID(), handler.AccessLog(appLogger))
	handler.Register(engine, repo, experiments)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		appLogger.Info().Int("port", cfg.App.Port).Msg("🚀 Service started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.App.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("graceful shutdown failed")
	}
	appLogger.Info().Msg("Service stopped")
}

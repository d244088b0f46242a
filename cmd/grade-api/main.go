package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/score-analytics-api/api/swagger"
	"github.com/noah-isme/score-analytics-api/internal/app"
	"github.com/noah-isme/score-analytics-api/internal/handler"
	"github.com/noah-isme/score-analytics-api/internal/middleware"
	"github.com/noah-isme/score-analytics-api/pkg/config"
	"github.com/noah-isme/score-analytics-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/score-analytics-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/score-analytics-api/pkg/middleware/requestid"
)

// @title Score Analytics API
// @version 1.0.0
// @description Student and class performance analytics over exam scores
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.New(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to initialise dependencies", zap.Error(err))
	}
	defer container.Close()
	container.Warmup.Start(ctx)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(container.Metrics))

	var tokens middleware.TokenValidator
	if cfg.Auth.Enabled {
		tokens = container.Tokens
	}
	handler.Register(r, cfg.APIPrefix, handler.Routes{
		Analytics: handler.NewAnalyticsHandler(container.Analytics, container.Exports),
		Scores:    handler.NewScoreHandler(container.Scores, container.Imports, cfg.Import.MaxUploadBytes),
		Roster:    handler.NewRosterHandler(container.Roster),
		Health:    handler.NewHealthHandler(container.Metrics.Handler(), container.Dependencies()),
	}, tokens)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "auth", cfg.Auth.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	container.Warmup.Stop()
}

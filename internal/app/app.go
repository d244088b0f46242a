// Package app wires configuration into the repositories and services shared by
// the HTTP server and the command line tool.
package app

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/score-analytics-api/internal/analytics"
	"github.com/noah-isme/score-analytics-api/internal/handler"
	"github.com/noah-isme/score-analytics-api/internal/repository"
	"github.com/noah-isme/score-analytics-api/internal/service"
	"github.com/noah-isme/score-analytics-api/pkg/cache"
	"github.com/noah-isme/score-analytics-api/pkg/config"
	"github.com/noah-isme/score-analytics-api/pkg/database"
)

// Container holds the long-lived dependencies of one process.
type Container struct {
	DB    *sqlx.DB
	Redis *redis.Client

	Metrics   *service.MetricsService
	Analytics *service.AnalyticsService
	Warmup    *service.WarmupService
	Scores    *service.ScoreService
	Imports   *service.ImportService
	Roster    *service.RosterService
	Exports   *service.ExportService
	Tokens    *service.TokenService

	cacheRepo *repository.CacheRepository
	logger    *zap.Logger
}

// New connects to Postgres and, when enabled, Redis. A Redis failure disables
// the report cache instead of aborting start-up.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	c := &Container{DB: db, Redis: redisClient, logger: logger}
	c.build(cfg)
	return c, nil
}

func (c *Container) build(cfg *config.Config) {
	validate := validator.New()
	c.Metrics = service.NewMetricsService()

	classes := repository.NewClassRepository(c.DB)
	students := repository.NewStudentRepository(c.DB)
	exams := repository.NewExamRepository(c.DB)
	scores := repository.NewScoreRepository(c.DB)
	c.cacheRepo = repository.NewCacheRepository(c.Redis, c.logger)

	cacheSvc := service.NewCacheService(c.cacheRepo, c.Metrics, c.logger, service.CacheOptions{
		Enabled: cfg.Analytics.CacheEnabled && c.Redis != nil,
		TTL:     cfg.Analytics.CacheTTL,
	})
	engine := analytics.NewEngine(repository.NewRecordStore(students, classes, scores), c.logger)
	c.Analytics = service.NewAnalyticsService(engine, cacheSvc, c.Metrics, c.logger)
	c.Warmup = service.NewWarmupService(c.Analytics, c.Metrics, service.WarmupConfig{
		Enabled:    cfg.Analytics.WarmupEnabled && cacheSvc.Enabled(),
		Workers:    cfg.Analytics.WarmupWorkers,
		MaxRetries: cfg.Analytics.WarmupRetries,
	}, c.logger)

	c.Scores = service.NewScoreService(scores, students, exams, c.Analytics, c.Warmup, c.Metrics, validate, c.logger)
	c.Imports = service.NewImportService(classes, students, exams, scores, c.Analytics, c.Warmup, c.Metrics, validate, c.logger, cfg.Import.MaxRows)
	c.Roster = service.NewRosterService(classes, students, exams, c.Analytics, c.Warmup, validate, c.logger)
	c.Exports = service.NewExportService(c.Analytics, nil, nil, nil, c.logger)
	c.Tokens = service.NewTokenService(service.TokenConfig{
		Secret: cfg.Auth.Secret,
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.Auth.TokenTTL,
	})
}

// Dependencies lists the probes checked by the readiness endpoint.
func (c *Container) Dependencies() map[string]handler.Pinger {
	deps := map[string]handler.Pinger{"postgres": c.DB}
	if c.Redis != nil {
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error { return c.cacheRepo.Ping(ctx) })
	}
	return deps
}

// Close releases connections.
func (c *Container) Close() {
	if err := c.cacheRepo.Close(); err != nil {
		c.logger.Warn("close redis", zap.Error(err))
	}
	if err := c.DB.Close(); err != nil {
		c.logger.Warn("close postgres", zap.Error(err))
	}
}

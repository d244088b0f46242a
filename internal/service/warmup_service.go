package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/score-analytics-api/pkg/jobs"
)

const jobTypeClassWarmup = "class_report_warmup"

type classReportRefresher interface {
	RefreshClassReport(ctx context.Context, classID string) error
}

// WarmupConfig tunes the background warmup pool.
type WarmupConfig struct {
	Enabled    bool
	Workers    int
	MaxRetries int
}

// WarmupService recomputes class reports in the background after score writes.
type WarmupService struct {
	queue   *jobs.Queue
	enabled bool
	logger  *zap.Logger
}

// NewWarmupService constructs the warmup pool around the analytics refresher.
func NewWarmupService(refresher classReportRefresher, metrics *MetricsService, cfg WarmupConfig, logger *zap.Logger) *WarmupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		classID, ok := job.Payload.(string)
		if !ok {
			return errors.New("warmup payload must be a class id")
		}
		return refresher.RefreshClassReport(ctx, classID)
	}
	queue := jobs.NewQueue("analytics-warmup", handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
		OnDone: func(job jobs.Job, err error) {
			metrics.RecordWarmup(err)
		},
	})
	return &WarmupService{queue: queue, enabled: cfg.Enabled, logger: logger}
}

// Start launches the worker pool.
func (s *WarmupService) Start(ctx context.Context) {
	if s == nil || !s.enabled {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *WarmupService) Stop() {
	if s == nil || !s.enabled {
		return
	}
	s.queue.Stop()
}

// Schedule queues one warmup per class. Scheduling never fails the caller.
func (s *WarmupService) Schedule(classIDs ...string) {
	if s == nil || !s.enabled {
		return
	}
	seen := make(map[string]struct{}, len(classIDs))
	for _, classID := range classIDs {
		if classID == "" {
			continue
		}
		if _, ok := seen[classID]; ok {
			continue
		}
		seen[classID] = struct{}{}
		if _, err := s.queue.Enqueue(jobs.Job{ID: classID, Type: jobTypeClassWarmup, Payload: classID}); err != nil {
			s.logger.Warn("schedule class warmup", zap.String("class_id", classID), zap.Error(err))
		}
	}
}

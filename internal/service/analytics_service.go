package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/score-analytics-api/internal/models"
)

const (
	reportStudent = "student"
	reportClass   = "class"

	analyticsCachePattern = "analytics:*"
)

// cacheKeyEscaper percent-encodes the separator so distinct IDs never share a key.
var cacheKeyEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// ReportEngine computes analytics reports from the record store.
type ReportEngine interface {
	GetStudentReport(ctx context.Context, studentID string, subject *models.Subject) (*models.StudentAnalyticsReport, error)
	GetClassReport(ctx context.Context, classID string, subject *models.Subject) (*models.ClassAnalyticsReport, error)
}

// AnalyticsService serves analytics reports with cache integration.
//
// generation counts invalidations. A report computed under an older generation
// is returned to its caller but never written to the cache, so a read racing a
// score write cannot repopulate the cache with pre-write data.
type AnalyticsService struct {
	engine  ReportEngine
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger

	mu         sync.RWMutex
	generation uint64
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(engine ReportEngine, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{engine: engine, cache: cache, metrics: metrics, logger: logger}
}

// StudentReport returns the student report. The boolean indicates whether it originated from cache.
func (s *AnalyticsService) StudentReport(ctx context.Context, studentID string, subject *models.Subject) (*models.StudentAnalyticsReport, bool, error) {
	key := makeAnalyticsCacheKey(reportStudent, studentID, subjectKeyPart(subject))
	gen := s.currentGeneration()
	var cached models.StudentAnalyticsReport
	if s.lookup(ctx, key, &cached) {
		return &cached, true, nil
	}

	start := time.Now()
	report, err := s.engine.GetStudentReport(ctx, studentID, subject)
	if err != nil {
		return nil, false, err
	}
	s.metrics.ObserveComputation(reportStudent, time.Since(start))
	s.store(ctx, gen, key, report)
	return report, false, nil
}

// ClassReport returns the class report. The boolean indicates whether it originated from cache.
func (s *AnalyticsService) ClassReport(ctx context.Context, classID string, subject *models.Subject) (*models.ClassAnalyticsReport, bool, error) {
	key := makeAnalyticsCacheKey(reportClass, classID, subjectKeyPart(subject))
	gen := s.currentGeneration()
	var cached models.ClassAnalyticsReport
	if s.lookup(ctx, key, &cached) {
		return &cached, true, nil
	}

	report, err := s.computeClassReport(ctx, classID, subject)
	if err != nil {
		return nil, false, err
	}
	s.store(ctx, gen, key, report)
	return report, false, nil
}

// RefreshClassReport recomputes the unfiltered class report and overwrites its
// cache entry. A refresh overtaken by an invalidation is dropped; the writer
// that invalidated schedules its own.
func (s *AnalyticsService) RefreshClassReport(ctx context.Context, classID string) error {
	if !s.cache.Enabled() {
		return nil
	}
	gen := s.currentGeneration()
	report, err := s.computeClassReport(ctx, classID, nil)
	if err != nil {
		return err
	}
	return s.storeAt(ctx, gen, makeAnalyticsCacheKey(reportClass, classID), report)
}

// InvalidateReports drops every cached report and retires reports still being computed.
func (s *AnalyticsService) InvalidateReports(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.cache.Invalidate(ctx, analyticsCachePattern)
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.AnalyticsSystemMetrics {
	return s.metrics.Snapshot()
}

func (s *AnalyticsService) computeClassReport(ctx context.Context, classID string, subject *models.Subject) (*models.ClassAnalyticsReport, error) {
	start := time.Now()
	report, err := s.engine.GetClassReport(ctx, classID, subject)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveComputation(reportClass, time.Since(start))
	return report, nil
}

// lookup treats any cache failure as a miss; the report is recomputed.
func (s *AnalyticsService) lookup(ctx context.Context, key string, dest interface{}) bool {
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("analytics cache unavailable", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *AnalyticsService) store(ctx context.Context, gen uint64, key string, value interface{}) {
	if err := s.storeAt(ctx, gen, key, value); err != nil {
		s.logger.Warn("cache analytics report", zap.String("key", key), zap.Error(err))
	}
}

// storeAt writes value only while no invalidation happened since gen was read.
// The read lock keeps InvalidateReports from interleaving between check and write.
func (s *AnalyticsService) storeAt(ctx context.Context, gen uint64, key string, value interface{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.generation != gen {
		s.logger.Debug("stale analytics report not cached", zap.String("key", key))
		return nil
	}
	return s.cache.Set(ctx, key, value, 0)
}

func (s *AnalyticsService) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func subjectKeyPart(subject *models.Subject) string {
	if subject == nil {
		return ""
	}
	return string(*subject)
}

func makeAnalyticsCacheKey(parts ...string) string {
	var builder strings.Builder
	builder.Grow(len(parts) * 16)
	builder.WriteString("analytics")
	for _, part := range parts {
		if part == "" {
			continue
		}
		builder.WriteByte(':')
		builder.WriteString(cacheKeyEscaper.Replace(part))
	}
	return builder.String()
}

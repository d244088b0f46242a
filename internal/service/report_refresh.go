package service

import (
	"context"

	"go.uber.org/zap"
)

// ReportInvalidator is notified after every write that can change a report.
type ReportInvalidator interface {
	InvalidateReports(ctx context.Context) error
}

// ClassWarmer schedules background report recomputation.
type ClassWarmer interface {
	Schedule(classIDs ...string)
}

// reportRefresh drops cached reports and queues warmups for the touched classes.
type reportRefresh struct {
	invalidator ReportInvalidator
	warmer      ClassWarmer
	logger      *zap.Logger
}

// after runs even when the request context is already cancelled, since the
// write it follows has been committed. Failures are logged only.
func (r reportRefresh) after(ctx context.Context, classIDs ...string) {
	ctx = context.WithoutCancel(ctx)
	if r.invalidator != nil {
		if err := r.invalidator.InvalidateReports(ctx); err != nil {
			r.logger.Warn("invalidate analytics cache", zap.Error(err))
		}
	}
	if r.warmer != nil && len(classIDs) > 0 {
		r.warmer.Schedule(classIDs...)
	}
}

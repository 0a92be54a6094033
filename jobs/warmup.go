package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// ReportWarmer is the slice of the reports service the job needs.
type ReportWarmer interface {
	WarmupRanges(ctx context.Context) error
}

// ReportsWarmupJob precomputes the cached report windows so the dashboard
// never pays the aggregation cost on first load.
type ReportsWarmupJob struct {
	Reports ReportWarmer
	Logger  *slog.Logger
}

// NewReportsWarmupJob wires dependencies for the warmup handler.
func NewReportsWarmupJob(reports ReportWarmer, logger *slog.Logger) *ReportsWarmupJob {
	return &ReportsWarmupJob{Reports: reports, Logger: logger}
}

// Handle executes the warmup.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("jobs: reports warmup not configured")
	}
	if err := j.Reports.WarmupRanges(ctx); err != nil {
		return err
	}
	if j.Logger != nil {
		j.Logger.Info("report caches warmed")
	}
	return nil
}

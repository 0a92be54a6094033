package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// IdempotencyCleaner is the slice of the idempotency store the job needs.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupJob prunes processed keys past the retention window.
type IdempotencyCleanupJob struct {
	Store     IdempotencyCleaner
	Retention time.Duration
	Logger    *slog.Logger
}

// NewIdempotencyCleanupJob wires dependencies for the cleanup handler.
func NewIdempotencyCleanupJob(store IdempotencyCleaner, retention time.Duration, logger *slog.Logger) *IdempotencyCleanupJob {
	if retention <= 0 {
		retention = 48 * time.Hour
	}
	return &IdempotencyCleanupJob{Store: store, Retention: retention, Logger: logger}
}

// Handle executes the cleanup. A payload retention overrides the default.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("jobs: idempotency cleanup not configured")
	}
	retention := j.Retention
	var payload IdempotencyCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.Retention > 0 {
			retention = payload.Retention
		}
	}
	if err := j.Store.Cleanup(ctx, retention); err != nil {
		return err
	}
	if j.Logger != nil {
		j.Logger.Info("idempotency keys pruned", slog.Duration("retention", retention))
	}
	return nil
}

package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskLedgerIntegrity scans stored documents for invariant violations.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
	// TaskReportsWarmup precomputes the cached report windows.
	TaskReportsWarmup = "reports:warmup"
)

// IntegrityScanPayload carries scheduling metadata for the integrity scan.
type IntegrityScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewIntegrityScanTask constructs the integrity scan task.
func NewIntegrityScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(IntegrityScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload configures the retention window.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// NewReportsWarmupTask constructs the report warmup task.
func NewReportsWarmupTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskReportsWarmup, nil, asynq.Queue(QueueDefault)), nil
}

package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeCleaner struct {
	olderThan time.Duration
	calls     int
}

func (f *fakeCleaner) Cleanup(ctx context.Context, olderThan time.Duration) error {
	f.calls++
	f.olderThan = olderThan
	return nil
}

type fakeWarmer struct {
	calls int
}

func (f *fakeWarmer) WarmupRanges(ctx context.Context) error {
	f.calls++
	return nil
}

func TestIdempotencyCleanupUsesDefaultRetention(t *testing.T) {
	cleaner := &fakeCleaner{}
	job := NewIdempotencyCleanupJob(cleaner, 0, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil))
	require.NoError(t, err)
	require.Equal(t, 1, cleaner.calls)
	require.Equal(t, 48*time.Hour, cleaner.olderThan)
}

func TestIdempotencyCleanupPayloadOverridesRetention(t *testing.T) {
	cleaner := &fakeCleaner{}
	job := NewIdempotencyCleanupJob(cleaner, 48*time.Hour, nil)

	task, err := NewIdempotencyCleanupTask(2 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 2*time.Hour, cleaner.olderThan)
}

func TestIdempotencyCleanupSkipsRetryOnBadPayload(t *testing.T) {
	job := NewIdempotencyCleanupJob(&fakeCleaner{}, 0, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestReportsWarmupDelegates(t *testing.T) {
	warmer := &fakeWarmer{}
	job := NewReportsWarmupJob(warmer, nil)

	task, err := NewReportsWarmupTask()
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, warmer.calls)
}

func TestIntegrityScanTaskCarriesSchedule(t *testing.T) {
	at := time.Date(2026, time.March, 15, 2, 0, 0, 0, time.UTC)
	task, err := NewIntegrityScanTask(at)
	require.NoError(t, err)
	require.Equal(t, TaskLedgerIntegrity, task.Type())
	require.Contains(t, string(task.Payload()), "2026-03-15")
}

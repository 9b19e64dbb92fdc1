package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/panaderia/internal/jobs"
)

type fakeWarmer struct {
	calls int
	err   error
}

func (f *fakeWarmer) Warm(ctx context.Context) error {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected a deadline")
	}
	return f.err
}

type fakeCleaner struct {
	retention time.Duration
	purged    int64
}

func (f *fakeCleaner) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.retention = olderThan
	return f.purged, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReportsWarmupJob(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	warmer := &fakeWarmer{}
	job := NewReportsWarmupJob(warmer, discardLogger(), metrics)

	task, err := NewReportsWarmupTask(ReportsWarmupPayload{Reason: "cron"})
	require.NoError(t, err)
	require.Equal(t, TaskReportsWarmup, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, warmer.calls)

	warmer.err = errors.New("redis down")
	require.ErrorContains(t, job.Handle(context.Background(), task), "redis down")

	families, err := registry.Gather()
	require.NoError(t, err)
	var failures float64
	for _, family := range families {
		if family.GetName() == "panaderia_jobs_failures_total" {
			for _, metric := range family.GetMetric() {
				failures += metric.GetCounter().GetValue()
			}
		}
	}
	require.Equal(t, float64(1), failures)

	err = job.Handle(context.Background(), asynq.NewTask(TaskReportsWarmup, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestIdempotencyCleanupJob(t *testing.T) {
	cleaner := &fakeCleaner{purged: 4}
	job := NewIdempotencyCleanupJob(cleaner, 48*time.Hour, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	require.Equal(t, 48*time.Hour, cleaner.retention)

	task, err := NewIdempotencyCleanupTask(IdempotencyCleanupPayload{Retention: time.Hour})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, time.Hour, cleaner.retention)

	var payload IdempotencyCleanupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, time.Hour, payload.Retention)

	job.Retention = 0
	require.Error(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
}

func TestHealthWithoutInspector(t *testing.T) {
	h := NewHandler(nil, discardLogger())
	rr := httptest.NewRecorder()
	h.health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"scheduled":0,"retry":0,"failed":0}`, rr.Body.String())
}

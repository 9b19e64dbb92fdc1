package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportsWarmup recomputes the current week and month reports into the cache.
	TaskReportsWarmup = "reports:warmup"
	// TaskIdempotencyCleanup purges idempotency keys past their retention.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// ReportsWarmupPayload carries an optional reason for the log line.
type ReportsWarmupPayload struct {
	Reason string `json:"reason,omitempty"`
}

// IdempotencyCleanupPayload selects how old a key must be to be purged.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewReportsWarmupTask constructs a warmup task.
func NewReportsWarmupTask(payload ReportsWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarmup, data, asynq.MaxRetry(3), asynq.Timeout(time.Minute)), nil
}

// NewIdempotencyCleanupTask constructs a cleanup task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.MaxRetry(1)), nil
}

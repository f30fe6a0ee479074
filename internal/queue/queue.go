// Package queue defines the TaskQueue contract the enrichment worker and
// EnrichmentCoordinator depend on, decoupled from the concrete Postgres
// implementation.
package queue

import (
	"context"

	"ragengine/internal/model"
	"ragengine/internal/store/postgres"
)

// TaskQueue is the durable enrichment queue surface: enqueue, claim,
// complete, fail, and the stale-lease watchdog.
type TaskQueue interface {
	Enqueue(ctx context.Context, tasks []model.EnrichmentTask) error
	Claim(ctx context.Context, workerID string, leaseSeconds int) (*postgres.ClaimedTask, error)
	Complete(ctx context.Context, taskID string, result postgres.CompleteResult) error
	Fail(ctx context.Context, taskID string, errMsg string) error
	RecoverStale(ctx context.Context) (int, error)
}

var _ TaskQueue = (*postgres.Store)(nil)

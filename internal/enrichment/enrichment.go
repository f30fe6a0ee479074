// Package enrichment implements EnrichmentCoordinator: the public surface
// over the durable task queue used by operators to inspect and manage
// asynchronous chunk enrichment, decoupled from the worker that actually
// claims and completes tasks (see internal/queue).
package enrichment

import (
	"context"
	"strings"
	"time"

	"ragengine/internal/apierr"
	"ragengine/internal/model"
	"ragengine/internal/queue/kafkanotify"
)

// Notifier announces a task lifecycle event (e.g. over Kafka) so external
// worker fleets can wake on push instead of polling Store.Claim.
// Best-effort: Coordinator never treats a notification failure as a
// request failure, so the interface itself has no error return.
type Notifier interface {
	Publish(ctx context.Context, evt kafkanotify.Event)
}

var _ Notifier = (*kafkanotify.Notifier)(nil)

// Store is the narrow read/write surface Coordinator needs from the
// persistence layer.
type Store interface {
	Enqueue(ctx context.Context, tasks []model.EnrichmentTask) error
	EnrichmentStatusCounts(ctx context.Context, collection, baseID string) (map[model.EnrichmentStatus]int, []string, error)
	EnrichmentStats(ctx context.Context, collection string) (map[model.TaskStatus]int, map[model.EnrichmentStatus]int, error)
	PendingChunks(ctx context.Context, collection string, force bool, textQuery string) ([]model.PendingChunk, error)
	ClearEnrichmentTasks(ctx context.Context, collection string, baseIDs []string) (int, error)
}

// maxEnqueueBatch caps the chunk rows inserted per Store.Enqueue call.
const maxEnqueueBatch = 100

// Coordinator exposes status, stats, enqueue, and clear operations over the
// enrichment task queue.
type Coordinator struct {
	store    Store
	notifier Notifier
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNotifier attaches a best-effort side-channel notifier (e.g. Kafka),
// published to after every successful Enqueue.
func WithNotifier(n Notifier) Option { return func(c *Coordinator) { c.notifier = n } }

// New constructs a Coordinator.
func New(store Store, opts ...Option) *Coordinator {
	c := &Coordinator{store: store}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status is getStatus(baseId)'s aggregated view of one document's chunks.
type Status struct {
	State  string   `json:"state"` // enriched|pending|mixed|failed|none
	Errors []string `json:"errors,omitempty"`
}

// GetStatus aggregates baseID's chunk enrichment statuses within collection.
func (c *Coordinator) GetStatus(ctx context.Context, collection, baseID string) (Status, error) {
	counts, errs, err := c.store.EnrichmentStatusCounts(ctx, collection, baseID)
	if err != nil {
		return Status{}, apierr.Internal(err)
	}
	return Status{State: aggregateStatus(counts), Errors: errs}, nil
}

func aggregateStatus(counts map[model.EnrichmentStatus]int) string {
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return "none"
	}
	var only model.EnrichmentStatus
	distinct := 0
	for status, n := range counts {
		if n > 0 {
			distinct++
			only = status
		}
	}
	if distinct == 1 {
		return string(only)
	}
	return "mixed"
}

// Stats is getStats()'s aggregated view across a whole collection.
type Stats struct {
	TaskCounts  map[model.TaskStatus]int       `json:"taskCounts"`
	ChunkCounts map[model.EnrichmentStatus]int `json:"chunkCounts"`
}

// GetStats aggregates task and chunk status counts for collection.
func (c *Coordinator) GetStats(ctx context.Context, collection string) (Stats, error) {
	taskCounts, chunkCounts, err := c.store.EnrichmentStats(ctx, collection)
	if err != nil {
		return Stats{}, apierr.Internal(err)
	}
	return Stats{TaskCounts: taskCounts, ChunkCounts: chunkCounts}, nil
}

// EnqueueOptions configures Enqueue.
type EnqueueOptions struct {
	// Force re-queues documents that already enriched, not just pending ones.
	Force bool `json:"force,omitempty"`
	// Filter, when non-empty, narrows eligible chunks by a text-match
	// against their content.
	Filter string `json:"filter,omitempty"`
}

// EnqueueResult reports how many chunk tasks were (re-)queued.
type EnqueueResult struct {
	Enqueued int `json:"enqueued"`
}

// Enqueue selects every chunk in collection eligible for enrichment and
// inserts one pending EnrichmentTask per chunk, batched in groups of
// maxEnqueueBatch. A chunk whose task is already pending or processing is
// skipped by the store's unique index; Enqueued still counts every eligible
// chunk submitted, including those skipped.
func (c *Coordinator) Enqueue(ctx context.Context, collection string, opts EnqueueOptions) (EnqueueResult, error) {
	pending, err := c.store.PendingChunks(ctx, collection, opts.Force, strings.TrimSpace(opts.Filter))
	if err != nil {
		return EnqueueResult{}, apierr.Internal(err)
	}
	if len(pending) == 0 {
		return EnqueueResult{}, nil
	}
	tasks := make([]model.EnrichmentTask, len(pending))
	baseIDs := make([]string, 0, len(pending))
	seenBaseID := map[string]bool{}
	for i, pc := range pending {
		tasks[i] = model.EnrichmentTask{Collection: collection, BaseID: pc.BaseID, ChunkID: pc.ChunkID}
		if !seenBaseID[pc.BaseID] {
			seenBaseID[pc.BaseID] = true
			baseIDs = append(baseIDs, pc.BaseID)
		}
	}
	for start := 0; start < len(tasks); start += maxEnqueueBatch {
		end := start + maxEnqueueBatch
		if end > len(tasks) {
			end = len(tasks)
		}
		if err := c.store.Enqueue(ctx, tasks[start:end]); err != nil {
			return EnqueueResult{}, apierr.Internal(err)
		}
	}
	if c.notifier != nil {
		for _, baseID := range baseIDs {
			c.notifier.Publish(ctx, kafkanotify.Event{Type: "task_enqueued", Collection: collection, BaseID: baseID, At: time.Now()})
		}
	}
	return EnqueueResult{Enqueued: len(tasks)}, nil
}

// ClearResult reports how many tasks were deleted.
type ClearResult struct {
	Cleared int `json:"cleared"`
}

// ClearQueue deletes pending/processing/dead tasks for collection,
// optionally restricted to documents matching filter.
func (c *Coordinator) ClearQueue(ctx context.Context, collection, filter string) (ClearResult, error) {
	filter = strings.TrimSpace(filter)
	var baseIDs []string
	if filter != "" {
		chunks, err := c.store.PendingChunks(ctx, collection, true, filter)
		if err != nil {
			return ClearResult{}, apierr.Internal(err)
		}
		seen := map[string]bool{}
		for _, pc := range chunks {
			if !seen[pc.BaseID] {
				seen[pc.BaseID] = true
				baseIDs = append(baseIDs, pc.BaseID)
			}
		}
	}
	n, err := c.store.ClearEnrichmentTasks(ctx, collection, baseIDs)
	if err != nil {
		return ClearResult{}, apierr.Internal(err)
	}
	return ClearResult{Cleared: n}, nil
}

package enrichment

import (
	"context"
	"fmt"
	"testing"

	"ragengine/internal/model"
)

type fakeStore struct {
	statusCounts  map[model.EnrichmentStatus]int
	statusErrs    []string
	taskCounts    map[model.TaskStatus]int
	chunkCounts   map[model.EnrichmentStatus]int
	pendingChunks []model.PendingChunk
	enqueued      []model.EnrichmentTask
	enqueueCalls  []int
	cleared       int
	clearedIDs    []string
}

func (f *fakeStore) Enqueue(_ context.Context, tasks []model.EnrichmentTask) error {
	f.enqueued = append(f.enqueued, tasks...)
	f.enqueueCalls = append(f.enqueueCalls, len(tasks))
	return nil
}

func (f *fakeStore) EnrichmentStatusCounts(_ context.Context, _, _ string) (map[model.EnrichmentStatus]int, []string, error) {
	return f.statusCounts, f.statusErrs, nil
}

func (f *fakeStore) EnrichmentStats(_ context.Context, _ string) (map[model.TaskStatus]int, map[model.EnrichmentStatus]int, error) {
	return f.taskCounts, f.chunkCounts, nil
}

func (f *fakeStore) PendingChunks(_ context.Context, _ string, _ bool, _ string) ([]model.PendingChunk, error) {
	return f.pendingChunks, nil
}

func (f *fakeStore) ClearEnrichmentTasks(_ context.Context, _ string, baseIDs []string) (int, error) {
	f.clearedIDs = baseIDs
	return f.cleared, nil
}

func TestGetStatus_AllEnriched(t *testing.T) {
	store := &fakeStore{statusCounts: map[model.EnrichmentStatus]int{model.EnrichmentEnriched: 3}}
	c := New(store)
	st, err := c.GetStatus(context.Background(), "docs", "base-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.State != "enriched" {
		t.Fatalf("expected enriched, got %q", st.State)
	}
}

func TestGetStatus_Mixed(t *testing.T) {
	store := &fakeStore{statusCounts: map[model.EnrichmentStatus]int{model.EnrichmentEnriched: 2, model.EnrichmentPending: 1}}
	c := New(store)
	st, err := c.GetStatus(context.Background(), "docs", "base-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.State != "mixed" {
		t.Fatalf("expected mixed, got %q", st.State)
	}
}

func TestGetStatus_None(t *testing.T) {
	store := &fakeStore{statusCounts: map[model.EnrichmentStatus]int{}}
	c := New(store)
	st, err := c.GetStatus(context.Background(), "docs", "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.State != "none" {
		t.Fatalf("expected none, got %q", st.State)
	}
}

func TestGetStatus_Failed_CarriesErrors(t *testing.T) {
	store := &fakeStore{
		statusCounts: map[model.EnrichmentStatus]int{model.EnrichmentFailed: 1},
		statusErrs:   []string{"llm timeout"},
	}
	c := New(store)
	st, err := c.GetStatus(context.Background(), "docs", "base-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.State != "failed" || len(st.Errors) != 1 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestEnqueue_NoPendingIsNoop(t *testing.T) {
	store := &fakeStore{}
	c := New(store)
	res, err := c.Enqueue(context.Background(), "docs", EnqueueOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Enqueued != 0 || len(store.enqueued) != 0 {
		t.Fatalf("expected no-op enqueue, got %+v", res)
	}
}

func TestEnqueue_InsertsOneTaskPerChunk(t *testing.T) {
	store := &fakeStore{pendingChunks: []model.PendingChunk{
		{BaseID: "a", ChunkID: "a-0"},
		{BaseID: "a", ChunkID: "a-1"},
		{BaseID: "b", ChunkID: "b-0"},
	}}
	c := New(store)
	res, err := c.Enqueue(context.Background(), "docs", EnqueueOptions{Force: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Enqueued != 3 || len(store.enqueued) != 3 {
		t.Fatalf("expected 3 chunk tasks enqueued, got %+v / %+v", res, store.enqueued)
	}
	for _, task := range store.enqueued {
		if task.ChunkID == "" {
			t.Fatalf("expected every task to carry a chunk id, got %+v", task)
		}
	}
}

func TestEnqueue_BatchesInGroupsOfMaxEnqueueBatch(t *testing.T) {
	pending := make([]model.PendingChunk, maxEnqueueBatch+1)
	for i := range pending {
		pending[i] = model.PendingChunk{BaseID: "a", ChunkID: fmt.Sprintf("a-%d", i)}
	}
	store := &fakeStore{pendingChunks: pending}
	c := New(store)
	res, err := c.Enqueue(context.Background(), "docs", EnqueueOptions{Force: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Enqueued != maxEnqueueBatch+1 {
		t.Fatalf("expected %d tasks enqueued, got %d", maxEnqueueBatch+1, res.Enqueued)
	}
	if len(store.enqueueCalls) != 2 {
		t.Fatalf("expected 2 Enqueue calls for a %d-row batch, got %d", maxEnqueueBatch+1, len(store.enqueueCalls))
	}
	if store.enqueueCalls[0] != maxEnqueueBatch || store.enqueueCalls[1] != 1 {
		t.Fatalf("expected batch sizes [%d, 1], got %v", maxEnqueueBatch, store.enqueueCalls)
	}
}

func TestClearQueue_WithoutFilterClearsAll(t *testing.T) {
	store := &fakeStore{cleared: 5}
	c := New(store)
	res, err := c.ClearQueue(context.Background(), "docs", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Cleared != 5 || store.clearedIDs != nil {
		t.Fatalf("expected unrestricted clear, got cleared=%d ids=%v", res.Cleared, store.clearedIDs)
	}
}

func TestClearQueue_WithFilterRestrictsToMatchingDocuments(t *testing.T) {
	store := &fakeStore{pendingChunks: []model.PendingChunk{{BaseID: "x", ChunkID: "x-0"}}, cleared: 1}
	c := New(store)
	res, err := c.ClearQueue(context.Background(), "docs", "invoice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Cleared != 1 || len(store.clearedIDs) != 1 || store.clearedIDs[0] != "x" {
		t.Fatalf("expected filtered clear restricted to [x], got %+v", store.clearedIDs)
	}
}

package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"ragengine/internal/model"
	"ragengine/internal/store/postgres"
)

type fakeBackend struct {
	entityCalls  int
	resolveCalls int
	entity       model.Entity
	entityFound  bool
	resolved     []postgres.ResolvedEntity
}

func (f *fakeBackend) ResolveEntities(_ context.Context, names []string) ([]postgres.ResolvedEntity, error) {
	f.resolveCalls++
	var out []postgres.ResolvedEntity
	for _, re := range f.resolved {
		for _, n := range names {
			if re.RequestedName == n {
				out = append(out, re)
			}
		}
	}
	return out, nil
}

func (f *fakeBackend) Traverse(context.Context, []string, postgres.TraversalParams) (postgres.TraversalResult, error) {
	return postgres.TraversalResult{}, nil
}

func (f *fakeBackend) GetEntityDocuments(context.Context, []string, int) ([]postgres.EntityDocument, error) {
	return nil, nil
}

func (f *fakeBackend) GetEntity(context.Context, string) (model.Entity, bool, error) {
	f.entityCalls++
	return f.entity, f.entityFound, nil
}

func (f *fakeBackend) GetEntityRelationships(context.Context, string, int) ([]postgres.RelationshipEdge, error) {
	return nil, nil
}

func newTestCache(t *testing.T, backend *fakeBackend) *GraphCache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	wrapped, ok := New(backend, mr.Addr(), 0)
	if !ok {
		t.Fatal("expected cache to be enabled")
	}
	gc, ok := wrapped.(*GraphCache)
	if !ok {
		t.Fatalf("expected *GraphCache, got %T", wrapped)
	}
	return gc
}

func TestNew_EmptyAddrDisablesCache(t *testing.T) {
	backend := &fakeBackend{}
	wrapped, ok := New(backend, "", 0)
	if ok {
		t.Fatal("expected cache disabled for empty addr")
	}
	if wrapped != backend {
		t.Fatal("expected passthrough to the original backend")
	}
}

func TestGetEntity_CachesAfterFirstLookup(t *testing.T) {
	backend := &fakeBackend{entity: model.Entity{ID: "e1", Name: "Acme"}, entityFound: true}
	c := newTestCache(t, backend)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e, found, err := c.GetEntity(ctx, "Acme")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !found || e.ID != "e1" {
			t.Fatalf("unexpected entity: %+v found=%v", e, found)
		}
	}
	if backend.entityCalls != 1 {
		t.Fatalf("expected exactly one backend call, got %d", backend.entityCalls)
	}
}

func TestResolveEntities_PartialCacheHit(t *testing.T) {
	backend := &fakeBackend{resolved: []postgres.ResolvedEntity{
		{ID: "e1", Name: "Acme", RequestedName: "Acme"},
		{ID: "e2", Name: "Globex", RequestedName: "Globex"},
	}}
	c := newTestCache(t, backend)
	ctx := context.Background()

	first, err := c.ResolveEntities(ctx, []string{"Acme", "Globex"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 2 || backend.resolveCalls != 1 {
		t.Fatalf("unexpected first resolve: %+v calls=%d", first, backend.resolveCalls)
	}

	second, err := c.ResolveEntities(ctx, []string{"Acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != 1 || second[0].ID != "e1" {
		t.Fatalf("unexpected cached resolve: %+v", second)
	}
	if backend.resolveCalls != 1 {
		t.Fatalf("expected no additional backend call on cache hit, got %d calls", backend.resolveCalls)
	}
}

package query

import (
	"context"
	"testing"

	"ragengine/internal/filterdsl"
	"ragengine/internal/model"
	"ragengine/internal/router"
	"ragengine/internal/store/postgres"
)

type fakeStore struct {
	similarityHits []postgres.VectorHit
	filterChunks   []model.Chunk
	rerankByChunk  []postgres.VectorHit
	rerankByDoc    []postgres.VectorHit
	similarityErr  error
}

func (f *fakeStore) SimilaritySearch(_ context.Context, _ string, _ []float32, _ int, _ filterdsl.Filter) ([]postgres.VectorHit, error) {
	return f.similarityHits, f.similarityErr
}

func (f *fakeStore) QueryByFilter(_ context.Context, _ string, _ filterdsl.Filter, _ int) ([]model.Chunk, error) {
	return f.filterChunks, nil
}

func (f *fakeStore) RerankByChunkIDs(_ context.Context, _ []float32, _ []string) ([]postgres.VectorHit, error) {
	return f.rerankByChunk, nil
}

func (f *fakeStore) RerankByDocumentIDs(_ context.Context, _ []float32, _ []string) ([]postgres.VectorHit, error) {
	return f.rerankByDoc, nil
}

type fakeGraph struct {
	resolved  []postgres.ResolvedEntity
	traversal postgres.TraversalResult
	docs      []postgres.EntityDocument
	resolveErr, traverseErr error
}

func (f *fakeGraph) ResolveEntities(context.Context, []string) ([]postgres.ResolvedEntity, error) {
	return f.resolved, f.resolveErr
}

func (f *fakeGraph) Traverse(context.Context, []string, postgres.TraversalParams) (postgres.TraversalResult, error) {
	return f.traversal, f.traverseErr
}

func (f *fakeGraph) GetEntityDocuments(context.Context, []string, int) ([]postgres.EntityDocument, error) {
	return f.docs, nil
}

func (f *fakeGraph) GetEntity(context.Context, string) (model.Entity, bool, error) {
	return model.Entity{}, false, nil
}

func (f *fakeGraph) GetEntityRelationships(context.Context, string, int) ([]postgres.RelationshipEdge, error) {
	return nil, nil
}

type fakeEmbedder struct {
	calls int
	vec   []float32
	err   error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}
func (f *fakeEmbedder) Name() string                         { return "fake" }
func (f *fakeEmbedder) Dimension() int                        { return len(f.vec) }
func (f *fakeEmbedder) Ping(context.Context) error             { return nil }

func TestDefaultMinScore(t *testing.T) {
	cases := map[string]float64{
		"":              0.3,
		"one":           0.3,
		"two terms":     0.4,
		"three of four": 0.5,
		"one two three four five": 0.6,
	}
	for q, want := range cases {
		if got := defaultMinScore(q); got != want {
			t.Fatalf("query %q: expected %v, got %v", q, want, got)
		}
	}
}

func TestQuery_SemanticDefault_EmbedsExactlyOnce(t *testing.T) {
	store := &fakeStore{similarityHits: []postgres.VectorHit{
		{Chunk: model.Chunk{ID: "c1", DocumentID: "d1", Text: "hello"}, Score: 0.9, DocumentID: "d1"},
	}}
	emb := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	svc := New(store, &fakeGraph{}, emb, router.New(), nil)

	resp, err := svc.Query(context.Background(), Request{Collection: "docs", Query: "hello world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.OK || len(resp.Results) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if emb.calls != 1 {
		t.Fatalf("expected exactly one embed call, got %d", emb.calls)
	}
}

func TestQuery_MetadataStrategy_NoEmbedCall(t *testing.T) {
	store := &fakeStore{filterChunks: []model.Chunk{{ID: "c1", DocumentID: "d1", Text: "hi"}}}
	emb := &fakeEmbedder{vec: []float32{0.1}}
	svc := New(store, &fakeGraph{}, emb, router.New(), nil)

	resp, err := svc.Query(context.Background(), Request{
		Collection: "docs",
		Strategy:   router.Metadata,
		Filter:     &filterdsl.Filter{Conditions: []filterdsl.Condition{{Field: "docType", Op: filterdsl.OpEq, Value: "article"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Score != 1.0 {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
	if emb.calls != 0 {
		t.Fatalf("expected no embed call for metadata strategy, got %d", emb.calls)
	}
}

func TestQuery_RequiresCollection(t *testing.T) {
	svc := New(&fakeStore{}, &fakeGraph{}, &fakeEmbedder{}, router.New(), nil)
	if _, err := svc.Query(context.Background(), Request{Query: "x"}); err == nil {
		t.Fatal("expected error for missing collection")
	}
}

func TestHybridMetadataFlow_EmptyCandidatesReturnsImmediately(t *testing.T) {
	store := &fakeStore{filterChunks: nil}
	emb := &fakeEmbedder{vec: []float32{0.1}}
	svc := New(store, &fakeGraph{}, emb, router.New(), nil)

	resp, err := svc.Query(context.Background(), Request{
		Collection:  "docs",
		Strategy:    router.Hybrid,
		Query:       "invoice",
		Filter:      &filterdsl.Filter{Conditions: []filterdsl.Condition{{Field: "docType", Op: filterdsl.OpEq, Value: "invoice"}}},
		GraphExpand: false,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Fatalf("expected no results, got %+v", resp.Results)
	}
	if emb.calls != 0 {
		t.Fatalf("expected embed skipped on empty phase-1 candidates, got %d calls", emb.calls)
	}
}

func TestHybridGraphFlow_NoEntitiesProducesWarning(t *testing.T) {
	store := &fakeStore{similarityHits: []postgres.VectorHit{
		{Chunk: model.Chunk{ID: "c1", DocumentID: "d1", Text: "plain text, no entities"}, Score: 0.5, DocumentID: "d1"},
	}}
	emb := &fakeEmbedder{vec: []float32{0.1}}
	svc := New(store, &fakeGraph{}, emb, router.New(), nil)

	resp, err := svc.Query(context.Background(), Request{
		Collection:  "docs",
		Strategy:    router.Hybrid,
		Query:       "plain text",
		GraphExpand: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Graph == nil || resp.Graph.Warning != "No entities found in seed results to seed the graph" {
		t.Fatalf("expected no-entities warning, got %+v", resp.Graph)
	}
	if emb.calls != 1 {
		t.Fatalf("expected exactly one embed call, got %d", emb.calls)
	}
}

func TestHybridGraphFlow_UnresolvedEntitiesProducesWarning(t *testing.T) {
	store := &fakeStore{similarityHits: []postgres.VectorHit{
		{Chunk: model.Chunk{ID: "c1", DocumentID: "d1", Text: "x", Tier2Meta: map[string]any{
			"entities": []any{map[string]any{"text": "Acme Corp"}},
		}}, Score: 0.5, DocumentID: "d1"},
	}}
	emb := &fakeEmbedder{vec: []float32{0.1}}
	svc := New(store, &fakeGraph{resolved: nil}, emb, router.New(), nil)

	resp, err := svc.Query(context.Background(), Request{
		Collection:  "docs",
		Strategy:    router.Hybrid,
		Query:       "acme",
		GraphExpand: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Graph == nil || resp.Graph.Warning != "None of the seed entities could be resolved" {
		t.Fatalf("expected unresolved warning, got %+v", resp.Graph)
	}
}

func TestExtractEntityNames_DedupsAndCaps(t *testing.T) {
	chunks := []model.Chunk{
		{Tier2Meta: map[string]any{"entities": []any{
			map[string]any{"text": "Alice"},
			map[string]any{"text": "Bob"},
		}}},
		{Tier3Meta: map[string]any{"entities": []any{
			map[string]any{"name": "Alice"},
		}}},
	}
	names := extractEntityNames(chunks, 50)
	if len(names) != 2 {
		t.Fatalf("expected 2 deduped names, got %v", names)
	}
}

func TestQuery_GraphStrategy_AttachesTraversal(t *testing.T) {
	store := &fakeStore{similarityHits: []postgres.VectorHit{
		{Chunk: model.Chunk{ID: "c1", DocumentID: "d1", Text: "x", Tier2Meta: map[string]any{
			"entities": []any{map[string]any{"text": "Acme Corp"}},
		}}, Score: 0.9, DocumentID: "d1"},
	}}
	g := &fakeGraph{
		resolved: []postgres.ResolvedEntity{{ID: "e1", Name: "Acme Corp"}},
		traversal: postgres.TraversalResult{
			Entities: []postgres.TraversedEntity{{ID: "e1", Name: "Acme Corp", IsSeed: true}},
		},
	}
	emb := &fakeEmbedder{vec: []float32{0.1}}
	svc := New(store, g, emb, router.New(), nil)

	resp, err := svc.Query(context.Background(), Request{
		Collection: "docs",
		Strategy:   router.Graph,
		Query:      "acme corp",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Graph == nil || len(resp.Graph.Entities) != 1 {
		t.Fatalf("expected traversal attached, got %+v", resp.Graph)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected original semantic results preserved, got %+v", resp.Results)
	}
}

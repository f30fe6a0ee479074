package embedder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ragengine/internal/config"
)

func TestClientEmbedder_Ollama(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2],[0.3,0.4]]}`))
	}))
	defer srv.Close()

	e := New(config.EmbeddingConfig{Provider: "ollama", OllamaURL: srv.URL, Model: "nomic-embed-text"}, 2, 10)
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 2 {
		t.Fatalf("unexpected vectors: %#v", vecs)
	}
}

func TestClientEmbedder_OpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Fatalf("expected bearer auth header, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.5,0.6]}]}`))
	}))
	defer srv.Close()

	e := New(config.EmbeddingConfig{Provider: "openai", OpenAIBaseURL: srv.URL, OpenAIAPIKey: "sk-test", Model: "text-embedding-3-small"}, 2, 10)
	vecs, err := e.EmbedBatch(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != 2 {
		t.Fatalf("unexpected vectors: %#v", vecs)
	}
}

func TestClientEmbedder_BatchesLargeInput(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings":[[0.1],[0.1]]}`))
	}))
	defer srv.Close()

	e := New(config.EmbeddingConfig{Provider: "ollama", OllamaURL: srv.URL, Model: "m"}, 1, 2)
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c", "d"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 4 {
		t.Fatalf("expected 4 vectors across batches, got %d", len(vecs))
	}
	if calls != 2 {
		t.Fatalf("expected 2 batched calls, got %d", calls)
	}
}

func TestDeterministicEmbedder_DeterministicAndNormalized(t *testing.T) {
	e := NewDeterministic(32, 7)
	v1, err := e.EmbedBatch(context.Background(), []string{"hello world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v2, err := e.EmbedBatch(context.Background(), []string{"hello world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v1[0]) != 32 {
		t.Fatalf("expected dim 32, got %d", len(v1[0]))
	}
	for i := range v1[0] {
		if v1[0][i] != v2[0][i] {
			t.Fatalf("expected deterministic output at index %d: %v vs %v", i, v1[0][i], v2[0][i])
		}
	}
}

func TestDeterministicEmbedder_EmptyDimDefaults(t *testing.T) {
	e := NewDeterministic(0, 0)
	if e.Dimension() != 64 {
		t.Fatalf("expected default dimension 64, got %d", e.Dimension())
	}
}

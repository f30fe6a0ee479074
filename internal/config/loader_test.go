package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("VECTOR_SIZE", "")
	t.Setenv("DISTANCE", "")
	t.Setenv("ROUTER_LLM_TIMEOUT_MS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Vector.Size != 768 {
		t.Fatalf("expected default vector size 768, got %d", cfg.Vector.Size)
	}
	if cfg.Vector.Distance != "Cosine" {
		t.Fatalf("expected default distance Cosine, got %q", cfg.Vector.Distance)
	}
	if cfg.RouterLLM.TimeoutMS != 2000 {
		t.Fatalf("expected default router LLM timeout 2000ms, got %d", cfg.RouterLLM.TimeoutMS)
	}
	if cfg.FilterLLM.TimeoutMS != 1500 {
		t.Fatalf("expected default filter LLM timeout 1500ms, got %d", cfg.FilterLLM.TimeoutMS)
	}
	if cfg.BlobStore.ThresholdBytes != 1<<20 {
		t.Fatalf("expected default blob threshold 1MiB, got %d", cfg.BlobStore.ThresholdBytes)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("VECTOR_SIZE", "1536")
	t.Setenv("ROUTER_LLM_ENABLED", "true")
	t.Setenv("RAG_API_TOKEN", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.Vector.Size != 1536 {
		t.Fatalf("expected vector size 1536, got %d", cfg.Vector.Size)
	}
	if !cfg.RouterLLM.Enabled {
		t.Fatalf("expected router LLM enabled")
	}
	if cfg.Auth.Token != "secret" {
		t.Fatalf("expected auth token to be set")
	}
}

package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestComplete_ReturnsTrimmedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-test",
			"object": "chat.completion",
			"created": 0,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "  hello there  "}, "finish_reason": "stop"}]
		}`))
	}))
	defer srv.Close()

	c := New("test-key", srv.URL, "gpt-4o-mini", WithHTTPClient(srv.Client()))
	got, err := c.Complete(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello there" {
		t.Fatalf("expected trimmed reply, got %q", got)
	}
}

func TestComplete_NoChoicesReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":0,"model":"gpt-4o-mini","choices":[]}`))
	}))
	defer srv.Close()

	c := New("test-key", srv.URL, "gpt-4o-mini", WithHTTPClient(srv.Client()))
	got, err := c.Complete(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty reply, got %q", got)
	}
}

package ingest

import (
	"testing"

	"ragengine/internal/chunk"
	"ragengine/internal/doctype"
)

func TestIdentityKey(t *testing.T) {
	if got := identityKey("docs", "https://example.com/a"); got != "docs|https://example.com/a" {
		t.Fatalf("unexpected identity key: %q", got)
	}
}

func TestSourceFromURL(t *testing.T) {
	got := sourceFromURL("https://example.com/path/to/page?query=1#frag")
	want := "https://example.com/path/to/page"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSourceFromURL_InvalidFallsBackToRaw(t *testing.T) {
	raw := "://not-a-url"
	if got := sourceFromURL(raw); got != raw {
		t.Fatalf("expected fallback to raw input, got %q", got)
	}
}

func TestHostname(t *testing.T) {
	if got := hostname("https://Example.COM/a"); got != "example.com" {
		t.Fatalf("expected lowercased hostname, got %q", got)
	}
}

func TestChunkOptionsFor(t *testing.T) {
	cases := map[string]string{
		doctype.Code:    "code",
		doctype.Article: "markdown",
		doctype.Text:    "fixed",
		doctype.Email:   "fixed",
	}
	for dType, want := range cases {
		got := chunkOptionsFor(dType)
		if got.Strategy != want {
			t.Fatalf("doctype %q: expected strategy %q, got %q", dType, want, got.Strategy)
		}
	}
}

func TestPartitionItems(t *testing.T) {
	req := Request{Items: []Item{
		{ID: "a", Text: "hello"},
		{ID: "b", URL: "https://example.com"},
		{ID: "c", Text: "world"},
	}}

	var textItems, urlItems []Item
	for _, it := range req.Items {
		if it.Text != "" {
			textItems = append(textItems, it)
		} else if it.URL != "" {
			urlItems = append(urlItems, it)
		}
	}

	if len(textItems) != 2 || len(urlItems) != 1 {
		t.Fatalf("unexpected partition: text=%d url=%d", len(textItems), len(urlItems))
	}
}

func TestChunkDefaultSplit_UsedByIngest(t *testing.T) {
	out := chunk.Default{}.Split("hello world, this is a test document.", chunkOptionsFor(doctype.Text))
	if len(out) == 0 {
		t.Fatalf("expected at least one chunk")
	}
}

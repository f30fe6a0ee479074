package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ragengine/internal/ingest"
	"ragengine/internal/query"
)

func TestValidateIngestRequest_RequiresItems(t *testing.T) {
	if err := validateIngestRequest(ingest.Request{}); err == nil {
		t.Fatal("expected error for empty items")
	}
}

func TestValidateIngestRequest_RequiresTextOrURL(t *testing.T) {
	req := ingest.Request{Items: []ingest.Item{{ID: "a"}}}
	if err := validateIngestRequest(req); err == nil {
		t.Fatal("expected error for item missing text and url")
	}
}

func TestValidateIngestRequest_RejectsNonHTTPScheme(t *testing.T) {
	req := ingest.Request{Items: []ingest.Item{{URL: "file:///etc/passwd"}}}
	if err := validateIngestRequest(req); err == nil {
		t.Fatal("expected error for non-http(s) url scheme")
	}
}

func TestValidateIngestRequest_RejectsTooManyURLItems(t *testing.T) {
	items := make([]ingest.Item, maxIngestURLItems+1)
	for i := range items {
		items[i] = ingest.Item{URL: "https://example.com/a"}
	}
	if err := validateIngestRequest(ingest.Request{Items: items}); err == nil {
		t.Fatal("expected error for exceeding the url cap")
	}
}

func TestValidateIngestRequest_AcceptsValidRequest(t *testing.T) {
	req := ingest.Request{Items: []ingest.Item{{Text: "hello"}, {URL: "https://example.com/a"}}}
	if err := validateIngestRequest(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDecodeQueryRequest_RejectsOutOfRangeTopK(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"hi","topK":101}`))
	if _, err := decodeQueryRequest(r); err == nil {
		t.Fatal("expected error for topK > 100")
	}
}

func TestDecodeQueryRequest_RejectsOutOfRangeMinScore(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"hi","minScore":1.5}`))
	if _, err := decodeQueryRequest(r); err == nil {
		t.Fatal("expected error for minScore > 1")
	}
}

func TestDecodeQueryRequest_DefaultsCollection(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"hi"}`))
	req, err := decodeQueryRequest(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Collection == "" {
		t.Fatal("expected default collection to be set")
	}
}

func TestSafeDownloadFilename_SanitizesPathTraversal(t *testing.T) {
	got := safeDownloadFilename(query.Result{Path: "../../etc/passwd"})
	if got != "passwd.txt" {
		t.Fatalf("got %q", got)
	}
}

func TestSafeDownloadFilename_FallsBackToChunkID(t *testing.T) {
	got := safeDownloadFilename(query.Result{ChunkID: "abc-123:0"})
	if got == "" || got == ".txt" {
		t.Fatalf("got %q", got)
	}
}


package extract

import "testing"

func TestExtract_PlainText(t *testing.T) {
	r := New().Extract([]byte("hello world"), "text/plain; charset=utf-8")
	if r.Strategy != StrategyPassthrough {
		t.Fatalf("expected passthrough, got %s", r.Strategy)
	}
	if r.Text == nil || *r.Text != "hello world" {
		t.Fatalf("unexpected text: %#v", r.Text)
	}
	if r.ContentType != "text/plain" {
		t.Fatalf("expected normalized content type, got %q", r.ContentType)
	}
}

func TestExtract_JSON(t *testing.T) {
	r := New().Extract([]byte(`{"a":1}`), "application/json")
	if r.Strategy != StrategyPassthrough {
		t.Fatalf("expected passthrough, got %s", r.Strategy)
	}
	if r.Text == nil {
		t.Fatalf("expected pretty-printed json text")
	}
}

func TestExtract_JSON_InvalidFallsBackToRaw(t *testing.T) {
	r := New().Extract([]byte(`not json`), "application/json")
	if r.Text == nil || *r.Text != "not json" {
		t.Fatalf("expected raw fallback, got %#v", r.Text)
	}
}

func TestExtract_UnknownMimeIsMetadataOnly(t *testing.T) {
	r := New().Extract([]byte{0x00, 0x01}, "image/png")
	if r.Strategy != StrategyMetadataOnly {
		t.Fatalf("expected metadata-only, got %s", r.Strategy)
	}
	if r.Text != nil {
		t.Fatalf("expected nil text, got %#v", r.Text)
	}
}

func TestExtract_HTML(t *testing.T) {
	html := `<html><head><title>Hi</title></head><body><article><h1>Hi</h1><p>` +
		`Lorem ipsum dolor sit amet, consectetur adipiscing elit. ` +
		`Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.</p></article></body></html>`
	r := New(WithBaseURL("https://example.com")).Extract([]byte(html), "text/html")
	if r.Text == nil || *r.Text == "" {
		t.Fatalf("expected non-empty extracted text, got %#v", r.Text)
	}
}

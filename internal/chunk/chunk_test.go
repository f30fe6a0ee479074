package chunk

import "testing"

func TestFixedSplit_Deterministic(t *testing.T) {
	text := "word " // repeated to exceed budget
	var long string
	for i := 0; i < 500; i++ {
		long += text
	}
	s := Default{}
	a := s.Split(long, Options{MaxTokens: 10})
	b := s.Split(long, Options{MaxTokens: 10})
	if len(a) != len(b) {
		t.Fatalf("non-deterministic chunk count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic chunk %d", i)
		}
	}
	if len(a) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(a))
	}
}

func TestFixedSplit_DocumentOrder(t *testing.T) {
	s := Default{}
	chunks := s.Split("alpha beta gamma delta epsilon zeta eta theta iota kappa", Options{MaxTokens: 2})
	if len(chunks) == 0 {
		t.Fatalf("expected at least one chunk")
	}
	if chunks[0] == "" || chunks[0][:5] != "alpha" {
		t.Fatalf("expected first chunk to start with alpha, got %q", chunks[0])
	}
}

func TestMarkdownSplit_HeadingBoundary(t *testing.T) {
	text := "# Title\n\nIntro paragraph text here.\n\n# Second\n\nMore content follows here."
	s := Default{}
	chunks := s.Split(text, Options{Strategy: "markdown", MaxTokens: 1})
	if len(chunks) < 2 {
		t.Fatalf("expected heading split to produce multiple chunks, got %d", len(chunks))
	}
}

func TestCodeSplit_FunctionBoundary(t *testing.T) {
	text := "func A() {\n  return\n}\n\nfunc B() {\n  return\n}\n"
	s := Default{}
	chunks := s.Split(text, Options{Strategy: "code", MaxTokens: 1})
	if len(chunks) < 1 {
		t.Fatalf("expected at least one chunk")
	}
}

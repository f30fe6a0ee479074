package doctype

import "testing"

func TestDetect_ExplicitWins(t *testing.T) {
	got := Detect(Input{DocType: "custom", SourceURL: "https://github.com/x/y"})
	if got != "custom" {
		t.Fatalf("expected explicit override, got %s", got)
	}
}

func TestDetect_MetadataHints(t *testing.T) {
	if got := Detect(Input{Metadata: map[string]any{"channel": "C123"}}); got != Slack {
		t.Fatalf("expected slack, got %s", got)
	}
	if got := Detect(Input{Metadata: map[string]any{"from": "a@b.com", "subject": "hi"}}); got != Email {
		t.Fatalf("expected email, got %s", got)
	}
}

func TestDetect_SourceHost(t *testing.T) {
	if got := Detect(Input{SourceURL: "https://github.com/org/repo/blob/main/file.go"}); got != Code {
		t.Fatalf("expected code, got %s", got)
	}
	if got := Detect(Input{SourceURL: "https://sub.gitlab.com/org/repo"}); got != Code {
		t.Fatalf("expected code, got %s", got)
	}
	if got := Detect(Input{SourceURL: "https://myteam.slack.com/archives/x"}); got != Slack {
		t.Fatalf("expected slack, got %s", got)
	}
}

func TestDetect_ContentSniff(t *testing.T) {
	email := []byte("From: a@b.com\nTo: c@d.com\nSubject: hi\n\nbody")
	if got := Detect(Input{Content: email}); got != Email {
		t.Fatalf("expected email, got %s", got)
	}

	slackJSON := []byte(`{"messages":[{"text":"hi"}]}`)
	if got := Detect(Input{Content: slackJSON}); got != Slack {
		t.Fatalf("expected slack, got %s", got)
	}

	meeting := []byte("Meeting Date: 2026-01-01\nAttendees: a, b\nPlatform: zoom")
	if got := Detect(Input{Content: meeting}); got != Meeting {
		t.Fatalf("expected meeting, got %s", got)
	}
}

func TestDetect_Extension(t *testing.T) {
	if got := Detect(Input{Path: "main.go"}); got != Code {
		t.Fatalf("expected code, got %s", got)
	}
	if got := Detect(Input{Path: "photo.png"}); got != Image {
		t.Fatalf("expected image, got %s", got)
	}
	if got := Detect(Input{Path: "report.pdf"}); got != PDF {
		t.Fatalf("expected pdf, got %s", got)
	}
	if got := Detect(Input{Path: "notes.md"}); got != Article {
		t.Fatalf("expected article, got %s", got)
	}
}

func TestDetect_FallbackText(t *testing.T) {
	if got := Detect(Input{}); got != Text {
		t.Fatalf("expected text fallback, got %s", got)
	}
}

// Package doctype classifies an ingested item into one of a fixed set of
// document types using an ordered chain of signals: an explicit override,
// metadata hints, source host, content sniffing, and file extension.
package doctype

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	Slack   = "slack"
	Email   = "email"
	Code    = "code"
	Meeting = "meeting"
	Image   = "image"
	PDF     = "pdf"
	Article = "article"
	Text    = "text"
)

var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".java": true, ".c": true, ".h": true, ".cpp": true, ".hpp": true, ".cs": true,
	".rb": true, ".rs": true, ".php": true, ".sh": true, ".sql": true, ".yaml": true,
	".yml": true, ".json": true, ".toml": true,
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".svg": true, ".bmp": true,
}

var articleExtensions = map[string]bool{
	".md": true, ".html": true, ".htm": true, ".txt": true,
}

var rfc2822Header = regexp.MustCompile(`(?m)^(From|To|Subject|Date):\s`)
var meetingHint = regexp.MustCompile(`(?i)meeting date|attendees|duration|platform:\s*(zoom|teams|meet|webex)`)

// Input carries every signal available for classification. DocType is the
// caller-supplied explicit override, if any.
type Input struct {
	DocType     string
	Metadata    map[string]any
	SourceURL   string
	Content     []byte
	Path        string
}

// Detect returns the classified doc type, applying the rule chain in order.
func Detect(in Input) string {
	if in.DocType != "" {
		return in.DocType
	}

	if dt := fromMetadata(in.Metadata); dt != "" {
		return dt
	}

	if dt := fromSourceHost(in.SourceURL); dt != "" {
		return dt
	}

	if dt := fromContentSniff(in.Content); dt != "" {
		return dt
	}

	if dt := fromExtension(in.Path); dt != "" {
		return dt
	}

	return Text
}

func fromMetadata(meta map[string]any) string {
	if meta == nil {
		return ""
	}
	if _, ok := meta["channel"]; ok {
		return Slack
	}
	if _, ok := meta["threadId"]; ok {
		return Slack
	}
	_, hasFrom := meta["from"]
	_, hasSubject := meta["subject"]
	if hasFrom && hasSubject {
		return Email
	}
	return ""
}

func fromSourceHost(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	host := strings.ToLower(hostOf(rawURL))
	switch {
	case host == "github.com" || strings.HasSuffix(host, ".github.com") ||
		host == "gitlab.com" || strings.HasSuffix(host, ".gitlab.com"):
		return Code
	case host == "slack.com" || strings.HasSuffix(host, ".slack.com"):
		return Slack
	}
	return ""
}

func hostOf(rawURL string) string {
	s := rawURL
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	return s
}

func fromContentSniff(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	head := content
	if len(head) > 500 {
		head = head[:500]
	}
	if rfc2822Header.Match(head) {
		return Email
	}

	if len(content) < 100*1024 {
		var probe struct {
			Messages json.RawMessage `json:"messages"`
		}
		if err := json.Unmarshal(content, &probe); err == nil && len(probe.Messages) > 0 {
			var arr []json.RawMessage
			if err := json.Unmarshal(probe.Messages, &arr); err == nil {
				return Slack
			}
		}
	}

	if meetingHint.Match(content) {
		return Meeting
	}
	return ""
}

func fromExtension(path string) string {
	ext := extOf(path)
	if ext == "" {
		return ""
	}
	switch {
	case codeExtensions[ext]:
		return Code
	case imageExtensions[ext]:
		return Image
	case ext == ".pdf":
		return PDF
	case articleExtensions[ext]:
		return Article
	}
	return ""
}

func extOf(path string) string {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return ""
	}
	slash := strings.LastIndexAny(path, "/\\")
	if slash > i {
		return ""
	}
	return strings.ToLower(path[i:])
}

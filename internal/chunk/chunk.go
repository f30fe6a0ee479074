// Package chunk splits extracted text into an ordered sequence of chunks
// by a character budget, line-oriented where possible, grounded on the
// teacher's rag/chunker strategies (fixed/markdown/code).
package chunk

import (
	"regexp"
	"strings"
)

// Options tunes chunking. Zero value chunks with the default strategy and
// budget.
type Options struct {
	// Strategy selects the splitting heuristic: "fixed" (default),
	// "markdown", or "code".
	Strategy string
	// MaxTokens bounds a chunk's approximate size; converted to a
	// character budget at 4 chars/token.
	MaxTokens int
	// Overlap is the approximate token overlap between consecutive
	// fixed-strategy chunks.
	Overlap int
}

// Splitter splits text into ordered chunks.
type Splitter interface {
	Split(text string, opt Options) []string
}

// Default is the stateless splitter used when no override is configured.
type Default struct{}

// Split dispatches to a strategy by name and always returns chunks in
// document order.
func (Default) Split(text string, opt Options) []string {
	switch strings.ToLower(opt.Strategy) {
	case "markdown", "md":
		return markdownSplit(text, opt)
	case "code":
		return codeSplit(text, opt)
	default:
		return fixedSplit(text, opt)
	}
}

func targetLen(opt Options) int {
	n := opt.MaxTokens
	if n <= 0 {
		n = 512
	}
	return n * 4
}

func fixedSplit(text string, opt Options) []string {
	tgt := targetLen(opt)
	if tgt < 32 {
		tgt = 32
	}
	ov := opt.Overlap
	if ov < 0 {
		ov = 0
	}
	overlapChars := ov * 4

	var out []string
	start := 0
	for start < len(text) {
		end := start + tgt
		if end > len(text) {
			end = len(text)
		} else if i := strings.LastIndex(text[start:end], " "); i > tgt/2 {
			end = start + i
		}
		if s := strings.TrimSpace(text[start:end]); s != "" {
			out = append(out, s)
		}
		if end == len(text) {
			break
		}
		next := end - overlapChars
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func markdownSplit(text string, opt Options) []string {
	tgt := targetLen(opt)
	lines := strings.Split(text, "\n")

	var out []string
	var buf strings.Builder
	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			out = append(out, s)
			buf.Reset()
		}
	}
	for i, ln := range lines {
		isHeading := strings.HasPrefix(ln, "#")
		isParaBreak := strings.TrimSpace(ln) == "" && i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != ""
		if isHeading && buf.Len() > 0 {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(ln)
		if (isHeading || isParaBreak) && buf.Len() >= tgt {
			flush()
		}
	}
	flush()
	return out
}

var codeBoundary = regexp.MustCompile(`(?m)^\s*(func |class |def |#[#\s]|//)`)

func codeSplit(text string, opt Options) []string {
	tgt := targetLen(opt)
	lines := strings.Split(text, "\n")

	var out []string
	var buf strings.Builder
	for i, ln := range lines {
		if codeBoundary.MatchString(ln) && buf.Len() > 0 && (buf.Len()+len(ln)+1 > tgt || strings.Contains(buf.String(), "func ")) {
			out = append(out, strings.TrimRight(buf.String(), "\n"))
			buf.Reset()
		}
		buf.WriteString(ln)
		if i < len(lines)-1 {
			buf.WriteString("\n")
		}
	}
	if s := strings.TrimSpace(buf.String()); s != "" {
		out = append(out, s)
	}
	return out
}

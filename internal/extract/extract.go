// Package extract turns raw bytes plus a MIME type into plain text,
// selecting a strategy per content type and falling back to a lower
// fidelity strategy rather than failing outright.
package extract

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html/charset"
)

// Strategy names the extraction path taken, reported back for diagnostics.
type Strategy string

const (
	StrategyReadability Strategy = "readability"
	StrategyTurndown    Strategy = "turndown"
	StrategyPlaintext   Strategy = "plaintext"
	StrategyPDFParse    Strategy = "pdf-parse"
	StrategyPassthrough Strategy = "passthrough"
	StrategyMetadataOnly Strategy = "metadata-only"
)

// Result is the outcome of an extraction attempt. Text is nil when no
// usable text could be produced (metadata-only strategy).
type Result struct {
	Text        *string
	Title       string
	Strategy    Strategy
	ContentType string
	Metadata    map[string]any
}

// Extractor turns raw bytes into text given a full MIME type string.
type Extractor struct {
	baseURL string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithBaseURL sets the origin used to resolve relative links when
// extracting HTML.
func WithBaseURL(u string) Option {
	return func(e *Extractor) { e.baseURL = u }
}

// New constructs an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract normalizes contentType (lowercase, parameters stripped) and
// dispatches to the matching strategy. It never returns an error: parse
// failures fall through to a lower-fidelity strategy recorded in the
// result's Strategy field.
func (e *Extractor) Extract(raw []byte, contentType string) Result {
	ct := normalizeContentType(contentType)

	switch {
	case ct == "text/html":
		return e.extractHTML(raw, ct)
	case ct == "application/pdf":
		return e.extractPDF(raw, ct)
	case ct == "text/plain" || ct == "text/markdown":
		return e.extractPassthrough(raw, ct)
	case ct == "application/json":
		return e.extractJSON(raw, ct)
	default:
		return Result{Strategy: StrategyMetadataOnly, ContentType: ct}
	}
}

func normalizeContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

func (e *Extractor) extractHTML(raw []byte, ct string) Result {
	utf8Body, err := toUTF8(raw, "")
	if err != nil {
		utf8Body = raw
	}
	html := string(utf8Body)

	base := parseBase(e.baseURL)
	if art, rerr := readability.FromReader(strings.NewReader(html), base); rerr == nil && strings.TrimSpace(art.TextContent) != "" {
		text := strings.TrimSpace(art.TextContent)
		return Result{Text: &text, Title: strings.TrimSpace(art.Title), Strategy: StrategyReadability, ContentType: ct}
	}

	md, mdErr := htmltomarkdown.ConvertString(html, converter.WithDomain(e.baseURL))
	if mdErr == nil && strings.TrimSpace(md) != "" {
		text := strings.TrimSpace(md)
		return Result{Text: &text, Strategy: StrategyTurndown, ContentType: ct}
	}

	text := strings.TrimSpace(html)
	if text == "" {
		return Result{Strategy: StrategyMetadataOnly, ContentType: ct}
	}
	return Result{Text: &text, Strategy: StrategyPlaintext, ContentType: ct}
}

func (e *Extractor) extractPDF(raw []byte, ct string) Result {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return Result{Strategy: StrategyMetadataOnly, ContentType: ct}
	}

	var sb strings.Builder
	pageCount := r.NumPage()
	for i := 1; i <= pageCount; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, perr := page.GetPlainText(nil)
		if perr != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return Result{Strategy: StrategyMetadataOnly, ContentType: ct, Metadata: map[string]any{"pageCount": pageCount}}
	}
	return Result{Text: &text, Strategy: StrategyPDFParse, ContentType: ct, Metadata: map[string]any{"pageCount": pageCount}}
}

func (e *Extractor) extractPassthrough(raw []byte, ct string) Result {
	utf8Body, err := toUTF8(raw, "")
	if err != nil {
		utf8Body = raw
	}
	text := string(utf8Body)
	return Result{Text: &text, Strategy: StrategyPassthrough, ContentType: ct}
}

func (e *Extractor) extractJSON(raw []byte, ct string) Result {
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		pretty, perr := json.MarshalIndent(v, "", "  ")
		if perr == nil {
			text := string(pretty)
			return Result{Text: &text, Strategy: StrategyPassthrough, ContentType: ct}
		}
	}
	text := string(raw)
	return Result{Text: &text, Strategy: StrategyPassthrough, ContentType: ct}
}

func parseBase(raw string) *url.URL {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return u
}

func toUTF8(b []byte, charsetLabel string) ([]byte, error) {
	if charsetLabel == "" || strings.EqualFold(charsetLabel, "utf-8") {
		return b, nil
	}
	r, err := charset.NewReaderLabel(charsetLabel, bytes.NewReader(b))
	if err != nil {
		return b, err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return b, err
	}
	return buf.Bytes(), nil
}

// Package filterparser extracts a FilterDSL from free-text queries via an
// LLM, validated through filterdsl.Translate and guarded by its own
// circuit breaker — independent of the query router's breaker.
package filterparser

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"ragengine/internal/breaker"
	"ragengine/internal/filterdsl"
)

// Completer is the narrow LLM surface this component needs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

var allowedFieldsPrompt = "Allowed fields: docType, repoId, lang, path, mimeType, ingestedAt, createdAt, updatedAt. " +
	"Allowed operators: eq, ne, gt, gte, lt, lte, isNull, isNotNull, in, notIn, between, notBetween " +
	"(gt/gte/lt/lte/between/notBetween only valid on ingestedAt/createdAt/updatedAt)."

// Parser extracts a FilterDSL from a natural-language query.
type Parser struct {
	llm     Completer
	enabled bool
	breaker *breaker.Breaker
	timeout time.Duration
}

// Option configures a Parser.
type Option func(*Parser)

func WithLLM(c Completer) Option   { return func(p *Parser) { p.llm = c } }
func WithEnabled(v bool) Option    { return func(p *Parser) { p.enabled = v } }
func WithBreaker(b *breaker.Breaker) Option { return func(p *Parser) { p.breaker = b } }
func WithTimeout(d time.Duration) Option { return func(p *Parser) { p.timeout = d } }

// New constructs a Parser. Default timeout is 1.5s.
func New(opts ...Option) *Parser {
	p := &Parser{breaker: breaker.New(), timeout: 1500 * time.Millisecond}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns a validated Filter, or nil when the flag is off, the
// query is empty, the breaker is open, or the LLM's response fails
// validation. It never returns an error to the caller — every failure
// mode degrades to "no filter".
func (p *Parser) Parse(ctx context.Context, query string) *filterdsl.Filter {
	query = strings.TrimSpace(query)
	if !p.enabled || query == "" || p.llm == nil || !p.breaker.Allow() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	prompt := allowedFieldsPrompt + " Respond with exactly one JSON object {\"conditions\":[...], \"combine\":\"and|or\"}. Query: " + query

	reply, err := p.llm.Complete(ctx, prompt)
	if err != nil {
		p.breaker.RecordFailure()
		return nil
	}

	raw := extractFirstJSONObject(reply)
	if raw == "" {
		p.breaker.RecordFailure()
		return nil
	}

	f, err := filterdsl.ParseJSON([]byte(raw))
	if err != nil {
		p.breaker.RecordFailure()
		return nil
	}

	if _, _, err := filterdsl.Translate(f, 0); err != nil {
		p.breaker.RecordFailure()
		return nil
	}

	p.breaker.RecordSuccess()
	return &f
}

// extractFirstJSONObject scans s for the first balanced top-level {...}
// substring, tolerating any surrounding prose in the reply.
func extractFirstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				var probe json.RawMessage
				if json.Unmarshal([]byte(candidate), &probe) == nil {
					return candidate
				}
				return ""
			}
		}
	}
	return ""
}

// Package router implements the three-tier query intent classifier:
// explicit override, an ordered rule engine, and an LLM fallback guarded
// by a circuit breaker.
package router

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"ragengine/internal/breaker"
	"ragengine/internal/obs"
)

// Strategy is the chosen retrieval path.
type Strategy string

const (
	Semantic Strategy = "semantic"
	Metadata Strategy = "metadata"
	Graph    Strategy = "graph"
	Hybrid   Strategy = "hybrid"
)

// Method names which tier produced the verdict.
type Method string

const (
	MethodExplicit     Method = "explicit"
	MethodRule         Method = "rule"
	MethodLLM          Method = "llm"
	MethodRuleFallback Method = "rule_fallback"
	MethodDefault      Method = "default"
)

// Request carries every signal the router considers.
type Request struct {
	Query        string
	Strategy     Strategy // explicit override, empty if unset
	HasFilter    bool
	GraphExpand  bool
}

// Verdict is the router's output.
type Verdict struct {
	Strategy   Strategy
	Confidence float64
	Method     Method
	Rule       string
}

// Completer is the narrow LLM surface the router's tier-3 fallback needs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Router classifies query intent.
type Router struct {
	llm        Completer
	llmEnabled bool
	breaker    *breaker.Breaker
	timeout    time.Duration
	logger     obs.Logger
	metrics    obs.Metrics
}

// Option configures a Router.
type Option func(*Router)

func WithLLM(c Completer) Option { return func(r *Router) { r.llm = c } }
func WithLLMEnabled(v bool) Option { return func(r *Router) { r.llmEnabled = v } }
func WithBreaker(b *breaker.Breaker) Option { return func(r *Router) { r.breaker = b } }
func WithTimeout(d time.Duration) Option { return func(r *Router) { r.timeout = d } }
func WithLogger(l obs.Logger) Option { return func(r *Router) { r.logger = l } }
func WithMetrics(m obs.Metrics) Option { return func(r *Router) { r.metrics = m } }

// New constructs a Router. Default timeout is 2s, matching the spec's
// single abort-token budget.
func New(opts ...Option) *Router {
	r := &Router{
		breaker: breaker.New(),
		timeout: 2 * time.Second,
		logger:  obs.NoopLogger{},
		metrics: obs.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var entityQuestionPattern = regexp.MustCompile(`(?i)^(who|what|which) (is|are)\b`)
var pascalCasePattern = regexp.MustCompile(`\b[A-Z][a-z0-9]+[A-Z][A-Za-z0-9]*\b`)
var filterLikePattern = regexp.MustCompile(`(?i)^(show|list|find) (all )?.*(in|from|of)\b`)
var relationalPattern = regexp.MustCompile(`(?i)\b(related to|connected to|depends on|references)\b`)

// Route classifies the request into a Verdict.
func (r *Router) Route(ctx context.Context, req Request) Verdict {
	if req.Strategy != "" {
		return Verdict{Strategy: req.Strategy, Confidence: 1.0, Method: MethodExplicit}
	}

	ruleVerdict, matched := r.applyRules(req)
	if matched && ruleVerdict.Confidence >= 0.8 {
		return ruleVerdict
	}

	if r.llmEnabled && r.llm != nil && r.breaker.Allow() {
		if v, ok := r.tryLLM(ctx, req); ok {
			return v
		}
	}

	if matched {
		ruleVerdict.Method = MethodRuleFallback
		return ruleVerdict
	}

	return Verdict{Strategy: Semantic, Confidence: 1.0, Method: MethodDefault}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func (r *Router) applyRules(req Request) (Verdict, bool) {
	q := strings.TrimSpace(req.Query)

	if req.HasFilter && wordCount(q) <= 3 && !req.GraphExpand {
		return Verdict{Strategy: Metadata, Confidence: 1.0, Method: MethodRule, Rule: "filter_short_query"}, true
	}
	if req.GraphExpand && !req.HasFilter {
		return Verdict{Strategy: Graph, Confidence: 1.0, Method: MethodRule, Rule: "graph_expand"}, true
	}
	if req.GraphExpand && req.HasFilter {
		return Verdict{Strategy: Hybrid, Confidence: 1.0, Method: MethodRule, Rule: "graph_expand_filter"}, true
	}
	if req.HasFilter && q == "" {
		return Verdict{Strategy: Metadata, Confidence: 1.0, Method: MethodRule, Rule: "empty_query_filter"}, true
	}
	if entityQuestionPattern.MatchString(q) || pascalCasePattern.MatchString(q) {
		return Verdict{Strategy: Graph, Confidence: 0.7, Method: MethodRule, Rule: "entity_pattern"}, true
	}
	if filterLikePattern.MatchString(q) {
		return Verdict{Strategy: Metadata, Confidence: 0.6, Method: MethodRule, Rule: "filter_like_pattern"}, true
	}
	if relationalPattern.MatchString(q) {
		return Verdict{Strategy: Hybrid, Confidence: 0.6, Method: MethodRule, Rule: "relational_pattern"}, true
	}
	return Verdict{}, false
}

type llmVerdict struct {
	Strategy   Strategy `json:"strategy"`
	Confidence float64  `json:"confidence"`
}

func (r *Router) tryLLM(ctx context.Context, req Request) (Verdict, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	prompt := "Classify the retrieval strategy for this query as JSON {\"strategy\": \"semantic|metadata|graph|hybrid\", \"confidence\": 0..1}. Query: " + req.Query

	reply, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		r.breaker.RecordFailure()
		r.metrics.IncCounter("router_llm_failure", nil)
		return Verdict{}, false
	}

	var v llmVerdict
	if jerr := json.Unmarshal([]byte(reply), &v); jerr != nil {
		r.breaker.RecordFailure()
		return Verdict{}, false
	}
	if v.Confidence < 0.5 || !isValidStrategy(v.Strategy) {
		r.breaker.RecordFailure()
		return Verdict{}, false
	}

	r.breaker.RecordSuccess()
	return Verdict{Strategy: v.Strategy, Confidence: v.Confidence, Method: MethodLLM}, true
}

func isValidStrategy(s Strategy) bool {
	switch s {
	case Semantic, Metadata, Graph, Hybrid:
		return true
	}
	return false
}

package router

import (
	"context"
	"testing"
)

func TestRoute_Explicit(t *testing.T) {
	r := New()
	v := r.Route(context.Background(), Request{Strategy: Metadata})
	if v.Method != MethodExplicit || v.Strategy != Metadata || v.Confidence != 1.0 {
		t.Fatalf("unexpected verdict: %#v", v)
	}
}

func TestRoute_FilterShortQuery(t *testing.T) {
	r := New()
	v := r.Route(context.Background(), Request{Query: "go files", HasFilter: true})
	if v.Strategy != Metadata || v.Rule != "filter_short_query" {
		t.Fatalf("unexpected verdict: %#v", v)
	}
}

func TestRoute_GraphExpand(t *testing.T) {
	r := New()
	v := r.Route(context.Background(), Request{Query: "tell me about the system", GraphExpand: true})
	if v.Strategy != Graph || v.Rule != "graph_expand" {
		t.Fatalf("unexpected verdict: %#v", v)
	}
}

func TestRoute_GraphExpandWithFilter(t *testing.T) {
	r := New()
	v := r.Route(context.Background(), Request{Query: "tell me about the system", GraphExpand: true, HasFilter: true})
	if v.Strategy != Hybrid || v.Rule != "graph_expand_filter" {
		t.Fatalf("unexpected verdict: %#v", v)
	}
}

func TestRoute_EmptyQueryFilter(t *testing.T) {
	r := New()
	v := r.Route(context.Background(), Request{Query: "", HasFilter: true})
	if v.Strategy != Metadata || v.Rule != "empty_query_filter" {
		t.Fatalf("unexpected verdict: %#v", v)
	}
}

func TestRoute_EntityPattern(t *testing.T) {
	r := New()
	v := r.Route(context.Background(), Request{Query: "who is the author of this module"})
	if v.Strategy != Graph || v.Rule != "entity_pattern" || v.Confidence != 0.7 {
		t.Fatalf("unexpected verdict: %#v", v)
	}
}

func TestRoute_PascalCaseEntity(t *testing.T) {
	r := New()
	v := r.Route(context.Background(), Request{Query: "explain QueryRouter behavior"})
	if v.Strategy != Graph || v.Rule != "entity_pattern" {
		t.Fatalf("unexpected verdict: %#v", v)
	}
}

func TestRoute_FilterLikePattern(t *testing.T) {
	r := New()
	v := r.Route(context.Background(), Request{Query: "show all files in the repo"})
	if v.Strategy != Metadata || v.Rule != "filter_like_pattern" {
		t.Fatalf("unexpected verdict: %#v", v)
	}
}

func TestRoute_RelationalPattern(t *testing.T) {
	r := New()
	v := r.Route(context.Background(), Request{Query: "modules related to authentication"})
	if v.Strategy != Hybrid || v.Rule != "relational_pattern" {
		t.Fatalf("unexpected verdict: %#v", v)
	}
}

func TestRoute_DefaultSemantic(t *testing.T) {
	r := New()
	v := r.Route(context.Background(), Request{Query: "a plain query with no signals"})
	if v.Strategy != Semantic || v.Method != MethodDefault {
		t.Fatalf("unexpected verdict: %#v", v)
	}
}

type fakeCompleter struct {
	reply string
	err   error
}

func (f fakeCompleter) Complete(context.Context, string) (string, error) { return f.reply, f.err }

func TestRoute_LLMFallbackOnLowConfidenceRule(t *testing.T) {
	r := New(WithLLM(fakeCompleter{reply: `{"strategy":"hybrid","confidence":0.9}`}), WithLLMEnabled(true))
	v := r.Route(context.Background(), Request{Query: "who is responsible for payments processing here"})
	if v.Method != MethodLLM || v.Strategy != Hybrid {
		t.Fatalf("unexpected verdict: %#v", v)
	}
}

func TestRoute_LLMLowConfidenceFallsBackToRule(t *testing.T) {
	r := New(WithLLM(fakeCompleter{reply: `{"strategy":"hybrid","confidence":0.2}`}), WithLLMEnabled(true))
	v := r.Route(context.Background(), Request{Query: "who is responsible for payments processing here"})
	if v.Method != MethodRuleFallback {
		t.Fatalf("expected rule_fallback, got %#v", v)
	}
}

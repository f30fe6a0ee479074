// Package query implements QueryService: router dispatch across the
// semantic, metadata, graph, and hybrid retrieval strategies described by
// the teacher's rag/retrieve package, generalized to this engine's
// filter-aware, graph-aware chunk store.
package query

import (
	"context"
	"strings"

	"ragengine/internal/apierr"
	"ragengine/internal/embedder"
	"ragengine/internal/filterdsl"
	"ragengine/internal/filterparser"
	"ragengine/internal/graph"
	"ragengine/internal/model"
	"ragengine/internal/obs"
	"ragengine/internal/router"
	"ragengine/internal/store/postgres"
)

// Store is the narrow read surface QueryService needs from the chunk
// store: vector similarity search, filter-only lookup, and the two rerank
// shapes the hybrid flows need.
type Store interface {
	SimilaritySearch(ctx context.Context, collection string, vector []float32, k int, filter filterdsl.Filter) ([]postgres.VectorHit, error)
	QueryByFilter(ctx context.Context, collection string, filter filterdsl.Filter, limit int) ([]model.Chunk, error)
	RerankByChunkIDs(ctx context.Context, vector []float32, chunkIDs []string) ([]postgres.VectorHit, error)
	RerankByDocumentIDs(ctx context.Context, vector []float32, documentIDs []string) ([]postgres.VectorHit, error)
}

var _ Store = (*postgres.Store)(nil)

// seedLimit bounds HybridGraphFlow's initial semantic seed search.
const seedLimit = 20

// Graph-pool blend weights for HybridGraphFlow's merge step. Must sum to
// 1.0 — asserted in init.
const (
	semanticWeight = 0.85
	mentionWeight  = 0.15
)

func init() {
	if semanticWeight+mentionWeight != 1.0 {
		panic("query: graph blend weights must sum to 1.0")
	}
}

// GraphParams bounds a graph traversal invoked by the graph and hybrid
// strategies. Zero values take this package's defaults: maxDepth 2,
// maxEntities 50, timeLimitMs 5000.
type GraphParams struct {
	MaxDepth         int  `json:"maxDepth,omitempty"`
	MaxEntities      int  `json:"maxEntities,omitempty"`
	TimeLimitMS      int  `json:"timeLimitMs,omitempty"`
	IncludeDocuments bool `json:"includeDocuments,omitempty"`
}

// Request is one query invocation.
type Request struct {
	Collection   string            `json:"collection,omitempty"`
	Query        string            `json:"query"`
	Strategy     router.Strategy   `json:"strategy,omitempty"` // explicit override, empty lets the router decide
	Filter       *filterdsl.Filter `json:"filter,omitempty"`
	TopK         int               `json:"topK,omitempty"`
	MinScore     *float64          `json:"minScore,omitempty"`
	GraphExpand  bool              `json:"graphExpand,omitempty"`
	SeedEntities []string          `json:"seedEntities,omitempty"`
	Graph        GraphParams       `json:"graph,omitempty"`
}

// Result is one ranked chunk.
type Result struct {
	ChunkID    string         `json:"chunkId"`
	DocumentID string         `json:"documentId"`
	Text       string         `json:"text"`
	Score      float64        `json:"score"`
	DocType    string         `json:"docType,omitempty"`
	RepoID     string         `json:"repoId,omitempty"`
	Path       string         `json:"path,omitempty"`
	Lang       string         `json:"lang,omitempty"`
	ItemURL    string         `json:"itemUrl,omitempty"`
	Tier2Meta  map[string]any `json:"tier2Meta,omitempty"`
	Tier3Meta  map[string]any `json:"tier3Meta,omitempty"`
}

// GraphResult is the traversal returned alongside graph/hybrid-graph
// results. Warning is set instead of entities/edges when seeding failed.
type GraphResult struct {
	Entities []postgres.TraversedEntity `json:"entities,omitempty"`
	Edges    []postgres.TraversedEdge  `json:"edges,omitempty"`
	Paths    []postgres.TraversalPath  `json:"paths,omitempty"`
	Capped   bool                      `json:"capped,omitempty"`
	TimedOut bool                      `json:"timedOut,omitempty"`
	Warning  string                    `json:"warning,omitempty"`
}

// Routing reports how the request's strategy was chosen.
type Routing struct {
	Strategy       router.Strategy `json:"strategy"`
	Confidence     float64         `json:"confidence"`
	Method         router.Method   `json:"method"`
	Rule           string          `json:"rule,omitempty"`
	InferredFilter bool            `json:"inferredFilter,omitempty"`
}

// Response is QueryService's result.
type Response struct {
	OK      bool     `json:"ok"`
	Results []Result `json:"results"`
	Graph   *GraphResult `json:"graph,omitempty"`
	Routing Routing      `json:"routing"`
}

// Service orchestrates routing, optional filter inference, and the four
// retrieval strategies.
type Service struct {
	store   Store
	graph   graph.Backend
	embed   embedder.Embedder
	router  *router.Router
	filters *filterparser.Parser
	logger  obs.Logger
	metrics obs.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l obs.Logger) Option  { return func(s *Service) { s.logger = l } }
func WithMetrics(m obs.Metrics) Option { return func(s *Service) { s.metrics = m } }

// New constructs a Service. filters may be nil to disable filter inference.
func New(store Store, g graph.Backend, emb embedder.Embedder, r *router.Router, filters *filterparser.Parser, opts ...Option) *Service {
	s := &Service{
		store:   store,
		graph:   g,
		embed:   emb,
		router:  r,
		filters: filters,
		logger:  obs.NoopLogger{},
		metrics: obs.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query dispatches req to the strategy chosen by the router (or the
// caller's explicit override), returning ranked results plus, for the
// graph and hybrid-graph strategies, the supporting graph traversal.
func (s *Service) Query(ctx context.Context, req Request) (Response, error) {
	collection := strings.TrimSpace(req.Collection)
	if collection == "" {
		return Response{}, apierr.Validation("collection is required")
	}

	filter := req.Filter
	hasFilter := filter != nil && len(filter.Conditions) > 0

	verdict := s.router.Route(ctx, router.Request{
		Query:       req.Query,
		Strategy:    req.Strategy,
		HasFilter:   hasFilter,
		GraphExpand: req.GraphExpand,
	})
	routing := Routing{Strategy: verdict.Strategy, Confidence: verdict.Confidence, Method: verdict.Method, Rule: verdict.Rule}

	if !hasFilter && s.filters != nil {
		if inferred := s.filters.Parse(ctx, req.Query); inferred != nil {
			filter = inferred
			hasFilter = true
			routing.InferredFilter = true
		}
	}
	if filter == nil {
		filter = &filterdsl.Filter{}
	}

	topK := req.TopK
	if topK <= 0 {
		topK = 8
	}
	minScore := defaultMinScore(req.Query)
	if req.MinScore != nil {
		minScore = *req.MinScore
	}

	switch verdict.Strategy {
	case router.Metadata:
		results, err := s.metadataFlow(ctx, collection, *filter, topK)
		if err != nil {
			return Response{}, err
		}
		return Response{OK: true, Results: results, Routing: routing}, nil

	case router.Graph:
		return s.graphStrategy(ctx, req, collection, *filter, topK, minScore, routing)

	case router.Hybrid:
		if req.GraphExpand || !hasFilter {
			return s.hybridGraphFlow(ctx, req, collection, topK, minScore, routing)
		}
		return s.hybridMetadataFlow(ctx, req, collection, *filter, topK, minScore, routing)

	default: // Semantic
		results, err := s.semanticFlow(ctx, collection, req.Query, *filter, topK, minScore)
		if err != nil {
			return Response{}, err
		}
		return Response{OK: true, Results: results, Routing: routing}, nil
	}
}

// defaultMinScore implements the term-count-scaled default: 1 term → 0.3,
// 2 → 0.4, 3-4 → 0.5, 5+ → 0.6.
func defaultMinScore(query string) float64 {
	n := len(strings.Fields(query))
	switch {
	case n <= 1:
		return 0.3
	case n == 2:
		return 0.4
	case n <= 4:
		return 0.5
	default:
		return 0.6
	}
}

func hitToResult(h postgres.VectorHit) Result {
	return Result{
		ChunkID:    h.Chunk.ExternalID(),
		DocumentID: h.DocumentID,
		Text:       h.Chunk.Text,
		Score:      h.Score,
		DocType:    h.Chunk.DocType,
		RepoID:     h.Chunk.RepoID,
		Path:       h.Chunk.Path,
		Lang:       h.Chunk.Lang,
		ItemURL:    h.Chunk.ItemURL,
		Tier2Meta:  h.Chunk.Tier2Meta,
		Tier3Meta:  h.Chunk.Tier3Meta,
	}
}

func chunkToResult(c model.Chunk) Result {
	return Result{
		ChunkID:    c.ExternalID(),
		DocumentID: c.DocumentID,
		Text:       c.Text,
		Score:      1.0,
		DocType:    c.DocType,
		RepoID:     c.RepoID,
		Path:       c.Path,
		Lang:       c.Lang,
		ItemURL:    c.ItemURL,
	}
}

// Package httpapi exposes the RAG ingestion/query engine's HTTP surface:
// ingest, query (plus its two streaming variants), enrichment control, and
// graph/collection introspection, grounded on the teacher's
// internal/httpapi server/handler split (http.ServeMux with method-prefixed
// route patterns, r.PathValue, respondJSON/respondError) and generalized
// from the teacher's playground-API routes to this engine's domain
// services.
package httpapi

import (
	"net/http"
	"time"

	"ragengine/internal/enrichment"
	"ragengine/internal/graph"
	"ragengine/internal/ingest"
	"ragengine/internal/obs"
	"ragengine/internal/query"
	"ragengine/internal/repoingest"
	"ragengine/internal/store/postgres"
)

// Config carries the auth/CORS/rate-limit knobs the server's middleware
// chain reads at construction time.
type Config struct {
	AuthToken       string
	CORSOrigin      string
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// Server wires every domain service behind one http.Handler.
type Server struct {
	ingest      *ingest.Service
	query       *query.Service
	enrichment  *enrichment.Coordinator
	graph       graph.Backend // nil when the graph feature is disabled
	collections *postgres.Store
	repos       *repoingest.Ingester // nil when repository ingestion isn't configured

	cfg    Config
	logger obs.Logger

	mux     *http.ServeMux
	handler http.Handler
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithGraph enables the /graph/entity route. Omitting it leaves the graph
// backend nil, and graph routes answer 503 per spec.md's
// ServiceUnavailableError policy.
func WithGraph(g graph.Backend) Option { return func(s *Server) { s.graph = g } }

// WithRepoIngest enables repository-file ingestion triggered through the
// HTTP surface (additive to spec.md's core route table).
func WithRepoIngest(r *repoingest.Ingester) Option { return func(s *Server) { s.repos = r } }

// WithLogger attaches request logging.
func WithLogger(l obs.Logger) Option { return func(s *Server) { s.logger = l } }

// NewServer constructs the HTTP handler, registering every route and
// wrapping it in the auth/CORS/rate-limit/logging middleware chain.
func NewServer(ingestSvc *ingest.Service, querySvc *query.Service, enrichSvc *enrichment.Coordinator, store *postgres.Store, cfg Config, opts ...Option) *Server {
	s := &Server{
		ingest:      ingestSvc,
		query:       querySvc,
		enrichment:  enrichSvc,
		collections: store,
		cfg:         cfg,
		logger:      obs.NoopLogger{},
		mux:         http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()

	var h http.Handler = s.mux
	h = withRequestLog(s.logger, h)
	h = withRateLimit(cfg.RateLimitMax, cfg.RateLimitWindow, h)
	h = withCORS(cfg.CORSOrigin, h)
	h = withAuth(cfg.AuthToken, h)
	s.handler = h
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.mux.HandleFunc("POST /ingest", s.handleIngest)

	s.mux.HandleFunc("POST /query", s.handleQuery)
	s.mux.HandleFunc("POST /query/fulltext-first", s.handleQueryFulltextFirst)
	s.mux.HandleFunc("POST /query/download-first", s.handleQueryDownloadFirst)

	s.mux.HandleFunc("GET /enrichment/status/{baseId}", s.handleEnrichmentStatus)
	s.mux.HandleFunc("GET /enrichment/stats", s.handleEnrichmentStats)
	s.mux.HandleFunc("POST /enrichment/enqueue", s.handleEnrichmentEnqueue)
	s.mux.HandleFunc("POST /enrichment/clear", s.handleEnrichmentClear)

	s.mux.HandleFunc("GET /graph/entity/{name}", s.handleGraphEntity)

	s.mux.HandleFunc("GET /collections", s.handleCollections)

	if s.repos != nil {
		s.mux.HandleFunc("POST /repos/ingest", s.handleRepoIngest)
	}
}

package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"ragengine/internal/apierr"
	"ragengine/internal/config"
	"ragengine/internal/enrichment"
	"ragengine/internal/ingest"
	"ragengine/internal/query"
	"ragengine/internal/repoingest"
)

const (
	maxIngestItems    = 1000
	maxIngestURLItems = 50
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingest.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, apierr.Validationf("invalid request body: %v", err))
		return
	}
	if req.Collection == "" {
		req.Collection = config.DefaultCollection
	}
	if err := validateIngestRequest(req); err != nil {
		respondError(w, apierr.StatusCode(err), err)
		return
	}

	resp, err := s.ingest.Ingest(r.Context(), req)
	if err != nil {
		respondError(w, apierr.StatusCode(err), err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func validateIngestRequest(req ingest.Request) error {
	if len(req.Items) == 0 {
		return apierr.Validation("items is required")
	}
	if len(req.Items) > maxIngestItems {
		return apierr.Validationf("items exceeds the %d-item cap", maxIngestItems)
	}
	urlItems := 0
	for i, it := range req.Items {
		if it.Text == "" && it.URL == "" {
			return apierr.Validationf("items[%d]: text or url is required", i)
		}
		if it.URL != "" {
			urlItems++
			if !strings.HasPrefix(it.URL, "http://") && !strings.HasPrefix(it.URL, "https://") {
				return apierr.Validationf("items[%d]: url must be http(s)", i)
			}
		}
	}
	if urlItems > maxIngestURLItems {
		return apierr.Validationf("items exceeds the %d-url cap", maxIngestURLItems)
	}
	return nil
}

func decodeQueryRequest(r *http.Request) (query.Request, error) {
	var req query.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return query.Request{}, apierr.Validationf("invalid request body: %v", err)
	}
	if req.Collection == "" {
		req.Collection = config.DefaultCollection
	}
	if req.TopK < 0 || req.TopK > 100 {
		return query.Request{}, apierr.Validation("topK must be in [1,100]")
	}
	if req.MinScore != nil && (*req.MinScore < 0 || *req.MinScore > 1) {
		return query.Request{}, apierr.Validation("minScore must be in [0,1]")
	}
	return req, nil
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, err := decodeQueryRequest(r)
	if err != nil {
		respondError(w, apierr.StatusCode(err), err)
		return
	}
	resp, err := s.query.Query(r.Context(), req)
	if err != nil {
		respondError(w, apierr.StatusCode(err), err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleQueryFulltextFirst runs the same query as /query but renders the
// top results as concatenated plain text, for callers that want an
// LLM-ready context blob rather than structured JSON.
func (s *Server) handleQueryFulltextFirst(w http.ResponseWriter, r *http.Request) {
	req, err := decodeQueryRequest(r)
	if err != nil {
		respondError(w, apierr.StatusCode(err), err)
		return
	}
	resp, err := s.query.Query(r.Context(), req)
	if err != nil {
		respondError(w, apierr.StatusCode(err), err)
		return
	}
	if len(resp.Results) == 0 {
		respondError(w, http.StatusNotFound, apierr.NotFound("no matching chunks"))
		return
	}
	var sb strings.Builder
	for i, res := range resp.Results {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		sb.WriteString(res.Text)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sb.String()))
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// handleQueryDownloadFirst streams the top result's text as a file
// attachment, with a filename derived from its path/docType and sanitized
// against path traversal and header injection.
func (s *Server) handleQueryDownloadFirst(w http.ResponseWriter, r *http.Request) {
	req, err := decodeQueryRequest(r)
	if err != nil {
		respondError(w, apierr.StatusCode(err), err)
		return
	}
	resp, err := s.query.Query(r.Context(), req)
	if err != nil {
		respondError(w, apierr.StatusCode(err), err)
		return
	}
	if len(resp.Results) == 0 {
		respondError(w, http.StatusNotFound, apierr.NotFound("no matching chunks"))
		return
	}
	top := resp.Results[0]
	filename := safeDownloadFilename(top)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(top.Text))
}

func safeDownloadFilename(res query.Result) string {
	base := res.Path
	if base == "" {
		base = res.ChunkID
	}
	base = base[strings.LastIndexAny(base, "/\\")+1:]
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	if base == "" {
		base = "result.txt"
	}
	if !strings.Contains(base, ".") {
		base += ".txt"
	}
	return base
}

func (s *Server) handleEnrichmentStatus(w http.ResponseWriter, r *http.Request) {
	baseID := r.PathValue("baseId")
	collection := firstNonEmptyQuery(r, "collection", config.DefaultCollection)
	status, err := s.enrichment.GetStatus(r.Context(), collection, baseID)
	if err != nil {
		respondError(w, apierr.StatusCode(err), err)
		return
	}
	if status.State == "none" {
		respondError(w, http.StatusNotFound, apierr.NotFound("unknown baseId"))
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleEnrichmentStats(w http.ResponseWriter, r *http.Request) {
	collection := firstNonEmptyQuery(r, "collection", config.DefaultCollection)
	stats, err := s.enrichment.GetStats(r.Context(), collection)
	if err != nil {
		respondError(w, apierr.StatusCode(err), err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleEnrichmentEnqueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Collection string `json:"collection,omitempty"`
		enrichment.EnqueueOptions
	}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			respondError(w, http.StatusBadRequest, apierr.Validationf("invalid request body: %v", err))
			return
		}
	}
	if req.Collection == "" {
		req.Collection = config.DefaultCollection
	}
	result, err := s.enrichment.Enqueue(r.Context(), req.Collection, req.EnqueueOptions)
	if err != nil {
		respondError(w, apierr.StatusCode(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "enqueued": result.Enqueued})
}

func (s *Server) handleEnrichmentClear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Collection string `json:"collection"`
		Filter     string `json:"filter,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, apierr.Validationf("invalid request body: %v", err))
		return
	}
	if req.Collection == "" {
		respondError(w, http.StatusBadRequest, apierr.Validation("collection is required"))
		return
	}
	result, err := s.enrichment.ClearQueue(r.Context(), req.Collection, req.Filter)
	if err != nil {
		respondError(w, apierr.StatusCode(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "cleared": result.Cleared})
}

func (s *Server) handleGraphEntity(w http.ResponseWriter, r *http.Request) {
	if s.graph == nil {
		respondError(w, http.StatusServiceUnavailable, apierr.ServiceUnavailable("graph backend is disabled"))
		return
	}
	name := r.PathValue("name")
	entity, ok, err := s.graph.GetEntity(r.Context(), name)
	if err != nil {
		wrapped := apierr.Internal(err)
		respondError(w, apierr.StatusCode(wrapped), wrapped)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, apierr.NotFound("unknown entity"))
		return
	}
	edges, err := s.graph.GetEntityRelationships(r.Context(), entity.ID, 50)
	if err != nil {
		wrapped := apierr.Internal(err)
		respondError(w, apierr.StatusCode(wrapped), wrapped)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"entity": entity, "relationships": edges})
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	stats, err := s.collections.CollectionStats(r.Context())
	if err != nil {
		wrapped := apierr.Internal(err)
		respondError(w, apierr.StatusCode(wrapped), wrapped)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"collections": stats})
}

// handleRepoIngest triggers a synchronous clone-and-ingest of one
// repository. Additive to spec.md's core route table: it exposes
// internal/repoingest, which spec.md's data model already accounts for
// (docType=code, repoId/repoUrl/path) but which spec.md's own route table
// never surfaces over HTTP.
func (s *Server) handleRepoIngest(w http.ResponseWriter, r *http.Request) {
	var opts repoingest.Options
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		respondError(w, http.StatusBadRequest, apierr.Validationf("invalid request body: %v", err))
		return
	}
	if opts.RepoURL == "" || opts.LocalPath == "" {
		respondError(w, http.StatusBadRequest, apierr.Validation("repoUrl and localPath are required"))
		return
	}
	if opts.Collection == "" {
		opts.Collection = config.DefaultCollection
	}
	result, err := s.repos.Run(r.Context(), opts)
	if err != nil {
		wrapped := apierr.Internal(err)
		respondError(w, apierr.StatusCode(wrapped), wrapped)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func firstNonEmptyQuery(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

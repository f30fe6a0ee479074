package query

import (
	"context"
	"sort"

	"ragengine/internal/apierr"
	"ragengine/internal/filterdsl"
	"ragengine/internal/model"
	"ragengine/internal/store/postgres"
)

// hybridMetadataFlow filters first, then reranks the candidate pool by
// vector distance. Used when a filter is present and graphExpand is false.
func (s *Service) hybridMetadataFlow(ctx context.Context, req Request, collection string, filter filterdsl.Filter, topK int, minScore float64, routing Routing) (Response, error) {
	candidateLimit := topK * 5
	if candidateLimit > 500 {
		candidateLimit = 500
	}

	candidates, err := s.store.QueryByFilter(ctx, collection, filter, candidateLimit)
	if err != nil {
		return Response{}, apierr.Internal(err)
	}
	if len(candidates) == 0 {
		return Response{OK: true, Routing: routing}, nil
	}

	vec, err := s.embedOnce(ctx, req.Query)
	if err != nil {
		return Response{}, err
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	hits, err := s.store.RerankByChunkIDs(ctx, vec, ids)
	if err != nil {
		return Response{}, apierr.Internal(err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		if h.Score < minScore {
			continue
		}
		results = append(results, hitToResult(h))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return Response{OK: true, Results: results, Routing: routing}, nil
}

// hybridGraphFlow seeds from a semantic search, extracts and resolves
// entities mentioned in the seed chunks, traverses the graph from those
// entities, reranks the traversal's document set, and blends the two
// pools. Used when graphExpand is true, or no filter was supplied.
func (s *Service) hybridGraphFlow(ctx context.Context, req Request, collection string, topK int, minScore float64, routing Routing) (Response, error) {
	vec, err := s.embedOnce(ctx, req.Query)
	if err != nil {
		return Response{}, err
	}

	seedHits, err := s.store.SimilaritySearch(ctx, collection, vec, seedLimit, filterdsl.Filter{})
	if err != nil {
		return Response{}, apierr.Internal(err)
	}

	seedChunks := make([]model.Chunk, len(seedHits))
	for i, h := range seedHits {
		seedChunks[i] = h.Chunk
	}

	names := req.SeedEntities
	if len(names) == 0 {
		names = extractEntityNames(seedChunks, 50)
	}
	if len(names) == 0 {
		return s.seedOnlyResponse(seedHits, topK, minScore, routing, "No entities found in seed results to seed the graph"), nil
	}

	resolved, err := s.graph.ResolveEntities(ctx, names)
	if err != nil {
		return s.seedOnlyResponse(seedHits, topK, minScore, routing, ""), nil
	}
	if len(resolved) == 0 {
		return s.seedOnlyResponse(seedHits, topK, minScore, routing, "None of the seed entities could be resolved"), nil
	}

	seedIDs := make([]string, len(resolved))
	for i, r := range resolved {
		seedIDs[i] = r.ID
	}

	traversal, err := s.graph.Traverse(ctx, seedIDs, graphTraversalParams(req.Graph))
	if err != nil {
		return s.seedOnlyResponse(seedHits, topK, minScore, routing, ""), nil
	}

	entityIDs := make([]string, len(traversal.Entities))
	for i, e := range traversal.Entities {
		entityIDs[i] = e.ID
	}
	candidateLimit := topK * 5
	if candidateLimit > 500 {
		candidateLimit = 500
	}
	entityDocs, err := s.graph.GetEntityDocuments(ctx, entityIDs, candidateLimit)
	if err != nil {
		return Response{}, apierr.Internal(err)
	}

	maxMention := map[string]int{}
	for _, d := range entityDocs {
		if d.MentionCount > maxMention[d.DocumentID] {
			maxMention[d.DocumentID] = d.MentionCount
		}
	}
	documentIDs := make([]string, 0, len(maxMention))
	for docID := range maxMention {
		documentIDs = append(documentIDs, docID)
	}

	graphHits, err := s.store.RerankByDocumentIDs(ctx, vec, documentIDs)
	if err != nil {
		return Response{}, apierr.Internal(err)
	}

	merged := map[string]Result{}
	for _, h := range seedHits {
		merged[h.Chunk.ID] = hitToResult(h)
	}
	for _, h := range graphHits {
		mention := maxMention[h.DocumentID]
		normalizedMention := float64(mention)
		if normalizedMention > 10 {
			normalizedMention = 10
		}
		blended := semanticWeight*h.Score + mentionWeight*(normalizedMention/10)
		r := hitToResult(h)
		r.Score = blended
		merged[h.Chunk.ID] = r
	}

	results := make([]Result, 0, len(merged))
	for _, r := range merged {
		if r.Score >= minScore {
			results = append(results, r)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}

	return Response{
		OK:      true,
		Results: results,
		Graph: &GraphResult{
			Entities: traversal.Entities,
			Edges:    traversal.Edges,
			Paths:    traversal.Paths,
			Capped:   traversal.Capped,
			TimedOut: traversal.TimedOut,
		},
		Routing: routing,
	}, nil
}

func (s *Service) seedOnlyResponse(seedHits []postgres.VectorHit, topK int, minScore float64, routing Routing, warning string) Response {
	results := make([]Result, 0, len(seedHits))
	for _, h := range seedHits {
		if h.Score < minScore {
			continue
		}
		results = append(results, hitToResult(h))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return Response{
		OK:      true,
		Results: results,
		Graph:   &GraphResult{Warning: warning},
		Routing: routing,
	}
}

// graphStrategy (pure graph): extracts or uses explicit seed entities,
// resolves and traverses, and returns the traversal alongside the original
// semantic results. Any graph-side failure degrades to an undefined Graph
// field rather than failing the request.
func (s *Service) graphStrategy(ctx context.Context, req Request, collection string, filter filterdsl.Filter, topK int, minScore float64, routing Routing) (Response, error) {
	semanticResults, err := s.semanticFlow(ctx, collection, req.Query, filter, topK, minScore)
	if err != nil {
		return Response{}, err
	}

	names := req.SeedEntities
	if len(names) == 0 {
		names = extractEntityNamesFromResults(semanticResults)
	}
	if len(names) == 0 {
		return Response{OK: true, Results: semanticResults, Routing: routing}, nil
	}

	resolved, err := s.graph.ResolveEntities(ctx, names)
	if err != nil || len(resolved) == 0 {
		return Response{OK: true, Results: semanticResults, Routing: routing}, nil
	}

	seedIDs := make([]string, len(resolved))
	for i, r := range resolved {
		seedIDs[i] = r.ID
	}
	traversal, err := s.graph.Traverse(ctx, seedIDs, graphTraversalParams(req.Graph))
	if err != nil {
		return Response{OK: true, Results: semanticResults, Routing: routing}, nil
	}

	return Response{
		OK:      true,
		Results: semanticResults,
		Graph: &GraphResult{
			Entities: traversal.Entities,
			Edges:    traversal.Edges,
			Paths:    traversal.Paths,
			Capped:   traversal.Capped,
			TimedOut: traversal.TimedOut,
		},
		Routing: routing,
	}, nil
}

func graphTraversalParams(p GraphParams) postgres.TraversalParams {
	return postgres.TraversalParams{
		MaxDepth:    orDefault(p.MaxDepth, 2),
		MaxEntities: orDefault(p.MaxEntities, 50),
		TimeLimitMS: orDefault(p.TimeLimitMS, 5000),
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// extractEntityNames pulls up to limit distinct entity names from seed
// chunks' tier2Meta.entities[].text and tier3Meta.entities[].name.
func extractEntityNames(chunks []model.Chunk, limit int) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) bool {
		if name == "" || seen[name] {
			return len(out) >= limit
		}
		seen[name] = true
		out = append(out, name)
		return len(out) >= limit
	}
	for _, c := range chunks {
		for _, name := range metaEntityField(c.Tier2Meta, "text") {
			if add(name) {
				return out
			}
		}
		for _, name := range metaEntityField(c.Tier3Meta, "name") {
			if add(name) {
				return out
			}
		}
	}
	return out
}

func extractEntityNamesFromResults(results []Result) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) bool {
		if name == "" || seen[name] {
			return len(out) >= 50
		}
		seen[name] = true
		out = append(out, name)
		return len(out) >= 50
	}
	for _, r := range results {
		for _, name := range metaEntityField(r.Tier2Meta, "text") {
			if add(name) {
				return out
			}
		}
		for _, name := range metaEntityField(r.Tier3Meta, "name") {
			if add(name) {
				return out
			}
		}
	}
	return out
}

func metaEntityField(meta map[string]any, key string) []string {
	raw, ok := meta["entities"]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := obj[key].(string); ok && v != "" {
			out = append(out, v)
		}
	}
	return out
}

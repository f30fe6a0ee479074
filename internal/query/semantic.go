package query

import (
	"context"

	"ragengine/internal/apierr"
	"ragengine/internal/filterdsl"
)

// semanticFlow embeds query once and runs a cosine-distance nearest
// neighbor search scoped to collection and filter.
func (s *Service) semanticFlow(ctx context.Context, collection, query string, filter filterdsl.Filter, topK int, minScore float64) ([]Result, error) {
	vec, err := s.embedOnce(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.vectorSearch(ctx, collection, vec, filter, topK, minScore)
}

func (s *Service) vectorSearch(ctx context.Context, collection string, vec []float32, filter filterdsl.Filter, topK int, minScore float64) ([]Result, error) {
	hits, err := s.store.SimilaritySearch(ctx, collection, vec, topK, filter)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		if h.Score < minScore {
			continue
		}
		results = append(results, hitToResult(h))
	}
	return results, nil
}

// metadataFlow runs a direct SQL lookup with no vector component: every
// match scores 1.0, ordered by recency.
func (s *Service) metadataFlow(ctx context.Context, collection string, filter filterdsl.Filter, topK int) ([]Result, error) {
	chunks, err := s.store.QueryByFilter(ctx, collection, filter, topK)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	results := make([]Result, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, chunkToResult(c))
	}
	return results, nil
}

// embedOnce is the single embedder call point every strategy routes
// through, so "embed is called at most once per query" holds regardless
// of how many phases a flow has.
func (s *Service) embedOnce(ctx context.Context, query string) ([]float32, error) {
	vecs, err := s.embed.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, apierr.Upstream("embedding failed", err)
	}
	if len(vecs) == 0 {
		return nil, apierr.Upstream("embedder returned no vector", nil)
	}
	return vecs[0], nil
}

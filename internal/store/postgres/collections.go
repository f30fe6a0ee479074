package postgres

import (
	"context"

	"ragengine/internal/model"
)

// CollectionSummary aggregates one collection's document/chunk counts, the
// mirroring /collections stats endpoint described in spec.md section 6 —
// grouped by doc_type and enrichment_status, the same two dimensions the
// enrichment status/stats handlers already expose per-document.
type CollectionSummary struct {
	Collection         string
	Documents          int
	Chunks             int
	DocTypes           map[string]int
	EnrichmentStatuses map[model.EnrichmentStatus]int
}

// CollectionStats aggregates every collection's document count, chunk
// count, and chunk breakdown by doc_type and enrichment_status.
func (s *Store) CollectionStats(ctx context.Context) ([]CollectionSummary, error) {
	summaries := map[string]*CollectionSummary{}
	order := []string{}

	get := func(collection string) *CollectionSummary {
		sum, ok := summaries[collection]
		if !ok {
			sum = &CollectionSummary{
				Collection:         collection,
				DocTypes:           map[string]int{},
				EnrichmentStatuses: map[model.EnrichmentStatus]int{},
			}
			summaries[collection] = sum
			order = append(order, collection)
		}
		return sum
	}

	docRows, err := s.pool.Query(ctx, `SELECT collection, count(*) FROM documents GROUP BY collection`)
	if err != nil {
		return nil, err
	}
	for docRows.Next() {
		var collection string
		var n int
		if err := docRows.Scan(&collection, &n); err != nil {
			docRows.Close()
			return nil, err
		}
		get(collection).Documents = n
	}
	docRows.Close()
	if err := docRows.Err(); err != nil {
		return nil, err
	}

	chunkRows, err := s.pool.Query(ctx, `
SELECT d.collection, c.doc_type, c.enrichment_status, count(*)
FROM chunks c
JOIN documents d ON d.id = c.document_id
GROUP BY d.collection, c.doc_type, c.enrichment_status`)
	if err != nil {
		return nil, err
	}
	defer chunkRows.Close()
	for chunkRows.Next() {
		var collection, docType string
		var status model.EnrichmentStatus
		var n int
		if err := chunkRows.Scan(&collection, &docType, &status, &n); err != nil {
			return nil, err
		}
		sum := get(collection)
		sum.Chunks += n
		sum.DocTypes[docType] += n
		sum.EnrichmentStatuses[status] += n
	}
	if err := chunkRows.Err(); err != nil {
		return nil, err
	}

	result := make([]CollectionSummary, len(order))
	for i, collection := range order {
		result[i] = *summaries[collection]
	}
	return result, nil
}

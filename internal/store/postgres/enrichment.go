package postgres

import (
	"context"
	"fmt"

	"ragengine/internal/model"
)

// EnrichmentStatusCounts aggregates the enrichment_status of every chunk
// belonging to baseId's current document in collection, plus any recorded
// tier3Meta._error payloads, for EnrichmentCoordinator.getStatus.
func (s *Store) EnrichmentStatusCounts(ctx context.Context, collection, baseID string) (map[model.EnrichmentStatus]int, []string, error) {
	rows, err := s.pool.Query(ctx, `
SELECT c.enrichment_status, c.tier3_meta->>'_error'
FROM chunks c
JOIN documents d ON d.id = c.document_id
WHERE d.collection = $1 AND d.base_id = $2`, collection, baseID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	counts := map[model.EnrichmentStatus]int{}
	var errs []string
	for rows.Next() {
		var status string
		var errPayload *string
		if err := rows.Scan(&status, &errPayload); err != nil {
			return nil, nil, err
		}
		counts[model.EnrichmentStatus(status)]++
		if errPayload != nil && *errPayload != "" {
			errs = append(errs, *errPayload)
		}
	}
	return counts, errs, rows.Err()
}

// EnrichmentStats aggregates task counts by status and chunk counts by
// enrichment_status for collection, for EnrichmentCoordinator.getStats.
func (s *Store) EnrichmentStats(ctx context.Context, collection string) (map[model.TaskStatus]int, map[model.EnrichmentStatus]int, error) {
	taskRows, err := s.pool.Query(ctx, `
SELECT status, count(*) FROM enrichment_tasks WHERE collection = $1 GROUP BY status`, collection)
	if err != nil {
		return nil, nil, err
	}
	taskCounts := map[model.TaskStatus]int{}
	for taskRows.Next() {
		var status string
		var n int
		if err := taskRows.Scan(&status, &n); err != nil {
			taskRows.Close()
			return nil, nil, err
		}
		taskCounts[model.TaskStatus(status)] = n
	}
	taskRows.Close()
	if err := taskRows.Err(); err != nil {
		return nil, nil, err
	}

	chunkRows, err := s.pool.Query(ctx, `
SELECT c.enrichment_status, count(*)
FROM chunks c
JOIN documents d ON d.id = c.document_id
WHERE d.collection = $1
GROUP BY c.enrichment_status`, collection)
	if err != nil {
		return nil, nil, err
	}
	defer chunkRows.Close()
	chunkCounts := map[model.EnrichmentStatus]int{}
	for chunkRows.Next() {
		var status string
		var n int
		if err := chunkRows.Scan(&status, &n); err != nil {
			return nil, nil, err
		}
		chunkCounts[model.EnrichmentStatus(status)] = n
	}
	return taskCounts, chunkCounts, chunkRows.Err()
}

// PendingChunks returns every chunk, within collection, eligible for
// enrichment: any status other than enriched, unless force widens it to
// every status. textQuery, when non-empty, narrows to chunks whose text
// matches it (ILIKE substring — the schema carries no tsvector column for
// a true websearch_to_tsquery). EnrichmentCoordinator.Enqueue uses the
// result to insert one EnrichmentTask per chunk.
func (s *Store) PendingChunks(ctx context.Context, collection string, force bool, textQuery string) ([]model.PendingChunk, error) {
	args := []any{collection}
	where := "d.collection = $1"
	if !force {
		where += " AND c.enrichment_status <> 'enriched'"
	}
	if textQuery != "" {
		args = append(args, "%"+textQuery+"%")
		where += fmt.Sprintf(" AND c.text ILIKE $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
SELECT c.id, d.base_id
FROM chunks c
JOIN documents d ON d.id = c.document_id
WHERE %s
ORDER BY d.base_id, c.chunk_index`, where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PendingChunk
	for rows.Next() {
		var pc model.PendingChunk
		if err := rows.Scan(&pc.ChunkID, &pc.BaseID); err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

// ClearEnrichmentTasks deletes pending/processing/dead tasks for
// collection, optionally restricted to baseIDs, for
// EnrichmentCoordinator.clearQueue.
func (s *Store) ClearEnrichmentTasks(ctx context.Context, collection string, baseIDs []string) (int, error) {
	args := []any{collection}
	where := "status IN ('pending', 'processing', 'dead') AND collection = $1"
	if len(baseIDs) > 0 {
		args = append(args, baseIDs)
		where += fmt.Sprintf(" AND base_id = ANY($%d)", len(args))
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM enrichment_tasks WHERE "+where, args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

package postgres

import (
	"context"
	"fmt"

	"ragengine/internal/filterdsl"
	"ragengine/internal/model"
)

// QueryByFilter runs a direct SQL query against chunks/documents in
// collection narrowed by filter, with no vector component — used by the
// "metadata" strategy and HybridMetadataFlow's candidate phase. $1/$2 are
// reserved for collection/LIMIT; filter params are numbered from $3.
func (s *Store) QueryByFilter(ctx context.Context, collection string, filter filterdsl.Filter, limit int) ([]model.Chunk, error) {
	if limit <= 0 {
		limit = 20
	}
	args := []any{collection, limit}
	where := "WHERE d.collection = $1"
	if len(filter.Conditions) > 0 {
		sql, params, err := filterdsl.Translate(filter, len(args))
		if err != nil {
			return nil, err
		}
		where += sql
		args = append(args, params...)
	}

	query := fmt.Sprintf(`
SELECT c.id, c.document_id, c.chunk_index, c.text, c.doc_type, c.repo_id, c.path, c.lang, c.item_url
FROM chunks c
JOIN documents d ON d.id = c.document_id
%s
ORDER BY c.created_at DESC
LIMIT $2`, where)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Chunk
	for rows.Next() {
		var c model.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text, &c.DocType, &c.RepoID, &c.Path, &c.Lang, &c.ItemURL); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

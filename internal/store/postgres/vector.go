package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"ragengine/internal/filterdsl"
	"ragengine/internal/model"
)

// VectorHit is one nearest-neighbor result joined with its owning
// document's filterable fields.
type VectorHit struct {
	Chunk      model.Chunk
	Score      float64
	DocumentID string
}

// distanceExprs returns the ORDER BY operator and the score projection for
// the store's configured distance metric, both relative to a $1 vector
// parameter.
func (s *Store) distanceExprs() (op, scoreExpr string) {
	switch strings.ToLower(s.metric) {
	case "l2", "euclid", "euclidean":
		return "<->", "-(c.embedding <-> $1::vector)"
	case "ip", "dot":
		return "<#>", "-(c.embedding <#> $1::vector)"
	default:
		return "<=>", "1 - (c.embedding <=> $1::vector)"
	}
}

const vectorHitColumns = "c.id, c.document_id, c.chunk_index, c.text, c.doc_type, c.repo_id, c.path, c.lang, c.item_url, c.tier2_meta, c.tier3_meta"

func scanVectorHit(rows pgx.Rows) (VectorHit, error) {
	var h VectorHit
	var tier2, tier3 []byte
	if err := rows.Scan(&h.Chunk.ID, &h.Chunk.DocumentID, &h.Chunk.ChunkIndex, &h.Chunk.Text,
		&h.Chunk.DocType, &h.Chunk.RepoID, &h.Chunk.Path, &h.Chunk.Lang, &h.Chunk.ItemURL,
		&tier2, &tier3, &h.Score); err != nil {
		return VectorHit{}, err
	}
	if err := json.Unmarshal(tier2, &h.Chunk.Tier2Meta); err != nil {
		return VectorHit{}, fmt.Errorf("decode tier2_meta: %w", err)
	}
	if err := json.Unmarshal(tier3, &h.Chunk.Tier3Meta); err != nil {
		return VectorHit{}, fmt.Errorf("decode tier3_meta: %w", err)
	}
	h.DocumentID = h.Chunk.DocumentID
	return h, nil
}

// SimilaritySearch finds the k nearest chunks in collection to vector by
// the store's configured distance metric, optionally narrowed by a
// FilterDSL translated against the chunks/documents join.
func (s *Store) SimilaritySearch(ctx context.Context, collection string, vector []float32, k int, filter filterdsl.Filter) ([]VectorHit, error) {
	if k <= 0 {
		k = 10
	}
	op, scoreExpr := s.distanceExprs()

	args := []any{toVectorLiteral(vector), k, collection}
	where := "WHERE c.embedding IS NOT NULL AND d.collection = $3"
	if len(filter.Conditions) > 0 {
		sql, params, err := filterdsl.Translate(filter, len(args))
		if err != nil {
			return nil, err
		}
		where += sql
		args = append(args, params...)
	}

	query := fmt.Sprintf(`
SELECT %s, %s AS score
FROM chunks c
JOIN documents d ON d.id = c.document_id
%s
ORDER BY c.embedding %s $1::vector
LIMIT $2`, vectorHitColumns, scoreExpr, where, op)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]VectorHit, 0, k)
	for rows.Next() {
		h, err := scanVectorHit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// RerankByChunkIDs scores exactly the given chunk ids against vector in a
// single batch, used by HybridMetadataFlow's phase-2 rerank.
func (s *Store) RerankByChunkIDs(ctx context.Context, vector []float32, chunkIDs []string) ([]VectorHit, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	_, scoreExpr := s.distanceExprs()
	query := fmt.Sprintf(`
SELECT %s, %s AS score
FROM chunks c
JOIN documents d ON d.id = c.document_id
WHERE c.id = ANY($2::text[])`, vectorHitColumns, scoreExpr)

	rows, err := s.pool.Query(ctx, query, toVectorLiteral(vector), chunkIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VectorHit
	for rows.Next() {
		h, err := scanVectorHit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// RerankByDocumentIDs scores every chunk belonging to the given documents
// against vector in a single batch, used by HybridGraphFlow's rerank phase.
func (s *Store) RerankByDocumentIDs(ctx context.Context, vector []float32, documentIDs []string) ([]VectorHit, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	_, scoreExpr := s.distanceExprs()
	query := fmt.Sprintf(`
SELECT %s, %s AS score
FROM chunks c
JOIN documents d ON d.id = c.document_id
WHERE c.document_id = ANY($2::text[]) AND c.embedding IS NOT NULL`, vectorHitColumns, scoreExpr)

	rows, err := s.pool.Query(ctx, query, toVectorLiteral(vector), documentIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VectorHit
	for rows.Next() {
		h, err := scanVectorHit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

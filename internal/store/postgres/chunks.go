package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"ragengine/internal/model"
)

// InsertChunks inserts chunk rows for a document within tx, in order,
// writing each generated id back into the passed-in slice so callers can
// reference chunks by id immediately afterward (embedding writes,
// enrichment task payloads). enrichmentStatus is applied uniformly
// (callers pass "pending" or "none" per the enrich flag).
func (s *Store) InsertChunks(ctx context.Context, tx pgx.Tx, chunks []model.Chunk, enrichmentStatus model.EnrichmentStatus) error {
	for i := range chunks {
		c := &chunks[i]
		tier1, err := json.Marshal(orEmpty(c.Tier1Meta))
		if err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `
INSERT INTO chunks (document_id, chunk_index, text, embedding, doc_type, repo_id, path, lang, item_url, tier1_meta, enrichment_status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (document_id, chunk_index) DO UPDATE SET
	text = EXCLUDED.text,
	doc_type = EXCLUDED.doc_type,
	repo_id = EXCLUDED.repo_id,
	path = EXCLUDED.path,
	lang = EXCLUDED.lang,
	item_url = EXCLUDED.item_url,
	tier1_meta = EXCLUDED.tier1_meta,
	enrichment_status = EXCLUDED.enrichment_status,
	updated_at = now()
RETURNING id`,
			c.DocumentID, c.ChunkIndex, stripNulls(c.Text), vectorLiteralOrNil(c.Embedding),
			c.DocType, c.RepoID, stripNulls(c.Path), c.Lang, c.ItemURL, tier1, string(enrichmentStatus),
		)
		if err := row.Scan(&c.ID); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}
	return nil
}

// SetEmbedding writes the embedding vector for a single chunk.
func (s *Store) SetEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	_, err := s.pool.Exec(ctx, `UPDATE chunks SET embedding = $2::vector, updated_at = now() WHERE id = $1`,
		chunkID, toVectorLiteral(embedding))
	return err
}

// ChunkTextsForDocument returns chunk texts ordered by chunkIndex, used by
// the task queue's claim operation to hand an enrichment worker its input.
func (s *Store) ChunkTextsForDocument(ctx context.Context, documentID string) ([]model.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, document_id, chunk_index, text FROM chunks
WHERE document_id = $1 ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Chunk
	for rows.Next() {
		var c model.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetChunkEnrichment writes tier2/tier3 metadata and enrichment status for
// a chunk within tx, part of TaskQueue.Complete.
func (s *Store) SetChunkEnrichment(ctx context.Context, tx pgx.Tx, chunkID string, tier2, tier3 map[string]any, status model.EnrichmentStatus) error {
	t2, err := json.Marshal(orEmpty(tier2))
	if err != nil {
		return err
	}
	t3, err := json.Marshal(orEmpty(tier3))
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
UPDATE chunks SET tier2_meta = $2, tier3_meta = $3, enrichment_status = $4, updated_at = now()
WHERE id = $1`, chunkID, t2, t3, string(status))
	return err
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func vectorLiteralOrNil(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return toVectorLiteral(v)
}

func toVectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", x)
	}
	b.WriteByte(']')
	return b.String()
}

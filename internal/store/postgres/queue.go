package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ragengine/internal/model"
)

// ClaimedTask is a leased enrichment task plus the chunk texts of its
// document, ordered by chunkIndex.
type ClaimedTask struct {
	Task   model.EnrichmentTask
	Chunks []model.Chunk
}

// Enqueue inserts pending enrichment task rows, one per task (one per
// chunk). Re-enqueuing a chunk that already has a pending or processing
// task is a no-op, enforced by the enrichment_tasks_chunk_live unique
// index rather than by a caller-side check.
func (s *Store) Enqueue(ctx context.Context, tasks []model.EnrichmentTask) error {
	batch := &pgx.Batch{}
	for _, t := range tasks {
		maxAttempts := t.MaxAttempts
		if maxAttempts <= 0 {
			maxAttempts = 5
		}
		batch.Queue(`
INSERT INTO enrichment_tasks (queue, status, collection, base_id, chunk_id, attempt, max_attempts, run_after)
VALUES ('enrichment', 'pending', $1, $2, $3, 0, $4, now())
ON CONFLICT (chunk_id) WHERE status IN ('pending', 'processing') DO NOTHING`,
			t.Collection, t.BaseID, t.ChunkID, maxAttempts)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range tasks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("enqueue: %w", err)
		}
	}
	return nil
}

// Claim selects the oldest pending, due row with FOR UPDATE SKIP LOCKED,
// marks it processing under the given worker lease, and returns it with
// its document's chunk texts. Returns (nil, nil) when no task is
// available.
func (s *Store) Claim(ctx context.Context, workerID string, leaseSeconds int) (*ClaimedTask, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
SELECT id, collection, base_id, chunk_id, attempt, max_attempts
FROM enrichment_tasks
WHERE status = 'pending' AND run_after <= now()
ORDER BY run_after, created_at
LIMIT 1
FOR UPDATE SKIP LOCKED`)

	var t model.EnrichmentTask
	if err := row.Scan(&t.ID, &t.Collection, &t.BaseID, &t.ChunkID, &t.Attempt, &t.MaxAttempts); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	leaseExpires := time.Now().Add(time.Duration(leaseSeconds) * time.Second)
	if _, err := tx.Exec(ctx, `
UPDATE enrichment_tasks SET status='processing', leased_by=$2, lease_expires_at=$3, started_at=now(), attempt=attempt+1
WHERE id=$1`, t.ID, workerID, leaseExpires); err != nil {
		return nil, err
	}
	t.Attempt++
	t.Status = model.TaskProcessing
	t.LeasedBy = workerID
	t.LeaseExpiresAt = leaseExpires

	var documentID string
	if err := tx.QueryRow(ctx, `SELECT id FROM documents WHERE base_id=$1 AND collection=$2 ORDER BY ingested_at DESC LIMIT 1`,
		t.BaseID, t.Collection).Scan(&documentID); err != nil && err != pgx.ErrNoRows {
		return nil, err
	}

	var chunks []model.Chunk
	if documentID != "" {
		rows, err := tx.Query(ctx, `SELECT id, document_id, chunk_index, text FROM chunks WHERE document_id=$1 ORDER BY chunk_index`, documentID)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var c model.Chunk
			if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text); err != nil {
				rows.Close()
				return nil, err
			}
			chunks = append(chunks, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &ClaimedTask{Task: t, Chunks: chunks}, nil
}

// CompleteResult is the enrichment payload written by Complete.
type CompleteResult struct {
	Entities      []model.Entity
	Relationships []model.EntityRelationship
	Mentions      []model.DocumentEntityMention
	ChunkMeta     map[string]ChunkEnrichment
	DocumentID    string
	Summary       string
}

// ChunkEnrichment is the tier2/tier3 metadata written for one chunk.
type ChunkEnrichment struct {
	Tier2 map[string]any
	Tier3 map[string]any
}

// Complete applies a worker's enrichment result within a single
// transaction: entity upserts (mention_count increments, description
// COALESCE), mention upserts, relationship upserts, chunk metadata
// writes, optional document summary, and marks the task completed.
func (s *Store) Complete(ctx context.Context, taskID string, result CompleteResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	entityIDs := map[string]string{}
	for _, e := range result.Entities {
		var id string
		err := tx.QueryRow(ctx, `
INSERT INTO entities (name, type, description, mention_count, last_seen)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (name) DO UPDATE SET
	type = EXCLUDED.type,
	description = COALESCE(entities.description, EXCLUDED.description),
	mention_count = entities.mention_count + EXCLUDED.mention_count,
	last_seen = now()
RETURNING id`, e.Name, e.Type, nullString(e.Description), max(e.MentionCount, 1)).Scan(&id)
		if err != nil {
			return fmt.Errorf("upsert entity %q: %w", e.Name, err)
		}
		entityIDs[e.Name] = id
	}

	for _, m := range result.Mentions {
		entityID := m.EntityID
		if entityID == "" {
			continue
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO document_entity_mentions (document_id, entity_id, mention_count)
VALUES ($1, $2, $3)
ON CONFLICT (document_id, entity_id) DO UPDATE SET mention_count = document_entity_mentions.mention_count + EXCLUDED.mention_count`,
			result.DocumentID, entityID, max(m.MentionCount, 1)); err != nil {
			return fmt.Errorf("upsert mention: %w", err)
		}
	}

	for _, rel := range result.Relationships {
		if _, err := tx.Exec(ctx, `
INSERT INTO entity_relationships (source_entity_id, target_entity_id, relationship_type, description)
VALUES ($1, $2, $3, $4)
ON CONFLICT (source_entity_id, target_entity_id, relationship_type) DO UPDATE SET
	description = COALESCE(entity_relationships.description, EXCLUDED.description)`,
			rel.SourceEntityID, rel.TargetEntityID, rel.RelationshipType, nullString(rel.Description)); err != nil {
			return fmt.Errorf("upsert relationship: %w", err)
		}
	}

	for chunkID, meta := range result.ChunkMeta {
		if err := s.SetChunkEnrichment(ctx, tx, chunkID, meta.Tier2, meta.Tier3, model.EnrichmentEnriched); err != nil {
			return err
		}
	}

	if result.Summary != "" && result.DocumentID != "" {
		if _, err := tx.Exec(ctx, `UPDATE documents SET summary=$2, updated_at=now() WHERE id=$1`, result.DocumentID, stripNulls(result.Summary)); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE enrichment_tasks SET status='completed' WHERE id=$1`, taskID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Fail records a worker error. attempt >= maxAttempts moves the task to
// dead; otherwise it returns to pending with exponential backoff
// (base 60s, multiplier 2, cap 3600s).
func (s *Store) Fail(ctx context.Context, taskID string, errMsg string) error {
	var attempt, maxAttempts int
	if err := s.pool.QueryRow(ctx, `SELECT attempt, max_attempts FROM enrichment_tasks WHERE id=$1`, taskID).Scan(&attempt, &maxAttempts); err != nil {
		return err
	}

	if attempt >= maxAttempts {
		_, err := s.pool.Exec(ctx, `UPDATE enrichment_tasks SET status='dead', error=$2 WHERE id=$1`, taskID, errMsg)
		return err
	}

	backoff := backoffSeconds(attempt)
	_, err := s.pool.Exec(ctx, `
UPDATE enrichment_tasks SET status='pending', leased_by=NULL, lease_expires_at=NULL,
	run_after = now() + ($2 || ' seconds')::interval, error=$3
WHERE id=$1`, taskID, backoff, errMsg)
	return err
}

func backoffSeconds(attempt int) int {
	if attempt < 1 {
		attempt = 1
	}
	s := 60
	for i := 1; i < attempt; i++ {
		s *= 2
		if s >= 3600 {
			return 3600
		}
	}
	if s > 3600 {
		s = 3600
	}
	return s
}

// RecoverStale returns any processing row whose lease has expired back to
// pending, to be run periodically by a watchdog.
func (s *Store) RecoverStale(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE enrichment_tasks SET status='pending', run_after=now(), leased_by=NULL, lease_expires_at=NULL
WHERE status='processing' AND lease_expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Package postgres is the relational store backing documents, chunks, the
// knowledge graph, and the enrichment task queue: pgx/v5 + pgvector,
// grounded on the teacher's persistence/databases Postgres backends and
// generalized from a generic embeddings/nodes/edges shape to the RAG
// engine's own tables.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the concrete Postgres-backed implementation of the document
// store, task queue, graph backend, and vector store.
type Store struct {
	pool   *pgxpool.Pool
	dim    int
	metric string // cosine|l2|ip
}

// Option configures a Store.
type Option func(*Store)

// WithMetric sets the pgvector distance operator family.
func WithMetric(metric string) Option {
	return func(s *Store) { s.metric = metric }
}

// Open connects to dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string, dim int, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	s := &Store{pool: pool, dim: dim, metric: "cosine"}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
			collection TEXT NOT NULL,
			identity_key TEXT NOT NULL,
			base_id TEXT NOT NULL,
			source TEXT NOT NULL,
			doc_type TEXT NOT NULL,
			repo_id TEXT NOT NULL DEFAULT '',
			repo_url TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT '',
			lang TEXT NOT NULL DEFAULT '',
			item_url TEXT NOT NULL DEFAULT '',
			mime_type TEXT NOT NULL DEFAULT '',
			size_bytes BIGINT NOT NULL DEFAULT 0,
			summary TEXT NOT NULL DEFAULT '',
			payload_checksum TEXT NOT NULL DEFAULT '',
			raw_data BYTEA,
			raw_key TEXT,
			ingested_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (collection, identity_key)
		)`),
		`CREATE INDEX IF NOT EXISTS documents_base_id ON documents(base_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			text TEXT NOT NULL,
			embedding vector(%d),
			doc_type TEXT NOT NULL DEFAULT '',
			repo_id TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT '',
			lang TEXT NOT NULL DEFAULT '',
			item_url TEXT NOT NULL DEFAULT '',
			tier1_meta JSONB NOT NULL DEFAULT '{}'::jsonb,
			tier2_meta JSONB NOT NULL DEFAULT '{}'::jsonb,
			tier3_meta JSONB NOT NULL DEFAULT '{}'::jsonb,
			enrichment_status TEXT NOT NULL DEFAULT 'none',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (document_id, chunk_index)
		)`, dimOrDefault(s.dim)),
		`CREATE INDEX IF NOT EXISTS chunks_document_id ON chunks(document_id)`,
		`CREATE INDEX IF NOT EXISTS chunks_doc_type ON chunks(doc_type)`,
		`CREATE INDEX IF NOT EXISTS chunks_repo_id ON chunks(repo_id)`,
		`CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
			name TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL DEFAULT '',
			description TEXT,
			mention_count INT NOT NULL DEFAULT 0,
			last_seen TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS entities_name_lower ON entities (lower(name))`,
		`CREATE TABLE IF NOT EXISTS entity_relationships (
			id TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
			source_entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			target_entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			relationship_type TEXT NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (source_entity_id, target_entity_id, relationship_type)
		)`,
		`CREATE INDEX IF NOT EXISTS entity_rel_source ON entity_relationships(source_entity_id, relationship_type)`,
		`CREATE INDEX IF NOT EXISTS entity_rel_target ON entity_relationships(target_entity_id, relationship_type)`,
		`CREATE TABLE IF NOT EXISTS document_entity_mentions (
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			mention_count INT NOT NULL DEFAULT 0,
			PRIMARY KEY (document_id, entity_id)
		)`,
		`CREATE TABLE IF NOT EXISTS enrichment_tasks (
			id TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
			queue TEXT NOT NULL DEFAULT 'enrichment',
			status TEXT NOT NULL DEFAULT 'pending',
			collection TEXT NOT NULL,
			base_id TEXT NOT NULL,
			chunk_id TEXT NOT NULL,
			attempt INT NOT NULL DEFAULT 0,
			max_attempts INT NOT NULL DEFAULT 5,
			run_after TIMESTAMPTZ NOT NULL DEFAULT now(),
			leased_by TEXT,
			lease_expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			started_at TIMESTAMPTZ,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS enrichment_tasks_claim ON enrichment_tasks(status, run_after, created_at)`,
		`CREATE INDEX IF NOT EXISTS enrichment_tasks_lease ON enrichment_tasks(status, lease_expires_at)`,
		// A chunk can have at most one live (pending or processing) task:
		// re-enqueuing a chunk already awaiting or under enrichment is a
		// no-op, but a chunk whose prior task completed or died enqueues
		// a fresh row.
		`CREATE UNIQUE INDEX IF NOT EXISTS enrichment_tasks_chunk_live ON enrichment_tasks(chunk_id) WHERE status IN ('pending', 'processing')`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func dimOrDefault(d int) int {
	if d <= 0 {
		return 768
	}
	return d
}

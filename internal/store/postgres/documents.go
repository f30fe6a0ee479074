package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"ragengine/internal/model"
)

// stripNulls removes embedded NUL bytes Postgres text columns reject.
func stripNulls(s string) string {
	if !strings.ContainsRune(s, 0) {
		return s
	}
	return strings.ReplaceAll(s, "\x00", "")
}

// UpsertDocument inserts doc under (collection, identityKey), updating in
// place when overwrite is true and the identity already exists. The
// returned document carries the effective baseId: the existing row's
// baseId survives a conflict even when overwrite replaces every other
// field.
func (s *Store) UpsertDocument(ctx context.Context, tx pgx.Tx, doc model.Document, overwrite bool) (model.Document, bool, error) {
	doc.Source = stripNulls(doc.Source)
	doc.Path = stripNulls(doc.Path)
	doc.Summary = stripNulls(doc.Summary)

	conflictClause := "DO NOTHING"
	if overwrite {
		conflictClause = `DO UPDATE SET
			base_id = documents.base_id,
			source = EXCLUDED.source,
			doc_type = EXCLUDED.doc_type,
			repo_id = EXCLUDED.repo_id,
			repo_url = EXCLUDED.repo_url,
			path = EXCLUDED.path,
			lang = EXCLUDED.lang,
			item_url = EXCLUDED.item_url,
			mime_type = EXCLUDED.mime_type,
			size_bytes = EXCLUDED.size_bytes,
			summary = EXCLUDED.summary,
			payload_checksum = EXCLUDED.payload_checksum,
			raw_data = EXCLUDED.raw_data,
			raw_key = EXCLUDED.raw_key,
			updated_at = now()`
	}

	row := tx.QueryRow(ctx, `
INSERT INTO documents (
	collection, identity_key, base_id, source, doc_type, repo_id, repo_url,
	path, lang, item_url, mime_type, size_bytes, summary, payload_checksum,
	raw_data, raw_key
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (collection, identity_key) `+conflictClause+`
RETURNING id, base_id, (xmax = 0) AS inserted`,
		doc.Collection, doc.IdentityKey, doc.BaseID, doc.Source, doc.DocType,
		doc.RepoID, doc.RepoURL, doc.Path, doc.Lang, doc.ItemURL, doc.MimeType,
		doc.SizeBytes, doc.Summary, doc.PayloadChecksum, nullBytes(doc.RawData), nullString(doc.RawKey),
	)

	var inserted bool
	if err := row.Scan(&doc.ID, &doc.BaseID, &inserted); err != nil {
		if err == pgx.ErrNoRows {
			// DO NOTHING produced no row: fetch the existing one to report skipped.
			existing, ferr := s.fetchDocumentByIdentity(ctx, tx, doc.Collection, doc.IdentityKey)
			if ferr != nil {
				return model.Document{}, false, ferr
			}
			return existing, false, nil
		}
		return model.Document{}, false, err
	}
	return doc, inserted, nil
}

func (s *Store) fetchDocumentByIdentity(ctx context.Context, tx pgx.Tx, collection, identityKey string) (model.Document, error) {
	row := tx.QueryRow(ctx, `SELECT id, base_id FROM documents WHERE collection=$1 AND identity_key=$2`, collection, identityKey)
	var d model.Document
	d.Collection = collection
	d.IdentityKey = identityKey
	if err := row.Scan(&d.ID, &d.BaseID); err != nil {
		return model.Document{}, err
	}
	return d, nil
}

// BeginTx starts a transaction for a per-document ingest unit of work.
func (s *Store) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

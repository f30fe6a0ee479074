// Package ingest implements IngestService: partitions text/URL items,
// resolves URLs through ContentExtractor behind the SSRF guard, classifies
// and chunks text, upserts documents and chunks transactionally, embeds in
// batches, and enqueues enrichment tasks.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ragengine/internal/apierr"
	"ragengine/internal/chunk"
	"ragengine/internal/doctype"
	"ragengine/internal/embedder"
	"ragengine/internal/extract"
	"ragengine/internal/model"
	"ragengine/internal/obs"
	"ragengine/internal/queue"
	"ragengine/internal/ssrf"
	"ragengine/internal/store/postgres"
)

const (
	maxConcurrentFetches = 5
	maxEmbedBatch        = 500
)

// Item is one unit of ingestion work: either Text or URL must be set.
type Item struct {
	ID       string         `json:"id,omitempty"`
	Text     string         `json:"text,omitempty"`
	URL      string         `json:"url,omitempty"`
	Source   string         `json:"source,omitempty"`
	DocType  string         `json:"docType,omitempty"`
	RepoID   string         `json:"repoId,omitempty"`
	RepoURL  string         `json:"repoUrl,omitempty"`
	Path     string         `json:"path,omitempty"`
	Lang     string         `json:"lang,omitempty"`
	MimeType string         `json:"mimeType,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Request is the full /ingest request body.
type Request struct {
	Collection string `json:"collection,omitempty"`
	Overwrite  bool   `json:"overwrite,omitempty"`
	Enrich     bool   `json:"enrich,omitempty"`
	Items      []Item `json:"items"`
}

// ItemError reports a per-item failure that does not abort the request.
type ItemError struct {
	ItemID string `json:"itemId,omitempty"`
	Reason string `json:"reason"`
}

// Response is the full /ingest success payload.
type Response struct {
	OK         bool        `json:"ok"`
	Upserted   int         `json:"upserted"`
	Skipped    int         `json:"skipped,omitempty"`
	Fetched    int         `json:"fetched,omitempty"`
	Enrichment *Enrichment `json:"enrichment,omitempty"`
	Errors     []ItemError `json:"errors,omitempty"`
}

// Enrichment summarizes the enrichment tasks enqueued by this request.
type Enrichment struct {
	Enqueued int      `json:"enqueued"`
	DocTypes []string `json:"docTypes"`
}

// BlobStore persists raw payloads that exceed the inline threshold.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// VectorSink receives a copy of each embedded chunk's vector, for
// deployments that externalize the similarity index (internal/store/qdrant)
// instead of relying solely on the inline pgvector column. Upsert failures
// are logged and otherwise ignored: Postgres remains the source of truth
// for both chunk text and vectors, so a sink outage never fails ingest.
type VectorSink interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
}

// Service implements IngestService.
type Service struct {
	store          *postgres.Store
	queue          queue.TaskQueue
	embedder       embedder.Embedder
	blobs          BlobStore
	blobThreshold  int64
	sink           VectorSink
	logger         obs.Logger
	metrics        obs.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithBlobStore(b BlobStore, thresholdBytes int64) Option {
	return func(s *Service) { s.blobs = b; s.blobThreshold = thresholdBytes }
}
func WithVectorSink(v VectorSink) Option { return func(s *Service) { s.sink = v } }
func WithLogger(l obs.Logger)   Option { return func(s *Service) { s.logger = l } }
func WithMetrics(m obs.Metrics) Option { return func(s *Service) { s.metrics = m } }

// New constructs a Service.
func New(store *postgres.Store, q queue.TaskQueue, emb embedder.Embedder, opts ...Option) *Service {
	s := &Service{store: store, queue: q, embedder: emb, blobThreshold: 1 << 20, logger: obs.NoopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// resolvedItem is an Item after URL resolution (if any), ready for doc-type
// detection and chunking.
type resolvedItem struct {
	item Item
	text string
}

// Ingest runs the full pipeline for one request.
func (s *Service) Ingest(ctx context.Context, req Request) (Response, error) {
	var textItems, urlItems []Item
	for _, it := range req.Items {
		if it.Text != "" {
			textItems = append(textItems, it)
		} else if it.URL != "" {
			urlItems = append(urlItems, it)
		}
	}

	resolved := make([]resolvedItem, 0, len(textItems)+len(urlItems))
	for _, it := range textItems {
		resolved = append(resolved, resolvedItem{item: it, text: it.Text})
	}

	var errs []ItemError
	fetched := 0
	if len(urlItems) > 0 {
		fetchedItems, fetchErrs, n := s.fetchAll(ctx, urlItems)
		resolved = append(resolved, fetchedItems...)
		errs = append(errs, fetchErrs...)
		fetched = n
	}

	collection := req.Collection
	if collection == "" {
		collection = "docs"
	}

	var upserted, skipped int
	var enqueuedTaskCount int
	docTypeSet := map[string]bool{}

	for _, ri := range resolved {
		it := ri.item
		text := ri.text
		source := it.Source
		if source == "" && it.URL != "" {
			source = sourceFromURL(it.URL)
		}

		if text == "" {
			errs = append(errs, ItemError{ItemID: it.ID, Reason: "missing_text"})
			continue
		}
		if source == "" {
			errs = append(errs, ItemError{ItemID: it.ID, Reason: "missing_source"})
			continue
		}

		baseID := it.ID
		if baseID == "" {
			baseID = uuid.NewString()
		}

		dType := doctype.Detect(doctype.Input{
			DocType:   it.DocType,
			Metadata:  it.Metadata,
			SourceURL: it.URL,
			Content:   []byte(text),
			Path:      it.Path,
		})

		chunks := chunk.Default{}.Split(text, chunkOptionsFor(dType))

		n, enqueued, err := s.ingestOne(ctx, collection, req.Overwrite, req.Enrich, it, source, baseID, dType, chunks, text)
		if err != nil {
			if apierr.Is(err, apierr.KindValidation) {
				errs = append(errs, ItemError{ItemID: it.ID, Reason: err.Error()})
				continue
			}
			return Response{}, err
		}
		if n == 0 {
			skipped++
			continue
		}
		upserted++
		enqueuedTaskCount += enqueued
		docTypeSet[dType] = true
	}

	resp := Response{OK: true, Upserted: upserted}
	if skipped > 0 {
		resp.Skipped = skipped
	}
	if fetched > 0 {
		resp.Fetched = fetched
	}
	if req.Enrich && enqueuedTaskCount > 0 {
		types := make([]string, 0, len(docTypeSet))
		for t := range docTypeSet {
			types = append(types, t)
		}
		resp.Enrichment = &Enrichment{Enqueued: enqueuedTaskCount, DocTypes: types}
	}
	if len(errs) > 0 {
		resp.Errors = errs
	}
	return resp, nil
}

// ingestOne upserts the document and inserts its chunks in one
// transaction, then, after the commit, embeds the chunks in batches and
// enqueues enrichment tasks. Returns the number of chunks inserted (0 means
// skipped-on-conflict) and tasks enqueued.
func (s *Service) ingestOne(ctx context.Context, collection string, overwrite, enrich bool, it Item, source, baseID, dType string, texts []string, fullText string) (int, int, error) {
	checksum := sha256.Sum256([]byte(fullText))

	doc := model.Document{
		Collection:      collection,
		IdentityKey:     identityKey(collection, source),
		BaseID:          baseID,
		Source:          source,
		DocType:         dType,
		RepoID:          it.RepoID,
		RepoURL:         it.RepoURL,
		Path:            it.Path,
		Lang:            it.Lang,
		ItemURL:         it.URL,
		MimeType:        it.MimeType,
		SizeBytes:       int64(len(fullText)),
		PayloadChecksum: hex.EncodeToString(checksum[:]),
	}

	if s.blobs != nil && int64(len(fullText)) > s.blobThreshold {
		key := "docs/" + doc.IdentityKey + "/" + doc.PayloadChecksum
		if err := s.blobs.Put(ctx, key, []byte(fullText), "text/plain"); err != nil {
			return 0, 0, fmt.Errorf("blob upload: %w", err)
		}
		doc.RawKey = key
	} else {
		doc.RawData = []byte(fullText)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback(ctx)

	savedDoc, inserted, err := s.store.UpsertDocument(ctx, tx, doc, overwrite)
	if err != nil {
		return 0, 0, err
	}
	if !inserted && !overwrite {
		if err := tx.Commit(ctx); err != nil {
			return 0, 0, err
		}
		return 0, 0, nil
	}

	enrichmentStatus := model.EnrichmentNone
	if enrich {
		enrichmentStatus = model.EnrichmentPending
	}

	chunks := make([]model.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = model.Chunk{
			DocumentID: savedDoc.ID,
			ChunkIndex: i,
			Text:       t,
			DocType:    dType,
			RepoID:     it.RepoID,
			Path:       it.Path,
			Lang:       it.Lang,
			ItemURL:    it.URL,
		}
	}

	if err := s.store.InsertChunks(ctx, tx, chunks, enrichmentStatus); err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, err
	}

	if err := s.embedChunks(ctx, collection, chunks); err != nil {
		return 0, 0, apierr.Upstream("embedding failed", err)
	}

	enqueued := 0
	if enrich {
		enqueued, err = s.enqueueEnrichment(ctx, collection, baseID, chunks)
		if err != nil {
			return 0, 0, err
		}
	}

	return len(chunks), enqueued, nil
}

func (s *Service) embedChunks(ctx context.Context, collection string, chunks []model.Chunk) error {
	for start := 0; start < len(chunks); start += maxEmbedBatch {
		end := start + maxEmbedBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		for i, c := range batch {
			if i >= len(vectors) {
				break
			}
			if err := s.store.SetEmbedding(ctx, c.ID, vectors[i]); err != nil {
				return err
			}
			if s.sink != nil {
				meta := map[string]string{"collection": collection, "docType": c.DocType, "path": c.Path}
				if err := s.sink.Upsert(ctx, c.ExternalID(), vectors[i], meta); err != nil {
					s.logger.Warn("vector_sink_upsert_failed", map[string]any{"chunkId": c.ExternalID(), "error": err.Error()})
				}
			}
		}
	}
	return nil
}

// maxEnqueueBatch caps the task rows inserted per queue.Enqueue call.
const maxEnqueueBatch = 100

// enqueueEnrichment enqueues one EnrichmentTask per chunk, batched in
// groups of maxEnqueueBatch. A worker later claims a task by its chunk but
// is handed the owning document's full chunk-text set, since
// entity/relationship extraction reads a document's chunks as a unit.
func (s *Service) enqueueEnrichment(ctx context.Context, collection, baseID string, chunks []model.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	tasks := make([]model.EnrichmentTask, len(chunks))
	for i, c := range chunks {
		tasks[i] = model.EnrichmentTask{
			Queue:       "enrichment",
			Status:      model.TaskPending,
			Collection:  collection,
			BaseID:      baseID,
			ChunkID:     c.ID,
			MaxAttempts: 5,
		}
	}
	for start := 0; start < len(tasks); start += maxEnqueueBatch {
		end := start + maxEnqueueBatch
		if end > len(tasks) {
			end = len(tasks)
		}
		if err := s.queue.Enqueue(ctx, tasks[start:end]); err != nil {
			return 0, err
		}
	}
	return len(tasks), nil
}

// fetchAll runs URL fetch + extraction across a bounded worker pool,
// preserving no particular output order but serializing downstream
// per-item processing by the caller.
func (s *Service) fetchAll(ctx context.Context, items []Item) ([]resolvedItem, []ItemError, int) {
	guard := ssrf.New()
	f := newFetcher(guard)
	ext := extract.New()

	type out struct {
		resolved resolvedItem
		errItem  *ItemError
		ok       bool
	}

	results := make([]out, len(items))
	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)

	for i, it := range items {
		g.Go(func() error {
			fr, err := f.fetch(ctx, it.URL)
			if err != nil {
				results[i] = out{errItem: &ItemError{ItemID: it.ID, Reason: err.Error()}}
				return nil
			}

			res := ext.Extract(fr.Body, fr.ContentType)
			if res.Text == nil || *res.Text == "" {
				reason := "no_extractable_text"
				if res.Strategy == extract.StrategyMetadataOnly {
					reason = "unsupported_content_type"
				}
				results[i] = out{errItem: &ItemError{ItemID: it.ID, Reason: reason}}
				return nil
			}

			resolvedIt := it
			if resolvedIt.Source == "" {
				resolvedIt.Source = sourceFromURL(fr.FinalURL)
			}
			if resolvedIt.MimeType == "" {
				resolvedIt.MimeType = fr.ContentType
			}
			results[i] = out{resolved: resolvedItem{item: resolvedIt, text: *res.Text}, ok: true}
			return nil
		})
	}
	_ = g.Wait()

	var resolved []resolvedItem
	var errs []ItemError
	fetched := 0
	for _, r := range results {
		if r.ok {
			resolved = append(resolved, r.resolved)
			fetched++
		} else if r.errItem != nil {
			errs = append(errs, *r.errItem)
		}
	}
	return resolved, errs, fetched
}

func identityKey(collection, source string) string {
	return collection + "|" + source
}

func chunkOptionsFor(dType string) chunk.Options {
	switch dType {
	case doctype.Code:
		return chunk.Options{Strategy: "code"}
	case doctype.Article:
		return chunk.Options{Strategy: "markdown"}
	default:
		return chunk.Options{Strategy: "fixed"}
	}
}

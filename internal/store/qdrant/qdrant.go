// Package qdrant is an alternate vector index selected by QDRANT_URL, for
// deployments that externalize the embedding index instead of relying on
// the inline pgvector column. Grounded on the teacher's
// internal/persistence/databases/qdrant_vector.go.
//
// Unlike the Postgres store, Qdrant only holds vectors and a flat string
// payload — it has no join surface for chunk text, doc type, or tiered
// metadata. It is wired as an optional secondary sink IngestService writes
// to alongside the Postgres chunk row, and as an alternate candidate-ID
// source QueryService's semantic flow can consult instead of pgvector's
// ORDER BY <=> scan; the chunk rows themselves still live in Postgres.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadIDField stores the original chunk id when it isn't itself a UUID,
// since Qdrant point ids must be a UUID or a positive integer.
const payloadIDField = "_original_id"

// Result is one nearest-neighbor hit.
type Result struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Store is a Qdrant-backed vector index.
type Store struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string // cosine|l2|euclid|euclidean|ip|dot|manhattan
}

// New connects to the Qdrant instance at dsn (host[:port], gRPC on 6334 by
// default; an api_key query parameter authenticates) and ensures the
// named collection exists with the given dimension and distance metric.
func New(ctx context.Context, dsn, collection string, dimension int, metric string) (*Store, error) {
	if collection == "" {
		return nil, fmt.Errorf("qdrant: collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("qdrant: parse dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("qdrant: invalid port in dsn: %w", err)
	}

	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}

	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("qdrant: create client: %w", err)
	}

	s := &Store{
		client:     client,
		collection: collection,
		dimension:  dimension,
		metric:     strings.ToLower(strings.TrimSpace(metric)),
	}
	if err := s.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("qdrant: ensure collection: %w", err)
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if s.dimension <= 0 {
		return fmt.Errorf("dimension must be > 0")
	}
	var distance qdrant.Distance
	switch s.metric {
	case "l2", "euclid", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default:
		distance = qdrant.Distance_Cosine
	}
	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: distance,
		}),
	})
}

func pointID(id string) (pointUUID string, originalID string) {
	if _, err := uuid.Parse(id); err == nil {
		return id, ""
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String(), id
}

// Upsert inserts or replaces the vector for chunk id, carrying metadata as
// a filterable payload.
func (s *Store) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	pointUUID, original := pointID(id)
	payload := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		payload[k] = v
	}
	if original != "" {
		payload[payloadIDField] = original
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pointUUID),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	return err
}

// Delete removes the vector for chunk id.
func (s *Store) Delete(ctx context.Context, id string) error {
	pointUUID, _ := pointID(id)
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(pointUUID)),
	})
	return err
}

// SimilaritySearch returns the k nearest points to vector, optionally
// narrowed by an exact-match payload filter.
func (s *Store) SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)

	var qf *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			must = append(must, qdrant.NewMatch(k, v))
		}
		qf = &qdrant.Filter{Must: must}
	}

	limit := uint64(k)
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         qf,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		uuidStr := hit.Id.GetUuid()
		if uuidStr == "" {
			uuidStr = hit.Id.String()
		}
		metadata := make(map[string]string)
		originalID := ""
		for k, v := range hit.Payload {
			if k == payloadIDField {
				originalID = v.GetStringValue()
				continue
			}
			metadata[k] = v.GetStringValue()
		}
		id := originalID
		if id == "" {
			id = uuidStr
		}
		out = append(out, Result{ID: id, Score: float64(hit.Score), Metadata: metadata})
	}
	return out, nil
}

// Dimension reports the collection's configured vector size.
func (s *Store) Dimension() int { return s.dimension }

// Close releases the underlying gRPC connection.
func (s *Store) Close() error { return s.client.Close() }

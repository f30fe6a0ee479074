// Package embedder converts chunk text into embedding vectors for upsert
// and query-time similarity search. It wraps an HTTP-backed client for the
// configured provider (ollama or openai), plus a deterministic hash-based
// embedder for tests and offline runs.
package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"ragengine/internal/config"
)

// Embedder converts text to embedding vectors.
type Embedder interface {
	// EmbedBatch returns an embedding vector per input text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Name returns a model identifier string.
	Name() string
	// Dimension returns the embedding dimensionality (0 for variable/unknown).
	Dimension() int
	// Ping checks that the embedding endpoint is reachable.
	Ping(ctx context.Context) error
}

// clientEmbedder wraps an HTTP embeddings endpoint, splitting requests into
// batches of at most batchSize texts. rateLimitedCall spaces calls by
// minDelay, which New leaves at zero, and makes the HTTP request after
// releasing the mutex, so concurrent calls are not serialized.
type clientEmbedder struct {
	client    *httpClient
	dim       int
	batchSize int
	mu        sync.Mutex
	lastCall  time.Time
	minDelay  time.Duration
}

// New constructs an embedder that calls the configured embedding endpoint.
// batchSize caps how many texts go in a single request (spec: up to 500
// chunk texts per embedding batch during ingest).
func New(cfg config.EmbeddingConfig, dim, batchSize int) Embedder {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &clientEmbedder{client: newHTTPClient(cfg), dim: dim, batchSize: batchSize}
}

func (c *clientEmbedder) Name() string   { return c.client.cfg.Model }
func (c *clientEmbedder) Dimension() int { return c.dim }

func (c *clientEmbedder) Ping(ctx context.Context) error {
	_, err := c.rateLimitedCall(ctx, []string{"ping"})
	return err
}

func (c *clientEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) <= c.batchSize {
		return c.rateLimitedCall(ctx, texts)
	}

	var all [][]float32
	for i := 0; i < len(texts); i += c.batchSize {
		end := i + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.rateLimitedCall(ctx, texts[i:end])
		if err != nil {
			return all, err
		}
		all = append(all, batch...)
	}
	return all, nil
}

func (c *clientEmbedder) rateLimitedCall(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	if !c.lastCall.IsZero() {
		if elapsed := time.Since(c.lastCall); elapsed < c.minDelay {
			time.Sleep(c.minDelay - elapsed)
		}
	}
	c.lastCall = time.Now()
	c.mu.Unlock()

	return c.client.embed(ctx, texts)
}

// deterministicEmbedder is a lightweight, deterministic embedder for tests:
// it hashes byte 3-grams into a fixed-size vector and L2-normalizes.
type deterministicEmbedder struct {
	dim  int
	seed uint64
}

// NewDeterministic constructs a deterministic embedder of the given
// dimension (default 64). Seed perturbs the hash so distinct fixtures don't
// collide on identical vectors by accident.
func NewDeterministic(dim int, seed uint64) Embedder {
	if dim <= 0 {
		dim = 64
	}
	return &deterministicEmbedder{dim: dim, seed: seed}
}

func (d *deterministicEmbedder) Name() string               { return "deterministic" }
func (d *deterministicEmbedder) Dimension() int              { return d.dim }
func (d *deterministicEmbedder) Ping(_ context.Context) error { return nil }

func (d *deterministicEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.embedOne(t)
	}
	return out, nil
}

func (d *deterministicEmbedder) embedOne(s string) []float32 {
	v := make([]float32, d.dim)
	b := []byte(s)
	switch {
	case len(b) == 0:
		return v
	case len(b) < 3:
		addGram(d.seed, b, v)
	default:
		for i := 0; i <= len(b)-3; i++ {
			addGram(d.seed, b[i:i+3], v)
		}
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum > 0 {
		inv := float32(1.0 / math.Sqrt(sum))
		for i := range v {
			v[i] *= inv
		}
	}
	return v
}

func addGram(seed uint64, gram []byte, v []float32) {
	h := fnv.New64a()
	if seed != 0 {
		var tmp [8]byte
		for i := 0; i < 8; i++ {
			tmp[i] = byte(seed >> (8 * i))
		}
		_, _ = h.Write(tmp[:])
	}
	_, _ = h.Write(gram)
	hv := h.Sum64()
	idx := int(hv % uint64(len(v)))
	w := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += w
}

// Package config defines the runtime configuration surface for the RAG
// ingestion and query engine: database connectivity, embedding/LLM
// providers, router/filter circuit breaker tunables, blob storage, and the
// HTTP surface's auth/CORS/rate-limit knobs.
package config

import "time"

// DatabaseConfig describes the vector-capable relational store connection.
type DatabaseConfig struct {
	DSN string
}

// VectorConfig controls the embedding dimensionality and distance metric
// used by the relational store's vector column (or by Qdrant when
// QdrantURL is set).
type VectorConfig struct {
	QdrantURL string
	Size      int    // VECTOR_SIZE, default 768
	Distance  string // Cosine|Euclid|Dot
}

// EmbeddingConfig configures the embedding provider used during ingest and
// at query time.
type EmbeddingConfig struct {
	Provider      string // ollama|openai
	OllamaURL     string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string
}

// RouterLLMConfig tunes the QueryRouter's Tier-3 LLM classifier.
type RouterLLMConfig struct {
	Enabled        bool
	Model          string
	TimeoutMS      int // default 2000
	CircuitBreakMS int // default 30000
}

// FilterLLMConfig tunes the FilterParser's free-text-to-FilterDSL extractor.
type FilterLLMConfig struct {
	Enabled   bool
	Model     string
	TimeoutMS int // default 1500
}

// S3SSEConfig configures server-side encryption for blob storage uploads.
type S3SSEConfig struct {
	Mode     string // "", "sse-s3", "sse-kms"
	KMSKeyID string
}

// BlobStoreConfig configures the object-storage backend used for raw
// payloads that exceed ThresholdBytes.
type BlobStoreConfig struct {
	ThresholdBytes int64
	Bucket         string
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	UsePathStyle   bool
	Prefix         string
	SSE            S3SSEConfig
}

// AuthConfig controls bearer-token enforcement on the HTTP surface.
type AuthConfig struct {
	Token string // RAG_API_TOKEN; auth disabled when empty
}

// CORSConfig controls the single allowed origin, if any.
type CORSConfig struct {
	Origin string // CORS_ORIGIN; disabled when empty
}

// RateLimitConfig bounds requests per window per the HTTP surface.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
}

// OTelConfig controls optional tracing/metrics export.
type OTelConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	ServiceName string
}

// Config is the fully resolved runtime configuration.
type Config struct {
	Host string
	Port int

	Database  DatabaseConfig
	Vector    VectorConfig
	Embedding EmbeddingConfig
	RouterLLM RouterLLMConfig
	FilterLLM FilterLLMConfig
	BlobStore BlobStoreConfig
	Auth      AuthConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig

	EnrichmentEnabled bool
	AnthropicAPIKey   string

	KafkaBrokers     string
	KafkaNotifyTopic string

	RedisURL string

	OTel OTelConfig
}

// DefaultCollection is the collection key used when the caller omits one.
const DefaultCollection = "docs"

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads configuration from environment variables, optionally overlaid
// with a local .env file. Overload lets a repository-local .env
// deterministically win during development; it is a no-op in production
// where no .env file is present.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{
		Host: firstNonEmpty(getenv("HOST"), "0.0.0.0"),
		Port: getenvInt("PORT", 8080),
	}

	cfg.Database.DSN = firstNonEmpty(getenv("DATABASE_URL"), getenv("POSTGRES_DSN"))

	cfg.Vector.QdrantURL = getenv("QDRANT_URL")
	cfg.Vector.Size = getenvInt("VECTOR_SIZE", 768)
	cfg.Vector.Distance = firstNonEmpty(getenv("DISTANCE"), "Cosine")

	cfg.EnrichmentEnabled = getenvBool("ENRICHMENT_ENABLED", false)

	cfg.Embedding.Provider = firstNonEmpty(getenv("EMBED_PROVIDER"), "ollama")
	cfg.Embedding.OllamaURL = firstNonEmpty(getenv("OLLAMA_URL"), "http://localhost:11434")
	cfg.Embedding.OpenAIAPIKey = getenv("OPENAI_API_KEY")
	cfg.Embedding.OpenAIBaseURL = firstNonEmpty(getenv("OPENAI_BASE_URL"), "https://api.openai.com/v1")
	cfg.Embedding.Model = getenv("EMBED_MODEL")

	cfg.AnthropicAPIKey = getenv("ANTHROPIC_API_KEY")

	cfg.RouterLLM.Enabled = getenvBool("ROUTER_LLM_ENABLED", false)
	cfg.RouterLLM.Model = getenv("ROUTER_LLM_MODEL")
	cfg.RouterLLM.TimeoutMS = getenvInt("ROUTER_LLM_TIMEOUT_MS", 2000)
	cfg.RouterLLM.CircuitBreakMS = getenvInt("ROUTER_LLM_CIRCUIT_BREAK_MS", 30000)

	cfg.FilterLLM.Enabled = getenvBool("ROUTER_FILTER_LLM_ENABLED", false)
	cfg.FilterLLM.Model = getenv("ROUTER_FILTER_LLM_MODEL")
	cfg.FilterLLM.TimeoutMS = getenvInt("ROUTER_FILTER_LLM_TIMEOUT_MS", 1500)

	cfg.BlobStore.ThresholdBytes = getenvInt64("BLOB_STORE_THRESHOLD_BYTES", 1<<20)
	cfg.BlobStore.Bucket = getenv("BLOB_STORE_BUCKET")
	cfg.BlobStore.Region = firstNonEmpty(getenv("BLOB_STORE_REGION"), "us-east-1")
	cfg.BlobStore.Endpoint = getenv("BLOB_STORE_ENDPOINT")
	cfg.BlobStore.AccessKey = getenv("BLOB_STORE_ACCESS_KEY")
	cfg.BlobStore.SecretKey = getenv("BLOB_STORE_SECRET_KEY")
	cfg.BlobStore.UsePathStyle = getenvBool("BLOB_STORE_USE_PATH_STYLE", false)
	cfg.BlobStore.Prefix = getenv("BLOB_STORE_PREFIX")
	cfg.BlobStore.SSE.Mode = getenv("BLOB_STORE_SSE_MODE")
	cfg.BlobStore.SSE.KMSKeyID = getenv("BLOB_STORE_SSE_KMS_KEY_ID")

	cfg.Auth.Token = getenv("RAG_API_TOKEN")
	cfg.CORS.Origin = getenv("CORS_ORIGIN")
	cfg.RateLimit.Max = getenvInt("RATE_LIMIT_MAX", 0)
	cfg.RateLimit.Window = time.Duration(getenvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second

	cfg.KafkaBrokers = getenv("KAFKA_BROKERS")
	cfg.KafkaNotifyTopic = firstNonEmpty(getenv("KAFKA_ENRICHMENT_TOPIC"), "enrichment-events")

	cfg.RedisURL = getenv("REDIS_URL")

	cfg.OTel.Enabled = getenvBool("OTEL_ENABLED", false)
	cfg.OTel.Endpoint = getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTel.Insecure = getenvBool("OTEL_EXPORTER_OTLP_INSECURE", true)
	cfg.OTel.ServiceName = firstNonEmpty(getenv("OTEL_SERVICE_NAME"), "ragengine")

	return cfg, nil
}

func getenv(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func getenvInt(key string, def int) int {
	v := getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvInt64(key string, def int64) int64 {
	v := getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := getenv(key)
	if v == "" {
		return def
	}
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

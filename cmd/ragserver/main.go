// Command ragserver runs the RAG ingestion/query engine's HTTP API:
// ingest, query, enrichment control, and graph/collection introspection
// behind one http.Server, wiring every optional backend (Qdrant, Redis
// graph cache, S3 blob storage, Kafka notifications, OTel tracing) from
// environment configuration.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ragengine/internal/blobstore"
	"ragengine/internal/breaker"
	"ragengine/internal/config"
	"ragengine/internal/embedder"
	"ragengine/internal/enrichment"
	"ragengine/internal/filterparser"
	"ragengine/internal/graph"
	"ragengine/internal/httpapi"
	"ragengine/internal/ingest"
	"ragengine/internal/llm/anthropic"
	"ragengine/internal/llm/ollama"
	"ragengine/internal/llm/openai"
	"ragengine/internal/obs/logging"
	"ragengine/internal/obs/metrics"
	"ragengine/internal/obs/otel"
	"ragengine/internal/query"
	"ragengine/internal/queue/kafkanotify"
	"ragengine/internal/repoingest"
	"ragengine/internal/router"
	"ragengine/internal/store/cache"
	"ragengine/internal/store/postgres"
	"ragengine/internal/store/qdrant"
)

func main() {
	logger := logging.New("ragserver")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config_load_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		logger.Warn("otel_setup_failed", map[string]any{"error": err.Error()})
	} else {
		defer func() { _ = shutdownOTel(context.Background()) }()
	}

	reg := prometheus.NewRegistry()
	metric := metrics.New(reg)

	store, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Vector.Size, postgres.WithMetric(cfg.Vector.Distance))
	if err != nil {
		logger.Error("postgres_open_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	emb := embedder.New(cfg.Embedding, cfg.Vector.Size, 500)

	var blobs ingest.BlobStore
	if cfg.BlobStore.Bucket != "" {
		s3Store, err := blobstore.New(ctx, cfg.BlobStore)
		if err != nil {
			logger.Error("blobstore_open_failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		blobs = s3Store
	}

	var vectorSink ingest.VectorSink
	if cfg.Vector.QdrantURL != "" {
		qdrantStore, err := qdrant.New(ctx, cfg.Vector.QdrantURL, "ragengine_chunks", cfg.Vector.Size, cfg.Vector.Distance)
		if err != nil {
			logger.Warn("qdrant_open_failed", map[string]any{"error": err.Error()})
		} else {
			vectorSink = qdrantStore
		}
	}

	var graphBackend graph.Backend = store
	if cfg.RedisURL != "" {
		if cached, ok := cache.New(store, cfg.RedisURL, 5*time.Minute); ok {
			graphBackend = cached
		}
	}

	// llmCompleter backs both the query router's Tier-3 classifier and the
	// filter parser's free-text extractor. Priority order when more than
	// one provider is configured: Anthropic, then OpenAI, then a local
	// Ollama fallback, so a deployment with only a local model still gets
	// LLM-assisted routing/filtering without any hosted API key.
	var llmCompleter router.Completer
	switch {
	case cfg.AnthropicAPIKey != "":
		llmCompleter = anthropic.New(cfg.AnthropicAPIKey, "", cfg.RouterLLM.Model)
	case cfg.Embedding.OpenAIAPIKey != "":
		llmCompleter = openai.New(cfg.Embedding.OpenAIAPIKey, cfg.Embedding.OpenAIBaseURL, cfg.RouterLLM.Model)
	default:
		llmCompleter = ollama.New(cfg.Embedding.OllamaURL, cfg.RouterLLM.Model)
	}

	qr := router.New(
		router.WithLLM(llmCompleter),
		router.WithLLMEnabled(cfg.RouterLLM.Enabled),
		router.WithBreaker(breaker.New(breaker.WithCooldown(time.Duration(cfg.RouterLLM.CircuitBreakMS)*time.Millisecond))),
		router.WithTimeout(time.Duration(cfg.RouterLLM.TimeoutMS)*time.Millisecond),
		router.WithLogger(logger),
		router.WithMetrics(metric),
	)

	fp := filterparser.New(
		filterparser.WithLLM(llmCompleter),
		filterparser.WithEnabled(cfg.FilterLLM.Enabled),
		filterparser.WithBreaker(breaker.New(breaker.WithCooldown(30*time.Second))),
		filterparser.WithTimeout(time.Duration(cfg.FilterLLM.TimeoutMS)*time.Millisecond),
	)

	ingestOpts := []ingest.Option{ingest.WithLogger(logger), ingest.WithMetrics(metric)}
	if blobs != nil {
		ingestOpts = append(ingestOpts, ingest.WithBlobStore(blobs, cfg.BlobStore.ThresholdBytes))
	}
	if vectorSink != nil {
		ingestOpts = append(ingestOpts, ingest.WithVectorSink(vectorSink))
	}
	ingestSvc := ingest.New(store, store, emb, ingestOpts...)

	querySvc := query.New(store, graphBackend, emb, qr, fp, query.WithLogger(logger), query.WithMetrics(metric))

	var notifier enrichment.Notifier
	if cfg.KafkaBrokers != "" {
		notifier = kafkanotify.New(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaNotifyTopic, logger)
	}
	enrichCoord := enrichment.New(store, enrichment.WithNotifier(notifier))

	repos := repoingest.New(ingestSvc, logger)

	apiCfg := httpapi.Config{
		AuthToken:       cfg.Auth.Token,
		CORSOrigin:      cfg.CORS.Origin,
		RateLimitMax:    cfg.RateLimit.Max,
		RateLimitWindow: cfg.RateLimit.Window,
	}
	server := httpapi.NewServer(ingestSvc, querySvc, enrichCoord, store, apiCfg,
		httpapi.WithGraph(graphBackend),
		httpapi.WithRepoIngest(repos),
		httpapi.WithLogger(logger),
	)

	httpSrv := &http.Server{
		Addr:              cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", map[string]any{"addr": httpSrv.Addr})
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen_failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting_down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_failed", map[string]any{"error": err.Error()})
	}
}

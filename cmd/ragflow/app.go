package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/ragflow/config"
	"github.com/BaSui01/ragflow/internal/metrics"
	"github.com/BaSui01/ragflow/llm"
	"github.com/BaSui01/ragflow/llm/embedding"
	"github.com/BaSui01/ragflow/queue"
	"github.com/BaSui01/ragflow/rag"
	"github.com/BaSui01/ragflow/tokenizer"
)

// app holds every constructed component. All dependencies are injected at
// build time; nothing is a package-level singleton.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	queue    *queue.RateLimitedQueue
	store    rag.VectorStore
	registry rag.HashRegistry
	embedder embedding.Provider
	chat     llm.Provider

	manager   *rag.EmbeddingManager
	ingestor  *rag.Ingestor
	search    *rag.SearchOrchestrator
	pipeline  *rag.QueryPipeline
	collector *metrics.Collector

	redisClient *redis.Client
}

func buildApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	a.collector = metrics.NewCollector("ragflow", prometheus.DefaultRegisterer, logger)

	a.queue = queue.New(queue.Config{
		MaxRequestsPerMinute: cfg.Queue.MaxRequestsPerMinute,
		WaitInterval:         cfg.Queue.WaitInterval,
		Retry: &queue.RetryPolicy{
			MaxRetries:   cfg.Queue.MaxRetries,
			InitialDelay: cfg.Queue.RetryDelay,
		},
		Metrics: a.collector,
	}, logger)

	counter := tokenizer.NewCounter(tokenizer.NewTiktokenTokenizer(cfg.Embedding.Model), logger)
	tokens := rag.NewTokenSplitter(rag.TokenSplitterConfig{
		MaxTokens:     cfg.Splitter.MaxTokens,
		MinTokens:     cfg.Splitter.MinTokens,
		OverlapTokens: cfg.Splitter.OverlapTokens,
	}, counter, logger)
	semantic := rag.NewSemanticSplitter(tokens, logger)

	if cfg.Embedding.APIKey != "" {
		a.embedder = embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey:     cfg.Embedding.APIKey,
			Model:      cfg.Embedding.Model,
			BaseURL:    cfg.Embedding.BaseURL,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    cfg.Embedding.Timeout,
		})
	}

	switch cfg.LLM.Provider {
	case "anthropic":
		a.chat = llm.NewAnthropicProvider(llm.AnthropicConfig{
			APIKey:    cfg.LLM.APIKey,
			Model:     cfg.LLM.Model,
			BaseURL:   cfg.LLM.BaseURL,
			MaxTokens: cfg.LLM.MaxTokens,
			Timeout:   cfg.LLM.Timeout,
		}, logger)
	default:
		a.chat = llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:    cfg.LLM.APIKey,
			Model:     cfg.LLM.Model,
			BaseURL:   cfg.LLM.BaseURL,
			MaxTokens: cfg.LLM.MaxTokens,
			Timeout:   cfg.LLM.Timeout,
		}, logger)
	}

	if cfg.Pinecone.APIKey != "" || cfg.Pinecone.BaseURL != "" {
		a.store = rag.NewPineconeStore(rag.PineconeConfig{
			APIKey:            cfg.Pinecone.APIKey,
			Index:             cfg.Pinecone.Index,
			BaseURL:           cfg.Pinecone.BaseURL,
			ControllerBaseURL: cfg.Pinecone.ControllerBaseURL,
			Timeout:           cfg.Pinecone.Timeout,
		}, logger)
	}

	if cfg.Redis.Enabled {
		a.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.registry = rag.NewRedisHashRegistry(a.redisClient, "", logger)
	} else {
		a.registry = rag.NewMemoryHashRegistry()
	}

	if a.store != nil && a.embedder != nil {
		a.manager = rag.NewEmbeddingManager(rag.EmbeddingManagerConfig{
			MaxInputTokens: cfg.Embedding.MaxInputTokens,
		},
			a.embedder, a.store, a.registry, semantic, a.queue, a.collector, logger)
		a.ingestor = rag.NewIngestor(rag.IngestConfig{Workers: cfg.Ingest.Workers},
			a.manager, a.collector, logger)
		a.search = rag.NewSearchOrchestrator(rag.SearchConfig{
			TopK:                cfg.Retrieval.TopK,
			SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
			MinMatches:          cfg.Retrieval.MinMatches,
		}, a.embedder, a.store, a.queue, a.collector, logger)
	}

	generator := rag.NewResponseGenerator(rag.ResponseGeneratorConfig{
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
	}, a.chat, a.queue, a.collector, logger)

	a.pipeline = rag.NewQueryPipeline(rag.PipelineConfig{
		RequestTimeout: cfg.Retrieval.RequestTimeout,
	}, a.search, rag.NewContextBuilder(rag.ContextBuilderConfig{
		MaxContextChars: cfg.Retrieval.MaxContextChars,
	}), generator, logger)

	return a, nil
}

// requireIngest fails fast when the app lacks a store or embedder.
func (a *app) requireIngest() error {
	if a.ingestor == nil {
		return fmt.Errorf("indexing needs both a vector store (pinecone) and an embeddings provider configured")
	}
	return nil
}

func (a *app) Close() {
	a.queue.Close()
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
}

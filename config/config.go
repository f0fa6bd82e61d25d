package config

import (
	"fmt"
	"time"
)

// Config is the complete ragflow configuration.
type Config struct {
	// Splitter configures chunk sizing for both splitters.
	Splitter SplitterConfig `yaml:"splitter" env:"SPLITTER"`

	// Retrieval configures query-time search and context assembly.
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`

	// Queue configures the shared rate-limited task queue.
	Queue QueueConfig `yaml:"queue" env:"QUEUE"`

	// Embedding configures the embeddings provider.
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// LLM configures the chat provider.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Pinecone configures the vector store adapter.
	Pinecone PineconeConfig `yaml:"pinecone" env:"PINECONE"`

	// Redis configures the optional seen-hash registry.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Ingest configures ingestion fan-out.
	Ingest IngestConfig `yaml:"ingest" env:"INGEST"`

	// Log configures zap.
	Log LogConfig `yaml:"log" env:"LOG"`
}

// SplitterConfig bounds chunk sizes in tokens.
type SplitterConfig struct {
	MaxTokens     int `yaml:"max_tokens" env:"MAX_TOKENS"`
	MinTokens     int `yaml:"min_tokens" env:"MIN_TOKENS"`
	OverlapTokens int `yaml:"overlap_tokens" env:"OVERLAP_TOKENS"`
}

// RetrievalConfig tunes search and context assembly.
type RetrievalConfig struct {
	TopK                int           `yaml:"top_k" env:"TOP_K"`
	SimilarityThreshold float64       `yaml:"similarity_threshold" env:"SIMILARITY_THRESHOLD"`
	MinMatches          int           `yaml:"min_matches" env:"MIN_MATCHES"`
	MaxContextChars     int           `yaml:"max_context_chars" env:"MAX_CONTEXT_CHARS"`
	RequestTimeout      time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
}

// QueueConfig bounds outbound API call rate and retries.
type QueueConfig struct {
	MaxRequestsPerMinute int           `yaml:"max_requests_per_minute" env:"MAX_REQUESTS_PER_MINUTE"`
	MaxRetries           int           `yaml:"max_retries" env:"MAX_RETRIES"`
	RetryDelay           time.Duration `yaml:"retry_delay" env:"RETRY_DELAY"`
	WaitInterval         time.Duration `yaml:"wait_interval" env:"WAIT_INTERVAL"`
}

// EmbeddingConfig selects and configures the embeddings provider.
type EmbeddingConfig struct {
	Provider       string        `yaml:"provider" env:"PROVIDER"`
	Model          string        `yaml:"model" env:"MODEL"`
	APIKey         string        `yaml:"api_key" env:"API_KEY"`
	BaseURL        string        `yaml:"base_url" env:"BASE_URL"`
	Dimensions     int           `yaml:"dimensions" env:"DIMENSIONS"`
	MaxInputTokens int           `yaml:"max_input_tokens" env:"MAX_INPUT_TOKENS"`
	Timeout        time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LLMConfig selects and configures the chat provider.
type LLMConfig struct {
	Provider  string        `yaml:"provider" env:"PROVIDER"`
	Model     string        `yaml:"model" env:"MODEL"`
	APIKey    string        `yaml:"api_key" env:"API_KEY"`
	BaseURL   string        `yaml:"base_url" env:"BASE_URL"`
	MaxTokens int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// PineconeConfig configures the Pinecone adapter. Leave APIKey empty to run
// without a vector store (the pipeline then answers in standard mode).
type PineconeConfig struct {
	APIKey            string        `yaml:"api_key" env:"API_KEY"`
	Index             string        `yaml:"index" env:"INDEX"`
	BaseURL           string        `yaml:"base_url" env:"BASE_URL"`
	ControllerBaseURL string        `yaml:"controller_base_url" env:"CONTROLLER_BASE_URL"`
	Timeout           time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// RedisConfig configures the optional Redis-backed hash registry.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

// IngestConfig bounds ingestion concurrency.
type IngestConfig struct {
	Workers     int   `yaml:"workers" env:"WORKERS"`
	MaxFileSize int64 `yaml:"max_file_size" env:"MAX_FILE_SIZE"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// DefaultConfig returns the production defaults. Chunk sizing follows the
// 400-800 token window with ~20% overlap that works well for code corpora.
func DefaultConfig() *Config {
	return &Config{
		Splitter: SplitterConfig{
			MaxTokens:     512,
			MinTokens:     50,
			OverlapTokens: 100,
		},
		Retrieval: RetrievalConfig{
			TopK:                5,
			SimilarityThreshold: 0.7,
			MinMatches:          2,
			MaxContextChars:     12000,
			RequestTimeout:      60 * time.Second,
		},
		Queue: QueueConfig{
			MaxRequestsPerMinute: 60,
			MaxRetries:           3,
			RetryDelay:           time.Second,
			WaitInterval:         2 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:       "openai",
			Model:          "text-embedding-3-small",
			Dimensions:     1536,
			MaxInputTokens: 8191,
			Timeout:        30 * time.Second,
		},
		LLM: LLMConfig{
			Provider:  "anthropic",
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 2048,
			Timeout:   60 * time.Second,
		},
		Pinecone: PineconeConfig{
			ControllerBaseURL: "https://api.pinecone.io",
			Timeout:           30 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Ingest: IngestConfig{
			Workers:     4,
			MaxFileSize: 1 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks cross-field constraints that YAML/env parsing cannot.
func (c *Config) Validate() error {
	s := c.Splitter
	if s.MaxTokens <= 0 {
		return fmt.Errorf("splitter.max_tokens must be positive, got %d", s.MaxTokens)
	}
	if s.MinTokens < 0 || s.MinTokens > s.MaxTokens {
		return fmt.Errorf("splitter.min_tokens must be in [0, max_tokens], got %d", s.MinTokens)
	}
	if s.OverlapTokens < 0 || s.OverlapTokens >= s.MaxTokens {
		return fmt.Errorf("splitter.overlap_tokens must be in [0, max_tokens), got %d", s.OverlapTokens)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		return fmt.Errorf("retrieval.similarity_threshold must be in [0,1], got %f", c.Retrieval.SimilarityThreshold)
	}
	if c.Queue.MaxRequestsPerMinute <= 0 {
		return fmt.Errorf("queue.max_requests_per_minute must be positive, got %d", c.Queue.MaxRequestsPerMinute)
	}
	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("queue.max_retries must be non-negative, got %d", c.Queue.MaxRetries)
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest.workers must be positive, got %d", c.Ingest.Workers)
	}
	return nil
}

package rag

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/ragflow/internal/metrics"
	"github.com/BaSui01/ragflow/llm/embedding"
	"github.com/BaSui01/ragflow/queue"
	"github.com/BaSui01/ragflow/types"
)

// EmbeddingManagerConfig bounds one embedding run.
type EmbeddingManagerConfig struct {
	// BatchSize caps chunks per embedding request. Clamped to the
	// provider's own batch limit.
	BatchSize int
	// MaxInputTokens is the embedding provider's hard per-input token
	// ceiling. Chunks over it are re-split before embedding.
	MaxInputTokens int
}

// EmbedResult summarizes what happened to one document.
type EmbedResult struct {
	Chunks        int `json:"chunks"`
	Embedded      int `json:"embedded"`
	Deduplicated  int `json:"deduplicated"`
	FailedBatches int `json:"failed_batches"`
}

// Partial reports whether some chunks embedded while others failed.
func (r EmbedResult) Partial() bool {
	return r.FailedBatches > 0 && r.Embedded > 0
}

// EmbeddingManager turns documents into indexed vectors: split, hash,
// drop what the namespace has already seen, embed the rest through the
// rate-limited queue, and upsert with the content hash as the vector ID.
type EmbeddingManager struct {
	cfg       EmbeddingManagerConfig
	provider  embedding.Provider
	store     VectorStore
	registry  HashRegistry
	splitter  *SemanticSplitter
	rechunker *TokenSplitter
	queue     *queue.RateLimitedQueue
	metrics   *metrics.Collector
	logger    *zap.Logger
}

func NewEmbeddingManager(
	cfg EmbeddingManagerConfig,
	provider embedding.Provider,
	store VectorStore,
	registry HashRegistry,
	splitter *SemanticSplitter,
	q *queue.RateLimitedQueue,
	collector *metrics.Collector,
	logger *zap.Logger,
) *EmbeddingManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if collector == nil {
		collector = metrics.NewCollector("ragflow", prometheus.NewRegistry(), logger)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if limit := provider.MaxBatchSize(); limit > 0 && cfg.BatchSize > limit {
		cfg.BatchSize = limit
	}
	if cfg.MaxInputTokens <= 0 {
		cfg.MaxInputTokens = 8191
	}

	// Re-splitting honors the chunk budget and the provider ceiling,
	// whichever is tighter.
	rechunkCfg := splitter.tokens.cfg
	if cfg.MaxInputTokens < rechunkCfg.MaxTokens {
		rechunkCfg.MaxTokens = cfg.MaxInputTokens
	}
	rechunker := NewTokenSplitter(rechunkCfg, splitter.tokens.counter, logger)

	return &EmbeddingManager{
		cfg:       cfg,
		provider:  provider,
		store:     store,
		registry:  registry,
		splitter:  splitter,
		rechunker: rechunker,
		queue:     q,
		metrics:   collector,
		logger:    logger.With(zap.String("component", "embedding_manager")),
	}
}

// EmbedDocument splits doc, embeds its unseen chunks and indexes them under
// namespace. A failed embedding batch forfeits only its own chunks; the rest
// of the document still lands, and the error is non-nil only when nothing at
// all could be embedded. A vector store failure aborts the document
// immediately and is always surfaced.
func (m *EmbeddingManager) EmbedDocument(ctx context.Context, namespace string, doc types.Document) (EmbedResult, error) {
	chunks := m.buildChunks(doc)

	var result EmbedResult
	result.Chunks = len(chunks)
	if len(chunks) == 0 {
		return result, nil
	}

	fresh := make([]types.Chunk, 0, len(chunks))
	for _, c := range chunks {
		seen, err := m.registry.Seen(ctx, namespace, c.Meta.SpanHash)
		if err != nil {
			return result, err
		}
		if seen {
			result.Deduplicated++
			continue
		}
		fresh = append(fresh, c)
	}
	m.metrics.RecordDeduplicated(result.Deduplicated)

	for start := 0; start < len(fresh); start += m.cfg.BatchSize {
		end := start + m.cfg.BatchSize
		if end > len(fresh) {
			end = len(fresh)
		}
		batch := fresh[start:end]

		if err := m.embedBatch(ctx, namespace, batch); err != nil {
			result.FailedBatches++
			if types.GetErrorCode(err) == types.ErrVectorStoreFailure {
				m.logger.Error("vector upsert failed, aborting document",
					zap.String("source", doc.Path),
					zap.Int("batch_size", len(batch)),
					zap.Error(err))
				return result, err
			}
			m.logger.Warn("embedding batch failed",
				zap.String("source", doc.Path),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			continue
		}
		result.Embedded += len(batch)
	}

	if result.FailedBatches > 0 && result.Embedded == 0 {
		return result, types.NewError(types.ErrEmbeddingFailure,
			"all embedding batches failed for "+doc.Path)
	}
	return result, nil
}

// buildChunks splits the document and attaches index metadata. Pieces over
// the embedding provider's input ceiling are carved again by the token
// splitter and marked rechunked.
func (m *EmbeddingManager) buildChunks(doc types.Document) []types.Chunk {
	fileType := ClassifyFile(doc.Path)
	module := ModuleOf(doc.Path)

	var chunks []types.Chunk
	add := func(content string, tokenCount int, p SemanticPiece) {
		chunks = append(chunks, types.Chunk{
			Content: content,
			Meta: types.ChunkMetadata{
				Source:        doc.Path,
				TokenCount:    tokenCount,
				SpanHash:      HashContent(content),
				Role:          p.Role,
				UnitName:      p.Name,
				CompleteBlock: p.CompleteBlock,
				Strategy:      p.Strategy,
				FileType:      string(fileType),
				Module:        module,
			},
		})
		m.metrics.RecordChunks(string(p.Strategy), 1)
	}

	for _, p := range m.splitter.SplitDocument(doc.Path, doc.Content) {
		if p.TokenCount <= m.cfg.MaxInputTokens {
			add(p.Content, p.TokenCount, p)
			continue
		}
		rechunked := p
		rechunked.Strategy = types.SplitRechunked
		rechunked.CompleteBlock = false
		for _, piece := range m.rechunker.Split(p.Content) {
			add(piece.Content, piece.TokenCount, rechunked)
		}
	}
	return chunks
}

func (m *EmbeddingManager) embedBatch(ctx context.Context, namespace string, batch []types.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	started := time.Now()
	res, err := m.queue.Do(ctx, func(ctx context.Context) (any, error) {
		return m.provider.EmbedDocuments(ctx, texts)
	})
	if err != nil {
		m.metrics.RecordEmbedBatch("failed", time.Since(started))
		return err
	}
	m.metrics.RecordEmbedBatch("ok", time.Since(started))

	embeddings, ok := res.([][]float64)
	if !ok || len(embeddings) != len(batch) {
		return types.NewError(types.ErrEmbeddingFailure, "provider returned mismatched embeddings")
	}

	vectors := make([]Vector, len(batch))
	hashes := make([]string, len(batch))
	for i, c := range batch {
		vectors[i] = Vector{
			ID:       c.Meta.SpanHash,
			Values:   embeddings[i],
			Metadata: chunkMetadataMap(c),
		}
		hashes[i] = c.Meta.SpanHash
	}

	if err := m.store.Upsert(ctx, namespace, vectors); err != nil {
		if types.GetErrorCode(err) != types.ErrVectorStoreFailure {
			err = types.NewError(types.ErrVectorStoreFailure, "vector upsert failed").WithCause(err)
		}
		return err
	}
	// Remembering after the upsert keeps a failed upsert re-embeddable.
	return m.registry.Remember(ctx, namespace, hashes...)
}

// chunkMetadataMap flattens chunk metadata for the vector store so matches
// come back self-describing.
func chunkMetadataMap(c types.Chunk) map[string]any {
	meta := map[string]any{
		metadataContentField: c.Content,
		"source":             c.Meta.Source,
		"token_count":        c.Meta.TokenCount,
		"span_hash":          c.Meta.SpanHash,
		"role":               string(c.Meta.Role),
		"complete_block":     c.Meta.CompleteBlock,
		"strategy":           string(c.Meta.Strategy),
		"file_type":          c.Meta.FileType,
	}
	if c.Meta.UnitName != "" {
		meta["unit_name"] = c.Meta.UnitName
	}
	if c.Meta.Module != "" {
		meta["module"] = c.Meta.Module
	}
	return meta
}

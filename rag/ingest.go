package rag

import (
	"context"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/ragflow/internal/metrics"
	"github.com/BaSui01/ragflow/rag/loader"
)

// IngestConfig bounds one repository ingestion run.
type IngestConfig struct {
	// Workers is the number of documents processed concurrently. The
	// embedding queue still serializes provider calls underneath.
	Workers int
}

// IngestResult aggregates what one run did.
type IngestResult struct {
	Documents       int      `json:"documents"`
	Chunks          int      `json:"chunks"`
	Embedded        int      `json:"embedded"`
	Deduplicated    int      `json:"deduplicated"`
	FailedBatches   int      `json:"failed_batches"`
	FailedDocuments []string `json:"failed_documents,omitempty"`
	// Partial is set when some chunks landed and some did not.
	Partial bool `json:"partial"`
}

// Ingestor drives a repository through the embedding manager with a bounded
// worker pool. One bad document never aborts the run.
type Ingestor struct {
	cfg     IngestConfig
	manager *EmbeddingManager
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewIngestor(cfg IngestConfig, manager *EmbeddingManager, collector *metrics.Collector, logger *zap.Logger) *Ingestor {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if collector == nil {
		collector = metrics.NewCollector("ragflow", prometheus.NewRegistry(), logger)
	}
	return &Ingestor{
		cfg:     cfg,
		manager: manager,
		metrics: collector,
		logger:  logger.With(zap.String("component", "ingestor")),
	}
}

// IngestRepository loads every document from repo and indexes it under
// namespace. The returned error covers only loading; per-document failures
// are reported through the result.
func (in *Ingestor) IngestRepository(ctx context.Context, namespace string, repo loader.RepositoryLoader) (IngestResult, error) {
	var result IngestResult

	docs, err := repo.Load(ctx)
	if err != nil {
		return result, err
	}
	result.Documents = len(docs)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.cfg.Workers)

	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			res, err := in.manager.EmbedDocument(gctx, namespace, doc)

			mu.Lock()
			defer mu.Unlock()
			result.Chunks += res.Chunks
			result.Embedded += res.Embedded
			result.Deduplicated += res.Deduplicated
			result.FailedBatches += res.FailedBatches

			if err != nil {
				result.FailedDocuments = append(result.FailedDocuments, doc.Path)
				in.metrics.RecordDocumentFailed()
				in.logger.Warn("document failed to embed",
					zap.String("path", doc.Path),
					zap.Error(err))
				return nil
			}
			in.metrics.RecordDocumentLoaded(string(ClassifyFile(doc.Path)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	sort.Strings(result.FailedDocuments)
	result.Partial = result.Embedded > 0 &&
		(result.FailedBatches > 0 || len(result.FailedDocuments) > 0)

	in.logger.Info("repository ingested",
		zap.String("namespace", namespace),
		zap.Int("documents", result.Documents),
		zap.Int("chunks", result.Chunks),
		zap.Int("embedded", result.Embedded),
		zap.Int("deduplicated", result.Deduplicated),
		zap.Int("failed_documents", len(result.FailedDocuments)))
	return result, nil
}

package rag

import (
	"context"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/ragflow/internal/metrics"
	"github.com/BaSui01/ragflow/llm/embedding"
	"github.com/BaSui01/ragflow/queue"
	"github.com/BaSui01/ragflow/types"
)

// SearchConfig tunes retrieval.
type SearchConfig struct {
	// TopK is the neighbor count of the primary query.
	TopK int
	// SimilarityThreshold discards matches scoring below it.
	SimilarityThreshold float64
	// MinMatches triggers the broadened retry when the primary query,
	// after filtering, returns fewer matches than this.
	MinMatches int
}

// Multipliers for the broadened retry. Tunable, not load-bearing.
const (
	broadenTopKFactor      = 2
	broadenThresholdFactor = 0.75
)

// SearchOrchestrator embeds a prompt once and retrieves the best-scoring
// chunks from the namespace. It never returns an error: an unavailable
// provider or store yields an empty result, which callers read as "answer
// without retrieval context".
type SearchOrchestrator struct {
	cfg      SearchConfig
	provider embedding.Provider
	store    VectorStore
	queue    *queue.RateLimitedQueue
	metrics  *metrics.Collector
	logger   *zap.Logger
}

func NewSearchOrchestrator(
	cfg SearchConfig,
	provider embedding.Provider,
	store VectorStore,
	q *queue.RateLimitedQueue,
	collector *metrics.Collector,
	logger *zap.Logger,
) *SearchOrchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MinMatches <= 0 {
		cfg.MinMatches = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if collector == nil {
		collector = metrics.NewCollector("ragflow", prometheus.NewRegistry(), logger)
	}
	return &SearchOrchestrator{
		cfg:      cfg,
		provider: provider,
		store:    store,
		queue:    q,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "search_orchestrator")),
	}
}

// Search returns scored matches for prompt within namespace, best first.
// Too few primary hits trigger one broadened query with a larger topK and a
// relaxed threshold; results are merged and de-duplicated by vector ID,
// keeping the higher score.
func (o *SearchOrchestrator) Search(ctx context.Context, namespace, prompt string) []types.SearchMatch {
	started := time.Now()

	vector, err := o.embedPrompt(ctx, prompt)
	if err != nil {
		o.logger.Warn("prompt embedding failed, returning no matches",
			zap.String("namespace", namespace),
			zap.Error(err))
		o.metrics.RecordSearch("error", time.Since(started))
		return []types.SearchMatch{}
	}

	primary := o.query(ctx, namespace, vector, o.cfg.TopK, o.cfg.SimilarityThreshold)
	matches := primary
	if len(primary) < o.cfg.MinMatches {
		broadened := o.query(ctx, namespace, vector,
			o.cfg.TopK*broadenTopKFactor,
			o.cfg.SimilarityThreshold*broadenThresholdFactor)
		matches = mergeMatches(primary, broadened)
	}

	outcome := "hit"
	if len(matches) == 0 {
		outcome = "empty"
	}
	o.metrics.RecordSearch(outcome, time.Since(started))

	o.logger.Debug("search completed",
		zap.String("namespace", namespace),
		zap.Int("matches", len(matches)),
		zap.Bool("broadened", len(primary) < o.cfg.MinMatches))
	return matches
}

func (o *SearchOrchestrator) embedPrompt(ctx context.Context, prompt string) ([]float64, error) {
	res, err := o.queue.Do(ctx, func(ctx context.Context) (any, error) {
		return o.provider.EmbedQuery(ctx, prompt)
	})
	if err != nil {
		return nil, err
	}
	vector, ok := res.([]float64)
	if !ok || len(vector) == 0 {
		return nil, types.NewError(types.ErrEmbeddingFailure, "provider returned empty query embedding")
	}
	return vector, nil
}

// query runs one store lookup and drops matches under threshold. Store
// failures degrade to no matches.
func (o *SearchOrchestrator) query(ctx context.Context, namespace string, vector []float64, topK int, threshold float64) []types.SearchMatch {
	found, err := o.store.Query(ctx, namespace, vector, topK)
	if err != nil {
		o.logger.Warn("vector store query failed",
			zap.String("namespace", namespace),
			zap.Error(err))
		return nil
	}

	kept := make([]types.SearchMatch, 0, len(found))
	for _, m := range found {
		if m.Score >= threshold {
			kept = append(kept, m)
		}
	}
	return kept
}

func mergeMatches(primary, broadened []types.SearchMatch) []types.SearchMatch {
	byID := make(map[string]types.SearchMatch, len(primary)+len(broadened))
	for _, m := range append(primary, broadened...) {
		if prev, ok := byID[m.ID]; !ok || m.Score > prev.Score {
			byID[m.ID] = m
		}
	}

	out := make([]types.SearchMatch, 0, len(byID))
	for _, m := range byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector holds the pipeline's Prometheus instruments.
type Collector struct {
	// Ingestion
	chunksProduced   *prometheus.CounterVec
	chunksDeduped    prometheus.Counter
	embedBatches     *prometheus.CounterVec
	embedDuration    prometheus.Histogram
	documentsLoaded  *prometheus.CounterVec
	documentsFailed  prometheus.Counter

	// Queue
	queueRetries prometheus.Counter
	queueDepth   prometheus.Gauge

	// Query
	searchesTotal      *prometheus.CounterVec
	searchDuration     prometheus.Histogram
	responsesTotal     *prometheus.CounterVec
	hallucinationFlags prometheus.Counter

	logger *zap.Logger
}

// NewCollector registers the pipeline instruments on reg. Passing nil uses
// the default registerer.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.chunksProduced = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_produced_total",
			Help:      "Chunks produced by the splitters, by strategy",
		},
		[]string{"strategy"},
	)

	c.chunksDeduped = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_deduplicated_total",
			Help:      "Chunks skipped because their content hash was already embedded",
		},
	)

	c.embedBatches = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_batches_total",
			Help:      "Embedding batches submitted, by outcome",
		},
		[]string{"outcome"},
	)

	c.embedDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_batch_duration_seconds",
			Help:      "Wall time of one embedding batch including queue wait",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.documentsLoaded = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_loaded_total",
			Help:      "Documents loaded from repositories, by file type",
		},
		[]string{"file_type"},
	)

	c.documentsFailed = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_failed_total",
			Help:      "Documents that failed to embed after retries",
		},
	)

	c.queueRetries = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_retries_total",
			Help:      "Tasks requeued after a rate-limit rejection",
		},
	)

	c.queueDepth = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Tasks currently waiting in the embedding queue",
		},
	)

	c.searchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Vector searches, by outcome",
		},
		[]string{"outcome"},
	)

	c.searchDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Vector search duration including the broadened retry",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.responsesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Generated responses, by mode",
		},
		[]string{"mode"},
	)

	c.hallucinationFlags = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hallucination_flags_total",
			Help:      "Responses flagged for citing files absent from the context",
		},
	)

	return c
}

func (c *Collector) RecordChunks(strategy string, n int) {
	c.chunksProduced.WithLabelValues(strategy).Add(float64(n))
}

func (c *Collector) RecordDeduplicated(n int) {
	c.chunksDeduped.Add(float64(n))
}

func (c *Collector) RecordEmbedBatch(outcome string, duration time.Duration) {
	c.embedBatches.WithLabelValues(outcome).Inc()
	c.embedDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordDocumentLoaded(fileType string) {
	c.documentsLoaded.WithLabelValues(fileType).Inc()
}

func (c *Collector) RecordDocumentFailed() {
	c.documentsFailed.Inc()
}

func (c *Collector) RecordQueueRetry() {
	c.queueRetries.Inc()
}

func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

func (c *Collector) RecordSearch(outcome string, duration time.Duration) {
	c.searchesTotal.WithLabelValues(outcome).Inc()
	c.searchDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordResponse(mode string) {
	c.responsesTotal.WithLabelValues(mode).Inc()
}

func (c *Collector) RecordHallucinationFlag() {
	c.hallucinationFlags.Inc()
}

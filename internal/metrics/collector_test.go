package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("ragflow", reg, zap.NewNop())

	c.RecordChunks("ast", 3)
	c.RecordChunks("token", 2)
	c.RecordDeduplicated(5)
	c.RecordEmbedBatch("ok", 120*time.Millisecond)
	c.RecordEmbedBatch("failed", 80*time.Millisecond)
	c.RecordDocumentLoaded("code")
	c.RecordDocumentFailed()
	c.RecordQueueRetry()
	c.SetQueueDepth(4)
	c.RecordSearch("hit", 30*time.Millisecond)
	c.RecordResponse("contextual")
	c.RecordHallucinationFlag()

	assert.Equal(t, 3.0, testutil.ToFloat64(c.chunksProduced.WithLabelValues("ast")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.chunksProduced.WithLabelValues("token")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.chunksDeduped))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.embedBatches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.documentsLoaded.WithLabelValues("code")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.documentsFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queueRetries))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.searchesTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.responsesTotal.WithLabelValues("contextual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.hallucinationFlags))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/ragflow/queue"
	"github.com/BaSui01/ragflow/types"
)

func newPipelineFixture(t *testing.T, store VectorStore, llmProvider *scriptedLLM, withSearch bool) *QueryPipeline {
	t.Helper()
	q := queue.New(queue.Config{MaxRequestsPerMinute: 6000}, zap.NewNop())
	t.Cleanup(q.Close)

	var search *SearchOrchestrator
	if withSearch {
		search = NewSearchOrchestrator(SearchConfig{
			TopK:                5,
			SimilarityThreshold: 0.7,
			MinMatches:          1,
		}, &queryEmbedder{vector: []float64{1, 0}}, store, q, nil, zap.NewNop())
	}

	generator := NewResponseGenerator(ResponseGeneratorConfig{Model: "m"}, llmProvider, q, nil, zap.NewNop())
	return NewQueryPipeline(PipelineConfig{}, search, NewContextBuilder(ContextBuilderConfig{}), generator, zap.NewNop())
}

func TestRespondUsesContextWhenAvailable(t *testing.T) {
	store := NewMemoryVectorStore(zap.NewNop())
	require.NoError(t, store.Upsert(context.Background(), "repo-a", []Vector{
		{ID: "c1", Values: []float64{1, 0}, Metadata: map[string]any{
			"content": "func main() {}", "source": "cmd/main.go", "file_type": "code",
		}},
	}))

	provider := &scriptedLLM{reply: "entry point is cmd/main.go"}
	p := newPipelineFixture(t, store, provider, true)

	res := p.Respond(context.Background(), "conv-1", "repo-a", "where does the app start?", nil)
	assert.True(t, res.Success)
	assert.True(t, res.RAGEnabled)
	assert.Equal(t, "entry point is cmd/main.go", res.Response)
	assert.Equal(t, "conv-1", res.ConversationID)
	assert.False(t, res.Timestamp.IsZero())

	require.NotNil(t, provider.lastReq)
	assert.Contains(t, provider.lastReq.Messages[0].Content, "func main() {}")
}

func TestRespondFallsBackWithoutMatches(t *testing.T) {
	store := NewMemoryVectorStore(zap.NewNop())
	provider := &scriptedLLM{reply: "general answer"}
	p := newPipelineFixture(t, store, provider, true)

	res := p.Respond(context.Background(), "conv-2", "repo-a", "what is a goroutine?", nil)
	assert.True(t, res.Success)
	assert.False(t, res.RAGEnabled)
	assert.Equal(t, "general answer", res.Response)
}

func TestRespondWithoutVectorStoreConfigured(t *testing.T) {
	provider := &scriptedLLM{reply: "standard answer"}
	p := newPipelineFixture(t, nil, provider, false)

	res := p.Respond(context.Background(), "conv-3", "", "anything", nil)
	assert.True(t, res.Success)
	assert.False(t, res.RAGEnabled)
	assert.Equal(t, "standard answer", res.Response)
}

func TestRespondStoreFailureTakesStandardPath(t *testing.T) {
	provider := &scriptedLLM{reply: "still answered"}
	p := newPipelineFixture(t, failingStore{}, provider, true)

	res := p.Respond(context.Background(), "conv-4", "repo-a", "where is the bug?", nil)
	assert.True(t, res.Success)
	assert.False(t, res.RAGEnabled)
	assert.Equal(t, "still answered", res.Response)
}

func TestRespondProviderFailureReturnsErrorResult(t *testing.T) {
	provider := &scriptedLLM{err: types.NewError(types.ErrUpstreamError, "llm down")}
	p := newPipelineFixture(t, NewMemoryVectorStore(zap.NewNop()), provider, true)

	res := p.Respond(context.Background(), "conv-5", "repo-a", "anything", nil)
	assert.False(t, res.Success)
	assert.Empty(t, res.Response)
	assert.Contains(t, res.Error, "llm down")
	assert.Equal(t, "conv-5", res.ConversationID)
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, "u1:acme:api", Namespace("u1", "acme", "api"))
	assert.Equal(t, "acme:api", Namespace("", "acme", "api"))
	assert.Equal(t, "", Namespace("", "", ""))
}

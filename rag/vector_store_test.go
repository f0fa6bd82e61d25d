package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryVectorStoreQueryRanksByCosine(t *testing.T) {
	t.Parallel()

	store := NewMemoryVectorStore(zap.NewNop())
	ctx := context.Background()

	err := store.Upsert(ctx, "repo-a", []Vector{
		{ID: "exact", Values: []float64{1, 0, 0}, Metadata: map[string]any{"content": "exact match"}},
		{ID: "close", Values: []float64{0.9, 0.1, 0}, Metadata: map[string]any{"content": "close match"}},
		{ID: "far", Values: []float64{0, 0, 1}, Metadata: map[string]any{"content": "far away"}},
	})
	require.NoError(t, err)

	matches, err := store.Query(ctx, "repo-a", []float64{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "exact", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.Equal(t, "exact match", matches[0].Content)
	assert.Equal(t, "close", matches[1].ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestMemoryVectorStoreNamespaceIsolation(t *testing.T) {
	t.Parallel()

	store := NewMemoryVectorStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "repo-a", []Vector{{ID: "a1", Values: []float64{1, 0}}}))
	require.NoError(t, store.Upsert(ctx, "repo-b", []Vector{{ID: "b1", Values: []float64{1, 0}}}))

	matches, err := store.Query(ctx, "repo-b", []float64{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b1", matches[0].ID)

	require.NoError(t, store.DeleteNamespace(ctx, "repo-a"))
	n, err := store.Count(ctx, "repo-a")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = store.Count(ctx, "repo-b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryVectorStoreUpsertReplacesByID(t *testing.T) {
	t.Parallel()

	store := NewMemoryVectorStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "ns", []Vector{{ID: "v1", Values: []float64{1, 0}}}))
	require.NoError(t, store.Upsert(ctx, "ns", []Vector{{ID: "v1", Values: []float64{0, 1}}}))

	n, err := store.Count(ctx, "ns")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	matches, err := store.Query(ctx, "ns", []float64{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
}

func TestMemoryVectorStoreRejectsInvalidVectors(t *testing.T) {
	t.Parallel()

	store := NewMemoryVectorStore(zap.NewNop())
	ctx := context.Background()

	assert.Error(t, store.Upsert(ctx, "ns", []Vector{{ID: "", Values: []float64{1}}}))
	assert.Error(t, store.Upsert(ctx, "ns", []Vector{{ID: "v1"}}))
}

func TestMemoryVectorStoreDeleteVectors(t *testing.T) {
	t.Parallel()

	store := NewMemoryVectorStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "ns", []Vector{
		{ID: "v1", Values: []float64{1, 0}},
		{ID: "v2", Values: []float64{0, 1}},
	}))
	require.NoError(t, store.DeleteVectors(ctx, "ns", []string{"v1"}))

	n, err := store.Count(ctx, "ns")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float64{1}, []float64{1, 2}))
	assert.Zero(t, cosineSimilarity([]float64{0, 0}, []float64{1, 1}))
}

package rag

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/ragflow/queue"
	"github.com/BaSui01/ragflow/rag/loader"
	"github.com/BaSui01/ragflow/types"
)

type staticRepo struct {
	docs []types.Document
	err  error
}

func (r staticRepo) Load(ctx context.Context) ([]types.Document, error) {
	return r.docs, r.err
}

func TestIngestRepository(t *testing.T) {
	embedder := &fakeEmbedder{}
	m, store, _ := newTestManager(t, embedder, 10)
	in := NewIngestor(IngestConfig{Workers: 2}, m, nil, zap.NewNop())
	ctx := context.Background()

	repo := staticRepo{docs: []types.Document{
		{Path: "src/a.js", Content: "function a(){}"},
		{Path: "src/b.js", Content: "function b(){}"},
		{Path: "README.md", Content: "getting started notes"},
	}}

	res, err := in.IngestRepository(ctx, "repo-a", repo)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Documents)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 3, res.Embedded)
	assert.Empty(t, res.FailedDocuments)
	assert.False(t, res.Partial)

	n, err := store.Count(ctx, "repo-a")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestIngestRepositoryReingestDedupes(t *testing.T) {
	embedder := &fakeEmbedder{}
	m, _, _ := newTestManager(t, embedder, 10)
	in := NewIngestor(IngestConfig{Workers: 2}, m, nil, zap.NewNop())
	ctx := context.Background()

	repo := staticRepo{docs: []types.Document{
		{Path: "src/a.js", Content: "function a(){}"},
	}}

	_, err := in.IngestRepository(ctx, "repo-a", repo)
	require.NoError(t, err)

	res, err := in.IngestRepository(ctx, "repo-a", repo)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deduplicated)
	assert.Zero(t, res.Embedded)
}

func TestIngestRepositorySurvivesBadDocument(t *testing.T) {
	embedder := &fakeEmbedder{failCalls: map[int]error{
		1: types.NewError(types.ErrUpstreamError, "boom"),
	}}
	m, _, _ := newTestManager(t, embedder, 10)
	// Single worker makes provider call order deterministic.
	in := NewIngestor(IngestConfig{Workers: 1}, m, nil, zap.NewNop())

	repo := staticRepo{docs: []types.Document{
		{Path: "src/a.js", Content: "function a(){}"},
		{Path: "src/b.js", Content: "function b(){}"},
	}}

	res, err := in.IngestRepository(context.Background(), "repo-a", repo)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.js"}, res.FailedDocuments)
	assert.Equal(t, 1, res.Embedded)
	assert.True(t, res.Partial)
}

func TestIngestRepositoryStoreFailurePartiallyFails(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &brokenStore{MemoryVectorStore: NewMemoryVectorStore(zap.NewNop()), failUpserts: 1}
	q := queue.New(queue.Config{MaxRequestsPerMinute: 6000}, zap.NewNop())
	t.Cleanup(q.Close)

	m := NewEmbeddingManager(
		EmbeddingManagerConfig{BatchSize: 10},
		embedder, store, NewMemoryHashRegistry(),
		newTestSemanticSplitter(512), q, nil, zap.NewNop(),
	)
	// Single worker makes the failing upsert land on the first document.
	in := NewIngestor(IngestConfig{Workers: 1}, m, nil, zap.NewNop())

	repo := staticRepo{docs: []types.Document{
		{Path: "src/a.js", Content: "function a(){}"},
		{Path: "src/b.js", Content: "function b(){}"},
	}}

	res, err := in.IngestRepository(context.Background(), "repo-a", repo)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.js"}, res.FailedDocuments,
		"an upsert failure must mark its document failed")
	assert.Equal(t, 1, res.Embedded)
	assert.True(t, res.Partial)
}

func TestIngestRepositoryLoadErrorAborts(t *testing.T) {
	embedder := &fakeEmbedder{}
	m, _, _ := newTestManager(t, embedder, 10)
	in := NewIngestor(IngestConfig{}, m, nil, zap.NewNop())

	boom := types.NewError(types.ErrInternalError, "walk failed")
	_, err := in.IngestRepository(context.Background(), "repo-a", staticRepo{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestIngestRepositoryWithFilesystemLoader(t *testing.T) {
	embedder := &fakeEmbedder{}
	m, store, _ := newTestManager(t, embedder, 10)
	in := NewIngestor(IngestConfig{Workers: 2}, m, nil, zap.NewNop())
	ctx := context.Background()

	fsys := fstest.MapFS{
		"main.go":   {Data: []byte("package main\n\nfunc main() {}\n")},
		"README.md": {Data: []byte("# demo")},
	}
	repo := loader.NewFilesystemLoader(fsys, loader.FilesystemConfig{}, zap.NewNop())

	res, err := in.IngestRepository(ctx, "repo-fs", repo)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Documents)
	assert.Equal(t, res.Chunks, res.Embedded)

	n, err := store.Count(ctx, "repo-fs")
	require.NoError(t, err)
	assert.Equal(t, res.Embedded, n)
}

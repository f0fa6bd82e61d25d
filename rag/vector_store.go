package rag

import (
	"context"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/ragflow/types"
)

// metadataContentField is the metadata key the chunk text is stored under,
// so query responses can return content without a second lookup.
const metadataContentField = "content"

// Vector is one embeddable record as the index stores it.
type Vector struct {
	ID       string         `json:"id"`
	Values   []float64      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// VectorStore is the index abstraction. Namespaces partition vectors per
// repository; every call names its namespace explicitly so one store serves
// many repositories.
type VectorStore interface {
	Upsert(ctx context.Context, namespace string, vectors []Vector) error

	Query(ctx context.Context, namespace string, vector []float64, topK int) ([]types.SearchMatch, error)

	DeleteVectors(ctx context.Context, namespace string, ids []string) error

	// DeleteNamespace removes every vector in the namespace.
	DeleteNamespace(ctx context.Context, namespace string) error

	Count(ctx context.Context, namespace string) (int, error)
}

// MemoryVectorStore is an exact cosine-similarity store for tests and small
// corpora.
type MemoryVectorStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]Vector
	logger     *zap.Logger
}

func NewMemoryVectorStore(logger *zap.Logger) *MemoryVectorStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryVectorStore{
		namespaces: make(map[string]map[string]Vector),
		logger:     logger.With(zap.String("component", "memory_vector_store")),
	}
}

func (s *MemoryVectorStore) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	for _, v := range vectors {
		if v.ID == "" {
			return types.NewError(types.ErrVectorStoreFailure, "vector has empty id")
		}
		if len(v.Values) == 0 {
			return types.NewError(types.ErrVectorStoreFailure, "vector "+v.ID+" has no values")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.namespaces[namespace]
	if ns == nil {
		ns = make(map[string]Vector)
		s.namespaces[namespace] = ns
	}
	for _, v := range vectors {
		ns[v.ID] = v
	}

	s.logger.Debug("vectors upserted",
		zap.String("namespace", namespace),
		zap.Int("count", len(vectors)),
		zap.Int("total", len(ns)))
	return nil
}

func (s *MemoryVectorStore) Query(ctx context.Context, namespace string, vector []float64, topK int) ([]types.SearchMatch, error) {
	if topK <= 0 || len(vector) == 0 {
		return []types.SearchMatch{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ns := s.namespaces[namespace]
	matches := make([]types.SearchMatch, 0, len(ns))
	for id, v := range ns {
		score := cosineSimilarity(vector, v.Values)
		m := types.SearchMatch{ID: id, Score: score, Metadata: v.Metadata}
		if v.Metadata != nil {
			if content, ok := v.Metadata[metadataContentField].(string); ok {
				m.Content = content
			}
		}
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *MemoryVectorStore) DeleteVectors(ctx context.Context, namespace string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.namespaces[namespace]
	for _, id := range ids {
		delete(ns, id)
	}
	return nil
}

func (s *MemoryVectorStore) DeleteNamespace(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, namespace)
	return nil
}

func (s *MemoryVectorStore) Count(ctx context.Context, namespace string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.namespaces[namespace]), nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

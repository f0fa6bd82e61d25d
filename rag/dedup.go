package rag

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/ragflow/types"
)

// HashRegistry remembers which normalized-content hashes a namespace has
// already embedded, so re-ingestion skips unchanged spans.
type HashRegistry interface {
	// Seen reports whether hash was embedded before in this namespace.
	Seen(ctx context.Context, namespace, hash string) (bool, error)

	// Remember records hashes as embedded.
	Remember(ctx context.Context, namespace string, hashes ...string) error

	// Forget clears the namespace, forcing full re-embedding next run.
	Forget(ctx context.Context, namespace string) error
}

// MemoryHashRegistry keeps hashes in process memory.
type MemoryHashRegistry struct {
	mu   sync.RWMutex
	seen map[string]map[string]struct{}
}

func NewMemoryHashRegistry() *MemoryHashRegistry {
	return &MemoryHashRegistry{seen: make(map[string]map[string]struct{})}
}

func (r *MemoryHashRegistry) Seen(ctx context.Context, namespace, hash string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.seen[namespace][hash]
	return ok, nil
}

func (r *MemoryHashRegistry) Remember(ctx context.Context, namespace string, hashes ...string) error {
	if len(hashes) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ns := r.seen[namespace]
	if ns == nil {
		ns = make(map[string]struct{})
		r.seen[namespace] = ns
	}
	for _, h := range hashes {
		ns[h] = struct{}{}
	}
	return nil
}

func (r *MemoryHashRegistry) Forget(ctx context.Context, namespace string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.seen, namespace)
	return nil
}

// RedisHashRegistry stores hashes in a Redis set per namespace, surviving
// process restarts and shared across ingest workers.
type RedisHashRegistry struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

func NewRedisHashRegistry(client *redis.Client, prefix string, logger *zap.Logger) *RedisHashRegistry {
	if prefix == "" {
		prefix = "ragflow:hashes:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisHashRegistry{
		client: client,
		prefix: prefix,
		logger: logger.With(zap.String("component", "hash_registry")),
	}
}

func (r *RedisHashRegistry) key(namespace string) string {
	return r.prefix + namespace
}

func (r *RedisHashRegistry) Seen(ctx context.Context, namespace, hash string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key(namespace), hash).Result()
	if err != nil {
		return false, types.NewError(types.ErrInternalError, "hash registry lookup failed").WithCause(err)
	}
	return ok, nil
}

func (r *RedisHashRegistry) Remember(ctx context.Context, namespace string, hashes ...string) error {
	if len(hashes) == 0 {
		return nil
	}
	members := make([]any, len(hashes))
	for i, h := range hashes {
		members[i] = h
	}
	if err := r.client.SAdd(ctx, r.key(namespace), members...).Err(); err != nil {
		return types.NewError(types.ErrInternalError, "hash registry write failed").WithCause(err)
	}
	return nil
}

func (r *RedisHashRegistry) Forget(ctx context.Context, namespace string) error {
	if err := r.client.Del(ctx, r.key(namespace)).Err(); err != nil {
		return types.NewError(types.ErrInternalError, "hash registry clear failed").WithCause(err)
	}
	r.logger.Info("hash registry cleared", zap.String("namespace", namespace))
	return nil
}

package rag

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryHashRegistry(t *testing.T) {
	t.Parallel()

	reg := NewMemoryHashRegistry()
	ctx := context.Background()

	seen, err := reg.Seen(ctx, "repo-a", "h1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, reg.Remember(ctx, "repo-a", "h1", "h2"))

	seen, err = reg.Seen(ctx, "repo-a", "h1")
	require.NoError(t, err)
	assert.True(t, seen)

	// Other namespaces stay blind to it.
	seen, err = reg.Seen(ctx, "repo-b", "h1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, reg.Forget(ctx, "repo-a"))
	seen, err = reg.Seen(ctx, "repo-a", "h1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisHashRegistry(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	reg := NewRedisHashRegistry(client, "", zap.NewNop())
	ctx := context.Background()

	seen, err := reg.Seen(ctx, "repo-a", "h1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, reg.Remember(ctx, "repo-a", "h1", "h2"))

	seen, err = reg.Seen(ctx, "repo-a", "h2")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = reg.Seen(ctx, "repo-b", "h2")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, reg.Forget(ctx, "repo-a"))
	seen, err = reg.Seen(ctx, "repo-a", "h1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisHashRegistryEmptyRemember(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	reg := NewRedisHashRegistry(client, "", zap.NewNop())
	assert.NoError(t, reg.Remember(context.Background(), "repo-a"))
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
)

func newTestRepo(t *testing.T) (*miniredis.Miniredis, *IrresponsibleUserRepositoryRedis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewIrresponsibleUserRepositoryRedis(client).(*IrresponsibleUserRepositoryRedis)
}

func TestIrresponsibleUserRepositoryRedis_PutAllAndExpire(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	mr, repo := newTestRepo(t)

	// When
	req.NoError(repo.PutAll(ctx, []uint64{42, 43}, "node-a", 10*time.Second))

	// Then
	node, ok, err := repo.Get(ctx, 42)
	req.NoError(err)
	req.True(ok)
	req.Equal("node-a", node)
	req.Equal(10*time.Second, mr.TTL("im:irresponsible:user:43"))

	mr.FastForward(11 * time.Second)
	_, ok, err = repo.Get(ctx, 42)
	req.NoError(err)
	req.False(ok)
}

func TestIrresponsibleUserRepositoryRedis_RemoveOnlyOwnEntry(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given 条目已被 node-b 覆盖
	_, repo := newTestRepo(t)
	req.NoError(repo.Put(ctx, 7, "node-a", time.Minute))
	req.NoError(repo.Put(ctx, 7, "node-b", time.Minute))

	// When
	req.NoError(repo.Remove(ctx, 7, "node-a"))

	// Then
	node, ok, err := repo.Get(ctx, 7)
	req.NoError(err)
	req.True(ok)
	req.Equal("node-b", node)

	req.NoError(repo.Remove(ctx, 7, "node-b"))
	_, ok, err = repo.Get(ctx, 7)
	req.NoError(err)
	req.False(ok)
}

func TestIrresponsibleUserRepositoryRedis_GetMissing(t *testing.T) {
	req := require.New(t)

	_, repo := newTestRepo(t)
	node, ok, err := repo.Get(context.Background(), 1)
	req.NoError(err)
	req.False(ok)
	req.Empty(node)
}

func TestIrresponsibleUserRepositoryRedis_RejectsNonPositiveTTL(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	mr, repo := newTestRepo(t)

	req.ErrorIs(repo.PutAll(ctx, []uint64{42}, "node-a", 0), entity.ErrIllegalArgument)
	req.ErrorIs(repo.Put(ctx, 43, "node-a", -time.Second), entity.ErrIllegalArgument)

	// 不会写入永不过期的条目
	req.False(mr.Exists("im:irresponsible:user:42"))
	req.False(mr.Exists("im:irresponsible:user:43"))
}

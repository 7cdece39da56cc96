package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

const (
	// 非负责用户Key前缀，值为当前持有会话的节点ID
	irresponsibleKeyPrefix = "im:irresponsible:user:"
)

// 只有值仍是自己时才删除，避免旧持有者删掉新写入的条目
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// IrresponsibleUserRepositoryRedis Redis 非负责用户目录
type IrresponsibleUserRepositoryRedis struct {
	client redis.UniversalClient
}

func NewIrresponsibleUserRepositoryRedis(client redis.UniversalClient) out.IrresponsibleUserRepository {
	return &IrresponsibleUserRepositoryRedis{client: client}
}

func (r *IrresponsibleUserRepositoryRedis) getKey(userID uint64) string {
	return fmt.Sprintf("%s%d", irresponsibleKeyPrefix, userID)
}

// validTTL 过期时间为 0 的 SET 不会过期，条目只能靠 TTL 清理
func validTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("irresponsible user ttl %v: %w", ttl, entity.ErrIllegalArgument)
	}
	return nil
}

func (r *IrresponsibleUserRepositoryRedis) Put(ctx context.Context, userID uint64, nodeID string, ttl time.Duration) error {
	if err := validTTL(ttl); err != nil {
		return err
	}
	return r.client.Set(ctx, r.getKey(userID), nodeID, ttl).Err()
}

func (r *IrresponsibleUserRepositoryRedis) PutAll(ctx context.Context, userIDs []uint64, nodeID string, ttl time.Duration) error {
	if err := validTTL(ttl); err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}

	// 使用Pipeline批量写入
	pipe := r.client.Pipeline()
	for _, userID := range userIDs {
		pipe.Set(ctx, r.getKey(userID), nodeID, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put %d irresponsible users: %w", len(userIDs), err)
	}
	return nil
}

func (r *IrresponsibleUserRepositoryRedis) Get(ctx context.Context, userID uint64) (string, bool, error) {
	nodeID, err := r.client.Get(ctx, r.getKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return nodeID, true, nil
}

func (r *IrresponsibleUserRepositoryRedis) Remove(ctx context.Context, userID uint64, nodeID string) error {
	return compareAndDelete.Run(ctx, r.client, []string{r.getKey(userID)}, nodeID).Err()
}

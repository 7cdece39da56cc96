package application

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/EthanQC/IM/pkg/zlog"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/spatial"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

const defaultNearbyQueryTimeout = 15 * time.Second

// NearbyQuerier 全集群附近的人：向每个成员发同样的有界 k 近邻查询，合并后再查一次
// 各节点的前 k 名直接拼接可能漏掉全局前 k 名，所以要在合并后的索引上重新计算
type NearbyQuerier struct {
	registry   *PresenceRegistry
	membership out.ClusterMembership
	rpc        out.ClusterRPC
	timeout    time.Duration
}

// NewNearbyQuerier 创建附近的人查询
func NewNearbyQuerier(registry *PresenceRegistry, membership out.ClusterMembership, rpc out.ClusterRPC, timeout time.Duration) *NearbyQuerier {
	if timeout <= 0 {
		timeout = defaultNearbyQueryTimeout
	}
	return &NearbyQuerier{
		registry:   registry,
		membership: membership,
		rpc:        rpc,
		timeout:    timeout,
	}
}

func validateNearbyQuery(q entity.NearbyQuery) error {
	if q.MaxCount <= 0 {
		return fmt.Errorf("max count must be positive, got %d: %w", q.MaxCount, entity.ErrIllegalArgument)
	}
	if q.MaxDistance < 0 {
		return fmt.Errorf("max distance must not be negative, got %v: %w", q.MaxDistance, entity.ErrIllegalArgument)
	}
	return nil
}

// QueryNearby 部分成员失败只会让结果变少，不会让查询失败
func (n *NearbyQuerier) QueryNearby(ctx context.Context, point entity.Coordinate, maxDistance float64, maxCount int) ([]entity.NearbyUser, error) {
	q := entity.NearbyQuery{Point: point, MaxDistance: maxDistance, MaxCount: maxCount}
	if err := validateNearbyQuery(q); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	self := n.membership.LocalNodeID()
	members := n.membership.Members()
	partials := make([][]entity.NearbyUser, len(members))
	var failed atomic.Int32

	var g errgroup.Group
	for i, m := range members {
		i, m := i, m
		if m.NodeID == self {
			partials[i] = n.registry.NearestLocal(q)
			continue
		}
		g.Go(func() error {
			users, err := n.rpc.NearestUsers(ctx, m.NodeID, q)
			if err != nil {
				failed.Add(1)
				zap.L().Warn("nearby query on member failed", zlog.Node(m.NodeID), zap.Error(classifyRPCError(err)))
				return nil
			}
			partials[i] = users
			return nil
		})
	}
	_ = g.Wait()

	if f := failed.Load(); f > 0 {
		nearbyPartialFailuresTotal.Add(float64(f))
		zap.L().Warn("nearby query returned partial result",
			zap.Int32("failed_members", f), zap.Int("members", len(members)),
			zap.Error(entity.ErrSpatialQueryPartialFailure))
	}

	var union []entity.NearbyUser
	for _, p := range partials {
		union = append(union, p...)
	}
	return spatial.NewIndexFrom(union).Nearest(point, maxDistance, maxCount), nil
}

package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/EthanQC/IM/pkg/zlog"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/slot"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

const (
	defaultRPCTimeout = 5 * time.Second
	maxRelayParallel  = 32
)

// OutboundRouter 决定本地推送、转发到其他节点还是放弃
type OutboundRouter struct {
	registry   *PresenceRegistry
	slots      *slot.SlotMap
	directory  out.IrresponsibleUserRepository
	rpc        out.ClusterRPC
	rpcTimeout time.Duration
}

// NewOutboundRouter 创建路由器
func NewOutboundRouter(registry *PresenceRegistry, slots *slot.SlotMap, directory out.IrresponsibleUserRepository, rpc out.ClusterRPC, rpcTimeout time.Duration) *OutboundRouter {
	if rpcTimeout <= 0 {
		rpcTimeout = defaultRPCTimeout
	}
	return &OutboundRouter{
		registry:   registry,
		slots:      slots,
		directory:  directory,
		rpc:        rpc,
		rpcTimeout: rpcTimeout,
	}
}

// resolveTarget 目录中的持有节点优先，其次是槽位归属节点
func (r *OutboundRouter) resolveTarget(ctx context.Context, userID uint64) (string, bool) {
	if r.directory != nil {
		holder, ok, err := r.directory.Get(ctx, userID)
		if err != nil {
			zap.L().Warn("lookup irresponsible user failed, falling back to slot owner",
				zlog.UserID(userID), zap.Error(err))
		} else if ok {
			return holder, true
		}
	}
	return r.slots.OwnerOf(slot.Of(userID))
}

func (r *OutboundRouter) isSelf(nodeID string) bool {
	return nodeID == r.slots.LocalNodeID()
}

// classifyRPCError 超时与其他失败分开，调用方都按未投递处理
func classifyRPCError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || status.Code(err) == codes.DeadlineExceeded {
		return fmt.Errorf("%w: %v", entity.ErrRPCTimeout, err)
	}
	return fmt.Errorf("%w: %v", entity.ErrRPCFailure, err)
}

// DeliverToUser 返回是否投递成功；远程调用失败时返回 false 和 ErrRPCTimeout/ErrRPCFailure
func (r *OutboundRouter) DeliverToUser(ctx context.Context, userID uint64, payload []byte, allowRemoteRelay bool) (bool, error) {
	if r.registry.IsLocallyResponsible(userID) && r.registry.GetLocal(userID) != nil {
		ok := r.registry.DeliverLocal(userID, payload)
		deliveriesTotal.WithLabelValues("local", resultLabel(ok)).Inc()
		return ok, nil
	}
	if !allowRemoteRelay {
		return false, nil
	}

	target, ok := r.resolveTarget(ctx, userID)
	if !ok {
		deliveriesTotal.WithLabelValues("none", "dropped").Inc()
		return false, nil
	}
	if r.isSelf(target) {
		ok := r.registry.DeliverLocal(userID, payload)
		deliveriesTotal.WithLabelValues("local", resultLabel(ok)).Inc()
		return ok, nil
	}

	rctx, cancel := context.WithTimeout(ctx, r.rpcTimeout)
	defer cancel()
	delivered, err := r.rpc.DeliverToUser(rctx, target, userID, payload)
	if err != nil {
		err = classifyRPCError(err)
		zap.L().Warn("relay delivery failed", zlog.UserID(userID), zlog.Node(target), zap.Error(err))
		deliveriesTotal.WithLabelValues("remote", "failed").Inc()
		return false, err
	}
	deliveriesTotal.WithLabelValues("remote", resultLabel(delivered)).Inc()
	return delivered, nil
}

// DeliverToUsers 并发投递，返回成功的用户数
func (r *OutboundRouter) DeliverToUsers(ctx context.Context, userIDs []uint64, payload []byte) int {
	var delivered atomic.Int64
	var g errgroup.Group
	g.SetLimit(maxRelayParallel)
	for _, id := range userIDs {
		id := id
		g.Go(func() error {
			if ok, _ := r.DeliverToUser(ctx, id, payload, true); ok {
				delivered.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(delivered.Load())
}

// SetUserOffline 踢下线，分支与投递一致
func (r *OutboundRouter) SetUserOffline(ctx context.Context, userID uint64, reason entity.CloseReason) bool {
	closed, _ := r.SetUsersOffline(ctx, []uint64{userID}, reason)
	return closed
}

// SetUsersOffline 本地用户直接关闭，远程用户按目标节点分组，每个节点一次调用
func (r *OutboundRouter) SetUsersOffline(ctx context.Context, userIDs []uint64, reason entity.CloseReason) (bool, error) {
	if len(userIDs) == 0 {
		return false, fmt.Errorf("empty user ids: %w", entity.ErrIllegalArgument)
	}

	var closed atomic.Bool
	remote := make(map[string][]uint64)
	for _, id := range userIDs {
		if r.registry.IsLocallyResponsible(id) && r.registry.GetLocal(id) != nil {
			if r.registry.RemoveAllDevices(ctx, id, reason) {
				closed.Store(true)
			}
			continue
		}

		target, ok := r.resolveTarget(ctx, id)
		switch {
		case !ok:
			zap.L().Debug("no node found for user", zlog.UserID(id))
		case r.isSelf(target):
			if r.registry.RemoveAllDevices(ctx, id, reason) {
				closed.Store(true)
			}
		default:
			remote[target] = append(remote[target], id)
		}
	}

	var wg sync.WaitGroup
	for node, ids := range remote {
		node, ids := node, ids
		wg.Add(1)
		go func() {
			defer wg.Done()
			rctx, cancel := context.WithTimeout(ctx, r.rpcTimeout)
			defer cancel()
			ok, err := r.rpc.SetUsersOffline(rctx, node, ids, reason)
			if err != nil {
				zap.L().Warn("relay set users offline failed",
					zlog.Node(node), zlog.UserIDs(ids), zap.Error(classifyRPCError(err)))
				return
			}
			if ok {
				closed.Store(true)
			}
		}()
	}
	wg.Wait()
	return closed.Load(), nil
}

func resultLabel(ok bool) string {
	if ok {
		return "delivered"
	}
	return "not_delivered"
}

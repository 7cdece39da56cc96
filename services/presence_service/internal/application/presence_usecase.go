package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/EthanQC/IM/pkg/zlog"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/slot"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/in"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

// Options 在线服务参数
type Options struct {
	RegistryShards       int
	HeartbeatTimeout     time.Duration
	HeartbeatMinInterval time.Duration
	RPCTimeout           time.Duration
	NearbyQueryTimeout   time.Duration
	TransferPolicy       TransferPolicy
	IrresponsibleTTL     time.Duration
	IrresponsibleJitter  time.Duration
	UniqueDevicePoints   bool
	AsyncTimeout         time.Duration
}

// Dependencies 外部协作者，LoginLogs 和 Hooks 可以为空
type Dependencies struct {
	Membership out.ClusterMembership
	RPC        out.ClusterRPC
	Directory  out.IrresponsibleUserRepository
	LoginLogs  out.LoginLogRepository
	Hooks      []out.SessionHook
	Scheduler  out.Scheduler
}

// PresenceService 在线状态与路由的门面，组装注册表、心跳、迁移、路由和附近的人
type PresenceService struct {
	membership out.ClusterMembership
	slots      *slot.SlotMap
	registry   *PresenceRegistry
	transfer   *ResponsibilityTransferManager
	router     *OutboundRouter
	nearby     *NearbyQuerier
	handler    *ClusterHandler
}

var _ in.PresenceUseCase = (*PresenceService)(nil)

// NewPresenceService 创建服务并订阅成员变更
func NewPresenceService(opts Options, deps Dependencies) *PresenceService {
	slots := slot.NewSlotMap(deps.Membership)
	registry := NewPresenceRegistry(RegistryConfig{
		NodeID:               deps.Membership.LocalNodeID(),
		Shards:               opts.RegistryShards,
		HeartbeatTimeout:     opts.HeartbeatTimeout,
		HeartbeatMinInterval: opts.HeartbeatMinInterval,
		UniqueDevicePoints:   opts.UniqueDevicePoints,
		AsyncTimeout:         opts.AsyncTimeout,
	}, slots, deps.Scheduler, deps.Directory, deps.LoginLogs, deps.Hooks...)

	s := &PresenceService{
		membership: deps.Membership,
		slots:      slots,
		registry:   registry,
		transfer: NewResponsibilityTransferManager(TransferConfig{
			Policy: opts.TransferPolicy,
			TTL:    opts.IrresponsibleTTL,
			Jitter: opts.IrresponsibleJitter,
		}, registry, slots, deps.Directory, deps.Scheduler),
		router:  NewOutboundRouter(registry, slots, deps.Directory, deps.RPC, opts.RPCTimeout),
		nearby:  NewNearbyQuerier(registry, deps.Membership, deps.RPC, opts.NearbyQueryTimeout),
		handler: NewClusterHandler(registry),
	}

	deps.Membership.Subscribe(func(ev entity.MembershipEvent) {
		zap.L().Info("membership changed, recomputing responsibility",
			zap.String("event", string(ev.Type)), zlog.Node(ev.Member.NodeID))
		s.OnMembershipChange(context.Background())
	})
	return s
}

// Registry 本节点注册表
func (s *PresenceService) Registry() *PresenceRegistry {
	return s.registry
}

// ClusterHandler 供 gRPC 服务端使用
func (s *PresenceService) ClusterHandler() in.ClusterRequestHandler {
	return s.handler
}

func (s *PresenceService) Connect(ctx context.Context, req in.ConnectRequest) in.ConnectResult {
	if req.Status == entity.UserStatusOffline || !req.DeviceType.Valid() || req.Conn == nil {
		return in.ConnectResult{Code: entity.StatusIllegalArgument}
	}

	if !s.slots.IsLocallyResponsible(req.UserID) {
		return s.notResponsible(req.UserID)
	}

	_, err := s.registry.UpsertSession(ctx, UpsertParams{
		UserID:     req.UserID,
		DeviceType: req.DeviceType,
		Status:     req.Status,
		Location:   req.Location,
		Conn:       req.Conn,
		LoginLogID: uuid.NewString(),
		IP:         req.IP,
	})
	switch {
	case err == nil:
		zlog.C(ctx).Info("device online", zlog.UserID(req.UserID), zlog.Device(string(req.DeviceType)))
		return in.ConnectResult{Code: entity.StatusOK}
	case errors.Is(err, entity.ErrNotLocallyResponsible):
		return s.notResponsible(req.UserID)
	case errors.Is(err, entity.ErrIllegalArgument):
		return in.ConnectResult{Code: entity.StatusIllegalArgument}
	case errors.Is(err, entity.ErrServerClosing):
		return in.ConnectResult{Code: entity.StatusServerClosing}
	default:
		zlog.C(ctx).Error("connect failed", zlog.UserID(req.UserID), zap.Error(err))
		return in.ConnectResult{Code: entity.StatusServerInternalError}
	}
}

func (s *PresenceService) notResponsible(userID uint64) in.ConnectResult {
	res := in.ConnectResult{Code: entity.StatusNotResponsible}
	if m, ok := s.slots.OwnerMember(slot.Of(userID)); ok {
		res.RedirectAddr = m.ClientAddr
	}
	return res
}

func (s *PresenceService) Disconnect(ctx context.Context, userID uint64, device entity.DeviceType, conn out.Connection) bool {
	return s.registry.RemoveConn(ctx, userID, device, conn, entity.NewCloseReason(entity.CloseDisconnectedByClient))
}

func (s *PresenceService) UpdateHeartbeat(userID uint64, device entity.DeviceType) bool {
	return s.registry.UpdateHeartbeat(userID, device)
}

func (s *PresenceService) UpdateStatus(ctx context.Context, userID uint64, status entity.UserStatus) (bool, error) {
	return s.registry.UpdateStatus(ctx, userID, status)
}

func (s *PresenceService) UpdateLocation(ctx context.Context, userID uint64, device entity.DeviceType, coord entity.Coordinate) bool {
	return s.registry.UpdateLocation(ctx, userID, device, coord)
}

func (s *PresenceService) DeliverToUser(ctx context.Context, userID uint64, payload []byte) bool {
	ok, _ := s.router.DeliverToUser(ctx, userID, payload, true)
	return ok
}

func (s *PresenceService) DeliverToUsers(ctx context.Context, userIDs []uint64, payload []byte) int {
	return s.router.DeliverToUsers(ctx, userIDs, payload)
}

func (s *PresenceService) SetUserOffline(ctx context.Context, userID uint64, reason entity.CloseReason) bool {
	return s.router.SetUserOffline(ctx, userID, reason)
}

func (s *PresenceService) SetUsersOffline(ctx context.Context, userIDs []uint64, reason entity.CloseReason) (bool, error) {
	return s.router.SetUsersOffline(ctx, userIDs, reason)
}

func (s *PresenceService) QueryNearby(ctx context.Context, point entity.Coordinate, maxDistance float64, maxCount int) ([]entity.NearbyUser, error) {
	return s.nearby.QueryNearby(ctx, point, maxDistance, maxCount)
}

func (s *PresenceService) OnMembershipChange(ctx context.Context) {
	s.transfer.OnMembershipChange(ctx)
}

// Shutdown 关闭全部本地会话
func (s *PresenceService) Shutdown(ctx context.Context) {
	s.transfer.Shutdown(ctx)
}

func (s *PresenceService) Stats() in.Stats {
	users, sessions, irresponsible := s.registry.Counts()
	return in.Stats{
		NodeID:             s.membership.LocalNodeID(),
		OnlineUsers:        users,
		Sessions:           sessions,
		IrresponsibleUsers: irresponsible,
		HostedSlots:        len(s.registry.HostedSlots()),
		SpatialPoints:      s.registry.Spatial().Len(),
		Members:            s.membership.Members(),
	}
}

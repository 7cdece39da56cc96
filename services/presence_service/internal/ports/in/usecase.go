package in

import (
	"context"

	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

// ConnectRequest 客户端上线请求
type ConnectRequest struct {
	UserID     uint64
	DeviceType entity.DeviceType
	Status     entity.UserStatus
	Location   *entity.Location
	Conn       out.Connection
	IP         string
}

// ConnectResult 上线结果，NOT_RESPONSIBLE 时带上负责节点的客户端地址
type ConnectResult struct {
	Code         entity.StatusCode `json:"code"`
	RedirectAddr string            `json:"redirect_addr,omitempty"`
}

// Stats 本节点运行统计
type Stats struct {
	NodeID             string          `json:"node_id"`
	OnlineUsers        int             `json:"online_users"`
	Sessions           int             `json:"sessions"`
	IrresponsibleUsers int             `json:"irresponsible_users"`
	HostedSlots        int             `json:"hosted_slots"`
	SpatialPoints      int             `json:"spatial_points"`
	Members            []entity.Member `json:"members"`
}

// PresenceUseCase 在线状态与消息路由用例
type PresenceUseCase interface {
	// Connect 设备上线
	Connect(ctx context.Context, req ConnectRequest) ConnectResult
	// Disconnect 客户端主动断开，只关闭仍绑定在 conn 上的会话
	Disconnect(ctx context.Context, userID uint64, device entity.DeviceType, conn out.Connection) bool
	// UpdateHeartbeat 刷新心跳时间
	UpdateHeartbeat(userID uint64, device entity.DeviceType) bool
	// UpdateStatus 修改在线状态，不能设置为 offline
	UpdateStatus(ctx context.Context, userID uint64, status entity.UserStatus) (bool, error)
	// UpdateLocation 上报位置
	UpdateLocation(ctx context.Context, userID uint64, device entity.DeviceType, coord entity.Coordinate) bool

	// DeliverToUser 推送给用户的全部设备，必要时转发到其他节点
	DeliverToUser(ctx context.Context, userID uint64, payload []byte) bool
	// DeliverToUsers 批量推送，返回成功投递的用户数
	DeliverToUsers(ctx context.Context, userIDs []uint64, payload []byte) int
	// SetUserOffline 踢下线
	SetUserOffline(ctx context.Context, userID uint64, reason entity.CloseReason) bool
	// SetUsersOffline 批量踢下线，至少关闭一个会话时返回 true
	SetUsersOffline(ctx context.Context, userIDs []uint64, reason entity.CloseReason) (bool, error)

	// QueryNearby 全集群附近的人
	QueryNearby(ctx context.Context, point entity.Coordinate, maxDistance float64, maxCount int) ([]entity.NearbyUser, error)

	// OnMembershipChange 成员变更后重新计算本节点负责的槽位
	OnMembershipChange(ctx context.Context)

	Stats() Stats
}

// ClusterRequestHandler 其他节点发来的请求，只在本节点执行
type ClusterRequestHandler interface {
	// HandleDeliver 本地投递，非负责用户的持有节点同样投递
	HandleDeliver(ctx context.Context, userID uint64, payload []byte) bool
	HandleSetUsersOffline(ctx context.Context, userIDs []uint64, reason entity.CloseReason) bool
	HandleNearest(ctx context.Context, query entity.NearbyQuery) ([]entity.NearbyUser, error)
}

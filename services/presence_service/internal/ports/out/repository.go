package out

import (
	"context"
	"time"

	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
)

// IrresponsibleUserRepository 集群共享的“非负责用户”目录
// 槽位已迁走但会话仍由旧节点持有的用户，在 TTL 内以旧节点为准投递
type IrresponsibleUserRepository interface {
	// Put 写入 userID -> nodeID，带过期时间，后写覆盖先写
	Put(ctx context.Context, userID uint64, nodeID string, ttl time.Duration) error
	// PutAll 批量写入
	PutAll(ctx context.Context, userIDs []uint64, nodeID string, ttl time.Duration) error
	// Get 查询持有节点，未命中或已过期时 ok 为 false
	Get(ctx context.Context, userID uint64) (nodeID string, ok bool, err error)
	// Remove 仅当当前值等于 nodeID 时删除
	Remove(ctx context.Context, userID uint64, nodeID string) error
}

// LoginLogRepository 登录日志/位置日志写入，调用方不等待结果
type LoginLogRepository interface {
	// SaveLogin 保存登录记录
	SaveLogin(ctx context.Context, log *entity.LoginLog) error
	// SaveLogout 回填登出时间
	SaveLogout(ctx context.Context, logID string, logoutAt time.Time) error
	// SaveLocation 保存位置上报
	SaveLocation(ctx context.Context, log *entity.LocationLog) error
}

// SessionHook 上下线插件钩子
type SessionHook interface {
	// GoOnline 设备上线
	GoOnline(ctx context.Context, user entity.OnlineUserSnapshot, device entity.DeviceType) error
	// GoOffline 设备下线
	GoOffline(ctx context.Context, user entity.OnlineUserSnapshot, device entity.DeviceType, reason entity.CloseReason) error
}

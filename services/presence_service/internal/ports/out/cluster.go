package out

import (
	"context"
	"time"

	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
)

//go:generate mockgen -source=cluster.go -destination=../../mocks/mock_cluster.go -package=mocks

// ClusterMembership 集群成员与槽位归属，由外部成员管理组件提供
type ClusterMembership interface {
	// LocalNodeID 本节点ID
	LocalNodeID() string
	// Members 当前可达的全部成员（含本节点）
	Members() []entity.Member
	// Member 按节点ID查找成员
	Member(nodeID string) (entity.Member, bool)
	// SlotOwner 槽位当前归属节点
	SlotOwner(slot int) (string, bool)
	// Subscribe 订阅成员变更
	Subscribe(fn func(entity.MembershipEvent))
}

// ClusterRPC 向指定节点提交任务并等待结果，超时由 ctx 控制
type ClusterRPC interface {
	// DeliverToUser 在目标节点本地投递
	DeliverToUser(ctx context.Context, nodeID string, userID uint64, payload []byte) (bool, error)
	// SetUsersOffline 在目标节点本地踢下线
	SetUsersOffline(ctx context.Context, nodeID string, userIDs []uint64, reason entity.CloseReason) (bool, error)
	// NearestUsers 在目标节点本地做附近的人查询
	NearestUsers(ctx context.Context, nodeID string, query entity.NearbyQuery) ([]entity.NearbyUser, error)
}

// Scheduler 定时器设施（时间轮）
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer 可取消的定时任务
type Timer interface {
	Stop() bool
}

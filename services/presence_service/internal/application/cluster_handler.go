package application

import (
	"context"

	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/in"
)

// ClusterHandler 处理其他节点发来的请求，只操作本节点状态，不再转发
type ClusterHandler struct {
	registry *PresenceRegistry
}

var _ in.ClusterRequestHandler = (*ClusterHandler)(nil)

// NewClusterHandler 创建集群请求处理器
func NewClusterHandler(registry *PresenceRegistry) *ClusterHandler {
	return &ClusterHandler{registry: registry}
}

// HandleDeliver 宽限期内的旧节点不再负责该用户，但仍持有会话，照常投递
func (h *ClusterHandler) HandleDeliver(_ context.Context, userID uint64, payload []byte) bool {
	ok := h.registry.DeliverLocal(userID, payload)
	deliveriesTotal.WithLabelValues("relayed_in", resultLabel(ok)).Inc()
	return ok
}

func (h *ClusterHandler) HandleSetUsersOffline(ctx context.Context, userIDs []uint64, reason entity.CloseReason) bool {
	closed := false
	for _, id := range userIDs {
		if h.registry.RemoveAllDevices(ctx, id, reason) {
			closed = true
		}
	}
	return closed
}

func (h *ClusterHandler) HandleNearest(_ context.Context, q entity.NearbyQuery) ([]entity.NearbyUser, error) {
	if err := validateNearbyQuery(q); err != nil {
		return nil, err
	}
	return h.registry.NearestLocal(q), nil
}

package cluster

import (
	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

// Static 固定成员列表，单节点部署和多节点测试使用
// 成员变更通过 SetMembers 手动触发，订阅者同步收到事件
type Static struct {
	*view
}

var _ out.ClusterMembership = (*Static)(nil)

// NewStatic 创建静态成员视图
func NewStatic(local entity.Member, replicas int, others ...entity.Member) *Static {
	s := &Static{view: newView(local, replicas)}
	for _, m := range others {
		s.upsert(m)
	}
	return s
}

// AddMember 成员加入
func (s *Static) AddMember(m entity.Member) {
	if ev, ok := s.upsert(m); ok {
		s.publish(ev)
	}
}

// RemoveMember 成员离开
func (s *Static) RemoveMember(nodeID string) {
	if ev, ok := s.remove(nodeID); ok {
		s.publish(ev)
	}
}

// SetMembers 整体替换成员列表（本节点始终保留），只为实际变化发事件
func (s *Static) SetMembers(members []entity.Member) {
	keep := make(map[string]struct{}, len(members))
	for _, m := range members {
		keep[m.NodeID] = struct{}{}
		s.AddMember(m)
	}
	for _, m := range s.Members() {
		if _, ok := keep[m.NodeID]; !ok {
			s.RemoveMember(m.NodeID)
		}
	}
}

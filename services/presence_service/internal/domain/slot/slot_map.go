// Package slot 把用户ID空间切分为固定数量的槽位，每个槽位同一时刻只归属一个集群成员
package slot

import "github.com/EthanQC/IM/services/presence_service/internal/domain/entity"

// SlotCount 槽位总数，固定不变，成员变更时只迁移部分槽位
const SlotCount = 4096

// Slot 槽位编号，取值 [0, SlotCount)
type Slot int

// Of 计算用户所属槽位，集群内无需协调即可得到一致结果
func Of(userID uint64) Slot {
	return Slot(userID % SlotCount)
}

// OwnerResolver 槽位归属的数据来源
type OwnerResolver interface {
	LocalNodeID() string
	SlotOwner(slot int) (string, bool)
	Member(nodeID string) (entity.Member, bool)
}

// SlotMap 槽位到成员的映射
// 不缓存归属，过期数据由“非负责用户”宽限期兜底
type SlotMap struct {
	resolver OwnerResolver
}

// NewSlotMap 创建槽位映射
func NewSlotMap(resolver OwnerResolver) *SlotMap {
	return &SlotMap{resolver: resolver}
}

// SlotOf 用户所属槽位
func (m *SlotMap) SlotOf(userID uint64) Slot {
	return Of(userID)
}

// OwnerOf 槽位当前归属节点
func (m *SlotMap) OwnerOf(s Slot) (string, bool) {
	return m.resolver.SlotOwner(int(s))
}

// OwnerMember 槽位当前归属成员
func (m *SlotMap) OwnerMember(s Slot) (entity.Member, bool) {
	nodeID, ok := m.OwnerOf(s)
	if !ok {
		return entity.Member{}, false
	}
	return m.resolver.Member(nodeID)
}

// LocalNodeID 本节点ID
func (m *SlotMap) LocalNodeID() string {
	return m.resolver.LocalNodeID()
}

// IsLocalSlot 槽位是否归属本节点
func (m *SlotMap) IsLocalSlot(s Slot) bool {
	owner, ok := m.OwnerOf(s)
	return ok && owner == m.resolver.LocalNodeID()
}

// IsLocallyResponsible 本节点是否负责该用户
func (m *SlotMap) IsLocallyResponsible(userID uint64) bool {
	return m.IsLocalSlot(Of(userID))
}

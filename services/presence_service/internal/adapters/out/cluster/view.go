// Package cluster 集群成员视图，槽位归属由一致性哈希环根据成员列表计算
package cluster

import (
	"sort"
	"sync"

	"github.com/EthanQC/IM/services/presence_service/internal/adapters/out/routing"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/slot"
)

// view 成员表 + 槽位环 + 订阅者，static 与 memberlist 两种实现共用
type view struct {
	localID string

	mu      sync.RWMutex
	members map[string]entity.Member
	ring    *routing.SlotRing

	subsMu sync.RWMutex
	subs   []func(entity.MembershipEvent)
}

func newView(local entity.Member, replicas int) *view {
	v := &view{
		localID: local.NodeID,
		members: map[string]entity.Member{local.NodeID: local},
		ring:    routing.NewSlotRing(replicas, slot.SlotCount),
	}
	v.ring.SetNodes([]string{local.NodeID})
	return v
}

func (v *view) LocalNodeID() string {
	return v.localID
}

func (v *view) Members() []entity.Member {
	v.mu.RLock()
	defer v.mu.RUnlock()

	members := make([]entity.Member, 0, len(v.members))
	for _, m := range v.members {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].NodeID < members[j].NodeID
	})
	return members
}

func (v *view) Member(nodeID string) (entity.Member, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	m, ok := v.members[nodeID]
	return m, ok
}

func (v *view) SlotOwner(s int) (string, bool) {
	return v.ring.OwnerOf(s)
}

// SlotsPerNode 各节点负责的槽位数
func (v *view) SlotsPerNode() map[string]int {
	return v.ring.SlotsPerNode()
}

func (v *view) Subscribe(fn func(entity.MembershipEvent)) {
	v.subsMu.Lock()
	defer v.subsMu.Unlock()
	v.subs = append(v.subs, fn)
}

// upsert 写入成员，返回事件类型，内容未变化时 ok 为 false
func (v *view) upsert(m entity.Member) (entity.MembershipEvent, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	old, exists := v.members[m.NodeID]
	if exists && old == m {
		return entity.MembershipEvent{}, false
	}
	v.members[m.NodeID] = m
	if exists {
		return entity.MembershipEvent{Type: entity.MemberUpdated, Member: m}, true
	}
	v.ring.AddNode(m.NodeID)
	return entity.MembershipEvent{Type: entity.MemberJoined, Member: m}, true
}

// remove 移除成员，本节点不会被移除
func (v *view) remove(nodeID string) (entity.MembershipEvent, bool) {
	if nodeID == v.localID {
		return entity.MembershipEvent{}, false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	m, ok := v.members[nodeID]
	if !ok {
		return entity.MembershipEvent{}, false
	}
	delete(v.members, nodeID)
	v.ring.RemoveNode(nodeID)
	return entity.MembershipEvent{Type: entity.MemberLeft, Member: m}, true
}

func (v *view) publish(ev entity.MembershipEvent) {
	v.subsMu.RLock()
	subs := make([]func(entity.MembershipEvent), len(v.subs))
	copy(subs, v.subs)
	v.subsMu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

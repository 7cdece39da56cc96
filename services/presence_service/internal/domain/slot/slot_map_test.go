package slot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
)

type fixedOwners struct {
	local   string
	owners  map[int]string
	members map[string]entity.Member
}

func (f fixedOwners) LocalNodeID() string { return f.local }

func (f fixedOwners) SlotOwner(s int) (string, bool) {
	o, ok := f.owners[s]
	return o, ok
}

func (f fixedOwners) Member(nodeID string) (entity.Member, bool) {
	m, ok := f.members[nodeID]
	return m, ok
}

func TestOf(t *testing.T) {
	req := require.New(t)

	req.Equal(Slot(7), Of(7))
	req.Equal(Slot(0), Of(SlotCount))
	req.Equal(Slot(1), Of(SlotCount*3+1))
}

func TestSlotMap_Responsibility(t *testing.T) {
	req := require.New(t)

	m := NewSlotMap(fixedOwners{
		local:  "a",
		owners: map[int]string{1: "a", 2: "b"},
		members: map[string]entity.Member{
			"b": {NodeID: "b", ClientAddr: "ws://b/ws"},
		},
	})

	req.True(m.IsLocallyResponsible(1))
	req.True(m.IsLocallyResponsible(SlotCount + 1))
	req.False(m.IsLocallyResponsible(2))
	// 无主槽位不归本节点
	req.False(m.IsLocallyResponsible(3))

	owner, ok := m.OwnerMember(Of(2))
	req.True(ok)
	req.Equal("ws://b/ws", owner.ClientAddr)

	_, ok = m.OwnerMember(Of(3))
	req.False(ok)
	// 归属节点不在成员表里
	_, ok = m.OwnerMember(Of(1))
	req.False(ok)
}

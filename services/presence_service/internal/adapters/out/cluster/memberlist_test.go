package cluster

import (
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/memberlist"
	"github.com/stretchr/testify/require"

	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []entity.MembershipEvent
}

func (r *eventRecorder) record(ev entity.MembershipEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) snapshot() []entity.MembershipEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.MembershipEvent(nil), r.events...)
}

// startLoopbackNode 端口为 0 时由 memberlist 自动分配
func startLoopbackNode(t *testing.T, id string, join ...string) *Memberlist {
	t.Helper()
	m, err := NewMemberlist(MemberlistConfig{
		Local:     member(id),
		BindAddr:  "127.0.0.1",
		JoinAddrs: join,
	})
	require.NoError(t, err)
	return m
}

func gossipAddr(m *Memberlist) string {
	return fmt.Sprintf("127.0.0.1:%d", m.list.LocalNode().Port)
}

func TestMemberlist_TwoNodesShareMetaAndLeave(t *testing.T) {
	req := require.New(t)

	// Given
	a := startLoopbackNode(t, "a")
	defer a.Shutdown(time.Second)
	rec := &eventRecorder{}
	a.Subscribe(rec.record)

	// When b 加入
	b := startLoopbackNode(t, "b", gossipAddr(a))

	// Then 两边都能从元数据解出对方的地址
	req.Eventually(func() bool {
		m, ok := a.Member("b")
		return ok && m == member("b")
	}, 5*time.Second, 20*time.Millisecond)
	req.Eventually(func() bool {
		m, ok := b.Member("a")
		return ok && m == member("a")
	}, 5*time.Second, 20*time.Millisecond)
	req.Equal([]entity.Member{member("a"), member("b")}, a.Members())

	owner, ok := a.SlotOwner(0)
	req.True(ok)
	other, _ := b.SlotOwner(0)
	req.Equal(owner, other)

	// When b 退出
	req.NoError(b.Shutdown(time.Second))

	// Then 先 joined 后 left
	req.Eventually(func() bool {
		_, ok := a.Member("b")
		return !ok
	}, 5*time.Second, 20*time.Millisecond)
	req.Eventually(func() bool {
		return len(rec.snapshot()) >= 2
	}, 5*time.Second, 20*time.Millisecond)

	events := rec.snapshot()
	req.Equal(entity.MemberJoined, events[0].Type)
	req.Equal(member("b"), events[0].Member)
	req.Equal(entity.MemberLeft, events[len(events)-1].Type)
	req.Equal("b", events[len(events)-1].Member.NodeID)
	req.Equal([]entity.Member{member("a")}, a.Members())
}

func TestDecodeMember_FallsBackToGossipAddress(t *testing.T) {
	req := require.New(t)

	cases := map[string][]byte{
		"garbage": []byte("not json"),
		"empty":   nil,
		"no id":   []byte(`{"rpc_addr":"x:9000"}`),
	}
	for name, meta := range cases {
		t.Run(name, func(t *testing.T) {
			node := &memberlist.Node{Name: "c", Addr: net.ParseIP("10.0.0.3"), Port: 7946, Meta: meta}

			got := decodeMember(node)

			require.Equal(t, entity.Member{NodeID: "c", RPCAddr: "10.0.0.3:7946"}, got)
		})
	}

	// 合法元数据原样解出
	node := &memberlist.Node{Name: "c", Addr: net.ParseIP("10.0.0.3"), Port: 7946, Meta: []byte(`{"node_id":"c","rpc_addr":"c:9000","client_addr":"c:8080"}`)}
	req.Equal(member("c"), decodeMember(node))
}

func TestMemberlist_DispatchKeepsCallbackOrder(t *testing.T) {
	req := require.New(t)

	// Given
	m := startLoopbackNode(t, "a")
	defer m.Shutdown(time.Second)
	rec := &eventRecorder{}
	m.Subscribe(rec.record)

	node := func(meta entity.Member) *memberlist.Node {
		return &memberlist.Node{
			Name: meta.NodeID,
			Addr: net.ParseIP("10.0.0.9"),
			Port: 7946,
			Meta: []byte(fmt.Sprintf(`{"node_id":%q,"rpc_addr":%q,"client_addr":%q}`, meta.NodeID, meta.RPCAddr, meta.ClientAddr)),
		}
	}
	moved := member("x")
	moved.ClientAddr = "x:8081"

	// When memberlist 连续回调，重复 join 不产生事件
	m.NotifyJoin(node(member("x")))
	m.NotifyJoin(node(member("x")))
	m.NotifyUpdate(node(moved))
	m.NotifyLeave(node(moved))
	m.NotifyJoin(node(member("y")))

	// Then 订阅者按回调顺序收到
	req.Eventually(func() bool {
		return len(rec.snapshot()) == 4
	}, 2*time.Second, 10*time.Millisecond)
	events := rec.snapshot()
	req.Equal(entity.MembershipEvent{Type: entity.MemberJoined, Member: member("x")}, events[0])
	req.Equal(entity.MembershipEvent{Type: entity.MemberUpdated, Member: moved}, events[1])
	req.Equal(entity.MembershipEvent{Type: entity.MemberLeft, Member: moved}, events[2])
	req.Equal(entity.MembershipEvent{Type: entity.MemberJoined, Member: member("y")}, events[3])
}

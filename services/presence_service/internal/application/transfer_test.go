package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/EthanQC/IM/services/presence_service/internal/adapters/out/cluster"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/slot"
	"github.com/EthanQC/IM/services/presence_service/internal/mocks"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/in"
)

const (
	testTTL    = 10 * time.Second
	testJitter = 2 * time.Second
)

func gracefulOptions() Options {
	return Options{
		TransferPolicy:      TransferGraceful,
		IrresponsibleTTL:    testTTL,
		IrresponsibleJitter: testJitter,
	}
}

// movingUsers 在 {a,c} 下归属 a、加入 b 后归属 b 的用户
func movingUsers(n int) []uint64 {
	before := cluster.NewStatic(testMember("a"), 0, testMember("c"))
	after := cluster.NewStatic(testMember("a"), 0, testMember("b"), testMember("c"))

	var users []uint64
	for id := uint64(1); len(users) < n; id++ {
		if ownerOf(before, id) == "a" && ownerOf(after, id) == "b" {
			users = append(users, id)
		}
	}
	return users
}

func connect(t *testing.T, n *testNode, userID uint64, device entity.DeviceType, conn *fakeConn) {
	t.Helper()
	res := n.svc.Connect(context.Background(), in.ConnectRequest{UserID: userID, DeviceType: device, Conn: conn})
	require.Equal(t, entity.StatusOK, res.Code)
}

func TestTransfer_JoinKeepsUserReachableDuringGraceWindow(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given 集群 {a, c}，用户连在 a 上
	tc := newTestCluster(gracefulOptions())
	a := tc.addNode("a")
	c := tc.addNode("c")
	user := movingUsers(1)[0]
	conn := newFakeConn("u", nil)
	connect(t, a, user, entity.DeviceTypeWeb, conn)

	// When b 加入
	tc.addNode("b")

	// Then a 在目录中登记为持有节点，c 的投递经 RPC 到达 a
	holder, ok, err := tc.directory.Get(ctx, user)
	req.NoError(err)
	req.True(ok)
	req.Equal("a", holder)
	req.True(a.svc.Registry().GetLocal(user).IsIrresponsible())

	req.True(c.svc.DeliverToUser(ctx, user, []byte("m1")))
	req.Equal(1, conn.sentCount())
	calls := tc.recordedCalls()
	req.Equal(rpcCall{method: "deliver", node: "a", users: []uint64{user}}, calls[len(calls)-1])

	// 新连接不再接受，重定向到 b
	res := a.svc.Connect(ctx, in.ConnectRequest{UserID: user, DeviceType: entity.DeviceTypeIOS, Conn: newFakeConn("ios", nil)})
	req.Equal(entity.StatusNotResponsible, res.Code)
	req.Equal("ws://b/ws", res.RedirectAddr)

	// When 宽限期结束
	req.Equal(1, a.scheduler.firePending())

	// Then 会话以 redirect 关闭，目录条目被删除
	reason, closed := conn.closeReason()
	req.True(closed)
	req.Equal(entity.CloseRedirect, reason.Status)
	req.Equal("ws://b/ws", reason.RedirectAddr)
	req.Nil(a.svc.Registry().GetLocal(user))
	_, ok, _ = tc.directory.Get(ctx, user)
	req.False(ok)

	// c 的投递改走 b，b 上还没有该用户
	req.False(c.svc.DeliverToUser(ctx, user, []byte("m2")))
	calls = tc.recordedCalls()
	req.Equal("b", calls[len(calls)-1].node)
}

func TestTransfer_GraceWindowSchedule(t *testing.T) {
	req := require.New(t)

	// Given 多个槽位的用户连在 a 上
	tc := newTestCluster(gracefulOptions())
	a := tc.addNode("a")
	tc.addNode("c")
	users := movingUsers(40)
	for _, id := range users {
		connect(t, a, id, entity.DeviceTypeAndroid, newFakeConn("u", nil))
	}

	// When
	tc.addNode("b")

	// Then 每个槽位一个延迟关闭，全部落在 [T-J, T+J)，目录 TTL 为 T
	lost := make(map[slot.Slot]struct{})
	for _, id := range users {
		lost[slot.Of(id)] = struct{}{}
	}
	pending := a.scheduler.pending()
	req.Len(pending, len(lost))
	for _, p := range pending {
		req.GreaterOrEqual(p.delay, testTTL-testJitter)
		req.Less(p.delay, testTTL+testJitter)
	}
	tc.directory.mu.Lock()
	ttls := append([]time.Duration(nil), tc.directory.putTTLs...)
	tc.directory.mu.Unlock()
	req.NotEmpty(ttls)
	for _, ttl := range ttls {
		req.Equal(testTTL, ttl)
	}
	_, _, irresponsible := a.svc.Registry().Counts()
	req.Equal(len(users), irresponsible)
}

func TestCloseSchedule(t *testing.T) {
	req := require.New(t)

	start, step := closeSchedule(10*time.Second, 2*time.Second, 4)
	req.Equal(8*time.Second, start)
	req.Equal(time.Second, step)

	// J > T 时从 0 开始
	start, step = closeSchedule(time.Second, 3*time.Second, 2)
	req.Equal(time.Duration(0), start)
	req.Equal(2*time.Second, step)
	req.Less(start+step, 4*time.Second)

	start, step = closeSchedule(time.Second, 0, 0)
	req.Equal(time.Second, start)
	req.Zero(step)
}

func TestTransfer_NewChangeCancelsPendingAndRestores(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given 用户已登记为非负责
	tc := newTestCluster(gracefulOptions())
	a := tc.addNode("a")
	tc.addNode("c")
	user := movingUsers(1)[0]
	conn := newFakeConn("u", nil)
	connect(t, a, user, entity.DeviceTypeWeb, conn)
	tc.addNode("b")
	stale := a.scheduler.pending()
	req.Len(stale, 1)

	// When b 在宽限期内离开
	tc.removeNode("b")

	// Then 旧的延迟关闭被取消，用户恢复为正常用户
	req.Empty(a.scheduler.pending())
	req.False(a.svc.Registry().GetLocal(user).IsIrresponsible())
	_, ok, _ := tc.directory.Get(ctx, user)
	req.False(ok)

	// 即使旧任务仍被执行也不会关闭会话
	stale[0].fn()
	_, closed := conn.closeReason()
	req.False(closed)
	req.NotNil(a.svc.Registry().GetLocal(user))
}

func TestTransfer_PublishFailureFallsBackToImmediate(t *testing.T) {
	req := require.New(t)

	// Given
	tc := newTestCluster(gracefulOptions())
	a := tc.addNode("a")
	tc.addNode("c")
	user := movingUsers(1)[0]
	conn := newFakeConn("u", nil)
	connect(t, a, user, entity.DeviceTypeWeb, conn)
	tc.directory.failPut = errors.New("redis unavailable")

	// When
	tc.addNode("b")

	// Then
	reason, closed := conn.closeReason()
	req.True(closed)
	req.Equal(entity.CloseRedirect, reason.Status)
	req.Equal("ws://b/ws", reason.RedirectAddr)
	req.Empty(a.scheduler.pending())
	req.Nil(a.svc.Registry().GetLocal(user))
}

func TestTransfer_ImmediatePolicy(t *testing.T) {
	req := require.New(t)

	// Given
	tc := newTestCluster(Options{TransferPolicy: TransferImmediate})
	a := tc.addNode("a")
	tc.addNode("c")
	users := movingUsers(3)
	conns := make([]*fakeConn, len(users))
	for i, id := range users {
		conns[i] = newFakeConn("u", nil)
		connect(t, a, id, entity.DeviceTypeDesktop, conns[i])
	}

	// When
	tc.addNode("b")

	// Then
	for _, conn := range conns {
		reason, closed := conn.closeReason()
		req.True(closed)
		req.Equal(entity.RedirectTo("ws://b/ws"), reason)
	}
	req.Zero(tc.directory.Len())
	req.Empty(a.scheduler.pending())
}

func TestTransfer_OrphanedSlotClosesWithServerError(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	// Given
	orphan := false
	ms := mocks.NewMockClusterMembership(ctrl)
	ms.EXPECT().LocalNodeID().Return("a").AnyTimes()
	ms.EXPECT().SlotOwner(gomock.Any()).DoAndReturn(func(int) (string, bool) {
		if orphan {
			return "", false
		}
		return "a", true
	}).AnyTimes()

	slots := slot.NewSlotMap(ms)
	dir := newRecordingDirectory()
	registry := NewPresenceRegistry(RegistryConfig{}, slots, nil, dir, nil)
	tm := NewResponsibilityTransferManager(TransferConfig{Policy: TransferGraceful, TTL: testTTL}, registry, slots, dir, newManualScheduler())

	conn := newFakeConn("u", nil)
	_, err := registry.UpsertSession(ctx, UpsertParams{UserID: 42, DeviceType: entity.DeviceTypeWeb, Conn: conn})
	req.NoError(err)

	// When 没有任何成员负责该槽位
	orphan = true
	tm.OnMembershipChange(ctx)

	// Then
	reason, closed := conn.closeReason()
	req.True(closed)
	req.Equal(entity.CloseServerError, reason.Status)
	req.Nil(registry.GetLocal(42))
	req.Zero(tm.PendingCloses())
}

func TestTransfer_ShutdownClosesEverything(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	tc := newTestCluster(gracefulOptions())
	a := tc.addNode("a")
	tc.addNode("c")
	users := movingUsers(2)
	conns := []*fakeConn{newFakeConn("u0", nil), newFakeConn("u1", nil)}
	connect(t, a, users[0], entity.DeviceTypeWeb, conns[0])
	tc.addNode("b")
	connect(t, a, movingUsersStayingOnA(), entity.DeviceTypeWeb, conns[1])
	req.NotEmpty(a.scheduler.pending())

	// When
	a.svc.Shutdown(ctx)

	// Then
	for _, conn := range conns {
		reason, closed := conn.closeReason()
		req.True(closed)
		req.Equal(entity.CloseServerClosed, reason.Status)
	}
	req.Empty(a.scheduler.pending())
	online, sessions, _ := a.svc.Registry().Counts()
	req.Zero(online)
	req.Zero(sessions)
	_, ok, _ := tc.directory.Get(ctx, users[0])
	req.False(ok)

	// 退出后不再处理成员变更
	a.svc.OnMembershipChange(ctx)
	req.Empty(a.scheduler.pending())
}

// movingUsersStayingOnA 在 {a,b,c} 下仍归属 a 的用户
func movingUsersStayingOnA() uint64 {
	all := cluster.NewStatic(testMember("a"), 0, testMember("b"), testMember("c"))
	id := uint64(1)
	for ownerOf(all, id) != "a" {
		id++
	}
	return id
}

func TestTransfer_SingleResponsibleHolderAfterSettling(t *testing.T) {
	req := require.New(t)

	// Given 用户连到各自的负责节点
	tc := newTestCluster(gracefulOptions())
	tc.addNode("a")
	tc.addNode("c")
	conns := make(map[uint64]*fakeConn)
	for id := uint64(1); id <= 200; id++ {
		conns[id] = newFakeConn("u", nil)
		owner := ownerOf(tc.node("a").membership, id)
		connect(t, tc.node(owner), id, entity.DeviceTypeIOS, conns[id])
	}

	// When b 加入，宽限期结束，被重定向的客户端重连
	tc.addNode("b")
	tc.settle()
	for id, conn := range conns {
		reason, closed := conn.closeReason()
		if !closed {
			continue
		}
		req.Equal(entity.CloseRedirect, reason.Status)
		req.Equal("ws://b/ws", reason.RedirectAddr)
		connect(t, tc.node("b"), id, entity.DeviceTypeIOS, newFakeConn("u", nil))
	}

	// Then 每个用户恰好被一个节点持有，且是当前负责节点
	for id := uint64(1); id <= 200; id++ {
		var holders []string
		for _, nodeID := range tc.nodeIDs() {
			if tc.node(nodeID).svc.Registry().GetLocal(id) != nil {
				holders = append(holders, nodeID)
			}
		}
		req.Equal([]string{ownerOf(tc.node("b").membership, id)}, holders, "user %d", id)
	}
	req.Zero(tc.directory.Len())
}

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
)

type routerFixture struct {
	ms       *cluster.Static
	registry *PresenceRegistry
	dir      *recordingDirectory
	rpc      *mocks.MockClusterRPC
	router   *OutboundRouter
}

func newRouterFixture(t *testing.T) *routerFixture {
	ctrl := gomock.NewController(t)
	ms := cluster.NewStatic(testMember("a"), 0, testMember("b"), testMember("c"))
	slots := slot.NewSlotMap(ms)
	dir := newRecordingDirectory()
	registry := NewPresenceRegistry(RegistryConfig{}, slots, nil, dir, nil)
	rpc := mocks.NewMockClusterRPC(ctrl)
	return &routerFixture{
		ms:       ms,
		registry: registry,
		dir:      dir,
		rpc:      rpc,
		router:   NewOutboundRouter(registry, slots, dir, rpc, 50*time.Millisecond),
	}
}

// usersOwnedBy 找出 n 个归属 nodeID 的用户
func (f *routerFixture) usersOwnedBy(nodeID string, n int) []uint64 {
	var users []uint64
	for id := uint64(1); len(users) < n; id++ {
		if ownerOf(f.ms, id) == nodeID {
			users = append(users, id)
		}
	}
	return users
}

func TestRouter_DeliverLocal(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	f := newRouterFixture(t)
	user := f.usersOwnedBy("a", 1)[0]
	conn := newFakeConn("u", nil)
	_, err := f.registry.UpsertSession(ctx, UpsertParams{UserID: user, DeviceType: entity.DeviceTypeWeb, Conn: conn})
	req.NoError(err)

	// When
	ok, err := f.router.DeliverToUser(ctx, user, []byte("hi"), true)

	// Then 不发生远程调用
	req.NoError(err)
	req.True(ok)
	req.Equal(1, conn.sentCount())

	// 本地负责但不在线时按归属节点转发给自己，投递失败
	ok, err = f.router.DeliverToUser(ctx, f.usersOwnedBy("a", 2)[1], []byte("hi"), true)
	req.NoError(err)
	req.False(ok)
}

func TestRouter_DeliverRemote(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	f := newRouterFixture(t)
	user := f.usersOwnedBy("b", 1)[0]
	f.rpc.EXPECT().DeliverToUser(gomock.Any(), "b", user, []byte("hi")).Return(true, nil)

	// When
	ok, err := f.router.DeliverToUser(ctx, user, []byte("hi"), true)

	// Then
	req.NoError(err)
	req.True(ok)
}

func TestRouter_DirectoryHolderWinsOverSlotOwner(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given 归属 b 的用户仍由 c 在宽限期内持有
	f := newRouterFixture(t)
	user := f.usersOwnedBy("b", 1)[0]
	req.NoError(f.dir.Put(ctx, user, "c", time.Minute))
	f.rpc.EXPECT().DeliverToUser(gomock.Any(), "c", user, gomock.Any()).Return(true, nil)

	// When
	ok, err := f.router.DeliverToUser(ctx, user, []byte("hi"), true)

	// Then
	req.NoError(err)
	req.True(ok)
}

func TestRouter_RelayDisallowed(t *testing.T) {
	req := require.New(t)

	f := newRouterFixture(t)
	ok, err := f.router.DeliverToUser(context.Background(), f.usersOwnedBy("b", 1)[0], []byte("hi"), false)
	req.NoError(err)
	req.False(ok)
}

func TestRouter_RPCTimeout(t *testing.T) {
	req := require.New(t)

	// Given 远端一直不返回
	f := newRouterFixture(t)
	user := f.usersOwnedBy("c", 1)[0]
	f.rpc.EXPECT().DeliverToUser(gomock.Any(), "c", user, gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ uint64, _ []byte) (bool, error) {
			<-ctx.Done()
			return false, ctx.Err()
		})

	// When
	start := time.Now()
	ok, err := f.router.DeliverToUser(context.Background(), user, []byte("hi"), true)

	// Then
	req.False(ok)
	req.ErrorIs(err, entity.ErrRPCTimeout)
	req.Less(time.Since(start), time.Second)
}

func TestRouter_RPCFailure(t *testing.T) {
	req := require.New(t)

	f := newRouterFixture(t)
	user := f.usersOwnedBy("b", 1)[0]
	f.rpc.EXPECT().DeliverToUser(gomock.Any(), "b", user, gomock.Any()).Return(false, errors.New("connection refused"))

	ok, err := f.router.DeliverToUser(context.Background(), user, []byte("hi"), true)
	req.False(ok)
	req.ErrorIs(err, entity.ErrRPCFailure)
	req.NotErrorIs(err, entity.ErrRPCTimeout)
}

func TestRouter_SetUsersOfflineGroupsByNode(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given 本地 1 个，b 上 3 个，c 上 2 个
	f := newRouterFixture(t)
	local := f.usersOwnedBy("a", 1)[0]
	conn := newFakeConn("u", nil)
	_, err := f.registry.UpsertSession(ctx, UpsertParams{UserID: local, DeviceType: entity.DeviceTypeIOS, Conn: conn})
	req.NoError(err)
	onB := f.usersOwnedBy("b", 3)
	onC := f.usersOwnedBy("c", 2)
	reason := entity.NewCloseReason(entity.CloseDisconnectedByAdmin)

	f.rpc.EXPECT().SetUsersOffline(gomock.Any(), "b", onB, reason).Return(false, nil).Times(1)
	f.rpc.EXPECT().SetUsersOffline(gomock.Any(), "c", onC, reason).Return(false, errors.New("unavailable")).Times(1)

	// When
	users := append([]uint64{local}, append(append([]uint64{}, onB...), onC...)...)
	closed, err := f.router.SetUsersOffline(ctx, users, reason)

	// Then 本地用户被关闭，远端失败不影响结果
	req.NoError(err)
	req.True(closed)
	got, _ := conn.closeReason()
	req.Equal(entity.CloseDisconnectedByAdmin, got.Status)
	req.Nil(f.registry.GetLocal(local))
}

func TestRouter_SetUsersOfflineRejectsEmpty(t *testing.T) {
	req := require.New(t)

	f := newRouterFixture(t)
	closed, err := f.router.SetUsersOffline(context.Background(), nil, entity.NewCloseReason(entity.CloseDisconnectedByAdmin))
	req.ErrorIs(err, entity.ErrIllegalArgument)
	req.False(closed)
}

func TestRouter_DeliverToUsersCountsSuccesses(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	f := newRouterFixture(t)
	local := f.usersOwnedBy("a", 1)[0]
	_, err := f.registry.UpsertSession(ctx, UpsertParams{UserID: local, DeviceType: entity.DeviceTypeWeb, Conn: newFakeConn("u", nil)})
	req.NoError(err)
	remote := f.usersOwnedBy("b", 4)
	f.rpc.EXPECT().DeliverToUser(gomock.Any(), "b", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, userID uint64, _ []byte) (bool, error) {
			return userID == remote[0] || userID == remote[1], nil
		}).Times(len(remote))

	// When
	n := f.router.DeliverToUsers(ctx, append([]uint64{local}, remote...), []byte("hi"))

	// Then
	req.Equal(3, n)
}

package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/EthanQC/IM/services/presence_service/internal/adapters/out/cluster"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/slot"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

func newTestRegistry(cfg RegistryConfig, ms out.ClusterMembership, sched out.Scheduler, hooks ...out.SessionHook) (*PresenceRegistry, *recordingDirectory) {
	dir := newRecordingDirectory()
	return NewPresenceRegistry(cfg, slot.NewSlotMap(ms), sched, dir, nil, hooks...), dir
}

func loc(lng, lat float64) *entity.Location {
	return &entity.Location{Coordinate: entity.Coordinate{Longitude: lng, Latitude: lat}, Timestamp: time.Now()}
}

func TestRegistry_UpsertTwiceSupersedesPreviousSession(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	r, _ := newTestRegistry(RegistryConfig{}, cluster.NewStatic(testMember("a"), 0), newManualScheduler())
	log := &eventLog{}
	chan1 := newFakeConn("chan1", log)
	chan2 := newFakeConn("chan2", log)

	// When
	_, err := r.UpsertSession(ctx, UpsertParams{
		UserID: 7, DeviceType: entity.DeviceTypeAndroid, Status: entity.UserStatusAvailable,
		Location: loc(1, 1), Conn: chan1,
	})
	req.NoError(err)
	_, err = r.UpsertSession(ctx, UpsertParams{
		UserID: 7, DeviceType: entity.DeviceTypeAndroid, Status: entity.UserStatusAvailable,
		Location: loc(2, 2), Conn: chan2,
	})
	req.NoError(err)
	req.True(r.DeliverLocal(7, []byte("hello")))

	// Then chan1 先收到关闭，之后消息只到 chan2
	reason, closed := chan1.closeReason()
	req.True(closed)
	req.Equal(entity.CloseDisconnectedByOtherDevice, reason.Status)
	req.Equal([]string{"close:chan1", "send:chan2"}, log.all())

	m := r.GetLocal(7)
	req.NotNil(m)
	sessions := m.Sessions()
	req.Len(sessions, 1)
	req.Same(chan2, sessions[0].Conn())
	req.Equal(entity.Coordinate{Longitude: 2, Latitude: 2}, sessions[0].Location().Coordinate)

	c, ok := r.Spatial().Get(entity.SpatialKey{UserID: 7})
	req.True(ok)
	req.Equal(entity.Coordinate{Longitude: 2, Latitude: 2}, c)
}

func TestRegistry_UpsertRejectsOfflineAndUnknownDevice(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	r, _ := newTestRegistry(RegistryConfig{}, cluster.NewStatic(testMember("a"), 0), nil)

	_, err := r.UpsertSession(ctx, UpsertParams{UserID: 1, DeviceType: entity.DeviceTypeWeb, Status: entity.UserStatusOffline, Conn: newFakeConn("c", nil)})
	req.ErrorIs(err, entity.ErrIllegalArgument)

	_, err = r.UpsertSession(ctx, UpsertParams{UserID: 1, DeviceType: "watch", Conn: newFakeConn("c", nil)})
	req.ErrorIs(err, entity.ErrIllegalArgument)

	req.Nil(r.GetLocal(1))
}

func TestRegistry_UpsertFailsWhenNotResponsible(t *testing.T) {
	req := require.New(t)

	// Given 两节点视图中找一个归属 b 的用户
	ms := cluster.NewStatic(testMember("a"), 0, testMember("b"))
	var user uint64
	for user = 1; ownerOf(ms, user) != "b"; user++ {
	}
	r, _ := newTestRegistry(RegistryConfig{}, ms, nil)

	// When
	_, err := r.UpsertSession(context.Background(), UpsertParams{UserID: user, DeviceType: entity.DeviceTypeIOS, Conn: newFakeConn("c", nil)})

	// Then
	req.ErrorIs(err, entity.ErrNotLocallyResponsible)
	req.Nil(r.GetLocal(user))
}

func TestRegistry_RemoveDeviceDestroysManagerWhenEmpty(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	r, dir := newTestRegistry(RegistryConfig{}, cluster.NewStatic(testMember("a"), 0), nil)
	web := newFakeConn("web", nil)
	ios := newFakeConn("ios", nil)
	_, err := r.UpsertSession(ctx, UpsertParams{UserID: 9, DeviceType: entity.DeviceTypeWeb, Conn: web, Location: loc(3, 3)})
	req.NoError(err)
	_, err = r.UpsertSession(ctx, UpsertParams{UserID: 9, DeviceType: entity.DeviceTypeIOS, Conn: ios})
	req.NoError(err)
	req.True(r.MarkIrresponsible(9, true))
	req.NoError(dir.Put(ctx, 9, "a", time.Minute))

	// When
	req.True(r.RemoveDevice(ctx, 9, entity.DeviceTypeWeb, entity.NewCloseReason(entity.CloseDisconnectedByAdmin)))

	// Then 还有一个设备在线，目录条目保留
	req.NotNil(r.GetLocal(9))
	_, ok, _ := dir.Get(ctx, 9)
	req.True(ok)
	reason, _ := web.closeReason()
	req.Equal(entity.CloseDisconnectedByAdmin, reason.Status)
	req.Zero(r.Spatial().Len())

	// When 最后一个设备下线
	req.True(r.RemoveAllDevices(ctx, 9, entity.NewCloseReason(entity.CloseServerClosed)))

	// Then
	req.Nil(r.GetLocal(9))
	_, ok, _ = dir.Get(ctx, 9)
	req.False(ok)
	req.False(r.RemoveDevice(ctx, 9, entity.DeviceTypeIOS, entity.NewCloseReason(entity.CloseServerClosed)))
}

func TestRegistry_RemoveSessionIgnoresStaleInstance(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	r, _ := newTestRegistry(RegistryConfig{}, cluster.NewStatic(testMember("a"), 0), nil)
	old, err := r.UpsertSession(ctx, UpsertParams{UserID: 3, DeviceType: entity.DeviceTypeWeb, Conn: newFakeConn("old", nil)})
	req.NoError(err)
	cur := newFakeConn("cur", nil)
	_, err = r.UpsertSession(ctx, UpsertParams{UserID: 3, DeviceType: entity.DeviceTypeWeb, Conn: cur})
	req.NoError(err)

	req.False(r.RemoveSession(ctx, old, entity.NewCloseReason(entity.CloseHeartbeatTimeout)))
	req.False(r.RemoveConn(ctx, 3, entity.DeviceTypeWeb, old.Conn(), entity.NewCloseReason(entity.CloseDisconnectedByClient)))

	_, closed := cur.closeReason()
	req.False(closed)
	req.NotNil(r.GetLocal(3))
}

func TestRegistry_UpdateStatus(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	r, _ := newTestRegistry(RegistryConfig{}, cluster.NewStatic(testMember("a"), 0), nil)
	_, err := r.UpsertSession(ctx, UpsertParams{UserID: 5, DeviceType: entity.DeviceTypeDesktop, Conn: newFakeConn("c", nil)})
	req.NoError(err)
	req.Equal(entity.UserStatusAvailable, r.GetLocal(5).Status())

	ok, err := r.UpdateStatus(ctx, 5, entity.UserStatusOffline)
	req.ErrorIs(err, entity.ErrIllegalArgument)
	req.False(ok)

	ok, err = r.UpdateStatus(ctx, 5, entity.UserStatusBusy)
	req.NoError(err)
	req.True(ok)
	req.Equal(entity.UserStatusBusy, r.GetLocal(5).Status())

	ok, err = r.UpdateStatus(ctx, 6, entity.UserStatusBusy)
	req.NoError(err)
	req.False(ok)
}

func TestRegistry_SpatialKeyModes(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	for _, unique := range []bool{false, true} {
		r, _ := newTestRegistry(RegistryConfig{UniqueDevicePoints: unique}, cluster.NewStatic(testMember("a"), 0), nil)
		_, err := r.UpsertSession(ctx, UpsertParams{UserID: 1, DeviceType: entity.DeviceTypeIOS, Conn: newFakeConn("ios", nil), Location: loc(1, 1)})
		req.NoError(err)
		_, err = r.UpsertSession(ctx, UpsertParams{UserID: 1, DeviceType: entity.DeviceTypeWeb, Conn: newFakeConn("web", nil)})
		req.NoError(err)
		req.True(r.UpdateLocation(ctx, 1, entity.DeviceTypeWeb, entity.Coordinate{Longitude: 5, Latitude: 5}))

		if unique {
			req.Equal(2, r.Spatial().Len())
		} else {
			req.Equal(1, r.Spatial().Len())
			c, _ := r.Spatial().Get(entity.SpatialKey{UserID: 1})
			req.Equal(entity.Coordinate{Longitude: 5, Latitude: 5}, c)
		}

		// web 下线后，按用户维度时退回 ios 的位置
		req.True(r.RemoveDevice(ctx, 1, entity.DeviceTypeWeb, entity.NewCloseReason(entity.CloseDisconnectedByClient)))
		req.Equal(1, r.Spatial().Len())
		got := r.NearestLocal(entity.NearbyQuery{Point: entity.Coordinate{Longitude: 1, Latitude: 1}, MaxDistance: 0.5, MaxCount: 5})
		req.Len(got, 1)

		req.True(r.RemoveAllDevices(ctx, 1, entity.NewCloseReason(entity.CloseServerClosed)))
		req.Zero(r.Spatial().Len())
	}
}

func TestRegistry_ConcurrentUpsertAndRemoveKeepsSingleSession(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	r, _ := newTestRegistry(RegistryConfig{Shards: 4}, cluster.NewStatic(testMember("a"), 0), nil)

	// When 同一设备并发上线、下线
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = r.UpsertSession(ctx, UpsertParams{UserID: 11, DeviceType: entity.DeviceTypeIOS, Conn: newFakeConn("c", nil)})
		}()
		go func() {
			defer wg.Done()
			r.RemoveDevice(ctx, 11, entity.DeviceTypeIOS, entity.NewCloseReason(entity.CloseDisconnectedByClient))
		}()
	}
	wg.Wait()
	_, err := r.UpsertSession(ctx, UpsertParams{UserID: 11, DeviceType: entity.DeviceTypeIOS, Conn: newFakeConn("last", nil)})
	req.NoError(err)

	// Then
	m := r.GetLocal(11)
	req.NotNil(m)
	req.Len(m.Sessions(), 1)
	users, sessions, _ := r.Counts()
	req.Equal(1, users)
	req.Equal(1, sessions)
}

type recordingHook struct {
	online  chan entity.OnlineUserSnapshot
	offline chan entity.CloseReason
}

func (h *recordingHook) GoOnline(_ context.Context, user entity.OnlineUserSnapshot, _ entity.DeviceType) error {
	h.online <- user
	return nil
}

func (h *recordingHook) GoOffline(_ context.Context, _ entity.OnlineUserSnapshot, _ entity.DeviceType, reason entity.CloseReason) error {
	h.offline <- reason
	return nil
}

func TestRegistry_FiresHooks(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	hook := &recordingHook{online: make(chan entity.OnlineUserSnapshot, 4), offline: make(chan entity.CloseReason, 4)}
	r, _ := newTestRegistry(RegistryConfig{}, cluster.NewStatic(testMember("a"), 0), nil, hook)

	_, err := r.UpsertSession(ctx, UpsertParams{UserID: 2, DeviceType: entity.DeviceTypeWeb, Conn: newFakeConn("c", nil)})
	req.NoError(err)
	select {
	case snap := <-hook.online:
		req.Equal(uint64(2), snap.UserID)
		req.Equal([]entity.DeviceType{entity.DeviceTypeWeb}, snap.Devices)
		req.Equal("a", snap.NodeID)
	case <-time.After(time.Second):
		req.Fail("go online hook not fired")
	}

	req.True(r.RemoveDevice(ctx, 2, entity.DeviceTypeWeb, entity.NewCloseReason(entity.CloseDisconnectedByAdmin)))
	select {
	case reason := <-hook.offline:
		req.Equal(entity.CloseDisconnectedByAdmin, reason.Status)
	case <-time.After(time.Second):
		req.Fail("go offline hook not fired")
	}
}

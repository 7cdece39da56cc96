package application

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/EthanQC/IM/pkg/zlog"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/slot"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/spatial"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

const (
	defaultRegistryShards = 256
	defaultAsyncTimeout   = 5 * time.Second
)

// RegistryConfig 注册表配置
type RegistryConfig struct {
	NodeID               string
	Shards               int
	HeartbeatTimeout     time.Duration
	HeartbeatMinInterval time.Duration
	UniqueDevicePoints   bool          // 同一用户的不同设备在位置索引中是否算作不同的点
	AsyncTimeout         time.Duration // 日志和钩子的超时
}

// UpsertParams 上线参数
type UpsertParams struct {
	UserID     uint64
	DeviceType entity.DeviceType
	Status     entity.UserStatus
	Location   *entity.Location
	Conn       out.Connection
	LoginLogID string
	IP         string
}

type registryShard struct {
	mu    sync.RWMutex
	users map[uint64]*OnlineUserManager
}

// PresenceRegistry 本节点在线用户表，按槽位分桶加锁
type PresenceRegistry struct {
	cfg       RegistryConfig
	slots     *slot.SlotMap
	shards    []*registryShard
	spatial   *spatial.Index
	heartbeat *HeartbeatSupervisor
	directory out.IrresponsibleUserRepository
	loginLogs out.LoginLogRepository
	hooks     []out.SessionHook
	closing   atomic.Bool
}

// NewPresenceRegistry 创建注册表
func NewPresenceRegistry(
	cfg RegistryConfig,
	slots *slot.SlotMap,
	scheduler out.Scheduler,
	directory out.IrresponsibleUserRepository,
	loginLogs out.LoginLogRepository,
	hooks ...out.SessionHook,
) *PresenceRegistry {
	if cfg.Shards <= 0 {
		cfg.Shards = defaultRegistryShards
	}
	if cfg.AsyncTimeout <= 0 {
		cfg.AsyncTimeout = defaultAsyncTimeout
	}
	if cfg.NodeID == "" {
		cfg.NodeID = slots.LocalNodeID()
	}

	r := &PresenceRegistry{
		cfg:       cfg,
		slots:     slots,
		shards:    make([]*registryShard, cfg.Shards),
		spatial:   spatial.NewIndex(),
		directory: directory,
		loginLogs: loginLogs,
		hooks:     hooks,
	}
	for i := range r.shards {
		r.shards[i] = &registryShard{users: make(map[uint64]*OnlineUserManager)}
	}
	r.heartbeat = newHeartbeatSupervisor(scheduler, cfg.HeartbeatTimeout, cfg.HeartbeatMinInterval, r.expire)
	return r
}

func (r *PresenceRegistry) shardOf(userID uint64) *registryShard {
	return r.shards[int(slot.Of(userID))%len(r.shards)]
}

// NodeID 本节点ID
func (r *PresenceRegistry) NodeID() string {
	return r.cfg.NodeID
}

// Spatial 本节点位置索引
func (r *PresenceRegistry) Spatial() *spatial.Index {
	return r.spatial
}

// IsLocallyResponsible 本节点是否负责该用户
func (r *PresenceRegistry) IsLocallyResponsible(userID uint64) bool {
	return r.slots.IsLocallyResponsible(userID)
}

// GetLocal 本节点上的在线用户，不存在时返回 nil
func (r *PresenceRegistry) GetLocal(userID uint64) *OnlineUserManager {
	sh := r.shardOf(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.users[userID]
}

func (r *PresenceRegistry) getOrCreate(userID uint64, status entity.UserStatus) (*OnlineUserManager, bool) {
	sh := r.shardOf(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if m, ok := sh.users[userID]; ok {
		return m, false
	}
	m := newOnlineUserManager(userID, status)
	sh.users[userID] = m
	onlineUsersGauge.Inc()
	return m, true
}

// detach 从分桶中摘除，只删除仍指向 m 的条目
func (r *PresenceRegistry) detach(m *OnlineUserManager) {
	sh := r.shardOf(m.userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if cur, ok := sh.users[m.userID]; ok && cur == m {
		delete(sh.users, m.userID)
	}
}

// UpsertSession 设备上线；同设备已有会话时先关闭旧会话再装入新会话
func (r *PresenceRegistry) UpsertSession(ctx context.Context, p UpsertParams) (*Session, error) {
	if p.Status == entity.UserStatusOffline {
		return nil, fmt.Errorf("status offline is not allowed for an online session: %w", entity.ErrIllegalArgument)
	}
	if !p.DeviceType.Valid() {
		return nil, fmt.Errorf("unknown device type %q: %w", p.DeviceType, entity.ErrIllegalArgument)
	}
	if p.Conn == nil {
		return nil, fmt.Errorf("nil connection: %w", entity.ErrIllegalArgument)
	}
	if p.Status == "" {
		p.Status = entity.UserStatusAvailable
	}
	if err := r.admit(p.UserID); err != nil {
		return nil, err
	}

	s := newSession(p.UserID, p.DeviceType, p.Conn, p.LoginLogID, p.Location)

	for {
		m, _ := r.getOrCreate(p.UserID, p.Status)

		m.mu.Lock()
		if m.destroyed {
			m.mu.Unlock()
			r.detach(m)
			continue
		}
		// m 已在分桶中可见，此后开始的迁移扫描一定能看到它；在 m.mu 下再确认一次归属
		if err := r.admit(p.UserID); err != nil {
			r.rejectLocked(ctx, m)
			return nil, err
		}

		var replaced *Session
		var replacedSnap entity.OnlineUserSnapshot
		if old := m.sessions[p.DeviceType]; old != nil {
			// 旧通道必须先于新会话生效前关闭
			r.removeSessionLocked(m, old, entity.NewCloseReason(entity.CloseDisconnectedByOtherDevice))
			replaced = old
			replacedSnap = m.snapshotLocked(r.cfg.NodeID)
		}

		m.status = p.Status
		m.sessions[p.DeviceType] = s
		if loc := s.Location(); loc != nil {
			r.spatial.Upsert(r.spatialKey(p.UserID, p.DeviceType), loc.Coordinate)
		}
		snap := m.snapshotLocked(r.cfg.NodeID)
		m.mu.Unlock()

		if replaced != nil {
			zap.L().Info("session superseded by same device login",
				zlog.UserID(p.UserID), zlog.Device(string(p.DeviceType)))
			r.afterSessionRemoved(replacedSnap, replaced, entity.NewCloseReason(entity.CloseDisconnectedByOtherDevice))
		}
		sessionsGauge.Inc()

		r.heartbeat.Watch(s)
		r.recordLogin(p, s)
		r.fireOnline(snap, p.DeviceType)
		return s, nil
	}
}

// admit 节点退出中或不负责该用户时拒绝上线
func (r *PresenceRegistry) admit(userID uint64) error {
	if r.closing.Load() {
		return entity.ErrServerClosing
	}
	if !r.slots.IsLocallyResponsible(userID) {
		return entity.ErrNotLocallyResponsible
	}
	return nil
}

// rejectLocked 上线被拒绝，没有会话的管理器随之摘除，调用方持有 m.mu，返回时已释放
func (r *PresenceRegistry) rejectLocked(ctx context.Context, m *OnlineUserManager) {
	empty := len(m.sessions) == 0
	wasIrresponsible := m.irresponsible
	if empty {
		m.destroyed = true
	}
	m.mu.Unlock()

	if !empty {
		return
	}
	r.detach(m)
	onlineUsersGauge.Dec()
	if wasIrresponsible {
		r.removeDirectoryEntry(ctx, m.userID)
	}
}

// StopAccepting 之后的上线请求都返回 ErrServerClosing
func (r *PresenceRegistry) StopAccepting() {
	r.closing.Store(true)
}

// RemoveDevice 关闭指定设备的会话
func (r *PresenceRegistry) RemoveDevice(ctx context.Context, userID uint64, device entity.DeviceType, reason entity.CloseReason) bool {
	return r.remove(ctx, userID, reason, func(m *OnlineUserManager) []*Session {
		if s := m.sessions[device]; s != nil {
			return []*Session{s}
		}
		return nil
	}) > 0
}

// RemoveAllDevices 关闭用户的全部会话
func (r *PresenceRegistry) RemoveAllDevices(ctx context.Context, userID uint64, reason entity.CloseReason) bool {
	return r.remove(ctx, userID, reason, (*OnlineUserManager).sessionsLocked) > 0
}

// RemoveSession 只在 s 仍是当前会话时关闭，过期的定时器和旧连接不会误伤新会话
func (r *PresenceRegistry) RemoveSession(ctx context.Context, s *Session, reason entity.CloseReason) bool {
	return r.remove(ctx, s.userID, reason, func(m *OnlineUserManager) []*Session {
		if m.sessions[s.device] == s {
			return []*Session{s}
		}
		return nil
	}) > 0
}

// RemoveConn 客户端断开时按连接匹配会话
func (r *PresenceRegistry) RemoveConn(ctx context.Context, userID uint64, device entity.DeviceType, conn out.Connection, reason entity.CloseReason) bool {
	return r.remove(ctx, userID, reason, func(m *OnlineUserManager) []*Session {
		if s := m.sessions[device]; s != nil && s.conn == conn {
			return []*Session{s}
		}
		return nil
	}) > 0
}

type removedSession struct {
	session *Session
	snap    entity.OnlineUserSnapshot
}

func (r *PresenceRegistry) remove(ctx context.Context, userID uint64, reason entity.CloseReason, pick func(*OnlineUserManager) []*Session) int {
	m := r.GetLocal(userID)
	if m == nil {
		return 0
	}

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return 0
	}
	targets := pick(m)
	removed := make([]removedSession, 0, len(targets))
	for _, s := range targets {
		r.removeSessionLocked(m, s, reason)
		removed = append(removed, removedSession{session: s, snap: m.snapshotLocked(r.cfg.NodeID)})
	}

	empty := len(m.sessions) == 0
	wasIrresponsible := m.irresponsible
	if empty {
		m.destroyed = true
	}
	m.mu.Unlock()

	for _, rs := range removed {
		r.afterSessionRemoved(rs.snap, rs.session, reason)
	}

	if empty {
		r.detach(m)
		onlineUsersGauge.Dec()
		if wasIrresponsible {
			r.removeDirectoryEntry(ctx, userID)
		}
	}
	return len(removed)
}

// removeSessionLocked 关闭通道、取消心跳、摘除会话和位置点，调用方持有 m.mu
func (r *PresenceRegistry) removeSessionLocked(m *OnlineUserManager, s *Session, reason entity.CloseReason) {
	s.close(reason)
	delete(m.sessions, s.device)

	if r.cfg.UniqueDevicePoints {
		r.spatial.Delete(r.spatialKey(m.userID, s.device))
		return
	}
	key := r.spatialKey(m.userID, s.device)
	if latest := m.latestLocationLocked(); latest != nil {
		r.spatial.Upsert(key, latest.Coordinate)
	} else {
		r.spatial.Delete(key)
	}
}

func (r *PresenceRegistry) afterSessionRemoved(snap entity.OnlineUserSnapshot, s *Session, reason entity.CloseReason) {
	sessionsGauge.Dec()
	sessionClosesTotal.WithLabelValues(reason.Status.String()).Inc()
	zap.L().Debug("session closed",
		zlog.UserID(s.userID), zlog.Device(string(s.device)), zap.Stringer("reason", reason.Status))

	r.recordLogout(s)
	r.fireOffline(snap, s.device, reason)
}

func (r *PresenceRegistry) removeDirectoryEntry(ctx context.Context, userID uint64) {
	if r.directory == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.AsyncTimeout)
	defer cancel()
	if err := r.directory.Remove(ctx, userID, r.cfg.NodeID); err != nil {
		zap.L().Warn("remove irresponsible user entry failed", zlog.UserID(userID), zap.Error(err))
	}
}

// expire 心跳超时回调
func (r *PresenceRegistry) expire(s *Session) {
	if r.RemoveSession(context.Background(), s, entity.NewCloseReason(entity.CloseHeartbeatTimeout)) {
		zap.L().Info("session heartbeat timeout",
			zlog.UserID(s.userID), zlog.Device(string(s.device)), zap.Duration("timeout", r.heartbeat.Timeout()))
	}
}

// UpdateHeartbeat 只刷新时间戳，下次检查时自然生效
func (r *PresenceRegistry) UpdateHeartbeat(userID uint64, device entity.DeviceType) bool {
	m := r.GetLocal(userID)
	if m == nil {
		return false
	}
	s := m.Session(device)
	if s == nil {
		return false
	}
	s.touch()
	return true
}

// UpdateStatus 修改在线状态
func (r *PresenceRegistry) UpdateStatus(_ context.Context, userID uint64, status entity.UserStatus) (bool, error) {
	if status == entity.UserStatusOffline || status == "" {
		return false, fmt.Errorf("cannot set status %q: %w", status, entity.ErrIllegalArgument)
	}
	m := r.GetLocal(userID)
	if m == nil {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return false, nil
	}
	m.status = status
	return true, nil
}

// UpdateLocation 更新设备位置并同步到位置索引
func (r *PresenceRegistry) UpdateLocation(_ context.Context, userID uint64, device entity.DeviceType, coord entity.Coordinate) bool {
	m := r.GetLocal(userID)
	if m == nil {
		return false
	}

	m.mu.Lock()
	s := m.sessions[device]
	if s == nil || m.destroyed {
		m.mu.Unlock()
		return false
	}
	now := time.Now()
	s.setLocation(entity.Location{Coordinate: coord, Timestamp: now})
	r.spatial.Upsert(r.spatialKey(userID, device), coord)
	m.mu.Unlock()

	r.recordLocation(s, coord, now)
	return true
}

// DeliverLocal 推送到本地全部会话，至少一个成功即为成功
func (r *PresenceRegistry) DeliverLocal(userID uint64, payload []byte) bool {
	m := r.GetLocal(userID)
	if m == nil {
		return false
	}

	delivered := false
	for _, s := range m.Sessions() {
		if err := s.send(payload); err != nil {
			zap.L().Debug("push to session failed",
				zlog.UserID(userID), zlog.Device(string(s.device)), zap.Error(err))
			continue
		}
		delivered = true
	}
	return delivered
}

// MarkIrresponsible 设置或清除非负责标记，用户不在本节点时返回 false
func (r *PresenceRegistry) MarkIrresponsible(userID uint64, irresponsible bool) bool {
	m := r.GetLocal(userID)
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return false
	}
	m.irresponsible = irresponsible
	return true
}

// HostedSlots 本节点上有在线用户的槽位
func (r *PresenceRegistry) HostedSlots() []slot.Slot {
	seen := make(map[slot.Slot]struct{})
	for _, sh := range r.shards {
		sh.mu.RLock()
		for id := range sh.users {
			seen[slot.Of(id)] = struct{}{}
		}
		sh.mu.RUnlock()
	}

	slots := make([]slot.Slot, 0, len(seen))
	for s := range seen {
		slots = append(slots, s)
	}
	return slots
}

// UsersInSlot 槽位内的在线用户
func (r *PresenceRegistry) UsersInSlot(s slot.Slot) []uint64 {
	sh := r.shards[int(s)%len(r.shards)]
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	var users []uint64
	for id := range sh.users {
		if slot.Of(id) == s {
			users = append(users, id)
		}
	}
	return users
}

// ForEachUser 遍历在线用户，fn 返回 false 时停止
func (r *PresenceRegistry) ForEachUser(fn func(m *OnlineUserManager) bool) {
	for _, sh := range r.shards {
		sh.mu.RLock()
		managers := make([]*OnlineUserManager, 0, len(sh.users))
		for _, m := range sh.users {
			managers = append(managers, m)
		}
		sh.mu.RUnlock()

		for _, m := range managers {
			if !fn(m) {
				return
			}
		}
	}
}

// NearestLocal 本节点的有界 k 近邻
func (r *PresenceRegistry) NearestLocal(q entity.NearbyQuery) []entity.NearbyUser {
	return r.spatial.Nearest(q.Point, q.MaxDistance, q.MaxCount)
}

// Counts 在线用户数、会话数、非负责用户数
func (r *PresenceRegistry) Counts() (users, sessions, irresponsible int) {
	r.ForEachUser(func(m *OnlineUserManager) bool {
		m.mu.Lock()
		users++
		sessions += len(m.sessions)
		if m.irresponsible {
			irresponsible++
		}
		m.mu.Unlock()
		return true
	})
	return users, sessions, irresponsible
}

func (r *PresenceRegistry) spatialKey(userID uint64, device entity.DeviceType) entity.SpatialKey {
	if r.cfg.UniqueDevicePoints {
		return entity.SpatialKey{UserID: userID, DeviceType: device}
	}
	return entity.SpatialKey{UserID: userID}
}

// goAsync 日志和钩子不阻塞会话流程，失败只记日志
func (r *PresenceRegistry) goAsync(op string, fn func(ctx context.Context) error, fields ...zap.Field) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.AsyncTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			zap.L().Warn(op+" failed", append(fields, zap.Error(err))...)
		}
	}()
}

func (r *PresenceRegistry) recordLogin(p UpsertParams, s *Session) {
	if r.loginLogs == nil || s.loginLogID == "" {
		return
	}
	log := &entity.LoginLog{
		ID:         s.loginLogID,
		UserID:     p.UserID,
		DeviceType: p.DeviceType,
		NodeID:     r.cfg.NodeID,
		IP:         p.IP,
		Location:   s.Location(),
		LoginAt:    time.Now(),
	}
	r.goAsync("save login log", func(ctx context.Context) error {
		return r.loginLogs.SaveLogin(ctx, log)
	}, zlog.UserID(p.UserID))
}

func (r *PresenceRegistry) recordLogout(s *Session) {
	if r.loginLogs == nil || s.loginLogID == "" {
		return
	}
	logoutAt := time.Now()
	r.goAsync("save logout time", func(ctx context.Context) error {
		return r.loginLogs.SaveLogout(ctx, s.loginLogID, logoutAt)
	}, zlog.UserID(s.userID))
}

func (r *PresenceRegistry) recordLocation(s *Session, coord entity.Coordinate, at time.Time) {
	if r.loginLogs == nil {
		return
	}
	log := &entity.LocationLog{
		LoginLogID: s.loginLogID,
		UserID:     s.userID,
		DeviceType: s.device,
		Coordinate: coord,
		ReportedAt: at,
	}
	r.goAsync("save location log", func(ctx context.Context) error {
		return r.loginLogs.SaveLocation(ctx, log)
	}, zlog.UserID(s.userID))
}

func (r *PresenceRegistry) fireOnline(snap entity.OnlineUserSnapshot, device entity.DeviceType) {
	for _, h := range r.hooks {
		h := h
		r.goAsync("go online hook", func(ctx context.Context) error {
			return h.GoOnline(ctx, snap, device)
		}, zlog.UserID(snap.UserID))
	}
}

func (r *PresenceRegistry) fireOffline(snap entity.OnlineUserSnapshot, device entity.DeviceType, reason entity.CloseReason) {
	for _, h := range r.hooks {
		h := h
		r.goAsync("go offline hook", func(ctx context.Context) error {
			return h.GoOffline(ctx, snap, device, reason)
		}, zlog.UserID(snap.UserID))
	}
}

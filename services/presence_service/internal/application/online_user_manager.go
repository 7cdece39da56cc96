package application

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

// 心跳时间只用单调时钟比较
var clockBase = time.Now()

func monoNow() int64 {
	return int64(time.Since(clockBase))
}

// Session 单个设备的在线会话
type Session struct {
	userID     uint64
	device     entity.DeviceType
	conn       out.Connection
	loginLogID string

	lastHeartbeat atomic.Int64
	location      atomic.Pointer[entity.Location]

	mu     sync.Mutex
	timer  out.Timer
	closed bool
}

func newSession(userID uint64, device entity.DeviceType, conn out.Connection, loginLogID string, loc *entity.Location) *Session {
	s := &Session{
		userID:     userID,
		device:     device,
		conn:       conn,
		loginLogID: loginLogID,
	}
	s.lastHeartbeat.Store(monoNow())
	if loc != nil {
		l := *loc
		s.location.Store(&l)
	}
	return s
}

func (s *Session) UserID() uint64                { return s.userID }
func (s *Session) DeviceType() entity.DeviceType { return s.device }
func (s *Session) Conn() out.Connection          { return s.conn }
func (s *Session) LoginLogID() string            { return s.loginLogID }

// Location 最后上报的位置，未上报时为 nil
func (s *Session) Location() *entity.Location {
	return s.location.Load()
}

// SinceHeartbeat 距上次心跳的时间
func (s *Session) SinceHeartbeat() time.Duration {
	return time.Duration(monoNow() - s.lastHeartbeat.Load())
}

// Closed 会话是否已关闭
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) touch() {
	s.lastHeartbeat.Store(monoNow())
}

func (s *Session) setLocation(loc entity.Location) {
	s.location.Store(&loc)
}

// send 推送一帧，关闭后返回 ErrSessionClosed
func (s *Session) send(payload []byte) error {
	if s.Closed() {
		return entity.ErrSessionClosed
	}
	return s.conn.Send(payload)
}

// close 标记关闭并取消心跳检查，只有第一次调用会关闭通道
func (s *Session) close(reason entity.CloseReason) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	_ = s.conn.Close(reason)
	return true
}

// OnlineUserManager 一个在线用户在本节点上的全部会话
// 所有修改都在 mu 下进行，同一用户的上下线因此是线性的
type OnlineUserManager struct {
	userID uint64

	mu            sync.Mutex
	status        entity.UserStatus
	sessions      map[entity.DeviceType]*Session
	irresponsible bool // 槽位已迁走，本节点在宽限期内继续持有
	destroyed     bool // 已从注册表摘除，拿到它的调用方需要重试
}

func newOnlineUserManager(userID uint64, status entity.UserStatus) *OnlineUserManager {
	return &OnlineUserManager{
		userID:   userID,
		status:   status,
		sessions: make(map[entity.DeviceType]*Session),
	}
}

func (m *OnlineUserManager) UserID() uint64 {
	return m.userID
}

func (m *OnlineUserManager) Status() entity.UserStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *OnlineUserManager) IsIrresponsible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.irresponsible
}

// Session 某设备的会话
func (m *OnlineUserManager) Session(device entity.DeviceType) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[device]
}

// Sessions 当前全部会话的拷贝
func (m *OnlineUserManager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionsLocked()
}

func (m *OnlineUserManager) sessionsLocked() []*Session {
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].device < sessions[j].device
	})
	return sessions
}

// Snapshot 交给钩子的只读快照
func (m *OnlineUserManager) Snapshot(nodeID string) entity.OnlineUserSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(nodeID)
}

func (m *OnlineUserManager) snapshotLocked(nodeID string) entity.OnlineUserSnapshot {
	devices := make([]entity.DeviceType, 0, len(m.sessions))
	for d := range m.sessions {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i] < devices[j] })
	return entity.OnlineUserSnapshot{
		UserID:  m.userID,
		Status:  m.status,
		Devices: devices,
		NodeID:  nodeID,
	}
}

// latestLocationLocked 各设备中最近一次上报的位置
func (m *OnlineUserManager) latestLocationLocked() *entity.Location {
	var latest *entity.Location
	for _, s := range m.sessions {
		if loc := s.Location(); loc != nil && (latest == nil || loc.Timestamp.After(latest.Timestamp)) {
			latest = loc
		}
	}
	return latest
}

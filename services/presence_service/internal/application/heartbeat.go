package application

import (
	"time"

	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

const defaultMinCheckInterval = time.Second

// HeartbeatSupervisor 基于时间轮的心跳检查
// 每个会话只挂一个检查任务，检查时未超时就重新挂上，收到心跳只更新时间戳
type HeartbeatSupervisor struct {
	scheduler out.Scheduler
	timeout   time.Duration
	interval  time.Duration
	expire    func(s *Session)
}

func newHeartbeatSupervisor(scheduler out.Scheduler, timeout, minInterval time.Duration, expire func(*Session)) *HeartbeatSupervisor {
	if minInterval <= 0 {
		minInterval = defaultMinCheckInterval
	}
	return &HeartbeatSupervisor{
		scheduler: scheduler,
		timeout:   timeout,
		interval:  max(timeout/3, minInterval),
		expire:    expire,
	}
}

// Enabled timeout <= 0 时不做存活检查
func (h *HeartbeatSupervisor) Enabled() bool {
	return h.timeout > 0 && h.scheduler != nil
}

// Timeout 心跳超时时间
func (h *HeartbeatSupervisor) Timeout() time.Duration {
	return h.timeout
}

// Watch 开始检查会话
func (h *HeartbeatSupervisor) Watch(s *Session) {
	if !h.Enabled() {
		return
	}
	h.schedule(s)
}

func (h *HeartbeatSupervisor) schedule(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.timer = h.scheduler.AfterFunc(h.interval, func() { h.check(s) })
}

func (h *HeartbeatSupervisor) check(s *Session) {
	if s.Closed() {
		return
	}
	if s.SinceHeartbeat() > h.timeout {
		h.expire(s)
		return
	}
	h.schedule(s)
}

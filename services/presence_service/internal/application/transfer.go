package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/EthanQC/IM/pkg/zlog"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/slot"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

// TransferPolicy 槽位迁走后如何处理本节点上的用户
type TransferPolicy string

const (
	// TransferImmediate 立即关闭并重定向到新节点
	TransferImmediate TransferPolicy = "immediate"
	// TransferGraceful 登记为非负责用户，宽限期内分散关闭
	TransferGraceful TransferPolicy = "graceful"
)

// ParseTransferPolicy 解析配置，空字符串为 graceful
func ParseTransferPolicy(s string) (TransferPolicy, error) {
	switch TransferPolicy(s) {
	case "", TransferGraceful:
		return TransferGraceful, nil
	case TransferImmediate:
		return TransferImmediate, nil
	}
	return "", fmt.Errorf("unknown transfer policy %q: %w", s, entity.ErrIllegalArgument)
}

// TransferConfig 责任迁移配置
type TransferConfig struct {
	Policy TransferPolicy
	TTL    time.Duration // 非负责用户条目有效期
	Jitter time.Duration // 关闭时间的分散窗口
}

const defaultIrresponsibleTTL = 30 * time.Second

// ResponsibilityTransferManager 成员变更时处理本节点不再负责的用户
// 每次变更都取消上一轮未执行的延迟关闭，按当前成员重新计算
type ResponsibilityTransferManager struct {
	cfg       TransferConfig
	registry  *PresenceRegistry
	slots     *slot.SlotMap
	directory out.IrresponsibleUserRepository
	scheduler out.Scheduler

	mu           sync.Mutex
	generation   uint64
	pending      []out.Timer
	shuttingDown bool
}

// NewResponsibilityTransferManager 创建责任迁移管理器
func NewResponsibilityTransferManager(
	cfg TransferConfig,
	registry *PresenceRegistry,
	slots *slot.SlotMap,
	directory out.IrresponsibleUserRepository,
	scheduler out.Scheduler,
) *ResponsibilityTransferManager {
	if cfg.Policy == "" {
		cfg.Policy = TransferGraceful
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultIrresponsibleTTL
	}
	return &ResponsibilityTransferManager{
		cfg:       cfg,
		registry:  registry,
		slots:     slots,
		directory: directory,
		scheduler: scheduler,
	}
}

// OnMembershipChange 重新计算本节点负责的槽位
func (t *ResponsibilityTransferManager) OnMembershipChange(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.shuttingDown {
		return
	}
	membershipChangesTotal.Inc()
	t.cancelPendingLocked()

	self := t.slots.LocalNodeID()
	var lost []slot.Slot
	for _, s := range t.registry.HostedSlots() {
		owner, ok := t.slots.OwnerOf(s)
		switch {
		case !ok:
			zap.L().Error("force closing users of orphaned slot",
				zlog.Slot(int(s)), zap.Error(entity.ErrNoOwnerFound))
			t.closeUsers(ctx, t.registry.UsersInSlot(s), entity.NewCloseReason(entity.CloseServerError))
		case owner == self:
			// 槽位回到本节点，之前登记的非负责用户恢复为正常用户
			t.restoreSlot(ctx, s)
		default:
			lost = append(lost, s)
		}
	}
	if len(lost) == 0 {
		return
	}
	sort.Slice(lost, func(i, j int) bool { return lost[i] < lost[j] })

	if t.cfg.Policy == TransferImmediate {
		for _, s := range lost {
			users := t.registry.UsersInSlot(s)
			transferredUsersTotal.WithLabelValues(string(TransferImmediate)).Add(float64(len(users)))
			t.closeUsers(ctx, users, t.redirectReason(s))
		}
		return
	}
	t.scheduleGracefulLocked(ctx, lost)
}

func (t *ResponsibilityTransferManager) scheduleGracefulLocked(ctx context.Context, lost []slot.Slot) {
	self := t.slots.LocalNodeID()

	var users []uint64
	for _, s := range lost {
		users = append(users, t.registry.UsersInSlot(s)...)
	}
	for _, id := range users {
		t.registry.MarkIrresponsible(id, true)
	}

	if err := t.directory.PutAll(ctx, users, self, t.cfg.TTL); err != nil {
		// 无法让其他节点找到这些用户，退化为立即关闭
		zap.L().Error("publish irresponsible users failed, closing them immediately",
			zap.Int("users", len(users)), zap.Error(err))
		for _, s := range lost {
			slotUsers := t.registry.UsersInSlot(s)
			transferredUsersTotal.WithLabelValues(string(TransferImmediate)).Add(float64(len(slotUsers)))
			t.closeUsers(ctx, slotUsers, t.redirectReason(s))
		}
		return
	}
	transferredUsersTotal.WithLabelValues(string(TransferGraceful)).Add(float64(len(users)))

	start, step := closeSchedule(t.cfg.TTL, t.cfg.Jitter, len(lost))
	gen := t.generation
	for i, s := range lost {
		s := s
		delay := start + time.Duration(i)*step
		t.pending = append(t.pending, t.scheduler.AfterFunc(delay, func() {
			t.closeDeferred(gen, s)
		}))
	}
	zap.L().Info("slots moved away, users kept during grace window",
		zap.Int("slots", len(lost)), zap.Int("users", len(users)),
		zap.Duration("first_close", start), zap.Duration("step", step))
}

// closeSchedule 第 i 个槽位在 start + i*step 关闭，全部落在 [T-J, T+J) 内
func closeSchedule(ttl, jitter time.Duration, n int) (start, step time.Duration) {
	start = max(ttl-jitter, 0)
	if n <= 0 {
		return start, 0
	}
	return start, (ttl + jitter - start) / time.Duration(n)
}

// closeDeferred 延迟关闭到点，触发时再确认一次归属
func (t *ResponsibilityTransferManager) closeDeferred(gen uint64, s slot.Slot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.generation || t.shuttingDown {
		return
	}

	ctx := context.Background()
	owner, ok := t.slots.OwnerOf(s)
	switch {
	case !ok:
		t.closeUsers(ctx, t.registry.UsersInSlot(s), entity.NewCloseReason(entity.CloseServerError))
	case owner == t.slots.LocalNodeID():
		t.restoreSlot(ctx, s)
	default:
		t.closeUsers(ctx, t.registry.UsersInSlot(s), t.redirectReason(s))
	}
}

// restoreSlot 清除槽位内用户的非负责标记和目录条目
func (t *ResponsibilityTransferManager) restoreSlot(ctx context.Context, s slot.Slot) {
	self := t.slots.LocalNodeID()
	for _, id := range t.registry.UsersInSlot(s) {
		m := t.registry.GetLocal(id)
		if m == nil || !m.IsIrresponsible() {
			continue
		}
		t.registry.MarkIrresponsible(id, false)
		if err := t.directory.Remove(ctx, id, self); err != nil {
			zap.L().Warn("remove irresponsible user entry failed", zlog.UserID(id), zap.Error(err))
		}
	}
}

func (t *ResponsibilityTransferManager) redirectReason(s slot.Slot) entity.CloseReason {
	if t.shuttingDown {
		return entity.NewCloseReason(entity.CloseServerClosed)
	}
	member, ok := t.slots.OwnerMember(s)
	if !ok {
		return entity.NewCloseReason(entity.CloseServerError)
	}
	return entity.RedirectTo(member.ClientAddr)
}

func (t *ResponsibilityTransferManager) closeUsers(ctx context.Context, users []uint64, reason entity.CloseReason) {
	for _, id := range users {
		t.registry.RemoveAllDevices(ctx, id, reason)
	}
}

func (t *ResponsibilityTransferManager) cancelPendingLocked() {
	t.generation++
	for _, tm := range t.pending {
		tm.Stop()
	}
	t.pending = nil
}

// PendingCloses 本轮安排的延迟关闭数
func (t *ResponsibilityTransferManager) PendingCloses() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Shutdown 本节点退出，关闭全部会话
func (t *ResponsibilityTransferManager) Shutdown(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.shuttingDown = true
	t.cancelPendingLocked()
	t.registry.StopAccepting()

	var users []uint64
	t.registry.ForEachUser(func(m *OnlineUserManager) bool {
		users = append(users, m.UserID())
		return true
	})
	zap.L().Info("closing all local sessions for shutdown", zap.Int("users", len(users)))
	t.closeUsers(ctx, users, entity.NewCloseReason(entity.CloseServerClosed))
}

// Package memory 进程内实现，单节点部署和测试使用
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

type irresponsibleEntry struct {
	nodeID   string
	deadline time.Time
}

// IrresponsibleUserRepository 基于 map 的非负责用户目录，过期在读取时惰性清理
// 多个节点共享同一个实例即可模拟集群复制
type IrresponsibleUserRepository struct {
	mu      sync.Mutex
	entries map[uint64]irresponsibleEntry
	now     func() time.Time
}

var _ out.IrresponsibleUserRepository = (*IrresponsibleUserRepository)(nil)

// NewIrresponsibleUserRepository 创建内存目录
func NewIrresponsibleUserRepository() *IrresponsibleUserRepository {
	return &IrresponsibleUserRepository{
		entries: make(map[uint64]irresponsibleEntry),
		now:     time.Now,
	}
}

func (r *IrresponsibleUserRepository) Put(_ context.Context, userID uint64, nodeID string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("irresponsible user ttl %v: %w", ttl, entity.ErrIllegalArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[userID] = irresponsibleEntry{nodeID: nodeID, deadline: r.now().Add(ttl)}
	return nil
}

func (r *IrresponsibleUserRepository) PutAll(_ context.Context, userIDs []uint64, nodeID string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("irresponsible user ttl %v: %w", ttl, entity.ErrIllegalArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	deadline := r.now().Add(ttl)
	for _, id := range userIDs {
		r.entries[id] = irresponsibleEntry{nodeID: nodeID, deadline: deadline}
	}
	return nil
}

func (r *IrresponsibleUserRepository) Get(_ context.Context, userID uint64) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		return "", false, nil
	}
	if !r.now().Before(e.deadline) {
		delete(r.entries, userID)
		return "", false, nil
	}
	return e.nodeID, true, nil
}

func (r *IrresponsibleUserRepository) Remove(_ context.Context, userID uint64, nodeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[userID]; ok && e.nodeID == nodeID {
		delete(r.entries, userID)
	}
	return nil
}

// Len 未过期条目数
func (r *IrresponsibleUserRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	n := 0
	for _, e := range r.entries {
		if now.Before(e.deadline) {
			n++
		}
	}
	return n
}

package routing

import (
	"fmt"
	"hash/crc32"
	"sort"
	"strconv"
	"sync"
)

const defaultReplicas = 150

// SlotRing 一致性哈希环，把固定数量的槽位分配给集群成员
// 成员变更时整体重建，只有落在变更节点附近的槽位会换主
type SlotRing struct {
	replicas  int               // 虚拟节点数
	slotCount int               // 槽位总数
	keys      []uint32          // 已排序的哈希值
	hashMap   map[uint32]string // 哈希值到节点的映射
	owners    []string          // 槽位 -> 节点，重建时预先算好
	nodes     map[string]struct{}
	mu        sync.RWMutex
}

// NewSlotRing 创建槽位哈希环
func NewSlotRing(replicas, slotCount int) *SlotRing {
	if replicas <= 0 {
		replicas = defaultReplicas
	}
	return &SlotRing{
		replicas:  replicas,
		slotCount: slotCount,
		hashMap:   make(map[uint32]string),
		owners:    make([]string, slotCount),
		nodes:     make(map[string]struct{}),
	}
}

// hash 计算哈希值
func (r *SlotRing) hash(key string) uint32 {
	return crc32.ChecksumIEEE([]byte(key))
}

// SetNodes 用给定成员列表重建哈希环
func (r *SlotRing) SetNodes(nodes []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.keys = r.keys[:0]
	r.hashMap = make(map[uint32]string, len(nodes)*r.replicas)
	r.nodes = make(map[string]struct{}, len(nodes))
	for _, node := range nodes {
		r.addLocked(node)
	}
	r.rebuildLocked()
}

// AddNode 添加节点
func (r *SlotRing) AddNode(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[node]; ok {
		return
	}
	r.addLocked(node)
	r.rebuildLocked()
}

// RemoveNode 移除节点
func (r *SlotRing) RemoveNode(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[node]; !ok {
		return
	}
	delete(r.nodes, node)
	for i := 0; i < r.replicas; i++ {
		delete(r.hashMap, r.hash(fmt.Sprintf("%s#%d", node, i)))
	}

	newKeys := make([]uint32, 0, len(r.hashMap))
	for _, k := range r.keys {
		if _, ok := r.hashMap[k]; ok {
			newKeys = append(newKeys, k)
		}
	}
	r.keys = newKeys
	r.rebuildLocked()
}

func (r *SlotRing) addLocked(node string) {
	r.nodes[node] = struct{}{}
	for i := 0; i < r.replicas; i++ {
		key := r.hash(fmt.Sprintf("%s#%d", node, i))
		r.keys = append(r.keys, key)
		r.hashMap[key] = node
	}
}

// rebuildLocked 排序虚拟节点并重新计算每个槽位的归属
func (r *SlotRing) rebuildLocked() {
	sort.Slice(r.keys, func(i, j int) bool {
		return r.keys[i] < r.keys[j]
	})
	for slot := 0; slot < r.slotCount; slot++ {
		r.owners[slot] = r.lookupLocked("slot#" + strconv.Itoa(slot))
	}
}

func (r *SlotRing) lookupLocked(key string) string {
	if len(r.keys) == 0 {
		return ""
	}

	hash := r.hash(key)
	idx := sort.Search(len(r.keys), func(i int) bool {
		return r.keys[i] >= hash
	})
	if idx >= len(r.keys) {
		idx = 0
	}
	return r.hashMap[r.keys[idx]]
}

// OwnerOf 槽位当前归属节点，环为空时返回 false
func (r *SlotRing) OwnerOf(slot int) (string, bool) {
	if slot < 0 || slot >= r.slotCount {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	owner := r.owners[slot]
	return owner, owner != ""
}

// Nodes 获取所有节点
func (r *SlotRing) Nodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]string, 0, len(r.nodes))
	for node := range r.nodes {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}

// SlotsPerNode 每个节点负责的槽位数，用于 /stats
func (r *SlotRing) SlotsPerNode() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int, len(r.nodes))
	for _, owner := range r.owners {
		if owner != "" {
			counts[owner]++
		}
	}
	return counts
}

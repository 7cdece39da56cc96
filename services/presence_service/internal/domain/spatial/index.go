// Package spatial 本节点在线用户的位置索引，基于 R 树做有界 k 近邻查询
package spatial

import (
	"math"
	"sync"

	"github.com/tidwall/rtree"

	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
)

// Index 位置索引，并发安全
// 距离按经纬度平面欧氏距离计算，单位与坐标一致
type Index struct {
	mu     sync.RWMutex
	tree   rtree.RTreeG[entity.SpatialKey]
	points map[entity.SpatialKey]entity.Coordinate
}

// NewIndex 创建位置索引
func NewIndex() *Index {
	return &Index{
		points: make(map[entity.SpatialKey]entity.Coordinate),
	}
}

// NewIndexFrom 用已有结果构建一次性索引，用于合并各节点的查询结果
func NewIndexFrom(users []entity.NearbyUser) *Index {
	idx := NewIndex()
	for _, u := range users {
		idx.upsertLocked(u.SpatialKey, u.Coordinate)
	}
	return idx
}

func point(c entity.Coordinate) [2]float64 {
	return [2]float64{c.Longitude, c.Latitude}
}

// Upsert 写入或替换 key 对应的坐标，R 树不支持原地更新，先删后插
func (i *Index) Upsert(key entity.SpatialKey, coord entity.Coordinate) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.upsertLocked(key, coord)
}

func (i *Index) upsertLocked(key entity.SpatialKey, coord entity.Coordinate) {
	if old, ok := i.points[key]; ok {
		p := point(old)
		i.tree.Delete(p, p, key)
	}
	p := point(coord)
	i.tree.Insert(p, p, key)
	i.points[key] = coord
}

// Delete 删除 key，返回是否存在
func (i *Index) Delete(key entity.SpatialKey) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	old, ok := i.points[key]
	if !ok {
		return false
	}
	p := point(old)
	i.tree.Delete(p, p, key)
	delete(i.points, key)
	return true
}

// Get 查询 key 当前坐标
func (i *Index) Get(key entity.SpatialKey) (entity.Coordinate, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	c, ok := i.points[key]
	return c, ok
}

// Len 索引中的点数
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.points)
}

// Nearest 距离 target 不超过 maxDistance 的最近 maxCount 个点，按距离升序
func (i *Index) Nearest(target entity.Coordinate, maxDistance float64, maxCount int) []entity.NearbyUser {
	if maxCount <= 0 || maxDistance < 0 {
		return nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	result := make([]entity.NearbyUser, 0, min(maxCount, len(i.points)))
	i.tree.Nearby(
		distanceTo(point(target)),
		func(lo, _ [2]float64, key entity.SpatialKey, dist float64) bool {
			if dist > maxDistance {
				return false
			}
			result = append(result, entity.NearbyUser{
				SpatialKey: key,
				Coordinate: entity.Coordinate{Longitude: lo[0], Latitude: lo[1]},
			})
			return len(result) < maxCount
		},
	)
	return result
}

// distanceTo 点到矩形的最短距离，叶子节点上矩形退化为点
func distanceTo(p [2]float64) func(lo, hi [2]float64, _ entity.SpatialKey, _ bool) float64 {
	return func(lo, hi [2]float64, _ entity.SpatialKey, _ bool) float64 {
		dx := axisGap(p[0], lo[0], hi[0])
		dy := axisGap(p[1], lo[1], hi[1])
		return math.Hypot(dx, dy)
	}
}

func axisGap(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	}
	return 0
}

// Distance 两点间距离，与 Nearest 使用同一度量
func Distance(a, b entity.Coordinate) float64 {
	return math.Hypot(a.Longitude-b.Longitude, a.Latitude-b.Latitude)
}

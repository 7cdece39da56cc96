package cluster

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/memberlist"
	"go.uber.org/zap"

	"github.com/EthanQC/IM/pkg/zlog"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

const eventQueueSize = 256

// MemberlistConfig gossip 成员管理配置
type MemberlistConfig struct {
	Local     entity.Member // 本节点ID与对外地址，通过节点元数据广播给其他成员
	BindAddr  string
	BindPort  int
	JoinAddrs []string
	Replicas  int
}

// Memberlist 基于 hashicorp/memberlist 的成员视图
// memberlist 回调只更新视图，订阅者在独立 goroutine 中按顺序收到事件
type Memberlist struct {
	*view
	list   *memberlist.Memberlist
	meta   []byte
	events chan entity.MembershipEvent
	done   chan struct{}
}

var _ out.ClusterMembership = (*Memberlist)(nil)

// NewMemberlist 创建并加入集群
func NewMemberlist(cfg MemberlistConfig) (*Memberlist, error) {
	meta, err := json.Marshal(cfg.Local)
	if err != nil {
		return nil, fmt.Errorf("marshal node meta: %w", err)
	}

	m := &Memberlist{
		view:   newView(cfg.Local, cfg.Replicas),
		meta:   meta,
		events: make(chan entity.MembershipEvent, eventQueueSize),
		done:   make(chan struct{}),
	}

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = cfg.Local.NodeID
	mlConfig.BindAddr = cfg.BindAddr
	mlConfig.BindPort = cfg.BindPort
	mlConfig.AdvertisePort = cfg.BindPort
	mlConfig.Delegate = m
	mlConfig.Events = m
	mlConfig.Logger = zap.NewStdLog(zap.L().Named("memberlist"))

	go m.dispatch()

	list, err := memberlist.Create(mlConfig)
	if err != nil {
		close(m.done)
		return nil, fmt.Errorf("create memberlist: %w", err)
	}
	m.list = list

	if len(cfg.JoinAddrs) > 0 {
		n, err := list.Join(cfg.JoinAddrs)
		if err != nil {
			zap.L().Warn("join cluster failed, running standalone until peers join us",
				zap.Strings("peers", cfg.JoinAddrs), zap.Error(err))
		} else {
			zap.L().Info("joined cluster", zap.Int("contacted", n), zap.Int("members", list.NumMembers()))
		}
	}
	return m, nil
}

func (m *Memberlist) dispatch() {
	for {
		select {
		case ev := <-m.events:
			m.publish(ev)
		case <-m.done:
			return
		}
	}
}

func (m *Memberlist) enqueue(ev entity.MembershipEvent) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

func decodeMember(node *memberlist.Node) entity.Member {
	var member entity.Member
	if err := json.Unmarshal(node.Meta, &member); err != nil || member.NodeID == "" {
		zap.L().Warn("invalid node meta, falling back to gossip address",
			zlog.Node(node.Name), zap.Error(err))
		member = entity.Member{NodeID: node.Name, RPCAddr: node.Address()}
	}
	return member
}

// NotifyJoin memberlist.EventDelegate
func (m *Memberlist) NotifyJoin(node *memberlist.Node) {
	if ev, ok := m.upsert(decodeMember(node)); ok {
		zap.L().Info("cluster member joined", zlog.Node(ev.Member.NodeID), zap.String("rpc_addr", ev.Member.RPCAddr))
		m.enqueue(ev)
	}
}

// NotifyLeave memberlist.EventDelegate
func (m *Memberlist) NotifyLeave(node *memberlist.Node) {
	if ev, ok := m.remove(node.Name); ok {
		zap.L().Info("cluster member left", zlog.Node(node.Name))
		m.enqueue(ev)
	}
}

// NotifyUpdate memberlist.EventDelegate
func (m *Memberlist) NotifyUpdate(node *memberlist.Node) {
	if ev, ok := m.upsert(decodeMember(node)); ok {
		m.enqueue(ev)
	}
}

// NodeMeta memberlist.Delegate
func (m *Memberlist) NodeMeta(limit int) []byte {
	if len(m.meta) > limit {
		zap.L().Error("node meta exceeds memberlist limit", zap.Int("size", len(m.meta)), zap.Int("limit", limit))
		return nil
	}
	return m.meta
}

func (m *Memberlist) NotifyMsg([]byte)                           {}
func (m *Memberlist) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (m *Memberlist) LocalState(join bool) []byte                { return nil }
func (m *Memberlist) MergeRemoteState(buf []byte, join bool)     {}

// Shutdown 通知其他成员后退出
func (m *Memberlist) Shutdown(timeout time.Duration) error {
	defer close(m.done)

	if err := m.list.Leave(timeout); err != nil {
		zap.L().Warn("leave cluster failed", zap.Error(err))
	}
	return m.list.Shutdown()
}

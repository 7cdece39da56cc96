package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/EthanQC/IM/services/presence_service/internal/adapters/out/cluster"
	"github.com/EthanQC/IM/services/presence_service/internal/adapters/out/memory"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/slot"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/in"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

// eventLog 记录多个连接上事件的先后顺序
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeConn struct {
	name string
	log  *eventLog

	mu       sync.Mutex
	sent     [][]byte
	reason   *entity.CloseReason
	closedAt time.Time
}

var _ out.Connection = (*fakeConn)(nil)

func newFakeConn(name string, log *eventLog) *fakeConn {
	return &fakeConn{name: name, log: log}
}

func (c *fakeConn) Send(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reason != nil {
		return entity.ErrSessionClosed
	}
	c.sent = append(c.sent, p)
	if c.log != nil {
		c.log.add("send:" + c.name)
	}
	return nil
}

func (c *fakeConn) Close(r entity.CloseReason) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reason != nil {
		return nil
	}
	c.reason = &r
	c.closedAt = time.Now()
	if c.log != nil {
		c.log.add("close:" + c.name)
	}
	return nil
}

func (c *fakeConn) RemoteAddr() string { return c.name }

func (c *fakeConn) closeReason() (entity.CloseReason, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reason == nil {
		return entity.CloseReason{}, false
	}
	return *c.reason, true
}

func (c *fakeConn) closedTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closedAt
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// manualScheduler 手动触发的定时器，测试里精确控制延迟关闭
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	s       *manualScheduler
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{}
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) out.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, delay: d, fn: f}
	s.timers = append(s.timers, t)
	return t
}

// pending 未停止也未触发的定时器，按延迟排序
func (s *manualScheduler) pending() []*manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []*manualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			res = append(res, t)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].delay < res[j].delay })
	return res
}

// firePending 触发当前所有未执行的定时器
func (s *manualScheduler) firePending() int {
	timers := s.pending()
	for _, t := range timers {
		s.mu.Lock()
		if t.stopped || t.fired {
			s.mu.Unlock()
			continue
		}
		t.fired = true
		s.mu.Unlock()
		t.fn()
	}
	return len(timers)
}

// recordingDirectory 记录写入参数，可注入失败
type recordingDirectory struct {
	*memory.IrresponsibleUserRepository

	mu      sync.Mutex
	putTTLs []time.Duration
	failPut error
}

func newRecordingDirectory() *recordingDirectory {
	return &recordingDirectory{IrresponsibleUserRepository: memory.NewIrresponsibleUserRepository()}
}

func (d *recordingDirectory) PutAll(ctx context.Context, userIDs []uint64, nodeID string, ttl time.Duration) error {
	d.mu.Lock()
	d.putTTLs = append(d.putTTLs, ttl)
	err := d.failPut
	d.mu.Unlock()
	if err != nil {
		return err
	}
	return d.IrresponsibleUserRepository.PutAll(ctx, userIDs, nodeID, ttl)
}

func testMember(id string) entity.Member {
	return entity.Member{NodeID: id, RPCAddr: id + ":9000", ClientAddr: "ws://" + id + "/ws"}
}

type testNode struct {
	member     entity.Member
	membership *cluster.Static
	scheduler  *manualScheduler
	svc        *PresenceService
}

type rpcCall struct {
	method string
	node   string
	users  []uint64
}

// testCluster 进程内多节点集群，节点间调用直接走对方的 ClusterHandler
type testCluster struct {
	opts      Options
	directory *recordingDirectory

	mu    sync.RWMutex
	nodes map[string]*testNode
	down  map[string]bool
	calls []rpcCall
}

func newTestCluster(opts Options) *testCluster {
	return &testCluster{
		opts:      opts,
		directory: newRecordingDirectory(),
		nodes:     make(map[string]*testNode),
		down:      make(map[string]bool),
	}
}

func (c *testCluster) node(id string) *testNode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nodes[id]
}

func (c *testCluster) nodeIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.nodes))
	for id := range c.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// addNode 新节点加入，已有节点同步收到成员变更
func (c *testCluster) addNode(id string) *testNode {
	member := testMember(id)

	c.mu.RLock()
	var others []entity.Member
	var existing []*testNode
	for _, n := range c.nodes {
		others = append(others, n.member)
		existing = append(existing, n)
	}
	c.mu.RUnlock()

	n := &testNode{
		member:     member,
		membership: cluster.NewStatic(member, 0, others...),
		scheduler:  newManualScheduler(),
	}
	n.svc = NewPresenceService(c.opts, Dependencies{
		Membership: n.membership,
		RPC:        c,
		Directory:  c.directory,
		Scheduler:  n.scheduler,
	})

	c.mu.Lock()
	c.nodes[id] = n
	c.mu.Unlock()

	for _, e := range existing {
		e.membership.AddMember(member)
	}
	return n
}

// removeNode 节点离开，剩余节点同步收到成员变更
func (c *testCluster) removeNode(id string) {
	c.mu.Lock()
	delete(c.nodes, id)
	var rest []*testNode
	for _, n := range c.nodes {
		rest = append(rest, n)
	}
	c.mu.Unlock()

	for _, n := range rest {
		n.membership.RemoveMember(id)
	}
}

// settle 触发全部节点上待执行的延迟关闭
func (c *testCluster) settle() {
	for _, id := range c.nodeIDs() {
		c.node(id).scheduler.firePending()
	}
}

func (c *testCluster) setDown(id string, down bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.down[id] = down
}

func (c *testCluster) recordedCalls() []rpcCall {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]rpcCall(nil), c.calls...)
}

func (c *testCluster) handler(method, nodeID string, users []uint64) (in.ClusterRequestHandler, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, rpcCall{method: method, node: nodeID, users: users})
	if c.down[nodeID] {
		return nil, errors.New("connection refused")
	}
	n, ok := c.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("unknown node %s", nodeID)
	}
	return n.svc.ClusterHandler(), nil
}

func (c *testCluster) DeliverToUser(ctx context.Context, nodeID string, userID uint64, payload []byte) (bool, error) {
	h, err := c.handler("deliver", nodeID, []uint64{userID})
	if err != nil {
		return false, err
	}
	return h.HandleDeliver(ctx, userID, payload), nil
}

func (c *testCluster) SetUsersOffline(ctx context.Context, nodeID string, userIDs []uint64, reason entity.CloseReason) (bool, error) {
	h, err := c.handler("set_offline", nodeID, userIDs)
	if err != nil {
		return false, err
	}
	return h.HandleSetUsersOffline(ctx, userIDs, reason), nil
}

func (c *testCluster) NearestUsers(ctx context.Context, nodeID string, q entity.NearbyQuery) ([]entity.NearbyUser, error) {
	h, err := c.handler("nearest", nodeID, nil)
	if err != nil {
		return nil, err
	}
	return h.HandleNearest(ctx, q)
}

// ownerOf 按某个节点的视图计算用户归属
func ownerOf(ms *cluster.Static, userID uint64) string {
	owner, _ := ms.SlotOwner(int(slot.Of(userID)))
	return owner
}

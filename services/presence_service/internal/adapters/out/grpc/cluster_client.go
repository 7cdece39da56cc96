// Package grpc 节点间调用的 gRPC 客户端，按节点复用连接
package grpc

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	pb "github.com/EthanQC/IM/api/gen/im/v1"
	"github.com/EthanQC/IM/pkg/zlog"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/pkg/clusterrpc"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

// MemberResolver 按节点ID查 RPC 地址
type MemberResolver interface {
	Member(nodeID string) (entity.Member, bool)
}

type nodeConn struct {
	addr   string
	conn   *grpc.ClientConn
	client pb.PresenceClusterClient
}

// ClusterClient out.ClusterRPC 的 gRPC 实现
type ClusterClient struct {
	members  MemberResolver
	dialOpts []grpc.DialOption

	mu    sync.Mutex
	conns map[string]*nodeConn
}

var _ out.ClusterRPC = (*ClusterClient)(nil)

// NewClusterClient 默认不加密，opts 追加在默认选项之后
func NewClusterClient(members MemberResolver, opts ...grpc.DialOption) *ClusterClient {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	return &ClusterClient{
		members:  members,
		dialOpts: dialOpts,
		conns:    make(map[string]*nodeConn),
	}
}

// client 取节点连接，地址变化时重建
func (c *ClusterClient) client(nodeID string) (pb.PresenceClusterClient, error) {
	m, ok := c.members.Member(nodeID)
	if !ok {
		return nil, fmt.Errorf("unknown member %s", nodeID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if nc, ok := c.conns[nodeID]; ok {
		if nc.addr == m.RPCAddr {
			return nc.client, nil
		}
		_ = nc.conn.Close()
		delete(c.conns, nodeID)
	}

	cc, err := grpc.NewClient(m.RPCAddr, c.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s at %s: %w", nodeID, m.RPCAddr, err)
	}
	nc := &nodeConn{addr: m.RPCAddr, conn: cc, client: pb.NewPresenceClusterClient(cc)}
	c.conns[nodeID] = nc
	return nc.client, nil
}

func (c *ClusterClient) DeliverToUser(ctx context.Context, nodeID string, userID uint64, payload []byte) (bool, error) {
	cli, err := c.client(nodeID)
	if err != nil {
		return false, err
	}
	resp, err := cli.Deliver(ctx, &pb.DeliverRequest{UserId: userID, Payload: payload})
	if err != nil {
		return false, err
	}
	return resp.Delivered, nil
}

func (c *ClusterClient) SetUsersOffline(ctx context.Context, nodeID string, userIDs []uint64, reason entity.CloseReason) (bool, error) {
	cli, err := c.client(nodeID)
	if err != nil {
		return false, err
	}
	resp, err := cli.SetUsersOffline(ctx, &pb.SetUsersOfflineRequest{
		UserIds: userIDs,
		Reason:  clusterrpc.ToCloseReason(reason),
	})
	if err != nil {
		return false, err
	}
	return resp.Closed, nil
}

func (c *ClusterClient) NearestUsers(ctx context.Context, nodeID string, query entity.NearbyQuery) ([]entity.NearbyUser, error) {
	cli, err := c.client(nodeID)
	if err != nil {
		return nil, err
	}
	resp, err := cli.Nearest(ctx, clusterrpc.ToNearestRequest(query))
	if err != nil {
		return nil, err
	}
	return clusterrpc.FromNearbyUsers(resp.Users), nil
}

// OnMembershipEvent 成员离开时关闭到它的连接
func (c *ClusterClient) OnMembershipEvent(ev entity.MembershipEvent) {
	if ev.Type != entity.MemberLeft {
		return
	}
	c.Forget(ev.Member.NodeID)
}

// Forget 关闭并丢弃到某节点的连接
func (c *ClusterClient) Forget(nodeID string) {
	c.mu.Lock()
	nc, ok := c.conns[nodeID]
	delete(c.conns, nodeID)
	c.mu.Unlock()

	if ok {
		if err := nc.conn.Close(); err != nil {
			zap.L().Debug("close cluster conn failed", zlog.Node(nodeID), zap.Error(err))
		}
	}
}

// Close 关闭全部连接
func (c *ClusterClient) Close() {
	c.mu.Lock()
	conns := c.conns
	c.conns = make(map[string]*nodeConn)
	c.mu.Unlock()

	for _, nc := range conns {
		_ = nc.conn.Close()
	}
}

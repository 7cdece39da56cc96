package grpc

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pb "github.com/EthanQC/IM/api/gen/im/v1"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/pkg/clusterrpc"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/in"
)

// ClusterServer 节点间调用的服务端，只做本地操作
type ClusterServer struct {
	pb.UnimplementedPresenceClusterServer
	handler in.ClusterRequestHandler
}

// NewClusterServer 创建集群服务
func NewClusterServer(handler in.ClusterRequestHandler) *ClusterServer {
	return &ClusterServer{handler: handler}
}

// RegisterClusterServer 注册服务
func RegisterClusterServer(s grpc.ServiceRegistrar, srv *ClusterServer) {
	pb.RegisterPresenceClusterServer(s, srv)
}

// NewServer 带日志拦截器的 gRPC 服务器
func NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(loggingInterceptor)}, opts...)
	return grpc.NewServer(opts...)
}

// Deliver 本地投递
func (s *ClusterServer) Deliver(ctx context.Context, req *pb.DeliverRequest) (*pb.DeliverResponse, error) {
	return &pb.DeliverResponse{Delivered: s.handler.HandleDeliver(ctx, req.UserId, req.Payload)}, nil
}

// SetUsersOffline 本地踢下线
func (s *ClusterServer) SetUsersOffline(ctx context.Context, req *pb.SetUsersOfflineRequest) (*pb.SetUsersOfflineResponse, error) {
	if len(req.UserIds) == 0 {
		return nil, status.Error(codes.InvalidArgument, "user_ids is empty")
	}
	closed := s.handler.HandleSetUsersOffline(ctx, req.UserIds, clusterrpc.FromCloseReason(req.Reason))
	return &pb.SetUsersOfflineResponse{Closed: closed}, nil
}

// Nearest 本地附近的人
func (s *ClusterServer) Nearest(ctx context.Context, req *pb.NearestRequest) (*pb.NearestResponse, error) {
	users, err := s.handler.HandleNearest(ctx, clusterrpc.FromNearestRequest(req))
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.NearestResponse{Users: clusterrpc.ToNearbyUsers(users)}, nil
}

func toStatus(err error) error {
	if errors.Is(err, entity.ErrIllegalArgument) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		zap.L().Warn("cluster rpc failed",
			zap.String("method", info.FullMethod), zap.Duration("latency", time.Since(start)), zap.Error(err))
		return resp, err
	}
	zap.L().Debug("cluster rpc",
		zap.String("method", info.FullMethod), zap.Duration("latency", time.Since(start)))
	return resp, nil
}

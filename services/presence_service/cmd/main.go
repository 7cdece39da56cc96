package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/EthanQC/IM/pkg/zlog"
	grpcin "github.com/EthanQC/IM/services/presence_service/internal/adapters/in/grpc"
	httpin "github.com/EthanQC/IM/services/presence_service/internal/adapters/in/http"
	mqin "github.com/EthanQC/IM/services/presence_service/internal/adapters/in/mq"
	"github.com/EthanQC/IM/services/presence_service/internal/adapters/in/ws"
	"github.com/EthanQC/IM/services/presence_service/internal/adapters/out/cluster"
	grpcout "github.com/EthanQC/IM/services/presence_service/internal/adapters/out/grpc"
	"github.com/EthanQC/IM/services/presence_service/internal/adapters/out/memory"
	mqout "github.com/EthanQC/IM/services/presence_service/internal/adapters/out/mq"
	"github.com/EthanQC/IM/services/presence_service/internal/adapters/out/mysql"
	redisRepo "github.com/EthanQC/IM/services/presence_service/internal/adapters/out/redis"
	"github.com/EthanQC/IM/services/presence_service/internal/adapters/out/timer"
	"github.com/EthanQC/IM/services/presence_service/internal/application"
	"github.com/EthanQC/IM/services/presence_service/internal/config"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

const shutdownTimeout = 15 * time.Second

type membership interface {
	out.ClusterMembership
	SlotsPerNode() map[string]int
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	flush := zlog.MustInitGlobal(cfg.Log)
	defer flush()

	logger := zap.L()
	logger.Info("presence_service starting", zlog.Node(cfg.Cluster.NodeID))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	application.RegisterMetrics(reg)
	if cfg.Log.EnableMetric {
		zlog.RegisterMetrics(reg)
	}

	// 集群成员
	local := entity.Member{
		NodeID:     cfg.Cluster.NodeID,
		RPCAddr:    cfg.Cluster.RPCAddr,
		ClientAddr: cfg.Cluster.ClientAddr,
	}
	if local.RPCAddr == "" {
		local.RPCAddr = fmt.Sprintf("127.0.0.1:%d", cfg.Server.GRPCPort)
	}
	var (
		members membership
		gossip  *cluster.Memberlist
	)
	if cfg.Cluster.Gossip {
		gossip, err = cluster.NewMemberlist(cluster.MemberlistConfig{
			Local:     local,
			BindAddr:  cfg.Cluster.BindAddr,
			BindPort:  cfg.Cluster.BindPort,
			JoinAddrs: cfg.Cluster.Join,
			Replicas:  cfg.Cluster.Replicas,
		})
		if err != nil {
			logger.Fatal("Failed to start memberlist", zap.Error(err))
		}
		members = gossip
	} else {
		others := make([]entity.Member, 0, len(cfg.Cluster.Members))
		for _, m := range cfg.Cluster.Members {
			others = append(others, entity.Member{NodeID: m.NodeID, RPCAddr: m.RPCAddr, ClientAddr: m.ClientAddr})
		}
		members = cluster.NewStatic(local, cfg.Cluster.Replicas, others...)
	}

	// 非负责用户目录
	var directory out.IrresponsibleUserRepository
	if cfg.Redis.Addr != "" {
		redisClient, err := initRedis(cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to init redis", zap.Error(err))
		}
		defer redisClient.Close()
		directory = redisRepo.NewIrresponsibleUserRepositoryRedis(redisClient)
		logger.Info("Redis 连接成功")
	} else {
		logger.Warn("redis.addr is empty, irresponsible users are only visible to this node")
		directory = memory.NewIrresponsibleUserRepository()
	}

	// 登录日志
	var loginLogs out.LoginLogRepository
	if cfg.MySQL.DSN != "" {
		db, err := mysql.Open(mysql.Options{
			DSN:          cfg.MySQL.DSN,
			MaxIdleConns: cfg.MySQL.MaxIdleConns,
			MaxOpenConns: cfg.MySQL.MaxOpenConns,
		})
		if err != nil {
			logger.Fatal("Failed to init mysql", zap.Error(err))
		}
		loginLogs = mysql.NewLoginLogRepositoryMySQL(db)
	}

	// 上下线事件
	var hooks []out.SessionHook
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := mqout.NewSyncProducer(cfg.Kafka.Brokers)
		if err != nil {
			logger.Fatal("Failed to init kafka producer", zap.Error(err))
		}
		publisher := mqout.NewKafkaPresencePublisher(producer, cfg.Kafka.PresenceTopic)
		defer publisher.Close()
		hooks = append(hooks, publisher)
	}

	wheel := timer.NewWheel(timer.DefaultTick, timer.DefaultWheelSize)
	defer wheel.Stop()

	rpcClient := grpcout.NewClusterClient(members)
	defer rpcClient.Close()
	members.Subscribe(rpcClient.OnMembershipEvent)

	svc := application.NewPresenceService(cfg.PresenceOptions(), application.Dependencies{
		Membership: members,
		RPC:        rpcClient,
		Directory:  directory,
		LoginLogs:  loginLogs,
		Hooks:      hooks,
		Scheduler:  wheel,
	})

	// 节点间 gRPC
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		logger.Fatal("Failed to listen", zap.Error(err))
	}
	grpcServer := grpcin.NewServer()
	grpcin.RegisterClusterServer(grpcServer, grpcin.NewClusterServer(svc.ClusterHandler()))
	go func() {
		logger.Info("cluster rpc server starting", zap.Int("port", cfg.Server.GRPCPort))
		if err := grpcServer.Serve(listener); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	// 客户端入口
	wsServer := ws.NewServer(svc, ws.NewTokenVerifier(cfg.Auth.JWTSecret), ws.Options{
		WriteWait:      cfg.WS.WriteWait,
		PongWait:       cfg.WS.PongWait,
		PingPeriod:     cfg.WS.PingPeriod,
		MaxMessageSize: cfg.WS.MaxMessageSize,
		SendBuffer:     cfg.WS.SendBuffer,
	})
	httpServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpin.NewRouter(httpin.RouterDeps{
			Presence:  svc,
			Slots:     members,
			WebSocket: wsServer.HandleConnection,
			Gatherer:  reg,
		}),
	}
	go func() {
		logger.Info("http server starting", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// 消息投递事件
	var consumer *mqin.KafkaMessageConsumer
	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err = mqin.NewKafkaMessageConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, svc)
		if err != nil {
			logger.Fatal("Failed to init kafka consumer", zap.Error(err))
		}
		consumer.Start(context.Background())
	}

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.Warn("stop kafka consumer failed", zap.Error(err))
		}
	}
	// 先关会话，客户端收到 server_closed 后去其他节点重连
	svc.Shutdown(ctx)
	if gossip != nil {
		if err := gossip.Shutdown(5 * time.Second); err != nil {
			logger.Warn("memberlist shutdown failed", zap.Error(err))
		}
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("http server shutdown failed", zap.Error(err))
	}
	grpcServer.GracefulStop()
	logger.Info("Server exited properly")
}

func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

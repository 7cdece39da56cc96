// Package config 节点配置，默认值 < configs/config.<APP_ENV>.yaml < PRESENCE_ 前缀环境变量
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/EthanQC/IM/pkg/zlog"
	"github.com/EthanQC/IM/services/presence_service/internal/application"
)

const envPrefix = "PRESENCE"

type ServerConfig struct {
	HTTPPort int `mapstructure:"http_port"`
	GRPCPort int `mapstructure:"grpc_port"`
}

// StaticMember 不启用 gossip 时的固定成员
type StaticMember struct {
	NodeID     string `mapstructure:"node_id"`
	RPCAddr    string `mapstructure:"rpc_addr"`
	ClientAddr string `mapstructure:"client_addr"`
}

type ClusterConfig struct {
	NodeID     string         `mapstructure:"node_id"`
	ClientAddr string         `mapstructure:"client_addr"` // 重定向时下发给客户端
	RPCAddr    string         `mapstructure:"rpc_addr"`
	Gossip     bool           `mapstructure:"gossip"`
	BindAddr   string         `mapstructure:"bind_addr"`
	BindPort   int            `mapstructure:"bind_port"`
	Join       []string       `mapstructure:"join"`
	Replicas   int            `mapstructure:"replicas"`
	Members    []StaticMember `mapstructure:"members"`
}

type PresenceConfig struct {
	Shards                          int           `mapstructure:"shards"`
	HeartbeatTimeout                time.Duration `mapstructure:"heartbeat_timeout"`
	HeartbeatMinInterval            time.Duration `mapstructure:"heartbeat_min_interval"`
	RPCTimeout                      time.Duration `mapstructure:"rpc_timeout"`
	NearbyQueryTimeout              time.Duration `mapstructure:"nearby_query_timeout"`
	TransferPolicy                  string        `mapstructure:"transfer_policy"`
	ClearUpIrresponsibleUsersAfter  time.Duration `mapstructure:"clear_up_irresponsible_users_after"`
	ClearUpIrresponsibleUsersJitter time.Duration `mapstructure:"clear_up_irresponsible_users_jitter"`
	TreatUserAndDeviceAsUnique      bool          `mapstructure:"treat_user_and_device_as_unique_user"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"` // 为空时使用进程内目录，只适合单机
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MySQLConfig struct {
	DSN          string `mapstructure:"dsn"` // 为空时不记录登录日志
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"` // 为空时不收发事件
	ConsumerGroup string   `mapstructure:"consumer_group"`
	PresenceTopic string   `mapstructure:"presence_topic"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type WSConfig struct {
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

// Config 节点配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Cluster  ClusterConfig  `mapstructure:"cluster"`
	Presence PresenceConfig `mapstructure:"presence"`
	WS       WSConfig       `mapstructure:"ws"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      zlog.Config    `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", 8084)
	v.SetDefault("server.grpc_port", 9084)

	v.SetDefault("cluster.node_id", "presence-1")
	v.SetDefault("cluster.bind_addr", "0.0.0.0")
	v.SetDefault("cluster.bind_port", 7946)
	v.SetDefault("cluster.replicas", 64)

	v.SetDefault("presence.shards", 256)
	v.SetDefault("presence.heartbeat_timeout", "90s")
	v.SetDefault("presence.heartbeat_min_interval", "1s")
	v.SetDefault("presence.rpc_timeout", "5s")
	v.SetDefault("presence.nearby_query_timeout", "15s")
	v.SetDefault("presence.transfer_policy", string(application.TransferGraceful))
	v.SetDefault("presence.clear_up_irresponsible_users_after", "30s")
	v.SetDefault("presence.clear_up_irresponsible_users_jitter", "10s")

	v.SetDefault("redis.pool_size", 50)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("kafka.consumer_group", "presence-service")
}

// Load 读取 APP_ENV 对应的配置文件，文件不存在时只用默认值和环境变量
func Load() (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	v := viper.New()
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper 从已加载的 viper 实例解析
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	logCfg, err := zlog.FromViper(v, "log")
	if err != nil {
		return nil, err
	}
	if logCfg.Service == "unknown" {
		logCfg.Service = "presence-service"
	}
	if logCfg.Node == "" {
		logCfg.Node = cfg.Cluster.NodeID
	}
	cfg.Log = logCfg

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 启动前检查
func (c *Config) Validate() error {
	if c.Cluster.NodeID == "" {
		return errors.New("cluster.node_id is required")
	}
	if c.Server.HTTPPort <= 0 || c.Server.GRPCPort <= 0 {
		return errors.New("server ports must be positive")
	}
	policy, err := application.ParseTransferPolicy(c.Presence.TransferPolicy)
	if err != nil {
		return err
	}
	if c.Presence.ClearUpIrresponsibleUsersAfter < 0 || c.Presence.ClearUpIrresponsibleUsersJitter < 0 {
		return errors.New("presence clear up durations must not be negative")
	}
	// 目录条目只靠过期清理，graceful 下必须有 TTL
	if policy == application.TransferGraceful && c.Presence.ClearUpIrresponsibleUsersAfter == 0 {
		return errors.New("presence.clear_up_irresponsible_users_after must be positive for graceful transfer")
	}
	if c.Presence.HeartbeatTimeout < 0 {
		return errors.New("presence.heartbeat_timeout must not be negative")
	}
	for i, m := range c.Cluster.Members {
		if m.NodeID == "" || m.RPCAddr == "" {
			return fmt.Errorf("cluster.members[%d] needs node_id and rpc_addr", i)
		}
	}
	return c.Log.Validate()
}

// PresenceOptions 转成应用层参数
func (c *Config) PresenceOptions() application.Options {
	policy, _ := application.ParseTransferPolicy(c.Presence.TransferPolicy)
	return application.Options{
		RegistryShards:       c.Presence.Shards,
		HeartbeatTimeout:     c.Presence.HeartbeatTimeout,
		HeartbeatMinInterval: c.Presence.HeartbeatMinInterval,
		RPCTimeout:           c.Presence.RPCTimeout,
		NearbyQueryTimeout:   c.Presence.NearbyQueryTimeout,
		TransferPolicy:       policy,
		IrresponsibleTTL:     c.Presence.ClearUpIrresponsibleUsersAfter,
		IrresponsibleJitter:  c.Presence.ClearUpIrresponsibleUsersJitter,
		UniqueDevicePoints:   c.Presence.TreatUserAndDeviceAsUnique,
	}
}

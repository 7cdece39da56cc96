package zlog

import (
	"fmt"

	"github.com/spf13/viper"
)

// FileConfig 本地轮转文件策略
type FileConfig struct {
	Path       string `mapstructure:"path"`        // 日志文件路径，空表示不落盘
	MaxSizeMB  int    `mapstructure:"max_size"`    // 单个日志文件最大容量（MB）
	MaxBackups int    `mapstructure:"max_backups"` // 保留旧文件数量
	MaxAgeDay  int    `mapstructure:"max_age"`     // 最长保存天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧日志文件
}

// Config 日志配置
type Config struct {
	Service      string     `mapstructure:"service"`       // 归属服务名
	Node         string     `mapstructure:"node"`          // 集群节点ID，多节点时用来区分日志来源
	Level        string     `mapstructure:"level"`         // debug|info|warn|error
	Encoding     string     `mapstructure:"encoding"`      // json|console
	Development  bool       `mapstructure:"development"`   // 开发模式：彩色级别、完整堆栈
	Stdout       bool       `mapstructure:"stdout"`        // 是否同时输出到控制台
	File         FileConfig `mapstructure:"file"`          // 文件相关配置
	EnableMetric bool       `mapstructure:"enable_metric"` // 是否上报 Prometheus 指标
}

func prefixed(key, name string) string {
	if key == "" {
		return name
	}
	return key + "." + name
}

// SetDefaults 在 key 子树下写入默认值，key 为空时写在根上
func SetDefaults(v *viper.Viper, key string) {
	v.SetDefault(prefixed(key, "service"), "unknown")
	v.SetDefault(prefixed(key, "level"), "info")
	v.SetDefault(prefixed(key, "encoding"), "json")
	v.SetDefault(prefixed(key, "stdout"), true)
	v.SetDefault(prefixed(key, "file.max_size"), 100)
	v.SetDefault(prefixed(key, "file.max_backups"), 60)
	v.SetDefault(prefixed(key, "file.max_age"), 30)
	v.SetDefault(prefixed(key, "enable_metric"), true)
}

// FromViper 从服务配置的 key 子树读取日志配置
// 逐项读取，保证默认值、配置文件和环境变量三层都能生效
func FromViper(v *viper.Viper, key string) (Config, error) {
	SetDefaults(v, key)

	p := func(name string) string { return prefixed(key, name) }
	cfg := Config{
		Service:     v.GetString(p("service")),
		Node:        v.GetString(p("node")),
		Level:       v.GetString(p("level")),
		Encoding:    v.GetString(p("encoding")),
		Development: v.GetBool(p("development")),
		Stdout:      v.GetBool(p("stdout")),
		File: FileConfig{
			Path:       v.GetString(p("file.path")),
			MaxSizeMB:  v.GetInt(p("file.max_size")),
			MaxBackups: v.GetInt(p("file.max_backups")),
			MaxAgeDay:  v.GetInt(p("file.max_age")),
			Compress:   v.GetBool(p("file.compress")),
		},
		EnableMetric: v.GetBool(p("enable_metric")),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig 读取独立的日志配置文件
func LoadConfig(filePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filePath)
	v.SetEnvPrefix("ZLOG")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取日志配置文件失败：%w", err)
	}

	SetDefaults(v, "")
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("加载日志配置失败：%w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 严格校验并补齐文件参数
func (cfg *Config) Validate() error {
	if cfg.Service == "" {
		return fmt.Errorf("配置错误：service 不能为空")
	}

	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("配置错误：level 只能是 debug/info/warn/error")
	}

	switch cfg.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("配置错误：encoding 只能是 json/console")
	}

	if !cfg.Stdout && cfg.File.Path == "" {
		return fmt.Errorf("配置错误：stdout 为 false 时，file.path 不能为空")
	}

	if cfg.File.Path != "" {
		if cfg.File.MaxSizeMB <= 0 {
			cfg.File.MaxSizeMB = 100
		}
		if cfg.File.MaxBackups < 0 {
			cfg.File.MaxBackups = 60
		}
		if cfg.File.MaxAgeDay < 0 {
			cfg.File.MaxAgeDay = 30
		}
	}
	return nil
}

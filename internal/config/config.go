package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Registry RegistryConfig `mapstructure:"registry"`
	Reward   RewardConfig   `mapstructure:"reward"`
	Task     TaskConfig     `mapstructure:"task"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin 模式: debug, release, test
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres, sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"` // sqlite 文件路径
}

// DSN 生成 postgres 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// RegistryConfig 活动工厂配置
type RegistryConfig struct {
	FactoryAddress string `mapstructure:"factory_address"` // 用于派生活动地址
}

// RewardConfig 奖励代币配置
type RewardConfig struct {
	Rate   int64  `mapstructure:"rate"`   // 每单位贡献发放的奖励数
	Symbol string `mapstructure:"symbol"` // 代币符号
}

type TaskConfig struct {
	Interval int `mapstructure:"interval"` // 秒
	Workers  int `mapstructure:"workers"`  // 协程池大小
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

// Load 加载配置，path 为空时按默认路径查找 config.yaml
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/crowdledger")
	}

	// 设置默认值
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "crowdfunding")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "crowdledger.db")
	v.SetDefault("registry.factory_address", "0x00000000000000000000000000000000000fac70")
	v.SetDefault("reward.rate", 100)
	v.SetDefault("reward.symbol", "LEAF")
	v.SetDefault("task.interval", 60)
	v.SetDefault("task.workers", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")

	// 自动读取环境变量，例如 CROWDLEDGER_SERVER_PORT
	v.SetEnvPrefix("crowdledger")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if !common.IsHexAddress(c.Registry.FactoryAddress) {
		return fmt.Errorf("registry.factory_address %q is not a hex address", c.Registry.FactoryAddress)
	}
	if c.Reward.Rate <= 0 {
		return fmt.Errorf("reward.rate must be positive, got %d", c.Reward.Rate)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unsupported server.mode %q, supported: debug, release, test", c.Server.Mode)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q, supported: postgres, sqlite", c.Database.Driver)
	}
	if c.Task.Interval <= 0 {
		return fmt.Errorf("task.interval must be positive, got %d", c.Task.Interval)
	}
	if c.Task.Workers <= 0 {
		return fmt.Errorf("task.workers must be positive, got %d", c.Task.Workers)
	}
	return nil
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config 描述 BundleHub 守护进程在启动阶段需要加载的核心配置。
type Config struct {
	Server  ServerConfig  `json:"server"`
	Web3    Web3Config    `json:"web3"`
	Wallet  WalletConfig  `json:"wallet"`
	Invest  InvestConfig  `json:"invest"`
	Tokens  string        `json:"tokens"`
	History HistoryConfig `json:"history"`
	Events  EventsConfig  `json:"events"`
	Cache   CacheConfig   `json:"cache"`
	Metrics MetricsConfig `json:"metrics"`
	Log     LogConfig     `json:"log"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `json:"address"`
}

// Web3Config 选择链定义文件与默认链。
type Web3Config struct {
	ChainConfig  string `json:"chain_config"`
	DefaultChain string `json:"default_chain"`
	RPCURL       string `json:"rpc_url"`
}

// WalletConfig 描述签名账户。私钥优先从环境变量读取。
type WalletConfig struct {
	PrivateKeyEnv      string `json:"private_key_env"`
	PrivateKeyHex      string `json:"private_key_hex"`
	AtomicBatch        bool   `json:"atomic_batch"`
	ReceiptPollSeconds int    `json:"receipt_poll_seconds"`
}

// Key 返回签名私钥，环境变量优先于明文配置。
func (w WalletConfig) Key() string {
	if w.PrivateKeyEnv != "" {
		if key := os.Getenv(w.PrivateKeyEnv); key != "" {
			return key
		}
	}
	return w.PrivateKeyHex
}

// InvestConfig 描述编排器的合约地址与交易参数。
type InvestConfig struct {
	Factory             string `json:"factory"`
	Router              string `json:"router"`
	PricingToken        string `json:"pricing_token"`
	PricingDecimals     uint8  `json:"pricing_decimals"`
	SlippageBps         uint32 `json:"slippage_bps"`
	SwapDeadlineSeconds int    `json:"swap_deadline_seconds"`
}

// HistoryConfig 选择操作记录的存储驱动。
type HistoryConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// EventsConfig 选择操作事件的发布驱动。
type EventsConfig struct {
	Driver   string         `json:"driver"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RabbitMQConfig 描述 RabbitMQ 连接参数。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// CacheConfig 选择代币元数据缓存驱动。
type CacheConfig struct {
	Driver string      `json:"driver"`
	Redis  RedisConfig `json:"redis"`
}

// RedisConfig 描述 Redis 连接参数。
type RedisConfig struct {
	Address    string `json:"address"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// MetricsConfig 控制独立的 /metrics 服务。
type MetricsConfig struct {
	Address string `json:"address"`
}

// LogConfig 控制结构化日志与审计日志。
type LogConfig struct {
	Level   string         `json:"level"`
	Format  string         `json:"format"`
	Outputs []string       `json:"outputs"`
	Audit   AuditLogConfig `json:"audit"`
}

// AuditLogConfig 控制审计日志文件。
type AuditLogConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Web3.ChainConfig != "" && !filepath.IsAbs(c.Web3.ChainConfig) {
		c.Web3.ChainConfig = filepath.Join(baseDir, c.Web3.ChainConfig)
	}
	if c.Tokens != "" && !filepath.IsAbs(c.Tokens) {
		c.Tokens = filepath.Join(baseDir, c.Tokens)
	}
	if c.Wallet.ReceiptPollSeconds <= 0 {
		c.Wallet.ReceiptPollSeconds = 1
	}
	if c.Invest.SlippageBps == 0 {
		c.Invest.SlippageBps = 200
	}
	if c.Invest.SwapDeadlineSeconds <= 0 {
		c.Invest.SwapDeadlineSeconds = 600
	}
	if c.History.Driver == "" {
		c.History.Driver = "memory"
	}
	if c.Events.Driver == "" {
		c.Events.Driver = "memory"
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"BundleHub-Chain/internal/api"
	"BundleHub-Chain/internal/bundle"
	"BundleHub-Chain/internal/cache"
	"BundleHub-Chain/internal/config"
	"BundleHub-Chain/internal/history"
	"BundleHub-Chain/internal/invest"
	"BundleHub-Chain/internal/notify"
	"BundleHub-Chain/internal/observability/metrics"
	"BundleHub-Chain/internal/wallet"
	"BundleHub-Chain/internal/web3/provider"
	"BundleHub-Chain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
)

// main 是 BundleHub 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bundlehubd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("BUNDLEHUB_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "bundlehub.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Outputs: cfg.Log.Outputs,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Log.Audit.Enabled,
			Path:       cfg.Log.Audit.Path,
			MaxSizeMB:  cfg.Log.Audit.MaxSizeMB,
			MaxBackups: cfg.Log.Audit.MaxBackups,
			MaxAgeDays: cfg.Log.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	chainRegistry, err := provider.NewRegistry(ctx, provider.Config{
		ChainConfig:  cfg.Web3.ChainConfig,
		DefaultChain: cfg.Web3.DefaultChain,
		RPCURL:       cfg.Web3.RPCURL,
	})
	if err != nil {
		return err
	}
	defer chainRegistry.Close()

	backend, err := chainRegistry.DefaultBackend()
	if err != nil {
		return err
	}

	symbolTable, err := bundle.LoadTokenDefinitions(cfg.Tokens)
	if err != nil {
		return err
	}

	var metadataCache bundle.MetadataCache
	switch cfg.Cache.Driver {
	case "", "memory":
		metadataCache = bundle.NewMemoryMetadataCache()
	case "redis":
		redisCache, err := cache.NewRedisMetadataCache(cache.RedisConfig{
			Address:  cfg.Cache.Redis.Address,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			TTL:      time.Duration(cfg.Cache.Redis.TTLSeconds) * time.Second,
		})
		if err != nil {
			return err
		}
		defer redisCache.Close()
		metadataCache = redisCache
	default:
		return fmt.Errorf("未知的缓存驱动: %s", cfg.Cache.Driver)
	}

	tokens := bundle.NewResolver(symbolTable, backend, metadataCache)
	view := bundle.NewView(backend, tokens)

	signer, err := wallet.NewSigner(wallet.Config{
		PrivateKeyHex:       cfg.Wallet.Key(),
		AtomicBatch:         cfg.Wallet.AtomicBatch,
		ReceiptPollInterval: time.Duration(cfg.Wallet.ReceiptPollSeconds) * time.Second,
	}, backend)
	if err != nil {
		return err
	}

	var store history.Store
	switch cfg.History.Driver {
	case "", "memory":
		store = history.NewMemoryStore()
	case "mysql":
		mysqlStore, err := history.NewMySQLStore(cfg.History.DSN)
		if err != nil {
			return err
		}
		store = mysqlStore
	default:
		return fmt.Errorf("未知的操作记录驱动: %s", cfg.History.Driver)
	}
	defer func() { _ = store.Close() }()

	var events notify.Publisher
	switch cfg.Events.Driver {
	case "", "memory":
		events = notify.NewMemoryPublisher()
	case "rabbitmq":
		publisher, err := notify.NewRabbitMQPublisher(notify.RabbitMQConfig{
			URL:        cfg.Events.RabbitMQ.URL,
			Queue:      cfg.Events.RabbitMQ.Queue,
			Durable:    cfg.Events.RabbitMQ.Durable,
			AutoDelete: cfg.Events.RabbitMQ.AutoDelete,
		})
		if err != nil {
			return err
		}
		events = publisher
	default:
		return fmt.Errorf("未知的事件驱动: %s", cfg.Events.Driver)
	}
	defer func() { _ = events.Close() }()

	service, err := invest.NewService(invest.ServiceConfig{
		Factory:         parseAddress(cfg.Invest.Factory),
		Router:          parseAddress(cfg.Invest.Router),
		PricingToken:    parseAddress(cfg.Invest.PricingToken),
		PricingDecimals: cfg.Invest.PricingDecimals,
		SlippageBps:     cfg.Invest.SlippageBps,
		SwapDeadline:    time.Duration(cfg.Invest.SwapDeadlineSeconds) * time.Second,
	}, backend, view, signer, store, events)
	if err != nil {
		return err
	}

	if cfg.Metrics.Address != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Metrics.Address); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("指标服务异常退出: %v", err)
			}
		}()
	}

	server := api.NewServer(cfg.Server.Address, service)
	return server.Start(ctx)
}

func parseAddress(raw string) common.Address {
	if !common.IsHexAddress(raw) {
		return common.Address{}
	}
	return common.HexToAddress(raw)
}

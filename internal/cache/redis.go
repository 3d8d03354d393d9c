// Package cache 提供跨进程的代币元数据缓存实现。代币的 symbol 与 decimals
// 不可变，可以长期缓存；读失败一律当作缓存未命中处理。
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

// RedisConfig 描述 Redis 缓存的连接参数。
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	// TTL 为零时缓存永不过期。
	TTL time.Duration
}

// RedisMetadataCache 用 Redis 缓存代币元数据，实现 bundle.MetadataCache。
type RedisMetadataCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMetadataCache 建立 Redis 连接。
func NewRedisMetadataCache(cfg RedisConfig) (*RedisMetadataCache, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &RedisMetadataCache{client: client, ttl: cfg.TTL}, nil
}

func decimalsKey(token common.Address) string {
	return "bundlehub:token:decimals:" + token.Hex()
}

func symbolKey(token common.Address) string {
	return "bundlehub:token:symbol:" + token.Hex()
}

// GetDecimals 读取缓存的精度。
func (c *RedisMetadataCache) GetDecimals(ctx context.Context, token common.Address) (uint8, bool) {
	raw, err := c.client.Get(ctx, decimalsKey(token)).Result()
	if err != nil {
		return 0, false
	}
	value, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 0, false
	}
	return uint8(value), true
}

// SetDecimals 写入精度缓存。
func (c *RedisMetadataCache) SetDecimals(ctx context.Context, token common.Address, decimals uint8) {
	_ = c.client.Set(ctx, decimalsKey(token), strconv.FormatUint(uint64(decimals), 10), c.ttl).Err()
}

// GetSymbol 读取缓存的符号。
func (c *RedisMetadataCache) GetSymbol(ctx context.Context, token common.Address) (string, bool) {
	symbol, err := c.client.Get(ctx, symbolKey(token)).Result()
	if err != nil || symbol == "" {
		return "", false
	}
	return symbol, true
}

// SetSymbol 写入符号缓存。
func (c *RedisMetadataCache) SetSymbol(ctx context.Context, token common.Address, symbol string) {
	_ = c.client.Set(ctx, symbolKey(token), symbol, c.ttl).Err()
}

// Close 关闭 Redis 连接。
func (c *RedisMetadataCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

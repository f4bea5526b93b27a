package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"stockanalyzer/pkg/core"
)

// RedisCacheConfig Redis缓存配置
type RedisCacheConfig struct {
	Addr       string        `yaml:"addr" mapstructure:"addr"`
	Password   string        `yaml:"password" mapstructure:"password"`
	DB         int           `yaml:"db" mapstructure:"db"`
	DefaultTTL time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
}

// RedisCache 以Redis为后端的K线缓存，供多个进程共享。
// K线序列以JSON编码存储，过期由Redis的键TTL机制负责。
type RedisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
	hits       int64
	misses     int64
}

// NewRedisCache 创建Redis缓存并检查连接。
func NewRedisCache(ctx context.Context, config RedisCacheConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to Redis failed: %w", err)
	}

	ttl := config.DefaultTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{
		client:     client,
		defaultTTL: ttl,
	}, nil
}

// Get 获取缓存的K线序列
func (rc *RedisCache) Get(ctx context.Context, code string, start, end time.Time) ([]core.Bar, error) {
	data, err := rc.client.Get(ctx, barKey(code, start, end)).Bytes()
	if err == redis.Nil {
		atomic.AddInt64(&rc.misses, 1)
		return nil, ErrCacheMissNotFound
	}
	if err != nil {
		return nil, NewCacheError(ErrCacheTimeout, "redis get failed").WithContext("cause", err.Error())
	}

	var bars []core.Bar
	if err := json.Unmarshal(data, &bars); err != nil {
		return nil, NewCacheError(ErrCacheCorrupted, "unmarshal cached bars failed").WithContext("cause", err.Error())
	}
	atomic.AddInt64(&rc.hits, 1)
	return bars, nil
}

// Set 缓存K线序列
func (rc *RedisCache) Set(ctx context.Context, code string, start, end time.Time, bars []core.Bar, ttl time.Duration) error {
	data, err := json.Marshal(bars)
	if err != nil {
		return fmt.Errorf("marshal bars failed: %w", err)
	}
	if ttl <= 0 {
		ttl = rc.defaultTTL
	}
	return rc.client.Set(ctx, barKey(code, start, end), data, ttl).Err()
}

// Delete 删除一个缓存条目
func (rc *RedisCache) Delete(ctx context.Context, code string, start, end time.Time) error {
	return rc.client.Del(ctx, barKey(code, start, end)).Err()
}

// Clear 清空全部K线缓存条目，只删除本缓存前缀下的键。
func (rc *RedisCache) Clear(ctx context.Context) error {
	iter := rc.client.Scan(ctx, 0, "bars:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := rc.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Stats 返回缓存统计信息。条目数通过键扫描统计，只作参考。
func (rc *RedisCache) Stats() Stats {
	hits := atomic.LoadInt64(&rc.hits)
	misses := atomic.LoadInt64(&rc.misses)

	var size int64
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	iter := rc.client.Scan(ctx, 0, "bars:*", 0).Iterator()
	for iter.Next(ctx) {
		size++
	}

	return Stats{
		Size:      size,
		HitCount:  hits,
		MissCount: misses,
		HitRate:   hitRate(hits, misses),
	}
}

// Close 关闭Redis连接
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

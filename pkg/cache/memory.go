package cache

import (
	"context"
	"sync"
	"time"

	"stockanalyzer/pkg/core"
)

// MemoryCacheConfig 内存缓存配置
type MemoryCacheConfig struct {
	MaxSize         int64         `yaml:"max_size" mapstructure:"max_size"`                 // 最大条目数，0表示不限制
	DefaultTTL      time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`           // 默认生存时间
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"` // 过期清理间隔
}

// DefaultMemoryCacheConfig 默认内存缓存配置
func DefaultMemoryCacheConfig() MemoryCacheConfig {
	return MemoryCacheConfig{
		MaxSize:         1000,
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

type memoryEntry struct {
	bars       []core.Bar
	expireTime time.Time
	accessTime time.Time
}

// MemoryCache 进程内的K线缓存，带TTL和容量上限，超容时淘汰最久未访问的条目。
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	config  MemoryCacheConfig
	hits    int64
	misses  int64
	closed  bool
	stopCh  chan struct{}
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache(config MemoryCacheConfig) *MemoryCache {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = DefaultMemoryCacheConfig().DefaultTTL
	}
	mc := &MemoryCache{
		entries: make(map[string]*memoryEntry),
		config:  config,
		stopCh:  make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go mc.cleanupLoop()
	}
	return mc
}

// Get 获取缓存的K线序列
func (mc *MemoryCache) Get(ctx context.Context, code string, start, end time.Time) ([]core.Bar, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.closed {
		return nil, ErrCacheAlreadyClosed
	}

	entry, exists := mc.entries[barKey(code, start, end)]
	if !exists || time.Now().After(entry.expireTime) {
		mc.misses++
		return nil, ErrCacheMissNotFound
	}

	entry.accessTime = time.Now()
	mc.hits++
	out := make([]core.Bar, len(entry.bars))
	copy(out, entry.bars)
	return out, nil
}

// Set 缓存K线序列
func (mc *MemoryCache) Set(ctx context.Context, code string, start, end time.Time, bars []core.Bar, ttl time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.closed {
		return ErrCacheAlreadyClosed
	}
	if ttl <= 0 {
		ttl = mc.config.DefaultTTL
	}

	key := barKey(code, start, end)
	if _, exists := mc.entries[key]; !exists && mc.config.MaxSize > 0 && int64(len(mc.entries)) >= mc.config.MaxSize {
		mc.evictLRU()
	}

	stored := make([]core.Bar, len(bars))
	copy(stored, bars)
	now := time.Now()
	mc.entries[key] = &memoryEntry{
		bars:       stored,
		expireTime: now.Add(ttl),
		accessTime: now,
	}
	return nil
}

// Delete 删除一个缓存条目
func (mc *MemoryCache) Delete(ctx context.Context, code string, start, end time.Time) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.closed {
		return ErrCacheAlreadyClosed
	}
	delete(mc.entries, barKey(code, start, end))
	return nil
}

// Clear 清空所有缓存条目
func (mc *MemoryCache) Clear(ctx context.Context) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.closed {
		return ErrCacheAlreadyClosed
	}
	mc.entries = make(map[string]*memoryEntry)
	return nil
}

// Stats 返回缓存统计信息
func (mc *MemoryCache) Stats() Stats {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return Stats{
		Size:      int64(len(mc.entries)),
		MaxSize:   mc.config.MaxSize,
		HitCount:  mc.hits,
		MissCount: mc.misses,
		HitRate:   hitRate(mc.hits, mc.misses),
	}
}

// Close 关闭缓存，停止后台清理。
func (mc *MemoryCache) Close() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.closed {
		return nil
	}
	mc.closed = true
	close(mc.stopCh)
	mc.entries = make(map[string]*memoryEntry)
	return nil
}

// evictLRU 淘汰最久未访问的条目
func (mc *MemoryCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range mc.entries {
		if oldestKey == "" || entry.accessTime.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.accessTime
		}
	}
	if oldestKey != "" {
		delete(mc.entries, oldestKey)
	}
}

// cleanupLoop 周期清理过期条目
func (mc *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(mc.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.stopCh:
			return
		case <-ticker.C:
			mc.removeExpired()
		}
	}
}

func (mc *MemoryCache) removeExpired() {
	now := time.Now()
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for key, entry := range mc.entries {
		if now.After(entry.expireTime) {
			delete(mc.entries, key)
		}
	}
}

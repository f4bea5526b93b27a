// Package cache 为K线历史提供读穿缓存，减少对上游数据源的重复请求，
// 包含内存和Redis两种实现。
package cache

import (
	"context"
	"time"

	"stockanalyzer/pkg/core"
)

// BarCache 定义了按 (股票, 日期区间) 缓存K线序列的行为。
// 所有实现都必须是并发安全的。
type BarCache interface {
	// Get 获取缓存的K线序列，未命中返回 ErrCacheMissNotFound。
	Get(ctx context.Context, code string, start, end time.Time) ([]core.Bar, error)

	// Set 缓存一段K线序列，可以指定TTL（生存时间），ttl<=0 时使用实现的默认值。
	Set(ctx context.Context, code string, start, end time.Time, bars []core.Bar, ttl time.Duration) error

	// Delete 删除一个缓存条目。
	Delete(ctx context.Context, code string, start, end time.Time) error

	// Clear 清空所有缓存条目。
	Clear(ctx context.Context) error

	// Stats 获取缓存的统计信息。
	Stats() Stats

	// Close 关闭缓存并释放资源。
	Close() error
}

// Stats 缓存的统计信息。
type Stats struct {
	Size      int64   `json:"size"`       // 当前缓存中的条目数
	MaxSize   int64   `json:"max_size"`   // 缓存最大容量，0表示不限制
	HitCount  int64   `json:"hit_count"`  // 命中次数
	MissCount int64   `json:"miss_count"` // 未命中次数
	HitRate   float64 `json:"hit_rate"`   // 命中率
}

// barKey 缓存键格式: bars:<code>:<start>:<end>
func barKey(code string, start, end time.Time) string {
	return "bars:" + code + ":" + start.Format("2006-01-02") + ":" + end.Format("2006-01-02")
}

// hitRate 计算命中率
func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

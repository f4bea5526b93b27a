package decorators

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stockanalyzer/pkg/core"
	"stockanalyzer/pkg/provider"
)

// FrequencyControlProvider 频率控制装饰器
// 保证对基础数据源的相邻请求之间至少间隔 MinInterval。
type FrequencyControlProvider struct {
	*BarBaseDecorator

	minInterval time.Duration
	enabled     bool

	mu          sync.Mutex
	lastRequest time.Time
}

// FrequencyControlConfig 频率控制配置
type FrequencyControlConfig struct {
	MinInterval time.Duration `yaml:"min_interval" mapstructure:"min_interval"` // 最小请求间隔
	Enabled     bool          `yaml:"enabled" mapstructure:"enabled"`           // 是否启用
}

// DefaultFrequencyControlConfig 默认频率控制配置
func DefaultFrequencyControlConfig() *FrequencyControlConfig {
	return &FrequencyControlConfig{
		MinInterval: 200 * time.Millisecond,
		Enabled:     true,
	}
}

// NewFrequencyControlProvider 创建频率控制装饰器
func NewFrequencyControlProvider(barProvider provider.BarProvider, config *FrequencyControlConfig) *FrequencyControlProvider {
	if config == nil {
		config = DefaultFrequencyControlConfig()
	}
	return &FrequencyControlProvider{
		BarBaseDecorator: NewBarBaseDecorator(barProvider),
		minInterval:      config.MinInterval,
		enabled:          config.Enabled,
	}
}

// Name 返回装饰器名称
func (f *FrequencyControlProvider) Name() string {
	return fmt.Sprintf("FrequencyControl(%s)", f.barProvider.Name())
}

// GetRateLimit 返回频率限制
func (f *FrequencyControlProvider) GetRateLimit() time.Duration {
	return f.minInterval
}

// FetchDailyBars 实现带频率控制的K线获取
func (f *FrequencyControlProvider) FetchDailyBars(ctx context.Context, code string, start, end time.Time) ([]core.Bar, error) {
	if f.enabled {
		if err := f.wait(ctx); err != nil {
			return nil, err
		}
	}
	return f.barProvider.FetchDailyBars(ctx, code, start, end)
}

// FetchDailyBarsBatch 实现带频率控制的批量K线获取，每只股票一次请求。
func (f *FrequencyControlProvider) FetchDailyBarsBatch(ctx context.Context, codes []string, start, end time.Time) (map[string][]core.Bar, error) {
	result := make(map[string][]core.Bar, len(codes))
	for _, code := range codes {
		bars, err := f.FetchDailyBars(ctx, code, start, end)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			continue
		}
		result[code] = bars
	}
	return result, nil
}

// wait 阻塞到距上次请求至少 minInterval，等待期间响应取消。
func (f *FrequencyControlProvider) wait(ctx context.Context) error {
	f.mu.Lock()
	now := time.Now()
	next := f.lastRequest.Add(f.minInterval)
	if next.Before(now) {
		next = now
	}
	f.lastRequest = next
	f.mu.Unlock()

	delay := time.Until(next)
	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

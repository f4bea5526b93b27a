// Package provider 定义了历史K线与实时行情数据源的接口和注册管理。
package provider

import (
	"context"
	"time"

	"stockanalyzer/pkg/core"
)

// Provider 是所有数据源的基础接口。
// 它定义了所有数据源都必须具备的通用功能，如名称、健康状态和速率限制。
type Provider interface {
	// Name 返回数据源的名称，例如 "sina"。
	Name() string

	// IsHealthy 检查数据源的健康状态。
	// 如果数据源能够正常服务，则返回 true。
	IsHealthy() bool

	// GetRateLimit 返回两个连续请求之间的最小允许间隔。
	GetRateLimit() time.Duration
}

// Configurable 可配置接口
// 支持动态配置的数据源可以实现此接口
type Configurable interface {
	// SetRateLimit 设置请求频率限制
	SetRateLimit(limit time.Duration)

	// SetTimeout 设置请求超时时间
	SetTimeout(timeout time.Duration)

	// SetMaxRetries 设置最大重试次数
	SetMaxRetries(retries int)
}

// Closable 可关闭接口
// 需要清理资源的数据源应实现此接口
type Closable interface {
	// Close 关闭数据源，清理资源
	Close() error
}

// BarProvider 日线K线数据源接口。
// 实现必须保证返回的K线按日期升序且无重复日期，下游计算模块依赖这一点。
type BarProvider interface {
	Provider

	// FetchDailyBars 获取单只股票在 [start, end] 区间内的日线K线。
	// code: 股票代码，例如 "sh.600000"
	FetchDailyBars(ctx context.Context, code string, start, end time.Time) ([]core.Bar, error)

	// IsCodeSupported 检查数据源是否支持给定的股票代码。
	IsCodeSupported(code string) bool
}

// BarBatchProvider 批量日线K线数据源接口。
type BarBatchProvider interface {
	BarProvider

	// FetchDailyBarsBatch 批量获取多只股票的日线K线。
	// 单只股票的失败不中断整批，对应的键在结果中缺失。
	FetchDailyBarsBatch(ctx context.Context, codes []string, start, end time.Time) (map[string][]core.Bar, error)
}

// QuoteProvider 实时行情数据源接口，用于获取股票名称等K线不携带的信息。
type QuoteProvider interface {
	Provider

	// FetchQuotes 获取指定股票代码列表的实时行情快照。
	FetchQuotes(ctx context.Context, codes []string) ([]core.Quote, error)
}

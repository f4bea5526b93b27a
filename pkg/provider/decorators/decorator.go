// Package decorators 以装饰器模式为数据源叠加熔断、频率控制等横切能力。
package decorators

import (
	"context"
	"time"

	"stockanalyzer/pkg/core"
	"stockanalyzer/pkg/provider"
)

// Decorator 装饰器基础接口
// 所有装饰器都应该实现此接口
type Decorator interface {
	provider.Provider

	// GetBaseProvider 获取被装饰的基础数据源
	GetBaseProvider() provider.Provider
}

// BarDecorator K线数据源装饰器接口
type BarDecorator interface {
	provider.BarProvider
	Decorator
}

// BaseDecorator 装饰器基础实现
// 提供通用的装饰器功能
type BaseDecorator struct {
	base provider.Provider
}

// NewBaseDecorator 创建基础装饰器
func NewBaseDecorator(base provider.Provider) *BaseDecorator {
	return &BaseDecorator{base: base}
}

// Name 实现 Provider 接口
func (d *BaseDecorator) Name() string {
	return d.base.Name()
}

// GetRateLimit 实现 Provider 接口
func (d *BaseDecorator) GetRateLimit() time.Duration {
	return d.base.GetRateLimit()
}

// IsHealthy 实现 Provider 接口
func (d *BaseDecorator) IsHealthy() bool {
	return d.base.IsHealthy()
}

// GetBaseProvider 实现 Decorator 接口
func (d *BaseDecorator) GetBaseProvider() provider.Provider {
	return d.base
}

// BarBaseDecorator K线数据源装饰器基础实现
type BarBaseDecorator struct {
	*BaseDecorator
	barProvider provider.BarProvider
}

// NewBarBaseDecorator 创建K线基础装饰器
func NewBarBaseDecorator(barProvider provider.BarProvider) *BarBaseDecorator {
	return &BarBaseDecorator{
		BaseDecorator: NewBaseDecorator(barProvider),
		barProvider:   barProvider,
	}
}

// FetchDailyBars 实现 BarProvider 接口
func (d *BarBaseDecorator) FetchDailyBars(ctx context.Context, code string, start, end time.Time) ([]core.Bar, error) {
	return d.barProvider.FetchDailyBars(ctx, code, start, end)
}

// IsCodeSupported 实现 BarProvider 接口
func (d *BarBaseDecorator) IsCodeSupported(code string) bool {
	return d.barProvider.IsCodeSupported(code)
}

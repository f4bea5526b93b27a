package core

import "errors"

// 定义核心错误
var (
	// ErrInsufficientHistory K线数量不足，无法完成分析（MACD慢线至少需要26根K线）
	ErrInsufficientHistory = errors.New("insufficient bar history")

	// ErrEmptyJoin 分析结果日期与K线日期没有交集
	ErrEmptyJoin = errors.New("no overlapping dates between analysis results and bars")

	// ErrEmptyCodes 股票代码列表为空错误
	ErrEmptyCodes = errors.New("codes list is empty")

	// ErrInvalidCode 无效的股票代码错误
	ErrInvalidCode = errors.New("invalid stock code")

	// ErrProviderNotHealthy 数据源不健康错误
	ErrProviderNotHealthy = errors.New("provider is not healthy")

	// ErrProviderClosed 数据源已关闭错误
	ErrProviderClosed = errors.New("provider is closed")
)

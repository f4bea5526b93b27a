// Package storage 提供分析结果与绩效记录的持久化，包括内存、CSV文件和InfluxDB三种后端。
package storage

import (
	"context"
	"errors"

	"stockanalyzer/pkg/core"
)

// ErrStorageClosed 存储已关闭后继续读写
var ErrStorageClosed = errors.New("storage is closed")

// Storage 定义了分析结果与绩效记录的持久化行为。
// 所有实现都必须是并发安全的。
type Storage interface {
	// SaveResult 保存一条分析结果。
	// 相同 (股票, 日期, 策略) 的结果会被覆盖。
	SaveResult(ctx context.Context, result core.AnalysisResult) error

	// LoadResults 按查询条件加载分析结果，按 (日期, 股票代码) 升序返回。
	LoadResults(ctx context.Context, query core.Query) ([]core.AnalysisResult, error)

	// SavePerformance 保存一条绩效记录。
	SavePerformance(ctx context.Context, record core.PerformanceRecord) error

	// LoadPerformance 按查询条件加载绩效记录，按开始日期升序返回。
	LoadPerformance(ctx context.Context, query core.Query) ([]core.PerformanceRecord, error)

	// Close 关闭存储连接并释放所有资源。
	Close() error
}

// matchResult 判断分析结果是否满足查询条件
func matchResult(r core.AnalysisResult, q core.Query) bool {
	if q.Strategy != "" && r.Strategy != q.Strategy {
		return false
	}
	if len(q.Codes) > 0 && !containsCode(q.Codes, r.Code) {
		return false
	}
	if !q.StartTime.IsZero() && r.AnalysisDate.Before(q.StartTime) {
		return false
	}
	if !q.EndTime.IsZero() && r.AnalysisDate.After(q.EndTime) {
		return false
	}
	return true
}

// matchPerformance 判断绩效记录是否满足查询条件
func matchPerformance(r core.PerformanceRecord, q core.Query) bool {
	if q.Strategy != "" && r.Strategy != q.Strategy {
		return false
	}
	if !q.StartTime.IsZero() && r.EndDate.Before(q.StartTime) {
		return false
	}
	if !q.EndTime.IsZero() && r.StartDate.After(q.EndTime) {
		return false
	}
	return true
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

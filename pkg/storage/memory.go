package storage

import (
	"context"
	"sort"
	"sync"

	"stockanalyzer/pkg/core"
)

// MemoryStorage 完全在内存中实现的 Storage。
// 用于快速、无I/O的测试和单机运行，所有数据在程序结束时丢失。
type MemoryStorage struct {
	mu          sync.RWMutex
	results     map[string]core.AnalysisResult // 键为 code|date|strategy
	performance []core.PerformanceRecord
	maxRecords  int
	closed      bool
}

// MemoryStorageConfig 内存存储配置
type MemoryStorageConfig struct {
	MaxRecords int `yaml:"max_records" mapstructure:"max_records"` // 保留的最大分析结果条数，0表示不限制
}

// NewMemoryStorage 创建内存存储
func NewMemoryStorage(config MemoryStorageConfig) *MemoryStorage {
	return &MemoryStorage{
		results:    make(map[string]core.AnalysisResult),
		maxRecords: config.MaxRecords,
	}
}

// SaveResult 保存分析结果，相同 (股票, 日期, 策略) 覆盖旧值。
func (ms *MemoryStorage) SaveResult(ctx context.Context, result core.AnalysisResult) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return ErrStorageClosed
	}

	key := result.Code + "|" + result.AnalysisDate.Format("2006-01-02") + "|" + result.Strategy
	if _, exists := ms.results[key]; !exists && ms.maxRecords > 0 && len(ms.results) >= ms.maxRecords {
		ms.evictOldest()
	}
	ms.results[key] = result
	return nil
}

// LoadResults 按查询条件加载分析结果
func (ms *MemoryStorage) LoadResults(ctx context.Context, query core.Query) ([]core.AnalysisResult, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if ms.closed {
		return nil, ErrStorageClosed
	}

	out := make([]core.AnalysisResult, 0)
	for _, r := range ms.results {
		if matchResult(r, query) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].AnalysisDate.Equal(out[b].AnalysisDate) {
			return out[a].AnalysisDate.Before(out[b].AnalysisDate)
		}
		return out[a].Code < out[b].Code
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

// SavePerformance 保存绩效记录
func (ms *MemoryStorage) SavePerformance(ctx context.Context, record core.PerformanceRecord) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return ErrStorageClosed
	}
	ms.performance = append(ms.performance, record)
	return nil
}

// LoadPerformance 按查询条件加载绩效记录
func (ms *MemoryStorage) LoadPerformance(ctx context.Context, query core.Query) ([]core.PerformanceRecord, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if ms.closed {
		return nil, ErrStorageClosed
	}

	out := make([]core.PerformanceRecord, 0)
	for _, r := range ms.performance {
		if matchPerformance(r, query) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].StartDate.Before(out[b].StartDate)
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

// Close 关闭存储
func (ms *MemoryStorage) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.closed = true
	ms.results = make(map[string]core.AnalysisResult)
	ms.performance = nil
	return nil
}

// evictOldest 淘汰分析日期最早的一条结果
func (ms *MemoryStorage) evictOldest() {
	var oldestKey string
	for key, r := range ms.results {
		if oldestKey == "" || r.AnalysisDate.Before(ms.results[oldestKey].AnalysisDate) {
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(ms.results, oldestKey)
	}
}

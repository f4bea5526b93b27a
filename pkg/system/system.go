// Package system 按配置组装数据源、缓存、存储、分析引擎、更新器和API服务，
// 并提供面向调用方的门面方法。
package system

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"stockanalyzer/pkg/analysis"
	"stockanalyzer/pkg/api"
	"stockanalyzer/pkg/cache"
	"stockanalyzer/pkg/config"
	"stockanalyzer/pkg/core"
	"stockanalyzer/pkg/evaluator"
	"stockanalyzer/pkg/indicator"
	"stockanalyzer/pkg/logger"
	"stockanalyzer/pkg/provider"
	"stockanalyzer/pkg/provider/decorators"
	"stockanalyzer/pkg/provider/sina"
	"stockanalyzer/pkg/report"
	"stockanalyzer/pkg/storage"
	"stockanalyzer/pkg/updater"
	"stockanalyzer/pkg/validator"
)

// Options 组装选项，控制可选组件是否启用。
type Options struct {
	Codes     []string // 更新器的目标股票池
	EnableAPI bool     // 是否启动HTTP服务
	EnableJob bool     // 是否启动定时更新
}

// System 股票分析系统
type System struct {
	cfg       *config.Config
	manager   *provider.Manager
	barCache  cache.BarCache
	store     storage.Storage
	engine    *analysis.Engine
	evaluator *evaluator.Evaluator
	reporter  *report.Generator
	checker   *validator.Validator
	updater   *updater.Updater
	apiServer *api.Server
	log       *logrus.Entry
}

// New 按配置组装系统。返回前所有外部连接（Redis、InfluxDB）都已校验可用。
func New(ctx context.Context, cfg *config.Config, opts Options) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &System{
		cfg:       cfg,
		engine:    analysis.NewEngine(cfg.Analysis),
		evaluator: evaluator.New(cfg.Evaluator),
		reporter:  report.NewGenerator(),
		checker:   validator.New(),
		log:       logger.WithComponent("System"),
	}

	s.manager = provider.NewManager()
	s.manager.Register(s.buildProvider())

	var err error
	if s.barCache, err = s.buildCache(ctx); err != nil {
		return nil, err
	}
	if s.store, err = s.buildStorage(ctx); err != nil {
		return nil, err
	}

	barProvider, err := s.manager.BarProvider()
	if err != nil {
		return nil, err
	}
	batch, ok := barProvider.(provider.BarBatchProvider)
	if !ok {
		return nil, fmt.Errorf("provider %s does not support batch fetching", barProvider.Name())
	}

	s.updater = updater.New(updater.Config{
		Schedule:     cfg.Updater.Schedule,
		Codes:        opts.Codes,
		SampleSize:   cfg.Updater.SampleSize,
		HistoryDays:  cfg.Updater.HistoryDays,
		RecentWindow: cfg.Updater.RecentWindow,
	}, batch, s.barCache, s.engine, s.store)

	if opts.EnableAPI {
		s.apiServer = api.NewServer(api.Config{
			Port: cfg.API.Port,
			Mode: cfg.API.Mode,
		}, s.store, s.updater)
	}

	if opts.EnableJob {
		if err := s.updater.Start(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// buildProvider 组装带熔断和频率控制的数据源链。
func (s *System) buildProvider() provider.BarBatchProvider {
	base := sina.NewProvider()
	base.SetTimeout(s.cfg.Provider.Timeout)
	base.SetRateLimit(s.cfg.Provider.RateLimit)
	base.SetMaxRetries(s.cfg.Provider.MaxRetries)

	breaker := decorators.NewCircuitBreakerProvider(base, nil)
	return decorators.NewFrequencyControlProvider(breaker, &decorators.FrequencyControlConfig{
		MinInterval: s.cfg.Provider.RateLimit,
		Enabled:     true,
	})
}

func (s *System) buildCache(ctx context.Context) (cache.BarCache, error) {
	switch s.cfg.Cache.Type {
	case "redis":
		return cache.NewRedisCache(ctx, cache.RedisCacheConfig{
			Addr:       s.cfg.Cache.Redis.Addr,
			Password:   s.cfg.Cache.Redis.Password,
			DB:         s.cfg.Cache.Redis.DB,
			DefaultTTL: s.cfg.Cache.DefaultTTL,
		})
	default:
		return cache.NewMemoryCache(cache.MemoryCacheConfig{
			MaxSize:         s.cfg.Cache.MaxSize,
			DefaultTTL:      s.cfg.Cache.DefaultTTL,
			CleanupInterval: s.cfg.Cache.CleanupInterval,
		}), nil
	}
}

func (s *System) buildStorage(ctx context.Context) (storage.Storage, error) {
	switch s.cfg.Storage.Type {
	case "csv":
		return storage.NewCSVStorage(s.cfg.Storage.Directory)
	case "influxdb":
		return storage.NewInfluxDBStorage(ctx, storage.InfluxDBConfig{
			URL:    s.cfg.Storage.InfluxDB.URL,
			Token:  s.cfg.Storage.InfluxDB.Token,
			Org:    s.cfg.Storage.InfluxDB.Org,
			Bucket: s.cfg.Storage.InfluxDB.Bucket,
		})
	default:
		return storage.NewMemoryStorage(storage.MemoryStorageConfig{
			MaxRecords: s.cfg.Storage.MaxSize,
		}), nil
	}
}

// Start 启动已启用的后台组件。
func (s *System) Start() error {
	if s.apiServer != nil {
		if err := s.apiServer.Start(); err != nil {
			return err
		}
	}
	s.log.Info("系统启动完成")
	return nil
}

// Stop 按依赖顺序停止全部组件。
func (s *System) Stop() {
	if s.apiServer != nil {
		s.apiServer.Stop()
	}
	s.updater.Stop()
	if err := s.barCache.Close(); err != nil {
		s.log.WithError(err).Warn("关闭缓存失败")
	}
	if err := s.store.Close(); err != nil {
		s.log.WithError(err).Warn("关闭存储失败")
	}
	if err := s.manager.Close(); err != nil {
		s.log.WithError(err).Warn("关闭数据源失败")
	}
	s.log.Info("系统已停止")
}

// Updater 返回更新器
func (s *System) Updater() *updater.Updater {
	return s.updater
}

// Storage 返回存储
func (s *System) Storage() storage.Storage {
	return s.store
}

// AnalyzeStock 拉取单只股票最近 historyDays 天的K线并执行完整分析。
func (s *System) AnalyzeStock(ctx context.Context, code string, historyDays int) (*core.AnalysisResult, error) {
	bars, err := s.FetchBars(ctx, code, historyDays)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Analyze(bars)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveResult(ctx, *result); err != nil {
		s.log.WithError(err).Warnf("保存股票 %s 的分析结果失败", code)
	}
	return result, nil
}

// FetchBars 拉取并清洗单只股票最近 historyDays 天的K线，优先命中缓存。
func (s *System) FetchBars(ctx context.Context, code string, historyDays int) ([]core.Bar, error) {
	end := time.Now()
	return s.fetchBarsBetween(ctx, code, end.AddDate(0, 0, -historyDays), end)
}

// fetchBarsBetween 拉取并清洗 [start, end] 区间内的K线，优先命中缓存。
func (s *System) fetchBarsBetween(ctx context.Context, code string, start, end time.Time) ([]core.Bar, error) {
	if bars, err := s.barCache.Get(ctx, code, start, end); err == nil {
		return bars, nil
	}

	barProvider, err := s.manager.BarProvider()
	if err != nil {
		return nil, err
	}
	raw, err := barProvider.FetchDailyBars(ctx, code, start, end)
	if err != nil {
		return nil, err
	}

	bars, cleanReport := s.checker.Clean(raw)
	if cleanReport.Dropped > 0 {
		s.log.Warnf("股票 %s 清洗后剔除 %d 条K线", code, cleanReport.Dropped)
	}
	if err := s.barCache.Set(ctx, code, start, end, bars, 0); err != nil {
		s.log.WithError(err).Debugf("缓存股票 %s 的K线失败", code)
	}
	return bars, nil
}

// WriteReport 为单只股票生成Markdown分析报告。
func (s *System) WriteReport(ctx context.Context, dir, code string, historyDays int) (string, error) {
	bars, err := s.FetchBars(ctx, code, historyDays)
	if err != nil {
		return "", err
	}
	result, err := s.engine.Analyze(bars)
	if err != nil {
		return "", err
	}
	points := indicator.Calculate(bars, s.cfg.Analysis.Indicator)
	return s.reporter.WriteStockReport(dir, *result, bars, points)
}

// EvaluateStrategy 评估一个策略在窗口内的绩效并保存记录。
func (s *System) EvaluateStrategy(ctx context.Context, strategy string, start, end time.Time) (*core.PerformanceRecord, error) {
	results, err := s.store.LoadResults(ctx, core.Query{
		Strategy:  strategy,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		return nil, err
	}

	codes := make(map[string]struct{})
	for _, r := range results {
		codes[r.Code] = struct{}{}
	}
	bars := make(map[string][]core.Bar, len(codes))
	for code := range codes {
		history, err := s.fetchBarsBetween(ctx, code, start, end)
		if err != nil {
			s.log.WithError(err).Warnf("拉取股票 %s 的K线失败，评估时跳过", code)
			continue
		}
		bars[code] = history
	}

	record, err := s.evaluator.Evaluate(strategy, results, bars, start, end)
	if err != nil {
		return nil, err
	}
	if err := s.store.SavePerformance(ctx, *record); err != nil {
		s.log.WithError(err).Warn("保存绩效记录失败")
	}
	return record, nil
}

// CompareStrategies 评估多个策略并生成对比报告。
func (s *System) CompareStrategies(ctx context.Context, strategies []string, start, end time.Time) (string, error) {
	records := make([]core.PerformanceRecord, 0, len(strategies))
	for _, strategy := range strategies {
		record, err := s.EvaluateStrategy(ctx, strategy, start, end)
		if err != nil {
			s.log.WithError(err).Warnf("评估策略 %s 失败，对比时跳过", strategy)
			continue
		}
		records = append(records, *record)
	}

	comparison := s.evaluator.Compare(records)
	return comparison.Markdown(start, end), nil
}

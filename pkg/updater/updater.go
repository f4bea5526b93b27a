// Package updater 负责定时拉取K线、清洗校验、批量分析并持久化结果，
// 同时维护每次更新任务的状态记录。
package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"stockanalyzer/pkg/analysis"
	"stockanalyzer/pkg/cache"
	"stockanalyzer/pkg/core"
	"stockanalyzer/pkg/logger"
	"stockanalyzer/pkg/provider"
	"stockanalyzer/pkg/sampling"
	"stockanalyzer/pkg/storage"
	"stockanalyzer/pkg/validator"
)

// ErrUpdateInProgress 已有更新任务在执行
var ErrUpdateInProgress = errors.New("another update is already in progress")

// Config 更新器配置
type Config struct {
	Schedule     string   `json:"schedule" mapstructure:"schedule"`           // cron表达式（含秒字段）
	Codes        []string `json:"codes" mapstructure:"codes"`                 // 目标股票池
	SampleSize   int      `json:"sample_size" mapstructure:"sample_size"`     // 抽样数量，0表示全量
	HistoryDays  int      `json:"history_days" mapstructure:"history_days"`   // 拉取的历史天数
	RecentWindow int      `json:"recent_window" mapstructure:"recent_window"` // 保留的任务记录数
}

// Updater 数据更新器。同一时刻只允许一个更新任务执行。
type Updater struct {
	cfg      Config
	provider provider.BarBatchProvider
	barCache cache.BarCache
	checker  *validator.Validator
	engine   *analysis.Engine
	sampler  *sampling.Sampler
	store    storage.Storage
	cron     *cron.Cron
	log      *logrus.Entry

	mu      sync.Mutex
	running bool
	tasks   []*Task
}

// New 创建更新器。barCache 可以为 nil，表示不启用缓存。
func New(cfg Config, p provider.BarBatchProvider, barCache cache.BarCache, engine *analysis.Engine, store storage.Storage) *Updater {
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 365
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = 50
	}
	return &Updater{
		cfg:      cfg,
		provider: p,
		barCache: barCache,
		checker:  validator.New(),
		engine:   engine,
		sampler:  sampling.New(time.Now().UnixNano()),
		store:    store,
		cron:     cron.New(cron.WithSeconds()),
		log:      logger.WithComponent("Updater"),
	}
}

// Start 按配置的cron表达式启动定时更新。
func (u *Updater) Start() error {
	_, err := u.cron.AddFunc(u.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()

		if _, err := u.RunOnce(ctx, "scheduled"); err != nil {
			if errors.Is(err, ErrUpdateInProgress) {
				u.log.Warn("上一轮更新尚未结束，跳过本次调度")
				return
			}
			u.log.WithError(err).Error("定时更新失败")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", u.cfg.Schedule, err)
	}

	u.cron.Start()
	u.log.Infof("更新器已启动，调度表达式: %s", u.cfg.Schedule)
	return nil
}

// Stop 停止定时调度并等待执行中的任务结束。
func (u *Updater) Stop() {
	ctx := u.cron.Stop()
	select {
	case <-ctx.Done():
		u.log.Info("更新器已停止")
	case <-time.After(30 * time.Second):
		u.log.Warn("更新器停止超时")
	}
}

// RunOnce 执行一轮完整的更新：抽样、拉取、清洗、分析、入库。
// 已有任务在执行时返回 ErrUpdateInProgress。
func (u *Updater) RunOnce(ctx context.Context, trigger string) (*Task, error) {
	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		return nil, ErrUpdateInProgress
	}
	u.running = true

	task := &Task{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		Status:    TaskStatusRunning,
		StartedAt: time.Now(),
	}
	u.appendTask(task)
	u.mu.Unlock()

	defer func() {
		u.mu.Lock()
		u.running = false
		u.mu.Unlock()
	}()

	u.log.Infof("更新任务 %s 开始，触发方式: %s", task.ID, trigger)
	err := u.execute(ctx, task)

	now := time.Now()
	u.mu.Lock()
	task.FinishedAt = &now
	switch {
	case err != nil:
		task.Status = TaskStatusFailed
		task.Error = err.Error()
	case task.Skipped > 0 || task.Failed > 0:
		task.Status = TaskStatusPartial
	default:
		task.Status = TaskStatusSuccess
	}
	u.mu.Unlock()

	if err != nil {
		u.log.WithError(err).Errorf("更新任务 %s 失败", task.ID)
		return task, err
	}
	u.log.Infof("更新任务 %s 完成，分析 %d，跳过 %d，失败 %d",
		task.ID, task.Analyzed, task.Skipped, task.Failed)
	return task, nil
}

// execute 执行更新的各个阶段，进度写回 task。
func (u *Updater) execute(ctx context.Context, task *Task) error {
	codes := u.cfg.Codes
	if len(codes) == 0 {
		return core.ErrEmptyCodes
	}

	if u.cfg.SampleSize > 0 && u.cfg.SampleSize < len(codes) {
		sampled, err := u.sampler.Stratified(codes, u.cfg.SampleSize)
		if err != nil {
			return fmt.Errorf("sample codes failed: %w", err)
		}
		codes = sampled
	}

	u.mu.Lock()
	task.Total = len(codes)
	u.mu.Unlock()

	end := time.Now()
	start := end.AddDate(0, 0, -u.cfg.HistoryDays)

	histories, err := u.fetchHistories(ctx, codes, start, end)
	if err != nil {
		return err
	}

	outcome := u.engine.BatchAnalyze(ctx, histories)

	saved := 0
	for code, result := range outcome.Results {
		if err := u.store.SaveResult(ctx, *result); err != nil {
			u.log.WithError(err).Errorf("保存股票 %s 的分析结果失败", code)
			outcome.Failed++
			continue
		}
		saved++
	}

	u.mu.Lock()
	task.Analyzed = saved
	task.Skipped = outcome.Skipped + (len(codes) - len(histories))
	task.Failed = outcome.Failed
	u.mu.Unlock()
	return nil
}

// fetchHistories 拉取股票池的K线历史，优先命中缓存，清洗后写回缓存。
func (u *Updater) fetchHistories(ctx context.Context, codes []string, start, end time.Time) (map[string][]core.Bar, error) {
	histories := make(map[string][]core.Bar, len(codes))
	var missed []string

	if u.barCache != nil {
		for _, code := range codes {
			bars, err := u.barCache.Get(ctx, code, start, end)
			if err == nil {
				histories[code] = bars
				continue
			}
			missed = append(missed, code)
		}
	} else {
		missed = codes
	}

	if len(missed) == 0 {
		return histories, nil
	}

	fetched, err := u.provider.FetchDailyBarsBatch(ctx, missed, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch daily bars failed: %w", err)
	}

	for code, bars := range fetched {
		clean, report := u.checker.Clean(bars)
		if report.Dropped > 0 {
			u.log.Warnf("股票 %s 清洗后剔除 %d 条K线", code, report.Dropped)
		}
		if len(clean) == 0 {
			continue
		}
		histories[code] = clean

		if u.barCache != nil {
			if err := u.barCache.Set(ctx, code, start, end, clean, 0); err != nil {
				u.log.WithError(err).Debugf("缓存股票 %s 的K线失败", code)
			}
		}
	}
	return histories, nil
}

// Tasks 返回最近的任务记录，新任务在前。
func (u *Updater) Tasks() []*Task {
	u.mu.Lock()
	defer u.mu.Unlock()

	out := make([]*Task, len(u.tasks))
	for i, t := range u.tasks {
		copied := *t
		out[len(u.tasks)-1-i] = &copied
	}
	return out
}

// CurrentTask 返回执行中的任务，没有时返回 nil。
func (u *Updater) CurrentTask() *Task {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.running || len(u.tasks) == 0 {
		return nil
	}
	latest := *u.tasks[len(u.tasks)-1]
	return &latest
}

// appendTask 追加任务记录并裁剪到保留窗口，调用方必须持有锁。
func (u *Updater) appendTask(task *Task) {
	u.tasks = append(u.tasks, task)
	if len(u.tasks) > u.cfg.RecentWindow {
		u.tasks = u.tasks[len(u.tasks)-u.cfg.RecentWindow:]
	}
}

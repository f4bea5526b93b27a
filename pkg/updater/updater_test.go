package updater

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockanalyzer/pkg/analysis"
	"stockanalyzer/pkg/cache"
	"stockanalyzer/pkg/core"
	"stockanalyzer/pkg/storage"
)

// fakeBatchProvider 返回预置历史的批量数据源
type fakeBatchProvider struct {
	mu        sync.Mutex
	histories map[string][]core.Bar
	calls     int
	block     chan struct{} // 非nil时在请求中阻塞，用于模拟长任务
}

func (f *fakeBatchProvider) Name() string                { return "fake" }
func (f *fakeBatchProvider) IsHealthy() bool             { return true }
func (f *fakeBatchProvider) GetRateLimit() time.Duration { return 0 }
func (f *fakeBatchProvider) IsCodeSupported(string) bool { return true }

func (f *fakeBatchProvider) FetchDailyBars(ctx context.Context, code string, start, end time.Time) ([]core.Bar, error) {
	return f.histories[code], nil
}

func (f *fakeBatchProvider) FetchDailyBarsBatch(ctx context.Context, codes []string, start, end time.Time) (map[string][]core.Bar, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	out := make(map[string][]core.Bar, len(codes))
	for _, code := range codes {
		if bars, exists := f.histories[code]; exists {
			out[code] = bars
		}
	}
	return out, nil
}

func (f *fakeBatchProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func history(code string, n int) []core.Bar {
	bars := make([]core.Bar, n)
	date := time.Now().AddDate(0, 0, -n)
	price := 10.0
	for i := range bars {
		bars[i] = core.Bar{
			Date:   date.AddDate(0, 0, i),
			Code:   code,
			Open:   price * 0.999,
			High:   price * 1.01,
			Low:    price * 0.99,
			Close:  price,
			Volume: 10000,
		}
		if i%2 == 0 {
			price *= 1.01
		} else {
			price *= 0.99
		}
	}
	return bars
}

func newTestUpdater(cfg Config, p *fakeBatchProvider, barCache cache.BarCache) (*Updater, *storage.MemoryStorage) {
	store := storage.NewMemoryStorage(storage.MemoryStorageConfig{})
	engine := analysis.NewEngine(analysis.DefaultConfig())
	return New(cfg, p, barCache, engine, store), store
}

func TestRunOnceSuccess(t *testing.T) {
	p := &fakeBatchProvider{histories: map[string][]core.Bar{
		"sh.600000": history("sh.600000", 60),
		"sz.000001": history("sz.000001", 60),
	}}
	u, store := newTestUpdater(Config{Codes: []string{"sh.600000", "sz.000001"}}, p, nil)
	defer store.Close()

	task, err := u.RunOnce(context.Background(), "manual")
	require.NoError(t, err)
	require.NotNil(t, task)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "manual", task.Trigger)
	assert.Equal(t, TaskStatusSuccess, task.Status)
	assert.True(t, task.Done())
	assert.Equal(t, 2, task.Total)
	assert.Equal(t, 2, task.Analyzed)
	assert.Zero(t, task.Skipped)
	assert.NotNil(t, task.FinishedAt)

	results, err := store.LoadResults(context.Background(), core.Query{})
	require.NoError(t, err)
	assert.Len(t, results, 2, "分析结果应该全部入库")
}

func TestRunOncePartial(t *testing.T) {
	p := &fakeBatchProvider{histories: map[string][]core.Bar{
		"sh.600000": history("sh.600000", 60),
		"sz.000001": history("sz.000001", 5), // 历史不足，分析时被跳过
	}}
	u, store := newTestUpdater(Config{Codes: []string{"sh.600000", "sz.000001", "sh.600519"}}, p, nil)
	defer store.Close()

	task, err := u.RunOnce(context.Background(), "manual")
	require.NoError(t, err)

	assert.Equal(t, TaskStatusPartial, task.Status, "有跳过时任务状态应该是partial")
	assert.Equal(t, 1, task.Analyzed)
	assert.Equal(t, 2, task.Skipped, "历史不足和拉取无数据的股票都计入跳过")
}

func TestRunOnceEmptyCodes(t *testing.T) {
	p := &fakeBatchProvider{}
	u, store := newTestUpdater(Config{}, p, nil)
	defer store.Close()

	task, err := u.RunOnce(context.Background(), "manual")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmptyCodes)
	require.NotNil(t, task)
	assert.Equal(t, TaskStatusFailed, task.Status)
	assert.NotEmpty(t, task.Error)
}

func TestRunOnceSingleFlight(t *testing.T) {
	block := make(chan struct{})
	p := &fakeBatchProvider{
		histories: map[string][]core.Bar{"sh.600000": history("sh.600000", 60)},
		block:     block,
	}
	u, store := newTestUpdater(Config{Codes: []string{"sh.600000"}}, p, nil)
	defer store.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = u.RunOnce(context.Background(), "manual")
	}()

	// 等第一个任务进入执行状态
	require.Eventually(t, func() bool {
		return u.CurrentTask() != nil
	}, time.Second, 5*time.Millisecond)

	_, err := u.RunOnce(context.Background(), "manual")
	assert.ErrorIs(t, err, ErrUpdateInProgress, "并发的第二个任务应该被拒绝")

	close(block)
	<-done

	assert.Nil(t, u.CurrentTask(), "任务结束后不应该再有执行中的任务")
}

func TestRunOnceUsesSample(t *testing.T) {
	histories := make(map[string][]core.Bar)
	var codes []string
	for _, code := range []string{"sh.600000", "sh.600036", "sz.000001", "sz.000002"} {
		histories[code] = history(code, 60)
		codes = append(codes, code)
	}
	p := &fakeBatchProvider{histories: histories}
	u, store := newTestUpdater(Config{Codes: codes, SampleSize: 2}, p, nil)
	defer store.Close()

	task, err := u.RunOnce(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, 2, task.Total, "启用抽样时只处理抽中的股票")
	assert.Equal(t, 2, task.Analyzed)
}

func TestFetchHistoriesUsesCache(t *testing.T) {
	p := &fakeBatchProvider{histories: map[string][]core.Bar{
		"sh.600000": history("sh.600000", 60),
	}}
	barCache := cache.NewMemoryCache(cache.MemoryCacheConfig{DefaultTTL: time.Minute})
	defer barCache.Close()

	u, store := newTestUpdater(Config{Codes: []string{"sh.600000"}}, p, barCache)
	defer store.Close()

	_, err := u.RunOnce(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, 1, p.callCount())

	// 第二轮在同一K线区间内命中缓存，不再请求数据源
	_, err = u.RunOnce(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, 1, p.callCount(), "缓存命中时不应该再请求上游")
}

func TestTasksRecentWindow(t *testing.T) {
	p := &fakeBatchProvider{histories: map[string][]core.Bar{
		"sh.600000": history("sh.600000", 60),
	}}
	u, store := newTestUpdater(Config{Codes: []string{"sh.600000"}, RecentWindow: 2}, p, nil)
	defer store.Close()

	for i := 0; i < 4; i++ {
		_, err := u.RunOnce(context.Background(), "manual")
		require.NoError(t, err)
	}

	tasks := u.Tasks()
	require.Len(t, tasks, 2, "任务记录应该裁剪到保留窗口")
	// 新任务在前
	assert.False(t, tasks[0].StartedAt.Before(tasks[1].StartedAt))
}

func TestStartInvalidSchedule(t *testing.T) {
	p := &fakeBatchProvider{}
	u, store := newTestUpdater(Config{Schedule: "not-a-cron", Codes: []string{"sh.600000"}}, p, nil)
	defer store.Close()

	assert.Error(t, u.Start(), "非法的cron表达式应该在启动时报错")
}

func TestStartAndStop(t *testing.T) {
	p := &fakeBatchProvider{histories: map[string][]core.Bar{
		"sh.600000": history("sh.600000", 60),
	}}
	u, store := newTestUpdater(Config{
		Schedule: "0 30 17 * * 1-5",
		Codes:    []string{"sh.600000"},
	}, p, nil)
	defer store.Close()

	require.NoError(t, u.Start())
	u.Stop()
}

package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockanalyzer/pkg/core"
	"stockanalyzer/pkg/signal"
)

func makeBars(code string, closes []float64) []core.Bar {
	bars := make([]core.Bar, len(closes))
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = core.Bar{
			Date:   date.AddDate(0, 0, i),
			Code:   code,
			Open:   c * 0.995,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 50000,
		}
	}
	return bars
}

// alternatingCloses 构造逐日交替涨跌1%的收盘价序列
func alternatingCloses(n int) []float64 {
	closes := make([]float64, n)
	price := 10.0
	for i := range closes {
		closes[i] = price
		if i%2 == 0 {
			price *= 1.01
		} else {
			price *= 0.99
		}
	}
	return closes
}

func TestAnalyzeInsufficientHistory(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	_, err := engine.Analyze(makeBars("sh.600000", alternatingCloses(25)))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInsufficientHistory, "少于26根K线应该返回历史不足错误")

	_, err = engine.Analyze(nil)
	assert.ErrorIs(t, err, core.ErrInsufficientHistory)
}

func TestAnalyzeMinimalWindow(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	result, err := engine.Analyze(makeBars("sh.600000", alternatingCloses(30)))
	require.NoError(t, err, "30根交替涨跌的K线应该能完成分析")
	require.NotNil(t, result)

	assert.Equal(t, "sh.600000", result.Code)
	assert.Equal(t, DefaultStrategy, result.Strategy)
	assert.GreaterOrEqual(t, result.Score, 0)
	assert.LessOrEqual(t, result.Score, 100)
	assert.Len(t, result.Signals, 5, "结果应该包含5个指标族的信号")
	assert.NotEmpty(t, result.Rating)
	assert.NotEmpty(t, result.RiskLevel)
}

func TestAnalyzeDeterministic(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	bars := makeBars("sz.000001", alternatingCloses(60))

	first, err := engine.Analyze(bars)
	require.NoError(t, err)
	second, err := engine.Analyze(bars)
	require.NoError(t, err)
	assert.Equal(t, first, second, "相同窗口应该产出完全一致的结果")
}

func TestScoreWeighting(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	t.Run("全买入封顶100", func(t *testing.T) {
		signals := signal.Set{
			core.FamilyMACD:      core.SignalBuy,
			core.FamilyRSI:       core.SignalBuy,
			core.FamilyKDJ:       core.SignalBuy,
			core.FamilyBollinger: core.SignalBuy,
			core.FamilyMA:        core.SignalBuy,
		}
		assert.Equal(t, 100, engine.Score(signals), "50+100 应该被截断到100")
	})

	t.Run("全卖出触底0", func(t *testing.T) {
		signals := signal.Set{
			core.FamilyMACD:      core.SignalSell,
			core.FamilyRSI:       core.SignalSell,
			core.FamilyKDJ:       core.SignalSell,
			core.FamilyBollinger: core.SignalSell,
			core.FamilyMA:        core.SignalSell,
		}
		assert.Equal(t, 0, engine.Score(signals))
	})

	t.Run("全持有保持基准", func(t *testing.T) {
		signals := signal.Set{
			core.FamilyMACD:      core.SignalHold,
			core.FamilyRSI:       core.SignalHold,
			core.FamilyKDJ:       core.SignalHold,
			core.FamilyBollinger: core.SignalHold,
			core.FamilyMA:        core.SignalHold,
		}
		assert.Equal(t, 50, engine.Score(signals))
	})

	t.Run("买卖混合按权重加减", func(t *testing.T) {
		signals := signal.Set{
			core.FamilyMACD: core.SignalBuy,  // +25
			core.FamilyRSI:  core.SignalSell, // -20
			core.FamilyKDJ:  core.SignalHold,
		}
		assert.Equal(t, 55, engine.Score(signals))
	})

	t.Run("未知指标族权重为10", func(t *testing.T) {
		signals := signal.Set{"momentum": core.SignalBuy}
		assert.Equal(t, 60, engine.Score(signals))
	})
}

func TestDetermineRatingBoundaries(t *testing.T) {
	cases := []struct {
		score    int
		expected core.Rating
	}{
		{100, core.RatingBuy},
		{70, core.RatingBuy},
		{69, core.RatingHold},
		{50, core.RatingHold},
		{31, core.RatingHold},
		{30, core.RatingSell},
		{0, core.RatingSell},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, DetermineRating(tc.score), "评分 %d 的评级不符", tc.score)
	}
}

func TestRiskLevelByVolatility(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	t.Run("低波动为低风险", func(t *testing.T) {
		closes := make([]float64, 40)
		price := 10.0
		for i := range closes {
			closes[i] = price
			price *= 1.0002
		}
		result, err := engine.Analyze(makeBars("sh.600000", closes))
		require.NoError(t, err)
		assert.Equal(t, core.RiskLow, result.RiskLevel)
	})

	t.Run("高波动为高风险", func(t *testing.T) {
		closes := make([]float64, 40)
		price := 10.0
		for i := range closes {
			closes[i] = price
			if i%2 == 0 {
				price *= 1.06
			} else {
				price *= 0.94
			}
		}
		result, err := engine.Analyze(makeBars("sh.600000", closes))
		require.NoError(t, err)
		assert.Equal(t, core.RiskHigh, result.RiskLevel)
	})
}

func TestExpectedReturnAnnualized(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	// 每日恒定上涨0.1%，预期年化应接近 0.001*252
	closes := make([]float64, 40)
	price := 10.0
	for i := range closes {
		closes[i] = price
		price *= 1.001
	}
	result, err := engine.Analyze(makeBars("sh.600000", closes))
	require.NoError(t, err)
	assert.InDelta(t, 0.001*252, result.ExpectedReturn, 1e-6)
}

func TestBatchAnalyze(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	histories := map[string][]core.Bar{
		"sh.600000": makeBars("sh.600000", alternatingCloses(40)),
		"sz.000001": makeBars("sz.000001", alternatingCloses(30)),
		"sh.600519": makeBars("sh.600519", alternatingCloses(10)), // 历史不足
	}

	outcome := engine.BatchAnalyze(context.Background(), histories)
	require.NotNil(t, outcome)
	assert.Len(t, outcome.Results, 2, "两只股票应该分析成功")
	assert.Equal(t, 1, outcome.Skipped, "历史不足的股票应该被跳过")
	assert.Equal(t, 0, outcome.Failed)
	assert.Contains(t, outcome.Results, "sh.600000")
	assert.NotContains(t, outcome.Results, "sh.600519")
}

func TestBatchAnalyzeCancelled(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := engine.BatchAnalyze(ctx, map[string][]core.Bar{
		"sh.600000": makeBars("sh.600000", alternatingCloses(40)),
	})
	require.NotNil(t, outcome)
	assert.Empty(t, outcome.Results, "已取消的上下文不应该再分析新股票")
}

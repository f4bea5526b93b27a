package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockanalyzer/pkg/core"
	"stockanalyzer/pkg/indicator"
)

func valid(v float64) indicator.Value {
	return indicator.Value{Float64: v, Valid: true}
}

func TestMACDCrossover(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	t.Run("金叉买入", func(t *testing.T) {
		points := []indicator.Point{
			{DIF: valid(-0.1), DEA: valid(0.1)},
			{DIF: valid(0.2), DEA: valid(0.1)},
		}
		assert.Equal(t, core.SignalBuy, engine.MACD(points))
	})

	t.Run("死叉卖出", func(t *testing.T) {
		points := []indicator.Point{
			{DIF: valid(0.3), DEA: valid(0.1)},
			{DIF: valid(0.05), DEA: valid(0.1)},
		}
		assert.Equal(t, core.SignalSell, engine.MACD(points))
	})

	t.Run("无交叉持有", func(t *testing.T) {
		points := []indicator.Point{
			{DIF: valid(0.3), DEA: valid(0.1)},
			{DIF: valid(0.4), DEA: valid(0.2)},
		}
		assert.Equal(t, core.SignalHold, engine.MACD(points))
	})

	t.Run("触碰后回到同侧不算交叉", func(t *testing.T) {
		points := []indicator.Point{
			{DIF: valid(0.1), DEA: valid(0.1)},
			{DIF: valid(0.2), DEA: valid(0.1)},
		}
		assert.Equal(t, core.SignalHold, engine.MACD(points))
	})

	t.Run("任一操作数未定义时持有", func(t *testing.T) {
		points := []indicator.Point{
			{DIF: indicator.Value{}, DEA: valid(0.1)},
			{DIF: valid(0.2), DEA: valid(0.1)},
		}
		assert.Equal(t, core.SignalHold, engine.MACD(points))
	})

	t.Run("点数不足持有", func(t *testing.T) {
		assert.Equal(t, core.SignalHold, engine.MACD(nil))
		assert.Equal(t, core.SignalHold, engine.MACD([]indicator.Point{{}}))
	})
}

func TestKDJCrossover(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	points := []indicator.Point{
		{K: valid(20), D: valid(30)},
		{K: valid(35), D: valid(30)},
	}
	assert.Equal(t, core.SignalBuy, engine.KDJ(points))

	points = []indicator.Point{
		{K: valid(80), D: valid(70)},
		{K: valid(60), D: valid(70)},
	}
	assert.Equal(t, core.SignalSell, engine.KDJ(points))
}

func TestMACrossover(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	points := []indicator.Point{
		{MA: map[int]indicator.Value{5: valid(9.8), 20: valid(10)}},
		{MA: map[int]indicator.Value{5: valid(10.2), 20: valid(10)}},
	}
	assert.Equal(t, core.SignalBuy, engine.MA(points))

	// 长周期均线未定义时持有
	points = []indicator.Point{
		{MA: map[int]indicator.Value{5: valid(9.8)}},
		{MA: map[int]indicator.Value{5: valid(10.2)}},
	}
	assert.Equal(t, core.SignalHold, engine.MA(points))
}

func TestRSIThresholds(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	cases := []struct {
		name     string
		rsi      float64
		expected core.Signal
	}{
		{"超卖买入", 25, core.SignalBuy},
		{"超买卖出", 75, core.SignalSell},
		{"中性持有", 50, core.SignalHold},
		{"阈值边界不触发", 30, core.SignalHold},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			points := []indicator.Point{
				{RSI: map[int]indicator.Value{12: valid(tc.rsi)}},
			}
			assert.Equal(t, tc.expected, engine.RSI(points))
		})
	}
}

func TestRSIPeriodFallback(t *testing.T) {
	// 配置周期14未计算，应回退到最接近的周期12
	engine := NewEngine(Config{RSIPeriod: 14})
	points := []indicator.Point{
		{RSI: map[int]indicator.Value{
			6:  valid(50),
			12: valid(20),
			24: valid(50),
		}},
	}
	assert.Equal(t, core.SignalBuy, engine.RSI(points))
}

func TestBollingerBreakout(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	base := indicator.Point{
		BollUpper:  valid(11),
		BollMiddle: valid(10),
		BollLower:  valid(9),
	}

	up := base
	up.Close = 11.5
	assert.Equal(t, core.SignalBuy, engine.Bollinger([]indicator.Point{up}))

	down := base
	down.Close = 8.5
	assert.Equal(t, core.SignalSell, engine.Bollinger([]indicator.Point{down}))

	inside := base
	inside.Close = 10.2
	assert.Equal(t, core.SignalHold, engine.Bollinger([]indicator.Point{inside}))

	// 轨道未定义时持有
	undefined := indicator.Point{Close: 11.5}
	assert.Equal(t, core.SignalHold, engine.Bollinger([]indicator.Point{undefined}))
}

func TestEvaluateCoversAllFamilies(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	set := engine.Evaluate(nil)

	require.Len(t, set, 5)
	for _, family := range []string{
		core.FamilyMACD, core.FamilyRSI, core.FamilyKDJ,
		core.FamilyBollinger, core.FamilyMA,
	} {
		sig, exists := set[family]
		assert.True(t, exists, "信号集合应该覆盖指标族 %s", family)
		assert.Equal(t, core.SignalHold, sig, "空输入时所有信号都应该是hold")
	}
}

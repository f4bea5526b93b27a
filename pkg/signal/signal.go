// Package signal 将各指标族的最新指标值归约为 {buy, sell, hold} 方向信号。
//
// 所有规则都容忍未定义的指标值：窗口未填满、点数不足两个等情况一律退化为 hold，
// 不会使整批分析失败。
package signal

import (
	"github.com/sirupsen/logrus"

	"stockanalyzer/pkg/core"
	"stockanalyzer/pkg/indicator"
	"stockanalyzer/pkg/logger"
)

// Config 信号判定配置
type Config struct {
	MAShort       int     `json:"ma_short" mapstructure:"ma_short"`             // 均线交叉短周期
	MALong        int     `json:"ma_long" mapstructure:"ma_long"`               // 均线交叉长周期
	RSIPeriod     int     `json:"rsi_period" mapstructure:"rsi_period"`         // RSI阈值判定周期
	RSIOversold   float64 `json:"rsi_oversold" mapstructure:"rsi_oversold"`     // RSI超卖阈值
	RSIOverbought float64 `json:"rsi_overbought" mapstructure:"rsi_overbought"` // RSI超买阈值
}

// DefaultConfig 返回默认信号配置
func DefaultConfig() Config {
	return Config{
		MAShort:       5,
		MALong:        20,
		RSIPeriod:     14,
		RSIOversold:   30,
		RSIOverbought: 70,
	}
}

// Set 各指标族的信号集合，键为 core.Family* 常量。
type Set map[string]core.Signal

// Engine 信号引擎
type Engine struct {
	cfg Config
	log *logrus.Entry
}

// NewEngine 创建信号引擎
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MAShort <= 0 {
		cfg.MAShort = def.MAShort
	}
	if cfg.MALong <= 0 {
		cfg.MALong = def.MALong
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = def.RSIPeriod
	}
	if cfg.RSIOversold <= 0 {
		cfg.RSIOversold = def.RSIOversold
	}
	if cfg.RSIOverbought <= 0 {
		cfg.RSIOverbought = def.RSIOverbought
	}
	return &Engine{
		cfg: cfg,
		log: logger.WithComponent("SignalEngine"),
	}
}

// Evaluate 计算全部指标族的信号。
func (e *Engine) Evaluate(points []indicator.Point) Set {
	return Set{
		core.FamilyMACD:      e.MACD(points),
		core.FamilyRSI:       e.RSI(points),
		core.FamilyKDJ:       e.KDJ(points),
		core.FamilyBollinger: e.Bollinger(points),
		core.FamilyMA:        e.MA(points),
	}
}

// MACD 金叉（DIF上穿DEA）为买入，死叉为卖出。
func (e *Engine) MACD(points []indicator.Point) core.Signal {
	prev, latest, ok := lastTwo(points)
	if !ok {
		e.log.Debug("MACD信号点数不足，返回hold")
		return core.SignalHold
	}
	return crossover(prev.DIF, prev.DEA, latest.DIF, latest.DEA)
}

// KDJ 金叉（K上穿D）为买入，死叉为卖出。
func (e *Engine) KDJ(points []indicator.Point) core.Signal {
	prev, latest, ok := lastTwo(points)
	if !ok {
		e.log.Debug("KDJ信号点数不足，返回hold")
		return core.SignalHold
	}
	return crossover(prev.K, prev.D, latest.K, latest.D)
}

// MA 短期均线上穿长期均线为金叉（买入），下穿为死叉（卖出）。
func (e *Engine) MA(points []indicator.Point) core.Signal {
	prev, latest, ok := lastTwo(points)
	if !ok {
		e.log.Debug("均线信号点数不足，返回hold")
		return core.SignalHold
	}
	return crossover(
		prev.MA[e.cfg.MAShort], prev.MA[e.cfg.MALong],
		latest.MA[e.cfg.MAShort], latest.MA[e.cfg.MALong],
	)
}

// RSI 超卖（低于阈值）为买入，超买（高于阈值）为卖出。
// 配置的周期未参与计算时回退到最接近的已计算周期。
func (e *Engine) RSI(points []indicator.Point) core.Signal {
	if len(points) == 0 {
		return core.SignalHold
	}
	latest := points[len(points)-1]
	value, ok := e.pickRSI(latest)
	if !ok {
		return core.SignalHold
	}
	switch {
	case value < e.cfg.RSIOversold:
		return core.SignalBuy
	case value > e.cfg.RSIOverbought:
		return core.SignalSell
	default:
		return core.SignalHold
	}
}

// Bollinger 收盘价突破上轨为买入，跌破下轨为卖出。
func (e *Engine) Bollinger(points []indicator.Point) core.Signal {
	if len(points) == 0 {
		return core.SignalHold
	}
	latest := points[len(points)-1]
	if !latest.BollUpper.Valid || !latest.BollLower.Valid {
		return core.SignalHold
	}
	switch {
	case latest.Close > latest.BollUpper.Float64:
		return core.SignalBuy
	case latest.Close < latest.BollLower.Float64:
		return core.SignalSell
	default:
		return core.SignalHold
	}
}

// pickRSI 取配置周期的RSI值，不存在时选择周期最接近的有效值。
func (e *Engine) pickRSI(p indicator.Point) (float64, bool) {
	if v, exists := p.RSI[e.cfg.RSIPeriod]; exists {
		return v.Float64, v.Valid
	}
	bestGap := -1
	var best indicator.Value
	for period, v := range p.RSI {
		gap := period - e.cfg.RSIPeriod
		if gap < 0 {
			gap = -gap
		}
		if bestGap < 0 || gap < bestGap {
			bestGap = gap
			best = v
		}
	}
	return best.Float64, best.Valid
}

// lastTwo 取末尾两个点，不足两个时 ok 为 false。
func lastTwo(points []indicator.Point) (prev, latest indicator.Point, ok bool) {
	if len(points) < 2 {
		return indicator.Point{}, indicator.Point{}, false
	}
	return points[len(points)-2], points[len(points)-1], true
}

// crossover 判定快线对慢线的交叉方向，任一操作数未定义时返回 hold。
func crossover(prevFast, prevSlow, fast, slow indicator.Value) core.Signal {
	if !prevFast.Valid || !prevSlow.Valid || !fast.Valid || !slow.Valid {
		return core.SignalHold
	}
	switch {
	case prevFast.Float64 < prevSlow.Float64 && fast.Float64 > slow.Float64:
		return core.SignalBuy
	case prevFast.Float64 > prevSlow.Float64 && fast.Float64 < slow.Float64:
		return core.SignalSell
	default:
		return core.SignalHold
	}
}

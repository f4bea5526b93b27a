// Package indicator 将单只股票的K线序列转换为按日期对齐的技术指标序列。
//
// 所有指标在历史窗口未填满时处于未定义状态，通过 Value 的 Valid 标记表达，
// 这是正常状态而非错误，计算过程不会因数据不足而失败。
package indicator

import (
	"math"
	"time"

	"stockanalyzer/pkg/core"
)

// Value 一个可能未定义的指标值。
type Value struct {
	Float64 float64
	Valid   bool
}

// Defined 构造一个已定义的指标值。
func Defined(v float64) Value {
	return Value{Float64: v, Valid: true}
}

// Undefined 构造一个未定义的指标值。
func Undefined() Value {
	return Value{}
}

// MACDConfig MACD参数
type MACDConfig struct {
	Fast   int `json:"fast" mapstructure:"fast"`     // 快线周期
	Slow   int `json:"slow" mapstructure:"slow"`     // 慢线周期
	Signal int `json:"signal" mapstructure:"signal"` // 信号线周期
}

// KDJConfig KDJ参数
type KDJConfig struct {
	Length int `json:"length" mapstructure:"length"` // RSV窗口
	Signal int `json:"signal" mapstructure:"signal"` // K/D平滑周期
}

// BollingerConfig 布林带参数
type BollingerConfig struct {
	Length int     `json:"length" mapstructure:"length"` // 中轨窗口
	Std    float64 `json:"std" mapstructure:"std"`       // 标准差倍数
}

// Config 指标计算配置，每次调用显式传入，模块不持有全局状态。
type Config struct {
	MAPeriods       []int           `json:"ma_periods" mapstructure:"ma_periods"`
	MACD            MACDConfig      `json:"macd" mapstructure:"macd"`
	RSIPeriods      []int           `json:"rsi_periods" mapstructure:"rsi_periods"`
	KDJ             KDJConfig       `json:"kdj" mapstructure:"kdj"`
	Bollinger       BollingerConfig `json:"bollinger" mapstructure:"bollinger"`
	VolumeMAPeriods []int           `json:"volume_ma_periods" mapstructure:"volume_ma_periods"`
}

// DefaultConfig 返回默认指标配置
func DefaultConfig() Config {
	return Config{
		MAPeriods:       []int{5, 10, 20, 60, 120, 250},
		MACD:            MACDConfig{Fast: 12, Slow: 26, Signal: 9},
		RSIPeriods:      []int{6, 12, 24},
		KDJ:             KDJConfig{Length: 9, Signal: 3},
		Bollinger:       BollingerConfig{Length: 20, Std: 2},
		VolumeMAPeriods: []int{5, 10, 20},
	}
}

// normalized 返回填充了缺省值的配置副本
func (c Config) normalized() Config {
	def := DefaultConfig()
	if len(c.MAPeriods) == 0 {
		c.MAPeriods = def.MAPeriods
	}
	if c.MACD.Fast <= 0 || c.MACD.Slow <= 0 || c.MACD.Signal <= 0 {
		c.MACD = def.MACD
	}
	if len(c.RSIPeriods) == 0 {
		c.RSIPeriods = def.RSIPeriods
	}
	if c.KDJ.Length <= 0 || c.KDJ.Signal <= 0 {
		c.KDJ = def.KDJ
	}
	if c.Bollinger.Length <= 0 || c.Bollinger.Std <= 0 {
		c.Bollinger = def.Bollinger
	}
	if len(c.VolumeMAPeriods) == 0 {
		c.VolumeMAPeriods = def.VolumeMAPeriods
	}
	return c
}

// Point 与一根输入K线对应的指标值集合。派生数据，不做持久化。
type Point struct {
	Date  time.Time
	Close float64

	MA map[int]Value // 按周期的收盘价均线

	DIF  Value // MACD快慢线差离值
	DEA  Value // DIF的信号线
	Hist Value // MACD柱状图 = 2*(DIF-DEA)

	RSI map[int]Value // 按周期的相对强弱指标

	K Value
	D Value
	J Value

	BollUpper  Value
	BollMiddle Value
	BollLower  Value

	VolumeMA map[int]Value // 按周期的成交量均线
}

// Calculate 计算K线序列的全部技术指标，输出与输入一一对应。
// 空输入返回空输出；历史不足的位置为未定义值。
func Calculate(bars []core.Bar, cfg Config) []Point {
	if len(bars) == 0 {
		return []Point{}
	}
	cfg = cfg.normalized()

	n := len(bars)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		volumes[i] = float64(b.Volume)
	}

	points := make([]Point, n)
	for i := range points {
		points[i] = Point{
			Date:     bars[i].Date,
			Close:    bars[i].Close,
			MA:       make(map[int]Value, len(cfg.MAPeriods)),
			RSI:      make(map[int]Value, len(cfg.RSIPeriods)),
			VolumeMA: make(map[int]Value, len(cfg.VolumeMAPeriods)),
		}
	}

	for _, period := range cfg.MAPeriods {
		ma := rollingMean(closes, period)
		for i := range points {
			points[i].MA[period] = ma[i]
		}
	}

	dif, dea, hist := macd(closes, cfg.MACD)
	for i := range points {
		points[i].DIF = dif[i]
		points[i].DEA = dea[i]
		points[i].Hist = hist[i]
	}

	for _, period := range cfg.RSIPeriods {
		r := rsi(closes, period)
		for i := range points {
			points[i].RSI[period] = r[i]
		}
	}

	k, d, j := kdj(highs, lows, closes, cfg.KDJ)
	for i := range points {
		points[i].K = k[i]
		points[i].D = d[i]
		points[i].J = j[i]
	}

	upper, middle, lower := bollinger(closes, cfg.Bollinger)
	for i := range points {
		points[i].BollUpper = upper[i]
		points[i].BollMiddle = middle[i]
		points[i].BollLower = lower[i]
	}

	for _, period := range cfg.VolumeMAPeriods {
		ma := rollingMean(volumes, period)
		for i := range points {
			points[i].VolumeMA[period] = ma[i]
		}
	}

	return points
}

// rollingMean 滚动算术平均，前 n-1 个位置未定义。
func rollingMean(values []float64, n int) []Value {
	out := make([]Value, len(values))
	if n <= 0 {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= n {
			sum -= values[i-n]
		}
		if i >= n-1 {
			out[i] = Defined(sum / float64(n))
		}
	}
	return out
}

// ema 指数移动平均，以首个观测值为种子（无启动偏差修正）。
func ema(values []float64, alpha float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if i == 0 {
			out[i] = v
			continue
		}
		out[i] = alpha*v + (1-alpha)*out[i-1]
	}
	return out
}

// macd 平滑系数 2/(span+1)，DIF/DEA/柱状图对每个位置都有定义。
func macd(closes []float64, cfg MACDConfig) (dif, dea, hist []Value) {
	n := len(closes)
	dif = make([]Value, n)
	dea = make([]Value, n)
	hist = make([]Value, n)

	fast := ema(closes, 2/float64(cfg.Fast+1))
	slow := ema(closes, 2/float64(cfg.Slow+1))

	difRaw := make([]float64, n)
	for i := range difRaw {
		difRaw[i] = fast[i] - slow[i]
	}
	deaRaw := ema(difRaw, 2/float64(cfg.Signal+1))

	for i := 0; i < n; i++ {
		dif[i] = Defined(difRaw[i])
		dea[i] = Defined(deaRaw[i])
		hist[i] = Defined(2 * (difRaw[i] - deaRaw[i]))
	}
	return dif, dea, hist
}

// rsi 涨跌幅滚动均值法。首根K线没有差分，因此前 n 个位置未定义。
// 窗口内全部无涨跌（均值都为0）时无定义；只跌不涨时饱和为0，只涨不跌时饱和为100。
func rsi(closes []float64, n int) []Value {
	out := make([]Value, len(closes))
	if len(closes) < 2 || n <= 0 {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	var gainSum, lossSum float64
	for i := 1; i < len(closes); i++ {
		gainSum += gains[i]
		lossSum += losses[i]
		if i > n {
			gainSum -= gains[i-n]
			lossSum -= losses[i-n]
		}
		if i < n {
			continue
		}
		avgGain := gainSum / float64(n)
		avgLoss := lossSum / float64(n)
		switch {
		case avgGain == 0 && avgLoss == 0:
			// 0/0，窗口内价格完全无变化
		case avgLoss == 0:
			out[i] = Defined(100)
		default:
			rs := avgGain / avgLoss
			out[i] = Defined(100 - 100/(1+rs))
		}
	}
	return out
}

// kdj K/D使用以首个有效RSV为种子的递归平滑，平滑系数 1/signal。
// 窗口内最高价等于最低价时RSV无定义，该位置的K/D/J也无定义，递归状态保持不变。
func kdj(highs, lows, closes []float64, cfg KDJConfig) (k, d, j []Value) {
	n := len(closes)
	k = make([]Value, n)
	d = make([]Value, n)
	j = make([]Value, n)

	alpha := 1 / float64(cfg.Signal)
	var kPrev, dPrev float64
	kInit, dInit := false, false

	for i := cfg.Length - 1; i < n; i++ {
		hi := highs[i]
		lo := lows[i]
		for t := i - cfg.Length + 1; t < i; t++ {
			hi = math.Max(hi, highs[t])
			lo = math.Min(lo, lows[t])
		}
		if hi == lo {
			continue
		}
		rsv := (closes[i] - lo) / (hi - lo) * 100

		if !kInit {
			kPrev = rsv
			kInit = true
		} else {
			kPrev = alpha*rsv + (1-alpha)*kPrev
		}
		if !dInit {
			dPrev = kPrev
			dInit = true
		} else {
			dPrev = alpha*kPrev + (1-alpha)*dPrev
		}

		k[i] = Defined(kPrev)
		d[i] = Defined(dPrev)
		j[i] = Defined(3*kPrev - 2*dPrev)
	}
	return k, d, j
}

// bollinger 中轨为滚动均线，带宽为样本标准差的倍数。
func bollinger(closes []float64, cfg BollingerConfig) (upper, middle, lower []Value) {
	n := len(closes)
	upper = make([]Value, n)
	lower = make([]Value, n)
	middle = rollingMean(closes, cfg.Length)

	for i := cfg.Length - 1; i < n; i++ {
		if !middle[i].Valid || cfg.Length < 2 {
			continue
		}
		mean := middle[i].Float64
		var sq float64
		for t := i - cfg.Length + 1; t <= i; t++ {
			diff := closes[t] - mean
			sq += diff * diff
		}
		std := math.Sqrt(sq / float64(cfg.Length-1))
		band := cfg.Std * std
		upper[i] = Defined(mean + band)
		lower[i] = Defined(mean - band)
	}
	return upper, middle, lower
}

// Package evaluator 把一段时间内的历史分析结果与实际价格走势做对照，
// 计算策略的回测绩效（收益、回撤、夏普比率、胜率、盈亏比），并支持多策略对比。
package evaluator

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"stockanalyzer/pkg/core"
	"stockanalyzer/pkg/logger"
)

// Config 评估配置
type Config struct {
	RiskFreeRate float64 `json:"risk_free_rate" mapstructure:"risk_free_rate"` // 年化无风险利率
}

// DefaultConfig 返回默认评估配置
func DefaultConfig() Config {
	return Config{
		RiskFreeRate: 0.03,
	}
}

// Evaluator 策略评估器。相同输入总是产出完全一致的绩效记录。
type Evaluator struct {
	cfg Config
	log *logrus.Entry
}

// New 创建策略评估器
func New(cfg Config) *Evaluator {
	if cfg.RiskFreeRate == 0 {
		cfg.RiskFreeRate = DefaultConfig().RiskFreeRate
	}
	return &Evaluator{
		cfg: cfg,
		log: logger.WithComponent("Evaluator"),
	}
}

// joined 单只股票按日期内连接后的 (分析结果, K线) 序列及其价格区间。
type joined struct {
	ratings []core.Rating
	closes  []float64
	curve   []float64 // 首末连接日期之间的全部收盘价
}

// Evaluate 计算一个策略在一个时间窗口内的绩效记录。
// results 为该策略的分析结果序列（可跨多只股票），bars 为涉及股票的K线历史。
// 某只股票与K线没有足够的日期交集时跳过该股票并计数，不影响整批。
func (ev *Evaluator) Evaluate(strategy string, results []core.AnalysisResult, bars map[string][]core.Bar, start, end time.Time) (*core.PerformanceRecord, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: strategy %s has no analysis results in window", core.ErrEmptyJoin, strategy)
	}

	byCode := groupByCode(results)
	skipped := 0
	instruments := make([]joined, 0, len(byCode))

	codes := make([]string, 0, len(byCode))
	for code := range byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		j, ok := ev.join(byCode[code], bars[code])
		if !ok {
			ev.log.Debugf("股票 %s 的分析结果与K线无足够日期交集，跳过", code)
			skipped++
			continue
		}
		instruments = append(instruments, j)
	}

	wins, losses, trades := tradeOutcomes(instruments)

	record := &core.PerformanceRecord{
		Strategy:        strategy,
		StartDate:       start,
		EndDate:         end,
		TotalReturn:     totalReturn(instruments),
		MaxDrawdown:     maxDrawdown(instruments),
		SharpeRatio:     ev.sharpeRatio(instruments),
		WinRate:         winRate(wins, trades),
		ProfitLossRatio: profitLossRatio(wins, losses),
		TradeCount:      trades,
		SkippedCodes:    skipped,
	}
	record.AnnualReturn = annualize(record.TotalReturn, start, end)

	ev.log.Infof("成功计算策略 %s 的绩效指标，参与股票 %d，跳过 %d",
		strategy, len(instruments), skipped)
	return record, nil
}

// join 将一只股票的分析结果与K线按日期内连接。
// 分析结果或连接点少于两个时视为无效，ok 返回 false。
func (ev *Evaluator) join(results []core.AnalysisResult, bars []core.Bar) (joined, bool) {
	if len(results) < 2 || len(bars) == 0 {
		return joined{}, false
	}

	barByDate := make(map[string]core.Bar, len(bars))
	for _, b := range bars {
		barByDate[dateKey(b.Date)] = b
	}

	var j joined
	var firstDate, lastDate string
	for _, r := range results {
		bar, exists := barByDate[dateKey(r.AnalysisDate)]
		if !exists {
			continue
		}
		if firstDate == "" {
			firstDate = dateKey(r.AnalysisDate)
		}
		lastDate = dateKey(r.AnalysisDate)
		j.ratings = append(j.ratings, r.Rating)
		j.closes = append(j.closes, bar.Close)
	}
	if len(j.closes) < 2 {
		return joined{}, false
	}

	// 回撤和夏普比率基于首末连接日期之间的完整价格曲线
	for _, b := range bars {
		key := dateKey(b.Date)
		if key >= firstDate && key <= lastDate {
			j.curve = append(j.curve, b.Close)
		}
	}
	return j, true
}

// totalReturn 各股票期末/期初收益率的等权平均。
func totalReturn(instruments []joined) float64 {
	if len(instruments) == 0 {
		return 0
	}
	var sum float64
	for _, j := range instruments {
		sum += j.closes[len(j.closes)-1]/j.closes[0] - 1
	}
	return sum / float64(len(instruments))
}

// annualize 按窗口内自然日数年化总收益率。
func annualize(total float64, start, end time.Time) float64 {
	days := end.Sub(start).Hours() / 24
	if days <= 0 {
		return 0
	}
	return math.Pow(1+total, 365/days) - 1
}

// maxDrawdown 各股票最大回撤的等权平均。
// 单只股票的回撤基于从首个连接点开始的累计收益曲线：
// drawdown = (运行峰值 - 累计收益) / (1 + 运行峰值)。
func maxDrawdown(instruments []joined) float64 {
	if len(instruments) == 0 {
		return 0
	}
	var sum float64
	for _, j := range instruments {
		base := j.curve[0]
		runningMax := 0.0
		maxDD := 0.0
		for _, close := range j.curve {
			cum := close/base - 1
			if cum > runningMax {
				runningMax = cum
			}
			dd := (runningMax - cum) / (1 + runningMax)
			if dd > maxDD {
				maxDD = dd
			}
		}
		sum += maxDD
	}
	return sum / float64(len(instruments))
}

// sharpeRatio 把所有股票窗口内的日收益率合并为一个样本计算年化夏普比率。
// 样本少于两个或标准差为零时返回0。
func (ev *Evaluator) sharpeRatio(instruments []joined) float64 {
	var pooled []float64
	for _, j := range instruments {
		for i := 1; i < len(j.curve); i++ {
			if j.curve[i-1] == 0 {
				continue
			}
			pooled = append(pooled, j.curve[i]/j.curve[i-1]-1)
		}
	}
	if len(pooled) < 2 {
		return 0
	}

	avg := mean(pooled)
	std := populationStd(pooled)
	if std == 0 {
		return 0
	}
	return (avg - ev.cfg.RiskFreeRate/252) / std * math.Sqrt(252)
}

// tradeOutcomes 逐对遍历连接点，前一点评级为买入时计为一笔交易，
// 持有期收益率为相邻收盘价涨跌幅。
func tradeOutcomes(instruments []joined) (wins, losses []float64, trades int) {
	for _, j := range instruments {
		for i := 0; i < len(j.closes)-1; i++ {
			if j.ratings[i] != core.RatingBuy {
				continue
			}
			trades++
			holding := (j.closes[i+1] - j.closes[i]) / j.closes[i]
			if holding > 0 {
				wins = append(wins, holding)
			} else if holding < 0 {
				losses = append(losses, -holding)
			}
		}
	}
	return wins, losses, trades
}

// winRate 盈利交易占全部交易的比例，无交易时为0。
func winRate(wins []float64, trades int) float64 {
	if trades == 0 {
		return 0
	}
	return float64(len(wins)) / float64(trades)
}

// profitLossRatio 平均盈利与平均亏损之比，没有盈利或没有亏损时为0。
func profitLossRatio(wins, losses []float64) float64 {
	if len(wins) == 0 || len(losses) == 0 {
		return 0
	}
	avgLoss := mean(losses)
	if avgLoss == 0 {
		return 0
	}
	return mean(wins) / avgLoss
}

// groupByCode 按股票代码分组并保持日期升序。
func groupByCode(results []core.AnalysisResult) map[string][]core.AnalysisResult {
	byCode := make(map[string][]core.AnalysisResult)
	for _, r := range results {
		byCode[r.Code] = append(byCode[r.Code], r)
	}
	for code := range byCode {
		group := byCode[code]
		sort.SliceStable(group, func(a, b int) bool {
			return group[a].AnalysisDate.Before(group[b].AnalysisDate)
		})
		byCode[code] = group
	}
	return byCode
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationStd 总体标准差 (n)
func populationStd(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		diff := v - m
		sq += diff * diff
	}
	return math.Sqrt(sq / float64(len(values)))
}

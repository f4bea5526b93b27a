// Package analysis 将一段K线窗口归约为一条投资建议：
// 各指标族信号、综合评分、评级、风险等级和年化预期收益率。
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"stockanalyzer/pkg/core"
	"stockanalyzer/pkg/indicator"
	"stockanalyzer/pkg/logger"
	"stockanalyzer/pkg/signal"
)

// MinBars 完整分析所需的最少K线数量，由MACD慢线周期决定。
const MinBars = 26

// DefaultStrategy 默认策略标识
const DefaultStrategy = "traditional_technical_analysis"

// Weights 各指标族在综合评分中的权重。
type Weights map[string]int

// DefaultWeights 返回默认权重
func DefaultWeights() Weights {
	return Weights{
		core.FamilyMACD:      25,
		core.FamilyRSI:       20,
		core.FamilyKDJ:       20,
		core.FamilyBollinger: 15,
		core.FamilyMA:        20,
	}
}

// Config 分析引擎配置，每次构造时显式传入并校验。
type Config struct {
	Strategy  string           `json:"strategy" mapstructure:"strategy"`
	Indicator indicator.Config `json:"indicator" mapstructure:"indicator"`
	Signal    signal.Config    `json:"signal" mapstructure:"signal"`
	Weights   Weights          `json:"weights" mapstructure:"weights"`

	// ExpectedReturnWindow 预期收益率取样窗口（最近N个日收益率）
	ExpectedReturnWindow int `json:"expected_return_window" mapstructure:"expected_return_window"`
}

// DefaultConfig 返回默认分析配置
func DefaultConfig() Config {
	return Config{
		Strategy:             DefaultStrategy,
		Indicator:            indicator.DefaultConfig(),
		Signal:               signal.DefaultConfig(),
		Weights:              DefaultWeights(),
		ExpectedReturnWindow: 30,
	}
}

// Engine 分析引擎。输出是输入窗口的确定性函数，调用之间不保留任何状态，
// 不同股票的分析可以安全并发执行。
type Engine struct {
	cfg     Config
	signals *signal.Engine
	log     *logrus.Entry
}

// NewEngine 创建分析引擎
func NewEngine(cfg Config) *Engine {
	if cfg.Strategy == "" {
		cfg.Strategy = DefaultStrategy
	}
	if len(cfg.Weights) == 0 {
		cfg.Weights = DefaultWeights()
	}
	if cfg.ExpectedReturnWindow <= 0 {
		cfg.ExpectedReturnWindow = 30
	}
	return &Engine{
		cfg:     cfg,
		signals: signal.NewEngine(cfg.Signal),
		log:     logger.WithComponent("AnalysisEngine"),
	}
}

// Analyze 分析单只股票的K线窗口。
// K线少于 MinBars 时返回 core.ErrInsufficientHistory，不产出部分有效的结果。
func (e *Engine) Analyze(bars []core.Bar) (*core.AnalysisResult, error) {
	if len(bars) < MinBars {
		return nil, fmt.Errorf("%w: got %d bars, need at least %d", core.ErrInsufficientHistory, len(bars), MinBars)
	}

	points := indicator.Calculate(bars, e.cfg.Indicator)
	signals := e.signals.Evaluate(points)
	score := e.Score(signals)

	latest := bars[len(bars)-1]
	result := &core.AnalysisResult{
		Code:           latest.Code,
		AnalysisDate:   latest.Date,
		Strategy:       e.cfg.Strategy,
		Signals:        signals,
		Score:          score,
		Rating:         DetermineRating(score),
		RiskLevel:      e.riskLevel(bars),
		ExpectedReturn: e.expectedReturn(bars),
	}

	e.log.Infof("成功分析股票 %s，评级: %s，评分: %d", result.Code, result.Rating, result.Score)
	return result, nil
}

// Score 以50为基准，买入信号加权重，卖出信号减权重，最终截断到 [0,100]。
func (e *Engine) Score(signals signal.Set) int {
	score := 50
	for family, sig := range signals {
		weight, exists := e.cfg.Weights[family]
		if !exists {
			weight = 10
		}
		switch sig {
		case core.SignalBuy:
			score += weight
		case core.SignalSell:
			score -= weight
		}
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// DetermineRating 评分转评级：≥70 买入，≤30 卖出，其余持有。
func DetermineRating(score int) core.Rating {
	switch {
	case score >= 70:
		return core.RatingBuy
	case score <= 30:
		return core.RatingSell
	default:
		return core.RatingHold
	}
}

// riskLevel 按日收益率年化波动率划分风险等级。
func (e *Engine) riskLevel(bars []core.Bar) core.RiskLevel {
	returns := dailyReturns(bars)
	if len(returns) < 2 {
		return core.RiskMedium
	}
	volatility := sampleStd(returns) * math.Sqrt(252)
	switch {
	case volatility < 0.2:
		return core.RiskLow
	case volatility < 0.4:
		return core.RiskMedium
	default:
		return core.RiskHigh
	}
}

// expectedReturn 最近窗口内日收益率均值的年化值。
func (e *Engine) expectedReturn(bars []core.Bar) float64 {
	returns := dailyReturns(bars)
	if len(returns) == 0 {
		return 0
	}
	if len(returns) > e.cfg.ExpectedReturnWindow {
		returns = returns[len(returns)-e.cfg.ExpectedReturnWindow:]
	}
	return mean(returns) * 252
}

// BatchOutcome 批量分析的汇总结果。
type BatchOutcome struct {
	Results map[string]*core.AnalysisResult // 按股票代码的成功结果
	Skipped int                             // 因历史不足被跳过的股票数
	Failed  int                             // 其它原因失败的股票数
}

// BatchAnalyze 批量分析多只股票。单只股票的失败只记入计数，不中断整批；
// 调用方取消时在股票之间停止，已产出的结果仍然有效。
func (e *Engine) BatchAnalyze(ctx context.Context, histories map[string][]core.Bar) *BatchOutcome {
	outcome := &BatchOutcome{
		Results: make(map[string]*core.AnalysisResult, len(histories)),
	}

	for code, bars := range histories {
		select {
		case <-ctx.Done():
			e.log.Warnf("批量分析被取消，已完成 %d 只股票", len(outcome.Results))
			return outcome
		default:
		}

		result, err := e.Analyze(bars)
		if err != nil {
			if errors.Is(err, core.ErrInsufficientHistory) {
				e.log.Warnf("股票 %s 历史数据不足，跳过", code)
				outcome.Skipped++
			} else {
				e.log.WithError(err).Errorf("分析股票 %s 失败", code)
				outcome.Failed++
			}
			continue
		}
		outcome.Results[code] = result
	}

	e.log.Infof("批量分析完成，成功 %d，跳过 %d，失败 %d",
		len(outcome.Results), outcome.Skipped, outcome.Failed)
	return outcome
}

// dailyReturns 相邻收盘价的涨跌幅序列。
func dailyReturns(bars []core.Bar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		if bars[i-1].Close == 0 {
			continue
		}
		returns = append(returns, bars[i].Close/bars[i-1].Close-1)
	}
	return returns
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

// sampleStd 样本标准差 (n-1)
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		diff := v - m
		sq += diff * diff
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

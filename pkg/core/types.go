// Package core 定义了股票分析系统各模块共享的核心数据模型。
package core

import "time"

// Bar 单只股票在一个交易日的K线记录。
// 上游数据源保证同一只股票的Bar序列按日期升序且无重复日期，核心计算模块不再校验。
type Bar struct {
	Date        time.Time `json:"date"`        // 交易日期
	Code        string    `json:"code"`        // 股票代码，例如 "sh.600000"
	Open        float64   `json:"open"`        // 开盘价
	High        float64   `json:"high"`        // 最高价
	Low         float64   `json:"low"`         // 最低价
	Close       float64   `json:"close"`       // 收盘价
	PreClose    float64   `json:"preclose"`    // 昨收价
	Volume      int64     `json:"volume"`      // 成交量
	Amount      float64   `json:"amount"`      // 成交额(元)
	Turnover    float64   `json:"turn"`        // 换手率
	AdjustFlag  string    `json:"adjustflag"`  // 复权状态
	TradeStatus string    `json:"tradestatus"` // 交易状态
	PctChg      float64   `json:"pct_chg"`     // 涨跌幅(%)

	// 基本面指标（可选）
	PETTM     float64 `json:"pe_ttm,omitempty"`      // 滚动市盈率
	PBMRQ     float64 `json:"pb_mrq,omitempty"`      // 市净率
	PSTTM     float64 `json:"ps_ttm,omitempty"`      // 滚动市销率
	PCFNcfTTM float64 `json:"pcf_ncf_ttm,omitempty"` // 滚动市现率
	IsST      bool    `json:"is_st,omitempty"`       // 是否ST股票
}

// Signal 单个指标族给出的方向信号。
type Signal string

const (
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
	SignalHold Signal = "hold"
)

// Rating 综合评分对应的投资评级。
type Rating string

const (
	RatingBuy  Rating = "buy"
	RatingHold Rating = "hold"
	RatingSell Rating = "sell"
)

// RiskLevel 基于年化波动率的风险等级。
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// 指标族名称，作为 AnalysisResult.Signals 的键。
const (
	FamilyMACD      = "macd"
	FamilyRSI       = "rsi"
	FamilyKDJ       = "kdj"
	FamilyBollinger = "bollinger"
	FamilyMA        = "ma"
)

// AnalysisResult 一次分析产出的投资建议。
// 每个 (股票, 日期, 策略) 至多一条，产出后不可变。
type AnalysisResult struct {
	Code           string            `json:"stock_code"`      // 股票代码
	AnalysisDate   time.Time         `json:"analysis_date"`   // 分析日期（对应输入窗口的最后一个交易日）
	Strategy       string            `json:"strategy"`        // 策略标识
	Signals        map[string]Signal `json:"signals"`         // 各指标族信号
	Score          int               `json:"score"`           // 综合评分 [0,100]
	Rating         Rating            `json:"rating"`          // 投资评级
	RiskLevel      RiskLevel         `json:"risk_level"`      // 风险等级
	ExpectedReturn float64           `json:"expected_return"` // 年化预期收益率
}

// PerformanceRecord 一个策略在一个时间窗口内的回测绩效。
type PerformanceRecord struct {
	Strategy        string    `json:"strategy_name"`     // 策略标识
	StartDate       time.Time `json:"start_date"`        // 窗口开始日期
	EndDate         time.Time `json:"end_date"`          // 窗口结束日期
	TotalReturn     float64   `json:"total_return"`      // 总收益率（等权平均）
	AnnualReturn    float64   `json:"annual_return"`     // 年化收益率
	MaxDrawdown     float64   `json:"max_drawdown"`      // 最大回撤（等权平均）
	SharpeRatio     float64   `json:"sharpe_ratio"`      // 夏普比率
	WinRate         float64   `json:"win_rate"`          // 胜率
	ProfitLossRatio float64   `json:"profit_loss_ratio"` // 盈亏比
	TradeCount      int       `json:"trades_count"`      // 交易次数
	SkippedCodes    int       `json:"skipped_codes"`     // 因数据缺失被跳过的股票数
}

// Quote 单只股票的实时行情快照，用于补充名称、ST标记等K线不携带的信息。
type Quote struct {
	Code      string    `json:"code"`       // 股票代码，例如 "sh.600000"
	Name      string    `json:"name"`       // 股票名称
	Price     float64   `json:"price"`      // 最新价
	PrevClose float64   `json:"prev_close"` // 昨收价
	Open      float64   `json:"open"`       // 今开价
	High      float64   `json:"high"`       // 最高价
	Low       float64   `json:"low"`        // 最低价
	Volume    int64     `json:"volume"`     // 成交量(股)
	Timestamp time.Time `json:"timestamp"`  // 行情时间
}

// Query 定义了在存储层查询分析结果和绩效记录的条件。
type Query struct {
	Codes     []string  `json:"codes"`      // 目标股票代码，空表示全部
	Strategy  string    `json:"strategy"`   // 策略标识，空表示全部
	StartTime time.Time `json:"start_time"` // 查询的开始时间
	EndTime   time.Time `json:"end_time"`   // 查询的结束时间
	Limit     int       `json:"limit"`      // 返回记录的最大数量，0表示不限制
}

package evaluator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"stockanalyzer/pkg/core"
)

// Comparison 多个策略同窗口绩效的对比结果。
type Comparison struct {
	Records []core.PerformanceRecord `json:"records"` // 按年化收益率降序

	BestAnnualReturn string `json:"best_annual_return"` // 年化收益率最高的策略
	BestSharpe       string `json:"best_sharpe"`        // 夏普比率最高的策略
	BestDrawdown     string `json:"best_drawdown"`      // 最大回撤最小的策略
	BestWinRate      string `json:"best_win_rate"`      // 胜率最高的策略
}

// Compare 对多个策略的绩效记录排序并标注各维度最优者。
// 输入为空时返回空对比结果，不视为错误。
func (ev *Evaluator) Compare(records []core.PerformanceRecord) Comparison {
	cmp := Comparison{
		Records: make([]core.PerformanceRecord, len(records)),
	}
	copy(cmp.Records, records)
	if len(cmp.Records) == 0 {
		return cmp
	}

	sort.SliceStable(cmp.Records, func(a, b int) bool {
		return cmp.Records[a].AnnualReturn > cmp.Records[b].AnnualReturn
	})

	best := cmp.Records[0]
	cmp.BestAnnualReturn = best.Strategy
	bestSharpe, bestDrawdown, bestWinRate := best, best, best
	for _, r := range cmp.Records[1:] {
		if r.SharpeRatio > bestSharpe.SharpeRatio {
			bestSharpe = r
		}
		if r.MaxDrawdown < bestDrawdown.MaxDrawdown {
			bestDrawdown = r
		}
		if r.WinRate > bestWinRate.WinRate {
			bestWinRate = r
		}
	}
	cmp.BestSharpe = bestSharpe.Strategy
	cmp.BestDrawdown = bestDrawdown.Strategy
	cmp.BestWinRate = bestWinRate.Strategy

	ev.log.Infof("完成 %d 个策略的绩效对比，最优年化收益: %s", len(cmp.Records), cmp.BestAnnualReturn)
	return cmp
}

// Markdown 生成策略对比的Markdown报告。
func (c Comparison) Markdown(start, end time.Time) string {
	var b strings.Builder

	b.WriteString("# 策略绩效对比报告\n\n")
	fmt.Fprintf(&b, "**评估区间**: %s 至 %s\n\n", start.Format("2006-01-02"), end.Format("2006-01-02"))

	if len(c.Records) == 0 {
		b.WriteString("评估区间内没有可对比的策略。\n")
		return b.String()
	}

	b.WriteString("## 绩效指标\n\n")
	b.WriteString("| 排名 | 策略 | 总收益率 | 年化收益率 | 最大回撤 | 夏普比率 | 胜率 | 盈亏比 | 交易次数 |\n")
	b.WriteString("|------|------|----------|------------|----------|----------|------|--------|----------|\n")
	for i, r := range c.Records {
		fmt.Fprintf(&b, "| %d | %s | %.2f%% | %.2f%% | %.2f%% | %.2f | %.2f%% | %.2f | %d |\n",
			i+1, r.Strategy,
			r.TotalReturn*100, r.AnnualReturn*100, r.MaxDrawdown*100,
			r.SharpeRatio, r.WinRate*100, r.ProfitLossRatio, r.TradeCount)
	}

	b.WriteString("\n## 各维度最优策略\n\n")
	fmt.Fprintf(&b, "- **年化收益率**: %s\n", c.BestAnnualReturn)
	fmt.Fprintf(&b, "- **夏普比率**: %s\n", c.BestSharpe)
	fmt.Fprintf(&b, "- **最大回撤**: %s\n", c.BestDrawdown)
	fmt.Fprintf(&b, "- **胜率**: %s\n", c.BestWinRate)

	return b.String()
}

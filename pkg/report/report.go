// Package report 将分析结果渲染为Markdown报告，供人工审阅或归档。
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"stockanalyzer/pkg/core"
	"stockanalyzer/pkg/indicator"
	"stockanalyzer/pkg/logger"
)

// Generator Markdown报告生成器
type Generator struct {
	log *logrus.Entry
}

// NewGenerator 创建报告生成器
func NewGenerator() *Generator {
	return &Generator{
		log: logger.WithComponent("ReportGenerator"),
	}
}

var signalText = map[core.Signal]string{
	core.SignalBuy:  "买入",
	core.SignalSell: "卖出",
	core.SignalHold: "持有",
}

var ratingText = map[core.Rating]string{
	core.RatingBuy:  "买入",
	core.RatingSell: "卖出",
	core.RatingHold: "持有",
}

var riskText = map[core.RiskLevel]string{
	core.RiskLow:    "低",
	core.RiskMedium: "中",
	core.RiskHigh:   "高",
}

var familyText = map[string]string{
	core.FamilyMACD:      "MACD",
	core.FamilyRSI:       "RSI",
	core.FamilyKDJ:       "KDJ",
	core.FamilyBollinger: "布林带",
	core.FamilyMA:        "均线",
}

// StockReport 渲染单只股票的分析报告。
// bars 和 points 为产出该结果的K线窗口及其指标序列，可以为空。
func (g *Generator) StockReport(result core.AnalysisResult, bars []core.Bar, points []indicator.Point) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s 技术分析报告\n\n", result.Code)
	fmt.Fprintf(&b, "**分析日期**: %s  \n", result.AnalysisDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "**策略**: %s\n\n", result.Strategy)

	b.WriteString("## 投资建议\n\n")
	fmt.Fprintf(&b, "- **综合评分**: %d / 100\n", result.Score)
	fmt.Fprintf(&b, "- **投资评级**: %s\n", ratingText[result.Rating])
	fmt.Fprintf(&b, "- **风险等级**: %s\n", riskText[result.RiskLevel])
	fmt.Fprintf(&b, "- **年化预期收益率**: %.2f%%\n\n", result.ExpectedReturn*100)

	g.writeSignals(&b, result.Signals)
	g.writePriceOverview(&b, bars)
	g.writeIndicators(&b, points)

	return b.String()
}

// WriteStockReport 将报告写入目录下的 <code>_<date>.md 文件。
func (g *Generator) WriteStockReport(dir string, result core.AnalysisResult, bars []core.Bar, points []indicator.Point) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory failed: %w", err)
	}

	name := fmt.Sprintf("%s_%s.md",
		strings.ReplaceAll(result.Code, ".", ""),
		result.AnalysisDate.Format("20060102"))
	path := filepath.Join(dir, name)

	content := g.StockReport(result, bars, points)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write report failed: %w", err)
	}

	g.log.Infof("成功生成股票 %s 的分析报告: %s", result.Code, path)
	return path, nil
}

// writeSignals 输出各指标族的信号表
func (g *Generator) writeSignals(b *strings.Builder, signals map[string]core.Signal) {
	if len(signals) == 0 {
		return
	}

	families := make([]string, 0, len(signals))
	for family := range signals {
		families = append(families, family)
	}
	sort.Strings(families)

	b.WriteString("## 指标信号\n\n")
	b.WriteString("| 指标 | 信号 |\n")
	b.WriteString("|------|------|\n")
	for _, family := range families {
		name := familyText[family]
		if name == "" {
			name = family
		}
		fmt.Fprintf(b, "| %s | %s |\n", name, signalText[signals[family]])
	}
	b.WriteString("\n")
}

// writePriceOverview 输出窗口内的价格概览
func (g *Generator) writePriceOverview(b *strings.Builder, bars []core.Bar) {
	if len(bars) == 0 {
		return
	}

	first := bars[0]
	latest := bars[len(bars)-1]
	high, low := latest.High, latest.Low
	for _, bar := range bars {
		if bar.High > high {
			high = bar.High
		}
		if bar.Low < low && bar.Low > 0 {
			low = bar.Low
		}
	}

	b.WriteString("## 价格概览\n\n")
	fmt.Fprintf(b, "- **区间**: %s 至 %s（%d 个交易日）\n",
		first.Date.Format("2006-01-02"), latest.Date.Format("2006-01-02"), len(bars))
	fmt.Fprintf(b, "- **最新收盘价**: %.2f\n", latest.Close)
	if first.Close != 0 {
		fmt.Fprintf(b, "- **区间涨跌幅**: %.2f%%\n", (latest.Close/first.Close-1)*100)
	}
	fmt.Fprintf(b, "- **区间最高/最低**: %.2f / %.2f\n\n", high, low)
}

// writeIndicators 输出最新一个交易日的指标快照
func (g *Generator) writeIndicators(b *strings.Builder, points []indicator.Point) {
	if len(points) == 0 {
		return
	}
	latest := points[len(points)-1]

	b.WriteString("## 最新指标\n\n")

	periods := make([]int, 0, len(latest.MA))
	for period := range latest.MA {
		periods = append(periods, period)
	}
	sort.Ints(periods)
	for _, period := range periods {
		if v := latest.MA[period]; v.Valid {
			fmt.Fprintf(b, "- **MA%d**: %.2f\n", period, v.Float64)
		}
	}

	if latest.DIF.Valid && latest.DEA.Valid && latest.Hist.Valid {
		fmt.Fprintf(b, "- **MACD**: DIF %.4f, DEA %.4f, 柱状图 %.4f\n",
			latest.DIF.Float64, latest.DEA.Float64, latest.Hist.Float64)
	}

	rsiPeriods := make([]int, 0, len(latest.RSI))
	for period := range latest.RSI {
		rsiPeriods = append(rsiPeriods, period)
	}
	sort.Ints(rsiPeriods)
	for _, period := range rsiPeriods {
		if v := latest.RSI[period]; v.Valid {
			fmt.Fprintf(b, "- **RSI%d**: %.2f\n", period, v.Float64)
		}
	}

	if latest.K.Valid && latest.D.Valid && latest.J.Valid {
		fmt.Fprintf(b, "- **KDJ**: K %.2f, D %.2f, J %.2f\n",
			latest.K.Float64, latest.D.Float64, latest.J.Float64)
	}

	if latest.BollUpper.Valid && latest.BollMiddle.Valid && latest.BollLower.Valid {
		fmt.Fprintf(b, "- **布林带**: 上轨 %.2f, 中轨 %.2f, 下轨 %.2f\n",
			latest.BollUpper.Float64, latest.BollMiddle.Float64, latest.BollLower.Float64)
	}
	b.WriteString("\n")
}

// analyzer 命令行工具：对指定股票执行一次技术分析，
// 可选生成Markdown报告或评估、对比策略绩效。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"stockanalyzer/pkg/config"
	"stockanalyzer/pkg/logger"
	"stockanalyzer/pkg/system"
)

var (
	configPath = flag.String("config", "", "配置文件路径 (例如 config/analyzer.yaml)")
	codesFlag  = flag.String("codes", "", "股票代码列表，逗号分隔 (例如 sh.600000,sz.000001)")
	days       = flag.Int("days", 365, "拉取的历史天数")
	reportDir  = flag.String("report-dir", "", "生成Markdown报告的目录，为空时只输出摘要")
	mode       = flag.String("mode", "analyze", "运行模式 (analyze, evaluate, compare)")
	strategies = flag.String("strategies", "", "评估/对比的策略列表，逗号分隔，为空时使用默认策略")
	startFlag  = flag.String("start", "", "评估窗口开始日期 (2006-01-02)")
	endFlag    = flag.String("end", "", "评估窗口结束日期 (2006-01-02)")
	logLevel   = flag.String("log-level", "info", "日志级别 (debug, info, warn, error)")
	logFormat  = flag.String("log-format", "text", "日志格式 (json 或 text)")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	logger.Init(logger.Config{
		Level:  *logLevel,
		Format: *logFormat,
	})
	log := logger.WithComponent("analyzer")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("加载配置失败: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	sys, err := system.New(ctx, cfg, system.Options{})
	if err != nil {
		log.Errorf("初始化系统失败: %v", err)
		os.Exit(1)
	}
	defer sys.Stop()

	switch *mode {
	case "analyze":
		runAnalyze(ctx, sys)
	case "evaluate", "compare":
		runEvaluate(ctx, sys, cfg.Analysis.Strategy)
	default:
		log.Errorf("未知的运行模式: %s", *mode)
		os.Exit(1)
	}
}

func runAnalyze(ctx context.Context, sys *system.System) {
	log := logger.WithComponent("analyzer")

	codes := splitList(*codesFlag)
	if len(codes) == 0 {
		log.Error("analyze 模式需要 -codes 参数")
		os.Exit(1)
	}

	failed := 0
	for _, code := range codes {
		if *reportDir != "" {
			path, err := sys.WriteReport(ctx, *reportDir, code, *days)
			if err != nil {
				log.Errorf("生成股票 %s 的报告失败: %v", code, err)
				failed++
				continue
			}
			fmt.Printf("%s -> %s\n", code, path)
			continue
		}

		result, err := sys.AnalyzeStock(ctx, code, *days)
		if err != nil {
			log.Errorf("分析股票 %s 失败: %v", code, err)
			failed++
			continue
		}
		fmt.Printf("%s  评分: %d  评级: %s  风险: %s  预期年化: %.2f%%\n",
			result.Code, result.Score, result.Rating, result.RiskLevel, result.ExpectedReturn*100)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func runEvaluate(ctx context.Context, sys *system.System, defaultStrategy string) {
	log := logger.WithComponent("analyzer")

	start, end, err := parseWindow()
	if err != nil {
		log.Errorf("解析评估窗口失败: %v", err)
		os.Exit(1)
	}

	names := splitList(*strategies)
	if len(names) == 0 {
		names = []string{defaultStrategy}
	}

	if *mode == "compare" || len(names) > 1 {
		markdown, err := sys.CompareStrategies(ctx, names, start, end)
		if err != nil {
			log.Errorf("对比策略失败: %v", err)
			os.Exit(1)
		}
		fmt.Println(markdown)
		return
	}

	record, err := sys.EvaluateStrategy(ctx, names[0], start, end)
	if err != nil {
		log.Errorf("评估策略 %s 失败: %v", names[0], err)
		os.Exit(1)
	}
	fmt.Printf("策略: %s\n总收益率: %.2f%%\n年化收益率: %.2f%%\n最大回撤: %.2f%%\n夏普比率: %.2f\n胜率: %.2f%%\n盈亏比: %.2f\n交易次数: %d\n",
		record.Strategy, record.TotalReturn*100, record.AnnualReturn*100,
		record.MaxDrawdown*100, record.SharpeRatio, record.WinRate*100,
		record.ProfitLossRatio, record.TradeCount)
}

func parseWindow() (time.Time, time.Time, error) {
	end := time.Now()
	start := end.AddDate(0, -3, 0)

	var err error
	if *startFlag != "" {
		if start, err = time.Parse("2006-01-02", *startFlag); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", *startFlag, err)
		}
	}
	if *endFlag != "" {
		if end, err = time.Parse("2006-01-02", *endFlag); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", *endFlag, err)
		}
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start date must be before end date")
	}
	return start, end, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

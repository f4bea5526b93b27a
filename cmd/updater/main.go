// updater 定时更新守护进程：按cron调度拉取K线并批量分析入库。
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stockanalyzer/pkg/config"
	"stockanalyzer/pkg/logger"
	"stockanalyzer/pkg/system"
)

var (
	configPath = flag.String("config", "", "配置文件路径 (例如 config/analyzer.yaml)")
	codesFile  = flag.String("codes-file", "", "股票池文件，每行一个代码")
	codesFlag  = flag.String("codes", "", "股票代码列表，逗号分隔（与 -codes-file 二选一）")
	runNow     = flag.Bool("run-now", false, "启动后立即执行一轮更新")
	logLevel   = flag.String("log-level", "info", "日志级别 (debug, info, warn, error)")
	logFormat  = flag.String("log-format", "json", "日志格式 (json 或 text)")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	logger.Init(logger.Config{
		Level:  *logLevel,
		Format: *logFormat,
	})
	log := logger.WithComponent("updater-main")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("加载配置失败: %v", err)
		os.Exit(1)
	}

	codes, err := loadCodes()
	if err != nil {
		log.Errorf("加载股票池失败: %v", err)
		os.Exit(1)
	}
	if len(codes) == 0 {
		log.Error("股票池为空，需要 -codes 或 -codes-file 参数")
		os.Exit(1)
	}
	log.Infof("股票池共 %d 只股票", len(codes))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	sys, err := system.New(ctx, cfg, system.Options{
		Codes:     codes,
		EnableJob: true,
	})
	cancel()
	if err != nil {
		log.Errorf("初始化系统失败: %v", err)
		os.Exit(1)
	}

	if *runNow {
		go func() {
			runCtx, runCancel := context.WithTimeout(context.Background(), 2*time.Hour)
			defer runCancel()
			if _, err := sys.Updater().RunOnce(runCtx, "manual"); err != nil {
				log.Errorf("启动时更新失败: %v", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("收到退出信号，正在停止...")
	sys.Stop()
}

func loadCodes() ([]string, error) {
	if *codesFlag != "" {
		var out []string
		for _, p := range strings.Split(*codesFlag, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out, nil
	}
	if *codesFile == "" {
		return nil, nil
	}

	data, err := os.ReadFile(*codesFile)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			out = append(out, trimmed)
		}
	}
	return out, nil
}

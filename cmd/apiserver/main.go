// apiserver HTTP服务进程：暴露分析结果查询与更新任务管理接口，
// 可选同时承担定时更新职责。
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
	codesFlag  = flag.String("codes", "", "股票代码列表，逗号分隔")
	withJob    = flag.Bool("with-job", false, "是否同时启用定时更新")
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
	log := logger.WithComponent("apiserver-main")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("加载配置失败: %v", err)
		os.Exit(1)
	}

	var codes []string
	for _, p := range strings.Split(*codesFlag, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			codes = append(codes, trimmed)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	sys, err := system.New(ctx, cfg, system.Options{
		Codes:     codes,
		EnableAPI: true,
		EnableJob: *withJob && len(codes) > 0,
	})
	cancel()
	if err != nil {
		log.Errorf("初始化系统失败: %v", err)
		os.Exit(1)
	}

	if err := sys.Start(); err != nil {
		log.Errorf("启动系统失败: %v", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("收到退出信号，正在停止...")
	sys.Stop()
}

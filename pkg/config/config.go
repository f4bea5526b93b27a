// Package config 提供整个分析系统的配置结构、默认值、校验和基于viper的加载。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"stockanalyzer/pkg/analysis"
	"stockanalyzer/pkg/evaluator"
)

// Config 主配置结构
type Config struct {
	// 数据源配置
	Provider ProviderConfig `json:"provider" mapstructure:"provider"`

	// 分析配置
	Analysis analysis.Config `json:"analysis" mapstructure:"analysis"`

	// 评估配置
	Evaluator evaluator.Config `json:"evaluator" mapstructure:"evaluator"`

	// 存储配置
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// 缓存配置
	Cache CacheConfig `json:"cache" mapstructure:"cache"`

	// 更新任务配置
	Updater UpdaterConfig `json:"updater" mapstructure:"updater"`

	// API服务配置
	API APIConfig `json:"api" mapstructure:"api"`

	// 日志配置
	Logger LoggerConfig `json:"logger" mapstructure:"logger"`
}

// ProviderConfig 数据源配置
type ProviderConfig struct {
	Name       string        `json:"name" mapstructure:"name"`               // 数据源名称 ("sina")
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`         // 请求超时时间
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"` // 最大重试次数
	RateLimit  time.Duration `json:"rate_limit" mapstructure:"rate_limit"`   // 请求间隔限制
	UserAgent  string        `json:"user_agent" mapstructure:"user_agent"`   // 用户代理
	BatchSize  int           `json:"batch_size" mapstructure:"batch_size"`   // 批量请求大小
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type      string `json:"type" mapstructure:"type"`             // memory, csv, influxdb
	Directory string `json:"directory" mapstructure:"directory"`   // CSV存储目录
	MaxSize   int    `json:"max_size" mapstructure:"max_size"`     // 内存存储最大记录数
	InfluxDB  struct {
		URL    string `json:"url" mapstructure:"url"`
		Token  string `json:"token" mapstructure:"token"`
		Org    string `json:"org" mapstructure:"org"`
		Bucket string `json:"bucket" mapstructure:"bucket"`
	} `json:"influxdb" mapstructure:"influxdb"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Type            string        `json:"type" mapstructure:"type"`                         // memory, redis
	DefaultTTL      time.Duration `json:"default_ttl" mapstructure:"default_ttl"`           // 默认过期时间
	MaxSize         int64         `json:"max_size" mapstructure:"max_size"`                 // 最大条目数
	CleanupInterval time.Duration `json:"cleanup_interval" mapstructure:"cleanup_interval"` // 过期清理间隔
	Redis           struct {
		Addr     string `json:"addr" mapstructure:"addr"`
		Password string `json:"password" mapstructure:"password"`
		DB       int    `json:"db" mapstructure:"db"`
	} `json:"redis" mapstructure:"redis"`
}

// UpdaterConfig 更新任务配置
type UpdaterConfig struct {
	Schedule     string `json:"schedule" mapstructure:"schedule"`           // cron表达式
	SampleSize   int    `json:"sample_size" mapstructure:"sample_size"`     // 抽样股票数，0表示全量
	HistoryDays  int    `json:"history_days" mapstructure:"history_days"`   // 拉取的历史天数
	MaxFailures  int    `json:"max_failures" mapstructure:"max_failures"`   // 单批允许的最大失败数
	RecentWindow int    `json:"recent_window" mapstructure:"recent_window"` // 状态查询保留的任务数
}

// APIConfig API服务配置
type APIConfig struct {
	Port string `json:"port" mapstructure:"port"` // 监听端口
	Mode string `json:"mode" mapstructure:"mode"` // debug, release, test
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // text, json
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{
		Provider: ProviderConfig{
			Name:       "sina",
			Timeout:    15 * time.Second,
			MaxRetries: 3,
			RateLimit:  200 * time.Millisecond,
			UserAgent:  "StockAnalyzer/1.0",
			BatchSize:  50,
		},
		Analysis:  analysis.DefaultConfig(),
		Evaluator: evaluator.DefaultConfig(),
		Storage: StorageConfig{
			Type:      "memory",
			Directory: "./data",
			MaxSize:   100000,
		},
		Cache: CacheConfig{
			Type:            "memory",
			DefaultTTL:      5 * time.Minute,
			MaxSize:         1000,
			CleanupInterval: time.Minute,
		},
		Updater: UpdaterConfig{
			Schedule:     "0 30 17 * * 1-5",
			SampleSize:   0,
			HistoryDays:  365,
			MaxFailures:  10,
			RecentWindow: 50,
		},
		API: APIConfig{
			Port: "8080",
			Mode: "release",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
		},
	}
	cfg.Storage.InfluxDB.URL = "http://localhost:8086"
	cfg.Storage.InfluxDB.Org = "stockanalyzer"
	cfg.Storage.InfluxDB.Bucket = "analysis_results"
	cfg.Cache.Redis.Addr = "localhost:6379"
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Provider.Name == "" {
		return errors.New("provider name cannot be empty")
	}

	if c.Provider.Timeout <= 0 {
		return errors.New("provider timeout must be positive")
	}

	if c.Provider.MaxRetries < 0 {
		return errors.New("provider max_retries cannot be negative")
	}

	if c.Provider.RateLimit < 0 {
		return errors.New("provider rate_limit cannot be negative")
	}

	switch c.Storage.Type {
	case "memory", "csv", "influxdb":
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}

	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache type: %s", c.Cache.Type)
	}

	if c.Updater.Schedule == "" {
		return errors.New("updater schedule cannot be empty")
	}

	if c.Updater.HistoryDays <= 0 {
		return errors.New("updater history_days must be positive")
	}

	if c.API.Port == "" {
		return errors.New("api port cannot be empty")
	}

	return nil
}

// Load 加载配置文件并应用环境变量覆盖。
// path 为空时按约定位置查找 analyzer.yaml，找不到配置文件时使用默认值。
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("analyzer")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix("ANALYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := Default()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("provider.name", def.Provider.Name)
	v.SetDefault("provider.timeout", def.Provider.Timeout)
	v.SetDefault("provider.max_retries", def.Provider.MaxRetries)
	v.SetDefault("provider.rate_limit", def.Provider.RateLimit)
	v.SetDefault("provider.batch_size", def.Provider.BatchSize)

	v.SetDefault("storage.type", def.Storage.Type)
	v.SetDefault("storage.directory", def.Storage.Directory)
	v.SetDefault("storage.max_size", def.Storage.MaxSize)
	v.SetDefault("storage.influxdb.url", def.Storage.InfluxDB.URL)
	v.SetDefault("storage.influxdb.org", def.Storage.InfluxDB.Org)
	v.SetDefault("storage.influxdb.bucket", def.Storage.InfluxDB.Bucket)

	v.SetDefault("cache.type", def.Cache.Type)
	v.SetDefault("cache.default_ttl", def.Cache.DefaultTTL)
	v.SetDefault("cache.max_size", def.Cache.MaxSize)
	v.SetDefault("cache.cleanup_interval", def.Cache.CleanupInterval)
	v.SetDefault("cache.redis.addr", def.Cache.Redis.Addr)

	v.SetDefault("updater.schedule", def.Updater.Schedule)
	v.SetDefault("updater.history_days", def.Updater.HistoryDays)
	v.SetDefault("updater.max_failures", def.Updater.MaxFailures)
	v.SetDefault("updater.recent_window", def.Updater.RecentWindow)

	v.SetDefault("api.port", def.API.Port)
	v.SetDefault("api.mode", def.API.Mode)

	v.SetDefault("logger.level", def.Logger.Level)
	v.SetDefault("logger.format", def.Logger.Format)
}

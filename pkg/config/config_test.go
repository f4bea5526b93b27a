package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate(), "默认配置必须通过校验")

	assert.Equal(t, "sina", cfg.Provider.Name)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, "0 30 17 * * 1-5", cfg.Updater.Schedule)
	assert.Equal(t, "8080", cfg.API.Port)
	assert.InDelta(t, 0.03, cfg.Evaluator.RiskFreeRate, 1e-9)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"数据源名称为空", func(c *Config) { c.Provider.Name = "" }},
		{"超时非正", func(c *Config) { c.Provider.Timeout = 0 }},
		{"重试次数为负", func(c *Config) { c.Provider.MaxRetries = -1 }},
		{"未知存储类型", func(c *Config) { c.Storage.Type = "mysql" }},
		{"未知缓存类型", func(c *Config) { c.Cache.Type = "memcached" }},
		{"调度表达式为空", func(c *Config) { c.Updater.Schedule = "" }},
		{"历史天数非正", func(c *Config) { c.Updater.HistoryDays = 0 }},
		{"端口为空", func(c *Config) { c.API.Port = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err, "找不到配置文件时应该回退到默认值")
	assert.Equal(t, "sina", cfg.Provider.Name)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analyzer.yaml")
	content := `
provider:
  name: sina
  timeout: 30s
  max_retries: 5
storage:
  type: csv
  directory: /tmp/analyzer-data
cache:
  type: memory
  default_ttl: 10m
updater:
  schedule: "0 0 18 * * 1-5"
  sample_size: 100
api:
  port: "9090"
logger:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 5, cfg.Provider.MaxRetries)
	assert.Equal(t, "csv", cfg.Storage.Type)
	assert.Equal(t, "/tmp/analyzer-data", cfg.Storage.Directory)
	assert.Equal(t, 10*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, "0 0 18 * * 1-5", cfg.Updater.Schedule)
	assert.Equal(t, 100, cfg.Updater.SampleSize)
	assert.Equal(t, "9090", cfg.API.Port)
	assert.Equal(t, "debug", cfg.Logger.Level)

	// 文件中未出现的字段保持默认
	assert.Equal(t, 365, cfg.Updater.HistoryDays)
	assert.Equal(t, "release", cfg.API.Mode)
}

func TestLoadInvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analyzer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  type: oracle\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage type")
}

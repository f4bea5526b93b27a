package system

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockanalyzer/pkg/config"
)

func TestNewWithDefaultConfig(t *testing.T) {
	sys, err := New(context.Background(), config.Default(), Options{})
	require.NoError(t, err, "默认配置应该能完成组装")

	assert.NotNil(t, sys.Updater())
	assert.NotNil(t, sys.Storage())

	sys.Stop()
}

func TestNewWithCSVStorage(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Type = "csv"
	cfg.Storage.Directory = t.TempDir()

	sys, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)
	sys.Stop()
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Type = "oracle"

	_, err := New(context.Background(), cfg, Options{})
	assert.Error(t, err)
}

func TestNewWithJobRequiresValidSchedule(t *testing.T) {
	cfg := config.Default()
	cfg.Updater.Schedule = "@not-valid"

	// 校验通过（非空即可），但启动定时任务时表达式解析失败
	_, err := New(context.Background(), cfg, Options{
		Codes:     []string{"sh.600000"},
		EnableJob: true,
	})
	assert.Error(t, err)
}

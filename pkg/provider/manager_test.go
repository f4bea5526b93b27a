package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockanalyzer/pkg/core"
)

// stubProvider 只实现K线能力的测试数据源
type stubProvider struct {
	name    string
	healthy bool
	closed  bool
}

func (s *stubProvider) Name() string                     { return s.name }
func (s *stubProvider) IsHealthy() bool                  { return s.healthy }
func (s *stubProvider) GetRateLimit() time.Duration      { return 0 }
func (s *stubProvider) IsCodeSupported(code string) bool { return true }
func (s *stubProvider) Close() error                     { s.closed = true; return nil }

func (s *stubProvider) FetchDailyBars(ctx context.Context, code string, start, end time.Time) ([]core.Bar, error) {
	return nil, nil
}

func TestManagerRegisterAndGet(t *testing.T) {
	m := NewManager()
	p := &stubProvider{name: "stub", healthy: true}
	m.Register(p)

	got, exists := m.Get("stub")
	require.True(t, exists)
	assert.Equal(t, "stub", got.Name())

	_, exists = m.Get("missing")
	assert.False(t, exists)
}

func TestManagerDefaultBarProvider(t *testing.T) {
	m := NewManager()

	_, err := m.BarProvider()
	assert.Error(t, err, "没有注册任何数据源时应该报错")

	first := &stubProvider{name: "first", healthy: true}
	second := &stubProvider{name: "second", healthy: true}
	m.Register(first)
	m.Register(second)

	// 首个具备K线能力的数据源自动成为默认
	p, err := m.BarProvider()
	require.NoError(t, err)
	assert.Equal(t, "first", p.Name())

	require.NoError(t, m.SetDefaultBarProvider("second"))
	p, err = m.BarProvider()
	require.NoError(t, err)
	assert.Equal(t, "second", p.Name())

	assert.Error(t, m.SetDefaultBarProvider("missing"))
}

func TestManagerUnhealthyProvider(t *testing.T) {
	m := NewManager()
	m.Register(&stubProvider{name: "sick", healthy: false})

	_, err := m.BarProvider()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrProviderNotHealthy)
}

func TestManagerUnregister(t *testing.T) {
	m := NewManager()
	p := &stubProvider{name: "stub", healthy: true}
	m.Register(p)

	require.NoError(t, m.Unregister("stub"))
	assert.True(t, p.closed, "注销时应该关闭数据源")

	_, err := m.BarProvider()
	assert.Error(t, err, "默认数据源被注销后应该报错")
	assert.Error(t, m.Unregister("stub"), "重复注销应该报错")
}

func TestManagerClose(t *testing.T) {
	m := NewManager()
	a := &stubProvider{name: "a", healthy: true}
	b := &stubProvider{name: "b", healthy: true}
	m.Register(a)
	m.Register(b)

	require.NoError(t, m.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)

	_, exists := m.Get("a")
	assert.False(t, exists)
}

package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockanalyzer/pkg/core"
)

func goodBar(day int) core.Bar {
	return core.Bar{
		Date:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Code:   "sh.600000",
		Open:   10.1,
		High:   10.5,
		Low:    9.9,
		Close:  10.3,
		Volume: 10000,
	}
}

func TestCheckBarValid(t *testing.T) {
	v := New()
	assert.Empty(t, v.CheckBar(goodBar(0)), "正常K线不应该产生问题")
}

func TestCheckBarIssues(t *testing.T) {
	v := New()

	t.Run("价格必须为正", func(t *testing.T) {
		bar := goodBar(0)
		bar.Low = 0
		issues := v.CheckBar(bar)
		require.Len(t, issues, 1)
		assert.Equal(t, "low", issues[0].Field)
	})

	t.Run("最高价低于最低价", func(t *testing.T) {
		bar := goodBar(0)
		bar.High = 9.0
		bar.Open = 9.0
		bar.Close = 9.0
		issues := v.CheckBar(bar)
		require.NotEmpty(t, issues)
		assert.Equal(t, "high", issues[0].Field)
	})

	t.Run("开盘价超出区间", func(t *testing.T) {
		bar := goodBar(0)
		bar.Open = 11.0
		issues := v.CheckBar(bar)
		require.Len(t, issues, 1)
		assert.Equal(t, "open", issues[0].Field)
	})

	t.Run("成交量为负", func(t *testing.T) {
		bar := goodBar(0)
		bar.Volume = -1
		issues := v.CheckBar(bar)
		require.Len(t, issues, 1)
		assert.Equal(t, "volume", issues[0].Field)
	})

	t.Run("代码和日期为空", func(t *testing.T) {
		bar := goodBar(0)
		bar.Code = ""
		bar.Date = time.Time{}
		issues := v.CheckBar(bar)
		assert.Len(t, issues, 2)
	})
}

func TestCheckSeriesOrdering(t *testing.T) {
	v := New()

	t.Run("升序序列通过", func(t *testing.T) {
		report := v.CheckSeries([]core.Bar{goodBar(0), goodBar(1), goodBar(2)})
		assert.Equal(t, 3, report.Total)
		assert.Equal(t, 3, report.Valid)
		assert.Zero(t, report.Dropped)
	})

	t.Run("重复日期被标记", func(t *testing.T) {
		report := v.CheckSeries([]core.Bar{goodBar(0), goodBar(0)})
		assert.Equal(t, 1, report.Valid)
		assert.Equal(t, 1, report.Dropped)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, "date", report.Issues[0].Field)
	})

	t.Run("乱序被标记", func(t *testing.T) {
		report := v.CheckSeries([]core.Bar{goodBar(2), goodBar(1)})
		assert.Equal(t, 1, report.Dropped)
	})
}

func TestClean(t *testing.T) {
	v := New()

	bad := goodBar(1)
	bad.Low = -1

	bars := []core.Bar{goodBar(0), bad, goodBar(2), goodBar(2)}
	clean, report := v.Clean(bars)

	require.Len(t, clean, 2, "脏数据和重复日期应该被剔除")
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Valid)
	assert.Equal(t, 2, report.Dropped)

	// 输出保持严格升序
	for i := 1; i < len(clean); i++ {
		assert.True(t, clean[i-1].Date.Before(clean[i].Date))
	}
}

func TestCleanOrderRelativeToKeptBars(t *testing.T) {
	v := New()

	// 第二条乱序被剔除后，第三条相对保留序列仍然升序，应该保留
	bars := []core.Bar{goodBar(5), goodBar(3), goodBar(6)}
	clean, report := v.Clean(bars)

	require.Len(t, clean, 2)
	assert.Equal(t, 1, report.Dropped)
	assert.Equal(t, goodBar(5).Date, clean[0].Date)
	assert.Equal(t, goodBar(6).Date, clean[1].Date)
}

func TestIssueString(t *testing.T) {
	issue := Issue{Code: "sh.600000", Date: "2024-05-01", Field: "close", Reason: "收盘价必须为正"}
	s := issue.String()
	assert.Contains(t, s, "sh.600000")
	assert.Contains(t, s, "close")
}

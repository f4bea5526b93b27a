package sina

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"stockanalyzer/pkg/core"
)

// klineItem 新浪日线接口的单条记录，数值字段以字符串返回。
type klineItem struct {
	Day    string `json:"day"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

// parseKLineData 解析新浪日线接口的JSON响应。
// 昨收价和涨跌幅由相邻K线推算，首根K线的昨收价取自身开盘价。
func parseKLineData(data []byte, code string) ([]core.Bar, error) {
	var items []klineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unexpected kline response: %w", err)
	}

	bars := make([]core.Bar, 0, len(items))
	for _, item := range items {
		date, err := time.Parse("2006-01-02", item.Day)
		if err != nil {
			continue
		}
		bar := core.Bar{
			Date:        date,
			Code:        code,
			Open:        parseFloat(item.Open),
			High:        parseFloat(item.High),
			Low:         parseFloat(item.Low),
			Close:       parseFloat(item.Close),
			Volume:      parseInt(item.Volume),
			AdjustFlag:  "3",
			TradeStatus: "1",
		}

		if len(bars) > 0 {
			bar.PreClose = bars[len(bars)-1].Close
		} else {
			bar.PreClose = bar.Open
		}
		if bar.PreClose != 0 {
			bar.PctChg = (bar.Close/bar.PreClose - 1) * 100
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseQuoteData 解析新浪实时行情响应，每行形如
// var hq_str_sh600000="浦发银行,10.00,9.90,...";
func parseQuoteData(data string) []core.Quote {
	lines := strings.Split(data, ";")
	results := make([]core.Quote, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, "=") || strings.HasPrefix(line, "//") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		code := extractCode(parts[0])
		if code == "" {
			continue
		}

		fields := strings.Split(strings.Trim(parts[1], ` "`), ",")
		if len(fields) < 32 {
			continue
		}

		results = append(results, core.Quote{
			Code:      code,
			Name:      gbkToUtf8(fields[0]),
			Open:      parseFloat(fields[1]),
			PrevClose: parseFloat(fields[2]),
			Price:     parseFloat(fields[3]),
			High:      parseFloat(fields[4]),
			Low:       parseFloat(fields[5]),
			Volume:    parseInt(fields[8]),
			Timestamp: parseQuoteTime(fields[30], fields[31]),
		})
	}
	return results
}

// gbkToUtf8 将GBK编码转换为UTF-8
func gbkToUtf8(gbkStr string) string {
	if gbkStr == "" {
		return ""
	}
	reader := transform.NewReader(strings.NewReader(gbkStr), simplifiedchinese.GBK.NewDecoder())
	data, err := io.ReadAll(reader)
	if err != nil {
		return gbkStr
	}
	return string(data)
}

// extractCode 从变量名中提取股票代码, e.g., hq_str_sh600000 -> sh.600000
func extractCode(rawVar string) string {
	parts := strings.Split(rawVar, "_")
	if len(parts) < 3 {
		return ""
	}
	symbol := parts[len(parts)-1]
	if len(symbol) != 8 {
		return ""
	}
	return symbol[:2] + "." + symbol[2:]
}

// parseFloat 安全解析浮点数
func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return val
}

// parseInt 安全解析整数
func parseInt(s string) int64 {
	if s == "" {
		return 0
	}
	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val
}

// parseQuoteTime 解析行情的日期和时间字段
func parseQuoteTime(dateStr, timeStr string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", dateStr+" "+timeStr, time.Local)
	if err != nil {
		return time.Now()
	}
	return t
}

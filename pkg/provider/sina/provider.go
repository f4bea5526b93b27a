// Package sina 实现基于新浪财经接口的日线K线与实时行情数据源。
package sina

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"stockanalyzer/pkg/core"
	"stockanalyzer/pkg/logger"
)

// 新浪日线接口单次返回的最大K线数量
const maxKLineLen = 1023

// Provider 新浪股票数据源
type Provider struct {
	httpClient *http.Client
	userAgent  string
	log        *logrus.Entry
	klineURL   string
	quoteURL   string
	rateLimit  time.Duration
	maxRetries int
}

// NewProvider 创建新浪数据源
func NewProvider() *Provider {
	return &Provider{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
			Timeout: 15 * time.Second,
		},
		userAgent:  "StockAnalyzer/1.0",
		log:        logger.WithComponent("SinaProvider"),
		klineURL:   "https://quotes.sina.cn/cn/api/json_v2.php/CN_MarketDataService.getKLineData",
		quoteURL:   "http://hq.sinajs.cn/list=",
		rateLimit:  200 * time.Millisecond,
		maxRetries: 3,
	}
}

// Name 返回数据源名称
func (p *Provider) Name() string {
	return "sina"
}

// GetRateLimit 获取请求频率限制
func (p *Provider) GetRateLimit() time.Duration {
	return p.rateLimit
}

// IsHealthy 检查数据源健康状态
func (p *Provider) IsHealthy() bool {
	return p.httpClient != nil
}

// SetRateLimit 设置请求频率限制
func (p *Provider) SetRateLimit(limit time.Duration) {
	p.rateLimit = limit
}

// SetTimeout 设置请求超时时间
func (p *Provider) SetTimeout(timeout time.Duration) {
	p.httpClient.Timeout = timeout
}

// SetMaxRetries 设置最大重试次数
func (p *Provider) SetMaxRetries(retries int) {
	p.maxRetries = retries
}

// Close 关闭数据源，清理资源
func (p *Provider) Close() error {
	if p.httpClient != nil {
		p.httpClient.CloseIdleConnections()
	}
	return nil
}

// IsCodeSupported 检查是否支持该股票代码，格式为 "sh.600000" 或 "sz.000001"。
func (p *Provider) IsCodeSupported(code string) bool {
	_, err := toSinaSymbol(code)
	return err == nil
}

// FetchDailyBars 获取单只股票的日线K线，按日期升序返回。
func (p *Provider) FetchDailyBars(ctx context.Context, code string, start, end time.Time) ([]core.Bar, error) {
	symbol, err := toSinaSymbol(code)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s?symbol=%s&scale=240&ma=no&datalen=%d",
		p.klineURL, symbol, dataLen(start, end))

	body, err := p.get(ctx, url, "")
	if err != nil {
		return nil, fmt.Errorf("fetch daily bars for %s failed: %w", code, err)
	}

	bars, err := parseKLineData(body, code)
	if err != nil {
		return nil, fmt.Errorf("parse daily bars for %s failed: %w", code, err)
	}

	return filterRange(bars, start, end), nil
}

// FetchDailyBarsBatch 批量获取日线K线。请求之间遵守速率限制，
// 单只股票失败只记录日志，对应的键在结果中缺失。
func (p *Provider) FetchDailyBarsBatch(ctx context.Context, codes []string, start, end time.Time) (map[string][]core.Bar, error) {
	result := make(map[string][]core.Bar, len(codes))
	for i, code := range codes {
		if i > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(p.rateLimit):
			}
		}

		bars, err := p.FetchDailyBars(ctx, code, start, end)
		if err != nil {
			p.log.WithError(err).Warnf("获取股票 %s 的K线失败", code)
			continue
		}
		result[code] = bars
	}
	return result, nil
}

// FetchQuotes 获取实时行情快照
func (p *Provider) FetchQuotes(ctx context.Context, codes []string) ([]core.Quote, error) {
	if len(codes) == 0 {
		return []core.Quote{}, nil
	}

	symbols := make([]string, 0, len(codes))
	for _, code := range codes {
		symbol, err := toSinaSymbol(code)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, symbol)
	}

	body, err := p.get(ctx, p.quoteURL+strings.Join(symbols, ","), "https://finance.sina.com.cn/")
	if err != nil {
		return nil, fmt.Errorf("fetch quotes failed: %w", err)
	}
	return parseQuoteData(string(body)), nil
}

// get 发送GET请求，失败时按最大重试次数重试。
func (p *Provider) get(ctx context.Context, url, referer string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.rateLimit * time.Duration(attempt)):
			}
		}

		body, err := p.doGet(ctx, url, referer)
		if err == nil {
			return body, nil
		}
		lastErr = err
		p.log.WithError(err).Debugf("第 %d 次请求失败", attempt+1)
	}
	return nil, lastErr
}

func (p *Provider) doGet(ctx context.Context, url, referer string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP status error: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// toSinaSymbol 将 "sh.600000" 格式转换为新浪的 "sh600000" 格式。
func toSinaSymbol(code string) (string, error) {
	parts := strings.SplitN(code, ".", 2)
	if len(parts) != 2 || len(parts[1]) != 6 {
		return "", fmt.Errorf("%w: %s", core.ErrInvalidCode, code)
	}
	switch parts[0] {
	case "sh", "sz", "bj":
		return parts[0] + parts[1], nil
	default:
		return "", fmt.Errorf("%w: %s", core.ErrInvalidCode, code)
	}
}

// dataLen 按日期区间估算需要请求的K线数量，每周约5个交易日。
func dataLen(start, end time.Time) int {
	days := int(end.Sub(start).Hours()/24) + 1
	n := days*5/7 + 30
	if n > maxKLineLen {
		n = maxKLineLen
	}
	if n < 1 {
		n = 1
	}
	return n
}

// filterRange 截取 [start, end] 区间内的K线。
func filterRange(bars []core.Bar, start, end time.Time) []core.Bar {
	out := make([]core.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}

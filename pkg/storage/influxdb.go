package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"stockanalyzer/pkg/core"
)

const (
	measurementResult      = "analysis_result"
	measurementPerformance = "strategy_performance"
)

// InfluxDBConfig InfluxDB存储配置
type InfluxDBConfig struct {
	URL    string `yaml:"url" mapstructure:"url"`
	Token  string `yaml:"token" mapstructure:"token"`
	Org    string `yaml:"org" mapstructure:"org"`
	Bucket string `yaml:"bucket" mapstructure:"bucket"`
}

// InfluxDBStorage 以InfluxDB为后端的 Storage。
// 分析结果和绩效记录分别写入两个measurement，时间戳取记录自身的业务日期。
type InfluxDBStorage struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	bucket   string
}

// NewInfluxDBStorage 创建InfluxDB存储并检查连接健康状态。
func NewInfluxDBStorage(ctx context.Context, config InfluxDBConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(config.URL, config.Token)

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to InfluxDB failed: %w", err)
	}
	if health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB health check failed: %s", health.Status)
	}

	return &InfluxDBStorage{
		client:   client,
		writeAPI: client.WriteAPIBlocking(config.Org, config.Bucket),
		queryAPI: client.QueryAPI(config.Org),
		bucket:   config.Bucket,
	}, nil
}

// SaveResult 保存分析结果。
// 相同 (股票, 日期, 策略) 的点在InfluxDB中天然覆盖。
func (is *InfluxDBStorage) SaveResult(ctx context.Context, result core.AnalysisResult) error {
	signals, err := json.Marshal(result.Signals)
	if err != nil {
		return fmt.Errorf("marshal signals failed: %w", err)
	}

	point := influxdb2.NewPointWithMeasurement(measurementResult).
		AddTag("stock_code", result.Code).
		AddTag("strategy", result.Strategy).
		AddField("score", int64(result.Score)).
		AddField("rating", string(result.Rating)).
		AddField("risk_level", string(result.RiskLevel)).
		AddField("expected_return", result.ExpectedReturn).
		AddField("signals", string(signals)).
		SetTime(result.AnalysisDate)

	return is.writeAPI.WritePoint(ctx, point)
}

// LoadResults 按查询条件加载分析结果
func (is *InfluxDBStorage) LoadResults(ctx context.Context, query core.Query) ([]core.AnalysisResult, error) {
	flux := is.buildFlux(measurementResult, query)
	tables, err := is.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("query analysis results failed: %w", err)
	}

	var out []core.AnalysisResult
	for tables.Next() {
		record := tables.Record()
		r := core.AnalysisResult{
			Code:         asString(record.ValueByKey("stock_code")),
			Strategy:     asString(record.ValueByKey("strategy")),
			AnalysisDate: record.Time(),
			Rating:       core.Rating(asString(record.ValueByKey("rating"))),
			RiskLevel:    core.RiskLevel(asString(record.ValueByKey("risk_level"))),
		}
		r.Score = int(asInt(record.ValueByKey("score")))
		r.ExpectedReturn = asFloat(record.ValueByKey("expected_return"))
		if raw := asString(record.ValueByKey("signals")); raw != "" {
			_ = json.Unmarshal([]byte(raw), &r.Signals)
		}
		if len(query.Codes) > 0 && !containsCode(query.Codes, r.Code) {
			continue
		}
		out = append(out, r)
	}
	if tables.Err() != nil {
		return nil, fmt.Errorf("iterate analysis results failed: %w", tables.Err())
	}

	sort.Slice(out, func(a, b int) bool {
		if !out[a].AnalysisDate.Equal(out[b].AnalysisDate) {
			return out[a].AnalysisDate.Before(out[b].AnalysisDate)
		}
		return out[a].Code < out[b].Code
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

// SavePerformance 保存绩效记录，时间戳取窗口结束日期。
func (is *InfluxDBStorage) SavePerformance(ctx context.Context, record core.PerformanceRecord) error {
	point := influxdb2.NewPointWithMeasurement(measurementPerformance).
		AddTag("strategy", record.Strategy).
		AddField("start_date", record.StartDate.Format("2006-01-02")).
		AddField("total_return", record.TotalReturn).
		AddField("annual_return", record.AnnualReturn).
		AddField("max_drawdown", record.MaxDrawdown).
		AddField("sharpe_ratio", record.SharpeRatio).
		AddField("win_rate", record.WinRate).
		AddField("profit_loss_ratio", record.ProfitLossRatio).
		AddField("trades_count", int64(record.TradeCount)).
		AddField("skipped_codes", int64(record.SkippedCodes)).
		SetTime(record.EndDate)

	return is.writeAPI.WritePoint(ctx, point)
}

// LoadPerformance 按查询条件加载绩效记录
func (is *InfluxDBStorage) LoadPerformance(ctx context.Context, query core.Query) ([]core.PerformanceRecord, error) {
	flux := is.buildFlux(measurementPerformance, query)
	tables, err := is.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("query performance records failed: %w", err)
	}

	var out []core.PerformanceRecord
	for tables.Next() {
		record := tables.Record()
		r := core.PerformanceRecord{
			Strategy:        asString(record.ValueByKey("strategy")),
			EndDate:         record.Time(),
			TotalReturn:     asFloat(record.ValueByKey("total_return")),
			AnnualReturn:    asFloat(record.ValueByKey("annual_return")),
			MaxDrawdown:     asFloat(record.ValueByKey("max_drawdown")),
			SharpeRatio:     asFloat(record.ValueByKey("sharpe_ratio")),
			WinRate:         asFloat(record.ValueByKey("win_rate")),
			ProfitLossRatio: asFloat(record.ValueByKey("profit_loss_ratio")),
			TradeCount:      int(asInt(record.ValueByKey("trades_count"))),
			SkippedCodes:    int(asInt(record.ValueByKey("skipped_codes"))),
		}
		if start, err := time.Parse("2006-01-02", asString(record.ValueByKey("start_date"))); err == nil {
			r.StartDate = start
		}
		out = append(out, r)
	}
	if tables.Err() != nil {
		return nil, fmt.Errorf("iterate performance records failed: %w", tables.Err())
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].StartDate.Before(out[b].StartDate)
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

// Close 关闭InfluxDB连接
func (is *InfluxDBStorage) Close() error {
	is.client.Close()
	return nil
}

// buildFlux 构造带时间范围、策略过滤和字段透视的Flux查询。
func (is *InfluxDBStorage) buildFlux(measurement string, query core.Query) string {
	start := "0"
	if !query.StartTime.IsZero() {
		start = query.StartTime.Format(time.RFC3339)
	}
	stop := "now()"
	if !query.EndTime.IsZero() {
		stop = query.EndTime.Add(24 * time.Hour).Format(time.RFC3339)
	}

	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q)`, is.bucket, start, stop, measurement)

	if query.Strategy != "" {
		flux += fmt.Sprintf("\n  |> filter(fn: (r) => r.strategy == %q)", query.Strategy)
	}
	flux += `
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")`
	return flux
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}

func asInt(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case float64:
		return int64(val)
	default:
		return 0
	}
}

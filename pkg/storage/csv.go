package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"stockanalyzer/pkg/core"
)

const (
	resultsFile     = "analysis_results.csv"
	performanceFile = "performance_records.csv"
)

var resultsHeader = []string{
	"analysis_date", "stock_code", "strategy", "signals",
	"score", "rating", "risk_level", "expected_return",
}

var performanceHeader = []string{
	"strategy", "start_date", "end_date", "total_return", "annual_return",
	"max_drawdown", "sharpe_ratio", "win_rate", "profit_loss_ratio",
	"trades_count", "skipped_codes",
}

// CSVStorage 以CSV文件为后端的 Storage。
// 分析结果和绩效记录分别追加写入独立的文件，适合人工检查和表格工具导入。
type CSVStorage struct {
	mu     sync.Mutex
	dir    string
	closed bool
}

// NewCSVStorage 创建CSV存储，目录不存在时自动创建。
func NewCSVStorage(dir string) (*CSVStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory failed: %w", err)
	}
	return &CSVStorage{dir: dir}, nil
}

// SaveResult 追加一条分析结果。
// 相同 (股票, 日期, 策略) 的历史行在加载时被后写入的行覆盖。
func (cs *CSVStorage) SaveResult(ctx context.Context, result core.AnalysisResult) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return ErrStorageClosed
	}

	signals, err := json.Marshal(result.Signals)
	if err != nil {
		return fmt.Errorf("marshal signals failed: %w", err)
	}

	row := []string{
		result.AnalysisDate.Format("2006-01-02"),
		result.Code,
		result.Strategy,
		string(signals),
		strconv.Itoa(result.Score),
		string(result.Rating),
		string(result.RiskLevel),
		strconv.FormatFloat(result.ExpectedReturn, 'f', -1, 64),
	}
	return cs.appendRow(resultsFile, resultsHeader, row)
}

// LoadResults 读取全部分析结果并按查询条件过滤
func (cs *CSVStorage) LoadResults(ctx context.Context, query core.Query) ([]core.AnalysisResult, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return nil, ErrStorageClosed
	}

	rows, err := cs.readRows(resultsFile)
	if err != nil {
		return nil, err
	}

	// 后写入的行覆盖同键的旧行
	byKey := make(map[string]core.AnalysisResult)
	for _, row := range rows {
		if len(row) < len(resultsHeader) {
			continue
		}
		r, err := parseResultRow(row)
		if err != nil {
			continue
		}
		byKey[r.Code+"|"+row[0]+"|"+r.Strategy] = r
	}

	out := make([]core.AnalysisResult, 0, len(byKey))
	for _, r := range byKey {
		if matchResult(r, query) {
			out = append(out, r)
		}
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

// SavePerformance 追加一条绩效记录
func (cs *CSVStorage) SavePerformance(ctx context.Context, record core.PerformanceRecord) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return ErrStorageClosed
	}

	row := []string{
		record.Strategy,
		record.StartDate.Format("2006-01-02"),
		record.EndDate.Format("2006-01-02"),
		strconv.FormatFloat(record.TotalReturn, 'f', -1, 64),
		strconv.FormatFloat(record.AnnualReturn, 'f', -1, 64),
		strconv.FormatFloat(record.MaxDrawdown, 'f', -1, 64),
		strconv.FormatFloat(record.SharpeRatio, 'f', -1, 64),
		strconv.FormatFloat(record.WinRate, 'f', -1, 64),
		strconv.FormatFloat(record.ProfitLossRatio, 'f', -1, 64),
		strconv.Itoa(record.TradeCount),
		strconv.Itoa(record.SkippedCodes),
	}
	return cs.appendRow(performanceFile, performanceHeader, row)
}

// LoadPerformance 读取全部绩效记录并按查询条件过滤
func (cs *CSVStorage) LoadPerformance(ctx context.Context, query core.Query) ([]core.PerformanceRecord, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return nil, ErrStorageClosed
	}

	rows, err := cs.readRows(performanceFile)
	if err != nil {
		return nil, err
	}

	out := make([]core.PerformanceRecord, 0, len(rows))
	for _, row := range rows {
		if len(row) < len(performanceHeader) {
			continue
		}
		r, err := parsePerformanceRow(row)
		if err != nil {
			continue
		}
		if matchPerformance(r, query) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].StartDate.Before(out[b].StartDate)
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

// Close 关闭存储
func (cs *CSVStorage) Close() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.closed = true
	return nil
}

// appendRow 追加一行，文件不存在时先写表头。
func (cs *CSVStorage) appendRow(name string, header, row []string) error {
	path := filepath.Join(cs.dir, name)
	_, statErr := os.Stat(path)
	needHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s failed: %w", name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// readRows 读取数据行（跳过表头），文件不存在时返回空。
func (cs *CSVStorage) readRows(name string) ([][]string, error) {
	path := filepath.Join(cs.dir, name)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s failed: %w", name, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s failed: %w", name, err)
	}
	if len(rows) > 0 {
		rows = rows[1:]
	}
	return rows, nil
}

func parseResultRow(row []string) (core.AnalysisResult, error) {
	date, err := time.Parse("2006-01-02", row[0])
	if err != nil {
		return core.AnalysisResult{}, err
	}
	var signals map[string]core.Signal
	if err := json.Unmarshal([]byte(row[3]), &signals); err != nil {
		return core.AnalysisResult{}, err
	}
	score, err := strconv.Atoi(row[4])
	if err != nil {
		return core.AnalysisResult{}, err
	}
	expected, err := strconv.ParseFloat(row[7], 64)
	if err != nil {
		return core.AnalysisResult{}, err
	}

	return core.AnalysisResult{
		AnalysisDate:   date,
		Code:           row[1],
		Strategy:       row[2],
		Signals:        signals,
		Score:          score,
		Rating:         core.Rating(row[5]),
		RiskLevel:      core.RiskLevel(row[6]),
		ExpectedReturn: expected,
	}, nil
}

func parsePerformanceRow(row []string) (core.PerformanceRecord, error) {
	start, err := time.Parse("2006-01-02", row[1])
	if err != nil {
		return core.PerformanceRecord{}, err
	}
	end, err := time.Parse("2006-01-02", row[2])
	if err != nil {
		return core.PerformanceRecord{}, err
	}

	floats := make([]float64, 6)
	for i, idx := range []int{3, 4, 5, 6, 7, 8} {
		v, err := strconv.ParseFloat(row[idx], 64)
		if err != nil {
			return core.PerformanceRecord{}, err
		}
		floats[i] = v
	}
	trades, err := strconv.Atoi(row[9])
	if err != nil {
		return core.PerformanceRecord{}, err
	}
	skipped, err := strconv.Atoi(row[10])
	if err != nil {
		return core.PerformanceRecord{}, err
	}

	return core.PerformanceRecord{
		Strategy:        row[0],
		StartDate:       start,
		EndDate:         end,
		TotalReturn:     floats[0],
		AnnualReturn:    floats[1],
		MaxDrawdown:     floats[2],
		SharpeRatio:     floats[3],
		WinRate:         floats[4],
		ProfitLossRatio: floats[5],
		TradeCount:      trades,
		SkippedCodes:    skipped,
	}, nil
}

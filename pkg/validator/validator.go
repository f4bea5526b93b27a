// Package validator 校验上游数据源返回的K线，过滤脏数据，
// 保证进入指标计算的序列按日期升序且价格关系自洽。
package validator

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"stockanalyzer/pkg/core"
	"stockanalyzer/pkg/logger"
)

// Issue 单条K线的校验问题
type Issue struct {
	Code   string `json:"code"`   // 股票代码
	Date   string `json:"date"`   // 交易日期
	Field  string `json:"field"`  // 问题字段
	Reason string `json:"reason"` // 问题描述
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s [%s]: %s", i.Code, i.Date, i.Field, i.Reason)
}

// Report 一次校验的汇总结果
type Report struct {
	Total   int     `json:"total"`   // 输入K线数量
	Valid   int     `json:"valid"`   // 通过校验的数量
	Dropped int     `json:"dropped"` // 被剔除的数量
	Issues  []Issue `json:"issues"`  // 全部问题明细
}

// Validator K线校验器
type Validator struct {
	log *logrus.Entry
}

// New 创建K线校验器
func New() *Validator {
	return &Validator{
		log: logger.WithComponent("Validator"),
	}
}

// CheckBar 校验单条K线，返回发现的全部问题。
func (v *Validator) CheckBar(bar core.Bar) []Issue {
	var issues []Issue
	date := bar.Date.Format("2006-01-02")
	add := func(field, reason string) {
		issues = append(issues, Issue{Code: bar.Code, Date: date, Field: field, Reason: reason})
	}

	if bar.Code == "" {
		add("code", "股票代码为空")
	}
	if bar.Date.IsZero() {
		add("date", "交易日期为空")
	}
	if bar.Open <= 0 {
		add("open", "开盘价必须为正")
	}
	if bar.High <= 0 {
		add("high", "最高价必须为正")
	}
	if bar.Low <= 0 {
		add("low", "最低价必须为正")
	}
	if bar.Close <= 0 {
		add("close", "收盘价必须为正")
	}
	if bar.Volume < 0 {
		add("volume", "成交量不能为负")
	}

	if bar.High > 0 && bar.Low > 0 {
		if bar.High < bar.Low {
			add("high", "最高价低于最低价")
		}
		if bar.Open > bar.High || bar.Open < bar.Low {
			add("open", "开盘价超出最高最低价范围")
		}
		if bar.Close > bar.High || bar.Close < bar.Low {
			add("close", "收盘价超出最高最低价范围")
		}
	}

	return issues
}

// CheckSeries 校验一只股票的K线序列，包括逐条检查和日期有序性检查。
func (v *Validator) CheckSeries(bars []core.Bar) Report {
	report := Report{Total: len(bars)}
	for i, bar := range bars {
		issues := v.CheckBar(bar)
		if i > 0 && !bars[i-1].Date.Before(bar.Date) {
			issues = append(issues, Issue{
				Code:   bar.Code,
				Date:   bar.Date.Format("2006-01-02"),
				Field:  "date",
				Reason: "日期未按升序排列或存在重复",
			})
		}
		if len(issues) == 0 {
			report.Valid++
		} else {
			report.Dropped++
			report.Issues = append(report.Issues, issues...)
		}
	}
	return report
}

// Clean 剔除有问题的K线，返回干净序列和校验报告。
// 乱序或重复日期的K线同样被剔除，保证输出严格升序。
func (v *Validator) Clean(bars []core.Bar) ([]core.Bar, Report) {
	report := Report{Total: len(bars)}
	out := make([]core.Bar, 0, len(bars))

	for _, bar := range bars {
		issues := v.CheckBar(bar)
		if len(out) > 0 && !out[len(out)-1].Date.Before(bar.Date) {
			issues = append(issues, Issue{
				Code:   bar.Code,
				Date:   bar.Date.Format("2006-01-02"),
				Field:  "date",
				Reason: "日期未按升序排列或存在重复",
			})
		}
		if len(issues) > 0 {
			report.Dropped++
			report.Issues = append(report.Issues, issues...)
			continue
		}
		report.Valid++
		out = append(out, bar)
	}

	if report.Dropped > 0 {
		v.log.Warnf("清洗K线完成，剔除 %d/%d 条", report.Dropped, report.Total)
	}
	return out, report
}

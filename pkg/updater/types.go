package updater

import (
	"time"
)

// TaskStatus 更新任务状态
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending" // 已创建未开始
	TaskStatusRunning TaskStatus = "running" // 正在执行
	TaskStatusSuccess TaskStatus = "success" // 全部成功
	TaskStatusPartial TaskStatus = "partial" // 部分股票失败或被跳过
	TaskStatusFailed  TaskStatus = "failed"  // 整体失败
)

// Task 一次数据更新与分析任务的执行记录
type Task struct {
	ID         string     `json:"id"`                    // 任务ID (UUID)
	Trigger    string     `json:"trigger"`               // 触发方式: manual, scheduled
	Status     TaskStatus `json:"status"`                // 任务状态
	StartedAt  time.Time  `json:"started_at"`            // 开始时间
	FinishedAt *time.Time `json:"finished_at,omitempty"` // 结束时间
	Total      int        `json:"total"`                 // 目标股票数
	Analyzed   int        `json:"analyzed"`              // 成功分析数
	Skipped    int        `json:"skipped"`               // 因数据不足跳过数
	Failed     int        `json:"failed"`                // 失败数
	Error      string     `json:"error,omitempty"`       // 整体失败原因
}

// Done 任务是否已结束
func (t *Task) Done() bool {
	switch t.Status {
	case TaskStatusSuccess, TaskStatusPartial, TaskStatusFailed:
		return true
	default:
		return false
	}
}

package scheduler

import (
	"time"
)

// Clock 时间源
type Clock interface {
	Now() time.Time
}

// Task 已调度的一次性任务
type Task interface {
	// Cancel 取消任务；任务已执行或已取消时返回 false
	Cancel() bool
}

// Scheduler 可取消的一次性定时任务调度器
type Scheduler interface {
	Clock
	AfterFunc(d time.Duration, fn func()) Task
}

// RealScheduler 基于 time.AfterFunc 的调度器
type RealScheduler struct{}

// NewRealScheduler 创建真实时间调度器
func NewRealScheduler() *RealScheduler {
	return &RealScheduler{}
}

// Now 当前时间
func (RealScheduler) Now() time.Time {
	return time.Now()
}

// AfterFunc 在 d 之后执行 fn
func (RealScheduler) AfterFunc(d time.Duration, fn func()) Task {
	if d < 0 {
		d = 0
	}
	return realTask{timer: time.AfterFunc(d, fn)}
}

type realTask struct {
	timer *time.Timer
}

func (t realTask) Cancel() bool {
	return t.timer.Stop()
}

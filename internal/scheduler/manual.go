package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

// ManualScheduler 手动推进的虚拟时钟调度器（测试与回放使用）
// 任务按 (fireAt, 提交顺序) 执行，回调在锁外运行，可在回调中再次调度
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	queue taskHeap
}

// NewManualScheduler 创建虚拟时钟调度器
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

// Now 当前虚拟时间
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// AfterFunc 在虚拟时间 now+d 执行 fn
func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) Task {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &manualTask{
		sched:  s,
		fireAt: s.now.Add(d),
		seq:    s.seq,
		fn:     fn,
	}
	heap.Push(&s.queue, t)
	return t
}

// Advance 推进虚拟时间 d，执行所有到期任务，返回执行数量
func (s *ManualScheduler) Advance(d time.Duration) int {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()
	return s.AdvanceTo(target)
}

// AdvanceTo 推进到指定时间
func (s *ManualScheduler) AdvanceTo(target time.Time) int {
	fired := 0
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.queue[0].fireAt.After(target) {
			if target.After(s.now) {
				s.now = target
			}
			s.mu.Unlock()
			return fired
		}
		t := heap.Pop(&s.queue).(*manualTask)
		t.index = -1
		t.done = true
		if t.fireAt.After(s.now) {
			s.now = t.fireAt
		}
		s.mu.Unlock()

		t.fn()
		fired++
	}
}

// Pending 待执行任务数
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

type manualTask struct {
	sched  *ManualScheduler
	fireAt time.Time
	seq    uint64
	fn     func()
	index  int
	done   bool
}

func (t *manualTask) Cancel() bool {
	s := t.sched
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.done || t.index < 0 {
		return false
	}
	heap.Remove(&s.queue, t.index)
	t.index = -1
	t.done = true
	return true
}

type taskHeap []*manualTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].fireAt.Equal(h[j].fireAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].fireAt.Before(h[j].fireAt)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x interface{}) {
	t := x.(*manualTask)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

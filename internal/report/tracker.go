package report

import (
	"sync"
	"time"

	"wisefido-emergency/internal/models"
	"wisefido-emergency/internal/scheduler"

	"github.com/google/uuid"
)

// maxHistory 保留的历史周报数量
const maxHistory = 12

// WeekStart 所在周的周一 00:00（按 t 的时区）
func WeekStart(t time.Time) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Tracker 周报计数与跌倒记录
type Tracker struct {
	clock scheduler.Clock

	mu      sync.Mutex
	current models.WeeklyReport
	history []models.WeeklyReport
	falls   []models.FallRecord
}

// NewTracker 创建周报计数器
func NewTracker(clock scheduler.Clock) *Tracker {
	return &Tracker{
		clock:   clock,
		current: newReport(clock.Now()),
	}
}

func newReport(now time.Time) models.WeeklyReport {
	return models.WeeklyReport{
		WeekStart:    WeekStart(now),
		AlertsByType: make(map[models.AlertType]int),
	}
}

// RecordAlert 记录一次报警创建
func (t *Tracker) RecordAlert(alertType models.AlertType) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current.AlertsByType[alertType]++
}

// RecordSafeZoneExit 离开安全区 +1（每个新报警一次）
func (t *Tracker) RecordSafeZoneExit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current.SafeZoneExits++
}

// RecordFall 新增跌倒记录并计数
func (t *Tracker) RecordFall(at time.Time) models.FallRecord {
	rec := models.FallRecord{
		ID:        uuid.New().String(),
		Timestamp: at,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.falls = append(t.falls, rec)
	t.current.FallIncidents++
	return rec
}

// AcknowledgeFall 确认跌倒记录
func (t *Tracker) AcknowledgeFall(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.falls {
		if t.falls[i].ID == id {
			if t.falls[i].Acknowledged {
				return false
			}
			t.falls[i].Acknowledged = true
			return true
		}
	}
	return false
}

// Falls 跌倒记录副本
func (t *Tracker) Falls() []models.FallRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.FallRecord(nil), t.falls...)
}

// Current 本周计数副本
func (t *Tracker) Current() models.WeeklyReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current.Clone()
}

// History 已归档的周报（旧到新）
func (t *Tracker) History() []models.WeeklyReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.WeeklyReport, 0, len(t.history))
	for _, r := range t.history {
		out = append(out, r.Clone())
	}
	return out
}

// Rollover 归档当前周报并开始新的一周，返回归档的周报
// 仍在同一周时不归档，ok=false
func (t *Tracker) Rollover(now time.Time) (models.WeeklyReport, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := WeekStart(now)
	if !start.After(t.current.WeekStart) {
		return models.WeeklyReport{}, false
	}
	prev := t.current
	t.history = append(t.history, prev)
	if len(t.history) > maxHistory {
		t.history = t.history[len(t.history)-maxHistory:]
	}
	t.current = newReport(now)
	return prev.Clone(), true
}

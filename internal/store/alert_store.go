package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"wisefido-emergency/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound 报警不存在
var ErrNotFound = errors.New("alert not found")

// AlertStore 报警存储（按创建顺序保存，历史不删除）
// 所有状态迁移都是 check-then-act：未知 ID 或已结束的报警返回 false
type AlertStore struct {
	mu     sync.RWMutex
	alerts map[string]*models.EmergencyAlert
	order  []string
}

// NewAlertStore 创建报警存储
func NewAlertStore() *AlertStore {
	return &AlertStore{
		alerts: make(map[string]*models.EmergencyAlert),
	}
}

// NewAlert 报警创建参数
type NewAlert struct {
	Type      models.AlertType
	Title     string
	Message   string
	Location  *models.Location
	IsOffline bool
}

// Create 创建报警：level=caregiver, status=active
func (s *AlertStore) Create(in NewAlert, now time.Time) *models.EmergencyAlert {
	alert := &models.EmergencyAlert{
		ID:        uuid.New().String(),
		Type:      in.Type,
		Level:     models.AlertLevelCaregiver,
		Status:    models.AlertStatusActive,
		Title:     in.Title,
		Message:   in.Message,
		Timestamp: now,
		IsOffline: in.IsOffline,
	}
	if in.Location != nil {
		loc := *in.Location
		alert.Location = &loc
	}

	s.mu.Lock()
	s.alerts[alert.ID] = alert
	s.order = append(s.order, alert.ID)
	s.mu.Unlock()

	return alert.Clone()
}

// Get 获取报警副本
func (s *AlertStore) Get(id string) (*models.EmergencyAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

// List 按创建顺序返回全部报警副本
func (s *AlertStore) List() []*models.EmergencyAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.EmergencyAlert, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.alerts[id].Clone())
	}
	return out
}

// Len 报警数量
func (s *AlertStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// FindActiveByType 查找指定类型未结束的报警（去重依据）
func (s *AlertStore) FindActiveByType(t models.AlertType) (*models.EmergencyAlert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		a := s.alerts[id]
		if a.Type == t && !a.IsResolved() {
			return a.Clone(), true
		}
	}
	return nil, false
}

// FirstUnresolved 按创建顺序第一个未结束的报警
func (s *AlertStore) FirstUnresolved() (*models.EmergencyAlert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if a := s.alerts[id]; !a.IsResolved() {
			return a.Clone(), true
		}
	}
	return nil, false
}

// Unresolved 全部未结束的报警
func (s *AlertStore) Unresolved() []*models.EmergencyAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.EmergencyAlert
	for _, id := range s.order {
		if a := s.alerts[id]; !a.IsResolved() {
			out = append(out, a.Clone())
		}
	}
	return out
}

// Acknowledge 确认报警
// active 与 escalated 均可确认，层级不回退；确认人和时间只记录一次
func (s *AlertStore) Acknowledge(id, by string, now time.Time) (*models.EmergencyAlert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, false
	}
	if a.Status != models.AlertStatusActive && a.Status != models.AlertStatusEscalated {
		return nil, false
	}
	a.Status = models.AlertStatusAcknowledged
	if a.AcknowledgedAt == nil {
		at := now
		a.AcknowledgedAt = &at
		a.AcknowledgedBy = by
	}
	return a.Clone(), true
}

// Escalate 手动升级一级
// 已结束或已到 emergency 时不变
func (s *AlertStore) Escalate(id, escalatedTo string, now time.Time) (*models.EmergencyAlert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok || a.IsResolved() {
		return nil, false
	}
	next, ok := a.Level.Next()
	if !ok {
		return nil, false
	}
	at := now
	a.Level = next
	a.Status = models.AlertStatusEscalated
	a.EscalatedTo = escalatedTo
	a.EscalatedAt = &at
	return a.Clone(), true
}

// AutoEscalate 超时自动升级
// from=caregiver：报警仍为 active 才升级到 family
// from=family：报警仍为 escalated 且层级为 family 才升级到 emergency
func (s *AlertStore) AutoEscalate(id string, from models.AlertLevel, escalatedTo string, now time.Time) (*models.EmergencyAlert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok || a.Level != from {
		return nil, false
	}
	switch from {
	case models.AlertLevelCaregiver:
		if a.Status != models.AlertStatusActive {
			return nil, false
		}
	case models.AlertLevelFamily:
		if a.Status != models.AlertStatusEscalated {
			return nil, false
		}
	default:
		return nil, false
	}

	next, _ := from.Next()
	at := now
	a.Level = next
	a.Status = models.AlertStatusEscalated
	a.EscalatedAt = &at
	if escalatedTo != "" {
		a.EscalatedTo = escalatedTo
	}
	return a.Clone(), true
}

// Resolve 结束报警（终态）
func (s *AlertStore) Resolve(id string, now time.Time) (*models.EmergencyAlert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok || a.IsResolved() {
		return nil, false
	}
	at := now
	a.Status = models.AlertStatusResolved
	a.ResolvedAt = &at
	return a.Clone(), true
}

// Restore 从持久化历史恢复（按 Timestamp 排序后追加，已存在的 ID 跳过）
func (s *AlertStore) Restore(alerts []*models.EmergencyAlert) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]*models.EmergencyAlert, 0, len(alerts))
	for _, a := range alerts {
		if a != nil && a.ID != "" {
			sorted = append(sorted, a)
		}
	}
	sortByTimestamp(sorted)

	restored := 0
	for _, a := range sorted {
		if _, exists := s.alerts[a.ID]; exists {
			continue
		}
		s.alerts[a.ID] = a.Clone()
		s.order = append(s.order, a.ID)
		restored++
	}
	return restored
}

func sortByTimestamp(alerts []*models.EmergencyAlert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Timestamp.Before(alerts[j].Timestamp)
	})
}

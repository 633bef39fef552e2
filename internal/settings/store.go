package settings

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"wisefido-emergency/internal/models"

	"github.com/google/uuid"
)

// ErrContactNotFound 联系人不存在
var ErrContactNotFound = errors.New("emergency contact not found")

// Observer 配置变更回调（收到的是副本）
type Observer func(models.EmergencySettings)

// Store 紧急报警配置存储
// 照护端配置界面写入，检测器与升级调度读取
type Store struct {
	mu        sync.RWMutex
	settings  models.EmergencySettings
	observers []Observer
}

// NewStore 创建配置存储
func NewStore(initial models.EmergencySettings) *Store {
	s := initial.Clone()
	SortContacts(s.EmergencyContacts)
	return &Store{settings: s}
}

// OnChange 注册变更回调
func (s *Store) OnChange(fn Observer) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Get 获取当前配置副本
func (s *Store) Get() models.EmergencySettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// Update 修改配置，返回修改后的副本
func (s *Store) Update(fn func(*models.EmergencySettings)) models.EmergencySettings {
	s.mu.Lock()
	fn(&s.settings)
	SortContacts(s.settings.EmergencyContacts)
	out, observers := s.snapshotLocked()
	s.mu.Unlock()

	notify(observers, out)
	return out
}

// RecordActivity 记录患者最近一次活动时间
func (s *Store) RecordActivity(at time.Time) {
	s.Update(func(es *models.EmergencySettings) {
		if at.After(es.LastPatientActivity) {
			es.LastPatientActivity = at
		}
	})
}

// SetOfflineMode 开关离线排队模式
func (s *Store) SetOfflineMode(on bool) {
	s.Update(func(es *models.EmergencySettings) {
		es.IsOfflineMode = on
	})
}

// Contacts 获取联系人副本（按优先级排序）
func (s *Store) Contacts() []models.EmergencyContact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.EmergencyContact(nil), s.settings.EmergencyContacts...)
}

// AddContact 添加联系人
// 未指定 ID 时生成 UUID；未指定优先级时排在最后
func (s *Store) AddContact(c models.EmergencyContact) (models.EmergencyContact, error) {
	if c.Name == "" {
		return models.EmergencyContact{}, fmt.Errorf("contact name is required")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	s.mu.Lock()
	for _, existing := range s.settings.EmergencyContacts {
		if existing.ID == c.ID {
			s.mu.Unlock()
			return models.EmergencyContact{}, fmt.Errorf("contact %s already exists", c.ID)
		}
	}
	if c.Priority <= 0 {
		c.Priority = len(s.settings.EmergencyContacts) + 1
	}
	s.settings.EmergencyContacts = append(s.settings.EmergencyContacts, c)
	SortContacts(s.settings.EmergencyContacts)
	out, observers := s.snapshotLocked()
	s.mu.Unlock()

	notify(observers, out)
	return c, nil
}

// UpdateContact 更新联系人（按 ID 匹配）
func (s *Store) UpdateContact(c models.EmergencyContact) error {
	s.mu.Lock()
	idx := s.indexLocked(c.ID)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("failed to update contact %s: %w", c.ID, ErrContactNotFound)
	}
	s.settings.EmergencyContacts[idx] = c
	SortContacts(s.settings.EmergencyContacts)
	out, observers := s.snapshotLocked()
	s.mu.Unlock()

	notify(observers, out)
	return nil
}

// RemoveContact 删除联系人，剩余联系人优先级重排为连续的 1..N
func (s *Store) RemoveContact(id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("failed to remove contact %s: %w", id, ErrContactNotFound)
	}
	contacts := s.settings.EmergencyContacts
	contacts = append(contacts[:idx:idx], contacts[idx+1:]...)
	Resequence(contacts)
	s.settings.EmergencyContacts = contacts
	out, observers := s.snapshotLocked()
	s.mu.Unlock()

	notify(observers, out)
	return nil
}

// MoveContact 上移/下移联系人并重排优先级；已在边界时不变
func (s *Store) MoveContact(id string, dir Direction) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("failed to move contact %s: %w", id, ErrContactNotFound)
	}
	contacts := s.settings.EmergencyContacts
	target := idx - 1
	if dir == MoveDown {
		target = idx + 1
	}
	if target < 0 || target >= len(contacts) {
		s.mu.Unlock()
		return nil
	}
	contacts[idx], contacts[target] = contacts[target], contacts[idx]
	Resequence(contacts)
	out, observers := s.snapshotLocked()
	s.mu.Unlock()

	notify(observers, out)
	return nil
}

func (s *Store) indexLocked(id string) int {
	for i, c := range s.settings.EmergencyContacts {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() (models.EmergencySettings, []Observer) {
	return s.settings.Clone(), append([]Observer(nil), s.observers...)
}

func notify(observers []Observer, es models.EmergencySettings) {
	for _, fn := range observers {
		fn(es.Clone())
	}
}

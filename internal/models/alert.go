package models

import (
	"time"
)

// AlertType 报警类型
type AlertType string

const (
	AlertTypeInactivity AlertType = "inactivity"
	AlertTypeSafeZone   AlertType = "safe_zone"
	AlertTypeDistance   AlertType = "distance" // 与照护者距离过远
	AlertTypeFall       AlertType = "fall"
	AlertTypeSOS        AlertType = "sos"
	AlertTypeLowBattery AlertType = "low_battery"
)

// AllAlertTypes 全部报警类型（报表导出顺序）
var AllAlertTypes = []AlertType{
	AlertTypeInactivity,
	AlertTypeSafeZone,
	AlertTypeDistance,
	AlertTypeFall,
	AlertTypeSOS,
	AlertTypeLowBattery,
}

// Valid 是否为已知类型
func (t AlertType) Valid() bool {
	for _, v := range AllAlertTypes {
		if v == t {
			return true
		}
	}
	return false
}

// AlertLevel 升级层级：caregiver -> family -> emergency，只进不退
type AlertLevel string

const (
	AlertLevelCaregiver AlertLevel = "caregiver"
	AlertLevelFamily    AlertLevel = "family"
	AlertLevelEmergency AlertLevel = "emergency"
)

// Rank 层级序号，未知层级返回 -1
func (l AlertLevel) Rank() int {
	switch l {
	case AlertLevelCaregiver:
		return 0
	case AlertLevelFamily:
		return 1
	case AlertLevelEmergency:
		return 2
	default:
		return -1
	}
}

// Next 下一层级；已到 emergency 时 ok=false
func (l AlertLevel) Next() (AlertLevel, bool) {
	switch l {
	case AlertLevelCaregiver:
		return AlertLevelFamily, true
	case AlertLevelFamily:
		return AlertLevelEmergency, true
	default:
		return l, false
	}
}

// ContactPriority 层级对应的联系人优先级（1 照护者，2 家属，3 外部紧急）
func (l AlertLevel) ContactPriority() int {
	return l.Rank() + 1
}

// AlertStatus 报警状态
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusEscalated    AlertStatus = "escalated"
	AlertStatusResolved     AlertStatus = "resolved"
)

// Location 经纬度快照
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// EmergencyAlert 紧急报警
type EmergencyAlert struct {
	ID             string      `json:"id"`
	Type           AlertType   `json:"type"`
	Level          AlertLevel  `json:"level"`
	Status         AlertStatus `json:"status"`
	Title          string      `json:"title"`
	Message        string      `json:"message"`
	Timestamp      time.Time   `json:"timestamp"`
	Location       *Location   `json:"location,omitempty"`
	IsOffline      bool        `json:"is_offline"`
	AcknowledgedBy string      `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time  `json:"acknowledged_at,omitempty"`
	EscalatedTo    string      `json:"escalated_to,omitempty"`
	EscalatedAt    *time.Time  `json:"escalated_at,omitempty"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
}

// IsResolved 是否已结束（终态）
func (a *EmergencyAlert) IsResolved() bool {
	return a.Status == AlertStatusResolved
}

// Clone 深拷贝，供存储外部读取
func (a *EmergencyAlert) Clone() *EmergencyAlert {
	if a == nil {
		return nil
	}
	c := *a
	if a.Location != nil {
		loc := *a.Location
		c.Location = &loc
	}
	c.AcknowledgedAt = cloneTime(a.AcknowledgedAt)
	c.EscalatedAt = cloneTime(a.EscalatedAt)
	c.ResolvedAt = cloneTime(a.ResolvedAt)
	return &c
}

// QueuedAlert 离线队列记录
type QueuedAlert struct {
	EmergencyAlert
	QueuedAt time.Time `json:"queued_at"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

package models

import (
	"time"
)

// EmergencyContact 紧急联系人
// Priority: 1 照护者，2 家属，3 外部紧急联系人
type EmergencyContact struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Phone              string `json:"phone"`
	Relation           string `json:"relation"`
	Priority           int    `json:"priority"`
	NotifyOnEscalation bool   `json:"notify_on_escalation"`
}

// DistanceAlertConfig 与照护者距离报警配置
type DistanceAlertConfig struct {
	Enabled       bool    `json:"enabled"`
	MaxDistanceKm float64 `json:"max_distance_km"`
}

// EmergencySettings 紧急报警配置
// 超时单位：InactivityTimeout 为分钟，两个响应超时为秒（0 表示关闭该级自动升级）
type EmergencySettings struct {
	Enabled                  bool                `json:"enabled"`
	InactivityEnabled        bool                `json:"inactivity_enabled"`
	SafeZoneAlertsEnabled    bool                `json:"safe_zone_alerts_enabled"`
	FallAlertsEnabled        bool                `json:"fall_alerts_enabled"`
	SOSAlertsEnabled         bool                `json:"sos_alerts_enabled"`
	LowBatteryAlertsEnabled  bool                `json:"low_battery_alerts_enabled"`
	LowBatteryThreshold      int                 `json:"low_battery_threshold"`
	DistanceAlert            DistanceAlertConfig `json:"distance_alert"`
	InactivityTimeout        int                 `json:"inactivity_timeout"`
	CaregiverResponseTimeout int                 `json:"caregiver_response_timeout"`
	FamilyResponseTimeout    int                 `json:"family_response_timeout"`
	EmergencyContacts        []EmergencyContact  `json:"emergency_contacts"`
	LastPatientActivity      time.Time           `json:"last_patient_activity"`
	IsOfflineMode            bool                `json:"is_offline_mode"`
}

// DefaultEmergencySettings 默认配置
func DefaultEmergencySettings(now time.Time) EmergencySettings {
	return EmergencySettings{
		Enabled:                 true,
		InactivityEnabled:       true,
		SafeZoneAlertsEnabled:   true,
		FallAlertsEnabled:       true,
		SOSAlertsEnabled:        true,
		LowBatteryAlertsEnabled: true,
		LowBatteryThreshold:     20,
		DistanceAlert: DistanceAlertConfig{
			Enabled:       false,
			MaxDistanceKm: 5,
		},
		InactivityTimeout:        60,
		CaregiverResponseTimeout: 30,
		FamilyResponseTimeout:    30,
		EmergencyContacts:        []EmergencyContact{},
		LastPatientActivity:      now,
		IsOfflineMode:            false,
	}
}

// Clone 拷贝（联系人切片独立）
func (s EmergencySettings) Clone() EmergencySettings {
	c := s
	c.EmergencyContacts = append([]EmergencyContact(nil), s.EmergencyContacts...)
	return c
}

// TypeEnabled 单类型开关（不含总开关；SOS 的旁路规则由调用方处理）
func (s EmergencySettings) TypeEnabled(t AlertType) bool {
	switch t {
	case AlertTypeInactivity:
		return s.InactivityEnabled
	case AlertTypeSafeZone:
		return s.SafeZoneAlertsEnabled
	case AlertTypeDistance:
		return s.DistanceAlert.Enabled
	case AlertTypeFall:
		return s.FallAlertsEnabled
	case AlertTypeSOS:
		return s.SOSAlertsEnabled
	case AlertTypeLowBattery:
		return s.LowBatteryAlertsEnabled
	default:
		return false
	}
}

// CaregiverTimeout 照护者响应超时
func (s EmergencySettings) CaregiverTimeout() time.Duration {
	return time.Duration(s.CaregiverResponseTimeout) * time.Second
}

// FamilyTimeout 家属响应超时
func (s EmergencySettings) FamilyTimeout() time.Duration {
	return time.Duration(s.FamilyResponseTimeout) * time.Second
}

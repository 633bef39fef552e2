package evaluator

import (
	"fmt"

	"wisefido-emergency/internal/models"
)

// FallDetector 跌倒（传感器或手动触发）
type FallDetector struct{}

// Type 报警类型
func (FallDetector) Type() models.AlertType { return models.AlertTypeFall }

// Evaluate 启用跌倒报警时触发
func (FallDetector) Evaluate(snap Snapshot) *AlertRequest {
	if !snap.Settings.FallAlertsEnabled {
		return nil
	}
	return &AlertRequest{
		Type:     models.AlertTypeFall,
		Title:    "Fall Detected",
		Message:  "A fall has been detected! Immediate attention required.",
		Location: snap.PatientLocation.Location(),
	}
}

// SOSDetector 患者主动 SOS
type SOSDetector struct{}

// Type 报警类型
func (SOSDetector) Type() models.AlertType { return models.AlertTypeSOS }

// Evaluate 启用 SOS 时触发，与联系人配置无关
func (SOSDetector) Evaluate(snap Snapshot) *AlertRequest {
	if !snap.Settings.SOSAlertsEnabled {
		return nil
	}
	return &AlertRequest{
		Type:     models.AlertTypeSOS,
		Title:    "SOS Emergency",
		Message:  "Patient has triggered an SOS alert! Immediate response required.",
		Location: snap.PatientLocation.Location(),
	}
}

// LowBatteryDetector 低电量检测
type LowBatteryDetector struct{}

// Type 报警类型
func (LowBatteryDetector) Type() models.AlertType { return models.AlertTypeLowBattery }

// Evaluate 电量 <= 阈值且未充电时触发
func (LowBatteryDetector) Evaluate(snap Snapshot) *AlertRequest {
	s := snap.Settings
	b := snap.Battery
	if !s.LowBatteryAlertsEnabled || b == nil || b.IsCharging {
		return nil
	}
	if b.Level > s.LowBatteryThreshold {
		return nil
	}
	return &AlertRequest{
		Type:     models.AlertTypeLowBattery,
		Title:    "Low Battery Alert",
		Message:  fmt.Sprintf("Patient's device battery is at %d%%. Please remind them to charge or check on them.", b.Level),
		Location: snap.PatientLocation.Location(),
	}
}

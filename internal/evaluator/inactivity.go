package evaluator

import (
	"fmt"

	"wisefido-emergency/internal/models"
)

// InactivityDetector 长时间无活动检测
type InactivityDetector struct{}

// Type 报警类型
func (InactivityDetector) Type() models.AlertType { return models.AlertTypeInactivity }

// Evaluate 距上次活动的整分钟数 >= InactivityTimeout 时触发
func (InactivityDetector) Evaluate(snap Snapshot) *AlertRequest {
	minutes, ok := InactiveMinutes(snap)
	if !ok || minutes < snap.Settings.InactivityTimeout {
		return nil
	}
	return &AlertRequest{
		Type:    models.AlertTypeInactivity,
		Title:   "Patient Inactivity Alert",
		Message: fmt.Sprintf("No activity detected for %d minutes. Please check on the patient.", minutes),
	}
}

// InactiveMinutes 无活动整分钟数；未启用或没有活动记录时 ok=false
func InactiveMinutes(snap Snapshot) (int, bool) {
	s := snap.Settings
	if !s.InactivityEnabled || s.InactivityTimeout <= 0 || s.LastPatientActivity.IsZero() {
		return 0, false
	}
	elapsed := snap.Now.Sub(s.LastPatientActivity)
	if elapsed < 0 {
		return 0, true
	}
	return int(elapsed.Minutes()), true
}

package evaluator

import (
	"fmt"
	"strconv"
	"strings"

	"wisefido-emergency/internal/geo"
	"wisefido-emergency/internal/models"
)

// SafeZoneDetector 安全区越界检测
type SafeZoneDetector struct{}

// Type 报警类型
func (SafeZoneDetector) Type() models.AlertType { return models.AlertTypeSafeZone }

// Evaluate 患者不在任何一个启用的安全区内时触发（多个安全区取并集）
func (SafeZoneDetector) Evaluate(snap Snapshot) *AlertRequest {
	if !snap.Settings.SafeZoneAlertsEnabled || snap.PatientLocation == nil {
		return nil
	}
	enabled := EnabledZones(snap.SafeZones)
	if len(enabled) == 0 {
		return nil
	}
	p := snap.PatientLocation
	if InsideAnyZone(enabled, p.Lat, p.Lng) {
		return nil
	}

	names := make([]string, 0, len(enabled))
	for _, z := range enabled {
		names = append(names, z.Name)
	}
	return &AlertRequest{
		Type:  models.AlertTypeSafeZone,
		Title: "Safe Zone Breach",
		Message: fmt.Sprintf("Patient has left the safe zone (%s). Current location: %.4f, %.4f",
			strings.Join(names, ", "), p.Lat, p.Lng),
		Location: p.Location(),
	}
}

// EnabledZones 过滤启用的安全区
func EnabledZones(zones []models.SafeZone) []models.SafeZone {
	var out []models.SafeZone
	for _, z := range zones {
		if z.Enabled {
			out = append(out, z)
		}
	}
	return out
}

// InsideAnyZone 是否位于任一安全区内；缺少中心坐标的区域不参与判断
func InsideAnyZone(zones []models.SafeZone, lat, lng float64) bool {
	for _, z := range zones {
		if !z.HasCenter() {
			continue
		}
		if geo.Within(*z.Latitude, *z.Longitude, z.Radius, lat, lng) {
			return true
		}
	}
	return false
}

// DistanceDetector 与照护者距离检测（独立于安全区）
type DistanceDetector struct{}

// Type 报警类型
func (DistanceDetector) Type() models.AlertType { return models.AlertTypeDistance }

// Evaluate 患者与照护者距离超过 MaxDistanceKm 时触发
func (DistanceDetector) Evaluate(snap Snapshot) *AlertRequest {
	cfg := snap.Settings.DistanceAlert
	p, c := snap.PatientLocation, snap.CaregiverLocation
	if !cfg.Enabled || p == nil || c == nil {
		return nil
	}
	distance := geo.DistanceKm(p.Lat, p.Lng, c.Lat, c.Lng)
	if distance <= cfg.MaxDistanceKm {
		return nil
	}
	return &AlertRequest{
		Type:  models.AlertTypeDistance,
		Title: "Distance Alert - Too Far",
		Message: fmt.Sprintf("Patient is %.1fkm away (max: %skm). They may be wandering.",
			distance, strconv.FormatFloat(cfg.MaxDistanceKm, 'f', -1, 64)),
		Location: p.Location(),
	}
}

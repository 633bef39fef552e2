package models

import (
	"time"
)

// GeoPoint 定位上报
type GeoPoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// Location 转为报警位置快照
func (p *GeoPoint) Location() *Location {
	if p == nil {
		return nil
	}
	return &Location{Lat: p.Lat, Lng: p.Lng}
}

// SafeZone 安全区（圆形地理围栏，Radius 单位公里）
// Latitude/Longitude 缺失时该区域不参与判断
type SafeZone struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Address   string   `json:"address,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Radius    float64  `json:"radius"`
	Enabled   bool     `json:"enabled"`
}

// HasCenter 是否有有效中心点
func (z SafeZone) HasCenter() bool {
	return z.Latitude != nil && z.Longitude != nil
}

// BatteryStatus 患者设备电量
type BatteryStatus struct {
	Level      int       `json:"level"`
	IsCharging bool      `json:"is_charging"`
	LastUpdate time.Time `json:"last_update"`
}

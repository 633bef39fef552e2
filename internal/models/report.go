package models

import (
	"time"
)

// FallRecord 跌倒记录
type FallRecord struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Acknowledged bool      `json:"acknowledged"`
}

// WeeklyReport 周报计数
type WeeklyReport struct {
	WeekStart     time.Time         `json:"week_start"`
	SafeZoneExits int               `json:"safe_zone_exits"`
	FallIncidents int               `json:"fall_incidents"`
	AlertsByType  map[AlertType]int `json:"alerts_by_type"`
}

// Clone 拷贝
func (r WeeklyReport) Clone() WeeklyReport {
	c := r
	c.AlertsByType = make(map[AlertType]int, len(r.AlertsByType))
	for k, v := range r.AlertsByType {
		c.AlertsByType[k] = v
	}
	return c
}

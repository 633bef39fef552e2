package service

import (
	"context"
	"time"

	"wisefido-emergency/internal/evaluator"
	"wisefido-emergency/internal/models"
)

// runDetectorsLocked 评估指定检测器并创建报警；调用方必须持有 mu
func (s *EmergencyService) runDetectorsLocked(eff *effects, types ...models.AlertType) []*models.EmergencyAlert {
	es := s.settings.Get()
	snap := evaluator.Snapshot{
		Now:               s.sched.Now(),
		Settings:          es,
		PatientLocation:   s.patientLocation,
		CaregiverLocation: s.caregiverLocation,
		SafeZones:         s.safeZones,
		Battery:           s.battery,
	}

	var created []*models.EmergencyAlert
	for _, req := range s.evaluator.Evaluate(snap, types...) {
		alert, ok := s.createLocked(req, es, eff)
		if !ok {
			continue
		}
		created = append(created, alert)
	}
	return created
}

func (s *EmergencyService) detect(ctx context.Context, update func(), types ...models.AlertType) []*models.EmergencyAlert {
	s.mu.Lock()
	if update != nil {
		update()
	}
	eff := &effects{}
	created := s.runDetectorsLocked(eff, types...)
	s.commit(ctx, eff)
	return created
}

func first(alerts []*models.EmergencyAlert) (*models.EmergencyAlert, bool) {
	if len(alerts) == 0 {
		return nil, false
	}
	return alerts[0], true
}

// CheckInactivity 无活动检测（定时轮询调用）
func (s *EmergencyService) CheckInactivity(ctx context.Context) (*models.EmergencyAlert, bool) {
	return first(s.detect(ctx, nil, models.AlertTypeInactivity))
}

// RecordPatientActivity 患者有交互时调用
func (s *EmergencyService) RecordPatientActivity(at time.Time) {
	s.settings.RecordActivity(at)
}

// UpdatePatientLocation 患者定位更新：检查安全区与距离
func (s *EmergencyService) UpdatePatientLocation(ctx context.Context, p models.GeoPoint) []*models.EmergencyAlert {
	return s.detect(ctx, func() {
		s.patientLocation = &p
	}, models.AlertTypeSafeZone, models.AlertTypeDistance)
}

// UpdateCaregiverLocation 照护者定位更新：检查距离
func (s *EmergencyService) UpdateCaregiverLocation(ctx context.Context, p models.GeoPoint) []*models.EmergencyAlert {
	return s.detect(ctx, func() {
		s.caregiverLocation = &p
	}, models.AlertTypeDistance)
}

// SetSafeZones 更新安全区并重新检查
func (s *EmergencyService) SetSafeZones(ctx context.Context, zones []models.SafeZone) []*models.EmergencyAlert {
	zs := append([]models.SafeZone(nil), zones...)
	return s.detect(ctx, func() {
		s.safeZones = zs
	}, models.AlertTypeSafeZone)
}

// TriggerFall 跌倒（传感器或手动）
func (s *EmergencyService) TriggerFall(ctx context.Context) (*models.EmergencyAlert, bool) {
	return first(s.detect(ctx, nil, models.AlertTypeFall))
}

// TriggerSOS 患者按下 SOS
func (s *EmergencyService) TriggerSOS(ctx context.Context) (*models.EmergencyAlert, bool) {
	return first(s.detect(ctx, nil, models.AlertTypeSOS))
}

// UpdateBattery 电量上报：检查低电量
func (s *EmergencyService) UpdateBattery(ctx context.Context, b models.BatteryStatus) (*models.EmergencyAlert, bool) {
	return first(s.detect(ctx, func() {
		s.battery = &b
	}, models.AlertTypeLowBattery))
}

// PatientLocation 最近的患者定位
func (s *EmergencyService) PatientLocation() (models.GeoPoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.patientLocation == nil {
		return models.GeoPoint{}, false
	}
	return *s.patientLocation, true
}

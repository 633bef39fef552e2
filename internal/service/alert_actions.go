package service

import (
	"context"

	"wisefido-emergency/internal/escalation"
	"wisefido-emergency/internal/evaluator"
	"wisefido-emergency/internal/metrics"
	"wisefido-emergency/internal/models"
	"wisefido-emergency/internal/notify"
	"wisefido-emergency/internal/settings"
	"wisefido-emergency/internal/store"

	"go.uber.org/zap"
)

// CreateAlert 创建报警
// 总开关关闭、类型开关关闭（SOS 除外）或同类型报警未结束时不创建，ok=false
func (s *EmergencyService) CreateAlert(ctx context.Context, t models.AlertType, title, message string, loc *models.Location) (*models.EmergencyAlert, bool) {
	s.mu.Lock()
	eff := &effects{}
	alert, ok := s.createLocked(evaluator.AlertRequest{
		Type:     t,
		Title:    title,
		Message:  message,
		Location: loc,
	}, s.settings.Get(), eff)
	s.commit(ctx, eff)
	return alert, ok
}

// createLocked 调用方必须持有 mu
func (s *EmergencyService) createLocked(req evaluator.AlertRequest, es models.EmergencySettings, eff *effects) (*models.EmergencyAlert, bool) {
	if !es.Enabled {
		metrics.IncAlertSuppressed(string(req.Type), "disabled")
		return nil, false
	}
	// SOS 由患者主动触发，不受类型开关限制
	if req.Type != models.AlertTypeSOS && !es.TypeEnabled(req.Type) {
		metrics.IncAlertSuppressed(string(req.Type), "type_disabled")
		return nil, false
	}
	if _, exists := s.alerts.FindActiveByType(req.Type); exists {
		metrics.IncAlertSuppressed(string(req.Type), "duplicate")
		return nil, false
	}

	now := s.sched.Now()
	isOffline := !s.conn.Online()
	alert := s.alerts.Create(store.NewAlert{
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Location:  req.Location,
		IsOffline: isOffline,
	}, now)

	if es.IsOfflineMode && isOffline {
		eff.enqueue = append(eff.enqueue, models.QueuedAlert{
			EmergencyAlert: *alert.Clone(),
			QueuedAt:       now,
		})
	}
	s.escalator.Arm(alert, es)
	s.tracker.RecordAlert(alert.Type)
	switch alert.Type {
	case models.AlertTypeSafeZone:
		s.tracker.RecordSafeZoneExit()
	case models.AlertTypeFall:
		s.tracker.RecordFall(alert.Timestamp)
	}
	eff.emit(notify.EventCreated, notify.TriggerAuto, alert, now)

	s.logger.Info("Emergency alert created",
		zap.String("alert_id", alert.ID),
		zap.String("alert_type", string(alert.Type)),
		zap.Bool("is_offline", isOffline),
		zap.Int("contacts", len(es.EmergencyContacts)),
	)
	return alert, true
}

// Acknowledge 确认报警，并取消尚未触发的自动升级
func (s *EmergencyService) Acknowledge(ctx context.Context, id, acknowledgedBy string) bool {
	s.mu.Lock()
	eff := &effects{}
	now := s.sched.Now()
	alert, ok := s.alerts.Acknowledge(id, acknowledgedBy, now)
	if ok {
		s.escalator.Cancel(id)
		metrics.ObserveAcknowledge(now.Sub(alert.Timestamp))
		eff.emit(notify.EventAcknowledged, notify.TriggerManual, alert, now)
	}
	s.commit(ctx, eff)
	return ok
}

// Escalate 手动升级到下一层级
// 没有符合条件的下一层级联系人时不变，返回 false
func (s *EmergencyService) Escalate(ctx context.Context, id string) bool {
	s.mu.Lock()
	eff := &effects{}
	ok := s.escalateLocked(id, eff)
	s.commit(ctx, eff)
	return ok
}

func (s *EmergencyService) escalateLocked(id string, eff *effects) bool {
	current, err := s.alerts.Get(id)
	if err != nil || current.IsResolved() {
		return false
	}
	es := s.settings.Get()
	contact, found := settings.NextTierContact(es.EmergencyContacts, current.Level)
	if !found {
		s.logger.Info("No next-tier contact for manual escalation",
			zap.String("alert_id", id),
			zap.String("level", string(current.Level)),
		)
		return false
	}

	now := s.sched.Now()
	alert, ok := s.alerts.Escalate(id, contact.Name, now)
	if !ok {
		return false
	}
	// 剩余的自动升级按新状态重新计算
	s.escalator.Arm(alert, es)
	eff.emit(notify.EventEscalated, notify.TriggerManual, alert, now)
	return true
}

// Resolve 结束报警（终态）
func (s *EmergencyService) Resolve(ctx context.Context, id string) bool {
	s.mu.Lock()
	eff := &effects{}
	now := s.sched.Now()
	alert, ok := s.alerts.Resolve(id, now)
	if ok {
		s.escalator.Cancel(id)
		eff.emit(notify.EventResolved, notify.TriggerManual, alert, now)
	}
	s.commit(ctx, eff)
	return ok
}

// handleEscalation 升级定时器到期：重新读取当前配置与报警状态后再决定
func (s *EmergencyService) handleEscalation(alertID string, hop escalation.Hop) {
	ctx := context.Background()
	s.mu.Lock()
	eff := &effects{}
	defer func() { s.commit(ctx, eff) }()

	es := s.settings.Get()
	if len(es.EmergencyContacts) == 0 || es.CaregiverResponseTimeout <= 0 {
		return
	}
	if hop == escalation.HopEmergency && es.FamilyResponseTimeout <= 0 {
		return
	}

	escalatedTo := ""
	if contact, ok := settings.NextTierContact(es.EmergencyContacts, hop.From()); ok {
		escalatedTo = contact.Name
	}
	now := s.sched.Now()
	alert, ok := s.alerts.AutoEscalate(alertID, hop.From(), escalatedTo, now)
	if !ok {
		s.logger.Debug("Escalation skipped, alert no longer eligible",
			zap.String("alert_id", alertID),
			zap.String("hop", hop.String()),
		)
		return
	}
	eff.emit(notify.EventEscalated, notify.TriggerAuto, alert, now)
	s.logger.Warn("Emergency alert auto-escalated",
		zap.String("alert_id", alertID),
		zap.String("level", string(alert.Level)),
		zap.String("escalated_to", alert.EscalatedTo),
	)
}

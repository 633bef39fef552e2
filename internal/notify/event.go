package notify

import (
	"context"
	"time"

	"wisefido-emergency/internal/models"

	"go.uber.org/zap"
)

// EventType 报警生命周期事件
type EventType string

const (
	EventCreated      EventType = "created"
	EventAcknowledged EventType = "acknowledged"
	EventEscalated    EventType = "escalated"
	EventResolved     EventType = "resolved"
)

// Trigger 状态变化来源
type Trigger string

const (
	TriggerAuto   Trigger = "auto"   // 检测器或超时定时器
	TriggerManual Trigger = "manual" // 界面操作
)

// AlertEvent 报警事件（Alert 为变化后的副本）
type AlertEvent struct {
	Type    EventType             `json:"type"`
	Trigger Trigger               `json:"trigger"`
	Alert   models.EmergencyAlert `json:"alert"`
	At      time.Time             `json:"at"`
}

// Notifier 报警事件订阅方
// Notify 在报警状态已提交后调用，不得同步回调报警服务
type Notifier interface {
	Notify(ctx context.Context, event AlertEvent)
}

// NotifierFunc 函数适配
type NotifierFunc func(ctx context.Context, event AlertEvent)

// Notify 调用 f
func (f NotifierFunc) Notify(ctx context.Context, event AlertEvent) {
	f(ctx, event)
}

// MultiNotifier 分发给多个订阅方
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier 创建分发器
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Add 追加订阅方
func (m *MultiNotifier) Add(n Notifier) {
	if n != nil {
		m.notifiers = append(m.notifiers, n)
	}
}

// Notify 依次转发
func (m *MultiNotifier) Notify(ctx context.Context, event AlertEvent) {
	if m == nil {
		return
	}
	for _, n := range m.notifiers {
		if n != nil {
			n.Notify(ctx, event)
		}
	}
}

// LoggingNotifier 记录报警事件日志
type LoggingNotifier struct {
	logger *zap.Logger
}

// NewLoggingNotifier 创建日志订阅方
func NewLoggingNotifier(logger *zap.Logger) *LoggingNotifier {
	return &LoggingNotifier{logger: logger}
}

// Notify 记录日志
func (n *LoggingNotifier) Notify(_ context.Context, event AlertEvent) {
	fields := []zap.Field{
		zap.String("alert_id", event.Alert.ID),
		zap.String("alert_type", string(event.Alert.Type)),
		zap.String("level", string(event.Alert.Level)),
		zap.String("status", string(event.Alert.Status)),
		zap.String("trigger", string(event.Trigger)),
	}
	if event.Alert.EscalatedTo != "" {
		fields = append(fields, zap.String("escalated_to", event.Alert.EscalatedTo))
	}
	if event.Type == EventCreated || event.Type == EventEscalated {
		n.logger.Warn("Emergency alert "+string(event.Type), fields...)
		return
	}
	n.logger.Info("Emergency alert "+string(event.Type), fields...)
}

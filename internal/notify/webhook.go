package notify

import (
	"context"
	"fmt"
	"time"

	"wisefido-emergency/internal/models"
	"wisefido-emergency/internal/settings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ContactSource 联系人来源（settings.Store 实现）
type ContactSource interface {
	Contacts() []models.EmergencyContact
}

// WebhookPayload 发送给短信/语音网关的请求体
type WebhookPayload struct {
	Event    EventType                 `json:"event"`
	Trigger  Trigger                   `json:"trigger"`
	Alert    models.EmergencyAlert     `json:"alert"`
	Contacts []models.EmergencyContact `json:"contacts"`
	SentAt   time.Time                 `json:"sent_at"`
}

// WebhookNotifier 报警创建和升级时通知当前层级联系人
type WebhookNotifier struct {
	httpClient *resty.Client
	url        string
	contacts   ContactSource
	logger     *zap.Logger
}

// NewWebhookNotifier 创建网关通知
func NewWebhookNotifier(url string, timeout time.Duration, contacts ContactSource, logger *zap.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookNotifier{
		httpClient: client,
		url:        url,
		contacts:   contacts,
		logger:     logger,
	}
}

// Send 发送一次通知；没有需要通知的联系人时不发送
func (w *WebhookNotifier) Send(ctx context.Context, event AlertEvent) (bool, error) {
	if event.Type != EventCreated && event.Type != EventEscalated {
		return false, nil
	}
	recipients := settings.TierContacts(w.contacts.Contacts(), event.Alert.Level)
	if len(recipients) == 0 {
		return false, nil
	}

	payload := WebhookPayload{
		Event:    event.Type,
		Trigger:  event.Trigger,
		Alert:    event.Alert,
		Contacts: recipients,
		SentAt:   event.At,
	}
	resp, err := w.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(w.url)
	if err != nil {
		return false, fmt.Errorf("failed to call notification webhook: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("notification webhook returned status %d", resp.StatusCode())
	}
	return true, nil
}

// Notify 失败只记录日志
func (w *WebhookNotifier) Notify(ctx context.Context, event AlertEvent) {
	sent, err := w.Send(ctx, event)
	if err != nil {
		w.logger.Error("Failed to notify contacts",
			zap.String("alert_id", event.Alert.ID),
			zap.String("level", string(event.Alert.Level)),
			zap.Error(err),
		)
		return
	}
	if sent {
		w.logger.Info("Contacts notified",
			zap.String("alert_id", event.Alert.ID),
			zap.String("level", string(event.Alert.Level)),
		)
	}
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Publisher MQTT 发布接口（common/mqtt.Client 实现）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTPublisher 将报警事件发布到照护端订阅的主题
// 主题：<prefix>/alerts/<event>
type MQTTPublisher struct {
	publisher Publisher
	prefix    string
	qos       byte
	logger    *zap.Logger
}

// NewMQTTPublisher 创建 MQTT 事件发布
func NewMQTTPublisher(publisher Publisher, prefix string, qos byte, logger *zap.Logger) *MQTTPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTPublisher{
		publisher: publisher,
		prefix:    strings.TrimSuffix(prefix, "/"),
		qos:       qos,
		logger:    logger,
	}
}

// Topic 事件主题
func (p *MQTTPublisher) Topic(t EventType) string {
	return fmt.Sprintf("%s/alerts/%s", p.prefix, t)
}

// Publish 发布事件
func (p *MQTTPublisher) Publish(event AlertEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}
	return p.publisher.Publish(p.Topic(event.Type), p.qos, false, payload)
}

// Notify 发布失败只记录日志
func (p *MQTTPublisher) Notify(_ context.Context, event AlertEvent) {
	if err := p.Publish(event); err != nil {
		p.logger.Error("Failed to publish alert event",
			zap.String("alert_id", event.Alert.ID),
			zap.String("event", string(event.Type)),
			zap.Error(err),
		)
	}
}

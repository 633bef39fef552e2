package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqttcommon "wisefido-emergency/internal/common/mqtt"
	"wisefido-emergency/internal/models"
	"wisefido-emergency/internal/scheduler"

	"go.uber.org/zap"
)

// 设备事件主题后缀（完整主题为 <prefix>/<suffix>）
const (
	TopicPatientLocation   = "patient/location"
	TopicCaregiverLocation = "caregiver/location"
	TopicFall              = "patient/fall"
	TopicSOS               = "patient/sos"
	TopicBattery           = "patient/battery"
	TopicActivity          = "patient/activity"
	TopicSafeZones         = "caregiver/safezones"
	TopicFallAck           = "caregiver/fall_ack"
)

// DeviceTopics 订阅的全部主题后缀
var DeviceTopics = []string{
	TopicPatientLocation,
	TopicCaregiverLocation,
	TopicFall,
	TopicSOS,
	TopicBattery,
	TopicActivity,
	TopicSafeZones,
	TopicFallAck,
}

// DeviceEventHandler 设备事件处理（EmergencyService 实现）
type DeviceEventHandler interface {
	UpdatePatientLocation(ctx context.Context, p models.GeoPoint) []*models.EmergencyAlert
	UpdateCaregiverLocation(ctx context.Context, p models.GeoPoint) []*models.EmergencyAlert
	SetSafeZones(ctx context.Context, zones []models.SafeZone) []*models.EmergencyAlert
	TriggerFall(ctx context.Context) (*models.EmergencyAlert, bool)
	TriggerSOS(ctx context.Context) (*models.EmergencyAlert, bool)
	UpdateBattery(ctx context.Context, b models.BatteryStatus) (*models.EmergencyAlert, bool)
	RecordPatientActivity(at time.Time)
	AcknowledgeFall(id string) bool
}

// Subscriber MQTT 订阅（common/mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// eventPayload 设备事件消息体；各主题只使用其中部分字段
type eventPayload struct {
	ID         string            `json:"id"`
	Lat        *float64          `json:"lat"`
	Lng        *float64          `json:"lng"`
	Level      int               `json:"level"`
	IsCharging bool              `json:"is_charging"`
	Timestamp  time.Time         `json:"timestamp"`
	Zones      []models.SafeZone `json:"zones"`
}

// DeviceEventConsumer MQTT 设备事件消费者
type DeviceEventConsumer struct {
	subscriber Subscriber
	handler    DeviceEventHandler
	clock      scheduler.Clock
	prefix     string
	qos        byte
	logger     *zap.Logger
}

// NewDeviceEventConsumer 创建设备事件消费者
func NewDeviceEventConsumer(
	subscriber Subscriber,
	handler DeviceEventHandler,
	clock scheduler.Clock,
	prefix string,
	qos byte,
	logger *zap.Logger,
) *DeviceEventConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceEventConsumer{
		subscriber: subscriber,
		handler:    handler,
		clock:      clock,
		prefix:     strings.TrimSuffix(prefix, "/"),
		qos:        qos,
		logger:     logger,
	}
}

// Topic 完整主题
func (c *DeviceEventConsumer) Topic(suffix string) string {
	return c.prefix + "/" + suffix
}

// Start 订阅全部设备主题，阻塞直到 ctx 取消
func (c *DeviceEventConsumer) Start(ctx context.Context) error {
	for _, suffix := range DeviceTopics {
		topic := c.Topic(suffix)
		if err := c.subscriber.Subscribe(topic, c.qos, c.HandleMessage); err != nil {
			return fmt.Errorf("failed to subscribe device topic: %w", err)
		}
	}

	c.logger.Info("Device event consumer started",
		zap.String("prefix", c.prefix),
		zap.Int("topics", len(DeviceTopics)),
	)

	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (c *DeviceEventConsumer) Stop() error {
	topics := make([]string, 0, len(DeviceTopics))
	for _, suffix := range DeviceTopics {
		topics = append(topics, c.Topic(suffix))
	}
	if err := c.subscriber.Unsubscribe(topics...); err != nil {
		c.logger.Error("Failed to unsubscribe device topics", zap.Error(err))
		return err
	}
	c.logger.Info("Device event consumer stopped")
	return nil
}

// HandleMessage 解析并分发一条设备事件
func (c *DeviceEventConsumer) HandleMessage(topic string, payload []byte) error {
	suffix := strings.TrimPrefix(topic, c.prefix+"/")
	if suffix == topic {
		return fmt.Errorf("unexpected topic: %s", topic)
	}

	var p eventPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("failed to unmarshal %s payload: %w", suffix, err)
		}
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = c.clock.Now()
	}

	ctx := context.Background()
	var created []*models.EmergencyAlert

	switch suffix {
	case TopicPatientLocation, TopicCaregiverLocation:
		point, err := p.point()
		if err != nil {
			return fmt.Errorf("invalid %s payload: %w", suffix, err)
		}
		if suffix == TopicPatientLocation {
			created = c.handler.UpdatePatientLocation(ctx, point)
		} else {
			created = c.handler.UpdateCaregiverLocation(ctx, point)
		}
	case TopicSafeZones:
		created = c.handler.SetSafeZones(ctx, p.Zones)
	case TopicFall:
		created = single(c.handler.TriggerFall(ctx))
	case TopicSOS:
		created = single(c.handler.TriggerSOS(ctx))
	case TopicBattery:
		created = single(c.handler.UpdateBattery(ctx, models.BatteryStatus{
			Level:      p.Level,
			IsCharging: p.IsCharging,
			LastUpdate: p.Timestamp,
		}))
	case TopicActivity:
		c.handler.RecordPatientActivity(p.Timestamp)
	case TopicFallAck:
		if p.ID == "" {
			return fmt.Errorf("invalid %s payload: id is required", suffix)
		}
		if !c.handler.AcknowledgeFall(p.ID) {
			c.logger.Warn("Fall record not found", zap.String("fall_id", p.ID))
		}
	default:
		return fmt.Errorf("unknown device topic: %s", topic)
	}

	for _, a := range created {
		c.logger.Info("Alert raised from device event",
			zap.String("topic", topic),
			zap.String("alert_id", a.ID),
			zap.String("alert_type", string(a.Type)),
		)
	}
	return nil
}

// point 位置主题必须同时携带 lat 和 lng
func (p eventPayload) point() (models.GeoPoint, error) {
	if p.Lat == nil || p.Lng == nil {
		return models.GeoPoint{}, errors.New("lat and lng are required")
	}
	return models.GeoPoint{Lat: *p.Lat, Lng: *p.Lng, Timestamp: p.Timestamp}, nil
}

func single(a *models.EmergencyAlert, ok bool) []*models.EmergencyAlert {
	if !ok {
		return nil
	}
	return []*models.EmergencyAlert{a}
}

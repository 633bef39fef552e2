package evaluator

import (
	"time"

	"wisefido-emergency/internal/models"

	"go.uber.org/zap"
)

// Snapshot 检测输入快照（由服务在临界区内组装）
type Snapshot struct {
	Now               time.Time
	Settings          models.EmergencySettings
	PatientLocation   *models.GeoPoint
	CaregiverLocation *models.GeoPoint
	SafeZones         []models.SafeZone
	Battery           *models.BatteryStatus
}

// AlertRequest 检测器请求创建的报警
type AlertRequest struct {
	Type     models.AlertType
	Title    string
	Message  string
	Location *models.Location
}

// Detector 单个触发条件检测
// 只做条件判断，去重与创建由调用方完成
type Detector interface {
	Type() models.AlertType
	Evaluate(snap Snapshot) *AlertRequest
}

// Evaluator 报警评估器（组合全部检测器）
type Evaluator struct {
	detectors map[models.AlertType]Detector
	logger    *zap.Logger
}

// NewEvaluator 创建评估器
func NewEvaluator(logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Evaluator{
		detectors: make(map[models.AlertType]Detector),
		logger:    logger,
	}

	// 初始化检测器
	for _, d := range []Detector{
		InactivityDetector{}, // 长时间无活动
		SafeZoneDetector{},   // 离开安全区
		DistanceDetector{},   // 与照护者距离过远
		FallDetector{},       // 跌倒
		SOSDetector{},        // SOS 按键
		LowBatteryDetector{}, // 低电量
	} {
		e.detectors[d.Type()] = d
	}

	return e
}

// Evaluate 按顺序评估指定类型的检测器，返回需要创建的报警
func (e *Evaluator) Evaluate(snap Snapshot, types ...models.AlertType) []AlertRequest {
	var requests []AlertRequest
	for _, t := range types {
		d, ok := e.detectors[t]
		if !ok {
			e.logger.Warn("Unknown detector", zap.String("alert_type", string(t)))
			continue
		}
		req := d.Evaluate(snap)
		if req == nil {
			continue
		}
		e.logger.Debug("Detector triggered",
			zap.String("alert_type", string(t)),
			zap.String("title", req.Title),
		)
		requests = append(requests, *req)
	}
	return requests
}

package service

import (
	"context"
	"sync"
	"time"

	"wisefido-emergency/internal/escalation"
	"wisefido-emergency/internal/evaluator"
	"wisefido-emergency/internal/metrics"
	"wisefido-emergency/internal/models"
	"wisefido-emergency/internal/notify"
	"wisefido-emergency/internal/offline"
	"wisefido-emergency/internal/report"
	"wisefido-emergency/internal/scheduler"
	"wisefido-emergency/internal/settings"
	"wisefido-emergency/internal/store"

	"go.uber.org/zap"
)

// Connectivity 网络连通性
type Connectivity interface {
	Online() bool
}

type alwaysOnline struct{}

func (alwaysOnline) Online() bool { return true }

// AlertRecorder 报警持久化（repository.AlertRepository 实现）
type AlertRecorder interface {
	SaveAlert(ctx context.Context, alert *models.EmergencyAlert) error
}

// Option 服务可选项
type Option func(*EmergencyService)

// WithOfflineQueue 离线队列
func WithOfflineQueue(q offline.Queue) Option {
	return func(s *EmergencyService) {
		if q != nil {
			s.queue = q
		}
	}
}

// WithConnectivity 连通性来源（默认始终在线）
func WithConnectivity(c Connectivity) Option {
	return func(s *EmergencyService) {
		if c != nil {
			s.conn = c
		}
	}
}

// WithRecorder 报警持久化
func WithRecorder(r AlertRecorder) Option {
	return func(s *EmergencyService) {
		s.recorder = r
	}
}

// WithReportTracker 周报计数
func WithReportTracker(t *report.Tracker) Option {
	return func(s *EmergencyService) {
		if t != nil {
			s.tracker = t
		}
	}
}

// WithNotifier 追加同步事件订阅方（见 Subscribe）
func WithNotifier(n notify.Notifier) Option {
	return func(s *EmergencyService) {
		s.notifier.Add(n)
	}
}

// EmergencyService 紧急报警服务
// 所有报警状态变化（检测、定时升级、人工操作）在 mu 内串行执行；
// 通知、持久化、离线队列写入在提交后按提交顺序执行
type EmergencyService struct {
	settings  *settings.Store
	alerts    *store.AlertStore
	evaluator *evaluator.Evaluator
	escalator *escalation.Escalator
	sched     scheduler.Scheduler
	queue     offline.Queue
	conn      Connectivity
	recorder  AlertRecorder
	tracker   *report.Tracker
	notifier  *notify.MultiNotifier
	logger    *zap.Logger

	// subscribers Subscribe 创建的异步包装，Close 时关闭
	subscribers []*notify.AsyncNotifier

	mu                sync.Mutex
	patientLocation   *models.GeoPoint
	caregiverLocation *models.GeoPoint
	safeZones         []models.SafeZone
	battery           *models.BatteryStatus

	// effMu 保证副作用按提交顺序执行：在释放 mu 之前获取
	effMu sync.Mutex
}

// NewEmergencyService 创建紧急报警服务
func NewEmergencyService(
	settingsStore *settings.Store,
	sched scheduler.Scheduler,
	logger *zap.Logger,
	opts ...Option,
) *EmergencyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &EmergencyService{
		settings:  settingsStore,
		alerts:    store.NewAlertStore(),
		evaluator: evaluator.NewEvaluator(logger),
		sched:     sched,
		queue:     offline.NewMemoryQueue(),
		conn:      alwaysOnline{},
		tracker:   report.NewTracker(sched),
		notifier:  notify.NewMultiNotifier(),
		logger:    logger,
	}
	s.escalator = escalation.NewEscalator(sched, s.handleEscalation, logger)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe 注册报警事件订阅方
// 非 *notify.AsyncNotifier 的订阅方包装为异步转发（Close 时关闭），
// 因此订阅方可以在 Notify 中调用 Acknowledge/Resolve 等方法。
// WithNotifier 注册的订阅方同步执行，不得回调服务，否则死锁
func (s *EmergencyService) Subscribe(n notify.Notifier) {
	s.effMu.Lock()
	defer s.effMu.Unlock()
	if _, ok := n.(*notify.AsyncNotifier); !ok {
		async := notify.NewAsyncNotifier(n, notify.DefaultAsyncBuffer, s.logger)
		s.subscribers = append(s.subscribers, async)
		n = async
	}
	s.notifier.Add(n)
}

// AcknowledgeFall 确认跌倒记录
func (s *EmergencyService) AcknowledgeFall(id string) bool {
	ok := s.tracker.AcknowledgeFall(id)
	if ok {
		s.logger.Info("Fall record acknowledged", zap.String("fall_id", id))
	}
	return ok
}

// Settings 配置存储
func (s *EmergencyService) Settings() *settings.Store {
	return s.settings
}

// Tracker 周报计数
func (s *EmergencyService) Tracker() *report.Tracker {
	return s.tracker
}

// Queue 离线队列
func (s *EmergencyService) Queue() offline.Queue {
	return s.queue
}

// Alerts 全部报警（创建顺序）
func (s *EmergencyService) Alerts() []*models.EmergencyAlert {
	return s.alerts.List()
}

// Alert 获取单个报警
func (s *EmergencyService) Alert(id string) (*models.EmergencyAlert, error) {
	return s.alerts.Get(id)
}

// FindActiveByType 指定类型未结束的报警
func (s *EmergencyService) FindActiveByType(t models.AlertType) (*models.EmergencyAlert, bool) {
	return s.alerts.FindActiveByType(t)
}

// ActiveAlarmable 需要全屏提示的报警：按创建顺序第一个未结束的报警
func (s *EmergencyService) ActiveAlarmable() (*models.EmergencyAlert, bool) {
	return s.alerts.FirstUnresolved()
}

// NextEscalationAt 下一次自动升级时间（界面倒计时）
func (s *EmergencyService) NextEscalationAt(alertID string) (time.Time, bool) {
	return s.escalator.NextFireAt(alertID)
}

// Restore 恢复报警历史，并按创建后已经过的时间重新设置升级定时器
func (s *EmergencyService) Restore(ctx context.Context, alerts []*models.EmergencyAlert) int {
	s.mu.Lock()
	restored := s.alerts.Restore(alerts)
	es := s.settings.Get()
	armed := 0
	for _, a := range s.alerts.Unresolved() {
		armed += s.escalator.Arm(a, es)
	}
	s.mu.Unlock()

	metrics.SetPendingTimers(s.escalator.Pending())
	s.logger.Info("Alert history restored",
		zap.Int("restored", restored),
		zap.Int("timers_armed", armed),
	)
	return restored
}

// Close 停止全部升级定时器
func (s *EmergencyService) Close() {
	s.escalator.Stop()
	metrics.SetPendingTimers(0)

	s.effMu.Lock()
	subscribers := s.subscribers
	s.subscribers = nil
	s.effMu.Unlock()
	for _, n := range subscribers {
		n.Close()
	}
}

// effects 一次提交产生的副作用
type effects struct {
	events  []notify.AlertEvent
	save    []*models.EmergencyAlert
	enqueue []models.QueuedAlert
}

func (e *effects) emit(t notify.EventType, trigger notify.Trigger, alert *models.EmergencyAlert, at time.Time) {
	e.events = append(e.events, notify.AlertEvent{
		Type:    t,
		Trigger: trigger,
		Alert:   *alert.Clone(),
		At:      at,
	})
	e.save = append(e.save, alert.Clone())
}

// commit 释放 mu 并执行副作用；调用时必须持有 mu
func (s *EmergencyService) commit(ctx context.Context, eff *effects) {
	s.effMu.Lock()
	s.mu.Unlock()
	defer s.effMu.Unlock()

	if len(eff.events) == 0 && len(eff.enqueue) == 0 {
		return
	}

	for _, item := range eff.enqueue {
		if err := s.queue.Enqueue(ctx, item); err != nil {
			// 离线队列只是旁路，报警仍在内存中
			s.logger.Error("Failed to enqueue offline alert",
				zap.String("alert_id", item.ID),
				zap.Error(err),
			)
		}
	}
	if len(eff.enqueue) > 0 {
		if n, err := s.queue.Len(ctx); err == nil {
			metrics.SetOfflineQueueDepth(n)
		}
	}

	if s.recorder != nil {
		for _, a := range eff.save {
			if err := s.recorder.SaveAlert(ctx, a); err != nil {
				s.logger.Error("Failed to persist alert",
					zap.String("alert_id", a.ID),
					zap.Error(err),
				)
			}
		}
	}

	for _, ev := range eff.events {
		switch ev.Type {
		case notify.EventCreated:
			metrics.IncAlertCreated(string(ev.Alert.Type), ev.Alert.IsOffline)
		case notify.EventEscalated:
			metrics.IncEscalation(string(ev.Alert.Level), string(ev.Trigger))
		}
		metrics.IncTransition(string(ev.Alert.Status))
		s.notifier.Notify(ctx, ev)
	}
	metrics.SetPendingTimers(s.escalator.Pending())
}

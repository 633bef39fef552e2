package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "emergency_"

var (
	registerOnce sync.Once

	alertsCreated     *prometheus.CounterVec
	alertsSuppressed  *prometheus.CounterVec
	alertTransitions  *prometheus.CounterVec
	escalations       *prometheus.CounterVec
	timeToAcknowledge prometheus.Histogram
	offlineQueueDepth prometheus.Gauge
	offlineDrained    prometheus.Counter
	pendingTimers     prometheus.Gauge
)

// Init 注册指标（重复调用安全）
func Init() {
	registerOnce.Do(func() {
		alertsCreated = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_created_total",
				Help: "Total alerts created by type",
			},
			[]string{"type", "offline"},
		)
		alertsSuppressed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_suppressed_total",
				Help: "Alert requests dropped by policy or de-duplication",
			},
			[]string{"type", "reason"},
		)
		alertTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_transitions_total",
				Help: "Alert status transitions by target status",
			},
			[]string{"status"},
		)
		escalations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "escalations_total",
				Help: "Escalations by target level and trigger",
			},
			[]string{"level", "trigger"},
		)
		timeToAcknowledge = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "time_to_acknowledge_seconds",
				Help:    "Seconds from alert creation to acknowledgement",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 900},
			},
		)
		offlineQueueDepth = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "offline_queue_depth",
				Help: "Alerts waiting in the offline queue",
			},
		)
		offlineDrained = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "offline_drained_total",
				Help: "Offline queue records drained after reconnect",
			},
		)
		pendingTimers = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "escalation_timers_pending",
				Help: "Escalation timers currently armed",
			},
		)

		prometheus.MustRegister(
			alertsCreated,
			alertsSuppressed,
			alertTransitions,
			escalations,
			timeToAcknowledge,
			offlineQueueDepth,
			offlineDrained,
			pendingTimers,
		)
	})
}

// Handler /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncAlertCreated 报警创建
func IncAlertCreated(alertType string, offline bool) {
	if alertsCreated == nil {
		return
	}
	flag := "false"
	if offline {
		flag = "true"
	}
	alertsCreated.WithLabelValues(alertType, flag).Inc()
}

// IncAlertSuppressed 报警请求被丢弃（disabled / duplicate）
func IncAlertSuppressed(alertType, reason string) {
	if alertsSuppressed == nil {
		return
	}
	alertsSuppressed.WithLabelValues(alertType, reason).Inc()
}

// IncTransition 状态迁移
func IncTransition(status string) {
	if alertTransitions == nil {
		return
	}
	alertTransitions.WithLabelValues(status).Inc()
}

// IncEscalation 升级
func IncEscalation(level, trigger string) {
	if escalations == nil {
		return
	}
	escalations.WithLabelValues(level, trigger).Inc()
}

// ObserveAcknowledge 确认耗时
func ObserveAcknowledge(d time.Duration) {
	if timeToAcknowledge == nil || d < 0 {
		return
	}
	timeToAcknowledge.Observe(d.Seconds())
}

// SetOfflineQueueDepth 离线队列长度
func SetOfflineQueueDepth(n int) {
	if offlineQueueDepth == nil {
		return
	}
	offlineQueueDepth.Set(float64(n))
}

// AddOfflineDrained 离线记录已同步
func AddOfflineDrained(n int) {
	if offlineDrained == nil || n <= 0 {
		return
	}
	offlineDrained.Add(float64(n))
}

// SetPendingTimers 升级定时器数量
func SetPendingTimers(n int) {
	if pendingTimers == nil {
		return
	}
	pendingTimers.Set(float64(n))
}

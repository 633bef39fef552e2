package consumer

import (
	"context"
	"time"

	"wisefido-emergency/internal/models"

	"go.uber.org/zap"
)

// DefaultPollInterval 无活动检测轮询间隔
const DefaultPollInterval = 30 * time.Second

// InactivityChecker 无活动检测（EmergencyService 实现）
type InactivityChecker interface {
	CheckInactivity(ctx context.Context) (*models.EmergencyAlert, bool)
}

// InactivityPoller 无活动轮询
type InactivityPoller struct {
	checker  InactivityChecker
	interval time.Duration
	logger   *zap.Logger
}

// NewInactivityPoller 创建无活动轮询；interval<=0 时使用默认 30 秒
func NewInactivityPoller(checker InactivityChecker, interval time.Duration, logger *zap.Logger) *InactivityPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InactivityPoller{
		checker:  checker,
		interval: interval,
		logger:   logger,
	}
}

// Start 启动轮询，阻塞直到 ctx 取消
func (p *InactivityPoller) Start(ctx context.Context) error {
	p.logger.Info("Inactivity poller started",
		zap.Duration("poll_interval", p.interval),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// 立即执行一次
	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Inactivity poller stopped")
			return nil
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *InactivityPoller) poll(ctx context.Context) {
	if alert, ok := p.checker.CheckInactivity(ctx); ok {
		p.logger.Info("Inactivity alert raised",
			zap.String("alert_id", alert.ID),
			zap.String("message", alert.Message),
		)
	}
}

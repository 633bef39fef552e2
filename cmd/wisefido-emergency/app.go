package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"wisefido-emergency/internal/common/database"
	mqttcommon "wisefido-emergency/internal/common/mqtt"
	rediscommon "wisefido-emergency/internal/common/redis"
	"wisefido-emergency/internal/config"
	"wisefido-emergency/internal/consumer"
	"wisefido-emergency/internal/metrics"
	"wisefido-emergency/internal/models"
	"wisefido-emergency/internal/notify"
	"wisefido-emergency/internal/offline"
	"wisefido-emergency/internal/report"
	"wisefido-emergency/internal/repository"
	"wisefido-emergency/internal/scheduler"
	"wisefido-emergency/internal/service"
	"wisefido-emergency/internal/settings"

	"go.uber.org/zap"
)

// app 进程内组件
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	db          *sql.DB
	redisClient *rediscommon.Client
	mqttClient  *mqttcommon.Client

	sched    *scheduler.RealScheduler
	service  *service.EmergencyService
	monitor  *consumer.ConnectivityMonitor
	poller   *consumer.InactivityPoller
	devices  *consumer.DeviceEventConsumer
	rollover *report.RolloverJob
	metrics  *http.Server
	outbound []*notify.AsyncNotifier

	wg sync.WaitGroup
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logger,
		sched:  scheduler.NewRealScheduler(),
	}

	// 1. 数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db
	repo := repository.NewAlertRepository(db, cfg.Emergency.PatientID, logger)
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// 2. 配置
	store, err := loadSettings(ctx, repo, a.sched.Now(), logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	// 3. 离线队列：Redis 不可用时退回内存队列
	var queue offline.Queue
	if client, err := rediscommon.Connect(ctx, &cfg.Redis); err != nil {
		logger.Warn("Redis unavailable, using in-memory offline queue", zap.Error(err))
		queue = offline.NewMemoryQueue()
	} else {
		a.redisClient = client
		queue = offline.NewRedisQueue(client, cfg.Emergency.OfflineQueueKey, logger)
	}

	// 4. MQTT（可选）
	if cfg.MQTT.Broker != "" {
		client, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			logger.Warn("MQTT unavailable, device events disabled", zap.Error(err))
		} else {
			a.mqttClient = client
		}
	}

	// 5. 报警服务
	a.monitor = consumer.NewConnectivityMonitor(queue, consumer.AutoConfirm{}, true, logger)
	a.service = service.NewEmergencyService(store, a.sched, logger,
		service.WithOfflineQueue(queue),
		service.WithConnectivity(a.monitor),
		service.WithRecorder(repo),
		service.WithNotifier(notify.NewLoggingNotifier(logger)),
	)
	if cfg.Emergency.WebhookURL != "" {
		timeout := time.Duration(cfg.Emergency.WebhookTimeout) * time.Second
		a.subscribeAsync(notify.NewWebhookNotifier(cfg.Emergency.WebhookURL, timeout, store, logger))
	}
	if a.mqttClient != nil {
		prefix := cfg.Emergency.Topics.Prefix
		a.subscribeAsync(notify.NewMQTTPublisher(a.mqttClient, prefix, a.mqttClient.QoS(), logger))
		a.devices = consumer.NewDeviceEventConsumer(a.mqttClient, a.service, a.sched, prefix, a.mqttClient.QoS(), logger)
	}

	// 6. 恢复报警历史并重新设置升级定时器
	history, err := repo.ListAlerts(ctx, 0)
	if err != nil {
		logger.Error("Failed to load alert history", zap.Error(err))
	} else {
		a.service.Restore(ctx, history)
	}

	// 7. 后台任务
	a.poller = consumer.NewInactivityPoller(a.service,
		time.Duration(cfg.Emergency.PollInterval)*time.Second, logger)
	a.rollover = report.NewRolloverJob(cfg.Emergency.WeeklyRolloverCron,
		a.service.Tracker(), a.service, a.sched, cfg.Emergency.ReportDir, logger)

	metrics.Init()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.metrics = &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// subscribeAsync 网络类订阅方经异步转发接入，不阻塞报警状态提交
func (a *app) subscribeAsync(n notify.Notifier) {
	async := notify.NewAsyncNotifier(n, notify.DefaultAsyncBuffer, a.logger)
	a.outbound = append(a.outbound, async)
	a.service.Subscribe(async)
}

// loadSettings 读取保存的配置（没有时使用默认值），并在变化时回写
func loadSettings(ctx context.Context, repo *repository.AlertRepository, now time.Time, logger *zap.Logger) (*settings.Store, error) {
	saved, err := repo.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	es := models.DefaultEmergencySettings(now)
	if saved != nil {
		es = *saved
	}

	store := settings.NewStore(es)
	store.OnChange(func(es models.EmergencySettings) {
		if err := repo.SaveSettings(context.Background(), es); err != nil {
			logger.Error("Failed to persist settings", zap.Error(err))
		}
	})
	return store, nil
}

// Start 启动后台任务，阻塞直到 ctx 取消
func (a *app) Start(ctx context.Context) error {
	if err := a.rollover.Start(); err != nil {
		return err
	}

	a.goRun("metrics server", func() error {
		a.logger.Info("Metrics server listening", zap.String("addr", a.metrics.Addr))
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	a.goRun("inactivity poller", func() error { return a.poller.Start(ctx) })

	if a.devices != nil {
		a.goRun("device event consumer", func() error { return a.devices.Start(ctx) })
		interval := time.Duration(a.cfg.Emergency.ConnectivityCheckInterval) * time.Second
		a.goRun("connectivity monitor", func() error {
			return a.monitor.Start(ctx, interval, a.mqttClient.IsConnected)
		})
	}

	a.logger.Info("Emergency service started",
		zap.String("patient_id", a.cfg.Emergency.PatientID),
		zap.Bool("mqtt", a.mqttClient != nil),
		zap.Bool("redis", a.redisClient != nil),
	)

	<-ctx.Done()
	return nil
}

func (a *app) goRun(name string, fn func() error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := fn(); err != nil {
			a.logger.Error("Background task failed",
				zap.String("task", name),
				zap.Error(err),
			)
		}
	}()
}

// Stop 停止全部组件
func (a *app) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.rollover.Stop()
	if err := a.metrics.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Failed to shutdown metrics server", zap.Error(err))
	}
	if a.devices != nil {
		_ = a.devices.Stop()
	}
	a.wg.Wait()

	a.service.Close()
	for _, n := range a.outbound {
		n.Close()
	}
	if a.mqttClient != nil {
		a.mqttClient.Disconnect()
	}
	if err := rediscommon.Close(a.redisClient); err != nil {
		a.logger.Error("Failed to close redis", zap.Error(err))
	}
	if err := database.Close(a.db); err != nil {
		a.logger.Error("Failed to close database", zap.Error(err))
	}
}

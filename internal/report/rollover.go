package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"wisefido-emergency/internal/models"
	"wisefido-emergency/internal/scheduler"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultRolloverSpec 每周一 00:00
const DefaultRolloverSpec = "0 0 * * 1"

// AlertLister 报警历史来源
type AlertLister interface {
	Alerts() []*models.EmergencyAlert
}

// RolloverJob 周报归档任务：归档计数并导出上一周的 Excel
type RolloverJob struct {
	cron    *cron.Cron
	spec    string
	tracker *Tracker
	alerts  AlertLister
	clock   scheduler.Clock
	dir     string
	logger  *zap.Logger
}

// NewRolloverJob 创建周报归档任务；dir 为空时只归档不导出
func NewRolloverJob(spec string, tracker *Tracker, alerts AlertLister, clock scheduler.Clock, dir string, logger *zap.Logger) *RolloverJob {
	if spec == "" {
		spec = DefaultRolloverSpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RolloverJob{
		// 使用标准5段Cron表达式（不含秒）
		cron:    cron.New(),
		spec:    spec,
		tracker: tracker,
		alerts:  alerts,
		clock:   clock,
		dir:     dir,
		logger:  logger,
	}
}

// Start 注册并启动定时任务
func (j *RolloverJob) Start() error {
	if _, err := j.cron.AddFunc(j.spec, func() {
		if _, err := j.RunOnce(j.clock.Now()); err != nil {
			j.logger.Error("Weekly report rollover failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule weekly rollover %q: %w", j.spec, err)
	}
	j.cron.Start()
	j.logger.Info("Weekly report rollover scheduled", zap.String("spec", j.spec))
	return nil
}

// Stop 停止定时任务
func (j *RolloverJob) Stop() {
	<-j.cron.Stop().Done()
}

// RunOnce 归档并导出；返回导出文件路径（未导出时为空）
func (j *RolloverJob) RunOnce(now time.Time) (string, error) {
	prev, ok := j.tracker.Rollover(now)
	if !ok {
		return "", nil
	}
	j.logger.Info("Weekly report archived",
		zap.Time("week_start", prev.WeekStart),
		zap.Int("safe_zone_exits", prev.SafeZoneExits),
		zap.Int("fall_incidents", prev.FallIncidents),
	)
	if j.dir == "" {
		return "", nil
	}

	weekEnd := prev.WeekStart.AddDate(0, 0, 7)
	var alerts []*models.EmergencyAlert
	if j.alerts != nil {
		for _, a := range j.alerts.Alerts() {
			if !a.Timestamp.Before(prev.WeekStart) && a.Timestamp.Before(weekEnd) {
				alerts = append(alerts, a)
			}
		}
	}
	var falls []models.FallRecord
	for _, fr := range j.tracker.Falls() {
		if !fr.Timestamp.Before(prev.WeekStart) && fr.Timestamp.Before(weekEnd) {
			falls = append(falls, fr)
		}
	}

	data, err := ExportXLSX(prev, alerts, falls)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(j.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(j.dir, fmt.Sprintf("weekly-report-%s.xlsx", prev.WeekStart.Format("2006-01-02")))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return path, nil
}

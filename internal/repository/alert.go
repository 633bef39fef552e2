package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"wisefido-emergency/internal/models"

	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

// ErrAlertNotFound 报警不存在
var ErrAlertNotFound = errors.New("alert not found")

// AlertRepository 报警历史与配置快照仓库
// 只保存状态，不参与状态迁移判断
type AlertRepository struct {
	db        *sql.DB
	patientID string
	logger    *zap.Logger
}

// NewAlertRepository 创建报警仓库
func NewAlertRepository(db *sql.DB, patientID string, logger *zap.Logger) *AlertRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertRepository{
		db:        db,
		patientID: patientID,
		logger:    logger,
	}
}

// Migrate 创建表和索引
func (r *AlertRepository) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || isComment(stmt) {
			continue
		}
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

func isComment(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}

const alertColumns = `
		id,
		alert_type,
		alert_level,
		alert_status,
		title,
		message,
		created_at,
		latitude,
		longitude,
		is_offline,
		acknowledged_by,
		acknowledged_at,
		escalated_to,
		escalated_at,
		resolved_at`

// SaveAlert 新增或更新报警（按 id upsert）
func (r *AlertRepository) SaveAlert(ctx context.Context, alert *models.EmergencyAlert) error {
	if alert == nil || alert.ID == "" {
		return fmt.Errorf("alert id is required")
	}

	var lat, lng sql.NullFloat64
	if alert.Location != nil {
		lat = sql.NullFloat64{Float64: alert.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: alert.Location.Lng, Valid: true}
	}

	query := `
		INSERT INTO emergency_alerts (
			id,
			patient_id,
			alert_type,
			alert_level,
			alert_status,
			title,
			message,
			created_at,
			latitude,
			longitude,
			is_offline,
			acknowledged_by,
			acknowledged_at,
			escalated_to,
			escalated_at,
			resolved_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			alert_level = excluded.alert_level,
			alert_status = excluded.alert_status,
			acknowledged_by = excluded.acknowledged_by,
			acknowledged_at = excluded.acknowledged_at,
			escalated_to = excluded.escalated_to,
			escalated_at = excluded.escalated_at,
			resolved_at = excluded.resolved_at,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		alert.ID,
		r.patientID,
		string(alert.Type),
		string(alert.Level),
		string(alert.Status),
		alert.Title,
		alert.Message,
		alert.Timestamp.UnixMilli(),
		lat,
		lng,
		alert.IsOffline,
		nullString(alert.AcknowledgedBy),
		nullMillis(alert.AcknowledgedAt),
		nullString(alert.EscalatedTo),
		nullMillis(alert.EscalatedAt),
		nullMillis(alert.ResolvedAt),
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save alert %s: %w", alert.ID, err)
	}
	return nil
}

// GetAlert 根据 id 获取报警
func (r *AlertRepository) GetAlert(ctx context.Context, id string) (*models.EmergencyAlert, error) {
	if id == "" {
		return nil, fmt.Errorf("alert id is required")
	}

	query := `SELECT` + alertColumns + `
		FROM emergency_alerts
		WHERE id = $1 AND patient_id = $2
	`
	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, id, r.patientID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrAlertNotFound, id)
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

// ListAlerts 按创建时间升序列出报警；limit<=0 表示不限制
func (r *AlertRepository) ListAlerts(ctx context.Context, limit int) ([]*models.EmergencyAlert, error) {
	query := `SELECT` + alertColumns + `
		FROM emergency_alerts
		WHERE patient_id = $1
		ORDER BY created_at ASC
	`
	args := []interface{}{r.patientID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return r.queryAlerts(ctx, query, args...)
}

// ListUnresolved 列出未结束的报警（重启后恢复升级定时器）
func (r *AlertRepository) ListUnresolved(ctx context.Context) ([]*models.EmergencyAlert, error) {
	query := `SELECT` + alertColumns + `
		FROM emergency_alerts
		WHERE patient_id = $1 AND alert_status <> $2
		ORDER BY created_at ASC
	`
	return r.queryAlerts(ctx, query, r.patientID, string(models.AlertStatusResolved))
}

func (r *AlertRepository) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]*models.EmergencyAlert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.EmergencyAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row rowScanner) (*models.EmergencyAlert, error) {
	var (
		alert          models.EmergencyAlert
		alertType      string
		level          string
		status         string
		createdAt      int64
		lat, lng       sql.NullFloat64
		acknowledgedBy sql.NullString
		acknowledgedAt sql.NullInt64
		escalatedTo    sql.NullString
		escalatedAt    sql.NullInt64
		resolvedAt     sql.NullInt64
	)
	err := row.Scan(
		&alert.ID,
		&alertType,
		&level,
		&status,
		&alert.Title,
		&alert.Message,
		&createdAt,
		&lat,
		&lng,
		&alert.IsOffline,
		&acknowledgedBy,
		&acknowledgedAt,
		&escalatedTo,
		&escalatedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.Type = models.AlertType(alertType)
	alert.Level = models.AlertLevel(level)
	alert.Status = models.AlertStatus(status)
	alert.Timestamp = time.UnixMilli(createdAt)
	if lat.Valid && lng.Valid {
		alert.Location = &models.Location{Lat: lat.Float64, Lng: lng.Float64}
	}
	alert.AcknowledgedBy = acknowledgedBy.String
	alert.AcknowledgedAt = fromMillis(acknowledgedAt)
	alert.EscalatedTo = escalatedTo.String
	alert.EscalatedAt = fromMillis(escalatedAt)
	alert.ResolvedAt = fromMillis(resolvedAt)
	return &alert, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

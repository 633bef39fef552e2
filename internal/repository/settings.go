package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wisefido-emergency/internal/models"
)

// SaveSettings 保存配置快照（JSON）
func (r *AlertRepository) SaveSettings(ctx context.Context, settings models.EmergencySettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	query := `
		INSERT INTO emergency_settings (patient_id, settings, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (patient_id) DO UPDATE SET
			settings = excluded.settings,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, r.patientID, string(data), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// LoadSettings 读取配置快照；不存在时返回 nil, nil
func (r *AlertRepository) LoadSettings(ctx context.Context) (*models.EmergencySettings, error) {
	query := `
		SELECT settings
		FROM emergency_settings
		WHERE patient_id = $1
	`
	var data string
	if err := r.db.QueryRowContext(ctx, query, r.patientID).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var settings models.EmergencySettings
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return &settings, nil
}

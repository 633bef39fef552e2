package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"wisefido-emergency/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPatientID = "patient-1"

func setupMockAlertDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *AlertRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewAlertRepository(db, testPatientID, zap.NewNop())
	return db, mock, repo
}

var alertRowColumns = []string{
	"id", "alert_type", "alert_level", "alert_status", "title", "message",
	"created_at", "latitude", "longitude", "is_offline",
	"acknowledged_by", "acknowledged_at", "escalated_to", "escalated_at", "resolved_at",
}

func TestMigrate(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS emergency_alerts`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_emergency_alerts_patient_created`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS emergency_settings`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAlert_Success(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	ts := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	ack := ts.Add(10 * time.Second)
	alert := &models.EmergencyAlert{
		ID:             "a1",
		Type:           models.AlertTypeSOS,
		Level:          models.AlertLevelCaregiver,
		Status:         models.AlertStatusAcknowledged,
		Title:          "SOS Emergency",
		Message:        "Patient has triggered an SOS alert!",
		Timestamp:      ts,
		Location:       &models.Location{Lat: 31.2, Lng: 121.4},
		AcknowledgedBy: "Alice",
		AcknowledgedAt: &ack,
	}

	mock.ExpectExec(`INSERT INTO emergency_alerts`).
		WithArgs(
			"a1", testPatientID, "sos", "caregiver", "acknowledged",
			"SOS Emergency", "Patient has triggered an SOS alert!", ts.UnixMilli(),
			sql.NullFloat64{Float64: 31.2, Valid: true}, sql.NullFloat64{Float64: 121.4, Valid: true},
			false,
			sql.NullString{String: "Alice", Valid: true}, sql.NullInt64{Int64: ack.UnixMilli(), Valid: true},
			sql.NullString{}, sql.NullInt64{}, sql.NullInt64{},
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.SaveAlert(context.Background(), alert))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAlert_Validation(t *testing.T) {
	db, _, repo := setupMockAlertDB(t)
	defer db.Close()

	err := repo.SaveAlert(context.Background(), &models.EmergencyAlert{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alert id is required")
}

func TestSaveAlert_DBError(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO emergency_alerts`).WillReturnError(errors.New("disk full"))

	err := repo.SaveAlert(context.Background(), &models.EmergencyAlert{ID: "a1", Timestamp: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save alert a1")
}

func TestGetAlert_Success(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	ts := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	esc := ts.Add(30 * time.Second)
	rows := sqlmock.NewRows(alertRowColumns).AddRow(
		"a1", "fall", "family", "escalated", "Fall Detected", "A fall has been detected!",
		ts.UnixMilli(), 1.5, 2.5, true,
		nil, nil, "Bob", esc.UnixMilli(), nil,
	)
	mock.ExpectQuery(`SELECT`).WithArgs("a1", testPatientID).WillReturnRows(rows)

	alert, err := repo.GetAlert(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, models.AlertTypeFall, alert.Type)
	assert.Equal(t, models.AlertLevelFamily, alert.Level)
	assert.Equal(t, models.AlertStatusEscalated, alert.Status)
	assert.True(t, alert.Timestamp.Equal(ts))
	assert.True(t, alert.IsOffline)
	require.NotNil(t, alert.Location)
	assert.Equal(t, 2.5, alert.Location.Lng)
	assert.Equal(t, "Bob", alert.EscalatedTo)
	require.NotNil(t, alert.EscalatedAt)
	assert.True(t, alert.EscalatedAt.Equal(esc))
	assert.Nil(t, alert.AcknowledgedAt)
	assert.Nil(t, alert.ResolvedAt)
}

func TestGetAlert_NotFound(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).WithArgs("missing", testPatientID).WillReturnRows(sqlmock.NewRows(alertRowColumns))

	_, err := repo.GetAlert(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlertNotFound))
}

func TestListUnresolved(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	ts := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(alertRowColumns).
		AddRow("a1", "sos", "caregiver", "active", "SOS Emergency", "m", ts.UnixMilli(), nil, nil, false, nil, nil, nil, nil, nil).
		AddRow("a2", "inactivity", "caregiver", "acknowledged", "Patient Inactivity Alert", "m", ts.Add(time.Minute).UnixMilli(), nil, nil, false, "Alice", ts.Add(2*time.Minute).UnixMilli(), nil, nil, nil)
	mock.ExpectQuery(`SELECT .* FROM emergency_alerts\s+WHERE patient_id = \$1 AND alert_status <> \$2`).
		WithArgs(testPatientID, "resolved").
		WillReturnRows(rows)

	alerts, err := repo.ListUnresolved(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Nil(t, alerts[0].Location)
	assert.Equal(t, "Alice", alerts[1].AcknowledgedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAlerts_WithLimit(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	mock.ExpectQuery(`LIMIT \$2`).WithArgs(testPatientID, 50).WillReturnRows(sqlmock.NewRows(alertRowColumns))

	alerts, err := repo.ListAlerts(context.Background(), 50)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRoundTrip(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()
	ctx := context.Background()

	mock.ExpectQuery(`SELECT settings`).WithArgs(testPatientID).WillReturnRows(sqlmock.NewRows([]string{"settings"}))
	got, err := repo.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	s := models.DefaultEmergencySettings(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))
	s.EmergencyContacts = []models.EmergencyContact{{ID: "c1", Name: "Alice", Priority: 1}}
	mock.ExpectExec(`INSERT INTO emergency_settings`).
		WithArgs(testPatientID, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.SaveSettings(ctx, s))

	data := `{"enabled":true,"sos_alerts_enabled":true,"caregiver_response_timeout":45,"emergency_contacts":[{"id":"c1","name":"Alice","priority":1}]}`
	mock.ExpectQuery(`SELECT settings`).WithArgs(testPatientID).WillReturnRows(sqlmock.NewRows([]string{"settings"}).AddRow(data))
	got, err = repo.LoadSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 45, got.CaregiverResponseTimeout)
	assert.Len(t, got.EmergencyContacts, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

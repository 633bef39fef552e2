package report

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"wisefido-emergency/internal/models"
	"wisefido-emergency/internal/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// 2024-03-06 是周三
var wednesday = time.Date(2024, 3, 6, 15, 30, 0, 0, time.UTC)

type staticAlerts []*models.EmergencyAlert

func (s staticAlerts) Alerts() []*models.EmergencyAlert { return s }

func TestWeekStart(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, WeekStart(wednesday))
	assert.Equal(t, monday, WeekStart(monday))
	assert.Equal(t, monday, WeekStart(time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)))
}

func TestTracker_Counters(t *testing.T) {
	tr := NewTracker(scheduler.NewManualScheduler(wednesday))

	tr.RecordSafeZoneExit()
	tr.RecordAlert(models.AlertTypeSafeZone)
	rec := tr.RecordFall(wednesday)
	tr.RecordAlert(models.AlertTypeFall)

	cur := tr.Current()
	assert.Equal(t, 1, cur.SafeZoneExits)
	assert.Equal(t, 1, cur.FallIncidents)
	assert.Equal(t, 1, cur.AlertsByType[models.AlertTypeFall])

	assert.True(t, tr.AcknowledgeFall(rec.ID))
	assert.False(t, tr.AcknowledgeFall(rec.ID))
	assert.False(t, tr.AcknowledgeFall("missing"))
	assert.True(t, tr.Falls()[0].Acknowledged)
}

func TestTracker_Rollover(t *testing.T) {
	tr := NewTracker(scheduler.NewManualScheduler(wednesday))
	tr.RecordSafeZoneExit()

	_, ok := tr.Rollover(wednesday.Add(24 * time.Hour))
	assert.False(t, ok, "same week")

	prev, ok := tr.Rollover(wednesday.AddDate(0, 0, 5))
	require.True(t, ok)
	assert.Equal(t, 1, prev.SafeZoneExits)
	assert.Equal(t, 0, tr.Current().SafeZoneExits)
	assert.Len(t, tr.History(), 1)
}

func TestExportXLSX(t *testing.T) {
	ack := wednesday.Add(time.Minute)
	alerts := []*models.EmergencyAlert{
		{ID: "a1", Type: models.AlertTypeSOS, Level: models.AlertLevelCaregiver, Status: models.AlertStatusAcknowledged,
			Title: "SOS Emergency", Timestamp: wednesday, AcknowledgedBy: "Alice", AcknowledgedAt: &ack},
	}
	rep := models.WeeklyReport{
		WeekStart:     WeekStart(wednesday),
		SafeZoneExits: 2,
		AlertsByType:  map[models.AlertType]int{models.AlertTypeSOS: 1},
	}

	data, err := ExportXLSX(rep, alerts, []models.FallRecord{{ID: "f1", Timestamp: wednesday}})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Alerts", "Falls"}, f.GetSheetList())

	v, err := f.GetCellValue("Summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	v, err = f.GetCellValue("Alerts", "A2")
	require.NoError(t, err)
	assert.Equal(t, "a1", v)

	v, err = f.GetCellValue("Alerts", "I2")
	require.NoError(t, err)
	assert.Equal(t, "Alice", v)

	v, err = f.GetCellValue("Falls", "A2")
	require.NoError(t, err)
	assert.Equal(t, "f1", v)
}

func TestRolloverJob_RunOnce(t *testing.T) {
	sched := scheduler.NewManualScheduler(wednesday)
	tr := NewTracker(sched)
	tr.RecordFall(wednesday)

	alerts := staticAlerts{
		{ID: "this-week", Type: models.AlertTypeFall, Timestamp: wednesday},
		{ID: "last-week", Type: models.AlertTypeSOS, Timestamp: wednesday.AddDate(0, 0, -7)},
	}
	dir := t.TempDir()
	job := NewRolloverJob("", tr, alerts, sched, dir, nil)

	path, err := job.RunOnce(wednesday)
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = job.RunOnce(wednesday.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "weekly-report-2024-03-04.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Alerts")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "this-week", rows[1][0])
}

func TestRolloverJob_InvalidSpec(t *testing.T) {
	sched := scheduler.NewManualScheduler(wednesday)
	job := NewRolloverJob("not a cron", NewTracker(sched), nil, sched, "", nil)
	assert.Error(t, job.Start())
}

package evaluator

import (
	"testing"
	"time"

	"wisefido-emergency/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func baseSnapshot() Snapshot {
	return Snapshot{
		Now:      now,
		Settings: models.DefaultEmergencySettings(now),
	}
}

func TestInactivity(t *testing.T) {
	snap := baseSnapshot()
	snap.Settings.LastPatientActivity = now.Add(-59*time.Minute - 59*time.Second)
	assert.Nil(t, InactivityDetector{}.Evaluate(snap))

	snap.Settings.LastPatientActivity = now.Add(-61 * time.Minute)
	req := InactivityDetector{}.Evaluate(snap)
	require.NotNil(t, req)
	assert.Equal(t, models.AlertTypeInactivity, req.Type)
	assert.Equal(t, "No activity detected for 61 minutes. Please check on the patient.", req.Message)

	snap.Settings.InactivityEnabled = false
	assert.Nil(t, InactivityDetector{}.Evaluate(snap))
}

func TestInactivity_NoActivityRecorded(t *testing.T) {
	snap := baseSnapshot()
	snap.Settings.LastPatientActivity = time.Time{}
	assert.Nil(t, InactivityDetector{}.Evaluate(snap))
}

func TestSafeZone_UnionSemantics(t *testing.T) {
	snap := baseSnapshot()
	snap.SafeZones = []models.SafeZone{
		{ID: "a", Name: "Home", Latitude: f(0), Longitude: f(0), Radius: 1, Enabled: true},
		{ID: "b", Name: "Park", Latitude: f(1), Longitude: f(0), Radius: 1, Enabled: true},
	}
	// B 内，A 外
	snap.PatientLocation = &models.GeoPoint{Lat: 1.001, Lng: 0}
	assert.Nil(t, SafeZoneDetector{}.Evaluate(snap))

	snap.PatientLocation = &models.GeoPoint{Lat: 0.5, Lng: 0}
	req := SafeZoneDetector{}.Evaluate(snap)
	require.NotNil(t, req)
	assert.Equal(t, "Safe Zone Breach", req.Title)
	assert.Equal(t, "Patient has left the safe zone (Home, Park). Current location: 0.5000, 0.0000", req.Message)
	require.NotNil(t, req.Location)
	assert.Equal(t, 0.5, req.Location.Lat)
}

func TestSafeZone_DisabledAndInvalidZones(t *testing.T) {
	snap := baseSnapshot()
	snap.PatientLocation = &models.GeoPoint{Lat: 0, Lng: 0}

	// 没有启用的区域
	snap.SafeZones = []models.SafeZone{{Name: "Home", Latitude: f(10), Longitude: f(10), Radius: 1}}
	assert.Nil(t, SafeZoneDetector{}.Evaluate(snap))

	// 缺少坐标的区域被排除，不会 panic
	snap.SafeZones = []models.SafeZone{
		{Name: "Broken", Radius: 100, Enabled: true},
		{Name: "Home", Latitude: f(0), Longitude: f(0), Radius: 1, Enabled: true},
	}
	assert.Nil(t, SafeZoneDetector{}.Evaluate(snap))

	snap.SafeZones = snap.SafeZones[:1]
	assert.NotNil(t, SafeZoneDetector{}.Evaluate(snap))

	snap.PatientLocation = nil
	assert.Nil(t, SafeZoneDetector{}.Evaluate(snap))
}

func TestDistance(t *testing.T) {
	snap := baseSnapshot()
	snap.PatientLocation = &models.GeoPoint{Lat: 0.1, Lng: 0}
	snap.CaregiverLocation = &models.GeoPoint{Lat: 0, Lng: 0}
	assert.Nil(t, DistanceDetector{}.Evaluate(snap), "disabled by default")

	snap.Settings.DistanceAlert.Enabled = true
	req := DistanceDetector{}.Evaluate(snap)
	require.NotNil(t, req)
	assert.Equal(t, models.AlertTypeDistance, req.Type)
	assert.Equal(t, "Patient is 11.1km away (max: 5km). They may be wandering.", req.Message)

	snap.Settings.DistanceAlert.MaxDistanceKm = 12.5
	assert.Nil(t, DistanceDetector{}.Evaluate(snap))

	snap.CaregiverLocation = nil
	assert.Nil(t, DistanceDetector{}.Evaluate(snap))
}

func TestFallAndSOS(t *testing.T) {
	snap := baseSnapshot()
	snap.PatientLocation = &models.GeoPoint{Lat: 3, Lng: 4}

	fall := FallDetector{}.Evaluate(snap)
	require.NotNil(t, fall)
	assert.Equal(t, &models.Location{Lat: 3, Lng: 4}, fall.Location)

	sos := SOSDetector{}.Evaluate(snap)
	require.NotNil(t, sos)
	assert.Equal(t, "SOS Emergency", sos.Title)

	snap.PatientLocation = nil
	sos = SOSDetector{}.Evaluate(snap)
	require.NotNil(t, sos)
	assert.Nil(t, sos.Location)

	snap.Settings.FallAlertsEnabled = false
	snap.Settings.SOSAlertsEnabled = false
	assert.Nil(t, FallDetector{}.Evaluate(snap))
	assert.Nil(t, SOSDetector{}.Evaluate(snap))
}

func TestLowBattery(t *testing.T) {
	snap := baseSnapshot()
	assert.Nil(t, LowBatteryDetector{}.Evaluate(snap))

	snap.Battery = &models.BatteryStatus{Level: 20}
	req := LowBatteryDetector{}.Evaluate(snap)
	require.NotNil(t, req)
	assert.Contains(t, req.Message, "20%")

	snap.Battery.IsCharging = true
	assert.Nil(t, LowBatteryDetector{}.Evaluate(snap))

	snap.Battery = &models.BatteryStatus{Level: 21}
	assert.Nil(t, LowBatteryDetector{}.Evaluate(snap))
}

func TestEvaluator_Evaluate(t *testing.T) {
	e := NewEvaluator(nil)
	snap := baseSnapshot()
	snap.PatientLocation = &models.GeoPoint{Lat: 5, Lng: 5}
	snap.SafeZones = []models.SafeZone{{Name: "Home", Latitude: f(0), Longitude: f(0), Radius: 1, Enabled: true}}

	reqs := e.Evaluate(snap, models.AlertTypeSafeZone, models.AlertTypeDistance, models.AlertType("bogus"))
	require.Len(t, reqs, 1)
	assert.Equal(t, models.AlertTypeSafeZone, reqs[0].Type)
}

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecorders(t *testing.T) {
	Init()
	Init()

	IncAlertCreated("sos", true)
	IncEscalation("family", "auto")
	SetOfflineQueueDepth(3)
	IncAlertSuppressed("sos", "duplicate")
	IncTransition("resolved")
	ObserveAcknowledge(20 * time.Second)
	ObserveAcknowledge(-time.Second)
	AddOfflineDrained(3)
	SetPendingTimers(2)

	body := scrape(t)
	assert.Contains(t, body, `emergency_alerts_created_total{offline="true",type="sos"} 1`)
	assert.Contains(t, body, `emergency_escalations_total{level="family",trigger="auto"} 1`)
	assert.Contains(t, body, "emergency_offline_queue_depth 3")
	assert.Contains(t, body, "emergency_escalation_timers_pending 2")
	assert.Contains(t, body, "emergency_time_to_acknowledge_seconds_count 1")
}

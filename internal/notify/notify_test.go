package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wisefido-emergency/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePublisher struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(topic string, _ byte, _ bool, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

type staticContacts []models.EmergencyContact

func (s staticContacts) Contacts() []models.EmergencyContact { return s }

func testEvent(t EventType, level models.AlertLevel) AlertEvent {
	return AlertEvent{
		Type:    t,
		Trigger: TriggerAuto,
		Alert: models.EmergencyAlert{
			ID:     "a1",
			Type:   models.AlertTypeSOS,
			Level:  level,
			Status: models.AlertStatusActive,
		},
		At: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
	}
}

func TestMultiNotifier(t *testing.T) {
	var count int32
	inc := NotifierFunc(func(context.Context, AlertEvent) { atomic.AddInt32(&count, 1) })

	m := NewMultiNotifier(inc, nil)
	m.Add(inc)
	m.Add(NewLoggingNotifier(zap.NewNop()))
	m.Notify(context.Background(), testEvent(EventCreated, models.AlertLevelCaregiver))

	assert.Equal(t, int32(2), count)

	var nilMulti *MultiNotifier
	nilMulti.Notify(context.Background(), testEvent(EventCreated, models.AlertLevelCaregiver))
}

func TestMQTTPublisher(t *testing.T) {
	pub := &fakePublisher{}
	p := NewMQTTPublisher(pub, "wisefido/companion/", 1, nil)

	p.Notify(context.Background(), testEvent(EventEscalated, models.AlertLevelFamily))

	require.Len(t, pub.topics, 1)
	assert.Equal(t, "wisefido/companion/alerts/escalated", pub.topics[0])

	var got AlertEvent
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	assert.Equal(t, "a1", got.Alert.ID)
	assert.Equal(t, models.AlertLevelFamily, got.Alert.Level)

	pub.err = errors.New("broker down")
	assert.Error(t, p.Publish(testEvent(EventResolved, models.AlertLevelFamily)))
}

func TestWebhookNotifier_Send(t *testing.T) {
	var (
		mu       sync.Mutex
		received []WebhookPayload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, p)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	contacts := staticContacts{
		{ID: "c1", Name: "Alice", Priority: 1},
		{ID: "c2", Name: "Bob", Priority: 2, NotifyOnEscalation: true},
	}
	w := NewWebhookNotifier(srv.URL, time.Second, contacts, nil)
	ctx := context.Background()

	sent, err := w.Send(ctx, testEvent(EventCreated, models.AlertLevelCaregiver))
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = w.Send(ctx, testEvent(EventEscalated, models.AlertLevelFamily))
	require.NoError(t, err)
	assert.True(t, sent)

	// 没有外部紧急联系人
	sent, err = w.Send(ctx, testEvent(EventEscalated, models.AlertLevelEmergency))
	require.NoError(t, err)
	assert.False(t, sent)

	// 确认事件不通知
	sent, err = w.Send(ctx, testEvent(EventAcknowledged, models.AlertLevelCaregiver))
	require.NoError(t, err)
	assert.False(t, sent)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, "Alice", received[0].Contacts[0].Name)
	assert.Equal(t, "Bob", received[1].Contacts[0].Name)
	assert.Equal(t, EventEscalated, received[1].Event)
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	w := NewWebhookNotifier(srv.URL, time.Second, staticContacts{{Name: "Alice", Priority: 1}}, nil)
	_, err := w.Send(context.Background(), testEvent(EventCreated, models.AlertLevelCaregiver))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestAsyncNotifier_DoesNotBlockAndKeepsOrder(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var got []EventType

	slow := NotifierFunc(func(_ context.Context, ev AlertEvent) {
		<-release
		mu.Lock()
		got = append(got, ev.Type)
		mu.Unlock()
	})
	a := NewAsyncNotifier(slow, 8, zap.NewNop())

	done := make(chan struct{})
	go func() {
		a.Notify(context.Background(), testEvent(EventCreated, models.AlertLevelCaregiver))
		a.Notify(context.Background(), testEvent(EventEscalated, models.AlertLevelFamily))
		a.Notify(context.Background(), testEvent(EventResolved, models.AlertLevelFamily))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on slow subscriber")
	}

	close(release)
	a.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventType{EventCreated, EventEscalated, EventResolved}, got)
}

func TestAsyncNotifier_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	var delivered int32
	blocked := NotifierFunc(func(context.Context, AlertEvent) {
		<-release
		atomic.AddInt32(&delivered, 1)
	})
	a := NewAsyncNotifier(blocked, 1, nil)

	for i := 0; i < 10; i++ {
		a.Notify(context.Background(), testEvent(EventCreated, models.AlertLevelCaregiver))
	}
	close(release)
	a.Close()

	n := atomic.LoadInt32(&delivered)
	assert.GreaterOrEqual(t, n, int32(1))
	assert.LessOrEqual(t, n, int32(2))

	// 关闭后不再接收
	a.Notify(context.Background(), testEvent(EventCreated, models.AlertLevelCaregiver))
	assert.Equal(t, n, atomic.LoadInt32(&delivered))
}

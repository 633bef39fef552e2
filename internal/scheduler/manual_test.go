package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualScheduler_FiresInOrder(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewManualScheduler(start)

	var order []string
	var firedAt []time.Time
	record := func(name string) func() {
		return func() {
			order = append(order, name)
			firedAt = append(firedAt, s.Now())
		}
	}

	s.AfterFunc(20*time.Second, record("b"))
	s.AfterFunc(10*time.Second, record("a"))
	s.AfterFunc(20*time.Second, record("c"))

	assert.Equal(t, 0, s.Advance(5*time.Second))
	assert.Equal(t, 1, s.Advance(5*time.Second))
	assert.Equal(t, 2, s.Advance(time.Minute))

	assert.Equal(t, []string{"a", "b", "c"}, order)
	require.Len(t, firedAt, 3)
	assert.Equal(t, start.Add(10*time.Second), firedAt[0])
	assert.Equal(t, start.Add(20*time.Second), firedAt[1])
	assert.Equal(t, start.Add(70*time.Second), s.Now())
}

func TestManualScheduler_Cancel(t *testing.T) {
	s := NewManualScheduler(time.Unix(0, 0))

	fired := false
	task := s.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, task.Cancel())
	assert.False(t, task.Cancel())
	assert.Equal(t, 0, s.Advance(time.Hour))
	assert.False(t, fired)
	assert.Equal(t, 0, s.Pending())
}

func TestManualScheduler_CancelAfterFire(t *testing.T) {
	s := NewManualScheduler(time.Unix(0, 0))
	task := s.AfterFunc(time.Second, func() {})

	s.Advance(time.Second)
	assert.False(t, task.Cancel())
}

func TestManualScheduler_ChainedTask(t *testing.T) {
	s := NewManualScheduler(time.Unix(0, 0))

	count := 0
	s.AfterFunc(time.Second, func() {
		count++
		s.AfterFunc(time.Second, func() { count++ })
	})

	assert.Equal(t, 2, s.Advance(5*time.Second))
	assert.Equal(t, 2, count)
}

func TestRealScheduler_Cancel(t *testing.T) {
	s := NewRealScheduler()
	task := s.AfterFunc(time.Hour, func() {})
	assert.True(t, task.Cancel())
}

package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTickerRuns(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count int64
	s.AddTicker("tick", 10*time.Millisecond, func() {
		atomic.AddInt64(&count, 1)
	})

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&count) >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestRemoveStopsTicker(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count int64
	s.AddTicker("tick", 10*time.Millisecond, func() {
		atomic.AddInt64(&count, 1)
	})
	s.Remove("tick")

	seen := atomic.LoadInt64(&count)
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt64(&count), seen+1)
	assert.Empty(t, s.ListTickers())
}

func TestReplaceTicker(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	s.AddTicker("job", time.Hour, func() {})
	s.AddTicker("job", time.Hour, func() {})

	assert.Equal(t, []string{"job"}, s.ListTickers())
}

func TestPanicInTaskRecovered(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var after int64
	s.AddTicker("panicky", 10*time.Millisecond, func() {
		if atomic.AddInt64(&after, 1) == 1 {
			panic("boom")
		}
	})

	// The ticker survives the panic and keeps firing.
	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&after) >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestStopIdempotent(t *testing.T) {
	s := New(zap.NewNop())
	s.AddTicker("tick", time.Hour, func() {})
	s.Stop()
	s.Stop()
}

package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPhaseTimersFire(t *testing.T) {
	timers := NewPhaseTimers()
	fired := make(chan struct{}, 1)

	timers.Schedule("s1", 10*time.Millisecond, func() { fired <- struct{}{} })
	assert.True(t, timers.Pending("s1"))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Eventually(t, func() bool { return !timers.Pending("s1") }, time.Second, 5*time.Millisecond)
}

func TestPhaseTimersRescheduleReplaces(t *testing.T) {
	timers := NewPhaseTimers()
	var first, second int32

	timers.Schedule("s1", 20*time.Millisecond, func() { atomic.AddInt32(&first, 1) })
	timers.Schedule("s1", 30*time.Millisecond, func() { atomic.AddInt32(&second, 1) })

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&second) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&first))
}

func TestPhaseTimersCancelAndStop(t *testing.T) {
	timers := NewPhaseTimers()
	var fired int32

	timers.Schedule("s1", 10*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	timers.Cancel("s1")
	timers.Schedule("s2", 10*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	timers.Stop()
	timers.Schedule("s3", time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
	assert.False(t, timers.Pending("s3"))
}

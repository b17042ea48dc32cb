package producer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerFiresOnce(t *testing.T) {
	var flushes atomic.Int32
	s := newFlushScheduler(
		10*time.Millisecond,
		func() { flushes.Add(1) },
		func() bool { return false },
		nil,
	)
	defer s.Stop()

	s.Arm()
	assert.Eventually(t, func() bool {
		return flushes.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// No pending work: the scheduler must stay disarmed.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), flushes.Load())
}

func TestSchedulerArmIsIdempotent(t *testing.T) {
	var flushes atomic.Int32
	s := newFlushScheduler(
		20*time.Millisecond,
		func() { flushes.Add(1) },
		func() bool { return false },
		nil,
	)
	defer s.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Arm()
		}()
	}
	wg.Wait()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), flushes.Load(), "concurrent arming schedules one task")
}

func TestSchedulerRearmsWhileWorkRemains(t *testing.T) {
	var flushes atomic.Int32
	remaining := atomic.Int32{}
	remaining.Store(3)

	s := newFlushScheduler(
		5*time.Millisecond,
		func() {
			flushes.Add(1)
			remaining.Add(-1)
		},
		func() bool { return remaining.Load() > 0 },
		nil,
	)
	defer s.Stop()

	s.Arm()
	assert.Eventually(t, func() bool {
		return flushes.Load() == 3
	}, time.Second, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(3), flushes.Load(), "scheduler disarms once drained")
}

func TestSchedulerStopCancelsPendingTask(t *testing.T) {
	var flushes atomic.Int32
	s := newFlushScheduler(
		time.Hour,
		func() { flushes.Add(1) },
		func() bool { return false },
		nil,
	)

	s.Arm()
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return promptly for a pending task")
	}
	assert.Equal(t, int32(0), flushes.Load())
}

func TestSchedulerArmAfterStopIsNoOp(t *testing.T) {
	s := newFlushScheduler(
		time.Millisecond,
		func() {},
		func() bool { return false },
		nil,
	)
	s.Stop()
	s.Arm()
	s.Stop()
}

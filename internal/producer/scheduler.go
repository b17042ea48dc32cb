package producer

import (
	"sync"
	"sync/atomic"
	"time"

	"mqproxy/internal/constants"
	"mqproxy/internal/logger"
)

// flushScheduler runs the proxy's flush routine on a dedicated worker
// goroutine. At most one flush task is pending at any time: Arm is a
// compare-and-set, so concurrent senders cannot schedule twice. After a task
// runs, the scheduler re-arms itself only when buffered work remains, and
// otherwise stays idle until the next admission.
type flushScheduler struct {
	interval time.Duration
	flush    func()
	pending  func() bool

	armed    atomic.Bool
	kick     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	log      logger.Logger
}

func newFlushScheduler(interval time.Duration, flush func(), pending func() bool, log logger.Logger) *flushScheduler {
	if log == nil {
		log = logger.NopLogger()
	}
	s := &flushScheduler{
		interval: interval,
		flush:    flush,
		pending:  pending,
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		log:      log,
	}
	go s.worker()
	return s
}

// Arm schedules a one-shot flush after the configured interval unless one is
// already pending. Safe from any goroutine.
func (s *flushScheduler) Arm() {
	if !s.armed.CompareAndSwap(false, true) {
		return
	}
	select {
	case s.kick <- struct{}{}:
	case <-s.stop:
		s.armed.Store(false)
	}
}

func (s *flushScheduler) worker() {
	defer close(s.done)
	timer := time.NewTimer(s.interval)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-s.stop:
			return
		case <-s.kick:
		}

		timer.Reset(s.interval)
		select {
		case <-s.stop:
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}

		s.flush()
		s.armed.Store(false)
		if s.pending() {
			s.Arm()
		}
	}
}

// Stop asks the worker to exit and waits up to the shutdown grace period for
// an in-flight flush to finish; on timeout the worker is abandoned.
func (s *flushScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	select {
	case <-s.done:
	case <-time.After(constants.SchedulerShutdownGrace):
		s.log.Warnw("Flush worker did not stop within grace period, abandoning",
			"grace", constants.SchedulerShutdownGrace,
		)
	}
}

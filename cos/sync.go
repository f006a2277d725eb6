package cos

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// StopCh is a specialized channel for broadcasting a single stop signal to
// any number of waiters. Ported from the teacher's cmn/sync.go StopCh; no
// other package in this module currently uses it.
type StopCh struct {
	once sync.Once
	ch   chan struct{}
}

func NewStopCh() *StopCh {
	return &StopCh{ch: make(chan struct{})}
}

func (sc *StopCh) Listen() <-chan struct{} { return sc.ch }

func (sc *StopCh) Close() {
	sc.once.Do(func() { close(sc.ch) })
}

// TimeoutGroup is a sync.WaitGroup variant whose Wait can additionally time
// out. Ported from cmn/sync.go; no other package in this module currently
// uses it.
//
// WARNING: do not reuse an instance across more than one wait cycle.
type TimeoutGroup struct {
	jobsLeft  atomic.Int32
	postedFin atomic.Int32
	fin       chan struct{}
}

func NewTimeoutGroup() *TimeoutGroup {
	return &TimeoutGroup{fin: make(chan struct{}, 1)}
}

func (tg *TimeoutGroup) Add(delta int) { tg.jobsLeft.Add(int32(delta)) }

func (tg *TimeoutGroup) Done() {
	if left := tg.jobsLeft.Dec(); left == 0 {
		if posted := tg.postedFin.Swap(1); posted == 0 {
			tg.fin <- struct{}{}
		}
	}
}

// WaitTimeout blocks until every Add'd job calls Done, the timeout elapses,
// or stop fires; it reports whether the wait timed out.
func (tg *TimeoutGroup) WaitTimeout(timeout time.Duration, stop <-chan struct{}) (timedOut bool) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-tg.fin:
		tg.postedFin.Store(0)
		return false
	case <-t.C:
		return true
	case <-stop:
		return false
	}
}

// DynSemaphore is a semaphore whose capacity can change while in use. Ported
// from cmn/sync.go; within this module only LimitedWaitGroup uses it.
type DynSemaphore struct {
	mu   sync.Mutex
	c    *sync.Cond
	size int
	cur  int
}

func NewDynSemaphore(n int) *DynSemaphore {
	s := &DynSemaphore{size: n}
	s.c = sync.NewCond(&s.mu)
	return s
}

func (s *DynSemaphore) SetSize(n int) {
	s.mu.Lock()
	s.size = n
	s.c.Broadcast()
	s.mu.Unlock()
}

func (s *DynSemaphore) Acquire() {
	s.mu.Lock()
	for s.cur >= s.size {
		s.c.Wait()
	}
	s.cur++
	s.mu.Unlock()
}

func (s *DynSemaphore) Release() {
	s.mu.Lock()
	s.cur--
	s.c.Signal()
	s.mu.Unlock()
}

// LimitedWaitGroup combines a sync.WaitGroup with a DynSemaphore to bound the
// number of concurrently-running goroutines it tracks. multipart.Coordinator
// does not use it (it bounds its workers with golang.org/x/sync/semaphore),
// and no other package in this module does either.
type LimitedWaitGroup struct {
	wg   sync.WaitGroup
	sema *DynSemaphore
}

func NewLimitedWaitGroup(n int) *LimitedWaitGroup {
	return &LimitedWaitGroup{sema: NewDynSemaphore(n)}
}

func (l *LimitedWaitGroup) Add() {
	l.sema.Acquire()
	l.wg.Add(1)
}

func (l *LimitedWaitGroup) Done() {
	l.wg.Done()
	l.sema.Release()
}

func (l *LimitedWaitGroup) Wait() { l.wg.Wait() }

// Package runtime holds the process-wide, cross-Connection mutable state
// spec.md §9 calls out for consolidation: SessionPool, the bad-IP map,
// per-host Throttle buckets, and the rotating load-balance index. Tests
// construct an isolated RuntimeContext per spec.md §9 ("tests construct
// isolated RuntimeContexts") instead of relying on package-level globals.
package runtime

import (
	"sync"

	"go.uber.org/atomic"
)

// Context bundles the shared subsystems one or more Connections are created
// against. The zero value is not ready; use New.
type Context struct {
	Sessions *SessionPool
	Roster   *IPRoster
	Throttle *ThrottleSet

	epoch atomic.Int64 // global monotonic counter, zero forbidden (spec.md §4.3)

	mu    sync.Mutex
	hosts map[string]*hostState // per-host rotating index, keyed by host label
}

type hostState struct {
	mu     sync.Mutex
	nextIP int
}

// New constructs an isolated RuntimeContext with fresh subsystems.
func New() *Context {
	c := &Context{hosts: make(map[string]*hostState)}
	c.Sessions = newSessionPool(c)
	c.Roster = newIPRoster(c)
	c.Throttle = newThrottleSet()
	return c
}

// NextEpoch returns the next nonzero monotonic epoch, used to distinguish
// concurrent sessions to the same (host, ip) (spec.md §4.3).
func (c *Context) NextEpoch() int64 {
	return c.epoch.Add(1)
}

func (c *Context) hostState(host string) *hostState {
	c.mu.Lock()
	defer c.mu.Unlock()
	hs, ok := c.hosts[host]
	if !ok {
		hs = &hostState{}
		c.hosts[host] = hs
	}
	return hs
}

// Close tears down every subsystem owned by this context (stops the Throttle
// timer task, drains the session pool).
func (c *Context) Close() {
	c.Throttle.stopAll()
	c.Sessions.closeAll()
}

package connection

import "time"

// PerThreadState is the request-scoped scratch space the source kept in a
// thread-local map (one entry per worker thread, keyed by thread ID). Go has
// no equivalent of a worker-thread identity that outlives a single goroutine,
// so SPEC_FULL.md's re-architecture carries this as an explicit value created
// per request instead — callers thread it through RequestEngine the same way
// they thread a context.Context, rather than recovering it from ambient
// thread-local storage.
type PerThreadState struct {
	// UsedIPs accumulates every candidate IP already tried during this
	// logical request's retry/failover sequence (spec.md §4.4's per-request
	// exclusion set, preventing the bad-IP-rotation loop from retrying an IP
	// it already failed on within the same call).
	UsedIPs map[string]bool

	// RetriesAttempted counts failover/retry cycles so far, compared against
	// Connection.MaxRetryCount.
	RetriesAttempted int

	// AuthCyclesAttempted counts 401/407 challenge-response replay cycles
	// (max 3, spec.md §4.6).
	AuthCyclesAttempted int

	// StartedAt marks when the logical request (including retries) began,
	// used for overall deadline accounting independent of any single
	// attempt's RequestTimeout.
	StartedAt time.Time
}

// NewPerThreadState returns a fresh, single-logical-request scratch value.
func NewPerThreadState() *PerThreadState {
	return &PerThreadState{
		UsedIPs:   make(map[string]bool),
		StartedAt: time.Now(),
	}
}

// MarkUsed records ip as tried for this logical request.
func (p *PerThreadState) MarkUsed(ip string) {
	p.UsedIPs[ip] = true
}

// CanRetry reports whether another retry/failover cycle is permitted under
// the connection's configured ceiling.
func (p *PerThreadState) CanRetry(maxRetryCount int) bool {
	return p.RetriesAttempted < maxRetryCount
}

// CanReplayAuth reports whether another 401/407 challenge-response cycle is
// permitted (hard-capped at 3 regardless of connection config, spec.md §4.6).
func (p *PerThreadState) CanReplayAuth() bool {
	const maxAuthCycles = 3
	return p.AuthCyclesAttempted < maxAuthCycles
}

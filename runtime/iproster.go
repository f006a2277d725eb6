package runtime

import (
	"sync"
	"time"

	"github.com/emcecs/ecs-go-client/cos"
)

// DefaultBadIPAge is the default bad-IP TTL (spec.md §6: "badIPAddrAge: 0 ->
// default 12 minutes").
const DefaultBadIPAge = 12 * time.Minute

type badIPEntry struct {
	at    time.Time
	class cos.TransportClass
}

// IPRoster rotates a per-host set of candidate IPs and tracks a shared
// "bad IP" map with age-based eviction (spec.md §4.4).
type IPRoster struct {
	ctx *Context

	mu  sync.Mutex
	bad map[string]badIPEntry // keyed by "host|ip"
}

func newIPRoster(ctx *Context) *IPRoster {
	return &IPRoster{ctx: ctx, bad: make(map[string]badIPEntry)}
}

func badKey(host, ip string) string { return host + "|" + ip }

// MarkBad records ip as bad for host at time now, classified by class. Per
// spec.md §4.4, an IP is only ever marked bad when (a) the request ultimately
// succeeded on a different IP (so the per-request used set is non-empty), or
// (b) a subsequent retry succeeded — callers enforce that precondition; this
// method itself unconditionally records what it is told, plus the "never for
// a single-IP host" and "only transport-class errors excluding cancelled and
// invalid-server-response" rules, which are also caller-enforced via
// cos.TransportClass.QualifiesForBadIP.
func (r *IPRoster) MarkBad(host, ip string, class cos.TransportClass, now time.Time) {
	r.mu.Lock()
	r.bad[badKey(host, ip)] = badIPEntry{at: now, class: class}
	r.mu.Unlock()
}

// isBadLocked reports whether host/ip is currently bad, evicting it first if
// its entry has aged past ttl. Caller must hold r.mu.
func (r *IPRoster) isBadLocked(host, ip string, now time.Time, ttl time.Duration) bool {
	key := badKey(host, ip)
	e, ok := r.bad[key]
	if !ok {
		return false
	}
	if now.Sub(e.at) > ttl {
		delete(r.bad, key)
		return false
	}
	return true
}

// IsBad reports whether host/ip is currently in the bad-IP map (evicting it
// first if stale).
func (r *IPRoster) IsBad(host, ip string, now time.Time, ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isBadLocked(host, ip, now, ttl)
}

// TestAllBad clears every bad entry for host's candidates if, after evicting
// stale entries, every one of them is present in the bad-IP map — the
// "global intermittent-failure recovery" rule (spec.md §3, §4.4).
func (r *IPRoster) TestAllBad(host string, candidates []string, now time.Time, ttl time.Duration) {
	if len(candidates) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ip := range candidates {
		if !r.isBadLocked(host, ip, now, ttl) {
			return
		}
	}
	for _, ip := range candidates {
		delete(r.bad, badKey(host, ip))
	}
}

// NextIP advances host's rotating index over candidates, skipping any IP
// that is bad or present in excluding (the per-request used set). It returns
// ok=false once every candidate has been tried. For a single-candidate host
// (test-connection mode), the bad-IP check is skipped entirely — spec.md
// §4.4: "IPs are never marked bad for a single-IP host", which this mirrors
// on the read side too so a transiently-bad sole IP is still offered.
func (r *IPRoster) NextIP(host string, candidates []string, excluding map[string]bool, now time.Time, ttl time.Duration) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	single := len(candidates) == 1
	hs := r.ctx.hostState(host)

	hs.mu.Lock()
	defer hs.mu.Unlock()

	for i := 0; i < len(candidates); i++ {
		idx := hs.nextIP % len(candidates)
		hs.nextIP++
		ip := candidates[idx]
		if excluding[ip] {
			continue
		}
		if !single && r.IsBad(host, ip, now, ttl) {
			continue
		}
		return ip, true
	}
	return "", false
}

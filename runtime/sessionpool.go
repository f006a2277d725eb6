package runtime

import (
	"net/http"
	"sync"
	"time"
)

// idleTTL is the duration after which a free, released Session is reaped by
// GarbageCollect (spec.md §4.3: "destroys free entries whose idle timestamp
// is older than one hour").
const idleTTL = time.Hour

// Session is a pooled transport session: a reusable *http.Client dedicated to
// one (host, ip) pair, plus the bookkeeping SessionPool needs to lease and
// reap it. It stands in for the source's opaque "session handle + connect
// handle" pair (spec.md §3) — Go's http.Client/http.Transport pairing is the
// idiomatic equivalent, since http.Transport already owns persistent
// connection reuse once dialed to the chosen IP.
type Session struct {
	Host  string
	IP    string
	Epoch int64
	Client *http.Client

	mu           sync.Mutex
	inUse        bool
	killWhenDone bool
	idleSince    time.Time
}

func (s *Session) markIdle() {
	s.mu.Lock()
	s.inUse = false
	s.idleSince = time.Now()
	s.mu.Unlock()
}

// SessionPool is a keyed (host, ip, epoch) pool of Sessions with lease/release
// and idle-TTL reaping (spec.md §4.3).
type SessionPool struct {
	ctx *Context

	mu      sync.Mutex
	entries map[string][]*Session // keyed by "host|ip"
}

func newSessionPool(ctx *Context) *SessionPool {
	return &SessionPool{ctx: ctx, entries: make(map[string][]*Session)}
}

func poolKey(host, ip string) string { return host + "|" + ip }

// NewClientFunc builds a fresh *http.Client dedicated to one (host, ip, epoch)
// triple. Supplied by the caller (connection package) so SessionPool does not
// need to know about TLS/proxy/timeout configuration itself.
type NewClientFunc func(host, ip string, epoch int64) *http.Client

// Lease returns a free Session for (host, ip), or mints a new one via newClient
// if none is free. Leases are short-held bookkeeping only; they never cover
// the I/O itself (spec.md §4.3 concurrency note).
func (p *SessionPool) Lease(host, ip string, newClient NewClientFunc) *Session {
	p.mu.Lock()
	key := poolKey(host, ip)
	for _, s := range p.entries[key] {
		s.mu.Lock()
		if !s.inUse {
			s.inUse = true
			s.mu.Unlock()
			p.mu.Unlock()
			return s
		}
		s.mu.Unlock()
	}
	epoch := p.ctx.NextEpoch()
	p.mu.Unlock()

	s := &Session{
		Host:   host,
		IP:     ip,
		Epoch:  epoch,
		Client: newClient(host, ip, epoch),
		inUse:  true,
	}
	p.mu.Lock()
	p.entries[key] = append(p.entries[key], s)
	p.mu.Unlock()
	return s
}

// Release returns s to the pool, destroying it instead if it is marked
// kill-when-done or the caller passes kill=true (a transport error on this
// session, e.g.).
func (p *SessionPool) Release(s *Session, kill bool) {
	s.mu.Lock()
	die := kill || s.killWhenDone
	s.mu.Unlock()

	if die {
		p.remove(s)
		return
	}
	s.markIdle()
}

func (p *SessionPool) remove(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := poolKey(s.Host, s.IP)
	list := p.entries[key]
	for i, e := range list {
		if e == s {
			p.entries[key] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

// InvalidateHost marks every in-use entry for host as kill-when-done and
// immediately destroys every free entry, per spec.md §4.3. Triggered by any
// change to host/IPs/port/TLS/proxy/credentials.
func (p *SessionPool) InvalidateHost(host string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, list := range p.entries {
		if len(list) == 0 || list[0].Host != host {
			continue
		}
		kept := list[:0]
		for _, s := range list {
			s.mu.Lock()
			if s.inUse {
				s.killWhenDone = true
				kept = append(kept, s)
			}
			s.mu.Unlock()
		}
		p.entries[key] = kept
	}
}

// GarbageCollect destroys every free entry whose idle timestamp is older than
// now-idleTTL.
func (p *SessionPool) GarbageCollect(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := now.Add(-idleTTL)
	for key, list := range p.entries {
		kept := list[:0]
		for _, s := range list {
			s.mu.Lock()
			dead := !s.inUse && s.idleSince.Before(cutoff)
			s.mu.Unlock()
			if !dead {
				kept = append(kept, s)
			}
		}
		p.entries[key] = kept
	}
}

// Size reports the total number of entries currently tracked, across every
// (host, ip) key — used by tests verifying Testable Property 6.
func (p *SessionPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, list := range p.entries {
		n += len(list)
	}
	return n
}

func (p *SessionPool) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k := range p.entries {
		delete(p.entries, k)
	}
}

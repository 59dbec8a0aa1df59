package client

import (
	"context"
	"sync"
	"time"
)

// Pinger checks whether the backend answers.
type Pinger interface {
	Health(ctx context.Context) error
}

// Availability caches the result of a health ping for ttl.
type Availability struct {
	pinger  Pinger
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time

	mu        sync.Mutex
	forced    bool
	online    bool
	checkedAt time.Time
}

// NewAvailability creates a checker. Zero ttl re-pings on every call.
func NewAvailability(p Pinger, ttl, timeout time.Duration) *Availability {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Availability{pinger: p, ttl: ttl, timeout: timeout, now: time.Now}
}

// Online reports whether the backend is reachable, pinging it when the cached
// answer is stale.
func (a *Availability) Online(ctx context.Context) bool {
	a.mu.Lock()
	if a.forced {
		a.mu.Unlock()
		return false
	}
	if !a.checkedAt.IsZero() && a.now().Sub(a.checkedAt) < a.ttl {
		online := a.online
		a.mu.Unlock()
		return online
	}
	a.mu.Unlock()

	pingCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	err := a.pinger.Health(pingCtx)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.online = err == nil
	a.checkedAt = a.now()
	return a.online && !a.forced
}

// MarkOffline records a transport failure so the next calls skip the network
// until the ttl expires.
func (a *Availability) MarkOffline() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.online = false
	a.checkedAt = a.now()
}

// ForceOffline pins the checker to offline (demo mode) or releases it.
func (a *Availability) ForceOffline(forced bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.forced = forced
	if !forced {
		a.checkedAt = time.Time{}
	}
}

// Forced reports whether demo mode is on.
func (a *Availability) Forced() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.forced
}

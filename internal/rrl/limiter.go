// Package rrl guards the Transport FSM's outgoing query rate to any one
// nameserver address, so a slow or hostile zone encountered during
// iterative resolution cannot be driven into a query storm by repeated
// FOREACH_A/QUERY_A retries. This is the resolver's own send-side analog
// of BIND-style response rate limiting — a token bucket per destination
// instead of per client, since the resolver has no clients of its own.
package rrl

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultQueriesPerSecond and DefaultBurst mirror the conventional
// resolv.conf-adjacent defaults: generous enough that a well-behaved
// iteration never notices, tight enough to cap a pathological retry loop
// against one address.
const (
	DefaultQueriesPerSecond = 20
	DefaultBurst            = 5
)

// Config tunes the limiter.
type Config struct {
	QueriesPerSecond float64
	Burst            int
	Enabled          bool
}

// DefaultConfig returns the recommended outgoing-query limiter settings.
func DefaultConfig() Config {
	return Config{
		QueriesPerSecond: DefaultQueriesPerSecond,
		Burst:            DefaultBurst,
		Enabled:          true,
	}
}

// Stats tracks limiter outcomes.
type Stats struct {
	Allowed uint64
	Limited uint64
}

// Limiter is a single-threaded, per-destination token bucket. Callers —
// in practice one Resolver driving one Socket at a time — must not share
// a Limiter across goroutines without external synchronization, matching
// this module's single-threaded FSM contract.
type Limiter struct {
	cfg     Config
	buckets map[string]*rate.Limiter
	stats   Stats
}

// NewLimiter builds a Limiter from cfg.
func NewLimiter(cfg Config) *Limiter {
	if cfg.QueriesPerSecond == 0 {
		cfg.QueriesPerSecond = DefaultQueriesPerSecond
	}
	if cfg.Burst == 0 {
		cfg.Burst = DefaultBurst
	}
	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether a query to addr may be sent now, consuming one
// token if so. Disabled limiters always allow.
func (l *Limiter) Allow(addr net.IP) bool {
	if !l.cfg.Enabled {
		l.stats.Allowed++
		return true
	}

	key := addr.String()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Limit(l.cfg.QueriesPerSecond), l.cfg.Burst)
		l.buckets[key] = b
	}

	if b.Allow() {
		l.stats.Allowed++
		return true
	}
	l.stats.Limited++
	return false
}

// Reserve returns the duration the caller should wait before Allow(addr)
// would succeed, without consuming a token — useful for a poll-loop
// driver that wants to schedule a retry rather than busy-poll.
func (l *Limiter) Reserve(addr net.IP) time.Duration {
	if !l.cfg.Enabled {
		return 0
	}
	key := addr.String()
	b, ok := l.buckets[key]
	if !ok {
		return 0
	}
	now := time.Now()
	r := b.ReserveN(now, 1)
	defer r.CancelAt(now)
	return r.DelayFrom(now)
}

// GetStats returns a copy of the limiter's counters.
func (l *Limiter) GetStats() Stats { return l.stats }

// defaultOnce guards lazy construction of a package-level default
// limiter for callers that don't need per-resolver tuning.
var (
	defaultOnce sync.Once
	defaultL    *Limiter
)

// Default returns a process-wide Limiter built from DefaultConfig, for
// embedders that don't construct their own.
func Default() *Limiter {
	defaultOnce.Do(func() { defaultL = NewLimiter(DefaultConfig()) })
	return defaultL
}

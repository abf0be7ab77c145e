package network

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// perIPRateLimit and perIPBurst bound how many datagrams per second a
// single sending IP may push through before Allow starts returning false,
// independent of how many distinct endpoints that IP uses.
const (
	perIPRateLimit = 50 // datagrams/sec
	perIPBurst     = 100
)

// IPRateLimiter hands out a token bucket per source IP, evicting buckets
// that have gone idle so a transient flood of distinct IPs doesn't pin
// memory forever.
type IPRateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
}

type bucket struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// NewIPRateLimiter constructs a limiter at the package's standard
// per-IP rate/burst, evicting buckets idle for longer than idleTTL.
func NewIPRateLimiter(idleTTL time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate.Limit(perIPRateLimit),
		burst:   perIPBurst,
		idleTTL: idleTTL,
	}
}

// Allow reports whether a datagram from ip should be accepted right now,
// consuming a token from that IP's bucket if so.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	b, ok := l.buckets[ip]
	now := time.Now()
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[ip] = b
	}
	b.lastUse = now
	l.mu.Unlock()
	return b.limiter.Allow()
}

// Sweep drops every bucket idle longer than idleTTL, called from the same
// keepalive cadence as PeerTable.PurgeStale.
func (l *IPRateLimiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, b := range l.buckets {
		if now.Sub(b.lastUse) > l.idleTTL {
			delete(l.buckets, ip)
		}
	}
}

package network

import (
	"testing"
	"time"
)

func TestIPRateLimiterCapsBurst(t *testing.T) {
	l := NewIPRateLimiter(time.Minute)
	allowed := 0
	for i := 0; i < perIPBurst+20; i++ {
		if l.Allow("8.8.8.8") {
			allowed++
		}
	}
	if allowed < perIPBurst || allowed > perIPBurst+1 {
		t.Fatalf("allowed = %d, want ~%d (the configured burst)", allowed, perIPBurst)
	}
}

func TestIPRateLimiterTracksIndependentBuckets(t *testing.T) {
	l := NewIPRateLimiter(time.Minute)
	for i := 0; i < perIPBurst; i++ {
		l.Allow("8.8.8.8")
	}
	if !l.Allow("1.1.1.1") {
		t.Fatalf("Allow for a distinct IP: want true, buckets must not share state")
	}
}

func TestIPRateLimiterSweepEvictsIdleBuckets(t *testing.T) {
	l := NewIPRateLimiter(time.Minute)
	l.Allow("8.8.8.8")
	if len(l.buckets) != 1 {
		t.Fatalf("buckets after Allow = %d, want 1", len(l.buckets))
	}
	l.Sweep(time.Now().Add(2 * time.Minute))
	if len(l.buckets) != 0 {
		t.Fatalf("buckets after Sweep = %d, want 0", len(l.buckets))
	}
}

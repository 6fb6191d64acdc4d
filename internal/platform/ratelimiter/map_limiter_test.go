package ratelimiter

import (
	"fmt"
	"testing"
	"time"
)

func TestNilLimiterAllowsEverything(t *testing.T) {
	var l *MapLimiter
	if !l.Allow("client", time.Now()) {
		t.Fatal("nil limiter must allow")
	}
	if New(0, 1, 0) != nil || New(1, 0, 0) != nil {
		t.Fatal("invalid settings must disable limiting")
	}
}

func TestBurstThenRefill(t *testing.T) {
	l := New(1, 2, time.Minute)
	now := time.Unix(1000, 0)
	if !l.Allow("a", now) || !l.Allow("a", now) {
		t.Fatal("burst of two must pass")
	}
	if l.Allow("a", now) {
		t.Fatal("third call within the same instant must be limited")
	}
	if !l.Allow("b", now) {
		t.Fatal("keys must not share buckets")
	}
	if !l.Allow("a", now.Add(1100*time.Millisecond)) {
		t.Fatal("token must refill after one second")
	}
}

func TestIdleKeysAreSwept(t *testing.T) {
	l := New(100, 1, time.Second)
	start := time.Unix(2000, 0)
	for i := 0; i < sweepEvery-1; i++ {
		l.Allow(fmt.Sprintf("k%d", i), start)
	}
	if l.Len() != sweepEvery-1 {
		t.Fatalf("tracked %d keys", l.Len())
	}
	l.Allow("late", start.Add(time.Minute))
	if l.Len() != 1 {
		t.Fatalf("idle keys must be dropped, %d left", l.Len())
	}
}

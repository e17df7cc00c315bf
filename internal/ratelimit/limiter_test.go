package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemory_BurstThenDeny(t *testing.T) {
	l := NewMemory(3)
	fixed := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return fixed }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := l.Allow(ctx, "a@x.com")
		if err != nil || !allowed {
			t.Fatalf("send %d should be allowed: %v %v", i, allowed, err)
		}
	}

	if allowed, _ := l.Allow(ctx, "a@x.com"); allowed {
		t.Error("fourth send within the same instant should be denied")
	}
	if allowed, _ := l.Allow(ctx, "b@x.com"); !allowed {
		t.Error("limits must be per key")
	}
}

func TestMemory_Refills(t *testing.T) {
	l := NewMemory(60)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		l.Allow(ctx, "a@x.com")
	}
	if allowed, _ := l.Allow(ctx, "a@x.com"); allowed {
		t.Fatal("bucket should be empty")
	}

	now = now.Add(time.Second)
	if allowed, _ := l.Allow(ctx, "a@x.com"); !allowed {
		t.Error("one token should refill after a second")
	}
}

func TestMemory_DisabledAllowsAll(t *testing.T) {
	l := NewMemory(0)
	if l != nil {
		t.Fatal("expected nil limiter for non-positive rate")
	}
	if allowed, _ := l.Allow(context.Background(), "a@x.com"); !allowed {
		t.Error("nil limiter should allow")
	}
}

package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether one more send is allowed for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Memory applies a token bucket per key and periodically evicts idle
// entries.
type Memory struct {
	limit   rate.Limit
	burst   int
	byKey   map[string]*entry
	hits    uint64
	idleTTL time.Duration
	now     func() time.Time
	mu      sync.Mutex
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemory allows perMinute sends per key, with the whole minute available
// as burst. A non-positive perMinute returns nil, which allows everything.
func NewMemory(perMinute int) *Memory {
	if perMinute <= 0 {
		return nil
	}
	return &Memory{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   perMinute,
		byKey:   make(map[string]*entry),
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

func (l *Memory) Allow(_ context.Context, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true, nil
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}

	return allowed, nil
}

// Package ratelimit limits how fast each client address may send requests,
// using one token bucket per address.
package ratelimit

import (
	"sync"
	"time"
)

// Default limiter values.
const (
	DefaultCleanupInterval = 1 * time.Minute
	DefaultEntryTTL        = 1 * time.Minute
)

// Config configures a Limiter.
type Config struct {
	Rate            float64       // tokens per second
	Burst           int           // maximum bucket capacity
	CleanupInterval time.Duration // how often idle clients are forgotten
	EntryTTL        time.Duration // how long a client lives without activity
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastUpdate time.Time
}

// Limiter tracks one token bucket per client address.
// It is safe for concurrent use.
type Limiter struct {
	rate            float64
	burst           int
	cleanupInterval time.Duration
	entryTTL        time.Duration

	mu      sync.RWMutex
	buckets map[string]*bucket

	stopOnce  sync.Once
	stopCh    chan struct{}
	stoppedCh chan struct{}

	now func() time.Time
}

// New returns a limiter and starts its cleanup goroutine. Rate must be
// positive; a non-positive burst defaults to twice the rate, at least one.
func New(cfg Config) *Limiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = max(int(cfg.Rate*2), 1)
	}
	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	entryTTL := cfg.EntryTTL
	if entryTTL <= 0 {
		entryTTL = DefaultEntryTTL
	}

	l := &Limiter{
		rate:            cfg.Rate,
		burst:           burst,
		cleanupInterval: cleanupInterval,
		entryTTL:        entryTTL,
		buckets:         make(map[string]*bucket),
		stopCh:          make(chan struct{}),
		stoppedCh:       make(chan struct{}),
		now:             time.Now,
	}
	go l.cleanup()
	return l
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() int { return l.burst }

// Allow takes one token from client's bucket. When none is left it reports
// how long until the next token becomes available.
func (l *Limiter) Allow(client string) (bool, time.Duration) {
	now := l.now()
	b := l.bucketFor(client, now)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += now.Sub(b.lastUpdate).Seconds() * l.rate
	if b.tokens > float64(l.burst) {
		b.tokens = float64(l.burst)
	}
	b.lastUpdate = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	retry := time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
	return false, max(retry, time.Second)
}

func (l *Limiter) bucketFor(client string, now time.Time) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[client]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[client]; !ok {
		b = &bucket{tokens: float64(l.burst), lastUpdate: now}
		l.buckets[client] = b
	}
	return b
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
	<-l.stoppedCh
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()
	defer close(l.stoppedCh)

	for {
		select {
		case <-ticker.C:
			l.removeIdle(l.now())
		case <-l.stopCh:
			return
		}
	}
}

func (l *Limiter) removeIdle(now time.Time) {
	cutoff := now.Add(-l.entryTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	for client, b := range l.buckets {
		b.mu.Lock()
		if b.lastUpdate.Before(cutoff) {
			delete(l.buckets, client)
		}
		b.mu.Unlock()
	}
}

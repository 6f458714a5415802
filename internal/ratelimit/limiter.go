// Package ratelimit is a fixed-window, single-process abuse limiter for
// credential-issuing endpoints. Multi-instance deployments need a shared
// backing store; that is out of scope for this limiter.
package ratelimit

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var rejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "vendora",
	Subsystem: "ratelimit",
	Name:      "rejected_total",
	Help:      "Requests rejected by the fixed-window limiter.",
})

type record struct {
	count     int
	limit     int
	windowEnd time.Time
	firstSeen time.Time
}

type Limiter struct {
	mu      sync.Mutex
	records map[string]*record

	ceiling int
	log     *zap.SugaredLogger
	now     func() time.Time

	done    chan struct{}
	stopped sync.Once
}

// New starts a limiter whose sweeper runs every sweepEvery. ceiling bounds
// total record count; above it the sweep evicts the oldest 20% by first-seen
// time, which makes the limiter approximate under memory pressure.
func New(ceiling int, sweepEvery time.Duration, log *zap.SugaredLogger) *Limiter {
	l := &Limiter{
		records: map[string]*record{},
		ceiling: ceiling,
		log:     log,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go l.sweepLoop(sweepEvery)
	return l
}

// Allow reports whether one more call under key fits within limit per
// window. The counter for an exhausted window is not mutated.
func (l *Limiter) Allow(key string, limit int, window time.Duration) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key]
	if !ok || now.After(rec.windowEnd) {
		l.records[key] = &record{count: 1, limit: limit, windowEnd: now.Add(window), firstSeen: now}
		return true
	}
	if rec.count < limit {
		rec.count++
		rec.limit = limit
		return true
	}
	rejectedTotal.Inc()
	return false
}

// Close stops the background sweeper.
func (l *Limiter) Close() {
	l.stopped.Do(func() { close(l.done) })
}

func (l *Limiter) sweepLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-t.C:
			l.sweep()
		}
	}
}

// sweep deletes expired windows, then enforces the ceiling. Eviction skips
// records that are currently blocked so memory pressure cannot hand an
// already-limited caller a fresh window. Work is proportional to the store
// size; the lock is never held longer than one pass.
func (l *Limiter) sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, rec := range l.records {
		if now.After(rec.windowEnd) {
			delete(l.records, k)
		}
	}
	if l.ceiling <= 0 || len(l.records) <= l.ceiling {
		return
	}

	type aged struct {
		key       string
		firstSeen time.Time
	}
	candidates := make([]aged, 0, len(l.records))
	for k, rec := range l.records {
		if rec.count >= rec.limit {
			continue
		}
		candidates = append(candidates, aged{key: k, firstSeen: rec.firstSeen})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].firstSeen.Before(candidates[j].firstSeen)
	})
	evict := len(l.records) / 5
	if evict > len(candidates) {
		evict = len(candidates)
	}
	for _, c := range candidates[:evict] {
		delete(l.records, c.key)
	}
	if l.log != nil && evict > 0 {
		l.log.Warnw("rate limiter over ceiling, evicted oldest records",
			"evicted", evict, "remaining", len(l.records), "ceiling", l.ceiling)
	}
}

// size is a test hook.
func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

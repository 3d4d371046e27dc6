package ratelimit

import (
	"context"
	"sync"
	"time"
)

// StatsEvent records one contact gate decision.
//
// Outcome is the gate's outcome label (admitted, rate_limited, ...).
// Allowed is true only for submissions that passed the limiter.
type StatsEvent struct {
	Key     string
	Allowed bool
	Outcome string
	At      time.Time
}

// Counters are cumulative allowed/denied totals.
type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

func (c *Counters) add(allowed bool, n int64) {
	if allowed {
		c.Allowed += n
	} else {
		c.Denied += n
	}
}

// StatsStore persists decision events. Callers treat errors as best-effort.
//
// Since sums per-minute buckets from the minute containing from onwards;
// buckets older than the store's retention are gone.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
	Total(ctx context.Context) (Counters, error)
	Outcomes(ctx context.Context) (map[string]int64, error)
	Since(ctx context.Context, from time.Time) (Counters, error)
}

// memoryRetention bounds how many minute buckets MemoryStatsStore keeps.
const memoryRetention = 24 * time.Hour

// MemoryStatsStore keeps counters in process memory. Totals never expire.
type MemoryStatsStore struct {
	mu        sync.Mutex
	total     Counters
	byOutcome map[string]int64
	minutes   map[int64]Counters
}

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{
		byOutcome: make(map[string]int64),
		minutes:   make(map[int64]Counters),
	}
}

func minuteOf(t time.Time) int64 { return t.Unix() / 60 }

func (s *MemoryStatsStore) Record(_ context.Context, ev StatsEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed, 1)
	if ev.Outcome != "" {
		s.byOutcome[ev.Outcome]++
	}

	m := minuteOf(at)
	bucket, existed := s.minutes[m]
	bucket.add(ev.Allowed, 1)
	s.minutes[m] = bucket
	if !existed {
		cutoff := minuteOf(at.Add(-memoryRetention))
		for k := range s.minutes {
			if k < cutoff {
				delete(s.minutes, k)
			}
		}
	}
	return nil
}

func (s *MemoryStatsStore) Total(_ context.Context) (Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total, nil
}

// Outcomes returns a copy of the per-outcome counts.
func (s *MemoryStatsStore) Outcomes(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(s.byOutcome))
	for k, v := range s.byOutcome {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStatsStore) Since(_ context.Context, from time.Time) (Counters, error) {
	first := minuteOf(from)

	s.mu.Lock()
	defer s.mu.Unlock()

	var c Counters
	for k, b := range s.minutes {
		if k >= first {
			c.Allowed += b.Allowed
			c.Denied += b.Denied
		}
	}
	return c, nil
}

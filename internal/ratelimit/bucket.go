package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BucketStore caches one token-bucket limiter per key and forgets keys that
// have been idle longer than idleTTL.
type BucketStore struct {
	mu      sync.Mutex
	entries map[string]*bucketEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
	inflight int
}

type BucketOption func(*BucketStore)

func WithIdleTTL(d time.Duration) BucketOption {
	return func(s *BucketStore) { s.idleTTL = d }
}

func NewBucketStore(rps float64, burst int, opts ...BucketOption) *BucketStore {
	s := &BucketStore{
		entries: make(map[string]*bucketEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the limiter for key, creating it on first use.
func (s *BucketStore) Get(key string) *rate.Limiter {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry(key, now).lim
}

// entry must be called with s.mu held.
func (s *BucketStore) entry(key string, now time.Time) *bucketEntry {
	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent
	}
	ent := &bucketEntry{lim: rate.NewLimiter(s.rps, s.burst), lastSeen: now}
	s.entries[key] = ent
	return ent
}

// Acquire admits one attempt for key while the attempts already in flight
// leave at least one token unclaimed. The caller must call release exactly
// once; release(true) spends the token, release(false) hands it back.
func (s *BucketStore) Acquire(key string) (release func(spend bool), ok bool) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent := s.entry(key, now)
	if ent.lim.TokensAt(now)-float64(ent.inflight) < 1 {
		return nil, false
	}
	ent.inflight++

	var once sync.Once
	return func(spend bool) {
		once.Do(func() {
			at := s.now()
			s.mu.Lock()
			defer s.mu.Unlock()
			ent.inflight--
			if spend {
				ent.lim.AllowN(at, 1)
			}
		})
	}, true
}

// Exhausted reports whether key currently has less than one token left.
func (s *BucketStore) Exhausted(key string) bool {
	return s.Get(key).Tokens() < 1
}

// RetryAfter estimates how long until key earns its next token.
func (s *BucketStore) RetryAfter(key string) time.Duration {
	lim := s.Get(key)
	missing := 1 - lim.Tokens()
	if missing <= 0 || s.rps <= 0 {
		return 0
	}
	return ceilSeconds(time.Duration(missing / float64(s.rps) * float64(time.Second)))
}

func (s *BucketStore) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.inflight == 0 && ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor runs Cleanup every interval until ctx is done.
func (s *BucketStore) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

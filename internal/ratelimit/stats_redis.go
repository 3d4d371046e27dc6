package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore keeps decision counters in Redis hashes so several
// instances share one view:
//
//	<prefix>:total              allowed / denied, never expires
//	<prefix>:minute:<yyyymmddhhmm>  allowed / denied, expires after ttl
//	<prefix>:outcome            one field per outcome label
type RedisStatsStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "contact:stats",
		ttl:    24 * time.Hour,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	bucketKey := s.minuteKey(at)
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	if outcome := strings.TrimSpace(ev.Outcome); outcome != "" {
		pipe.HIncrBy(ctx, s.prefix+":outcome", outcome, 1)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStatsStore) minuteKey(t time.Time) string {
	return fmt.Sprintf("%s:minute:%s", s.prefix, t.UTC().Format("200601021504"))
}

func parseCounters(vals map[string]string) Counters {
	var c Counters
	if v, ok := vals["allowed"]; ok {
		c.Allowed, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := vals["denied"]; ok {
		c.Denied, _ = strconv.ParseInt(v, 10, 64)
	}
	return c
}

func (s *RedisStatsStore) Total(ctx context.Context) (Counters, error) {
	vals, err := s.rdb.HGetAll(ctx, s.prefix+":total").Result()
	if err != nil {
		return Counters{}, fmt.Errorf("read stats total: %w", err)
	}
	return parseCounters(vals), nil
}

func (s *RedisStatsStore) Outcomes(ctx context.Context) (map[string]int64, error) {
	vals, err := s.rdb.HGetAll(ctx, s.prefix+":outcome").Result()
	if err != nil {
		return nil, fmt.Errorf("read stats outcomes: %w", err)
	}

	out := make(map[string]int64, len(vals))
	for k, v := range vals {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}

// Since reads every minute bucket from from up to now in one pipeline. The
// range is clipped to the bucket TTL since older buckets have expired.
func (s *RedisStatsStore) Since(ctx context.Context, from time.Time) (Counters, error) {
	now := s.now().UTC().Truncate(time.Minute)
	from = from.UTC().Truncate(time.Minute)

	span := s.ttl
	if span <= 0 {
		span = 24 * time.Hour
	}
	if oldest := now.Add(-span); from.Before(oldest) {
		from = oldest
	}
	if from.After(now) {
		return Counters{}, nil
	}

	pipe := s.rdb.Pipeline()
	var cmds []*redis.MapStringStringCmd
	for t := from; !t.After(now); t = t.Add(time.Minute) {
		cmds = append(cmds, pipe.HGetAll(ctx, s.minuteKey(t)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return Counters{}, fmt.Errorf("read stats minutes: %w", err)
	}

	var c Counters
	for _, cmd := range cmds {
		b := parseCounters(cmd.Val())
		c.Allowed += b.Allowed
		c.Denied += b.Denied
	}
	return c, nil
}

package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/lawconnect/lawconnect/internal/logging"
)

// Limiter decides whether a request keyed by client address may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTTL         = 10 * time.Minute
)

// MemoryLimiter is a per-key token bucket limiter held in process memory.
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters map[string]*bucket
	rate     rate.Limit
	burst    int
	now      func() time.Time
	logger   logging.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter creates a limiter allowing perSecond requests per key with
// the given burst. Call Close to stop the cleanup goroutine. logger may be nil.
func NewMemoryLimiter(perSecond, burst int, logger logging.Logger) *MemoryLimiter {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	if burst < 1 {
		burst = 1
	}
	l := &MemoryLimiter{
		limiters: make(map[string]*bucket),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
		logger:   logger,
		stop:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow consumes one token for key.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	b, ok := l.limiters[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	return b.limiter.AllowN(now, 1), nil
}

// Close stops the background cleanup.
func (l *MemoryLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *MemoryLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

// evictIdle removes keys not seen within limiterIdleTTL.
func (l *MemoryLimiter) evictIdle() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	evicted := 0
	for key, b := range l.limiters {
		if now.Sub(b.lastSeen) > limiterIdleTTL {
			delete(l.limiters, key)
			evicted++
		}
	}
	if evicted > 0 {
		l.logger.Debug("evicted idle rate limit buckets", "count", evicted, "remaining", len(l.limiters))
	}
}

// slidingWindowScript trims expired entries, counts the window and records
// the request atomically. Returns {allowed, remaining}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_ms = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local current = redis.call('ZCARD', key)
if current >= limit then
	return {0, 0}
end

local counter = redis.call('INCR', key .. ':seq')
redis.call('ZADD', key, now, now .. ':' .. counter)
redis.call('PEXPIRE', key, window_ms)
redis.call('PEXPIRE', key .. ':seq', window_ms)
return {1, limit - current - 1}
`)

// RedisLimiter is a sliding window limiter shared across replicas.
type RedisLimiter struct {
	client    redis.Scripter
	keyPrefix string
	limit     int
	window    time.Duration
	now       func() time.Time
}

// NewRedisLimiter allows limit requests per window per key.
func NewRedisLimiter(client redis.Scripter, keyPrefix string, limit int, window time.Duration) *RedisLimiter {
	if limit < 1 {
		limit = 1
	}
	return &RedisLimiter{
		client:    client,
		keyPrefix: keyPrefix,
		limit:     limit,
		window:    window,
		now:       time.Now,
	}
}

// Allow records a request for key and reports whether it fits in the window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now()
	res, err := slidingWindowScript.Run(ctx, l.client, []string{l.keyPrefix + key},
		now.UnixMilli(), now.Add(-l.window).UnixMilli(), l.limit, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return false, fmt.Errorf("unexpected rate limit response length %d", len(res))
	}
	return res[0] == 1, nil
}

// NewLimiterFromConfig builds a Redis limiter when redisURL is set and an
// in-memory limiter otherwise. perSecond <= 0 disables limiting.
func NewLimiterFromConfig(redisURL string, perSecond, burst int, logger logging.Logger) (Limiter, func() error, error) {
	if perSecond <= 0 {
		return nil, func() error { return nil }, nil
	}
	if redisURL == "" {
		l := NewMemoryLimiter(perSecond, burst, logger)
		return l, func() error { l.Close(); return nil }, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	// Window sized so the sustained rate still matches perSecond.
	if burst < perSecond {
		burst = perSecond
	}
	window := time.Duration(float64(burst) / float64(perSecond) * float64(time.Second))
	return NewRedisLimiter(client, "lawconnect:ratelimit:", burst, window), client.Close, nil
}

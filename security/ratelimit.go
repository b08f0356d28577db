package security

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultMaxLimiters bounds the number of identifiers tracked at once.
	DefaultMaxLimiters = 10000

	defaultCleanupInterval = 5 * time.Minute
	defaultIdleTimeout     = 30 * time.Minute
)

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	// Rate is the sustained number of requests per second per identifier.
	Rate float64

	// Burst is the maximum burst size per identifier.
	Burst int

	// MaxEntries bounds memory; least recently used identifiers are evicted
	// first. Zero means DefaultMaxLimiters.
	MaxEntries int

	// IdleTimeout is how long an identifier may stay unused before cleanup
	// forgets it. Zero means 30 minutes.
	IdleTimeout time.Duration

	// CleanupInterval is how often idle identifiers are swept. Zero means
	// 5 minutes; negative disables the background sweep.
	CleanupInterval time.Duration

	Logger *slog.Logger
}

type limiterEntry struct {
	key        string
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter provides per-identifier token bucket limiting (typically per
// client IP on the token endpoint) with LRU eviction.
type RateLimiter struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	lru      *list.List
	limit    rate.Limit
	burst    int
	max      int
	idle     time.Duration
	logger   *slog.Logger
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once

	evictions int64
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop.
// Call Stop to release the goroutine.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxLimiters
	}
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	interval := cfg.CleanupInterval
	if interval == 0 {
		interval = defaultCleanupInterval
	}

	rl := &RateLimiter{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		limit:   rate.Limit(cfg.Rate),
		burst:   cfg.Burst,
		max:     maxEntries,
		idle:    idle,
		logger:  logger,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	if interval > 0 {
		go rl.cleanupLoop(interval)
	}
	return rl
}

// Allow reports whether one more request from key fits within its budget.
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if elem, ok := rl.entries[key]; ok {
		rl.lru.MoveToFront(elem)
		entry := elem.Value.(*limiterEntry)
		entry.lastAccess = now
		return entry.limiter.AllowN(now, 1)
	}

	if len(rl.entries) >= rl.max {
		rl.evictOldest()
	}

	entry := &limiterEntry{
		key:        key,
		limiter:    rate.NewLimiter(rl.limit, rl.burst),
		lastAccess: now,
	}
	rl.entries[key] = rl.lru.PushFront(entry)
	return entry.limiter.AllowN(now, 1)
}

// evictOldest must be called with rl.mu held.
func (rl *RateLimiter) evictOldest() {
	elem := rl.lru.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*limiterEntry)
	rl.lru.Remove(elem)
	delete(rl.entries, entry.key)
	rl.evictions++

	rl.logger.Debug("Rate limiter LRU eviction",
		"total_evictions", rl.evictions,
		"current_entries", len(rl.entries))
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-rl.stop:
			return
		}
	}
}

// Cleanup forgets identifiers that have been idle longer than the idle timeout.
func (rl *RateLimiter) Cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for elem := rl.lru.Back(); elem != nil; {
		entry := elem.Value.(*limiterEntry)
		if now.Sub(entry.lastAccess) <= rl.idle {
			// list is ordered by recency; everything in front is newer
			break
		}
		prev := elem.Prev()
		rl.lru.Remove(elem)
		delete(rl.entries, entry.key)
		removed++
		elem = prev
	}

	if removed > 0 {
		rl.logger.Debug("Rate limiter cleanup completed",
			"removed", removed,
			"remaining", len(rl.entries))
	}
}

// Len returns the number of identifiers currently tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

// Stop stops the background cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

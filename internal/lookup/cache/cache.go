// Package cache keeps word lookups in Redis in front of the partition files.
// Concurrent misses for the same word are collapsed with singleflight and a
// circuit breaker stops calling Redis while it keeps failing; in both cases
// lookups still succeed from the partitions.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/resilience"
)

const keyPrefix = "ix:word:"

// Backend is the subset of the Redis client the cache uses.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Errors  int64  `json:"errors"`
	Total   int64  `json:"total"`
	HitRate string `json:"hit_rate"`
	Breaker string `json:"breaker"`
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	metrics *metrics.Metrics
	breaker resilience.CircuitBreakerConfig
}

// WithMetrics records hits, misses and breaker state on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(o *options) { o.breaker = cfg }
}

type Cache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	errors  atomic.Int64

	// gen[i] is bumped by every invalidation of letter i. A load only writes
	// back when the generation it started under is still current.
	genMu sync.RWMutex
	gen   [index.Letters]uint64
}

func New(backend Backend, ttl time.Duration, opts ...Option) *Cache {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Cache{
		backend: backend,
		ttl:     ttl,
		metrics: o.metrics,
		logger:  slog.Default().With("component", "lookup-cache"),
	}
	if m := o.metrics; m != nil {
		onChange := o.breaker.OnStateChange
		o.breaker.OnStateChange = func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			if onChange != nil {
				onChange(name, to)
			}
		}
		m.CircuitBreakerState.WithLabelValues("redis").Set(float64(resilience.StateClosed))
	}
	c.breaker = resilience.NewCircuitBreaker("redis", o.breaker)
	return c
}

// Key returns the Redis key for a normalized word.
func Key(word string) string {
	return keyPrefix + word
}

// Get returns the cached entry for word.
func (c *Cache) Get(ctx context.Context, word string) (index.WordEntry, bool) {
	var data string
	var found bool
	err := c.breaker.Execute(func() error {
		v, err := c.backend.Get(ctx, Key(word))
		if err != nil {
			if pkgredis.IsNilError(err) {
				return nil
			}
			return err
		}
		data, found = v, true
		return nil
	})
	if err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache get failed", "word", word, "error", err)
		c.miss()
		return index.WordEntry{}, false
	}
	if !found {
		c.miss()
		return index.WordEntry{}, false
	}
	var entry index.WordEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.logger.Error("cache unmarshal failed", "word", word, "error", err)
		c.miss()
		return index.WordEntry{}, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return entry, true
}

// Set stores entry under its word. Failures are logged only.
func (c *Cache) Set(ctx context.Context, entry index.WordEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Error("cache marshal failed", "word", entry.Word, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, Key(entry.Word), data, c.ttl)
	})
	if err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache set failed", "word", entry.Word, "error", err)
	}
}

// GetOrLoad returns the cached entry for word or calls load once, however
// many callers miss concurrently, and caches its result. The bool reports a
// cache hit. Errors from load are returned and not cached, and a result is
// not cached when word's letter was invalidated while load ran.
func (c *Cache) GetOrLoad(ctx context.Context, word string, load func() (index.WordEntry, error)) (index.WordEntry, bool, error) {
	if entry, ok := c.Get(ctx, word); ok {
		return entry, true, nil
	}
	slot, gen, tracked := c.generation(word)
	v, err, _ := c.group.Do(word+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		entry, err := load()
		if err != nil {
			return nil, err
		}
		if !tracked {
			c.Set(ctx, entry)
			return entry, nil
		}
		c.genMu.RLock()
		defer c.genMu.RUnlock()
		if c.gen[slot] != gen {
			c.logger.Debug("cache write skipped, letter invalidated during load", "word", word)
			return entry, nil
		}
		c.Set(ctx, entry)
		return entry, nil
	})
	if err != nil {
		return index.WordEntry{}, false, err
	}
	return v.(index.WordEntry), false, nil
}

func (c *Cache) generation(word string) (int, uint64, bool) {
	if word == "" {
		return 0, 0, false
	}
	slot, ok := index.LetterIndex(word[0])
	if !ok {
		return 0, 0, false
	}
	c.genMu.RLock()
	defer c.genMu.RUnlock()
	return slot, c.gen[slot], true
}

// InvalidateLetter removes every cached word starting with letter.
func (c *Cache) InvalidateLetter(ctx context.Context, letter byte) (int64, error) {
	if slot, ok := index.LetterIndex(letter); ok {
		c.genMu.Lock()
		c.gen[slot]++
		c.genMu.Unlock()
	}
	return c.flush(ctx, keyPrefix+string(letter)+"*")
}

// InvalidateAll removes every cached word.
func (c *Cache) InvalidateAll(ctx context.Context) (int64, error) {
	c.genMu.Lock()
	for i := range c.gen {
		c.gen[i]++
	}
	c.genMu.Unlock()
	return c.flush(ctx, keyPrefix+"*")
}

func (c *Cache) flush(ctx context.Context, pattern string) (int64, error) {
	deleted, err := c.backend.FlushByPattern(ctx, pattern)
	if err != nil {
		return deleted, fmt.Errorf("invalidating %s: %w", pattern, err)
	}
	c.logger.Info("cache invalidated", "pattern", pattern, "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	s := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.errors.Load(),
		Breaker: c.breaker.GetState().String(),
	}
	s.Total = s.Hits + s.Misses
	var rate float64
	if s.Total > 0 {
		rate = float64(s.Hits) / float64(s.Total) * 100
	}
	s.HitRate = fmt.Sprintf("%.1f%%", rate)
	return s
}

func (c *Cache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

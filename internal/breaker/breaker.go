// Package breaker guards scrape targets with a per-domain circuit breaker.
// Repeated failures of the same category within the trailing window open the
// circuit and put the domain on cooldown; the worker skips it until the
// cooldown key expires out of the cache.
package breaker

import (
	"encoding/json"
	"time"

	"mpatch/unitscout/logger"
	"mpatch/unitscout/services/cache"
)

// Category classifies a scrape failure for breaker accounting. Categories
// trip independently: three timeouts open the circuit, a timeout plus two
// empty results do not.
type Category string

const (
	CategoryTimeout         Category = "timeout"
	CategoryEmptyResult     Category = "empty_result"
	CategoryExtractionError Category = "extraction_error"
)

const (
	defaultWindow    = 24 * time.Hour
	defaultThreshold = 3
	defaultCooldown  = 6 * time.Hour

	failureKeyPrefix  = "breaker:failures:"
	cooldownKeyPrefix = "breaker:cooldown:"
)

// Breaker tracks failure timestamps per domain and category in the shared
// cache, so multiple workers pointed at the same memcache see each other's
// failures.
type Breaker struct {
	cache     cache.CacheService
	window    time.Duration
	threshold int
	cooldown  time.Duration
	log       *logger.Logger
	now       func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithWindow sets the trailing window failures are counted over.
func WithWindow(d time.Duration) Option {
	return func(b *Breaker) { b.window = d }
}

// WithThreshold sets how many same-category failures open the circuit.
func WithThreshold(n int) Option {
	return func(b *Breaker) { b.threshold = n }
}

// WithCooldown sets how long an opened circuit stays open.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) { b.cooldown = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New builds a Breaker over the given cache.
func New(c cache.CacheService, opts ...Option) *Breaker {
	b := &Breaker{
		cache:     c,
		window:    defaultWindow,
		threshold: defaultThreshold,
		cooldown:  defaultCooldown,
		log:       logger.ForBreaker(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether the domain may be scraped. When the circuit is open
// it also returns the category that tripped it.
func (b *Breaker) Allow(domain string) (bool, Category) {
	value, err := b.cache.Get(cooldownKeyPrefix + domain)
	if err != nil {
		return true, ""
	}
	return false, Category(value)
}

// Record notes one failure. When the category's count inside the window
// reaches the threshold, the circuit opens: a cooldown flag is written and
// the counter is cleared so the next cooldown needs a fresh run of failures.
func (b *Breaker) Record(domain string, cat Category) {
	key := failureKeyPrefix + domain + ":" + string(cat)
	now := b.now()

	var stamps []time.Time
	if raw, err := b.cache.Get(key); err == nil {
		if uerr := json.Unmarshal(raw, &stamps); uerr != nil {
			stamps = nil
		}
	}

	cutoff := now.Add(-b.window)
	recent := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	recent = append(recent, now)

	if len(recent) >= b.threshold {
		if err := b.cache.Set(cooldownKeyPrefix+domain, []byte(cat), b.cooldown); err != nil {
			b.log.Error().Err(err).Str("domain", domain).Msg("Failed to write cooldown flag")
		}
		if err := b.cache.Delete(key); err != nil {
			b.log.Debug().Err(err).Str("domain", domain).Msg("Failed to clear failure counter")
		}
		b.log.Warn().
			Str("domain", domain).
			Str("category", string(cat)).
			Int("failures", len(recent)).
			Dur("cooldown", b.cooldown).
			Msg("Circuit opened")
		return
	}

	raw, err := json.Marshal(recent)
	if err != nil {
		b.log.Error().Err(err).Str("domain", domain).Msg("Failed to encode failure timestamps")
		return
	}
	if err := b.cache.Set(key, raw, b.window); err != nil {
		b.log.Error().Err(err).Str("domain", domain).Msg("Failed to record failure")
	}
}

// Reset clears all failure state for a domain after a successful scrape.
func (b *Breaker) Reset(domain string) {
	for _, cat := range []Category{CategoryTimeout, CategoryEmptyResult, CategoryExtractionError} {
		_ = b.cache.Delete(failureKeyPrefix + domain + ":" + string(cat))
	}
	_ = b.cache.Delete(cooldownKeyPrefix + domain)
}

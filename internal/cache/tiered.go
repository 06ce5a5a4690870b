// Package cache maps aliases to target URLs through a bounded in-process LRU
// (tier 1) and an optional shared store such as Redis (tier 2).
package cache

import (
	"context"

	"github.com/darkodi/shortlink/internal/logger"
	"github.com/darkodi/shortlink/internal/lru"
	"github.com/darkodi/shortlink/internal/metrics"
)

const (
	tierLocal  = "local"
	tierShared = "shared"
)

// Shared is a network-backed key/value store.
type Shared interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Tiered is read-through and write-through over both tiers. Shared tier
// failures never fail a read: they are logged and treated as misses.
type Tiered struct {
	local  *lru.Cache[string, string]
	shared Shared
	log    *logger.Logger
}

// NewTiered builds a tiered cache. shared may be nil.
func NewTiered(capacity int, shared Shared, log *logger.Logger) *Tiered {
	if log == nil {
		log = logger.Nop()
	}
	return &Tiered{
		local:  lru.New[string, string](capacity),
		shared: shared,
		log:    log,
	}
}

func (c *Tiered) Get(ctx context.Context, key string) (string, bool) {
	if value, ok := c.local.Get(key); ok {
		metrics.RecordCacheLookup(tierLocal, true)
		return value, true
	}
	metrics.RecordCacheLookup(tierLocal, false)

	if c.shared == nil {
		return "", false
	}

	value, found, err := c.shared.Get(ctx, key)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("get").Inc()
		logger.FromContext(ctx, c.log).Warn("shared cache get failed", "key", key, "error", err)
		return "", false
	}
	metrics.RecordCacheLookup(tierShared, found)
	if !found {
		return "", false
	}

	c.local.Set(key, value)
	return value, true
}

// Set writes tier 1, then tier 2. The returned error is the tier-2 failure,
// if any; tier 1 already holds the value.
func (c *Tiered) Set(ctx context.Context, key, value string) error {
	c.local.Set(key, value)

	if c.shared == nil {
		return nil
	}
	if err := c.shared.Set(ctx, key, value); err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		return err
	}
	return nil
}

func (c *Tiered) Delete(ctx context.Context, key string) error {
	c.local.Delete(key)

	if c.shared == nil {
		return nil
	}
	if err := c.shared.Delete(ctx, key); err != nil {
		metrics.CacheErrors.WithLabelValues("delete").Inc()
		return err
	}
	return nil
}

// Local exposes tier 1, mainly for introspection in tests.
func (c *Tiered) Local() *lru.Cache[string, string] {
	return c.local
}

package cache

import (
	"context"
	"flag"
	"log/slog"

	"github.com/nobletooth/fig/pkg/persist"
)

var (
	enableCache          = flag.Bool("enable_cache", true, "When false, every lookup misses and nothing is stored.")
	cacheName            = flag.String("cache_name", DefaultName, "Name of the cache in logs, metrics and the default slot name.")
	cacheTTL             = flag.Duration("cache_ttl", DefaultTTL, "Default lifetime of cache entries.")
	cacheMaxSize         = flag.Int("cache_max_size", DefaultMaxSize, "Maximum number of cache entries.")
	cacheCleanupInterval = flag.Duration("cache_cleanup_interval", DefaultCleanupInterval, "Period of the stale entries sweep; 0 disables it.")
	cacheCleanupSchedule = flag.String("cache_cleanup_schedule", "", "Cron schedule of the stale entries sweep, e.g. '@every 30s'; wins over cache_cleanup_interval.")
	cacheCoalesce        = flag.Bool("cache_coalesce", false, "Share one producer call between concurrent misses of the same key.")
	cachePersistent      = flag.Bool("cache_persistent", false, "Mirror the cache into a durable slot, see persist_backend.")
	cacheSlotName        = flag.String("cache_slot_name", "", "Durable slot name; defaults to 'fig:<cache_name>'.")
)

// OptionsFromFlags returns the store options set by the cache flags.
func OptionsFromFlags(slots persist.SlotStore) Options {
	cleanupInterval := *cacheCleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = -1 // Disabled, as opposed to the zero value meaning default.
	}
	return Options{
		Name:            *cacheName,
		TTL:             *cacheTTL,
		MaxSize:         *cacheMaxSize,
		Persistent:      *cachePersistent,
		Slots:           slots,
		SlotName:        *cacheSlotName,
		PersistTimeout:  persist.Timeout(),
		CleanupInterval: cleanupInterval,
		CleanupSchedule: *cacheCleanupSchedule,
		Coalesce:        *cacheCoalesce,
	}
}

// NewFromFlags returns a store configured by flags, or a NoOp layer when --enable_cache is false.
func NewFromFlags[V any](ctx context.Context, slots persist.SlotStore) (Layer[V], error) {
	if !*enableCache {
		slog.Info("Cache is disabled.")
		return NewNoOp[V](), nil
	}
	store, err := New[V](ctx, OptionsFromFlags(slots))
	if err != nil {
		return nil, err
	}
	slog.Info("Cache store created.", "cache", store.Name(), "ttl", *cacheTTL, "maxSize", store.maxSize,
		"persistent", *cachePersistent)
	return store, nil
}

// Store is an in-process cache of values addressed by string keys. Every entry lives for a TTL, the store holds at
// most MaxSize entries and evicts the oldest inserted one (FIFO) to make room for a new key. A persistent store
// mirrors its whole content into one durable slot after each mutation and reloads it on construction, so a restarted
// process starts warm.
//
// All operations are atomic with respect to each other; a single mutex guards the entries and the slot writes, so
// slot content always follows the mutation order.

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/nobletooth/fig/pkg/persist"
	"github.com/nobletooth/fig/pkg/scan"
	"github.com/nobletooth/fig/pkg/utils"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultName            = "default"
	DefaultTTL             = 5 * time.Minute
	DefaultMaxSize         = 100
	DefaultCleanupInterval = time.Minute
	DefaultPersistTimeout  = 5 * time.Second
	// SlotPrefix prefixes the slot name of a store when Options.SlotName is not given.
	SlotPrefix = "fig:"
)

var ErrNoSlotStore = errors.New("persistent cache needs a slot store")

// Options configures a Store. The zero value is a valid in-memory store with default settings.
type Options struct {
	Name    string        // Used in logs, metric labels and the default slot name.
	TTL     time.Duration // Default entry lifetime; zero or negative means DefaultTTL.
	MaxSize int           // Zero means DefaultMaxSize.
	// Persistent mirrors the store into the slot `SlotName` of `Slots`.
	Persistent     bool
	Slots          persist.SlotStore
	SlotName       string
	PersistTimeout time.Duration // Deadline of a single slot operation.
	// CleanupInterval is the period of the background sweep. Zero means DefaultCleanupInterval and a negative value
	// disables the sweep; stale entries are then only dropped when read.
	CleanupInterval time.Duration
	// CleanupSchedule is a cron expression (e.g. "*/5 * * * *" or "@every 30s") and wins over CleanupInterval.
	CleanupSchedule string
	// Coalesce makes concurrent GetOrSet misses on the same key share a single producer call. The shared call gets the
	// ctx of the caller that started it, so if that caller is cancelled every waiter on the key receives its error.
	Coalesce bool
	Clock    func() time.Time // Defaults to time.Now.
}

// Store implements Layer.
type Store[V any] struct {
	name       string
	defaultTTL time.Duration
	maxSize    int
	now        func() time.Time
	metrics    *storeMetrics

	mux     sync.Mutex
	entries *fifoIndex[V]

	snapshots      *persist.Adapter[V] // Nil for in-memory stores.
	persistTimeout time.Duration

	flights     *singleflight.Group // Nil unless coalescing.
	producedMux sync.Mutex
	produced    *bloom.BloomFilter // Keys handed to a producer so far.

	reaper    scheduler // Nil when the sweep is disabled.
	closeOnce sync.Once
}

var _ Layer[int] = (*Store[int])(nil)

// New creates a store and, for persistent stores, loads the previous snapshot. The background sweep stops when `ctx`
// is cancelled or the store is closed.
func New[V any](ctx context.Context, opts Options) (*Store[V], error) {
	if opts.Persistent && opts.Slots == nil {
		return nil, ErrNoSlotStore
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxSize < 0 {
		utils.RaiseInvariant("cache", "negative_max_size",
			"Invalid max size has been given to cache store.", "cache", opts.Name, "maxSize", opts.MaxSize)
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.CleanupInterval == 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = DefaultPersistTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	var reaper scheduler
	if opts.CleanupSchedule != "" {
		cronReaper, err := newCronScheduler(opts.CleanupSchedule)
		if err != nil {
			return nil, err
		}
		reaper = cronReaper
	} else if opts.CleanupInterval > 0 {
		reaper = newTickerScheduler(opts.CleanupInterval)
	}

	store := &Store[V]{
		name:           opts.Name,
		defaultTTL:     opts.TTL,
		maxSize:        opts.MaxSize,
		now:            opts.Clock,
		metrics:        newStoreMetrics(opts.Name),
		entries:        newFifoIndex[V](),
		persistTimeout: opts.PersistTimeout,
		produced:       bloom.NewWithEstimates(uint(max(opts.MaxSize*10, 1024)), 0.01),
		reaper:         reaper,
	}
	if opts.Coalesce {
		store.flights = new(singleflight.Group)
	}
	if opts.Persistent {
		slotName := opts.SlotName
		if slotName == "" {
			slotName = SlotPrefix + opts.Name
		}
		store.snapshots = persist.NewAdapter[V](opts.Slots, slotName)
		store.load(ctx)
	}
	if store.reaper != nil {
		store.reaper.start(ctx, func() { store.Sweep() })
	}
	return store, nil
}

// Name returns the store name.
func (s *Store[V]) Name() string { return s.name }

// resolveTTL returns the first positive value of `ttl`, or the store's default.
func (s *Store[V]) resolveTTL(ttl []time.Duration) time.Duration {
	if len(ttl) > 0 && ttl[0] > 0 {
		return ttl[0]
	}
	return s.defaultTTL
}

// Set inserts or replaces the value of `key`. An optional positive `ttl` overrides the default TTL; a zero or negative
// `ttl` is treated as omitted and the default TTL applies.
// A replaced key is re-inserted as the newest entry. When a new key would exceed MaxSize, the oldest entry is evicted.
func (s *Store[V]) Set(key string, value V, ttl ...time.Duration) {
	entry := Entry[V]{Key: key, Value: value, CreatedAt: s.now(), TTL: s.resolveTTL(ttl)}

	s.mux.Lock()
	defer s.mux.Unlock()
	s.insertLocked(entry)
	s.saveLocked()
}

// insertLocked adds `entry` as the newest one, evicting the oldest entries if needed.
func (s *Store[V]) insertLocked(entry Entry[V]) {
	if _, replacing := s.entries.Get(entry.Key); !replacing {
		for s.entries.Len() >= s.maxSize {
			oldest, found := s.entries.Oldest()
			if !found {
				utils.RaiseInvariant("cache", "full_without_oldest",
					"Cache is full but has no oldest entry.", "cache", s.name, "len", s.entries.Len())
				break
			}
			s.entries.Remove(oldest.Key)
			s.metrics.evicted(evictCapacity, 1)
		}
	}
	s.entries.PushBack(entry)
	s.metrics.entries.Set(float64(s.entries.Len()))
}

// Get returns the value of `key` if it's present and fresh. A stale entry is removed on the way.
func (s *Store[V]) Get(key string) (V, bool /*found*/) {
	s.mux.Lock()
	defer s.mux.Unlock()

	entry, found := s.entries.Get(key)
	if !found {
		s.metrics.lookup(lookupMiss)
		var zero V
		return zero, false
	}
	if !entry.IsFresh(s.now()) {
		s.metrics.lookup(lookupStale)
		s.removeLocked(evictExpired, key)
		s.saveLocked()
		var zero V
		return zero, false
	}
	s.metrics.lookup(lookupHit)
	return entry.Value, true
}

// peek is Get without side effects: stale entries stay and no lookup is counted.
func (s *Store[V]) peek(key string) (V, bool /*found*/) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if entry, found := s.entries.Get(key); found && entry.IsFresh(s.now()) {
		return entry.Value, true
	}
	var zero V
	return zero, false
}

// Has reports whether `key` holds a fresh value. Like Get, it drops a stale entry.
func (s *Store[V]) Has(key string) bool {
	_, found := s.Get(key)
	return found
}

// Delete removes `key` and returns whether it was present, fresh or stale.
func (s *Store[V]) Delete(key string) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	if !s.removeLocked(evictDeleted, key) {
		return false
	}
	s.saveLocked()
	return true
}

func (s *Store[V]) removeLocked(reason, key string) bool /*removed*/ {
	if _, removed := s.entries.Remove(key); !removed {
		return false
	}
	s.metrics.evicted(reason, 1)
	s.metrics.entries.Set(float64(s.entries.Len()))
	return true
}

// Clear removes every entry and forgets which keys were produced. A persistent store also removes its durable slot.
func (s *Store[V]) Clear() {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.metrics.evicted(evictCleared, s.entries.Len())
	s.entries.Reset()
	s.metrics.entries.Set(0)
	s.producedMux.Lock()
	s.produced.ClearAll()
	s.producedMux.Unlock()
	if s.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()
	if err := s.snapshots.Remove(ctx); err != nil {
		s.persistFailed(persistRemove, err)
	}
}

// InvalidatePattern deletes every key matching the regular expression `pattern` and returns how many were deleted.
// The pattern isn't anchored implicitly. An invalid pattern deletes nothing and returns the compile error.
func (s *Store[V]) InvalidatePattern(pattern string) (int, error) {
	matcher, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("invalid invalidation pattern %q: %w", pattern, err)
	}
	return s.invalidate(matcher.MatchString), nil
}

// InvalidateGlob is like InvalidatePattern for Redis style glob patterns, e.g. `clients:*`.
func (s *Store[V]) InvalidateGlob(pattern string) (int, error) {
	matcher, err := scan.CompileGlob(pattern)
	if err != nil {
		return 0, err
	}
	return s.invalidate(matcher), nil
}

// invalidate deletes the keys accepted by `match` and persists once for the whole batch.
func (s *Store[V]) invalidate(match func(key string) bool) int {
	s.mux.Lock()
	defer s.mux.Unlock()
	removed := s.entries.RemoveFunc(func(entry Entry[V]) bool { return match(entry.Key) })
	if len(removed) == 0 {
		return 0
	}
	s.metrics.evicted(evictInvalidated, len(removed))
	s.metrics.entries.Set(float64(s.entries.Len()))
	s.saveLocked()
	return len(removed)
}

// Sweep removes every stale entry and returns how many were removed.
func (s *Store[V]) Sweep() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.sweepLocked()
}

func (s *Store[V]) sweepLocked() int {
	now := s.now()
	removed := s.entries.RemoveFunc(func(entry Entry[V]) bool { return !entry.IsFresh(now) })
	if len(removed) == 0 {
		return 0
	}
	s.metrics.evicted(evictExpired, len(removed))
	s.metrics.entries.Set(float64(s.entries.Len()))
	slog.Debug("Swept stale cache entries.", "cache", s.name, "removed", len(removed))
	s.saveLocked()
	return len(removed)
}

// Stats returns the current occupancy. Stale entries that weren't swept yet are included.
func (s *Store[V]) Stats() Stats {
	s.mux.Lock()
	defer s.mux.Unlock()
	return Stats{Size: s.entries.Len(), MaxSize: s.maxSize, Keys: s.entries.Keys()}
}

// Keys returns the keys from the oldest to the newest entry.
func (s *Store[V]) Keys() []string {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.entries.Keys()
}

// Len returns the number of entries, fresh or stale.
func (s *Store[V]) Len() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.entries.Len()
}

// Close stops the background sweep. The store keeps working in memory afterward.
func (s *Store[V]) Close() error {
	s.closeOnce.Do(func() {
		if s.reaper != nil {
			s.reaper.stop()
		}
	})
	return nil
}

// load installs the fresh records of the slot. Records are kept in snapshot order, so when the snapshot holds more
// than MaxSize entries the newest ones survive.
func (s *Store[V]) load(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()
	records, err := s.snapshots.Load(ctx)
	if err != nil {
		s.persistFailed(persistLoad, err)
		return
	}

	s.mux.Lock()
	defer s.mux.Unlock()
	now := s.now()
	dropped := 0
	for _, record := range records {
		entry := Entry[V](record)
		if !entry.IsFresh(now) {
			dropped++
			continue
		}
		if _, duplicate := s.entries.Get(entry.Key); duplicate {
			dropped++
		} else if s.entries.Len() >= s.maxSize {
			dropped++
		}
		s.insertLocked(entry)
	}
	slog.Info("Loaded cache snapshot.", "cache", s.name, "slot", s.snapshots.Name(),
		"entries", s.entries.Len(), "dropped", dropped)
	if dropped > 0 { // Make the slot mirror memory again.
		s.saveLocked()
	}
}

// saveLocked writes the whole store into its slot. Failures are logged and counted, the next mutation retries.
func (s *Store[V]) saveLocked() {
	if s.snapshots == nil {
		return
	}
	records := make([]persist.Record[V], 0, s.entries.Len())
	for entry := range s.entries.All() {
		records = append(records, persist.Record[V](entry))
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()
	if err := s.snapshots.Save(ctx, records); err != nil {
		s.persistFailed(persistSave, err)
	}
}

func (s *Store[V]) persistFailed(op string, err error) {
	s.metrics.persistFailed(op)
	slog.Warn("Failed to sync cache with its durable slot, continuing in memory.",
		"cache", s.name, "slot", s.snapshots.Name(), "op", op, "error", err)
}

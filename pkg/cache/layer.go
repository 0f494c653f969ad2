// Callers depend on Layer rather than on Store so a disabled cache (see --enable_cache) can be swapped in without
// touching them.

package cache

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/nobletooth/fig/pkg/scan"
)

// Layer is the caching surface shared by Store and NoOp.
type Layer[V any] interface {
	// Get returns the fresh value of `key` and whether it was found.
	Get(key string) (V, bool)
	Has(key string) bool
	// Set stores `value` under `key` for the optional `ttl`, defaulting to the layer's TTL.
	Set(key string, value V, ttl ...time.Duration)
	Delete(key string) bool // Returns whether the key was present.
	Clear()
	GetOrSet(ctx context.Context, key string, producer Producer[V], ttl ...time.Duration) (V, error)
	InvalidatePattern(pattern string) (int, error)
	InvalidateGlob(pattern string) (int, error)
	Stats() Stats
	Close() error
}

// NoOp is a cache layer that doesn't store any items.
// It is used when cache is disabled.
type NoOp[V any] struct { // Implements Layer.
}

var _ Layer[int] = (*NoOp[int])(nil)

// NewNoOp returns a no-operation cache layer that does not store any items.
func NewNoOp[V any]() *NoOp[V] {
	return &NoOp[V]{}
}

// Get always returns false, indicating the key is not found.
func (n *NoOp[V]) Get(string) (V, bool) {
	var zero V
	return zero, false
}

func (n *NoOp[V]) Has(string) bool { return false }

// Set drops the value.
func (n *NoOp[V]) Set(string, V, ...time.Duration) {}

func (n *NoOp[V]) Delete(string) bool { return false }

func (n *NoOp[V]) Clear() {}

// GetOrSet always calls the producer.
func (n *NoOp[V]) GetOrSet(ctx context.Context, _ string, producer Producer[V], _ ...time.Duration) (V, error) {
	return producer(ctx)
}

// InvalidatePattern only validates the pattern, as there are no keys to invalidate.
func (n *NoOp[V]) InvalidatePattern(pattern string) (int, error) {
	if _, err := regexp.Compile(pattern); err != nil {
		return 0, fmt.Errorf("invalid invalidation pattern %q: %w", pattern, err)
	}
	return 0, nil
}

func (n *NoOp[V]) InvalidateGlob(pattern string) (int, error) {
	if _, err := scan.CompileGlob(pattern); err != nil {
		return 0, err
	}
	return 0, nil
}

func (n *NoOp[V]) Stats() Stats { return Stats{} }

func (n *NoOp[V]) Close() error { return nil }

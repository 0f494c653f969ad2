// Memoized fetch: look a key up and, on a miss, call a producer and cache its result. The producer typically wraps a
// remote call; its errors are returned to the caller untouched and are never cached.

package cache

import (
	"context"
	"time"
)

// Producer computes the value of a missing key.
type Producer[V any] func(ctx context.Context) (V, error)

// GetOrSet returns the fresh value of `key`, or calls `producer` and caches its result for `ttl` (optional, a zero or
// negative value means the default TTL). Without Options.Coalesce, concurrent misses on the same key call the producer
// concurrently and the last Set wins. With it, waiters share the result and error of the first caller's producer call,
// including the cancellation of that caller's ctx.
func (s *Store[V]) GetOrSet(ctx context.Context, key string, producer Producer[V], ttl ...time.Duration) (V, error) {
	if value, found := s.Get(key); found {
		return value, nil
	}
	if s.flights == nil {
		return s.produce(ctx, key, producer, ttl)
	}
	result, err, _ := s.flights.Do(key, func() (any, error) {
		// A flight that landed between the miss above and this one already filled the key.
		if value, found := s.peek(key); found {
			return value, nil
		}
		return s.produce(ctx, key, producer, ttl)
	})
	if err != nil {
		var zero V
		return zero, err
	}
	value, _ := result.(V) // A nil interface value fails the assertion, zero is right then.
	return value, nil
}

func (s *Store[V]) produce(ctx context.Context, key string, producer Producer[V], ttl []time.Duration) (V, error) {
	s.producedMux.Lock()
	seenBefore := s.produced.TestOrAddString(key)
	s.producedMux.Unlock()
	if seenBefore {
		s.metrics.produced(produceRefetch)
	} else {
		s.metrics.produced(produceCold)
	}

	value, err := producer(ctx)
	if err != nil {
		s.metrics.producerFailed()
		var zero V
		return zero, err
	}
	s.Set(key, value, ttl...)
	return value, nil
}

// WithCache wraps `fn` so its results are cached in `layer` under `keyFn(arg)`.
//
//	getClient := cache.WithCache(store, api.GetClient, func(id int) string { return clients.Entity(id) })
func WithCache[A any, V any](
	layer Layer[V], fn func(context.Context, A) (V, error), keyFn func(A) string, ttl ...time.Duration,
) func(context.Context, A) (V, error) {
	return func(ctx context.Context, arg A) (V, error) {
		return layer.GetOrSet(ctx, keyFn(arg), func(ctx context.Context) (V, error) {
			return fn(ctx, arg)
		}, ttl...)
	}
}

// WithCache2 is WithCache for functions of two arguments.
func WithCache2[A any, B any, V any](
	layer Layer[V], fn func(context.Context, A, B) (V, error), keyFn func(A, B) string, ttl ...time.Duration,
) func(context.Context, A, B) (V, error) {
	return func(ctx context.Context, first A, second B) (V, error) {
		return layer.GetOrSet(ctx, keyFn(first, second), func(ctx context.Context) (V, error) {
			return fn(ctx, first, second)
		}, ttl...)
	}
}

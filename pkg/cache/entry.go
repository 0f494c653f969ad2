package cache

import "time"

// Entry is a cached value together with its lifetime.
type Entry[V any] struct {
	Key       string
	Value     V
	CreatedAt time.Time
	TTL       time.Duration
}

// IsFresh returns whether the entry may still be served at `now`. An entry is fresh up to and including
// CreatedAt + TTL.
func (e Entry[V]) IsFresh(now time.Time) bool {
	return now.Sub(e.CreatedAt) <= e.TTL
}

// ExpiresAt returns the last instant the entry is fresh.
func (e Entry[V]) ExpiresAt() time.Time {
	return e.CreatedAt.Add(e.TTL)
}

// Stats is a snapshot of a store's occupancy.
type Stats struct {
	Size    int
	MaxSize int
	Keys    []string // In insertion order, oldest first.
}

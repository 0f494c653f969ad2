package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCorruptSnapshot is returned when a slot holds something other than a snapshot.
var ErrCorruptSnapshot = errors.New("corrupt cache snapshot")

// Record is a single cache entry as stored in a snapshot.
type Record[V any] struct {
	Key       string
	Value     V
	CreatedAt time.Time
	TTL       time.Duration
}

// wireEntry is the JSON form of a Record. Times and durations are whole milliseconds; the TTL is rounded up.
type wireEntry[V any] struct {
	Key       string `json:"key"`
	Value     V      `json:"value"`
	CreatedAt int64  `json:"createdAt"`
	TTL       int64  `json:"ttl"`
}

// wireTTL returns the TTL in milliseconds counted from the truncated `createdAt`, rounded up so a decoded record
// never expires before the original one.
func wireTTL[V any](record Record[V], createdAt int64) int64 {
	expiresAt := record.CreatedAt.Add(record.TTL)
	ttl := expiresAt.Sub(time.UnixMilli(createdAt))
	return int64((ttl + time.Millisecond - 1) / time.Millisecond)
}

// EncodeSnapshot serializes `records` as a JSON array of `[key, entry]` pairs, keeping their order.
func EncodeSnapshot[V any](records []Record[V]) ([]byte, error) {
	pairs := make([][2]any, 0, len(records))
	for _, record := range records {
		createdAt := record.CreatedAt.UnixMilli()
		pairs = append(pairs, [2]any{record.Key, wireEntry[V]{
			Key:       record.Key,
			Value:     record.Value,
			CreatedAt: createdAt,
			TTL:       wireTTL(record, createdAt),
		}})
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot is the inverse of EncodeSnapshot.
func DecodeSnapshot[V any](data []byte) ([]Record[V], error) {
	var pairs [][2]json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	records := make([]Record[V], 0, len(pairs))
	for i, pair := range pairs {
		var key string
		if err := json.Unmarshal(pair[0], &key); err != nil {
			return nil, fmt.Errorf("%w: pair %d has a bad key: %w", ErrCorruptSnapshot, i, err)
		}
		var entry wireEntry[V]
		if err := json.Unmarshal(pair[1], &entry); err != nil {
			return nil, fmt.Errorf("%w: pair %d has a bad entry: %w", ErrCorruptSnapshot, i, err)
		}
		records = append(records, Record[V]{
			Key:       key, // The pair key wins over entry.Key.
			Value:     entry.Value,
			CreatedAt: time.UnixMilli(entry.CreatedAt),
			TTL:       time.Duration(entry.TTL) * time.Millisecond,
		})
	}
	return records, nil
}

// Adapter saves and loads snapshots of one cache to a slot.
type Adapter[V any] struct {
	slots SlotStore
	name  string
}

func NewAdapter[V any](slots SlotStore, name string) *Adapter[V] {
	return &Adapter[V]{slots: slots, name: name}
}

// Name returns the slot name.
func (a *Adapter[V]) Name() string { return a.name }

// Save overwrites the slot with `records`.
func (a *Adapter[V]) Save(ctx context.Context, records []Record[V]) error {
	data, err := EncodeSnapshot(records)
	if err != nil {
		return err
	}
	return a.slots.SetSlot(ctx, a.name, data)
}

// Load returns the records of the slot; a missing slot yields no records.
func (a *Adapter[V]) Load(ctx context.Context) ([]Record[V], error) {
	data, found, err := a.slots.GetSlot(ctx, a.name)
	if err != nil {
		return nil, err
	}
	if !found || len(data) == 0 {
		return nil, nil
	}
	return DecodeSnapshot[V](data)
}

// Remove deletes the slot.
func (a *Adapter[V]) Remove(ctx context.Context) error {
	return a.slots.RemoveSlot(ctx, a.name)
}

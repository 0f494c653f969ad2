// A persistent cache mirrors its whole content into a single durable "slot" after every mutation, and reloads it
// when the cache is constructed. A slot is an opaque byte blob stored under a name; the media implementing
// SlotStore (memory, local files, SQL tables, S3 objects) know nothing about the cache entries inside it.

package persist

import (
	"context"
	"errors"
)

//go:generate mockgen -source=slot.go -destination=mock_slot_store.go -package=persist

// SlotStore is a durable medium keeping named blobs.
type SlotStore interface {
	// GetSlot returns the content of the slot `name`; the boolean is false when the slot was never written or
	// has been removed.
	GetSlot(ctx context.Context, name string) ([]byte, bool, error)
	// SetSlot overwrites the slot `name` with `data`.
	SetSlot(ctx context.Context, name string, data []byte) error
	// RemoveSlot deletes the slot `name`. Removing a missing slot is not an error.
	RemoveSlot(ctx context.Context, name string) error
}

var ErrEmptySlotName = errors.New("slot name can't be empty")

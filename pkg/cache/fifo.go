// Entries of a store are evicted in insertion order (FIFO). This module keeps the entries in a map for lookups and in
// a doubly linked list for ordering, so Set / Delete / evicting the oldest entry are all O(1).

package cache

import (
	"iter"

	"github.com/nobletooth/fig/pkg/utils"
)

// fifoNode is a node of the insertion order list.
type fifoNode[V any] struct {
	next  *fifoNode[V]
	prev  *fifoNode[V]
	entry Entry[V]
}

// fifoIndex keeps entries by key in insertion order. It isn't thread-safe; Store guards it.
type fifoIndex[V any] struct {
	head  *fifoNode[V] // Oldest entry.
	tail  *fifoNode[V] // Newest entry.
	nodes map[string]*fifoNode[V]
}

func newFifoIndex[V any]() *fifoIndex[V] {
	return &fifoIndex[V]{nodes: make(map[string]*fifoNode[V])}
}

// Len returns the number of entries.
func (f *fifoIndex[V]) Len() int {
	return len(f.nodes)
}

func (f *fifoIndex[V]) Get(key string) (Entry[V], bool /*found*/) {
	node, found := f.nodes[key]
	if !found {
		return Entry[V]{}, false
	}
	return node.entry, true
}

// Oldest returns the first inserted entry.
func (f *fifoIndex[V]) Oldest() (Entry[V], bool /*found*/) {
	if f.head == nil {
		return Entry[V]{}, false
	}
	return f.head.entry, true
}

// PushBack appends `entry` as the newest one. An existing entry with the same key is dropped first.
func (f *fifoIndex[V]) PushBack(entry Entry[V]) {
	f.Remove(entry.Key)
	node := &fifoNode[V]{entry: entry, prev: f.tail}
	if f.tail != nil {
		f.tail.next = node
	} else { // List was empty.
		f.head = node
	}
	f.tail = node
	f.nodes[entry.Key] = node
}

// Remove unlinks the entry of `key`, if any.
func (f *fifoIndex[V]) Remove(key string) (Entry[V], bool /*removed*/) {
	node, found := f.nodes[key]
	if !found {
		return Entry[V]{}, false
	}
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		if f.head != node {
			utils.RaiseInvariant("fifo", "orphan_head", "Node without a predecessor isn't the list head.", "key", key)
		}
		f.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		f.tail = node.prev
	}
	node.next = nil
	node.prev = nil
	delete(f.nodes, key)
	return node.entry, true
}

// RemoveFunc removes every entry for which `shouldRemove` returns true and returns the removed entries in order.
func (f *fifoIndex[V]) RemoveFunc(shouldRemove func(Entry[V]) bool) []Entry[V] {
	var removed []Entry[V]
	for node := f.head; node != nil; {
		next := node.next // Remove clears the links.
		if shouldRemove(node.entry) {
			entry, _ := f.Remove(node.entry.Key)
			removed = append(removed, entry)
		}
		node = next
	}
	return removed
}

// All iterates entries from the oldest to the newest. The index must not be mutated while iterating.
func (f *fifoIndex[V]) All() iter.Seq[Entry[V]] {
	return func(yield func(Entry[V]) bool) {
		for node := f.head; node != nil; node = node.next {
			if !yield(node.entry) {
				return
			}
		}
	}
}

// Keys returns the keys from the oldest to the newest.
func (f *fifoIndex[V]) Keys() []string {
	keys := make([]string, 0, len(f.nodes))
	for entry := range f.All() {
		keys = append(keys, entry.Key)
	}
	return keys
}

// Reset drops every entry.
func (f *fifoIndex[V]) Reset() {
	f.head = nil
	f.tail = nil
	clear(f.nodes)
}

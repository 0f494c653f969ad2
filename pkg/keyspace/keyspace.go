// Cached values are addressed by string keys. Building those keys by hand ("clients" + id, ...) invites accidental
// collisions between unrelated values, e.g. a list query and a single entity lookup sharing a prefix.
// This module derives keys from a domain name plus an arbitrary filter object, where structurally equal filters
// always map to the same key regardless of how they were built (map insertion order, struct vs map, ...).

package keyspace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/cespare/xxhash/v2"
	"github.com/nobletooth/fig/pkg/utils"
)

// Separator joins the parts of a key.
const Separator = ":"

// canonicalJSON returns the canonical JSON form of `v`: object keys sorted, numbers kept verbatim.
// Round-tripping through a generic value makes a struct and a map with the same json fields identical.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal filters: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber() // Avoid float64 rounding of large integers.
	var generic any
	if err := decoder.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to decode filters: %w", err)
	}
	// encoding/json sorts map keys, which makes the output stable.
	return json.Marshal(generic)
}

// Stringify returns the stable string form of `filters`.
// Filters must be JSON serializable; anything else is a programming error.
func Stringify(filters any) string {
	canonical, err := canonicalJSON(filters)
	if err != nil {
		utils.RaiseInvariant("keyspace", "unserializable_filters", "Got filters that can't be serialized.",
			"type", fmt.Sprintf("%T", filters), "error", err)
		return fmt.Sprintf("%#v", filters)
	}
	return string(canonical)
}

// Build returns `domain` when there are no filters, and `domain:<canonical filters>` otherwise.
func Build(domain string, filters any) string {
	if filters == nil {
		return domain
	}
	return domain + Separator + Stringify(filters)
}

// Digest is like Build but replaces the filters with their 64-bit xxhash. It keeps keys short for large filter
// objects at the cost of readability.
func Digest(domain string, filters any) string {
	if filters == nil {
		return domain
	}
	return fmt.Sprintf("%s%s%016x", domain, Separator, xxhash.Sum64String(Stringify(filters)))
}

// Namespace groups the keys of one domain, e.g. Namespace("clients").
type Namespace string

// Key returns the domain key for the given filters.
func (n Namespace) Key(filters any) string {
	return Build(string(n), filters)
}

// List returns the key of a list query, e.g. `clients:list:{"active":true}`.
func (n Namespace) List(filters any) string {
	return Build(string(n)+Separator+"list", filters)
}

// Entity returns the key of a single entity lookup, e.g. `clients:id:42`.
func (n Namespace) Entity(id any) string {
	return string(n) + Separator + "id" + Separator + fmt.Sprint(id)
}

// Pattern returns an anchored regular expression matching every key of the namespace and nothing from other
// namespaces sharing its prefix ("client" doesn't match "clients:...").
func (n Namespace) Pattern() string {
	return domainPattern(string(n))
}

// ListPattern matches only the list query keys of the namespace.
func (n Namespace) ListPattern() string {
	return domainPattern(string(n) + Separator + "list")
}

func domainPattern(domain string) string {
	return "^" + regexp.QuoteMeta(domain) + "(" + Separator + "|$)"
}

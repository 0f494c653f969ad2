// Keys can be selected with Redis style glob patterns (`clients:*`, `user:?`, `[ab]*`), e.g. by the admin port's KEYS
// command or by glob invalidation. The following module implements glob matching over key streams.

package scan

import (
	"fmt"
	"iter"
	"strings"

	"v.io/v23/glob"
)

// slashStandIn takes the place of '/' in patterns and keys. v.io globs are path globs split on '/', while in Redis
// globs '/' is an ordinary character that `*` and `?` may match. Keys holding a NUL byte are thus ambiguous with '/'.
const slashStandIn = "\x00"

// CompileGlob parses `pattern` into a key matcher.
func CompileGlob(pattern string) (func(key string) bool, error) {
	parsedPattern, err := glob.Parse(strings.ReplaceAll(pattern, "/", slashStandIn))
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	if parsedPattern.Len() != 1 {
		return nil, fmt.Errorf("invalid glob pattern %q: expected a single element, got %d", pattern, parsedPattern.Len())
	}
	head := parsedPattern.Head()
	return func(key string) bool {
		return head.Match(strings.ReplaceAll(key, "/", slashStandIn))
	}, nil
}

// MatchGlob filters the `keys` stream with the given glob `pattern`. An invalid pattern matches nothing.
func MatchGlob(pattern string, keys iter.Seq[string]) iter.Seq[string] {
	match, err := CompileGlob(pattern)
	if err != nil {
		return func(yield func(string) bool) {}
	}
	return func(yield func(string) bool) {
		for key := range keys {
			if match(key) {
				if !yield(key) {
					return
				}
			}
		}
	}
}

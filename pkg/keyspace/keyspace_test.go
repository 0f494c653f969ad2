package keyspace

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clientFilter struct {
	Active bool     `json:"active"`
	Page   int      `json:"page"`
	Tags   []string `json:"tags,omitempty"`
}

func TestBuild(t *testing.T) {
	for _, testCase := range []struct {
		name     string
		domain   string
		filters  any
		expected string
	}{
		{
			name:     "no_filters",
			domain:   "clients",
			filters:  nil,
			expected: "clients",
		},
		{
			name:     "sorted_map_keys",
			domain:   "clients",
			filters:  map[string]any{"page": 2, "active": true},
			expected: `clients:{"active":true,"page":2}`,
		},
		{
			name:     "struct_filters",
			domain:   "clients",
			filters:  clientFilter{Active: true, Page: 2},
			expected: `clients:{"active":true,"page":2}`,
		},
		{
			name:     "nested_filters",
			domain:   "appointments",
			filters:  map[string]any{"range": map[string]any{"to": "b", "from": "a"}, "limit": 10},
			expected: `appointments:{"limit":10,"range":{"from":"a","to":"b"}}`,
		},
		{
			name:     "scalar_filter",
			domain:   "vehicles",
			filters:  "abc",
			expected: `vehicles:"abc"`,
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expected, Build(testCase.domain, testCase.filters))
		})
	}
}

func TestBuild_StructurallyEqualFilters(t *testing.T) {
	first := map[string]any{}
	first["a"] = 1
	first["b"] = []any{"x", "y"}
	first["c"] = map[string]any{"z": true, "y": false}
	second := map[string]any{}
	second["c"] = map[string]any{"y": false, "z": true}
	second["b"] = []any{"x", "y"}
	second["a"] = 1
	assert.Equal(t, Build("d", first), Build("d", second))
	assert.Equal(t, Digest("d", first), Digest("d", second))
}

func TestBuild_DifferentFilters(t *testing.T) {
	keys := map[string]struct{}{}
	for _, filters := range []any{
		nil,
		map[string]any{},
		map[string]any{"page": 1},
		map[string]any{"page": 2},
		map[string]any{"page": "2"},
		clientFilter{Page: 2, Tags: []string{"vip"}},
		[]any{1, 2},
		[]any{2, 1},
	} {
		key := Build("clients", filters)
		assert.NotContains(t, keys, key)
		keys[key] = struct{}{}
	}
}

func TestBuild_LargeIntegersArePreserved(t *testing.T) {
	// Both values collapse to the same float64.
	assert.NotEqual(t,
		Build("d", map[string]any{"id": int64(9007199254740993)}),
		Build("d", map[string]any{"id": int64(9007199254740992)}))
}

func TestDigest(t *testing.T) {
	key := Digest("clients", map[string]any{"page": 2})
	assert.Regexp(t, `^clients:[0-9a-f]{16}$`, key)
	assert.NotEqual(t, key, Digest("clients", map[string]any{"page": 3}))
	assert.Equal(t, "clients", Digest("clients", nil))
}

func TestNamespace(t *testing.T) {
	clients := Namespace("clients")
	assert.Equal(t, `clients:list:{"page":1}`, clients.List(map[string]any{"page": 1}))
	assert.Equal(t, "clients:list", clients.List(nil))
	assert.Equal(t, "clients:id:42", clients.Entity(42))
	assert.NotEqual(t, clients.List(nil), clients.Entity("list"))

	pattern, err := regexp.Compile(clients.Pattern())
	require.NoError(t, err)
	assert.True(t, pattern.MatchString(clients.List(nil)))
	assert.True(t, pattern.MatchString(clients.Entity(7)))
	assert.True(t, pattern.MatchString("clients"))
	assert.False(t, pattern.MatchString(Namespace("clientsArchive").Entity(7)))
	assert.False(t, pattern.MatchString("old:clients:id:7"))

	listPattern, err := regexp.Compile(clients.ListPattern())
	require.NoError(t, err)
	assert.True(t, listPattern.MatchString(clients.List(map[string]any{"page": 1})))
	assert.False(t, listPattern.MatchString(clients.Entity(7)))
}

package persist

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nobletooth/fig/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	for _, testCase := range []struct {
		name        string
		backend     string
		params      map[string]any
		expectedErr string
	}{
		{name: "memory", backend: BackendMemory},
		{name: "file", backend: BackendFile, params: map[string]any{"dir": t.TempDir()}},
		{
			name:    "sqlite",
			backend: BackendSQL,
			params:  map[string]any{"driver": "sqlite3", "dsn": filepath.Join(t.TempDir(), "fig.db")},
		},
		{name: "unknown_backend", backend: "redis", expectedErr: "unknown slot store backend"},
		{
			name:        "unknown_param",
			backend:     BackendFile,
			params:      map[string]any{"directory": t.TempDir()},
			expectedErr: "invalid slot store params",
		},
		{name: "s3_without_bucket", backend: BackendS3, params: map[string]any{"region": "eu-west-1"}, expectedErr: "bucket"},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			slots, err := Open(ctx, testCase.backend, testCase.params)
			if testCase.expectedErr != "" {
				assert.ErrorContains(t, err, testCase.expectedErr)
				return
			}
			require.NoError(t, err)
			require.NoError(t, slots.SetSlot(ctx, "slot", []byte("data")))
			if closer, ok := slots.(*SQLSlots); ok {
				assert.NoError(t, closer.Close())
			}
		})
	}
}

func TestOpenFromFlags(t *testing.T) {
	dir := t.TempDir()
	utils.SetTestFlag(t, "persist_backend", BackendFile)
	utils.SetTestFlag(t, "persist_dir", dir)
	slots, err := OpenFromFlags(context.Background())
	require.NoError(t, err)
	require.IsType(t, &FileSlots{}, slots)
	assert.Equal(t, dir, slots.(*FileSlots).dir)
}

func TestDefaultDir(t *testing.T) {
	t.Setenv(DefaultDirEnv, "/tmp/fig-slots")
	dir, err := DefaultDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/fig-slots", dir)
}

func TestBackends(t *testing.T) {
	assert.Equal(t, []string{"file", "memory", "s3", "sql"}, Backends())
}

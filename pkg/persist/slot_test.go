package persist

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects of a single bucket in memory.
type fakeS3 struct {
	mux     sync.Mutex
	objects map[string][]byte
}

var _ S3API = (*fakeS3)(nil)

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(
	_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	data, found := f.objects[aws.ToString(params.Key)]
	if !found {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(
	_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mux.Lock()
	defer f.mux.Unlock()
	f.objects[aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(
	_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options),
) (*s3.DeleteObjectOutput, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	delete(f.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func newSQLiteSlots(t *testing.T) *SQLSlots {
	t.Helper()
	slots, err := OpenSQLSlots(context.Background(), "sqlite3", filepath.Join(t.TempDir(), "slots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, slots.Close()) })
	return slots
}

func TestSlotStores(t *testing.T) {
	for _, testCase := range []struct {
		name     string
		newSlots func(t *testing.T) SlotStore
	}{
		{
			name:     "memory",
			newSlots: func(*testing.T) SlotStore { return NewMemorySlots() },
		},
		{
			name: "file",
			newSlots: func(t *testing.T) SlotStore {
				slots, err := NewFileSlots(filepath.Join(t.TempDir(), "nested", "dir"))
				require.NoError(t, err)
				return slots
			},
		},
		{
			name:     "sqlite",
			newSlots: func(t *testing.T) SlotStore { return newSQLiteSlots(t) },
		},
		{
			name: "s3",
			newSlots: func(t *testing.T) SlotStore {
				slots, err := NewS3Slots(newFakeS3(), "bucket", "fig/")
				require.NoError(t, err)
				return slots
			},
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			ctx := context.Background()
			slots := testCase.newSlots(t)

			_, found, err := slots.GetSlot(ctx, "fig:clients")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, slots.SetSlot(ctx, "fig:clients", []byte(`[["a",{}]]`)))
			require.NoError(t, slots.SetSlot(ctx, "fig:vehicles", []byte(`[]`)))
			data, found, err := slots.GetSlot(ctx, "fig:clients")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, `[["a",{}]]`, string(data))

			// Overwrite.
			require.NoError(t, slots.SetSlot(ctx, "fig:clients", []byte(`[]`)))
			data, found, err = slots.GetSlot(ctx, "fig:clients")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, `[]`, string(data))

			require.NoError(t, slots.RemoveSlot(ctx, "fig:clients"))
			_, found, err = slots.GetSlot(ctx, "fig:clients")
			require.NoError(t, err)
			assert.False(t, found)
			require.NoError(t, slots.RemoveSlot(ctx, "fig:clients"), "Removing a missing slot is fine")

			// Other slots are untouched.
			data, found, err = slots.GetSlot(ctx, "fig:vehicles")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, `[]`, string(data))

			assert.ErrorIs(t, slots.SetSlot(ctx, "", []byte(`[]`)), ErrEmptySlotName)
		})
	}
}

func TestMemorySlots_CopiesData(t *testing.T) {
	ctx := context.Background()
	slots := NewMemorySlots()
	data := []byte("abc")
	require.NoError(t, slots.SetSlot(ctx, "slot", data))
	data[0] = 'x'
	stored, _, err := slots.GetSlot(ctx, "slot")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(stored))
	assert.Equal(t, 1, slots.Len())
}

func TestFileSlots_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	slots, err := NewFileSlots(dir)
	require.NoError(t, err)
	require.NoError(t, slots.SetSlot(ctx, "fig:a/b", []byte("data")))

	reopened, err := NewFileSlots(dir)
	require.NoError(t, err)
	data, found, err := reopened.GetSlot(ctx, "fig:a/b")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "data", string(data))

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "Temp files must be renamed away")
}

func TestFileSlots_CancelledContext(t *testing.T) {
	slots, err := NewFileSlots(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, slots.SetSlot(ctx, "slot", []byte("data")), context.Canceled)
}

func TestSQLSlots_SharedDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "slots.db")
	first, err := OpenSQLSlots(ctx, "sqlite3", path)
	require.NoError(t, err)
	require.NoError(t, first.SetSlot(ctx, "fig:a", []byte("one")))
	require.NoError(t, first.Close())

	second, err := OpenSQLSlots(ctx, "SQLITE3", path)
	require.NoError(t, err)
	defer func() { assert.NoError(t, second.Close()) }()
	data, found, err := second.GetSlot(ctx, "fig:a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "one", string(data))
}

func TestOpenSQLSlots_Errors(t *testing.T) {
	_, err := OpenSQLSlots(context.Background(), "oracle", "dsn")
	assert.ErrorContains(t, err, "unsupported sql driver")
	_, err = OpenSQLSlots(context.Background(), "sqlite3", "")
	assert.ErrorContains(t, err, "need a dsn")
}

func TestS3Slots_ObjectLayout(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	slots, err := NewS3Slots(client, "bucket", "caches/")
	require.NoError(t, err)
	require.NoError(t, slots.SetSlot(ctx, "fig:clients", []byte("[]")))
	assert.Contains(t, client.objects, "caches/fig:clients.json")

	_, err = NewS3Slots(client, "", "caches/")
	assert.Error(t, err)
}

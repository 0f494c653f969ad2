package cache

import (
	"context"
	"testing"
	"time"

	"github.com/nobletooth/fig/pkg/persist"
	"github.com/nobletooth/fig/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromFlags(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		utils.SetTestFlag(t, "enable_cache", "false")
		layer, err := NewFromFlags[string](context.Background(), nil)
		require.NoError(t, err)
		assert.IsType(t, &NoOp[string]{}, layer)
	})
	t.Run("configured", func(t *testing.T) {
		utils.SetTestFlag(t, "cache_name", "flags_configured")
		utils.SetTestFlag(t, "cache_ttl", "90s")
		utils.SetTestFlag(t, "cache_max_size", "7")
		utils.SetTestFlag(t, "cache_cleanup_interval", "0")
		utils.SetTestFlag(t, "cache_coalesce", "true")
		utils.SetTestFlag(t, "cache_persistent", "true")
		utils.SetTestFlag(t, "cache_slot_name", "fig:custom")
		slots := persist.NewMemorySlots()

		layer, err := NewFromFlags[string](context.Background(), slots)
		require.NoError(t, err)
		t.Cleanup(func() { assert.NoError(t, layer.Close()) })
		require.IsType(t, &Store[string]{}, layer)
		store := layer.(*Store[string])
		assert.Equal(t, "flags_configured", store.Name())
		assert.Equal(t, 90*time.Second, store.defaultTTL)
		assert.Equal(t, 7, store.maxSize)
		assert.Nil(t, store.reaper, "Zero interval disables the sweep")
		assert.NotNil(t, store.flights)

		layer.Set("a", "1")
		_, found, err := slots.GetSlot(context.Background(), "fig:custom")
		require.NoError(t, err)
		assert.True(t, found)
	})
}

func TestOptionsFromFlags(t *testing.T) {
	utils.SetTestFlag(t, "cache_cleanup_interval", "-1s")
	utils.SetTestFlag(t, "cache_cleanup_schedule", "@hourly")
	opts := OptionsFromFlags(nil)
	assert.Equal(t, time.Duration(-1), opts.CleanupInterval)
	assert.Equal(t, "@hourly", opts.CleanupSchedule)
	assert.Equal(t, persist.Timeout(), opts.PersistTimeout)
}

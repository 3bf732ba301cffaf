package ingest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermarkStore_LoadAllSingleRead(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	require.NoError(t, store.Set(ctx, "sensorMeta/temperature", Watermark{LastTimestamp: 100, LatestValue: 21.5}))
	require.NoError(t, store.Set(ctx, "sensorMeta/humidity", Watermark{LastTimestamp: 90}))

	wms, err := NewWatermarkStore(store).LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.childrenCalls)
	assert.Len(t, wms, 2)
	assert.Equal(t, 21.5, wms["temperature"].LatestValue)
	assert.True(t, wms["rain"].IsZero(), "missing sensors read as zero")
}

func TestWatermarkStore_SkipsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	require.NoError(t, store.Set(ctx, "sensorMeta/temperature", Watermark{LastTimestamp: 100}))
	require.NoError(t, store.Set(ctx, "sensorMeta/humidity", json.RawMessage(`not json`)))

	wms, err := NewWatermarkStore(store).LoadAll(ctx)
	assert.Error(t, err)
	assert.Len(t, wms, 1)
	assert.Equal(t, int64(100), wms["temperature"].LastTimestamp)
}

func TestWatermarkStore_ReadFailureDegradesToEmpty(t *testing.T) {
	store := newFaultyStore()
	store.failChildren = true

	wms, err := NewWatermarkStore(store).LoadAll(context.Background())
	assert.ErrorIs(t, err, errInjected)
	assert.NotNil(t, wms)
	assert.Empty(t, wms)
}

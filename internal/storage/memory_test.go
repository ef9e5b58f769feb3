package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitimonitor/vitimonitor/internal/model"
)

func reading(sensorID, zone string, ts time.Time) model.Reading {
	return model.Reading{
		SensorID:     sensorID,
		Zone:         zone,
		Temperature:  22,
		HumidityAir:  50,
		HumiditySoil: 30,
		Luminosity:   300,
		Timestamp:    ts,
	}
}

func TestMemoryInsertAssignsMonotonicIDs(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	id1, err := m.InsertReading(ctx, reading("s1", "A", ts))
	require.NoError(t, err)
	id2, err := m.InsertReading(ctx, reading("s1", "A", ts))
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	n, err := m.CountReadings(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestMemoryListOrderAndFilters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	_, _ = m.InsertReading(ctx, reading("s1", "A", base))
	_, _ = m.InsertReading(ctx, reading("s2", "B", base.Add(time.Hour)))
	_, _ = m.InsertReading(ctx, reading("s1", "A", base.Add(2*time.Hour)))

	out, err := m.ListReadings(ctx, ReadingFilter{})
	require.NoError(t, err)
	require.Len(t, out, 3)
	// Più recenti prima.
	for i := 1; i < len(out); i++ {
		assert.False(t, out[i].Timestamp.After(out[i-1].Timestamp))
	}

	out, err = m.ListReadings(ctx, ReadingFilter{Zone: "B"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "s2", out[0].SensorID)

	out, err = m.ListReadings(ctx, ReadingFilter{From: base.Add(30 * time.Minute), To: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "B", out[0].Zone)
}

func TestMemoryActivityDedupKey(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	at := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)

	a := model.Activity{
		ID:          "act-1",
		Kind:        model.KindIrrigation,
		Zone:        "A",
		SensorID:    "s1",
		ScheduledAt: at,
		Status:      model.StatusPending,
	}
	created, err := m.CreateActivity(ctx, a)
	require.NoError(t, err)
	assert.True(t, created)

	// Stessa chiave (sensore, orario, tipo), id diverso: soppressa.
	a.ID = "act-2"
	created, err = m.CreateActivity(ctx, a)
	require.NoError(t, err)
	assert.False(t, created)

	// Cambia una componente della chiave: nuova attività.
	a.ID = "act-3"
	a.Kind = model.KindTemperatureCheck
	created, err = m.CreateActivity(ctx, a)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestMemoryCompleteActivity(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.CreateActivity(ctx, model.Activity{
		ID:          "act-1",
		Kind:        model.KindIrrigation,
		SensorID:    "s1",
		ScheduledAt: time.Now().UTC(),
		Status:      model.StatusPending,
	})
	require.NoError(t, err)

	changed, err := m.CompleteActivity(ctx, "act-1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = m.CompleteActivity(ctx, "act-1")
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = m.CompleteActivity(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryZoneTargetUpsert(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.UpsertZoneTarget(ctx, model.ZoneTarget{Zone: "A", TemperatureOpt: 20, HumidityAirOpt: 55, HumiditySoilOpt: 28}))
	require.NoError(t, m.UpsertZoneTarget(ctx, model.ZoneTarget{Zone: "A", TemperatureOpt: 24, HumidityAirOpt: 55, HumiditySoilOpt: 28}))

	targets, err := m.ListZoneTargets(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, 24.0, targets[0].TemperatureOpt)
}

package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelpipes.ai/internal/sim/pipes/transport"
)

func TestDeliveryLogger_RoundTrip(t *testing.T) {
	dataDir := t.TempDir()
	l := NewDeliveryLogger(dataDir)

	want := []transport.DeliveryRecord{
		{Tick: 10, PacketID: "a", World: "OVERWORLD", Pos: [3]int{7, 64, 0}, Item: "COBBLESTONE", Requested: 16, Inserted: 16, Outcome: transport.OutcomeInserted},
		{Tick: 18, PacketID: "b", World: "OVERWORLD", Pos: [3]int{3, 64, 1}, Item: "COBBLESTONE", Requested: 16, Inserted: 4, Dropped: 12, Outcome: transport.OutcomePartial},
		{Tick: 20, PacketID: "c", World: "OVERWORLD", Pos: [3]int{1, 64, 0}, Item: "DIRT", Requested: 1, Dropped: 1, Outcome: transport.OutcomeErrored, Error: "boom"},
	}
	for _, r := range want {
		require.NoError(t, l.RecordDelivery(r))
	}
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	got, err := ReadDeliveries(DeliveryDir(dataDir))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDeliveryLogger_ReadableBeforeClose(t *testing.T) {
	dataDir := t.TempDir()
	l := NewDeliveryLogger(dataDir)
	defer l.Close()

	require.NoError(t, l.RecordDelivery(transport.DeliveryRecord{PacketID: "live"}))
	got, err := ReadDeliveries(DeliveryDir(dataDir))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "live", got[0].PacketID)
}

func TestDeliveryLogger_RotatesHourly(t *testing.T) {
	dataDir := t.TempDir()
	now := time.Date(2026, 3, 1, 9, 59, 0, 0, time.UTC)
	l := NewDeliveryLogger(dataDir, WithClock(func() time.Time { return now }))

	require.NoError(t, l.RecordDelivery(transport.DeliveryRecord{PacketID: "first"}))
	now = now.Add(2 * time.Minute)
	require.NoError(t, l.RecordDelivery(transport.DeliveryRecord{PacketID: "second"}))
	require.NoError(t, l.Close())

	dir := DeliveryDir(dataDir)
	_, err := os.Stat(filepath.Join(dir, "deliveries-2026-03-01-09.jsonl.zst"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "deliveries-2026-03-01-10.jsonl.zst"))
	require.NoError(t, err)

	got, err := ReadDeliveries(dir)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].PacketID)
	assert.Equal(t, "second", got[1].PacketID)
}

func TestDeliveryLogger_AppendsAcrossReopen(t *testing.T) {
	dataDir := t.TempDir()
	fixed := WithClock(func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) })

	for _, id := range []string{"one", "two"} {
		l := NewDeliveryLogger(dataDir, fixed)
		require.NoError(t, l.RecordDelivery(transport.DeliveryRecord{PacketID: id}))
		require.NoError(t, l.Close())
	}

	got, err := ReadDeliveries(DeliveryDir(dataDir))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].PacketID)
	assert.Equal(t, "two", got[1].PacketID)
}

func TestReadDeliveries_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))
	got, err := ReadDeliveries(dir)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ReadDeliveries(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/sim/pipes/loc"
)

func TestChest_AddItemMergesThenFillsEmptySlots(t *testing.T) {
	c := NewChest(3)
	c.Set(1, Stack("DIRT", 60))
	c.Set(2, Stack("STONE", 10))

	assert.Equal(t, 4+64, c.TotalRoomFor(Stack("DIRT", 1)))
	assert.Equal(t, 1, c.EmptySlotCount())

	assert.Equal(t, 68, c.AddItem(Stack("DIRT", 100)))
	assert.Equal(t, 124, c.Count("DIRT"))
	assert.Equal(t, 0, c.EmptySlotCount())
	assert.Equal(t, 0, c.AddItem(Stack("DIRT", 1)))
	assert.Equal(t, 0, c.AddItem(host.ItemStack{}))
}

func TestChest_RespectsStackLimit(t *testing.T) {
	c := NewChest(2)
	pearls := host.ItemStack{Kind: "ENDER_PEARL", Amount: 20, MaxStack: 16}
	assert.Equal(t, 32, c.TotalRoomFor(pearls))
	assert.Equal(t, 20, c.AddItem(pearls))
	assert.Equal(t, []int{16, 4}, []int{c.Slots()[0].Amount, c.Slots()[1].Amount})
	assert.Equal(t, 20, c.Clear())
	assert.Equal(t, 2, c.EmptySlotCount())
}

func TestWorld_Queries(t *testing.T) {
	w := NewWorld()
	p := loc.At("OVERWORLD", 0, 0, 0)
	w.PlacePipeWithSides(p, loc.SideMask(0).With(loc.Up))
	w.PlaceChest(loc.At("OVERWORLD", 1, 0, 0), 9)

	assert.True(t, w.IsPipeAt(p))
	assert.False(t, w.PipeConnects(p, loc.Up))
	assert.True(t, w.PipeConnects(p, loc.East))
	w.SetPipeSide(p, loc.Up, false)
	assert.True(t, w.PipeConnects(p, loc.Up))

	inv, ok := w.Inventory(loc.At("OVERWORLD", 1, 0, 0))
	require.True(t, ok)
	assert.Equal(t, 9, inv.EmptySlotCount())

	far := loc.At("OVERWORLD", 40, 0, 40)
	w.UnloadChunk(far.Chunk())
	assert.False(t, w.IsChunkLoaded(far))
	assert.True(t, w.IsChunkLoaded(p))
	w.LoadChunk(far.Chunk())
	assert.True(t, w.IsChunkLoaded(far))

	w.DropItem(p, Stack("DIRT", 3))
	w.DropItem(p, host.ItemStack{})
	assert.Equal(t, 3, w.DroppedAmount("DIRT"))
	assert.Len(t, w.TakeDrops(), 1)
	assert.Empty(t, w.Drops())
}

func TestVisual_Lifecycle(t *testing.T) {
	v := NewVisual()
	h := v.Spawn(loc.Vec3f{X: 1}, "OVERWORLD", Stack("DIRT", 1))
	assert.False(t, v.IsDead(h))
	v.Teleport(h, loc.Vec3f{X: 2})
	pos, ok := v.Position(h)
	require.True(t, ok)
	assert.Equal(t, 2.0, pos.X)

	v.Kill(h)
	assert.True(t, v.IsDead(h))
	assert.True(t, v.IsDead(99))
	assert.Equal(t, 0, v.Live())
}

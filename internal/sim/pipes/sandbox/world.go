// Package sandbox is an in-memory host for the pipe core. Tests use it as the
// world, inventory and visual collaborator; pipectl uses it to run demo
// networks without a game server.
package sandbox

import (
	"sort"

	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/sim/pipes/loc"
)

// Drop records an item spilled into the world.
type Drop struct {
	At    loc.Location
	Stack host.ItemStack
}

type World struct {
	pipes    map[loc.Location]loc.SideMask
	chests   map[loc.Location]*Chest
	unloaded map[loc.ChunkKey]bool
	drops    []Drop
}

func NewWorld() *World {
	return &World{
		pipes:    map[loc.Location]loc.SideMask{},
		chests:   map[loc.Location]*Chest{},
		unloaded: map[loc.ChunkKey]bool{},
	}
}

func (w *World) PlacePipe(l loc.Location) { w.pipes[l.Normalize()] = 0 }

func (w *World) PlacePipeWithSides(l loc.Location, disabled loc.SideMask) {
	w.pipes[l.Normalize()] = disabled.Clean()
}

func (w *World) SetPipeSide(l loc.Location, d loc.Direction, disabled bool) {
	l = l.Normalize()
	if m, ok := w.pipes[l]; ok {
		w.pipes[l] = m.Set(d, disabled)
	}
}

func (w *World) RemovePipe(l loc.Location) { delete(w.pipes, l.Normalize()) }

// PipeLocations lists placed pipes in sorted order.
func (w *World) PipeLocations() []loc.Location {
	out := make([]loc.Location, 0, len(w.pipes))
	for l := range w.pipes {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return loc.Less(out[i], out[j]) })
	return out
}

func (w *World) PlaceChest(l loc.Location, slots int) *Chest {
	c := NewChest(slots)
	w.chests[l.Normalize()] = c
	return c
}

func (w *World) RemoveChest(l loc.Location) { delete(w.chests, l.Normalize()) }

func (w *World) Chest(l loc.Location) *Chest { return w.chests[l.Normalize()] }

func (w *World) UnloadChunk(ck loc.ChunkKey) { w.unloaded[ck] = true }

func (w *World) LoadChunk(ck loc.ChunkKey) { delete(w.unloaded, ck) }

func (w *World) Drops() []Drop {
	out := make([]Drop, len(w.drops))
	copy(out, w.drops)
	return out
}

// TakeDrops returns the recorded drops and forgets them.
func (w *World) TakeDrops() []Drop {
	out := w.drops
	w.drops = nil
	return out
}

// DroppedAmount sums every drop of one item kind.
func (w *World) DroppedAmount(kind string) int {
	n := 0
	for _, d := range w.drops {
		if d.Stack.Kind == kind {
			n += d.Stack.Amount
		}
	}
	return n
}

func (w *World) IsChunkLoaded(l loc.Location) bool { return !w.unloaded[l.Normalize().Chunk()] }

func (w *World) IsInventoryAt(l loc.Location) bool { return w.chests[l.Normalize()] != nil }

func (w *World) IsPipeAt(l loc.Location) bool {
	_, ok := w.pipes[l.Normalize()]
	return ok
}

func (w *World) PipeConnects(l loc.Location, d loc.Direction) bool {
	m, ok := w.pipes[l.Normalize()]
	return ok && !m.Has(d)
}

func (w *World) Inventory(l loc.Location) (host.Inventory, bool) {
	c := w.chests[l.Normalize()]
	if c == nil {
		return nil, false
	}
	return c, true
}

func (w *World) DropItem(l loc.Location, stack host.ItemStack) {
	if stack.Empty() {
		return
	}
	w.drops = append(w.drops, Drop{At: l.Normalize(), Stack: stack})
}

// Stack builds an item stack with the default stack limit.
func Stack(kind string, n int) host.ItemStack {
	return host.ItemStack{Kind: kind, Amount: n}
}

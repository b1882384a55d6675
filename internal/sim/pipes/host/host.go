// Package host declares what the pipe core needs from the platform it runs
// inside. Mutations stay with the platform; the core only decides.
package host

import (
	"context"

	"voxelpipes.ai/internal/sim/pipes/loc"
)

// DefaultMaxStack is used when an ItemStack does not carry its own limit.
const DefaultMaxStack = 64

// ItemStack is a quantity of one item kind.
type ItemStack struct {
	Kind     string
	Amount   int
	MaxStack int
}

func (s ItemStack) Empty() bool { return s.Kind == "" || s.Amount <= 0 }

func (s ItemStack) MaxStackSize() int {
	if s.MaxStack <= 0 {
		return DefaultMaxStack
	}
	return s.MaxStack
}

// WithAmount copies the stack with a different quantity.
func (s ItemStack) WithAmount(n int) ItemStack {
	s.Amount = n
	return s
}

// World answers questions about live block state.
type World interface {
	IsChunkLoaded(l loc.Location) bool
	IsInventoryAt(l loc.Location) bool
	IsPipeAt(l loc.Location) bool
	// PipeConnects reports whether the pipe at l has its arm on face d enabled.
	PipeConnects(l loc.Location, d loc.Direction) bool
	Inventory(l loc.Location) (Inventory, bool)
	// DropItem spills a stack into the world near l.
	DropItem(l loc.Location, stack ItemStack)
}

// Inventory is a slot container at one location.
type Inventory interface {
	// AddItem inserts as much of stack as fits and returns the inserted count.
	AddItem(stack ItemStack) int
	EmptySlotCount() int
	// TotalRoomFor is the quantity of stack's kind that would fit, counting
	// both partial stacks and empty slots.
	TotalRoomFor(stack ItemStack) int
}

// Handle identifies a spawned visual.
type Handle uint64

// Visual renders packets. It has no gameplay effect.
type Visual interface {
	Spawn(at loc.Vec3f, world string, stack ItemStack) Handle
	Teleport(h Handle, at loc.Vec3f)
	Remove(h Handle)
	IsDead(h Handle) bool
}

// NodeRecord is the persisted form of one pipe node.
type NodeRecord struct {
	World         string
	X             int
	Y             int
	Z             int
	DisabledSides loc.SideMask
}

func (r NodeRecord) Location() loc.Location {
	return loc.Location{World: r.World, X: r.X, Y: r.Y, Z: r.Z}
}

func RecordOf(l loc.Location, sides loc.SideMask) NodeRecord {
	return NodeRecord{World: l.World, X: l.X, Y: l.Y, Z: l.Z, DisabledSides: sides}
}

// NodeSource loads persisted nodes for one world.
type NodeSource interface {
	LoadNodes(ctx context.Context, worldID string) ([]NodeRecord, error)
}

// NodeSink receives node changes.
type NodeSink interface {
	SaveNode(ctx context.Context, rec NodeRecord) error
	DeleteNode(ctx context.Context, l loc.Location) error
}

type NodeStore interface {
	NodeSource
	NodeSink
	Close() error
}

// NopVisual renders nothing; handles are never dead.
type NopVisual struct{}

func (NopVisual) Spawn(loc.Vec3f, string, ItemStack) Handle { return 0 }
func (NopVisual) Teleport(Handle, loc.Vec3f)                {}
func (NopVisual) Remove(Handle)                             {}
func (NopVisual) IsDead(Handle) bool                        { return false }

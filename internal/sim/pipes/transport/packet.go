// Package transport moves item packets along pipe waypoints over many ticks
// and hands them to inventories when they arrive.
package transport

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/sim/pipes/loc"
)

// DefaultSegmentTicks is the number of ticks a packet spends between two
// waypoints (a step of 0.125 per tick).
const DefaultSegmentTicks = 8

var (
	ErrTooFewWaypoints  = errors.New("packet needs at least two waypoints")
	ErrEmptyItem        = errors.New("packet item is empty")
	ErrInvalidLocation  = errors.New("invalid location")
	ErrPacketNotPending = errors.New("packet already started")
)

type State uint8

const (
	StateMoving State = iota
	StatePaused
	StateArrived
	StateDelivered
	StateErrored
)

var stateNames = [...]string{"MOVING", "PAUSED", "ARRIVED", "DELIVERED", "ERRORED"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// Finished reports a terminal state.
func (s State) Finished() bool { return s == StateDelivered || s == StateErrored }

// DeliveryFunc receives the quantity actually inserted into an inventory.
type DeliveryFunc func(inserted int)

type PacketOption func(*Packet)

// WithDestination makes the packet insert into the inventory at l on arrival
// instead of scanning around its last waypoint.
func WithDestination(l loc.Location) PacketOption {
	return func(p *Packet) {
		p.dest = l.Normalize()
		p.hasDest = true
	}
}

func OnDelivered(fn DeliveryFunc) PacketOption {
	return func(p *Packet) { p.onDelivered = fn }
}

func WithSegmentTicks(n int) PacketOption {
	return func(p *Packet) {
		if n > 0 {
			p.segmentTicks = n
		}
	}
}

// Packet is one item stack in flight. Its waypoints never change after
// construction and its segment index only moves forward.
type Packet struct {
	id          uuid.UUID
	item        host.ItemStack
	waypoints   []loc.Location
	dest        loc.Location
	hasDest     bool
	onDelivered DeliveryFunc

	segmentTicks int
	segment      int
	ticks        int
	state        State

	handle  host.Handle
	spawned bool

	settled  bool // item has been inserted or dropped
	notified bool
}

func NewPacket(item host.ItemStack, waypoints []loc.Location, opts ...PacketOption) (*Packet, error) {
	if item.Empty() {
		return nil, ErrEmptyItem
	}
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewWaypoints, len(waypoints))
	}
	wps := make([]loc.Location, len(waypoints))
	for i, w := range waypoints {
		if !w.Valid() {
			return nil, fmt.Errorf("%w: waypoint %d", ErrInvalidLocation, i)
		}
		wps[i] = w.Normalize()
	}
	p := &Packet{
		id:           uuid.New(),
		item:         item,
		waypoints:    wps,
		segmentTicks: DefaultSegmentTicks,
		state:        StateMoving,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.hasDest && !p.dest.Valid() {
		return nil, fmt.Errorf("%w: destination", ErrInvalidLocation)
	}
	return p, nil
}

func (p *Packet) ID() uuid.UUID { return p.id }

func (p *Packet) Item() host.ItemStack { return p.item }

func (p *Packet) State() State { return p.state }

func (p *Packet) Segment() int { return p.segment }

func (p *Packet) Waypoints() []loc.Location {
	out := make([]loc.Location, len(p.waypoints))
	copy(out, p.waypoints)
	return out
}

func (p *Packet) Destination() (loc.Location, bool) { return p.dest, p.hasDest }

// Progress is the fraction of the current segment already travelled, in [0,1).
func (p *Packet) Progress() float64 {
	return float64(p.ticks) / float64(p.segmentTicks)
}

// Current is the waypoint the packet last passed.
func (p *Packet) Current() loc.Location { return p.waypoints[p.segment] }

func (p *Packet) last() int { return len(p.waypoints) - 1 }

// Position is derived from the absolute segment endpoints every time, so no
// error accumulates across ticks.
func (p *Packet) Position() loc.Vec3f {
	if p.segment >= p.last() {
		return p.waypoints[p.last()].Center()
	}
	a := p.waypoints[p.segment].Center()
	b := p.waypoints[p.segment+1].Center()
	return loc.Lerp(a, b, p.Progress())
}

// ChunkLoader reports whether the chunk holding a location is loaded.
type ChunkLoader interface {
	IsChunkLoaded(l loc.Location) bool
}

// Tick advances the packet by one step.
//
// A lost visual ends the trip early. If either end of the current segment is
// in an unloaded chunk the packet pauses in place and resumes on a later tick.
// Reaching the final waypoint reports StateArrived on that same tick.
func (p *Packet) Tick(world ChunkLoader, v host.Visual) State {
	if p.state.Finished() || p.state == StateArrived {
		return p.state
	}
	if p.spawned && v != nil && v.IsDead(p.handle) {
		p.state = StateArrived
		return p.state
	}
	if p.segment >= p.last() {
		p.state = StateArrived
		return p.state
	}
	if world != nil && (!world.IsChunkLoaded(p.waypoints[p.segment]) || !world.IsChunkLoaded(p.waypoints[p.segment+1])) {
		p.state = StatePaused
		return p.state
	}

	p.state = StateMoving
	p.ticks++
	if p.ticks >= p.segmentTicks {
		p.ticks = 0
		p.segment++
	}
	if p.spawned && v != nil {
		v.Teleport(p.handle, p.Position())
	}
	if p.segment >= p.last() {
		p.state = StateArrived
	}
	return p.state
}

func (p *Packet) spawn(v host.Visual) {
	if v == nil || p.spawned {
		return
	}
	p.handle = v.Spawn(p.Position(), p.waypoints[0].World, p.item)
	p.spawned = true
}

func (p *Packet) despawn(v host.Visual) {
	if v == nil || !p.spawned {
		return
	}
	v.Remove(p.handle)
	p.spawned = false
}

func (p *Packet) notify(inserted int) {
	if p.notified {
		return
	}
	p.notified = true
	if p.onDelivered != nil {
		p.onDelivered(inserted)
	}
}

package transport

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/sim/pipes/loc"
)

// Delivery outcomes recorded for finished packets.
const (
	OutcomeInserted        = "INSERTED"
	OutcomePartial         = "PARTIAL"
	OutcomeDroppedUnloaded = "DROPPED_UNLOADED"
	OutcomeDroppedNoTarget = "DROPPED_NO_INVENTORY"
	OutcomeErrored         = "ERRORED"
)

// DeliveryRecord describes how one packet finished.
type DeliveryRecord struct {
	Tick      uint64 `json:"tick"`
	PacketID  string `json:"packet_id"`
	World     string `json:"world"`
	Pos       [3]int `json:"pos"`
	Item      string `json:"item"`
	Requested int    `json:"requested"`
	Inserted  int    `json:"inserted"`
	Dropped   int    `json:"dropped"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
}

// Recorder persists delivery records. Errors are logged, never fatal.
type Recorder interface {
	RecordDelivery(rec DeliveryRecord) error
}

type ManagerOption func(*Manager)

func WithVisual(v host.Visual) ManagerOption {
	return func(m *Manager) {
		if v != nil {
			m.visual = v
		}
	}
}

func WithRecorder(r Recorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

func WithLogger(l *logrus.Entry) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// Manager owns the live packets of one session and drives them once per host
// tick. It is not safe for concurrent use.
type Manager struct {
	world    host.World
	visual   host.Visual
	recorder Recorder
	log      *logrus.Entry

	packets []*Packet
	nowTick uint64
}

func NewManager(world host.World, opts ...ManagerOption) *Manager {
	m := &Manager{
		world:  world,
		visual: host.NopVisual{},
		log:    logrus.WithField("component", "pipe_transport"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add spawns the packet's visual and starts tracking it.
func (m *Manager) Add(p *Packet) error {
	if p == nil {
		return ErrEmptyItem
	}
	if p.state != StateMoving || p.segment != 0 || p.ticks != 0 || p.spawned {
		return fmt.Errorf("%w: %s", ErrPacketNotPending, p.id)
	}
	p.spawn(m.visual)
	m.packets = append(m.packets, p)
	packetsSpawned.Inc()
	packetsInFlight.Inc()
	return nil
}

func (m *Manager) Len() int { return len(m.packets) }

// Packets returns the live packets in insertion order.
func (m *Manager) Packets() []*Packet {
	out := make([]*Packet, len(m.packets))
	copy(out, m.packets)
	return out
}

// Now is the number of ticks this manager has run.
func (m *Manager) Now() uint64 { return m.nowTick }

// Tick advances every live packet once and delivers the ones that arrived.
// A packet that fails is logged and discarded; the rest of the batch still
// runs. Packets added from delivery callbacks start on the next tick.
func (m *Manager) Tick() {
	m.nowTick++
	batch := m.packets
	m.packets = make([]*Packet, 0, len(batch))

	keep := make([]*Packet, 0, len(batch))
	for _, p := range batch {
		done, err := m.tickOne(p)
		if err != nil {
			m.fail(p, err)
			continue
		}
		if !done {
			keep = append(keep, p)
		}
	}
	m.packets = append(keep, m.packets...)
}

func (m *Manager) tickOne(p *Packet) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("packet %s: panic: %v", p.id, r)
		}
	}()
	if p.Tick(m.world, m.visual) != StateArrived {
		return false, nil
	}
	m.deliver(p)
	p.despawn(m.visual)
	p.state = StateDelivered
	packetsInFlight.Dec()
	return true, nil
}

// fail discards a broken packet without losing its item or its reservation.
func (m *Manager) fail(p *Packet, cause error) {
	packetErrors.Inc()
	packetsInFlight.Dec()
	p.state = StateErrored
	at := p.Current()
	m.log.WithError(cause).WithFields(logrus.Fields{
		"packet": p.id.String(),
		"item":   p.item.Kind,
		"amount": p.item.Amount,
		"at":     at.String(),
	}).Error("packet tick failed; discarding")

	safely(m.log, "remove visual", func() { p.despawn(m.visual) })
	dropped := 0
	if !p.settled {
		safely(m.log, "drop item", func() {
			m.world.DropItem(at, p.item)
			dropped = p.item.Amount
		})
		p.settled = true
		itemsDropped.Add(float64(dropped))
	}
	safely(m.log, "delivery callback", func() { p.notify(0) })
	m.record(p, at, 0, dropped, OutcomeErrored, cause)
}

func safely(log *logrus.Entry, what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("step", what).Errorf("recovered: %v", r)
		}
	}()
	fn()
}

func (m *Manager) deliver(p *Packet) {
	if p.hasDest {
		m.deliverTo(p, p.dest)
		return
	}
	m.deliverAround(p)
}

// deliverTo inserts into a known destination. An unloaded chunk or a missing
// inventory means the item is dropped there instead.
func (m *Manager) deliverTo(p *Packet, dest loc.Location) {
	if !m.world.IsChunkLoaded(dest) {
		m.drop(p, dest, p.item.Amount, OutcomeDroppedUnloaded)
		return
	}
	inv, ok := m.world.Inventory(dest)
	if !ok || inv == nil {
		m.drop(p, dest, p.item.Amount, OutcomeDroppedNoTarget)
		return
	}
	m.insert(p, inv, dest, dest)
}

// deliverAround scans the last waypoint's faces and inserts into the first
// inventory found.
func (m *Manager) deliverAround(p *Packet) {
	final := p.waypoints[p.last()]
	for _, d := range loc.Directions {
		at := final.Offset(d)
		if !m.world.IsInventoryAt(at) {
			continue
		}
		inv, ok := m.world.Inventory(at)
		if !ok || inv == nil {
			continue
		}
		m.insert(p, inv, at, final)
		return
	}
	m.drop(p, final, p.item.Amount, OutcomeDroppedNoTarget)
}

func (m *Manager) insert(p *Packet, inv host.Inventory, at, spill loc.Location) {
	requested := p.item.Amount
	inserted := inv.AddItem(p.item)
	if inserted < 0 {
		inserted = 0
	}
	if inserted > requested {
		inserted = requested
	}
	p.settled = true
	leftover := requested - inserted
	if leftover > 0 {
		m.world.DropItem(spill, p.item.WithAmount(leftover))
		itemsDropped.Add(float64(leftover))
	}
	itemsInserted.Add(float64(inserted))

	outcome := OutcomeInserted
	if leftover > 0 {
		outcome = OutcomePartial
	}
	packetsFinished.WithLabelValues(outcome).Inc()
	m.record(p, at, inserted, leftover, outcome, nil)
	p.notify(inserted)
}

func (m *Manager) drop(p *Packet, at loc.Location, n int, outcome string) {
	m.world.DropItem(at, p.item)
	p.settled = true
	itemsDropped.Add(float64(n))
	packetsFinished.WithLabelValues(outcome).Inc()
	m.record(p, at, 0, n, outcome, nil)
	p.notify(0)
}

func (m *Manager) record(p *Packet, at loc.Location, inserted, dropped int, outcome string, cause error) {
	if m.recorder == nil {
		return
	}
	rec := DeliveryRecord{
		Tick:      m.nowTick,
		PacketID:  p.id.String(),
		World:     at.World,
		Pos:       at.ToArray(),
		Item:      p.item.Kind,
		Requested: p.item.Amount,
		Inserted:  inserted,
		Dropped:   dropped,
		Outcome:   outcome,
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := m.recorder.RecordDelivery(rec); err != nil {
		m.log.WithError(err).Warn("delivery record failed")
	}
}

package observer

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"voxelpipes.ai/internal/observerproto"
	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/sim/pipes/loc"
)

type entity struct {
	world string
	stack host.ItemStack
	pos   loc.Vec3f
	inner host.Handle
}

type subscriber struct {
	world string
	out   chan []byte
}

// Hub is a host.Visual that mirrors packet visuals to websocket observers.
// When a delegate is set, every call is forwarded and the delegate decides
// liveness; otherwise handles live until removed.
type Hub struct {
	inner host.Visual
	log   *logrus.Entry
	tick  atomic.Uint64

	mu     sync.Mutex
	next   host.Handle
	live   map[host.Handle]*entity
	nextID uint64
	subs   map[uint64]*subscriber

	dropped atomic.Uint64
}

type HubOption func(*Hub)

func WithDelegate(v host.Visual) HubOption {
	return func(h *Hub) { h.inner = v }
}

func WithHubLogger(l *logrus.Logger) HubOption {
	return func(h *Hub) { h.log = l.WithField("component", "observer") }
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		live: map[host.Handle]*entity{},
		subs: map[uint64]*subscriber{},
		log:  logrus.WithField("component", "observer"),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// SetTick stamps subsequent events.
func (h *Hub) SetTick(t uint64) { h.tick.Store(t) }

func (h *Hub) Tick() uint64 { return h.tick.Load() }

// Dropped counts events discarded because a subscriber fell behind.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) Spawn(at loc.Vec3f, world string, stack host.ItemStack) host.Handle {
	var inner host.Handle
	if h.inner != nil {
		inner = h.inner.Spawn(at, world, stack)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	h.live[id] = &entity{world: world, stack: stack, pos: at, inner: inner}
	h.publishLocked(observerproto.PacketEvent{
		Type:   observerproto.TypePacketSpawn,
		ID:     uint64(id),
		World:  world,
		Item:   stack.Kind,
		Amount: stack.Amount,
		Pos:    vec(at),
	})
	return id
}

func (h *Hub) Teleport(id host.Handle, at loc.Vec3f) {
	h.mu.Lock()
	e := h.live[id]
	if e == nil {
		h.mu.Unlock()
		return
	}
	e.pos = at
	h.publishLocked(observerproto.PacketEvent{
		Type:  observerproto.TypePacketMove,
		ID:    uint64(id),
		World: e.world,
		Pos:   vec(at),
	})
	inner := e.inner
	h.mu.Unlock()

	if h.inner != nil {
		h.inner.Teleport(inner, at)
	}
}

func (h *Hub) Remove(id host.Handle) {
	h.mu.Lock()
	e := h.live[id]
	if e == nil {
		h.mu.Unlock()
		return
	}
	delete(h.live, id)
	h.publishLocked(observerproto.PacketEvent{
		Type:  observerproto.TypePacketRemove,
		ID:    uint64(id),
		World: e.world,
		Pos:   vec(e.pos),
	})
	inner := e.inner
	h.mu.Unlock()

	if h.inner != nil {
		h.inner.Remove(inner)
	}
}

func (h *Hub) IsDead(id host.Handle) bool {
	h.mu.Lock()
	e := h.live[id]
	h.mu.Unlock()
	if e == nil {
		return true
	}
	if h.inner != nil {
		return h.inner.IsDead(e.inner)
	}
	return false
}

// Snapshot lists live packets in the given world (all worlds when empty),
// ordered by id.
func (h *Hub) Snapshot(world string) []observerproto.PacketState {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]observerproto.PacketState, 0, len(h.live))
	for id, e := range h.live {
		if world != "" && e.world != world {
			continue
		}
		out = append(out, observerproto.PacketState{
			ID:     uint64(id),
			World:  e.world,
			Item:   e.stack.Kind,
			Amount: e.stack.Amount,
			Pos:    vec(e.pos),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (h *Hub) subscribe(world string, buf int) (uint64, <-chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	s := &subscriber{world: world, out: make(chan []byte, buf)}
	h.subs[h.nextID] = s
	return h.nextID, s.out
}

func (h *Hub) setFilter(id uint64, world string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.subs[id]; s != nil {
		s.world = world
	}
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.subs[id]; s != nil {
		delete(h.subs, id)
		close(s.out)
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) publishLocked(ev observerproto.PacketEvent) {
	if len(h.subs) == 0 {
		return
	}
	ev.ProtocolVersion = observerproto.Version
	ev.Tick = h.tick.Load()
	b, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Warn("encode packet event")
		return
	}
	for _, s := range h.subs {
		if s.world != "" && s.world != ev.World {
			continue
		}
		select {
		case s.out <- b:
		default:
			// Slow observer; it resyncs from bootstrap.
			h.dropped.Add(1)
		}
	}
}

func vec(v loc.Vec3f) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

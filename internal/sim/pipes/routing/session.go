package routing

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"voxelpipes.ai/internal/sim/pipes/graph"
	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/sim/pipes/loc"
	"voxelpipes.ai/internal/sim/pipes/transport"
)

type Outcome uint8

const (
	// OutcomeRouted: a packet is on its way to a reserved destination.
	OutcomeRouted Outcome = iota
	// OutcomeNoOutput: no pipe leads away from the controller; item dropped.
	OutcomeNoOutput
	// OutcomeNoCapacity: no reachable destination had room; item dropped.
	OutcomeNoCapacity
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRouted:
		return "routed"
	case OutcomeNoOutput:
		return "no_output"
	case OutcomeNoCapacity:
		return "no_capacity"
	default:
		return "unknown"
	}
}

type Result struct {
	Outcome   Outcome
	Selection Selection
	Packet    *transport.Packet
}

type SessionConfig struct {
	Mode         Mode
	SegmentTicks int
	MaxScanPipes int
	Filter       FilterFunc
	Logger       *logrus.Entry
}

// Session is the output side of one producer (e.g. a quarry): it owns the
// ledger and selector, and feeds packets to a transport manager. Every
// reservation it makes is released exactly once, when its packet finishes or
// when building the packet fails.
type Session struct {
	graph    *graph.Graph
	world    host.World
	manager  *transport.Manager
	ledger   *Ledger
	selector *Selector

	segmentTicks int
	maxScanPipes int
	log          *logrus.Entry
}

func NewSession(g *graph.Graph, world host.World, manager *transport.Manager, cfg SessionConfig) *Session {
	ledger := NewLedger()
	log := cfg.Logger
	if log == nil {
		log = logrus.WithField("component", "pipe_routing")
	}
	return &Session{
		graph:        g,
		world:        world,
		manager:      manager,
		ledger:       ledger,
		selector:     NewSelector(g, world, ledger, WithMode(cfg.Mode), WithFilter(cfg.Filter)),
		segmentTicks: cfg.SegmentTicks,
		maxScanPipes: cfg.MaxScanPipes,
		log:          log,
	}
}

func (s *Session) Ledger() *Ledger { return s.ledger }

func (s *Session) Selector() *Selector { return s.selector }

// StartNode finds a cached pipe touching the controller on a face that points
// back at it. When none is cached the live world is reconciled first.
func (s *Session) StartNode(controller loc.Location) (loc.Location, bool) {
	controller = controller.Normalize()
	if p, ok := s.adjacentPipe(controller); ok {
		return p, true
	}
	if s.graph.Reconcile(controller, s.world.IsPipeAt, graph.WorldSides(s.world), s.maxScanPipes) == 0 {
		return loc.Location{}, false
	}
	return s.adjacentPipe(controller)
}

func (s *Session) adjacentPipe(controller loc.Location) (loc.Location, bool) {
	for _, d := range loc.Directions {
		p := controller.Offset(d)
		n, ok := s.graph.Node(p)
		if ok && n.SideEnabled(d.Opposite()) {
			return p, true
		}
	}
	return loc.Location{}, false
}

// Route sends item from controller to the next admissible destination. When
// the controller has no valid output, or nothing can take the item, it is
// dropped next to the controller; routing never waits for space.
func (s *Session) Route(controller loc.Location, item host.ItemStack) (Result, error) {
	if !controller.Valid() {
		return Result{}, fmt.Errorf("route: %w", transport.ErrInvalidLocation)
	}
	if item.Empty() {
		return Result{}, fmt.Errorf("route: %w", transport.ErrEmptyItem)
	}
	controller = controller.Normalize()

	if !s.graph.HasValidOutput(controller, s.world.IsPipeAt, s.maxScanPipes) {
		s.dropNear(controller, item, OutcomeNoOutput)
		return Result{Outcome: OutcomeNoOutput}, nil
	}
	start, ok := s.StartNode(controller)
	if !ok {
		s.dropNear(controller, item, OutcomeNoOutput)
		return Result{Outcome: OutcomeNoOutput}, nil
	}
	sel, ok := s.selector.Select(controller, start, item)
	if !ok {
		s.dropNear(controller, item, OutcomeNoCapacity)
		return Result{Outcome: OutcomeNoCapacity}, nil
	}

	dest := sel.Destination
	p, err := transport.NewPacket(item, sel.Path,
		transport.WithDestination(dest),
		transport.WithSegmentTicks(s.segmentTicks),
		transport.OnDelivered(func(inserted int) { s.settle(dest, item, inserted) }),
	)
	if err == nil {
		err = s.manager.Add(p)
	}
	if err != nil {
		s.ledger.Release(dest, item.Kind, item.Amount)
		s.dropNear(controller, item, OutcomeNoCapacity)
		return Result{}, fmt.Errorf("route to %s: %w", dest, err)
	}
	routeOutcomes.WithLabelValues(OutcomeRouted.String()).Inc()
	return Result{Outcome: OutcomeRouted, Selection: sel, Packet: p}, nil
}

// settle returns the packet's reservation: the delivered part first, then
// whatever fell short, so partial deliveries leave nothing behind.
// Ledger.Release itself only ever gives back the amount it is told, which is
// the delivered amount here; paying back the shortfall is this session's
// policy, since the ledger cannot tell a lost packet from a slow one.
func (s *Session) settle(dest loc.Location, item host.ItemStack, inserted int) {
	released := s.ledger.Release(dest, item.Kind, inserted)
	if short := item.Amount - released; short > 0 {
		s.ledger.Release(dest, item.Kind, short)
		s.log.WithFields(logrus.Fields{
			"dest":     dest.String(),
			"item":     item.Kind,
			"reserved": item.Amount,
			"inserted": inserted,
		}).Debug("delivery fell short of reservation")
	}
}

func (s *Session) dropNear(controller loc.Location, item host.ItemStack, why Outcome) {
	routeOutcomes.WithLabelValues(why.String()).Inc()
	s.world.DropItem(controller, item)
	s.log.WithFields(logrus.Fields{
		"controller": controller.String(),
		"item":       item.Kind,
		"amount":     item.Amount,
		"reason":     why.String(),
	}).Info("no destination; dropped near controller")
}

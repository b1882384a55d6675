// Package routing picks destination inventories for outgoing items, keeps the
// capacity already promised to in-flight packets, and ties both to packet
// transport in a Session.
package routing

import (
	"fmt"
	"sort"
	"strings"

	"voxelpipes.ai/internal/sim/pipes/graph"
	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/sim/pipes/loc"
)

// Mode decides where the candidate scan starts.
type Mode uint8

const (
	// ModeRoundRobin starts at a cursor that advances after every selection.
	ModeRoundRobin Mode = iota
	// ModeFillFirst always starts at the nearest candidate.
	ModeFillFirst
)

func (m Mode) String() string {
	switch m {
	case ModeRoundRobin:
		return "round_robin"
	case ModeFillFirst:
		return "fill_first"
	default:
		return "unknown"
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "round_robin", "round-robin", "roundrobin":
		return ModeRoundRobin, nil
	case "fill_first", "fill-first", "fillfirst":
		return ModeFillFirst, nil
	default:
		return 0, fmt.Errorf("unknown selection mode %q", s)
	}
}

// FilterFunc is a user item filter on a pipe face. Returning false vetoes
// sending item out of pipe through face.
type FilterFunc func(pipe loc.Location, face loc.Direction, item host.ItemStack) bool

// Selection is a reserved destination and the waypoints to reach it: the pipe
// path from the start node to the pipe touching the destination, then the
// destination itself.
type Selection struct {
	Destination loc.Location
	Pipe        loc.Location
	Path        []loc.Location
}

type SelectorOption func(*Selector)

func WithMode(m Mode) SelectorOption { return func(s *Selector) { s.mode = m } }

func WithFilter(f FilterFunc) SelectorOption { return func(s *Selector) { s.filter = f } }

type Selector struct {
	graph  *graph.Graph
	world  host.World
	ledger *Ledger

	mode   Mode
	cursor int
	filter FilterFunc
}

func NewSelector(g *graph.Graph, world host.World, ledger *Ledger, opts ...SelectorOption) *Selector {
	if ledger == nil {
		ledger = NewLedger()
	}
	s := &Selector{graph: g, world: world, ledger: ledger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Selector) Mode() Mode { return s.mode }

func (s *Selector) Cursor() int { return s.cursor }

func (s *Selector) Ledger() *Ledger { return s.ledger }

// Candidates lists the inventories reachable from start, nearest to the
// controller first, ties broken by coordinates.
func (s *Selector) Candidates(controller, start loc.Location) []loc.Location {
	controller = controller.Normalize()
	out := s.graph.FindInventoriesNear(start)
	filtered := out[:0]
	for _, l := range out {
		if l != controller {
			filtered = append(filtered, l)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		di := filtered[i].DistanceSq(controller)
		dj := filtered[j].DistanceSq(controller)
		if di != dj {
			return di < dj
		}
		return loc.Less(filtered[i], filtered[j])
	})
	return filtered
}

// Select scans the candidates in mode order and reserves capacity at the first
// one that has room, passes the filter and is reachable. The caller builds the
// packet from the returned path and must release the reservation when the
// packet finishes.
func (s *Selector) Select(controller, start loc.Location, item host.ItemStack) (Selection, bool) {
	if item.Empty() {
		return Selection{}, false
	}
	cands := s.Candidates(controller, start)
	n := len(cands)
	if n == 0 {
		selections.WithLabelValues("no_candidates").Inc()
		return Selection{}, false
	}
	first := 0
	if s.mode == ModeRoundRobin {
		first = s.cursor % n
	}
	for i := 0; i < n; i++ {
		dest := cands[(first+i)%n]
		inv, ok := s.world.Inventory(dest)
		if !ok || !s.ledger.CanReserve(dest, inv, item) {
			continue
		}
		sel, ok := s.route(start, dest, item)
		if !ok {
			continue
		}
		s.ledger.Reserve(dest, item.Kind, item.Amount)
		if s.mode == ModeRoundRobin {
			s.cursor++
		}
		selections.WithLabelValues("selected").Inc()
		return sel, true
	}
	selections.WithLabelValues("no_capacity").Inc()
	return Selection{}, false
}

// route finds the shortest path from start to a pipe touching dest through an
// enabled, unfiltered face.
func (s *Selector) route(start, dest loc.Location, item host.ItemStack) (Selection, bool) {
	var best Selection
	found := false
	for _, d := range loc.Directions {
		pipe := dest.Offset(d)
		node, ok := s.graph.Node(pipe)
		if !ok {
			continue
		}
		face := d.Opposite()
		if !node.SideEnabled(face) {
			continue
		}
		if s.filter != nil && !s.filter(pipe, face, item) {
			continue
		}
		path, ok := s.graph.FindPath(start, pipe)
		if !ok {
			continue
		}
		if found && len(path)+1 >= len(best.Path) {
			continue
		}
		best = Selection{
			Destination: dest,
			Pipe:        pipe,
			Path:        append(path, dest),
		}
		found = true
	}
	return best, found
}

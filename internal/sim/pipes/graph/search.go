package graph

import (
	"github.com/sirupsen/logrus"

	"voxelpipes.ai/internal/sim/pipes/loc"
)

// DefaultMaxScanPipes bounds the live reconciliation scan.
const DefaultMaxScanPipes = 8192

// FindPath returns the shortest hop path from start to end, both inclusive.
// Neighbors are expanded in insertion order, so ties resolve the same way on
// every run.
func (g *Graph) FindPath(start, end loc.Location) ([]loc.Location, bool) {
	s := g.nodes[start.Normalize()]
	e := g.nodes[end.Normalize()]
	if s == nil || e == nil {
		return nil, false
	}
	if s == e {
		return []loc.Location{s.loc}, true
	}

	parent := map[*Node]*Node{s: nil}
	queue := []*Node{s}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range cur.neighbors {
			if _, seen := parent[nb]; seen {
				continue
			}
			parent[nb] = cur
			if nb == e {
				return walkBack(parent, e), true
			}
			queue = append(queue, nb)
		}
	}
	return nil, false
}

func walkBack(parent map[*Node]*Node, end *Node) []loc.Location {
	var path []loc.Location
	for n := end; n != nil; n = parent[n] {
		path = append(path, n.loc)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// FindInventoriesNear walks every node reachable from start and collects the
// inventories touching an enabled side. The result is deduplicated and sorted.
func (g *Graph) FindInventoriesNear(start loc.Location) []loc.Location {
	return g.inventoriesFrom(start, nil)
}

func (g *Graph) inventoriesFrom(start loc.Location, exclude *loc.Location) []loc.Location {
	s := g.nodes[start.Normalize()]
	if s == nil || g.world == nil {
		return nil
	}
	found := map[loc.Location]struct{}{}
	visited := map[*Node]struct{}{s: {}}
	queue := []*Node{s}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, d := range loc.Directions {
			if !n.SideEnabled(d) {
				continue
			}
			p := n.loc.Offset(d)
			if exclude != nil && p == *exclude {
				continue
			}
			if g.world.IsInventoryAt(p) {
				found[p] = struct{}{}
			}
		}
		for _, nb := range n.neighbors {
			if _, ok := visited[nb]; ok {
				continue
			}
			visited[nb] = struct{}{}
			queue = append(queue, nb)
		}
	}
	if len(found) == 0 {
		return nil
	}
	out := make([]loc.Location, 0, len(found))
	for l := range found {
		out = append(out, l)
	}
	sortLocations(out)
	return out
}

// HasValidOutput reports whether a controller can deliver anywhere. The cache
// may lag behind the world (chunk reloads, external edits, store resets), so
// when no cached pipe touches the controller it reconciles from the live world
// with isPipeAt, inserting what it finds, and asks again.
func (g *Graph) HasValidOutput(controller loc.Location, isPipeAt func(loc.Location) bool, maxScanPipes int) bool {
	c := controller.Normalize()
	if g.world != nil {
		for _, d := range loc.Directions {
			if g.world.IsInventoryAt(c.Offset(d)) {
				validOutputChecks.WithLabelValues("direct").Inc()
				return true
			}
		}
	}

	ok, adjacent := g.cachedOutput(c)
	if ok {
		validOutputChecks.WithLabelValues("cache").Inc()
		return true
	}
	if adjacent || isPipeAt == nil {
		validOutputChecks.WithLabelValues("none").Inc()
		return false
	}

	g.Reconcile(c, isPipeAt, g.liveSides(), maxScanPipes)
	ok, _ = g.cachedOutput(c)
	if ok {
		validOutputChecks.WithLabelValues("reconciled").Inc()
	} else {
		validOutputChecks.WithLabelValues("none").Inc()
	}
	return ok
}

// cachedOutput checks the cached nodes touching the controller on a face that
// points back at it. adjacent is true when at least one such node exists.
func (g *Graph) cachedOutput(c loc.Location) (ok, adjacent bool) {
	for _, d := range loc.Directions {
		n := g.nodes[c.Offset(d)]
		if n == nil || !n.SideEnabled(d.Opposite()) {
			continue
		}
		adjacent = true
		if len(g.inventoriesFrom(n.loc, &c)) > 0 {
			return true, true
		}
	}
	return false, adjacent
}

// SidesFunc reports which faces of a live pipe block are disabled.
type SidesFunc func(l loc.Location) loc.SideMask

// PipeSides is the part of a live world that knows pipe arm state.
type PipeSides interface {
	PipeConnects(l loc.Location, d loc.Direction) bool
}

// WorldSides reads disabled faces through w.PipeConnects.
func WorldSides(w PipeSides) SidesFunc {
	if w == nil {
		return nil
	}
	return func(l loc.Location) loc.SideMask {
		var m loc.SideMask
		for _, d := range loc.Directions {
			if !w.PipeConnects(l, d) {
				m = m.With(d)
			}
		}
		return m
	}
}

// liveSides is the side source HasValidOutput heals with: the WithLiveSides
// option, else the graph's world when it reports pipe arms.
func (g *Graph) liveSides() SidesFunc {
	if g.sides != nil {
		return g.sides
	}
	if ps, ok := g.world.(PipeSides); ok {
		return WorldSides(ps)
	}
	return nil
}

// Reconcile scans the live world breadth-first from the blocks around origin,
// visiting at most maxScanPipes pipes, and caches any pipe it did not know
// about with the disabled faces sidesAt reports. A nil sidesAt caches pipes
// with every face enabled. It returns the number of nodes added.
func (g *Graph) Reconcile(origin loc.Location, isPipeAt func(loc.Location) bool, sidesAt SidesFunc, maxScanPipes int) int {
	if isPipeAt == nil {
		return 0
	}
	if maxScanPipes <= 0 {
		maxScanPipes = DefaultMaxScanPipes
	}
	origin = origin.Normalize()

	visited := map[loc.Location]struct{}{}
	var queue []loc.Location
	for _, d := range loc.Directions {
		p := origin.Offset(d)
		if isPipeAt(p) {
			visited[p] = struct{}{}
			queue = append(queue, p)
		}
	}

	added, scanned := 0, 0
	for len(queue) > 0 && scanned < maxScanPipes {
		p := queue[0]
		queue = queue[1:]
		scanned++
		if _, ok := g.nodes[p]; !ok {
			var disabled loc.SideMask
			if sidesAt != nil {
				disabled = sidesAt(p)
			}
			g.addNode(p, disabled)
			added++
		}
		for _, d := range loc.Directions {
			q := p.Offset(d)
			if q == origin {
				continue
			}
			if _, ok := visited[q]; ok {
				continue
			}
			if isPipeAt(q) {
				visited[q] = struct{}{}
				queue = append(queue, q)
			}
		}
	}

	if added > 0 {
		selfHealPipes.Add(float64(added))
		g.log.WithFields(logrus.Fields{
			"origin":  origin.String(),
			"added":   added,
			"scanned": scanned,
		}).Debug("reconciled pipe cache from world")
	}
	return added
}

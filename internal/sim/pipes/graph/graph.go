// Package graph caches the pipe network as an adjacency graph and answers
// routing questions against it: shortest paths, reachable inventories and
// whether a controller has anywhere to send items.
//
// A Graph is owned by one routing session and is not safe for concurrent use.
package graph

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/sim/pipes/loc"
)

// InventoryFinder reports whether an inventory sits at a location.
type InventoryFinder interface {
	IsInventoryAt(l loc.Location) bool
}

type Option func(*Graph)

func WithLogger(l *logrus.Entry) Option {
	return func(g *Graph) {
		if l != nil {
			g.log = l
		}
	}
}

// WithJournal forwards node additions, removals and side changes to sink.
// Bulk loads are not journaled.
func WithJournal(sink host.NodeSink) Option {
	return func(g *Graph) { g.journal = sink }
}

// WithLiveSides sets where HasValidOutput reads the disabled faces of pipes it
// heals into the cache.
func WithLiveSides(f SidesFunc) Option {
	return func(g *Graph) { g.sides = f }
}

type Graph struct {
	world   InventoryFinder
	sides   SidesFunc
	nodes   map[loc.Location]*Node
	byChunk map[loc.ChunkKey]map[loc.Location]struct{}

	journal host.NodeSink
	log     *logrus.Entry
}

func New(world InventoryFinder, opts ...Option) *Graph {
	g := &Graph{
		world:   world,
		nodes:   map[loc.Location]*Node{},
		byChunk: map[loc.ChunkKey]map[loc.Location]struct{}{},
		log:     logrus.WithField("component", "pipe_graph"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddNode inserts a pipe with every side enabled and links it to its axis
// neighbors. Adding an existing location returns the cached node unchanged.
func (g *Graph) AddNode(l loc.Location) *Node {
	return g.addNode(l, 0)
}

func (g *Graph) AddNodeWithSides(l loc.Location, disabled loc.SideMask) *Node {
	return g.addNode(l, disabled)
}

func (g *Graph) addNode(l loc.Location, disabled loc.SideMask) *Node {
	l = l.Normalize()
	if n, ok := g.nodes[l]; ok {
		return n
	}
	n := &Node{loc: l, disabled: disabled.Clean()}
	g.nodes[l] = n
	g.index(l)
	g.linkAround(n)
	g.save(n)
	return n
}

// RemoveNode drops the node and rebuilds adjacency for the whole graph.
func (g *Graph) RemoveNode(l loc.Location) bool {
	l = l.Normalize()
	if _, ok := g.nodes[l]; !ok {
		return false
	}
	delete(g.nodes, l)
	g.unindex(l)
	g.Rebuild()
	if g.journal != nil {
		if err := g.journal.DeleteNode(context.Background(), l); err != nil {
			g.log.WithError(err).WithField("loc", l.String()).Warn("journal delete failed")
		}
	}
	return true
}

// SetSideDisabled changes one face of a node and relinks that node.
func (g *Graph) SetSideDisabled(l loc.Location, d loc.Direction, disabled bool) error {
	n, ok := g.nodes[l.Normalize()]
	if !ok {
		return ErrNodeNotFound
	}
	next := n.disabled.Set(d, disabled)
	if next == n.disabled {
		return nil
	}
	n.disabled = next
	g.relink(n)
	g.save(n)
	return nil
}

// ToggleSide flips one face and returns whether it is now disabled.
func (g *Graph) ToggleSide(l loc.Location, d loc.Direction) (bool, error) {
	n, ok := g.nodes[l.Normalize()]
	if !ok {
		return false, ErrNodeNotFound
	}
	disabled := !n.disabled.Has(d)
	if err := g.SetSideDisabled(l, d, disabled); err != nil {
		return false, err
	}
	return disabled, nil
}

// Rebuild recomputes every node's adjacency from scratch. Nodes are visited
// in location order so neighbor order is reproducible.
func (g *Graph) Rebuild() {
	for _, n := range g.nodes {
		n.neighbors = nil
	}
	for _, l := range g.Locations() {
		n := g.nodes[l]
		for _, d := range loc.Directions {
			o := g.nodes[l.Offset(d)]
			if o == nil || !canLink(n, o, d) {
				continue
			}
			n.link(o)
			o.link(n)
		}
	}
	rebuildTotal.Inc()
}

func (g *Graph) relink(n *Node) {
	for _, o := range n.neighbors {
		o.unlink(n)
	}
	n.neighbors = nil
	g.linkAround(n)
}

func (g *Graph) linkAround(n *Node) {
	for _, d := range loc.Directions {
		o := g.nodes[n.loc.Offset(d)]
		if o == nil || !canLink(n, o, d) {
			continue
		}
		n.link(o)
		o.link(n)
	}
}

// canLink: an arm exists only when neither end has its facing side disabled.
func canLink(a, b *Node, d loc.Direction) bool {
	return a.SideEnabled(d) && b.SideEnabled(d.Opposite())
}

func (g *Graph) index(l loc.Location) {
	ck := l.Chunk()
	bucket := g.byChunk[ck]
	if bucket == nil {
		bucket = map[loc.Location]struct{}{}
		g.byChunk[ck] = bucket
	}
	bucket[l] = struct{}{}
}

func (g *Graph) unindex(l loc.Location) {
	ck := l.Chunk()
	bucket := g.byChunk[ck]
	if bucket == nil {
		return
	}
	delete(bucket, l)
	if len(bucket) == 0 {
		delete(g.byChunk, ck)
	}
}

func (g *Graph) save(n *Node) {
	if g.journal == nil {
		return
	}
	if err := g.journal.SaveNode(context.Background(), host.RecordOf(n.loc, n.disabled)); err != nil {
		g.log.WithError(err).WithField("loc", n.loc.String()).Warn("journal save failed")
	}
}

func (g *Graph) Node(l loc.Location) (*Node, bool) {
	n, ok := g.nodes[l.Normalize()]
	return n, ok
}

func (g *Graph) Contains(l loc.Location) bool {
	_, ok := g.nodes[l.Normalize()]
	return ok
}

func (g *Graph) Len() int { return len(g.nodes) }

// Locations returns every cached node location in sorted order.
func (g *Graph) Locations() []loc.Location {
	out := make([]loc.Location, 0, len(g.nodes))
	for l := range g.nodes {
		out = append(out, l)
	}
	sortLocations(out)
	return out
}

// ChunkLocations returns the nodes indexed under one chunk, sorted.
func (g *Graph) ChunkLocations(ck loc.ChunkKey) []loc.Location {
	bucket := g.byChunk[ck]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]loc.Location, 0, len(bucket))
	for l := range bucket {
		out = append(out, l)
	}
	sortLocations(out)
	return out
}

func (g *Graph) ChunkCount() int { return len(g.byChunk) }

// Export returns the persisted form of every node, sorted by location.
func (g *Graph) Export() []host.NodeRecord {
	locs := g.Locations()
	out := make([]host.NodeRecord, 0, len(locs))
	for _, l := range locs {
		out = append(out, host.RecordOf(l, g.nodes[l].disabled))
	}
	return out
}

// Load inserts persisted nodes for one world and rebuilds adjacency once.
func (g *Graph) Load(ctx context.Context, src host.NodeSource, worldID string) (int, error) {
	recs, err := src.LoadNodes(ctx, worldID)
	if err != nil {
		return 0, err
	}
	g.Import(recs)
	return len(recs), nil
}

// Import bulk-inserts records without journaling and rebuilds adjacency.
func (g *Graph) Import(recs []host.NodeRecord) {
	for _, r := range recs {
		l := r.Location().Normalize()
		if n, ok := g.nodes[l]; ok {
			n.disabled = r.DisabledSides.Clean()
			continue
		}
		g.nodes[l] = &Node{loc: l, disabled: r.DisabledSides.Clean()}
		g.index(l)
	}
	g.Rebuild()
}

func sortLocations(ls []loc.Location) {
	sort.Slice(ls, func(i, j int) bool { return loc.Less(ls[i], ls[j]) })
}

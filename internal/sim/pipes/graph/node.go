package graph

import "voxelpipes.ai/internal/sim/pipes/loc"

// Node is one pipe block. Its neighbor list is owned by the Graph, which keeps
// it symmetric.
type Node struct {
	loc       loc.Location
	neighbors []*Node
	disabled  loc.SideMask
}

func (n *Node) Location() loc.Location { return n.loc }

func (n *Node) Disabled() loc.SideMask { return n.disabled }

// SideEnabled reports whether the arm on face d may link or insert.
func (n *Node) SideEnabled(d loc.Direction) bool { return !n.disabled.Has(d) }

// Neighbors returns the linked nodes in insertion order.
func (n *Node) Neighbors() []*Node {
	out := make([]*Node, len(n.neighbors))
	copy(out, n.neighbors)
	return out
}

func (n *Node) HasNeighbor(o *Node) bool {
	for _, x := range n.neighbors {
		if x == o {
			return true
		}
	}
	return false
}

func (n *Node) link(o *Node) {
	if n.HasNeighbor(o) {
		return
	}
	n.neighbors = append(n.neighbors, o)
}

func (n *Node) unlink(o *Node) {
	for i, x := range n.neighbors {
		if x == o {
			n.neighbors = append(n.neighbors[:i], n.neighbors[i+1:]...)
			return
		}
	}
}

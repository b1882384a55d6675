// Package probe answers "can this block reach an inventory" from live world
// state only. It never consults the cached pipe graph, so it stays correct
// when the cache has drifted.
package probe

import "voxelpipes.ai/internal/sim/pipes/loc"

// DefaultMaxNodes caps the number of pipes one probe may visit.
const DefaultMaxNodes = 8192

// Env is the live world view the probe reads.
type Env interface {
	IsInventoryAt(l loc.Location) bool
	IsPipeAt(l loc.Location) bool
	PipeConnects(l loc.Location, d loc.Direction) bool
}

// Reachable reports whether origin touches an inventory directly or through a
// chain of mutually connected pipe arms. It gives up and returns false once
// maxNodes pipes have been visited.
func Reachable(env Env, origin loc.Location, maxNodes int) bool {
	if env == nil {
		return false
	}
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	origin = origin.Normalize()

	// Rule 1: an inventory on any face of the origin.
	for _, d := range loc.Directions {
		if env.IsInventoryAt(origin.Offset(d)) {
			return true
		}
	}

	// Rule 2: pipes whose arm points back at the origin seed the search.
	starts := make([]loc.Location, 0, 6)
	for _, d := range loc.Directions {
		p := origin.Offset(d)
		if env.IsPipeAt(p) && env.PipeConnects(p, d.Opposite()) {
			starts = append(starts, p)
		}
	}
	if len(starts) == 0 {
		return false
	}
	return pipesReachInventory(env, origin, starts, maxNodes)
}

func pipesReachInventory(env Env, origin loc.Location, starts []loc.Location, maxNodes int) bool {
	visited := map[loc.Location]bool{}
	q := make([]loc.Location, 0, len(starts))
	for _, p := range starts {
		if visited[p] {
			continue
		}
		visited[p] = true
		q = append(q, p)
	}

	expanded := 0
	for len(q) > 0 {
		if expanded >= maxNodes {
			return false
		}
		expanded++
		p := q[0]
		q = q[1:]

		for _, d := range loc.Directions {
			if !env.PipeConnects(p, d) {
				continue
			}
			np := p.Offset(d)
			if np == origin || visited[np] {
				continue
			}
			if env.IsInventoryAt(np) {
				return true
			}
			if !env.IsPipeAt(np) || !env.PipeConnects(np, d.Opposite()) {
				continue
			}
			visited[np] = true
			q = append(q, np)
		}
	}
	return false
}

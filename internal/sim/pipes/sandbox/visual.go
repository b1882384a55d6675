package sandbox

import (
	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/sim/pipes/loc"
)

type visualEntity struct {
	world string
	stack host.ItemStack
	pos   loc.Vec3f
	moves int
}

// Visual keeps spawned packet visuals in memory. Handles that were removed,
// killed or never spawned report dead.
type Visual struct {
	next host.Handle
	live map[host.Handle]*visualEntity
}

func NewVisual() *Visual {
	return &Visual{live: map[host.Handle]*visualEntity{}}
}

func (v *Visual) Spawn(at loc.Vec3f, world string, stack host.ItemStack) host.Handle {
	v.next++
	v.live[v.next] = &visualEntity{world: world, stack: stack, pos: at}
	return v.next
}

func (v *Visual) Teleport(h host.Handle, at loc.Vec3f) {
	if e := v.live[h]; e != nil {
		e.pos = at
		e.moves++
	}
}

func (v *Visual) Remove(h host.Handle) { delete(v.live, h) }

func (v *Visual) IsDead(h host.Handle) bool { return v.live[h] == nil }

// Kill simulates the platform losing an entity (e.g. despawned by the host).
func (v *Visual) Kill(h host.Handle) { delete(v.live, h) }

func (v *Visual) Position(h host.Handle) (loc.Vec3f, bool) {
	e := v.live[h]
	if e == nil {
		return loc.Vec3f{}, false
	}
	return e.pos, true
}

func (v *Visual) Live() int { return len(v.live) }
